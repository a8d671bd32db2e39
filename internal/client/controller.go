// Package client is the upload controller of the compression server: it
// takes a selection of image files, previews it, submits it to the single or
// batch endpoint and renders what comes back.
package client

import (
	"context"
	"errors"
	"sync"

	"image-compress-go/internal/extractor"
	"image-compress-go/internal/logger"
	"image-compress-go/internal/model"

	"github.com/sirupsen/logrus"
)

var (
	// ErrBusy is returned by Submit while another submission is in flight.
	ErrBusy = errors.New("a submission is already in progress")
	// ErrNoFiles is returned by Submit when nothing is selected.
	ErrNoFiles = errors.New("no files selected")
)

// MaxPreviews is the default number of preview cards.
const MaxPreviews = 6

// State is the lifecycle of a submission.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateSuccess
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome is what a submission produced. Exactly one of Single, Batch and
// Error is set.
type Outcome struct {
	Single *model.UploadResponse
	Batch  *model.BatchResponse
	// Error is the banner message of a failed submission.
	Error string
}

// Failed reports whether the submission ended with an error banner.
func (o *Outcome) Failed() bool {
	return o.Error != ""
}

// Results returns the result rows of a successful submission; a single-file
// response becomes one row.
func (o *Outcome) Results() []model.CompressionResult {
	switch {
	case o.Single != nil:
		return []model.CompressionResult{o.Single.Result()}
	case o.Batch != nil:
		return o.Batch.Results
	default:
		return nil
	}
}

// Links returns the download links of all compressed files.
func (o *Outcome) Links() []string {
	var links []string
	for _, r := range o.Results() {
		if !r.Failed() {
			links = append(links, r.DownloadURL)
		}
	}
	return links
}

// StateListener is told about every state change together with the label of
// the submit action.
type StateListener func(state State, label string)

// Controller drives one selection through preview, submission and rendering.
type Controller struct {
	api         *API
	extractor   extractor.InfoExtractor
	renderer    *Renderer
	logger      *logrus.Logger
	maxPreviews int

	mutex    sync.Mutex
	state    State
	files    []File
	listener StateListener
}

// NewController returns a Controller. ext may be nil, in which case previews
// show only names and sizes.
func NewController(api *API, ext extractor.InfoExtractor, renderer *Renderer, log *logrus.Logger, maxPreviews int) *Controller {
	if log == nil {
		log = logger.Discard()
	}
	if maxPreviews <= 0 {
		maxPreviews = MaxPreviews
	}
	return &Controller{
		api:         api,
		extractor:   ext,
		renderer:    renderer,
		logger:      log,
		maxPreviews: maxPreviews,
		state:       StateIdle,
	}
}

// OnStateChange sets the listener for state changes.
func (c *Controller) OnStateChange(l StateListener) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.listener = l
}

// State returns the current state.
func (c *Controller) State() State {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.state
}

// Files returns a copy of the current selection.
func (c *Controller) Files() []File {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]File(nil), c.files...)
}

// Submittable reports whether the submit action is enabled.
func (c *Controller) Submittable() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.files) > 0 && c.state != StateSubmitting
}

// Label returns the label of the submit action.
func (c *Controller) Label() string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return labelFor(c.state)
}

// Intake replaces the selection with the images found under paths and renders
// the preview. An empty result keeps the previous selection.
func (c *Controller) Intake(paths []string) ([]File, error) {
	files, err := SelectFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	c.mutex.Lock()
	c.files = files
	c.mutex.Unlock()

	// cached previews only cover the current selection
	if cached, ok := c.extractor.(extractor.CachedInfoExtractor); ok {
		cached.ClearCache()
	}

	c.logger.WithField("count", len(files)).Debug("Selection replaced")
	slots, hidden := c.Preview(files)
	c.renderer.Preview(slots, hidden)
	return append([]File(nil), files...), nil
}

// Preview decodes the first previewed files concurrently, one goroutine per
// card, and returns the cards plus the number of files not shown.
func (c *Controller) Preview(files []File) ([]PreviewSlot, int) {
	n := min(len(files), c.maxPreviews)
	slots := make([]PreviewSlot, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		slots[i].File = files[i]
		if c.extractor == nil {
			continue
		}
		wg.Add(1)
		go func(slot *PreviewSlot) {
			defer wg.Done()
			info, err := c.extractor.Extract(slot.File.Path)
			if err != nil {
				logger.WithFile(c.logger, slot.File.Name).Debugf("Preview unavailable: %v", err)
				slot.Err = err
				return
			}
			slot.Info = info
		}(&slots[i])
	}
	wg.Wait()

	if cached, ok := c.extractor.(extractor.CachedInfoExtractor); ok {
		st := cached.GetCacheStats()
		c.logger.WithFields(logrus.Fields{
			"hits":     st.Hits,
			"misses":   st.Misses,
			"hit_rate": st.HitRate,
		}).Debug("Preview cache")
	}

	return slots, len(files) - n
}

// Submit sends the selection with opts: one file goes to the single-file
// endpoint, several go to the batch endpoint in one request. The outcome is
// rendered before Submit returns. Failed submissions are reported through
// Outcome.Error; the returned error is only ErrBusy or ErrNoFiles.
func (c *Controller) Submit(ctx context.Context, opts Options) (*Outcome, error) {
	c.mutex.Lock()
	if c.state == StateSubmitting {
		c.mutex.Unlock()
		return nil, ErrBusy
	}
	if len(c.files) == 0 {
		c.mutex.Unlock()
		return nil, ErrNoFiles
	}
	files := append([]File(nil), c.files...)
	// the previous terminal state passes through idle
	c.state = StateSubmitting
	listener := c.listener
	c.mutex.Unlock()

	if listener != nil {
		listener(StateIdle, labelFor(StateIdle))
		listener(StateSubmitting, labelFor(StateSubmitting))
	}
	c.renderer.Busy(LabelBusy)

	log := logger.WithOperation(c.logger, "submit").WithField("files", len(files))
	var outcome *Outcome
	if len(files) == 1 {
		outcome = c.submitSingle(ctx, files[0], opts)
	} else {
		outcome = c.submitBatch(ctx, files, opts)
	}

	if outcome.Failed() {
		log.Warnf("Submission failed: %s", outcome.Error)
		c.renderer.ErrorBanner(outcome.Error)
		c.setState(StateError)
	} else {
		log.Debug("Submission succeeded")
		c.setState(StateSuccess)
	}
	return outcome, nil
}

// Download fetches a returned download link into dir.
func (c *Controller) Download(ctx context.Context, link, dir string) (string, error) {
	return c.api.Download(ctx, link, dir)
}

func (c *Controller) submitSingle(ctx context.Context, file File, opts Options) *Outcome {
	resp, err := c.api.UploadSingle(ctx, file, opts)
	if err != nil {
		return &Outcome{Error: err.Error()}
	}
	if !resp.Success {
		return &Outcome{Error: bannerMessage(resp.Error, DefaultSingleError)}
	}
	c.renderer.ResultCard(resp)
	return &Outcome{Single: resp}
}

func (c *Controller) submitBatch(ctx context.Context, files []File, opts Options) *Outcome {
	resp, err := c.api.UploadBatch(ctx, files, opts)
	if err != nil {
		return &Outcome{Error: err.Error()}
	}
	if !resp.Success {
		return &Outcome{Error: bannerMessage(resp.Error, DefaultBatchError)}
	}
	c.renderer.BatchTable(resp)
	return &Outcome{Batch: resp}
}

func (c *Controller) setState(state State) {
	c.mutex.Lock()
	c.state = state
	listener := c.listener
	c.mutex.Unlock()

	if listener != nil {
		listener(state, labelFor(state))
	}
}

func labelFor(state State) string {
	if state == StateSubmitting {
		return LabelBusy
	}
	return LabelIdle
}

func bannerMessage(serverMessage, fallback string) string {
	if serverMessage != "" {
		return serverMessage
	}
	return fallback
}
