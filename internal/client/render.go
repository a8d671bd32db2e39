package client

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"

	"image-compress-go/internal/extractor"
	"image-compress-go/internal/model"

	"github.com/fatih/color"
)

// Labels of the submit action.
const (
	LabelIdle = "Compress images"
	LabelBusy = "Processing..."
)

// Default banner messages when the server gives none.
const (
	DefaultSingleError = "compression failed"
	DefaultBatchError  = "batch processing failed"
)

// truncateWidth is the name width of batch table rows.
const truncateWidth = 20

// PreviewSlot is one preview card. Info is nil when the header could not be
// decoded.
type PreviewSlot struct {
	File File
	Info *extractor.ImageInfo
	Err  error
}

// Renderer writes previews and results as text.
type Renderer struct {
	out     io.Writer
	resolve func(string) string

	title   *color.Color
	success *color.Color
	failure *color.Color
	muted   *color.Color
	link    *color.Color
}

// NewRenderer returns a Renderer writing to out. resolve turns download links
// into absolute URLs and may be nil.
func NewRenderer(out io.Writer, resolve func(string) string, noColor bool) *Renderer {
	if resolve == nil {
		resolve = func(s string) string { return s }
	}
	r := &Renderer{
		out:     out,
		resolve: resolve,
		title:   color.New(color.Bold),
		success: color.New(color.FgGreen, color.Bold),
		failure: color.New(color.FgRed, color.Bold),
		muted:   color.New(color.Faint),
		link:    color.New(color.FgCyan, color.Underline),
	}
	for _, c := range []*color.Color{r.title, r.success, r.failure, r.muted, r.link} {
		if noColor {
			c.DisableColor()
		} else {
			c.EnableColor()
		}
	}
	return r
}

// Preview renders the preview cards plus a notice for files not shown.
func (r *Renderer) Preview(slots []PreviewSlot, hidden int) {
	r.title.Fprintf(r.out, "Selected %d files\n", len(slots)+hidden)
	for i, s := range slots {
		detail := "preview unavailable"
		if s.Info != nil {
			detail = s.Info.Dimensions()
			if s.Info.Format != "" {
				detail += " " + s.Info.Format
			}
			if s.Info.Camera != "" {
				detail += ", " + s.Info.Camera
			}
		}
		fmt.Fprintf(r.out, "  [%d] %s  %s  ", i+1, s.File.Name, FormatFileSize(s.File.Size))
		r.muted.Fprintln(r.out, detail)
	}
	if hidden > 0 {
		r.muted.Fprintf(r.out, "  %d more files not shown\n", hidden)
	}
}

// Busy renders the submit label.
func (r *Renderer) Busy(label string) {
	r.muted.Fprintln(r.out, label)
}

// ResultCard renders a single-file result.
func (r *Renderer) ResultCard(resp *model.UploadResponse) {
	r.success.Fprintln(r.out, "✔ Compression succeeded")

	tw := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  Original name:\t%s\n", resp.OriginalName)
	fmt.Fprintf(tw, "  Original size:\t%s\n", FormatFileSize(resp.OriginalSize))
	fmt.Fprintf(tw, "  Compressed size:\t%s\n", FormatFileSize(resp.CompressedSize))
	fmt.Fprintf(tw, "  Reduction:\t%s\n", formatPercent(resp.ReductionPercent))
	fmt.Fprintf(tw, "  Original dimensions:\t%s\n", resp.OriginalDimensions)
	fmt.Fprintf(tw, "  New dimensions:\t%s\n", resp.NewDimensions)
	tw.Flush()

	fmt.Fprint(r.out, "  Download: ")
	r.link.Fprintln(r.out, r.resolve(resp.DownloadURL))
}

// BatchTable renders the batch summary, one row per result and a tip when
// several files can be downloaded.
func (r *Renderer) BatchTable(resp *model.BatchResponse) {
	r.success.Fprintf(r.out, "✔ %s\n", resp.Message)

	tw := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  FILE\tORIGINAL\tCOMPRESSED\tREDUCTION\tDOWNLOAD")
	for _, res := range resp.Results {
		if res.Failed() {
			// the error takes the place of the remaining columns
			fmt.Fprintf(tw, "  %s\t%s\n", TruncateText(res.OriginalName, truncateWidth), r.failure.Sprint(res.Error))
			continue
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n",
			TruncateText(res.OriginalName, truncateWidth),
			FormatFileSize(res.OriginalSize),
			FormatFileSize(res.CompressedSize),
			formatPercent(res.ReductionPercent),
			r.resolve(res.DownloadURL))
	}
	tw.Flush()

	if resp.Succeeded() > 1 {
		r.muted.Fprintln(r.out, "Tip: each row has its own download link")
	}
}

// ErrorBanner renders the single failure message of a submission.
func (r *Renderer) ErrorBanner(message string) {
	r.failure.Fprintf(r.out, "✖ %s\n", message)
}

// FormatFileSize formats a byte count in base 1024 with at most two decimals.
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	sizes := []string{"Bytes", "KB", "MB", "GB"}
	value := float64(bytes)
	i := 0
	for value >= 1024 && i < len(sizes)-1 {
		value /= 1024
		i++
	}
	value = math.Round(value*100) / 100
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizes[i]
}

// TruncateText shortens s to maxLength characters, the last three being "...".
func TruncateText(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return strings.Repeat(".", max(maxLength, 0))
	}
	return string(runes[:maxLength-3]) + "..."
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}
