package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"image-compress-go/internal/model"
)

// RequestError is a transport failure or a response body that is not the
// expected JSON.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string {
	return "request failed: " + e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// API talks to the compression server.
type API struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// NewAPI returns an API for the server at baseURL. A nil httpClient uses
// http.DefaultClient; no timeout is added.
func NewAPI(baseURL string, httpClient *http.Client) (*API, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q: scheme and host required", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &API{baseURL: u, httpClient: httpClient}, nil
}

// BaseURL returns the server address.
func (a *API) BaseURL() string {
	return a.baseURL.String()
}

// Resolve turns a server-relative link into an absolute URL.
func (a *API) Resolve(link string) string {
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	return a.baseURL.ResolveReference(ref).String()
}

// UploadSingle posts one file to the single-file endpoint.
func (a *API) UploadSingle(ctx context.Context, file File, opts Options) (*model.UploadResponse, error) {
	var resp model.UploadResponse
	if err := a.postFiles(ctx, model.PathUpload, model.FieldFile, []File{file}, opts, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UploadBatch posts all files in one request to the batch endpoint.
func (a *API) UploadBatch(ctx context.Context, files []File, opts Options) (*model.BatchResponse, error) {
	var resp model.BatchResponse
	if err := a.postFiles(ctx, model.PathBatch, model.FieldFiles, files, opts, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cleanup asks the server to remove stale files.
func (a *API) Cleanup(ctx context.Context) (*model.CleanupResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Resolve(model.PathCleanup), nil)
	if err != nil {
		return nil, &RequestError{Err: err}
	}
	var resp model.CleanupResponse
	if err := a.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Download fetches a download link into dir and returns the written path.
func (a *API) Download(ctx context.Context, link, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.Resolve(link), nil)
	if err != nil {
		return "", &RequestError{Err: err}
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", &RequestError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: unexpected status %s", link, resp.Status)
	}

	name := downloadName(resp.Header.Get("Content-Disposition"), req.URL.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	target := filepath.Join(dir, name)
	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", target, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", target, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", target, err)
	}
	return target, nil
}

// postFiles sends files under field together with the option fields and
// decodes the JSON body into out whatever the status code.
func (a *API) postFiles(ctx context.Context, endpoint, field string, files []File, opts Options, out interface{}) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	for _, f := range files {
		if err := writeFilePart(mw, field, f); err != nil {
			return &RequestError{Err: err}
		}
	}
	for _, kv := range opts.fields() {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return &RequestError{Err: err}
		}
	}
	if err := mw.Close(); err != nil {
		return &RequestError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Resolve(endpoint), &body)
	if err != nil {
		return &RequestError{Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return a.do(req, out)
}

func (a *API) do(req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return &RequestError{Err: err}
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RequestError{Err: fmt.Errorf("%s: invalid response body: %w", resp.Status, err)}
	}
	return nil
}

func writeFilePart(mw *multipart.Writer, field string, f File) error {
	src, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.Path, err)
	}
	defer src.Close()

	header := make(textproto.MIMEHeader)
	header["Content-Disposition"] = []string{
		fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(field), escapeQuotes(f.Name)),
	}
	contentType := f.MIMEType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header["Content-Type"] = []string{contentType}

	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("failed to read %s: %w", f.Path, err)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// downloadName prefers the attachment filename and falls back to the last
// path element of the link.
func downloadName(disposition, urlPath string) string {
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		if name := filepath.Base(params["filename"]); name != "." && name != "/" && params["filename"] != "" {
			return name
		}
	}
	if name, err := url.PathUnescape(path.Base(urlPath)); err == nil && name != "" && name != "/" && name != "." {
		return filepath.Base(name)
	}
	return "download"
}
