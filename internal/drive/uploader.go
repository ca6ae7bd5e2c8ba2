// Package drive uploads rendered reports to Google Drive with a single
// multipart request.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
)

const (
	DefaultEndpoint = "https://www.googleapis.com/upload/drive/v3/files?uploadType=multipart"
	DefaultMimeType = "application/pdf"
	Boundary        = "foo_bar_baz"

	viewURLFormat = "https://drive.google.com/file/d/%s/view"
)

// File is an upload request. Content is base64 encoded.
type File struct {
	Name     string
	Content  string
	MimeType string
}

// Result locates the created file.
type Result struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// UploadError reports a failed upload. Err is a *googleapi.Error when the
// API answered with a non-2xx status.
type UploadError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *UploadError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("Google Drive upload failed: %s", e.Message)
	}
	return "Google Drive API Error: " + e.Message
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// Uploader posts files to the Drive multipart upload endpoint.
type Uploader struct {
	Endpoint string
	Client   *http.Client
	Logger   *slog.Logger
}

func NewUploader() *Uploader {
	return &Uploader{
		Endpoint: DefaultEndpoint,
		Client:   &http.Client{Timeout: 60 * time.Second},
		Logger:   slog.Default(),
	}
}

// MultipartBody builds the multipart/related request body for f.
func MultipartBody(f File) ([]byte, error) {
	mime := f.MimeType
	if mime == "" {
		mime = DefaultMimeType
	}
	meta, err := json.Marshal(struct {
		Name     string `json:"name"`
		MimeType string `json:"mimeType"`
	}{f.Name, mime})
	if err != nil {
		return nil, err
	}

	delimiter := "\r\n--" + Boundary + "\r\n"
	closeDelimiter := "\r\n--" + Boundary + "--"

	var b bytes.Buffer
	b.WriteString(delimiter)
	b.WriteString("Content-Type: application/json; charset=UTF-8\r\n\r\n")
	b.Write(meta)
	b.WriteString(delimiter)
	b.WriteString("Content-Type: " + mime + "\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
	b.WriteString(f.Content)
	b.WriteString(closeDelimiter)
	return b.Bytes(), nil
}

// Upload creates f in the Drive of the token owner. There is no retry and no
// resumable upload.
func (u *Uploader) Upload(ctx context.Context, f File, accessToken string) (Result, error) {
	body, err := MultipartBody(f)
	if err != nil {
		return Result{}, &UploadError{Message: err.Error(), Err: err}
	}

	endpoint := u.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, &UploadError{Message: err.Error(), Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "multipart/related; boundary="+Boundary)

	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger := u.Logger
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()
	res, err := client.Do(req)
	if err != nil {
		logger.ErrorContext(ctx, "Error saving to Google Drive",
			"component", "drive",
			"file", f.Name,
			"error", err)
		return Result{}, &UploadError{Message: err.Error(), Err: err}
	}
	defer res.Body.Close()

	if err := googleapi.CheckResponse(res); err != nil {
		uerr := &UploadError{StatusCode: res.StatusCode, Message: http.StatusText(res.StatusCode), Err: err}
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Message != "" {
			uerr.Message = gerr.Message
		}
		logger.ErrorContext(ctx, "Error saving to Google Drive",
			"component", "drive",
			"file", f.Name,
			"status", res.StatusCode,
			"error", uerr.Message)
		return Result{}, uerr
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&created); err != nil {
		return Result{}, &UploadError{StatusCode: res.StatusCode, Message: "decode response: " + err.Error(), Err: err}
	}

	logger.InfoContext(ctx, "Report uploaded to Google Drive",
		"component", "drive",
		"file", f.Name,
		"id", created.ID,
		"duration_ms", time.Since(start).Milliseconds())
	return Result{ID: created.ID, URL: ViewURL(created.ID)}, nil
}

// ViewURL is the browser link of a Drive file.
func ViewURL(id string) string {
	return fmt.Sprintf(viewURLFormat, id)
}
