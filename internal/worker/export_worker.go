package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"dompet/internal/amqp"
	"dompet/internal/core"
	"dompet/internal/drive"
	"dompet/internal/export"
	"dompet/internal/targets"
)

// Uploader stores a rendered file and returns where it landed.
type Uploader interface {
	Upload(ctx context.Context, f drive.File, accessToken string) (drive.Result, error)
}

// Exporter renders monthly reports and uploads them to Google Drive.
// It serves both the HTTP inline path and the queue worker.
type Exporter struct {
	txs      targets.TransactionReader
	uploader Uploader
	tokens   drive.TokenProvider
	dir      string
}

// NewExporter returns an exporter. tokens may be nil when every request
// carries its own access token. When dir is set, each rendered file is also
// saved there.
func NewExporter(txs targets.TransactionReader, uploader Uploader, tokens drive.TokenProvider, dir string) *Exporter {
	return &Exporter{txs: txs, uploader: uploader, tokens: tokens, dir: dir}
}

// Request describes one export.
type Request struct {
	UserID      string
	Month       core.MonthKey
	Period      string
	Formats     []export.Format
	AccessToken string
}

// Uploaded is the outcome for one format.
type Uploaded struct {
	Format   export.Format `json:"format"`
	Filename string        `json:"filename"`
	drive.Result
}

// Report loads the month's transactions into a report with a summary.
func (e *Exporter) Report(ctx context.Context, userID string, month core.MonthKey, period string) (export.Report, error) {
	from, to, err := month.Bounds()
	if err != nil {
		return export.Report{}, err
	}
	txs, err := e.txs.ListTransactions(ctx, userID, from, to)
	if err != nil {
		return export.Report{}, &targets.GatewayError{Op: "list transactions", Err: err}
	}
	if period == "" {
		period = PeriodLabel(month)
	}
	summary := core.Summarize(txs)
	return export.Report{Transactions: txs, Period: period, Summary: &summary}, nil
}

// Export renders every requested format concurrently, then uploads them.
// Uploads run independently: on failure the formats that did land are
// returned alongside the error.
func (e *Exporter) Export(ctx context.Context, req Request) ([]Uploaded, error) {
	report, err := e.Report(ctx, req.UserID, req.Month, req.Period)
	if err != nil {
		return nil, err
	}
	token, err := e.accessToken(ctx, req.AccessToken)
	if err != nil {
		return nil, err
	}

	files := make([]drive.File, len(req.Formats))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range req.Formats {
		g.Go(func() error {
			content, err := export.Render(report, f)
			if err != nil {
				return fmt.Errorf("render %s: %w", f, err)
			}
			files[i] = drive.File{
				Name:     export.DefaultFilename(report.Period, string(f)),
				Content:  content,
				MimeType: f.MimeType(),
			}
			return e.saveLocal(gctx, report, req.Month, f)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]*Uploaded, len(files))
	var ug errgroup.Group
	for i, f := range files {
		ug.Go(func() error {
			res, err := e.uploader.Upload(ctx, f, token)
			if err != nil {
				return fmt.Errorf("upload %s: %w", f.Name, err)
			}
			results[i] = &Uploaded{Format: req.Formats[i], Filename: f.Name, Result: res}
			return nil
		})
	}
	uerr := ug.Wait()
	out := make([]Uploaded, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, uerr
}

func (e *Exporter) accessToken(ctx context.Context, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if e.tokens == nil {
		return "", drive.ErrTokenProviderUnavailable
	}
	return e.tokens.AccessToken(ctx)
}

// saveLocal names the copy after the month, never the caller's period label,
// so the file always lands inside dir.
func (e *Exporter) saveLocal(ctx context.Context, r export.Report, month core.MonthKey, f export.Format) error {
	if e.dir == "" {
		return nil
	}
	name, err := localPath(e.dir, export.DefaultFilename(PeriodLabel(month), string(f)))
	if err != nil {
		slog.WarnContext(ctx, "Refusing to save local report copy", "component", "export", "error", err)
		return nil
	}
	if f == export.FormatXLSX {
		_, err = export.SaveXLSX(r, name)
	} else {
		_, err = export.SavePDF(r, name)
	}
	if err != nil {
		slog.WarnContext(ctx, "Failed to save local report copy", "component", "export", "path", name, "error", err)
	}
	return nil
}

func localPath(dir, name string) (string, error) {
	root := filepath.Clean(dir)
	full := filepath.Join(root, filepath.Base(name))
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("report name %q escapes %s", name, root)
	}
	return full, nil
}

// HandleExportJob processes one queued export job. Failures that retrying
// cannot fix are marked permanent so the message is dropped. A job where
// some formats already uploaded is never retried, since a retry would
// upload those formats again.
func (e *Exporter) HandleExportJob(ctx context.Context, msg *amqp.ExportJobMessage) error {
	month, err := core.ParseMonthKey(msg.Month)
	if err != nil {
		return fmt.Errorf("%w: %v", amqp.ErrPermanent, err)
	}
	formats, err := ParseFormats(msg.Format)
	if err != nil {
		return fmt.Errorf("%w: %v", amqp.ErrPermanent, err)
	}

	start := time.Now()
	results, err := e.Export(ctx, Request{
		UserID:      msg.UserID,
		Month:       month,
		Period:      msg.Period,
		Formats:     formats,
		AccessToken: msg.AccessToken,
	})
	for _, r := range results {
		slog.InfoContext(ctx, "Export job uploaded",
			"component", "worker",
			"job_id", msg.JobID,
			"format", string(r.Format),
			"url", r.URL,
			"duration_ms", time.Since(start).Milliseconds())
	}
	if err != nil {
		if len(results) > 0 {
			slog.WarnContext(ctx, "Export job partially uploaded",
				"component", "worker",
				"job_id", msg.JobID,
				"uploaded", len(results),
				"requested", len(formats),
				"error", err)
			return fmt.Errorf("%w: partial upload: %v", amqp.ErrPermanent, err)
		}
		if isPermanent(err) {
			return fmt.Errorf("%w: %v", amqp.ErrPermanent, err)
		}
		return err
	}
	return nil
}

// ParseFormats accepts "pdf", "xlsx", or "all"/"" for both.
func ParseFormats(s string) ([]export.Format, error) {
	if s == "" || s == "all" {
		return []export.Format{export.FormatPDF, export.FormatXLSX}, nil
	}
	f, ok := export.ParseFormat(s)
	if !ok {
		return nil, fmt.Errorf("unsupported format %q", s)
	}
	return []export.Format{f}, nil
}

func isPermanent(err error) bool {
	if errors.Is(err, drive.ErrTokenProviderUnavailable) || errors.Is(err, export.ErrEmptyWorkbook) {
		return true
	}
	var uerr *drive.UploadError
	if errors.As(err, &uerr) {
		return uerr.StatusCode >= 400 && uerr.StatusCode < 500 &&
			uerr.StatusCode != http.StatusTooManyRequests && uerr.StatusCode != http.StatusRequestTimeout
	}
	// A rejected refresh token (invalid_grant and friends) stays rejected.
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil {
		code := rerr.Response.StatusCode
		return code >= 400 && code < 500 && code != http.StatusTooManyRequests
	}
	return false
}

var monthNamesID = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// PeriodLabel renders a month key as "Januari 2025".
func PeriodLabel(m core.MonthKey) string {
	start, _, err := m.Bounds()
	if err != nil {
		return string(m)
	}
	return fmt.Sprintf("%s %d", monthNamesID[start.Month()-1], start.Year())
}
