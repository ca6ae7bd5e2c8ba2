package http

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"dompet/internal/amqp"
	"dompet/internal/core"
	"dompet/internal/export"
	applog "dompet/internal/log"
	"dompet/internal/worker"
)

var (
	errReportsDisabled    = errors.New("report export is not configured")
	errMissingAccessToken = fmt.Errorf("%w: access_token is required", errBadRequest)
)

type driveExportBody struct {
	Format      string `json:"format"`
	Period      string `json:"period"`
	AccessToken string `json:"access_token"`
}

type exportJobJSON struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// handleDownloadReport renders "<month>.pdf" or "<month>.xlsx" for the
// signed-in user.
func (s *Server) handleDownloadReport(w http.ResponseWriter, r *http.Request) {
	if s.reporter == nil {
		writeError(w, r, errReportsDisabled)
		return
	}
	file := r.PathValue("file")
	ext := path.Ext(file)
	format, ok := export.ParseFormat(strings.TrimPrefix(ext, "."))
	if !ok {
		writeError(w, r, fmt.Errorf("%w: unsupported report format %q", errBadRequest, ext))
		return
	}
	month, err := core.ParseMonthKey(strings.TrimSuffix(file, ext))
	if err != nil {
		writeError(w, r, err)
		return
	}
	u, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := s.reporter.Report(r.Context(), u.ID, month, r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body []byte
	switch format {
	case export.FormatXLSX:
		body, err = export.XLSX(report)
	default:
		body, err = export.PDF(report)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	name := export.DefaultFilename(report.Period, string(format))
	w.Header().Set("Content-Type", format.MimeType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// handleDriveExport uploads the month's report to Google Drive, through the
// export queue when one is configured and inline otherwise. The upload always
// uses the caller's own Google access token.
func (s *Server) handleDriveExport(w http.ResponseWriter, r *http.Request) {
	if s.reporter == nil && s.queue == nil {
		writeError(w, r, errReportsDisabled)
		return
	}
	month, err := monthParam(r, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body driveExportBody
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if strings.TrimSpace(body.AccessToken) == "" {
		writeError(w, r, errMissingAccessToken)
		return
	}
	formats, err := worker.ParseFormats(strings.ToLower(body.Format))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	u, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logger := applog.FromContext(r.Context())

	if s.queue != nil {
		job := amqp.NewExportJobMessage(u.ID, string(month), body.Period, strings.ToLower(body.Format), body.AccessToken)
		if err := s.queue.Enqueue(r.Context(), job); err != nil {
			writeError(w, r, err)
			return
		}
		logger.InfoContext(r.Context(), "Export job queued",
			applog.FieldJobID, job.JobID,
			applog.FieldUserID, u.ID,
			applog.FieldMonth, string(month))
		writeJSON(w, http.StatusAccepted, exportJobJSON{JobID: job.JobID, Status: "queued"})
		return
	}

	uploads, err := s.reporter.Export(r.Context(), worker.Request{
		UserID:      u.ID,
		Month:       month,
		Period:      body.Period,
		Formats:     formats,
		AccessToken: body.AccessToken,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	structured := applog.NewStructuredLogger(logger)
	for _, up := range uploads {
		structured.LogExportUploaded(r.Context(), u.ID, string(month), string(up.Format), up.Filename, up.URL)
	}
	writeJSON(w, http.StatusOK, uploads)
}
