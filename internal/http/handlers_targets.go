package http

import (
	"errors"
	"net/http"
	"time"

	"dompet/internal/core"
	"dompet/internal/editor"
)

type targetJSON struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	Amount    int64     `json:"amount"`
	Display   string    `json:"display"`
	Month     string    `json:"month"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toTargetJSON(t core.IncomeTarget) targetJSON {
	return targetJSON{
		ID:        t.ID,
		Category:  t.Category,
		Amount:    t.Amount.Minor,
		Display:   t.Amount.String(),
		Month:     string(t.Month),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

type progressJSON struct {
	Category        string  `json:"category"`
	Target          int64   `json:"target"`
	Actual          int64   `json:"actual"`
	TargetDisplay   string  `json:"target_display"`
	ActualDisplay   string  `json:"actual_display"`
	ProgressPercent float64 `json:"progress_percent"`
	Completed       bool    `json:"completed"`
}

type targetBody struct {
	Amount *amountInput `json:"amount"`
}

type draftJSON struct {
	Category string `json:"category"`
	Value    string `json:"value"`
	Pending  bool   `json:"pending"`
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	sess, _, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows := sess.store.ForMonth(month)
	out := make([]targetJSON, 0, len(rows))
	for _, t := range rows {
		out = append(out, toTargetJSON(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleDraftTarget records unsaved input without persisting it.
func (s *Server) handleDraftTarget(w http.ResponseWriter, r *http.Request) {
	category, err := categoryParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body targetBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.Amount == nil {
		writeError(w, r, errMissingAmount)
		return
	}
	sess, _, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	value := sess.editor.Change(category, string(*body.Amount))
	writeJSON(w, http.StatusOK, draftJSON{Category: category, Value: value, Pending: true})
}

// handlePutTarget saves the target for a category. An amount in the body is
// saved as given and discards the pending draft; without one the draft, or
// the stored value, is saved.
func (s *Server) handlePutTarget(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	category, err := categoryParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body targetBody
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, r, err)
			return
		}
	}
	sess, _, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var row core.IncomeTarget
	if body.Amount != nil {
		row, err = sess.editor.SaveAmount(r.Context(), category, month, string(*body.Amount))
	} else {
		row, err = sess.editor.Save(r.Context(), category, month)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTargetJSON(row))
}

func (s *Server) handleDeleteTarget(w http.ResponseWriter, r *http.Request) {
	s.deleteCategory(w, r)
}

// deleteCategory runs the confirmed delete flow. Unconfirmed requests get a
// 409 carrying the question to ask.
func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	category, err := categoryParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sess, _, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	confirmed := queryBool(r, "confirm")
	err = sess.editor.Delete(r.Context(), category, month, func(string) bool { return confirmed })
	if errors.Is(err, editor.ErrNotConfirmed) {
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Prompt: editor.DeletePrompt(category)})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	sess, u, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	from, to, err := month.Bounds()
	if err != nil {
		writeError(w, r, err)
		return
	}
	txs, err := s.backend.ListTransactions(r.Context(), u.ID, from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	progress := core.Reconcile(sess.store.ForMonth(month), core.FilterByType(txs, core.TypeIncome))
	out := make([]progressJSON, 0, len(progress))
	for _, p := range progress {
		out = append(out, progressJSON{
			Category:        p.Target.Category,
			Target:          p.Target.Amount.Minor,
			Actual:          p.Actual.Minor,
			TargetDisplay:   p.Target.Amount.String(),
			ActualDisplay:   p.Actual.String(),
			ProgressPercent: p.ProgressPercent,
			Completed:       p.Completed,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	sess, _, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.tracker.State())
}
