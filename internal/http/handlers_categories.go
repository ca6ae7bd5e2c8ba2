package http

import (
	"net/http"

	"dompet/internal/core"
)

type categoryJSON struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	Pending bool   `json:"pending"`
	Saving  bool   `json:"saving"`
	Target  *int64 `json:"target"`
}

type addCategoryBody struct {
	Name string `json:"name"`
}

// handleListCategories returns the editor rows for a month: every income
// category with its display value and edit state.
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
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
	names, err := sess.editor.Categories(r.Context(), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]categoryJSON, 0, len(names))
	for _, name := range names {
		row := categoryJSON{
			Name:    name,
			Value:   sess.editor.Value(name, month),
			Pending: sess.editor.Pending(name),
			Saving:  sess.editor.Saving(name),
		}
		if t, ok := sess.store.Find(name, month); ok {
			amount := t.Amount.Minor
			row.Target = &amount
		}
		out = append(out, row)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	var body addCategoryBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	sess, _, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := sess.editor.AddCategory(r.Context(), body.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Parent string `json:"parent"`
		Type   string `json:"type"`
	}{c.ID, c.Name, c.Parent, string(core.TypeIncome)})
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	s.deleteCategory(w, r)
}
