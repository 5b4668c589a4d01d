package http

import (
	"net/http"

	"ledger/internal/core"
	"ledger/internal/session"
)

// handleListCategories lists active categories unless ?all=true.
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request, _ session.Session) {
	list, err := s.ledger.Categories(r.Context(), !queryBool(r, "all"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request, sess session.Session) {
	var req categoryRequest
	if !s.decodeAndValidate(w, r, &req, func() { req.Name = sanitizeInput(req.Name) }) {
		return
	}
	c, err := s.ledger.CreateCategory(r.Context(), sess, core.CategoryDraft{
		Name: req.Name, Icon: req.Icon, Color: req.Color, IsActive: req.IsActive,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request, sess session.Session) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req categoryPatchRequest
	prepare := func() {
		if req.Name != nil {
			name := sanitizeInput(*req.Name)
			req.Name = &name
		}
	}
	if !s.decodeAndValidate(w, r, &req, prepare) {
		return
	}
	c, err := s.ledger.UpdateCategory(r.Context(), sess, id, core.CategoryPatch{
		Name: req.Name, Icon: req.Icon, Color: req.Color, IsActive: req.IsActive,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleDeleteCategory deactivates, or removes with ?hard=true.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request, sess session.Session) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.ledger.DeleteCategory(r.Context(), sess, id, queryBool(r, "hard")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
