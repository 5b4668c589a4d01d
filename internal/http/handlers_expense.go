package http

import (
	"net/http"

	"ledger/internal/session"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request, sess session.Session) {
	list, err := s.ledger.Expenses(r.Context(), sess)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleActiveInstallments(w http.ResponseWriter, r *http.Request, sess session.Session) {
	list, err := s.ledger.ActiveInstallments(r.Context(), sess)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request, sess session.Session) {
	var req expenseRequest
	if !s.decodeAndValidate(w, r, &req, req.normalize) {
		return
	}
	e, err := s.ledger.CreateExpense(r.Context(), sess, req.toExpense())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handlePayInstallment(w http.ResponseWriter, r *http.Request, sess session.Session) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	e, err := s.ledger.PayInstallment(r.Context(), sess, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request, sess session.Session) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.ledger.DeleteExpense(r.Context(), sess, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleWipeExpenses requires ?confirm=true.
func (s *Server) handleWipeExpenses(w http.ResponseWriter, r *http.Request, sess session.Session) {
	if !queryBool(r, "confirm") {
		writeError(w, http.StatusBadRequest, "deleting every expense requires confirm=true")
		return
	}
	n, err := s.ledger.WipeExpenses(r.Context(), sess)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (s *Server) handleListAudits(w http.ResponseWriter, r *http.Request, sess session.Session) {
	list, err := s.ledger.Audits(r.Context(), sess, queryInt(r, "limit"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
