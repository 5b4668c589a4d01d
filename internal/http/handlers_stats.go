package http

import (
	"net/http"

	"ledger/internal/session"
	"ledger/internal/stats"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, sess session.Session) {
	p, err := stats.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sum, err := s.ledger.Stats(r.Context(), sess, p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, sess session.Session) {
	d, err := s.ledger.Dashboard(r.Context(), sess)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
