package http

import (
	"net/http"
	"strings"

	"ledger/internal/session"
)

type sessionResponse struct {
	Token         string  `json:"token"`
	UserID        int64   `json:"user_id"`
	Email         string  `json:"email"`
	MonthlyIncome float64 `json:"monthly_income"`
}

func newSessionResponse(s session.Session) sessionResponse {
	return sessionResponse{Token: s.Token, UserID: s.UserID, Email: s.Email, MonthlyIncome: s.MonthlyIncome}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !s.decodeAndValidate(w, r, &req, func() { req.Email = strings.TrimSpace(req.Email) }) {
		return
	}
	sess, err := s.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse(sess))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decodeAndValidate(w, r, &req, func() { req.Email = strings.TrimSpace(req.Email) }) {
		return
	}
	sess, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request, sess session.Session) {
	s.auth.Logout(sess.Token)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetIncome(w http.ResponseWriter, _ *http.Request, sess session.Session) {
	writeJSON(w, http.StatusOK, map[string]float64{"monthly_income": sess.MonthlyIncome})
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request, sess session.Session) {
	var req incomeRequest
	if !s.decodeAndValidate(w, r, &req, nil) {
		return
	}
	if err := s.auth.UpdateMonthlyIncome(r.Context(), sess, *req.MonthlyIncome); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"monthly_income": *req.MonthlyIncome})
}

// handleDeleteAccount requires ?confirm=true.
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request, sess session.Session) {
	if !queryBool(r, "confirm") {
		writeError(w, http.StatusBadRequest, "deleting the account requires confirm=true")
		return
	}
	if _, err := s.auth.DeleteAccount(r.Context(), sess); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
