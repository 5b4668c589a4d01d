package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ledger/internal/core"
)

const maxBodyBytes = 1 << 20

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

type incomeRequest struct {
	MonthlyIncome *float64 `json:"monthly_income" validate:"required,gte=0"`
}

type expenseRequest struct {
	Description      string     `json:"description" validate:"required,max=200"`
	Category         string     `json:"category" validate:"required,max=50"`
	Amount           float64    `json:"amount" validate:"gt=0"`
	HasInstallments  bool       `json:"has_installments"`
	Installments     int        `json:"installments" validate:"min=1,max=360"`
	PaidInstallments int        `json:"paid_installments" validate:"min=0,ltefield=Installments"`
	FirstPaymentDate *time.Time `json:"first_payment_date"`
}

// normalize applies the defaults a client may leave out.
func (req *expenseRequest) normalize() {
	req.Description = sanitizeInput(req.Description)
	req.Category = sanitizeInput(req.Category)
	if req.Installments == 0 {
		req.Installments = 1
	}
	if !req.HasInstallments {
		req.Installments, req.PaidInstallments = 1, 0
	}
}

func (req expenseRequest) toExpense() core.Expense {
	e := core.Expense{
		Description:      req.Description,
		Category:         req.Category,
		Amount:           req.Amount,
		HasInstallments:  req.HasInstallments,
		Installments:     req.Installments,
		PaidInstallments: req.PaidInstallments,
	}
	if req.FirstPaymentDate != nil {
		e.FirstPaymentDate = *req.FirstPaymentDate
	}
	return e
}

type categoryRequest struct {
	Name     string `json:"name" validate:"required,max=50"`
	Icon     string `json:"icon" validate:"max=50"`
	Color    string `json:"color" validate:"omitempty,hexcolor"`
	IsActive *bool  `json:"is_active"`
}

type categoryPatchRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=50"`
	Icon     *string `json:"icon" validate:"omitempty,max=50"`
	Color    *string `json:"color" validate:"omitempty,hexcolor"`
	IsActive *bool   `json:"is_active"`
}

// decodeJSON reads a single JSON object, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// decodeAndValidate decodes, lets prepare adjust defaults, then validates.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any, prepare func()) bool {
	if err := decodeJSON(r, dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	if prepare != nil {
		prepare()
	}
	if err := s.validate.Struct(dst); err != nil {
		writeValidationError(w, err)
		return false
	}
	return true
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

func queryBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}

func queryInt(r *http.Request, key string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(key))
	return v
}

// sanitizeInput trims and drops control characters other than whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
