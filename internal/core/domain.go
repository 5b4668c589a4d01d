package core

import (
	"time"
)

// Audit actions.
const (
	ActionCreate AuditAction = "create"
	ActionUpdate AuditAction = "update"
	ActionDelete AuditAction = "delete"
)

// Audited entity types.
const (
	EntityUser     = "user"
	EntityCategory = "category"
	EntityExpense  = "expense"
)

type (
	AuditAction string

	User struct {
		ID            int64     `json:"id"`
		Email         string    `json:"email"`
		PasswordHash  string    `json:"-"`
		MonthlyIncome float64   `json:"monthly_income"`
		CreatedAt     time.Time `json:"created_at"`
	}

	Category struct {
		ID        int64     `json:"id"`
		Name      string    `json:"name"`
		Icon      string    `json:"icon"`
		Color     string    `json:"color"`
		IsActive  bool      `json:"is_active"`
		CreatedAt time.Time `json:"created_at"`
	}

	// CategoryDraft is the input for a new category. A nil IsActive means active.
	CategoryDraft struct {
		Name     string `json:"name"`
		Icon     string `json:"icon"`
		Color    string `json:"color"`
		IsActive *bool  `json:"is_active,omitempty"`
	}

	// CategoryPatch carries the fields to change; nil fields are left untouched.
	CategoryPatch struct {
		Name     *string `json:"name,omitempty"`
		Icon     *string `json:"icon,omitempty"`
		Color    *string `json:"color,omitempty"`
		IsActive *bool   `json:"is_active,omitempty"`
	}

	// Expense stores the total committed amount. Category is a label, not a
	// reference: renaming or deleting a Category never touches expenses.
	Expense struct {
		ID               int64     `json:"id"`
		UserID           int64     `json:"user_id"`
		Description      string    `json:"description"`
		Category         string    `json:"category"`
		Amount           float64   `json:"amount"`
		HasInstallments  bool      `json:"has_installments"`
		Installments     int       `json:"installments"`
		PaidInstallments int       `json:"paid_installments"`
		FirstPaymentDate time.Time `json:"first_payment_date"` // zero when absent or unparseable
		CreatedAt        time.Time `json:"created_at"`
	}

	Audit struct {
		ID          int64       `json:"id"`
		UserID      int64       `json:"user_id"`
		EntityType  string      `json:"entity_type"`
		EntityID    int64       `json:"entity_id"`
		Action      AuditAction `json:"action"`
		OldValue    string      `json:"old_value"`
		NewValue    string      `json:"new_value"`
		Description string      `json:"description"`
		CreatedAt   time.Time   `json:"created_at"`
	}
)

// IsValid reports whether a is one of the known audit actions.
func (a AuditAction) IsValid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	default:
		return false
	}
}

// IsEmpty returns true when the patch changes nothing.
func (p CategoryPatch) IsEmpty() bool {
	return p.Name == nil && p.Icon == nil && p.Color == nil && p.IsActive == nil
}

// MonthlyAmount is the normalized contribution of the expense to any
// aggregate: the per-installment share for installment plans, the full
// amount otherwise.
func (e Expense) MonthlyAmount() float64 {
	if e.HasInstallments && e.Installments > 1 {
		return e.Amount / float64(e.Installments)
	}
	return e.Amount
}

// EffectiveDate returns FirstPaymentDate when set, CreatedAt otherwise.
// ok is false when neither is usable.
func (e Expense) EffectiveDate() (t time.Time, ok bool) {
	if !e.FirstPaymentDate.IsZero() {
		return e.FirstPaymentDate, true
	}
	if !e.CreatedAt.IsZero() {
		return e.CreatedAt, true
	}
	return time.Time{}, false
}

// IsActiveInstallment reports whether the expense still has unpaid installments.
func (e Expense) IsActiveInstallment() bool {
	return e.HasInstallments && e.PaidInstallments < e.Installments
}

// RemainingInstallments returns how many installments are still unpaid.
func (e Expense) RemainingInstallments() int {
	if !e.HasInstallments || e.PaidInstallments >= e.Installments {
		return 0
	}
	return e.Installments - e.PaidInstallments
}
