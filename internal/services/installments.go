package services

import (
	"time"

	"github.com/jinzhu/now"

	"ledger/internal/core"
)

// InstallmentPlan is the dashboard view of an active installment expense.
type InstallmentPlan struct {
	ExpenseID     int64     `json:"expense_id"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	MonthlyAmount float64   `json:"monthly_amount"`
	Paid          int       `json:"paid"`
	Total         int       `json:"total"`
	Remaining     int       `json:"remaining"`
	Progress      float64   `json:"progress"`
	NextDue       time.Time `json:"next_due"`
	Overdue       bool      `json:"overdue"`
}

// NewInstallmentPlan describes e as of at. Installment k (zero based) falls
// due k months after the first payment, on the same day of the month or the
// month's last day when that day does not exist.
func NewInstallmentPlan(e core.Expense, at time.Time) InstallmentPlan {
	p := InstallmentPlan{
		ExpenseID:     e.ID,
		Description:   e.Description,
		Category:      e.Category,
		MonthlyAmount: e.MonthlyAmount(),
		Paid:          e.PaidInstallments,
		Total:         e.Installments,
		Remaining:     e.RemainingInstallments(),
	}
	if e.Installments > 0 {
		p.Progress = float64(e.PaidInstallments) / float64(e.Installments) * 100
	}
	if start, ok := e.EffectiveDate(); ok && e.IsActiveInstallment() {
		p.NextDue = DueDate(start, e.PaidInstallments)
		p.Overdue = at.After(now.With(p.NextDue).EndOfDay())
	}
	return p
}

// DueDate is start moved forward by k calendar months, clamped to the end
// of the target month.
func DueDate(start time.Time, k int) time.Time {
	first := time.Date(start.Year(), start.Month()+time.Month(k), 1,
		start.Hour(), start.Minute(), start.Second(), start.Nanosecond(), start.Location())
	day := min(start.Day(), now.With(first).EndOfMonth().Day())
	return first.AddDate(0, 0, day-1)
}

// ActivePlans lists the plans of the active installment expenses, in the
// order given.
func ActivePlans(expenses []core.Expense, at time.Time) []InstallmentPlan {
	plans := []InstallmentPlan{}
	for _, e := range expenses {
		if e.IsActiveInstallment() {
			plans = append(plans, NewInstallmentPlan(e, at))
		}
	}
	return plans
}
