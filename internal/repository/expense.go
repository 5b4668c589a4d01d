package repository

import (
	"context"
	"fmt"

	"ledger/internal/core"
	"ledger/internal/gateway"
)

type ExpenseRepository struct {
	gw   gateway.Gateway
	opts options
}

func NewExpenseRepository(gw gateway.Gateway, opts ...Option) *ExpenseRepository {
	return &ExpenseRepository{gw: gw, opts: buildOptions(opts)}
}

// Create stores e as given. Installments default to 1 and the first payment
// to the creation time; amounts and counts are not validated here.
func (r *ExpenseRepository) Create(ctx context.Context, e core.Expense) (int64, error) {
	now := r.opts.now()
	installments := e.Installments
	if installments == 0 {
		installments = 1
	}
	first := e.FirstPaymentDate
	if first.IsZero() {
		first = now
	}
	id, err := r.gw.Insert(ctx, gateway.TableExpenses, gateway.Record{
		"user_id":            e.UserID,
		"description":        e.Description,
		"category":           e.Category,
		"amount":             e.Amount,
		"has_installments":   e.HasInstallments,
		"installments":       installments,
		"paid_installments":  e.PaidInstallments,
		"first_payment_date": first,
		"created_at":         now,
	})
	if err != nil {
		return 0, fmt.Errorf("create expense: %w", err)
	}
	r.opts.logger.InfoContext(ctx, "Expense created", "expense_id", id, "user_id", e.UserID)
	return id, nil
}

func (r *ExpenseRepository) GetByID(ctx context.Context, id int64) (*core.Expense, error) {
	rec, err := r.gw.QueryOne(ctx, gateway.TableExpenses, gateway.ByID(id))
	if err != nil {
		return nil, fmt.Errorf("get expense %d: %w", id, err)
	}
	if rec == nil {
		return nil, nil
	}
	e := expenseFromRecord(rec)
	return &e, nil
}

// GetByUser lists the user's expenses, most recently created first.
func (r *ExpenseRepository) GetByUser(ctx context.Context, userID int64) ([]core.Expense, error) {
	return r.list(ctx, gateway.Where(gateway.Eq("user_id", userID)))
}

// GetActiveInstallments lists the user's installment plans with unpaid
// installments left, most recently created first.
func (r *ExpenseRepository) GetActiveInstallments(ctx context.Context, userID int64) ([]core.Expense, error) {
	return r.list(ctx, gateway.Where(
		gateway.Eq("user_id", userID),
		gateway.Eq("has_installments", true),
		gateway.LtColumn("paid_installments", "installments"),
	))
}

func (r *ExpenseRepository) list(ctx context.Context, q gateway.Query) ([]core.Expense, error) {
	rows, err := r.gw.QueryAll(ctx, gateway.TableExpenses, newestFirst(q))
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	out := make([]core.Expense, 0, len(rows))
	for _, rec := range rows {
		out = append(out, expenseFromRecord(rec))
	}
	return out, nil
}

func (r *ExpenseRepository) UpdatePaidInstallments(ctx context.Context, id int64, paid int) error {
	if err := r.gw.Update(ctx, gateway.TableExpenses, id, gateway.Record{"paid_installments": paid}); err != nil {
		return fmt.Errorf("update installments of expense %d: %w", id, err)
	}
	return nil
}

func (r *ExpenseRepository) Delete(ctx context.Context, id int64) error {
	if err := r.gw.Delete(ctx, gateway.TableExpenses, id); err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	return nil
}

// DeleteAllByUser removes every expense of the user in one atomic step and
// returns how many went.
func (r *ExpenseRepository) DeleteAllByUser(ctx context.Context, userID int64) (int64, error) {
	n, err := r.gw.DeleteWhere(ctx, gateway.TableExpenses, []gateway.Cond{gateway.Eq("user_id", userID)})
	if err != nil {
		return 0, fmt.Errorf("delete expenses of user %d: %w", userID, err)
	}
	r.opts.logger.InfoContext(ctx, "Expenses wiped", "user_id", userID, "count", n)
	return n, nil
}

func expenseFromRecord(rec gateway.Record) core.Expense {
	return core.Expense{
		ID:               rec.ID(),
		UserID:           rec.Int("user_id"),
		Description:      rec.String("description"),
		Category:         rec.String("category"),
		Amount:           rec.Float("amount"),
		HasInstallments:  rec.Bool("has_installments"),
		Installments:     int(rec.Int("installments")),
		PaidInstallments: int(rec.Int("paid_installments")),
		FirstPaymentDate: rec.Time("first_payment_date"),
		CreatedAt:        rec.Time("created_at"),
	}
}
