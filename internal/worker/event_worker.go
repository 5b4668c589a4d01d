// Package worker reacts to ledger events published by the API.
package worker

import (
	"context"
	"fmt"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/log"
	"ledger/internal/repository"
	"ledger/internal/services"
	"ledger/internal/stats"
)

// Consumer is the part of the AMQP client the worker needs.
type Consumer interface {
	ConsumeLedgerEvents(ctx context.Context, handler func(context.Context, *amqp.LedgerEvent) error) error
}

// EventWorker recomputes the monthly overview of the user an event is
// about and logs it.
type EventWorker struct {
	repos  *repository.Repositories
	logger *log.Logger
	now    func() time.Time
}

func NewEventWorker(repos *repository.Repositories, logger *log.Logger) *EventWorker {
	return &EventWorker{
		repos:  repos,
		logger: logger.WithComponent(log.ComponentWorker),
		now:    time.Now,
	}
}

// Run consumes until ctx is done.
func (w *EventWorker) Run(ctx context.Context, c Consumer) error {
	return c.ConsumeLedgerEvents(ctx, w.Handle)
}

// Handle processes one event. Events about users that no longer exist are
// acknowledged and skipped.
func (w *EventWorker) Handle(ctx context.Context, ev *amqp.LedgerEvent) error {
	u, err := w.repos.Users.GetByID(ctx, ev.UserID)
	if err != nil {
		return fmt.Errorf("load user %d: %w", ev.UserID, err)
	}
	if u == nil {
		w.logger.WarnContext(ctx, "Event for unknown user", log.FieldUserID, ev.UserID, "type", ev.Type)
		return nil
	}
	expenses, err := w.repos.Expenses.GetByUser(ctx, ev.UserID)
	if err != nil {
		return fmt.Errorf("load expenses of user %d: %w", ev.UserID, err)
	}

	now := w.now()
	d := services.BuildDashboard(u.MonthlyIncome, expenses, now)
	summary := stats.Compute(expenses, stats.PeriodMonth, now)

	attrs := []any{
		log.FieldUserID, ev.UserID,
		"type", ev.Type,
		"month_total", summary.Total,
		"average_per_day", summary.AveragePerDay,
		"balance", d.Balance,
		"active_installments", d.ActiveInstallments,
	}
	if summary.TopCategory != nil {
		attrs = append(attrs, "top_category", summary.TopCategory.Name)
	}
	w.logger.InfoContext(ctx, "Monthly summary refreshed", attrs...)
	return nil
}
