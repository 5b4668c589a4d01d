// Package services holds the operations the API exposes. Each ledger
// mutation is audited and, when a broker is configured, announced.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNothingToPay       = errors.New("expense has no outstanding installment")
)

type Option func(*base)

// WithPublisher announces mutations on p. A nil publisher disables events.
func WithPublisher(p amqp.Publisher) Option {
	return func(b *base) { b.publisher = p }
}

func WithLogger(logger *log.Logger) Option {
	return func(b *base) { b.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// base carries what every service shares.
type base struct {
	repos     *repository.Repositories
	publisher amqp.Publisher
	logger    *log.Logger
	now       func() time.Time
}

func newBase(repos *repository.Repositories, component string, opts []Option) base {
	b := base{repos: repos, logger: log.New(log.DefaultConfig()), now: time.Now}
	for _, opt := range opts {
		opt(&b)
	}
	b.logger = b.logger.WithComponent(component)
	return b
}

// audit appends an entry with JSON snapshots of before and after; nil
// snapshots are stored empty. It runs after the mutation has committed, so
// a failure is logged and the mutation stands.
func (b *base) audit(ctx context.Context, userID int64, entity string, entityID int64, action core.AuditAction, before, after any, desc string) {
	if err := b.appendAudit(ctx, userID, entity, entityID, action, before, after, desc); err != nil {
		b.logger.ErrorContext(ctx, "Failed to append audit entry",
			log.NewFields().WithError(err).WithEntity(userID, entity, entityID).ToSlice()...)
	}
}

func (b *base) appendAudit(ctx context.Context, userID int64, entity string, entityID int64, action core.AuditAction, before, after any, desc string) error {
	oldValue, err := snapshot(before)
	if err != nil {
		return err
	}
	newValue, err := snapshot(after)
	if err != nil {
		return err
	}
	_, err = b.repos.Audits.Create(ctx, core.Audit{
		UserID:      userID,
		EntityType:  entity,
		EntityID:    entityID,
		Action:      action,
		OldValue:    oldValue,
		NewValue:    newValue,
		Description: desc,
	})
	return err
}

func snapshot(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode audit snapshot: %w", err)
	}
	return string(b), nil
}

// publish is best effort: the mutation already happened.
func (b *base) publish(ctx context.Context, t amqp.EventType, userID, entityID int64) {
	if b.publisher == nil {
		return
	}
	if err := b.publisher.Publish(ctx, amqp.NewLedgerEvent(t, userID, entityID)); err != nil {
		b.logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.NewFields().WithError(err).WithEntity(userID, string(t), entityID).ToSlice()...)
	}
}
