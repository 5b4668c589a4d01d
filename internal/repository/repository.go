// Package repository maps ledger entities onto gateway tables. Repositories
// never branch on the backend in use.
package repository

import (
	"log/slog"
	"time"

	"ledger/internal/gateway"
)

type options struct {
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a repository.
type Option func(*options)

// WithClock replaces time.Now as the source of creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Repositories bundles the four repositories over one gateway.
type Repositories struct {
	Users      *UserRepository
	Categories *CategoryRepository
	Expenses   *ExpenseRepository
	Audits     *AuditRepository
}

func New(gw gateway.Gateway, opts ...Option) *Repositories {
	return &Repositories{
		Users:      NewUserRepository(gw, opts...),
		Categories: NewCategoryRepository(gw, opts...),
		Expenses:   NewExpenseRepository(gw, opts...),
		Audits:     NewAuditRepository(gw, opts...),
	}
}

// newestFirst is the listing order: creation time, then id for rows
// created within the same instant.
func newestFirst(q gateway.Query) gateway.Query {
	return q.Desc("created_at").Desc(gateway.IDColumn)
}
