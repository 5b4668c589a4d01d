package gateway

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Lazy initializes the wrapped gateway on first use. Concurrent first calls
// share a single Init; a failed Init is returned to every waiter and retried
// by the next call.
type Lazy struct {
	inner Gateway
	ready atomic.Bool
	group singleflight.Group
}

func NewLazy(inner Gateway) *Lazy {
	return &Lazy{inner: inner}
}

// Unwrap returns the wrapped gateway.
func (l *Lazy) Unwrap() Gateway { return l.inner }

func (l *Lazy) Name() string { return l.inner.Name() }

func (l *Lazy) Init(ctx context.Context) error {
	return l.ensureInitialized(ctx)
}

func (l *Lazy) ensureInitialized(ctx context.Context) error {
	if l.ready.Load() {
		return nil
	}
	_, err, _ := l.group.Do("init", func() (any, error) {
		if l.ready.Load() {
			return nil, nil
		}
		if err := l.inner.Init(ctx); err != nil {
			return nil, err
		}
		l.ready.Store(true)
		return nil, nil
	})
	return err
}

func (l *Lazy) Close() error {
	l.ready.Store(false)
	return l.inner.Close()
}

func (l *Lazy) Reset(ctx context.Context) error {
	if err := l.ensureInitialized(ctx); err != nil {
		return err
	}
	return l.inner.Reset(ctx)
}

func (l *Lazy) Insert(ctx context.Context, table string, rec Record) (int64, error) {
	if err := l.ensureInitialized(ctx); err != nil {
		return 0, err
	}
	return l.inner.Insert(ctx, table, rec)
}

func (l *Lazy) QueryAll(ctx context.Context, table string, q Query) ([]Record, error) {
	if err := l.ensureInitialized(ctx); err != nil {
		return nil, err
	}
	return l.inner.QueryAll(ctx, table, q)
}

func (l *Lazy) QueryOne(ctx context.Context, table string, q Query) (Record, error) {
	if err := l.ensureInitialized(ctx); err != nil {
		return nil, err
	}
	return l.inner.QueryOne(ctx, table, q)
}

func (l *Lazy) Update(ctx context.Context, table string, id int64, patch Record) error {
	if err := l.ensureInitialized(ctx); err != nil {
		return err
	}
	return l.inner.Update(ctx, table, id, patch)
}

func (l *Lazy) Delete(ctx context.Context, table string, id int64) error {
	if err := l.ensureInitialized(ctx); err != nil {
		return err
	}
	return l.inner.Delete(ctx, table, id)
}

func (l *Lazy) DeleteWhere(ctx context.Context, table string, where []Cond) (int64, error) {
	if err := l.ensureInitialized(ctx); err != nil {
		return 0, err
	}
	return l.inner.DeleteWhere(ctx, table, where)
}
