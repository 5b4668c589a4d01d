package gateway

import (
	"context"
	"time"

	"ledger/internal/metrics"
)

// Instrumented records the latency and outcome of every call to the wrapped
// gateway.
type Instrumented struct {
	inner Gateway
}

func NewInstrumented(inner Gateway) *Instrumented {
	return &Instrumented{inner: inner}
}

func (m *Instrumented) Name() string { return m.inner.Name() }

func (m *Instrumented) observe(op string, start time.Time, err error) {
	metrics.ObserveGateway(m.inner.Name(), op, time.Since(start), err)
}

func (m *Instrumented) Init(ctx context.Context) (err error) {
	defer func(start time.Time) { m.observe("init", start, err) }(time.Now())
	return m.inner.Init(ctx)
}

func (m *Instrumented) Close() error {
	return m.inner.Close()
}

func (m *Instrumented) Reset(ctx context.Context) (err error) {
	defer func(start time.Time) { m.observe("reset", start, err) }(time.Now())
	return m.inner.Reset(ctx)
}

func (m *Instrumented) Insert(ctx context.Context, table string, rec Record) (id int64, err error) {
	defer func(start time.Time) { m.observe("insert", start, err) }(time.Now())
	return m.inner.Insert(ctx, table, rec)
}

func (m *Instrumented) QueryAll(ctx context.Context, table string, q Query) (rows []Record, err error) {
	defer func(start time.Time) { m.observe("query_all", start, err) }(time.Now())
	return m.inner.QueryAll(ctx, table, q)
}

func (m *Instrumented) QueryOne(ctx context.Context, table string, q Query) (rec Record, err error) {
	defer func(start time.Time) { m.observe("query_one", start, err) }(time.Now())
	return m.inner.QueryOne(ctx, table, q)
}

func (m *Instrumented) Update(ctx context.Context, table string, id int64, patch Record) (err error) {
	defer func(start time.Time) { m.observe("update", start, err) }(time.Now())
	return m.inner.Update(ctx, table, id, patch)
}

func (m *Instrumented) Delete(ctx context.Context, table string, id int64) (err error) {
	defer func(start time.Time) { m.observe("delete", start, err) }(time.Now())
	return m.inner.Delete(ctx, table, id)
}

func (m *Instrumented) DeleteWhere(ctx context.Context, table string, where []Cond) (n int64, err error) {
	defer func(start time.Time) { m.observe("delete_where", start, err) }(time.Now())
	return m.inner.DeleteWhere(ctx, table, where)
}
