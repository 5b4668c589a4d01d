package stats

import (
	"sync"
	"time"

	"ledger/internal/core"
)

// Engine holds a selected period and an expense snapshot. Every getter
// recomputes from both; nothing is cached between calls.
type Engine struct {
	now func() time.Time

	mu       sync.RWMutex
	period   Period
	expenses []core.Expense
}

type EngineOption func(*Engine)

// WithNow sets the clock; time.Now by default.
func WithNow(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{now: time.Now, period: PeriodMonth}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) SetPeriod(p Period) error {
	if !p.IsValid() {
		_, err := ParsePeriod(string(p))
		return err
	}
	e.mu.Lock()
	e.period = p
	e.mu.Unlock()
	return nil
}

func (e *Engine) Period() Period {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.period
}

// Snapshot replaces the expenses the engine computes from.
func (e *Engine) Snapshot(expenses []core.Expense) {
	cp := append([]core.Expense(nil), expenses...)
	e.mu.Lock()
	e.expenses = cp
	e.mu.Unlock()
}

func (e *Engine) state() ([]core.Expense, Period, time.Time) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.expenses, e.period, e.now()
}

func (e *Engine) filtered() ([]core.Expense, Period, time.Time) {
	exp, p, t := e.state()
	return Filter(exp, p, t), p, t
}

func (e *Engine) TotalExpenses() float64 {
	f, _, _ := e.filtered()
	return Total(f)
}

func (e *Engine) AveragePerDay() float64 {
	f, p, t := e.filtered()
	return AveragePerDay(f, p, t)
}

func (e *Engine) CategoryStats() []CategoryStat {
	f, _, _ := e.filtered()
	return ByCategory(f)
}

func (e *Engine) TopCategory() *CategoryStat {
	return Top(e.CategoryStats())
}

func (e *Engine) ChartPoints() []Point {
	f, p, t := e.filtered()
	return Buckets(f, p, t)
}

func (e *Engine) ChartPath() string {
	return LinePath(Amounts(e.ChartPoints()))
}

func (e *Engine) ChartAreaPath() string {
	return AreaPath(Amounts(e.ChartPoints()))
}

func (e *Engine) ChartLabels() []string {
	_, p, t := e.state()
	return Labels(p, t)
}

func (e *Engine) Summary() Summary {
	exp, p, t := e.state()
	return Compute(exp, p, t)
}
