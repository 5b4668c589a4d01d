package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/gateway"
	"ledger/internal/gateway/flatstore"
	"ledger/internal/log"
	"ledger/internal/repository"
	"ledger/internal/session"
	"ledger/internal/stats"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	ctx    context.Context
	now    time.Time
	repos  *repository.Repositories
	auth   *AuthService
	ledger *LedgerService
	pub    *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx: context.Background(),
		now: time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC),
		pub: &recordingPublisher{},
	}
	clock := func() time.Time { return f.now }

	gw := gateway.NewLazy(flatstore.New(t.TempDir(), nil))
	t.Cleanup(func() { gw.Close() })
	f.repos = repository.New(gw, repository.WithClock(clock))

	opts := []Option{WithPublisher(f.pub), WithLogger(log.Discard()), WithClock(clock)}
	sessions := session.NewManager(10, time.Hour, session.WithClock(clock))
	f.auth = NewAuthService(f.repos, sessions, opts...).WithHashCost(bcrypt.MinCost)
	f.ledger = NewLedgerService(f.repos, opts...)
	return f
}

func (f *fixture) register(t *testing.T, email string) session.Session {
	t.Helper()
	s, err := f.auth.Register(f.ctx, email, "secret123")
	require.NoError(t, err)
	return s
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	s := f.register(t, "a@example.com")
	assert.NotEmpty(t, s.Token)

	_, err := f.auth.Register(f.ctx, "a@example.com", "other")
	assert.ErrorIs(t, err, core.ErrDuplicateKey)

	_, err = f.auth.Login(f.ctx, "a@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.auth.Login(f.ctx, "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	again, err := f.auth.Login(f.ctx, "a@example.com", "secret123")
	require.NoError(t, err)
	assert.NotEqual(t, s.Token, again.Token)

	got, ok := f.auth.Authenticate(again.Token)
	require.True(t, ok)
	assert.Equal(t, s.UserID, got.UserID)

	assert.True(t, f.auth.Logout(again.Token))
	_, ok = f.auth.Authenticate(again.Token)
	assert.False(t, ok)

	audits, err := f.repos.Audits.GetByEntity(f.ctx, core.EntityUser, s.UserID)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.NotContains(t, audits[0].NewValue, "secret123")
	assert.NotContains(t, audits[0].NewValue, "password")
}

func TestUpdateMonthlyIncomeRefreshesSessions(t *testing.T) {
	f := newFixture(t)
	s := f.register(t, "a@example.com")
	other, err := f.auth.Login(f.ctx, "a@example.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, f.auth.UpdateMonthlyIncome(f.ctx, s, 2500))

	refreshed, ok := f.auth.Authenticate(other.Token)
	require.True(t, ok)
	assert.Equal(t, 2500.0, refreshed.MonthlyIncome)

	u, err := f.repos.Users.GetByID(f.ctx, s.UserID)
	require.NoError(t, err)
	assert.Equal(t, 2500.0, u.MonthlyIncome)
	assert.Equal(t, []amqp.EventType{amqp.EventIncomeUpdated}, f.pub.types())
}

func TestDeleteAccount(t *testing.T) {
	f := newFixture(t)
	s := f.register(t, "a@example.com")
	other, err := f.auth.Login(f.ctx, "a@example.com", "secret123")
	require.NoError(t, err)
	keep := f.register(t, "b@example.com")

	_, err = f.ledger.CreateExpense(f.ctx, s, core.Expense{Description: "Rent", Category: "Home", Amount: 800})
	require.NoError(t, err)
	_, err = f.ledger.CreateExpense(f.ctx, keep, core.Expense{Description: "Lunch", Category: "Food", Amount: 12})
	require.NoError(t, err)

	closed, err := f.auth.DeleteAccount(f.ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 2, closed)

	_, ok := f.auth.Authenticate(s.Token)
	assert.False(t, ok)
	_, ok = f.auth.Authenticate(other.Token)
	assert.False(t, ok)
	_, ok = f.auth.Authenticate(keep.Token)
	assert.True(t, ok)

	u, err := f.repos.Users.GetByEmail(f.ctx, "a@example.com")
	require.NoError(t, err)
	assert.Nil(t, u)
	gone, err := f.repos.Expenses.GetByUser(f.ctx, s.UserID)
	require.NoError(t, err)
	assert.Empty(t, gone)
	audits, err := f.repos.Audits.GetByUser(f.ctx, s.UserID, 0)
	require.NoError(t, err)
	assert.Empty(t, audits)

	kept, err := f.repos.Expenses.GetByUser(f.ctx, keep.UserID)
	require.NoError(t, err)
	assert.Len(t, kept, 1)

	_, err = f.auth.DeleteAccount(f.ctx, s)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestExpenseLifecycle(t *testing.T) {
	f := newFixture(t)
	s := f.register(t, "a@example.com")

	e, err := f.ledger.CreateExpense(f.ctx, s, core.Expense{
		Description: "Laptop", Category: "Tech", Amount: 600,
		HasInstallments: true, Installments: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, s.UserID, e.UserID)
	assert.True(t, f.now.Equal(e.FirstPaymentDate))

	active, err := f.ledger.ActiveInstallments(f.ctx, s)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	for i := 1; i <= 3; i++ {
		paid, err := f.ledger.PayInstallment(f.ctx, s, e.ID)
		require.NoError(t, err)
		assert.Equal(t, i, paid.PaidInstallments)
	}
	_, err = f.ledger.PayInstallment(f.ctx, s, e.ID)
	assert.ErrorIs(t, err, ErrNothingToPay)

	active, err = f.ledger.ActiveInstallments(f.ctx, s)
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, f.ledger.DeleteExpense(f.ctx, s, e.ID))
	assert.ErrorIs(t, f.ledger.DeleteExpense(f.ctx, s, e.ID), core.ErrNotFound)

	audits, err := f.ledger.Audits(f.ctx, s, 0)
	require.NoError(t, err)
	// register + create + 3 payments + delete
	require.Len(t, audits, 6)
	assert.Equal(t, core.ActionDelete, audits[0].Action)
	var old core.Expense
	require.NoError(t, json.Unmarshal([]byte(audits[0].OldValue), &old))
	assert.Equal(t, 3, old.PaidInstallments)

	assert.Equal(t, []amqp.EventType{
		amqp.EventExpenseCreated,
		amqp.EventInstallmentPaid, amqp.EventInstallmentPaid, amqp.EventInstallmentPaid,
		amqp.EventExpenseDeleted,
	}, f.pub.types())
}

func TestForeignExpensesAreHidden(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, "a@example.com")
	b := f.register(t, "b@example.com")

	e, err := f.ledger.CreateExpense(f.ctx, a, core.Expense{Description: "x", Category: "Food", Amount: 5})
	require.NoError(t, err)

	assert.ErrorIs(t, f.ledger.DeleteExpense(f.ctx, b, e.ID), core.ErrNotFound)
	_, err = f.ledger.PayInstallment(f.ctx, b, e.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	list, err := f.ledger.Expenses(f.ctx, b)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWipeExpenses(t *testing.T) {
	f := newFixture(t)
	s := f.register(t, "a@example.com")
	for i := 0; i < 3; i++ {
		_, err := f.ledger.CreateExpense(f.ctx, s, core.Expense{Description: "x", Category: "Food", Amount: 1})
		require.NoError(t, err)
	}

	n, err := f.ledger.WipeExpenses(f.ctx, s)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	list, err := f.ledger.Expenses(f.ctx, s)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Contains(t, f.pub.types(), amqp.EventLedgerWiped)
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")
	s := f.register(t, "a@example.com")

	_, err := f.ledger.CreateExpense(f.ctx, s, core.Expense{Description: "x", Category: "Food", Amount: 1})
	assert.NoError(t, err)
}

// auditlessGateway refuses audit appends.
type auditlessGateway struct {
	gateway.Gateway
}

func (g auditlessGateway) Insert(ctx context.Context, table string, rec gateway.Record) (int64, error) {
	if table == gateway.TableAudits {
		return 0, core.NewBackendError("insert audits", errors.New("disk full"))
	}
	return g.Gateway.Insert(ctx, table, rec)
}

func TestAuditFailureDoesNotFailMutation(t *testing.T) {
	ctx := context.Background()
	gw := gateway.NewLazy(flatstore.New(t.TempDir(), nil))
	t.Cleanup(func() { gw.Close() })
	repos := repository.New(auditlessGateway{gw})
	ledger := NewLedgerService(repos, WithLogger(log.Discard()))
	uid, err := repos.Users.Create(ctx, "a@example.com", "h")
	require.NoError(t, err)
	s := session.Session{Token: "t", UserID: uid, Email: "a@example.com"}

	phone, err := ledger.CreateExpense(ctx, s, core.Expense{
		Description: "Phone", Category: "Tech", Amount: 300, HasInstallments: true, Installments: 3,
	})
	require.NoError(t, err)
	paid, err := ledger.PayInstallment(ctx, s, phone.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, paid.PaidInstallments)
	require.NoError(t, ledger.DeleteExpense(ctx, s, phone.ID))

	_, err = ledger.CreateExpense(ctx, s, core.Expense{Description: "Lunch", Category: "Food", Amount: 12})
	require.NoError(t, err)
	n, err := ledger.WipeExpenses(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	audits, err := repos.Audits.GetByUser(ctx, s.UserID, 0)
	require.NoError(t, err)
	assert.Empty(t, audits)
}

func TestCategoryOperations(t *testing.T) {
	f := newFixture(t)
	s := f.register(t, "a@example.com")

	c, err := f.ledger.CreateCategory(f.ctx, s, core.CategoryDraft{Name: "Travel", Icon: "plane"})
	require.NoError(t, err)
	assert.True(t, c.IsActive)

	_, err = f.ledger.CreateCategory(f.ctx, s, core.CategoryDraft{Name: "travel"})
	assert.ErrorIs(t, err, core.ErrDuplicateKey)

	name := "Trips"
	updated, err := f.ledger.UpdateCategory(f.ctx, s, c.ID, core.CategoryPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Trips", updated.Name)

	_, err = f.ledger.UpdateCategory(f.ctx, s, 99, core.CategoryPatch{Name: &name})
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, f.ledger.DeleteCategory(f.ctx, s, c.ID, false))
	active, err := f.ledger.Categories(f.ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := f.ledger.Categories(f.ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, f.ledger.DeleteCategory(f.ctx, s, 42, true))

	audits, err := f.repos.Audits.GetByUser(f.ctx, s.UserID, 0)
	require.NoError(t, err)
	// register, create, update, deactivate
	assert.Len(t, audits, 4)
}

func TestStatsAndDashboard(t *testing.T) {
	f := newFixture(t)
	s := f.register(t, "a@example.com")
	require.NoError(t, f.auth.UpdateMonthlyIncome(f.ctx, s, 1000))

	_, err := f.ledger.CreateExpense(f.ctx, s, core.Expense{
		Description: "Laptop", Category: "Tech", Amount: 600, HasInstallments: true, Installments: 3,
	})
	require.NoError(t, err)
	_, err = f.ledger.CreateExpense(f.ctx, s, core.Expense{Description: "Lunch", Category: "Food", Amount: 50})
	require.NoError(t, err)

	sum, err := f.ledger.Stats(f.ctx, s, stats.PeriodMonth)
	require.NoError(t, err)
	assert.InDelta(t, 250, sum.Total, 1e-9)
	require.NotNil(t, sum.TopCategory)
	assert.Equal(t, "Tech", sum.TopCategory.Name)
	assert.Len(t, sum.Points, 5)

	_, err = f.ledger.Stats(f.ctx, s, stats.Period("decade"))
	assert.Error(t, err)

	d, err := f.ledger.Dashboard(f.ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, d.MonthlyIncome)
	assert.InDelta(t, 250, d.MonthExpenses, 1e-9)
	assert.InDelta(t, 750, d.Balance, 1e-9)
	assert.InDelta(t, 25, d.SpentPercentage, 1e-9)
	assert.Equal(t, 1, d.ActiveInstallments)
	require.Len(t, d.Installments, 1)
	assert.False(t, d.Installments[0].NextDue.IsZero())
	assert.Len(t, d.RecentExpenses, 2)
}

func TestBuildDashboardWithoutIncome(t *testing.T) {
	d := BuildDashboard(0, nil, time.Now())
	assert.Zero(t, d.SpentPercentage)
	assert.Zero(t, d.Balance)
	assert.NotNil(t, d.RecentExpenses)
	assert.NotNil(t, d.Installments)
}
