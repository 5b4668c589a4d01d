package services

import (
	"context"
	"fmt"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/repository"
	"ledger/internal/session"
	"ledger/internal/stats"
)

// LedgerService runs expense and category operations on behalf of a session.
// Each mutation is audited and published after it commits; a failure in
// either step is logged and the mutation stands.
type LedgerService struct {
	base
}

func NewLedgerService(repos *repository.Repositories, opts ...Option) *LedgerService {
	return &LedgerService{base: newBase(repos, log.ComponentLedger, opts)}
}

// CreateExpense stores e for the session user and returns it as stored.
func (s *LedgerService) CreateExpense(ctx context.Context, sess session.Session, e core.Expense) (core.Expense, error) {
	e.UserID = sess.UserID
	if !e.HasInstallments {
		e.PaidInstallments = 0
	}
	id, err := s.repos.Expenses.Create(ctx, e)
	if err != nil {
		return core.Expense{}, err
	}
	stored, err := s.repos.Expenses.GetByID(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	if stored == nil {
		return core.Expense{}, fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	s.audit(ctx, sess.UserID, core.EntityExpense, id, core.ActionCreate, nil, stored,
		"Expense created: "+stored.Description)
	s.logger.InfoContext(ctx, "Expense created",
		log.NewFields().WithOperation(log.OpCreate).WithEntity(sess.UserID, core.EntityExpense, id).ToSlice()...)
	s.publish(ctx, amqp.EventExpenseCreated, sess.UserID, id)
	return *stored, nil
}

// owned loads an expense of the session user. Other users' expenses are
// reported as missing.
func (s *LedgerService) owned(ctx context.Context, sess session.Session, id int64) (*core.Expense, error) {
	e, err := s.repos.Expenses.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil || e.UserID != sess.UserID {
		return nil, fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	return e, nil
}

func (s *LedgerService) DeleteExpense(ctx context.Context, sess session.Session, id int64) error {
	e, err := s.owned(ctx, sess, id)
	if err != nil {
		return err
	}
	if err := s.repos.Expenses.Delete(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, sess.UserID, core.EntityExpense, id, core.ActionDelete, e, nil,
		"Expense deleted: "+e.Description)
	s.publish(ctx, amqp.EventExpenseDeleted, sess.UserID, id)
	return nil
}

// PayInstallment marks one more installment as paid.
func (s *LedgerService) PayInstallment(ctx context.Context, sess session.Session, id int64) (core.Expense, error) {
	e, err := s.owned(ctx, sess, id)
	if err != nil {
		return core.Expense{}, err
	}
	if !e.IsActiveInstallment() {
		return core.Expense{}, fmt.Errorf("expense %d: %w", id, ErrNothingToPay)
	}
	after := *e
	after.PaidInstallments++
	if err := s.repos.Expenses.UpdatePaidInstallments(ctx, id, after.PaidInstallments); err != nil {
		return core.Expense{}, err
	}
	desc := fmt.Sprintf("Installment %d/%d paid: %s", after.PaidInstallments, after.Installments, after.Description)
	s.audit(ctx, sess.UserID, core.EntityExpense, id, core.ActionUpdate, e, after, desc)
	s.publish(ctx, amqp.EventInstallmentPaid, sess.UserID, id)
	return after, nil
}

// WipeExpenses removes every expense of the session user at once.
func (s *LedgerService) WipeExpenses(ctx context.Context, sess session.Session) (int64, error) {
	n, err := s.repos.Expenses.DeleteAllByUser(ctx, sess.UserID)
	if err != nil {
		return 0, err
	}
	s.audit(ctx, sess.UserID, core.EntityExpense, 0, core.ActionDelete, nil, nil,
		fmt.Sprintf("All expenses deleted (%d)", n))
	s.logger.WarnContext(ctx, "Ledger wiped",
		log.NewFields().WithOperation(log.OpWipe).WithEntity(sess.UserID, core.EntityExpense, 0).ToSlice()...)
	s.publish(ctx, amqp.EventLedgerWiped, sess.UserID, 0)
	return n, nil
}

func (s *LedgerService) Expenses(ctx context.Context, sess session.Session) ([]core.Expense, error) {
	return s.repos.Expenses.GetByUser(ctx, sess.UserID)
}

func (s *LedgerService) ActiveInstallments(ctx context.Context, sess session.Session) ([]core.Expense, error) {
	return s.repos.Expenses.GetActiveInstallments(ctx, sess.UserID)
}

func (s *LedgerService) Audits(ctx context.Context, sess session.Session, limit int) ([]core.Audit, error) {
	return s.repos.Audits.GetByUser(ctx, sess.UserID, limit)
}

func (s *LedgerService) Categories(ctx context.Context, activeOnly bool) ([]core.Category, error) {
	if activeOnly {
		return s.repos.Categories.GetActive(ctx)
	}
	return s.repos.Categories.GetAll(ctx)
}

func (s *LedgerService) CreateCategory(ctx context.Context, sess session.Session, d core.CategoryDraft) (core.Category, error) {
	id, err := s.repos.Categories.Create(ctx, d)
	if err != nil {
		return core.Category{}, err
	}
	c, err := s.repos.Categories.GetByID(ctx, id)
	if err != nil {
		return core.Category{}, err
	}
	if c == nil {
		return core.Category{}, fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	s.audit(ctx, sess.UserID, core.EntityCategory, id, core.ActionCreate, nil, c, "Category created: "+c.Name)
	return *c, nil
}

func (s *LedgerService) UpdateCategory(ctx context.Context, sess session.Session, id int64, p core.CategoryPatch) (core.Category, error) {
	before, err := s.repos.Categories.GetByID(ctx, id)
	if err != nil {
		return core.Category{}, err
	}
	if before == nil {
		return core.Category{}, fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	if err := s.repos.Categories.Update(ctx, id, p); err != nil {
		return core.Category{}, err
	}
	after, err := s.repos.Categories.GetByID(ctx, id)
	if err != nil {
		return core.Category{}, err
	}
	if after == nil {
		return core.Category{}, fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	if !p.IsEmpty() {
		s.audit(ctx, sess.UserID, core.EntityCategory, id, core.ActionUpdate, before, after, "Category updated: "+after.Name)
	}
	return *after, nil
}

// DeleteCategory deactivates the category, or removes it when hard is set.
// Unknown ids are a no-op and leave no audit entry.
func (s *LedgerService) DeleteCategory(ctx context.Context, sess session.Session, id int64, hard bool) error {
	before, err := s.repos.Categories.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repos.Categories.Delete(ctx, id, hard); err != nil {
		return err
	}
	if before == nil {
		return nil
	}
	desc := "Category deactivated: " + before.Name
	if hard {
		desc = "Category deleted: " + before.Name
	}
	s.audit(ctx, sess.UserID, core.EntityCategory, id, core.ActionDelete, before, nil, desc)
	return nil
}

// Stats computes the statistics of the session user for p.
func (s *LedgerService) Stats(ctx context.Context, sess session.Session, p stats.Period) (stats.Summary, error) {
	expenses, err := s.repos.Expenses.GetByUser(ctx, sess.UserID)
	if err != nil {
		return stats.Summary{}, err
	}
	engine := stats.NewEngine(stats.WithNow(s.now))
	if err := engine.SetPeriod(p); err != nil {
		return stats.Summary{}, err
	}
	engine.Snapshot(expenses)
	return engine.Summary(), nil
}

// Dashboard is the monthly overview of a user.
type Dashboard struct {
	MonthlyIncome      float64           `json:"monthly_income"`
	MonthExpenses      float64           `json:"month_expenses"`
	Balance            float64           `json:"balance"`
	SpentPercentage    float64           `json:"spent_percentage"`
	ActiveInstallments int               `json:"active_installments"`
	Installments       []InstallmentPlan `json:"installments"`
	RecentExpenses     []core.Expense    `json:"recent_expenses"`
}

const dashboardRecent = 5

// Dashboard reads the stored income rather than the session copy so a
// change made from another session shows up.
func (s *LedgerService) Dashboard(ctx context.Context, sess session.Session) (Dashboard, error) {
	u, err := s.repos.Users.GetByID(ctx, sess.UserID)
	if err != nil {
		return Dashboard{}, err
	}
	if u == nil {
		return Dashboard{}, fmt.Errorf("user %d: %w", sess.UserID, core.ErrNotFound)
	}
	expenses, err := s.repos.Expenses.GetByUser(ctx, sess.UserID)
	if err != nil {
		return Dashboard{}, err
	}
	return BuildDashboard(u.MonthlyIncome, expenses, s.now()), nil
}

// BuildDashboard derives the overview from an expense snapshot.
func BuildDashboard(income float64, expenses []core.Expense, now time.Time) Dashboard {
	month := stats.Total(stats.Filter(expenses, stats.PeriodMonth, now))
	d := Dashboard{
		MonthlyIncome:  income,
		MonthExpenses:  month,
		Balance:        income - month,
		RecentExpenses: expenses[:min(len(expenses), dashboardRecent)],
	}
	if income > 0 {
		d.SpentPercentage = month / income * 100
	}
	d.Installments = ActivePlans(expenses, now)
	d.ActiveInstallments = len(d.Installments)
	if d.RecentExpenses == nil {
		d.RecentExpenses = []core.Expense{}
	}
	return d
}
