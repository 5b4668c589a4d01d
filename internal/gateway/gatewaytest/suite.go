// Package gatewaytest holds the behaviour every gateway backend must share.
// Backend packages run it from their own tests.
package gatewaytest

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"ledger/internal/core"
	"ledger/internal/gateway"
)

// Suite runs against a fresh, uninitialized gateway per test.
type Suite struct {
	suite.Suite
	New func() gateway.Gateway

	ctx context.Context
	gw  gateway.Gateway
}

func (s *Suite) SetupTest() {
	s.ctx = context.Background()
	s.gw = s.New()
	s.Require().NoError(s.gw.Init(s.ctx))
}

func (s *Suite) TearDownTest() {
	s.Require().NoError(s.gw.Close())
}

var base = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func (s *Suite) insertUser(email string) int64 {
	id, err := s.gw.Insert(s.ctx, gateway.TableUsers, gateway.Record{
		"email":         email,
		"password_hash": "hash",
		"created_at":    base,
	})
	s.Require().NoError(err)
	return id
}

func (s *Suite) insertExpense(userID int64, desc string, created time.Time) int64 {
	id, err := s.gw.Insert(s.ctx, gateway.TableExpenses, gateway.Record{
		"user_id":      userID,
		"description":  desc,
		"category":     "Food",
		"amount":       10.5,
		"installments": 1,
		"created_at":   created,
	})
	s.Require().NoError(err)
	return id
}

func (s *Suite) TestInitIsIdempotent() {
	s.insertUser("a@example.com")
	s.Require().NoError(s.gw.Init(s.ctx))

	rows, err := s.gw.QueryAll(s.ctx, gateway.TableUsers, gateway.Query{})
	s.Require().NoError(err)
	s.Len(rows, 1)
}

func (s *Suite) TestOperationsBeforeInit() {
	fresh := s.New()
	defer fresh.Close()

	_, err := fresh.Insert(s.ctx, gateway.TableUsers, gateway.Record{"email": "x"})
	s.ErrorIs(err, core.ErrNotInitialized)
	_, err = fresh.QueryAll(s.ctx, gateway.TableUsers, gateway.Query{})
	s.ErrorIs(err, core.ErrNotInitialized)
}

func (s *Suite) TestIdentifiersAreMaxPlusOne() {
	a := s.insertUser("a@example.com")
	b := s.insertUser("b@example.com")
	s.Equal(int64(1), a)
	s.Equal(int64(2), b)

	s.Require().NoError(s.gw.Delete(s.ctx, gateway.TableUsers, b))
	c := s.insertUser("c@example.com")
	s.Equal(int64(2), c, "highest id was removed, so it is handed out again")

	s.Require().NoError(s.gw.Delete(s.ctx, gateway.TableUsers, a))
	d := s.insertUser("d@example.com")
	s.Equal(int64(3), d)
}

func (s *Suite) TestRoundTripKeepsKinds() {
	uid := s.insertUser("a@example.com")
	first := time.Date(2025, 2, 1, 0, 0, 0, 0, time.FixedZone("CET", 3600))
	id, err := s.gw.Insert(s.ctx, gateway.TableExpenses, gateway.Record{
		"user_id":            uid,
		"description":        "Laptop",
		"category":           "Tech",
		"amount":             600,
		"has_installments":   true,
		"installments":       3,
		"paid_installments":  1,
		"first_payment_date": first,
		"created_at":         base,
	})
	s.Require().NoError(err)

	rec, err := s.gw.QueryOne(s.ctx, gateway.TableExpenses, gateway.ByID(id))
	s.Require().NoError(err)
	s.Require().NotNil(rec)
	s.Equal(uid, rec.Int("user_id"))
	s.Equal("Laptop", rec.String("description"))
	s.Equal(600.0, rec.Float("amount"))
	s.True(rec.Bool("has_installments"))
	s.Equal(int64(3), rec.Int("installments"))
	s.True(first.Equal(rec.Time("first_payment_date")))
	s.True(base.Equal(rec.Time("created_at")))
}

func (s *Suite) TestNullableTextReadsBackEmpty() {
	id, err := s.gw.Insert(s.ctx, gateway.TableCategories, gateway.Record{
		"name": "Food", "name_key": "food", "is_active": true, "created_at": base,
	})
	s.Require().NoError(err)
	rec, err := s.gw.QueryOne(s.ctx, gateway.TableCategories, gateway.ByID(id))
	s.Require().NoError(err)
	s.Equal("", rec.String("icon"))
	s.Equal("", rec.String("color"))
}

func (s *Suite) TestQueryOneMissingReturnsNil() {
	rec, err := s.gw.QueryOne(s.ctx, gateway.TableUsers, gateway.ByID(42))
	s.Require().NoError(err)
	s.Nil(rec)
}

func (s *Suite) TestDuplicateUniqueColumn() {
	s.insertUser("a@example.com")
	_, err := s.gw.Insert(s.ctx, gateway.TableUsers, gateway.Record{"email": "a@example.com", "password_hash": "x"})
	s.ErrorIs(err, core.ErrDuplicateKey)

	_, err = s.gw.Insert(s.ctx, gateway.TableUsers, gateway.Record{"email": "A@example.com", "password_hash": "x"})
	s.NoError(err, "email uniqueness is exact")
}

func (s *Suite) TestUpdateOntoTakenUniqueValue() {
	s.insertUser("a@example.com")
	b := s.insertUser("b@example.com")
	err := s.gw.Update(s.ctx, gateway.TableUsers, b, gateway.Record{"email": "a@example.com"})
	s.ErrorIs(err, core.ErrDuplicateKey)

	s.NoError(s.gw.Update(s.ctx, gateway.TableUsers, b, gateway.Record{"email": "b@example.com"}),
		"rewriting a row's own value is not a conflict")
}

func (s *Suite) TestForeignKeyOnInsert() {
	_, err := s.gw.Insert(s.ctx, gateway.TableExpenses, gateway.Record{
		"user_id": 99, "description": "x", "category": "y", "amount": 1,
	})
	s.ErrorIs(err, core.ErrForeignKey)
}

func (s *Suite) TestUpdateAndDeleteUnknownIDAreNoOps() {
	s.NoError(s.gw.Update(s.ctx, gateway.TableUsers, 7, gateway.Record{"monthly_income": 10}))
	s.NoError(s.gw.Delete(s.ctx, gateway.TableUsers, 7))
	n, err := s.gw.DeleteWhere(s.ctx, gateway.TableExpenses, []gateway.Cond{gateway.Eq("user_id", 7)})
	s.NoError(err)
	s.Zero(n)
}

func (s *Suite) TestDeleteUserCascades() {
	a := s.insertUser("a@example.com")
	b := s.insertUser("b@example.com")
	s.insertExpense(a, "one", base)
	s.insertExpense(b, "two", base)
	_, err := s.gw.Insert(s.ctx, gateway.TableAudits, gateway.Record{
		"user_id": a, "entity_type": "expense", "entity_id": 1, "action": "create",
		"description": "created", "created_at": base,
	})
	s.Require().NoError(err)

	s.Require().NoError(s.gw.Delete(s.ctx, gateway.TableUsers, a))

	expenses, err := s.gw.QueryAll(s.ctx, gateway.TableExpenses, gateway.Query{})
	s.Require().NoError(err)
	s.Require().Len(expenses, 1)
	s.Equal(b, expenses[0].Int("user_id"))

	audits, err := s.gw.QueryAll(s.ctx, gateway.TableAudits, gateway.Query{})
	s.Require().NoError(err)
	s.Empty(audits)
}

func (s *Suite) TestOrderingAndLimit() {
	uid := s.insertUser("a@example.com")
	s.insertExpense(uid, "old", base.Add(-2*time.Hour))
	s.insertExpense(uid, "new", base)
	s.insertExpense(uid, "tie", base)

	q := gateway.Where(gateway.Eq("user_id", uid)).Desc("created_at").Desc(gateway.IDColumn)
	rows, err := s.gw.QueryAll(s.ctx, gateway.TableExpenses, q)
	s.Require().NoError(err)
	s.Require().Len(rows, 3)
	s.Equal([]string{"tie", "new", "old"}, descriptions(rows))

	rows, err = s.gw.QueryAll(s.ctx, gateway.TableExpenses, q.WithLimit(2))
	s.Require().NoError(err)
	s.Equal([]string{"tie", "new"}, descriptions(rows))
}

func (s *Suite) TestComparisonsAndColumnCondition() {
	uid := s.insertUser("a@example.com")
	for _, paid := range []int{0, 2, 3} {
		_, err := s.gw.Insert(s.ctx, gateway.TableExpenses, gateway.Record{
			"user_id": uid, "description": "p", "category": "c", "amount": 30,
			"has_installments": true, "installments": 3, "paid_installments": paid,
			"created_at": base,
		})
		s.Require().NoError(err)
	}

	rows, err := s.gw.QueryAll(s.ctx, gateway.TableExpenses, gateway.Where(
		gateway.Eq("has_installments", true),
		gateway.LtColumn("paid_installments", "installments"),
	))
	s.Require().NoError(err)
	s.Len(rows, 2)

	rows, err = s.gw.QueryAll(s.ctx, gateway.TableExpenses, gateway.Where(gateway.Ge("paid_installments", 2)))
	s.Require().NoError(err)
	s.Len(rows, 2)

	rows, err = s.gw.QueryAll(s.ctx, gateway.TableExpenses, gateway.Where(gateway.Gt("created_at", base)))
	s.Require().NoError(err)
	s.Empty(rows)
}

func (s *Suite) TestDeleteWhereRemovesAllMatches() {
	a := s.insertUser("a@example.com")
	b := s.insertUser("b@example.com")
	for i := 0; i < 3; i++ {
		s.insertExpense(a, "a", base)
	}
	s.insertExpense(b, "b", base)

	n, err := s.gw.DeleteWhere(s.ctx, gateway.TableExpenses, []gateway.Cond{gateway.Eq("user_id", a)})
	s.Require().NoError(err)
	s.Equal(int64(3), n)

	rows, err := s.gw.QueryAll(s.ctx, gateway.TableExpenses, gateway.Query{})
	s.Require().NoError(err)
	s.Len(rows, 1)
}

func (s *Suite) TestResetEmptiesEveryTable() {
	uid := s.insertUser("a@example.com")
	s.insertExpense(uid, "x", base)

	s.Require().NoError(s.gw.Reset(s.ctx))

	for _, t := range gateway.Schema {
		rows, err := s.gw.QueryAll(s.ctx, t.Name, gateway.Query{})
		s.Require().NoError(err)
		s.Empty(rows, t.Name)
	}
	s.Equal(int64(1), s.insertUser("a@example.com"))
}

func (s *Suite) TestUnknownTableAndColumn() {
	_, err := s.gw.QueryAll(s.ctx, "nope", gateway.Query{})
	var ute *gateway.UnknownTableError
	s.ErrorAs(err, &ute)

	_, err = s.gw.Insert(s.ctx, gateway.TableUsers, gateway.Record{"nickname": "x"})
	s.Error(err)
}

func (s *Suite) TestLazyInitializesOnce() {
	lazy := gateway.NewLazy(s.New())
	defer lazy.Close()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = lazy.QueryAll(s.ctx, gateway.TableUsers, gateway.Query{})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		s.NoError(err)
	}
}

func descriptions(rows []gateway.Record) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.String("description")
	}
	return out
}
