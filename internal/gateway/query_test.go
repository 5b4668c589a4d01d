package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expensesTable(t *testing.T) Table {
	t.Helper()
	tbl, ok := LookupTable(TableExpenses)
	require.True(t, ok)
	return tbl
}

func TestNormalizeCoercesKinds(t *testing.T) {
	tbl := expensesTable(t)
	rec, err := Normalize(tbl, Record{
		"user_id":            3,
		"amount":             int64(12),
		"has_installments":   int64(1),
		"first_payment_date": "2025-02-01",
		"created_at":         "garbage",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec["user_id"])
	assert.Equal(t, 12.0, rec["amount"])
	assert.Equal(t, true, rec["has_installments"])
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), rec["first_payment_date"])
	assert.True(t, rec.Time("created_at").IsZero())

	_, err = Normalize(tbl, Record{"nope": 1})
	assert.Error(t, err)
	_, err = Normalize(tbl, Record{"amount": []int{1}})
	assert.Error(t, err)
}

func TestTimeLayoutOrdersLikeInstants(t *testing.T) {
	col := Column{Name: "created_at", Kind: KindTime}
	a := Encode(col, time.Date(2025, 1, 1, 8, 59, 59, 5, time.UTC)).(string)
	b := Encode(col, time.Date(2025, 1, 1, 10, 0, 0, 0, time.FixedZone("X", 3600))).(string)
	c := Encode(col, time.Date(2025, 1, 1, 9, 30, 0, 0, time.UTC)).(string)
	assert.Len(t, a, len(c))
	assert.Less(t, a, b)
	assert.Less(t, b, c, "10:00+01:00 is 09:00Z")
	assert.Nil(t, Encode(col, time.Time{}))
}

func TestSelectFiltersOrdersAndLimits(t *testing.T) {
	tbl := expensesTable(t)
	rows := []Record{
		Complete(tbl, Record{"id": int64(1), "amount": 5.0, "installments": int64(3), "paid_installments": int64(3)}),
		Complete(tbl, Record{"id": int64(2), "amount": 9.0, "installments": int64(3), "paid_installments": int64(1)}),
		Complete(tbl, Record{"id": int64(3), "amount": 9.0, "installments": int64(2), "paid_installments": int64(0)}),
	}

	q, err := NormalizeQuery(tbl, Where(LtColumn("paid_installments", "installments")).Desc("amount").Asc("id"))
	require.NoError(t, err)
	got := Select(tbl, rows, q)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID())
	assert.Equal(t, int64(3), got[1].ID())

	q, err = NormalizeQuery(tbl, Where(Ne("amount", 9)).WithLimit(1))
	require.NoError(t, err)
	got = Select(tbl, rows, q)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID())
}

func TestNormalizeQueryRejectsUnknownColumns(t *testing.T) {
	tbl := expensesTable(t)
	_, err := NormalizeQuery(tbl, Where(Eq("nope", 1)))
	assert.Error(t, err)
	_, err = NormalizeQuery(tbl, Query{}.Desc("nope"))
	assert.Error(t, err)
	_, err = NormalizeQuery(tbl, Where(LtColumn("paid_installments", "description")))
	assert.Error(t, err)
}
