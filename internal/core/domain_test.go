package core

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestExpenseMonthlyAmount(t *testing.T) {
	cases := []struct {
		name string
		e    Expense
		want float64
	}{
		{"plain expense", Expense{Amount: 120}, 120},
		{"installment plan", Expense{Amount: 600, HasInstallments: true, Installments: 3}, 200},
		{"single installment", Expense{Amount: 80, HasInstallments: true, Installments: 1}, 80},
		{"installments without flag", Expense{Amount: 90, Installments: 3}, 90},
		{"zero installments", Expense{Amount: 50, HasInstallments: true, Installments: 0}, 50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.e.MonthlyAmount(); got != tc.want {
				t.Fatalf("MonthlyAmount() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestExpenseEffectiveDate(t *testing.T) {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	first := time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC)

	got, ok := Expense{CreatedAt: created, FirstPaymentDate: first}.EffectiveDate()
	if !ok || !got.Equal(first) {
		t.Fatalf("expected first payment date, got %v ok=%v", got, ok)
	}

	got, ok = Expense{CreatedAt: created}.EffectiveDate()
	if !ok || !got.Equal(created) {
		t.Fatalf("expected created date, got %v ok=%v", got, ok)
	}

	if _, ok := (Expense{}).EffectiveDate(); ok {
		t.Fatalf("expected no effective date for empty expense")
	}
}

func TestExpenseIsActiveInstallment(t *testing.T) {
	cases := []struct {
		e    Expense
		want bool
	}{
		{Expense{HasInstallments: true, Installments: 3, PaidInstallments: 0}, true},
		{Expense{HasInstallments: true, Installments: 3, PaidInstallments: 2}, true},
		{Expense{HasInstallments: true, Installments: 3, PaidInstallments: 3}, false},
		{Expense{HasInstallments: false, Installments: 3, PaidInstallments: 0}, false},
	}
	for i, tc := range cases {
		if got := tc.e.IsActiveInstallment(); got != tc.want {
			t.Fatalf("case %d: IsActiveInstallment() = %v, want %v", i, got, tc.want)
		}
	}
	if got := (Expense{HasInstallments: true, Installments: 12, PaidInstallments: 3}).RemainingInstallments(); got != 9 {
		t.Fatalf("RemainingInstallments() = %d, want 9", got)
	}
}

func TestCategoryPatchIsEmpty(t *testing.T) {
	if !(CategoryPatch{}).IsEmpty() {
		t.Fatalf("zero patch should be empty")
	}
	active := false
	if (CategoryPatch{IsActive: &active}).IsEmpty() {
		t.Fatalf("patch with IsActive should not be empty")
	}
}

func TestBackendErrorHidesCause(t *testing.T) {
	cause := errors.New("SQLITE_BUSY: database is locked")
	err := fmt.Errorf("create expense: %w", NewBackendError("insert expenses", cause))

	if !IsBackendFailure(err) {
		t.Fatalf("expected backend failure")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause should stay reachable")
	}
	if got := err.Error(); got != "create expense: ledger: backend failure during insert expenses" {
		t.Fatalf("unexpected message %q", got)
	}
	if NewBackendError("noop", nil) != nil {
		t.Fatalf("nil cause should give nil error")
	}
}
