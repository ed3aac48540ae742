package core_test

import (
	"context"
	"testing"

	"backbar/internal/core"

	"github.com/shopspring/decimal"
)

func TestDebt_PartialThenOverpayment(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	debts := core.NewDebtService(pool)
	ctx := context.Background()

	tr, err := debts.CreateDebtTransaction(ctx, 1, decimal.NewFromInt(10000), "bar tab", "tester")
	if err != nil {
		t.Fatalf("CreateDebtTransaction failed: %v", err)
	}

	got, err := debts.RecordPayment(ctx, tr.ID, decimal.NewFromInt(4000), "cashier")
	if err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}
	if !got.OutstandingAmount.Equal(decimal.NewFromInt(6000)) {
		t.Errorf("outstanding = %s, want 6000", got.OutstandingAmount)
	}
	if got.IsPaid {
		t.Error("partially paid transaction marked paid")
	}

	// Overpaying is accepted; the balance goes negative as a credit.
	got, err = debts.RecordPayment(ctx, tr.ID, decimal.NewFromInt(7000), "cashier")
	if err != nil {
		t.Fatalf("overpayment failed: %v", err)
	}
	if !got.OutstandingAmount.Equal(decimal.NewFromInt(-1000)) {
		t.Errorf("outstanding = %s, want -1000", got.OutstandingAmount)
	}
	if !got.IsPaid {
		t.Error("overpaid transaction not marked paid")
	}
}

func TestDebt_PaymentValidation(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	debts := core.NewDebtService(pool)
	ctx := context.Background()

	_, err := debts.RecordPayment(ctx, 9999, decimal.NewFromInt(100), "cashier")
	if core.KindOf(err) != core.KindNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}

	tr, err := debts.CreateDebtTransaction(ctx, 1, decimal.NewFromInt(500), "small tab", "tester")
	if err != nil {
		t.Fatalf("CreateDebtTransaction failed: %v", err)
	}
	_, err = debts.RecordPayment(ctx, tr.ID, decimal.Zero, "cashier")
	if core.KindOf(err) != core.KindValidation {
		t.Fatalf("expected Validation for zero payment, got %v", err)
	}
}

func TestDebt_DebtorTotalsAreDerived(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	debts := core.NewDebtService(pool)
	ctx := context.Background()

	first, err := debts.CreateDebtTransaction(ctx, 1, decimal.NewFromInt(3000), "friday", "tester")
	if err != nil {
		t.Fatalf("CreateDebtTransaction failed: %v", err)
	}
	if _, err := debts.CreateDebtTransaction(ctx, 1, decimal.NewFromInt(2000), "saturday", "tester"); err != nil {
		t.Fatalf("CreateDebtTransaction failed: %v", err)
	}
	if _, err := debts.RecordPayment(ctx, first.ID, decimal.NewFromInt(1000), "cashier"); err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}

	debtors, err := debts.ListDebtors(ctx)
	if err != nil {
		t.Fatalf("ListDebtors failed: %v", err)
	}
	if len(debtors) != 1 {
		t.Fatalf("debtors = %d, want 1", len(debtors))
	}
	if !debtors[0].TotalDebt.Equal(decimal.NewFromInt(4000)) {
		t.Errorf("total debt = %s, want 4000", debtors[0].TotalDebt)
	}

	summary, err := debts.GetDebtorSummary(ctx, 1)
	if err != nil {
		t.Fatalf("GetDebtorSummary failed: %v", err)
	}
	if !summary.Debtor.TotalDebt.Equal(decimal.NewFromInt(4000)) {
		t.Errorf("summary total debt = %s, want 4000", summary.Debtor.TotalDebt)
	}
	if len(summary.Transactions) != 2 {
		t.Errorf("transactions = %d, want 2", len(summary.Transactions))
	}
}
