package core_test

import (
	"context"
	"testing"

	"backbar/internal/core"

	"github.com/shopspring/decimal"
)

func TestPostReconciliation_FansOutLines(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	recs := core.NewReconciliationService(pool)
	ctx := context.Background()

	debtorID, waiterID := 1, 1
	rec, err := recs.Post(ctx, core.ReconciliationInput{
		Date: today(),
		TillTotals: []core.TillTotal{
			{Source: "Main till", Amount: decimal.NewFromInt(120000)},
			{Source: "Garden till", Amount: decimal.NewFromInt(45000)},
		},
		CashOnHand: decimal.NewFromInt(160000),
		Actor:      "owner",
		Lines: []core.ReconciliationLineInput{
			{Kind: core.LineKindExpense, Description: "glass breakage", Amount: decimal.NewFromInt(3000)},
			{Kind: core.LineKindDebtor, Description: "tab carried over", Amount: decimal.NewFromInt(7000), DebtorID: &debtorID},
			{Kind: core.LineKindWaiter, Description: "unreturned float", Amount: decimal.NewFromInt(2000), WaiterID: &waiterID},
			{Kind: core.LineKindOther, Description: "found in drawer", Amount: decimal.NewFromInt(500)},
			{Kind: core.LineKindSale, Description: "nothing here", Amount: decimal.Zero},
		},
	})
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	// The zero-amount line was skipped.
	if len(rec.Lines) != 4 {
		t.Fatalf("persisted lines = %d, want 4", len(rec.Lines))
	}

	var expenses, debtTxs, bills int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM expenses").Scan(&expenses); err != nil {
		t.Fatal(err)
	}
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM debt_transactions").Scan(&debtTxs); err != nil {
		t.Fatal(err)
	}
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM waiter_bills").Scan(&bills); err != nil {
		t.Fatal(err)
	}
	if expenses != 1 || debtTxs != 1 || bills != 1 {
		t.Errorf("fan-out rows = (%d, %d, %d), want (1, 1, 1)", expenses, debtTxs, bills)
	}

	// Both tills and the counted cash landed as inflows, plus one more from
	// the "other" line; the expense added the lone outflow.
	var inflows, outflows int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM cash_movements WHERE type = 'inflow'").Scan(&inflows); err != nil {
		t.Fatal(err)
	}
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM cash_movements WHERE type = 'outflow'").Scan(&outflows); err != nil {
		t.Fatal(err)
	}
	if inflows != 4 || outflows != 1 {
		t.Errorf("movements = (%d in, %d out), want (4, 1)", inflows, outflows)
	}

	var cashInflow decimal.Decimal
	err = pool.QueryRow(ctx,
		"SELECT amount FROM cash_movements WHERE source = 'Cash On Hand'").Scan(&cashInflow)
	if err != nil {
		t.Fatalf("cash on hand inflow missing: %v", err)
	}
	if !cashInflow.Equal(decimal.NewFromInt(160000)) {
		t.Errorf("cash on hand inflow = %s, want 160000", cashInflow)
	}
}

func TestPostReconciliation_BackdatedLandsOnBusinessDate(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	recs := core.NewReconciliationService(pool)
	cash := core.NewCashService(pool)
	ctx := context.Background()

	yesterday := today().AddDate(0, 0, -1)
	_, err := recs.Post(ctx, core.ReconciliationInput{
		Date:       yesterday,
		TillTotals: []core.TillTotal{{Source: "Main till", Amount: decimal.NewFromInt(50000)}},
		CashOnHand: decimal.NewFromInt(20000),
		Actor:      "owner",
		Lines: []core.ReconciliationLineInput{
			{Kind: core.LineKindExpense, Description: "late delivery", Amount: decimal.NewFromInt(5000)},
		},
	})
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	summary, err := recs.Summary(ctx, yesterday)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if !summary.TotalInflows.Equal(decimal.NewFromInt(70000)) {
		t.Errorf("inflows on business date = %s, want 70000", summary.TotalInflows)
	}
	if !summary.TotalOutflows.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("outflows on business date = %s, want 5000", summary.TotalOutflows)
	}

	// Nothing leaked onto the posting day.
	todaySummary, err := cash.Summary(ctx, today())
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if len(todaySummary.Movements) != 0 {
		t.Errorf("movements on posting day = %d, want 0", len(todaySummary.Movements))
	}

	expenses, err := cash.ListExpenses(ctx, yesterday)
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if len(expenses) != 1 {
		t.Errorf("expenses on business date = %d, want 1", len(expenses))
	}
}

func TestPostReconciliation_RejectsNegativeAmounts(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	recs := core.NewReconciliationService(pool)
	ctx := context.Background()

	_, err := recs.Post(ctx, core.ReconciliationInput{
		Date:       today(),
		TillTotals: []core.TillTotal{{Source: "Main till", Amount: decimal.NewFromInt(-100)}},
		Actor:      "owner",
	})
	if core.KindOf(err) != core.KindValidation {
		t.Fatalf("expected Validation for negative till, got %v", err)
	}

	_, err = recs.Post(ctx, core.ReconciliationInput{
		Date:  today(),
		Actor: "owner",
		Lines: []core.ReconciliationLineInput{
			{Kind: core.LineKindOther, Description: "typo", Amount: decimal.NewFromInt(-500)},
		},
	})
	if core.KindOf(err) != core.KindValidation {
		t.Fatalf("expected Validation for negative line, got %v", err)
	}

	var recCount int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM reconciliations").Scan(&recCount); err != nil {
		t.Fatal(err)
	}
	if recCount != 0 {
		t.Errorf("reconciliations after rejected posts = %d, want 0", recCount)
	}
}

func TestPostReconciliation_RollsBackOnBadLine(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	recs := core.NewReconciliationService(pool)
	ctx := context.Background()

	missing := 9999
	_, err := recs.Post(ctx, core.ReconciliationInput{
		Date:       today(),
		TillTotals: []core.TillTotal{{Source: "Main till", Amount: decimal.NewFromInt(100000)}},
		Actor:      "owner",
		Lines: []core.ReconciliationLineInput{
			{Kind: core.LineKindDebtor, Description: "ghost", Amount: decimal.NewFromInt(1000), DebtorID: &missing},
		},
	})
	if core.KindOf(err) != core.KindNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}

	var recCount, moveCount int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM reconciliations").Scan(&recCount); err != nil {
		t.Fatal(err)
	}
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM cash_movements").Scan(&moveCount); err != nil {
		t.Fatal(err)
	}
	if recCount != 0 || moveCount != 0 {
		t.Errorf("rows after failed post = (%d recs, %d movements), want (0, 0)", recCount, moveCount)
	}
}

func TestReconciliationSummary_ComparesCloseRevenue(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	closes := core.NewDailyCloseService(pool)
	recs := core.NewReconciliationService(pool)
	ctx := context.Background()

	// 6 units of product 1 sold at 3000 = 18000 expected.
	if _, err := closes.CloseDay(ctx, []core.CloseItem{{ProductID: 1, ClosingStock: 4}}, "closer"); err != nil {
		t.Fatalf("CloseDay failed: %v", err)
	}
	if _, err := recs.Post(ctx, core.ReconciliationInput{
		Date:       today(),
		TillTotals: []core.TillTotal{{Source: "Main till", Amount: decimal.NewFromInt(17000)}},
		Actor:      "owner",
	}); err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	summary, err := recs.Summary(ctx, today())
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if !summary.ExpectedRevenue.Equal(decimal.NewFromInt(18000)) {
		t.Errorf("expected revenue = %s, want 18000", summary.ExpectedRevenue)
	}
	if !summary.TotalInflows.Equal(decimal.NewFromInt(17000)) {
		t.Errorf("inflows = %s, want 17000", summary.TotalInflows)
	}
	if !summary.Variance.Equal(decimal.NewFromInt(-1000)) {
		t.Errorf("variance = %s, want -1000", summary.Variance)
	}
}

func TestSettleWaiterBill_Once(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	recs := core.NewReconciliationService(pool)
	ctx := context.Background()

	waiterID := 1
	if _, err := recs.Post(ctx, core.ReconciliationInput{
		Date:  today(),
		Actor: "owner",
		Lines: []core.ReconciliationLineInput{
			{Kind: core.LineKindWaiter, Description: "missing float", Amount: decimal.NewFromInt(2500), WaiterID: &waiterID},
		},
	}); err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	bills, err := recs.ListWaiterBills(ctx, waiterID, true)
	if err != nil {
		t.Fatalf("ListWaiterBills failed: %v", err)
	}
	if len(bills) != 1 {
		t.Fatalf("unsettled bills = %d, want 1", len(bills))
	}

	settled, err := recs.SettleWaiterBill(ctx, bills[0].ID)
	if err != nil {
		t.Fatalf("SettleWaiterBill failed: %v", err)
	}
	if !settled.IsSettled || settled.SettledDate == nil {
		t.Error("bill not marked settled")
	}

	_, err = recs.SettleWaiterBill(ctx, bills[0].ID)
	if core.KindOf(err) != core.KindConflict {
		t.Fatalf("expected Conflict on second settle, got %v", err)
	}
}
