package core_test

import (
	"context"
	"sync"
	"testing"

	"backbar/internal/core"

	"github.com/shopspring/decimal"
)

func TestSell_CashSaleDecrementsStock(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	sales := core.NewSaleService(pool)
	products := core.NewProductService(pool)
	ctx := context.Background()

	sale, err := sales.Sell(ctx, core.SellInput{
		ProductID: 1,
		Quantity:  3,
		SaleType:  core.SaleTypeCash,
		Actor:     "tester",
	})
	if err != nil {
		t.Fatalf("Sell failed: %v", err)
	}

	if !sale.TotalPrice.Equal(decimal.NewFromInt(9000)) {
		t.Errorf("total price = %s, want 9000", sale.TotalPrice)
	}
	if !sale.TotalCost.Equal(decimal.NewFromInt(6000)) {
		t.Errorf("total cost = %s, want 6000", sale.TotalCost)
	}

	p, err := products.GetProduct(ctx, 1)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if p.Stock != 7 {
		t.Errorf("stock after sale = %d, want 7", p.Stock)
	}
}

func TestSell_InsufficientStock(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	sales := core.NewSaleService(pool)
	ctx := context.Background()

	_, err := sales.Sell(ctx, core.SellInput{
		ProductID: 1,
		Quantity:  11,
		SaleType:  core.SaleTypeCash,
		Actor:     "tester",
	})
	if core.KindOf(err) != core.KindInsufficientStock {
		t.Fatalf("expected InsufficientStock, got %v", err)
	}

	// The failed sale must leave no trace.
	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM sales").Scan(&count); err != nil {
		t.Fatalf("count sales: %v", err)
	}
	if count != 0 {
		t.Errorf("sales recorded after failed sell = %d, want 0", count)
	}
}

func TestSell_DebtSaleCreatesObligation(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	sales := core.NewSaleService(pool)
	debts := core.NewDebtService(pool)
	ctx := context.Background()

	debtorID := 1
	sale, err := sales.Sell(ctx, core.SellInput{
		ProductID: 1,
		Quantity:  2,
		SaleType:  core.SaleTypeDebt,
		DebtorID:  &debtorID,
		Actor:     "tester",
	})
	if err != nil {
		t.Fatalf("Sell failed: %v", err)
	}

	summary, err := debts.GetDebtorSummary(ctx, debtorID)
	if err != nil {
		t.Fatalf("GetDebtorSummary failed: %v", err)
	}
	if len(summary.Transactions) != 1 {
		t.Fatalf("debt transactions = %d, want 1", len(summary.Transactions))
	}
	tr := summary.Transactions[0]
	if !tr.Amount.Equal(sale.TotalPrice) {
		t.Errorf("debt amount = %s, want %s", tr.Amount, sale.TotalPrice)
	}
	if tr.IsPaid {
		t.Error("new debt transaction marked paid")
	}
	dueDays := tr.DueDate.Sub(tr.IssueDate).Hours() / 24
	if dueDays < 4.9 || dueDays > 5.1 {
		t.Errorf("due date %.1f days after issue, want 5", dueDays)
	}
}

func TestSell_DebtSaleWithoutDebtorFails(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	sales := core.NewSaleService(pool)
	ctx := context.Background()

	_, err := sales.Sell(ctx, core.SellInput{
		ProductID: 1,
		Quantity:  1,
		SaleType:  core.SaleTypeDebt,
		Actor:     "tester",
	})
	if core.KindOf(err) != core.KindValidation {
		t.Fatalf("expected Validation, got %v", err)
	}
}

// Two concurrent sells compete for the last unit; row locking must let
// exactly one through.
func TestSell_ConcurrentLastUnit(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	if _, err := pool.Exec(ctx, "UPDATE products SET stock = 1 WHERE id = 1"); err != nil {
		t.Fatalf("set stock: %v", err)
	}

	sales := core.NewSaleService(pool)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = sales.Sell(ctx, core.SellInput{
				ProductID: 1,
				Quantity:  1,
				SaleType:  core.SaleTypeCash,
				Actor:     "tester",
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if core.KindOf(err) != core.KindInsufficientStock {
			t.Errorf("loser got unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("concurrent sells succeeded = %d, want exactly 1", succeeded)
	}

	var stock int
	if err := pool.QueryRow(ctx, "SELECT stock FROM products WHERE id = 1").Scan(&stock); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	if stock != 0 {
		t.Errorf("final stock = %d, want 0", stock)
	}
}

func TestAdjustSale_WithinWindow(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	sales := core.NewSaleService(pool)
	ctx := context.Background()

	sale, err := sales.Sell(ctx, core.SellInput{
		ProductID: 1, Quantity: 2, SaleType: core.SaleTypeCash, Actor: "tester",
	})
	if err != nil {
		t.Fatalf("Sell failed: %v", err)
	}

	adj, err := sales.AdjustSale(ctx, sale.ID, core.SaleAdjustmentInput{
		PriceDelta: decimal.NewFromInt(-1000),
		Reason:     "discount applied after the fact",
		Actor:      "manager",
	})
	if err != nil {
		t.Fatalf("AdjustSale failed: %v", err)
	}
	if !adj.PreviousTotalPrice.Equal(sale.TotalPrice) {
		t.Errorf("previous total price = %s, want %s", adj.PreviousTotalPrice, sale.TotalPrice)
	}

	got, err := sales.GetSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("GetSale failed: %v", err)
	}
	want := sale.TotalPrice.Sub(decimal.NewFromInt(1000))
	if !got.AdjustedTotalPrice.Equal(want) {
		t.Errorf("adjusted total price = %s, want %s", got.AdjustedTotalPrice, want)
	}
	if !got.TotalPrice.Equal(sale.TotalPrice) {
		t.Errorf("base total price changed to %s", got.TotalPrice)
	}
}

func TestAdjustSale_LockedAfterWindow(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	sales := core.NewSaleService(pool)
	ctx := context.Background()

	sale, err := sales.Sell(ctx, core.SellInput{
		ProductID: 1, Quantity: 1, SaleType: core.SaleTypeCash, Actor: "tester",
	})
	if err != nil {
		t.Fatalf("Sell failed: %v", err)
	}

	// Age the sale past the 3-day window.
	if _, err := pool.Exec(ctx, "UPDATE sales SET date = NOW() - INTERVAL '4 days' WHERE id = $1", sale.ID); err != nil {
		t.Fatalf("backdate sale: %v", err)
	}

	_, err = sales.AdjustSale(ctx, sale.ID, core.SaleAdjustmentInput{
		PriceDelta: decimal.NewFromInt(-500),
		Reason:     "late correction",
		Actor:      "manager",
	})
	if core.KindOf(err) != core.KindLocked {
		t.Fatalf("expected Locked, got %v", err)
	}
}

func TestVoidSaleAdjustment_RestoresTotals(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	sales := core.NewSaleService(pool)
	ctx := context.Background()

	sale, err := sales.Sell(ctx, core.SellInput{
		ProductID: 1, Quantity: 2, SaleType: core.SaleTypeCash, Actor: "tester",
	})
	if err != nil {
		t.Fatalf("Sell failed: %v", err)
	}
	adj, err := sales.AdjustSale(ctx, sale.ID, core.SaleAdjustmentInput{
		PriceDelta: decimal.NewFromInt(-1000),
		Reason:     "entered wrong price",
		Actor:      "manager",
	})
	if err != nil {
		t.Fatalf("AdjustSale failed: %v", err)
	}

	if err := sales.VoidSaleAdjustment(ctx, adj.ID, "manager"); err != nil {
		t.Fatalf("VoidSaleAdjustment failed: %v", err)
	}

	got, err := sales.GetSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("GetSale failed: %v", err)
	}
	if !got.AdjustedTotalPrice.Equal(sale.TotalPrice) {
		t.Errorf("adjusted total after void = %s, want %s", got.AdjustedTotalPrice, sale.TotalPrice)
	}

	// A second void of the same adjustment has nothing left to do.
	err = sales.VoidSaleAdjustment(ctx, adj.ID, "manager")
	if core.KindOf(err) != core.KindNotFound {
		t.Fatalf("expected NotFound on double void, got %v", err)
	}
}
