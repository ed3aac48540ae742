package core_test

import (
	"context"
	"testing"

	"backbar/internal/core"

	"github.com/shopspring/decimal"
)

func TestCloseDay_BooksRevenueAndResetsBaseline(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	closes := core.NewDailyCloseService(pool)
	ctx := context.Background()

	// Product 1 opens at 10; counting 4 left means 6 sold.
	result, err := closes.CloseDay(ctx, []core.CloseItem{
		{ProductID: 1, ClosingStock: 4},
	}, "closer")
	if err != nil {
		t.Fatalf("CloseDay failed: %v", err)
	}
	if len(result.Closes) != 1 {
		t.Fatalf("closes = %d, want 1", len(result.Closes))
	}

	dc := result.Closes[0]
	if dc.UnitsSold != 6 {
		t.Errorf("units sold = %d, want 6", dc.UnitsSold)
	}
	if !dc.Revenue.Equal(decimal.NewFromInt(18000)) {
		t.Errorf("revenue = %s, want 18000", dc.Revenue)
	}
	if !dc.Profit.Equal(decimal.NewFromInt(6000)) {
		t.Errorf("profit = %s, want 6000", dc.Profit)
	}

	var stock int
	if err := pool.QueryRow(ctx, "SELECT stock FROM products WHERE id = 1").Scan(&stock); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	if stock != 4 {
		t.Errorf("stock after close = %d, want counted 4", stock)
	}

	// The computed sale was posted as a cash sale row.
	var qty int
	var saleType string
	err = pool.QueryRow(ctx, "SELECT quantity, sale_type FROM sales WHERE product_id = 1").Scan(&qty, &saleType)
	if err != nil {
		t.Fatalf("read synthesized sale: %v", err)
	}
	if qty != 6 || saleType != "cash" {
		t.Errorf("synthesized sale = (%d, %s), want (6, cash)", qty, saleType)
	}
	if result.SalesPosted != 1 {
		t.Errorf("sales posted = %d, want 1", result.SalesPosted)
	}
}

func TestCloseDay_DuplicateCloseRejected(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	closes := core.NewDailyCloseService(pool)
	ctx := context.Background()

	if _, err := closes.CloseDay(ctx, []core.CloseItem{{ProductID: 1, ClosingStock: 8}}, "closer"); err != nil {
		t.Fatalf("first close failed: %v", err)
	}
	_, err := closes.CloseDay(ctx, []core.CloseItem{{ProductID: 1, ClosingStock: 7}}, "closer")
	if core.KindOf(err) != core.KindDuplicateClose {
		t.Fatalf("expected DuplicateClose, got %v", err)
	}
}

func TestCloseDay_BatchRollsBackOnBadItem(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	closes := core.NewDailyCloseService(pool)
	ctx := context.Background()

	// Second item counts more than opening stock; the whole batch must fail.
	_, err := closes.CloseDay(ctx, []core.CloseItem{
		{ProductID: 1, ClosingStock: 5},
		{ProductID: 2, ClosingStock: 99},
	}, "closer")
	if core.KindOf(err) != core.KindValidation {
		t.Fatalf("expected Validation, got %v", err)
	}

	var count, stock int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM daily_closes").Scan(&count); err != nil {
		t.Fatalf("count closes: %v", err)
	}
	if count != 0 {
		t.Errorf("closes persisted after failed batch = %d, want 0", count)
	}
	if err := pool.QueryRow(ctx, "SELECT stock FROM products WHERE id = 1").Scan(&stock); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	if stock != 10 {
		t.Errorf("stock after failed batch = %d, want untouched 10", stock)
	}
}

func TestCloseDay_ItemOrderDoesNotMatter(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	closes := core.NewDailyCloseService(pool)
	ctx := context.Background()

	// Items arrive in descending product order; locks are still taken in a
	// fixed order and both closes land.
	result, err := closes.CloseDay(ctx, []core.CloseItem{
		{ProductID: 3, ClosingStock: 1},
		{ProductID: 1, ClosingStock: 8},
	}, "closer")
	if err != nil {
		t.Fatalf("CloseDay failed: %v", err)
	}
	if len(result.Closes) != 2 {
		t.Fatalf("closes = %d, want 2", len(result.Closes))
	}

	var stock1, stock3 int
	if err := pool.QueryRow(ctx, "SELECT stock FROM products WHERE id = 1").Scan(&stock1); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	if err := pool.QueryRow(ctx, "SELECT stock FROM products WHERE id = 3").Scan(&stock3); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	if stock1 != 8 || stock3 != 1 {
		t.Errorf("stocks after close = (%d, %d), want (8, 1)", stock1, stock3)
	}
}

func TestAdjustClose_MovesStockInversely(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	closes := core.NewDailyCloseService(pool)
	ctx := context.Background()

	result, err := closes.CloseDay(ctx, []core.CloseItem{{ProductID: 1, ClosingStock: 4}}, "closer")
	if err != nil {
		t.Fatalf("CloseDay failed: %v", err)
	}
	dc := result.Closes[0]

	// Recount finds only 2 left: 2 more were sold than recorded, so 2 units
	// leave the stock ledger.
	adj, err := closes.AdjustClose(ctx, dc.ID, 2, "recount found fewer bottles", "manager")
	if err != nil {
		t.Fatalf("AdjustClose failed: %v", err)
	}
	if adj.QuantityDelta != 2 {
		t.Errorf("quantity delta = %d, want 2", adj.QuantityDelta)
	}
	if !adj.RevenueDelta.Equal(decimal.NewFromInt(6000)) {
		t.Errorf("revenue delta = %s, want 6000", adj.RevenueDelta)
	}

	var stock int
	if err := pool.QueryRow(ctx, "SELECT stock FROM products WHERE id = 1").Scan(&stock); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	if stock != 2 {
		t.Errorf("stock after adjustment = %d, want 2", stock)
	}

	got, err := closes.GetDailyClose(ctx, dc.ID)
	if err != nil {
		t.Fatalf("GetDailyClose failed: %v", err)
	}
	if got.UnitsSold != 8 {
		t.Errorf("units sold after adjustment = %d, want 8", got.UnitsSold)
	}
	if !got.Revenue.Equal(decimal.NewFromInt(24000)) {
		t.Errorf("revenue after adjustment = %s, want 24000", got.Revenue)
	}

	adjs, err := closes.ListAdjustments(ctx, dc.ID)
	if err != nil {
		t.Fatalf("ListAdjustments failed: %v", err)
	}
	if len(adjs) != 1 {
		t.Errorf("audit rows = %d, want 1", len(adjs))
	}
}

func TestAdjustClose_UndersoldCorrectionReturnsStock(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	closes := core.NewDailyCloseService(pool)
	ctx := context.Background()

	result, err := closes.CloseDay(ctx, []core.CloseItem{{ProductID: 1, ClosingStock: 4}}, "closer")
	if err != nil {
		t.Fatalf("CloseDay failed: %v", err)
	}

	// Recount finds 6: two fewer were sold, so 2 units come back.
	adj, err := closes.AdjustClose(ctx, result.Closes[0].ID, 6, "two bottles were misplaced, not sold", "manager")
	if err != nil {
		t.Fatalf("AdjustClose failed: %v", err)
	}
	if adj.QuantityDelta != -2 {
		t.Errorf("quantity delta = %d, want -2", adj.QuantityDelta)
	}

	var stock int
	if err := pool.QueryRow(ctx, "SELECT stock FROM products WHERE id = 1").Scan(&stock); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	if stock != 6 {
		t.Errorf("stock after adjustment = %d, want 6", stock)
	}
}

func TestAdjustClose_LockedAfterWindow(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	closes := core.NewDailyCloseService(pool)
	ctx := context.Background()

	result, err := closes.CloseDay(ctx, []core.CloseItem{{ProductID: 1, ClosingStock: 4}}, "closer")
	if err != nil {
		t.Fatalf("CloseDay failed: %v", err)
	}
	dc := result.Closes[0]

	if _, err := pool.Exec(ctx,
		"UPDATE daily_closes SET close_date = CURRENT_DATE - INTERVAL '4 days' WHERE id = $1", dc.ID); err != nil {
		t.Fatalf("backdate close: %v", err)
	}

	_, err = closes.AdjustClose(ctx, dc.ID, 3, "late recount", "manager")
	if core.KindOf(err) != core.KindLocked {
		t.Fatalf("expected Locked, got %v", err)
	}
}
