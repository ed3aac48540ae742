package core_test

import (
	"context"
	"testing"

	"backbar/internal/core"

	"github.com/shopspring/decimal"
)

func TestRecordPurchase_IncreasesStockAndCost(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	purchases := core.NewPurchaseService(pool)
	ctx := context.Background()

	p, err := purchases.RecordPurchase(ctx, core.PurchaseInput{
		SupplierID: 1,
		ProductID:  1,
		Quantity:   12,
		UnitCost:   decimal.NewFromInt(2200),
	})
	if err != nil {
		t.Fatalf("RecordPurchase failed: %v", err)
	}
	if !p.TotalCost.Equal(decimal.NewFromInt(26400)) {
		t.Errorf("total cost = %s, want 26400", p.TotalCost)
	}

	var stock int
	var costPrice decimal.Decimal
	if err := pool.QueryRow(ctx, "SELECT stock, cost_price FROM products WHERE id = 1").Scan(&stock, &costPrice); err != nil {
		t.Fatalf("read product: %v", err)
	}
	if stock != 22 {
		t.Errorf("stock = %d, want 22", stock)
	}
	if !costPrice.Equal(decimal.NewFromInt(2200)) {
		t.Errorf("cost price = %s, want updated 2200", costPrice)
	}
}

func TestUndoPurchase_ReversesOnce(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	purchases := core.NewPurchaseService(pool)
	ctx := context.Background()

	p, err := purchases.RecordPurchase(ctx, core.PurchaseInput{
		SupplierID: 1, ProductID: 1, Quantity: 12, UnitCost: decimal.NewFromInt(2200),
	})
	if err != nil {
		t.Fatalf("RecordPurchase failed: %v", err)
	}

	log, err := purchases.UndoPurchase(ctx, p.ID, "wrong delivery booked", "manager")
	if err != nil {
		t.Fatalf("UndoPurchase failed: %v", err)
	}
	if log.QuantityReversed != 12 {
		t.Errorf("quantity reversed = %d, want 12", log.QuantityReversed)
	}

	var stock int
	if err := pool.QueryRow(ctx, "SELECT stock FROM products WHERE id = 1").Scan(&stock); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	if stock != 10 {
		t.Errorf("stock after undo = %d, want restored 10", stock)
	}

	_, err = purchases.UndoPurchase(ctx, p.ID, "again", "manager")
	if core.KindOf(err) != core.KindConflict {
		t.Fatalf("expected Conflict on second undo, got %v", err)
	}
}

func TestUndoPurchase_BlockedWhenStockDrained(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	purchases := core.NewPurchaseService(pool)
	sales := core.NewSaleService(pool)
	ctx := context.Background()

	p, err := purchases.RecordPurchase(ctx, core.PurchaseInput{
		SupplierID: 1, ProductID: 1, Quantity: 12, UnitCost: decimal.NewFromInt(2200),
	})
	if err != nil {
		t.Fatalf("RecordPurchase failed: %v", err)
	}

	// Sell most of it so undoing the full receipt would go negative.
	if _, err := sales.Sell(ctx, core.SellInput{
		ProductID: 1, Quantity: 15, SaleType: core.SaleTypeCash, Actor: "tester",
	}); err != nil {
		t.Fatalf("Sell failed: %v", err)
	}

	_, err = purchases.UndoPurchase(ctx, p.ID, "too late", "manager")
	if core.KindOf(err) != core.KindInsufficientStock {
		t.Fatalf("expected InsufficientStock, got %v", err)
	}
}

func TestSupplierBalances_Derived(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	purchases := core.NewPurchaseService(pool)
	ctx := context.Background()

	first, err := purchases.RecordPurchase(ctx, core.PurchaseInput{
		SupplierID: 1, ProductID: 1, Quantity: 10, UnitCost: decimal.NewFromInt(2000),
	})
	if err != nil {
		t.Fatalf("RecordPurchase failed: %v", err)
	}
	if _, err := purchases.RecordPurchase(ctx, core.PurchaseInput{
		SupplierID: 1, ProductID: 2, Quantity: 2, UnitCost: decimal.NewFromInt(18000),
	}); err != nil {
		t.Fatalf("RecordPurchase failed: %v", err)
	}
	if _, err := purchases.UndoPurchase(ctx, first.ID, "short delivery", "manager"); err != nil {
		t.Fatalf("UndoPurchase failed: %v", err)
	}
	if err := purchases.RecordSupplierPayment(ctx, 1, decimal.NewFromInt(16000), "owner"); err != nil {
		t.Fatalf("RecordSupplierPayment failed: %v", err)
	}

	sup, err := purchases.GetSupplier(ctx, 1)
	if err != nil {
		t.Fatalf("GetSupplier failed: %v", err)
	}
	// Owed: 20000 + 36000 - 20000 undone = 36000; paid 16000; balance 20000.
	if !sup.TotalOwed.Equal(decimal.NewFromInt(36000)) {
		t.Errorf("total owed = %s, want 36000", sup.TotalOwed)
	}
	if !sup.TotalPaid.Equal(decimal.NewFromInt(16000)) {
		t.Errorf("total paid = %s, want 16000", sup.TotalPaid)
	}
	if !sup.Balance.Equal(decimal.NewFromInt(20000)) {
		t.Errorf("balance = %s, want 20000", sup.Balance)
	}
}
