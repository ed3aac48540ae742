package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PurchaseInput describes one supplier receipt.
type PurchaseInput struct {
	SupplierID int             `json:"supplier_id"`
	ProductID  int             `json:"product_id"`
	Quantity   int             `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
}

// PurchaseService records supplier receipts against the stock ledger and
// tracks what the business owes each supplier. Supplier balances are derived
// sums, never stored counters.
type PurchaseService interface {
	CreateSupplier(ctx context.Context, name, contactPerson, phone string) (*Supplier, error)
	ListSuppliers(ctx context.Context) ([]Supplier, error)
	GetSupplier(ctx context.Context, id int) (*Supplier, error)
	// RecordPurchase increases the product's stock by the received quantity and
	// updates its cost price to the receipt's unit cost.
	RecordPurchase(ctx context.Context, input PurchaseInput) (*Purchase, error)
	// UndoPurchase reverses whatever quantity of the purchase has not already
	// been reversed, removing it from stock and appending an undo log row.
	UndoPurchase(ctx context.Context, purchaseID int, reason, actor string) (*PurchaseUndoLog, error)
	RecordSupplierPayment(ctx context.Context, supplierID int, amount decimal.Decimal, paidBy string) error
	ListPurchases(ctx context.Context, supplierID int) ([]Purchase, error)
}

type purchaseService struct {
	pool *pgxpool.Pool
}

func NewPurchaseService(pool *pgxpool.Pool) PurchaseService {
	return &purchaseService{pool: pool}
}

func (s *purchaseService) CreateSupplier(ctx context.Context, name, contactPerson, phone string) (*Supplier, error) {
	if name == "" {
		return nil, Errorf(KindValidation, "supplier name is required")
	}
	sup := &Supplier{
		TotalOwed: decimal.Zero,
		TotalPaid: decimal.Zero,
		Balance:   decimal.Zero,
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO suppliers (name, contact_person, phone) VALUES ($1, $2, $3)
		RETURNING id, name, contact_person, phone
	`, name, contactPerson, phone).Scan(&sup.ID, &sup.Name, &sup.ContactPerson, &sup.Phone)
	if err != nil {
		return nil, translatePg(err, fmt.Sprintf("create supplier %q", name))
	}
	return sup, nil
}

// supplierBalanceQuery derives owed and paid totals per supplier. Owed is the
// purchase sum minus everything reversed through undo logs.
const supplierBalanceQuery = `
	SELECT s.id, s.name, s.contact_person, s.phone,
	       COALESCE(o.owed, 0) - COALESCE(u.undone, 0) AS total_owed,
	       COALESCE(pay.paid, 0) AS total_paid
	FROM suppliers s
	LEFT JOIN (
		SELECT supplier_id, SUM(total_cost) AS owed FROM purchases GROUP BY supplier_id
	) o ON o.supplier_id = s.id
	LEFT JOIN (
		SELECT p.supplier_id, SUM(ul.total_cost) AS undone
		FROM purchase_undo_logs ul JOIN purchases p ON p.id = ul.purchase_id
		GROUP BY p.supplier_id
	) u ON u.supplier_id = s.id
	LEFT JOIN (
		SELECT supplier_id, SUM(amount) AS paid FROM supplier_payments GROUP BY supplier_id
	) pay ON pay.supplier_id = s.id
`

func (s *purchaseService) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := s.pool.Query(ctx, supplierBalanceQuery+" ORDER BY s.name")
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		var sup Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.ContactPerson, &sup.Phone,
			&sup.TotalOwed, &sup.TotalPaid); err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		sup.Balance = sup.TotalOwed.Sub(sup.TotalPaid)
		suppliers = append(suppliers, sup)
	}
	return suppliers, rows.Err()
}

func (s *purchaseService) GetSupplier(ctx context.Context, id int) (*Supplier, error) {
	sup := &Supplier{}
	err := s.pool.QueryRow(ctx, supplierBalanceQuery+" WHERE s.id = $1", id).
		Scan(&sup.ID, &sup.Name, &sup.ContactPerson, &sup.Phone, &sup.TotalOwed, &sup.TotalPaid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Errorf(KindNotFound, "supplier %d not found", id)
		}
		return nil, fmt.Errorf("fetch supplier %d: %w", id, err)
	}
	sup.Balance = sup.TotalOwed.Sub(sup.TotalPaid)
	return sup, nil
}

func (s *purchaseService) RecordPurchase(ctx context.Context, input PurchaseInput) (*Purchase, error) {
	if input.Quantity <= 0 {
		return nil, Errorf(KindValidation, "purchase quantity must be positive, got %d", input.Quantity)
	}
	if input.UnitCost.LessThanOrEqual(decimal.Zero) {
		return nil, Errorf(KindValidation, "unit cost must be positive, got %s", input.UnitCost)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin purchase: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM suppliers WHERE id = $1)", input.SupplierID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check supplier %d: %w", input.SupplierID, err)
	}
	if !exists {
		return nil, Errorf(KindNotFound, "supplier %d not found", input.SupplierID)
	}

	product, err := lockProductTx(ctx, tx, input.ProductID)
	if err != nil {
		return nil, err
	}

	totalCost := input.UnitCost.Mul(decimal.NewFromInt(int64(input.Quantity)))
	purchase := &Purchase{
		SupplierID: input.SupplierID,
		ProductID:  input.ProductID,
		Quantity:   input.Quantity,
		UnitCost:   input.UnitCost,
		TotalCost:  totalCost,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO purchases (supplier_id, product_id, quantity, unit_cost, total_cost)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, purchase_date
	`, input.SupplierID, input.ProductID, input.Quantity, input.UnitCost, totalCost).
		Scan(&purchase.ID, &purchase.PurchaseDate)
	if err != nil {
		return nil, translatePg(err, "insert purchase")
	}

	if _, err := applyStockTx(ctx, tx, product, input.Quantity); err != nil {
		return nil, err
	}
	// The latest receipt cost becomes the product's cost price.
	if _, err := tx.Exec(ctx, "UPDATE products SET cost_price = $1 WHERE id = $2",
		input.UnitCost, input.ProductID); err != nil {
		return nil, fmt.Errorf("update cost price for product %d: %w", input.ProductID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, translatePg(err, "commit purchase")
	}
	return purchase, nil
}

func (s *purchaseService) UndoPurchase(ctx context.Context, purchaseID int, reason, actor string) (*PurchaseUndoLog, error) {
	if reason == "" {
		return nil, Errorf(KindValidation, "undo reason is required")
	}
	if actor == "" {
		return nil, Errorf(KindValidation, "actor is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin purchase undo: %w", err)
	}
	defer tx.Rollback(ctx)

	var purchase Purchase
	err = tx.QueryRow(ctx, `
		SELECT id, supplier_id, product_id, quantity, unit_cost, total_cost, purchase_date
		FROM purchases WHERE id = $1 FOR UPDATE
	`, purchaseID).Scan(&purchase.ID, &purchase.SupplierID, &purchase.ProductID,
		&purchase.Quantity, &purchase.UnitCost, &purchase.TotalCost, &purchase.PurchaseDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Errorf(KindNotFound, "purchase %d not found", purchaseID)
		}
		return nil, fmt.Errorf("fetch purchase %d: %w", purchaseID, err)
	}

	var alreadyReversed int
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity_reversed), 0) FROM purchase_undo_logs WHERE purchase_id = $1
	`, purchaseID).Scan(&alreadyReversed)
	if err != nil {
		return nil, fmt.Errorf("sum undo logs for purchase %d: %w", purchaseID, err)
	}

	remaining := purchase.Quantity - alreadyReversed
	if remaining <= 0 {
		return nil, Errorf(KindConflict, "purchase %d is already fully undone", purchaseID)
	}

	if _, err := adjustStockTx(ctx, tx, purchase.ProductID, -remaining); err != nil {
		return nil, err
	}

	reversedCost := purchase.UnitCost.Mul(decimal.NewFromInt(int64(remaining)))
	log := &PurchaseUndoLog{
		PurchaseID:       purchaseID,
		ProductID:        purchase.ProductID,
		QuantityReversed: remaining,
		TotalCost:        reversedCost,
		Reason:           reason,
		UndoneBy:         actor,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO purchase_undo_logs (purchase_id, product_id, quantity_reversed, total_cost, reason, undone_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, purchaseID, purchase.ProductID, remaining, reversedCost, reason, actor).
		Scan(&log.ID, &log.CreatedAt)
	if err != nil {
		return nil, translatePg(err, "insert purchase undo log")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, translatePg(err, "commit purchase undo")
	}
	return log, nil
}

func (s *purchaseService) RecordSupplierPayment(ctx context.Context, supplierID int, amount decimal.Decimal, paidBy string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return Errorf(KindValidation, "payment amount must be positive, got %s", amount)
	}
	if paidBy == "" {
		return Errorf(KindValidation, "paid_by is required")
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM suppliers WHERE id = $1)", supplierID).Scan(&exists); err != nil {
		return fmt.Errorf("check supplier %d: %w", supplierID, err)
	}
	if !exists {
		return Errorf(KindNotFound, "supplier %d not found", supplierID)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO supplier_payments (supplier_id, amount, paid_by) VALUES ($1, $2, $3)
	`, supplierID, amount, paidBy)
	if err != nil {
		return translatePg(err, "insert supplier payment")
	}
	return nil
}

func (s *purchaseService) ListPurchases(ctx context.Context, supplierID int) ([]Purchase, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, supplier_id, product_id, quantity, unit_cost, total_cost, purchase_date
		FROM purchases
		WHERE ($1 = 0 OR supplier_id = $1)
		ORDER BY purchase_date DESC, id DESC
	`, supplierID)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	var purchases []Purchase
	for rows.Next() {
		var p Purchase
		if err := rows.Scan(&p.ID, &p.SupplierID, &p.ProductID, &p.Quantity,
			&p.UnitCost, &p.TotalCost, &p.PurchaseDate); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}
