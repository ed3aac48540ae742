package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// adjustmentWindow is how long after a sale or daily close corrections are
// still accepted. Past the window the record is immutable.
const adjustmentWindow = 3 * 24 * time.Hour

// SellInput is the request for a point-of-sale transaction.
type SellInput struct {
	ProductID int
	Quantity  int
	SaleType  SaleType
	// DebtorID is required when SaleType is debt.
	DebtorID *int
	Actor    string
}

// SaleAdjustmentInput corrects a recorded sale's financial figures.
type SaleAdjustmentInput struct {
	PriceDelta    decimal.Decimal
	CostDelta     decimal.Decimal
	QuantityDelta int
	Reason        string
	Actor         string
}

// SaleService records sales and their append-only corrections.
type SaleService interface {
	// Sell snapshots the product's current prices into an immutable Sale row,
	// decrements stock, and for debt sales creates the linked DebtTransaction.
	// All writes commit as one unit.
	Sell(ctx context.Context, input SellInput) (*Sale, error)
	// GetSale returns the sale with adjusted totals (base + non-voided deltas).
	GetSale(ctx context.Context, id int) (*Sale, error)
	ListSalesByDate(ctx context.Context, date time.Time) ([]Sale, error)
	// AdjustSale appends a correction with before-values. Fails with Locked
	// once the sale is older than the adjustment window.
	AdjustSale(ctx context.Context, saleID int, input SaleAdjustmentInput) (*SaleAdjustment, error)
	VoidSaleAdjustment(ctx context.Context, adjustmentID int, actor string) error
	ListSaleAdjustments(ctx context.Context, saleID int) ([]SaleAdjustment, error)
}

type saleService struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewSaleService(pool *pgxpool.Pool) SaleService {
	return &saleService{pool: pool, now: time.Now}
}

func (s *saleService) Sell(ctx context.Context, input SellInput) (*Sale, error) {
	if input.Quantity <= 0 {
		return nil, Errorf(KindValidation, "quantity must be a positive integer, got %d", input.Quantity)
	}
	if input.SaleType != SaleTypeCash && input.SaleType != SaleTypeDebt {
		return nil, Errorf(KindValidation, "sale_type must be %q or %q", SaleTypeCash, SaleTypeDebt)
	}
	if input.Actor == "" {
		return nil, Errorf(KindValidation, "actor is required")
	}
	if input.SaleType == SaleTypeDebt && input.DebtorID == nil {
		return nil, Errorf(KindValidation, "debtor_id is required for debt sales")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin sale: %w", err)
	}
	defer tx.Rollback(ctx)

	product, err := lockProductTx(ctx, tx, input.ProductID)
	if err != nil {
		return nil, err
	}

	qty := decimal.NewFromInt(int64(input.Quantity))
	sale := &Sale{
		ProductID:  product.ID,
		Quantity:   input.Quantity,
		TotalPrice: product.UnitPrice.Mul(qty),
		TotalCost:  product.CostPrice.Mul(qty),
		SaleType:   input.SaleType,
		IssuedBy:   input.Actor,
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO sales (product_id, quantity, total_price, total_cost, sale_type, issued_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, date
	`, sale.ProductID, sale.Quantity, sale.TotalPrice, sale.TotalCost, sale.SaleType, sale.IssuedBy).
		Scan(&sale.ID, &sale.Date)
	if err != nil {
		return nil, translatePg(err, "insert sale")
	}

	if _, err := applyStockTx(ctx, tx, product, -input.Quantity); err != nil {
		return nil, err
	}

	if input.SaleType == SaleTypeDebt {
		_, err := createDebtTransactionTx(ctx, tx, *input.DebtorID, sale.TotalPrice,
			fmt.Sprintf("Sale #%d", sale.ID), input.Actor, &sale.ID)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, translatePg(err, "commit sale")
	}

	sale.AdjustedQuantity = sale.Quantity
	sale.AdjustedTotalPrice = sale.TotalPrice
	sale.AdjustedTotalCost = sale.TotalCost
	return sale, nil
}

func (s *saleService) GetSale(ctx context.Context, id int) (*Sale, error) {
	sale := &Sale{}
	err := s.pool.QueryRow(ctx, `
		SELECT s.id, s.product_id, s.quantity, s.total_price, s.total_cost, s.sale_type, s.issued_by, s.date,
		       s.quantity    + COALESCE(SUM(a.quantity_delta) FILTER (WHERE NOT a.is_voided), 0),
		       s.total_price + COALESCE(SUM(a.price_delta)    FILTER (WHERE NOT a.is_voided), 0),
		       s.total_cost  + COALESCE(SUM(a.cost_delta)     FILTER (WHERE NOT a.is_voided), 0)
		FROM sales s
		LEFT JOIN sale_adjustments a ON a.sale_id = s.id
		WHERE s.id = $1
		GROUP BY s.id
	`, id).Scan(
		&sale.ID, &sale.ProductID, &sale.Quantity, &sale.TotalPrice, &sale.TotalCost,
		&sale.SaleType, &sale.IssuedBy, &sale.Date,
		&sale.AdjustedQuantity, &sale.AdjustedTotalPrice, &sale.AdjustedTotalCost,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Errorf(KindNotFound, "sale %d not found", id)
		}
		return nil, fmt.Errorf("fetch sale %d: %w", id, err)
	}
	return sale, nil
}

func (s *saleService) ListSalesByDate(ctx context.Context, date time.Time) ([]Sale, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, product_id, quantity, total_price, total_cost, sale_type, issued_by, date
		FROM sales
		WHERE date::date = $1::date
		ORDER BY date
	`, date)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	var sales []Sale
	for rows.Next() {
		var sale Sale
		if err := rows.Scan(&sale.ID, &sale.ProductID, &sale.Quantity, &sale.TotalPrice,
			&sale.TotalCost, &sale.SaleType, &sale.IssuedBy, &sale.Date); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func (s *saleService) AdjustSale(ctx context.Context, saleID int, input SaleAdjustmentInput) (*SaleAdjustment, error) {
	if input.Reason == "" {
		return nil, Errorf(KindValidation, "reason is required")
	}
	if input.Actor == "" {
		return nil, Errorf(KindValidation, "actor is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin sale adjustment: %w", err)
	}
	defer tx.Rollback(ctx)

	var saleDate time.Time
	var totalPrice, totalCost decimal.Decimal
	var quantity int
	err = tx.QueryRow(ctx, `
		SELECT date, total_price, total_cost, quantity FROM sales WHERE id = $1 FOR UPDATE
	`, saleID).Scan(&saleDate, &totalPrice, &totalCost, &quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Errorf(KindNotFound, "sale %d not found", saleID)
		}
		return nil, fmt.Errorf("fetch sale %d: %w", saleID, err)
	}

	if s.now().After(saleDate.Add(adjustmentWindow)) {
		return nil, Errorf(KindLocked, "sale %d is locked: adjustment window of 3 days has elapsed", saleID)
	}

	adj := &SaleAdjustment{
		SaleID:             saleID,
		PriceDelta:         input.PriceDelta,
		CostDelta:          input.CostDelta,
		QuantityDelta:      input.QuantityDelta,
		PreviousTotalPrice: totalPrice,
		PreviousTotalCost:  totalCost,
		PreviousQuantity:   quantity,
		Reason:             input.Reason,
		CreatedBy:          input.Actor,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO sale_adjustments (sale_id, price_delta, cost_delta, quantity_delta,
		                              previous_total_price, previous_total_cost, previous_quantity,
		                              reason, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`, adj.SaleID, adj.PriceDelta, adj.CostDelta, adj.QuantityDelta,
		adj.PreviousTotalPrice, adj.PreviousTotalCost, adj.PreviousQuantity,
		adj.Reason, adj.CreatedBy).Scan(&adj.ID, &adj.CreatedAt)
	if err != nil {
		return nil, translatePg(err, "insert sale adjustment")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit sale adjustment: %w", err)
	}
	return adj, nil
}

func (s *saleService) VoidSaleAdjustment(ctx context.Context, adjustmentID int, actor string) error {
	if actor == "" {
		return Errorf(KindValidation, "actor is required")
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE sale_adjustments SET is_voided = TRUE WHERE id = $1 AND NOT is_voided
	`, adjustmentID)
	if err != nil {
		return fmt.Errorf("void sale adjustment %d: %w", adjustmentID, err)
	}
	if tag.RowsAffected() == 0 {
		return Errorf(KindNotFound, "sale adjustment %d not found or already voided", adjustmentID)
	}
	return nil
}

func (s *saleService) ListSaleAdjustments(ctx context.Context, saleID int) ([]SaleAdjustment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, sale_id, price_delta, cost_delta, quantity_delta,
		       previous_total_price, previous_total_cost, previous_quantity,
		       reason, created_by, created_at, is_voided
		FROM sale_adjustments
		WHERE sale_id = $1
		ORDER BY created_at DESC
	`, saleID)
	if err != nil {
		return nil, fmt.Errorf("list sale adjustments: %w", err)
	}
	defer rows.Close()

	var adjustments []SaleAdjustment
	for rows.Next() {
		var a SaleAdjustment
		if err := rows.Scan(&a.ID, &a.SaleID, &a.PriceDelta, &a.CostDelta, &a.QuantityDelta,
			&a.PreviousTotalPrice, &a.PreviousTotalCost, &a.PreviousQuantity,
			&a.Reason, &a.CreatedBy, &a.CreatedAt, &a.IsVoided); err != nil {
			return nil, fmt.Errorf("scan sale adjustment: %w", err)
		}
		adjustments = append(adjustments, a)
	}
	return adjustments, rows.Err()
}
