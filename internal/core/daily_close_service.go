package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// CloseItem is one product's counted closing stock in a close request.
type CloseItem struct {
	ProductID    int
	ClosingStock int
}

// CloseDayResult summarizes an end-of-day close batch.
type CloseDayResult struct {
	Closes       []DailyClose    `json:"closes"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalProfit  decimal.Decimal `json:"total_profit"`
	SalesPosted  int             `json:"sales_posted"`
}

// DailyCloseService reconciles counted closing stock against tracked opening
// stock and owns the time-boxed correction flow.
type DailyCloseService interface {
	// CloseDay processes all items atomically: units sold are computed from the
	// product's current stock, revenue and profit are booked, a cash Sale row
	// is synthesized per product with sold > 0, and the counted closing stock
	// becomes the product's new baseline. A second close for the same product
	// and date fails with DuplicateClose; any item failure rolls back the batch.
	CloseDay(ctx context.Context, items []CloseItem, actor string) (*CloseDayResult, error)
	// AdjustClose corrects a close's figures within the adjustment window,
	// moving stock opposite to the sold-quantity correction and appending an
	// immutable audit row. Fails with Locked once the window has elapsed.
	AdjustClose(ctx context.Context, dailyCloseID, newClosingStock int, reason, actor string) (*DailyCloseAdjustment, error)
	GetDailyClose(ctx context.Context, id int) (*DailyClose, error)
	ListAdjustments(ctx context.Context, dailyCloseID int) ([]DailyCloseAdjustment, error)
	ListClosesByDate(ctx context.Context, date time.Time) ([]DailyClose, error)
}

type dailyCloseService struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewDailyCloseService(pool *pgxpool.Pool) DailyCloseService {
	return &dailyCloseService{pool: pool, now: time.Now}
}

func (s *dailyCloseService) CloseDay(ctx context.Context, items []CloseItem, actor string) (*CloseDayResult, error) {
	if len(items) == 0 {
		return nil, Errorf(KindValidation, "no items provided")
	}
	if actor == "" {
		return nil, Errorf(KindValidation, "actor is required")
	}
	seen := make(map[int]bool, len(items))
	for _, item := range items {
		if item.ClosingStock < 0 {
			return nil, Errorf(KindValidation, "closing stock for product %d cannot be negative", item.ProductID)
		}
		if seen[item.ProductID] {
			return nil, Errorf(KindValidation, "product %d appears twice in close request", item.ProductID)
		}
		seen[item.ProductID] = true
	}

	// Lock product rows in a fixed order so two concurrent batches with
	// overlapping products cannot deadlock.
	items = append([]CloseItem(nil), items...)
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin daily close: %w", err)
	}
	defer tx.Rollback(ctx)

	result := &CloseDayResult{}
	for _, item := range items {
		product, err := lockProductTx(ctx, tx, item.ProductID)
		if err != nil {
			return nil, err
		}

		openingStock := product.Stock
		sold := openingStock - item.ClosingStock
		if sold < 0 {
			return nil, Errorf(KindValidation,
				"closing stock for %q (%d) cannot exceed opening stock (%d)",
				product.Name, item.ClosingStock, openingStock)
		}

		soldDec := decimal.NewFromInt(int64(sold))
		revenue := product.UnitPrice.Mul(soldDec)
		profit := product.UnitPrice.Sub(product.CostPrice).Mul(soldDec)

		dc := DailyClose{
			ProductID:    product.ID,
			OpeningStock: openingStock,
			ClosingStock: item.ClosingStock,
			UnitsSold:    sold,
			Revenue:      revenue,
			Profit:       profit,
			ProcessedBy:  actor,
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO daily_closes (product_id, opening_stock, closing_stock, units_sold, revenue, profit, processed_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, close_date, created_at
		`, dc.ProductID, dc.OpeningStock, dc.ClosingStock, dc.UnitsSold, dc.Revenue, dc.Profit, dc.ProcessedBy).
			Scan(&dc.ID, &dc.CloseDate, &dc.CreatedAt)
		if err != nil {
			return nil, translatePg(err, fmt.Sprintf("close product %q", product.Name))
		}

		// The day's computed cash sales get an explicit Sale row so per-sale
		// reports and the close agree on what was sold.
		if sold > 0 {
			_, err := tx.Exec(ctx, `
				INSERT INTO sales (product_id, quantity, total_price, total_cost, sale_type, issued_by)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, product.ID, sold, revenue, product.CostPrice.Mul(soldDec), SaleTypeCash, actor)
			if err != nil {
				return nil, translatePg(err, "insert close sale")
			}
			result.SalesPosted++
		}

		if err := setStockTx(ctx, tx, product, item.ClosingStock); err != nil {
			return nil, err
		}

		result.Closes = append(result.Closes, dc)
		result.TotalRevenue = result.TotalRevenue.Add(revenue)
		result.TotalProfit = result.TotalProfit.Add(profit)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, translatePg(err, "commit daily close")
	}
	return result, nil
}

func (s *dailyCloseService) AdjustClose(ctx context.Context, dailyCloseID, newClosingStock int, reason, actor string) (*DailyCloseAdjustment, error) {
	if newClosingStock < 0 {
		return nil, Errorf(KindValidation, "new closing stock cannot be negative")
	}
	if reason == "" {
		return nil, Errorf(KindValidation, "reason is required")
	}
	if actor == "" {
		return nil, Errorf(KindValidation, "actor is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin close adjustment: %w", err)
	}
	defer tx.Rollback(ctx)

	var productID, previousClosing int
	var closeDate time.Time
	err = tx.QueryRow(ctx, `
		SELECT product_id, closing_stock, close_date
		FROM daily_closes WHERE id = $1
		FOR UPDATE
	`, dailyCloseID).Scan(&productID, &previousClosing, &closeDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Errorf(KindNotFound, "daily close %d not found", dailyCloseID)
		}
		return nil, fmt.Errorf("fetch daily close %d: %w", dailyCloseID, err)
	}

	// Pure wall-clock lock: the close date (midnight) plus the window.
	if s.now().After(closeDate.Add(adjustmentWindow)) {
		return nil, Errorf(KindLocked, "daily close %d is locked: adjustment window of 3 days has elapsed", dailyCloseID)
	}

	product, err := lockProductTx(ctx, tx, productID)
	if err != nil {
		return nil, err
	}

	// Positive delta means more was actually sold than first recorded.
	quantityDelta := previousClosing - newClosingStock
	deltaDec := decimal.NewFromInt(int64(quantityDelta))
	revenueDelta := product.UnitPrice.Mul(deltaDec)
	profitDelta := product.UnitPrice.Sub(product.CostPrice).Mul(deltaDec)

	// Stock moves opposite to the sold-quantity correction: if more was sold,
	// the extra units must leave the ledger now.
	if _, err := applyStockTx(ctx, tx, product, -quantityDelta); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE daily_closes
		SET closing_stock = $1,
		    units_sold    = units_sold + $2,
		    revenue       = revenue + $3,
		    profit        = profit + $4
		WHERE id = $5
	`, newClosingStock, quantityDelta, revenueDelta, profitDelta, dailyCloseID)
	if err != nil {
		return nil, translatePg(err, "update daily close totals")
	}

	adj := &DailyCloseAdjustment{
		DailyCloseID:         dailyCloseID,
		PreviousClosingStock: previousClosing,
		NewClosingStock:      newClosingStock,
		QuantityDelta:        quantityDelta,
		RevenueDelta:         revenueDelta,
		ProfitDelta:          profitDelta,
		Reason:               reason,
		CreatedBy:            actor,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO daily_close_adjustments (daily_close_id, previous_closing_stock, new_closing_stock,
		                                     quantity_delta, revenue_delta, profit_delta, reason, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, adj.DailyCloseID, adj.PreviousClosingStock, adj.NewClosingStock,
		adj.QuantityDelta, adj.RevenueDelta, adj.ProfitDelta, adj.Reason, adj.CreatedBy).
		Scan(&adj.ID, &adj.CreatedAt)
	if err != nil {
		return nil, translatePg(err, "insert close adjustment")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, translatePg(err, "commit close adjustment")
	}
	return adj, nil
}

func (s *dailyCloseService) GetDailyClose(ctx context.Context, id int) (*DailyClose, error) {
	dc := &DailyClose{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, product_id, close_date, opening_stock, closing_stock, units_sold, revenue, profit, processed_by, created_at
		FROM daily_closes WHERE id = $1
	`, id).Scan(&dc.ID, &dc.ProductID, &dc.CloseDate, &dc.OpeningStock, &dc.ClosingStock,
		&dc.UnitsSold, &dc.Revenue, &dc.Profit, &dc.ProcessedBy, &dc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Errorf(KindNotFound, "daily close %d not found", id)
		}
		return nil, fmt.Errorf("fetch daily close %d: %w", id, err)
	}
	return dc, nil
}

func (s *dailyCloseService) ListAdjustments(ctx context.Context, dailyCloseID int) ([]DailyCloseAdjustment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, daily_close_id, previous_closing_stock, new_closing_stock,
		       quantity_delta, revenue_delta, profit_delta, reason, created_by, created_at
		FROM daily_close_adjustments
		WHERE daily_close_id = $1
		ORDER BY created_at DESC
	`, dailyCloseID)
	if err != nil {
		return nil, fmt.Errorf("list close adjustments: %w", err)
	}
	defer rows.Close()

	var adjustments []DailyCloseAdjustment
	for rows.Next() {
		var a DailyCloseAdjustment
		if err := rows.Scan(&a.ID, &a.DailyCloseID, &a.PreviousClosingStock, &a.NewClosingStock,
			&a.QuantityDelta, &a.RevenueDelta, &a.ProfitDelta, &a.Reason, &a.CreatedBy, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan close adjustment: %w", err)
		}
		adjustments = append(adjustments, a)
	}
	return adjustments, rows.Err()
}

func (s *dailyCloseService) ListClosesByDate(ctx context.Context, date time.Time) ([]DailyClose, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, product_id, close_date, opening_stock, closing_stock, units_sold, revenue, profit, processed_by, created_at
		FROM daily_closes
		WHERE close_date = $1::date
		ORDER BY id
	`, date)
	if err != nil {
		return nil, fmt.Errorf("list daily closes: %w", err)
	}
	defer rows.Close()

	var closes []DailyClose
	for rows.Next() {
		var dc DailyClose
		if err := rows.Scan(&dc.ID, &dc.ProductID, &dc.CloseDate, &dc.OpeningStock, &dc.ClosingStock,
			&dc.UnitsSold, &dc.Revenue, &dc.Profit, &dc.ProcessedBy, &dc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan daily close: %w", err)
		}
		closes = append(closes, dc)
	}
	return closes, rows.Err()
}
