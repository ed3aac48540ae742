package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ── Report types ──────────────────────────────────────────────────────────────

// DailySummary is the one-page view of a business date: sales split by type,
// close results, expenses, and the net cash position. Everything here is
// derived; nothing is stored.
type DailySummary struct {
	Date            time.Time       `json:"date"`
	CashSales       decimal.Decimal `json:"cash_sales"`
	DebtSales       decimal.Decimal `json:"debt_sales"`
	SalesCount      int             `json:"sales_count"`
	CloseRevenue    decimal.Decimal `json:"close_revenue"`
	CloseProfit     decimal.Decimal `json:"close_profit"`
	ProductsClosed  int             `json:"products_closed"`
	TotalExpenses   decimal.Decimal `json:"total_expenses"`
	CashInflows     decimal.Decimal `json:"cash_inflows"`
	CashOutflows    decimal.Decimal `json:"cash_outflows"`
	NetCashPosition decimal.Decimal `json:"net_cash_position"`
}

// PurchaseReportLine aggregates one supplier's receipts over the period.
type PurchaseReportLine struct {
	SupplierID    int             `json:"supplier_id"`
	SupplierName  string          `json:"supplier_name"`
	PurchaseCount int             `json:"purchase_count"`
	TotalQuantity int             `json:"total_quantity"`
	TotalCost     decimal.Decimal `json:"total_cost"`
}

// PurchaseReport covers supplier receipts between two dates, inclusive.
type PurchaseReport struct {
	From       time.Time            `json:"from"`
	To         time.Time            `json:"to"`
	Lines      []PurchaseReportLine `json:"lines"`
	GrandTotal decimal.Decimal      `json:"grand_total"`
}

// ── Interface ─────────────────────────────────────────────────────────────────

// ReportingService provides read-only aggregate queries over the ledgers.
type ReportingService interface {
	GetDailySummary(ctx context.Context, date time.Time) (*DailySummary, error)
	GetPurchaseReport(ctx context.Context, from, to time.Time) (*PurchaseReport, error)
}

type reportingService struct {
	pool *pgxpool.Pool
}

func NewReportingService(pool *pgxpool.Pool) ReportingService {
	return &reportingService{pool: pool}
}

func (s *reportingService) GetDailySummary(ctx context.Context, date time.Time) (*DailySummary, error) {
	summary := &DailySummary{Date: date}

	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_price) FILTER (WHERE sale_type = 'cash'), 0),
		       COALESCE(SUM(total_price) FILTER (WHERE sale_type = 'debt'), 0),
		       COUNT(*)
		FROM sales WHERE date::date = $1
	`, date).Scan(&summary.CashSales, &summary.DebtSales, &summary.SalesCount)
	if err != nil {
		return nil, fmt.Errorf("aggregate sales for %s: %w", date.Format("2006-01-02"), err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(revenue), 0), COALESCE(SUM(profit), 0), COUNT(*)
		FROM daily_closes WHERE close_date = $1
	`, date).Scan(&summary.CloseRevenue, &summary.CloseProfit, &summary.ProductsClosed)
	if err != nil {
		return nil, fmt.Errorf("aggregate closes for %s: %w", date.Format("2006-01-02"), err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM expenses WHERE date = $1
	`, date).Scan(&summary.TotalExpenses)
	if err != nil {
		return nil, fmt.Errorf("aggregate expenses: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount) FILTER (WHERE type = 'inflow'), 0),
		       COALESCE(SUM(amount) FILTER (WHERE type = 'outflow'), 0)
		FROM cash_movements WHERE date = $1
	`, date).Scan(&summary.CashInflows, &summary.CashOutflows)
	if err != nil {
		return nil, fmt.Errorf("aggregate cash movements: %w", err)
	}

	summary.NetCashPosition = summary.CashInflows.Sub(summary.CashOutflows)
	return summary, nil
}

func (s *reportingService) GetPurchaseReport(ctx context.Context, from, to time.Time) (*PurchaseReport, error) {
	if to.Before(from) {
		return nil, Errorf(KindValidation, "report range end precedes start")
	}

	rows, err := s.pool.Query(ctx, `
		SELECT s.id, s.name, COUNT(p.id), COALESCE(SUM(p.quantity), 0), COALESCE(SUM(p.total_cost), 0)
		FROM suppliers s
		JOIN purchases p ON p.supplier_id = s.id
		WHERE p.purchase_date >= $1 AND p.purchase_date <= $2
		GROUP BY s.id
		ORDER BY SUM(p.total_cost) DESC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("aggregate purchases: %w", err)
	}
	defer rows.Close()

	report := &PurchaseReport{From: from, To: to, GrandTotal: decimal.Zero}
	for rows.Next() {
		var line PurchaseReportLine
		if err := rows.Scan(&line.SupplierID, &line.SupplierName, &line.PurchaseCount,
			&line.TotalQuantity, &line.TotalCost); err != nil {
			return nil, fmt.Errorf("scan purchase report line: %w", err)
		}
		report.GrandTotal = report.GrandTotal.Add(line.TotalCost)
		report.Lines = append(report.Lines, line)
	}
	return report, rows.Err()
}
