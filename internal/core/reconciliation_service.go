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

// ReconciliationLineInput is one correction line posted with a reconciliation.
type ReconciliationLineInput struct {
	Kind        ReconciliationLineKind `json:"kind"`
	Description string                 `json:"description"`
	Amount      decimal.Decimal        `json:"amount"`
	DebtorID    *int                   `json:"debtor_id,omitempty"`
	WaiterID    *int                   `json:"waiter_id,omitempty"`
}

// ReconciliationInput is a full end-of-day posting: counted till totals plus
// any correction lines discovered while counting.
type ReconciliationInput struct {
	Date       time.Time                 `json:"date"`
	TillTotals []TillTotal               `json:"till_totals"`
	CashOnHand decimal.Decimal           `json:"cash_on_hand"`
	Notes      string                    `json:"notes"`
	Actor      string                    `json:"actor"`
	Lines      []ReconciliationLineInput `json:"lines"`
}

// ReconciliationSummary compares expected revenue against the cash ledger for
// one business date.
type ReconciliationSummary struct {
	Date            time.Time       `json:"date"`
	ExpectedRevenue decimal.Decimal `json:"expected_revenue"`
	TotalInflows    decimal.Decimal `json:"total_inflows"`
	TotalOutflows   decimal.Decimal `json:"total_outflows"`
	NetCash         decimal.Decimal `json:"net_cash"`
	Variance        decimal.Decimal `json:"variance"`
}

// ReconciliationService posts end-of-day reconciliations. Each correction
// line dispatches into the ledger that owns its kind, all inside a single
// transaction, so a reconciliation either lands completely or not at all.
type ReconciliationService interface {
	Post(ctx context.Context, input ReconciliationInput) (*Reconciliation, error)
	Get(ctx context.Context, id int) (*Reconciliation, error)
	List(ctx context.Context, from, to time.Time) ([]Reconciliation, error)
	Summary(ctx context.Context, date time.Time) (*ReconciliationSummary, error)
	CreateWaiter(ctx context.Context, name string, dailySalary decimal.Decimal) (*Waiter, error)
	ListWaiters(ctx context.Context) ([]Waiter, error)
	ListWaiterBills(ctx context.Context, waiterID int, unsettledOnly bool) ([]WaiterBill, error)
	SettleWaiterBill(ctx context.Context, billID int) (*WaiterBill, error)
}

type reconciliationService struct {
	pool *pgxpool.Pool
}

func NewReconciliationService(pool *pgxpool.Pool) ReconciliationService {
	return &reconciliationService{pool: pool}
}

func (s *reconciliationService) Post(ctx context.Context, input ReconciliationInput) (*Reconciliation, error) {
	if input.Actor == "" {
		return nil, Errorf(KindValidation, "actor is required")
	}
	if input.Date.IsZero() {
		return nil, Errorf(KindValidation, "reconciliation date is required")
	}
	if input.CashOnHand.IsNegative() {
		return nil, Errorf(KindValidation, "cash on hand cannot be negative")
	}
	for _, till := range input.TillTotals {
		if till.Amount.IsNegative() {
			return nil, Errorf(KindValidation, "till %q amount cannot be negative", till.Source)
		}
	}
	for i, line := range input.Lines {
		// Negative lines are refused rather than silently skipped so a
		// mistyped amount fails the batch instead of vanishing.
		if line.Amount.IsNegative() {
			return nil, Errorf(KindValidation, "line %d: amount cannot be negative", i)
		}
		switch line.Kind {
		case LineKindSale, LineKindExpense, LineKindOther:
		case LineKindDebtor:
			if line.DebtorID == nil {
				return nil, Errorf(KindValidation, "line %d: debtor lines require debtor_id", i)
			}
		case LineKindWaiter:
			if line.WaiterID == nil {
				return nil, Errorf(KindValidation, "line %d: waiter lines require waiter_id", i)
			}
		default:
			return nil, Errorf(KindValidation, "line %d: unknown line kind %q", i, line.Kind)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin reconciliation: %w", err)
	}
	defer tx.Rollback(ctx)

	rec := &Reconciliation{
		Date:       input.Date,
		TillTotals: input.TillTotals,
		CashOnHand: input.CashOnHand,
		Notes:      input.Notes,
		CreatedBy:  input.Actor,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO reconciliations (date, cash_on_hand, notes, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, input.Date, input.CashOnHand, input.Notes, input.Actor).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return nil, translatePg(err, "insert reconciliation")
	}

	for _, till := range input.TillTotals {
		if till.Amount.IsZero() {
			continue
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO reconciliation_tills (reconciliation_id, source, amount)
			VALUES ($1, $2, $3)
		`, rec.ID, till.Source, till.Amount); err != nil {
			return nil, translatePg(err, "insert reconciliation till")
		}
		_, err := recordMovementTx(ctx, tx, MovementInput{
			Date:        input.Date,
			Source:      till.Source,
			Type:        MovementInflow,
			Amount:      till.Amount,
			Description: fmt.Sprintf("Till total for %s", input.Date.Format("2006-01-02")),
			Reference:   fmt.Sprintf("reconciliation:%d", rec.ID),
			RecordedBy:  input.Actor,
		})
		if err != nil {
			return nil, err
		}
	}

	// The counted cash is an inflow like the tills, so the day's net cash
	// covers everything that was physically in the drawer.
	if input.CashOnHand.IsPositive() {
		_, err := recordMovementTx(ctx, tx, MovementInput{
			Date:        input.Date,
			Source:      "Cash On Hand",
			Type:        MovementInflow,
			Amount:      input.CashOnHand,
			Description: fmt.Sprintf("Cash counted for %s", input.Date.Format("2006-01-02")),
			Reference:   fmt.Sprintf("reconciliation:%d", rec.ID),
			RecordedBy:  input.Actor,
		})
		if err != nil {
			return nil, err
		}
	}

	for _, line := range input.Lines {
		// Zero-amount lines carry no value; skip them before fan-out.
		if line.Amount.IsZero() {
			continue
		}
		if err := s.dispatchLineTx(ctx, tx, rec.ID, line, input.Date, input.Actor); err != nil {
			return nil, err
		}
		persisted := ReconciliationLine{
			ReconciliationID: rec.ID,
			Kind:             line.Kind,
			Description:      line.Description,
			Amount:           line.Amount,
			DebtorID:         line.DebtorID,
			WaiterID:         line.WaiterID,
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO reconciliation_lines (reconciliation_id, kind, description, amount, debtor_id, waiter_id)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at
		`, rec.ID, line.Kind, line.Description, line.Amount, line.DebtorID, line.WaiterID).
			Scan(&persisted.ID, &persisted.CreatedAt)
		if err != nil {
			return nil, translatePg(err, "insert reconciliation line")
		}
		rec.Lines = append(rec.Lines, persisted)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, translatePg(err, "commit reconciliation")
	}
	return rec, nil
}

// dispatchLineTx routes one correction line into the ledger that owns it.
// Ledger writes carry the reconciliation's business date, not the server date.
func (s *reconciliationService) dispatchLineTx(ctx context.Context, tx pgx.Tx, recID int, line ReconciliationLineInput, date time.Time, actor string) error {
	ref := fmt.Sprintf("reconciliation:%d", recID)
	switch line.Kind {
	case LineKindExpense:
		_, err := recordExpenseTx(ctx, tx, ExpenseInput{
			Date:        date,
			Category:    "Reconciliation",
			Description: line.Description,
			Amount:      line.Amount,
			Actor:       actor,
		})
		return err
	case LineKindDebtor:
		_, err := createDebtTransactionTx(ctx, tx, *line.DebtorID, line.Amount, line.Description, actor, nil)
		return err
	case LineKindWaiter:
		var exists bool
		if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM waiters WHERE id = $1)", *line.WaiterID).Scan(&exists); err != nil {
			return fmt.Errorf("check waiter %d: %w", *line.WaiterID, err)
		}
		if !exists {
			return Errorf(KindNotFound, "waiter %d not found", *line.WaiterID)
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO waiter_bills (waiter_id, total_amount, description)
			VALUES ($1, $2, $3)
		`, *line.WaiterID, line.Amount, line.Description)
		if err != nil {
			return translatePg(err, "insert waiter bill")
		}
		return nil
	case LineKindSale, LineKindOther:
		source := "Reconciliation sale"
		if line.Kind == LineKindOther {
			source = "Reconciliation other"
		}
		_, err := recordMovementTx(ctx, tx, MovementInput{
			Date:        date,
			Source:      source,
			Type:        MovementInflow,
			Amount:      line.Amount,
			Description: line.Description,
			Reference:   ref,
			RecordedBy:  actor,
		})
		return err
	}
	return Errorf(KindValidation, "unknown line kind %q", line.Kind)
}

func (s *reconciliationService) Get(ctx context.Context, id int) (*Reconciliation, error) {
	rec := &Reconciliation{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, date, cash_on_hand, notes, created_by, created_at
		FROM reconciliations WHERE id = $1
	`, id).Scan(&rec.ID, &rec.Date, &rec.CashOnHand, &rec.Notes, &rec.CreatedBy, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Errorf(KindNotFound, "reconciliation %d not found", id)
		}
		return nil, fmt.Errorf("fetch reconciliation %d: %w", id, err)
	}

	tillRows, err := s.pool.Query(ctx, `
		SELECT source, amount FROM reconciliation_tills WHERE reconciliation_id = $1 ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list reconciliation tills: %w", err)
	}
	defer tillRows.Close()
	for tillRows.Next() {
		var t TillTotal
		if err := tillRows.Scan(&t.Source, &t.Amount); err != nil {
			return nil, fmt.Errorf("scan reconciliation till: %w", err)
		}
		rec.TillTotals = append(rec.TillTotals, t)
	}
	if err := tillRows.Err(); err != nil {
		return nil, err
	}

	lineRows, err := s.pool.Query(ctx, `
		SELECT id, reconciliation_id, kind, description, amount, debtor_id, waiter_id, created_at
		FROM reconciliation_lines WHERE reconciliation_id = $1 ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list reconciliation lines: %w", err)
	}
	defer lineRows.Close()
	for lineRows.Next() {
		var l ReconciliationLine
		if err := lineRows.Scan(&l.ID, &l.ReconciliationID, &l.Kind, &l.Description,
			&l.Amount, &l.DebtorID, &l.WaiterID, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reconciliation line: %w", err)
		}
		rec.Lines = append(rec.Lines, l)
	}
	return rec, lineRows.Err()
}

func (s *reconciliationService) List(ctx context.Context, from, to time.Time) ([]Reconciliation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, date, cash_on_hand, notes, created_by, created_at
		FROM reconciliations
		WHERE date >= $1 AND date <= $2
		ORDER BY date DESC, id DESC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list reconciliations: %w", err)
	}
	defer rows.Close()

	var recs []Reconciliation
	for rows.Next() {
		var rec Reconciliation
		if err := rows.Scan(&rec.ID, &rec.Date, &rec.CashOnHand, &rec.Notes,
			&rec.CreatedBy, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reconciliation: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Summary derives expected revenue from the day's closes and compares it with
// the cash ledger. Revenue comes from daily_closes only; the synthesized close
// sales are deliberately not double-counted.
func (s *reconciliationService) Summary(ctx context.Context, date time.Time) (*ReconciliationSummary, error) {
	summary := &ReconciliationSummary{Date: date}
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(revenue), 0) FROM daily_closes WHERE close_date = $1
	`, date).Scan(&summary.ExpectedRevenue)
	if err != nil {
		return nil, fmt.Errorf("sum close revenue: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount) FILTER (WHERE type = 'inflow'), 0),
		       COALESCE(SUM(amount) FILTER (WHERE type = 'outflow'), 0)
		FROM cash_movements WHERE date = $1
	`, date).Scan(&summary.TotalInflows, &summary.TotalOutflows)
	if err != nil {
		return nil, fmt.Errorf("sum cash movements: %w", err)
	}

	summary.NetCash = summary.TotalInflows.Sub(summary.TotalOutflows)
	summary.Variance = summary.NetCash.Sub(summary.ExpectedRevenue)
	return summary, nil
}

func (s *reconciliationService) CreateWaiter(ctx context.Context, name string, dailySalary decimal.Decimal) (*Waiter, error) {
	if name == "" {
		return nil, Errorf(KindValidation, "waiter name is required")
	}
	if dailySalary.IsNegative() {
		return nil, Errorf(KindValidation, "daily salary cannot be negative")
	}
	w := &Waiter{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO waiters (name, daily_salary) VALUES ($1, $2)
		RETURNING id, name, daily_salary
	`, name, dailySalary).Scan(&w.ID, &w.Name, &w.DailySalary)
	if err != nil {
		return nil, translatePg(err, fmt.Sprintf("create waiter %q", name))
	}
	return w, nil
}

func (s *reconciliationService) ListWaiters(ctx context.Context) ([]Waiter, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, name, daily_salary FROM waiters ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list waiters: %w", err)
	}
	defer rows.Close()

	var waiters []Waiter
	for rows.Next() {
		var w Waiter
		if err := rows.Scan(&w.ID, &w.Name, &w.DailySalary); err != nil {
			return nil, fmt.Errorf("scan waiter: %w", err)
		}
		waiters = append(waiters, w)
	}
	return waiters, rows.Err()
}

func (s *reconciliationService) ListWaiterBills(ctx context.Context, waiterID int, unsettledOnly bool) ([]WaiterBill, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, waiter_id, bill_date, total_amount, description, is_settled, settled_date
		FROM waiter_bills
		WHERE ($1 = 0 OR waiter_id = $1) AND (NOT $2 OR NOT is_settled)
		ORDER BY bill_date DESC, id DESC
	`, waiterID, unsettledOnly)
	if err != nil {
		return nil, fmt.Errorf("list waiter bills: %w", err)
	}
	defer rows.Close()

	var bills []WaiterBill
	for rows.Next() {
		var b WaiterBill
		if err := rows.Scan(&b.ID, &b.WaiterID, &b.BillDate, &b.TotalAmount,
			&b.Description, &b.IsSettled, &b.SettledDate); err != nil {
			return nil, fmt.Errorf("scan waiter bill: %w", err)
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

func (s *reconciliationService) SettleWaiterBill(ctx context.Context, billID int) (*WaiterBill, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin bill settlement: %w", err)
	}
	defer tx.Rollback(ctx)

	b := &WaiterBill{}
	err = tx.QueryRow(ctx, `
		SELECT id, waiter_id, bill_date, total_amount, description, is_settled, settled_date
		FROM waiter_bills WHERE id = $1 FOR UPDATE
	`, billID).Scan(&b.ID, &b.WaiterID, &b.BillDate, &b.TotalAmount,
		&b.Description, &b.IsSettled, &b.SettledDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Errorf(KindNotFound, "waiter bill %d not found", billID)
		}
		return nil, fmt.Errorf("fetch waiter bill %d: %w", billID, err)
	}
	if b.IsSettled {
		return nil, Errorf(KindConflict, "waiter bill %d is already settled", billID)
	}

	err = tx.QueryRow(ctx, `
		UPDATE waiter_bills SET is_settled = TRUE, settled_date = CURRENT_DATE WHERE id = $1
		RETURNING is_settled, settled_date
	`, billID).Scan(&b.IsSettled, &b.SettledDate)
	if err != nil {
		return nil, fmt.Errorf("settle waiter bill %d: %w", billID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, translatePg(err, "commit bill settlement")
	}
	return b, nil
}
