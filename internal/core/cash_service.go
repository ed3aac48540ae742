package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// MovementInput describes one cash ledger entry. A zero Date means the
// movement belongs to today; reconciliations pass their business date so
// backdated postings land on the day being reconciled.
type MovementInput struct {
	Date        time.Time       `json:"date"`
	Source      string          `json:"source"`
	Type        MovementType    `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Reference   string          `json:"reference"`
	RecordedBy  string          `json:"recorded_by"`
}

// ExpenseInput describes an operating expense. Recording one always writes a
// matching outflow movement in the same transaction.
type ExpenseInput struct {
	Date        time.Time       `json:"date"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Actor       string          `json:"actor"`
}

// CashSummary aggregates one day's movements.
type CashSummary struct {
	Date          time.Time       `json:"date"`
	TotalInflows  decimal.Decimal `json:"total_inflows"`
	TotalOutflows decimal.Decimal `json:"total_outflows"`
	NetCash       decimal.Decimal `json:"net_cash"`
	Movements     []CashMovement  `json:"movements"`
}

// CashService owns the append-only cash movement ledger and the expense log.
type CashService interface {
	RecordMovement(ctx context.Context, input MovementInput) (*CashMovement, error)
	ListMovements(ctx context.Context, date time.Time) ([]CashMovement, error)
	Summary(ctx context.Context, date time.Time) (*CashSummary, error)
	RecordExpense(ctx context.Context, input ExpenseInput) (*Expense, error)
	ListExpenses(ctx context.Context, date time.Time) ([]Expense, error)
}

type cashService struct {
	pool *pgxpool.Pool
}

func NewCashService(pool *pgxpool.Pool) CashService {
	return &cashService{pool: pool}
}

func validateMovement(input MovementInput) error {
	if input.Type != MovementInflow && input.Type != MovementOutflow {
		return Errorf(KindValidation, "movement type must be inflow or outflow, got %q", input.Type)
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return Errorf(KindValidation, "movement amount must be positive, got %s", input.Amount)
	}
	if input.Source == "" {
		return Errorf(KindValidation, "movement source is required")
	}
	if input.RecordedBy == "" {
		return Errorf(KindValidation, "recorded_by is required")
	}
	return nil
}

func (s *cashService) RecordMovement(ctx context.Context, input MovementInput) (*CashMovement, error) {
	if err := validateMovement(input); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin cash movement: %w", err)
	}
	defer tx.Rollback(ctx)

	m, err := recordMovementTx(ctx, tx, input)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, translatePg(err, "commit cash movement")
	}
	return m, nil
}

func (s *cashService) ListMovements(ctx context.Context, date time.Time) ([]CashMovement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, date, source, type, amount, description, reference, recorded_by
		FROM cash_movements WHERE date = $1 ORDER BY id
	`, date)
	if err != nil {
		return nil, fmt.Errorf("list cash movements: %w", err)
	}
	defer rows.Close()
	return scanMovements(rows)
}

func (s *cashService) Summary(ctx context.Context, date time.Time) (*CashSummary, error) {
	movements, err := s.ListMovements(ctx, date)
	if err != nil {
		return nil, err
	}
	summary := &CashSummary{
		Date:          date,
		TotalInflows:  decimal.Zero,
		TotalOutflows: decimal.Zero,
		Movements:     movements,
	}
	for _, m := range movements {
		if m.Type == MovementInflow {
			summary.TotalInflows = summary.TotalInflows.Add(m.Amount)
		} else {
			summary.TotalOutflows = summary.TotalOutflows.Add(m.Amount)
		}
	}
	summary.NetCash = summary.TotalInflows.Sub(summary.TotalOutflows)
	return summary, nil
}

func (s *cashService) RecordExpense(ctx context.Context, input ExpenseInput) (*Expense, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin expense: %w", err)
	}
	defer tx.Rollback(ctx)

	e, err := recordExpenseTx(ctx, tx, input)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, translatePg(err, "commit expense")
	}
	return e, nil
}

func (s *cashService) ListExpenses(ctx context.Context, date time.Time) ([]Expense, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, date, category, description, amount, created_by, created_at
		FROM expenses WHERE date = $1 ORDER BY id
	`, date)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []Expense
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.Date, &e.Category, &e.Description,
			&e.Amount, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// recordMovementTx inserts one ledger entry inside the caller's transaction.
func recordMovementTx(ctx context.Context, tx pgx.Tx, input MovementInput) (*CashMovement, error) {
	if err := validateMovement(input); err != nil {
		return nil, err
	}
	day := input.Date
	if day.IsZero() {
		day = time.Now()
	}
	m := &CashMovement{
		Source:      input.Source,
		Type:        input.Type,
		Amount:      input.Amount,
		Description: input.Description,
		Reference:   input.Reference,
		RecordedBy:  input.RecordedBy,
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO cash_movements (date, source, type, amount, description, reference, recorded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, date
	`, day, input.Source, input.Type, input.Amount, input.Description, input.Reference, input.RecordedBy).
		Scan(&m.ID, &m.Date)
	if err != nil {
		return nil, translatePg(err, "insert cash movement")
	}
	return m, nil
}

// recordExpenseTx writes the expense and its matching outflow movement in one
// transaction so the two ledgers cannot diverge. Shared with the
// reconciliation expense line fan-out.
func recordExpenseTx(ctx context.Context, tx pgx.Tx, input ExpenseInput) (*Expense, error) {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, Errorf(KindValidation, "expense amount must be positive, got %s", input.Amount)
	}
	if input.Actor == "" {
		return nil, Errorf(KindValidation, "actor is required")
	}

	day := input.Date
	if day.IsZero() {
		day = time.Now()
	}
	e := &Expense{
		Category:    input.Category,
		Description: input.Description,
		Amount:      input.Amount,
		CreatedBy:   input.Actor,
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO expenses (date, category, description, amount, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, date, created_at
	`, day, input.Category, input.Description, input.Amount, input.Actor).
		Scan(&e.ID, &e.Date, &e.CreatedAt)
	if err != nil {
		return nil, translatePg(err, "insert expense")
	}

	_, err = recordMovementTx(ctx, tx, MovementInput{
		Date:        input.Date,
		Source:      "Expense - " + input.Category,
		Type:        MovementOutflow,
		Amount:      input.Amount,
		Description: input.Description,
		Reference:   fmt.Sprintf("expense:%d", e.ID),
		RecordedBy:  input.Actor,
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func scanMovements(rows pgx.Rows) ([]CashMovement, error) {
	var movements []CashMovement
	for rows.Next() {
		var m CashMovement
		if err := rows.Scan(&m.ID, &m.Date, &m.Source, &m.Type, &m.Amount,
			&m.Description, &m.Reference, &m.RecordedBy); err != nil {
			return nil, fmt.Errorf("scan cash movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}
