package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// defaultDebtDueDays is the default payment term on a new debt transaction.
const defaultDebtDueDays = 5

// DebtorSummary is a debtor with derived totals and transaction detail.
type DebtorSummary struct {
	Debtor       Debtor            `json:"debtor"`
	Transactions []DebtTransaction `json:"transactions"`
}

// DebtService tracks per-debtor obligations and payments. All totals are
// derived from child rows at query time; nothing stores a running balance.
type DebtService interface {
	CreateDebtor(ctx context.Context, name, phone string) (*Debtor, error)
	ListDebtors(ctx context.Context) ([]Debtor, error)
	GetDebtorSummary(ctx context.Context, debtorID int) (*DebtorSummary, error)
	// CreateDebtTransaction records a manual obligation (not tied to a sale).
	CreateDebtTransaction(ctx context.Context, debtorID int, amount decimal.Decimal, description, actor string) (*DebtTransaction, error)
	// RecordPayment creates a DebtPayment; the transaction's outstanding amount
	// recomputes from the payment sum. Overpayment is accepted and drives the
	// outstanding amount negative (credit balance).
	RecordPayment(ctx context.Context, transactionID int, amount decimal.Decimal, receivedBy string) (*DebtTransaction, error)
	GetTransaction(ctx context.Context, id int) (*DebtTransaction, error)
}

type debtService struct {
	pool *pgxpool.Pool
}

func NewDebtService(pool *pgxpool.Pool) DebtService {
	return &debtService{pool: pool}
}

func (s *debtService) CreateDebtor(ctx context.Context, name, phone string) (*Debtor, error) {
	if name == "" {
		return nil, Errorf(KindValidation, "debtor name is required")
	}
	d := &Debtor{TotalDebt: decimal.Zero}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO debtors (name, phone) VALUES ($1, $2)
		RETURNING id, name, phone
	`, name, phone).Scan(&d.ID, &d.Name, &d.Phone)
	if err != nil {
		return nil, translatePg(err, fmt.Sprintf("create debtor %q", name))
	}
	return d, nil
}

func (s *debtService) ListDebtors(ctx context.Context) ([]Debtor, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT d.id, d.name, d.phone,
		       COALESCE(SUM(t.amount), 0) - COALESCE(SUM(p.paid), 0) AS total_debt
		FROM debtors d
		LEFT JOIN debt_transactions t ON t.debtor_id = d.id
		LEFT JOIN LATERAL (
			SELECT SUM(amount) AS paid FROM debt_payments WHERE transaction_id = t.id
		) p ON true
		GROUP BY d.id
		ORDER BY d.name
	`)
	if err != nil {
		return nil, fmt.Errorf("list debtors: %w", err)
	}
	defer rows.Close()

	var debtors []Debtor
	for rows.Next() {
		var d Debtor
		if err := rows.Scan(&d.ID, &d.Name, &d.Phone, &d.TotalDebt); err != nil {
			return nil, fmt.Errorf("scan debtor: %w", err)
		}
		debtors = append(debtors, d)
	}
	return debtors, rows.Err()
}

func (s *debtService) GetDebtorSummary(ctx context.Context, debtorID int) (*DebtorSummary, error) {
	summary := &DebtorSummary{}
	err := s.pool.QueryRow(ctx, "SELECT id, name, phone FROM debtors WHERE id = $1", debtorID).
		Scan(&summary.Debtor.ID, &summary.Debtor.Name, &summary.Debtor.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Errorf(KindNotFound, "debtor %d not found", debtorID)
		}
		return nil, fmt.Errorf("fetch debtor %d: %w", debtorID, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT t.id, t.debtor_id, t.amount, t.description, t.issued_by, t.issue_date, t.due_date,
		       COALESCE(SUM(p.amount), 0)
		FROM debt_transactions t
		LEFT JOIN debt_payments p ON p.transaction_id = t.id
		WHERE t.debtor_id = $1
		GROUP BY t.id
		ORDER BY t.issue_date DESC
	`, debtorID)
	if err != nil {
		return nil, fmt.Errorf("list debt transactions: %w", err)
	}
	defer rows.Close()

	summary.Debtor.TotalDebt = decimal.Zero
	for rows.Next() {
		var t DebtTransaction
		if err := rows.Scan(&t.ID, &t.DebtorID, &t.Amount, &t.Description, &t.IssuedBy,
			&t.IssueDate, &t.DueDate, &t.PaidAmount); err != nil {
			return nil, fmt.Errorf("scan debt transaction: %w", err)
		}
		t.OutstandingAmount = t.Amount.Sub(t.PaidAmount)
		t.IsPaid = t.OutstandingAmount.LessThanOrEqual(decimal.Zero)
		summary.Debtor.TotalDebt = summary.Debtor.TotalDebt.Add(t.OutstandingAmount)
		summary.Transactions = append(summary.Transactions, t)
	}
	return summary, rows.Err()
}

func (s *debtService) CreateDebtTransaction(ctx context.Context, debtorID int, amount decimal.Decimal, description, actor string) (*DebtTransaction, error) {
	if actor == "" {
		return nil, Errorf(KindValidation, "actor is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin debt transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	t, err := createDebtTransactionTx(ctx, tx, debtorID, amount, description, actor, nil)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, translatePg(err, "commit debt transaction")
	}
	return t, nil
}

func (s *debtService) RecordPayment(ctx context.Context, transactionID int, amount decimal.Decimal, receivedBy string) (*DebtTransaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, Errorf(KindValidation, "payment amount must be positive, got %s", amount)
	}
	if receivedBy == "" {
		return nil, Errorf(KindValidation, "received_by is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin debt payment: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM debt_transactions WHERE id = $1)", transactionID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check debt transaction %d: %w", transactionID, err)
	}
	if !exists {
		return nil, Errorf(KindNotFound, "debt transaction %d not found", transactionID)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO debt_payments (transaction_id, amount, received_by)
		VALUES ($1, $2, $3)
	`, transactionID, amount, receivedBy)
	if err != nil {
		return nil, translatePg(err, "insert debt payment")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, translatePg(err, "commit debt payment")
	}
	return s.GetTransaction(ctx, transactionID)
}

func (s *debtService) GetTransaction(ctx context.Context, id int) (*DebtTransaction, error) {
	t := &DebtTransaction{}
	err := s.pool.QueryRow(ctx, `
		SELECT t.id, t.debtor_id, t.amount, t.description, t.issued_by, t.issue_date, t.due_date,
		       COALESCE(SUM(p.amount), 0)
		FROM debt_transactions t
		LEFT JOIN debt_payments p ON p.transaction_id = t.id
		WHERE t.id = $1
		GROUP BY t.id
	`, id).Scan(&t.ID, &t.DebtorID, &t.Amount, &t.Description, &t.IssuedBy,
		&t.IssueDate, &t.DueDate, &t.PaidAmount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Errorf(KindNotFound, "debt transaction %d not found", id)
		}
		return nil, fmt.Errorf("fetch debt transaction %d: %w", id, err)
	}
	t.OutstandingAmount = t.Amount.Sub(t.PaidAmount)
	t.IsPaid = t.OutstandingAmount.LessThanOrEqual(decimal.Zero)
	return t, nil
}

// createDebtTransactionTx records a new obligation inside the caller's
// transaction. Shared by Sell (debt sales), the reconciliation debtor line
// fan-out, and manual entry. saleID links the obligation to a sale when set.
func createDebtTransactionTx(ctx context.Context, tx pgx.Tx, debtorID int, amount decimal.Decimal, description, issuedBy string, saleID *int) (*DebtTransaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, Errorf(KindValidation, "debt amount must be positive, got %s", amount)
	}

	var exists bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM debtors WHERE id = $1)", debtorID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check debtor %d: %w", debtorID, err)
	}
	if !exists {
		return nil, Errorf(KindNotFound, "debtor %d not found", debtorID)
	}

	t := &DebtTransaction{
		DebtorID:          debtorID,
		Amount:            amount,
		Description:       description,
		IssuedBy:          issuedBy,
		PaidAmount:        decimal.Zero,
		OutstandingAmount: amount,
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO debt_transactions (debtor_id, sale_id, amount, description, issued_by, due_date)
		VALUES ($1, $2, $3, $4, $5, NOW() + make_interval(days => $6))
		RETURNING id, issue_date, due_date
	`, debtorID, saleID, amount, description, issuedBy, defaultDebtDueDays).
		Scan(&t.ID, &t.IssueDate, &t.DueDate)
	if err != nil {
		return nil, translatePg(err, "insert debt transaction")
	}
	return t, nil
}
