package core

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Kind classifies an operation failure so the caller layer can map it to a
// response without parsing messages.
type Kind string

const (
	KindValidation        Kind = "VALIDATION"
	KindNotFound          Kind = "NOT_FOUND"
	KindInsufficientStock Kind = "INSUFFICIENT_STOCK"
	KindDuplicateClose    Kind = "DUPLICATE_CLOSE"
	KindLocked            Kind = "LOCKED"
	KindConflict          Kind = "CONFLICT"
	KindIntegrity         Kind = "INTEGRITY"
)

// Error is the structured failure every core operation returns on a business
// rule violation. Infrastructure failures (connection loss, scan errors) are
// returned as plain wrapped errors and carry no Kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf builds a kinded error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of err, or "" for plain errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Postgres SQLSTATE codes the engine relies on. Constraint names are part of
// the schema contract in migrations/001_init.sql.
const (
	pgUniqueViolation = "23505"
	pgFKViolation     = "23503"
	pgCheckViolation  = "23514"
)

// translatePg converts constraint violations surfaced at commit time into
// kinded errors, per the uniqueness-at-storage-layer policy: a concurrent
// duplicate daily close loses the race at the unique index, not at an
// application pre-check.
func translatePg(err error, context string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", context, err)
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		if pgErr.ConstraintName == "daily_closes_product_id_close_date_key" {
			return &Error{Kind: KindDuplicateClose, Message: fmt.Sprintf("%s: close already recorded for this product and date", context), Err: err}
		}
		return &Error{Kind: KindConflict, Message: fmt.Sprintf("%s: %s", context, pgErr.Detail), Err: err}
	case pgFKViolation:
		return &Error{Kind: KindIntegrity, Message: fmt.Sprintf("%s: row is referenced by other records", context), Err: err}
	case pgCheckViolation:
		if pgErr.ConstraintName == "products_stock_check" {
			return &Error{Kind: KindInsufficientStock, Message: fmt.Sprintf("%s: stock would go negative", context), Err: err}
		}
		return &Error{Kind: KindValidation, Message: fmt.Sprintf("%s: %s", context, pgErr.Message), Err: err}
	}
	return fmt.Errorf("%s: %w", context, err)
}
