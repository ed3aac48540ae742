package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// conversionRate is the fixed yield of one bottle broken into tots.
const conversionRate = 25

// bottleMarkers identify the full-bottle variant of a product name when
// resolving the source for a TOT conversion.
var bottleMarkers = []string{"MZINGA", "750 ML"}

// ConversionService transforms bottle stock into tot (small-measure) stock at
// the fixed 1→25 ratio, with reversible snapshot history.
type ConversionService interface {
	// Convert resolves the named TOT product and its matching bottle product,
	// consumes one bottle, produces 25 tots, and snapshots both stock levels.
	Convert(ctx context.Context, totProductName, actor string) (*ConversionHistory, error)
	// UndoConversion restores both products to the snapshot's before-values and
	// deletes the history row. A second undo finds nothing and fails with
	// NotFound without re-applying the restoration.
	UndoConversion(ctx context.Context, conversionID int) (*ConversionHistory, error)
	ListHistory(ctx context.Context, limit int) ([]ConversionHistory, error)
}

type conversionService struct {
	pool *pgxpool.Pool
}

func NewConversionService(pool *pgxpool.Pool) ConversionService {
	return &conversionService{pool: pool}
}

func (s *conversionService) Convert(ctx context.Context, totProductName, actor string) (*ConversionHistory, error) {
	if !strings.Contains(strings.ToUpper(totProductName), "TOT") {
		return nil, Errorf(KindValidation, "%q is not a TOT product", totProductName)
	}
	if actor == "" {
		return nil, Errorf(KindValidation, "actor is required")
	}
	baseName := strings.TrimSpace(strings.ReplaceAll(strings.ToUpper(totProductName), "TOT", ""))
	if baseName == "" {
		return nil, Errorf(KindValidation, "cannot derive base product name from %q", totProductName)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin conversion: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock order is bottle then tot, matching resolution order everywhere else
	// in this service.
	bottle, err := lockProductByNamePatternTx(ctx, tx, "%"+baseName+"%", bottleMarkers)
	if err != nil {
		if KindOf(err) == KindNotFound {
			return nil, Errorf(KindNotFound, "no matching bottle found for %q", totProductName)
		}
		return nil, err
	}
	tot, err := lockProductByNamePatternTx(ctx, tx, totProductName, nil)
	if err != nil {
		if KindOf(err) == KindNotFound {
			return nil, Errorf(KindNotFound, "product %q not found", totProductName)
		}
		return nil, err
	}
	if tot.ID == bottle.ID {
		return nil, Errorf(KindValidation, "product %q resolves to itself as its bottle", totProductName)
	}
	if bottle.Stock < 1 {
		return nil, Errorf(KindInsufficientStock, "not enough %q stock, available: %d", bottle.Name, bottle.Stock)
	}

	h := &ConversionHistory{
		BottleID:        bottle.ID,
		TotID:           tot.ID,
		BottleName:      bottle.Name,
		TotName:         tot.Name,
		PrevBottleStock: bottle.Stock,
		PrevTotStock:    tot.Stock,
		ConvertedBy:     actor,
	}

	if _, err := applyStockTx(ctx, tx, bottle, -1); err != nil {
		return nil, err
	}
	if _, err := applyStockTx(ctx, tx, tot, conversionRate); err != nil {
		return nil, err
	}
	h.NewBottleStock = bottle.Stock
	h.NewTotStock = tot.Stock

	err = tx.QueryRow(ctx, `
		INSERT INTO conversion_history (bottle_id, tot_id, prev_bottle_stock, prev_tot_stock,
		                                new_bottle_stock, new_tot_stock, converted_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, timestamp
	`, h.BottleID, h.TotID, h.PrevBottleStock, h.PrevTotStock,
		h.NewBottleStock, h.NewTotStock, h.ConvertedBy).Scan(&h.ID, &h.Timestamp)
	if err != nil {
		return nil, translatePg(err, "insert conversion history")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, translatePg(err, "commit conversion")
	}
	return h, nil
}

func (s *conversionService) UndoConversion(ctx context.Context, conversionID int) (*ConversionHistory, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin undo conversion: %w", err)
	}
	defer tx.Rollback(ctx)

	h := &ConversionHistory{}
	// FOR UPDATE so two concurrent undos of the same row serialize; the loser
	// re-reads after delete and gets no rows.
	err = tx.QueryRow(ctx, `
		SELECT id, bottle_id, tot_id, prev_bottle_stock, prev_tot_stock,
		       new_bottle_stock, new_tot_stock, converted_by, timestamp
		FROM conversion_history WHERE id = $1
		FOR UPDATE
	`, conversionID).Scan(&h.ID, &h.BottleID, &h.TotID, &h.PrevBottleStock, &h.PrevTotStock,
		&h.NewBottleStock, &h.NewTotStock, &h.ConvertedBy, &h.Timestamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Errorf(KindNotFound, "conversion %d not found", conversionID)
		}
		return nil, fmt.Errorf("fetch conversion %d: %w", conversionID, err)
	}

	bottle, err := lockProductTx(ctx, tx, h.BottleID)
	if err != nil {
		return nil, err
	}
	tot, err := lockProductTx(ctx, tx, h.TotID)
	if err != nil {
		return nil, err
	}
	h.BottleName = bottle.Name
	h.TotName = tot.Name

	// Restore first, then delete: the history row is the undo token and must
	// only disappear together with the restoration.
	if err := setStockTx(ctx, tx, bottle, h.PrevBottleStock); err != nil {
		return nil, err
	}
	if err := setStockTx(ctx, tx, tot, h.PrevTotStock); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, "DELETE FROM conversion_history WHERE id = $1", h.ID); err != nil {
		return nil, translatePg(err, "delete conversion history")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, translatePg(err, "commit undo conversion")
	}
	return h, nil
}

func (s *conversionService) ListHistory(ctx context.Context, limit int) ([]ConversionHistory, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT h.id, h.bottle_id, h.tot_id, b.name, t.name,
		       h.prev_bottle_stock, h.prev_tot_stock, h.new_bottle_stock, h.new_tot_stock,
		       h.converted_by, h.timestamp
		FROM conversion_history h
		JOIN products b ON b.id = h.bottle_id
		JOIN products t ON t.id = h.tot_id
		ORDER BY h.timestamp DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversion history: %w", err)
	}
	defer rows.Close()

	var history []ConversionHistory
	for rows.Next() {
		var h ConversionHistory
		if err := rows.Scan(&h.ID, &h.BottleID, &h.TotID, &h.BottleName, &h.TotName,
			&h.PrevBottleStock, &h.PrevTotStock, &h.NewBottleStock, &h.NewTotStock,
			&h.ConvertedBy, &h.Timestamp); err != nil {
			return nil, fmt.Errorf("scan conversion history: %w", err)
		}
		history = append(history, h)
	}
	return history, rows.Err()
}
