package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ProductService owns the product catalog and the stock ledger. Every stock
// mutation in the engine goes through adjustStockTx so the check-then-write is
// always performed under a row lock inside the caller's transaction.
type ProductService interface {
	CreateProduct(ctx context.Context, name string, unitPrice, costPrice decimal.Decimal) (*Product, error)
	GetProduct(ctx context.Context, id int) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	UpdatePrices(ctx context.Context, id int, unitPrice, costPrice decimal.Decimal) (*Product, error)
	// DeleteProduct fails with Integrity while sales, closes, purchases or
	// conversion history still reference the product.
	DeleteProduct(ctx context.Context, id int) error
	// AdjustStock applies a signed delta to a product's stock in its own
	// transaction. NotFound for unknown products, InsufficientStock when the
	// result would be negative.
	AdjustStock(ctx context.Context, id, delta int) (*Product, error)
}

type productService struct {
	pool *pgxpool.Pool
}

func NewProductService(pool *pgxpool.Pool) ProductService {
	return &productService{pool: pool}
}

func (s *productService) CreateProduct(ctx context.Context, name string, unitPrice, costPrice decimal.Decimal) (*Product, error) {
	if name == "" {
		return nil, Errorf(KindValidation, "product name is required")
	}
	if unitPrice.IsNegative() || costPrice.IsNegative() {
		return nil, Errorf(KindValidation, "prices cannot be negative")
	}

	p := &Product{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO products (name, stock, unit_price, cost_price)
		VALUES ($1, 0, $2, $3)
		RETURNING id, name, stock, unit_price, cost_price, created_at
	`, name, unitPrice, costPrice).Scan(&p.ID, &p.Name, &p.Stock, &p.UnitPrice, &p.CostPrice, &p.CreatedAt)
	if err != nil {
		return nil, translatePg(err, fmt.Sprintf("create product %q", name))
	}
	return p, nil
}

func (s *productService) GetProduct(ctx context.Context, id int) (*Product, error) {
	p := &Product{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, stock, unit_price, cost_price, created_at
		FROM products WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Stock, &p.UnitPrice, &p.CostPrice, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Errorf(KindNotFound, "product %d not found", id)
		}
		return nil, fmt.Errorf("fetch product %d: %w", id, err)
	}
	return p, nil
}

func (s *productService) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, stock, unit_price, cost_price, created_at
		FROM products ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Stock, &p.UnitPrice, &p.CostPrice, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *productService) UpdatePrices(ctx context.Context, id int, unitPrice, costPrice decimal.Decimal) (*Product, error) {
	if unitPrice.IsNegative() || costPrice.IsNegative() {
		return nil, Errorf(KindValidation, "prices cannot be negative")
	}

	p := &Product{}
	err := s.pool.QueryRow(ctx, `
		UPDATE products SET unit_price = $2, cost_price = $3
		WHERE id = $1
		RETURNING id, name, stock, unit_price, cost_price, created_at
	`, id, unitPrice, costPrice).Scan(&p.ID, &p.Name, &p.Stock, &p.UnitPrice, &p.CostPrice, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Errorf(KindNotFound, "product %d not found", id)
		}
		return nil, fmt.Errorf("update product %d prices: %w", id, err)
	}
	return p, nil
}

func (s *productService) DeleteProduct(ctx context.Context, id int) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return translatePg(err, fmt.Sprintf("delete product %d", id))
	}
	if tag.RowsAffected() == 0 {
		return Errorf(KindNotFound, "product %d not found", id)
	}
	return nil
}

func (s *productService) AdjustStock(ctx context.Context, id, delta int) (*Product, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin stock adjustment: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := adjustStockTx(ctx, tx, id, delta)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit stock adjustment: %w", err)
	}
	return p, nil
}

// lockProductTx fetches a product row FOR UPDATE, holding the lock for the
// remainder of the caller's transaction.
func lockProductTx(ctx context.Context, tx pgx.Tx, id int) (*Product, error) {
	p := &Product{}
	err := tx.QueryRow(ctx, `
		SELECT id, name, stock, unit_price, cost_price, created_at
		FROM products WHERE id = $1
		FOR UPDATE
	`, id).Scan(&p.ID, &p.Name, &p.Stock, &p.UnitPrice, &p.CostPrice, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Errorf(KindNotFound, "product %d not found", id)
		}
		return nil, fmt.Errorf("lock product %d: %w", id, err)
	}
	return p, nil
}

// lockProductByNamePatternTx resolves a product by ILIKE pattern (optionally
// requiring one of the marker substrings) and locks the row. Used by the
// conversion engine's TOT/bottle name matching.
func lockProductByNamePatternTx(ctx context.Context, tx pgx.Tx, pattern string, markers []string) (*Product, error) {
	query := `
		SELECT id, name, stock, unit_price, cost_price, created_at
		FROM products WHERE name ILIKE $1`
	args := []any{pattern}
	if len(markers) > 0 {
		query += " AND ("
		for i, m := range markers {
			if i > 0 {
				query += " OR "
			}
			args = append(args, "%"+m+"%")
			query += fmt.Sprintf("name ILIKE $%d", len(args))
		}
		query += ")"
	}
	query += " ORDER BY id LIMIT 1 FOR UPDATE"

	p := &Product{}
	err := tx.QueryRow(ctx, query, args...).Scan(&p.ID, &p.Name, &p.Stock, &p.UnitPrice, &p.CostPrice, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Errorf(KindNotFound, "no product matching %q", pattern)
		}
		return nil, fmt.Errorf("lock product by name %q: %w", pattern, err)
	}
	return p, nil
}

// adjustStockTx is the single signed stock mutator. It locks the product row,
// verifies the delta keeps stock non-negative, and writes the new quantity.
// The CHECK constraint on products.stock backstops the same invariant at the
// storage layer.
func adjustStockTx(ctx context.Context, tx pgx.Tx, id, delta int) (*Product, error) {
	p, err := lockProductTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	return applyStockTx(ctx, tx, p, delta)
}

// applyStockTx applies a delta to an already locked product.
func applyStockTx(ctx context.Context, tx pgx.Tx, p *Product, delta int) (*Product, error) {
	newStock := p.Stock + delta
	if newStock < 0 {
		return nil, Errorf(KindInsufficientStock, "product %q has %d in stock, cannot remove %d", p.Name, p.Stock, -delta)
	}
	if _, err := tx.Exec(ctx, "UPDATE products SET stock = $1 WHERE id = $2", newStock, p.ID); err != nil {
		return nil, translatePg(err, fmt.Sprintf("update stock for product %d", p.ID))
	}
	p.Stock = newStock
	return p, nil
}

// setStockTx overwrites a locked product's stock with an absolute value.
// The daily close uses this: the counted closing stock is the new baseline.
func setStockTx(ctx context.Context, tx pgx.Tx, p *Product, stock int) error {
	if stock < 0 {
		return Errorf(KindValidation, "stock for product %q cannot be negative", p.Name)
	}
	if _, err := tx.Exec(ctx, "UPDATE products SET stock = $1 WHERE id = $2", stock, p.ID); err != nil {
		return translatePg(err, fmt.Sprintf("set stock for product %d", p.ID))
	}
	p.Stock = stock
	return nil
}
