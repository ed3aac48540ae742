package core_test

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

var schemaOnce sync.Once

// setupTestDB connects to the dedicated test database, applies the schema,
// and reseeds a small known fixture set. Set TEST_DATABASE_URL in your .env
// or environment to run integration tests.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	schemaOnce.Do(func() {
		schema, err := os.ReadFile("../../migrations/001_init.sql")
		if err != nil {
			t.Fatalf("Failed to read schema: %v", err)
		}
		if _, err := pool.Exec(ctx, string(schema)); err != nil {
			t.Fatalf("Failed to apply schema: %v", err)
		}
	})

	// Clean and seed test DB. Explicit IDs keep the fixtures addressable; the
	// sequences are bumped past them so service inserts do not collide.
	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE reconciliation_lines, reconciliation_tills, reconciliations,
			waiter_bills, waiters, expenses, cash_movements,
			debt_payments, debt_transactions, debtors,
			supplier_payments, purchase_undo_logs, purchases, suppliers,
			conversion_history, daily_close_adjustments, daily_closes,
			sale_adjustments, sales, products CASCADE;

		INSERT INTO products (id, name, stock, unit_price, cost_price) VALUES
		(1, 'SAFARI LAGER', 10, 3000, 2000),
		(2, 'VODKA MZINGA 750 ML', 5, 25000, 18000),
		(3, 'VODKA TOT', 2, 1500, 800);

		INSERT INTO debtors (id, name, phone) VALUES (1, 'JOHN MWANGI', '0712000111');
		INSERT INTO suppliers (id, name, contact_person, phone) VALUES (1, 'KILI DISTRIBUTORS', 'Asha', '0765000222');
		INSERT INTO waiters (id, name, daily_salary) VALUES (1, 'PETER', 5000);

		SELECT setval('products_id_seq', 100);
		SELECT setval('debtors_id_seq', 100);
		SELECT setval('suppliers_id_seq', 100);
		SELECT setval('waiters_id_seq', 100);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}
