package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"

	"orderflow/internal/infrastructure/mysql"
)

const defaultTestDSN = "root:@tcp(localhost:3306)/orderflow_test?parseTime=true"

// SetupTestDB connects to the integration database named by ORDERFLOW_TEST_DSN
// and applies the schema. The test is skipped when no database is reachable.
func SetupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv("ORDERFLOW_TEST_DSN")
	if dsn == "" {
		dsn = defaultTestDSN
	}

	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("test database not available: %v", err)
	}

	if err := mysql.Migrate(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	return db
}

// CleanupTestDB empties every table and closes the connection.
func CleanupTestDB(t *testing.T, db *sqlx.DB) {
	t.Helper()
	if db == nil {
		return
	}

	tables := []string{"DeliveryRecords", "OrderAdjustments", "OrderItems", "Orders", "Product"}
	for _, table := range tables {
		if _, err := db.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}

	db.Close()
}

// InsertProduct seeds one catalog row and returns its id.
func InsertProduct(t *testing.T, db *sqlx.DB, name, unit string, price float64, active bool) int {
	t.Helper()

	result, err := db.Exec(
		`INSERT INTO Product (name, description, unit, price, category, isActive) VALUES (?, ?, ?, ?, ?, ?)`,
		name, name+" description", unit, price, "materials", active,
	)
	if err != nil {
		t.Fatalf("failed to insert product: %v", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		t.Fatalf("failed to read product id: %v", err)
	}
	return int(id)
}
