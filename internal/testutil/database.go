// Package testutil provides test helpers for cardwise: an isolated in-memory
// database and a fluent builder for customer portfolios.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/cardwise/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new migrated in-memory database that is closed when
// the test ends.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	db.Seed(testutil.NewPortfolio(t).WithFixture(testutil.FixtureFourBehaviors).Build())
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// Seed stores a portfolio or fails the test.
func (db *TestDB) Seed(p Portfolio) {
	db.t.Helper()
	ctx := context.Background()

	if err := db.Storage.SaveCustomers(ctx, p.Customers); err != nil {
		db.t.Fatalf("failed to seed customers: %v", err)
	}
	if _, err := db.Storage.SaveTransactions(ctx, p.Transactions); err != nil {
		db.t.Fatalf("failed to seed transactions: %v", err)
	}
}
