package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command against dbPath and returns its stdout.
func execute(t *testing.T, dbPath, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--db", dbPath, "--log-level", "error"}, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "cardwise.db")
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func openStore(t *testing.T, dbPath string) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, tempDB(t), "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "cardwise "+version)
}

func TestSeedThenQuery(t *testing.T) {
	dbPath := tempDB(t)

	out, err := execute(t, dbPath, "", "seed", "--customers", "24")
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 24 customers")
	assert.Contains(t, out, "Avg Monthly Spend")

	out, err = execute(t, dbPath, "", "segments")
	require.NoError(t, err)
	assert.Contains(t, out, "Segments (generation")

	out, err = execute(t, dbPath, "", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Customers:          24")
	assert.NotContains(t, out, storage.UnassignedSegmentName)

	out, err = execute(t, dbPath, "", "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "completed")

	ctx := context.Background()
	customers, err := openStore(t, dbPath).ListCustomers(ctx, storage.CustomerFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, customers, 1)
	c := customers[0]

	out, err = execute(t, dbPath, "", "customers", "show", c.ID)
	require.NoError(t, err)
	assert.Contains(t, out, c.CompanyName)
	assert.NotContains(t, out, "Segment:        "+storage.UnassignedSegmentName)

	out, err = execute(t, dbPath, "", "recommend", c.ID)
	require.NoError(t, err)
	assert.Contains(t, out, c.CompanyName)

	segments, err := openStore(t, dbPath).ListSegments(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, segments)

	out, err = execute(t, dbPath, "", "customers", "list", "--segment", strings.ToUpper(segments[0].Name), "--limit", "0")
	require.NoError(t, err)
	assert.Contains(t, out, segments[0].Name)
}

func TestCustomersList_UnknownSegment(t *testing.T) {
	_, err := execute(t, tempDB(t), "", "customers", "list", "--segment", "Nobody")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown segment "Nobody"`)
}

func TestCustomersShow_NotFound(t *testing.T) {
	_, err := execute(t, tempDB(t), "", "customers", "show", "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSegments_BeforeAnalysis(t *testing.T) {
	out, err := execute(t, tempDB(t), "", "segments")
	require.NoError(t, err)
	assert.Contains(t, out, "No segmentation yet")
}

func TestAnalyze_TooFewCustomers(t *testing.T) {
	dbPath := tempDB(t)
	csv := writeFile(t, "customers.csv", "id,company_name,monthly_spend,total_transactions,international_ratio\nc1,Acme,100,2,0\n")

	_, err := execute(t, dbPath, "", "import", "customers", csv)
	require.NoError(t, err)

	_, err = execute(t, dbPath, "", "analyze", "--no-progress")
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))
}

func TestImportCmd(t *testing.T) {
	dbPath := tempDB(t)
	customers := writeFile(t, "customers.csv", `id,company_name,monthly_spend,total_transactions,international_ratio
c1,Acme Corp,1200,4,0.25
c2,,300,1,0
`)
	transactions := writeFile(t, "transactions.csv", `customer_id,transaction_date,merchant_name,merchant_category,amount,is_international
c1,2024-01-05,Delta,Travel & Transportation,450.00,true
`)

	out, err := execute(t, dbPath, "", "import", "customers", customers)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 customers")
	assert.Contains(t, out, "Rejected 1 of 2 rows")

	out, err = execute(t, dbPath, "", "import", "transactions", transactions)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 transactions")

	out, err = execute(t, dbPath, "", "import", "transactions", transactions)
	require.NoError(t, err)
	assert.Contains(t, out, "Skipped 1 duplicates")
}

func TestImportCmd_Errors(t *testing.T) {
	tests := []struct {
		name          string
		errorContains string
		args          []string
	}{
		{
			name:          "missing file",
			args:          []string{"import", "customers", "/nonexistent/customers.csv"},
			errorContains: "failed to open",
		},
		{
			name:          "ofx requires customer",
			args:          []string{"import", "ofx", "statement.ofx"},
			errorContains: `required flag(s) "customer" not set`,
		},
		{
			name:          "missing argument",
			args:          []string{"import", "transactions"},
			errorContains: "accepts 1 arg(s)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tempDB(t), "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestImportOFX(t *testing.T) {
	dbPath := tempDB(t)
	customers := writeFile(t, "customers.csv", "id,company_name,monthly_spend,total_transactions,international_ratio\nacct-1,Acme,0,0,0\n")
	_, err := execute(t, dbPath, "", "import", "customers", customers)
	require.NoError(t, err)

	out, err := execute(t, dbPath, "", "import", "ofx", "--customer", "acct-1",
		filepath.Join("..", "..", "internal", "ofx", "testdata", "creditcard.ofx"))
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 3 ofx")
}

func TestSeedReset(t *testing.T) {
	t.Run("declined", func(t *testing.T) {
		dbPath := tempDB(t)
		out, err := execute(t, dbPath, "n\n", "seed", "--reset", "--customers", "12")
		require.NoError(t, err)
		assert.Contains(t, out, "Seed cancelled.")

		store := openStore(t, dbPath)
		require.NoError(t, store.Migrate(context.Background()))
		ids, err := store.CustomerIDs(context.Background())
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("backs up first", func(t *testing.T) {
		dbPath := tempDB(t)
		_, err := execute(t, dbPath, "", "seed", "--customers", "12")
		require.NoError(t, err)

		out, err := execute(t, dbPath, "", "seed", "--reset", "--yes", "--customers", "12", "--seed", "99")
		require.NoError(t, err)
		assert.Contains(t, out, "Backup written to")
		assert.Contains(t, out, "Seeded 12 customers")

		backups, err := openStore(t, dbPath).ListBackups()
		require.NoError(t, err)
		assert.Len(t, backups, 1)
	})

	t.Run("negative customers", func(t *testing.T) {
		_, err := execute(t, tempDB(t), "", "seed", "--customers", "-1")
		assert.Error(t, err)
	})
}

func TestBackupCmd(t *testing.T) {
	dbPath := tempDB(t)

	out, err := execute(t, dbPath, "", "backup", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No backups")

	out, err = execute(t, dbPath, "", "backup", "--tag", "nightly")
	require.NoError(t, err)
	assert.Contains(t, out, "Backup written to")

	out, err = execute(t, dbPath, "", "backup", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "nightly-")
}

func TestMigrateCmd(t *testing.T) {
	dbPath := tempDB(t)

	out, err := execute(t, dbPath, "", "migrate", "--status")
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf("Schema version: 0 (latest %d)", storage.ExpectedSchemaVersion))
	assert.Contains(t, out, "Migrations pending")

	out, err = execute(t, dbPath, "", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "completed successfully")

	out, err = execute(t, dbPath, "", "migrate", "--status")
	require.NoError(t, err)
	assert.NotContains(t, out, "Migrations pending")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		name string
		want int
	}{
		{name: "conflict", err: fmt.Errorf("run: %w", common.ErrAnalysisInProgress), want: 3},
		{name: "validation", err: common.NewValidationError("file", "empty", nil), want: 2},
		{name: "other", err: common.ErrNotFound, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestDescribeError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", common.NewUserError("Database is locked", assert.AnError))
	assert.Equal(t, "Database is locked", describeError(err))
	assert.Equal(t, "plain", describeError(fmt.Errorf("plain")))
}

func TestMatchSegment(t *testing.T) {
	names := map[string]string{"seg-1": "High-Growth Enterprise", "seg-2": "At-Risk"}

	assert.Equal(t, "seg-1", matchSegment(names, "seg-1"))
	assert.Equal(t, "seg-2", matchSegment(names, "at-risk"))
	assert.Empty(t, matchSegment(names, "Steady"))
}
