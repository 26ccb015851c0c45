package ingest

import (
	"testing"
	"time"

	"github.com/Veraticus/cardwise/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesize_Shape(t *testing.T) {
	now := time.Date(2024, 6, 30, 15, 0, 0, 0, time.UTC)
	ds := Synthesize(SyntheticOptions{Customers: 25, Seed: 3, Now: now})

	require.Len(t, ds.Customers, 25)

	perCustomer := make(map[string]int)
	categories := make(map[string]bool)
	for _, category := range model.MerchantCategories {
		categories[category] = true
	}
	earliest := now.AddDate(0, 0, -seedWindowDays-1)

	for _, txn := range ds.Transactions {
		perCustomer[txn.CustomerID]++
		assert.False(t, txn.Amount.IsNegative())
		assert.True(t, categories[txn.MerchantCategory], "unknown category %q", txn.MerchantCategory)
		assert.True(t, txn.Date.After(earliest))
		assert.False(t, txn.Date.After(now))
		assert.Equal(t, txn.IDHash(), txn.Hash)
		assert.NotEmpty(t, txn.MerchantName)
	}

	for _, c := range ds.Customers {
		n := perCustomer[c.ID]
		assert.GreaterOrEqual(t, n, minSeedTransactions)
		assert.LessOrEqual(t, n, maxSeedTransactions)
		assert.Equal(t, n, c.TotalTransactions)
		assert.NotEmpty(t, c.CompanyName)
		assert.GreaterOrEqual(t, c.InternationalRatio, 0.0)
		assert.LessOrEqual(t, c.InternationalRatio, 0.7)
		require.NotNil(t, c.ReportedTimeliness)
		assert.GreaterOrEqual(t, *c.ReportedTimeliness, 0.6)
	}
}

func TestSynthesize_Deterministic(t *testing.T) {
	opts := SyntheticOptions{Customers: 10, Seed: 99, Now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	a := Synthesize(opts)
	b := Synthesize(opts)
	assert.Equal(t, a, b)

	opts.Seed = 100
	c := Synthesize(opts)
	assert.NotEqual(t, a.Customers[0].ID, c.Customers[0].ID)
	assert.NotEqual(t, companyNames(a), companyNames(c))
}

func companyNames(ds Dataset) []string {
	names := make([]string, len(ds.Customers))
	for i, c := range ds.Customers {
		names[i] = c.CompanyName
	}
	return names
}

func TestSynthesize_Defaults(t *testing.T) {
	ds := Synthesize(SyntheticOptions{})
	assert.Len(t, ds.Customers, DefaultSeedCustomers)
}
