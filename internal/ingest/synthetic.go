package ingest

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/Veraticus/cardwise/internal/model"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Demo dataset defaults.
const (
	DefaultSeedCustomers   = 150
	DefaultSeedRandomState = 7
	minSeedTransactions    = 20
	maxSeedTransactions    = 100
	seedWindowDays         = 90
)

var (
	seedBaseSpends = []int64{5000, 15000, 30000, 50000, 80000, 120000}
	seedNamespace  = uuid.MustParse("6f1c2a8e-4b1d-4c53-9a57-2f0d3c7e9b11")
)

// SyntheticOptions controls demo data generation.
type SyntheticOptions struct {
	// Now anchors the transaction window; transactions fall within the
	// preceding 90 days.
	Now       time.Time
	Customers int
	Seed      int64
}

// DefaultSyntheticOptions returns the standard demo dataset settings.
func DefaultSyntheticOptions() SyntheticOptions {
	return SyntheticOptions{
		Customers: DefaultSeedCustomers,
		Seed:      DefaultSeedRandomState,
		Now:       time.Now().UTC(),
	}
}

// Dataset is a generated set of customers and their transactions.
type Dataset struct {
	Customers    []model.Customer
	Transactions []model.Transaction
}

// Synthesize generates a demo dataset. The same options always produce the
// same dataset, identifiers included.
func Synthesize(opts SyntheticOptions) Dataset {
	if opts.Customers <= 0 {
		opts.Customers = DefaultSeedCustomers
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}
	// #nosec G404 - demo data, reproducibility matters more than unpredictability
	rng := rand.New(rand.NewSource(opts.Seed))
	// Names draw from a separate source so they never shift the distributions.
	faker := gofakeit.New(uint64(opts.Seed))
	day := opts.Now.UTC().Truncate(24 * time.Hour)

	ds := Dataset{
		Customers:    make([]model.Customer, 0, opts.Customers),
		Transactions: make([]model.Transaction, 0, opts.Customers*(minSeedTransactions+maxSeedTransactions)/2),
	}

	for i := 0; i < opts.Customers; i++ {
		customerID := deterministicID(opts.Seed, "customer", i, 0)
		baseSpend := float64(seedBaseSpends[rng.Intn(len(seedBaseSpends))])
		volatility := 0.1 + rng.Float64()*0.7
		internationalRatio := rng.Float64() * 0.7
		timeliness := 0.6 + rng.Float64()*0.4

		customer := model.Customer{
			ID:                 customerID,
			CompanyName:        faker.Company(),
			MonthlySpend:       decimal.NewFromFloat(baseSpend),
			InternationalRatio: round(internationalRatio, 4),
			ReportedTimeliness: ptr(round(timeliness, 4)),
		}

		count := minSeedTransactions + rng.Intn(maxSeedTransactions-minSeedTransactions+1)
		mean := baseSpend / float64(count)
		stddev := baseSpend * volatility / float64(count)

		for j := 0; j < count; j++ {
			amount := math.Abs(rng.NormFloat64()*stddev + mean)
			international := rng.Float64() < internationalRatio
			category := model.MerchantCategories[rng.Intn(len(model.MerchantCategories))]
			daysAgo := rng.Intn(seedWindowDays + 1)

			txn := model.Transaction{
				ID:               deterministicID(opts.Seed, "transaction", i, j),
				CustomerID:       customerID,
				Date:             day.AddDate(0, 0, -daysAgo),
				MerchantName:     faker.Company(),
				MerchantCategory: category,
				Amount:           decimal.NewFromFloat(amount).Round(2),
				International:    international,
			}
			txn.Hash = txn.IDHash()
			ds.Transactions = append(ds.Transactions, txn)
		}

		customer.TotalTransactions = count
		ds.Customers = append(ds.Customers, customer)
	}

	return ds
}

func deterministicID(seed int64, kind string, i, j int) string {
	return uuid.NewSHA1(seedNamespace, []byte(fmt.Sprintf("%d/%s/%d/%d", seed, kind, i, j))).String()
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

func ptr[T any](v T) *T {
	return &v
}
