package testutil

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/Veraticus/cardwise/internal/model"
	"github.com/shopspring/decimal"
)

// Profile describes the transaction history generated for one customer.
type Profile struct {
	Timeliness    *float64
	Category      string
	Amount        decimal.Decimal
	Transactions  int
	Months        int
	International float64
}

// Portfolio is a built set of customers and transactions.
type Portfolio struct {
	Customers    []model.Customer
	Transactions []model.Transaction
}

// CustomerIDs returns the portfolio's customer IDs in build order.
func (p Portfolio) CustomerIDs() []string {
	ids := make([]string, len(p.Customers))
	for i := range p.Customers {
		ids[i] = p.Customers[i].ID
	}
	return ids
}

// ByCustomer groups transactions by customer ID.
func (p Portfolio) ByCustomer() map[string][]model.Transaction {
	out := make(map[string][]model.Transaction)
	for _, txn := range p.Transactions {
		out[txn.CustomerID] = append(out[txn.CustomerID], txn)
	}
	return out
}

// PortfolioBuilder constructs portfolios with a fluent API.
type PortfolioBuilder struct {
	t         *testing.T
	base      time.Time
	portfolio Portfolio
}

// NewPortfolio creates a builder. Generated transactions fall in the months
// up to March 2024.
func NewPortfolio(t *testing.T) *PortfolioBuilder {
	t.Helper()
	return &PortfolioBuilder{
		t:    t,
		base: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// WithCustomer adds a customer without transactions.
func (b *PortfolioBuilder) WithCustomer(id, name string) *PortfolioBuilder {
	b.portfolio.Customers = append(b.portfolio.Customers, model.Customer{
		ID:          id,
		CompanyName: name,
	})
	return b
}

// WithProfile adds a customer and generates transactions matching p.
func (b *PortfolioBuilder) WithProfile(id string, p Profile) *PortfolioBuilder {
	b.t.Helper()
	if p.Months < 1 {
		p.Months = 1
	}
	if p.Category == "" {
		p.Category = model.CategoryOffice
	}
	if p.Transactions < 0 {
		b.t.Fatalf("profile %s: negative transaction count", id)
	}

	customer := model.Customer{
		ID:                 id,
		CompanyName:        "Company " + id,
		MonthlySpend:       p.Amount.Mul(decimal.NewFromInt(int64(p.Transactions))),
		TotalTransactions:  p.Transactions,
		InternationalRatio: p.International,
		ReportedTimeliness: p.Timeliness,
	}
	b.portfolio.Customers = append(b.portfolio.Customers, customer)

	international := int(math.Round(p.International * float64(p.Transactions)))
	for i := 0; i < p.Transactions; i++ {
		month := i % p.Months
		txn := model.Transaction{
			ID:               fmt.Sprintf("%s-txn-%03d", id, i),
			CustomerID:       id,
			Date:             b.base.AddDate(0, -month, i/p.Months),
			MerchantName:     fmt.Sprintf("Merchant %d", i),
			MerchantCategory: p.Category,
			Amount:           p.Amount,
			International:    i < international,
		}
		txn.Hash = txn.GenerateHash()
		b.portfolio.Transactions = append(b.portfolio.Transactions, txn)
	}
	return b
}

// WithFixture adds every profile of a fixture.
func (b *PortfolioBuilder) WithFixture(f Fixture) *PortfolioBuilder {
	b.t.Helper()
	for _, id := range f.order {
		b.WithProfile(id, f.profiles[id])
	}
	return b
}

// Build returns the portfolio.
func (b *PortfolioBuilder) Build() Portfolio {
	return b.portfolio
}

// Fixture is a named, reusable set of customer profiles.
type Fixture struct {
	profiles map[string]Profile
	name     string
	order    []string
}

// Name returns the fixture's descriptive name.
func (f Fixture) Name() string { return f.name }

// Size returns the number of customers in the fixture.
func (f Fixture) Size() int { return len(f.order) }

// FixtureFourBehaviors holds three customers in each of four clearly
// separated behaviors: heavy spenders, international travelers, late payers
// and steady accounts.
var FixtureFourBehaviors = buildFixture("FourBehaviors", func(add func(string, Profile)) {
	for j := 0; j < 3; j++ {
		add(fmt.Sprintf("big-%d", j), Profile{
			Amount:        decimal.NewFromInt(int64(5000 + 100*j)),
			Transactions:  20,
			Months:        2,
			International: 0.1,
			Category:      model.CategoryTechnology,
			Timeliness:    ptr(0.95),
		})
		add(fmt.Sprintf("travel-%d", j), Profile{
			Amount:        decimal.NewFromInt(int64(450 + 10*j)),
			Transactions:  20,
			Months:        2,
			International: 0.9,
			Category:      model.CategoryTravel,
			Timeliness:    ptr(0.9),
		})
		add(fmt.Sprintf("late-%d", j), Profile{
			Amount:        decimal.NewFromInt(int64(300 + 10*j)),
			Transactions:  6,
			Months:        2,
			Category:      model.CategoryRestaurants,
			Timeliness:    ptr(0.2),
		})
		add(fmt.Sprintf("steady-%d", j), Profile{
			Amount:        decimal.NewFromInt(int64(400 + 10*j)),
			Transactions:  20,
			Months:        2,
			International: 0.05,
			Category:      model.CategoryOffice,
			Timeliness:    ptr(0.92),
		})
	}
})

func buildFixture(name string, fill func(add func(string, Profile))) Fixture {
	f := Fixture{name: name, profiles: make(map[string]Profile)}
	fill(func(id string, p Profile) {
		f.order = append(f.order, id)
		f.profiles[id] = p
	})
	return f
}

func ptr[T any](v T) *T {
	return &v
}
