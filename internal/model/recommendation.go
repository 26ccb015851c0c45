package model

import "github.com/shopspring/decimal"

// Priority ranks a recommendation.
type Priority string

const (
	// PriorityHigh is shown first.
	PriorityHigh Priority = "high"
	// PriorityMedium sits between high and low.
	PriorityMedium Priority = "medium"
	// PriorityLow is shown last.
	PriorityLow Priority = "low"
)

// Rank orders priorities; higher is more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Recommendation is a "beyond-the-card" product suggestion. It is computed on
// read from the customer's current features and segment and never stored.
type Recommendation struct {
	ProductName   string   `json:"product_name"`
	Priority      Priority `json:"priority"`
	Reason        string   `json:"reason"`
	ExpectedValue string   `json:"expected_value"`
}

// SegmentShare is one entry of the dashboard segment distribution.
type SegmentShare struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DashboardStats summarizes the portfolio.
type DashboardStats struct {
	SegmentDistribution []SegmentShare  `json:"segment_distribution"`
	TotalSpend          decimal.Decimal `json:"total_spend"`
	AvgSpendPerCustomer decimal.Decimal `json:"avg_spend_per_customer"`
	TotalCustomers      int             `json:"total_customers"`
	TotalTransactions   int             `json:"total_transactions"`
}
