package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is a corporate-card account holder. Every field below CompanyName is
// derived and is overwritten wholesale by each committed analysis run.
type Customer struct {
	CreatedAt           time.Time       `json:"created_at"`
	ReportedTimeliness  *float64        `json:"payment_timeliness_score,omitempty"` // supplied at ingestion, if any
	SegmentID           *string         `json:"segment_id,omitempty"`
	ID                  string          `json:"id"`
	CompanyName         string          `json:"company_name"`
	TopMerchantCategory string          `json:"top_merchant_category"`
	MonthlySpend        decimal.Decimal `json:"monthly_spend"`
	AvgTransactionValue decimal.Decimal `json:"avg_transaction_value"`
	InternationalRatio  float64         `json:"international_ratio"`
	TotalTransactions   int             `json:"total_transactions"`
}

// HasSegment reports whether the customer belongs to the current segmentation.
func (c *Customer) HasSegment() bool {
	return c.SegmentID != nil && *c.SegmentID != ""
}

// CustomerStats are the derived fields an analysis run writes back to a customer.
type CustomerStats struct {
	SegmentID           string
	TopMerchantCategory string
	MonthlySpend        decimal.Decimal
	AvgTransactionValue decimal.Decimal
	InternationalRatio  float64
	TotalTransactions   int
}

// CustomerUpdate pairs a customer with the stats a run assigns to it.
type CustomerUpdate struct {
	CustomerID string
	Stats      CustomerStats
}
