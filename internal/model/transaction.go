package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Merchant categories used by the synthetic generator and OFX inference.
// Ingested data may carry categories outside this list.
const (
	CategoryTravel       = "Travel & Transportation"
	CategoryHotels       = "Hotels & Lodging"
	CategoryRestaurants  = "Restaurants"
	CategoryOffice       = "Office Supplies"
	CategoryTechnology   = "Technology & Software"
	CategoryProfessional = "Professional Services"
	CategoryMarketing    = "Marketing & Advertising"
	CategoryUtilities    = "Utilities"
	CategoryShipping     = "Shipping & Logistics"
)

// MerchantCategories lists the known merchant categories in display order.
var MerchantCategories = []string{
	CategoryTravel,
	CategoryHotels,
	CategoryRestaurants,
	CategoryOffice,
	CategoryTechnology,
	CategoryProfessional,
	CategoryMarketing,
	CategoryUtilities,
	CategoryShipping,
}

// Transaction is a single corporate-card charge. Transactions are never mutated
// after ingestion; they are the source of truth for feature recomputation.
type Transaction struct {
	Date             time.Time       `json:"date"`
	PaidOnTime       *bool           `json:"paid_on_time,omitempty"` // optional repayment signal, nil when the source has none
	ID               string          `json:"id"`
	CustomerID       string          `json:"customer_id"`
	MerchantName     string          `json:"merchant_name"`
	MerchantCategory string          `json:"merchant_category"`
	Hash             string          `json:"-"`
	Amount           decimal.Decimal `json:"amount"`
	Occurrence       int             `json:"-"` // numbers identical charges within one upload
	International    bool            `json:"is_international"`
}

// ContentKey identifies a charge by what it is, ignoring its occurrence.
func (t *Transaction) ContentKey() string {
	return fmt.Sprintf("%s:%s:%s:%s:%t",
		t.Date.Format("2006-01-02"),
		t.Amount.StringFixed(2),
		t.MerchantName,
		t.CustomerID,
		t.International)
}

// GenerateHash creates a hash for duplicate detection from the charge content
// and its occurrence. Use it for sources without a stable transaction id.
func (t *Transaction) GenerateHash() string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", t.ContentKey(), t.Occurrence)))
	return fmt.Sprintf("%x", hash)
}

// IDHash creates a hash for duplicate detection from the transaction id. Use it
// for sources that assign stable ids, such as OFX FITIDs.
func (t *Transaction) IDHash() string {
	hash := sha256.Sum256([]byte("id:" + t.CustomerID + "/" + t.ID))
	return fmt.Sprintf("%x", hash)
}

// MonthKey returns the calendar month (UTC) the transaction falls in.
func (t *Transaction) MonthKey() string {
	return t.Date.UTC().Format("2006-01")
}
