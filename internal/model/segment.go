package model

import (
	"fmt"
	"time"
)

// SegmentCategory is the behavioral tag attached to a segment when it is created.
// Display names are derived from it; names are never parsed back into a category.
type SegmentCategory string

const (
	// SegmentHighGrowth marks clusters whose spend is well above the population median.
	SegmentHighGrowth SegmentCategory = "high_growth"
	// SegmentTravelHeavy marks clusters with an outsized share of international charges.
	SegmentTravelHeavy SegmentCategory = "travel_heavy"
	// SegmentAtRisk marks clusters with poor payment timeliness.
	SegmentAtRisk SegmentCategory = "at_risk"
	// SegmentSteady is the fallback for established, predictable accounts.
	SegmentSteady SegmentCategory = "steady"
)

// SegmentVocabulary is the fixed label vocabulary in priority order.
var SegmentVocabulary = []SegmentCategory{
	SegmentHighGrowth,
	SegmentTravelHeavy,
	SegmentAtRisk,
	SegmentSteady,
}

// DisplayName returns the human-readable segment name.
func (c SegmentCategory) DisplayName() string {
	switch c {
	case SegmentHighGrowth:
		return "High-Growth Corporates"
	case SegmentTravelHeavy:
		return "Travel-Heavy Corporates"
	case SegmentAtRisk:
		return "Low-Engagement / At-Risk"
	default:
		return "Stable Mature Accounts"
	}
}

// Description returns the fixed description shown alongside the segment.
func (c SegmentCategory) Description() string {
	switch c {
	case SegmentHighGrowth:
		return "Fast-growing companies with high spend and expansion potential"
	case SegmentTravelHeavy:
		return "Companies with significant international travel and global operations"
	case SegmentAtRisk:
		return "Accounts showing low engagement or payment issues requiring attention"
	default:
		return "Established accounts with consistent, predictable spending patterns"
	}
}

// ParseSegmentCategory converts a stored tag back into a SegmentCategory.
func ParseSegmentCategory(s string) (SegmentCategory, error) {
	for _, c := range SegmentVocabulary {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown segment category %q", s)
}

// SegmentCharacteristics are population averages of the raw features of a cluster.
type SegmentCharacteristics struct {
	AvgMonthlySpend       float64 `json:"avg_monthly_spend"`
	AvgTransactionCount   float64 `json:"avg_transaction_count"`
	AvgInternationalRatio float64 `json:"avg_international_ratio"`
	AvgPaymentTimeliness  float64 `json:"avg_payment_timeliness"`
	AvgSpendVolatility    float64 `json:"avg_spend_volatility"`
	AvgCategoryDiversity  float64 `json:"avg_category_diversity"`
}

// Segment is one named cluster of the current segmentation generation.
type Segment struct {
	ID              string                 `json:"id"`
	GenerationID    string                 `json:"generation_id"`
	Category        SegmentCategory        `json:"category"`
	Name            string                 `json:"name"`
	Description     string                 `json:"description"`
	Centroid        []float64              `json:"centroid"`
	Characteristics SegmentCharacteristics `json:"characteristics"`
	ClusterIndex    int                    `json:"cluster_index"`
	CustomerCount   int                    `json:"customer_count"`
}

// Generation identifies one complete segmentation. Exactly one generation is
// current at a time; the next one is written off to the side and swapped in.
type Generation struct {
	CreatedAt     time.Time `json:"created_at"`
	ID            string    `json:"id"`
	Inertia       float64   `json:"inertia"`
	K             int       `json:"k"`
	Iterations    int       `json:"iterations"`
	CustomerCount int       `json:"customer_count"`
	Converged     bool      `json:"converged"`
}
