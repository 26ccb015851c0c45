// Package characterize turns cluster assignments into described segments.
package characterize

import (
	"fmt"
	"math"
	"sort"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/features"
	"github.com/Veraticus/cardwise/internal/model"
)

// Thresholds relative to the population median that trigger each tag.
const (
	HighGrowthSpendFactor    = 1.5
	TravelInternationalRatio = 1.3
	AtRiskTimelinessFactor   = 0.8
)

// Characterize computes per-cluster averages of every raw feature and assigns
// each cluster a category from the fixed vocabulary. Segments are returned in
// cluster index order; IDs and generation are left for the caller.
func Characterize(assignments []int, raw []features.FeatureVector, centroids [][]float64) ([]model.Segment, error) {
	if len(assignments) != len(raw) {
		return nil, common.NewValidationError("assignments",
			fmt.Sprintf("%d assignments for %d feature vectors", len(assignments), len(raw)), nil)
	}
	if len(centroids) == 0 {
		return nil, common.NewValidationError("centroids", "no clusters to characterize", nil)
	}
	if len(raw) == 0 {
		return nil, common.NewValidationError("population", "no customers to characterize", common.ErrNoCustomers)
	}

	k := len(centroids)
	sums := make([]features.FeatureVector, k)
	counts := make([]int, k)
	for i, c := range assignments {
		if c < 0 || c >= k {
			return nil, common.NewValidationError("assignments", fmt.Sprintf("customer %d assigned to unknown cluster %d", i, c), nil)
		}
		counts[c]++
		add(&sums[c], raw[i])
	}

	stats := make([]model.SegmentCharacteristics, k)
	for c := range stats {
		stats[c] = average(sums[c], counts[c])
	}

	categories := Name(stats, Medians(raw))

	segments := make([]model.Segment, k)
	for c := range segments {
		centroid := make([]float64, len(centroids[c]))
		copy(centroid, centroids[c])
		segments[c] = model.Segment{
			ClusterIndex:    c,
			Category:        categories[c],
			Name:            categories[c].DisplayName(),
			Description:     categories[c].Description(),
			CustomerCount:   counts[c],
			Characteristics: stats[c],
			Centroid:        centroid,
		}
	}
	return segments, nil
}

func add(dst *features.FeatureVector, v features.FeatureVector) {
	dst.AvgMonthlySpend += v.AvgMonthlySpend
	dst.TransactionFrequency += v.TransactionFrequency
	dst.InternationalRatio += v.InternationalRatio
	dst.PaymentTimeliness += v.PaymentTimeliness
	dst.SpendVolatility += v.SpendVolatility
	dst.CategoryDiversity += v.CategoryDiversity
}

func average(sum features.FeatureVector, n int) model.SegmentCharacteristics {
	if n == 0 {
		return model.SegmentCharacteristics{}
	}
	d := float64(n)
	return model.SegmentCharacteristics{
		AvgMonthlySpend:       sum.AvgMonthlySpend / d,
		AvgTransactionCount:   sum.TransactionFrequency / d,
		AvgInternationalRatio: sum.InternationalRatio / d,
		AvgPaymentTimeliness:  sum.PaymentTimeliness / d,
		AvgSpendVolatility:    sum.SpendVolatility / d,
		AvgCategoryDiversity:  sum.CategoryDiversity / d,
	}
}

// PopulationMedians holds the medians the naming rule compares against.
type PopulationMedians struct {
	Spend         float64
	International float64
	Timeliness    float64
}

// Medians computes population medians over raw feature vectors.
func Medians(raw []features.FeatureVector) PopulationMedians {
	spend := make([]float64, len(raw))
	intl := make([]float64, len(raw))
	timely := make([]float64, len(raw))
	for i, v := range raw {
		spend[i] = v.AvgMonthlySpend
		intl[i] = v.InternationalRatio
		timely[i] = v.PaymentTimeliness
	}
	return PopulationMedians{
		Spend:         median(spend),
		International: median(intl),
		Timeliness:    median(timely),
	}
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// claim is a cluster's primary tag and how strongly its averages support it.
type claim struct {
	category model.SegmentCategory
	strength float64
}

// primaryClaim applies the threshold rules in vocabulary order.
func primaryClaim(s model.SegmentCharacteristics, m PopulationMedians) claim {
	if s.AvgMonthlySpend > HighGrowthSpendFactor*m.Spend {
		return claim{model.SegmentHighGrowth, ratio(s.AvgMonthlySpend, HighGrowthSpendFactor*m.Spend)}
	}
	if s.AvgInternationalRatio > TravelInternationalRatio*m.International {
		return claim{model.SegmentTravelHeavy, ratio(s.AvgInternationalRatio, TravelInternationalRatio*m.International)}
	}
	if s.AvgPaymentTimeliness < AtRiskTimelinessFactor*m.Timeliness {
		return claim{model.SegmentAtRisk, ratio(AtRiskTimelinessFactor*m.Timeliness, s.AvgPaymentTimeliness)}
	}
	// Steady claims favor the most stable spend.
	return claim{model.SegmentSteady, 1 / (1 + s.AvgSpendVolatility)}
}

// ratio measures how far num exceeds den; a zero denominator yields a large
// finite value that still orders by num.
func ratio(num, den float64) float64 {
	if den <= 0 {
		return 1e12 + num
	}
	r := num / den
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 1e12
	}
	return r
}

// Name assigns one category to every cluster. Each tag goes to the cluster
// with the strongest claim on it (ties to the lower index); the others take
// the first unused tag in vocabulary order. Once the vocabulary is exhausted
// clusters keep their primary tag.
func Name(stats []model.SegmentCharacteristics, m PopulationMedians) []model.SegmentCategory {
	claims := make([]claim, len(stats))
	for c, s := range stats {
		claims[c] = primaryClaim(s, m)
	}

	result := make([]model.SegmentCategory, len(stats))
	assigned := make([]bool, len(stats))
	used := make(map[model.SegmentCategory]bool, len(model.SegmentVocabulary))

	for _, category := range model.SegmentVocabulary {
		winner := -1
		for c, cl := range claims {
			if cl.category != category {
				continue
			}
			if winner < 0 || cl.strength > claims[winner].strength {
				winner = c
			}
		}
		if winner >= 0 {
			result[winner] = category
			assigned[winner] = true
			used[category] = true
		}
	}

	for c := range stats {
		if assigned[c] {
			continue
		}
		result[c] = claims[c].category
		for _, category := range model.SegmentVocabulary {
			if !used[category] {
				result[c] = category
				used[category] = true
				break
			}
		}
	}

	return result
}
