// Package features turns a customer's transaction history into a fixed-width
// numeric vector and normalizes vectors across a population.
package features

import (
	"math"

	"github.com/Veraticus/cardwise/internal/model"
	"github.com/shopspring/decimal"
)

// Dimensions is the width of every FeatureVector.
const Dimensions = 6

// Names lists the vector components in the order returned by Values.
var Names = [Dimensions]string{
	"avg_monthly_spend",
	"transaction_frequency",
	"international_ratio",
	"payment_timeliness",
	"spend_volatility",
	"category_diversity",
}

// FeatureVector summarizes one customer's behavior.
type FeatureVector struct {
	AvgMonthlySpend      float64 `json:"avg_monthly_spend"`
	TransactionFrequency float64 `json:"transaction_frequency"`
	InternationalRatio   float64 `json:"international_ratio"`
	PaymentTimeliness    float64 `json:"payment_timeliness"`
	SpendVolatility      float64 `json:"spend_volatility"`
	CategoryDiversity    float64 `json:"category_diversity"`
}

// Values returns the components as a slice in Names order.
func (f FeatureVector) Values() []float64 {
	return []float64{
		f.AvgMonthlySpend,
		f.TransactionFrequency,
		f.InternationalRatio,
		f.PaymentTimeliness,
		f.SpendVolatility,
		f.CategoryDiversity,
	}
}

// Config controls extraction.
type Config struct {
	// NeutralTimeliness is used when a customer has no timeliness signal at all.
	NeutralTimeliness float64
}

// DefaultConfig returns the extraction defaults.
func DefaultConfig() Config {
	return Config{NeutralTimeliness: 0.5}
}

// TimelinessSignal carries the per-customer timeliness score reported at
// ingestion. Transaction-level PaidOnTime flags take precedence over it.
type TimelinessSignal struct {
	Reported *float64
}

// Extract computes the feature vector for one customer. It is pure and never
// returns NaN or Inf.
func Extract(txns []model.Transaction, signal TimelinessSignal, cfg Config) FeatureVector {
	fv := FeatureVector{
		PaymentTimeliness: timeliness(txns, signal, cfg),
	}
	if len(txns) == 0 {
		return fv
	}

	total := decimal.Zero
	monthly := make(map[string]decimal.Decimal)
	categories := make(map[string]struct{})
	international := 0

	for i := range txns {
		txn := &txns[i]
		total = total.Add(txn.Amount)
		key := txn.MonthKey()
		monthly[key] = monthly[key].Add(txn.Amount)
		categories[txn.MerchantCategory] = struct{}{}
		if txn.International {
			international++
		}
	}

	count := float64(len(txns))
	fv.TransactionFrequency = count
	fv.AvgMonthlySpend = total.Div(decimal.NewFromInt(int64(len(monthly)))).InexactFloat64()
	fv.InternationalRatio = float64(international) / count
	fv.SpendVolatility = volatility(monthly)
	fv.CategoryDiversity = math.Min(float64(len(categories))/count, 1)

	return fv
}

// timeliness prefers observed payment flags, then the reported score, then
// the configured neutral value.
func timeliness(txns []model.Transaction, signal TimelinessSignal, cfg Config) float64 {
	flagged, onTime := 0, 0
	for i := range txns {
		if txns[i].PaidOnTime == nil {
			continue
		}
		flagged++
		if *txns[i].PaidOnTime {
			onTime++
		}
	}
	if flagged > 0 {
		return float64(onTime) / float64(flagged)
	}

	if signal.Reported != nil && !math.IsNaN(*signal.Reported) {
		return clamp01(*signal.Reported)
	}

	return clamp01(cfg.NeutralTimeliness)
}

// volatility is the coefficient of variation of monthly totals.
func volatility(monthly map[string]decimal.Decimal) float64 {
	if len(monthly) < 2 {
		return 0
	}

	values := make([]float64, 0, len(monthly))
	sum := 0.0
	for _, amount := range monthly {
		v := amount.InexactFloat64()
		values = append(values, v)
		sum += v
	}

	mean := sum / float64(len(values))
	if mean == 0 {
		return 0
	}

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))

	return math.Sqrt(variance) / mean
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
