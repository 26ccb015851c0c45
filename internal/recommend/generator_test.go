package recommend

import (
	"testing"

	"github.com/Veraticus/cardwise/internal/features"
	"github.com/Veraticus/cardwise/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func segment(category model.SegmentCategory) *model.Segment {
	return &model.Segment{Category: category, Name: category.DisplayName()}
}

func products(recs []model.Recommendation) []string {
	names := make([]string, len(recs))
	for i, r := range recs {
		names[i] = r.ProductName
	}
	return names
}

func TestGenerate_ZeroTransactions(t *testing.T) {
	g := NewGenerator(nil)

	recs := g.Generate(features.FeatureVector{PaymentTimeliness: 0.5}, segment(model.SegmentAtRisk))

	require.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestGenerate_BySegment(t *testing.T) {
	tests := []struct {
		seg  *model.Segment
		name string
		want []string
		fv   features.FeatureVector
	}{
		{
			name: "travel heavy",
			fv: features.FeatureVector{
				AvgMonthlySpend:      10000,
				TransactionFrequency: 30,
				InternationalRatio:   0.4,
				PaymentTimeliness:    0.95,
			},
			seg:  segment(model.SegmentTravelHeavy),
			want: []string{ProductGlobalCurrency, ProductTravelAccount, ProductTravelInsurance, ProductExpenseManagement},
		},
		{
			name: "at risk",
			fv: features.FeatureVector{
				AvgMonthlySpend:      500,
				TransactionFrequency: 5,
				PaymentTimeliness:    0.5,
			},
			seg:  segment(model.SegmentAtRisk),
			want: []string{ProductPaymentAutomation, ProductFinancialHealth, ProductBasicExpense},
		},
		{
			name: "high growth",
			fv: features.FeatureVector{
				AvgMonthlySpend:      30000,
				TransactionFrequency: 80,
				InternationalRatio:   0.05,
				PaymentTimeliness:    0.9,
			},
			seg:  segment(model.SegmentHighGrowth),
			want: []string{ProductPremiumExpense, ProductB2BPayments, ProductTravelAccount},
		},
		{
			name: "steady",
			fv: features.FeatureVector{
				AvgMonthlySpend:      8000,
				TransactionFrequency: 25,
				InternationalRatio:   0.05,
				PaymentTimeliness:    0.92,
				CategoryDiversity:    0.2,
			},
			seg:  segment(model.SegmentSteady),
			want: []string{ProductB2BPayments, ProductAdvancedAnalytics, ProductExpenseManagement},
		},
	}

	g := NewGenerator(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := g.Generate(tt.fv, tt.seg)
			assert.Equal(t, tt.want, products(recs))
			for _, r := range recs {
				assert.NotEmpty(t, r.Reason)
				assert.NotEmpty(t, r.ExpectedValue)
			}
		})
	}
}

func TestGenerate_SortedByPriority(t *testing.T) {
	g := NewGenerator(nil)
	fv := features.FeatureVector{
		AvgMonthlySpend:      25000,
		TransactionFrequency: 60,
		InternationalRatio:   0.35,
		PaymentTimeliness:    0.6,
		SpendVolatility:      0.8,
	}

	recs := g.Generate(fv, nil)
	require.NotEmpty(t, recs)

	for i := 1; i < len(recs); i++ {
		assert.GreaterOrEqual(t, recs[i-1].Priority.Rank(), recs[i].Priority.Rank())
	}
}

func TestGenerate_RulesAreIndependent(t *testing.T) {
	fv := features.FeatureVector{
		AvgMonthlySpend:      12000,
		TransactionFrequency: 40,
		InternationalRatio:   0.45,
		PaymentTimeliness:    0.7,
	}
	seg := segment(model.SegmentTravelHeavy)

	full := products(NewGenerator(nil).Generate(fv, seg))

	catalog := DefaultCatalog()
	reduced := append([]Rule{}, catalog[:1]...)
	reduced = append(reduced, catalog[2:]...)
	partial := products(NewGenerator(reduced).Generate(fv, seg))

	var expected []string
	for _, p := range full {
		if p != catalog[1].Product {
			expected = append(expected, p)
		}
	}
	assert.Equal(t, expected, partial)
}

func TestGenerate_ExpectedValueScalesWithFeature(t *testing.T) {
	g := NewGenerator(nil)
	seg := segment(model.SegmentTravelHeavy)

	small := g.Generate(features.FeatureVector{AvgMonthlySpend: 1000, TransactionFrequency: 20, InternationalRatio: 0.5, PaymentTimeliness: 1}, seg)
	large := g.Generate(features.FeatureVector{AvgMonthlySpend: 100000, TransactionFrequency: 20, InternationalRatio: 0.5, PaymentTimeliness: 1}, seg)

	require.Equal(t, ProductGlobalCurrency, small[0].ProductName)
	require.Equal(t, ProductGlobalCurrency, large[0].ProductName)
	assert.Contains(t, small[0].ExpectedValue, "$72/year")
	assert.Contains(t, large[0].ExpectedValue, "$7,200/year")
}

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		want string
		in   decimal.Decimal
	}{
		{in: decimal.Zero, want: "$0"},
		{in: decimal.NewFromInt(999), want: "$999"},
		{in: decimal.RequireFromString("1234567.4"), want: "$1,234,567"},
		{in: decimal.NewFromInt(-1500), want: "-$1,500"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatUSD(tt.in))
		})
	}
}

func TestProducts(t *testing.T) {
	assert.Len(t, NewGenerator(nil).Products(), 10)
}
