package features

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/Veraticus/cardwise/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func txn(date string, amount string, category string, intl bool) model.Transaction {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return model.Transaction{
		CustomerID:       "cust-1",
		Date:             d,
		MerchantName:     "Merchant",
		MerchantCategory: category,
		Amount:           decimal.RequireFromString(amount),
		International:    intl,
	}
}

func ptr[T any](v T) *T {
	return &v
}

func TestExtract_ZeroTransactions(t *testing.T) {
	fv := Extract(nil, TimelinessSignal{}, DefaultConfig())

	assert.Equal(t, FeatureVector{PaymentTimeliness: 0.5}, fv)
	for _, v := range fv.Values() {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
}

func TestExtract_InternationalRatio(t *testing.T) {
	txns := make([]model.Transaction, 0, 10)
	for i := 0; i < 10; i++ {
		txns = append(txns, txn("2024-03-05", "100.00", model.CategoryRestaurants, i == 0))
	}

	fv := Extract(txns, TimelinessSignal{}, DefaultConfig())

	assert.InDelta(t, 0.1, fv.InternationalRatio, 1e-9)
	assert.InDelta(t, 10.0, fv.TransactionFrequency, 1e-9)
	assert.InDelta(t, 1000.0, fv.AvgMonthlySpend, 1e-9)
	assert.InDelta(t, 0.0, fv.SpendVolatility, 1e-9)
	assert.InDelta(t, 0.1, fv.CategoryDiversity, 1e-9)
}

func TestExtract_MonthlySpendAndVolatility(t *testing.T) {
	txns := []model.Transaction{
		txn("2024-01-10", "100.00", model.CategoryTravel, false),
		txn("2024-01-20", "100.00", model.CategoryHotels, false),
		txn("2024-02-03", "400.00", model.CategoryTravel, true),
	}

	fv := Extract(txns, TimelinessSignal{}, DefaultConfig())

	// Monthly totals 200 and 400: mean 300, population std-dev 100.
	assert.InDelta(t, 300.0, fv.AvgMonthlySpend, 1e-9)
	assert.InDelta(t, 100.0/300.0, fv.SpendVolatility, 1e-9)
	assert.InDelta(t, 2.0/3.0, fv.CategoryDiversity, 1e-9)
	assert.InDelta(t, 1.0/3.0, fv.InternationalRatio, 1e-9)
}

func TestExtract_Timeliness(t *testing.T) {
	onTime := txn("2024-01-10", "10.00", model.CategoryUtilities, false)
	onTime.PaidOnTime = ptr(true)
	late := txn("2024-01-11", "10.00", model.CategoryUtilities, false)
	late.PaidOnTime = ptr(false)
	unflagged := txn("2024-01-12", "10.00", model.CategoryUtilities, false)

	tests := []struct {
		signal TimelinessSignal
		name   string
		txns   []model.Transaction
		cfg    Config
		want   float64
	}{
		{
			name:   "flags take precedence over reported score",
			txns:   []model.Transaction{onTime, late, unflagged, onTime},
			signal: TimelinessSignal{Reported: ptr(0.1)},
			cfg:    DefaultConfig(),
			want:   2.0 / 3.0,
		},
		{
			name:   "reported score when no flags",
			txns:   []model.Transaction{unflagged},
			signal: TimelinessSignal{Reported: ptr(0.92)},
			cfg:    DefaultConfig(),
			want:   0.92,
		},
		{
			name:   "reported score is clamped",
			txns:   []model.Transaction{unflagged},
			signal: TimelinessSignal{Reported: ptr(1.7)},
			cfg:    DefaultConfig(),
			want:   1,
		},
		{
			name: "configured neutral value",
			txns: []model.Transaction{unflagged},
			cfg:  Config{NeutralTimeliness: 0.6},
			want: 0.6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fv := Extract(tt.txns, tt.signal, tt.cfg)
			assert.InDelta(t, tt.want, fv.PaymentTimeliness, 1e-9)
		})
	}
}

func TestExtract_ZeroAmountMonthsHaveNoVolatility(t *testing.T) {
	txns := []model.Transaction{
		txn("2024-01-10", "0", model.CategoryTravel, false),
		txn("2024-02-10", "0", model.CategoryTravel, false),
	}

	fv := Extract(txns, TimelinessSignal{}, DefaultConfig())

	assert.InDelta(t, 0.0, fv.SpendVolatility, 1e-9)
	assert.InDelta(t, 0.0, fv.AvgMonthlySpend, 1e-9)
}

func TestExtractAll(t *testing.T) {
	inputs := make([]Input, 25)
	for i := range inputs {
		n := i + 1
		txns := make([]model.Transaction, n)
		for j := range txns {
			txns[j] = txn("2024-05-01", "10.00", model.CategoryRestaurants, false)
		}
		inputs[i] = Input{CustomerID: "c", Transactions: txns}
	}

	var calls int
	vectors, err := ExtractAll(context.Background(), inputs, DefaultConfig(), 4, func(done, total int) {
		calls++
		assert.Equal(t, len(inputs), total)
		assert.LessOrEqual(t, done, total)
	})
	require.NoError(t, err)
	require.Len(t, vectors, len(inputs))
	assert.Equal(t, len(inputs), calls)

	for i, v := range vectors {
		assert.InDelta(t, float64(i+1), v.TransactionFrequency, 1e-9, "vector %d out of order", i)
	}
}

func TestExtractAll_Empty(t *testing.T) {
	vectors, err := ExtractAll(context.Background(), nil, DefaultConfig(), 4, nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestExtractAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inputs := make([]Input, 10)
	_, err := ExtractAll(ctx, inputs, DefaultConfig(), 2, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
