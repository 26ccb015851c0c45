package features

import (
	"testing"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_ZScore(t *testing.T) {
	vectors := []FeatureVector{
		{AvgMonthlySpend: 100, TransactionFrequency: 5, PaymentTimeliness: 0.5},
		{AvgMonthlySpend: 300, TransactionFrequency: 5, PaymentTimeliness: 0.5},
	}

	rows, scaler, err := Normalize(vectors, ZScore)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.InDelta(t, 200.0, scaler.Offset[0], 1e-9)
	assert.InDelta(t, -1.0, rows[0][0], 1e-9)
	assert.InDelta(t, 1.0, rows[1][0], 1e-9)

	// Constant columns collapse to zero.
	for _, row := range rows {
		for col := 1; col < Dimensions; col++ {
			assert.InDelta(t, 0.0, row[col], 1e-9)
		}
	}
}

func TestNormalize_MinMax(t *testing.T) {
	vectors := []FeatureVector{
		{InternationalRatio: 0},
		{InternationalRatio: 0.25},
		{InternationalRatio: 1},
	}

	rows, _, err := Normalize(vectors, MinMax)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, rows[0][2], 1e-9)
	assert.InDelta(t, 0.25, rows[1][2], 1e-9)
	assert.InDelta(t, 1.0, rows[2][2], 1e-9)
}

func TestNormalize_Errors(t *testing.T) {
	tests := []struct {
		name    string
		method  Method
		vectors []FeatureVector
	}{
		{name: "empty population", method: ZScore},
		{name: "unknown method", method: "log", vectors: []FeatureVector{{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Normalize(tt.vectors, tt.method)
			require.Error(t, err)
			assert.True(t, common.IsValidation(err))
		})
	}
}

func TestFit_RaggedRows(t *testing.T) {
	_, err := Fit([][]float64{{1, 2}, {1}}, ZScore)
	require.Error(t, err)
	assert.True(t, common.IsValidation(err))
}
