package features

import (
	"fmt"
	"math"

	"github.com/Veraticus/cardwise/internal/common"
)

// Method selects the normalization applied before clustering.
type Method string

// Supported normalization methods.
const (
	ZScore Method = "zscore"
	MinMax Method = "minmax"
)

// Scaler holds the per-column parameters fitted over a population.
// Normalized value = (x - Offset) / Scale; a zero Scale marks a constant column.
type Scaler struct {
	Method Method
	Offset []float64
	Scale  []float64
}

// Fit computes scaler parameters over rows. All rows must share one width.
func Fit(rows [][]float64, method Method) (*Scaler, error) {
	if method != ZScore && method != MinMax {
		return nil, common.NewValidationError("normalization", fmt.Sprintf("unknown method %q", method), common.ErrInvalidConfig)
	}
	if len(rows) == 0 {
		return nil, common.NewValidationError("population", "cannot normalize an empty population", common.ErrNoCustomers)
	}

	width := len(rows[0])
	for i, row := range rows {
		if len(row) != width {
			return nil, common.NewValidationError("features", fmt.Sprintf("row %d has %d columns, want %d", i, len(row), width), nil)
		}
	}

	s := &Scaler{
		Method: method,
		Offset: make([]float64, width),
		Scale:  make([]float64, width),
	}

	n := float64(len(rows))
	for col := 0; col < width; col++ {
		switch method {
		case ZScore:
			mean := 0.0
			for _, row := range rows {
				mean += row[col]
			}
			mean /= n

			variance := 0.0
			for _, row := range rows {
				d := row[col] - mean
				variance += d * d
			}
			s.Offset[col] = mean
			s.Scale[col] = math.Sqrt(variance / n)
		case MinMax:
			lo, hi := rows[0][col], rows[0][col]
			for _, row := range rows[1:] {
				lo = math.Min(lo, row[col])
				hi = math.Max(hi, row[col])
			}
			s.Offset[col] = lo
			s.Scale[col] = hi - lo
		}
	}

	return s, nil
}

// Transform applies the scaler to a single row.
func (s *Scaler) Transform(row []float64) []float64 {
	out := make([]float64, len(row))
	for col, v := range row {
		if col >= len(s.Scale) || s.Scale[col] == 0 || math.IsNaN(s.Scale[col]) {
			continue
		}
		z := (v - s.Offset[col]) / s.Scale[col]
		if math.IsNaN(z) || math.IsInf(z, 0) {
			continue
		}
		out[col] = z
	}
	return out
}

// Normalize fits a scaler over vectors and returns the normalized rows.
func Normalize(vectors []FeatureVector, method Method) ([][]float64, *Scaler, error) {
	rows := make([][]float64, len(vectors))
	for i, v := range vectors {
		rows[i] = v.Values()
	}

	scaler, err := Fit(rows, method)
	if err != nil {
		return nil, nil, err
	}

	normalized := make([][]float64, len(rows))
	for i, row := range rows {
		normalized[i] = scaler.Transform(row)
	}
	return normalized, scaler, nil
}
