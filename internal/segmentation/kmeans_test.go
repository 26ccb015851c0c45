package segmentation

import (
	"context"
	"math/rand"
	"testing"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, k int) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.K = k
	cfg.Workers = 3
	engine, err := NewEngine(cfg)
	require.NoError(t, err)
	return engine
}

func blobs(n int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	centers := [][]float64{{0, 0}, {10, 10}, {-10, 10}, {10, -10}}
	points := make([][]float64, 0, n)
	for i := 0; i < n; i++ {
		c := centers[i%len(centers)]
		points = append(points, []float64{c[0] + rng.NormFloat64(), c[1] + rng.NormFloat64()})
	}
	return points
}

func TestCluster_ThreeCustomersTwoClusters(t *testing.T) {
	engine := newTestEngine(t, 2)
	points := [][]float64{{0, 0}, {0.1, 0.1}, {10, 10}}

	result, err := engine.Cluster(context.Background(), points)
	require.NoError(t, err)

	assert.True(t, result.Converged)
	assert.Equal(t, result.Assignments[0], result.Assignments[1])
	assert.NotEqual(t, result.Assignments[0], result.Assignments[2])
	assert.ElementsMatch(t, []int{2, 1}, result.Sizes())
}

func TestCluster_KNonEmptyClusters(t *testing.T) {
	engine := newTestEngine(t, 4)

	result, err := engine.Cluster(context.Background(), blobs(40, 1))
	require.NoError(t, err)

	require.Len(t, result.Centroids, 4)
	for c, size := range result.Sizes() {
		assert.Positive(t, size, "cluster %d is empty", c)
	}
}

func TestCluster_Deterministic(t *testing.T) {
	points := blobs(60, 7)

	first, err := newTestEngine(t, 4).Cluster(context.Background(), points)
	require.NoError(t, err)
	second, err := newTestEngine(t, 4).Cluster(context.Background(), points)
	require.NoError(t, err)

	assert.Equal(t, first.Assignments, second.Assignments)
	assert.Equal(t, first.Centroids, second.Centroids)
	assert.InDelta(t, first.Inertia, second.Inertia, 1e-12)
}

func TestCluster_IdenticalPoints(t *testing.T) {
	repeat := func(p []float64, n int) [][]float64 {
		out := make([][]float64, n)
		for i := range out {
			out[i] = p
		}
		return out
	}

	tests := []struct {
		name    string
		points  [][]float64
		inertia float64
	}{
		{name: "single distinct point", points: repeat([]float64{1, 1, 1}, 6)},
		{
			name:   "two distinct points for four clusters",
			points: append(repeat([]float64{0, 0}, 3), repeat([]float64{5, 5}, 3)...),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t, 4)

			result, err := engine.Cluster(context.Background(), tt.points)
			require.NoError(t, err)

			assert.True(t, result.Converged)
			assert.Less(t, result.Iterations, engine.cfg.MaxIterations)
			for c, size := range result.Sizes() {
				assert.Positive(t, size, "cluster %d is empty", c)
			}
			assert.InDelta(t, tt.inertia, result.Inertia, 1e-12)
		})
	}
}

func TestCluster_ExactlyKPoints(t *testing.T) {
	engine := newTestEngine(t, 4)
	points := [][]float64{{0}, {1}, {2}, {3}}

	result, err := engine.Cluster(context.Background(), points)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 1, 1, 1}, result.Sizes())
}

func TestCluster_ValidationErrors(t *testing.T) {
	tests := []struct {
		sentinel error
		name     string
		points   [][]float64
	}{
		{name: "empty population", points: nil, sentinel: common.ErrNoCustomers},
		{name: "fewer points than clusters", points: [][]float64{{0}, {1}, {2}}, sentinel: common.ErrTooFewCustomers},
	}

	engine := newTestEngine(t, 4)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Cluster(context.Background(), tt.points)
			require.Error(t, err)
			assert.True(t, common.IsValidation(err))
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	_, err := NewEngine(Config{K: 0, MaxIterations: 10})
	require.Error(t, err)
	assert.True(t, common.IsValidation(err))

	_, err = NewEngine(Config{K: 2, MaxIterations: 0})
	require.Error(t, err)
	assert.True(t, common.IsValidation(err))
}

func TestCluster_IterationCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxIterations = 1
	engine, err := NewEngine(cfg)
	require.NoError(t, err)

	result, err := engine.Cluster(context.Background(), blobs(20, 3))
	require.NoError(t, err)

	assert.False(t, result.Converged)
	assert.Equal(t, 1, result.Iterations)
	for c, size := range result.Sizes() {
		assert.Positive(t, size, "cluster %d is empty", c)
	}
}

func TestCluster_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEngine(t, 4).Cluster(ctx, blobs(20, 3))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNearest_TieBreaksToLowerIndex(t *testing.T) {
	centroids := [][]float64{{-1}, {1}}
	assert.Equal(t, 0, nearest([]float64{0}, centroids))
}

func TestRepairEmpty(t *testing.T) {
	points := [][]float64{{0}, {1}, {5}}
	centroids := [][]float64{{2}, {100}}
	assignments := []int{0, 0, 0}

	repairEmpty(points, centroids, assignments)

	// Point 2 is farthest from centroid 0 (distance 3).
	assert.Equal(t, []int{0, 0, 1}, assignments)
	assert.Equal(t, []float64{5}, centroids[1])
}
