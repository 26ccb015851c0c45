// Package segmentation clusters normalized customer feature vectors with K-Means.
package segmentation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"slices"
	"sync"

	"github.com/Veraticus/cardwise/internal/common"
)

// Config controls a clustering run.
type Config struct {
	K             int
	MaxIterations int
	Restarts      int
	Workers       int
	Seed          int64
}

// DefaultConfig returns k=4 with the standard iteration cap and restart count.
func DefaultConfig() Config {
	return Config{
		K:             4,
		MaxIterations: 100,
		Restarts:      10,
		Workers:       1,
		Seed:          42,
	}
}

// Result is the outcome of a clustering run.
type Result struct {
	Assignments []int
	Centroids   [][]float64
	Iterations  int
	Inertia     float64
	Converged   bool
}

// Sizes returns the number of points assigned to each cluster.
func (r *Result) Sizes() []int {
	sizes := make([]int, len(r.Centroids))
	for _, c := range r.Assignments {
		sizes[c]++
	}
	return sizes
}

// Engine runs seeded K-Means with k-means++ initialization. Identical input and
// seed always produce identical output.
type Engine struct {
	cfg Config
}

// NewEngine validates cfg and returns an engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.K < 1 {
		return nil, common.NewValidationError("k", fmt.Sprintf("must be at least 1, got %d", cfg.K), common.ErrInvalidConfig)
	}
	if cfg.MaxIterations < 1 {
		return nil, common.NewValidationError("max_iterations", fmt.Sprintf("must be at least 1, got %d", cfg.MaxIterations), common.ErrInvalidConfig)
	}
	if cfg.Restarts < 1 {
		cfg.Restarts = 1
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Cluster partitions points into exactly K non-empty clusters. Running out of
// iterations is not an error: the best assignment is returned with
// Converged=false.
func (e *Engine) Cluster(ctx context.Context, points [][]float64) (*Result, error) {
	if err := validatePoints(points, e.cfg.K); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(e.cfg.Seed)) //nolint:gosec // deterministic seeding is required

	var best *Result
	for restart := 0; restart < e.cfg.Restarts; restart++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		centroids := seedPlusPlus(points, e.cfg.K, rng)
		result, err := e.lloyd(ctx, points, centroids)
		if err != nil {
			return nil, err
		}

		slog.Debug("k-means restart finished",
			"restart", restart,
			"iterations", result.Iterations,
			"converged", result.Converged,
			"inertia", result.Inertia)

		if best == nil || result.Inertia < best.Inertia {
			best = result
		}
	}

	return best, nil
}

func validatePoints(points [][]float64, k int) error {
	if len(points) == 0 {
		return common.NewValidationError("population", "no customers to segment", common.ErrNoCustomers)
	}
	if len(points) < k {
		return common.NewValidationError("population",
			fmt.Sprintf("%d customers cannot fill %d segments", len(points), k), common.ErrTooFewCustomers)
	}

	dim := len(points[0])
	for i, p := range points {
		if len(p) != dim {
			return common.NewValidationError("features", fmt.Sprintf("point %d has %d dimensions, want %d", i, len(p), dim), nil)
		}
		for _, v := range p {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return common.NewValidationError("features", fmt.Sprintf("point %d is not finite", i), nil)
			}
		}
	}
	return nil
}

// seedPlusPlus picks k initial centroids: the first uniformly, the rest with
// probability proportional to squared distance from the nearest chosen one.
func seedPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(points)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(points[rng.Intn(n)]))

	dist := make([]float64, n)
	for i, p := range points {
		dist[i] = sqDist(p, centroids[0])
	}

	for len(centroids) < k {
		total := 0.0
		for _, d := range dist {
			total += d
		}

		next := -1
		if total > 0 {
			target := rng.Float64() * total
			cum := 0.0
			for i, d := range dist {
				if d == 0 {
					continue
				}
				cum += d
				next = i
				if cum >= target {
					break
				}
			}
		}
		if next < 0 {
			// Every point coincides with a chosen centroid.
			next = rng.Intn(n)
		}

		c := clone(points[next])
		centroids = append(centroids, c)
		for i, p := range points {
			if d := sqDist(p, c); d < dist[i] {
				dist[i] = d
			}
		}
	}

	return centroids
}

// lloyd iterates assign, repair and update until assignments are stable or the
// iteration cap is reached.
func (e *Engine) lloyd(ctx context.Context, points [][]float64, centroids [][]float64) (*Result, error) {
	assignments := make([]int, len(points))
	for i := range assignments {
		assignments[i] = -1
	}

	// With fewer distinct points than clusters, assign keeps undoing what
	// repairEmpty did, so stability is judged on the repaired assignments.
	var repaired []int
	result := &Result{Assignments: assignments}
	for iter := 1; iter <= e.cfg.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result.Iterations = iter
		if !assign(points, centroids, assignments, e.cfg.Workers) {
			result.Converged = true
			break
		}
		repairEmpty(points, centroids, assignments)
		centroids = recompute(points, assignments, len(centroids))
		if slices.Equal(repaired, assignments) {
			result.Converged = true
			break
		}
		repaired = append(repaired[:0], assignments...)
	}

	result.Centroids = centroids
	result.Inertia = inertia(points, centroids, assignments)
	return result, nil
}

// assign moves each point to its nearest centroid, splitting points across
// workers. Equidistant centroids resolve to the lower index. It reports
// whether any assignment changed.
func assign(points [][]float64, centroids [][]float64, assignments []int, workers int) bool {
	n := len(points)
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers

	changed := make([]bool, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := min(start+chunk, n)
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				c := nearest(points[i], centroids)
				if c != assignments[i] {
					assignments[i] = c
					changed[w] = true
				}
			}
		}(w, start, end)
	}
	wg.Wait()

	for _, c := range changed {
		if c {
			return true
		}
	}
	return false
}

func nearest(p []float64, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := sqDist(p, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// repairEmpty gives every empty cluster the point farthest from its own
// centroid, taken only from clusters that keep at least one member.
func repairEmpty(points [][]float64, centroids [][]float64, assignments []int) {
	sizes := make([]int, len(centroids))
	for _, c := range assignments {
		sizes[c]++
	}

	for empty := range centroids {
		if sizes[empty] > 0 {
			continue
		}

		donor, donorDist := -1, -1.0
		for i, c := range assignments {
			if sizes[c] <= 1 {
				continue
			}
			if d := sqDist(points[i], centroids[c]); d > donorDist {
				donor, donorDist = i, d
			}
		}
		if donor < 0 {
			return
		}

		sizes[assignments[donor]]--
		assignments[donor] = empty
		sizes[empty] = 1
		centroids[empty] = clone(points[donor])
	}
}

func recompute(points [][]float64, assignments []int, k int) [][]float64 {
	dim := len(points[0])
	centroids := make([][]float64, k)
	counts := make([]int, k)
	for c := range centroids {
		centroids[c] = make([]float64, dim)
	}

	for i, c := range assignments {
		counts[c]++
		for d, v := range points[i] {
			centroids[c][d] += v
		}
	}

	for c := range centroids {
		if counts[c] == 0 {
			continue
		}
		for d := range centroids[c] {
			centroids[c][d] /= float64(counts[c])
		}
	}
	return centroids
}

func inertia(points [][]float64, centroids [][]float64, assignments []int) float64 {
	total := 0.0
	for i, c := range assignments {
		total += sqDist(points[i], centroids[c])
	}
	return total
}

func sqDist(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func clone(p []float64) []float64 {
	out := make([]float64, len(p))
	copy(out, p)
	return out
}
