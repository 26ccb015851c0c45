package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Veraticus/cardwise/internal/characterize"
	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/features"
	"github.com/Veraticus/cardwise/internal/model"
	"github.com/Veraticus/cardwise/internal/segmentation"
	"github.com/Veraticus/cardwise/internal/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Run performs a full segmentation: every customer is re-extracted,
// re-clustered and the new generation replaces the current one atomically.
// A second Run while one is in flight fails with ErrAnalysisInProgress.
func (s *Service) Run(ctx context.Context, opts Options) (*RunResult, error) {
	if err := s.guard.tryAcquire(); err != nil {
		return nil, err
	}
	defer s.guard.release()

	return s.runLocked(ctx, opts)
}

func (s *Service) runLocked(ctx context.Context, opts Options) (*RunResult, error) {
	progress := opts.ProgressFunc
	if progress == nil {
		progress = func(string, int) {}
	}

	started := time.Now()
	run := &model.AnalysisRun{
		ID:        uuid.NewString(),
		Status:    model.RunStatusRunning,
		StartedAt: started.UTC(),
	}
	if err := s.deps.Store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	slog.Info("Starting analysis run", "run_id", run.ID)

	progress(StageLoading, 5)
	customers, err := s.deps.Store.ListCustomers(ctx, storage.CustomerFilter{})
	if err != nil {
		return nil, s.failRun(ctx, run, started, 0, fmt.Errorf("failed to load customers: %w", err))
	}
	transactions, err := s.deps.Store.TransactionsByCustomer(ctx)
	if err != nil {
		return nil, s.failRun(ctx, run, started, 0, fmt.Errorf("failed to load transactions: %w", err))
	}
	run.CustomerCount = len(customers)

	outcome, err := s.extractAndCluster(ctx, customers, transactions, progress)
	if err != nil {
		return nil, s.failRun(ctx, run, started, 0, err)
	}

	progress(StageCommitting, commitPct)
	gen, segments, err := s.commit(ctx, outcome)
	if err != nil {
		return nil, s.failRun(ctx, run, started, outcome.Result.Iterations, err)
	}

	completed := time.Now().UTC()
	run.Status = model.RunStatusCompleted
	run.CompletedAt = &completed
	run.GenerationID = &gen.ID
	if outcome.Warning != nil {
		warning := outcome.Warning.Error()
		run.Warning = &warning
	}
	// The generation is committed; the run record is bookkeeping only.
	if err := s.deps.Store.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
		slog.Warn("Failed to update run status", "run_id", run.ID, "error", err)
	}
	s.deps.Recorder.ObserveRun(run.Status, time.Since(started), outcome.Result.Iterations)

	slog.Info("Analysis run completed",
		"run_id", run.ID,
		"generation_id", gen.ID,
		"customers", len(outcome.Customers),
		"iterations", gen.Iterations,
		"converged", gen.Converged,
		"duration", time.Since(started))

	progress(StageComplete, 100)
	return &RunResult{
		Run:        run,
		Generation: gen,
		Segments:   segments,
		Warning:    outcome.Warning,
	}, nil
}

// failRun records a failed or cancelled run and returns err.
func (s *Service) failRun(ctx context.Context, run *model.AnalysisRun, started time.Time, iterations int, err error) error {
	run.Status = model.RunStatusFailed
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		run.Status = model.RunStatusCancelled
	}
	completed := time.Now().UTC()
	run.CompletedAt = &completed
	errStr := err.Error()
	run.Error = &errStr

	if updateErr := s.deps.Store.UpdateRun(context.WithoutCancel(ctx), run); updateErr != nil {
		slog.Warn("Failed to update run status", "run_id", run.ID, "error", updateErr)
	}
	s.deps.Recorder.ObserveRun(run.Status, time.Since(started), iterations)

	common.LogError(ctx, err, "Analysis run failed", common.Fields{"run_id": run.ID, "status": string(run.Status)})
	return err
}

// ExtractAndCluster computes features for every customer and clusters them.
// Nothing is written. transactions maps customer ID to that customer's
// transactions.
func (s *Service) ExtractAndCluster(
	ctx context.Context,
	customers []model.Customer,
	transactions map[string][]model.Transaction,
) (*ClusterOutcome, error) {
	return s.extractAndCluster(ctx, customers, transactions, func(string, int) {})
}

func (s *Service) extractAndCluster(
	ctx context.Context,
	customers []model.Customer,
	transactions map[string][]model.Transaction,
	progress ProgressFunc,
) (*ClusterOutcome, error) {
	if len(customers) == 0 {
		return nil, common.NewValidationError("customers", "no customers to segment", common.ErrNoCustomers)
	}
	if len(customers) < s.cfg.Clusters {
		return nil, common.NewValidationError("customers",
			fmt.Sprintf("need at least %d customers, have %d", s.cfg.Clusters, len(customers)),
			common.ErrTooFewCustomers)
	}

	inputs := make([]features.Input, len(customers))
	for i := range customers {
		inputs[i] = features.Input{
			CustomerID:   customers[i].ID,
			Transactions: transactions[customers[i].ID],
			Signal:       features.TimelinessSignal{Reported: customers[i].ReportedTimeliness},
		}
	}

	progress(StageExtracting, extractStartPct)
	span := extractEndPct - extractStartPct
	vectors, err := features.ExtractAll(ctx, inputs, s.featureConfig(), s.cfg.Workers, func(done, total int) {
		progress(StageExtracting, extractStartPct+span*done/total)
	})
	if err != nil {
		return nil, fmt.Errorf("feature extraction failed: %w", err)
	}

	rows, scaler, err := features.Normalize(vectors, features.Method(s.cfg.Normalization))
	if err != nil {
		return nil, err
	}

	engine, err := segmentation.NewEngine(segmentation.Config{
		K:             s.cfg.Clusters,
		MaxIterations: s.cfg.MaxIterations,
		Restarts:      s.cfg.Restarts,
		Workers:       s.cfg.Workers,
		Seed:          s.cfg.Seed,
	})
	if err != nil {
		return nil, err
	}

	progress(StageClustering, clusterPct)
	result, err := engine.Cluster(ctx, rows)
	if err != nil {
		return nil, err
	}

	outcome := &ClusterOutcome{
		Customers: customers,
		Features:  vectors,
		Result:    result,
		Scaler:    scaler,
		Stats:     make([]model.CustomerStats, len(customers)),
	}
	for i := range customers {
		outcome.Stats[i] = customerStats(transactions[customers[i].ID], vectors[i])
	}
	if !result.Converged {
		outcome.Warning = &common.ComputationError{Iterations: result.Iterations, Cap: s.cfg.MaxIterations}
		slog.Warn("Clustering stopped at iteration cap",
			"iterations", result.Iterations,
			"inertia", result.Inertia)
	}

	slog.Debug("Clustered customers",
		"customers", len(customers),
		"iterations", result.Iterations,
		"converged", result.Converged,
		"sizes", result.Sizes())

	return outcome, nil
}

// Characterize names the clusters of outcome and commits them as the new
// current generation. Either the whole generation becomes visible or nothing
// changes.
func (s *Service) Characterize(ctx context.Context, outcome *ClusterOutcome) ([]model.Segment, error) {
	if err := s.guard.tryAcquire(); err != nil {
		return nil, err
	}
	defer s.guard.release()

	_, segments, err := s.commit(ctx, outcome)
	return segments, err
}

func (s *Service) commit(ctx context.Context, outcome *ClusterOutcome) (*model.Generation, []model.Segment, error) {
	if outcome == nil || outcome.Result == nil {
		return nil, nil, fmt.Errorf("%w: cluster outcome", storage.ErrNilParameter)
	}
	if len(outcome.Result.Assignments) != len(outcome.Customers) ||
		len(outcome.Features) != len(outcome.Customers) ||
		len(outcome.Stats) != len(outcome.Customers) {
		return nil, nil, fmt.Errorf("cluster outcome is not aligned with its customers")
	}

	segments, err := characterize.Characterize(outcome.Result.Assignments, outcome.Features, outcome.Result.Centroids)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to characterize segments: %w", err)
	}

	gen := &model.Generation{
		ID:            uuid.NewString(),
		CreatedAt:     time.Now().UTC(),
		K:             len(outcome.Result.Centroids),
		Iterations:    outcome.Result.Iterations,
		Converged:     outcome.Result.Converged,
		Inertia:       outcome.Result.Inertia,
		CustomerCount: len(outcome.Customers),
	}
	for i := range segments {
		segments[i].ID = uuid.NewString()
		segments[i].GenerationID = gen.ID
	}

	updates := make([]model.CustomerUpdate, len(outcome.Customers))
	for i := range outcome.Customers {
		stats := outcome.Stats[i]
		stats.SegmentID = segments[outcome.Result.Assignments[i]].ID
		updates[i] = model.CustomerUpdate{CustomerID: outcome.Customers[i].ID, Stats: stats}
	}

	// Past this point the commit is all or nothing; a cancellation that
	// arrives earlier leaves the current generation untouched.
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if err := s.deps.Store.ReplaceSegmentation(ctx, gen, segments, updates); err != nil {
		return nil, nil, fmt.Errorf("failed to commit segmentation: %w", err)
	}

	return gen, segments, nil
}

func (s *Service) featureConfig() features.Config {
	return features.Config{NeutralTimeliness: s.cfg.NeutralTimeliness}
}

// customerStats derives the per-customer aggregates written back on commit.
func customerStats(txns []model.Transaction, fv features.FeatureVector) model.CustomerStats {
	stats := model.CustomerStats{
		TotalTransactions:  len(txns),
		InternationalRatio: fv.InternationalRatio,
	}
	if len(txns) == 0 {
		return stats
	}

	total := decimal.Zero
	months := make(map[string]struct{})
	categories := make(map[string]int)
	for i := range txns {
		total = total.Add(txns[i].Amount)
		months[txns[i].MonthKey()] = struct{}{}
		categories[txns[i].MerchantCategory]++
	}

	stats.MonthlySpend = total.Div(decimal.NewFromInt(int64(len(months)))).Round(2)
	stats.AvgTransactionValue = total.Div(decimal.NewFromInt(int64(len(txns)))).Round(2)
	stats.TopMerchantCategory = topCategory(categories)
	return stats
}

// topCategory returns the most frequent category; ties go to the
// alphabetically first.
func topCategory(counts map[string]int) string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	best, bestCount := "", 0
	for _, name := range names {
		if counts[name] > bestCount {
			best, bestCount = name, counts[name]
		}
	}
	return best
}
