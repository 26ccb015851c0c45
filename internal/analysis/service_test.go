package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/config"
	"github.com/Veraticus/cardwise/internal/model"
	"github.com/Veraticus/cardwise/internal/storage"
	"github.com/Veraticus/cardwise/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingRecorder captures metrics calls.
type recordingRecorder struct {
	mu              sync.Mutex
	runs            []model.RunStatus
	recommendations []int
	imports         map[string][2]int
}

func (r *recordingRecorder) ObserveRun(status model.RunStatus, _ time.Duration, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, status)
}

func (r *recordingRecorder) ObserveRecommendations(count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recommendations = append(r.recommendations, count)
}

func (r *recordingRecorder) ObserveImport(kind string, imported, rejected int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.imports == nil {
		r.imports = make(map[string][2]int)
	}
	r.imports[kind] = [2]int{imported, rejected}
}

// failingStore injects a commit failure into an otherwise real store.
type failingStore struct {
	*storage.SQLiteStorage
	replaceErr error
}

func (f *failingStore) ReplaceSegmentation(
	ctx context.Context,
	gen *model.Generation,
	segments []model.Segment,
	updates []model.CustomerUpdate,
) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	return f.SQLiteStorage.ReplaceSegmentation(ctx, gen, segments, updates)
}

func testConfig() config.AnalysisConfig {
	cfg := config.DefaultAnalysisConfig()
	cfg.Workers = 2
	return cfg
}

func newTestService(t *testing.T, store Store, cfg config.AnalysisConfig) (*Service, *recordingRecorder) {
	t.Helper()
	rec := &recordingRecorder{}
	svc, err := NewService(Deps{Store: store, Recorder: rec}, cfg)
	require.NoError(t, err)
	return svc, rec
}

func seededService(t *testing.T) (*Service, *testutil.TestDB, *recordingRecorder) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	db.Seed(testutil.NewPortfolio(t).WithFixture(testutil.FixtureFourBehaviors).Build())
	svc, rec := newTestService(t, db.Storage, testConfig())
	return svc, db, rec
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(Deps{}, testConfig())
	require.Error(t, err)

	db := testutil.SetupTestDB(t)
	cfg := testConfig()
	cfg.Clusters = 0
	_, err = NewService(Deps{Store: db.Storage}, cfg)
	assert.True(t, common.IsValidation(err))

	svc, err := NewService(Deps{Store: db.Storage}, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 4, svc.Config().Clusters)
	assert.False(t, svc.Busy())
}

func TestRun_CommitsGeneration(t *testing.T) {
	svc, _, rec := seededService(t)
	ctx := context.Background()

	var stages []string
	result, err := svc.Run(ctx, Options{ProgressFunc: func(stage string, _ int) {
		stages = append(stages, stage)
	}})
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusCompleted, result.Run.Status)
	require.NotNil(t, result.Run.GenerationID)
	assert.Equal(t, result.Generation.ID, *result.Run.GenerationID)
	assert.Equal(t, 12, result.Generation.CustomerCount)
	assert.Equal(t, StageLoading, stages[0])
	assert.Equal(t, StageComplete, stages[len(stages)-1])
	assert.Equal(t, []model.RunStatus{model.RunStatusCompleted}, rec.runs)

	// Every segment is distinct and the counts cover the population.
	require.Len(t, result.Segments, 4)
	seen := make(map[model.SegmentCategory]bool)
	total := 0
	for _, seg := range result.Segments {
		assert.False(t, seen[seg.Category], "duplicate category %s", seg.Category)
		seen[seg.Category] = true
		assert.Equal(t, seg.Category.DisplayName(), seg.Name)
		total += seg.CustomerCount
	}
	assert.Equal(t, 12, total)

	current, err := svc.CurrentGeneration(ctx)
	require.NoError(t, err)
	assert.Equal(t, result.Generation.ID, current.ID)

	// Customers sharing a behavior share a segment with the expected tag.
	groups := map[string]model.SegmentCategory{
		"big":    model.SegmentHighGrowth,
		"travel": model.SegmentTravelHeavy,
		"late":   model.SegmentAtRisk,
		"steady": model.SegmentSteady,
	}
	for prefix, want := range groups {
		var segmentID string
		for j := 0; j < 3; j++ {
			detail, err := svc.Customer(ctx, fmt.Sprintf("%s-%d", prefix, j))
			require.NoError(t, err)
			require.NotNil(t, detail.Segment, prefix)
			assert.Equal(t, want, detail.Segment.Category, prefix)
			if segmentID == "" {
				segmentID = detail.Segment.ID
			}
			assert.Equal(t, segmentID, detail.Segment.ID, prefix)
		}
	}
}

func TestRun_WritesCustomerStats(t *testing.T) {
	svc, _, _ := seededService(t)
	ctx := context.Background()

	_, err := svc.Run(ctx, Options{})
	require.NoError(t, err)

	detail, err := svc.Customer(ctx, "travel-0")
	require.NoError(t, err)
	c := detail.Customer
	assert.Equal(t, 20, c.TotalTransactions)
	assert.InDelta(t, 0.9, c.InternationalRatio, 1e-9)
	// 20 charges of $450 over two months.
	assert.Equal(t, "4500.00", c.MonthlySpend.StringFixed(2))
	assert.Equal(t, "450.00", c.AvgTransactionValue.StringFixed(2))
	assert.Equal(t, model.CategoryTravel, c.TopMerchantCategory)
	assert.Len(t, detail.Transactions, 20)
}

func TestRun_ThreeCustomersTwoClusters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	db.Seed(testutil.NewPortfolio(t).
		WithProfile("alpha", testutil.Profile{Amount: decimalOf(2500), Transactions: 20, International: 0.6}).
		WithProfile("beta", testutil.Profile{Amount: decimalOf(3000), Transactions: 20, International: 0.5}).
		WithProfile("gamma", testutil.Profile{Amount: decimalOf(250), Transactions: 20, International: 0.05}).
		Build())

	cfg := testConfig()
	cfg.Clusters = 2
	svc, _ := newTestService(t, db.Storage, cfg)
	ctx := context.Background()

	result, err := svc.Run(ctx, Options{})
	require.NoError(t, err)
	require.Len(t, result.Segments, 2)

	counts := []int{result.Segments[0].CustomerCount, result.Segments[1].CustomerCount}
	assert.ElementsMatch(t, []int{2, 1}, counts)

	alpha, err := db.Storage.GetCustomer(ctx, "alpha")
	require.NoError(t, err)
	beta, err := db.Storage.GetCustomer(ctx, "beta")
	require.NoError(t, err)
	gamma, err := db.Storage.GetCustomer(ctx, "gamma")
	require.NoError(t, err)

	assert.Equal(t, *alpha.SegmentID, *beta.SegmentID)
	assert.NotEqual(t, *alpha.SegmentID, *gamma.SegmentID)
	assert.Equal(t, "50000.00", alpha.MonthlySpend.StringFixed(2))
}

func TestRun_TooFewCustomers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	db.Seed(testutil.NewPortfolio(t).
		WithProfile("a", testutil.Profile{Amount: decimalOf(100), Transactions: 3}).
		WithProfile("b", testutil.Profile{Amount: decimalOf(200), Transactions: 3}).
		Build())
	svc, rec := newTestService(t, db.Storage, testConfig())

	_, err := svc.Run(context.Background(), Options{})
	require.Error(t, err)
	assert.True(t, common.IsValidation(err))
	assert.ErrorIs(t, err, common.ErrTooFewCustomers)
	assert.Equal(t, []model.RunStatus{model.RunStatusFailed}, rec.runs)

	runs, err := svc.Runs(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
	require.NotNil(t, runs[0].Error)
}

func TestRun_EmptyPopulation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := newTestService(t, db.Storage, testConfig())

	_, err := svc.Run(context.Background(), Options{})
	assert.ErrorIs(t, err, common.ErrNoCustomers)

	_, err = svc.CurrentGeneration(context.Background())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRun_RejectsConcurrentRun(t *testing.T) {
	svc, _, _ := seededService(t)
	require.NoError(t, svc.guard.tryAcquire())
	assert.True(t, svc.Busy())

	_, err := svc.Run(context.Background(), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrAnalysisInProgress)
	assert.True(t, common.IsRetryable(err))

	_, err = svc.Characterize(context.Background(), &ClusterOutcome{})
	assert.ErrorIs(t, err, common.ErrAnalysisInProgress)

	svc.guard.release()
	_, err = svc.Run(context.Background(), Options{})
	assert.NoError(t, err)
}

func TestRun_ParallelCallers(t *testing.T) {
	svc, _, _ := seededService(t)

	const callers = 4
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Run(context.Background(), Options{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, common.ErrAnalysisInProgress)
	}
	assert.GreaterOrEqual(t, succeeded, 1)

	segments, err := svc.Segments(context.Background())
	require.NoError(t, err)
	assert.Len(t, segments, 4)
}

func TestRun_CancelledLeavesCurrentGeneration(t *testing.T) {
	svc, _, rec := seededService(t)
	first, err := svc.Run(context.Background(), Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err = svc.Run(ctx, Options{ProgressFunc: func(stage string, _ int) {
		if stage == StageCommitting {
			cancel()
		}
	}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	current, err := svc.CurrentGeneration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Generation.ID, current.ID)

	segments, err := svc.Segments(context.Background())
	require.NoError(t, err)
	for _, seg := range segments {
		assert.Equal(t, first.Generation.ID, seg.GenerationID)
	}

	runs, err := svc.Runs(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	statuses := []model.RunStatus{runs[0].Status, runs[1].Status}
	assert.ElementsMatch(t, []model.RunStatus{model.RunStatusCompleted, model.RunStatusCancelled}, statuses)
	assert.Equal(t, []model.RunStatus{model.RunStatusCompleted, model.RunStatusCancelled}, rec.runs)
	assert.False(t, svc.Busy())
}

func TestRun_CommitFailure(t *testing.T) {
	db := testutil.SetupTestDB(t)
	db.Seed(testutil.NewPortfolio(t).WithFixture(testutil.FixtureFourBehaviors).Build())
	store := &failingStore{SQLiteStorage: db.Storage, replaceErr: errors.New("disk full")}
	svc, _ := newTestService(t, store, testConfig())
	ctx := context.Background()

	_, err := svc.Run(ctx, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	_, err = svc.CurrentGeneration(ctx)
	assert.ErrorIs(t, err, common.ErrNotFound)

	runs, err := svc.Runs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)

	got, err := svc.GetRun(ctx, runs[0].ID)
	require.NoError(t, err)
	assert.True(t, got.IsFinished())
}

func TestRun_IterationCapWarning(t *testing.T) {
	svc, _, _ := seededService(t)
	svc.cfg.MaxIterations = 1
	svc.cfg.Restarts = 1

	result, err := svc.Run(context.Background(), Options{})
	require.NoError(t, err)
	if result.Generation.Converged {
		t.Skip("clustering converged within one iteration")
	}

	require.NotNil(t, result.Warning)
	assert.ErrorIs(t, result.Warning, common.ErrNotConverged)
	require.NotNil(t, result.Run.Warning)
	assert.Len(t, result.Segments, 4)
}

func TestExtractAndCluster_ThenCharacterize(t *testing.T) {
	svc, db, _ := seededService(t)
	ctx := context.Background()

	customers, err := db.Storage.ListCustomers(ctx, storage.CustomerFilter{})
	require.NoError(t, err)
	txns, err := db.Storage.TransactionsByCustomer(ctx)
	require.NoError(t, err)

	outcome, err := svc.ExtractAndCluster(ctx, customers, txns)
	require.NoError(t, err)
	assert.Len(t, outcome.Features, len(customers))
	assert.Len(t, outcome.Result.Assignments, len(customers))

	// Nothing is visible until the outcome is characterized.
	_, err = svc.CurrentGeneration(ctx)
	assert.ErrorIs(t, err, common.ErrNotFound)

	segments, err := svc.Characterize(ctx, outcome)
	require.NoError(t, err)
	assert.Len(t, segments, 4)

	outcome.Stats = outcome.Stats[:1]
	_, err = svc.Characterize(ctx, outcome)
	assert.Error(t, err)

	_, err = svc.Characterize(ctx, nil)
	assert.ErrorIs(t, err, storage.ErrNilParameter)
}

func decimalOf(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}
