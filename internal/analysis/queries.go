package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/features"
	"github.com/Veraticus/cardwise/internal/model"
	"github.com/Veraticus/cardwise/internal/storage"
)

// DefaultRunHistory is how many runs Runs returns when no limit is given.
const DefaultRunHistory = 20

// Recommend computes product recommendations for one customer from their
// current transactions and segment. Unknown customers yield ErrNotFound.
func (s *Service) Recommend(ctx context.Context, customerID string) ([]model.Recommendation, error) {
	customer, err := s.deps.Store.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	fv, seg, err := s.profile(ctx, customer)
	if err != nil {
		return nil, err
	}

	recs := s.deps.Generator.Generate(fv, seg)
	s.deps.Recorder.ObserveRecommendations(len(recs))
	return recs, nil
}

// profile extracts a customer's live features and resolves their segment.
// A segment reference that no longer resolves is treated as unsegmented.
func (s *Service) profile(ctx context.Context, customer *model.Customer) (features.FeatureVector, *model.Segment, error) {
	txns, err := s.deps.Store.GetTransactionsForCustomer(ctx, customer.ID)
	if err != nil {
		return features.FeatureVector{}, nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	fv := features.Extract(txns, features.TimelinessSignal{Reported: customer.ReportedTimeliness}, s.featureConfig())

	seg, err := s.segmentOf(ctx, customer)
	if err != nil {
		return features.FeatureVector{}, nil, err
	}
	return fv, seg, nil
}

func (s *Service) segmentOf(ctx context.Context, customer *model.Customer) (*model.Segment, error) {
	if !customer.HasSegment() {
		return nil, nil
	}
	seg, err := s.deps.Store.GetSegment(ctx, *customer.SegmentID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load segment: %w", err)
	}
	return seg, nil
}

// DashboardStats summarizes the portfolio.
func (s *Service) DashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	return s.deps.Store.DashboardStats(ctx)
}

// Segments returns the segments of the current generation.
func (s *Service) Segments(ctx context.Context) ([]model.Segment, error) {
	return s.deps.Store.ListSegments(ctx)
}

// CurrentGeneration returns the committed generation, or ErrNotFound before
// the first run.
func (s *Service) CurrentGeneration(ctx context.Context) (*model.Generation, error) {
	return s.deps.Store.CurrentGeneration(ctx)
}

// Customers lists customers, optionally filtered by segment.
func (s *Service) Customers(ctx context.Context, filter storage.CustomerFilter) ([]model.Customer, error) {
	return s.deps.Store.ListCustomers(ctx, filter)
}

// Customer returns one customer with their transactions, live features and
// segment.
func (s *Service) Customer(ctx context.Context, id string) (*CustomerDetail, error) {
	customer, err := s.deps.Store.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}

	txns, err := s.deps.Store.GetTransactionsForCustomer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	seg, err := s.segmentOf(ctx, customer)
	if err != nil {
		return nil, err
	}

	return &CustomerDetail{
		Customer:     customer,
		Segment:      seg,
		Transactions: txns,
		Features:     features.Extract(txns, features.TimelinessSignal{Reported: customer.ReportedTimeliness}, s.featureConfig()),
	}, nil
}

// Transactions lists transactions newest first.
func (s *Service) Transactions(ctx context.Context, filter storage.TransactionFilter) ([]model.Transaction, error) {
	return s.deps.Store.ListTransactions(ctx, filter)
}

// Runs returns recent analysis runs, newest first.
func (s *Service) Runs(ctx context.Context, limit int) ([]model.AnalysisRun, error) {
	if limit <= 0 {
		limit = DefaultRunHistory
	}
	return s.deps.Store.ListRuns(ctx, limit)
}

// GetRun returns one analysis run.
func (s *Service) GetRun(ctx context.Context, id string) (*model.AnalysisRun, error) {
	return s.deps.Store.GetRun(ctx, id)
}
