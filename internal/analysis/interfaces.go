package analysis

import (
	"context"
	"time"

	"github.com/Veraticus/cardwise/internal/model"
	"github.com/Veraticus/cardwise/internal/storage"
)

// CustomerStore persists customers.
type CustomerStore interface {
	SaveCustomers(ctx context.Context, customers []model.Customer) error
	GetCustomer(ctx context.Context, id string) (*model.Customer, error)
	ListCustomers(ctx context.Context, filter storage.CustomerFilter) ([]model.Customer, error)
	CustomerIDs(ctx context.Context) (map[string]bool, error)
}

// TransactionStore persists transactions.
type TransactionStore interface {
	SaveTransactions(ctx context.Context, txns []model.Transaction) (int, error)
	ListTransactions(ctx context.Context, filter storage.TransactionFilter) ([]model.Transaction, error)
	GetTransactionsForCustomer(ctx context.Context, customerID string) ([]model.Transaction, error)
	TransactionsByCustomer(ctx context.Context) (map[string][]model.Transaction, error)
}

// SegmentStore persists segmentation generations.
type SegmentStore interface {
	// ReplaceSegmentation commits a generation atomically.
	ReplaceSegmentation(ctx context.Context, gen *model.Generation, segments []model.Segment, updates []model.CustomerUpdate) error
	CurrentGeneration(ctx context.Context) (*model.Generation, error)
	ListSegments(ctx context.Context) ([]model.Segment, error)
	GetSegment(ctx context.Context, id string) (*model.Segment, error)
	DashboardStats(ctx context.Context) (*model.DashboardStats, error)
}

// RunStore persists analysis run history.
type RunStore interface {
	CreateRun(ctx context.Context, run *model.AnalysisRun) error
	UpdateRun(ctx context.Context, run *model.AnalysisRun) error
	GetRun(ctx context.Context, id string) (*model.AnalysisRun, error)
	ListRuns(ctx context.Context, limit int) ([]model.AnalysisRun, error)
	FailInterruptedRuns(ctx context.Context) (int, error)
}

// Store is everything the service persists.
type Store interface {
	CustomerStore
	TransactionStore
	SegmentStore
	RunStore
	ResetData(ctx context.Context) error
	AutoBackup(ctx context.Context, operation string) (*storage.BackupInfo, error)
}

// Recorder receives operational measurements.
type Recorder interface {
	ObserveRun(status model.RunStatus, duration time.Duration, iterations int)
	ObserveRecommendations(count int)
	ObserveImport(kind string, imported, rejected int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRun(model.RunStatus, time.Duration, int) {}
func (nopRecorder) ObserveRecommendations(int)                     {}
func (nopRecorder) ObserveImport(string, int, int)                 {}

var _ Store = (*storage.SQLiteStorage)(nil)
