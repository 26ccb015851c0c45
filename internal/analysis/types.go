package analysis

import (
	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/features"
	"github.com/Veraticus/cardwise/internal/model"
	"github.com/Veraticus/cardwise/internal/segmentation"
)

// ProgressFunc receives stage updates during a run. Percent is 0-100.
type ProgressFunc func(stage string, percent int)

// Stage names reported through ProgressFunc.
const (
	StageLoading    = "Loading customers"
	StageExtracting = "Extracting features"
	StageClustering = "Clustering customers"
	StageCommitting = "Committing segments"
	StageComplete   = "Analysis complete"
)

const (
	extractStartPct = 10
	extractEndPct   = 60
	clusterPct      = 65
	commitPct       = 85
)

// Options configures a single run.
type Options struct {
	// ProgressFunc is called as the run advances. Optional.
	ProgressFunc ProgressFunc
}

// ClusterOutcome is the uncommitted result of extraction and clustering.
// Slices are index-aligned with Customers.
type ClusterOutcome struct {
	Result    *segmentation.Result
	Scaler    *features.Scaler
	Warning   *common.ComputationError
	Customers []model.Customer
	Features  []features.FeatureVector
	Stats     []model.CustomerStats
}

// RunResult is the outcome of a committed run.
type RunResult struct {
	Run        *model.AnalysisRun `json:"run"`
	Generation *model.Generation  `json:"generation"`
	// Warning is set when clustering stopped at its iteration cap. The
	// segmentation was still committed.
	Warning  *common.ComputationError `json:"-"`
	Segments []model.Segment          `json:"segments"`
}

// CustomerDetail is one customer with everything derived from it.
type CustomerDetail struct {
	Customer     *model.Customer        `json:"customer"`
	Segment      *model.Segment         `json:"segment,omitempty"`
	Transactions []model.Transaction    `json:"transactions"`
	Features     features.FeatureVector `json:"features"`
}
