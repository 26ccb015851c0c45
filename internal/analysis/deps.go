// Package analysis orchestrates segmentation runs: feature extraction,
// clustering, characterization and the atomic commit, plus the ingestion
// and read paths that surround them.
package analysis

import (
	"fmt"

	"github.com/Veraticus/cardwise/internal/config"
	"github.com/Veraticus/cardwise/internal/recommend"
)

// Deps contains all dependencies required by the service.
type Deps struct {
	// Store provides access to the persistence layer.
	Store Store
	// Recorder receives metrics. Optional.
	Recorder Recorder
	// Generator produces recommendations. Optional; defaults to the standard catalog.
	Generator *recommend.Generator
}

// Validate ensures all required dependencies are provided.
func (d *Deps) Validate() error {
	if d.Store == nil {
		return fmt.Errorf("store dependency is required")
	}
	return nil
}

// Service runs and serves segmentation analyses. A Service is safe for
// concurrent use; at most one run is in flight at a time.
type Service struct {
	deps  Deps
	cfg   config.AnalysisConfig
	guard runGuard
}

// NewService creates a service with the provided dependencies.
func NewService(deps Deps, cfg config.AnalysisConfig) (*Service, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if deps.Generator == nil {
		deps.Generator = recommend.NewGenerator(nil)
	}
	return &Service{
		deps:  deps,
		cfg:   cfg,
		guard: newRunGuard(),
	}, nil
}

// Config returns the analysis configuration in effect.
func (s *Service) Config() config.AnalysisConfig {
	return s.cfg
}
