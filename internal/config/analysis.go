package config

import (
	"fmt"
	"runtime"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/spf13/viper"
)

// Normalization methods accepted by features.normalization.
const (
	NormalizeZScore = "zscore"
	NormalizeMinMax = "minmax"
)

// AnalysisConfig holds the tunables of an analysis run. The convergence cap and
// neutral timeliness value are exposed here rather than hidden in code.
type AnalysisConfig struct {
	Normalization     string
	Clusters          int
	MaxIterations     int
	Restarts          int
	Workers           int
	Seed              int64
	NeutralTimeliness float64
}

// DefaultAnalysisConfig returns the defaults used when nothing is configured.
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		Clusters:          4,
		MaxIterations:     100,
		Restarts:          10,
		Seed:              42,
		Workers:           runtime.NumCPU(),
		Normalization:     NormalizeZScore,
		NeutralTimeliness: 0.5,
	}
}

// SetDefaults registers analysis defaults on a viper instance.
func SetDefaults(v *viper.Viper) {
	d := DefaultAnalysisConfig()
	v.SetDefault("analysis.clusters", d.Clusters)
	v.SetDefault("analysis.max_iterations", d.MaxIterations)
	v.SetDefault("analysis.restarts", d.Restarts)
	v.SetDefault("analysis.seed", d.Seed)
	v.SetDefault("analysis.workers", d.Workers)
	v.SetDefault("features.normalization", d.Normalization)
	v.SetDefault("features.neutral_timeliness", d.NeutralTimeliness)
	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.tls", false)
	v.SetDefault("server.tls_dir", DefaultCertDir)
}

// LoadAnalysisConfig reads the analysis section from viper and validates it.
func LoadAnalysisConfig(v *viper.Viper) (*AnalysisConfig, error) {
	cfg := DefaultAnalysisConfig()

	if v.IsSet("analysis.clusters") {
		cfg.Clusters = v.GetInt("analysis.clusters")
	}
	if v.IsSet("analysis.max_iterations") {
		cfg.MaxIterations = v.GetInt("analysis.max_iterations")
	}
	if v.IsSet("analysis.restarts") {
		cfg.Restarts = v.GetInt("analysis.restarts")
	}
	if v.IsSet("analysis.seed") {
		cfg.Seed = v.GetInt64("analysis.seed")
	}
	if v.IsSet("analysis.workers") {
		cfg.Workers = v.GetInt("analysis.workers")
	}
	if s := v.GetString("features.normalization"); s != "" {
		cfg.Normalization = s
	}
	if v.IsSet("features.neutral_timeliness") {
		cfg.NeutralTimeliness = v.GetFloat64("features.neutral_timeliness")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every field is within range.
func (c AnalysisConfig) Validate() error {
	if c.Clusters < 1 {
		return invalid("analysis.clusters", fmt.Sprintf("must be at least 1, got %d", c.Clusters))
	}
	if c.MaxIterations < 1 {
		return invalid("analysis.max_iterations", fmt.Sprintf("must be at least 1, got %d", c.MaxIterations))
	}
	if c.Restarts < 1 {
		return invalid("analysis.restarts", fmt.Sprintf("must be at least 1, got %d", c.Restarts))
	}
	if c.Workers < 1 {
		return invalid("analysis.workers", fmt.Sprintf("must be at least 1, got %d", c.Workers))
	}
	if c.Normalization != NormalizeZScore && c.Normalization != NormalizeMinMax {
		return invalid("features.normalization", fmt.Sprintf("unknown method %q", c.Normalization))
	}
	if c.NeutralTimeliness < 0 || c.NeutralTimeliness > 1 {
		return invalid("features.neutral_timeliness", "must be between 0 and 1")
	}
	return nil
}

func invalid(field, msg string) error {
	return common.NewValidationError(field, msg, common.ErrInvalidConfig)
}
