package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAnalysisConfig_Defaults(t *testing.T) {
	cfg, err := LoadAnalysisConfig(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Clusters)
	assert.Equal(t, 100, cfg.MaxIterations)
	assert.Equal(t, 10, cfg.Restarts)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, NormalizeZScore, cfg.Normalization)
	assert.InDelta(t, 0.5, cfg.NeutralTimeliness, 1e-9)
	assert.GreaterOrEqual(t, cfg.Workers, 1)
}

func TestLoadAnalysisConfig_Overrides(t *testing.T) {
	v := viper.New()
	v.Set("analysis.clusters", 3)
	v.Set("analysis.max_iterations", 25)
	v.Set("analysis.seed", 7)
	v.Set("features.normalization", NormalizeMinMax)
	v.Set("features.neutral_timeliness", 0.6)

	cfg, err := LoadAnalysisConfig(v)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Clusters)
	assert.Equal(t, 25, cfg.MaxIterations)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, NormalizeMinMax, cfg.Normalization)
	assert.InDelta(t, 0.6, cfg.NeutralTimeliness, 1e-9)
}

func TestLoadAnalysisConfig_Invalid(t *testing.T) {
	tests := []struct {
		value any
		name  string
		key   string
	}{
		{name: "zero clusters", key: "analysis.clusters", value: 0},
		{name: "negative iterations", key: "analysis.max_iterations", value: -1},
		{name: "zero workers", key: "analysis.workers", value: 0},
		{name: "unknown normalization", key: "features.normalization", value: "log"},
		{name: "timeliness above one", key: "features.neutral_timeliness", value: 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.value)

			_, err := LoadAnalysisConfig(v)
			require.Error(t, err)
			assert.True(t, common.IsValidation(err))
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestDatabasePath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".local/share/cardwise/cardwise.db"), DatabasePath(""))
	assert.Equal(t, filepath.Join(home, "data.db"), DatabasePath("~/data.db"))
	assert.Equal(t, ":memory:", DatabasePath(":memory:"))
}

func TestCertDir(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".config/cardwise/certs"), CertDir(" "))
	assert.Equal(t, "/etc/cardwise/tls", CertDir("/etc/cardwise/tls"))
}
