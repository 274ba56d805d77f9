package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Forecast.DecompositionLevels)
	assert.Equal(t, 365, cfg.Forecast.SeasonalPeriod)
	assert.Equal(t, 30, cfg.Forecast.MaxHorizon)
	assert.Equal(t, 0.95, cfg.Forecast.ConfidenceLevel)
	assert.False(t, cfg.Forecast.AdaptiveWeights)
	assert.Equal(t, 10, cfg.Spatial.MaxHops)
	assert.Equal(t, 50.0, cfg.Spatial.PropagationSpeedKM)
	assert.Equal(t, 1.0, cfg.Spatial.FlowsToWeight)
	assert.Equal(t, 0.6, cfg.Spatial.InfluencesWeight)
	assert.Equal(t, "15m", cfg.Cache.TTL)
}

func TestLoad_EnvOverride(t *testing.T) {
	viper.Reset()
	t.Setenv("HYDROCAST_FORECAST_DECOMPOSITION_LEVELS", "4")
	t.Setenv("HYDROCAST_SPATIAL_MAX_HOPS", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Forecast.DecompositionLevels)
	assert.Equal(t, 5, cfg.Spatial.MaxHops)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"levels too high", func(c *Config) { c.Forecast.DecompositionLevels = 9 }},
		{"levels zero", func(c *Config) { c.Forecast.DecompositionLevels = 0 }},
		{"confidence out of range", func(c *Config) { c.Forecast.ConfidenceLevel = 1.5 }},
		{"holdout out of range", func(c *Config) { c.Forecast.HoldoutRatio = 0 }},
		{"non-positive speed", func(c *Config) { c.Spatial.PropagationSpeedKM = 0 }},
		{"zero hops", func(c *Config) { c.Spatial.MaxHops = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.validate())
		})
	}
}
