package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gimat/hydrocast/internal/config"
	"github.com/gimat/hydrocast/internal/models"
)

type fakeStations struct {
	stations map[string]*models.Station
	calls    int
}

func (f *fakeStations) GetStation(_ context.Context, stationID string) (*models.Station, error) {
	f.calls++
	if s, ok := f.stations[stationID]; ok {
		return s, nil
	}
	return nil, models.ErrNotFound
}

type orchestratorFixture struct {
	orchestrator *Orchestrator
	stations     *fakeStations
	source       *fakeSeriesSource
	cfg          *config.Config
}

func newOrchestratorFixture(t *testing.T, history *models.TimeSeries) *orchestratorFixture {
	t.Helper()

	cfg := &config.Config{
		Forecast: config.ForecastConfig{
			DecompositionLevels: 2,
			SeasonalPeriod:      0,
			MaxHorizon:          30,
			ConfidenceLevel:     0.95,
			HoldoutRatio:        0.2,
			HistoryDays:         730,
			OutlierScreening:    false,
		},
		Spatial: spatialTestConfig(),
	}

	logger := testLogger()
	stations := &fakeStations{stations: map[string]*models.Station{
		"hp-001": {ID: "hp-001", Name: "Main gauge", Kind: models.StationHydropost},
	}}
	source := &fakeSeriesSource{series: map[string]*models.TimeSeries{}}
	if history != nil {
		source.series[history.StationID] = history
	}

	spatial := NewSpatialPredictor(&fakeTopology{}, source, cfg.Spatial, logger)

	return &orchestratorFixture{
		orchestrator: NewOrchestrator(
			cfg,
			stations,
			source,
			NewDecomposer(cfg.Forecast.DecompositionLevels, logger),
			NewQualityScreen(3.0, logger),
			NewTrendPredictor(cfg.Forecast.SeasonalPeriod, logger),
			NewFluctuationPredictor(cfg.Forecast.HoldoutRatio, logger),
			spatial,
			NewCombiner(cfg.Forecast.ConfidenceLevel, cfg.Forecast.AdaptiveWeights, logger),
			NewEvaluator(logger),
			NewTimeoutManager(config.TimeoutConfig{}, logger),
			nil,
			logger,
		),
		stations: stations,
		source:   source,
		cfg:      cfg,
	}
}

func TestOrchestrator_RejectsInvalidHorizonBeforeLookups(t *testing.T) {
	f := newOrchestratorFixture(t, nil)

	for _, horizon := range []int{0, -3, 31} {
		_, err := f.orchestrator.Forecast(context.Background(), &models.ForecastRequest{
			StationID: "hp-001",
			Horizon:   horizon,
		})
		assert.ErrorIs(t, err, models.ErrInvalidRequest, "horizon=%d", horizon)
	}
	assert.Equal(t, 0, f.stations.calls, "validation must run before the station lookup")
}

func TestOrchestrator_UnknownStation(t *testing.T) {
	f := newOrchestratorFixture(t, nil)

	_, err := f.orchestrator.Forecast(context.Background(), &models.ForecastRequest{
		StationID: "hp-404",
		Horizon:   7,
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestOrchestrator_FlatHeadwaterHybrid(t *testing.T) {
	// A flat record at an isolated station is the fully degenerate case: the
	// trend fit has nothing to regress on and falls back to persistence, the
	// details are zero, no upstream neighbors exist. The pipeline must still
	// return a usable forecast and say what degraded.
	history := syntheticSeries(120, func(int) float64 { return 5.0 })
	f := newOrchestratorFixture(t, history)

	result, err := f.orchestrator.Forecast(context.Background(), &models.ForecastRequest{
		StationID: "hp-001",
		Horizon:   7,
	})
	require.NoError(t, err)

	require.Len(t, result.Points, 7)
	assert.NotEmpty(t, result.RequestID)
	assert.Equal(t, models.ModelHybrid, result.Model)
	assert.Contains(t, result.Degraded, "trend")

	for h, pt := range result.Points {
		assert.InDelta(t, 5.0, pt.Estimate, 1e-6, "step %d", h+1)
		assert.LessOrEqual(t, pt.Lower, pt.Estimate)
		assert.GreaterOrEqual(t, pt.Upper, pt.Estimate)
	}

	// Interval widens with lead time even on a flat record.
	firstWidth := result.Points[0].Upper - result.Points[0].Lower
	lastWidth := result.Points[6].Upper - result.Points[6].Lower
	assert.Greater(t, lastWidth, firstWidth)
}

func TestOrchestrator_RiverLikeHybridHorizons(t *testing.T) {
	history := syntheticSeries(365, riverLike)
	f := newOrchestratorFixture(t, history)

	for _, horizon := range []int{1, 7, 30} {
		result, err := f.orchestrator.Forecast(context.Background(), &models.ForecastRequest{
			StationID: "hp-001",
			Horizon:   horizon,
		})
		require.NoError(t, err, "horizon=%d", horizon)
		require.Len(t, result.Points, horizon)

		// Forecast points continue the series' daily cadence.
		origin := history.Points[history.Len()-1].Timestamp
		for h, pt := range result.Points {
			assert.Equal(t, origin.AddDate(0, 0, h+1), pt.Timestamp)
		}
	}
}

func TestOrchestrator_ModelKinds(t *testing.T) {
	history := syntheticSeries(365, riverLike)
	f := newOrchestratorFixture(t, history)

	for _, model := range models.KnownModelKinds() {
		result, err := f.orchestrator.Forecast(context.Background(), &models.ForecastRequest{
			StationID: "hp-001",
			Horizon:   5,
			Model:     model,
		})
		require.NoError(t, err, "model=%s", model)
		require.Len(t, result.Points, 5, "model=%s", model)
		assert.Equal(t, model, result.Model)

		// Every model kind stays anchored near the recent level.
		recent := history.Points[history.Len()-1].Value
		assert.InDelta(t, recent, result.Points[0].Estimate, 30, "model=%s", model)
	}
}

func TestOrchestrator_ShortHistoryPersistence(t *testing.T) {
	// Below the decomposer's minimum window the whole pipeline degrades to
	// persistence of the last observation.
	history := syntheticSeries(5, func(i int) float64 { return 10 + float64(i) })
	f := newOrchestratorFixture(t, history)

	result, err := f.orchestrator.Forecast(context.Background(), &models.ForecastRequest{
		StationID: "hp-001",
		Horizon:   4,
	})
	require.NoError(t, err)

	require.Len(t, result.Points, 4)
	for _, pt := range result.Points {
		assert.InDelta(t, 14.0, pt.Estimate, 1e-9)
	}
}

func TestOrchestrator_NoObservations(t *testing.T) {
	f := newOrchestratorFixture(t, &models.TimeSeries{
		StationID: "hp-001",
		Variable:  models.VariableDischarge,
	})

	_, err := f.orchestrator.Forecast(context.Background(), &models.ForecastRequest{
		StationID: "hp-001",
		Horizon:   7,
	})
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)
}

func TestOrchestrator_EvaluateConstantObserved(t *testing.T) {
	history := syntheticSeries(120, func(int) float64 { return 5.0 })
	f := newOrchestratorFixture(t, history)

	from := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 20)
	metrics, err := f.orchestrator.Evaluate(context.Background(), "hp-001",
		models.VariableDischarge, models.ModelHybrid, from, to)
	require.NoError(t, err)

	// Constant observations: error magnitudes are reported, variance-based
	// scores are explicitly undefined.
	assert.False(t, metrics.NSE.Defined)
	assert.False(t, metrics.KGE.Defined)
	assert.True(t, metrics.RMSE.Defined)
	assert.InDelta(t, 0.0, metrics.RMSE.Value, 1e-6)
}

func TestOrchestrator_EvaluateUnknownStation(t *testing.T) {
	f := newOrchestratorFixture(t, nil)

	from := time.Now().AddDate(0, 0, -10)
	_, err := f.orchestrator.Evaluate(context.Background(), "hp-404",
		models.VariableDischarge, models.ModelHybrid, from, time.Now())
	assert.ErrorIs(t, err, models.ErrNotFound)
}
