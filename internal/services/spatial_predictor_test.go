package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gimat/hydrocast/internal/cache"
	"github.com/gimat/hydrocast/internal/config"
	"github.com/gimat/hydrocast/internal/models"
)

type fakeTopology struct {
	neighbors []cache.Neighbor
	err       error
}

func (f *fakeTopology) UpstreamOf(_ context.Context, _ string, _ int) ([]cache.Neighbor, error) {
	return f.neighbors, f.err
}

type fakeSeriesSource struct {
	series map[string]*models.TimeSeries
	err    error
}

func (f *fakeSeriesSource) GetSeries(_ context.Context, stationID string, _ models.Variable, _, _ time.Time) (*models.TimeSeries, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.series[stationID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return s, nil
}

func spatialTestConfig() config.SpatialConfig {
	return config.SpatialConfig{
		MaxHops:            10,
		PropagationSpeedKM: 12.5,
		DistanceDecay:      0.02,
		FlowsToWeight:      1.0,
		InfluencesWeight:   0.6,
	}
}

func TestSpatialPredictor_IsolatedStation(t *testing.T) {
	p := NewSpatialPredictor(&fakeTopology{}, &fakeSeriesSource{}, spatialTestConfig(), testLogger())

	forecast, err := p.Predict(context.Background(), "hp-001", models.VariableDischarge, 7, time.Now(), 24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, "spatial", forecast.Component)
	require.Len(t, forecast.Values, 7)
	for h := 0; h < 7; h++ {
		assert.Equal(t, 0.0, forecast.Values[h])
		assert.Equal(t, 0.0, forecast.Variance[h])
	}
}

func TestSpatialPredictor_UpstreamPulsePropagates(t *testing.T) {
	// Upstream station 50 km away on a flows_to edge. At 12.5 km per period
	// the travel lag is 4 steps; the inverse-distance weight is
	// 1.0/(1+50*0.02) = 0.5.
	topo := &fakeTopology{neighbors: []cache.Neighbor{
		{StationID: "hp-up", Distance: 50, Kind: models.EdgeFlowsTo, Hops: 1},
	}}

	// Flat neighbor history with a single pulse three points before the
	// forecast origin.
	const n = 40
	upstream := syntheticSeries(n, func(i int) float64 {
		if i == n-3 {
			return 18
		}
		return 10
	})
	upstream.StationID = "hp-up"
	source := &fakeSeriesSource{series: map[string]*models.TimeSeries{"hp-up": upstream}}

	p := NewSpatialPredictor(topo, source, spatialTestConfig(), testLogger())
	forecast, err := p.Predict(context.Background(), "hp-001", models.VariableDischarge, 6, time.Now(), 24*time.Hour)
	require.NoError(t, err)

	// Neighbor mean is (39*10+18)/40 = 10.2; a flat reading contributes the
	// slightly negative anomaly 0.5*(10-10.2), the pulse 0.5*(18-10.2).
	flat := 0.5 * (10 - 10.2)
	pulse := 0.5 * (18 - 10.2)

	require.Len(t, forecast.Values, 6)
	assert.InDelta(t, flat, forecast.Values[0], 1e-9)
	assert.InDelta(t, pulse, forecast.Values[1], 1e-9, "pulse arrives after the travel lag")
	for h := 2; h < 6; h++ {
		assert.InDelta(t, flat, forecast.Values[h], 1e-9, "step %d", h+1)
	}

	// Constant per-step uncertainty: weight squared times neighbor variance.
	for h := 0; h < 6; h++ {
		assert.InDelta(t, 0.25*1.6, forecast.Variance[h], 1e-9)
	}
}

func TestSpatialPredictor_InfluenceEdgeWeight(t *testing.T) {
	p := NewSpatialPredictor(&fakeTopology{}, &fakeSeriesSource{}, spatialTestConfig(), testLogger())

	river := p.edgeWeight(cache.Neighbor{Distance: 50, Kind: models.EdgeFlowsTo})
	reservoir := p.edgeWeight(cache.Neighbor{Distance: 50, Kind: models.EdgeInfluences})

	assert.InDelta(t, 0.5, river, 1e-9)
	assert.InDelta(t, 0.3, reservoir, 1e-9)
	assert.Less(t, reservoir, river)
}

func TestSpatialPredictor_SkipsNeighborWithoutHistory(t *testing.T) {
	topo := &fakeTopology{neighbors: []cache.Neighbor{
		{StationID: "hp-missing", Distance: 20, Kind: models.EdgeFlowsTo, Hops: 1},
	}}
	source := &fakeSeriesSource{series: map[string]*models.TimeSeries{}}

	p := NewSpatialPredictor(topo, source, spatialTestConfig(), testLogger())
	forecast, err := p.Predict(context.Background(), "hp-001", models.VariableDischarge, 3, time.Now(), 24*time.Hour)
	require.NoError(t, err)

	for h := 0; h < 3; h++ {
		assert.Equal(t, 0.0, forecast.Values[h])
	}
}
