package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeSeries(values ...float64) *TimeSeries {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	points := make([]Point, len(values))
	for i, v := range values {
		points[i] = Point{Timestamp: start.AddDate(0, 0, i), Value: v}
	}
	return &TimeSeries{StationID: "hp-001", Variable: VariableDischarge, Points: points}
}

func TestTimeSeries_Validate(t *testing.T) {
	series := makeSeries(1, 2, 3)
	assert.NoError(t, series.Validate())

	series.Points[2].Timestamp = series.Points[1].Timestamp
	assert.Error(t, series.Validate())
}

func TestTimeSeries_Step(t *testing.T) {
	series := makeSeries(1, 2, 3)
	assert.Equal(t, 24*time.Hour, series.Step())

	short := makeSeries(1)
	assert.Equal(t, time.Duration(0), short.Step())
}

func TestTimeSeries_SplitTail(t *testing.T) {
	series := makeSeries(1, 2, 3, 4, 5)

	head, tail := series.SplitTail(2)
	assert.Equal(t, []float64{1, 2, 3}, head.Values())
	assert.Equal(t, []float64{4, 5}, tail.Values())

	head, tail = series.SplitTail(10)
	assert.Equal(t, 0, head.Len())
	assert.Equal(t, 5, tail.Len())

	head, tail = series.SplitTail(-1)
	assert.Equal(t, 5, head.Len())
	assert.Equal(t, 0, tail.Len())
}

func TestVariable_NonNegative(t *testing.T) {
	assert.True(t, VariableDischarge.NonNegative())
	assert.True(t, VariableWaterLevel.NonNegative())
	assert.False(t, VariableTemperature.NonNegative())
}

func TestDecomposedSeries_Reconstruct(t *testing.T) {
	source := makeSeries(4, 6, 8, 10)
	approx := makeSeries(5, 5, 9, 9)
	detail := makeSeries(-1, 1, -1, 1)

	d := DecomposedSeries{Source: *source, Approximation: *approx, Details: []TimeSeries{*detail}, Levels: 1}

	reconstructed := d.Reconstruct()
	require.Len(t, reconstructed, 4)
	assert.Equal(t, []float64{4, 6, 8, 10}, reconstructed)
}

func TestForecastRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     ForecastRequest
		wantErr bool
	}{
		{"valid", ForecastRequest{StationID: "hp-001", Horizon: 7, Model: ModelHybrid}, false},
		{"defaults model and variable", ForecastRequest{StationID: "hp-001", Horizon: 7}, false},
		{"zero horizon", ForecastRequest{StationID: "hp-001", Horizon: 0}, true},
		{"negative horizon", ForecastRequest{StationID: "hp-001", Horizon: -3}, true},
		{"horizon above max", ForecastRequest{StationID: "hp-001", Horizon: 31}, true},
		{"missing station", ForecastRequest{Horizon: 7}, true},
		{"unknown model", ForecastRequest{StationID: "hp-001", Horizon: 7, Model: "quantum"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(30)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidRequest)
			} else {
				assert.NoError(t, err)
				assert.True(t, tt.req.Model.Valid())
			}
		})
	}
}
