package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFluctuationPredictor_DecaysTowardZero(t *testing.T) {
	// A persistent, slowly decaying oscillation around zero, the shape a
	// detail component takes after a flood wave.
	detail := syntheticSeries(100, func(i int) float64 {
		return 5 * math.Pow(0.97, float64(i)) * math.Cos(2*math.Pi*float64(i)/40)
	})

	p := NewFluctuationPredictor(0.2, testLogger())
	forecast := p.Predict(detail, 1, 10)

	require.Len(t, forecast.Values, 10)
	require.Len(t, forecast.Variance, 10)
	assert.False(t, forecast.Fallback)
	assert.Equal(t, "detail_1", forecast.Component)

	// Magnitude decays toward zero under the damped recurrence.
	assert.Less(t, math.Abs(forecast.Values[9]), math.Abs(forecast.Values[0])+1e-12)
	for h, v := range forecast.Values {
		assert.False(t, math.IsNaN(v), "step %d", h+1)
	}

	// Compounded error variance never shrinks with the step.
	for h := 1; h < len(forecast.Variance); h++ {
		assert.GreaterOrEqual(t, forecast.Variance[h], forecast.Variance[h-1])
	}
}

func TestFluctuationPredictor_ShortHistoryFallsBack(t *testing.T) {
	detail := syntheticSeries(fluctuationLookback-1, func(i int) float64 {
		return math.Sin(float64(i))
	})

	p := NewFluctuationPredictor(0.2, testLogger())
	forecast := p.Predict(detail, 2, 5)

	assert.True(t, forecast.Fallback)
	assert.Equal(t, "detail_2", forecast.Component)
	for _, v := range forecast.Values {
		assert.Equal(t, 0.0, v)
	}
	for _, v := range forecast.Variance {
		assert.Greater(t, v, 0.0)
	}
}

func TestFluctuationPredictor_ZeroComponent(t *testing.T) {
	detail := syntheticSeries(80, func(int) float64 { return 0 })

	p := NewFluctuationPredictor(0.2, testLogger())
	forecast := p.Predict(detail, 1, 6)

	assert.False(t, forecast.Fallback)
	for _, v := range forecast.Values {
		assert.Equal(t, 0.0, v)
	}
	// Bounds stay at the variance floor, never NaN.
	for _, v := range forecast.Variance {
		assert.False(t, math.IsNaN(v))
		assert.Greater(t, v, 0.0)
	}
}
