package services

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/gimat/hydrocast/internal/models"
)

const (
	// fluctuationLookback is the fewest points a detail component needs
	// before the sequence model is trusted over a zero forecast.
	fluctuationLookback = 16

	// stateBlend is the smoothing constant for the directional passes.
	stateBlend = 0.3

	// maxPersistence clamps the fitted autocorrelation away from a unit
	// root so the h-step error variance stays finite.
	maxPersistence = 0.98
)

// FluctuationPredictor extrapolates the high-frequency detail components.
// It builds state from the whole available history in both directions — a
// forward smoothing pass and a backward smoothing pass whose averages form
// the per-step context — then continues the final state with a damped
// mean-reverting recurrence, the damping set by the component's fitted lag-1
// autocorrelation. Detail components are zero-mean by construction, so decay
// toward zero is the correct long-run behavior.
//
// Bounds are empirical: one-step residuals are measured on a held-out tail
// of history and their variance drives the interval, widening with step as
// the recurrence compounds.
type FluctuationPredictor struct {
	holdoutRatio float64
	logger       *logrus.Logger
}

func NewFluctuationPredictor(holdoutRatio float64, logger *logrus.Logger) *FluctuationPredictor {
	if holdoutRatio <= 0 || holdoutRatio >= 1 {
		holdoutRatio = 0.2
	}
	return &FluctuationPredictor{holdoutRatio: holdoutRatio, logger: logger}
}

// Predict forecasts one detail component horizon steps ahead. A component
// with too little history yields a zero forecast with variance-of-history
// bounds, flagged as a fallback rather than an error: the ensemble can still
// combine the remaining components.
func (p *FluctuationPredictor) Predict(detail *models.TimeSeries, level, horizon int) *models.ComponentForecast {
	name := fmt.Sprintf("detail_%d", level)
	values := detail.Values()
	n := len(values)

	if n < fluctuationLookback {
		p.logger.WithFields(logrus.Fields{
			"station_id": detail.StationID,
			"component":  name,
			"length":     n,
		}).Warn("detail component too short, falling back to zero forecast")
		return zeroForecast(name, values, horizon)
	}

	// Bidirectional context over the full history.
	forward := make([]float64, n)
	backward := make([]float64, n)
	forward[0] = values[0]
	backward[n-1] = values[n-1]
	for t := 1; t < n; t++ {
		forward[t] = stateBlend*values[t] + (1-stateBlend)*forward[t-1]
	}
	for t := n - 2; t >= 0; t-- {
		backward[t] = stateBlend*values[t] + (1-stateBlend)*backward[t+1]
	}

	state := make([]float64, n)
	for t := range state {
		state[t] = (forward[t] + backward[t]) / 2
	}

	// Persistence of the fluctuation, from lag-1 autocorrelation.
	rho := stat.Correlation(values[:n-1], values[1:], nil)
	if math.IsNaN(rho) {
		rho = 0
	}
	rho = math.Max(-maxPersistence, math.Min(maxPersistence, rho))

	// One-step residuals on the held-out tail.
	holdout := int(float64(n) * p.holdoutRatio)
	if holdout < 4 {
		holdout = 4
	}
	residuals := make([]float64, 0, holdout)
	for t := n - holdout; t < n; t++ {
		if t < 1 {
			continue
		}
		residuals = append(residuals, values[t]-rho*state[t-1])
	}
	residVar := math.Max(stat.Variance(residuals, nil), varianceFloor)

	// Damped continuation of the final bidirectional state.
	forecast := make([]float64, horizon)
	variance := make([]float64, horizon)
	current := state[n-1]
	for h := 0; h < horizon; h++ {
		current *= rho
		forecast[h] = current
		// Compounded h-step error variance of the recurrence.
		variance[h] = residVar * (1 - math.Pow(rho*rho, float64(h+1))) / (1 - rho*rho)
	}

	p.logger.WithFields(logrus.Fields{
		"station_id":  detail.StationID,
		"component":   name,
		"persistence": rho,
		"holdout":     len(residuals),
	}).Debug("fluctuation model fitted")

	return &models.ComponentForecast{
		Component: name,
		Values:    forecast,
		Variance:  variance,
	}
}

// zeroForecast is the short-history fallback: zero continuation with the
// component's own historical variance as a flat bound.
func zeroForecast(name string, values []float64, horizon int) *models.ComponentForecast {
	histVar := varianceFloor
	if len(values) > 1 {
		histVar = math.Max(stat.Variance(values, nil), varianceFloor)
	}

	forecast := make([]float64, horizon)
	variance := make([]float64, horizon)
	for h := range variance {
		variance[h] = histVar
	}

	return &models.ComponentForecast{
		Component: name,
		Values:    forecast,
		Variance:  variance,
		Fallback:  true,
	}
}
