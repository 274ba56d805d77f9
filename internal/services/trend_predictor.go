package services

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/gimat/hydrocast/internal/models"
)

// minFitRows is the fewest usable regression rows for a seasonal AR fit.
const minFitRows = 8

// varianceFloor keeps fallback bounds strictly widening even on a perfectly
// flat history.
const varianceFloor = 1e-6

// TrendPredictor extrapolates the smooth approximation component with a
// seasonal autoregressive model: the once-differenced series is regressed on
// its first two lags plus the seasonal lag (cycle length configured per
// basin), and the fitted recurrence is iterated forward. Bounds come from the
// fitted residual distribution and widen with the square root of the step.
type TrendPredictor struct {
	seasonalPeriod int
	logger         *logrus.Logger
}

func NewTrendPredictor(seasonalPeriod int, logger *logrus.Logger) *TrendPredictor {
	return &TrendPredictor{seasonalPeriod: seasonalPeriod, logger: logger}
}

// Predict forecasts the approximation component horizon steps ahead.
// Degenerate input (too short, zero variance, or a numerically unstable fit)
// fails with models.ErrModelFit; the orchestrator substitutes naive
// persistence.
func (p *TrendPredictor) Predict(approx *models.TimeSeries, horizon int) (*models.ComponentForecast, error) {
	values := approx.Values()
	n := len(values)
	if n < minFitRows+3 {
		return nil, fmt.Errorf("%w: %d points is too short for a seasonal AR fit", models.ErrModelFit, n)
	}

	if stat.Variance(values, nil) == 0 {
		return nil, fmt.Errorf("%w: zero-variance approximation", models.ErrModelFit)
	}

	// Difference once to remove the level.
	diff := make([]float64, n-1)
	for i := 1; i < n; i++ {
		diff[i-1] = values[i] - values[i-1]
	}

	// Seasonal lag only participates when history covers it.
	season := p.seasonalPeriod
	useSeason := season > 2 && len(diff) > season+minFitRows

	maxLag := 2
	if useSeason {
		maxLag = season
	}

	rows := len(diff) - maxLag
	if rows < minFitRows {
		return nil, fmt.Errorf("%w: only %d regression rows", models.ErrModelFit, rows)
	}

	cols := 3 // intercept, lag-1, lag-2
	if useSeason {
		cols = 4
	}

	design := mat.NewDense(rows, cols, nil)
	target := mat.NewVecDense(rows, nil)
	for r := 0; r < rows; r++ {
		t := r + maxLag
		design.Set(r, 0, 1)
		design.Set(r, 1, diff[t-1])
		design.Set(r, 2, diff[t-2])
		if useSeason {
			design.Set(r, 3, diff[t-season])
		}
		target.SetVec(r, diff[t])
	}

	coeffs := mat.NewVecDense(cols, nil)
	if err := coeffs.SolveVec(design, target); err != nil {
		return nil, fmt.Errorf("%w: least squares solve failed: %v", models.ErrModelFit, err)
	}

	// Residual variance of the fit.
	var ssr float64
	for r := 0; r < rows; r++ {
		t := r + maxLag
		pred := p.recurrence(coeffs, diff, t, useSeason, season)
		resid := diff[t] - pred
		ssr += resid * resid
	}
	residVar := ssr / float64(rows)

	// Iterate the recurrence forward, appending each forecast difference.
	extended := append([]float64(nil), diff...)
	forecast := make([]float64, horizon)
	level := values[n-1]
	for h := 0; h < horizon; h++ {
		next := p.recurrence(coeffs, extended, len(extended), useSeason, season)
		if math.IsNaN(next) || math.IsInf(next, 0) {
			return nil, fmt.Errorf("%w: unstable recurrence at step %d", models.ErrModelFit, h+1)
		}
		extended = append(extended, next)
		level += next
		forecast[h] = level
	}

	variance := make([]float64, horizon)
	for h := range variance {
		variance[h] = math.Max(residVar, varianceFloor) * float64(h+1)
	}

	p.logger.WithFields(logrus.Fields{
		"station_id":   approx.StationID,
		"rows":         rows,
		"seasonal":     useSeason,
		"resid_stddev": math.Sqrt(residVar),
	}).Debug("trend model fitted")

	return &models.ComponentForecast{
		Component: "trend",
		Values:    forecast,
		Variance:  variance,
	}, nil
}

// recurrence evaluates the fitted AR equation at position t of diff, where
// positions >= len(diff) are taken from already-forecast values appended to
// the slice by the caller.
func (p *TrendPredictor) recurrence(coeffs *mat.VecDense, diff []float64, t int, useSeason bool, season int) float64 {
	out := coeffs.AtVec(0) + coeffs.AtVec(1)*diff[t-1] + coeffs.AtVec(2)*diff[t-2]
	if useSeason {
		out += coeffs.AtVec(3) * diff[t-season]
	}
	return out
}

// NaivePersistence is the documented fallback for a failed trend fit: the
// last observed value repeated, with bounds growing from the historical
// step-to-step variance (floored so they widen even on flat history).
func NaivePersistence(values []float64, horizon int) *models.ComponentForecast {
	last := 0.0
	stepVar := varianceFloor
	if len(values) > 0 {
		last = values[len(values)-1]
	}
	if len(values) > 1 {
		diffs := make([]float64, len(values)-1)
		for i := 1; i < len(values); i++ {
			diffs[i-1] = values[i] - values[i-1]
		}
		stepVar = math.Max(stat.Variance(diffs, nil), varianceFloor)
	}

	forecast := make([]float64, horizon)
	variance := make([]float64, horizon)
	for h := 0; h < horizon; h++ {
		forecast[h] = last
		variance[h] = stepVar * float64(h+1)
	}

	return &models.ComponentForecast{
		Component: "trend",
		Values:    forecast,
		Variance:  variance,
		Fallback:  true,
	}
}
