package services

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/gimat/hydrocast/internal/models"
)

// Combiner merges the per-component forecasts into one result. The point
// estimate reconstructs the decomposition — trend plus every detail forecast
// — and then applies the spatial adjustment. Components are treated as
// independent error sources, so the combined variance is the sum of component
// variances and the interval is estimate ± z·sqrt(variance) at the configured
// confidence level.
//
// For physically non-negative variables (discharge, water level above the
// gauge datum) the lower bound and estimate are clipped at zero after
// combination. This is a deliberate domain post-processing step, reported via
// the result's Clipped flag rather than discovered by the caller.
type Combiner struct {
	confidenceLevel float64
	adaptive        bool
	logger          *logrus.Logger
}

func NewCombiner(confidenceLevel float64, adaptive bool, logger *logrus.Logger) *Combiner {
	return &Combiner{confidenceLevel: confidenceLevel, adaptive: adaptive, logger: logger}
}

// Combine builds the final ForecastResult from the component forecasts.
// Every component must cover the full horizon.
func (c *Combiner) Combine(req *models.ForecastRequest, components []*models.ComponentForecast, weights map[string]float64, origin time.Time, step time.Duration) (*models.ForecastResult, error) {
	for _, comp := range components {
		if len(comp.Values) != req.Horizon || len(comp.Variance) != req.Horizon {
			return nil, fmt.Errorf("component %s covers %d steps, want %d", comp.Component, len(comp.Values), req.Horizon)
		}
	}

	z := distuv.Normal{Mu: 0, Sigma: 1}.Quantile(0.5 + c.confidenceLevel/2)

	result := &models.ForecastResult{
		StationID:       req.StationID,
		Variable:        req.Variable,
		Model:           req.Model,
		ConfidenceLevel: c.confidenceLevel,
		GeneratedAt:     time.Now().UTC(),
		Points:          make([]models.ForecastPoint, req.Horizon),
	}

	degraded := map[string]bool{}
	for h := 0; h < req.Horizon; h++ {
		var estimate, variance float64
		for _, comp := range components {
			w := c.componentWeight(comp.Component, weights)
			estimate += w * comp.Values[h]
			variance += w * w * comp.Variance[h]
			if comp.Fallback {
				degraded[comp.Component] = true
			}
		}

		margin := z * math.Sqrt(variance)
		point := models.ForecastPoint{
			Timestamp: origin.Add(time.Duration(h+1) * step),
			Estimate:  estimate,
			Lower:     estimate - margin,
			Upper:     estimate + margin,
		}

		if req.Variable.NonNegative() {
			if point.Lower < 0 {
				point.Lower = 0
				result.Clipped = true
			}
			if point.Estimate < 0 {
				point.Estimate = 0
				result.Clipped = true
			}
			if point.Upper < 0 {
				point.Upper = 0
				result.Clipped = true
			}
		}

		result.Points[h] = point
	}

	for name := range degraded {
		result.Degraded = append(result.Degraded, name)
	}
	sort.Strings(result.Degraded)

	if result.Clipped {
		c.logger.WithFields(logrus.Fields{
			"station_id": req.StationID,
			"variable":   req.Variable,
		}).Debug("negative bounds clipped to zero")
	}

	return result, nil
}

// componentWeight resolves the ensemble weight for one component. Weights
// default to 1 (pure decomposition reconstruction); adaptive reweighting,
// when enabled, supplies accuracy-derived weights from the evaluator.
func (c *Combiner) componentWeight(name string, weights map[string]float64) float64 {
	if !c.adaptive || weights == nil {
		return 1
	}
	if w, ok := weights[name]; ok {
		return w
	}
	return 1
}
