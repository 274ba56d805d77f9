package services

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/gimat/hydrocast/internal/models"
)

// Evaluator scores forecasts against held-out observations with the standard
// hydrological metrics. When the observed series has zero variance, NSE and
// KGE are reported explicitly undefined instead of propagating a NaN into
// whatever average the caller computes next.
type Evaluator struct {
	logger *logrus.Logger
}

func NewEvaluator(logger *logrus.Logger) *Evaluator {
	return &Evaluator{logger: logger}
}

// Evaluate aligns predicted against observed pointwise and computes NSE,
// KGE, RMSE and MAE. The slices must be the same non-zero length.
func (e *Evaluator) Evaluate(stationID string, model models.ModelKind, predicted, observed []float64) (*models.EvaluationMetrics, error) {
	if len(predicted) == 0 || len(predicted) != len(observed) {
		return nil, fmt.Errorf("%w: predicted/observed length mismatch (%d vs %d)",
			models.ErrInvalidRequest, len(predicted), len(observed))
	}

	n := float64(len(observed))
	obsMean := stat.Mean(observed, nil)

	var ssErr, ssObs, sumAbs float64
	for i := range observed {
		diff := observed[i] - predicted[i]
		ssErr += diff * diff
		dev := observed[i] - obsMean
		ssObs += dev * dev
		sumAbs += math.Abs(diff)
	}

	metrics := &models.EvaluationMetrics{
		StationID: stationID,
		Model:     model,
		Samples:   len(observed),
		RMSE:      models.DefinedMetric(math.Sqrt(ssErr / n)),
		MAE:       models.DefinedMetric(sumAbs / n),
	}

	if ssObs == 0 {
		// Zero-variance reference: variance-explained scores have no
		// meaning here.
		metrics.NSE = models.UndefinedMetric()
		metrics.KGE = models.UndefinedMetric()
		e.logger.WithField("station_id", stationID).Warn("zero-variance observations, NSE/KGE undefined")
		return metrics, nil
	}

	metrics.NSE = models.DefinedMetric(1 - ssErr/ssObs)
	metrics.KGE = e.kge(predicted, observed, obsMean)

	return metrics, nil
}

// kge computes the Kling-Gupta efficiency: 1 - sqrt((r-1)^2 + (alpha-1)^2 +
// (beta-1)^2) over correlation, variability ratio and bias ratio.
func (e *Evaluator) kge(predicted, observed []float64, obsMean float64) models.Metric {
	obsStd := stat.StdDev(observed, nil)
	predStd := stat.StdDev(predicted, nil)
	predMean := stat.Mean(predicted, nil)

	if obsStd == 0 || obsMean == 0 {
		return models.UndefinedMetric()
	}

	r := stat.Correlation(predicted, observed, nil)
	if math.IsNaN(r) {
		// Constant predictions have no defined correlation.
		return models.UndefinedMetric()
	}

	alpha := predStd / obsStd
	beta := predMean / obsMean

	kge := 1 - math.Sqrt(math.Pow(r-1, 2)+math.Pow(alpha-1, 2)+math.Pow(beta-1, 2))
	return models.DefinedMetric(kge)
}

// ComponentWeights turns recent per-component NSE scores into normalized
// ensemble weights: higher historical accuracy earns a higher weight. This
// feeds the combiner's optional adaptive reweighting; undefined scores fall
// back to the neutral weight.
func (e *Evaluator) ComponentWeights(scores map[string]models.Metric) map[string]float64 {
	weights := make(map[string]float64, len(scores))
	var total float64
	for name, score := range scores {
		w := 1.0
		if score.Defined {
			// NSE is unbounded below; floor at zero so a bad component
			// is muted, not inverted.
			w = math.Max(score.Value, 0)
		}
		weights[name] = w
		total += w
	}
	if total == 0 {
		for name := range weights {
			weights[name] = 1
		}
		return weights
	}
	norm := float64(len(weights)) / total
	for name := range weights {
		weights[name] *= norm
	}
	return weights
}
