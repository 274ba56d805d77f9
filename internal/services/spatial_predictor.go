package services

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/gimat/hydrocast/internal/cache"
	"github.com/gimat/hydrocast/internal/config"
	"github.com/gimat/hydrocast/internal/models"
)

// TopologyQuerier is the traversal contract the spatial predictor needs.
type TopologyQuerier interface {
	UpstreamOf(ctx context.Context, stationID string, maxHops int) ([]cache.Neighbor, error)
}

// SeriesSource supplies historical observations for neighbor stations.
type SeriesSource interface {
	GetSeries(ctx context.Context, stationID string, variable models.Variable, from, to time.Time) (*models.TimeSeries, error)
}

// SpatialPredictor adjusts a station's forecast using upstream behavior.
// Each upstream neighbor contributes its recent anomaly (value minus its own
// window mean), shifted by a travel lag derived from along-network distance
// over the configured propagation speed, and scaled by an inverse-distance
// weight with a per-edge-kind multiplier — reservoir influence edges carry a
// different profile than river flow edges. All constants are per-basin
// configuration.
//
// A station with no upstream neighbors gets an exactly zero adjustment;
// isolated headwater stations are valid, not an error.
type SpatialPredictor struct {
	topology     TopologyQuerier
	observations SeriesSource
	cfg          config.SpatialConfig
	logger       *logrus.Logger
}

func NewSpatialPredictor(topology TopologyQuerier, observations SeriesSource, cfg config.SpatialConfig, logger *logrus.Logger) *SpatialPredictor {
	return &SpatialPredictor{
		topology:     topology,
		observations: observations,
		cfg:          cfg,
		logger:       logger,
	}
}

// Predict computes the adjustment series for the target station. asOf is the
// forecast origin and step the sampling interval; neighbor history is read
// backwards from asOf far enough to cover the largest possible lag.
func (p *SpatialPredictor) Predict(ctx context.Context, stationID string, variable models.Variable, horizon int, asOf time.Time, step time.Duration) (*models.ComponentForecast, error) {
	neighbors, err := p.topology.UpstreamOf(ctx, stationID, p.cfg.MaxHops)
	if err != nil {
		return nil, err
	}

	adjustment := make([]float64, horizon)
	variance := make([]float64, horizon)

	if len(neighbors) == 0 {
		p.logger.WithField("station_id", stationID).Debug("no upstream neighbors, zero spatial adjustment")
		return &models.ComponentForecast{Component: "spatial", Values: adjustment, Variance: variance}, nil
	}

	maxLag := 0
	type contribution struct {
		neighbor cache.Neighbor
		lag      int
		weight   float64
	}
	contributions := make([]contribution, 0, len(neighbors))
	for _, n := range neighbors {
		lag := int(math.Round(n.Distance / p.cfg.PropagationSpeedKM))
		if lag < 1 {
			lag = 1
		}
		if lag > maxLag {
			maxLag = lag
		}
		contributions = append(contributions, contribution{
			neighbor: n,
			lag:      lag,
			weight:   p.edgeWeight(n),
		})
	}

	// Enough history to cover every lag plus a baseline window.
	lookback := maxLag + horizon + 2*screenWindow
	from := asOf.Add(-time.Duration(lookback) * step)

	for _, c := range contributions {
		series, err := p.observations.GetSeries(ctx, c.neighbor.StationID, variable, from, asOf)
		if err != nil {
			p.logger.WithError(err).WithFields(logrus.Fields{
				"station_id": stationID,
				"neighbor":   c.neighbor.StationID,
			}).Warn("skipping neighbor, history unavailable")
			continue
		}

		values := observedValues(series)
		if len(values) <= c.lag {
			p.logger.WithFields(logrus.Fields{
				"station_id": stationID,
				"neighbor":   c.neighbor.StationID,
				"points":     len(values),
			}).Warn("skipping neighbor, insufficient history for lag")
			continue
		}

		mean := stat.Mean(values, nil)
		anomalyVar := stat.Variance(values, nil)

		for h := 0; h < horizon; h++ {
			// Forecast step h+1 reads the neighbor at asOf + (h+1) - lag
			// periods; readings past asOf have not happened yet, so the
			// latest observation persists.
			idx := len(values) - 1 + (h + 1) - c.lag
			if idx < 0 {
				continue
			}
			if idx >= len(values) {
				idx = len(values) - 1
			}
			adjustment[h] += c.weight * (values[idx] - mean)
			variance[h] += c.weight * c.weight * anomalyVar
		}
	}

	p.logger.WithFields(logrus.Fields{
		"station_id": stationID,
		"neighbors":  len(contributions),
		"max_lag":    maxLag,
	}).Debug("spatial adjustment computed")

	return &models.ComponentForecast{Component: "spatial", Values: adjustment, Variance: variance}, nil
}

// edgeWeight combines the inverse-distance decay with the edge-kind profile.
func (p *SpatialPredictor) edgeWeight(n cache.Neighbor) float64 {
	multiplier := p.cfg.FlowsToWeight
	if n.Kind == models.EdgeInfluences {
		multiplier = p.cfg.InfluencesWeight
	}
	return multiplier / (1 + n.Distance*p.cfg.DistanceDecay)
}

// observedValues drops explicit missing markers; the spatial predictor never
// fabricates neighbor readings.
func observedValues(series *models.TimeSeries) []float64 {
	out := make([]float64, 0, series.Len())
	for _, pt := range series.Points {
		if pt.Missing {
			continue
		}
		out = append(out, pt.Value)
	}
	return out
}
