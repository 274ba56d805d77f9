package services

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gimat/hydrocast/internal/models"
)

// Decomposer splits a series into one smooth approximation component and K
// detail components via an undecimated (à trous) multiresolution scheme.
//
// Level j averages each sample with the sample 2^(j-1) steps earlier
// (low-pass); the removed content becomes detail level j (high-pass). All
// components keep the source length, and because each detail is exactly the
// difference between successive approximations, approximation + sum(details)
// reconstructs the source by telescoping — exactly, not just within model
// error.
//
// Boundary rule: symmetric (reflect) padding at the left edge, index -k reads
// sample k-1. The same rule holds for every level; reconstruction needs no
// padding at all since it is a pointwise sum.
type Decomposer struct {
	levels int
	logger *logrus.Logger
}

func NewDecomposer(levels int, logger *logrus.Logger) *Decomposer {
	if levels < 1 {
		levels = 1
	}
	return &Decomposer{levels: levels, logger: logger}
}

// MinWindow is the shortest series the decomposer accepts for its configured
// level count: two full support widths of the coarsest filter.
func (d *Decomposer) MinWindow() int {
	return 2 << d.levels
}

// Decompose splits the series. Series shorter than MinWindow fail with
// models.ErrInsufficientHistory.
func (d *Decomposer) Decompose(series *models.TimeSeries) (*models.DecomposedSeries, error) {
	n := series.Len()
	if n < d.MinWindow() {
		return nil, fmt.Errorf("%w: need at least %d points for %d levels, got %d",
			models.ErrInsufficientHistory, d.MinWindow(), d.levels, n)
	}
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidRequest, err)
	}

	approx := series.Values()
	result := &models.DecomposedSeries{
		Source: *series,
		Levels: d.levels,
	}

	for level := 1; level <= d.levels; level++ {
		stride := 1 << (level - 1)
		smoothed := lowPass(approx, stride)

		detail := make([]float64, n)
		for i := range detail {
			detail[i] = approx[i] - smoothed[i]
		}

		result.Details = append(result.Details, componentSeries(series, detail))
		approx = smoothed
	}

	result.Approximation = componentSeries(series, approx)

	d.logger.WithFields(logrus.Fields{
		"station_id": series.StationID,
		"levels":     d.levels,
		"length":     n,
	}).Debug("series decomposed")

	return result, nil
}

// lowPass averages each sample with the sample stride steps earlier, reading
// past the left edge through symmetric reflection.
func lowPass(values []float64, stride int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		out[i] = (reflectAt(values, i-stride) + values[i]) / 2
	}
	return out
}

// reflectAt reads values[i] with symmetric padding: index -k maps to k-1.
func reflectAt(values []float64, i int) float64 {
	if i < 0 {
		i = -i - 1
	}
	if i >= len(values) {
		i = 2*len(values) - i - 1
	}
	return values[i]
}

func componentSeries(source *models.TimeSeries, values []float64) models.TimeSeries {
	points := make([]models.Point, len(values))
	for i, v := range values {
		points[i] = models.Point{Timestamp: source.Points[i].Timestamp, Value: v}
	}
	return models.TimeSeries{StationID: source.StationID, Variable: source.Variable, Points: points}
}
