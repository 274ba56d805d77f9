package services

import (
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"
	"github.com/sirupsen/logrus"

	"github.com/gimat/hydrocast/internal/models"
)

const screenWindow = 20

// QualityScreen replaces gross outliers in an input series before
// decomposition: points further than sigma rolling standard deviations from
// the rolling mean are substituted with the rolling mean. Missing points are
// filled the same way so a sensor gap does not punch a spike through the
// decomposition filters.
type QualityScreen struct {
	sigma  float64
	logger *logrus.Logger
}

func NewQualityScreen(sigma float64, logger *logrus.Logger) *QualityScreen {
	if sigma <= 0 {
		sigma = 3
	}
	return &QualityScreen{sigma: sigma, logger: logger}
}

// Screen returns a cleaned copy of the series and the number of points it
// replaced. Series shorter than the rolling window pass through untouched.
func (q *QualityScreen) Screen(series *models.TimeSeries) (*models.TimeSeries, int) {
	n := series.Len()
	if n < screenWindow {
		return series, 0
	}

	values := series.Values()

	smaIndicator := trend.NewSmaWithPeriod[float64](screenWindow)
	means := helper.ChanToSlice(smaIndicator.Compute(helper.SliceToChan(values)))

	stdIndicator := volatility.NewMovingStdWithPeriod[float64](screenWindow)
	stds := helper.ChanToSlice(stdIndicator.Compute(helper.SliceToChan(values)))

	// Indicator output is right-aligned: means[i] covers values ending at
	// index i+screenWindow-1.
	cleaned := &models.TimeSeries{
		StationID: series.StationID,
		Variable:  series.Variable,
		Points:    make([]models.Point, n),
	}
	copy(cleaned.Points, series.Points)

	replaced := 0
	for i := screenWindow - 1; i < n; i++ {
		mean := means[i-screenWindow+1]
		std := stds[i-screenWindow+1]
		p := &cleaned.Points[i]

		if p.Missing {
			p.Value = mean
			p.Missing = false
			replaced++
			continue
		}
		if std > 0 && math.Abs(p.Value-mean) > q.sigma*std {
			p.Value = mean
			replaced++
		}
	}

	// The first window has no rolling statistics; fill missing points there
	// with the first computed mean.
	for i := 0; i < screenWindow-1 && i < n; i++ {
		if cleaned.Points[i].Missing {
			cleaned.Points[i].Value = means[0]
			cleaned.Points[i].Missing = false
			replaced++
		}
	}

	if replaced > 0 {
		q.logger.WithFields(logrus.Fields{
			"station_id": series.StationID,
			"replaced":   replaced,
		}).Info("outliers replaced before decomposition")
	}

	return cleaned, replaced
}
