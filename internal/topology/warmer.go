package topology

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Warmer refreshes traversal results for the configured stations on the
// ingestion schedule, keeping forecast requests off the cold path.
type Warmer struct {
	service  *Service
	logger   *logrus.Logger
	cron     *cron.Cron
	stations []string
	maxHops  int
}

func NewWarmer(service *Service, stations []string, maxHops int, logger *logrus.Logger) *Warmer {
	return &Warmer{
		service:  service,
		logger:   logger,
		cron:     cron.New(),
		stations: stations,
		maxHops:  maxHops,
	}
}

// Start schedules the warm cycle. An invalid schedule is a config error.
func (w *Warmer) Start(schedule string) error {
	if len(w.stations) == 0 {
		w.logger.Debug("no stations configured for topology warming")
		return nil
	}
	if _, err := w.cron.AddFunc(schedule, w.warm); err != nil {
		return err
	}
	w.cron.Start()
	w.logger.WithField("stations", len(w.stations)).Info("topology cache warmer started")
	return nil
}

// Stop halts the schedule and waits for a running cycle to finish.
func (w *Warmer) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
}

func (w *Warmer) warm() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	for _, stationID := range w.stations {
		if _, err := w.service.UpstreamOf(ctx, stationID, w.maxHops); err != nil {
			w.logger.WithError(err).WithField("station_id", stationID).Warn("topology warm failed")
		}
		if _, err := w.service.DownstreamOf(ctx, stationID, w.maxHops); err != nil {
			w.logger.WithError(err).WithField("station_id", stationID).Warn("topology warm failed")
		}
	}
}
