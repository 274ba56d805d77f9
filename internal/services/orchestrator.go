package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/gimat/hydrocast/internal/config"
	"github.com/gimat/hydrocast/internal/logging"
	"github.com/gimat/hydrocast/internal/models"
)

// RequestState names the orchestrator's per-request lifecycle stages.
type RequestState string

const (
	StateValidating  RequestState = "validating"
	StateDecomposing RequestState = "decomposing"
	StatePredicting  RequestState = "predicting"
	StatePropagating RequestState = "propagating"
	StateCombining   RequestState = "combining"
	StateDone        RequestState = "done"
	StateFailed      RequestState = "failed"
)

// StationSource resolves station identity for request validation.
type StationSource interface {
	GetStation(ctx context.Context, stationID string) (*models.Station, error)
}

// DecompositionCache is the optional read-through cache for the pure
// decomposition step, keyed by (station, variable, as-of timestamp).
type DecompositionCache interface {
	Get(ctx context.Context, stationID string, variable models.Variable, asOf time.Time) (*models.DecomposedSeries, bool)
	Set(ctx context.Context, stationID string, variable models.Variable, asOf time.Time, d *models.DecomposedSeries)
}

// Orchestrator drives one forecast request through the pipeline:
// Validating -> Decomposing -> Predicting (parallel per component) ->
// Propagating -> Combining -> Done, with Failed reachable from any state.
//
// Failure policy: an unknown station or malformed request aborts; a
// component's soft failure (insufficient history, degenerate fit, timeout)
// substitutes that component's documented fallback and the result records
// which components degraded. Nothing fails silently — every fallback path
// logs its reason class.
type Orchestrator struct {
	cfg          *config.Config
	stations     StationSource
	observations SeriesSource
	decomposer   *Decomposer
	screen       *QualityScreen
	trend        *TrendPredictor
	fluctuation  *FluctuationPredictor
	spatial      *SpatialPredictor
	combiner     *Combiner
	evaluator    *Evaluator
	timeouts     *TimeoutManager
	decompCache  DecompositionCache
	logger       *logrus.Logger
}

func NewOrchestrator(
	cfg *config.Config,
	stations StationSource,
	observations SeriesSource,
	decomposer *Decomposer,
	screen *QualityScreen,
	trend *TrendPredictor,
	fluctuation *FluctuationPredictor,
	spatial *SpatialPredictor,
	combiner *Combiner,
	evaluator *Evaluator,
	timeouts *TimeoutManager,
	decompCache DecompositionCache,
	logger *logrus.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:          cfg,
		stations:     stations,
		observations: observations,
		decomposer:   decomposer,
		screen:       screen,
		trend:        trend,
		fluctuation:  fluctuation,
		spatial:      spatial,
		combiner:     combiner,
		evaluator:    evaluator,
		timeouts:     timeouts,
		decompCache:  decompCache,
		logger:       logger,
	}
}

// Forecast runs one request end to end.
func (o *Orchestrator) Forecast(ctx context.Context, req *models.ForecastRequest) (*models.ForecastResult, error) {
	requestID := uuid.NewString()
	log := logging.WithRequest(o.logger, requestID, req.StationID)

	log.WithField("state", StateValidating).Debug("forecast request accepted")
	if err := req.Validate(o.cfg.Forecast.MaxHorizon); err != nil {
		log.WithField("state", StateFailed).WithError(err).Warn("request rejected")
		return nil, err
	}

	dbCtx, release := o.timeouts.WithBudget(ctx, OpDatabaseQuery, requestID+":station")
	_, err := o.stations.GetStation(dbCtx, req.StationID)
	release()
	if err != nil {
		log.WithField("state", StateFailed).WithError(err).Warn("station lookup failed")
		return nil, err
	}

	history, err := o.loadHistory(ctx, req, requestID, time.Now().UTC())
	if err != nil {
		log.WithField("state", StateFailed).WithError(err).Warn("history load failed")
		return nil, err
	}

	result, err := o.forecastFrom(ctx, req, requestID, history)
	if err != nil {
		log.WithField("state", StateFailed).WithError(err).Warn("forecast failed")
		return nil, err
	}
	log.WithFields(logrus.Fields{"state": StateDone, "degraded": result.Degraded}).Info("forecast complete")
	return result, nil
}

// loadHistory fetches the request's observation window ending at asOf.
func (o *Orchestrator) loadHistory(ctx context.Context, req *models.ForecastRequest, requestID string, asOf time.Time) (*models.TimeSeries, error) {
	from := asOf.AddDate(0, 0, -o.cfg.Forecast.HistoryDays)

	dbCtx, release := o.timeouts.WithBudget(ctx, OpDatabaseQuery, requestID+":history")
	defer release()

	history, err := o.observations.GetSeries(dbCtx, req.StationID, req.Variable, from, asOf)
	if err != nil {
		return nil, err
	}
	if history.Len() == 0 {
		return nil, fmt.Errorf("%w: no observations for station %s", models.ErrInsufficientHistory, req.StationID)
	}
	return history, nil
}

// forecastFrom runs the pipeline on an already-loaded history. Evaluate uses
// it directly with a truncated history for backtesting.
func (o *Orchestrator) forecastFrom(ctx context.Context, req *models.ForecastRequest, requestID string, history *models.TimeSeries) (*models.ForecastResult, error) {
	log := logging.WithRequest(o.logger, requestID, req.StationID)

	step := history.Step()
	if step <= 0 {
		step = 24 * time.Hour
	}
	asOf := history.Points[history.Len()-1].Timestamp

	if o.cfg.Forecast.OutlierScreening {
		history, _ = o.screen.Screen(history)
	}

	log.WithField("state", StateDecomposing).Debug("decomposing history")
	decomposed, err := o.decompose(ctx, req, history, asOf)
	if errors.Is(err, models.ErrInsufficientHistory) {
		// Documented whole-pipeline fallback: persist the last observation.
		log.WithError(err).WithField("reason", "insufficient_history").Warn("decomposition degraded to persistence forecast")
		return o.persistenceResult(req, history, requestID, asOf, step)
	}
	if err != nil {
		return nil, err
	}

	log.WithField("state", StatePredicting).Debug("running component predictors")
	components, degradedTrend, err := o.predict(ctx, req, requestID, decomposed, asOf, step)
	if err != nil {
		return nil, err
	}

	var weights map[string]float64
	if o.cfg.Forecast.AdaptiveWeights && req.Model == models.ModelHybrid {
		weights = o.adaptiveWeights(decomposed, req.Horizon)
	}

	log.WithField("state", StateCombining).Debug("combining components")
	result, err := o.combiner.Combine(req, components, weights, asOf, step)
	if err != nil {
		return nil, err
	}
	result.RequestID = requestID
	if degradedTrend {
		log.WithField("reason", "model_fit").Warn("trend predictor degraded to persistence")
	}
	return result, nil
}

// decompose runs the cached pure decomposition step.
func (o *Orchestrator) decompose(ctx context.Context, req *models.ForecastRequest, history *models.TimeSeries, asOf time.Time) (*models.DecomposedSeries, error) {
	if o.decompCache != nil {
		if cached, ok := o.decompCache.Get(ctx, req.StationID, req.Variable, asOf); ok {
			return cached, nil
		}
	}

	decomposed, err := o.decomposer.Decompose(history)
	if err != nil {
		return nil, err
	}

	if o.decompCache != nil {
		o.decompCache.Set(ctx, req.StationID, req.Variable, asOf, decomposed)
	}
	return decomposed, nil
}

// predict fans the predictors out in parallel and assembles the component
// set the requested model kind calls for. Fluctuation and spatial are
// independent of each other and of trend; the combiner joins them.
func (o *Orchestrator) predict(ctx context.Context, req *models.ForecastRequest, requestID string, decomposed *models.DecomposedSeries, asOf time.Time, step time.Duration) ([]*models.ComponentForecast, bool, error) {
	needTrend := req.Model == models.ModelTrend || req.Model == models.ModelHybrid
	needDetails := req.Model == models.ModelFluctuation || req.Model == models.ModelHybrid
	needSpatial := req.Model == models.ModelSpatial || req.Model == models.ModelHybrid

	var (
		trendForecast   *models.ComponentForecast
		detailForecasts []*models.ComponentForecast
		spatialForecast *models.ComponentForecast
		degradedTrend   bool
	)

	group, groupCtx := errgroup.WithContext(ctx)

	if needTrend {
		group.Go(func() error {
			fitCtx, release := o.timeouts.WithBudget(groupCtx, OpModelFit, requestID+":trend")
			defer release()

			forecast, err := runWithTimeout(fitCtx, func() (*models.ComponentForecast, error) {
				return o.trend.Predict(&decomposed.Approximation, req.Horizon)
			})
			if err != nil {
				if !isSoftFailure(err) {
					return err
				}
				// Documented fallback: naive persistence of the approximation.
				forecast = NaivePersistence(decomposed.Approximation.Values(), req.Horizon)
				degradedTrend = true
			}
			trendForecast = forecast
			return nil
		})
	}

	if needDetails {
		group.Go(func() error {
			detailForecasts = make([]*models.ComponentForecast, len(decomposed.Details))
			for i := range decomposed.Details {
				detailForecasts[i] = o.fluctuation.Predict(&decomposed.Details[i], i+1, req.Horizon)
			}
			return nil
		})
	}

	if needSpatial {
		group.Go(func() error {
			forecast, err := o.spatial.Predict(groupCtx, req.StationID, req.Variable, req.Horizon, asOf, step)
			if err != nil {
				// Topology NotFound for the requested station is the one
				// hard failure in this stage.
				return err
			}
			spatialForecast = forecast
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, false, err
	}

	// Model kinds that omit the trend predictor still need a baseline to
	// anchor the absolute level; the persisted approximation serves that
	// role deliberately, not as a degradation.
	components := make([]*models.ComponentForecast, 0, len(detailForecasts)+2)
	switch req.Model {
	case models.ModelTrend:
		components = append(components, trendForecast)
	case models.ModelFluctuation:
		components = append(components, persistedBaseline(decomposed, req.Horizon))
		components = append(components, detailForecasts...)
	case models.ModelSpatial:
		components = append(components, persistedBaseline(decomposed, req.Horizon), spatialForecast)
	case models.ModelHybrid:
		components = append(components, trendForecast)
		components = append(components, detailForecasts...)
		components = append(components, spatialForecast)
	}

	return components, degradedTrend, nil
}

// persistedBaseline anchors detail-only and spatial-only forecasts at the
// approximation's last value.
func persistedBaseline(decomposed *models.DecomposedSeries, horizon int) *models.ComponentForecast {
	baseline := NaivePersistence(decomposed.Approximation.Values(), horizon)
	baseline.Component = "baseline"
	baseline.Fallback = false
	return baseline
}

// adaptiveWeights backtests the trend and fluctuation predictors on a
// held-out tail of the decomposed history and converts each component's NSE
// into an ensemble weight. This is the optional accuracy-feedback loop; it is
// off unless forecast.adaptive_weights is set, and the spatial component
// always keeps neutral weight.
func (o *Orchestrator) adaptiveWeights(decomposed *models.DecomposedSeries, horizon int) map[string]float64 {
	tail := horizon
	if max := decomposed.Approximation.Len() / 10; tail > max {
		tail = max
	}
	if tail < 2 {
		return nil
	}

	scores := make(map[string]models.Metric)

	approxHead, approxTail := decomposed.Approximation.SplitTail(tail)
	if forecast, err := o.trend.Predict(&approxHead, tail); err == nil {
		if m, err := o.evaluator.Evaluate(decomposed.Source.StationID, models.ModelTrend, forecast.Values, approxTail.Values()); err == nil {
			scores["trend"] = m.NSE
		}
	}

	for i := range decomposed.Details {
		head, detailTail := decomposed.Details[i].SplitTail(tail)
		forecast := o.fluctuation.Predict(&head, i+1, tail)
		if m, err := o.evaluator.Evaluate(decomposed.Source.StationID, models.ModelFluctuation, forecast.Values, detailTail.Values()); err == nil {
			scores[forecast.Component] = m.NSE
		}
	}

	if len(scores) == 0 {
		return nil
	}
	return o.evaluator.ComponentWeights(scores)
}

// persistenceResult is the whole-pipeline fallback when history is too short
// to decompose at all.
func (o *Orchestrator) persistenceResult(req *models.ForecastRequest, history *models.TimeSeries, requestID string, asOf time.Time, step time.Duration) (*models.ForecastResult, error) {
	fallback := NaivePersistence(history.Values(), req.Horizon)
	result, err := o.combiner.Combine(req, []*models.ComponentForecast{fallback}, nil, asOf, step)
	if err != nil {
		return nil, err
	}
	result.RequestID = requestID
	return result, nil
}

// Evaluate backtests a model over [from, to]: the forecast is produced from
// history strictly before the period and scored against the period's actual
// observations.
func (o *Orchestrator) Evaluate(ctx context.Context, stationID string, variable models.Variable, model models.ModelKind, from, to time.Time) (*models.EvaluationMetrics, error) {
	requestID := uuid.NewString()

	dbCtx, release := o.timeouts.WithBudget(ctx, OpDatabaseQuery, requestID+":observed")
	observed, err := o.observations.GetSeries(dbCtx, stationID, variable, from, to)
	release()
	if err != nil {
		return nil, err
	}

	observedValues := make([]float64, 0, observed.Len())
	for _, p := range observed.Points {
		if !p.Missing {
			observedValues = append(observedValues, p.Value)
		}
	}
	if len(observedValues) == 0 {
		return nil, fmt.Errorf("%w: no observations in evaluation period", models.ErrInsufficientHistory)
	}

	req := &models.ForecastRequest{
		StationID: stationID,
		Variable:  variable,
		Horizon:   len(observedValues),
		Model:     model,
	}
	if err := req.Validate(0); err != nil {
		return nil, err
	}

	historyFrom := from.AddDate(0, 0, -o.cfg.Forecast.HistoryDays)
	dbCtx, release = o.timeouts.WithBudget(ctx, OpDatabaseQuery, requestID+":history")
	history, err := o.observations.GetSeries(dbCtx, stationID, variable, historyFrom, from.Add(-time.Nanosecond))
	release()
	if err != nil {
		return nil, err
	}
	if history.Len() == 0 {
		return nil, fmt.Errorf("%w: no history before evaluation period", models.ErrInsufficientHistory)
	}

	result, err := o.forecastFrom(ctx, req, requestID, history)
	if err != nil {
		return nil, err
	}

	predicted := make([]float64, len(result.Points))
	for i, p := range result.Points {
		predicted[i] = p.Estimate
	}

	return o.evaluator.Evaluate(stationID, model, predicted, observedValues)
}

// runWithTimeout executes a CPU-bound fit under the context's budget,
// mapping a deadline hit to the soft ErrTimeout class.
func runWithTimeout(ctx context.Context, fn func() (*models.ComponentForecast, error)) (*models.ComponentForecast, error) {
	type outcome struct {
		forecast *models.ComponentForecast
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		forecast, err := fn()
		done <- outcome{forecast, err}
	}()

	select {
	case out := <-done:
		return out.forecast, out.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", models.ErrTimeout, ctx.Err())
	}
}

// isSoftFailure reports whether an error triggers a component fallback
// instead of aborting the request.
func isSoftFailure(err error) bool {
	return errors.Is(err, models.ErrModelFit) ||
		errors.Is(err, models.ErrInsufficientHistory) ||
		errors.Is(err, models.ErrTimeout)
}
