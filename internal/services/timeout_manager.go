package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gimat/hydrocast/internal/config"
)

// Operation types with distinct timeout budgets.
const (
	OpModelFit      = "model_fit"
	OpDatabaseQuery = "database_query"
	OpRequest       = "request"
)

// TimeoutManager hands out bounded contexts for the pipeline's external
// calls: model fits and store queries. A timed-out model fit is a soft
// failure handled by the orchestrator's fallback, never a hang.
type TimeoutManager struct {
	budgets map[string]time.Duration
	logger  *logrus.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// defaultBudgets back any timeout left unset or unparseable in config.
var defaultBudgets = map[string]time.Duration{
	OpModelFit:      10 * time.Second,
	OpDatabaseQuery: 5 * time.Second,
	OpRequest:       30 * time.Second,
}

func NewTimeoutManager(cfg config.TimeoutConfig, logger *logrus.Logger) *TimeoutManager {
	budgets := map[string]time.Duration{
		OpModelFit:      parseBudget(cfg.ModelFit, defaultBudgets[OpModelFit], logger),
		OpDatabaseQuery: parseBudget(cfg.DatabaseQuery, defaultBudgets[OpDatabaseQuery], logger),
		OpRequest:       parseBudget(cfg.Request, defaultBudgets[OpRequest], logger),
	}
	return &TimeoutManager{
		budgets: budgets,
		logger:  logger,
		active:  make(map[string]context.CancelFunc),
	}
}

func parseBudget(raw string, fallback time.Duration, logger *logrus.Logger) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		logger.WithError(err).WithField("value", raw).Warn("invalid timeout, using default")
		return fallback
	}
	return d
}

// Budget returns the configured budget for an operation type.
func (tm *TimeoutManager) Budget(operationType string) time.Duration {
	if d, ok := tm.budgets[operationType]; ok {
		return d
	}
	return defaultBudgets[OpRequest]
}

// WithBudget derives a bounded context from parent and tracks its cancel
// function under operationID until released.
func (tm *TimeoutManager) WithBudget(parent context.Context, operationType, operationID string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, tm.Budget(operationType))

	tm.mu.Lock()
	tm.active[operationID] = cancel
	tm.mu.Unlock()

	release := func() {
		cancel()
		tm.mu.Lock()
		delete(tm.active, operationID)
		tm.mu.Unlock()
	}
	return ctx, release
}

// CancelAll cancels every in-flight operation, used during shutdown.
// Partial results are simply discarded; forecasting mutates nothing external.
func (tm *TimeoutManager) CancelAll() {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	for id, cancel := range tm.active {
		cancel()
		delete(tm.active, id)
	}
}
