package models

import (
	"fmt"
	"time"
)

// ModelKind selects which predictive components contribute to a forecast.
type ModelKind string

const (
	ModelTrend       ModelKind = "trend"
	ModelFluctuation ModelKind = "fluctuation"
	ModelSpatial     ModelKind = "spatial"
	ModelHybrid      ModelKind = "hybrid"
)

// KnownModelKinds lists the selectable model kinds in display order.
func KnownModelKinds() []ModelKind {
	return []ModelKind{ModelTrend, ModelFluctuation, ModelSpatial, ModelHybrid}
}

// Valid reports whether the kind is one of the known variants.
func (k ModelKind) Valid() bool {
	switch k {
	case ModelTrend, ModelFluctuation, ModelSpatial, ModelHybrid:
		return true
	}
	return false
}

// ForecastRequest describes one forecast to produce.
type ForecastRequest struct {
	StationID string    `json:"station_id"`
	Variable  Variable  `json:"variable"`
	Horizon   int       `json:"horizon"`
	Model     ModelKind `json:"model"`
}

// Validate rejects malformed requests before any work starts.
func (r *ForecastRequest) Validate(maxHorizon int) error {
	if r.StationID == "" {
		return fmt.Errorf("%w: station_id is required", ErrInvalidRequest)
	}
	if r.Horizon <= 0 {
		return fmt.Errorf("%w: horizon must be positive, got %d", ErrInvalidRequest, r.Horizon)
	}
	if maxHorizon > 0 && r.Horizon > maxHorizon {
		return fmt.Errorf("%w: horizon %d exceeds maximum %d", ErrInvalidRequest, r.Horizon, maxHorizon)
	}
	if r.Model == "" {
		r.Model = ModelHybrid
	}
	if !r.Model.Valid() {
		return fmt.Errorf("%w: unknown model kind %q", ErrInvalidRequest, r.Model)
	}
	if r.Variable == "" {
		r.Variable = VariableDischarge
	}
	return nil
}

// ForecastPoint is one step of a forecast with its confidence interval.
// Invariant: Lower <= Estimate <= Upper.
type ForecastPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Estimate  float64   `json:"estimate"`
	Lower     float64   `json:"lower_bound"`
	Upper     float64   `json:"upper_bound"`
}

// ForecastResult is the combined output of a forecast request. Degraded names
// every component that fell back to its documented substitute, so callers can
// tell a full hybrid forecast from a degraded one.
type ForecastResult struct {
	RequestID       string          `json:"request_id"`
	StationID       string          `json:"station_id"`
	Variable        Variable        `json:"variable"`
	Model           ModelKind       `json:"model"`
	ConfidenceLevel float64         `json:"confidence_level"`
	GeneratedAt     time.Time       `json:"generated_at"`
	Points          []ForecastPoint `json:"points"`
	Degraded        []string        `json:"degraded,omitempty"`
	Clipped         bool            `json:"clipped,omitempty"`
}

// ComponentForecast carries one predictor's contribution before combination.
// Variance is the per-step error variance used for bound combination.
type ComponentForecast struct {
	Component string    `json:"component"`
	Values    []float64 `json:"values"`
	Variance  []float64 `json:"variance"`
	Fallback  bool      `json:"fallback,omitempty"`
}
