package models

import (
	"fmt"
	"time"
)

// Variable identifies the observed quantity of a time series.
type Variable string

const (
	VariableDischarge   Variable = "discharge"
	VariableWaterLevel  Variable = "water_level"
	VariableTemperature Variable = "temperature"
)

// NonNegative reports whether the variable is physically bounded below by
// zero (discharge, water level above the gauge datum).
func (v Variable) NonNegative() bool {
	return v == VariableDischarge || v == VariableWaterLevel
}

// Point is a single observation. Gaps in the source data arrive as explicit
// Missing markers; storage never interpolates.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Missing   bool      `json:"missing,omitempty"`
}

// TimeSeries is an ordered sequence of observations for one variable at one
// station. Timestamps are strictly increasing.
type TimeSeries struct {
	StationID string   `json:"station_id"`
	Variable  Variable `json:"variable"`
	Points    []Point  `json:"points"`
}

// Len returns the number of points.
func (ts *TimeSeries) Len() int {
	return len(ts.Points)
}

// Values returns the raw value slice, carrying missing points through as-is.
func (ts *TimeSeries) Values() []float64 {
	out := make([]float64, len(ts.Points))
	for i, p := range ts.Points {
		out[i] = p.Value
	}
	return out
}

// Step returns the sampling interval, inferred from the first two points.
// Series with fewer than two points have no defined step.
func (ts *TimeSeries) Step() time.Duration {
	if len(ts.Points) < 2 {
		return 0
	}
	return ts.Points[1].Timestamp.Sub(ts.Points[0].Timestamp)
}

// Validate checks the strictly-increasing timestamp invariant.
func (ts *TimeSeries) Validate() error {
	for i := 1; i < len(ts.Points); i++ {
		if !ts.Points[i].Timestamp.After(ts.Points[i-1].Timestamp) {
			return fmt.Errorf("timestamps not strictly increasing at index %d", i)
		}
	}
	return nil
}

// SplitTail chronologically splits the series, returning the leading portion
// and the trailing n points. n is clamped to the series length.
func (ts *TimeSeries) SplitTail(n int) (head, tail TimeSeries) {
	if n < 0 {
		n = 0
	}
	if n > len(ts.Points) {
		n = len(ts.Points)
	}
	cut := len(ts.Points) - n
	head = TimeSeries{StationID: ts.StationID, Variable: ts.Variable, Points: ts.Points[:cut]}
	tail = TimeSeries{StationID: ts.StationID, Variable: ts.Variable, Points: ts.Points[cut:]}
	return head, tail
}

// DecomposedSeries holds one approximation component and N detail components
// produced by multiresolution decomposition. Every component has the same
// length as the source, and the components sum back to the source.
type DecomposedSeries struct {
	Source        TimeSeries   `json:"-"`
	Approximation TimeSeries   `json:"approximation"`
	Details       []TimeSeries `json:"details"`
	Levels        int          `json:"levels"`
}

// Reconstruct sums the approximation and all detail components pointwise.
func (d *DecomposedSeries) Reconstruct() []float64 {
	out := make([]float64, d.Approximation.Len())
	for i, p := range d.Approximation.Points {
		out[i] = p.Value
	}
	for _, detail := range d.Details {
		for i, p := range detail.Points {
			out[i] += p.Value
		}
	}
	return out
}
