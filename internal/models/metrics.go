package models

import "encoding/json"

// Metric is a single accuracy score. Defined=false marks scores that have no
// meaning for the given reference data (zero-variance observations), instead
// of letting a NaN leak into downstream averages.
type Metric struct {
	Value   float64
	Defined bool
}

// DefinedMetric wraps a finite score.
func DefinedMetric(v float64) Metric {
	return Metric{Value: v, Defined: true}
}

// UndefinedMetric marks a score as not computable.
func UndefinedMetric() Metric {
	return Metric{}
}

// MarshalJSON renders undefined metrics as null rather than a bogus zero.
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value)
}

// UnmarshalJSON accepts null as undefined.
func (m *Metric) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Metric{}
		return nil
	}
	m.Defined = true
	return json.Unmarshal(data, &m.Value)
}

// EvaluationMetrics holds the standard hydrological accuracy scores for one
// backtest. NSE and KGE are undefined when the observed series has zero
// variance; RMSE and MAE are always defined for non-empty input.
type EvaluationMetrics struct {
	StationID string    `json:"station_id"`
	Model     ModelKind `json:"model"`
	Samples   int       `json:"samples"`
	NSE       Metric    `json:"nse"`
	KGE       Metric    `json:"kge"`
	RMSE      Metric    `json:"rmse"`
	MAE       Metric    `json:"mae"`
}
