package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gimat/hydrocast/internal/models"
)

// DatabasePool defines the pool operations repositories depend on, allowing
// pgxmock to stand in for a real pool in tests.
type DatabasePool interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// variableColumns whitelists the observation columns addressable per variable.
var variableColumns = map[models.Variable]string{
	models.VariableDischarge:   "discharge",
	models.VariableWaterLevel:  "water_level",
	models.VariableTemperature: "temperature",
}

// ObservationRepository reads historical observations from TimescaleDB.
// Gaps come back as explicit missing points; nothing is interpolated here.
type ObservationRepository struct {
	pool DatabasePool
}

func NewObservationRepository(pool DatabasePool) *ObservationRepository {
	return &ObservationRepository{pool: pool}
}

// GetStation fetches station identity, or models.ErrNotFound.
func (r *ObservationRepository) GetStation(ctx context.Context, stationID string) (*models.Station, error) {
	const q = `SELECT station_id, name, river_name, kind, latitude, longitude
		FROM stations WHERE station_id = $1`

	var s models.Station
	err := r.pool.QueryRow(ctx, q, stationID).Scan(
		&s.ID, &s.Name, &s.RiverName, &s.Kind, &s.Latitude, &s.Longitude,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, stationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query station %s: %w", stationID, err)
	}
	return &s, nil
}

// GetSeries loads one variable's observations for a station over [from, to].
// Unknown stations fail with models.ErrNotFound; a known station with no
// observations in the window yields an empty series.
func (r *ObservationRepository) GetSeries(ctx context.Context, stationID string, variable models.Variable, from, to time.Time) (*models.TimeSeries, error) {
	col, ok := variableColumns[variable]
	if !ok {
		return nil, fmt.Errorf("%w: unknown variable %q", models.ErrInvalidRequest, variable)
	}

	if _, err := r.GetStation(ctx, stationID); err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`SELECT observed_at, %s FROM observations
		WHERE station_id = $1 AND observed_at >= $2 AND observed_at <= $3
		ORDER BY observed_at ASC`, col)

	rows, err := r.pool.Query(ctx, q, stationID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations for %s: %w", stationID, err)
	}
	defer rows.Close()

	series := &models.TimeSeries{StationID: stationID, Variable: variable}
	for rows.Next() {
		var ts time.Time
		var value sql.NullFloat64
		if err := rows.Scan(&ts, &value); err != nil {
			return nil, fmt.Errorf("failed to scan observation row: %w", err)
		}
		series.Points = append(series.Points, models.Point{
			Timestamp: ts,
			Value:     value.Float64,
			Missing:   !value.Valid,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("observation row iteration failed: %w", err)
	}

	return series, nil
}
