package database

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gimat/hydrocast/internal/models"
)

func setupMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func expectStationRow(mock pgxmock.PgxPoolIface, stationID string) {
	mock.ExpectQuery("SELECT station_id, name, river_name, kind, latitude, longitude").
		WithArgs(stationID).
		WillReturnRows(pgxmock.NewRows([]string{"station_id", "name", "river_name", "kind", "latitude", "longitude"}).
			AddRow(stationID, "Main gauge", "Naryn", models.StationHydropost, 41.43, 76.0))
}

func TestObservationRepository_GetStation(t *testing.T) {
	mock := setupMockPool(t)
	repo := NewObservationRepository(mock)

	expectStationRow(mock, "hp-001")

	station, err := repo.GetStation(context.Background(), "hp-001")
	require.NoError(t, err)
	assert.Equal(t, "hp-001", station.ID)
	assert.Equal(t, "Naryn", station.RiverName)
	assert.Equal(t, models.StationHydropost, station.Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestObservationRepository_GetStationNotFound(t *testing.T) {
	mock := setupMockPool(t)
	repo := NewObservationRepository(mock)

	mock.ExpectQuery("SELECT station_id, name, river_name, kind, latitude, longitude").
		WithArgs("hp-404").
		WillReturnRows(pgxmock.NewRows([]string{"station_id", "name", "river_name", "kind", "latitude", "longitude"}))

	_, err := repo.GetStation(context.Background(), "hp-404")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestObservationRepository_GetSeries(t *testing.T) {
	mock := setupMockPool(t)
	repo := NewObservationRepository(mock)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 2)

	expectStationRow(mock, "hp-001")
	mock.ExpectQuery("SELECT observed_at, discharge FROM observations").
		WithArgs("hp-001", from, to).
		WillReturnRows(pgxmock.NewRows([]string{"observed_at", "discharge"}).
			AddRow(from, 118.5).
			AddRow(from.AddDate(0, 0, 1), nil).
			AddRow(to, 121.0))

	series, err := repo.GetSeries(context.Background(), "hp-001", models.VariableDischarge, from, to)
	require.NoError(t, err)
	require.Equal(t, 3, series.Len())

	assert.Equal(t, 118.5, series.Points[0].Value)
	assert.False(t, series.Points[0].Missing)

	// NULL readings arrive as explicit gaps, never interpolated here.
	assert.True(t, series.Points[1].Missing)
	assert.Equal(t, 0.0, series.Points[1].Value)

	assert.Equal(t, 121.0, series.Points[2].Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestObservationRepository_GetSeriesUnknownStation(t *testing.T) {
	mock := setupMockPool(t)
	repo := NewObservationRepository(mock)

	mock.ExpectQuery("SELECT station_id, name, river_name, kind, latitude, longitude").
		WithArgs("hp-404").
		WillReturnRows(pgxmock.NewRows([]string{"station_id", "name", "river_name", "kind", "latitude", "longitude"}))

	_, err := repo.GetSeries(context.Background(), "hp-404", models.VariableDischarge, time.Now().AddDate(0, 0, -7), time.Now())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestObservationRepository_GetSeriesUnknownVariable(t *testing.T) {
	mock := setupMockPool(t)
	repo := NewObservationRepository(mock)

	_, err := repo.GetSeries(context.Background(), "hp-001", models.Variable("salinity"), time.Now().AddDate(0, 0, -7), time.Now())
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
}

func TestObservationRepository_GetSeriesEmptyWindow(t *testing.T) {
	mock := setupMockPool(t)
	repo := NewObservationRepository(mock)

	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)

	expectStationRow(mock, "hp-001")
	mock.ExpectQuery("SELECT observed_at, water_level FROM observations").
		WithArgs("hp-001", from, to).
		WillReturnRows(pgxmock.NewRows([]string{"observed_at", "water_level"}))

	series, err := repo.GetSeries(context.Background(), "hp-001", models.VariableWaterLevel, from, to)
	require.NoError(t, err)
	assert.Equal(t, 0, series.Len())
}
