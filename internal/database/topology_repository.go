package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gimat/hydrocast/internal/models"
)

// TopologyRepository reads the directed river-network edge list. The edges
// are maintained by the ingestion pipeline; the core only traverses them.
type TopologyRepository struct {
	pool DatabasePool
}

func NewTopologyRepository(pool DatabasePool) *TopologyRepository {
	return &TopologyRepository{pool: pool}
}

// StationExists reports whether the station appears in the topology graph.
func (r *TopologyRepository) StationExists(ctx context.Context, stationID string) (bool, error) {
	const q = `SELECT station_id FROM stations WHERE station_id = $1`

	var id string
	err := r.pool.QueryRow(ctx, q, stationID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check station %s: %w", stationID, err)
	}
	return true, nil
}

// EdgesInto returns edges pointing at the station (its upstream relations).
func (r *TopologyRepository) EdgesInto(ctx context.Context, stationID string) ([]models.NetworkEdge, error) {
	const q = `SELECT from_id, to_id, kind, COALESCE(distance_km, 0)
		FROM network_edges WHERE to_id = $1`
	return r.queryEdges(ctx, q, stationID)
}

// EdgesFrom returns edges leaving the station (its downstream relations).
func (r *TopologyRepository) EdgesFrom(ctx context.Context, stationID string) ([]models.NetworkEdge, error) {
	const q = `SELECT from_id, to_id, kind, COALESCE(distance_km, 0)
		FROM network_edges WHERE from_id = $1`
	return r.queryEdges(ctx, q, stationID)
}

func (r *TopologyRepository) queryEdges(ctx context.Context, q, stationID string) ([]models.NetworkEdge, error) {
	rows, err := r.pool.Query(ctx, q, stationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges for %s: %w", stationID, err)
	}
	defer rows.Close()

	var edges []models.NetworkEdge
	for rows.Next() {
		var e models.NetworkEdge
		if err := rows.Scan(&e.FromID, &e.ToID, &e.Kind, &e.DistanceKM); err != nil {
			return nil, fmt.Errorf("failed to scan edge row: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("edge row iteration failed: %w", err)
	}
	return edges, nil
}
