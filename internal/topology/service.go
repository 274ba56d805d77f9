// Package topology answers directed-graph queries over the river network:
// which stations lie upstream or downstream of a given one, at what cumulative
// along-edge distance, and through what kind of edge. Stored data may contain
// cycles as a quality defect; traversal is bounded by hop count and
// deduplicates visited nodes, so it terminates regardless.
package topology

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/gimat/hydrocast/internal/cache"
	"github.com/gimat/hydrocast/internal/models"
)

// EdgeSource is the query contract the service needs from the topology store.
type EdgeSource interface {
	StationExists(ctx context.Context, stationID string) (bool, error)
	EdgesInto(ctx context.Context, stationID string) ([]models.NetworkEdge, error)
	EdgesFrom(ctx context.Context, stationID string) ([]models.NetworkEdge, error)
}

// NeighborCache is the optional read-through cache for traversal results.
type NeighborCache interface {
	Get(ctx context.Context, stationID, direction string, maxHops int) ([]cache.Neighbor, bool)
	Set(ctx context.Context, stationID, direction string, maxHops int, neighbors []cache.Neighbor)
}

// Service runs bounded-hop traversals over the edge list.
type Service struct {
	edges  EdgeSource
	cache  NeighborCache
	logger *logrus.Logger
}

func NewService(edges EdgeSource, neighborCache NeighborCache, logger *logrus.Logger) *Service {
	return &Service{edges: edges, cache: neighborCache, logger: logger}
}

// UpstreamOf returns stations upstream of stationID within maxHops, ordered
// by cumulative distance. Unknown stations fail with models.ErrNotFound; a
// station with no upstream neighbors yields an empty slice, not an error.
func (s *Service) UpstreamOf(ctx context.Context, stationID string, maxHops int) ([]cache.Neighbor, error) {
	return s.traverse(ctx, stationID, "upstream", maxHops, s.edges.EdgesInto, func(e models.NetworkEdge) string { return e.FromID })
}

// DownstreamOf returns stations downstream of stationID within maxHops,
// ordered by cumulative distance.
func (s *Service) DownstreamOf(ctx context.Context, stationID string, maxHops int) ([]cache.Neighbor, error) {
	return s.traverse(ctx, stationID, "downstream", maxHops, s.edges.EdgesFrom, func(e models.NetworkEdge) string { return e.ToID })
}

type edgeFetch func(ctx context.Context, stationID string) ([]models.NetworkEdge, error)

func (s *Service) traverse(ctx context.Context, stationID, direction string, maxHops int, fetch edgeFetch, next func(models.NetworkEdge) string) ([]cache.Neighbor, error) {
	if maxHops < 1 {
		maxHops = 1
	}

	if s.cache != nil {
		if neighbors, ok := s.cache.Get(ctx, stationID, direction, maxHops); ok {
			return neighbors, nil
		}
	}

	exists, err := s.edges.StationExists(ctx, stationID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, stationID)
	}

	type frontierNode struct {
		id       string
		distance float64
		hops     int
	}

	visited := map[string]bool{stationID: true}
	frontier := []frontierNode{{id: stationID}}
	var result []cache.Neighbor

	for len(frontier) > 0 {
		node := frontier[0]
		frontier = frontier[1:]

		if node.hops >= maxHops {
			continue
		}

		edges, err := fetch(ctx, node.id)
		if err != nil {
			return nil, err
		}

		for _, edge := range edges {
			id := next(edge)
			if visited[id] {
				continue
			}
			visited[id] = true

			neighbor := cache.Neighbor{
				StationID: id,
				Distance:  node.distance + edge.DistanceKM,
				Kind:      edge.Kind,
				Hops:      node.hops + 1,
			}
			result = append(result, neighbor)
			frontier = append(frontier, frontierNode{id: id, distance: neighbor.Distance, hops: neighbor.Hops})
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Distance != result[j].Distance {
			return result[i].Distance < result[j].Distance
		}
		return result[i].StationID < result[j].StationID
	})

	if s.cache != nil {
		s.cache.Set(ctx, stationID, direction, maxHops, result)
	}

	s.logger.WithFields(logrus.Fields{
		"station_id": stationID,
		"direction":  direction,
		"neighbors":  len(result),
	}).Debug("topology traversal complete")

	return result, nil
}
