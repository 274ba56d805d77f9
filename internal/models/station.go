package models

// StationKind distinguishes monitoring posts from regulating structures.
type StationKind string

const (
	StationHydropost StationKind = "hydropost"
	StationReservoir StationKind = "reservoir"
)

// Station is a fixed observation point on a river. Stations are created and
// updated by the ingestion pipeline and are read-only to the forecasting core.
type Station struct {
	ID        string            `json:"station_id" db:"station_id"`
	Name      string            `json:"name" db:"name"`
	RiverName string            `json:"river_name" db:"river_name"`
	Kind      StationKind       `json:"kind" db:"kind"`
	Latitude  float64           `json:"latitude" db:"latitude"`
	Longitude float64           `json:"longitude" db:"longitude"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// EdgeKind tags the directed relation carried by a network edge.
type EdgeKind string

const (
	EdgeFlowsTo    EdgeKind = "flows_to"
	EdgeMonitors   EdgeKind = "monitors"
	EdgeInfluences EdgeKind = "influences"
)

// NetworkEdge is a directed relation between two stations or reaches in the
// river network. Stored data may contain cycles as a quality defect; traversal
// treats the graph as a DAG per basin and bounds itself by hop count.
type NetworkEdge struct {
	FromID     string   `json:"from_id" db:"from_id"`
	ToID       string   `json:"to_id" db:"to_id"`
	Kind       EdgeKind `json:"kind" db:"kind"`
	DistanceKM float64  `json:"distance_km" db:"distance_km"`
}
