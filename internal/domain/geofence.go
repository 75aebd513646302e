package domain

type GeofenceType string

const (
	GeofenceCircle  GeofenceType = "circle"
	GeofencePolygon GeofenceType = "polygon"
)

// LatLon is one polygon vertex.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Geofence is a named circular or polygonal region. Read-only from the
// pipeline's perspective; ownership and CRUD live in the management layer.
type Geofence struct {
	ID   int64
	Name string
	Type GeofenceType

	// circle
	CenterLat    float64
	CenterLon    float64
	RadiusMeters float64

	// polygon, ordered ring of at least 3 vertices
	Vertices []LatLon

	Active        bool
	NotifyOnEntry bool
	NotifyOnExit  bool
}

type GeofenceEventType string

const (
	GeofenceEntered GeofenceEventType = "entry"
	GeofenceExited  GeofenceEventType = "exit"
)

// GeofenceTransition is an entry or exit detected for one (vehicle, geofence)
// pair, emitted exactly once per actual state change.
type GeofenceTransition struct {
	Geofence *Geofence
	Event    GeofenceEventType
	Lat      float64
	Lon      float64
}
