package pipeline

import (
	"context"

	"fleet-track/internal/domain"
	"fleet-track/internal/geo"
	"fleet-track/internal/metrics"
	"fleet-track/internal/store"
)

// GeofenceEngine detects containment transitions for a vehicle's assigned,
// active geofences. State is kept on the vehicle per geofence id so a
// sustained inside/outside state never re-emits across frames.
type GeofenceEngine struct {
	geofences store.GeofenceStore
}

func NewGeofenceEngine(geofences store.GeofenceStore) *GeofenceEngine {
	return &GeofenceEngine{geofences: geofences}
}

func (e *GeofenceEngine) Evaluate(ctx context.Context, v *domain.Vehicle, lat, lon float64) ([]domain.GeofenceTransition, error) {
	fences, err := e.geofences.ActiveForVehicle(ctx, v.ID)
	if err != nil {
		return nil, err
	}

	var transitions []domain.GeofenceTransition
	for _, g := range fences {
		inside := Contains(g, lat, lon)
		st := v.GeofenceState(g.ID)

		switch {
		case inside && !st.Inside:
			st.Inside = true
			if g.NotifyOnEntry && !st.EntryAlertSent {
				st.EntryAlertSent = true
				st.ExitAlertSent = false
				transitions = append(transitions, domain.GeofenceTransition{
					Geofence: g,
					Event:    domain.GeofenceEntered,
					Lat:      lat,
					Lon:      lon,
				})
			}
		case !inside && st.Inside:
			st.Inside = false
			if g.NotifyOnExit && !st.ExitAlertSent {
				st.ExitAlertSent = true
				st.EntryAlertSent = false
				transitions = append(transitions, domain.GeofenceTransition{
					Geofence: g,
					Event:    domain.GeofenceExited,
					Lat:      lat,
					Lon:      lon,
				})
			}
		}
	}

	metrics.GeofenceTransitions.Add(int64(len(transitions)))
	return transitions, nil
}

// Contains tests whether the point falls inside the geofence region.
func Contains(g *domain.Geofence, lat, lon float64) bool {
	switch g.Type {
	case domain.GeofenceCircle:
		return geo.DistanceMeters(lat, lon, g.CenterLat, g.CenterLon) <= g.RadiusMeters
	case domain.GeofencePolygon:
		ring := make([][2]float64, len(g.Vertices))
		for i, vx := range g.Vertices {
			ring[i] = [2]float64{vx.Lat, vx.Lon}
		}
		return geo.PointInPolygon(lat, lon, ring)
	}
	return false
}
