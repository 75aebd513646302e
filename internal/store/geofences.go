package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"fleet-track/internal/domain"
)

var _ GeofenceStore = (*PGGeofenceStore)(nil)

type PGGeofenceStore struct {
	pool *pgxpool.Pool
}

func NewPGGeofenceStore(pool *pgxpool.Pool) *PGGeofenceStore {
	return &PGGeofenceStore{pool: pool}
}

func (s *PGGeofenceStore) ActiveForVehicle(ctx context.Context, vehicleID int64) ([]*domain.Geofence, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT g.id, g.name, g.type, g.center_lat, g.center_lon, g.radius_m,
		       g.vertices, g.active, g.notify_on_entry, g.notify_on_exit
		FROM geofences g
		JOIN geofence_vehicles gv ON gv.geofence_id = g.id
		WHERE gv.vehicle_id = $1 AND g.active = true`,
		vehicleID)
	if err != nil {
		return nil, fmt.Errorf("geofences for vehicle %d: %w", vehicleID, err)
	}
	defer rows.Close()

	var out []*domain.Geofence
	for rows.Next() {
		var (
			g        domain.Geofence
			typ      string
			vertices []byte
		)
		err := rows.Scan(&g.ID, &g.Name, &typ, &g.CenterLat, &g.CenterLon, &g.RadiusMeters,
			&vertices, &g.Active, &g.NotifyOnEntry, &g.NotifyOnExit)
		if err != nil {
			return nil, fmt.Errorf("scan geofence: %w", err)
		}
		g.Type = domain.GeofenceType(typ)
		if len(vertices) > 0 && string(vertices) != "null" {
			if err := json.Unmarshal(vertices, &g.Vertices); err != nil {
				return nil, fmt.Errorf("decode vertices for geofence %d: %w", g.ID, err)
			}
		}
		out = append(out, &g)
	}
	return out, rows.Err()
}
