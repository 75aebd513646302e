package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleet-track/internal/domain"
)

var _ TripStore = (*PGTripStore)(nil)

type PGTripStore struct {
	pool *pgxpool.Pool
}

func NewPGTripStore(pool *pgxpool.Pool) *PGTripStore {
	return &PGTripStore{pool: pool}
}

const tripColumns = `
	id, vehicle_id, user_id, status, start_time, end_time,
	start_lat, start_lon, start_speed,
	end_lat, end_lon, end_speed,
	distance_km, odometer_km, duration_min, avg_speed_kmh, max_speed_kmh,
	position_count, updated_at`

func (s *PGTripStore) Active(ctx context.Context, vehicleID int64) (*domain.Trip, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE vehicle_id = $1 AND status = 'active'`,
		vehicleID)
	t, err := scanTrip(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active trip for vehicle %d: %w", vehicleID, err)
	}
	return t, nil
}

func (s *PGTripStore) Create(ctx context.Context, t *domain.Trip) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO trips (
			vehicle_id, user_id, status, start_time,
			start_lat, start_lon, start_speed,
			distance_km, odometer_km, duration_min, avg_speed_kmh, max_speed_kmh,
			position_count, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`,
		t.VehicleID, t.UserID, string(t.Status), t.StartTime,
		t.StartLocation.Lat, t.StartLocation.Lon, t.StartLocation.Speed,
		t.Summary.DistanceKm, t.Summary.OdometerKm, t.Summary.DurationMin,
		t.Summary.AvgSpeedKmh, t.Summary.MaxSpeedKmh,
		t.Summary.PositionCount, t.UpdatedAt,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("create trip for vehicle %d: %w", t.VehicleID, err)
	}
	return nil
}

func (s *PGTripStore) Update(ctx context.Context, t *domain.Trip) error {
	var endTime *time.Time
	if !t.EndTime.IsZero() {
		endTime = &t.EndTime
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE trips SET
			status = $2, end_time = $3,
			end_lat = $4, end_lon = $5, end_speed = $6,
			distance_km = $7, odometer_km = $8, duration_min = $9,
			avg_speed_kmh = $10, max_speed_kmh = $11, position_count = $12,
			updated_at = $13
		WHERE id = $1`,
		t.ID,
		string(t.Status), endTime,
		t.EndLocation.Lat, t.EndLocation.Lon, t.EndLocation.Speed,
		t.Summary.DistanceKm, t.Summary.OdometerKm, t.Summary.DurationMin,
		t.Summary.AvgSpeedKmh, t.Summary.MaxSpeedKmh, t.Summary.PositionCount,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update trip %d: %w", t.ID, err)
	}
	return nil
}

func (s *PGTripStore) FindIdle(ctx context.Context, cutoff time.Time) ([]*domain.Trip, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE status = 'active' AND updated_at < $1`,
		cutoff)
	if err != nil {
		return nil, fmt.Errorf("find idle trips: %w", err)
	}
	defer rows.Close()

	var out []*domain.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan idle trip: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTrip(row pgx.Row) (*domain.Trip, error) {
	var (
		t       domain.Trip
		status  string
		endTime *time.Time
		endLat  *float64
		endLon  *float64
		endSpd  *float64
	)
	err := row.Scan(
		&t.ID, &t.VehicleID, &t.UserID, &status, &t.StartTime, &endTime,
		&t.StartLocation.Lat, &t.StartLocation.Lon, &t.StartLocation.Speed,
		&endLat, &endLon, &endSpd,
		&t.Summary.DistanceKm, &t.Summary.OdometerKm, &t.Summary.DurationMin,
		&t.Summary.AvgSpeedKmh, &t.Summary.MaxSpeedKmh,
		&t.Summary.PositionCount, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = domain.TripStatus(status)
	t.StartLocation.Timestamp = t.StartTime
	if endTime != nil {
		t.EndTime = *endTime
		t.EndLocation.Timestamp = *endTime
	}
	if endLat != nil {
		t.EndLocation.Lat = *endLat
	}
	if endLon != nil {
		t.EndLocation.Lon = *endLon
	}
	if endSpd != nil {
		t.EndLocation.Speed = *endSpd
	}
	return &t, nil
}

var _ PositionStore = (*PGPositionStore)(nil)

type PGPositionStore struct {
	pool *pgxpool.Pool
}

func NewPGPositionStore(pool *pgxpool.Pool) *PGPositionStore {
	return &PGPositionStore{pool: pool}
}

func (s *PGPositionStore) Insert(ctx context.Context, p *domain.Position) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO positions (vehicle_id, trip_id, lat, lon, speed, ignition, battery, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		p.VehicleID, p.TripID, p.Lat, p.Lon, p.Speed, p.Ignition, p.Battery, p.Timestamp,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert position for trip %d: %w", p.TripID, err)
	}
	return nil
}

func (s *PGPositionStore) LastForTrip(ctx context.Context, tripID int64) (*domain.Position, error) {
	var p domain.Position
	err := s.pool.QueryRow(ctx, `
		SELECT id, vehicle_id, trip_id, lat, lon, speed, ignition, battery, recorded_at
		FROM positions WHERE trip_id = $1
		ORDER BY recorded_at DESC LIMIT 1`,
		tripID,
	).Scan(&p.ID, &p.VehicleID, &p.TripID, &p.Lat, &p.Lon, &p.Speed, &p.Ignition, &p.Battery, &p.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last position for trip %d: %w", tripID, err)
	}
	return &p, nil
}
