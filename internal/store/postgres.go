package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleet-track/internal/config"
	"fleet-track/internal/domain"
)

// NewPool opens a pgx connection pool from the configured DSN parts.
func NewPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?pool_max_conns=%d",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBMaxConns,
	)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return pool, nil
}

var _ VehicleStore = (*PGVehicleStore)(nil)

type PGVehicleStore struct {
	pool *pgxpool.Pool
}

func NewPGVehicleStore(pool *pgxpool.Pool) *PGVehicleStore {
	return &PGVehicleStore{pool: pool}
}

const vehicleColumns = `
	id, imei, name, license_plate, user_id, status,
	last_lat, last_lon, last_speed, last_heading, last_ignition, last_timestamp,
	last_extended, geofence_states, speed_alerted, battery_alerted`

func (s *PGVehicleStore) ByIMEI(ctx context.Context, imei string) (*domain.Vehicle, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE imei = $1`, imei)
	v, err := scanVehicle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vehicle by imei %s: %w", imei, err)
	}
	return v, nil
}

func (s *PGVehicleStore) Save(ctx context.Context, v *domain.Vehicle) error {
	extended, err := json.Marshal(v.LastExtended)
	if err != nil {
		return fmt.Errorf("marshal extended: %w", err)
	}
	states, err := json.Marshal(v.GeofenceStates)
	if err != nil {
		return fmt.Errorf("marshal geofence states: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE vehicles SET
			status = $2,
			last_lat = $3, last_lon = $4, last_speed = $5, last_heading = $6,
			last_ignition = $7, last_timestamp = $8,
			last_extended = $9, geofence_states = $10,
			speed_alerted = $11, battery_alerted = $12
		WHERE id = $1`,
		v.ID,
		string(v.Status),
		v.LastPosition.Lat, v.LastPosition.Lon, v.LastPosition.Speed, v.LastPosition.Heading,
		v.LastPosition.Ignition, v.LastPosition.Timestamp,
		extended, states,
		v.SpeedAlerted, v.BatteryAlerted,
	)
	if err != nil {
		return fmt.Errorf("save vehicle %d: %w", v.ID, err)
	}
	return nil
}

func (s *PGVehicleStore) FindStale(ctx context.Context, cutoff time.Time) ([]*domain.Vehicle, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles
		 WHERE last_timestamp < $1 AND status NOT IN ('inactive', 'immobilized')`,
		cutoff)
	if err != nil {
		return nil, fmt.Errorf("find stale vehicles: %w", err)
	}
	defer rows.Close()

	var out []*domain.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stale vehicle: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanVehicle(row pgx.Row) (*domain.Vehicle, error) {
	var (
		v        domain.Vehicle
		status   string
		extended []byte
		states   []byte
	)
	err := row.Scan(
		&v.ID, &v.IMEI, &v.Name, &v.LicensePlate, &v.UserID, &status,
		&v.LastPosition.Lat, &v.LastPosition.Lon, &v.LastPosition.Speed,
		&v.LastPosition.Heading, &v.LastPosition.Ignition, &v.LastPosition.Timestamp,
		&extended, &states, &v.SpeedAlerted, &v.BatteryAlerted,
	)
	if err != nil {
		return nil, err
	}
	v.Status = domain.VehicleStatus(status)
	if len(extended) > 0 && string(extended) != "null" {
		var ext domain.ExtendedData
		if err := json.Unmarshal(extended, &ext); err == nil {
			v.LastExtended = &ext
		}
	}
	if len(states) > 0 && string(states) != "null" {
		if err := json.Unmarshal(states, &v.GeofenceStates); err != nil {
			v.GeofenceStates = nil
		}
	}
	return &v, nil
}
