package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleet-track/internal/domain"
)

var _ AlertStore = (*PGAlertStore)(nil)

type PGAlertStore struct {
	pool *pgxpool.Pool
}

func NewPGAlertStore(pool *pgxpool.Pool) *PGAlertStore {
	return &PGAlertStore{pool: pool}
}

func (s *PGAlertStore) Create(ctx context.Context, a *domain.Alert) error {
	data, err := json.Marshal(a.Data)
	if err != nil {
		return fmt.Errorf("marshal alert data: %w", err)
	}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO alerts (vehicle_id, type, message, geofence_id, data, location, resolved, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, false, $7)
		RETURNING id`,
		a.VehicleID, string(a.Type), a.Message, a.GeofenceID, data, a.Location, a.Timestamp,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("create %s alert for vehicle %d: %w", a.Type, a.VehicleID, err)
	}
	return nil
}

func (s *PGAlertStore) FindOpen(ctx context.Context, vehicleID int64, t domain.AlertType, geofenceID int64) (*domain.Alert, error) {
	query := `
		SELECT id, vehicle_id, type, message, geofence_id, data, location, resolved, resolved_at, timestamp
		FROM alerts
		WHERE vehicle_id = $1 AND type = $2 AND resolved = false`
	args := []any{vehicleID, string(t)}
	if geofenceID != 0 {
		query += ` AND geofence_id = $3`
		args = append(args, geofenceID)
	}
	query += ` ORDER BY timestamp DESC LIMIT 1`

	row := s.pool.QueryRow(ctx, query, args...)
	a, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find open %s alert for vehicle %d: %w", t, vehicleID, err)
	}
	return a, nil
}

func (s *PGAlertStore) Resolve(ctx context.Context, vehicleID int64, t domain.AlertType, geofenceID int64) error {
	query := `
		UPDATE alerts SET resolved = true, resolved_at = $3
		WHERE vehicle_id = $1 AND type = $2 AND resolved = false`
	args := []any{vehicleID, string(t), time.Now().UTC()}
	if geofenceID != 0 {
		query += ` AND geofence_id = $4`
		args = append(args, geofenceID)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("resolve %s alerts for vehicle %d: %w", t, vehicleID, err)
	}
	return nil
}

func scanAlert(row pgx.Row) (*domain.Alert, error) {
	var (
		a        domain.Alert
		alertTyp string
		data     []byte
	)
	err := row.Scan(&a.ID, &a.VehicleID, &alertTyp, &a.Message, &a.GeofenceID,
		&data, &a.Location, &a.Resolved, &a.ResolvedAt, &a.Timestamp)
	if err != nil {
		return nil, err
	}
	a.Type = domain.AlertType(alertTyp)
	if len(data) > 0 && string(data) != "null" {
		_ = json.Unmarshal(data, &a.Data)
	}
	return &a, nil
}

var _ AlertRuleStore = (*PGAlertRuleStore)(nil)

type PGAlertRuleStore struct {
	pool *pgxpool.Pool
}

func NewPGAlertRuleStore(pool *pgxpool.Pool) *PGAlertRuleStore {
	return &PGAlertRuleStore{pool: pool}
}

func (s *PGAlertRuleStore) Enabled(ctx context.Context) ([]*domain.AlertRule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, type, threshold, enabled FROM alert_rules WHERE enabled = true`)
	if err != nil {
		return nil, fmt.Errorf("enabled alert rules: %w", err)
	}
	defer rows.Close()

	var out []*domain.AlertRule
	for rows.Next() {
		var (
			r   domain.AlertRule
			typ string
		)
		if err := rows.Scan(&r.ID, &r.Name, &typ, &r.Threshold, &r.Enabled); err != nil {
			return nil, fmt.Errorf("scan alert rule: %w", err)
		}
		r.Type = domain.AlertType(typ)
		out = append(out, &r)
	}
	return out, rows.Err()
}

var _ UserStore = (*PGUserStore)(nil)

type PGUserStore struct {
	pool *pgxpool.Pool
}

func NewPGUserStore(pool *pgxpool.Pool) *PGUserStore {
	return &PGUserStore{pool: pool}
}

func (s *PGUserStore) IncrementAlertCounter(ctx context.Context, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET alert_counter = alert_counter + 1 WHERE id = ANY($1)`,
		userIDs)
	if err != nil {
		return fmt.Errorf("increment alert counters: %w", err)
	}
	return nil
}

func (s *PGUserStore) AdminIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM users WHERE role IN ('admin', 'superadmin')`)
	if err != nil {
		return nil, fmt.Errorf("admin ids: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan admin id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
