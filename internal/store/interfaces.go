package store

import (
	"context"
	"time"

	"fleet-track/internal/domain"
)

// The pipeline depends on these interfaces only; the pgx implementations live
// in this package and tests substitute hand-rolled fakes.

type VehicleStore interface {
	ByIMEI(ctx context.Context, imei string) (*domain.Vehicle, error)
	Save(ctx context.Context, v *domain.Vehicle) error
	FindStale(ctx context.Context, cutoff time.Time) ([]*domain.Vehicle, error)
}

type TripStore interface {
	// Active returns the vehicle's active trip, or nil when there is none.
	Active(ctx context.Context, vehicleID int64) (*domain.Trip, error)
	Create(ctx context.Context, t *domain.Trip) error
	Update(ctx context.Context, t *domain.Trip) error
	FindIdle(ctx context.Context, cutoff time.Time) ([]*domain.Trip, error)
}

type PositionStore interface {
	Insert(ctx context.Context, p *domain.Position) error
	// LastForTrip returns the most recent sample of a trip, or nil when the
	// trip has none yet.
	LastForTrip(ctx context.Context, tripID int64) (*domain.Position, error)
}

type AlertStore interface {
	Create(ctx context.Context, a *domain.Alert) error
	// FindOpen returns an unresolved alert matching (vehicle, type) and, when
	// geofenceID is nonzero, the geofence as well. Nil when none exists.
	FindOpen(ctx context.Context, vehicleID int64, t domain.AlertType, geofenceID int64) (*domain.Alert, error)
	// Resolve marks matching unresolved alerts resolved with a timestamp.
	Resolve(ctx context.Context, vehicleID int64, t domain.AlertType, geofenceID int64) error
}

type GeofenceStore interface {
	// ActiveForVehicle returns the active geofences assigned to the vehicle.
	ActiveForVehicle(ctx context.Context, vehicleID int64) ([]*domain.Geofence, error)
}

type AlertRuleStore interface {
	Enabled(ctx context.Context) ([]*domain.AlertRule, error)
}

type UserStore interface {
	IncrementAlertCounter(ctx context.Context, userIDs []int64) error
	AdminIDs(ctx context.Context) ([]int64, error)
}
