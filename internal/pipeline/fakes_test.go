package pipeline

import (
	"context"
	"time"

	"fleet-track/internal/domain"
	"fleet-track/internal/fanout"
)

// In-memory store fakes. Behavior is the happy path by default; tests inject
// fn fields to force errors or fixed responses.

type fakeVehicleStore struct {
	vehicles map[string]*domain.Vehicle
	saveFn   func(ctx context.Context, v *domain.Vehicle) error
	saved    []*domain.Vehicle
}

func (s *fakeVehicleStore) ByIMEI(_ context.Context, imei string) (*domain.Vehicle, error) {
	return s.vehicles[imei], nil
}

func (s *fakeVehicleStore) Save(ctx context.Context, v *domain.Vehicle) error {
	s.saved = append(s.saved, v)
	if s.saveFn != nil {
		return s.saveFn(ctx, v)
	}
	return nil
}

func (s *fakeVehicleStore) FindStale(_ context.Context, _ time.Time) ([]*domain.Vehicle, error) {
	return nil, nil
}

type fakeTripStore struct {
	nextID  int64
	active  *domain.Trip
	created []*domain.Trip
	updated []*domain.Trip

	activeFn func(ctx context.Context, vehicleID int64) (*domain.Trip, error)
}

func (s *fakeTripStore) Active(ctx context.Context, vehicleID int64) (*domain.Trip, error) {
	if s.activeFn != nil {
		return s.activeFn(ctx, vehicleID)
	}
	if s.active != nil && s.active.VehicleID == vehicleID {
		return s.active, nil
	}
	return nil, nil
}

func (s *fakeTripStore) Create(_ context.Context, t *domain.Trip) error {
	s.nextID++
	t.ID = s.nextID
	s.active = t
	s.created = append(s.created, t)
	return nil
}

func (s *fakeTripStore) Update(_ context.Context, t *domain.Trip) error {
	s.updated = append(s.updated, t)
	if t.Status == domain.TripCompleted && s.active != nil && s.active.ID == t.ID {
		s.active = nil
	}
	return nil
}

func (s *fakeTripStore) FindIdle(_ context.Context, _ time.Time) ([]*domain.Trip, error) {
	return nil, nil
}

type fakePositionStore struct {
	inserted []*domain.Position
}

func (s *fakePositionStore) Insert(_ context.Context, p *domain.Position) error {
	p.ID = int64(len(s.inserted) + 1)
	s.inserted = append(s.inserted, p)
	return nil
}

func (s *fakePositionStore) LastForTrip(_ context.Context, tripID int64) (*domain.Position, error) {
	for i := len(s.inserted) - 1; i >= 0; i-- {
		if s.inserted[i].TripID == tripID {
			return s.inserted[i], nil
		}
	}
	return nil, nil
}

type resolveCall struct {
	vehicleID  int64
	alertType  domain.AlertType
	geofenceID int64
}

type fakeAlertStore struct {
	created  []*domain.Alert
	resolved []resolveCall

	findOpenFn func(ctx context.Context, vehicleID int64, t domain.AlertType, geofenceID int64) (*domain.Alert, error)
}

func (s *fakeAlertStore) Create(_ context.Context, a *domain.Alert) error {
	a.ID = int64(len(s.created) + 1)
	s.created = append(s.created, a)
	return nil
}

func (s *fakeAlertStore) FindOpen(ctx context.Context, vehicleID int64, t domain.AlertType, geofenceID int64) (*domain.Alert, error) {
	if s.findOpenFn != nil {
		return s.findOpenFn(ctx, vehicleID, t, geofenceID)
	}
	return nil, nil
}

func (s *fakeAlertStore) Resolve(_ context.Context, vehicleID int64, t domain.AlertType, geofenceID int64) error {
	s.resolved = append(s.resolved, resolveCall{vehicleID, t, geofenceID})
	return nil
}

type fakeRuleStore struct {
	rules     []*domain.AlertRule
	enabledFn func(ctx context.Context) ([]*domain.AlertRule, error)
}

func (s *fakeRuleStore) Enabled(ctx context.Context) ([]*domain.AlertRule, error) {
	if s.enabledFn != nil {
		return s.enabledFn(ctx)
	}
	return s.rules, nil
}

type fakeUserStore struct {
	admins      []int64
	incremented [][]int64
}

func (s *fakeUserStore) IncrementAlertCounter(_ context.Context, userIDs []int64) error {
	s.incremented = append(s.incremented, userIDs)
	return nil
}

func (s *fakeUserStore) AdminIDs(_ context.Context) ([]int64, error) {
	return s.admins, nil
}

type fakeGeofenceStore struct {
	fences []*domain.Geofence
}

func (s *fakeGeofenceStore) ActiveForVehicle(_ context.Context, _ int64) ([]*domain.Geofence, error) {
	return s.fences, nil
}

type fakePublisher struct {
	positions []fanout.PositionEvent
	alerts    []fanout.AlertEvent
}

func (p *fakePublisher) PublishPosition(_ context.Context, _ int64, ev fanout.PositionEvent) error {
	p.positions = append(p.positions, ev)
	return nil
}

func (p *fakePublisher) PublishAlert(_ context.Context, _ int64, ev fanout.AlertEvent) error {
	p.alerts = append(p.alerts, ev)
	return nil
}

type fakeReverser struct {
	reverseFn func(ctx context.Context, lat, lon float64) (string, error)
}

func (r *fakeReverser) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	if r.reverseFn != nil {
		return r.reverseFn(ctx, lat, lon)
	}
	return "Main Street 1, Springfield", nil
}

type fakeLiveUpdater struct {
	updated []*domain.Vehicle
}

func (u *fakeLiveUpdater) Update(_ context.Context, v *domain.Vehicle) error {
	u.updated = append(u.updated, v)
	return nil
}

func boolPtr(b bool) *bool { return &b }

func intPtr(i int) *int { return &i }

func flex(v float64) domain.FlexFloat {
	return domain.FlexFloat{Value: v, Valid: true}
}
