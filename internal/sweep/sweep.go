// Package sweep runs the periodic jobs: closing trips that stopped receiving
// updates and marking vehicles inactive after a quiet period. Both go through
// the processor's per-vehicle lock so they never race a live frame.
package sweep

import (
	"context"
	"log"
	"time"

	"fleet-track/internal/domain"
	"fleet-track/internal/metrics"
	"fleet-track/internal/pipeline"
	"fleet-track/internal/store"
)

type Sweeper struct {
	trips     store.TripStore
	positions store.PositionStore
	vehicles  store.VehicleStore

	lockVehicle func(id int64) func()

	tripIdleAfter time.Duration
	vehicleStale  time.Duration
	interval      time.Duration
}

func New(
	trips store.TripStore,
	positions store.PositionStore,
	vehicles store.VehicleStore,
	lockVehicle func(id int64) func(),
	tripIdleAfter, vehicleStale, interval time.Duration,
) *Sweeper {
	return &Sweeper{
		trips:         trips,
		positions:     positions,
		vehicles:      vehicles,
		lockVehicle:   lockVehicle,
		tripIdleAfter: tripIdleAfter,
		vehicleStale:  vehicleStale,
		interval:      interval,
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.CloseIdleTrips(ctx)
			s.MarkStaleVehicles(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// CloseIdleTrips completes active trips with no update inside the idle
// window, using the last recorded sample as the end of the trip.
func (s *Sweeper) CloseIdleTrips(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.tripIdleAfter)

	idle, err := s.trips.FindIdle(ctx, cutoff)
	if err != nil {
		log.Printf("[CRON] find idle trips: %v", err)
		return
	}

	for _, trip := range idle {
		s.closeIdleTrip(ctx, trip, cutoff)
	}
}

func (s *Sweeper) closeIdleTrip(ctx context.Context, trip *domain.Trip, cutoff time.Time) {
	unlock := s.lockVehicle(trip.VehicleID)
	defer unlock()

	// a frame may have extended or closed the trip while we were queued on
	// the lock; re-check before touching it
	current, err := s.trips.Active(ctx, trip.VehicleID)
	if err != nil {
		log.Printf("[CRON] recheck trip %d: %v", trip.ID, err)
		return
	}
	if current == nil || current.ID != trip.ID || current.UpdatedAt.After(cutoff) {
		return
	}
	trip = current

	last, err := s.positions.LastForTrip(ctx, trip.ID)
	if err != nil {
		log.Printf("[CRON] last position for trip %d: %v", trip.ID, err)
		return
	}

	if last != nil {
		trip.EndTime = last.Timestamp
		trip.EndLocation = domain.TripPoint{
			Lat:       last.Lat,
			Lon:       last.Lon,
			Speed:     last.Speed,
			Timestamp: last.Timestamp,
		}
	} else {
		trip.EndTime = trip.UpdatedAt
		trip.EndLocation = trip.StartLocation
	}

	pipeline.FinalizeSummary(trip)
	trip.Status = domain.TripCompleted
	trip.UpdatedAt = time.Now().UTC()

	if err := s.trips.Update(ctx, trip); err != nil {
		log.Printf("[CRON] close trip %d: %v", trip.ID, err)
		return
	}
	metrics.TripsClosed.Add(1)
	log.Printf("[CRON] closed inactive trip %d", trip.ID)
}

// MarkStaleVehicles flips vehicles to inactive when no position arrived
// inside the stale window. Immobilized vehicles are excluded by the query.
func (s *Sweeper) MarkStaleVehicles(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.vehicleStale)

	stale, err := s.vehicles.FindStale(ctx, cutoff)
	if err != nil {
		log.Printf("[CRON] find stale vehicles: %v", err)
		return
	}

	for _, v := range stale {
		s.markStaleVehicle(ctx, v, cutoff)
	}
}

func (s *Sweeper) markStaleVehicle(ctx context.Context, v *domain.Vehicle, cutoff time.Time) {
	unlock := s.lockVehicle(v.ID)
	defer unlock()

	// a frame may have arrived while we were queued on the lock; re-fetch
	// and re-check staleness so the fresh state is never overwritten
	current, err := s.vehicles.ByIMEI(ctx, v.IMEI)
	if err != nil {
		log.Printf("[CRON] recheck vehicle %s: %v", v.IMEI, err)
		return
	}
	if current == nil || !current.LastPosition.Timestamp.Before(cutoff) {
		return
	}
	if current.Status == domain.StatusInactive || current.Status == domain.StatusImmobilized {
		return
	}

	current.Status = domain.StatusInactive
	if err := s.vehicles.Save(ctx, current); err != nil {
		log.Printf("[CRON] mark %s inactive: %v", current.Name, err)
		return
	}
	log.Printf("[CRON] marked %s (%s) as inactive", current.Name, current.IMEI)
}
