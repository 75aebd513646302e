package pipeline

import (
	"context"
	"log"
	"time"

	"fleet-track/internal/domain"
	"fleet-track/internal/geo"
	"fleet-track/internal/metrics"
	"fleet-track/internal/store"
)

// TripTracker runs the trip lifecycle for one frame: start on motion, extend
// while ignition stays on, close on ignition-off. At most one active trip
// exists per vehicle; the per-vehicle lock in the processor guarantees no
// concurrent writers.
type TripTracker struct {
	trips       store.TripStore
	positions   store.PositionStore
	minInterval time.Duration
}

func NewTripTracker(trips store.TripStore, positions store.PositionStore, minInterval time.Duration) *TripTracker {
	return &TripTracker{
		trips:       trips,
		positions:   positions,
		minInterval: minInterval,
	}
}

func (t *TripTracker) Track(ctx context.Context, v *domain.Vehicle, f *domain.Frame, red Reduction) error {
	ts := f.Timestamp()
	speed := f.GroundSpeed()

	trip, err := t.trips.Active(ctx, v.ID)
	if err != nil {
		return err
	}

	// ignition off closes the active trip; with no trip it is a no-op
	if red.IgnitionOff {
		if trip == nil {
			return nil
		}
		return t.close(ctx, v, trip, f, ts, speed)
	}

	if trip == nil {
		if !red.Moving {
			return nil
		}
		trip = &domain.Trip{
			VehicleID: v.ID,
			UserID:    v.UserID,
			Status:    domain.TripActive,
			StartTime: ts,
			StartLocation: domain.TripPoint{
				Lat:       f.Lat,
				Lon:       f.Lon,
				Speed:     speed,
				Timestamp: ts,
			},
			Summary:   domain.TripSummary{MaxSpeedKmh: speed},
			UpdatedAt: ts,
		}
		if err := t.trips.Create(ctx, trip); err != nil {
			return err
		}
		metrics.TripsStarted.Add(1)
		log.Printf("[Trip] started for %s at %s", v.Name, ts.Format(time.RFC3339))
	}

	return t.sample(ctx, v, trip, f, ts, speed)
}

// sample records a position if the minimum interval since the last sample has
// elapsed, and folds it into the running summary.
func (t *TripTracker) sample(ctx context.Context, v *domain.Vehicle, trip *domain.Trip, f *domain.Frame, ts time.Time, speed float64) error {
	last, err := t.positions.LastForTrip(ctx, trip.ID)
	if err != nil {
		return err
	}
	if last != nil && ts.Sub(last.Timestamp) < t.minInterval {
		return nil
	}

	pos := &domain.Position{
		VehicleID: v.ID,
		TripID:    trip.ID,
		Lat:       f.Lat,
		Lon:       f.Lon,
		Speed:     speed,
		Ignition:  true,
		Timestamp: ts,
	}
	if f.Extended != nil && f.Extended.VehicleBattery.Valid {
		pos.Battery = f.Extended.VehicleBattery.Value
	}
	if err := t.positions.Insert(ctx, pos); err != nil {
		return err
	}

	trip.Summary.PositionCount++
	if speed > 0 && speed > trip.Summary.MaxSpeedKmh {
		trip.Summary.MaxSpeedKmh = speed
	}
	if last != nil {
		trip.Summary.DistanceKm += geo.DistanceKm(last.Lat, last.Lon, f.Lat, f.Lon)
	}
	trip.UpdatedAt = ts

	return t.trips.Update(ctx, trip)
}

func (t *TripTracker) close(ctx context.Context, v *domain.Vehicle, trip *domain.Trip, f *domain.Frame, ts time.Time, speed float64) error {
	last, err := t.positions.LastForTrip(ctx, trip.ID)
	if err != nil {
		return err
	}
	if last != nil {
		trip.Summary.DistanceKm += geo.DistanceKm(last.Lat, last.Lon, f.Lat, f.Lon)
	}

	trip.EndTime = ts
	trip.EndLocation = domain.TripPoint{
		Lat:       f.Lat,
		Lon:       f.Lon,
		Speed:     speed,
		Timestamp: ts,
	}
	if f.Extended != nil && f.Extended.TripOdometer.Valid {
		trip.Summary.OdometerKm = f.Extended.TripOdometer.Value / 1000
	}

	FinalizeSummary(trip)
	trip.Status = domain.TripCompleted
	trip.UpdatedAt = ts

	if err := t.trips.Update(ctx, trip); err != nil {
		return err
	}
	metrics.TripsClosed.Add(1)
	log.Printf("[Trip] ended for %s | distance %.2f km | duration %.1f min",
		v.Name, authoritativeDistance(trip), trip.Summary.DurationMin)
	return nil
}

// FinalizeSummary computes duration and average speed for a closing trip. The
// device trip odometer wins over the haversine sum when it is nonzero.
func FinalizeSummary(trip *domain.Trip) {
	durationMin := trip.EndTime.Sub(trip.StartTime).Minutes()
	trip.Summary.DurationMin = durationMin

	if durationMin <= 0 {
		trip.Summary.AvgSpeedKmh = 0
		return
	}
	trip.Summary.AvgSpeedKmh = authoritativeDistance(trip) / (durationMin / 60)
}

func authoritativeDistance(trip *domain.Trip) float64 {
	if trip.Summary.OdometerKm != 0 {
		return trip.Summary.OdometerKm
	}
	return trip.Summary.DistanceKm
}
