package domain

import "time"

type TripStatus string

const (
	TripActive    TripStatus = "active"
	TripCompleted TripStatus = "completed"
)

// TripPoint is a trip boundary location.
type TripPoint struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Speed     float64   `json:"speed"`
	Timestamp time.Time `json:"timestamp"`
}

// TripSummary accumulates while a trip is active and is finalized on close.
type TripSummary struct {
	DistanceKm    float64 `json:"distanceKm"`    // pairwise haversine over samples
	OdometerKm    float64 `json:"odometerKm"`    // device trip odometer, authoritative when nonzero
	DurationMin   float64 `json:"durationMin"`
	AvgSpeedKmh   float64 `json:"avgSpeedKmh"`
	MaxSpeedKmh   float64 `json:"maxSpeedKmh"`
	PositionCount int     `json:"positionCount"`
}

// Trip is one contiguous period of motion bounded by ignition-on/off or the
// idle sweep. At most one active trip exists per vehicle.
type Trip struct {
	ID        int64
	VehicleID int64
	UserID    int64
	Status    TripStatus

	StartTime     time.Time
	EndTime       time.Time
	StartLocation TripPoint
	EndLocation   TripPoint

	Summary   TripSummary
	UpdatedAt time.Time
}

// Position is an append-only sample recorded while a trip is active, gated by
// the minimum sampling interval.
type Position struct {
	ID        int64
	VehicleID int64
	TripID    int64
	Lat       float64
	Lon       float64
	Speed     float64
	Ignition  bool
	Battery   float64
	Timestamp time.Time
}
