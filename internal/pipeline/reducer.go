package pipeline

import (
	"fleet-track/internal/domain"
	"fleet-track/internal/geo"
)

// Reduction is the outcome of folding one frame into a vehicle's previous
// state. It is computed before any stage mutates the vehicle.
type Reduction struct {
	Status   domain.VehicleStatus
	Position domain.LastPosition

	IgnitionOn  bool
	IgnitionOff bool
	Moving      bool

	BatteryDead bool
	Battery     float64 // meaningful only when !BatteryDead
}

// Reduce classifies ignition, motion and status for one frame. The heading is
// derived from the bearing between the previous and current position, so it
// must run before the stored last position is overwritten.
func Reduce(v *domain.Vehicle, f *domain.Frame) Reduction {
	var red Reduction

	red.IgnitionOn = ignitionOn(f)
	red.IgnitionOff = ignitionOff(f)

	speed := f.GroundSpeed()
	red.Moving = red.IgnitionOn && speed > 0

	red.BatteryDead = true
	if f.Extended != nil && f.Extended.VehicleBattery.Valid && f.Extended.VehicleBattery.Value != 0 {
		red.BatteryDead = false
		red.Battery = f.Extended.VehicleBattery.Value
	}

	switch {
	case v.Status == domain.StatusImmobilized:
		// sticky, only the immobilization flow may clear it
		red.Status = domain.StatusImmobilized
	case red.BatteryDead:
		red.Status = domain.StatusInactive
	case red.Moving:
		red.Status = domain.StatusMoving
	case red.IgnitionOn:
		red.Status = domain.StatusStopped
	default:
		red.Status = domain.StatusInactive
	}

	red.Position = domain.LastPosition{
		Lat:       f.Lat,
		Lon:       f.Lon,
		Speed:     speed,
		Ignition:  red.IgnitionOn,
		Timestamp: f.Timestamp(),
	}
	if v.LastPosition.Valid() && f.HasValidCoords() {
		h := geo.Bearing(v.LastPosition.Lat, v.LastPosition.Lon, f.Lat, f.Lon)
		red.Position.Heading = &h
	}

	return red
}

func ignitionOn(f *domain.Frame) bool {
	if f.Ignition != nil && *f.Ignition {
		return true
	}
	return f.Extended != nil && f.Extended.DIN1 != nil && *f.Extended.DIN1 == 1
}

func ignitionOff(f *domain.Frame) bool {
	if f.Ignition != nil && !*f.Ignition {
		return true
	}
	return f.Extended != nil && f.Extended.DIN1 != nil && *f.Extended.DIN1 == 0
}
