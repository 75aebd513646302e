package domain

import "time"

type VehicleStatus string

const (
	StatusMoving      VehicleStatus = "moving"
	StatusStopped     VehicleStatus = "stopped"
	StatusInactive    VehicleStatus = "inactive"
	StatusImmobilized VehicleStatus = "immobilized"
)

// LastPosition is a vehicle's most recent known position.
type LastPosition struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Speed     float64   `json:"speed"`
	Heading   *float64  `json:"heading,omitempty"` // degrees from north, nil until two valid fixes
	Ignition  bool      `json:"ignition"`
	Timestamp time.Time `json:"timestamp"`
}

func (p LastPosition) Valid() bool {
	return !(p.Lat == 0 && p.Lon == 0)
}

// GeofenceState tracks a vehicle's containment state for one geofence across
// frames, so entry/exit fire once per actual transition.
type GeofenceState struct {
	Inside         bool `json:"inside"`
	EntryAlertSent bool `json:"entryAlertSent"`
	ExitAlertSent  bool `json:"exitAlertSent"`
}

// Vehicle is the per-asset baseline state mutated by the pipeline on each
// frame. Single writer per vehicle id; the processor serializes access.
type Vehicle struct {
	ID           int64
	IMEI         string
	Name         string
	LicensePlate string
	UserID       int64

	Status       VehicleStatus
	LastPosition LastPosition
	LastExtended *ExtendedData

	// keyed by geofence id
	GeofenceStates map[int64]*GeofenceState

	// alert hysteresis flags
	SpeedAlerted   bool
	BatteryAlerted bool
}

// GeofenceState returns the transition record for the given geofence,
// creating it on first evaluation.
func (v *Vehicle) GeofenceState(geofenceID int64) *GeofenceState {
	if v.GeofenceStates == nil {
		v.GeofenceStates = make(map[int64]*GeofenceState)
	}
	st, ok := v.GeofenceStates[geofenceID]
	if !ok {
		st = &GeofenceState{}
		v.GeofenceStates[geofenceID] = st
	}
	return st
}
