package domain

import "time"

type AlertType string

const (
	AlertSpeed         AlertType = "SPEED_ALERT"
	AlertBattery       AlertType = "BATTERY_ALERT"
	AlertGeofenceEntry AlertType = "GEOFENCE_ENTRY"
	AlertGeofenceExit  AlertType = "GEOFENCE_EXIT"
)

// AlertRule is an enabled threshold rule. Threshold is required for speed and
// battery rules and ignored for geofence rules.
type AlertRule struct {
	ID        int64
	Name      string
	Type      AlertType
	Threshold float64
	Enabled   bool
}

// Alert is a raised condition for a vehicle. GeofenceID is zero for
// non-geofence alerts.
type Alert struct {
	ID         int64
	VehicleID  int64
	Type       AlertType
	Message    string
	GeofenceID int64
	Data       map[string]any
	Location   string // reverse-geocoded, empty when geocoding failed
	Resolved   bool
	ResolvedAt *time.Time
	Timestamp  time.Time
}
