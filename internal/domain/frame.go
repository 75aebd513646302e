package domain

import (
	"bytes"
	"strconv"
	"time"
)

// FlexFloat decodes a JSON number or a numeric string. Trackers in the field
// report battery and odometer values in either form; anything else counts as
// absent.
type FlexFloat struct {
	Value float64
	Valid bool
}

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	f.Value = 0
	f.Valid = false

	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		b = bytes.Trim(b, `"`)
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		// non-numeric payload, treat as absent rather than failing the frame
		return nil
	}
	f.Value = v
	f.Valid = true
	return nil
}

func (f FlexFloat) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(f.Value, 'f', -1, 64)), nil
}

// ExtendedData carries the optional extended telemetry block of a frame.
type ExtendedData struct {
	VehicleBattery FlexFloat `json:"vehicleBattery"`
	DIN1           *int      `json:"DIN1,omitempty"`
	TripOdometer   FlexFloat `json:"tripOdometer"`  // meters
	TotalOdometer  FlexFloat `json:"totalOdometer"` // meters
	AxisX          *float64  `json:"axisX,omitempty"`
	AxisY          *float64  `json:"axisY,omitempty"`
	AxisZ          *float64  `json:"axisZ,omitempty"`
}

// Frame is one decoded telemetry record from the upstream stream. It is
// consumed once by the pipeline and never persisted verbatim.
type Frame struct {
	IMEI         string        `json:"IMEI"`
	Lat          float64       `json:"lat"`
	Lon          float64       `json:"lon"`
	Speed        float64       `json:"speed"`
	SpeedGPS     float64       `json:"speedGps"`
	Ignition     *bool         `json:"ignition,omitempty"`
	Movement     *int          `json:"movement,omitempty"`
	GPSTimestamp int64         `json:"gpsTimestamp,omitempty"` // unix millis
	Extended     *ExtendedData `json:"extendedData,omitempty"`

	ReceivedAt time.Time `json:"-"`
}

// Timestamp returns the device GPS time when present, otherwise the server
// receive time.
func (f *Frame) Timestamp() time.Time {
	if f.GPSTimestamp > 0 {
		return time.UnixMilli(f.GPSTimestamp).UTC()
	}
	if !f.ReceivedAt.IsZero() {
		return f.ReceivedAt
	}
	return time.Now().UTC()
}

// GroundSpeed prefers the GPS speed channel, falling back to the CAN speed.
func (f *Frame) GroundSpeed() float64 {
	if f.SpeedGPS > 0 {
		return f.SpeedGPS
	}
	return f.Speed
}

// HasValidCoords reports whether the frame carries a usable position. Zero
// coordinates mean the tracker had no GPS fix.
func (f *Frame) HasValidCoords() bool {
	if f.Lat == 0 && f.Lon == 0 {
		return false
	}
	return f.Lat >= -90 && f.Lat <= 90 && f.Lon >= -180 && f.Lon <= 180
}
