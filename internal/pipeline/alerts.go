package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"fleet-track/internal/domain"
	"fleet-track/internal/fanout"
	"fleet-track/internal/geocode"
	"fleet-track/internal/metrics"
	"fleet-track/internal/store"
)

// AlertEvaluator applies enabled threshold rules with hysteresis and turns
// geofence transitions into alert records. Side effects here (geocoding,
// counters, fan-out) are best effort and never block the core state update.
type AlertEvaluator struct {
	rules    store.AlertRuleStore
	alerts   store.AlertStore
	users    store.UserStore
	geocoder geocode.Reverser
	pub      fanout.Publisher
}

func NewAlertEvaluator(
	rules store.AlertRuleStore,
	alerts store.AlertStore,
	users store.UserStore,
	geocoder geocode.Reverser,
	pub fanout.Publisher,
) *AlertEvaluator {
	return &AlertEvaluator{
		rules:    rules,
		alerts:   alerts,
		users:    users,
		geocoder: geocoder,
		pub:      pub,
	}
}

func (e *AlertEvaluator) Evaluate(ctx context.Context, v *domain.Vehicle, f *domain.Frame, red Reduction, transitions []domain.GeofenceTransition) error {
	// transitions are already committed on the vehicle's geofence state and
	// do not depend on rules; handle them even when the rule lookup fails,
	// or the entry/exit is lost for good
	for _, tr := range transitions {
		e.handleTransition(ctx, v, tr)
	}

	rules, err := e.rules.Enabled(ctx)
	if err != nil {
		return err
	}

	for _, rule := range rules {
		switch rule.Type {
		case domain.AlertSpeed:
			e.evaluateSpeed(ctx, v, f, rule)
		case domain.AlertBattery:
			e.evaluateBattery(ctx, v, f, red, rule)
		}
	}
	return nil
}

func (e *AlertEvaluator) evaluateSpeed(ctx context.Context, v *domain.Vehicle, f *domain.Frame, rule *domain.AlertRule) {
	speed := f.GroundSpeed()
	if speed > rule.Threshold {
		if v.SpeedAlerted {
			return
		}
		v.SpeedAlerted = true
		e.create(ctx, v, &domain.Alert{
			VehicleID: v.ID,
			Type:      domain.AlertSpeed,
			Message:   fmt.Sprintf("%s exceeded the speed limit: %.0f km/h (limit %.0f km/h)", v.Name, speed, rule.Threshold),
			Data: map[string]any{
				"speed":     speed,
				"threshold": rule.Threshold,
				"lat":       f.Lat,
				"lon":       f.Lon,
			},
			Timestamp: f.Timestamp(),
		}, f.Lat, f.Lon)
		return
	}

	// condition cleared, re-arm without creating anything
	v.SpeedAlerted = false
}

func (e *AlertEvaluator) evaluateBattery(ctx context.Context, v *domain.Vehicle, f *domain.Frame, red Reduction, rule *domain.AlertRule) {
	if red.BatteryDead {
		return
	}
	if red.Battery < rule.Threshold {
		if v.BatteryAlerted {
			return
		}
		v.BatteryAlerted = true
		e.create(ctx, v, &domain.Alert{
			VehicleID: v.ID,
			Type:      domain.AlertBattery,
			Message:   fmt.Sprintf("%s battery low: %.0f%% (threshold %.0f%%)", v.Name, red.Battery, rule.Threshold),
			Data: map[string]any{
				"battery":   red.Battery,
				"threshold": rule.Threshold,
				"lat":       f.Lat,
				"lon":       f.Lon,
			},
			Timestamp: f.Timestamp(),
		}, f.Lat, f.Lon)
		return
	}

	if v.BatteryAlerted {
		v.BatteryAlerted = false
		if err := e.alerts.Resolve(ctx, v.ID, domain.AlertBattery, 0); err != nil {
			log.Printf("[ALERT] resolve battery alerts for vehicle %d: %v", v.ID, err)
		}
	}
}

func (e *AlertEvaluator) handleTransition(ctx context.Context, v *domain.Vehicle, tr domain.GeofenceTransition) {
	var alertType, opposite domain.AlertType
	var verb string
	switch tr.Event {
	case domain.GeofenceEntered:
		alertType, opposite, verb = domain.AlertGeofenceEntry, domain.AlertGeofenceExit, "entered"
	case domain.GeofenceExited:
		alertType, opposite, verb = domain.AlertGeofenceExit, domain.AlertGeofenceEntry, "exited"
	default:
		return
	}

	// an entry resolves any open exit alert for the same pair, and vice versa
	if err := e.alerts.Resolve(ctx, v.ID, opposite, tr.Geofence.ID); err != nil {
		log.Printf("[ALERT] resolve %s alerts for vehicle %d: %v", opposite, v.ID, err)
	}

	e.create(ctx, v, &domain.Alert{
		VehicleID:  v.ID,
		Type:       alertType,
		Message:    fmt.Sprintf("%s has %s geofence %q", v.Name, verb, tr.Geofence.Name),
		GeofenceID: tr.Geofence.ID,
		Data: map[string]any{
			"geofenceId":   tr.Geofence.ID,
			"geofenceName": tr.Geofence.Name,
			"lat":          tr.Lat,
			"lon":          tr.Lon,
		},
		Timestamp: time.Now().UTC(),
	}, tr.Lat, tr.Lon)
}

// create persists an alert unless an unresolved one of the same shape exists,
// then runs the side effects: counters, geocoding, fan-out.
func (e *AlertEvaluator) create(ctx context.Context, v *domain.Vehicle, a *domain.Alert, lat, lon float64) {
	existing, err := e.alerts.FindOpen(ctx, a.VehicleID, a.Type, a.GeofenceID)
	if err != nil {
		log.Printf("[ALERT] dedup lookup failed for %s/%d: %v", a.Type, a.VehicleID, err)
		return
	}
	if existing != nil {
		return
	}

	if lat != 0 || lon != 0 {
		loc, err := e.geocoder.Reverse(ctx, lat, lon)
		if err != nil {
			log.Printf("[ALERT] reverse geocoding failed: %v", err)
		} else {
			a.Location = loc
		}
	}

	if err := e.alerts.Create(ctx, a); err != nil {
		log.Printf("[ALERT] create %s for vehicle %d: %v", a.Type, a.VehicleID, err)
		metrics.DBWriteFailures.Add(1)
		return
	}
	metrics.AlertsCreated.Add(1)
	log.Printf("[ALERT] %s created for vehicle %s", a.Type, v.Name)

	e.bumpCounters(ctx, v)

	ev := fanout.AlertEvent{
		VehicleID:    v.ID,
		VehicleName:  v.Name,
		VehiclePlate: v.LicensePlate,
		Type:         string(a.Type),
		Message:      a.Message,
		Data:         a.Data,
		Location:     fanout.LocationOrPlaceholder(a.Location),
		Timestamp:    a.Timestamp,
	}
	if err := e.pub.PublishAlert(ctx, v.UserID, ev); err != nil {
		metrics.PublishFailures.Add(1)
		log.Printf("[ALERT] publish failed for vehicle %d: %v", v.ID, err)
	}
}

func (e *AlertEvaluator) bumpCounters(ctx context.Context, v *domain.Vehicle) {
	admins, err := e.users.AdminIDs(ctx)
	if err != nil {
		log.Printf("[ALERT] admin lookup failed: %v", err)
		admins = nil
	}

	recipients := []int64{v.UserID}
	for _, id := range admins {
		if id != v.UserID {
			recipients = append(recipients, id)
		}
	}
	if err := e.users.IncrementAlertCounter(ctx, recipients); err != nil {
		log.Printf("[ALERT] increment counters failed: %v", err)
	}
}
