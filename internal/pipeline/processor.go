package pipeline

import (
	"context"
	"log"
	"sync"

	"fleet-track/internal/domain"
	"fleet-track/internal/fanout"
	"fleet-track/internal/metrics"
	"fleet-track/internal/store"
)

// LiveUpdater mirrors the vehicle's reduced state into the realtime store.
type LiveUpdater interface {
	Update(ctx context.Context, v *domain.Vehicle) error
}

// Processor is the pipeline orchestrator. One frame is one logical
// transaction for its vehicle: reduce, track the trip, evaluate geofences and
// alert rules, then persist the new baseline state and fan out the position.
// Frames for the same vehicle are serialized through a per-vehicle mutex so
// the sweeps and any future concurrent ingestion source keep the invariants.
type Processor struct {
	vehicles  store.VehicleStore
	trips     *TripTracker
	geofences *GeofenceEngine
	alerts    *AlertEvaluator
	live      LiveUpdater
	pub       fanout.Publisher

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewProcessor(
	vehicles store.VehicleStore,
	trips *TripTracker,
	geofences *GeofenceEngine,
	alerts *AlertEvaluator,
	live LiveUpdater,
	pub fanout.Publisher,
) *Processor {
	return &Processor{
		vehicles:  vehicles,
		trips:     trips,
		geofences: geofences,
		alerts:    alerts,
		live:      live,
		pub:       pub,
		locks:     make(map[int64]*sync.Mutex),
	}
}

// LockVehicle serializes state mutation for one vehicle id and returns the
// unlock function. The sweeps share these locks with the frame path.
func (p *Processor) LockVehicle(id int64) func() {
	p.mu.Lock()
	mu, ok := p.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		p.locks[id] = mu
	}
	p.mu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// HandleFrame is the pipeline entry point, invoked synchronously by the
// receiver in arrival order.
func (p *Processor) HandleFrame(ctx context.Context, f *domain.Frame) {
	metrics.FramesReceived.Add(1)

	if f.IMEI == "" {
		metrics.FramesDropped.Add(1)
		log.Printf("[Pipeline] frame without IMEI dropped")
		return
	}

	v, err := p.vehicles.ByIMEI(ctx, f.IMEI)
	if err != nil {
		metrics.FramesDropped.Add(1)
		log.Printf("[Pipeline] vehicle lookup for %s: %v", f.IMEI, err)
		return
	}
	if v == nil {
		metrics.FramesDropped.Add(1)
		log.Printf("[Pipeline] no vehicle registered for IMEI %s, frame dropped", f.IMEI)
		return
	}
	if !f.HasValidCoords() {
		metrics.FramesDropped.Add(1)
		log.Printf("[Pipeline] invalid coordinates (%f, %f) for %s, frame dropped", f.Lat, f.Lon, f.IMEI)
		return
	}

	unlock := p.LockVehicle(v.ID)
	defer unlock()

	red := Reduce(v, f)

	if err := p.trips.Track(ctx, v, f, red); err != nil {
		metrics.DBWriteFailures.Add(1)
		log.Printf("[Trip] tracking failed for %s: %v", v.Name, err)
	}

	transitions, err := p.geofences.Evaluate(ctx, v, f.Lat, f.Lon)
	if err != nil {
		log.Printf("[Geofence] evaluation failed for %s: %v", v.Name, err)
	}

	// apply the reduction before the evaluator so hysteresis flags and the
	// new baseline persist together
	v.Status = red.Status
	v.LastPosition = red.Position
	if f.Extended != nil {
		v.LastExtended = f.Extended
	}

	if err := p.alerts.Evaluate(ctx, v, f, red, transitions); err != nil {
		log.Printf("[ALERT] evaluation failed for %s: %v", v.Name, err)
	}

	if err := p.vehicles.Save(ctx, v); err != nil {
		metrics.DBWriteFailures.Add(1)
		log.Printf("[Pipeline] persist vehicle %d failed: %v", v.ID, err)
		return
	}

	if err := p.live.Update(ctx, v); err != nil {
		log.Printf("[Pipeline] live state update for %d failed: %v", v.ID, err)
	}

	ev := fanout.PositionEvent{
		VehicleID: v.ID,
		Name:      v.Name,
		Status:    string(v.Status),
		Lat:       v.LastPosition.Lat,
		Lon:       v.LastPosition.Lon,
		Speed:     v.LastPosition.Speed,
		Heading:   v.LastPosition.Heading,
		Ignition:  v.LastPosition.Ignition,
		Timestamp: v.LastPosition.Timestamp,
	}
	if err := p.pub.PublishPosition(ctx, v.UserID, ev); err != nil {
		metrics.PublishFailures.Add(1)
		log.Printf("[Pipeline] position publish for %d failed: %v", v.ID, err)
	}
}
