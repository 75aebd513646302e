package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fleet-track/internal/domain"
)

func newProcessor(vehicles *fakeVehicleStore) (*Processor, *fakeTripStore, *fakeLiveUpdater, *fakePublisher) {
	trips := &fakeTripStore{}
	positions := &fakePositionStore{}
	live := &fakeLiveUpdater{}
	pub := &fakePublisher{}
	p := NewProcessor(
		vehicles,
		NewTripTracker(trips, positions, 30*time.Second),
		NewGeofenceEngine(&fakeGeofenceStore{}),
		NewAlertEvaluator(&fakeRuleStore{}, &fakeAlertStore{}, &fakeUserStore{}, &fakeReverser{}, pub),
		live,
		pub,
	)
	return p, trips, live, pub
}

func TestHandleFrame_FullPath(t *testing.T) {
	v := &domain.Vehicle{ID: 7, IMEI: "356307042441013", UserID: 3, Name: "Van 1"}
	vehicles := &fakeVehicleStore{vehicles: map[string]*domain.Vehicle{v.IMEI: v}}
	p, trips, live, pub := newProcessor(vehicles)

	f := &domain.Frame{
		IMEI: v.IMEI,
		Lat:  52.2297, Lon: 21.0122, SpeedGPS: 42,
		Ignition:     boolPtr(true),
		GPSTimestamp: time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC).UnixMilli(),
		Extended:     &domain.ExtendedData{VehicleBattery: flex(80)},
	}
	p.HandleFrame(context.Background(), f)

	if v.Status != domain.StatusMoving {
		t.Errorf("expected moving, got %s", v.Status)
	}
	if v.LastPosition.Lat != 52.2297 || v.LastPosition.Speed != 42 {
		t.Errorf("unexpected last position %+v", v.LastPosition)
	}
	if len(trips.created) != 1 {
		t.Errorf("expected trip started, got %d", len(trips.created))
	}
	if len(vehicles.saved) != 1 {
		t.Fatalf("expected vehicle persisted once, got %d", len(vehicles.saved))
	}
	if len(live.updated) != 1 {
		t.Errorf("expected live state update, got %d", len(live.updated))
	}
	if len(pub.positions) != 1 {
		t.Fatalf("expected position published, got %d", len(pub.positions))
	}
	ev := pub.positions[0]
	if ev.VehicleID != 7 || ev.Status != "moving" || ev.Speed != 42 {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestHandleFrame_UnknownIMEIDropped(t *testing.T) {
	vehicles := &fakeVehicleStore{vehicles: map[string]*domain.Vehicle{}}
	p, trips, _, pub := newProcessor(vehicles)

	p.HandleFrame(context.Background(), &domain.Frame{IMEI: "000000000000000", Lat: 52, Lon: 21})

	if len(vehicles.saved) != 0 || len(trips.created) != 0 || len(pub.positions) != 0 {
		t.Fatal("unknown IMEI must drop the frame before any stage")
	}
}

func TestHandleFrame_MissingIMEIDropped(t *testing.T) {
	vehicles := &fakeVehicleStore{vehicles: map[string]*domain.Vehicle{}}
	p, _, _, pub := newProcessor(vehicles)

	p.HandleFrame(context.Background(), &domain.Frame{Lat: 52, Lon: 21})

	if len(pub.positions) != 0 {
		t.Fatal("frame without IMEI must be dropped")
	}
}

func TestHandleFrame_InvalidCoordsDropped(t *testing.T) {
	v := &domain.Vehicle{ID: 7, IMEI: "356307042441013", Status: domain.StatusMoving}
	vehicles := &fakeVehicleStore{vehicles: map[string]*domain.Vehicle{v.IMEI: v}}
	p, trips, _, pub := newProcessor(vehicles)

	p.HandleFrame(context.Background(), &domain.Frame{IMEI: v.IMEI, Lat: 0, Lon: 0, SpeedGPS: 50})

	if v.Status != domain.StatusMoving {
		t.Errorf("dropped frame must not mutate state, got %s", v.Status)
	}
	if len(vehicles.saved) != 0 || len(trips.created) != 0 || len(pub.positions) != 0 {
		t.Fatal("invalid coordinates must drop the frame before any stage")
	}
}

func TestHandleFrame_SaveFailureSkipsFanout(t *testing.T) {
	v := &domain.Vehicle{ID: 7, IMEI: "356307042441013"}
	vehicles := &fakeVehicleStore{
		vehicles: map[string]*domain.Vehicle{v.IMEI: v},
		saveFn: func(_ context.Context, _ *domain.Vehicle) error {
			return errors.New("connection refused")
		},
	}
	p, _, live, pub := newProcessor(vehicles)

	p.HandleFrame(context.Background(), &domain.Frame{
		IMEI: v.IMEI, Lat: 52, Lon: 21,
		Extended: &domain.ExtendedData{VehicleBattery: flex(80)},
	})

	if len(live.updated) != 0 || len(pub.positions) != 0 {
		t.Fatal("failed baseline save must not fan out")
	}
}

func TestLockVehicle_SerializesPerVehicle(t *testing.T) {
	vehicles := &fakeVehicleStore{vehicles: map[string]*domain.Vehicle{}}
	p, _, _, _ := newProcessor(vehicles)

	var mu sync.Mutex
	counter := 0
	max := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := p.LockVehicle(42)
			defer unlock()

			mu.Lock()
			counter++
			if counter > max {
				max = counter
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			counter--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if max != 1 {
		t.Fatalf("expected exclusive access per vehicle id, saw %d concurrent holders", max)
	}
}
