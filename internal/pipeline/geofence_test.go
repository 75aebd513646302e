package pipeline

import (
	"context"
	"testing"

	"fleet-track/internal/domain"
)

func circleFence(id int64, name string, lat, lon, radius float64) *domain.Geofence {
	return &domain.Geofence{
		ID: id, Name: name, Type: domain.GeofenceCircle,
		CenterLat: lat, CenterLon: lon, RadiusMeters: radius,
		Active: true, NotifyOnEntry: true, NotifyOnExit: true,
	}
}

func TestEvaluate_EntryFiresOnce(t *testing.T) {
	engine := NewGeofenceEngine(&fakeGeofenceStore{
		fences: []*domain.Geofence{circleFence(1, "Depot", 52.2297, 21.0122, 200)},
	})
	v := &domain.Vehicle{ID: 7}
	ctx := context.Background()

	// first frame inside the fence
	trs, err := engine.Evaluate(ctx, v, 52.2297, 21.0122)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trs) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(trs))
	}
	if trs[0].Event != domain.GeofenceEntered || trs[0].Geofence.ID != 1 {
		t.Errorf("unexpected transition %+v", trs[0])
	}

	// still inside, nothing new
	trs, err = engine.Evaluate(ctx, v, 52.2298, 21.0123)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trs) != 0 {
		t.Fatalf("sustained containment must not re-emit, got %d", len(trs))
	}
}

func TestEvaluate_ExitAfterEntry(t *testing.T) {
	engine := NewGeofenceEngine(&fakeGeofenceStore{
		fences: []*domain.Geofence{circleFence(1, "Depot", 52.2297, 21.0122, 200)},
	})
	v := &domain.Vehicle{ID: 7}
	ctx := context.Background()

	if _, err := engine.Evaluate(ctx, v, 52.2297, 21.0122); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// well outside the 200 m radius
	trs, err := engine.Evaluate(ctx, v, 52.3297, 21.1122)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trs) != 1 {
		t.Fatalf("expected exit transition, got %d", len(trs))
	}
	if trs[0].Event != domain.GeofenceExited {
		t.Errorf("expected exit, got %s", trs[0].Event)
	}

	// re-entry fires again after a full exit
	trs, err = engine.Evaluate(ctx, v, 52.2297, 21.0122)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trs) != 1 || trs[0].Event != domain.GeofenceEntered {
		t.Fatalf("expected re-entry transition, got %+v", trs)
	}
}

func TestEvaluate_NotifyTogglesSuppressTransitions(t *testing.T) {
	fence := circleFence(1, "Quiet zone", 52.2297, 21.0122, 200)
	fence.NotifyOnEntry = false
	engine := NewGeofenceEngine(&fakeGeofenceStore{fences: []*domain.Geofence{fence}})
	v := &domain.Vehicle{ID: 7}
	ctx := context.Background()

	trs, err := engine.Evaluate(ctx, v, 52.2297, 21.0122)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trs) != 0 {
		t.Fatalf("entry with notify disabled must not emit, got %d", len(trs))
	}
	// containment state still tracked so the exit is detected
	if !v.GeofenceState(1).Inside {
		t.Error("expected inside state to be tracked")
	}

	trs, err = engine.Evaluate(ctx, v, 52.3297, 21.1122)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trs) != 1 || trs[0].Event != domain.GeofenceExited {
		t.Fatalf("expected exit transition, got %+v", trs)
	}
}

func TestContains_Polygon(t *testing.T) {
	fence := &domain.Geofence{
		ID: 2, Name: "Yard", Type: domain.GeofencePolygon,
		Vertices: []domain.LatLon{
			{Lat: 52.0, Lon: 21.0},
			{Lat: 52.0, Lon: 21.2},
			{Lat: 52.2, Lon: 21.2},
			{Lat: 52.2, Lon: 21.0},
		},
		Active: true, NotifyOnEntry: true, NotifyOnExit: true,
	}

	if !Contains(fence, 52.1, 21.1) {
		t.Error("expected centroid inside polygon")
	}
	if Contains(fence, 52.5, 21.5) {
		t.Error("expected far point outside polygon")
	}
}

func TestEvaluate_MultipleFences(t *testing.T) {
	engine := NewGeofenceEngine(&fakeGeofenceStore{
		fences: []*domain.Geofence{
			circleFence(1, "Depot", 52.2297, 21.0122, 500),
			circleFence(2, "Overlap", 52.2297, 21.0122, 1000),
			circleFence(3, "Far", 50.0, 19.0, 100),
		},
	})
	v := &domain.Vehicle{ID: 7}

	trs, err := engine.Evaluate(context.Background(), v, 52.2297, 21.0122)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trs) != 2 {
		t.Fatalf("expected 2 entries for overlapping fences, got %d", len(trs))
	}
}
