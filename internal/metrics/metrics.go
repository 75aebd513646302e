package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	FramesReceived      atomic.Int64
	FramesDropped       atomic.Int64
	ParseFailures       atomic.Int64
	Reconnects          atomic.Int64
	TripsStarted        atomic.Int64
	TripsClosed         atomic.Int64
	AlertsCreated       atomic.Int64
	GeofenceTransitions atomic.Int64
	PublishFailures     atomic.Int64
	DBWriteFailures     atomic.Int64
)

func HandleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "tracker_frames_received_total %d\n", FramesReceived.Load())
	fmt.Fprintf(w, "tracker_frames_dropped_total %d\n", FramesDropped.Load())
	fmt.Fprintf(w, "tracker_parse_failures_total %d\n", ParseFailures.Load())
	fmt.Fprintf(w, "tracker_reconnects_total %d\n", Reconnects.Load())
	fmt.Fprintf(w, "tracker_trips_started_total %d\n", TripsStarted.Load())
	fmt.Fprintf(w, "tracker_trips_closed_total %d\n", TripsClosed.Load())
	fmt.Fprintf(w, "tracker_alerts_created_total %d\n", AlertsCreated.Load())
	fmt.Fprintf(w, "tracker_geofence_transitions_total %d\n", GeofenceTransitions.Load())
	fmt.Fprintf(w, "tracker_publish_failures_total %d\n", PublishFailures.Load())
	fmt.Fprintf(w, "tracker_db_write_failures_total %d\n", DBWriteFailures.Load())
}
