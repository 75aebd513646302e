package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using system environment variables")
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		dbGetEnv("DB_USER", "fleet_user"),
		dbGetEnv("DB_PASSWORD", "fleet_password"),
		dbGetEnv("DB_HOST", "localhost"),
		dbGetEnv("DB_PORT", "5432"),
		dbGetEnv("DB_NAME", "fleet_track"),
	)

	ctx := context.Background()

	fmt.Println("Connecting to PostgreSQL...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure PostgreSQL is running:\n  docker-compose up -d postgres", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	// Run all steps in order
	step1_users_table(ctx, conn)
	step2_vehicles_table(ctx, conn)
	step3_trips_tables(ctx, conn)
	step4_geofences_tables(ctx, conn)
	step5_alerts_tables(ctx, conn)
	step6_indexes(ctx, conn)
	step7_verify(ctx, conn)

	fmt.Println("\n✅ Database initialised successfully")
}

// ─────────────────────────────────────────────────────────────
// Step 1 — users table
// ─────────────────────────────────────────────────────────────
func step1_users_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 1: users table ─────────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS users (
			id            BIGSERIAL   PRIMARY KEY,
			email         TEXT        NOT NULL UNIQUE,
			name          TEXT        NOT NULL DEFAULT '',

			-- user | admin | superadmin
			role          TEXT        NOT NULL DEFAULT 'user',

			-- Unread alert badge, bumped on every alert delivered to
			-- this user and cleared by the client application
			alert_counter INTEGER     NOT NULL DEFAULT 0,

			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),

			CONSTRAINT chk_role CHECK (
				role IN ('user', 'admin', 'superadmin')
			)
		);
	`, "users table created")
}

// ─────────────────────────────────────────────────────────────
// Step 2 — vehicles table
// ─────────────────────────────────────────────────────────────
func step2_vehicles_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 2: vehicles table ──────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS vehicles (
			id              BIGSERIAL        PRIMARY KEY,

			-- Tracker identity — every inbound frame carries the IMEI,
			-- frames for unknown IMEIs are dropped
			imei            TEXT             NOT NULL UNIQUE,

			name            TEXT             NOT NULL DEFAULT '',
			license_plate   TEXT             NOT NULL DEFAULT '',
			user_id         BIGINT           NOT NULL REFERENCES users(id),

			-- Must exactly match domain.VehicleStatus constants:
			-- moving | stopped | inactive | immobilized
			status          TEXT             NOT NULL DEFAULT 'inactive',

			-- Last known position, denormalised for cheap reads
			last_lat        DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_lon        DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_speed      DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_heading    DOUBLE PRECISION,
			last_ignition   BOOLEAN          NOT NULL DEFAULT false,
			last_timestamp  TIMESTAMPTZ      NOT NULL DEFAULT NOW(),

			-- Last extended telemetry payload (battery, odometer, axes)
			last_extended   JSONB            NOT NULL DEFAULT '{}',

			-- Per-geofence containment state, keyed by geofence id
			geofence_states JSONB            NOT NULL DEFAULT '{}',

			-- Alert hysteresis latches
			speed_alerted   BOOLEAN          NOT NULL DEFAULT false,
			battery_alerted BOOLEAN          NOT NULL DEFAULT false,

			created_at      TIMESTAMPTZ      NOT NULL DEFAULT NOW(),

			CONSTRAINT chk_vehicle_status CHECK (
				status IN ('moving', 'stopped', 'inactive', 'immobilized')
			)
		);
	`, "vehicles table created")
}

// ─────────────────────────────────────────────────────────────
// Step 3 — trips and positions tables
// ─────────────────────────────────────────────────────────────
func step3_trips_tables(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 3: trips + positions tables ────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS trips (
			id             BIGSERIAL        PRIMARY KEY,
			vehicle_id     BIGINT           NOT NULL REFERENCES vehicles(id),
			user_id        BIGINT           NOT NULL,

			-- active | completed — at most one active trip per vehicle
			status         TEXT             NOT NULL DEFAULT 'active',

			start_time     TIMESTAMPTZ      NOT NULL,
			end_time       TIMESTAMPTZ,

			start_lat      DOUBLE PRECISION NOT NULL DEFAULT 0,
			start_lon      DOUBLE PRECISION NOT NULL DEFAULT 0,
			start_speed    DOUBLE PRECISION NOT NULL DEFAULT 0,
			end_lat        DOUBLE PRECISION NOT NULL DEFAULT 0,
			end_lon        DOUBLE PRECISION NOT NULL DEFAULT 0,
			end_speed      DOUBLE PRECISION NOT NULL DEFAULT 0,

			-- Summary — distance_km is the haversine sum over samples,
			-- odometer_km comes from the tracker when it reports one
			distance_km    DOUBLE PRECISION NOT NULL DEFAULT 0,
			odometer_km    DOUBLE PRECISION NOT NULL DEFAULT 0,
			duration_min   DOUBLE PRECISION NOT NULL DEFAULT 0,
			avg_speed_kmh  DOUBLE PRECISION NOT NULL DEFAULT 0,
			max_speed_kmh  DOUBLE PRECISION NOT NULL DEFAULT 0,
			position_count INTEGER          NOT NULL DEFAULT 0,

			updated_at     TIMESTAMPTZ      NOT NULL DEFAULT NOW(),

			CONSTRAINT chk_trip_status CHECK (
				status IN ('active', 'completed')
			)
		);
	`, "trips table created")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS positions (
			id          BIGSERIAL        PRIMARY KEY,
			vehicle_id  BIGINT           NOT NULL REFERENCES vehicles(id),
			trip_id     BIGINT           NOT NULL REFERENCES trips(id),

			lat         DOUBLE PRECISION NOT NULL,
			lon         DOUBLE PRECISION NOT NULL,
			speed       DOUBLE PRECISION NOT NULL DEFAULT 0,
			ignition    BOOLEAN          NOT NULL DEFAULT false,
			battery     DOUBLE PRECISION NOT NULL DEFAULT 0,

			recorded_at TIMESTAMPTZ      NOT NULL
		);
	`, "positions table created")
}

// ─────────────────────────────────────────────────────────────
// Step 4 — geofences tables
// ─────────────────────────────────────────────────────────────
func step4_geofences_tables(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 4: geofences tables ────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS geofences (
			id              BIGSERIAL        PRIMARY KEY,
			name            TEXT             NOT NULL,

			-- circle | polygon
			type            TEXT             NOT NULL,

			-- Circle definition — ignored for polygons
			center_lat      DOUBLE PRECISION NOT NULL DEFAULT 0,
			center_lon      DOUBLE PRECISION NOT NULL DEFAULT 0,
			radius_m        DOUBLE PRECISION NOT NULL DEFAULT 0,

			-- Polygon ring as [{"lat":..,"lon":..}, ...] — ignored for circles
			vertices        JSONB            NOT NULL DEFAULT '[]',

			active          BOOLEAN          NOT NULL DEFAULT true,
			notify_on_entry BOOLEAN          NOT NULL DEFAULT true,
			notify_on_exit  BOOLEAN          NOT NULL DEFAULT true,

			created_at      TIMESTAMPTZ      NOT NULL DEFAULT NOW(),

			CONSTRAINT chk_geofence_type CHECK (
				type IN ('circle', 'polygon')
			)
		);
	`, "geofences table created")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS geofence_vehicles (
			geofence_id BIGINT NOT NULL REFERENCES geofences(id) ON DELETE CASCADE,
			vehicle_id  BIGINT NOT NULL REFERENCES vehicles(id)  ON DELETE CASCADE,
			PRIMARY KEY (geofence_id, vehicle_id)
		);
	`, "geofence_vehicles table created")
}

// ─────────────────────────────────────────────────────────────
// Step 5 — alert_rules and alerts tables
// ─────────────────────────────────────────────────────────────
func step5_alerts_tables(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 5: alert_rules + alerts tables ─────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS alert_rules (
			id        BIGSERIAL        PRIMARY KEY,
			name      TEXT             NOT NULL,

			-- Must exactly match domain.AlertType constants
			type      TEXT             NOT NULL,

			-- km/h for SPEED_ALERT, percent for BATTERY_ALERT
			threshold DOUBLE PRECISION NOT NULL DEFAULT 0,
			enabled   BOOLEAN          NOT NULL DEFAULT true,

			CONSTRAINT chk_rule_type CHECK (
				type IN ('SPEED_ALERT', 'BATTERY_ALERT',
				         'GEOFENCE_ENTRY', 'GEOFENCE_EXIT')
			)
		);
	`, "alert_rules table created")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS alerts (
			id          BIGSERIAL        PRIMARY KEY,
			vehicle_id  BIGINT           NOT NULL REFERENCES vehicles(id),
			type        TEXT             NOT NULL,
			message     TEXT             NOT NULL DEFAULT '',

			-- 0 for non-geofence alerts
			geofence_id BIGINT           NOT NULL DEFAULT 0,

			-- Snapshot of the values that triggered the alert
			data        JSONB            NOT NULL DEFAULT '{}',

			-- Reverse-geocoded place name, or a placeholder
			location    TEXT             NOT NULL DEFAULT '',

			resolved    BOOLEAN          NOT NULL DEFAULT false,
			resolved_at TIMESTAMPTZ,
			timestamp   TIMESTAMPTZ      NOT NULL,

			CONSTRAINT chk_alert_type CHECK (
				type IN ('SPEED_ALERT', 'BATTERY_ALERT',
				         'GEOFENCE_ENTRY', 'GEOFENCE_EXIT')
			)
		);
	`, "alerts table created")

	// Default rules — ON CONFLICT keeps re-runs idempotent
	execOrFatal(ctx, conn, `
		INSERT INTO alert_rules (id, name, type, threshold, enabled)
		VALUES
			(1, 'Speed limit',  'SPEED_ALERT',   90, true),
			(2, 'Low battery',  'BATTERY_ALERT', 20, true)
		ON CONFLICT (id) DO NOTHING;
	`, "default alert rules seeded")
}

// ─────────────────────────────────────────────────────────────
// Step 6 — Indexes
// ─────────────────────────────────────────────────────────────
func step6_indexes(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 6: Indexes ─────────────────────────────")

	indexes := []struct {
		name string
		sql  string
		why  string
	}{
		{
			name: "idx_vehicles_imei",
			sql: `CREATE INDEX IF NOT EXISTS idx_vehicles_imei
				  ON vehicles (imei);`,
			why: "query: vehicle lookup per inbound frame",
		},
		{
			name: "idx_vehicles_stale",
			sql: `CREATE INDEX IF NOT EXISTS idx_vehicles_stale
				  ON vehicles (last_timestamp)
				  WHERE status NOT IN ('inactive', 'immobilized');`,
			why: "query: stale-vehicle sweep (partial index)",
		},
		{
			name: "idx_trips_active_vehicle",
			sql: `CREATE UNIQUE INDEX IF NOT EXISTS idx_trips_active_vehicle
				  ON trips (vehicle_id)
				  WHERE status = 'active';`,
			why: "invariant: one active trip per vehicle",
		},
		{
			name: "idx_trips_idle",
			sql: `CREATE INDEX IF NOT EXISTS idx_trips_idle
				  ON trips (updated_at)
				  WHERE status = 'active';`,
			why: "query: idle-trip sweep (partial index)",
		},
		{
			name: "idx_positions_trip_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_positions_trip_time
				  ON positions (trip_id, recorded_at DESC);`,
			why: "query: last position of a trip",
		},
		{
			name: "idx_alerts_open",
			sql: `CREATE INDEX IF NOT EXISTS idx_alerts_open
				  ON alerts (vehicle_id, type, timestamp DESC)
				  WHERE resolved = false;`,
			why: "query: open-alert dedup check (partial index)",
		},
	}

	for _, idx := range indexes {
		execOrFatal(ctx, conn, idx.sql,
			fmt.Sprintf("%-40s ← %s", idx.name, idx.why),
		)
	}
}

// ─────────────────────────────────────────────────────────────
// Step 7 — Verify everything was created
// ─────────────────────────────────────────────────────────────
func step7_verify(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 7: Verification ────────────────────────")

	tables := []string{
		"users", "vehicles", "trips", "positions",
		"geofences", "geofence_vehicles", "alert_rules", "alerts",
	}
	for _, table := range tables {
		var exists bool
		err := conn.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_name = $1
			)
		`, table).Scan(&exists)
		if err != nil || !exists {
			log.Fatalf("Table %s was not created: %v", table, err)
		}
		fmt.Printf("  ✓ table: %s\n", table)
	}

	var indexCount int
	err := conn.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM pg_indexes
		WHERE tablename = ANY($1)
		AND indexname LIKE 'idx_%'
	`, tables).Scan(&indexCount)
	if err != nil {
		log.Fatalf("Index check failed: %v", err)
	}
	fmt.Printf("  ✓ indexes created: %d\n", indexCount)
}

// ─────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────

// execOrFatal runs a SQL statement and prints result or exits on error
func execOrFatal(ctx context.Context, conn *pgx.Conn, sql, label string) {
	_, err := conn.Exec(ctx, sql)
	if err != nil {
		log.Fatalf("FAILED — %s\nError: %v\nSQL: %s", label, err, sql)
	}
	fmt.Printf("  ✓ %s\n", label)
}

func dbGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
