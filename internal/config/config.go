package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// HTTP
	HTTPPort string

	// Upstream telemetry stream
	TCPAddr        string
	TCPHandshake   string
	ReconnectDelay time.Duration
	MaxReconnects  int

	// Postgres
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBMaxConns int32

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Trip tracking
	PositionInterval time.Duration
	TripIdleAfter    time.Duration
	VehicleStale     time.Duration
	SweepInterval    time.Duration

	// Reverse geocoding
	GeocodeURL     string
	GeocodeTimeout time.Duration
}

func Load() *Config {
	return &Config{
		HTTPPort:         getEnv("HTTP_PORT", "8002"),
		TCPAddr:          getEnv("TCP_ADDR", "pogog.ovh:5050"),
		TCPHandshake:     getEnv("TCP_HANDSHAKE", "Hello"),
		ReconnectDelay:   time.Duration(getEnvInt("TCP_RECONNECT_DELAY_MS", 5000)) * time.Millisecond,
		MaxReconnects:    getEnvInt("TCP_MAX_RECONNECTS", 10),
		DBHost:           getEnv("DB_HOST", "localhost"),
		DBPort:           getEnv("DB_PORT", "5432"),
		DBUser:           getEnv("DB_USER", "fleet_user"),
		DBPassword:       getEnv("DB_PASSWORD", "fleet_password"),
		DBName:           getEnv("DB_NAME", "fleet_track"),
		DBMaxConns:       int32(getEnvInt("DB_MAX_CONNS", 15)),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		PositionInterval: time.Duration(getEnvInt("POSITION_INTERVAL_SEC", 30)) * time.Second,
		TripIdleAfter:    time.Duration(getEnvInt("TRIP_IDLE_MINUTES", 5)) * time.Minute,
		VehicleStale:     time.Duration(getEnvInt("VEHICLE_STALE_MINUTES", 15)) * time.Minute,
		SweepInterval:    time.Duration(getEnvInt("SWEEP_INTERVAL_SEC", 60)) * time.Second,
		GeocodeURL:       getEnv("GEOCODE_URL", "https://nominatim.openstreetmap.org"),
		GeocodeTimeout:   time.Duration(getEnvInt("GEOCODE_TIMEOUT_MS", 3000)) * time.Millisecond,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
