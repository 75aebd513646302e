package http

import (
	"encoding/json"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports dependency health for /healthz.
type HealthHandler struct {
	pool  *pgxpool.Pool
	redis *redis.Client
}

func NewHealthHandler(pool *pgxpool.Pool, redis *redis.Client) *HealthHandler {
	return &HealthHandler{pool: pool, redis: redis}
}

func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := http.StatusOK
	deps := map[string]string{}

	if err := h.pool.Ping(ctx); err != nil {
		deps["postgres"] = "down: " + err.Error()
		status = http.StatusServiceUnavailable
	} else {
		deps["postgres"] = "up"
	}

	if err := h.redis.Ping(ctx).Err(); err != nil {
		deps["redis"] = "down: " + err.Error()
		status = http.StatusServiceUnavailable
	} else {
		deps["redis"] = "up"
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "unhealthy"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"status":       overall,
		"dependencies": deps,
	})
}
