package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fleet-track/internal/config"
	"fleet-track/internal/domain"
)

// NewRedisClient connects and pings a Redis client.
func NewRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// LiveStateStore mirrors each vehicle's latest reduced state into Redis so
// dashboards read current status without touching Postgres.
type LiveStateStore struct {
	client *redis.Client
}

func NewLiveStateStore(client *redis.Client) *LiveStateStore {
	return &LiveStateStore{client: client}
}

func (s *LiveStateStore) Update(ctx context.Context, v *domain.Vehicle) error {
	stateData := map[string]interface{}{
		"vehicle_id": v.ID,
		"imei":       v.IMEI,
		"status":     string(v.Status),
		"lat":        v.LastPosition.Lat,
		"lon":        v.LastPosition.Lon,
		"speed":      v.LastPosition.Speed,
		"ignition":   v.LastPosition.Ignition,
		"timestamp":  v.LastPosition.Timestamp.Unix(),
	}
	if v.LastPosition.Heading != nil {
		stateData["heading"] = *v.LastPosition.Heading
	}

	stateKey := fmt.Sprintf("vehicle:%d:state", v.ID)

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, stateKey, stateData)
	pipe.Expire(ctx, stateKey, 30*time.Minute)
	if v.LastPosition.Valid() {
		pipe.GeoAdd(ctx, "vehicles:geo", &redis.GeoLocation{
			Name:      fmt.Sprintf("%d", v.ID),
			Longitude: v.LastPosition.Lon,
			Latitude:  v.LastPosition.Lat,
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}
