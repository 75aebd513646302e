// Package fanout delivers derived events to subscribers: every event goes to
// the owning user's private channel and to the shared admins channel.
// Publishing is fire-and-forget; callers log and continue on error.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const AdminChannel = "admins"

// UserChannel names the private channel for a user id.
func UserChannel(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

// PositionEvent is published on every processed frame with valid coordinates.
type PositionEvent struct {
	VehicleID int64     `json:"vehicleId"`
	Name      string    `json:"vehicleName"`
	Status    string    `json:"status"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Speed     float64   `json:"speed"`
	Heading   *float64  `json:"heading,omitempty"`
	Ignition  bool      `json:"ignition"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertEvent is published when the evaluator creates an alert.
type AlertEvent struct {
	VehicleID    int64          `json:"vehicleId"`
	VehicleName  string         `json:"vehicleName"`
	VehiclePlate string         `json:"vehiclePlate"`
	Type         string         `json:"type"`
	Message      string         `json:"message"`
	Data         map[string]any `json:"data,omitempty"`
	Location     string         `json:"location"`
	Timestamp    time.Time      `json:"timestamp"`
}

type Publisher interface {
	PublishPosition(ctx context.Context, userID int64, ev PositionEvent) error
	PublishAlert(ctx context.Context, userID int64, ev AlertEvent) error
}

var _ Publisher = (*RedisPublisher)(nil)

// RedisPublisher fans events out over Redis pub/sub.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) PublishPosition(ctx context.Context, userID int64, ev PositionEvent) error {
	return p.publish(ctx, userID, "position", ev)
}

func (p *RedisPublisher) PublishAlert(ctx context.Context, userID int64, ev AlertEvent) error {
	return p.publish(ctx, userID, "alert", ev)
}

func (p *RedisPublisher) publish(ctx context.Context, userID int64, kind string, ev any) error {
	payload, err := json.Marshal(map[string]any{
		"event": kind,
		"data":  ev,
	})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", kind, err)
	}

	pipe := p.client.Pipeline()
	pipe.Publish(ctx, UserChannel(userID), payload)
	pipe.Publish(ctx, AdminChannel, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish %s event: %w", kind, err)
	}
	return nil
}

// LocationOrPlaceholder fills the wire placeholder when geocoding failed.
func LocationOrPlaceholder(loc string) string {
	if loc == "" {
		return "Unknown location"
	}
	return loc
}
