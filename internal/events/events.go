// Package events publishes booking-changed notifications for downstream
// consumers (reminders, analytics). Delivery is fire-and-forget: the engine
// never awaits or depends on it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lingua-schedule/internal/timecodec"
)

type EventType string

const (
	BookingCreated     EventType = "booking.created"
	BookingRescheduled EventType = "booking.rescheduled"
	BookingCancelled   EventType = "booking.cancelled"
	BookingCompleted   EventType = "booking.completed"
	BookingNoShow      EventType = "booking.no_show"
)

type BookingEvent struct {
	Type       EventType          `json:"type"`
	BookingID  string             `json:"booking_id"`
	TeacherID  string             `json:"teacher_id"`
	StudentID  string             `json:"student_id"`
	Day        timecodec.Day      `json:"day"`
	TimeSlot   string             `json:"time_slot"`
	Timezone   string             `json:"timezone"`
	OccurredAt time.Time          `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event BookingEvent) error
}

const channel = "scheduling.bookings"

type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(redisAddr string) (*RedisPublisher, error) {
	const op = "events.NewRedisPublisher"

	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisPublisher{client: client}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, event BookingEvent) error {
	const op = "events.RedisPublisher.Publish"

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// NopPublisher drops every event. Used in tests and when no broker is
// configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, BookingEvent) error {
	return nil
}
