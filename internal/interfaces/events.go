package interfaces

import (
	"context"
	"time"
)

// EventType identifies a category of application event.
type EventType string

const (
	EventJobQueued     EventType = "job.queued"
	EventJobStarted    EventType = "job.started"
	EventJobProgress   EventType = "job.progress"
	EventJobCompleted  EventType = "job.completed"
	EventJobFailed     EventType = "job.failed"
	EventJobCancelled  EventType = "job.cancelled"
	EventTokenRefresh  EventType = "token.refreshed"
	EventTokenCleanup  EventType = "token.cleanup"
	EventCacheEviction EventType = "cache.eviction"
)

// Event is a single published application event.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// EventHandler processes a published event.
type EventHandler func(ctx context.Context, event Event) error

// EventService is an in-process pub/sub bus for application events.
type EventService interface {
	// Subscribe registers a handler and returns its subscription id.
	Subscribe(eventType EventType, handler EventHandler) (int, error)

	// Unsubscribe removes a previously registered handler by id.
	Unsubscribe(eventType EventType, id int) error

	// Publish delivers the event to subscribers asynchronously.
	Publish(ctx context.Context, event Event) error

	// PublishSync delivers the event and waits for all handlers.
	PublishSync(ctx context.Context, event Event) error

	Close() error
}
