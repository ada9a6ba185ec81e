package domain

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Event Interface and Base Event
// -----------------------------------------------------------------------------

// Event represents a domain event
type Event interface {
	// EventID returns the unique identifier for this event
	EventID() uuid.UUID
	// EventType returns the type name of this event
	EventType() string
	// OccurredAt returns when this event occurred
	OccurredAt() time.Time
	// AggregateID returns the ID of the aggregate that produced this event
	AggregateID() string
}

// Event type names
const (
	EventSolveRecorded = "solve.recorded"
	EventHintUnlocked  = "hint.unlocked"
	EventModelTrained  = "model.trained"
)

// BaseEvent provides common event fields
type BaseEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Aggregate string    `json:"aggregate_id"`
}

// NewBaseEvent creates a new BaseEvent
func NewBaseEvent(eventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: at,
		Aggregate: aggregateID,
	}
}

func (e BaseEvent) EventID() uuid.UUID    { return e.ID }
func (e BaseEvent) EventType() string     { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) AggregateID() string   { return e.Aggregate }

// -----------------------------------------------------------------------------
// Event Handler and Dispatcher
// -----------------------------------------------------------------------------

// EventHandler processes domain events
type EventHandler func(ctx context.Context, event Event) error

// EventDispatcher manages event subscriptions and publishing
type EventDispatcher struct {
	mu          sync.RWMutex
	handlers    map[string][]EventHandler
	allHandlers []EventHandler
}

// NewEventDispatcher creates a new event dispatcher
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		handlers: make(map[string][]EventHandler),
	}
}

// Subscribe registers a handler for a specific event type
func (d *EventDispatcher) Subscribe(eventType string, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// SubscribeAll registers a handler for all event types
func (d *EventDispatcher) SubscribeAll(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.allHandlers = append(d.allHandlers, handler)
}

// Publish dispatches an event to every matching handler. All handlers run
// even if some fail; their errors are joined.
func (d *EventDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var errs []error
	for _, h := range d.handlers[event.EventType()] {
		if err := h(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	for _, h := range d.allHandlers {
		if err := h(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// -----------------------------------------------------------------------------
// Progression Events
// -----------------------------------------------------------------------------

// SolveRecordedEvent is published after a first-time solve commits
type SolveRecordedEvent struct {
	BaseEvent
	PlayerID      string `json:"player_id"`
	ChallengeID   string `json:"challenge_id"`
	PointsAwarded int    `json:"points_awarded"`
	TotalPoints   int    `json:"total_points"`
	Rank          Rank   `json:"rank"`
}

// NewSolveRecordedEvent creates a new solve recorded event
func NewSolveRecordedEvent(p *PlayerRecord, challengeID string, awarded int, at time.Time) SolveRecordedEvent {
	return SolveRecordedEvent{
		BaseEvent:     NewBaseEvent(EventSolveRecorded, p.ID, at),
		PlayerID:      p.ID,
		ChallengeID:   challengeID,
		PointsAwarded: awarded,
		TotalPoints:   p.TotalPoints,
		Rank:          p.Rank,
	}
}

// HintUnlockedEvent is published after a hint level is recorded
type HintUnlockedEvent struct {
	BaseEvent
	PlayerID    string `json:"player_id"`
	ChallengeID string `json:"challenge_id"`
	Level       int    `json:"level"`
}

// NewHintUnlockedEvent creates a new hint unlocked event
func NewHintUnlockedEvent(u *HintUnlock) HintUnlockedEvent {
	return HintUnlockedEvent{
		BaseEvent:   NewBaseEvent(EventHintUnlocked, u.PlayerID, u.UnlockedAt),
		PlayerID:    u.PlayerID,
		ChallengeID: u.ChallengeID,
		Level:       u.Level,
	}
}

// ModelTrainedEvent is published after a new model artifact is installed
type ModelTrainedEvent struct {
	BaseEvent
	Version string `json:"version"`
	Samples int    `json:"samples"`
}

// NewModelTrainedEvent creates a new model trained event
func NewModelTrainedEvent(version string, samples int, at time.Time) ModelTrainedEvent {
	return ModelTrainedEvent{
		BaseEvent: NewBaseEvent(EventModelTrained, version, at),
		Version:   version,
		Samples:   samples,
	}
}
