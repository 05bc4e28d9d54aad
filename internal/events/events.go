package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"medbook/internal/models"
)

const (
	EventOrderCreated   = "order_created"
	EventOrderUpdated   = "order_updated"
	EventOrderDeleted   = "order_deleted"
	EventOrderApproved  = "order_approved"
	EventOrderDeclined  = "order_declined"
	EventOrderCancelled = "order_cancelled"
	EventOrderCompleted = "order_completed"
	EventOrderNoShow    = "order_no_show"

	// AllEvents subscribes a handler to every event type.
	AllEvents = "*"
)

var statusEvents = map[models.OrderStatus]string{
	models.OrderApproved:  EventOrderApproved,
	models.OrderDeclined:  EventOrderDeclined,
	models.OrderCancelled: EventOrderCancelled,
	models.OrderCompleted: EventOrderCompleted,
	models.OrderNoShow:    EventOrderNoShow,
}

// ForStatus returns the event type emitted when an order enters status.
func ForStatus(status models.OrderStatus) string {
	if t, ok := statusEvents[status]; ok {
		return t
	}
	return EventOrderUpdated
}

// OrderEventPayload is the order snapshot sent to event consumers.
type OrderEventPayload struct {
	OrderID         uuid.UUID          `json:"order_id"`
	ClientID        uuid.UUID          `json:"client_id"`
	ProfessionalID  uuid.UUID          `json:"professional_id"`
	PreviousStatus  models.OrderStatus `json:"previous_status,omitempty"`
	Status          models.OrderStatus `json:"status"`
	ScheduledAt     time.Time          `json:"scheduled_at"`
	DurationMinutes int                `json:"duration_minutes"`
	Reason          string             `json:"reason,omitempty"`
	ChangedByID     *uuid.UUID         `json:"changed_by_id,omitempty"`
}

// NewOrderPayload builds a payload from the order after the change.
func NewOrderPayload(order *models.Order, previous models.OrderStatus, reason string, actorID *uuid.UUID) OrderEventPayload {
	return OrderEventPayload{
		OrderID:         order.ID,
		ClientID:        order.ClientID,
		ProfessionalID:  order.ProfessionalID,
		PreviousStatus:  previous,
		Status:          order.Status,
		ScheduledAt:     order.ScheduledAt,
		DurationMinutes: order.DurationMinutes,
		Reason:          reason,
		ChangedByID:     actorID,
	}
}

// Event represents a lightweight domain event.
type Event struct {
	ID        uuid.UUID
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      *zerolog.Logger
}

// NewEventBus constructs an empty bus. Handler errors are logged to logger when set.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: logger}
}

// Subscribe registers a handler for a given event type, or AllEvents.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type, then wildcard subscribers.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	handlers = append(handlers, b.subscribers[AllEvents]...)
	b.mu.RUnlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && b.logger != nil {
			b.logger.Warn().Err(err).Str("event_type", event.Type).Str("event_id", event.ID.String()).Msg("Event handler failed")
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	b.Publish(&event)
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{ID: uuid.New(), Type: eventType, Payload: raw, CreatedAt: time.Now().UTC()}, nil
}
