package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingAccepted  = "booking_accepted"
	EventBookingRejected  = "booking_rejected"
	EventBookingStarted   = "booking_started"
	EventBookingCompleted = "booking_completed"
	EventBookingCancelled = "booking_cancelled"
	EventPaymentReceived  = "payment_received"
	EventPaymentFailed    = "payment_failed"
	EventPaymentRefunded  = "payment_refunded"
	EventReviewReceived   = "review_received"
)

// BookingEvents lists every event that changes a booking row.
var BookingEvents = []string{
	EventBookingCreated,
	EventBookingAccepted,
	EventBookingRejected,
	EventBookingStarted,
	EventBookingCompleted,
	EventBookingCancelled,
	EventPaymentReceived,
	EventPaymentFailed,
	EventPaymentRefunded,
}

// BookingEventPayload is the booking snapshot carried by every marketplace event.
type BookingEventPayload struct {
	BookingID      int64   `json:"booking_id"`
	CustomerID     int64   `json:"customer_id"`
	ProviderID     int64   `json:"provider_id,omitempty"`
	Status         string  `json:"status"`
	PreviousStatus string  `json:"previous_status,omitempty"`
	ScheduledDate  string  `json:"scheduled_date,omitempty"`
	CancelledBy    string  `json:"cancelled_by,omitempty"`
	Amount         float64 `json:"amount,omitempty"`
	Rating         int     `json:"rating,omitempty"`
	ActorID        int64   `json:"actor_id,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the event payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// ErrorHandler observes handler failures.
type ErrorHandler func(event *Event, err error)

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	onError     ErrorHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// OnError registers a callback for handler errors.
func (b *EventBus) OnError(fn ErrorHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers handler for each of the given event types.
func (b *EventBus) SubscribeAll(eventTypes []string, handler EventHandler) {
	for _, t := range eventTypes {
		b.Subscribe(t, handler)
	}
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	onError := b.onError
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && onError != nil {
			onError(event, err)
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

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
