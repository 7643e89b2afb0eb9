package bus

import "time"

// EventBus is an in-process pub/sub bus with synchronous, ordered delivery.
//
// Handlers subscribe by Event.Type() within a topic. PublishToTopic invokes
// handlers in subscription order on the caller's goroutine and joins their
// errors. Handlers may subscribe or cancel during delivery; changes take
// effect on the next publish.
type EventBus interface {
	// PublishToTopic delivers the event to subscribers of event.Type() within topic.
	PublishToTopic(topic string, event Event) error
	// SubscribeTopic registers a handler for eventType within topic.
	SubscribeTopic(topic, eventType string, handler EventHandler) (Subscription, error)
}

// Event is an immutable message transported by the bus.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
}

// EventHandler is invoked once per delivered event.
type EventHandler func(event Event) error

// Subscription is a registered handler bound to an event type.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel() error
}
