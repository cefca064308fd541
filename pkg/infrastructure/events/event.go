package events

import (
	"time"
)

// Event is one recorded fact about an order or a material. StreamID is the
// order or material id it belongs to; Version is its 1-based position in
// that stream once appended.
type Event interface {
	Type() string
	StreamID() string
	Data() any
	Timestamp() time.Time
	Version() int
}

type EventHandler interface {
	Handle(event Event) error
	CanHandle(eventType string) bool
}

// SubscriptionID identifies one Subscribe call
type SubscriptionID uint64

// EventStore records domain events per stream and notifies subscribers
type EventStore interface {
	AppendEvent(streamID string, event Event) error
	ReadEvents(streamID string, fromVersion int) ([]Event, error)
	ReadAllEvents(fromPosition int) ([]Event, error)
	Subscribe(eventTypes []string, handler EventHandler) (SubscriptionID, error)
	Unsubscribe(id SubscriptionID) error
}

// envelope is the only Event implementation; payloads are the typed structs
// in fulfillment_events.go
type envelope struct {
	kind     string
	stream   string
	payload  any
	at       time.Time
	position int
}

func (e envelope) Type() string         { return e.kind }
func (e envelope) StreamID() string     { return e.stream }
func (e envelope) Data() any            { return e.payload }
func (e envelope) Timestamp() time.Time { return e.at }
func (e envelope) Version() int         { return e.position }

// NewEvent wraps payload for streamID. The version is assigned on append.
func NewEvent(eventType, streamID string, payload any) Event {
	return envelope{
		kind:     eventType,
		stream:   streamID,
		payload:  payload,
		at:       time.Now(),
		position: 1,
	}
}

// HandlerFunc adapts a function to an EventHandler that accepts every type it is subscribed to
type HandlerFunc func(event Event) error

func (f HandlerFunc) Handle(event Event) error {
	return f(event)
}

func (f HandlerFunc) CanHandle(string) bool {
	return true
}
