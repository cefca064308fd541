package events

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// subscription pairs a handler with the id Unsubscribe removes it by
type subscription struct {
	id      SubscriptionID
	handler EventHandler
}

// InMemoryEventStore keeps every published event in process and fans each
// one out to its subscribers on a separate goroutine
type InMemoryEventStore struct {
	mu          sync.RWMutex
	logger      *zap.Logger
	streams     map[string][]Event
	log         []Event
	subscribers map[string][]subscription
	nextID      SubscriptionID
}

// NewInMemoryEventStore creates an empty store; a nil logger discards handler failures
func NewInMemoryEventStore(logger *zap.Logger) *InMemoryEventStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryEventStore{
		logger:      logger,
		streams:     make(map[string][]Event),
		subscribers: make(map[string][]subscription),
	}
}

// Verify interface compliance
var _ EventStore = (*InMemoryEventStore)(nil)

// AppendEvent stamps the event with its position in the stream and records it
func (s *InMemoryEventStore) AppendEvent(streamID string, event Event) error {
	if streamID == "" {
		return fmt.Errorf("cannot append %s event without a stream id", event.Type())
	}

	s.mu.Lock()
	stamped := envelope{
		kind:     event.Type(),
		stream:   streamID,
		payload:  event.Data(),
		at:       event.Timestamp(),
		position: len(s.streams[streamID]) + 1,
	}
	s.streams[streamID] = append(s.streams[streamID], stamped)
	s.log = append(s.log, stamped)
	targets := append([]subscription(nil), s.subscribers[stamped.kind]...)
	s.mu.Unlock()

	for _, sub := range targets {
		if sub.handler.CanHandle(stamped.kind) {
			go s.deliver(sub.handler, stamped)
		}
	}
	return nil
}

// ReadEvents returns the stream from version fromVersion (1-based) onwards
func (s *InMemoryEventStore) ReadEvents(streamID string, fromVersion int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return tail(s.streams[streamID], fromVersion-1), nil
}

// ReadAllEvents returns every event from position fromPosition (0-based) onwards
func (s *InMemoryEventStore) ReadAllEvents(fromPosition int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return tail(s.log, fromPosition), nil
}

// Subscribe registers handler for the given event types
func (s *InMemoryEventStore) Subscribe(eventTypes []string, handler EventHandler) (SubscriptionID, error) {
	if handler == nil {
		return 0, fmt.Errorf("handler cannot be nil")
	}
	if len(eventTypes) == 0 {
		return 0, fmt.Errorf("subscribe needs at least one event type")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	sub := subscription{id: s.nextID, handler: handler}
	for _, eventType := range eventTypes {
		s.subscribers[eventType] = append(s.subscribers[eventType], sub)
	}
	return sub.id, nil
}

// Unsubscribe stops deliveries to the subscription. Events already handed
// to a goroutine may still arrive.
func (s *InMemoryEventStore) Unsubscribe(id SubscriptionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for eventType, subs := range s.subscribers {
		kept := subs[:0]
		for _, sub := range subs {
			if sub.id == id {
				found = true
				continue
			}
			kept = append(kept, sub)
		}
		if len(kept) == 0 {
			delete(s.subscribers, eventType)
		} else {
			s.subscribers[eventType] = kept
		}
	}
	if !found {
		return fmt.Errorf("unknown subscription %d", id)
	}
	return nil
}

func (s *InMemoryEventStore) deliver(handler EventHandler, event Event) {
	if err := handler.Handle(event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", event.Type()),
			zap.String("stream_id", event.StreamID()),
			zap.Error(err))
	}
}

func tail(events []Event, from int) []Event {
	if from < 0 {
		from = 0
	}
	if from >= len(events) {
		return []Event{}
	}
	out := make([]Event, len(events)-from)
	copy(out, events[from:])
	return out
}
