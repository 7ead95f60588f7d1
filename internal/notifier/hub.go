package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/printflow/job-lifecycle/internal/domain"
	"github.com/printflow/job-lifecycle/pkg/logging"
	"github.com/printflow/job-lifecycle/pkg/metrics"
)

// ErrDeliveryFailure is returned when events cannot be handed to sessions
var ErrDeliveryFailure = errors.New("notification delivery failure")

// DefaultBufferSize is the per-session queue length
const DefaultBufferSize = 64

// Hub fans lifecycle events out to subscribed sessions. Delivery is
// at-most-once: a session whose buffer is full misses the event.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
	buffer   int
	logger   *logging.Logger
	metrics  *metrics.Metrics
}

// NewHub creates a hub. bufferSize <= 0 uses DefaultBufferSize; m may be nil.
func NewHub(bufferSize int, logger *logging.Logger, m *metrics.Metrics) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		sessions: make(map[string]*Session),
		buffer:   bufferSize,
		logger:   logger.WithComponent("notifier-hub"),
		metrics:  m,
	}
}

// Session is one subscriber's view of the hub
type Session struct {
	ID        string
	types     map[string]bool
	ch        chan Event
	hub       *Hub
	once      sync.Once
	delivered atomic.Int64
	dropped   atomic.Int64
}

// Events returns the session's delivery channel. It is closed when the
// session or the hub closes.
func (s *Session) Events() <-chan Event {
	return s.ch
}

// Types returns the subscribed event types; empty means all
func (s *Session) Types() []string {
	out := make([]string, 0, len(s.types))
	for t := range s.types {
		out = append(out, t)
	}
	return out
}

// Wants reports whether the session subscribed to eventType
func (s *Session) Wants(eventType string) bool {
	return len(s.types) == 0 || s.types[eventType]
}

// Stats returns delivered and dropped counts
func (s *Session) Stats() (delivered, dropped int64) {
	return s.delivered.Load(), s.dropped.Load()
}

// Close unsubscribes the session
func (s *Session) Close() {
	s.hub.remove(s)
}

// Subscribe opens a session for the given event types (none = all)
func (h *Hub) Subscribe(types ...string) (*Session, error) {
	filter := make(map[string]bool, len(types))
	for _, t := range types {
		if t != "" {
			filter[t] = true
		}
	}

	s := &Session{
		ID:    uuid.NewString(),
		types: filter,
		ch:    make(chan Event, h.buffer),
		hub:   h,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: hub is closed", ErrDeliveryFailure)
	}
	h.sessions[s.ID] = s
	count := len(h.sessions)
	h.mu.Unlock()

	h.setSessions(count)
	return s, nil
}

func (h *Hub) remove(s *Session) {
	h.mu.Lock()
	_, ok := h.sessions[s.ID]
	delete(h.sessions, s.ID)
	count := len(h.sessions)
	h.mu.Unlock()

	if ok {
		s.once.Do(func() { close(s.ch) })
		h.setSessions(count)
	}
}

// Publish hands event to every interested session without blocking
func (h *Hub) Publish(event Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return fmt.Errorf("%w: hub is closed", ErrDeliveryFailure)
	}

	for _, s := range h.sessions {
		if !s.Wants(event.Type) {
			continue
		}
		select {
		case s.ch <- event:
			s.delivered.Add(1)
		default:
			s.dropped.Add(1)
			if h.metrics != nil {
				h.metrics.RecordNotifierDrop(event.Type)
			}
		}
	}
	return nil
}

// Notify converts domain events and publishes them. It satisfies the
// lifecycle service's notifier port. When actorRole is empty the role from
// the request context is used.
func (h *Hub) Notify(ctx context.Context, actorRole string, events ...domain.DomainEvent) error {
	if actorRole == "" {
		_, actorRole = logging.ActorFromContext(ctx)
	}

	var errs []error
	for _, e := range events {
		event, err := FromDomainEvent(e, actorRole)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := h.Publish(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SessionCount returns the number of open sessions
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Close closes every session; later publishes fail with ErrDeliveryFailure
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	sessions := h.sessions
	h.sessions = make(map[string]*Session)
	h.mu.Unlock()

	for _, s := range sessions {
		s.once.Do(func() { close(s.ch) })
	}
	h.setSessions(0)
	h.logger.Info("Notifier hub closed", "sessions", len(sessions))
}

func (h *Hub) setSessions(n int) {
	if h.metrics != nil {
		h.metrics.SetNotifierSessions(n)
	}
}
