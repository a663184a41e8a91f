package core

import (
	"sync"

	"github.com/google/uuid"
)

// Session is one live channel. Events pushed to it are delivered in push order.
type Session struct {
	ID     string
	Events chan *Event

	mu     sync.Mutex
	closed bool
}

// NewSession constructs a session with an outbound queue of the given length.
func NewSession(buffer int) *Session {
	if buffer <= 0 {
		buffer = 1
	}
	return &Session{
		ID:     uuid.NewString(),
		Events: make(chan *Event, buffer),
	}
}

// Push enqueues an event without blocking. It returns false if the session is
// closed or its queue is full, in which case the event is dropped.
func (s *Session) Push(ev *Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	select {
	case s.Events <- ev:
		return true
	default:
		return false
	}
}

// Close closes the event queue. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.Events)
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
