package client

import (
	"sync"
	"time"
)

// DefaultTypingIdle is how long after the last keystroke a stop is sent.
const DefaultTypingIdle = 2 * time.Second

// TypingNotifier turns a stream of keystrokes into one start and, once input
// goes idle, one stop. Callbacks run with the notifier locked, so a start
// always precedes its stop.
type TypingNotifier struct {
	idle  time.Duration
	start func()
	stop  func()

	mu     sync.Mutex
	typing bool
	gen    uint64
	timer  *time.Timer
}

// NewTypingNotifier creates a notifier. idle <= 0 means DefaultTypingIdle.
func NewTypingNotifier(idle time.Duration, start, stop func()) *TypingNotifier {
	if idle <= 0 {
		idle = DefaultTypingIdle
	}
	return &TypingNotifier{idle: idle, start: start, stop: stop}
}

// Keystroke records input activity.
func (n *TypingNotifier) Keystroke() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.typing {
		n.typing = true
		n.start()
	}
	n.gen++
	gen := n.gen
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(n.idle, func() { n.expire(gen) })
}

// Flush sends the stop now if typing is in progress, e.g. when the message is sent.
func (n *TypingNotifier) Flush() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopLocked()
}

func (n *TypingNotifier) expire(gen uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	// A later keystroke rescheduled the stop.
	if gen != n.gen {
		return
	}
	n.stopLocked()
}

func (n *TypingNotifier) stopLocked() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	if !n.typing {
		return
	}
	n.typing = false
	n.gen++
	n.stop()
}
