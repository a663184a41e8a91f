package client

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) func() {
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.calls = append(l.calls, s)
	}
}

func (l *callLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func TestTypingNotifierDebouncesKeystrokes(t *testing.T) {
	var log callLog
	n := NewTypingNotifier(50*time.Millisecond, log.add("start"), log.add("stop"))

	for range 5 {
		n.Keystroke()
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, []string{"start"}, log.get())

	require.Eventually(t, func() bool { return len(log.get()) == 2 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"start", "stop"}, log.get())

	time.Sleep(100 * time.Millisecond)
	require.Len(t, log.get(), 2)
}

func TestTypingNotifierFlush(t *testing.T) {
	var log callLog
	n := NewTypingNotifier(time.Hour, log.add("start"), log.add("stop"))

	n.Flush()
	require.Empty(t, log.get())

	n.Keystroke()
	n.Flush()
	n.Flush()
	require.Equal(t, []string{"start", "stop"}, log.get())

	n.Keystroke()
	require.Equal(t, []string{"start", "stop", "start"}, log.get())
}

func TestTypingNotifierDefaultIdle(t *testing.T) {
	n := NewTypingNotifier(0, func() {}, func() {})
	require.Equal(t, DefaultTypingIdle, n.idle)
}
