package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vovakirdan/pairchat-server/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// drain empties a session queue without blocking and returns what it held.
func drain(s *Session) []*Event {
	var out []*Event
	for {
		select {
		case ev, ok := <-s.Events:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func kindsOf(evs []*Event) []EventKind {
	kinds := make([]EventKind, 0, len(evs))
	for _, ev := range evs {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

var errStoreDown = errors.New("store down")

// join connects session and registers it as userID.
func join(hub *Hub, session *Session, userID string) bool {
	hub.Connect(session)
	return hub.AddUser(session, userID)
}

// memoryStore is an in-memory MessageStore with failure injection.
// Conversation c1 between alice and bob exists from the start.
type memoryStore struct {
	mu            sync.Mutex
	conversations map[string][2]string
	messages      []*store.Message
	lastMessage   map[string]string
	creates       int
	failGet       bool
	failCreate    bool
	failUpdate    bool
	failRead      bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		conversations: map[string][2]string{"c1": {"alice", "bob"}},
		lastMessage:   make(map[string]string),
	}
}

func (m *memoryStore) GetConversation(_ context.Context, id string) (*store.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failGet {
		return nil, errStoreDown
	}
	members, ok := m.conversations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &store.Conversation{ID: id, Members: members}, nil
}

func (m *memoryStore) CreateMessage(_ context.Context, msg *store.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.creates++
	if m.failCreate {
		return errStoreDown
	}
	if msg.Text == nil && msg.Image == nil {
		return errors.New("check constraint failed")
	}
	msg.ID = uuid.NewString()
	cp := *msg
	m.messages = append(m.messages, &cp)
	return nil
}

func (m *memoryStore) SetConversationLastMessage(_ context.Context, conversationID string, msg *store.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failUpdate {
		return errStoreDown
	}
	m.lastMessage[conversationID] = msg.ID
	return nil
}

func (m *memoryStore) MarkConversationRead(_ context.Context, conversationID, senderID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failRead {
		return 0, errStoreDown
	}
	var n int64
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID && msg.SenderID == senderID && msg.Status != string(StatusRead) {
			msg.Status = string(StatusRead)
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) statuses(conversationID string) map[string][]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string][]string)
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			out[msg.SenderID] = append(out[msg.SenderID], msg.Status)
		}
	}
	return out
}
