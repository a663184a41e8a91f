package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-server/internal/store"
)

// MessageStore is the persistence the hub needs. Only the delivery pipeline and
// the read-receipt propagator call it.
type MessageStore interface {
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	CreateMessage(ctx context.Context, msg *store.Message) error
	SetConversationLastMessage(ctx context.Context, conversationID string, msg *store.Message) error
	MarkConversationRead(ctx context.Context, conversationID, senderID string) (int64, error)
}

// DeliveryOutcome reports what happened to a push.
type DeliveryOutcome int

const (
	// OutcomeNone means no push was attempted because the command failed.
	OutcomeNone DeliveryOutcome = iota
	// OutcomePushed means the event was queued on the recipient's session.
	OutcomePushed
	// OutcomeRoutingMiss means the recipient has no registered session. Not an error.
	OutcomeRoutingMiss
	// OutcomeDropped means the recipient's queue was full or closed. A full
	// queue also disconnects the recipient so it reconnects and re-fetches.
	OutcomeDropped
)

func (o DeliveryOutcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomePushed:
		return "pushed"
	case OutcomeRoutingMiss:
		return "routing_miss"
	case OutcomeDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Option configures a Hub.
type Option func(*Hub)

// WithDeliveryAcks makes the hub confirm or reject each send back to the sender.
func WithDeliveryAcks(enabled bool) Option {
	return func(h *Hub) { h.acks = enabled }
}

// WithClock overrides the time source used to stamp new messages.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

// Hub routes events between sessions. It owns the registry and the set of
// connected sessions; persistence is only touched outside the registry lock.
type Hub struct {
	registry *Registry
	store    MessageStore
	log      *zerolog.Logger
	acks     bool
	now      func() time.Time

	// presenceMu serializes connection lifecycle changes with their broadcast,
	// so every session sees presence snapshots in mutation order.
	presenceMu sync.Mutex
	connected  map[*Session]struct{}
}

// NewHub creates a hub backed by st.
func NewHub(st MessageStore, logger *zerolog.Logger, opts ...Option) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	h := &Hub{
		registry:  NewRegistry(),
		store:     st,
		log:       logger,
		now:       time.Now,
		connected: make(map[*Session]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Registry exposes the connection registry for read-only inspection.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Connect tracks a freshly opened channel. It receives presence broadcasts but
// no routed events until it registers an identity.
func (h *Hub) Connect(session *Session) {
	h.presenceMu.Lock()
	defer h.presenceMu.Unlock()
	h.connected[session] = struct{}{}
}

// Disconnect removes the session from the registry unconditionally, closes it,
// and rebroadcasts presence to everyone still connected.
func (h *Hub) Disconnect(session *Session) {
	h.presenceMu.Lock()
	defer h.presenceMu.Unlock()

	delete(h.connected, session)
	userID, removed := h.registry.Unregister(session)
	session.Close()

	if removed {
		h.log.Info().Str("user_id", userID).Str("session_id", session.ID).Msg("user disconnected")
	}
	h.broadcastPresenceLocked()
}

// Handle dispatches a command from session to the matching handler.
func (h *Hub) Handle(ctx context.Context, session *Session, cmd *Command) error {
	switch cmd.Kind {
	case CommandAddUser:
		if cmd.UserID == "" {
			return fmt.Errorf("add user: %w", ErrBadRequest)
		}
		h.AddUser(session, cmd.UserID)
		return nil
	case CommandSendMessage:
		if err := h.checkIdentity(session, cmd.Send.SenderID); err != nil {
			return err
		}
		_, _, err := h.SendMessage(ctx, session, cmd.Send)
		return err
	case CommandTypingStart, CommandTypingStop:
		h.Typing(cmd.Kind, cmd.ConversationID, cmd.ReceiverID)
		return nil
	case CommandMarkAsRead:
		reader, _ := h.registry.IdentityOf(session)
		_, err := h.MarkRead(ctx, cmd.ConversationID, reader, cmd.ReceiverID)
		return err
	default:
		return fmt.Errorf("unknown command %d: %w", cmd.Kind, ErrBadRequest)
	}
}

// checkIdentity rejects a registered session acting as someone else.
// Unregistered sessions are trusted with the identity they claim.
func (h *Hub) checkIdentity(session *Session, claimed string) error {
	if session == nil {
		return nil
	}
	registered, ok := h.registry.IdentityOf(session)
	if ok && registered != claimed {
		return fmt.Errorf("session %s registered as %s, claimed %s: %w", session.ID, registered, claimed, ErrIdentityMismatch)
	}
	return nil
}

// push queues ev for userID if that identity has a session.
func (h *Hub) push(userID string, ev *Event) DeliveryOutcome {
	session, ok := h.registry.Lookup(userID)
	if !ok {
		h.log.Debug().Str("user_id", userID).Stringer("event", ev.Kind).Msg("routing miss")
		return OutcomeRoutingMiss
	}
	if !session.Push(ev) {
		if session.Closed() {
			h.log.Debug().Str("user_id", userID).Str("session_id", session.ID).Stringer("event", ev.Kind).Msg("session closed, event dropped")
			return OutcomeDropped
		}
		// A gap in the stream would go unnoticed by the client; dropping the
		// session makes it reconnect and catch up with a full fetch.
		h.log.Warn().Str("user_id", userID).Str("session_id", session.ID).Stringer("event", ev.Kind).Msg("session queue full, disconnecting")
		h.Disconnect(session)
		return OutcomeDropped
	}
	return OutcomePushed
}

// checkMembership verifies that member belongs to the conversation and, when
// counterpart is set, that counterpart is the other member.
func (h *Hub) checkMembership(ctx context.Context, conversationID, member, counterpart string) error {
	conv, err := h.store.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("conversation %s: %w", conversationID, ErrNotMember)
		}
		return fmt.Errorf("get conversation: %w: %w", ErrPersistence, err)
	}
	if !conv.HasMember(member) || (counterpart != "" && conv.Counterpart(member) != counterpart) {
		return fmt.Errorf("conversation %s: %w", conversationID, ErrNotMember)
	}
	return nil
}

// Close tears the hub down: every connected session is closed and the registry emptied.
func (h *Hub) Close() {
	h.presenceMu.Lock()
	defer h.presenceMu.Unlock()

	for session := range h.connected {
		session.Close()
	}
	clear(h.connected)
	h.registry.Reset()
}
