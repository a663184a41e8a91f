// Package client is a real-time chat client: it keeps optimistic local state
// and reconciles it with server events and full fetches.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/vovakirdan/pairchat-server/internal/core"
	"github.com/vovakirdan/pairchat-server/internal/proto"
	"github.com/vovakirdan/pairchat-server/internal/recency"
	"github.com/vovakirdan/pairchat-server/internal/utils"
)

// UpdateKind tells what changed in local state.
type UpdateKind int

const (
	UpdateMessage UpdateKind = iota
	UpdateAck
	UpdateRead
	UpdateTypingStart
	UpdateTypingStop
	UpdatePresence
	UpdateError
)

// Update is handed to the update handler after local state has been changed.
type Update struct {
	Kind           UpdateKind
	ConversationID string
	Message        *core.Message
	Users          []string
	Error          *proto.Error
}

// Config describes how to reach the server.
type Config struct {
	// ServerURL is the http(s) base URL, e.g. http://localhost:8080.
	ServerURL string
	UserID    string
	Token     string
}

// Option configures a Client.
type Option func(*Client)

// WithUpdateHandler registers fn to be called for every applied event.
// fn runs on the event loop and must not block.
func WithUpdateHandler(fn func(Update)) Option {
	return func(c *Client) { c.onUpdate = fn }
}

// WithHTTPClient overrides the client used for REST fetches.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// Client is one user's connection plus the local view built from it.
type Client struct {
	cfg      Config
	conn     *websocket.Conn
	http     *http.Client
	log      *zerolog.Logger
	onUpdate func(Update)
	view     *recency.View

	mu       sync.Mutex
	messages map[string][]*core.Message
	members  map[string][2]string
	online   []string
	typing   map[string]bool
}

type inboundEvent struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

// Dial opens the real-time channel. The token, if any, travels as a query parameter.
func Dial(ctx context.Context, cfg Config, logger *zerolog.Logger, opts ...Option) (*Client, error) {
	if cfg.UserID == "" {
		return nil, errors.New("user id is required")
	}
	wsURL, err := websocketURL(cfg.ServerURL, cfg.Token)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:      cfg,
		http:     http.DefaultClient,
		log:      logger,
		onUpdate: func(Update) {},
		view:     recency.NewView(),
		messages: make(map[string][]*core.Message),
		members:  make(map[string][2]string),
		typing:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPClient: c.http})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.ServerURL, err)
	}
	c.conn = conn
	return c, nil
}

func websocketURL(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// UserID returns the identity this client acts as.
func (c *Client) UserID() string {
	return c.cfg.UserID
}

// View returns the conversation list ordered by recency.
func (c *Client) View() *recency.View {
	return c.view
}

// Close closes the channel. The server treats it as a disconnect.
func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}

func (c *Client) write(ctx context.Context, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, c.conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("write %s: %w", typ, err)
	}
	return nil
}

// AddUser registers the connection under the client's identity.
func (c *Client) AddUser(ctx context.Context) error {
	return c.write(ctx, proto.InboundTypeAddUser, proto.AddUserData{UserID: c.cfg.UserID})
}

// Send shows the message locally as sent right away, then hands it to the server.
// The returned copy carries the temporary id it will be acknowledged under.
func (c *Client) Send(ctx context.Context, conversationID, receiverID, text, image string) (*core.Message, error) {
	msg := &core.Message{
		ID:             utils.NewTempID(),
		ConversationID: conversationID,
		SenderID:       c.cfg.UserID,
		Text:           text,
		Image:          image,
		CreatedAt:      time.Now(),
		Status:         core.StatusSent,
	}
	if !msg.HasContent() {
		return nil, core.ErrValidation
	}

	members := [2]string{c.cfg.UserID, receiverID}
	c.mu.Lock()
	c.messages[conversationID] = append(c.messages[conversationID], msg)
	c.members[conversationID] = members
	out := *msg
	c.mu.Unlock()
	c.view.Touch(members, &out)

	err := c.write(ctx, proto.InboundTypeSendMessage, proto.SendMessageData{
		SenderID:       c.cfg.UserID,
		ReceiverID:     receiverID,
		ConversationID: conversationID,
		Text:           text,
		Image:          image,
		TempID:         msg.ID,
	})
	return &out, err
}

// TypingStart tells receiverID that this user started typing.
func (c *Client) TypingStart(ctx context.Context, conversationID, receiverID string) error {
	return c.write(ctx, proto.InboundTypeTypingStart, proto.TypingData{ConversationID: conversationID, ReceiverID: receiverID})
}

// TypingStop tells receiverID that this user stopped typing.
func (c *Client) TypingStop(ctx context.Context, conversationID, receiverID string) error {
	return c.write(ctx, proto.InboundTypeTypingStop, proto.TypingData{ConversationID: conversationID, ReceiverID: receiverID})
}

// MarkAsRead marks every message from counterpartID in the conversation as
// read, locally and on the server.
func (c *Client) MarkAsRead(ctx context.Context, conversationID, counterpartID string) error {
	c.markRead(conversationID, counterpartID)
	return c.write(ctx, proto.InboundTypeMarkAsRead, proto.MarkAsReadData{ConversationID: conversationID, ReceiverID: counterpartID})
}

// Run reads events until the channel closes or ctx is done.
func (c *Client) Run(ctx context.Context) error {
	for {
		var ev inboundEvent
		if err := wsjson.Read(ctx, c.conn, &ev); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		if err := c.apply(ev); err != nil {
			c.log.Warn().Err(err).Str("event", ev.Event).Msg("failed to apply event")
		}
	}
}

func (c *Client) apply(ev inboundEvent) error {
	if ev.Type == proto.OutboundTypeError {
		if ev.Error == nil {
			return errors.New("error frame without body")
		}
		c.log.Debug().Str("code", ev.Error.Code).Str("temp_id", ev.Error.TempID).Msg("server error")
		c.onUpdate(Update{Kind: UpdateError, Error: ev.Error})
		return nil
	}

	switch ev.Event {
	case proto.EventGetUsers:
		var users []proto.PresenceUser
		if err := json.Unmarshal(ev.Data, &users); err != nil {
			return err
		}
		ids := lo.Map(users, func(u proto.PresenceUser, _ int) string { return u.UserID })
		c.mu.Lock()
		c.online = ids
		c.mu.Unlock()
		c.onUpdate(Update{Kind: UpdatePresence, Users: slices.Clone(ids)})

	case proto.EventReceiveMessage:
		var payload proto.MessagePayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			return err
		}
		msg := fromPayload(payload)
		if c.receive(msg) {
			c.onUpdate(Update{Kind: UpdateMessage, ConversationID: msg.ConversationID, Message: msg})
		}

	case proto.EventMessageAck:
		var ack proto.MessageAck
		if err := json.Unmarshal(ev.Data, &ack); err != nil {
			return err
		}
		msg := fromPayload(ack.Message)
		c.acknowledge(ack.TempID, msg)
		c.onUpdate(Update{Kind: UpdateAck, ConversationID: msg.ConversationID, Message: msg})

	case proto.EventMessagesRead:
		var ref proto.ConversationRef
		if err := json.Unmarshal(ev.Data, &ref); err != nil {
			return err
		}
		c.markRead(ref.ConversationID, c.cfg.UserID)
		c.onUpdate(Update{Kind: UpdateRead, ConversationID: ref.ConversationID})

	case proto.EventTypingStart, proto.EventTypingStop:
		var ref proto.ConversationRef
		if err := json.Unmarshal(ev.Data, &ref); err != nil {
			return err
		}
		started := ev.Event == proto.EventTypingStart
		c.mu.Lock()
		c.typing[ref.ConversationID] = started
		c.mu.Unlock()
		kind := UpdateTypingStop
		if started {
			kind = UpdateTypingStart
		}
		c.onUpdate(Update{Kind: kind, ConversationID: ref.ConversationID})

	default:
		return fmt.Errorf("unknown event %q", ev.Event)
	}
	return nil
}

// receive stores an incoming message and moves its conversation to the head.
// It reports false for a message already held locally.
func (c *Client) receive(msg *core.Message) bool {
	members := [2]string{msg.SenderID, c.cfg.UserID}
	c.mu.Lock()
	if lo.ContainsBy(c.messages[msg.ConversationID], func(m *core.Message) bool { return m.ID == msg.ID }) {
		c.mu.Unlock()
		return false
	}
	local := *msg
	c.messages[msg.ConversationID] = append(c.messages[msg.ConversationID], &local)
	if _, ok := c.members[msg.ConversationID]; !ok {
		c.members[msg.ConversationID] = members
	}
	c.mu.Unlock()

	c.view.Touch(members, msg)
	return true
}

// acknowledge swaps the optimistic copy for the persisted one.
func (c *Client) acknowledge(tempID string, persisted *core.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, m := range c.messages[persisted.ConversationID] {
		if m.ID != tempID {
			continue
		}
		status := m.Status.Advance(persisted.Status)
		*m = *persisted
		m.Status = status
		c.view.UpdateMessage(tempID, m)
		return
	}
}

// markRead flips messages sent by senderID in the conversation to read.
func (c *Client) markRead(conversationID, senderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := c.messages[conversationID]
	for _, m := range msgs {
		if m.SenderID == senderID {
			m.Status = m.Status.Advance(core.StatusRead)
		}
	}
	if n := len(msgs); n > 0 {
		c.view.UpdateMessage(msgs[n-1].ID, msgs[n-1])
	}
}

// Reconcile replaces local copies in a conversation with the persisted list
// from a full fetch. Statuses never move backwards. Optimistic messages with no
// persisted counterpart yet are kept after the persisted ones.
func (c *Client) Reconcile(conversationID string, persisted []*core.Message) {
	c.mu.Lock()
	local := c.messages[conversationID]
	byID := lo.SliceToMap(local, func(m *core.Message) (string, *core.Message) { return m.ID, m })

	pending := lo.Filter(local, func(m *core.Message, _ int) bool { return utils.IsTempID(m.ID) })
	merged := make([]*core.Message, 0, len(persisted)+len(pending))
	for _, p := range persisted {
		m := *p
		if l, ok := byID[p.ID]; ok {
			m.Status = m.Status.Advance(l.Status)
		} else if _, idx, ok := lo.FindIndexOf(pending, func(t *core.Message) bool { return sameContent(t, p) }); ok {
			m.Status = m.Status.Advance(pending[idx].Status)
			pending = slices.Delete(pending, idx, idx+1)
		}
		merged = append(merged, &m)
	}
	merged = append(merged, pending...)
	c.messages[conversationID] = merged
	members := c.members[conversationID]
	c.mu.Unlock()

	if n := len(merged); n > 0 {
		last := *merged[n-1]
		c.view.Touch(members, &last)
	}
}

func sameContent(a, b *core.Message) bool {
	return a.SenderID == b.SenderID && a.Text == b.Text && a.Image == b.Image
}

// Messages returns copies of the local messages of a conversation in order.
func (c *Client) Messages(conversationID string) []core.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return lo.Map(c.messages[conversationID], func(m *core.Message, _ int) core.Message { return *m })
}

// Online returns the last presence snapshot received.
func (c *Client) Online() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.online)
}

// IsTyping reports whether the counterpart is typing in the conversation.
func (c *Client) IsTyping(conversationID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typing[conversationID]
}

func fromPayload(p proto.MessagePayload) *core.Message {
	return &core.Message{
		ID:             p.ID,
		ConversationID: p.ConversationID,
		SenderID:       p.SenderID,
		Text:           p.Text,
		Image:          p.Image,
		CreatedAt:      p.CreatedAt,
		Status:         core.Status(p.Status),
	}
}
