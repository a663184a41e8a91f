package client

import (
	"context"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/pairchat-server/internal/auth"
	"github.com/vovakirdan/pairchat-server/internal/config"
	"github.com/vovakirdan/pairchat-server/internal/core"
	pclog "github.com/vovakirdan/pairchat-server/internal/log"
	"github.com/vovakirdan/pairchat-server/internal/recency"
	"github.com/vovakirdan/pairchat-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/pairchat-server/internal/transport/http"
)

func startServer(t *testing.T, acks bool) *httptest.Server {
	t.Helper()

	cfg := config.Default()
	cfg.DatabasePath = ":memory:"
	cfg.DeliveryAcks = acks

	st, err := sqlite.New(cfg.DatabasePath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer, Audience: cfg.JWTAudience, TTL: cfg.JWTTTL,
	})
	hub := core.NewHub(st, pclog.Nop(), core.WithDeliveryAcks(acks))
	t.Cleanup(hub.Close)

	ts := httptest.NewServer(transporthttp.NewServer(hub, authService, st, &cfg, pclog.Nop()).Handler)
	t.Cleanup(ts.Close)
	return ts
}

func connect(t *testing.T, ctx context.Context, ts *httptest.Server, username string, opts ...Option) *Client {
	t.Helper()

	creds, err := Register(ctx, ts.Client(), ts.URL, username, "password123")
	if err != nil {
		creds, err = Login(ctx, ts.Client(), ts.URL, username, "password123")
	}
	require.NoError(t, err)

	opts = append([]Option{WithHTTPClient(ts.Client())}, opts...)
	c, err := Dial(ctx, Config{ServerURL: ts.URL, UserID: creds.UserID, Token: creds.Token}, pclog.Nop(), opts...)
	require.NoError(t, err)

	go func() { _ = c.Run(ctx) }()
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.AddUser(ctx))
	return c
}

func online(c *Client, ids ...string) func() bool {
	return func() bool {
		got := c.Online()
		if len(got) != len(ids) {
			return false
		}
		for _, id := range ids {
			if !slices.Contains(got, id) {
				return false
			}
		}
		return true
	}
}

func TestClientConversationLifecycle(t *testing.T) {
	ts := startServer(t, true)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice := connect(t, ctx, ts, "alice")
	bob := connect(t, ctx, ts, "bob")
	require.Eventually(t, online(alice, alice.UserID(), bob.UserID()), 2*time.Second, 10*time.Millisecond)

	conv, err := alice.OpenConversation(ctx, bob.UserID())
	require.NoError(t, err)

	sent, err := alice.Send(ctx, conv.ID, bob.UserID(), "hi", "")
	require.NoError(t, err)
	require.Equal(t, core.StatusSent, sent.Status)
	require.Equal(t, core.StatusSent, alice.Messages(conv.ID)[0].Status)

	require.Eventually(t, func() bool { return len(bob.Messages(conv.ID)) == 1 }, 2*time.Second, 10*time.Millisecond)
	got := bob.Messages(conv.ID)[0]
	require.Equal(t, "hi", got.Text)
	require.Equal(t, core.StatusDelivered, got.Status)
	require.Equal(t, conv.ID, bob.View().Conversations()[0].ID)

	// The ack swaps the optimistic copy for the stored one.
	require.Eventually(t, func() bool {
		msgs := alice.Messages(conv.ID)
		return len(msgs) == 1 && msgs[0].ID == got.ID && msgs[0].Status == core.StatusDelivered
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, bob.MarkAsRead(ctx, conv.ID, alice.UserID()))
	require.Equal(t, core.StatusRead, bob.Messages(conv.ID)[0].Status)
	require.Eventually(t, func() bool { return alice.Messages(conv.ID)[0].Status == core.StatusRead }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.TypingStart(ctx, conv.ID, bob.UserID()))
	require.Eventually(t, func() bool { return bob.IsTyping(conv.ID) }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, alice.TypingStop(ctx, conv.ID, bob.UserID()))
	require.Eventually(t, func() bool { return !bob.IsTyping(conv.ID) }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, bob.Close())
	require.Eventually(t, online(alice, alice.UserID()), 2*time.Second, 10*time.Millisecond)

	_, err = alice.Send(ctx, conv.ID, bob.UserID(), "are you there?", "")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		msgs := alice.Messages(conv.ID)
		return len(msgs) == 2 && msgs[1].Status == core.StatusDelivered
	}, 2*time.Second, 10*time.Millisecond)

	// Bob comes back and catches up through a full fetch.
	bob2 := connect(t, ctx, ts, "bob")
	convs, err := bob2.FetchConversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	require.Equal(t, "are you there?", convs[0].LastMessage.Text)

	require.NoError(t, bob2.Resync(ctx, conv.ID, 0))
	msgs := bob2.Messages(conv.ID)
	require.Len(t, msgs, 2)
	require.Equal(t, core.StatusRead, msgs[0].Status)
	require.Equal(t, core.StatusDelivered, msgs[1].Status)
}

func TestClientSendRejectsEmptyMessage(t *testing.T) {
	c := offline("alice")
	_, err := c.Send(context.Background(), "c1", "bob", "", "")
	require.ErrorIs(t, err, core.ErrValidation)
	require.Empty(t, c.Messages("c1"))
}

func TestClientUpdateHandlerSeesErrors(t *testing.T) {
	ts := startServer(t, true)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errs := make(chan Update, 4)
	alice := connect(t, ctx, ts, "alice", WithUpdateHandler(func(u Update) {
		if u.Kind == UpdateError {
			errs <- u
		}
	}))

	sent, err := alice.Send(ctx, "missing-conversation", "bob", "hello", "")
	require.NoError(t, err)

	select {
	case u := <-errs:
		require.Equal(t, core.ErrCodeNotMember, u.Error.Code)
		require.Equal(t, sent.ID, u.Error.TempID)
	case <-ctx.Done():
		t.Fatal("no error update")
	}
	require.Equal(t, core.StatusSent, alice.Messages("missing-conversation")[0].Status)
}

func offline(userID string) *Client {
	return &Client{
		cfg:      Config{UserID: userID},
		log:      pclog.Nop(),
		onUpdate: func(Update) {},
		view:     recency.NewView(),
		messages: make(map[string][]*core.Message),
		members:  make(map[string][2]string),
		typing:   make(map[string]bool),
	}
}

func TestReconcileMergesPersistedAndPending(t *testing.T) {
	c := offline("alice")
	now := time.Now()

	c.messages["c1"] = []*core.Message{
		{ID: "m1", ConversationID: "c1", SenderID: "alice", Text: "one", CreatedAt: now, Status: core.StatusRead},
		{ID: "tmp-a", ConversationID: "c1", SenderID: "alice", Text: "two", CreatedAt: now, Status: core.StatusSent},
		{ID: "tmp-b", ConversationID: "c1", SenderID: "alice", Text: "three", CreatedAt: now, Status: core.StatusSent},
	}

	c.Reconcile("c1", []*core.Message{
		{ID: "m1", ConversationID: "c1", SenderID: "alice", Text: "one", CreatedAt: now, Status: core.StatusDelivered},
		{ID: "m2", ConversationID: "c1", SenderID: "alice", Text: "two", CreatedAt: now.Add(time.Second), Status: core.StatusDelivered},
		{ID: "m3", ConversationID: "c1", SenderID: "bob", Text: "hey", CreatedAt: now.Add(2 * time.Second), Status: core.StatusDelivered},
	})

	msgs := c.Messages("c1")
	require.Len(t, msgs, 4)
	require.Equal(t, "m1", msgs[0].ID)
	require.Equal(t, core.StatusRead, msgs[0].Status)
	require.Equal(t, "m2", msgs[1].ID)
	require.Equal(t, "m3", msgs[2].ID)
	require.Equal(t, "tmp-b", msgs[3].ID)
	require.Equal(t, core.StatusSent, msgs[3].Status)

	require.Equal(t, "c1", c.View().Conversations()[0].ID)
}

func TestApplyIgnoresDuplicateReceive(t *testing.T) {
	c := offline("bob")
	msg := &core.Message{ID: "m1", ConversationID: "c1", SenderID: "alice", Text: "hi", CreatedAt: time.Now(), Status: core.StatusDelivered}

	require.True(t, c.receive(msg))
	require.False(t, c.receive(msg))
	require.Len(t, c.Messages("c1"), 1)
	require.Equal(t, [2]string{"alice", "bob"}, c.View().Conversations()[0].Members)
}

func TestWebsocketURL(t *testing.T) {
	u, err := websocketURL("http://localhost:8080/", "abc")
	require.NoError(t, err)
	require.Equal(t, "ws://localhost:8080/ws?token=abc", u)

	u, err = websocketURL("https://chat.example.com", "")
	require.NoError(t, err)
	require.Equal(t, "wss://chat.example.com/ws", u)

	_, err = websocketURL("ftp://x", "")
	require.Error(t, err)
}
