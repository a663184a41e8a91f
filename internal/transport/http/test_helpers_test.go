package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/pairchat-server/internal/auth"
	"github.com/vovakirdan/pairchat-server/internal/config"
	"github.com/vovakirdan/pairchat-server/internal/core"
	pclog "github.com/vovakirdan/pairchat-server/internal/log"
	"github.com/vovakirdan/pairchat-server/internal/proto"
	"github.com/vovakirdan/pairchat-server/internal/store/sqlite"
)

type testEnv struct {
	ts    *httptest.Server
	hub   *core.Hub
	store *sqlite.SQLiteStore
	auth  *auth.Service
	cfg   config.Config
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.ShutdownTimeout = time.Second
	cfg.DatabasePath = ":memory:"
	cfg.JWTSecret = "test-secret"
	return cfg
}

func startTestServer(t *testing.T, cfg config.Config, opts ...core.Option) *testEnv {
	t.Helper()

	st, err := sqlite.New(cfg.DatabasePath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	})

	logger := pclog.Nop()
	hub := core.NewHub(st, logger, opts...)
	t.Cleanup(hub.Close)

	server := NewServer(hub, authService, st, &cfg, logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, hub: hub, store: st, auth: authService, cfg: cfg}
}

func (e *testEnv) wsURL(query string) string {
	u := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

func (e *testEnv) dial(t *testing.T, ctx context.Context, query string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, e.wsURL(query), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

type rawOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}))
}

// readUntil reads frames until match returns true, failing on timeout.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, match func(rawOutbound) bool) rawOutbound {
	t.Helper()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	for {
		var out rawOutbound
		require.NoError(t, wsjson.Read(ctx, conn, &out))
		if match(out) {
			return out
		}
	}
}

func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, event string) rawOutbound {
	t.Helper()
	return readUntil(t, ctx, conn, func(o rawOutbound) bool {
		return o.Type == proto.OutboundTypeEvent && o.Event == event
	})
}

func readError(t *testing.T, ctx context.Context, conn *websocket.Conn) *proto.Error {
	t.Helper()
	out := readUntil(t, ctx, conn, func(o rawOutbound) bool { return o.Type == proto.OutboundTypeError })
	require.NotNil(t, out.Error)
	return out.Error
}

// waitPresence reads getUsers snapshots until one holds exactly want.
func waitPresence(t *testing.T, ctx context.Context, conn *websocket.Conn, want ...string) {
	t.Helper()
	readUntil(t, ctx, conn, func(o rawOutbound) bool {
		if o.Event != proto.EventGetUsers {
			return false
		}
		var users []proto.PresenceUser
		require.NoError(t, json.Unmarshal(o.Data, &users))
		if len(users) != len(want) {
			return false
		}
		got := make(map[string]bool, len(users))
		for _, u := range users {
			got[u.UserID] = true
		}
		for _, w := range want {
			if !got[w] {
				return false
			}
		}
		return true
	})
}
