package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-server/internal/auth"
	"github.com/vovakirdan/pairchat-server/internal/config"
	"github.com/vovakirdan/pairchat-server/internal/core"
	"github.com/vovakirdan/pairchat-server/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to core.Session.
type WSHandler struct {
	hub  *core.Hub
	auth *auth.Service
	cfg  *config.Config
	log  *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, auth: authService, cfg: cfg, log: logger}
}

// authenticate reads an optional token from ?token= or the Authorization header.
// It returns nil claims when no token was supplied and none is required.
func (h *WSHandler) authenticate(r *stdhttp.Request) (*auth.Claims, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if header := r.Header.Get("Authorization"); header != "" {
			var ok bool
			if token, ok = bearerToken(header); !ok {
				return nil, auth.ErrInvalidToken
			}
		}
	}
	if token == "" {
		if h.cfg.JWTRequired {
			return nil, auth.ErrInvalidToken
		}
		return nil, nil
	}
	if h.auth == nil {
		return nil, auth.ErrInvalidToken
	}
	return h.auth.ValidateToken(token)
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	claims, err := h.authenticate(r)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws unauthorized")
		stdhttp.Error(w, "unauthorized", stdhttp.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(h.cfg.MaxMessageBytes)

	session := core.NewSession(h.cfg.SessionBuffer)
	h.hub.Connect(session)
	logger := h.log.With().Str("session_id", session.ID).Logger()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, session, claims, &logger)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, session, &logger)
	}()

	err = <-errCh
	// Disconnect is the only cancellation signal: drop the session before anything else.
	h.hub.Disconnect(session)
	cancel()
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = "internal error"
			logger.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *core.Session, claims *auth.Claims, logger *zerolog.Logger) error {
	limiter := newRateLimiter(h.cfg.MaxEventsPerMinute)
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		if !limiter.allow() {
			h.reject(session, &proto.Error{Code: core.ErrCodeRateLimited, Msg: "too many events"})
			continue
		}

		cmd, protoErr, err := inboundToCommand(claims, inbound)
		if err != nil {
			logger.Warn().Err(err).Str("type", inbound.Type).Msg("failed to map inbound")
			h.reject(session, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "malformed payload"})
			continue
		}
		if protoErr != nil {
			h.reject(session, protoErr)
			continue
		}

		if err := h.hub.Handle(ctx, session, cmd); err != nil {
			logger.Debug().Err(err).Str("type", inbound.Type).Msg("command failed")
			// Send failures are fire-and-forget unless delivery acks are on;
			// protocol misuse is always reported.
			misuse := errors.Is(err, core.ErrIdentityMismatch) || errors.Is(err, core.ErrBadRequest) ||
				(errors.Is(err, core.ErrNotMember) && cmd.Kind != core.CommandSendMessage)
			if misuse {
				h.reject(session, &proto.Error{Code: core.ErrorCode(err), Msg: err.Error()})
			}
		}
	}
}

func (h *WSHandler) reject(session *core.Session, perr *proto.Error) {
	session.Push(&core.Event{
		Kind:  core.EventError,
		Error: &core.CoreError{Code: perr.Code, Message: perr.Msg},
	})
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, session *core.Session, logger *zerolog.Logger) error {
	for {
		select {
		case event, ok := <-session.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				logger.Error().Err(err).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
