package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/vovakirdan/pairchat-server/internal/core"
	"github.com/vovakirdan/pairchat-server/internal/proto"
	"github.com/vovakirdan/pairchat-server/internal/store"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 200
)

// ConversationHandlers serves the "full fetch" routes clients use to resync.
type ConversationHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewConversationHandlers creates a new conversation handlers instance.
func NewConversationHandlers(st store.Store, logger *zerolog.Logger) *ConversationHandlers {
	return &ConversationHandlers{
		store: st,
		log:   logger,
	}
}

// CreateConversationRequest represents the create conversation request body.
type CreateConversationRequest struct {
	PeerID string `json:"peerId" binding:"required"`
}

// ConversationResponse represents a conversation in API responses.
type ConversationResponse struct {
	ID          string                `json:"id"`
	Members     []string              `json:"members"`
	LastMessage *proto.MessagePayload `json:"lastMessage,omitempty"`
	CreatedAt   time.Time             `json:"createdAt"`
}

func conversationResponse(conv *store.Conversation) ConversationResponse {
	resp := ConversationResponse{
		ID:        conv.ID,
		Members:   conv.Members[:],
		CreatedAt: conv.CreatedAt,
	}
	if conv.LastMessage != nil {
		resp.LastMessage = lo.ToPtr(messagePayload(core.FromStoreMessage(conv.LastMessage)))
	}
	return resp
}

// CreateConversation opens (or returns) the conversation with a peer.
// POST /api/conversations
func (h *ConversationHandlers) CreateConversation(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create conversation request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.PeerID == uid {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cannot start a conversation with yourself"})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.GetUserByID(ctx, req.PeerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return
		}
		h.log.Error().Err(err).Str("peer_id", req.PeerID).Msg("failed to look up peer")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	conv, err := h.store.CreateConversation(ctx, uid, req.PeerID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", uid).Str("peer_id", req.PeerID).Msg("failed to create conversation")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusCreated, conversationResponse(conv))
}

// ListConversations lists the caller's conversations, most recent activity first.
// GET /api/conversations
func (h *ConversationHandlers) ListConversations(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	convs, err := h.store.ListConversations(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", uid).Msg("failed to list conversations")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, lo.Map(convs, func(conv *store.Conversation, _ int) ConversationResponse {
		return conversationResponse(conv)
	}))
}

// ListMessages returns the newest messages of a conversation the caller belongs to.
// GET /api/conversations/:id/messages?limit=N
func (h *ConversationHandlers) ListMessages(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	limit := defaultMessageLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = min(n, maxMessageLimit)
	}

	ctx := c.Request.Context()
	convID := c.Param("id")
	conv, err := h.store.GetConversation(ctx, convID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "conversation not found"})
			return
		}
		h.log.Error().Err(err).Str("conversation_id", convID).Msg("failed to get conversation")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if !conv.HasMember(uid) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a member of this conversation"})
		return
	}

	msgs, err := h.store.ListMessages(ctx, convID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("conversation_id", convID).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, lo.Map(msgs, func(m *store.Message, _ int) proto.MessagePayload {
		return messagePayload(core.FromStoreMessage(m))
	}))
}
