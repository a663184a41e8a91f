package core

import (
	"context"
	"fmt"

	"github.com/vovakirdan/pairchat-server/internal/store"
)

// SendMessage runs the delivery pipeline: validate content and membership, persist as delivered, move
// the conversation's last-message pointer, then push to the receiver if online.
// The sender is never pushed its own message. A routing miss is not an error;
// the receiver sees the message on its next conversation fetch.
//
// sender may be nil. When delivery acks are enabled and sender is set, the
// outcome is reported back to it.
func (h *Hub) SendMessage(ctx context.Context, sender *Session, req SendRequest) (*Message, DeliveryOutcome, error) {
	logger := h.log.With().
		Str("sender_id", req.SenderID).
		Str("receiver_id", req.ReceiverID).
		Str("conversation_id", req.ConversationID).
		Logger()

	if req.Text == "" && req.Image == "" {
		err := fmt.Errorf("send to %s: %w", req.ReceiverID, ErrValidation)
		logger.Debug().Err(err).Msg("message rejected")
		h.nack(sender, req, err)
		return nil, OutcomeNone, err
	}

	if err := h.checkMembership(ctx, req.ConversationID, req.SenderID, req.ReceiverID); err != nil {
		logger.Debug().Err(err).Msg("message rejected")
		h.nack(sender, req, err)
		return nil, OutcomeNone, err
	}

	record := &store.Message{
		ConversationID: req.ConversationID,
		SenderID:       req.SenderID,
		Text:           optional(req.Text),
		Image:          optional(req.Image),
		Status:         string(StatusDelivered),
		CreatedAt:      h.now(),
	}
	if err := h.store.CreateMessage(ctx, record); err != nil {
		logger.Error().Err(err).Msg("persist message failed")
		wrapped := fmt.Errorf("create message: %w: %w", ErrPersistence, err)
		h.nack(sender, req, wrapped)
		return nil, OutcomeNone, wrapped
	}
	if err := h.store.SetConversationLastMessage(ctx, req.ConversationID, record); err != nil {
		logger.Error().Err(err).Str("message_id", record.ID).Msg("update conversation last message failed")
		wrapped := fmt.Errorf("update conversation: %w: %w", ErrPersistence, err)
		h.nack(sender, req, wrapped)
		return nil, OutcomeNone, wrapped
	}

	msg := FromStoreMessage(record)
	outcome := h.push(req.ReceiverID, &Event{
		Kind:           EventReceiveMessage,
		Message:        msg,
		ConversationID: msg.ConversationID,
	})
	logger.Debug().Str("message_id", msg.ID).Stringer("outcome", outcome).Msg("message delivered")

	if h.acks && sender != nil {
		ack := *msg
		sender.Push(&Event{Kind: EventMessageAck, Message: &ack, ConversationID: msg.ConversationID, TempID: req.TempID})
	}
	return msg, outcome, nil
}

func (h *Hub) nack(sender *Session, req SendRequest, err error) {
	if !h.acks || sender == nil {
		return
	}
	sender.Push(&Event{
		Kind:           EventError,
		ConversationID: req.ConversationID,
		TempID:         req.TempID,
		Error:          coreError(ErrorCode(err), err.Error()),
	})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// FromStoreMessage converts a persisted message into the domain model.
func FromStoreMessage(m *store.Message) *Message {
	msg := &Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		CreatedAt:      m.CreatedAt,
		Status:         Status(m.Status),
	}
	if m.Text != nil {
		msg.Text = *m.Text
	}
	if m.Image != nil {
		msg.Image = *m.Image
	}
	return msg
}
