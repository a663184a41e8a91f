package core

import (
	"context"
	"fmt"
)

// MarkRead flips every unread message senderID sent in the conversation to
// read, then tells senderID's session which conversation was read. The
// notification is conversation-scoped and carries no message ids.
// readerID is the caller's registered identity, or empty when unknown; when
// set it must be senderID's counterpart in the conversation.
func (h *Hub) MarkRead(ctx context.Context, conversationID, readerID, senderID string) (int64, error) {
	if conversationID == "" || senderID == "" {
		return 0, fmt.Errorf("mark read: %w", ErrBadRequest)
	}
	if err := h.checkMembership(ctx, conversationID, senderID, readerID); err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}

	changed, err := h.store.MarkConversationRead(ctx, conversationID, senderID)
	if err != nil {
		h.log.Error().Err(err).Str("conversation_id", conversationID).Str("sender_id", senderID).Msg("mark read failed")
		return 0, fmt.Errorf("mark read: %w: %w", ErrPersistence, err)
	}

	outcome := h.push(senderID, &Event{Kind: EventMessagesRead, ConversationID: conversationID})
	h.log.Debug().
		Str("conversation_id", conversationID).
		Str("sender_id", senderID).
		Int64("changed", changed).
		Stringer("outcome", outcome).
		Msg("messages read")
	return changed, nil
}
