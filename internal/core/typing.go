package core

// Typing forwards a typing start or stop to receiverID, scoped to the
// conversation. Nothing is stored and nothing is deduplicated: every call
// produces exactly one push when the receiver is online.
func (h *Hub) Typing(kind CommandKind, conversationID, receiverID string) DeliveryOutcome {
	evKind := EventTypingStart
	if kind == CommandTypingStop {
		evKind = EventTypingStop
	}
	return h.push(receiverID, &Event{Kind: evKind, ConversationID: conversationID})
}
