package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeAddUser     = "addUser"
	InboundTypeSendMessage = "sendMessage"
	InboundTypeTypingStart = "typingStart"
	InboundTypeTypingStop  = "typingStop"
	InboundTypeMarkAsRead  = "markAsRead"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventGetUsers       = "getUsers"
	EventReceiveMessage = "receiveMessage"
	EventTypingStart    = "typingStart"
	EventTypingStop     = "typingStop"
	EventMessagesRead   = "messagesRead"
	EventMessageAck     = "messageAck"
)

// AddUserData registers the connection under an identity.
// On the wire it is either a bare string or {"userId": "..."}.
type AddUserData struct {
	UserID string `json:"userId" validate:"required"`
}

// UnmarshalJSON accepts both the bare-string and the object form.
func (d *AddUserData) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		d.UserID = id
		return nil
	}
	type plain AddUserData
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*d = AddUserData(p)
	return nil
}

// SendMessageData is a chat message from the client. Text and Image are both
// optional here; the server rejects a message that has neither.
type SendMessageData struct {
	SenderID       string `json:"senderId" validate:"required"`
	ReceiverID     string `json:"receiverId" validate:"required"`
	ConversationID string `json:"conversationId" validate:"required"`
	Text           string `json:"text,omitempty"`
	Image          string `json:"image,omitempty" validate:"omitempty,max=2048"`
	TempID         string `json:"tempId,omitempty"`
}

// TypingData is sent by the client for typingStart and typingStop.
type TypingData struct {
	ConversationID string `json:"conversationId" validate:"required"`
	ReceiverID     string `json:"receiverId" validate:"required"`
}

// MarkAsReadData marks the counterpart's messages in a conversation as read.
// ReceiverID names the counterpart, i.e. the original sender of those messages.
type MarkAsReadData struct {
	ConversationID string `json:"conversationId" validate:"required"`
	ReceiverID     string `json:"receiverId" validate:"required"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// PresenceUser is one entry of the getUsers snapshot.
type PresenceUser struct {
	UserID string `json:"userId"`
}

// MessagePayload is a persisted message as seen by clients.
type MessagePayload struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Text           string    `json:"text,omitempty"`
	Image          string    `json:"image,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ConversationRef scopes typing and read-receipt events to a conversation.
type ConversationRef struct {
	ConversationID string `json:"conversationId"`
}

// MessageAck confirms that an optimistic message was persisted.
type MessageAck struct {
	TempID  string         `json:"tempId,omitempty"`
	Message MessagePayload `json:"message"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code   string `json:"code"`
	Msg    string `json:"msg"`
	TempID string `json:"tempId,omitempty"`
}
