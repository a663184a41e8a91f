package core

// EventKind is a notification the core emits to sessions.
type EventKind int

const (
	// EventPresence carries the full snapshot of registered identities.
	EventPresence EventKind = iota
	// EventReceiveMessage delivers a persisted message to its receiver.
	EventReceiveMessage
	// EventTypingStart relays that the counterpart started typing.
	EventTypingStart
	// EventTypingStop relays that the counterpart stopped typing.
	EventTypingStop
	// EventMessagesRead tells the original sender its messages in a conversation were read.
	EventMessagesRead
	// EventMessageAck confirms persistence to the sender (delivery acks only).
	EventMessageAck
	// EventError notifies a session about a rejected command.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventPresence:
		return "presence"
	case EventReceiveMessage:
		return "receive_message"
	case EventTypingStart:
		return "typing_start"
	case EventTypingStop:
		return "typing_stop"
	case EventMessagesRead:
		return "messages_read"
	case EventMessageAck:
		return "message_ack"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is pushed to sessions to describe what happened in the system.
type Event struct {
	Kind           EventKind
	Users          []string // EventPresence
	Message        *Message // EventReceiveMessage, EventMessageAck
	ConversationID string
	TempID         string // EventMessageAck, EventError for a send
	Error          *CoreError
}
