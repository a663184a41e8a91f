package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandAddUser registers the session under an identity.
	CommandAddUser CommandKind = iota
	// CommandSendMessage runs the delivery pipeline.
	CommandSendMessage
	// CommandTypingStart relays a typing start signal.
	CommandTypingStart
	// CommandTypingStop relays a typing stop signal.
	CommandTypingStop
	// CommandMarkAsRead runs the read-receipt propagator.
	CommandMarkAsRead
)

// Command represents an action requested by a session.
type Command struct {
	Kind           CommandKind
	UserID         string // CommandAddUser
	ConversationID string
	ReceiverID     string
	Send           SendRequest // CommandSendMessage
}

// SendRequest is the input of the delivery pipeline.
type SendRequest struct {
	SenderID       string
	ReceiverID     string
	ConversationID string
	Text           string
	Image          string
	// TempID is the sender's optimistic id, echoed back in acknowledgments.
	TempID string
}
