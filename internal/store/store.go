package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// User represents a registered account. ID is the opaque identity used for routing.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Conversation is a two-party thread.
type Conversation struct {
	ID            string
	Members       [2]string
	LastMessageID *string
	LastMessageAt *time.Time
	LastMessage   *Message // populated by ListConversations
	CreatedAt     time.Time
}

// HasMember reports whether userID takes part in the conversation.
func (c *Conversation) HasMember(userID string) bool {
	return c.Members[0] == userID || c.Members[1] == userID
}

// Counterpart returns the other member of the conversation.
func (c *Conversation) Counterpart(userID string) string {
	if c.Members[0] == userID {
		return c.Members[1]
	}
	return c.Members[0]
}

// Message represents a persisted chat message.
// At least one of Text and Image is non-nil; the database enforces it.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Text           *string
	Image          *string
	Status         string
	CreatedAt      time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// ConversationStore handles conversation persistence.
type ConversationStore interface {
	// CreateConversation returns the conversation between a and b, creating it if needed.
	CreateConversation(ctx context.Context, a, b string) (*Conversation, error)

	GetConversation(ctx context.Context, id string) (*Conversation, error)

	// ListConversations lists the user's conversations, most recent activity first.
	ListConversations(ctx context.Context, userID string) ([]*Conversation, error)

	// SetConversationLastMessage points the conversation at its newest message.
	SetConversationLastMessage(ctx context.Context, conversationID string, msg *Message) error
}

// MessageStore handles message persistence.
type MessageStore interface {
	// CreateMessage persists msg, assigning ID and CreatedAt when unset.
	CreateMessage(ctx context.Context, msg *Message) error

	// ListMessages returns up to limit newest messages of a conversation in chronological order.
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error)

	// MarkConversationRead sets status=read on every unread message from senderID
	// in the conversation and returns how many rows changed.
	MarkConversationRead(ctx context.Context, conversationID, senderID string) (int64, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	ConversationStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
