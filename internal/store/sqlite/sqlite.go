package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/pairchat-server/internal/store"
)

//go:embed schema.sql
var schema string

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*SQLiteStore)(nil)

// New opens the database at dbPath and applies the schema.
// Use ":memory:" for an ephemeral store.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate applies the embedded schema. It is idempotent.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func toUnix(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromUnix(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	user := &store.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    fromUnix(toUnix(s.now())),
	}
	query := `
		INSERT INTO users (id, username, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, user.ID, user.Username, user.PasswordHash, toUnix(user.CreatedAt)); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	return s.getUser(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE id = ?`, id)
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	return s.getUser(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username)
}

func (s *SQLiteStore) getUser(ctx context.Context, query string, arg any) (*store.User, error) {
	var (
		user    store.User
		created int64
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&user.ID, &user.Username, &user.PasswordHash, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	user.CreatedAt = fromUnix(created)
	return &user, nil
}

// ==== ConversationStore implementation ====

// CreateConversation returns the existing conversation for the pair or creates one.
// Members are stored in sorted order so (a, b) and (b, a) resolve to the same row.
func (s *SQLiteStore) CreateConversation(ctx context.Context, a, b string) (*store.Conversation, error) {
	if a > b {
		a, b = b, a
	}
	query := `
		INSERT INTO conversations (id, member_a, member_b, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (member_a, member_b) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, uuid.NewString(), a, b, toUnix(s.now())); err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	conv, err := s.scanConversation(s.db.QueryRowContext(ctx, conversationSelect+` WHERE c.member_a = ? AND c.member_b = ?`, a, b))
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// GetConversation retrieves a conversation by ID, including its last message.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*store.Conversation, error) {
	return s.scanConversation(s.db.QueryRowContext(ctx, conversationSelect+` WHERE c.id = ?`, id))
}

// ListConversations lists the user's conversations ordered by last activity, newest first.
// Conversations without messages sort by creation time.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID string) ([]*store.Conversation, error) {
	query := conversationSelect + `
		WHERE c.member_a = ? OR c.member_b = ?
		ORDER BY COALESCE(c.last_message_at, c.created_at) DESC, c.id
	`
	rows, err := s.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var convs []*store.Conversation
	for rows.Next() {
		conv, err := s.scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return convs, nil
}

// SetConversationLastMessage moves the conversation's last-message pointer forward.
// An older message never replaces a newer one.
func (s *SQLiteStore) SetConversationLastMessage(ctx context.Context, conversationID string, msg *store.Message) error {
	query := `
		UPDATE conversations
		SET last_message_id = ?, last_message_at = ?
		WHERE id = ? AND (last_message_at IS NULL OR last_message_at <= ?)
	`
	at := toUnix(msg.CreatedAt)
	result, err := s.db.ExecContext(ctx, query, msg.ID, at, conversationID, at)
	if err != nil {
		return fmt.Errorf("update last message: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetConversation(ctx, conversationID); err != nil {
			return err
		}
	}
	return nil
}

const conversationSelect = `
	SELECT c.id, c.member_a, c.member_b, c.last_message_id, c.last_message_at, c.created_at,
	       m.id, m.sender_id, m.text, m.image, m.status, m.created_at
	FROM conversations c
	LEFT JOIN messages m ON m.id = c.last_message_id
`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanConversation(row rowScanner) (*store.Conversation, error) {
	var (
		conv                  store.Conversation
		lastID                sql.NullString
		lastAt                sql.NullInt64
		created               int64
		msgID, sender, status sql.NullString
		text, image           sql.NullString
		msgCreated            sql.NullInt64
	)
	err := row.Scan(
		&conv.ID, &conv.Members[0], &conv.Members[1], &lastID, &lastAt, &created,
		&msgID, &sender, &text, &image, &status, &msgCreated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("conversation: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	conv.CreatedAt = fromUnix(created)
	if lastID.Valid {
		conv.LastMessageID = &lastID.String
	}
	if lastAt.Valid {
		at := fromUnix(lastAt.Int64)
		conv.LastMessageAt = &at
	}
	if msgID.Valid {
		conv.LastMessage = &store.Message{
			ID:             msgID.String,
			ConversationID: conv.ID,
			SenderID:       sender.String,
			Text:           nullable(text),
			Image:          nullable(image),
			Status:         status.String,
			CreatedAt:      fromUnix(msgCreated.Int64),
		}
	}
	return &conv, nil
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// ==== MessageStore implementation ====

// CreateMessage persists a message. The schema rejects messages with neither text nor image.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *store.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	msg.CreatedAt = fromUnix(toUnix(msg.CreatedAt))

	query := `
		INSERT INTO messages (id, conversation_id, sender_id, text, image, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Text, msg.Image, msg.Status, toUnix(msg.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListMessages returns up to limit newest messages, oldest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, conversation_id, sender_id, text, image, status, created_at
		FROM (
			SELECT * FROM messages
			WHERE conversation_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []*store.Message
	for rows.Next() {
		var (
			msg         store.Message
			text, image sql.NullString
			created     int64
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &text, &image, &msg.Status, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Text = nullable(text)
		msg.Image = nullable(image)
		msg.CreatedAt = fromUnix(created)
		msgs = append(msgs, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

// MarkConversationRead flips every unread message from senderID in one statement.
func (s *SQLiteStore) MarkConversationRead(ctx context.Context, conversationID, senderID string) (int64, error) {
	query := `
		UPDATE messages
		SET status = 'read'
		WHERE conversation_id = ? AND sender_id = ? AND status != 'read'
	`
	result, err := s.db.ExecContext(ctx, query, conversationID, senderID)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}
