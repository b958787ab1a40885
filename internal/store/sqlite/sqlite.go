package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/wirechat-dm/internal/store"
)

const schema = `
	CREATE TABLE IF NOT EXISTS messages (
		seq          INTEGER PRIMARY KEY AUTOINCREMENT,
		id           TEXT    NOT NULL UNIQUE,
		sender_id    TEXT    NOT NULL,
		recipient_id TEXT    NOT NULL,
		content      TEXT    NOT NULL,
		created_at   INTEGER NOT NULL,
		is_read      INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, recipient_id, is_read);
	CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(recipient_id, is_read);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the SQLite database at dbPath and applies the schema.
// ":memory:" gives a private in-memory database.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertMessage persists a message to storage.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *store.Message) error {
	query := `
		INSERT INTO messages (id, sender_id, recipient_id, content, created_at, is_read)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.SenderID,
		msg.RecipientID,
		msg.Content,
		msg.CreatedAt.UnixNano(),
		msg.Read,
	)
	if err != nil {
		return store.Unavailable("insert message", err)
	}
	return nil
}

// ListConversation retrieves the history between two users.
func (s *SQLiteStore) ListConversation(ctx context.Context, userA, userB string, markRead bool) ([]*store.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, store.Unavailable("begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after a successful commit
	}()

	if markRead {
		if _, err := tx.ExecContext(ctx, markReadQuery, userB, userA); err != nil {
			return nil, store.Unavailable("mark conversation read", err)
		}
	}

	query := `
		SELECT id, sender_id, recipient_id, content, created_at, is_read
		FROM messages
		WHERE (sender_id = ? AND recipient_id = ?)
		   OR (sender_id = ? AND recipient_id = ?)
		ORDER BY created_at ASC, seq ASC
	`
	rows, err := tx.QueryContext(ctx, query, userA, userB, userB, userA)
	if err != nil {
		return nil, store.Unavailable("query conversation", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	for rows.Next() {
		var msg store.Message
		var createdAt int64
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.RecipientID, &msg.Content, &createdAt, &msg.Read); err != nil {
			return nil, store.Unavailable("scan message", err)
		}
		msg.CreatedAt = time.Unix(0, createdAt).UTC()
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable("iterate conversation", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, store.Unavailable("commit transaction", err)
	}

	return messages, nil
}

const markReadQuery = `
	UPDATE messages
	SET is_read = 1
	WHERE sender_id = ? AND recipient_id = ? AND is_read = 0
`

// MarkRead marks all unread messages from sender to recipient as read.
func (s *SQLiteStore) MarkRead(ctx context.Context, senderID, recipientID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, markReadQuery, senderID, recipientID)
	if err != nil {
		return 0, store.Unavailable("mark read", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, store.Unavailable("get rows affected", err)
	}
	return n, nil
}

// UnreadCounts aggregates unread messages for a recipient by sender.
func (s *SQLiteStore) UnreadCounts(ctx context.Context, recipientID string) ([]store.UnreadCount, error) {
	query := `
		SELECT sender_id, COUNT(*)
		FROM messages
		WHERE recipient_id = ? AND is_read = 0
		GROUP BY sender_id
		ORDER BY sender_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, recipientID)
	if err != nil {
		return nil, store.Unavailable("query unread counts", err)
	}
	defer rows.Close()

	counts := make([]store.UnreadCount, 0)
	for rows.Next() {
		var c store.UnreadCount
		if err := rows.Scan(&c.SenderID, &c.Count); err != nil {
			return nil, store.Unavailable("scan unread count", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable("iterate unread counts", err)
	}

	return counts, nil
}

// Ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)
