package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable marks failures of the durable backend. Callers may retry.
var ErrUnavailable = errors.New("message store unavailable")

// Unavailable wraps a backend error so that errors.Is(err, ErrUnavailable) holds.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// Message represents a persisted direct message.
// Everything except Read is immutable once stored.
type Message struct {
	ID          string
	SenderID    string
	RecipientID string
	Content     string
	CreatedAt   time.Time
	Read        bool
}

// UnreadCount is the number of unread messages from one sender to a recipient.
type UnreadCount struct {
	SenderID string
	Count    int
}

// MessageStore handles message persistence.
type MessageStore interface {
	// InsertMessage persists a fully populated message. ID and CreatedAt are
	// assigned by the caller; the insert either succeeds as a whole or not at all.
	InsertMessage(ctx context.Context, msg *Message) error

	// ListConversation returns all messages between userA and userB in either
	// direction, ordered by CreatedAt ascending (insertion order on ties).
	// If markRead is set, unread messages from userB to userA are marked read
	// in the same transaction and returned with Read set.
	ListConversation(ctx context.Context, userA, userB string, markRead bool) ([]*Message, error)

	// MarkRead sets Read on every unread message from senderID to recipientID
	// and returns how many messages changed.
	MarkRead(ctx context.Context, senderID, recipientID string) (int64, error)

	// UnreadCounts groups unread messages addressed to recipientID by sender.
	// Senders with no unread messages are omitted; results are sorted by SenderID.
	UnreadCounts(ctx context.Context, recipientID string) ([]UnreadCount, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	MessageStore

	// Close closes the underlying database.
	Close() error
}
