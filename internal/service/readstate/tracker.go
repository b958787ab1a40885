package readstate

import (
	"context"
	"fmt"

	"github.com/vovakirdan/wirechat-dm/internal/service/messages"
	"github.com/vovakirdan/wirechat-dm/internal/store"
)

// Tracker answers read/unread questions. It holds no state of its own; every
// mutation goes through the message store.
type Tracker struct {
	store store.MessageStore
}

// New creates a read-state tracker over st.
func New(st store.MessageStore) *Tracker {
	return &Tracker{store: st}
}

// MarkRead marks every unread message from senderID to recipientID as read.
// It is idempotent and returns how many messages changed.
func (t *Tracker) MarkRead(ctx context.Context, senderID, recipientID string) (int64, error) {
	if err := messages.ValidateUserID("senderId", senderID); err != nil {
		return 0, err
	}
	if err := messages.ValidateUserID("recipientId", recipientID); err != nil {
		return 0, err
	}

	n, err := t.store.MarkRead(ctx, senderID, recipientID)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return n, nil
}

// UnreadCounts returns, per sender, how many messages recipientID has not read.
func (t *Tracker) UnreadCounts(ctx context.Context, recipientID string) ([]store.UnreadCount, error) {
	if err := messages.ValidateUserID("userId", recipientID); err != nil {
		return nil, err
	}

	counts, err := t.store.UnreadCounts(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("unread counts: %w", err)
	}
	return counts, nil
}
