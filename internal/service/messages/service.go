package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/vovakirdan/wirechat-dm/internal/store"
)

// DefaultMaxContentLength bounds message content when no limit is configured.
const DefaultMaxContentLength = 4000

// ErrValidation is returned for malformed input. It is never worth retrying.
var ErrValidation = errors.New("validation failed")

// Service validates and persists direct messages.
type Service struct {
	store      store.MessageStore
	maxContent int
	now        func() time.Time
}

// New creates a message service. maxContent <= 0 selects DefaultMaxContentLength.
func New(st store.MessageStore, maxContent int) *Service {
	if maxContent <= 0 {
		maxContent = DefaultMaxContentLength
	}
	return &Service{
		store:      st,
		maxContent: maxContent,
		now:        time.Now,
	}
}

// Create validates the message, assigns its id and timestamp and persists it.
// The returned message is the authoritative record.
func (s *Service) Create(ctx context.Context, senderID, recipientID, content string) (*store.Message, error) {
	if err := ValidateUserID("senderId", senderID); err != nil {
		return nil, err
	}
	if err := ValidateUserID("recipientId", recipientID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrValidation)
	}
	if utf8.RuneCountInString(content) > s.maxContent {
		return nil, fmt.Errorf("%w: content exceeds %d characters", ErrValidation, s.maxContent)
	}

	msg := &store.Message{
		ID:          uuid.NewString(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
		CreatedAt:   s.now().UTC(),
		Read:        false,
	}
	if err := s.store.InsertMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}

	return msg, nil
}

// Conversation returns the history between userID and peerID, oldest first.
//
// Fetching history is not side-effect free: with markRead set, every unread
// message from peerID to userID is marked read and returned as read.
func (s *Service) Conversation(ctx context.Context, userID, peerID string, markRead bool) ([]*store.Message, error) {
	if err := ValidateUserID("currentUserId", userID); err != nil {
		return nil, err
	}
	if err := ValidateUserID("recipientId", peerID); err != nil {
		return nil, err
	}

	history, err := s.store.ListConversation(ctx, userID, peerID, markRead)
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	return history, nil
}

// ValidateUserID rejects empty identifiers, ones containing NUL and ones with
// surrounding whitespace. Identifiers are compared byte for byte and never
// normalized.
func ValidateUserID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: %s is required", ErrValidation, field)
	}
	if strings.TrimSpace(id) != id {
		return fmt.Errorf("%w: %s must not start or end with whitespace", ErrValidation, field)
	}
	if strings.ContainsRune(id, 0) {
		return fmt.Errorf("%w: %s contains invalid characters", ErrValidation, field)
	}
	return nil
}
