package messages

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-dm/internal/store"
	"github.com/vovakirdan/wirechat-dm/internal/store/sqlite"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return New(st, 10)
}

type downStore struct{}

func (downStore) InsertMessage(context.Context, *store.Message) error {
	return store.Unavailable("insert message", errors.New("connection refused"))
}

func (downStore) ListConversation(context.Context, string, string, bool) ([]*store.Message, error) {
	return nil, store.Unavailable("list conversation", errors.New("connection refused"))
}

func (downStore) MarkRead(context.Context, string, string) (int64, error) {
	return 0, store.Unavailable("mark read", errors.New("connection refused"))
}

func (downStore) UnreadCounts(context.Context, string) ([]store.UnreadCount, error) {
	return nil, store.Unavailable("unread counts", errors.New("connection refused"))
}

func TestCreate_RejectsInvalidInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name                 string
		sender, recipient, c string
	}{
		{"empty content", "A", "B", ""},
		{"blank content", "A", "B", "  \n\t"},
		{"missing sender", "", "B", "hi"},
		{"missing recipient", "A", " ", "hi"},
		{"nul in id", "A\x00x", "B", "hi"},
		{"padded sender", " A", "B", "hi"},
		{"padded recipient", "A", "B ", "hi"},
		{"too long", "A", "B", strings.Repeat("x", 11)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tc.sender, tc.recipient, tc.c); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}

	history, err := svc.Conversation(ctx, "A", "B", false)
	require.NoError(t, err)
	require.Empty(t, history, "rejected messages must not be persisted")
}

func TestCreate_AssignsIDAndTimestamp(t *testing.T) {
	req := require.New(t)
	svc := newTestService(t)
	fixed := time.Date(2026, 3, 4, 5, 6, 7, 8, time.UTC)
	svc.now = func() time.Time { return fixed }

	// Content limit counts runes, not bytes.
	msg, err := svc.Create(context.Background(), "A", "B", "héllo wörld")
	req.Error(err)
	req.Nil(msg)

	msg, err = svc.Create(context.Background(), "A", "B", "héllo")
	req.NoError(err)
	req.NotEmpty(msg.ID)
	req.Equal(fixed, msg.CreatedAt)
	req.False(msg.Read)

	other, err := svc.Create(context.Background(), "A", "B", "again")
	req.NoError(err)
	req.NotEqual(msg.ID, other.ID)
}

func TestConversation_MarksIncomingReadOnRequest(t *testing.T) {
	req := require.New(t)
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "A", "B", "hello")
	req.NoError(err)

	peek, err := svc.Conversation(ctx, "B", "A", false)
	req.NoError(err)
	req.Len(peek, 1)
	req.False(peek[0].Read)

	seen, err := svc.Conversation(ctx, "B", "A", true)
	req.NoError(err)
	req.Len(seen, 1)
	req.True(seen[0].Read)
	req.Equal("hello", seen[0].Content)
}

func TestConversation_RequiresBothUsers(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.Conversation(context.Background(), "", "A", true); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestStoreFailuresAreRetryable(t *testing.T) {
	svc := New(downStore{}, 0)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "A", "B", "hi"); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, err := svc.Conversation(ctx, "A", "B", true); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
