package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-dm/internal/store"
	"github.com/vovakirdan/wirechat-dm/internal/store/storetest"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := New(":memory:", nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return st
}

func TestConformance(t *testing.T) {
	storetest.Run(t, newTestStore)
}

func TestInsertDuplicateID(t *testing.T) {
	req := require.New(t)
	st := newTestStore(t)
	defer st.Close()

	ctx := context.Background()
	msg := &store.Message{ID: "dup", SenderID: "A", RecipientID: "B", Content: "x", CreatedAt: time.Now()}
	req.NoError(st.InsertMessage(ctx, msg))

	err := st.InsertMessage(ctx, msg)
	req.ErrorIs(err, ErrDuplicateID)

	history, err := st.ListConversation(ctx, "A", "B", false)
	req.NoError(err)
	req.Len(history, 1)
}

func TestPersistsAcrossReopen(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	ctx := context.Background()

	st, err := New(dir, nil)
	req.NoError(err)
	req.NoError(st.InsertMessage(ctx, &store.Message{ID: "1", SenderID: "A", RecipientID: "B", Content: "kept", CreatedAt: time.Now()}))
	req.NoError(st.Close())

	reopened, err := New(dir, nil)
	req.NoError(err)
	defer reopened.Close()

	history, err := reopened.ListConversation(ctx, "B", "A", true)
	req.NoError(err)
	req.Len(history, 1)
	req.Equal("kept", history[0].Content)
	req.True(history[0].Read)

	// Messages inserted after reopening still sort after the old ones.
	req.NoError(reopened.InsertMessage(ctx, &store.Message{ID: "2", SenderID: "A", RecipientID: "B", Content: "later", CreatedAt: time.Now()}))
	history, err = reopened.ListConversation(ctx, "A", "B", false)
	req.NoError(err)
	req.Len(history, 2)
	req.Equal("later", history[1].Content)
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.Close())

	_, err := st.UnreadCounts(context.Background(), "B")
	if !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
