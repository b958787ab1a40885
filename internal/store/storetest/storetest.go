// Package storetest holds the behavior every store.Store driver must share.
package storetest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-dm/internal/store"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, st store.Store)
	}{
		{"InsertAndListConversation", testInsertAndList},
		{"ConversationOrderAndDirection", testConversationOrder},
		{"ListWithoutMarkReadLeavesState", testListWithoutMarkRead},
		{"ListMarksOnlyIncoming", testListMarksOnlyIncoming},
		{"MarkReadIsIdempotent", testMarkReadIdempotent},
		{"UnreadCountsGroupedBySender", testUnreadCounts},
		{"ConcurrentMarkRead", testConcurrentMarkRead},
		{"SelfConversation", testSelfConversation},
		{"LargeUnreadBacklog", testLargeUnreadBacklog},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newStore(t)
			t.Cleanup(func() { _ = st.Close() })
			tt.fn(t, st)
		})
	}
}

var base = time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

func insert(t *testing.T, st store.Store, from, to, content string, at time.Time) *store.Message {
	t.Helper()
	msg := &store.Message{
		ID:          uuid.NewString(),
		SenderID:    from,
		RecipientID: to,
		Content:     content,
		CreatedAt:   at,
	}
	require.NoError(t, st.InsertMessage(context.Background(), msg))
	return msg
}

func testInsertAndList(t *testing.T, st store.Store) {
	req := require.New(t)
	ctx := context.Background()

	sent := insert(t, st, "A", "B", "hello", base)

	history, err := st.ListConversation(ctx, "A", "B", false)
	req.NoError(err)
	req.Len(history, 1)
	req.Equal(sent.ID, history[0].ID)
	req.Equal("hello", history[0].Content)
	req.Equal("A", history[0].SenderID)
	req.Equal("B", history[0].RecipientID)
	req.False(history[0].Read)
	req.True(base.Equal(history[0].CreatedAt))
}

func testConversationOrder(t *testing.T, st store.Store) {
	req := require.New(t)
	ctx := context.Background()

	// Inserted out of time order, with one tie broken by insertion.
	insert(t, st, "A", "B", "third", base.Add(2*time.Second))
	insert(t, st, "B", "A", "first", base)
	insert(t, st, "A", "B", "second", base.Add(time.Second))
	insert(t, st, "B", "A", "second-tie", base.Add(time.Second))
	insert(t, st, "A", "C", "elsewhere", base)

	for _, pair := range [][2]string{{"A", "B"}, {"B", "A"}} {
		history, err := st.ListConversation(ctx, pair[0], pair[1], false)
		req.NoError(err)

		var contents []string
		for _, m := range history {
			contents = append(contents, m.Content)
		}
		req.Equal([]string{"first", "second", "second-tie", "third"}, contents)
	}
}

func testListWithoutMarkRead(t *testing.T, st store.Store) {
	req := require.New(t)
	ctx := context.Background()

	insert(t, st, "A", "B", "hello", base)

	_, err := st.ListConversation(ctx, "B", "A", false)
	req.NoError(err)

	counts, err := st.UnreadCounts(ctx, "B")
	req.NoError(err)
	req.Equal([]store.UnreadCount{{SenderID: "A", Count: 1}}, counts)
}

func testListMarksOnlyIncoming(t *testing.T, st store.Store) {
	req := require.New(t)
	ctx := context.Background()

	insert(t, st, "A", "B", "to B", base)
	insert(t, st, "B", "A", "to A", base.Add(time.Second))

	// B fetches: only A's message to B becomes read.
	history, err := st.ListConversation(ctx, "B", "A", true)
	req.NoError(err)
	req.Len(history, 2)
	req.True(history[0].Read, "incoming message should be returned as read")
	req.False(history[1].Read, "outgoing message must stay unread")

	countsB, err := st.UnreadCounts(ctx, "B")
	req.NoError(err)
	req.Empty(countsB)

	countsA, err := st.UnreadCounts(ctx, "A")
	req.NoError(err)
	req.Equal([]store.UnreadCount{{SenderID: "B", Count: 1}}, countsA)

	// Second fetch sees the same sequence and changes nothing.
	again, err := st.ListConversation(ctx, "B", "A", true)
	req.NoError(err)
	req.Equal(history, again)
}

func testMarkReadIdempotent(t *testing.T, st store.Store) {
	req := require.New(t)
	ctx := context.Background()

	insert(t, st, "A", "B", "one", base)
	insert(t, st, "A", "B", "two", base.Add(time.Second))

	n, err := st.MarkRead(ctx, "A", "B")
	req.NoError(err)
	req.EqualValues(2, n)

	n, err = st.MarkRead(ctx, "A", "B")
	req.NoError(err)
	req.Zero(n)

	counts, err := st.UnreadCounts(ctx, "B")
	req.NoError(err)
	req.Empty(counts)

	// A new message restores the count.
	insert(t, st, "A", "B", "three", base.Add(2*time.Second))
	counts, err = st.UnreadCounts(ctx, "B")
	req.NoError(err)
	req.Equal([]store.UnreadCount{{SenderID: "A", Count: 1}}, counts)
}

func testUnreadCounts(t *testing.T, st store.Store) {
	req := require.New(t)
	ctx := context.Background()

	insert(t, st, "carol", "B", "c1", base)
	insert(t, st, "A", "B", "a1", base)
	insert(t, st, "A", "B", "a2", base.Add(time.Second))
	insert(t, st, "ab", "B", "ab1", base)
	insert(t, st, "A", "D", "not for B", base)
	insert(t, st, "B", "A", "from B", base)

	counts, err := st.UnreadCounts(ctx, "B")
	req.NoError(err)
	req.Equal([]store.UnreadCount{
		{SenderID: "A", Count: 2},
		{SenderID: "ab", Count: 1},
		{SenderID: "carol", Count: 1},
	}, counts)

	empty, err := st.UnreadCounts(ctx, "nobody")
	req.NoError(err)
	req.NotNil(empty)
	req.Empty(empty)
}

func testConcurrentMarkRead(t *testing.T, st store.Store) {
	req := require.New(t)
	ctx := context.Background()

	for i := range 20 {
		insert(t, st, "A", "B", fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Millisecond))
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int64
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := st.MarkRead(ctx, "A", "B")
			if err != nil {
				t.Errorf("mark read: %v", err)
				return
			}
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	req.EqualValues(20, total, "each message must be marked exactly once")
	counts, err := st.UnreadCounts(ctx, "B")
	req.NoError(err)
	req.Empty(counts)
}

func testSelfConversation(t *testing.T, st store.Store) {
	req := require.New(t)
	ctx := context.Background()

	insert(t, st, "A", "A", "note to self", base)

	history, err := st.ListConversation(ctx, "A", "A", true)
	req.NoError(err)
	req.Len(history, 1)
	req.True(history[0].Read)
}

// testLargeUnreadBacklog marks more and bigger messages than fit in a
// single write transaction of the embedded drivers.
func testLargeUnreadBacklog(t *testing.T, st store.Store) {
	ctx := context.Background()
	content := strings.Repeat("x", 16<<10)

	const backlog = 1200
	for i := 0; i < backlog; i++ {
		insert(t, st, "A", "B", content, base.Add(time.Duration(i)*time.Millisecond))
	}

	n, err := st.MarkRead(ctx, "A", "B")
	require.NoError(t, err)
	require.EqualValues(t, backlog, n)

	counts, err := st.UnreadCounts(ctx, "B")
	require.NoError(t, err)
	require.Empty(t, counts)

	for i := 0; i < backlog; i++ {
		insert(t, st, "A", "B", content, base.Add(time.Hour+time.Duration(i)*time.Millisecond))
	}

	msgs, err := st.ListConversation(ctx, "B", "A", true)
	require.NoError(t, err)
	require.Len(t, msgs, 2*backlog)
	for _, m := range msgs {
		require.True(t, m.Read, "message %s left unread", m.ID)
	}

	counts, err = st.UnreadCounts(ctx, "B")
	require.NoError(t, err)
	require.Empty(t, counts)
}
