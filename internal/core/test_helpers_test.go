package core

import (
	"context"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-dm/internal/service/messages"
	"github.com/vovakirdan/wirechat-dm/internal/service/readstate"
	"github.com/vovakirdan/wirechat-dm/internal/store/sqlite"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// mustNoEvent fails if any event arrives on ch within wait.
func mustNoEvent(t *testing.T, ch <-chan *Event, wait time.Duration) {
	t.Helper()

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %v: %+v", ev.Kind, ev)
	case <-time.After(wait):
	}
}

func startHub(t *testing.T) Hub {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(nil)
	go hub.Run(ctx)
	return hub
}

type testEnv struct {
	hub      Hub
	relay    *Relay
	gateway  *Gateway
	messages *messages.Service
	tracker  *readstate.Tracker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	hub := startHub(t)
	msgs := messages.New(st, 0)
	tracker := readstate.New(st)
	relay := NewRelay(hub, msgs, tracker, nil)

	return &testEnv{
		hub:      hub,
		relay:    relay,
		gateway:  NewGateway(hub, relay, 8, nil),
		messages: msgs,
		tracker:  tracker,
	}
}

// joined connects a client and waits for the join acknowledgment.
func (e *testEnv) joined(t *testing.T, userID string) *Client {
	t.Helper()

	c := e.gateway.Connect()
	e.gateway.Handle(context.Background(), c, &Command{Kind: CommandJoin, UserID: userID})
	mustEvent(t, c.Events, EventJoined)
	return c
}
