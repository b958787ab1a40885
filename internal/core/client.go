package core

import (
	"sync"
	"sync/atomic"
)

// DefaultSendBuffer is the outbound event buffer used when none is configured.
const DefaultSendBuffer = 32

// ConnState is the lifecycle position of one live connection.
type ConnState int32

const (
	// StateConnecting is a connection that has not joined yet.
	StateConnecting ConnState = iota
	// StateJoined is a connection registered as its user's live handle.
	StateJoined
	// StateSuperseded is a joined connection whose user joined again elsewhere.
	StateSuperseded
	// StateDisconnected is a connection that has been torn down.
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateSuperseded:
		return "superseded"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Client is one live connection as seen by the core layer. It is the
// connection handle stored in the presence registry.
type Client struct {
	ID     string
	Events chan *Event

	state atomic.Int32

	mu     sync.RWMutex
	userID string
}

// NewClient constructs a client in the connecting state.
func NewClient(id string, sendBuffer int) *Client {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	return &Client{
		ID:     id,
		Events: make(chan *Event, sendBuffer),
	}
}

// UserID returns the user this connection last joined as, or "".
func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// State returns the current lifecycle state.
func (c *Client) State() ConnState {
	return ConnState(c.state.Load())
}

// Push queues an event without blocking. It reports false when the event was
// dropped because the connection is gone or its buffer is full.
func (c *Client) Push(ev *Event) bool {
	if c.State() == StateDisconnected {
		return false
	}
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}

// setJoined is called by the hub only.
func (c *Client) setJoined(userID string) {
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()
	c.state.Store(int32(StateJoined))
}

// setState is called by the hub only.
func (c *Client) setState(s ConnState) {
	c.state.Store(int32(s))
}
