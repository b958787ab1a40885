package core

import (
	"context"

	"github.com/rs/zerolog"
)

// Hub owns the presence registry: the process-wide mapping from user id to
// that user's live connection. Nothing here survives a restart, so no durable
// invariant may depend on it.
//
// All operations are serialized through the goroutine started by Run, which
// makes join, disconnect and lookup linearizable.
type Hub interface {
	// Run processes registry operations until ctx is done. Call it once.
	Run(ctx context.Context)

	// Join installs client as the live handle for userID, replacing any
	// previous handle (last join wins). A client that was joined as another
	// user gives up that entry. It reports whether a different connection
	// was superseded.
	Join(ctx context.Context, client *Client, userID string) (superseded bool, err error)

	// Disconnect marks client as gone and removes its entry only if the entry
	// still points at client. It reports whether an entry was removed.
	Disconnect(ctx context.Context, client *Client) (removed bool, err error)

	// HandleFor returns the live handle for userID, if any.
	HandleFor(ctx context.Context, userID string) (*Client, bool)

	// IsOnline reports whether userID has a live handle.
	IsOnline(ctx context.Context, userID string) bool
}

type opKind int

const (
	opJoin opKind = iota
	opDisconnect
	opLookup
)

type hubOp struct {
	kind   opKind
	userID string
	client *Client
	reply  chan hubResult
}

type hubResult struct {
	client *Client
	ok     bool
}

type hub struct {
	ops     chan hubOp
	done    chan struct{}
	clients map[string]*Client
	log     *zerolog.Logger
}

// NewHub creates a presence hub. logger may be nil.
func NewHub(logger *zerolog.Logger) Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &hub{
		ops:     make(chan hubOp),
		done:    make(chan struct{}),
		clients: make(map[string]*Client),
		log:     logger,
	}
}

func (h *hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.log.Debug().Int("online", len(h.clients)).Msg("presence hub stopped")
			return
		case op := <-h.ops:
			op.reply <- h.apply(op)
		}
	}
}

func (h *hub) apply(op hubOp) hubResult {
	switch op.kind {
	case opJoin:
		return h.join(op.client, op.userID)
	case opDisconnect:
		return h.disconnect(op.client)
	case opLookup:
		c, ok := h.clients[op.userID]
		return hubResult{client: c, ok: ok}
	default:
		return hubResult{}
	}
}

func (h *hub) join(client *Client, userID string) hubResult {
	// Rejoining as someone else releases the old identity.
	if prevUser := client.UserID(); prevUser != "" && prevUser != userID {
		if h.clients[prevUser] == client {
			delete(h.clients, prevUser)
		}
	}

	prev, exists := h.clients[userID]
	superseded := exists && prev != client
	if superseded {
		prev.setState(StateSuperseded)
		h.log.Info().
			Str("user_id", userID).
			Str("conn_id", client.ID).
			Str("superseded_conn_id", prev.ID).
			Msg("presence replaced by newer connection")
	}

	h.clients[userID] = client
	client.setJoined(userID)

	return hubResult{client: prev, ok: superseded}
}

func (h *hub) disconnect(client *Client) hubResult {
	client.setState(StateDisconnected)

	userID := client.UserID()
	if userID == "" || h.clients[userID] != client {
		return hubResult{}
	}
	delete(h.clients, userID)
	return hubResult{client: client, ok: true}
}

func (h *hub) do(ctx context.Context, op hubOp) (hubResult, error) {
	op.reply = make(chan hubResult, 1)

	select {
	case h.ops <- op:
	case <-ctx.Done():
		return hubResult{}, ctx.Err()
	case <-h.done:
		return hubResult{}, ErrHubStopped
	}
	// Run replies to every op it receives.
	return <-op.reply, nil
}

func (h *hub) Join(ctx context.Context, client *Client, userID string) (bool, error) {
	res, err := h.do(ctx, hubOp{kind: opJoin, client: client, userID: userID})
	if err != nil {
		return false, err
	}
	return res.ok, nil
}

func (h *hub) Disconnect(ctx context.Context, client *Client) (bool, error) {
	res, err := h.do(ctx, hubOp{kind: opDisconnect, client: client})
	if err != nil {
		// The registry is gone with the hub; the connection is still closed.
		client.setState(StateDisconnected)
		return false, err
	}
	return res.ok, nil
}

func (h *hub) HandleFor(ctx context.Context, userID string) (*Client, bool) {
	res, err := h.do(ctx, hubOp{kind: opLookup, userID: userID})
	if err != nil {
		return nil, false
	}
	return res.client, res.ok
}

func (h *hub) IsOnline(ctx context.Context, userID string) bool {
	_, ok := h.HandleFor(ctx, userID)
	return ok
}
