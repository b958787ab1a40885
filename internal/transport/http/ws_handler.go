package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-dm/internal/core"
	"github.com/vovakirdan/wirechat-dm/internal/proto"
)

const writeTimeout = 10 * time.Second

// WSOptions tunes live connections.
type WSOptions struct {
	// ReadLimit caps the size of one inbound frame in bytes.
	ReadLimit int64
	// PingInterval is how often the peer is pinged. Zero disables pings.
	PingInterval time.Duration
	// MessagesPerMinute caps commands per connection. Zero disables the limit.
	MessagesPerMinute int
}

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	gateway *core.Gateway
	opts    WSOptions
	log     *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(gateway *core.Gateway, opts WSOptions, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{gateway: gateway, opts: opts, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	if h.opts.ReadLimit > 0 {
		conn.SetReadLimit(h.opts.ReadLimit)
	}

	client := h.gateway.Connect()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errCh := make(chan error, 3)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.pingLoop(ctx, conn)
	}()

	err = <-errCh
	cancel() // stop the other goroutines
	<-errCh
	<-errCh

	status, reason, cause := closeReason(err)
	// the request context is done by now; presence cleanup must still run
	h.gateway.Disconnect(context.Background(), client, cause)
	_ = conn.Close(status, reason)
}

// closeReason maps the error that ended a connection to a close frame and
// the cause worth logging, if any.
func closeReason(err error) (websocket.StatusCode, string, error) {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return websocket.StatusNormalClosure, "closing", nil
	}
	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
		return websocket.StatusNormalClosure, "closing", nil
	}
	if status == -1 {
		status = websocket.StatusInternalError
	}
	return status, err.Error(), err
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.opts.MessagesPerMinute)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			h.log.Debug().Err(err).Str("conn_id", client.ID).Msg("failed to decode inbound")
			client.Push(errorEvent(core.ErrCodeInvalidMessage, "message is not valid JSON"))
			continue
		}

		cmd, protoErr := inboundToCommand(inbound)
		if protoErr != nil {
			client.Push(errorEvent(protoErr.Code, protoErr.Msg))
			continue
		}
		if cmd.Kind != core.CommandJoin && !limiter.allow() {
			client.Push(errorEvent(core.ErrCodeRateLimited, "too many messages, slow down"))
			continue
		}

		h.gateway.Handle(ctx, client, cmd)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event := <-client.Events:
			if err := h.write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Debug().Err(err).Str("conn_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) write(ctx context.Context, conn *websocket.Conn, out proto.Outbound) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, out)
}

// pingLoop evicts peers that stop answering pings.
func (h *WSHandler) pingLoop(ctx context.Context, conn *websocket.Conn) error {
	if h.opts.PingInterval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, h.opts.PingInterval)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func errorEvent(code, msg string) *core.Event {
	return &core.Event{Kind: core.EventError, Error: core.NewError(code, msg)}
}
