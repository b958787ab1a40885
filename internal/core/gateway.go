package core

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-dm/internal/service/messages"
)

// Gateway manages the lifecycle of live connections:
// Connecting -> Joined(userId) -> {Disconnected | Superseded}.
// Reconnection is a new connection performing a fresh join.
type Gateway struct {
	hub        Hub
	relay      *Relay
	sendBuffer int
	log        *zerolog.Logger
}

// NewGateway creates a connection gateway.
func NewGateway(hub Hub, relay *Relay, sendBuffer int, logger *zerolog.Logger) *Gateway {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Gateway{
		hub:        hub,
		relay:      relay,
		sendBuffer: sendBuffer,
		log:        logger,
	}
}

// Connect allocates a handle for a freshly established connection.
func (g *Gateway) Connect() *Client {
	client := NewClient(uuid.NewString(), g.sendBuffer)
	g.log.Debug().Str("conn_id", client.ID).Msg("connection opened")
	return client
}

// Handle executes one command from client. Failures are reported to client
// as error events and never affect other connections.
func (g *Gateway) Handle(ctx context.Context, client *Client, cmd *Command) {
	var err error
	switch cmd.Kind {
	case CommandJoin:
		err = g.join(ctx, client, cmd.UserID)
	case CommandSendMessage:
		err = g.sendMessage(ctx, client, cmd)
	case CommandTyping:
		err = g.typing(ctx, client, cmd)
	case CommandMarkAsRead:
		err = g.markAsRead(ctx, client, cmd)
	default:
		err = coreError(ErrCodeInvalidMessage, "unknown command")
	}

	if err != nil {
		ce := ErrorFor(err)
		if ce.Code == ErrCodeInternal || ce.Code == ErrCodeStoreUnavailable {
			g.log.Error().Err(err).Str("conn_id", client.ID).Str("user_id", client.UserID()).Msg("command failed")
		}
		client.Push(&Event{Kind: EventError, Error: ce})
	}
}

// Disconnect tears client down. cause is the transport error, if any; it is
// logged and goes no further.
func (g *Gateway) Disconnect(ctx context.Context, client *Client, cause error) {
	removed, err := g.hub.Disconnect(ctx, client)

	ev := g.log.Info()
	if cause != nil {
		ev = g.log.Warn().Err(cause)
	}
	if err != nil && !errors.Is(err, ErrHubStopped) {
		ev = ev.AnErr("hub_error", err)
	}
	ev.Str("conn_id", client.ID).
		Str("user_id", client.UserID()).
		Bool("presence_removed", removed).
		Msg("connection closed")
}

func (g *Gateway) join(ctx context.Context, client *Client, userID string) error {
	if err := messages.ValidateUserID("userId", userID); err != nil {
		return err
	}

	superseded, err := g.hub.Join(ctx, client, userID)
	if err != nil {
		return err
	}

	g.log.Info().Str("conn_id", client.ID).Str("user_id", userID).Bool("superseded", superseded).Msg("user joined")
	client.Push(&Event{Kind: EventJoined, User: userID, Superseded: superseded})
	return nil
}

func (g *Gateway) joinedUser(client *Client) (string, error) {
	userID := client.UserID()
	if userID == "" {
		return "", ErrNotJoined
	}
	return userID, nil
}

func (g *Gateway) sendMessage(ctx context.Context, client *Client, cmd *Command) error {
	userID, err := g.joinedUser(client)
	if err != nil {
		return err
	}
	if cmd.SenderID != "" && cmd.SenderID != userID {
		return ErrSenderMismatch
	}

	d, err := g.relay.Send(ctx, Outgoing{
		SenderID:    userID,
		RecipientID: cmd.RecipientID,
		Content:     cmd.Content,
		TempID:      cmd.TempID,
		Origin:      client,
	})
	if err != nil {
		return err
	}

	g.log.Debug().
		Str("message_id", d.Message.ID).
		Str("user_id", userID).
		Str("recipient_id", d.Message.RecipientID).
		Bool("delivered", d.Delivered).
		Msg("message sent over live channel")
	return nil
}

func (g *Gateway) typing(ctx context.Context, client *Client, cmd *Command) error {
	userID, err := g.joinedUser(client)
	if err != nil {
		return err
	}
	if err := messages.ValidateUserID("recipientId", cmd.RecipientID); err != nil {
		return err
	}
	g.relay.Typing(ctx, userID, cmd.RecipientID, cmd.IsTyping)
	return nil
}

func (g *Gateway) markAsRead(ctx context.Context, client *Client, cmd *Command) error {
	userID, err := g.joinedUser(client)
	if err != nil {
		return err
	}
	_, err = g.relay.MarkAsRead(ctx, userID, cmd.SenderID)
	return err
}
