package core

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-dm/internal/store"
)

// MessageCreator persists new messages. It is implemented by the messages service.
type MessageCreator interface {
	Create(ctx context.Context, senderID, recipientID, content string) (*store.Message, error)
}

// ReadMarker marks messages as read. It is implemented by the read-state tracker.
type ReadMarker interface {
	MarkRead(ctx context.Context, senderID, recipientID string) (int64, error)
}

// Outgoing is a message a user wants to send.
type Outgoing struct {
	SenderID    string
	RecipientID string
	Content     string

	// TempID is the client's placeholder id, echoed in the confirmation.
	TempID string

	// Origin is the connection the message arrived on, if any. It receives the
	// confirmation; otherwise the sender's registered handle does.
	Origin *Client
}

// Delivery reports what the relay managed to push for one message.
type Delivery struct {
	Message   *store.Message
	Delivered bool // recipient received newMessage
	Confirmed bool // sender received messageConfirmed
}

// Relay turns persisted messages and presence signals into live pushes.
// Every push is best effort; an offline or slow recipient is not an error.
type Relay struct {
	hub      Hub
	messages MessageCreator
	reads    ReadMarker
	log      *zerolog.Logger
}

// NewRelay creates a delivery relay.
func NewRelay(hub Hub, messages MessageCreator, reads ReadMarker, logger *zerolog.Logger) *Relay {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Relay{
		hub:      hub,
		messages: messages,
		reads:    reads,
		log:      logger,
	}
}

// Send is the single ingestion path for both the REST API and the live
// channel: the message is persisted first and relayed only once stored.
func (r *Relay) Send(ctx context.Context, out Outgoing) (*Delivery, error) {
	msg, err := r.messages.Create(ctx, out.SenderID, out.RecipientID, out.Content)
	if err != nil {
		return nil, err
	}
	return r.Deliver(ctx, msg, out.TempID, out.Origin), nil
}

// Deliver pushes newMessage to the recipient if online and messageConfirmed
// to the sender if online.
func (r *Relay) Deliver(ctx context.Context, msg *store.Message, tempID string, origin *Client) *Delivery {
	d := &Delivery{Message: msg}

	if handle, ok := r.hub.HandleFor(ctx, msg.RecipientID); ok {
		d.Delivered = r.push(handle, &Event{Kind: EventNewMessage, Message: msg})
	} else {
		r.log.Debug().
			Str("message_id", msg.ID).
			Str("recipient_id", msg.RecipientID).
			Msg("recipient offline, message kept for history")
	}

	confirmTo := origin
	if confirmTo == nil || confirmTo.State() == StateDisconnected {
		confirmTo, _ = r.hub.HandleFor(ctx, msg.SenderID)
	}
	if confirmTo != nil {
		d.Confirmed = r.push(confirmTo, &Event{Kind: EventMessageConfirmed, Message: msg, TempID: tempID})
	}

	return d
}

// Typing forwards a typing indicator. It never touches the store and reports
// whether the recipient was online.
func (r *Relay) Typing(ctx context.Context, fromUserID, recipientID string, isTyping bool) bool {
	handle, ok := r.hub.HandleFor(ctx, recipientID)
	if !ok {
		return false
	}
	return r.push(handle, &Event{Kind: EventUserTyping, User: fromUserID, IsTyping: isTyping})
}

// MarkAsRead marks senderID's messages to readerID as read and, if senderID
// is online, tells them who read their messages.
func (r *Relay) MarkAsRead(ctx context.Context, readerID, senderID string) (int64, error) {
	n, err := r.reads.MarkRead(ctx, senderID, readerID)
	if err != nil {
		return 0, fmt.Errorf("mark as read: %w", err)
	}

	if handle, ok := r.hub.HandleFor(ctx, senderID); ok {
		r.push(handle, &Event{Kind: EventMessagesRead, User: readerID})
	}
	return n, nil
}

func (r *Relay) push(c *Client, ev *Event) bool {
	if c.Push(ev) {
		return true
	}
	r.log.Debug().
		Str("conn_id", c.ID).
		Str("user_id", c.UserID()).
		Stringer("event", ev.Kind).
		Msg("dropped push to unavailable connection")
	return false
}
