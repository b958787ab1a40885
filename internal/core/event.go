package core

import "github.com/vovakirdan/wirechat-dm/internal/store"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventNewMessage delivers a persisted message to its recipient.
	EventNewMessage EventKind = iota
	// EventMessageConfirmed returns the authoritative record to the sender.
	EventMessageConfirmed
	// EventUserTyping tells a recipient that User is (or stopped) typing.
	EventUserTyping
	// EventMessagesRead tells a sender that User read their messages.
	EventMessagesRead
	// EventJoined acknowledges a join on the joining connection.
	EventJoined
	// EventError notifies clients about a domain error.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventNewMessage:
		return "newMessage"
	case EventMessageConfirmed:
		return "messageConfirmed"
	case EventUserTyping:
		return "userTyping"
	case EventMessagesRead:
		return "messagesRead"
	case EventJoined:
		return "joined"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in the system.
// Events are shared between goroutines and must not be mutated after Push.
type Event struct {
	Kind EventKind

	// User is the typing user, the reader, or the joined user depending on Kind.
	User string

	Message    *store.Message
	TempID     string
	IsTyping   bool
	Superseded bool
	Error      *CoreError
}
