package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoin        = "join"
	InboundTypeSendMessage = "sendMessage"
	InboundTypeTyping      = "typing"
	InboundTypeMarkAsRead  = "markAsRead"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventNameNewMessage       = "newMessage"
	EventNameMessageConfirmed = "messageConfirmed"
	EventNameUserTyping       = "userTyping"
	EventNameMessagesRead     = "messagesRead"
	EventNameJoined           = "joined"
)

// JoinData announces which user this connection belongs to.
type JoinData struct {
	UserID string `json:"userId"`
}

// SendMessageData is a direct message from the client.
type SendMessageData struct {
	RecipientID string `json:"recipientId"`
	Content     string `json:"content"`
	SenderID    string `json:"senderId,omitempty"`
	TempID      string `json:"tempId,omitempty"`
}

// TypingData reports that the user started or stopped typing.
type TypingData struct {
	RecipientID string `json:"recipientId"`
	IsTyping    bool   `json:"isTyping"`
}

// MarkAsReadData acknowledges every message received from SenderID.
type MarkAsReadData struct {
	SenderID string `json:"senderId"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Message is the wire form of a persisted message on both the REST API and
// the live channel.
type Message struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
	CreatedAt   string `json:"createdAt"`
	Read        bool   `json:"read"`
}

// EventMessageConfirmed returns the stored record to the sender.
type EventMessageConfirmed struct {
	Message
	TempID string `json:"tempId,omitempty"`
}

// EventUserTyping notifies a recipient about a typing user.
type EventUserTyping struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// EventMessagesRead tells a sender who read their messages.
type EventMessagesRead struct {
	ReadBy string `json:"readBy"`
}

// EventJoined acknowledges a join.
type EventJoined struct {
	UserID     string `json:"userId"`
	Superseded bool   `json:"superseded"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
