package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoin registers the connection as the live handle for a user.
	CommandJoin CommandKind = iota
	// CommandSendMessage persists a direct message and relays it.
	CommandSendMessage
	// CommandTyping forwards a typing indicator to the recipient.
	CommandTyping
	// CommandMarkAsRead marks messages from a sender as read.
	CommandMarkAsRead
)

// Command represents an action requested by a client on the live channel.
type Command struct {
	Kind CommandKind

	// UserID is the identity announced by CommandJoin.
	UserID string

	// SenderID is optional for CommandSendMessage (it must match the joined
	// user) and names whose messages were read for CommandMarkAsRead.
	SenderID    string
	RecipientID string
	Content     string
	TempID      string
	IsTyping    bool
}
