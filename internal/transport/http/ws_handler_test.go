package http

import (
	stdhttp "net/http"
	"testing"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-dm/internal/config"
	"github.com/vovakirdan/wirechat-dm/internal/core"
	"github.com/vovakirdan/wirechat-dm/internal/proto"
)

func TestWebSocketJoinAndMessage(t *testing.T) {
	ts := startTestServer(t, nil)

	alice := ts.dial(t)
	bob := ts.dial(t)

	joined := alice.join(t, "alice")
	require.Equal(t, proto.EventJoined{UserID: "alice", Superseded: false}, joined)
	bob.join(t, "bob")

	alice.send(t, proto.InboundTypeSendMessage, proto.SendMessageData{
		RecipientID: "bob",
		Content:     "hi there",
		TempID:      "tmp-1",
	})

	var confirmed proto.EventMessageConfirmed
	alice.readEvent(t, proto.EventNameMessageConfirmed, &confirmed)
	require.Equal(t, "tmp-1", confirmed.TempID)
	require.NotEmpty(t, confirmed.ID)
	require.Equal(t, "alice", confirmed.SenderID)

	var incoming proto.Message
	bob.readEvent(t, proto.EventNameNewMessage, &incoming)
	require.Equal(t, confirmed.ID, incoming.ID)
	require.Equal(t, "hi there", incoming.Content)
	require.Equal(t, "bob", incoming.RecipientID)
	require.False(t, incoming.Read)

	bob.send(t, proto.InboundTypeTyping, proto.TypingData{RecipientID: "alice", IsTyping: true})
	var typing proto.EventUserTyping
	alice.readEvent(t, proto.EventNameUserTyping, &typing)
	require.Equal(t, proto.EventUserTyping{UserID: "bob", IsTyping: true}, typing)

	bob.send(t, proto.InboundTypeMarkAsRead, proto.MarkAsReadData{SenderID: "alice"})
	var read proto.EventMessagesRead
	alice.readEvent(t, proto.EventNameMessagesRead, &read)
	require.Equal(t, "bob", read.ReadBy)

	resp := ts.get(t, "/unread/bob")
	var unread []UnreadCountResponse
	decodeBody(t, resp, &unread)
	require.Empty(t, unread)
}

func TestWebSocketSendRequiresJoin(t *testing.T) {
	ts := startTestServer(t, nil)

	c := ts.dial(t)
	c.send(t, proto.InboundTypeSendMessage, proto.SendMessageData{RecipientID: "bob", Content: "hi"})

	protoErr := c.readError(t)
	require.Equal(t, core.ErrCodeNotJoined, protoErr.Code)

	c.send(t, proto.InboundTypeJoin, proto.JoinData{})
	protoErr = c.readError(t)
	require.Equal(t, core.ErrCodeBadRequest, protoErr.Code)
}

func TestWebSocketBadFramesKeepConnection(t *testing.T) {
	ts := startTestServer(t, nil)

	c := ts.dial(t)
	require.NoError(t, c.conn.Write(c.ctx, websocket.MessageText, []byte("not json")))
	require.Equal(t, core.ErrCodeInvalidMessage, c.readError(t).Code)

	c.send(t, "dance", struct{}{})
	require.Equal(t, core.ErrCodeInvalidMessage, c.readError(t).Code)

	c.join(t, "alice")
	c.send(t, proto.InboundTypeSendMessage, proto.SendMessageData{RecipientID: "bob", Content: "  "})
	require.Equal(t, core.ErrCodeValidation, c.readError(t).Code)

	c.send(t, proto.InboundTypeSendMessage, proto.SendMessageData{SenderID: "mallory", RecipientID: "bob", Content: "hi"})
	require.Equal(t, core.ErrCodeBadRequest, c.readError(t).Code)
}

func TestWebSocketRejoinSupersedes(t *testing.T) {
	ts := startTestServer(t, nil)

	first := ts.dial(t)
	first.join(t, "alice")

	second := ts.dial(t)
	joined := second.join(t, "alice")
	require.True(t, joined.Superseded)

	resp := ts.postJSON(t, "/message", SendMessageRequest{SenderID: "bob", RecipientID: "alice", Content: "which tab?"})
	require.Equal(t, stdhttp.StatusCreated, resp.StatusCode)

	var incoming proto.Message
	second.readEvent(t, proto.EventNameNewMessage, &incoming)
	require.Equal(t, "which tab?", incoming.Content)

	// closing the superseded connection must not take alice offline
	require.NoError(t, first.conn.Close(websocket.StatusNormalClosure, "bye"))
	ts.waitOnline(t, "alice", true)

	require.NoError(t, second.conn.Close(websocket.StatusNormalClosure, "bye"))
	ts.waitOnline(t, "alice", false)
}

func TestWebSocketReceivesMessagesSentOverAPI(t *testing.T) {
	ts := startTestServer(t, nil)

	bob := ts.dial(t)
	bob.join(t, "bob")

	resp := ts.postJSON(t, "/message", SendMessageRequest{SenderID: "alice", RecipientID: "bob", Content: "from rest"})
	require.Equal(t, stdhttp.StatusCreated, resp.StatusCode)

	var created proto.Message
	decodeBody(t, resp, &created)

	var incoming proto.Message
	bob.readEvent(t, proto.EventNameNewMessage, &incoming)
	require.Equal(t, created.ID, incoming.ID)

	bob.send(t, proto.InboundTypeMarkAsRead, proto.MarkAsReadData{SenderID: "alice"})
	bob.send(t, proto.InboundTypeTyping, proto.TypingData{RecipientID: "bob", IsTyping: false})

	// typing to self proves the mark-read command was processed first
	var typing proto.EventUserTyping
	bob.readEvent(t, proto.EventNameUserTyping, &typing)

	resp = ts.get(t, "/unread/bob")
	var unread []UnreadCountResponse
	decodeBody(t, resp, &unread)
	require.Empty(t, unread)
}

func TestWebSocketRateLimit(t *testing.T) {
	ts := startTestServer(t, func(cfg *config.Config) {
		cfg.MessagesPerMinute = 2
	})

	c := ts.dial(t)
	c.join(t, "alice")

	for i := 0; i < 3; i++ {
		c.send(t, proto.InboundTypeTyping, proto.TypingData{RecipientID: "nobody", IsTyping: true})
	}
	require.Equal(t, core.ErrCodeRateLimited, c.readError(t).Code)
}
