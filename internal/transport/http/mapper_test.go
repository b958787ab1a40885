package http

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-dm/internal/core"
	"github.com/vovakirdan/wirechat-dm/internal/proto"
	"github.com/vovakirdan/wirechat-dm/internal/store"
)

func TestOutboundEventNames(t *testing.T) {
	msg := &store.Message{
		ID:          "m1",
		SenderID:    "alice",
		RecipientID: "bob",
		Content:     "hi",
		CreatedAt:   time.Date(2024, 1, 2, 3, 4, 5, 600, time.UTC),
	}

	cases := []struct {
		event *core.Event
		name  string
		data  any
	}{
		{&core.Event{Kind: core.EventNewMessage, Message: msg}, proto.EventNameNewMessage, toProtoMessage(msg)},
		{
			&core.Event{Kind: core.EventMessageConfirmed, Message: msg, TempID: "tmp"},
			proto.EventNameMessageConfirmed,
			proto.EventMessageConfirmed{Message: toProtoMessage(msg), TempID: "tmp"},
		},
		{
			&core.Event{Kind: core.EventUserTyping, User: "alice", IsTyping: true},
			proto.EventNameUserTyping,
			proto.EventUserTyping{UserID: "alice", IsTyping: true},
		},
		{
			&core.Event{Kind: core.EventMessagesRead, User: "bob"},
			proto.EventNameMessagesRead,
			proto.EventMessagesRead{ReadBy: "bob"},
		},
		{
			&core.Event{Kind: core.EventJoined, User: "alice", Superseded: true},
			proto.EventNameJoined,
			proto.EventJoined{UserID: "alice", Superseded: true},
		},
	}

	for _, tc := range cases {
		out := outboundFromEvent(tc.event)
		require.Equal(t, proto.OutboundTypeEvent, out.Type)
		require.Equal(t, tc.name, out.Event)
		require.Equal(t, tc.event.Kind.String(), out.Event)
		require.Equal(t, tc.data, out.Data)
	}

	require.Equal(t, "2024-01-02T03:04:05.0000006Z", toProtoMessage(msg).CreatedAt)
}

func TestOutboundErrorEvent(t *testing.T) {
	out := outboundFromEvent(errorEvent(core.ErrCodeNotJoined, "join first"))
	require.Equal(t, proto.OutboundTypeError, out.Type)
	require.Equal(t, &proto.Error{Code: core.ErrCodeNotJoined, Msg: "join first"}, out.Error)
}
