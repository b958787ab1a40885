package http

import (
	"encoding/json"
	"time"

	"github.com/samber/lo"

	"github.com/vovakirdan/wirechat-dm/internal/core"
	"github.com/vovakirdan/wirechat-dm/internal/proto"
	"github.com/vovakirdan/wirechat-dm/internal/store"
)

// timestampLayout keeps sub-second precision so clients can order messages
// created within the same second.
const timestampLayout = time.RFC3339Nano

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	badPayload := &proto.Error{Code: core.ErrCodeBadRequest, Msg: "malformed " + inbound.Type + " payload"}

	switch inbound.Type {
	case proto.InboundTypeJoin:
		var join proto.JoinData
		if err := decodeData(inbound.Data, &join); err != nil {
			return nil, badPayload
		}
		if join.UserID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "userId is required"}
		}
		return &core.Command{Kind: core.CommandJoin, UserID: join.UserID}, nil
	case proto.InboundTypeSendMessage:
		var msg proto.SendMessageData
		if err := decodeData(inbound.Data, &msg); err != nil {
			return nil, badPayload
		}
		return &core.Command{
			Kind:        core.CommandSendMessage,
			SenderID:    msg.SenderID,
			RecipientID: msg.RecipientID,
			Content:     msg.Content,
			TempID:      msg.TempID,
		}, nil
	case proto.InboundTypeTyping:
		var typing proto.TypingData
		if err := decodeData(inbound.Data, &typing); err != nil {
			return nil, badPayload
		}
		return &core.Command{
			Kind:        core.CommandTyping,
			RecipientID: typing.RecipientID,
			IsTyping:    typing.IsTyping,
		}, nil
	case proto.InboundTypeMarkAsRead:
		var read proto.MarkAsReadData
		if err := decodeData(inbound.Data, &read); err != nil {
			return nil, badPayload
		}
		return &core.Command{Kind: core.CommandMarkAsRead, SenderID: read.SenderID}, nil
	default:
		return nil, &proto.Error{Code: core.ErrCodeInvalidMessage, Msg: "unknown message type"}
	}
}

// decodeData treats a missing data field as an empty object.
func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func toProtoMessage(m *store.Message) proto.Message {
	return proto.Message{
		ID:          m.ID,
		Content:     m.Content,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		CreatedAt:   m.CreatedAt.UTC().Format(timestampLayout),
		Read:        m.Read,
	}
}

func toProtoMessages(msgs []*store.Message) []proto.Message {
	return lo.Map(msgs, func(m *store.Message, _ int) proto.Message {
		return toProtoMessage(m)
	})
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventNewMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameNewMessage,
			Data:  toProtoMessage(event.Message),
		}
	case core.EventMessageConfirmed:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameMessageConfirmed,
			Data: proto.EventMessageConfirmed{
				Message: toProtoMessage(event.Message),
				TempID:  event.TempID,
			},
		}
	case core.EventUserTyping:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameUserTyping,
			Data:  proto.EventUserTyping{UserID: event.User, IsTyping: event.IsTyping},
		}
	case core.EventMessagesRead:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameMessagesRead,
			Data:  proto.EventMessagesRead{ReadBy: event.User},
		}
	case core.EventJoined:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameJoined,
			Data:  proto.EventJoined{UserID: event.User, Superseded: event.Superseded},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: core.ErrCodeInternal, Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
