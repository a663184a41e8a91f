package http

import (
	"encoding/json"
	"fmt"

	"github.com/samber/lo"

	"github.com/vovakirdan/pairchat-server/internal/auth"
	"github.com/vovakirdan/pairchat-server/internal/core"
	"github.com/vovakirdan/pairchat-server/internal/proto"
)

// inboundToCommand decodes and validates one client frame. A non-nil proto.Error
// is reported back to the client and the connection stays open; a non-nil error
// means the frame could not be decoded at all.
func inboundToCommand(claims *auth.Claims, inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeAddUser:
		var data proto.AddUserData
		if perr, err := decode(inbound.Data, &data); perr != nil || err != nil {
			return nil, perr, err
		}
		if claims != nil && claims.UserID() != data.UserID {
			return nil, &proto.Error{Code: core.ErrCodeUnauthorized, Msg: "userId does not match token"}, nil
		}
		return &core.Command{Kind: core.CommandAddUser, UserID: data.UserID}, nil, nil

	case proto.InboundTypeSendMessage:
		var data proto.SendMessageData
		if perr, err := decode(inbound.Data, &data); perr != nil || err != nil {
			return nil, perr, err
		}
		return &core.Command{
			Kind: core.CommandSendMessage,
			Send: core.SendRequest{
				SenderID:       data.SenderID,
				ReceiverID:     data.ReceiverID,
				ConversationID: data.ConversationID,
				Text:           data.Text,
				Image:          data.Image,
				TempID:         data.TempID,
			},
		}, nil, nil

	case proto.InboundTypeTypingStart, proto.InboundTypeTypingStop:
		var data proto.TypingData
		if perr, err := decode(inbound.Data, &data); perr != nil || err != nil {
			return nil, perr, err
		}
		kind := core.CommandTypingStart
		if inbound.Type == proto.InboundTypeTypingStop {
			kind = core.CommandTypingStop
		}
		return &core.Command{Kind: kind, ConversationID: data.ConversationID, ReceiverID: data.ReceiverID}, nil, nil

	case proto.InboundTypeMarkAsRead:
		var data proto.MarkAsReadData
		if perr, err := decode(inbound.Data, &data); perr != nil || err != nil {
			return nil, perr, err
		}
		return &core.Command{Kind: core.CommandMarkAsRead, ConversationID: data.ConversationID, ReceiverID: data.ReceiverID}, nil, nil

	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}
}

func decode(raw json.RawMessage, into any) (*proto.Error, error) {
	if err := json.Unmarshal(raw, into); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if err := proto.Validate(into); err != nil {
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: err.Error()}, nil
	}
	return nil, nil
}

func messagePayload(m *core.Message) proto.MessagePayload {
	return proto.MessagePayload{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Text:           m.Text,
		Image:          m.Image,
		Status:         string(m.Status),
		CreatedAt:      m.CreatedAt,
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventPresence:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventGetUsers,
			Data: lo.Map(event.Users, func(id string, _ int) proto.PresenceUser {
				return proto.PresenceUser{UserID: id}
			}),
		}
	case core.EventReceiveMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventReceiveMessage,
			Data:  messagePayload(event.Message),
		}
	case core.EventTypingStart, core.EventTypingStop:
		name := proto.EventTypingStart
		if event.Kind == core.EventTypingStop {
			name = proto.EventTypingStop
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: name,
			Data:  proto.ConversationRef{ConversationID: event.ConversationID},
		}
	case core.EventMessagesRead:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessagesRead,
			Data:  proto.ConversationRef{ConversationID: event.ConversationID},
		}
	case core.EventMessageAck:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageAck,
			Data:  proto.MessageAck{TempID: event.TempID, Message: messagePayload(event.Message)},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message, TempID: event.TempID},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
