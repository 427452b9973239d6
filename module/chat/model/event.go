package model

import (
	"github.com/zhihao1021/tjoy/tools/ids"
)

const (
	EventMessageCreated    = "message.created"
	EventMembershipChanged = "membership.changed"
)

// MessageEvent 消息落库后对外广播
type MessageEvent struct {
	Type    string  `json:"type"`
	Node    int64   `json:"node"` // 产生事件的网关实例
	Message Message `json:"message"`
}

func NewMessageEvent(node int64, m Message) MessageEvent {
	return MessageEvent{Type: EventMessageCreated, Node: node, Message: m}
}

// MembershipEvent is emitted by whoever edits conversation_users so gateways
// can drop their cached member list.
type MembershipEvent struct {
	Type           string `json:"type"`
	ConversationID ids.ID `json:"conversation_id"`
}
