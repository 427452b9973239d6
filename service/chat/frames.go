package chat

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/zhihao1021/tjoy/module/chat/model"
	"github.com/zhihao1021/tjoy/tools/ids"
)

// 帧类型
const (
	FrameMessage = "message"
	FramePing    = "ping"
	FramePong    = "pong"
)

// InboundFrame is a client -> server text frame.
//
//	{"type":"message","conversation_id":"<id>","content":"..."}
//	{"type":"ping"}
type InboundFrame struct {
	Type           string `json:"type"`
	ConversationID ids.ID `json:"conversation_id,omitempty"`
	Content        string `json:"content,omitempty"`
}

// OutboundFrame is a server -> client text frame.
type OutboundFrame struct {
	Type    string         `json:"type"`
	Message *model.Message `json:"message,omitempty"`
	TS      int64          `json:"ts,omitempty"`
}

func ParseFrame(raw []byte) (*InboundFrame, error) {
	f := &InboundFrame{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, fmt.Errorf("unmarshal frame failed: %w", err)
	}
	if f.Type == "" {
		return nil, fmt.Errorf("frame without type")
	}
	return f, nil
}

// EncodeMessageFrame renders m once so fan-out can share the bytes.
func EncodeMessageFrame(m model.Message) ([]byte, error) {
	return json.Marshal(OutboundFrame{Type: FrameMessage, Message: &m})
}

func EncodePong(ts int64) ([]byte, error) {
	return json.Marshal(OutboundFrame{Type: FramePong, TS: ts})
}
