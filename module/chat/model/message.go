package model

import (
	"time"

	"github.com/zhihao1021/tjoy/tools/ids"
)

const (
	MessageTableName          = "messages"
	ConversationUserTableName = "conversation_users"
)

// Message 一条会话消息，落库后不可变。
// CreatedAt 由 ID 的时间戳推出（见 ids.ID.Time）。
type Message struct {
	ID                ids.ID    `json:"id" bson:"_id"`
	AuthorID          ids.ID    `json:"author_id" bson:"author_id"`
	ConversationID    ids.ID    `json:"conversation_id" bson:"conversation_id"`
	Content           string    `json:"content" bson:"content"`
	TranslatedContent string    `json:"translated_content" bson:"translated_content"` // 翻译失败时为空
	CreatedAt         time.Time `json:"created_at" bson:"created_at"`
}

// NewMessage builds a message whose creation time is the instant encoded in id.
func NewMessage(id, authorID, convID ids.ID, content, translated string) Message {
	return Message{
		ID:                id,
		AuthorID:          authorID,
		ConversationID:    convID,
		Content:           content,
		TranslatedContent: translated,
		CreatedAt:         id.Time().UTC(),
	}
}

// ConversationUser 会话成员关系（多对多）
type ConversationUser struct {
	UserID         ids.ID `bson:"user_id"`
	ConversationID ids.ID `bson:"conversation_id"`
}
