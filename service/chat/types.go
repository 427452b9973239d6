package chat

import (
	"context"

	"github.com/zhihao1021/tjoy/module/chat/model"
	"github.com/zhihao1021/tjoy/tools/ids"
)

// Store persists messages and answers membership queries.
type Store interface {
	// SaveMessage writes m atomically; on error nothing is left behind.
	SaveMessage(ctx context.Context, m model.Message) (model.Message, error)
	MembersOfConversation(ctx context.Context, convID ids.ID) ([]ids.ID, error)
}

type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Authenticator resolves a bearer credential to a user id.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (ids.ID, error)
}

// EventPublisher receives every persisted message. Failures are only logged.
type EventPublisher interface {
	PublishMessage(ctx context.Context, m model.Message) error
}

// Presence mirrors user online state outside the process (e.g. redis).
type Presence interface {
	Online(ctx context.Context, userID ids.ID) error
	Offline(ctx context.Context, userID ids.ID) error
}

type IDGenerator interface {
	Next() (ids.ID, error)
}

// processIDs defers to the process-wide generator at call time so that a
// later ids.SetNodeID still applies.
type processIDs struct{}

func (processIDs) Next() (ids.ID, error) { return ids.Generate() }
