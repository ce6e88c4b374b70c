package transport

import (
	"context"

	"github.com/SimulatorML/zeroInbox/internal/models"
)

// Transport is the chat-side capability surface the routing engine depends
// on: forum-topic lifecycle plus the two primitives relocation is built
// from. Thread ids are opaque handles assigned by the remote side.
type Transport interface {
	CreateTopic(ctx context.Context, scope models.Scope, name string) (int64, error)
	RenameTopic(ctx context.Context, scope models.Scope, topicID int64, newName string) error
	DeleteTopic(ctx context.Context, scope models.Scope, topicID int64) error
	// ForwardMessage copies the message into the topic thread and returns
	// the id of the copy.
	ForwardMessage(ctx context.Context, scope models.Scope, topicID int64, msgID int) (int, error)
	DeleteMessage(ctx context.Context, scope models.Scope, msgID int) error
}
