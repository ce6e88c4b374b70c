package storage

import (
	"context"
	"errors"

	"github.com/SimulatorML/zeroInbox/internal/models"
)

// ErrTopicNotFound is returned by TopicCatalog.GetTopicID when no topic in
// the scope carries the given name. It is a lookup miss, not a store error.
var ErrTopicNotFound = errors.New("topic not found")

// TopicCatalog is the per-scope mapping from topic name to remote thread id.
// Names are matched case-insensitively and stored lowercased.
type TopicCatalog interface {
	GetTopicID(ctx context.Context, scope models.Scope, name string) (int64, error)
	// GetTopics returns lowercased name -> thread id. An empty map means the
	// scope has no topics yet, which is a valid state.
	GetTopics(ctx context.Context, scope models.Scope) (map[string]int64, error)
	// AddTopic is idempotent: inserting a duplicate (scope, name) is a no-op.
	AddTopic(ctx context.Context, scope models.Scope, topicID int64, name string) error
	// RenameTopic reports false when topicID matched no row in the scope.
	RenameTopic(ctx context.Context, scope models.Scope, topicID int64, newName string) (bool, error)
	// DeleteTopic removes the topic and, in the same transaction, every
	// message routed to it.
	DeleteTopic(ctx context.Context, scope models.Scope, topicID int64) error
}

// VectorStore persists classified messages with their embeddings and answers
// top-k cosine-similarity queries.
type VectorStore interface {
	// SaveMessages bulk-inserts messages. A duplicate (scope, msg_id) is
	// silently skipped: the first write wins. The returned count is the
	// number of individually failed rows; partial success is expected.
	SaveMessages(ctx context.Context, messages []models.Message) (int, error)
	// SearchSimilar returns up to topK stored messages ordered by descending
	// cosine similarity to the query vector. An empty scope yields an empty
	// slice, not an error.
	SearchSimilar(ctx context.Context, scope models.Scope, vector []float32, topK int) ([]models.SimilarMessage, error)
}

type Storage interface {
	TopicCatalog
	VectorStore
	Close() error
}
