package routing

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SimulatorML/zeroInbox/internal/classifier"
	"github.com/SimulatorML/zeroInbox/internal/embedding"
	"github.com/SimulatorML/zeroInbox/internal/models"
	"github.com/SimulatorML/zeroInbox/internal/storage"
	"github.com/SimulatorML/zeroInbox/internal/transport"
)

// State is a stop on the per-message routing pipeline. A message walks
// received -> embedding-computed -> label-resolved -> category-ensured ->
// persisted -> relocated; rejected, aborted and partial-relocation are
// terminal.
type State string

const (
	StateReceived          State = "received"
	StateEmbeddingComputed State = "embedding-computed"
	StateLabelResolved     State = "label-resolved"
	StateCategoryEnsured   State = "category-ensured"
	StatePersisted         State = "persisted"
	StateRelocated         State = "relocated"

	// StatePartialRelocation means the forward succeeded but deleting the
	// original failed: the message now exists at both source and
	// destination. Classification itself succeeded.
	StatePartialRelocation State = "partial-relocation"
	// StateRejected means the scope has no topics; user-visible, not retried.
	StateRejected State = "rejected"
	// StateAborted means classification or persistence failed; the original
	// message is left unmoved.
	StateAborted State = "aborted"
)

// Result is what the caller gets back per routed message. Reason is set for
// the failure states and is suitable for direct display.
type Result struct {
	State    State
	Category string
	TopicID  int64
	Reason   string
}

// Engine orchestrates classification and topic routing. All collaborators
// are capability interfaces; nothing here is fatal to the process.
type Engine struct {
	catalog     storage.TopicCatalog
	vectors     storage.VectorStore
	transport   transport.Transport
	classifier  classifier.Classifier
	embedder    embedding.Embedder
	defaultTopK int
	logger      *zap.Logger
}

func NewEngine(
	catalog storage.TopicCatalog,
	vectors storage.VectorStore,
	tr transport.Transport,
	clf classifier.Classifier,
	embedder embedding.Embedder,
	defaultTopK int,
	logger *zap.Logger,
) *Engine {
	if defaultTopK <= 0 {
		defaultTopK = 3
	}
	return &Engine{
		catalog:     catalog,
		vectors:     vectors,
		transport:   tr,
		classifier:  clf,
		embedder:    embedder,
		defaultTopK: defaultTopK,
		logger:      logger,
	}
}

// Route runs one inbound message through the pipeline: embed, snapshot the
// topic set, classify against it, persist, relocate.
func (e *Engine) Route(ctx context.Context, msg models.Message) Result {
	log := e.logger.With(
		zap.String("route_id", uuid.New().String()),
		zap.Int("msg_id", msg.MsgID),
		zap.Int64("user_id", msg.Scope.UserID),
		zap.Int64("chat_id", msg.Scope.ChatID))

	// received -> embedding-computed. Search indexing is independent of
	// category assignment, so this happens before anything can fail.
	emb, err := e.embedder.Encode(ctx, msg.Text)
	if err != nil {
		log.Error("Failed to compute embedding", zap.Error(err))
		return Result{State: StateAborted, Reason: "could not compute the message embedding"}
	}
	msg.Embedding = emb

	topics, err := e.catalog.GetTopics(ctx, msg.Scope)
	if err != nil {
		log.Error("Failed to load topics", zap.Error(err))
		return Result{State: StateAborted, Reason: "could not load the topic list"}
	}
	if len(topics) == 0 {
		return Result{State: StateRejected, Reason: "no topics exist yet, create one with /add_topic"}
	}

	labels := make([]string, 0, len(topics))
	for name := range topics {
		labels = append(labels, name)
	}
	sort.Strings(labels)

	// embedding-computed -> label-resolved
	out := e.classifier.Classify(ctx, labels, []models.Message{msg})[0]
	if out.Status != classifier.StatusOK {
		log.Error("Classification failed",
			zap.String("status", string(out.Status)),
			zap.String("detail", out.Detail))
		return Result{State: StateAborted, Reason: fmt.Sprintf("classification failed: %s", out.Status)}
	}

	// label-resolved -> category-ensured. The topic set was snapshotted
	// above; a label missing from that snapshot means a concurrent deletion
	// won, and routing fails closed instead of misfiling into unknown.
	topicID, ok := topics[out.Category]
	if !ok {
		log.Error("Predicted category vanished from topic set", zap.String("category", out.Category))
		return Result{State: StateAborted, Reason: fmt.Sprintf("category %q no longer exists", out.Category)}
	}
	msg.Category = out.Category
	msg.TopicID = topicID

	// category-ensured -> persisted. Duplicate ids are no-ops in the store.
	failed, err := e.vectors.SaveMessages(ctx, []models.Message{msg})
	if err != nil || failed > 0 {
		log.Error("Failed to persist classified message",
			zap.Error(err),
			zap.Int("failed_rows", failed))
		return Result{State: StateAborted, Category: out.Category, Reason: "could not save the classified message"}
	}

	log.Info("Message classified",
		zap.String("category", out.Category),
		zap.Int("prompt_tokens", out.PromptTokens),
		zap.Int("completion_tokens", out.CompletionTokens),
		zap.Duration("elapsed", out.Elapsed))

	// persisted -> relocated
	return e.relocate(ctx, log, msg.Scope, msg.MsgID, topicID, out.Category)
}

// relocate forwards the message into the topic thread and deletes the
// original. A failed delete after a successful forward leaves the message
// duplicated, which is surfaced as its own terminal state.
func (e *Engine) relocate(ctx context.Context, log *zap.Logger, scope models.Scope, msgID int, topicID int64, category string) Result {
	if _, err := e.transport.ForwardMessage(ctx, scope, topicID, msgID); err != nil {
		log.Error("Failed to forward message", zap.Error(err), zap.Int64("topic_id", topicID))
		return Result{
			State:    StateAborted,
			Category: category,
			TopicID:  topicID,
			Reason:   fmt.Sprintf("could not move the message to %q", category),
		}
	}

	if err := e.transport.DeleteMessage(ctx, scope, msgID); err != nil {
		log.Warn("Original message left in place after forward", zap.Error(err))
		return Result{
			State:    StatePartialRelocation,
			Category: category,
			TopicID:  topicID,
			Reason:   fmt.Sprintf("message copied to %q but the original could not be removed", category),
		}
	}

	return Result{State: StateRelocated, Category: category, TopicID: topicID}
}

// SearchMessages embeds the pattern and returns the topK most similar
// stored messages for the scope.
func (e *Engine) SearchMessages(ctx context.Context, scope models.Scope, pattern string, topK int) ([]models.SimilarMessage, error) {
	if topK <= 0 {
		topK = e.defaultTopK
	}

	emb, err := e.embedder.Encode(ctx, normalizeText(pattern))
	if err != nil {
		return nil, fmt.Errorf("error embedding search pattern: %w", err)
	}

	results, err := e.vectors.SearchSimilar(ctx, scope, emb, topK)
	if err != nil {
		return nil, fmt.Errorf("error searching similar messages: %w", err)
	}
	return results, nil
}
