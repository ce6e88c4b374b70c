package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SimulatorML/zeroInbox/internal/models"
)

func testScope() models.Scope {
	return models.Scope{UserID: 1, ChatID: 10}
}

func storedMessage(scope models.Scope, msgID int, text string, topicID int64, emb []float32) models.Message {
	msg := models.NewMessage(scope, msgID, text)
	msg.TopicID = topicID
	msg.Embedding = emb
	return msg
}

func TestAddTopicIsIdempotent(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	scope := testScope()

	require.NoError(t, s.AddTopic(ctx, scope, 1, "work"))
	require.NoError(t, s.AddTopic(ctx, scope, 2, "work"))

	topics, err := s.GetTopics(ctx, scope)
	require.NoError(t, err)
	require.Len(t, topics, 1)
	// First write wins.
	assert.Equal(t, int64(1), topics["work"])
}

func TestGetTopicIDCaseInsensitive(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	scope := testScope()

	require.NoError(t, s.AddTopic(ctx, scope, 1, "Work"))

	id, err := s.GetTopicID(ctx, scope, "WORK")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	_, err = s.GetTopicID(ctx, scope, "life")
	assert.ErrorIs(t, err, ErrTopicNotFound)
}

func TestGetTopicsEmptyScope(t *testing.T) {
	s := NewMemoryStorage()

	topics, err := s.GetTopics(context.Background(), testScope())
	require.NoError(t, err)
	assert.Empty(t, topics)
}

func TestTopicsAreScoped(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, s.AddTopic(ctx, models.Scope{UserID: 1, ChatID: 10}, 1, "work"))

	_, err := s.GetTopicID(ctx, models.Scope{UserID: 2, ChatID: 10}, "work")
	assert.ErrorIs(t, err, ErrTopicNotFound)
}

func TestRenameTopic(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	scope := testScope()

	require.NoError(t, s.AddTopic(ctx, scope, 1, "work"))

	renamed, err := s.RenameTopic(ctx, scope, 1, "office")
	require.NoError(t, err)
	assert.True(t, renamed)

	id, err := s.GetTopicID(ctx, scope, "office")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	_, err = s.GetTopicID(ctx, scope, "work")
	assert.ErrorIs(t, err, ErrTopicNotFound)

	// Rename of a nonexistent id affects nothing and reports it.
	renamed, err = s.RenameTopic(ctx, scope, 99, "ghost")
	require.NoError(t, err)
	assert.False(t, renamed)
}

func TestSaveMessagesFirstWriteWins(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	scope := testScope()

	failed, err := s.SaveMessages(ctx, []models.Message{
		storedMessage(scope, 1, "first", 1, []float32{1, 0}),
	})
	require.NoError(t, err)
	assert.Zero(t, failed)

	failed, err = s.SaveMessages(ctx, []models.Message{
		storedMessage(scope, 1, "second", 2, []float32{0, 1}),
	})
	require.NoError(t, err)
	assert.Zero(t, failed)

	results, err := s.SearchSimilar(ctx, scope, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "first", results[0].Text)
}

func TestDeleteTopicCascades(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	scope := testScope()

	require.NoError(t, s.AddTopic(ctx, scope, 1, "work"))
	require.NoError(t, s.AddTopic(ctx, scope, 2, "life"))

	_, err := s.SaveMessages(ctx, []models.Message{
		storedMessage(scope, 1, "a", 1, []float32{1, 0}),
		storedMessage(scope, 2, "b", 1, []float32{1, 0}),
		storedMessage(scope, 3, "c", 1, []float32{1, 0}),
		storedMessage(scope, 4, "d", 2, []float32{0, 1}),
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteTopic(ctx, scope, 1))

	_, err = s.GetTopicID(ctx, scope, "work")
	assert.ErrorIs(t, err, ErrTopicNotFound)

	results, err := s.SearchSimilar(ctx, scope, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d", results[0].Text)
}

func TestSearchSimilarOrderingAndLimit(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	scope := testScope()

	_, err := s.SaveMessages(ctx, []models.Message{
		storedMessage(scope, 1, "orthogonal", 1, []float32{0, 1}),
		storedMessage(scope, 2, "exact", 1, []float32{1, 0}),
		storedMessage(scope, 3, "close", 1, []float32{0.9, 0.1}),
	})
	require.NoError(t, err)

	results, err := s.SearchSimilar(ctx, scope, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "exact", results[0].Text)
	assert.Equal(t, "close", results[1].Text)
	assert.GreaterOrEqual(t, results[0].Similarity, results[1].Similarity)
}

func TestSearchSimilarEmptyScope(t *testing.T) {
	s := NewMemoryStorage()

	results, err := s.SearchSimilar(context.Background(), testScope(), []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	// Mismatched or empty vectors never panic.
	assert.Zero(t, cosineSimilarity([]float32{1, 0}, []float32{1}))
	assert.Zero(t, cosineSimilarity(nil, nil))
}
