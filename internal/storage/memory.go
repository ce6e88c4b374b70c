package storage

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/SimulatorML/zeroInbox/internal/models"
)

// MemoryStorage mirrors the Postgres contracts without a database: duplicate
// inserts are no-ops, similarity ties keep insertion order. Used by tests
// and the use_in_memory config flag.
type MemoryStorage struct {
	mu       sync.RWMutex
	topics   map[models.Scope]map[string]int64
	messages map[models.Scope][]models.Message
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		topics:   make(map[models.Scope]map[string]int64),
		messages: make(map[models.Scope][]models.Message),
	}
}

func (s *MemoryStorage) GetTopicID(ctx context.Context, scope models.Scope, name string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, exists := s.topics[scope][strings.ToLower(name)]; exists {
		return id, nil
	}
	return 0, ErrTopicNotFound
}

func (s *MemoryStorage) GetTopics(ctx context.Context, scope models.Scope) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	topics := make(map[string]int64, len(s.topics[scope]))
	for name, id := range s.topics[scope] {
		topics[name] = id
	}
	return topics, nil
}

func (s *MemoryStorage) AddTopic(ctx context.Context, scope models.Scope, topicID int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.topics[scope] == nil {
		s.topics[scope] = make(map[string]int64)
	}

	key := strings.ToLower(name)
	if _, exists := s.topics[scope][key]; exists {
		return nil
	}
	s.topics[scope][key] = topicID
	return nil
}

func (s *MemoryStorage) RenameTopic(ctx context.Context, scope models.Scope, topicID int64, newName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, id := range s.topics[scope] {
		if id == topicID {
			delete(s.topics[scope], name)
			s.topics[scope][strings.ToLower(newName)] = topicID
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStorage) DeleteTopic(ctx context.Context, scope models.Scope, topicID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, id := range s.topics[scope] {
		if id == topicID {
			delete(s.topics[scope], name)
			break
		}
	}

	kept := s.messages[scope][:0]
	for _, msg := range s.messages[scope] {
		if msg.TopicID != topicID {
			kept = append(kept, msg)
		}
	}
	s.messages[scope] = kept
	return nil
}

func (s *MemoryStorage) SaveMessages(ctx context.Context, messages []models.Message) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msg := range messages {
		if s.hasMessage(msg.Scope, msg.MsgID) {
			continue
		}
		s.messages[msg.Scope] = append(s.messages[msg.Scope], msg)
	}
	return 0, nil
}

func (s *MemoryStorage) hasMessage(scope models.Scope, msgID int) bool {
	for _, msg := range s.messages[scope] {
		if msg.MsgID == msgID {
			return true
		}
	}
	return false
}

func (s *MemoryStorage) SearchSimilar(ctx context.Context, scope models.Scope, vector []float32, topK int) ([]models.SimilarMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]models.SimilarMessage, 0, len(s.messages[scope]))
	for _, msg := range s.messages[scope] {
		results = append(results, models.SimilarMessage{
			Message:    msg,
			Similarity: cosineSimilarity(vector, msg.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *MemoryStorage) Close() error {
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
