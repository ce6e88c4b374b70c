package models

// UnknownCategory is the default fallback bucket. It is created eagerly for
// every scope on first contact and is the category of a message until
// classification assigns a real one.
const UnknownCategory = "unknown"

// Scope is the (user, chat) pair that partitions topics, messages and
// topic mappings.
type Scope struct {
	UserID int64 `json:"user_id"`
	ChatID int64 `json:"chat_id"`
}

// Message represents a user message with its classification state.
// Embedding and Category stay at their zero values until the message has
// been through the routing pipeline.
type Message struct {
	Scope     Scope     `json:"scope"`
	MsgID     int       `json:"msg_id"`
	Text      string    `json:"text"`
	TopicID   int64     `json:"topic_id"`
	Category  string    `json:"category"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// NewMessage creates an unclassified message in the unknown bucket.
func NewMessage(scope Scope, msgID int, text string) Message {
	return Message{
		Scope:    scope,
		MsgID:    msgID,
		Text:     text,
		Category: UnknownCategory,
	}
}

// SimilarMessage pairs a stored message with its cosine similarity to a
// query embedding.
type SimilarMessage struct {
	Message
	Similarity float64 `json:"similarity"`
}
