package classifier

import (
	"context"
	"time"

	"github.com/SimulatorML/zeroInbox/internal/models"
)

// Status describes how a single classification attempt ended. Everything
// except StatusOK is non-fatal: the batch keeps going and the caller decides
// what to do with the failed message.
type Status string

const (
	StatusOK                Status = "ok"
	StatusEmptyInput        Status = "empty-input"
	StatusTimeout           Status = "timeout"
	StatusUpstreamError     Status = "upstream-error"
	StatusUnrecognizedLabel Status = "unrecognized-label"
)

// Outcome is the per-message result of a classification batch. Category is
// set only when Status is StatusOK; Detail carries the failure description
// otherwise.
type Outcome struct {
	Message          models.Message
	Category         string
	Status           Status
	Detail           string
	PromptTokens     int
	CompletionTokens int
	Elapsed          time.Duration
}

// Classifier maps free text to one label out of a closed candidate set.
// The returned slice is index-aligned with messages; an empty batch yields
// exactly one StatusEmptyInput outcome.
type Classifier interface {
	Classify(ctx context.Context, labels []string, messages []models.Message) []Outcome
}
