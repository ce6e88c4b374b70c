package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/SimulatorML/zeroInbox/internal/models"
)

// maxPromptRunes caps how much of a message reaches the oracle. Cropping is
// lossy: only the first 1024 runes influence the predicted label.
const maxPromptRunes = 1024

const defaultTimeout = 5 * time.Second

const defaultPromptTemplate = `You are sorting chat messages into folders.
Pick exactly one category for the message below from this list: %s.
Reply with the category name only, nothing else.

Message: %s`

// completionAPI is the slice of the OpenAI client the classifier needs,
// kept small so tests can substitute the oracle.
type completionAPI interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type GPTClassifier struct {
	client      completionAPI
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	template    string
	logger      *zap.Logger
}

func NewGPTClassifier(apiKey string, model string, maxTokens int, temperature float64, timeout time.Duration, template string, logger *zap.Logger) *GPTClassifier {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if template == "" {
		template = defaultPromptTemplate
	}
	return &GPTClassifier{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		timeout:     timeout,
		template:    template,
		logger:      logger,
	}
}

// Classify fans the batch out to the oracle, one goroutine per message, each
// writing its outcome into the slot matching its input position. A timeout
// or error on one message never cancels or delays its siblings.
func (c *GPTClassifier) Classify(ctx context.Context, labels []string, messages []models.Message) []Outcome {
	if len(messages) == 0 {
		return []Outcome{{Status: StatusEmptyInput}}
	}

	valid := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		valid[strings.ToLower(strings.TrimSpace(l))] = struct{}{}
	}

	outcomes := make([]Outcome, len(messages))

	var wg sync.WaitGroup
	for i, msg := range messages {
		wg.Add(1)
		go func(i int, msg models.Message) {
			defer wg.Done()
			outcomes[i] = c.classifyOne(ctx, labels, valid, msg)
		}(i, msg)
	}
	wg.Wait()

	return outcomes
}

func (c *GPTClassifier) classifyOne(ctx context.Context, labels []string, valid map[string]struct{}, msg models.Message) Outcome {
	start := time.Now()
	out := Outcome{Message: msg}

	text := msg.Text
	if runes := []rune(text); len(runes) > maxPromptRunes {
		text = string(runes[:maxPromptRunes])
	}
	prompt := fmt.Sprintf(c.template, strings.Join(labels, ", "), text)

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: float32(c.temperature),
	})
	out.Elapsed = time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			out.Status = StatusTimeout
			out.Detail = fmt.Sprintf("no oracle response within %s", c.timeout)
			c.logger.Error("Classification timed out",
				zap.Int("msg_id", msg.MsgID),
				zap.Duration("timeout", c.timeout))
		} else {
			out.Status = StatusUpstreamError
			out.Detail = err.Error()
			c.logger.Error("Failed to get oracle response",
				zap.Error(err),
				zap.Int("msg_id", msg.MsgID))
		}
		return out
	}

	out.PromptTokens = resp.Usage.PromptTokens
	out.CompletionTokens = resp.Usage.CompletionTokens

	if len(resp.Choices) == 0 {
		out.Status = StatusUpstreamError
		out.Detail = "oracle returned no choices"
		return out
	}

	raw := resp.Choices[0].Message.Content
	label := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := valid[label]; !ok {
		out.Status = StatusUnrecognizedLabel
		out.Detail = fmt.Sprintf("oracle returned %q, which is not a known category", raw)
		c.logger.Error("Unrecognized oracle label",
			zap.String("label", raw),
			zap.Int("msg_id", msg.MsgID))
		return out
	}

	out.Status = StatusOK
	out.Category = label
	return out
}
