package classifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SimulatorML/zeroInbox/internal/models"
)

type fakeOracle struct {
	respond func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

func (f *fakeOracle) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return f.respond(ctx, req)
}

func newTestClassifier(t *testing.T, oracle *fakeOracle, timeout time.Duration) *GPTClassifier {
	t.Helper()
	c := NewGPTClassifier("test-key", "test-model", 8, 0.1, timeout, "", zap.NewNop())
	c.client = oracle
	return c
}

func completionWith(label string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: label}},
		},
		Usage: openai.Usage{PromptTokens: 42, CompletionTokens: 3},
	}
}

func testMessage(id int, text string) models.Message {
	return models.NewMessage(models.Scope{UserID: 1, ChatID: 10}, id, text)
}

func TestClassifyEmptyInput(t *testing.T) {
	c := newTestClassifier(t, &fakeOracle{}, time.Second)

	outcomes := c.Classify(context.Background(), []string{"work"}, nil)

	require.Len(t, outcomes, 1)
	assert.Equal(t, StatusEmptyInput, outcomes[0].Status)
	assert.Empty(t, outcomes[0].Category)
	assert.Zero(t, outcomes[0].PromptTokens)
	assert.Zero(t, outcomes[0].CompletionTokens)
	assert.Zero(t, outcomes[0].Elapsed)
}

func TestClassifyValidLabel(t *testing.T) {
	oracle := &fakeOracle{
		respond: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			return completionWith(" Work \n"), nil
		},
	}
	c := newTestClassifier(t, oracle, time.Second)

	outcomes := c.Classify(context.Background(), []string{"work", "life"}, []models.Message{testMessage(1, "meeting at 3pm")})

	require.Len(t, outcomes, 1)
	out := outcomes[0]
	assert.Equal(t, StatusOK, out.Status)
	assert.Equal(t, "work", out.Category)
	assert.Equal(t, 42, out.PromptTokens)
	assert.Equal(t, 3, out.CompletionTokens)
	assert.Equal(t, 1, out.Message.MsgID)
}

func TestClassifyUnrecognizedLabel(t *testing.T) {
	oracle := &fakeOracle{
		respond: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			return completionWith("spam"), nil
		},
	}
	c := newTestClassifier(t, oracle, time.Second)

	outcomes := c.Classify(context.Background(), []string{"work", "life"}, []models.Message{testMessage(1, "hello")})

	require.Len(t, outcomes, 1)
	assert.Equal(t, StatusUnrecognizedLabel, outcomes[0].Status)
	assert.Empty(t, outcomes[0].Category)
	assert.Contains(t, outcomes[0].Detail, "spam")
	// The transport-level call succeeded, so token usage is still recorded.
	assert.Equal(t, 42, outcomes[0].PromptTokens)
}

func TestClassifyUpstreamError(t *testing.T) {
	oracle := &fakeOracle{
		respond: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			return openai.ChatCompletionResponse{}, errors.New("rate limited")
		},
	}
	c := newTestClassifier(t, oracle, time.Second)

	outcomes := c.Classify(context.Background(), []string{"work"}, []models.Message{testMessage(1, "hello")})

	require.Len(t, outcomes, 1)
	assert.Equal(t, StatusUpstreamError, outcomes[0].Status)
	assert.Empty(t, outcomes[0].Category)
	assert.Contains(t, outcomes[0].Detail, "rate limited")
}

func TestClassifyTimeout(t *testing.T) {
	oracle := &fakeOracle{
		respond: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			<-ctx.Done()
			return openai.ChatCompletionResponse{}, ctx.Err()
		},
	}
	timeout := 50 * time.Millisecond
	c := newTestClassifier(t, oracle, timeout)

	outcomes := c.Classify(context.Background(), []string{"work"}, []models.Message{testMessage(1, "hello")})

	require.Len(t, outcomes, 1)
	assert.Equal(t, StatusTimeout, outcomes[0].Status)
	assert.Empty(t, outcomes[0].Category)
	assert.GreaterOrEqual(t, outcomes[0].Elapsed, timeout)
	assert.Less(t, outcomes[0].Elapsed, time.Second)
}

func TestClassifyFanOutIsIndependent(t *testing.T) {
	oracle := &fakeOracle{
		respond: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			prompt := req.Messages[0].Content
			if strings.Contains(prompt, "slow one") {
				<-ctx.Done()
				return openai.ChatCompletionResponse{}, ctx.Err()
			}
			if strings.Contains(prompt, "groceries") {
				return completionWith("life"), nil
			}
			return completionWith("work"), nil
		},
	}
	c := newTestClassifier(t, oracle, 50*time.Millisecond)

	messages := []models.Message{
		testMessage(1, "quarterly report"),
		testMessage(2, "slow one"),
		testMessage(3, "groceries for dinner"),
	}

	start := time.Now()
	outcomes := c.Classify(context.Background(), []string{"work", "life"}, messages)
	elapsed := time.Since(start)

	require.Len(t, outcomes, 3)
	// Outcomes are index-aligned with input.
	assert.Equal(t, StatusOK, outcomes[0].Status)
	assert.Equal(t, "work", outcomes[0].Category)
	assert.Equal(t, StatusTimeout, outcomes[1].Status)
	assert.Equal(t, StatusOK, outcomes[2].Status)
	assert.Equal(t, "life", outcomes[2].Category)

	// One slow message must not serialize the batch.
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestClassifyTruncatesLongText(t *testing.T) {
	var captured string
	oracle := &fakeOracle{
		respond: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			captured = req.Messages[0].Content
			return completionWith("work"), nil
		},
	}
	c := newTestClassifier(t, oracle, time.Second)

	text := strings.Repeat("а", maxPromptRunes) + "OVERFLOW"
	outcomes := c.Classify(context.Background(), []string{"work"}, []models.Message{testMessage(1, text)})

	require.Len(t, outcomes, 1)
	assert.Equal(t, StatusOK, outcomes[0].Status)
	assert.Contains(t, captured, strings.Repeat("а", maxPromptRunes))
	assert.NotContains(t, captured, "OVERFLOW")
}
