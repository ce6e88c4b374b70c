package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/SimulatorML/zeroInbox/internal/models"
)

// Telegram implements Transport on top of the Bot API. The forum-topic
// endpoints postdate the typed v5 surface, so they go through MakeRequest
// with explicit params.
type Telegram struct {
	api    *tgbotapi.BotAPI
	logger *zap.Logger
}

func NewTelegram(api *tgbotapi.BotAPI, logger *zap.Logger) *Telegram {
	return &Telegram{api: api, logger: logger}
}

func (t *Telegram) CreateTopic(ctx context.Context, scope models.Scope, name string) (int64, error) {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", scope.ChatID)
	params["name"] = name

	resp, err := t.api.MakeRequest("createForumTopic", params)
	if err != nil {
		return 0, fmt.Errorf("error creating forum topic %q: %w", name, err)
	}

	var topic struct {
		MessageThreadID int64 `json:"message_thread_id"`
	}
	if err := json.Unmarshal(resp.Result, &topic); err != nil {
		return 0, fmt.Errorf("error decoding forum topic response: %w", err)
	}
	if topic.MessageThreadID == 0 {
		return 0, fmt.Errorf("forum topic response contains no thread id")
	}

	t.logger.Debug("Created forum topic",
		zap.String("name", name),
		zap.Int64("chat_id", scope.ChatID),
		zap.Int64("topic_id", topic.MessageThreadID))

	return topic.MessageThreadID, nil
}

func (t *Telegram) RenameTopic(ctx context.Context, scope models.Scope, topicID int64, newName string) error {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", scope.ChatID)
	params.AddNonZero64("message_thread_id", topicID)
	params["name"] = newName

	if _, err := t.api.MakeRequest("editForumTopic", params); err != nil {
		return fmt.Errorf("error renaming forum topic %d: %w", topicID, err)
	}
	return nil
}

func (t *Telegram) DeleteTopic(ctx context.Context, scope models.Scope, topicID int64) error {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", scope.ChatID)
	params.AddNonZero64("message_thread_id", topicID)

	if _, err := t.api.MakeRequest("deleteForumTopic", params); err != nil {
		return fmt.Errorf("error deleting forum topic %d: %w", topicID, err)
	}
	return nil
}

func (t *Telegram) ForwardMessage(ctx context.Context, scope models.Scope, topicID int64, msgID int) (int, error) {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", scope.ChatID)
	params["from_chat_id"] = strconv.FormatInt(scope.ChatID, 10)
	params.AddNonZero64("message_thread_id", topicID)
	params.AddNonZero("message_id", msgID)

	resp, err := t.api.MakeRequest("forwardMessage", params)
	if err != nil {
		return 0, fmt.Errorf("error forwarding message %d: %w", msgID, err)
	}

	var forwarded struct {
		MessageID int `json:"message_id"`
	}
	if err := json.Unmarshal(resp.Result, &forwarded); err != nil {
		return 0, fmt.Errorf("error decoding forwarded message response: %w", err)
	}
	return forwarded.MessageID, nil
}

func (t *Telegram) DeleteMessage(ctx context.Context, scope models.Scope, msgID int) error {
	if _, err := t.api.Request(tgbotapi.NewDeleteMessage(scope.ChatID, msgID)); err != nil {
		return fmt.Errorf("error deleting message %d: %w", msgID, err)
	}
	return nil
}
