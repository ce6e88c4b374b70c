package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/SimulatorML/zeroInbox/internal/models"
	"github.com/SimulatorML/zeroInbox/internal/routing"
)

type Bot struct {
	api    *tgbotapi.BotAPI
	engine *routing.Engine
	logger *zap.Logger
}

func New(api *tgbotapi.BotAPI, engine *routing.Engine, logger *zap.Logger) *Bot {
	return &Bot{
		api:    api,
		engine: engine,
		logger: logger,
	}
}

func (b *Bot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		go b.handleMessage(update.Message)
	}

	return nil
}

func (b *Bot) handleMessage(message *tgbotapi.Message) {
	ctx := context.Background()

	if message.From == nil {
		return
	}
	scope := models.Scope{
		UserID: message.From.ID,
		ChatID: message.Chat.ID,
	}

	if message.IsCommand() {
		b.handleCommand(ctx, scope, message)
		return
	}

	// Messages already inside a topic thread arrive as replies to the
	// thread's service message; only loose inbox messages get routed.
	if message.ReplyToMessage != nil {
		return
	}

	if message.Text == "" {
		// Non-text content is filed by its content type rather than
		// classified.
		res := b.engine.MoveMessage(ctx, scope, message.MessageID, contentType(message))
		b.reportFailure(message.Chat.ID, res)
		return
	}

	msg := models.NewMessage(scope, message.MessageID, normalizeText(message.Text))
	res := b.engine.Route(ctx, msg)
	b.reportFailure(message.Chat.ID, res)
}

// reportFailure tells the user why a message stayed put. Successful
// relocations are silent: the message visibly moving is the confirmation.
func (b *Bot) reportFailure(chatID int64, res routing.Result) {
	switch res.State {
	case routing.StateRelocated:
	case routing.StatePartialRelocation:
		b.sendMessage(chatID, "⚠️ "+res.Reason)
	default:
		b.sendMessage(chatID, res.Reason)
	}
}

func (b *Bot) handleCommand(ctx context.Context, scope models.Scope, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(ctx, scope, message)
	case "add_topic":
		b.handleAddTopic(ctx, scope, message)
	case "edit_topic":
		b.handleEditTopic(ctx, scope, message)
	case "del_topic":
		b.handleDelTopic(ctx, scope, message)
	case "search":
		b.handleSearch(ctx, scope, message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /start to see available commands.")
	}
}

func (b *Bot) handleStart(ctx context.Context, scope models.Scope, message *tgbotapi.Message) {
	if err := b.engine.EnsureUnknownTopic(ctx, scope); err != nil {
		b.logger.Error("Failed to ensure unknown topic",
			zap.Error(err),
			zap.Int64("user_id", scope.UserID))
	}

	help := `Available commands:
/add_topic <name> - create a new topic
/edit_topic <current name> <new name> - rename a topic
/del_topic <name> - delete a topic together with its messages
/search <pattern> <k> - find the k most similar stored messages

Any other message is classified and moved into the matching topic.`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleAddTopic(ctx context.Context, scope models.Scope, message *tgbotapi.Message) {
	name := strings.TrimSpace(message.CommandArguments())
	if name == "" {
		b.sendMessage(message.Chat.ID, "Specify the topic name after the command.")
		return
	}

	if err := b.engine.CreateTopic(ctx, scope, name); err != nil {
		b.sendMessage(message.Chat.ID, fmt.Sprintf("Could not create topic: %v", err))
		return
	}
	b.sendMessage(message.Chat.ID, fmt.Sprintf("Topic %q created", normalizeText(name)))
}

func (b *Bot) handleEditTopic(ctx context.Context, scope models.Scope, message *tgbotapi.Message) {
	args := strings.Fields(message.CommandArguments())
	if len(args) != 2 {
		b.sendMessage(message.Chat.ID, "Specify the current and the new topic name, separated by a space.")
		return
	}

	if err := b.engine.RenameTopic(ctx, scope, args[0], args[1]); err != nil {
		b.sendMessage(message.Chat.ID, fmt.Sprintf("Could not rename topic: %v", err))
		return
	}
	b.sendMessage(message.Chat.ID, fmt.Sprintf("Topic %q renamed to %q", normalizeText(args[0]), normalizeText(args[1])))
}

func (b *Bot) handleDelTopic(ctx context.Context, scope models.Scope, message *tgbotapi.Message) {
	name := strings.TrimSpace(message.CommandArguments())
	if name == "" {
		b.sendMessage(message.Chat.ID, "Specify the topic name to delete.")
		return
	}

	if err := b.engine.DeleteTopic(ctx, scope, name); err != nil {
		b.sendMessage(message.Chat.ID, fmt.Sprintf("Could not delete topic: %v", err))
		return
	}
	b.sendMessage(message.Chat.ID, fmt.Sprintf("Topic %q deleted together with its messages", normalizeText(name)))
}

func (b *Bot) handleSearch(ctx context.Context, scope models.Scope, message *tgbotapi.Message) {
	args := strings.Fields(message.CommandArguments())
	if len(args) == 0 {
		b.sendMessage(message.Chat.ID, "Specify a search pattern, optionally followed by the number of results.")
		return
	}

	topK := 0
	pattern := strings.Join(args, " ")
	if len(args) > 1 {
		if k, err := strconv.Atoi(args[len(args)-1]); err == nil {
			topK = k
			pattern = strings.Join(args[:len(args)-1], " ")
		}
	}

	results, err := b.engine.SearchMessages(ctx, scope, pattern, topK)
	if err != nil {
		b.logger.Error("Search failed",
			zap.Error(err),
			zap.Int64("user_id", scope.UserID))
		b.sendMessage(message.Chat.ID, "Could not search for similar messages.")
		return
	}

	if len(results) == 0 {
		b.sendMessage(message.Chat.ID, "No similar messages found.")
		return
	}

	b.sendMessage(message.Chat.ID, "Search results:")
	for _, r := range results {
		b.sendMessage(message.Chat.ID, r.Text)
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	if text == "" {
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func contentType(message *tgbotapi.Message) string {
	switch {
	case len(message.Photo) > 0:
		return "photo"
	case message.Video != nil:
		return "video"
	case message.Document != nil:
		return "document"
	case message.Audio != nil:
		return "audio"
	case message.Voice != nil:
		return "voice"
	case message.Sticker != nil:
		return "sticker"
	default:
		return models.UnknownCategory
	}
}
