package main

import (
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/SimulatorML/zeroInbox/internal/bot"
	"github.com/SimulatorML/zeroInbox/internal/classifier"
	"github.com/SimulatorML/zeroInbox/internal/embedding"
	"github.com/SimulatorML/zeroInbox/internal/routing"
	"github.com/SimulatorML/zeroInbox/internal/storage"
	"github.com/SimulatorML/zeroInbox/internal/transport"
	"github.com/SimulatorML/zeroInbox/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		dbConfig := storage.DatabaseConfig{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.DBName,
			SSLMode:     cfg.Database.SSLMode,
			UseInMemory: cfg.Database.UseInMemory,
		}
		store, err = storage.NewPostgresStorage(dbConfig, logger)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Initialize the Telegram client shared by the transport and the bot
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal("Failed to create Telegram client", zap.Error(err))
	}

	// Initialize classifier and embedder
	clf := classifier.NewGPTClassifier(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.Model,
		cfg.OpenAI.MaxTokens,
		cfg.OpenAI.Temperature,
		time.Duration(cfg.Classifier.TimeoutSeconds)*time.Second,
		cfg.Classifier.PromptTemplate,
		logger,
	)
	embedder := embedding.NewOpenAIEmbedder(cfg.OpenAI.APIKey, cfg.OpenAI.EmbeddingModel, logger)

	// Initialize the routing engine
	engine := routing.NewEngine(
		store,
		store,
		transport.NewTelegram(api, logger),
		clf,
		embedder,
		cfg.Routing.SearchTopK,
		logger,
	)

	// Start the bot
	b := bot.New(api, engine, logger)
	if err := b.Start(); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
}
