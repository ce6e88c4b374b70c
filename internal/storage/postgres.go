package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/SimulatorML/zeroInbox/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

// PostgresStorage implements TopicCatalog and VectorStore on top of a
// Postgres database with the pgvector extension. Uniqueness constraints plus
// ON CONFLICT DO NOTHING provide the concurrency control: concurrent
// creators converge without in-process locking.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	return nil
}

func (s *PostgresStorage) GetTopicID(ctx context.Context, scope models.Scope, name string) (int64, error) {
	query := `
		SELECT topic_id
		FROM zib.user_topics
		WHERE user_id = $1 AND chat_id = $2 AND lower(topic_name) = lower($3)`

	var id int64
	err := s.db.QueryRowContext(ctx, query, scope.UserID, scope.ChatID, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrTopicNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("error querying topic id: %w", err)
	}
	return id, nil
}

func (s *PostgresStorage) GetTopics(ctx context.Context, scope models.Scope) (map[string]int64, error) {
	query := `
		SELECT topic_id, lower(topic_name)
		FROM zib.user_topics
		WHERE user_id = $1 AND chat_id = $2`

	rows, err := s.db.QueryContext(ctx, query, scope.UserID, scope.ChatID)
	if err != nil {
		return nil, fmt.Errorf("error querying topics: %w", err)
	}
	defer rows.Close()

	topics := make(map[string]int64)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("error scanning topic: %w", err)
		}
		topics[name] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating topics: %w", err)
	}

	return topics, nil
}

func (s *PostgresStorage) AddTopic(ctx context.Context, scope models.Scope, topicID int64, name string) error {
	query := `
		INSERT INTO zib.user_topics (user_id, chat_id, topic_id, topic_name)
		VALUES ($1, $2, $3, lower($4))
		ON CONFLICT DO NOTHING`

	if _, err := s.db.ExecContext(ctx, query, scope.UserID, scope.ChatID, topicID, name); err != nil {
		return fmt.Errorf("error inserting topic: %w", err)
	}
	return nil
}

func (s *PostgresStorage) RenameTopic(ctx context.Context, scope models.Scope, topicID int64, newName string) (bool, error) {
	query := `
		UPDATE zib.user_topics
		SET topic_name = lower($4)
		WHERE user_id = $1 AND chat_id = $2 AND topic_id = $3`

	result, err := s.db.ExecContext(ctx, query, scope.UserID, scope.ChatID, topicID, newName)
	if err != nil {
		return false, fmt.Errorf("error renaming topic: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error getting rows affected: %w", err)
	}
	return affected > 0, nil
}

// DeleteTopic removes the topic row and every message routed to it within a
// single transaction, so the caller sees either both gone or neither.
func (s *PostgresStorage) DeleteTopic(ctx context.Context, scope models.Scope, topicID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting delete transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM zib.user_messages WHERE user_id = $1 AND chat_id = $2 AND topic_id = $3`,
		scope.UserID, scope.ChatID, topicID); err != nil {
		return fmt.Errorf("error deleting topic messages: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM zib.user_topics WHERE user_id = $1 AND chat_id = $2 AND topic_id = $3`,
		scope.UserID, scope.ChatID, topicID); err != nil {
		return fmt.Errorf("error deleting topic: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing topic delete: %w", err)
	}
	return nil
}

func (s *PostgresStorage) SaveMessages(ctx context.Context, messages []models.Message) (int, error) {
	query := `
		INSERT INTO zib.user_messages (msg_id, user_id, chat_id, topic_id, msg_text, category, msg_emb)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT DO NOTHING`

	failed := 0
	for _, msg := range messages {
		_, err := s.db.ExecContext(ctx, query,
			msg.MsgID,
			msg.Scope.UserID,
			msg.Scope.ChatID,
			msg.TopicID,
			msg.Text,
			msg.Category,
			pgvector.NewVector(msg.Embedding),
		)
		if err != nil {
			s.logger.Error("Failed to save message",
				zap.Error(err),
				zap.Int("msg_id", msg.MsgID),
				zap.Int64("user_id", msg.Scope.UserID))
			failed++
		}
	}

	return failed, nil
}

func (s *PostgresStorage) SearchSimilar(ctx context.Context, scope models.Scope, vector []float32, topK int) ([]models.SimilarMessage, error) {
	query := `
		SELECT msg_id, msg_text, category, topic_id, 1 - (msg_emb <=> $3) AS cos_sim
		FROM zib.user_messages
		WHERE user_id = $1 AND chat_id = $2
		ORDER BY cos_sim DESC
		LIMIT $4`

	rows, err := s.db.QueryContext(ctx, query, scope.UserID, scope.ChatID, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("error querying similar messages: %w", err)
	}
	defer rows.Close()

	var results []models.SimilarMessage
	for rows.Next() {
		sm := models.SimilarMessage{Message: models.Message{Scope: scope}}
		if err := rows.Scan(&sm.MsgID, &sm.Text, &sm.Category, &sm.TopicID, &sm.Similarity); err != nil {
			return nil, fmt.Errorf("error scanning similar message: %w", err)
		}
		results = append(results, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating similar messages: %w", err)
	}

	return results, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
