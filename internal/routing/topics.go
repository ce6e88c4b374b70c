package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/SimulatorML/zeroInbox/internal/models"
	"github.com/SimulatorML/zeroInbox/internal/storage"
)

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CreateTopic declares a new topic: remote thread first, then the catalog
// record. Re-creating the unknown bucket is a no-op; any other duplicate
// name is an error.
func (e *Engine) CreateTopic(ctx context.Context, scope models.Scope, topicName string) error {
	name := normalizeText(topicName)
	if name == "" {
		return errors.New("topic name is empty")
	}

	_, err := e.catalog.GetTopicID(ctx, scope, name)
	switch {
	case err == nil:
		if name == models.UnknownCategory {
			return nil
		}
		return fmt.Errorf("topic %q already exists", name)
	case !errors.Is(err, storage.ErrTopicNotFound):
		return fmt.Errorf("error checking topic %q: %w", name, err)
	}

	_, err = e.ensureTopic(ctx, scope, name)
	return err
}

// EnsureUnknownTopic eagerly creates the fallback bucket for a scope. Safe
// to call on every /start.
func (e *Engine) EnsureUnknownTopic(ctx context.Context, scope models.Scope) error {
	return e.CreateTopic(ctx, scope, models.UnknownCategory)
}

// ensureTopic creates the remote thread and records it in the catalog.
// When the catalog insert loses a race to a concurrent creator, the winning
// id is returned and the freshly created thread stays behind: deleting it
// could race a consumer already posting into it, so the orphan is only
// logged.
func (e *Engine) ensureTopic(ctx context.Context, scope models.Scope, name string) (int64, error) {
	remoteID, err := e.transport.CreateTopic(ctx, scope, name)
	if err != nil {
		return 0, fmt.Errorf("error creating forum topic %q: %w", name, err)
	}

	if err := e.catalog.AddTopic(ctx, scope, remoteID, name); err != nil {
		// Remote creation already succeeded; the thread is now orphaned.
		e.logger.Error("Remote topic created but not recorded",
			zap.Error(err),
			zap.String("topic", name),
			zap.Int64("orphaned_id", remoteID))
		return 0, fmt.Errorf("error recording topic %q: %w", name, err)
	}

	winnerID, err := e.catalog.GetTopicID(ctx, scope, name)
	if err != nil {
		return 0, fmt.Errorf("error reading back topic %q: %w", name, err)
	}
	if winnerID != remoteID {
		e.logger.Warn("Lost topic creation race, keeping catalog id",
			zap.String("topic", name),
			zap.Int64("catalog_id", winnerID),
			zap.Int64("orphaned_id", remoteID))
	}
	return winnerID, nil
}

// RenameTopic renames a topic in the transport and the catalog. The thread
// id never changes, only the name.
func (e *Engine) RenameTopic(ctx context.Context, scope models.Scope, currName, newName string) error {
	curr := normalizeText(currName)
	next := normalizeText(newName)
	if curr == "" || next == "" {
		return errors.New("topic name is empty")
	}

	topicID, err := e.catalog.GetTopicID(ctx, scope, curr)
	if errors.Is(err, storage.ErrTopicNotFound) {
		return fmt.Errorf("topic %q does not exist", curr)
	}
	if err != nil {
		return fmt.Errorf("error checking topic %q: %w", curr, err)
	}

	_, err = e.catalog.GetTopicID(ctx, scope, next)
	switch {
	case err == nil:
		return fmt.Errorf("topic %q already exists", next)
	case !errors.Is(err, storage.ErrTopicNotFound):
		return fmt.Errorf("error checking topic %q: %w", next, err)
	}

	if err := e.transport.RenameTopic(ctx, scope, topicID, next); err != nil {
		return fmt.Errorf("error renaming forum topic %q: %w", curr, err)
	}

	renamed, err := e.catalog.RenameTopic(ctx, scope, topicID, next)
	if err != nil {
		return fmt.Errorf("error renaming topic %q in catalog: %w", curr, err)
	}
	if !renamed {
		return fmt.Errorf("topic %q vanished during rename", curr)
	}
	return nil
}

// DeleteTopic removes the remote thread, then the catalog row together with
// every message routed to it.
func (e *Engine) DeleteTopic(ctx context.Context, scope models.Scope, topicName string) error {
	name := normalizeText(topicName)

	topicID, err := e.catalog.GetTopicID(ctx, scope, name)
	if errors.Is(err, storage.ErrTopicNotFound) {
		return fmt.Errorf("topic %q does not exist", name)
	}
	if err != nil {
		return fmt.Errorf("error checking topic %q: %w", name, err)
	}

	if err := e.transport.DeleteTopic(ctx, scope, topicID); err != nil {
		return fmt.Errorf("error deleting forum topic %q: %w", name, err)
	}

	if err := e.catalog.DeleteTopic(ctx, scope, topicID); err != nil {
		return fmt.Errorf("error deleting topic %q from catalog: %w", name, err)
	}
	return nil
}

// MoveMessage relocates a message into the named topic, creating the topic
// on demand when it does not exist yet. This is the lazy-create path used
// for messages routed to a not-yet-declared destination.
func (e *Engine) MoveMessage(ctx context.Context, scope models.Scope, msgID int, topicName string) Result {
	name := normalizeText(topicName)
	log := e.logger.With(
		zap.Int("msg_id", msgID),
		zap.Int64("user_id", scope.UserID),
		zap.Int64("chat_id", scope.ChatID),
		zap.String("topic", name))

	topicID, err := e.catalog.GetTopicID(ctx, scope, name)
	if errors.Is(err, storage.ErrTopicNotFound) {
		topicID, err = e.ensureTopic(ctx, scope, name)
	}
	if err != nil {
		log.Error("Failed to resolve destination topic", zap.Error(err))
		return Result{State: StateAborted, Reason: fmt.Sprintf("could not resolve topic %q", name)}
	}

	return e.relocate(ctx, log, scope, msgID, topicID, name)
}
