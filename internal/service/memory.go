package service

import (
	"context"
	"encoding/json"
	"time"

	"finbot/internal/models"
	"finbot/pkg/logger"

	"go.uber.org/zap"
)

const memoryKeyPrefix = "memory:"

// ConversationMemory keeps the last few turns per user. Two messages from
// the same user processed concurrently may drop one append.
type ConversationMemory struct {
	store    SessionStore
	ttl      time.Duration
	maxTurns int
	logger   *zap.Logger
}

func NewConversationMemory(store SessionStore, ttl time.Duration, maxTurns int, logger *zap.Logger) *ConversationMemory {
	if maxTurns <= 0 {
		maxTurns = 10
	}
	return &ConversationMemory{store: store, ttl: ttl, maxTurns: maxTurns, logger: logger}
}

// History returns the stored turns, oldest first. Failures yield no history.
func (m *ConversationMemory) History(ctx context.Context, userID string) []models.ConversationTurn {
	raw, ok, err := m.store.Get(ctx, memoryKeyPrefix+userID)
	if err != nil {
		m.logger.Warn("Failed to load conversation history", logger.User(userID), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	var turns []models.ConversationTurn
	if err := json.Unmarshal(raw, &turns); err != nil {
		m.logger.Warn("Discarding corrupt conversation history", logger.User(userID), zap.Error(err))
		return nil
	}
	return turns
}

// Append records one exchange and trims to the newest maxTurns entries.
func (m *ConversationMemory) Append(ctx context.Context, userID, userText, assistantText string) {
	turns := m.History(ctx, userID)
	turns = append(turns,
		models.ConversationTurn{Role: models.RoleUser, Content: userText},
		models.ConversationTurn{Role: models.RoleAssistant, Content: assistantText},
	)
	if len(turns) > m.maxTurns {
		turns = turns[len(turns)-m.maxTurns:]
	}

	raw, err := json.Marshal(turns)
	if err != nil {
		m.logger.Warn("Failed to encode conversation history", zap.Error(err))
		return
	}
	if err := m.store.Set(ctx, memoryKeyPrefix+userID, raw, m.ttl); err != nil {
		m.logger.Warn("Failed to save conversation history", logger.User(userID), zap.Error(err))
	}
}
