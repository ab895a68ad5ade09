package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"finbot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConversationMemoryKeepsNewestTurns(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	mem := NewConversationMemory(store, 24*time.Hour, 10, zap.NewNop())

	for i := 0; i < 7; i++ {
		mem.Append(ctx, "u1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	turns := mem.History(ctx, "u1")
	require.Len(t, turns, 10)
	assert.Equal(t, models.ConversationTurn{Role: models.RoleUser, Content: "q2"}, turns[0])
	assert.Equal(t, models.ConversationTurn{Role: models.RoleAssistant, Content: "a6"}, turns[9])

	assert.Empty(t, mem.History(ctx, "u2"))
}

func TestConversationMemoryExpires(t *testing.T) {
	ctx := context.Background()
	store, now := newTestStore(t)
	mem := NewConversationMemory(store, 24*time.Hour, 10, zap.NewNop())

	mem.Append(ctx, "u1", "hi", "hello")
	*now = now.Add(25 * time.Hour)
	assert.Empty(t, mem.History(ctx, "u1"))
}
