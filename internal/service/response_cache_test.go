package service

import (
	"context"
	"testing"
	"time"

	"finbot/internal/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCacheKeyNormalizes(t *testing.T) {
	assert.Equal(t, cacheKey("Hello"), cacheKey("  hello \n"))
	assert.NotEqual(t, cacheKey("hello"), cacheKey("hello!"))
	assert.Len(t, cacheKey("x"), len(cacheKeyPrefix)+64)
}

func TestResponseCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, now := newTestStore(t)
	cache := NewResponseCache(store, 7*24*time.Hour, zap.NewNop())

	_, ok := cache.Get(ctx, "what is a budget?")
	assert.False(t, ok)

	want := &dto.AssistantResponse{Type: dto.ResponseTypeAI, Content: "A plan.", PromptVersion: "v1_structured"}
	cache.Put(ctx, "What is a budget?", want)

	got, ok := cache.Get(ctx, "what is a budget?")
	require.True(t, ok)
	assert.Equal(t, want, got)

	*now = now.Add(7*24*time.Hour + time.Second)
	_, ok = cache.Get(ctx, "what is a budget?")
	assert.False(t, ok)
}

func TestResponseCacheIgnoresCorruptEntries(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	cache := NewResponseCache(store, time.Hour, zap.NewNop())

	require.NoError(t, store.Set(ctx, cacheKey("x"), []byte("{not json"), time.Hour))
	_, ok := cache.Get(ctx, "x")
	assert.False(t, ok)
}
