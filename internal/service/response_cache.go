package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"finbot/internal/dto"
	"finbot/pkg/metrics"

	"go.uber.org/zap"
)

const cacheKeyPrefix = "ai_cache:"

// ResponseCache stores final assistant responses keyed by normalized input
// text. Keys are not scoped per user, so only user-independent replies may
// be written.
type ResponseCache struct {
	store  SessionStore
	ttl    time.Duration
	logger *zap.Logger
}

func NewResponseCache(store SessionStore, ttl time.Duration, logger *zap.Logger) *ResponseCache {
	return &ResponseCache{store: store, ttl: ttl, logger: logger}
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(text))))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached response for text. Store errors count as misses.
func (c *ResponseCache) Get(ctx context.Context, text string) (*dto.AssistantResponse, bool) {
	raw, ok, err := c.store.Get(ctx, cacheKey(text))
	if err != nil {
		c.logger.Warn("Response cache read failed", zap.Error(err))
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return nil, false
	}
	if !ok {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}

	var resp dto.AssistantResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.logger.Warn("Discarding undecodable cache entry", zap.Error(err))
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return nil, false
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return &resp, true
}

func (c *ResponseCache) Put(ctx context.Context, text string, resp *dto.AssistantResponse) {
	raw, err := json.Marshal(resp)
	if err != nil {
		c.logger.Warn("Failed to encode cache entry", zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, cacheKey(text), raw, c.ttl); err != nil {
		c.logger.Warn("Response cache write failed", zap.Error(err))
	}
}
