package service

import (
	"context"
	"testing"
	"time"

	"finbot/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCompletionEngineSuccess(t *testing.T) {
	provider := newFakeProvider(textReply("hello"))
	engine := NewCompletionEngine(provider, config.BreakerConfig{FailureThreshold: 3, CoolDown: time.Second, HalfOpenRequests: 1}, zap.NewNop())

	res := engine.Complete(context.Background(), []ChatMessage{{Role: ChatRoleUser, Content: "hi"}}, nil, "GigaChat")
	require.False(t, res.Fallback)
	assert.Equal(t, "hello", res.Response.Content)
	assert.Equal(t, "GigaChat", provider.requests[0].Model)
}

func TestCompletionEngineBreaker(t *testing.T) {
	const coolDown = 100 * time.Millisecond
	provider := newFakeProvider(fakeReply{err: errProviderDown})
	engine := NewCompletionEngine(provider, config.BreakerConfig{
		FailureThreshold: 3,
		CoolDown:         coolDown,
		HalfOpenRequests: 1,
		CallTimeout:      time.Second,
	}, zap.NewNop())
	ctx := context.Background()
	msgs := []ChatMessage{{Role: ChatRoleUser, Content: "hi"}}

	for i := 0; i < 3; i++ {
		res := engine.Complete(ctx, msgs, nil, "GigaChat")
		assert.True(t, res.Fallback)
	}
	require.Equal(t, 3, provider.calls())

	// open: no network attempt
	for i := 0; i < 5; i++ {
		res := engine.Complete(ctx, msgs, nil, "GigaChat")
		assert.True(t, res.Fallback)
		assert.Equal(t, MsgUnavailable, res.Message)
	}
	assert.Equal(t, 3, provider.calls())

	time.Sleep(coolDown + 50*time.Millisecond)

	provider.mu.Lock()
	provider.script = append(provider.script, textReply("back"))
	provider.mu.Unlock()

	// half-open probe goes through
	res := engine.Complete(ctx, msgs, nil, "GigaChat")
	assert.Equal(t, 4, provider.calls())
	require.False(t, res.Fallback)
	assert.Equal(t, "back", res.Response.Content)
}

func TestCompletionEngineCallTimeout(t *testing.T) {
	engine := NewCompletionEngine(blockingProvider{}, config.BreakerConfig{
		FailureThreshold: 5,
		CoolDown:         time.Second,
		CallTimeout:      20 * time.Millisecond,
	}, zap.NewNop())

	res := engine.Complete(context.Background(), nil, nil, "GigaChat")
	assert.True(t, res.Fallback)
}

type blockingProvider struct{}

func (blockingProvider) Chat(ctx context.Context, _ *ChatRequest) (*ChatResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
