package service

import (
	"context"
	"errors"
	"time"

	"finbot/pkg/config"
	"finbot/pkg/metrics"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// CompletionResult is either a provider response or a fallback. Callers must
// treat a fallback as terminal for the turn.
type CompletionResult struct {
	Response *ChatResponse
	Fallback bool
	Message  string
}

// CompletionEngine guards the chat provider with a circuit breaker.
type CompletionEngine struct {
	provider    ChatProvider
	breaker     *gobreaker.CircuitBreaker[*ChatResponse]
	callTimeout time.Duration
	logger      *zap.Logger
}

func NewCompletionEngine(provider ChatProvider, cfg config.BreakerConfig, logger *zap.Logger) *CompletionEngine {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	const name = "chat_completion"

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.CoolDown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// the caller giving up is not a provider failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	metrics.BreakerState.WithLabelValues(name).Set(0)

	return &CompletionEngine{
		provider:    provider,
		breaker:     gobreaker.NewCircuitBreaker[*ChatResponse](settings),
		callTimeout: cfg.CallTimeout,
		logger:      logger,
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Complete runs one chat round trip. It never returns an error: provider
// failures and open-breaker rejections both become a fallback result.
func (e *CompletionEngine) Complete(ctx context.Context, messages []ChatMessage, tools []ToolDefinition, model string) *CompletionResult {
	resp, err := e.breaker.Execute(func() (*ChatResponse, error) {
		callCtx := ctx
		if e.callTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, e.callTimeout)
			defer cancel()
		}

		start := time.Now()
		resp, err := e.provider.Chat(callCtx, &ChatRequest{
			Model:       model,
			Messages:    messages,
			Tools:       tools,
			Temperature: 0.2,
		})
		metrics.CompletionLatency.WithLabelValues(model).Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return nil, ErrEmptyResponse
		}
		return resp, nil
	})
	if err != nil {
		reason := "provider_error"
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			reason = "breaker_open"
		case errors.Is(err, context.DeadlineExceeded):
			reason = "timeout"
		}
		metrics.CompletionFallbacks.WithLabelValues(reason).Inc()
		e.logger.Warn("Completion fell back",
			zap.String("model", model),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return &CompletionResult{Fallback: true, Message: MsgUnavailable}
	}

	return &CompletionResult{Response: resp}
}
