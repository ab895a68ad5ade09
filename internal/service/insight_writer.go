package service

import (
	"context"
	"fmt"
	"strings"

	"finbot/pkg/config"

	"github.com/Role1776/gigago"
	"go.uber.org/zap"
)

const insightInstruction = `You are a personal finance coach. You receive a monthly summary of one person's income and expenses.
Write one short paragraph (at most 4 sentences) with the most useful observation and one concrete suggestion.
Plain text only, no lists, no JSON, no greetings.`

// GigaInsightWriter writes the narrative paragraph of monthly reports with
// the gigago SDK.
type GigaInsightWriter struct {
	client *gigago.Client
	model  *gigago.GenerativeModel
	logger *zap.Logger
}

func NewGigaInsightWriter(ctx context.Context, cfg *config.GigaChatConfig, logger *zap.Logger) (*GigaInsightWriter, error) {
	opts := []gigago.Option{
		gigago.WithCustomScope(cfg.Scope),
	}
	if cfg.InsecureSkipVerify {
		opts = append(opts, gigago.WithCustomInsecureSkipVerify(true))
	}

	client, err := gigago.NewClient(ctx, cfg.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GigaChat client: %w", err)
	}

	model := client.GenerativeModel(cfg.LiteModel)
	model.SystemInstruction = insightInstruction
	model.Temperature = 0.5

	return &GigaInsightWriter{client: client, model: model, logger: logger}, nil
}

func (w *GigaInsightWriter) WriteInsight(ctx context.Context, summary string) (string, error) {
	resp, err := w.model.Generate(ctx, []gigago.Message{
		{Role: gigago.RoleUser, Content: summary},
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate insight: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (w *GigaInsightWriter) Close() error {
	if w.client != nil {
		w.client.Close()
	}
	return nil
}
