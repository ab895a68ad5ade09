package service

import (
	"context"
	"fmt"
	"strings"

	"finbot/pkg/logger"

	"go.uber.org/zap"
)

// ContextRetriever grounds the prompt with the user's most similar past
// transactions.
type ContextRetriever struct {
	embedder     Embedder
	transactions TransactionStore
	topK         int
	logger       *zap.Logger
}

func NewContextRetriever(embedder Embedder, transactions TransactionStore, topK int, logger *zap.Logger) *ContextRetriever {
	if topK <= 0 {
		topK = 3
	}
	return &ContextRetriever{
		embedder:     embedder,
		transactions: transactions,
		topK:         topK,
		logger:       logger,
	}
}

// BuildContext returns "- description: amount" lines, or "" when there is no
// embedding or no match. Failures are logged and swallowed.
func (r *ContextRetriever) BuildContext(ctx context.Context, userID, text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	embedding, err := r.embedder.Embed(ctx, text)
	if err != nil {
		r.logger.Warn("Embedding failed, skipping context", logger.User(userID), zap.Error(err))
		return ""
	}
	if len(embedding) == 0 {
		return ""
	}

	matches, err := r.transactions.SearchSimilar(ctx, userID, embedding, r.topK)
	if err != nil {
		r.logger.Warn("Similarity search failed, skipping context", logger.User(userID), zap.Error(err))
		return ""
	}

	lines := make([]string, 0, len(matches))
	for _, m := range matches {
		lines = append(lines, fmt.Sprintf("- %s: %s", m.Description, m.Amount.StringFixed(2)))
	}

	r.logger.Debug("Context retrieved", logger.User(userID), zap.Int("matches", len(lines)))
	return strings.Join(lines, "\n")
}
