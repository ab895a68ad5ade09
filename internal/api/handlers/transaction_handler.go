package handlers

import (
	"context"
	"time"

	"finbot/internal/dto"
	"finbot/internal/models"
	"finbot/internal/repository"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type TransactionStore interface {
	List(ctx context.Context, filter repository.TransactionFilter) ([]*models.Transaction, error)
	MarkConfirmed(ctx context.Context, ids []uuid.UUID) error
}

type LearningStore interface {
	List(ctx context.Context, limit uint64) ([]*models.LearningSample, error)
}

// TransactionHandler is the operator API over stored transactions and
// learning samples.
type TransactionHandler struct {
	transactions TransactionStore
	learning     LearningStore
	logger       *zap.Logger
}

func NewTransactionHandler(transactions TransactionStore, learning LearningStore, logger *zap.Logger) *TransactionHandler {
	return &TransactionHandler{
		transactions: transactions,
		learning:     learning,
		logger:       logger,
	}
}

func listLimit(c *fiber.Ctx) uint64 {
	limit := c.QueryInt("limit", defaultListLimit)
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return uint64(limit)
}

// ListTransactions supports ?user=, ?status= and ?limit=.
func (h *TransactionHandler) ListTransactions(c *fiber.Ctx) error {
	filter := repository.TransactionFilter{
		UserID: c.Query("user"),
		Status: models.TransactionStatus(c.Query("status")),
		Limit:  listLimit(c),
	}
	switch filter.Status {
	case "", models.StatusPendingReview, models.StatusConfirmed:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid status",
		})
	}

	txs, err := h.transactions.List(c.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list transactions", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list transactions",
		})
	}

	resp := make([]dto.TransactionResponse, 0, len(txs))
	for _, t := range txs {
		resp = append(resp, toTransactionResponse(t))
	}
	return c.JSON(resp)
}

func (h *TransactionHandler) ConfirmTransaction(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid transaction ID",
		})
	}

	if err := h.transactions.MarkConfirmed(c.Context(), []uuid.UUID{id}); err != nil {
		h.logger.Error("Failed to confirm transaction", zap.String("id", id.String()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to confirm transaction",
		})
	}

	h.logger.Info("Transaction confirmed by operator",
		zap.String("id", id.String()),
		zap.Any("operator", c.Locals("operator")),
	)
	return c.JSON(fiber.Map{
		"id":     id.String(),
		"status": models.StatusConfirmed,
	})
}

func (h *TransactionHandler) ListLearningSamples(c *fiber.Ctx) error {
	samples, err := h.learning.List(c.Context(), listLimit(c))
	if err != nil {
		h.logger.Error("Failed to list learning samples", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list learning samples",
		})
	}

	resp := make([]dto.LearningSampleResponse, 0, len(samples))
	for _, s := range samples {
		resp = append(resp, dto.LearningSampleResponse{
			ID:               s.ID.String(),
			UserID:           s.UserID,
			OriginalInput:    s.OriginalInput,
			OriginalAIAnswer: s.OriginalAIAnswer,
			UserCorrection:   s.UserCorrection,
			Confidence:       s.Confidence,
			CreatedAt:        s.CreatedAt.Format(time.RFC3339),
		})
	}
	return c.JSON(resp)
}

func toTransactionResponse(t *models.Transaction) dto.TransactionResponse {
	return dto.TransactionResponse{
		ID:               t.ID.String(),
		UserID:           t.UserID,
		Description:      t.Description,
		Amount:           t.Amount.StringFixed(2),
		Currency:         t.Currency,
		OriginalAmount:   t.OriginalAmount.StringFixed(2),
		OriginalCurrency: t.OriginalCurrency,
		ExchangeRate:     t.ExchangeRate.String(),
		Category:         string(t.Category),
		Type:             string(t.Kind),
		Date:             t.Date.Format("2006-01-02"),
		ConfidenceScore:  t.ConfidenceScore,
		Status:           string(t.Status),
		IsValidated:      t.IsValidated,
		PromptVersion:    t.PromptVersion,
		CreatedAt:        t.CreatedAt.Format(time.RFC3339),
	}
}
