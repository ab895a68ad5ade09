package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finbot/internal/models"
	"finbot/pkg/logger"
	"finbot/pkg/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ProcessStatus string

const (
	ProcessSuccess       ProcessStatus = "success"
	ProcessPendingReview ProcessStatus = "pending_review"
)

// ProcessResult is the outcome of persisting one payload. Message is only
// set on success; pending_review results are phrased by the HITL reconciler.
type ProcessResult struct {
	Status       ProcessStatus
	Transactions []*models.Transaction
	Confidence   float64
	OriginalData string
	Message      string
}

// DataProcessor turns a validated payload into persisted transactions.
type DataProcessor struct {
	transactions TransactionStore
	embedder     Embedder
	rates        RateSource
	baseCurrency string
	threshold    float64
	location     *time.Location
	now          func() time.Time
	logger       *zap.Logger
}

func NewDataProcessor(
	transactions TransactionStore,
	embedder Embedder,
	rates RateSource,
	baseCurrency string,
	threshold float64,
	location *time.Location,
	logger *zap.Logger,
) *DataProcessor {
	return &DataProcessor{
		transactions: transactions,
		embedder:     embedder,
		rates:        rates,
		baseCurrency: strings.ToUpper(baseCurrency),
		threshold:    threshold,
		location:     location,
		now:          time.Now,
		logger:       logger,
	}
}

// Process converts, embeds and stores every nonzero line item in one batch.
// It returns ErrNoLineItems when nothing is left to store and wraps
// ErrPersistence when the insert fails.
func (p *DataProcessor) Process(ctx context.Context, userID string, payload *ExtractionPayload, raw, promptVersion string) (*ProcessResult, error) {
	items := payload.Transactions
	if len(items) == 0 && payload.TotalInvoiceAmount != nil {
		items = []LineItem{{
			Description: "Invoice payment",
			Amount:      *payload.TotalInvoiceAmount,
			Category:    string(models.CategoryInvoice),
			Type:        string(models.KindExpense),
			Date:        payload.DueDate,
		}}
	}

	confidence := 1.0
	if payload.ConfidenceScore != nil {
		confidence = *payload.ConfidenceScore
	}
	status := models.StatusConfirmed
	if confidence < p.threshold {
		status = models.StatusPendingReview
	}

	now := p.now().In(p.location)
	rates := make(map[string]decimal.Decimal)
	txs := make([]*models.Transaction, 0, len(items))
	for _, item := range items {
		if item.Amount.IsZero() {
			continue
		}
		tx := p.buildTransaction(ctx, userID, item, now, rates, confidence, status, promptVersion)
		if !tx.Amount.IsPositive() {
			p.logger.Debug("Skipping line item below one cent",
				logger.User(userID),
				zap.String("amount", item.Amount.String()),
				zap.String("currency", tx.OriginalCurrency),
			)
			continue
		}
		txs = append(txs, tx)
	}
	if len(txs) == 0 {
		return nil, ErrNoLineItems
	}

	p.embed(ctx, userID, txs)

	if err := p.transactions.CreateBatch(ctx, txs); err != nil {
		p.logger.Error("Failed to persist transactions",
			logger.User(userID),
			zap.Int("count", len(txs)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	metrics.TransactionsPersisted.WithLabelValues(string(status)).Add(float64(len(txs)))

	p.logger.Info("Transactions saved",
		logger.User(userID),
		zap.Int("count", len(txs)),
		zap.String("status", string(status)),
		zap.Float64("confidence", confidence),
		zap.String("prompt_version", promptVersion),
	)

	if status == models.StatusPendingReview {
		return &ProcessResult{
			Status:       ProcessPendingReview,
			Transactions: txs,
			Confidence:   confidence,
			OriginalData: raw,
		}, nil
	}
	return &ProcessResult{
		Status:       ProcessSuccess,
		Transactions: txs,
		Confidence:   confidence,
		OriginalData: raw,
		Message:      successMessage(txs),
	}, nil
}

func (p *DataProcessor) buildTransaction(
	ctx context.Context,
	userID string,
	item LineItem,
	now time.Time,
	rates map[string]decimal.Decimal,
	confidence float64,
	status models.TransactionStatus,
	promptVersion string,
) *models.Transaction {
	kind := models.KindExpense
	if models.TransactionKind(strings.ToLower(strings.TrimSpace(item.Type))) == models.KindIncome {
		kind = models.KindIncome
	}

	code := strings.ToUpper(strings.TrimSpace(item.Currency))
	if code == "" {
		code = p.baseCurrency
	}
	rate, ok := rates[code]
	if !ok {
		rate = decimal.NewFromInt(1)
		if code != p.baseCurrency {
			rate = p.rates.Rate(ctx, code)
		}
		rates[code] = rate
	}

	original := item.Amount.Abs()

	date, err := resolveDate(item.Date, now)
	if err != nil {
		p.logger.Warn("Unresolvable date, using today",
			logger.User(userID),
			zap.String("date", item.Date),
		)
		date, _ = resolveDate("", now)
	}

	description := cleanText(item.Description)
	if description == "" {
		description = "Item"
	}
	category := models.CategoryOther
	if strings.TrimSpace(item.Category) != "" {
		category = models.ParseCategory(item.Category)
	}

	return &models.Transaction{
		ID:               uuid.New(),
		UserID:           userID,
		Description:      description,
		Amount:           original.Mul(rate).Round(2),
		Currency:         p.baseCurrency,
		OriginalAmount:   original,
		OriginalCurrency: code,
		ExchangeRate:     rate,
		Category:         category,
		Kind:             kind,
		Date:             date,
		ConfidenceScore:  confidence,
		Status:           status,
		IsValidated:      status == models.StatusConfirmed,
		PromptVersion:    promptVersion,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// embed fills Embedding with one batch call. Failure leaves rows without
// embeddings.
func (p *DataProcessor) embed(ctx context.Context, userID string, txs []*models.Transaction) {
	texts := make([]string, len(txs))
	for i, t := range txs {
		texts[i] = t.Description
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		p.logger.Warn("Batch embedding failed, saving without embeddings", logger.User(userID), zap.Error(err))
		return
	}
	if len(vectors) != len(txs) {
		p.logger.Warn("Embedding count mismatch",
			logger.User(userID),
			zap.Int("expected", len(txs)),
			zap.Int("got", len(vectors)),
		)
		return
	}
	for i := range txs {
		txs[i].Embedding = vectors[i]
	}
}

func successMessage(txs []*models.Transaction) string {
	var b strings.Builder
	if len(txs) == 1 {
		b.WriteString("✅ Saved:\n")
	} else {
		fmt.Fprintf(&b, "✅ Saved %d transactions:\n", len(txs))
	}
	for _, t := range txs {
		sign := "-"
		if t.Kind == models.KindIncome {
			sign = "+"
		}
		fmt.Fprintf(&b, "• [%s] %s: %s%s %s (%s)\n",
			t.Category, t.Description, sign, t.Amount.StringFixed(2), t.Currency, t.Date.Format("02/01/2006"))
	}
	return strings.TrimRight(b.String(), "\n")
}
