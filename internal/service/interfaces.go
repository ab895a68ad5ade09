package service

import (
	"context"
	"time"

	"finbot/internal/dto"
	"finbot/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChatProvider performs one chat completion round trip.
type ChatProvider interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// Embedder computes text embeddings. EmbedBatch must be a single round trip.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// FileUploader stores an attachment with the provider and returns its id.
type FileUploader interface {
	UploadFile(ctx context.Context, data []byte, fileName, mimeType string) (string, error)
}

// InsightWriter turns a numeric summary into a short narrative.
type InsightWriter interface {
	WriteInsight(ctx context.Context, summary string) (string, error)
}

type TransactionStore interface {
	CreateBatch(ctx context.Context, transactions []*models.Transaction) error
	MarkConfirmed(ctx context.Context, ids []uuid.UUID) error
	SearchSimilar(ctx context.Context, userID string, embedding []float32, limit int) ([]*models.Transaction, error)
	ListByPeriod(ctx context.Context, userID string, from, to time.Time) ([]*models.Transaction, error)
	SummarizeByCategory(ctx context.Context, userID string, from, to time.Time) ([]models.CategoryTotal, error)
}

type LearningStore interface {
	Append(ctx context.Context, sample *models.LearningSample) error
}

type ProfileStore interface {
	Get(ctx context.Context, userID string) (*models.UserProfile, error)
	Upsert(ctx context.Context, profile *models.UserProfile) error
}

// SessionStore is the shared TTL key-value store holding all cross-message
// state. Read-modify-write sequences on it are not atomic.
type SessionStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RateSource returns how many base-currency units one unit of code is worth.
// Implementations return 1 on any failure.
type RateSource interface {
	Rate(ctx context.Context, code string) decimal.Decimal
}

type Messenger interface {
	SendText(ctx context.Context, to, body string) error
	SendMedia(ctx context.Context, to string, media *dto.MediaPayload) error
	DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error)
}

type Reporter interface {
	SpendingSummary(ctx context.Context, userID string, month time.Month, year int) (string, error)
	MonthlyReport(ctx context.Context, userID string, month time.Month, year int) (*Report, error)
}
