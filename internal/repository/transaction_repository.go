package repository

import (
	"context"
	"fmt"
	"time"

	"finbot/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var transactionColumns = []string{
	"id", "user_id", "description", "amount", "currency", "original_amount", "original_currency",
	"exchange_rate", "category", "type", "date", "confidence_score", "status", "is_validated",
	"prompt_version", "created_at", "updated_at",
}

type TransactionRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTransactionRepository(db *pgxpool.Pool, logger *zap.Logger) *TransactionRepository {
	return &TransactionRepository{
		db:     db,
		logger: logger,
	}
}

// TransactionFilter narrows List. Zero values mean "any".
type TransactionFilter struct {
	UserID string
	Status models.TransactionStatus
	Limit  uint64
}

// CreateBatch inserts all rows in a single statement.
func (r *TransactionRepository) CreateBatch(ctx context.Context, transactions []*models.Transaction) error {
	if len(transactions) == 0 {
		return nil
	}

	builder := squirrel.Insert("transactions").
		Columns(append(append([]string{}, transactionColumns...), "embedding")...).
		PlaceholderFormat(squirrel.Dollar)

	for _, tx := range transactions {
		builder = builder.Values(
			tx.ID, tx.UserID, tx.Description, tx.Amount, tx.Currency, tx.OriginalAmount, tx.OriginalCurrency,
			tx.ExchangeRate, string(tx.Category), string(tx.Kind), tx.Date, tx.ConfidenceScore, string(tx.Status),
			tx.IsValidated, tx.PromptVersion, tx.CreatedAt, tx.UpdatedAt, vectorValue(tx.Embedding),
		)
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return err
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to insert %d transactions: %w", len(transactions), err)
	}
	return nil
}

// MarkConfirmed flips the given rows to confirmed and validated.
func (r *TransactionRepository) MarkConfirmed(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	sql, args, err := squirrel.Update("transactions").
		Set("status", string(models.StatusConfirmed)).
		Set("is_validated", true).
		Set("updated_at", time.Now()).
		Where(squirrel.Eq{"id": ids}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// SearchSimilar returns the user's transactions nearest to embedding by
// cosine distance.
func (r *TransactionRepository) SearchSimilar(ctx context.Context, userID string, embedding []float32, limit int) ([]*models.Transaction, error) {
	if len(embedding) == 0 || limit <= 0 {
		return nil, nil
	}

	sql, args, err := squirrel.Select(transactionColumns...).
		From("transactions").
		Where(squirrel.Eq{"user_id": userID}).
		Where("embedding IS NOT NULL").
		OrderByClause("embedding <=> ?::vector", vectorLiteral(embedding)).
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	return r.query(ctx, sql, args...)
}

// ListByPeriod returns the user's transactions with from <= date < to.
func (r *TransactionRepository) ListByPeriod(ctx context.Context, userID string, from, to time.Time) ([]*models.Transaction, error) {
	sql, args, err := squirrel.Select(transactionColumns...).
		From("transactions").
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.GtOrEq{"date": from}).
		Where(squirrel.Lt{"date": to}).
		OrderBy("date ASC", "created_at ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	return r.query(ctx, sql, args...)
}

// SummarizeByCategory aggregates the user's transactions in [from, to).
func (r *TransactionRepository) SummarizeByCategory(ctx context.Context, userID string, from, to time.Time) ([]models.CategoryTotal, error) {
	sql, args, err := squirrel.Select("category", "type", "SUM(amount)", "COUNT(*)").
		From("transactions").
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.GtOrEq{"date": from}).
		Where(squirrel.Lt{"date": to}).
		GroupBy("category", "type").
		OrderBy("SUM(amount) DESC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []models.CategoryTotal
	for rows.Next() {
		var t models.CategoryTotal
		var category, kind string
		if err := rows.Scan(&category, &kind, &t.Total, &t.Count); err != nil {
			return nil, err
		}
		t.Category = models.TransactionCategory(category)
		t.Kind = models.TransactionKind(kind)
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

func (r *TransactionRepository) List(ctx context.Context, filter TransactionFilter) ([]*models.Transaction, error) {
	query := squirrel.Select(transactionColumns...).
		From("transactions").
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar)

	if filter.UserID != "" {
		query = query.Where(squirrel.Eq{"user_id": filter.UserID})
	}
	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"status": string(filter.Status)})
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	return r.query(ctx, sql, args...)
}

func (r *TransactionRepository) query(ctx context.Context, sql string, args ...interface{}) ([]*models.Transaction, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var tx models.Transaction
	var category, kind, status string
	if err := row.Scan(
		&tx.ID, &tx.UserID, &tx.Description, &tx.Amount, &tx.Currency, &tx.OriginalAmount, &tx.OriginalCurrency,
		&tx.ExchangeRate, &category, &kind, &tx.Date, &tx.ConfidenceScore, &status, &tx.IsValidated,
		&tx.PromptVersion, &tx.CreatedAt, &tx.UpdatedAt,
	); err != nil {
		return nil, err
	}
	tx.Category = models.TransactionCategory(category)
	tx.Kind = models.TransactionKind(kind)
	tx.Status = models.TransactionStatus(status)
	return &tx, nil
}
