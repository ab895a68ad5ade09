package repository

import (
	"context"

	"finbot/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type LearningRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewLearningRepository(db *pgxpool.Pool, logger *zap.Logger) *LearningRepository {
	return &LearningRepository{
		db:     db,
		logger: logger,
	}
}

func (r *LearningRepository) Append(ctx context.Context, s *models.LearningSample) error {
	sql, args, err := squirrel.Insert("learning_samples").
		Columns("id", "user_id", "original_input", "original_ai_answer", "user_correction", "confidence", "created_at").
		Values(s.ID, s.UserID, s.OriginalInput, s.OriginalAIAnswer, s.UserCorrection, s.Confidence, s.CreatedAt).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// List is used by the offline export endpoint only.
func (r *LearningRepository) List(ctx context.Context, limit uint64) ([]*models.LearningSample, error) {
	sql, args, err := squirrel.Select("id", "user_id", "original_input", "original_ai_answer", "user_correction", "confidence", "created_at").
		From("learning_samples").
		OrderBy("created_at DESC").
		Limit(limit).
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

	var samples []*models.LearningSample
	for rows.Next() {
		var s models.LearningSample
		if err := rows.Scan(&s.ID, &s.UserID, &s.OriginalInput, &s.OriginalAIAnswer, &s.UserCorrection, &s.Confidence, &s.CreatedAt); err != nil {
			return nil, err
		}
		samples = append(samples, &s)
	}
	return samples, rows.Err()
}
