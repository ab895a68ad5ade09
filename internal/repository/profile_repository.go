package repository

import (
	"context"
	"errors"
	"time"

	"finbot/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ProfileRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProfileRepository(db *pgxpool.Pool, logger *zap.Logger) *ProfileRepository {
	return &ProfileRepository{
		db:     db,
		logger: logger,
	}
}

// Get returns the user's profile, or an empty one if none was saved yet.
func (r *ProfileRepository) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	sql, args, err := squirrel.Select("user_id", "monthly_budget", "savings_goal", "updated_at").
		From("user_profiles").
		Where(squirrel.Eq{"user_id": userID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var p models.UserProfile
	err = r.db.QueryRow(ctx, sql, args...).Scan(&p.UserID, &p.MonthlyBudget, &p.SavingsGoal, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &models.UserProfile{UserID: userID, MonthlyBudget: decimal.Zero, SavingsGoal: decimal.Zero}, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProfileRepository) Upsert(ctx context.Context, p *models.UserProfile) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}

	sql, args, err := squirrel.Insert("user_profiles").
		Columns("user_id", "monthly_budget", "savings_goal", "updated_at").
		Values(p.UserID, p.MonthlyBudget, p.SavingsGoal, p.UpdatedAt).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET monthly_budget = EXCLUDED.monthly_budget, savings_goal = EXCLUDED.savings_goal, updated_at = EXCLUDED.updated_at").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}
