package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// SessionRepository is a TTL key-value store over the session_state table.
// It backs conversation memory, HITL tickets and the response cache when the
// service runs with more than one replica.
type SessionRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
	now    func() time.Time
}

func NewSessionRepository(db *pgxpool.Pool, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Get returns the stored value. Expired rows read as missing.
func (r *SessionRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	sql, args, err := squirrel.Select("value").
		From("session_state").
		Where(squirrel.Eq{"key": key}).
		Where(squirrel.Gt{"expires_at": r.now()}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, false, err
	}

	var value []byte
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

func (r *SessionRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	sql, args, err := squirrel.Insert("session_state").
		Columns("key", "value", "expires_at").
		Values(key, value, r.now().Add(ttl)).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *SessionRepository) Delete(ctx context.Context, key string) error {
	sql, args, err := squirrel.Delete("session_state").
		Where(squirrel.Eq{"key": key}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// PurgeExpired deletes rows whose TTL elapsed and returns how many went.
func (r *SessionRepository) PurgeExpired(ctx context.Context) (int64, error) {
	sql, args, err := squirrel.Delete("session_state").
		Where(squirrel.LtOrEq{"expires_at": r.now()}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
