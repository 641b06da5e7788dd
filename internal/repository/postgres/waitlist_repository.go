package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/domain"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/repository"
	"github.com/jmoiron/sqlx"
)

const waitlistColumns = `id, user_id, gender, enqueued_at`

type waitlistRepository struct {
	db *sqlx.DB
}

func NewWaitlistRepository(db *sqlx.DB) repository.WaitlistRepository {
	return &waitlistRepository{db: db}
}

func (r *waitlistRepository) GetByUser(ctx context.Context, userID int) (*domain.WaitlistEntry, error) {
	return getWaitlistEntry(ctx, r.db, userID, "")
}

func (r *waitlistRepository) FindOldestOpposite(ctx context.Context, gender domain.Gender) (*domain.WaitlistEntry, error) {
	var entry domain.WaitlistEntry
	query := `
		SELECT ` + waitlistColumns + ` FROM matching_wait_list
		WHERE gender = $1
		ORDER BY enqueued_at ASC, id ASC
		LIMIT 1
	`
	err := r.db.GetContext(ctx, &entry, query, gender)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotQueued
		}
		return nil, err
	}
	return &entry, nil
}

func (r *waitlistRepository) Dequeue(ctx context.Context, userID int) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM matching_wait_list WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *waitlistRepository) DequeueEntry(ctx context.Context, entryID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM matching_wait_list WHERE id = $1`, entryID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *waitlistRepository) ListEnqueuedBefore(ctx context.Context, gender domain.Gender, before time.Time) ([]*domain.WaitlistEntry, error) {
	var entries []*domain.WaitlistEntry
	query := `
		SELECT ` + waitlistColumns + ` FROM matching_wait_list
		WHERE gender = $1 AND enqueued_at < $2
		ORDER BY enqueued_at ASC, id ASC
	`
	err := r.db.SelectContext(ctx, &entries, query, gender, before)
	return entries, err
}

func getWaitlistEntry(ctx context.Context, q sqlx.QueryerContext, userID int, lock string) (*domain.WaitlistEntry, error) {
	var entry domain.WaitlistEntry
	query := `SELECT ` + waitlistColumns + ` FROM matching_wait_list WHERE user_id = $1` + lock
	err := sqlx.GetContext(ctx, q, &entry, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotQueued
		}
		return nil, err
	}
	return &entry, nil
}
