package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/domain"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type txManager struct {
	db *sqlx.DB
}

func NewTxManager(db *sqlx.DB) repository.TxManager {
	return &txManager{db: db}
}

// WithinTx runs fn in a READ COMMITTED transaction. Pairing relies on row
// locks (FOR UPDATE / SKIP LOCKED) rather than on the isolation level.
func (m *txManager) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) (err error) {
	sqlTx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			}
		}
	}()

	if err = fn(ctx, &pgTx{tx: sqlTx}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	tx *sqlx.Tx
}

func (t *pgTx) LockUser(ctx context.Context, userID int) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	return scanUser(t.tx.QueryRowxContext(ctx, query, userID))
}

func (t *pgTx) DecrementCredit(ctx context.Context, userID int) (int, error) {
	var credit int
	query := `
		UPDATE users SET credit = credit - 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND credit >= 1
		RETURNING credit
	`
	err := t.tx.QueryRowContext(ctx, query, userID).Scan(&credit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrInsufficientCredit
		}
		return 0, err
	}
	return credit, nil
}

func (t *pgTx) SetOccupation(ctx context.Context, occupied bool, userIDs ...int) error {
	if len(userIDs) == 0 {
		return nil
	}
	query := `UPDATE users SET occupation = $1, updated_at = CURRENT_TIMESTAMP WHERE id = ANY($2)`
	_, err := t.tx.ExecContext(ctx, query, occupied, pq.Array(userIDs))
	return err
}

func (t *pgTx) GetWaitlistEntry(ctx context.Context, userID int) (*domain.WaitlistEntry, error) {
	return getWaitlistEntry(ctx, t.tx, userID, " FOR UPDATE")
}

func (t *pgTx) ClaimOldestOpposite(ctx context.Context, gender domain.Gender, excludeUserID int) (*domain.WaitlistEntry, error) {
	var entry domain.WaitlistEntry
	query := `
		SELECT ` + waitlistColumns + ` FROM matching_wait_list
		WHERE gender = $1 AND user_id <> $2
		ORDER BY enqueued_at ASC, id ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`
	err := t.tx.GetContext(ctx, &entry, query, gender, excludeUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotQueued
		}
		return nil, err
	}
	return &entry, nil
}

func (t *pgTx) Enqueue(ctx context.Context, entry *domain.WaitlistEntry) error {
	query := `
		INSERT INTO matching_wait_list (user_id, gender)
		VALUES ($1, $2)
		RETURNING id, enqueued_at
	`
	err := t.tx.QueryRowContext(ctx, query, entry.UserID, entry.Gender).Scan(&entry.ID, &entry.EnqueuedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrAlreadyQueued
		}
		return err
	}
	return nil
}

func (t *pgTx) DeleteWaitlistEntries(ctx context.Context, userIDs ...int) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	result, err := t.tx.ExecContext(ctx, `DELETE FROM matching_wait_list WHERE user_id = ANY($1)`, pq.Array(userIDs))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (t *pgTx) GetActiveMatchByUser(ctx context.Context, userID int) (*domain.Match, error) {
	return getActiveMatchByUser(ctx, t.tx, userID, "")
}

func (t *pgTx) GetMatchForUpdate(ctx context.Context, matchID string) (*domain.Match, error) {
	var match domain.Match
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1 FOR UPDATE`
	err := t.tx.GetContext(ctx, &match, query, matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMatchNotFound
		}
		return nil, err
	}
	return &match, nil
}

func (t *pgTx) CreateMatch(ctx context.Context, match *domain.Match) error {
	query := `
		INSERT INTO matches (id, user1_id, user2_id, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	return t.tx.QueryRowContext(ctx, query, match.ID, match.User1ID, match.User2ID, match.IsActive).
		Scan(&match.CreatedAt, &match.UpdatedAt)
}

func (t *pgTx) DeactivateMatch(ctx context.Context, matchID string) (bool, error) {
	query := `
		UPDATE matches SET is_active = false, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND is_active = true
	`
	result, err := t.tx.ExecContext(ctx, query, matchID)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}
