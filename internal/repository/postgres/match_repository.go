package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/domain"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/repository"
	"github.com/jmoiron/sqlx"
)

const matchColumns = `id, user1_id, user2_id, is_active, created_at, updated_at`

type matchRepository struct {
	db *sqlx.DB
}

func NewMatchRepository(db *sqlx.DB) repository.MatchRepository {
	return &matchRepository{db: db}
}

func (r *matchRepository) GetByID(ctx context.Context, id string) (*domain.Match, error) {
	var match domain.Match
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	err := r.db.GetContext(ctx, &match, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMatchNotFound
		}
		return nil, err
	}
	return &match, nil
}

func (r *matchRepository) GetActiveByUser(ctx context.Context, userID int) (*domain.Match, error) {
	return getActiveMatchByUser(ctx, r.db, userID, "")
}

func (r *matchRepository) GetUserMatches(ctx context.Context, userID int, limit, offset int) ([]*domain.Match, error) {
	var matches []*domain.Match
	query := `
		SELECT ` + matchColumns + ` FROM matches
		WHERE (user1_id = $1 OR user2_id = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	err := r.db.SelectContext(ctx, &matches, query, userID, limit, offset)
	return matches, err
}

// getActiveMatchByUser is shared by the repository and the transaction.
// lock is appended verbatim to the query.
func getActiveMatchByUser(ctx context.Context, q sqlx.QueryerContext, userID int, lock string) (*domain.Match, error) {
	var match domain.Match
	query := `
		SELECT ` + matchColumns + ` FROM matches
		WHERE (user1_id = $1 OR user2_id = $1) AND is_active = true
		ORDER BY created_at DESC
		LIMIT 1` + lock
	err := sqlx.GetContext(ctx, q, &match, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMatchNotFound
		}
		return nil, err
	}
	return &match, nil
}
