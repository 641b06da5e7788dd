package repository

import (
	"context"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/domain"
)

type MatchRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Match, error)
	// GetActiveByUser returns domain.ErrMatchNotFound when the user has no
	// active match.
	GetActiveByUser(ctx context.Context, userID int) (*domain.Match, error)
	GetUserMatches(ctx context.Context, userID int, limit, offset int) ([]*domain.Match, error)
}
