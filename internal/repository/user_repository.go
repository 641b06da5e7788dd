package repository

import (
	"context"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/domain"
)

type UserRepository interface {
	GetByID(ctx context.Context, id int) (*domain.User, error)
	GetByIDs(ctx context.Context, ids []int) ([]*domain.User, error)
}
