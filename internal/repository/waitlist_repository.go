package repository

import (
	"context"
	"time"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/domain"
)

// WaitlistRepository covers the non-transactional waitlist operations.
// Pairing goes through Tx instead.
type WaitlistRepository interface {
	// GetByUser returns domain.ErrNotQueued when the user has no entry.
	GetByUser(ctx context.Context, userID int) (*domain.WaitlistEntry, error)
	// FindOldestOpposite is a plain read with no locking.
	FindOldestOpposite(ctx context.Context, gender domain.Gender) (*domain.WaitlistEntry, error)
	// Dequeue is idempotent and returns the number of removed rows.
	Dequeue(ctx context.Context, userID int) (int64, error)
	// DequeueEntry removes one specific entry, so a stale expiry never
	// removes a newer entry of the same user.
	DequeueEntry(ctx context.Context, entryID int64) (int64, error)
	ListEnqueuedBefore(ctx context.Context, gender domain.Gender, before time.Time) ([]*domain.WaitlistEntry, error)
}
