package repository

import (
	"context"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/domain"
)

// Tx is the set of operations available inside one unit of work. Reads
// that lock return rows the caller may safely act upon until commit.
type Tx interface {
	// LockUser reads the user row and holds its lock until the end of the
	// transaction.
	LockUser(ctx context.Context, userID int) (*domain.User, error)
	// DecrementCredit fails with domain.ErrInsufficientCredit when the
	// balance is below one.
	DecrementCredit(ctx context.Context, userID int) (int, error)
	SetOccupation(ctx context.Context, occupied bool, userIDs ...int) error

	// GetWaitlistEntry locks and returns the user's entry or
	// domain.ErrNotQueued.
	GetWaitlistEntry(ctx context.Context, userID int) (*domain.WaitlistEntry, error)
	// ClaimOldestOpposite locks the oldest entry of the given gender that is
	// not already locked by a concurrent transaction. It returns
	// domain.ErrNotQueued when nothing is available.
	ClaimOldestOpposite(ctx context.Context, gender domain.Gender, excludeUserID int) (*domain.WaitlistEntry, error)
	// Enqueue fails with domain.ErrAlreadyQueued on a duplicate user. It fills
	// entry.ID and entry.EnqueuedAt.
	Enqueue(ctx context.Context, entry *domain.WaitlistEntry) error
	DeleteWaitlistEntries(ctx context.Context, userIDs ...int) (int64, error)

	// GetActiveMatchByUser returns domain.ErrMatchNotFound when there is none.
	GetActiveMatchByUser(ctx context.Context, userID int) (*domain.Match, error)
	GetMatchForUpdate(ctx context.Context, matchID string) (*domain.Match, error)
	CreateMatch(ctx context.Context, match *domain.Match) error
	// DeactivateMatch reports whether the match went from active to inactive.
	DeactivateMatch(ctx context.Context, matchID string) (bool, error)
}

// TxManager runs fn in a transaction. Any error returned by fn rolls back
// every change made through tx.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
