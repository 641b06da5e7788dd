package memory

import (
	"context"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/domain"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/repository"
)

type txManager struct{ s *Store }

// WithinTx holds the store's write lock for the whole unit of work, which
// gives the same outcome as SERIALIZABLE isolation.
func (m txManager) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	work := m.s.state.clone()
	if err := fn(ctx, &memTx{state: work, store: m.s}); err != nil {
		return err
	}
	m.s.state = work
	return nil
}

type memTx struct {
	state *state
	store *Store
}

func (t *memTx) LockUser(_ context.Context, userID int) (*domain.User, error) {
	return t.state.user(userID)
}

func (t *memTx) DecrementCredit(_ context.Context, userID int) (int, error) {
	u, ok := t.state.users[userID]
	if !ok {
		return 0, domain.ErrUserNotFound
	}
	if u.Credit < 1 {
		return 0, domain.ErrInsufficientCredit
	}
	u.Credit--
	u.UpdatedAt = t.store.now()
	t.state.users[userID] = u
	return u.Credit, nil
}

func (t *memTx) SetOccupation(_ context.Context, occupied bool, userIDs ...int) error {
	for _, id := range userIDs {
		u, ok := t.state.users[id]
		if !ok {
			continue
		}
		u.Occupation = occupied
		u.UpdatedAt = t.store.now()
		t.state.users[id] = u
	}
	return nil
}

func (t *memTx) GetWaitlistEntry(_ context.Context, userID int) (*domain.WaitlistEntry, error) {
	e, ok := t.state.waitlist[userID]
	if !ok {
		return nil, domain.ErrNotQueued
	}
	return &e, nil
}

func (t *memTx) ClaimOldestOpposite(_ context.Context, gender domain.Gender, excludeUserID int) (*domain.WaitlistEntry, error) {
	return t.state.oldest(gender, excludeUserID)
}

func (t *memTx) Enqueue(_ context.Context, entry *domain.WaitlistEntry) error {
	if _, ok := t.state.waitlist[entry.UserID]; ok {
		return domain.ErrAlreadyQueued
	}
	t.state.nextEntryID++
	entry.ID = t.state.nextEntryID
	entry.EnqueuedAt = t.store.now()
	t.state.waitlist[entry.UserID] = *entry
	return nil
}

func (t *memTx) DeleteWaitlistEntries(_ context.Context, userIDs ...int) (int64, error) {
	var n int64
	for _, id := range userIDs {
		if _, ok := t.state.waitlist[id]; ok {
			delete(t.state.waitlist, id)
			n++
		}
	}
	return n, nil
}

func (t *memTx) GetActiveMatchByUser(_ context.Context, userID int) (*domain.Match, error) {
	return t.state.activeMatch(userID)
}

func (t *memTx) GetMatchForUpdate(_ context.Context, matchID string) (*domain.Match, error) {
	m, ok := t.state.matches[matchID]
	if !ok {
		return nil, domain.ErrMatchNotFound
	}
	return &m, nil
}

func (t *memTx) CreateMatch(_ context.Context, match *domain.Match) error {
	now := t.store.now()
	match.CreatedAt = now
	match.UpdatedAt = now
	t.state.matches[match.ID] = *match
	return nil
}

func (t *memTx) DeactivateMatch(_ context.Context, matchID string) (bool, error) {
	m, ok := t.state.matches[matchID]
	if !ok {
		return false, domain.ErrMatchNotFound
	}
	if !m.IsActive {
		return false, nil
	}
	m.IsActive = false
	m.UpdatedAt = t.store.now()
	t.state.matches[matchID] = m
	return true, nil
}
