// Package memory keeps every table in process memory. Transactions are fully
// serialized and run against a copy of the state, so a failed unit of work
// leaves nothing behind. It backs STORAGE_TYPE=memory and the use case tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/domain"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/repository"
	"github.com/samber/lo"
)

type state struct {
	users         map[int]domain.User
	matches       map[string]domain.Match
	waitlist      map[int]domain.WaitlistEntry
	messages      []domain.Message
	nextEntryID   int64
	nextMessageID int64
}

func (s *state) clone() *state {
	c := &state{
		users:         make(map[int]domain.User, len(s.users)),
		matches:       make(map[string]domain.Match, len(s.matches)),
		waitlist:      make(map[int]domain.WaitlistEntry, len(s.waitlist)),
		messages:      s.messages,
		nextEntryID:   s.nextEntryID,
		nextMessageID: s.nextMessageID,
	}
	for k, v := range s.users {
		v.Interests = append([]string(nil), v.Interests...)
		c.users[k] = v
	}
	for k, v := range s.matches {
		c.matches[k] = v
	}
	for k, v := range s.waitlist {
		c.waitlist[k] = v
	}
	return c
}

type Store struct {
	mu    sync.RWMutex
	state *state
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{
		state: &state{
			users:    make(map[int]domain.User),
			matches:  make(map[string]domain.Match),
			waitlist: make(map[int]domain.WaitlistEntry),
		},
		now: time.Now,
	}
}

// PutUser inserts or replaces a user.
func (s *Store) PutUser(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	user.UpdatedAt = s.now()
	s.state.users[user.ID] = user
}

func (s *Store) Users() repository.UserRepository        { return userView{s} }
func (s *Store) Matches() repository.MatchRepository     { return matchView{s} }
func (s *Store) Waitlist() repository.WaitlistRepository { return waitlistView{s} }
func (s *Store) Messages() repository.MessageRepository  { return messageView{s} }
func (s *Store) TxManager() repository.TxManager         { return txManager{s} }

type userView struct{ s *Store }

func (v userView) GetByID(_ context.Context, id int) (*domain.User, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.state.user(id)
}

func (v userView) GetByIDs(_ context.Context, ids []int) ([]*domain.User, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	var users []*domain.User
	for _, id := range lo.Uniq(ids) {
		if u, err := v.s.state.user(id); err == nil {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

type matchView struct{ s *Store }

func (v matchView) GetByID(_ context.Context, id string) (*domain.Match, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	m, ok := v.s.state.matches[id]
	if !ok {
		return nil, domain.ErrMatchNotFound
	}
	return &m, nil
}

func (v matchView) GetActiveByUser(_ context.Context, userID int) (*domain.Match, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.state.activeMatch(userID)
}

func (v matchView) GetUserMatches(_ context.Context, userID int, limit, offset int) ([]*domain.Match, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	var matches []*domain.Match
	for _, m := range v.s.state.matches {
		if m.HasUser(userID) {
			matches = append(matches, &m)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	if offset >= len(matches) {
		return nil, nil
	}
	matches = matches[offset:]
	if limit > 0 && limit < len(matches) {
		matches = matches[:limit]
	}
	return matches, nil
}

type waitlistView struct{ s *Store }

func (v waitlistView) GetByUser(_ context.Context, userID int) (*domain.WaitlistEntry, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	e, ok := v.s.state.waitlist[userID]
	if !ok {
		return nil, domain.ErrNotQueued
	}
	return &e, nil
}

func (v waitlistView) FindOldestOpposite(_ context.Context, gender domain.Gender) (*domain.WaitlistEntry, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.state.oldest(gender, 0)
}

func (v waitlistView) Dequeue(_ context.Context, userID int) (int64, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.state.waitlist[userID]; !ok {
		return 0, nil
	}
	delete(v.s.state.waitlist, userID)
	return 1, nil
}

func (v waitlistView) DequeueEntry(_ context.Context, entryID int64) (int64, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for userID, e := range v.s.state.waitlist {
		if e.ID == entryID {
			delete(v.s.state.waitlist, userID)
			return 1, nil
		}
	}
	return 0, nil
}

func (v waitlistView) ListEnqueuedBefore(_ context.Context, gender domain.Gender, before time.Time) ([]*domain.WaitlistEntry, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	entries := v.s.state.sortedEntries(gender, 0)
	return lo.Filter(entries, func(e *domain.WaitlistEntry, _ int) bool {
		return e.EnqueuedAt.Before(before)
	}), nil
}

type messageView struct{ s *Store }

func (v messageView) Create(_ context.Context, msg *domain.Message) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.s.state.nextMessageID++
	msg.ID = v.s.state.nextMessageID
	msg.CreatedAt = v.s.now()
	msg.Read = false
	v.s.state.messages = append(v.s.state.messages, *msg)
	return nil
}

func (v messageView) ListByMatch(_ context.Context, matchID string, limit int) ([]*domain.Message, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	messages := []*domain.Message{}
	for _, m := range v.s.state.messages {
		if m.MatchID == matchID {
			messages = append(messages, &m)
		}
	}
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

func (v messageView) MarkRead(_ context.Context, matchID string, readerID int) (int64, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var n int64
	for i := range v.s.state.messages {
		m := &v.s.state.messages[i]
		if m.MatchID == matchID && m.SenderID != readerID && !m.Read {
			m.Read = true
			n++
		}
	}
	return n, nil
}

func (s *state) user(id int) (*domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u.Interests = append([]string(nil), u.Interests...)
	return &u, nil
}

func (s *state) activeMatch(userID int) (*domain.Match, error) {
	var found *domain.Match
	for _, m := range s.matches {
		if m.IsActive && m.HasUser(userID) {
			if found == nil || m.CreatedAt.After(found.CreatedAt) {
				found = &m
			}
		}
	}
	if found == nil {
		return nil, domain.ErrMatchNotFound
	}
	return found, nil
}

// sortedEntries orders by enqueue time, then by id.
func (s *state) sortedEntries(gender domain.Gender, excludeUserID int) []*domain.WaitlistEntry {
	var entries []*domain.WaitlistEntry
	for _, e := range s.waitlist {
		if e.Gender == gender && e.UserID != excludeUserID {
			entries = append(entries, &e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Before(entries[j]) })
	return entries
}

func (s *state) oldest(gender domain.Gender, excludeUserID int) (*domain.WaitlistEntry, error) {
	entries := s.sortedEntries(gender, excludeUserID)
	if len(entries) == 0 {
		return nil, domain.ErrNotQueued
	}
	return entries[0], nil
}
