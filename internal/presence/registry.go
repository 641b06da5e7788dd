// Package presence tracks who is connected to this process right now and in
// what state. It is a best-effort index for push delivery; the database stays
// authoritative for occupation and queue membership.
package presence

import (
	"sort"
	"sync"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/domain"
	"github.com/samber/lo"
)

// Emitter is the part of a real-time connection the registry needs.
type Emitter interface {
	ID() string
	Emit(event string, v ...interface{})
}

type session struct {
	entry domain.SessionEntry
	conn  Emitter
	seq   uint64
}

type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session // connection id -> session
	waiting  map[int]domain.Gender
	seq      uint64
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*session),
		waiting:  make(map[int]domain.Gender),
	}
}

// Register adds one entry per connection. A user with two tabs open has two
// independent entries.
func (r *Registry) Register(conn Emitter, userID int, gender domain.Gender, isOccupied bool) domain.SessionEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	entry := domain.SessionEntry{
		ConnectionID: conn.ID(),
		UserID:       userID,
		Gender:       gender,
		IsOccupied:   isOccupied,
	}
	r.sessions[conn.ID()] = &session{entry: entry, conn: conn, seq: r.seq}
	return entry
}

func (r *Registry) Unregister(connectionID string) (domain.SessionEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connectionID]
	if !ok {
		return domain.SessionEntry{}, false
	}
	delete(r.sessions, connectionID)
	return s.entry, true
}

func (r *Registry) Get(connectionID string) (domain.SessionEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[connectionID]
	if !ok {
		return domain.SessionEntry{}, false
	}
	return s.entry, true
}

// FindConnectionsForUser returns the user's connection ids in registration
// order.
func (r *Registry) FindConnectionsForUser(userID int) []string {
	return lo.Map(r.userSessions(userID), func(s *session, _ int) string {
		return s.entry.ConnectionID
	})
}

// Connections returns the live emitters of a user in registration order.
func (r *Registry) Connections(userID int) []Emitter {
	return lo.Map(r.userSessions(userID), func(s *session, _ int) Emitter {
		return s.conn
	})
}

func (r *Registry) IsOnline(userID int) bool {
	return len(r.userSessions(userID)) > 0
}

func (r *Registry) SetOccupied(connectionID string, occupied bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connectionID]
	if !ok {
		return false
	}
	s.entry.IsOccupied = occupied
	return true
}

// SetOccupiedForUser updates every connection of the user and returns how
// many were touched.
func (r *Registry) SetOccupiedForUser(userID int, occupied bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, s := range r.sessions {
		if s.entry.UserID == userID {
			s.entry.IsOccupied = occupied
			n++
		}
	}
	return n
}

func (r *Registry) MarkWaiting(userID int, gender domain.Gender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waiting[userID] = gender
}

func (r *Registry) ClearWaiting(userIDs ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range userIDs {
		delete(r.waiting, id)
	}
}

func (r *Registry) IsWaiting(userID int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.waiting[userID]
	return ok
}

// Waiting lists the users this process currently believes are queued.
func (r *Registry) Waiting() []int {
	r.mu.RLock()
	ids := lo.Keys(r.waiting)
	r.mu.RUnlock()

	sort.Ints(ids)
	return ids
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) userSessions(userID int) []*session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found []*session
	for _, s := range r.sessions {
		if s.entry.UserID == userID {
			found = append(found, s)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].seq < found[j].seq })
	return found
}
