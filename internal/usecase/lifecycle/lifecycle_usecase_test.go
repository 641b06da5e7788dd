package lifecycle_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/domain"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/notify"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/presence"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/repository"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/repository/memory"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/usecase/lifecycle"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/usecase/matching"
	"github.com/stretchr/testify/require"
)

type emitted struct {
	event   string
	payload interface{}
}

type fakeConn struct {
	id     string
	mu     sync.Mutex
	events []emitted
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Emit(event string, v ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var payload interface{}
	if len(v) > 0 {
		payload = v[0]
	}
	c.events = append(c.events, emitted{event: event, payload: payload})
}

func (c *fakeConn) last(event string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].event == event {
			return c.events[i].payload, true
		}
	}
	return nil, false
}

type brokenTxManager struct{ err error }

func (m brokenTxManager) WithinTx(context.Context, func(context.Context, repository.Tx) error) error {
	return m.err
}

type fixture struct {
	notifier notify.Notifier
	store    *memory.Store
	registry *presence.Registry
	matching *matching.MatchingUseCase
	uc       *lifecycle.LifecycleUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	store := memory.NewStore()
	registry := presence.NewRegistry()
	notifier := notify.NewLocal(registry, log)

	m := matching.NewMatchingUseCase(store.TxManager(), store.Waitlist(), store.Matches(), registry, notifier,
		matching.Config{Roles: domain.DefaultRoles(), QueueTimeout: time.Hour}, log)
	t.Cleanup(m.Expiry().Stop)

	uc := lifecycle.NewLifecycleUseCase(store.TxManager(), store.Matches(), store.Users(), m, registry, notifier, log)
	return &fixture{notifier: notifier, store: store, registry: registry, matching: m, uc: uc}
}

// matched creates users 1 (seeker) and 2 (counterpart) in an active match.
func (f *fixture) matched(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	f.store.PutUser(domain.User{ID: 1, DisplayName: "Alice", Gender: domain.GenderFemale, Credit: 1, Interests: []string{"jazz"}})
	f.store.PutUser(domain.User{ID: 2, DisplayName: "Bob", Gender: domain.GenderMale, Credit: 1})

	_, err := f.matching.JoinQueueAsCounterpart(ctx, 2)
	require.NoError(t, err)
	res, err := f.matching.RequestMatch(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, domain.StatusMatched, res.Status)
	return res.MatchID
}

func (f *fixture) occupation(t *testing.T, id int) bool {
	t.Helper()
	u, err := f.store.Users().GetByID(context.Background(), id)
	require.NoError(t, err)
	return u.Occupation
}

func TestLeaveMatch_EndsMatchForBoth(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a, b := &fakeConn{id: "a"}, &fakeConn{id: "b"}
	f.registry.Register(a, 1, domain.GenderFemale, false)
	f.registry.Register(b, 2, domain.GenderMale, false)
	matchID := f.matched(t)

	changed, err := f.uc.LeaveMatch(ctx, 1, matchID)
	req.NoError(err)
	req.True(changed)

	match, err := f.store.Matches().GetByID(ctx, matchID)
	req.NoError(err)
	req.False(match.IsActive)
	req.False(f.occupation(t, 1))
	req.False(f.occupation(t, 2))

	for _, c := range []*fakeConn{a, b} {
		payload, ok := c.last(domain.EventMatchUpdate)
		req.True(ok)
		req.Equal(domain.MatchUpdate{Status: domain.StatusIdle}, payload)
		entry, _ := f.registry.Get(c.id)
		req.False(entry.IsOccupied)
	}

	left, ok := b.last(domain.EventOpponentLeft)
	req.True(ok)
	req.Equal(domain.OpponentLeftPayload{UserID: 1}, left)
	_, ok = a.last(domain.EventOpponentLeft)
	req.False(ok)
}

func TestLeaveMatch_SecondCallIsNoop(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	matchID := f.matched(t)

	changed, err := f.uc.LeaveMatch(ctx, 1, matchID)
	req.NoError(err)
	req.True(changed)

	changed, err = f.uc.LeaveMatch(ctx, 2, matchID)
	req.NoError(err)
	req.False(changed)

	match, err := f.store.Matches().GetByID(ctx, matchID)
	req.NoError(err)
	req.False(match.IsActive)
}

func TestLeaveMatch_StorageFailureResetsInitiator(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a, b := &fakeConn{id: "a"}, &fakeConn{id: "b"}
	f.registry.Register(a, 1, domain.GenderFemale, false)
	f.registry.Register(b, 2, domain.GenderMale, false)
	matchID := f.matched(t)

	dbErr := errors.New("connection reset by peer")
	broken := lifecycle.NewLifecycleUseCase(brokenTxManager{err: dbErr}, f.store.Matches(), f.store.Users(),
		f.matching, f.registry, f.notifier, slog.New(slog.DiscardHandler))

	changed, err := broken.LeaveMatch(ctx, 1, matchID)
	req.ErrorIs(err, dbErr)
	req.False(changed)

	entry, _ := f.registry.Get("a")
	req.False(entry.IsOccupied)
	entry, _ = f.registry.Get("b")
	req.True(entry.IsOccupied)

	match, err := f.store.Matches().GetByID(ctx, matchID)
	req.NoError(err)
	req.True(match.IsActive)
	req.True(f.occupation(t, 1))
	req.True(f.occupation(t, 2))

	_, ok := b.last(domain.EventOpponentLeft)
	req.False(ok)
}

func TestLeaveMatch_Rejections(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	matchID := f.matched(t)
	f.store.PutUser(domain.User{ID: 3, Gender: domain.GenderFemale})

	_, err := f.uc.LeaveMatch(ctx, 3, matchID)
	req.ErrorIs(err, domain.ErrNotParticipant)

	_, err = f.uc.LeaveMatch(ctx, 1, "missing")
	req.ErrorIs(err, domain.ErrMatchNotFound)

	match, err := f.store.Matches().GetByID(ctx, matchID)
	req.NoError(err)
	req.True(match.IsActive)
}

func TestDisconnect_KeepsMatchActive(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	matchID := f.matched(t)
	f.registry.Register(&fakeConn{id: "d"}, 1, domain.GenderFemale, true)

	entry, ok := f.uc.Disconnect("d")
	req.True(ok)
	req.Equal(1, entry.UserID)
	req.False(f.registry.IsOnline(1))

	match, err := f.store.Matches().GetByID(ctx, matchID)
	req.NoError(err)
	req.True(match.IsActive)
	req.True(f.occupation(t, 1))
	req.True(f.occupation(t, 2))

	_, ok = f.uc.Disconnect("d")
	req.False(ok)
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("derives occupation and state from storage", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		matchID := f.matched(t)

		rec, err := f.uc.Reconcile(ctx, 2, matchID)
		req.NoError(err)
		req.True(rec.IsOccupied)
		req.Equal(domain.MatchUpdate{Status: domain.StatusMatched, MatchID: matchID}, rec.State)
		req.NoError(rec.MatchErr)
		req.Equal(matchID, rec.Match.ID)
	})

	t.Run("rejects a foreign match without failing", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		matchID := f.matched(t)
		f.store.PutUser(domain.User{ID: 3, Gender: domain.GenderFemale})

		rec, err := f.uc.Reconcile(ctx, 3, matchID)
		req.NoError(err)
		req.False(rec.IsOccupied)
		req.Equal(domain.StatusIdle, rec.State.Status)
		req.ErrorIs(rec.MatchErr, domain.ErrNotParticipant)
		req.Nil(rec.Match)
	})

	t.Run("rejects an ended match", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		matchID := f.matched(t)
		_, err := f.uc.LeaveMatch(ctx, 1, matchID)
		req.NoError(err)

		rec, err := f.uc.Reconcile(ctx, 1, matchID)
		req.NoError(err)
		req.ErrorIs(rec.MatchErr, domain.ErrMatchInactive)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.uc.Reconcile(ctx, 99, "")
		require.ErrorIs(t, err, domain.ErrUserNotFound)
	})
}

func TestMatchDetail(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	matchID := f.matched(t)
	f.store.PutUser(domain.User{ID: 3, Gender: domain.GenderFemale})

	detail, err := f.uc.MatchDetail(ctx, 2, matchID)
	req.NoError(err)
	req.Equal(matchID, detail.Match.ID)
	req.Len(detail.Participants, 2)
	req.Equal("Alice", detail.Participants[0].DisplayName)
	req.Equal([]string{"jazz"}, detail.Participants[0].Interests)

	_, err = f.uc.MatchDetail(ctx, 3, matchID)
	req.ErrorIs(err, domain.ErrNotParticipant)

	active, err := f.uc.ActiveMatch(ctx, 1)
	req.NoError(err)
	req.Equal(matchID, active.ID)

	history, err := f.uc.History(ctx, 1, 10, 0)
	req.NoError(err)
	req.Len(history, 1)
}
