package socket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/domain"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/notify"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/presence"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/repository"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/repository/memory"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/usecase/auth"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/usecase/chat"
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
	url    url.URL
	header http.Header

	mu     sync.Mutex
	ctx    interface{}
	events []emitted
	closed bool
}

func (c *fakeConn) ID() string                { return c.id }
func (c *fakeConn) URL() url.URL              { return c.url }
func (c *fakeConn) RemoteHeader() http.Header { return c.header }

func (c *fakeConn) Context() interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

func (c *fakeConn) SetContext(v interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctx = v
}

func (c *fakeConn) Emit(event string, v ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var payload interface{}
	if len(v) > 0 {
		payload = v[0]
	}
	c.events = append(c.events, emitted{event: event, payload: payload})
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) all(event string) []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []interface{}
	for _, e := range c.events {
		if e.event == event {
			out = append(out, e.payload)
		}
	}
	return out
}

func (c *fakeConn) last(event string) interface{} {
	all := c.all(event)
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fixture struct {
	t        *testing.T
	h        *Handler
	store    *memory.Store
	registry *presence.Registry
	tokens   *auth.TokenService
	matching *matching.MatchingUseCase
	seq      int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithLifecycleTx(t, nil)
}

// newFixtureWithLifecycleTx lets a test swap the transaction manager used by
// the lifecycle use case only.
func newFixtureWithLifecycleTx(t *testing.T, wrap func(repository.TxManager) repository.TxManager) *fixture {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	store := memory.NewStore()
	registry := presence.NewRegistry()
	notifier := notify.NewLocal(registry, log)
	tokens := auth.NewTokenService("socket-secret-socket-secret-socket")

	m := matching.NewMatchingUseCase(store.TxManager(), store.Waitlist(), store.Matches(), registry, notifier,
		matching.Config{Roles: domain.DefaultRoles(), QueueTimeout: time.Hour}, log)
	t.Cleanup(m.Expiry().Stop)
	lifecycleTx := store.TxManager()
	if wrap != nil {
		lifecycleTx = wrap(lifecycleTx)
	}
	lc := lifecycle.NewLifecycleUseCase(lifecycleTx, store.Matches(), store.Users(), m, registry, notifier, log)
	ch := chat.NewChatUseCase(store.Messages(), lc, notifier, 50, log)

	return &fixture{
		t:        t,
		h:        NewHandler(tokens, m, lc, ch, registry, log),
		store:    store,
		registry: registry,
		tokens:   tokens,
		matching: m,
	}
}

func (f *fixture) connect(userID int, gender domain.Gender, matchID string) *fakeConn {
	f.t.Helper()
	token, err := f.tokens.Issue(userID, gender, "approved", time.Hour)
	require.NoError(f.t, err)
	return f.connectWithToken(token, matchID)
}

func (f *fixture) connectWithToken(token, matchID string) *fakeConn {
	f.t.Helper()
	f.seq++
	q := url.Values{}
	q.Set("token", token)
	if matchID != "" {
		q.Set("matchId", matchID)
	}
	c := &fakeConn{
		id:     fmt.Sprintf("conn-%d", f.seq),
		url:    url.URL{Path: "/socket.io/", RawQuery: q.Encode()},
		header: http.Header{},
	}
	require.NoError(f.t, f.h.OnConnect(c))
	return c
}

func (f *fixture) users() {
	f.store.PutUser(domain.User{ID: 1, Gender: domain.GenderFemale, Credit: 2})
	f.store.PutUser(domain.User{ID: 2, Gender: domain.GenderMale, Credit: 2})
}

func TestOnConnect_RejectsBadToken(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	c := f.connectWithToken("nope", "")
	req.True(c.isClosed())
	req.Equal(domain.ErrorPayload{Message: "authentication failed"}, c.last(domain.EventError))
	req.Zero(f.registry.Count())
}

func TestOnConnect_TokenFromHeader(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.users()

	token, err := f.tokens.Issue(1, domain.GenderFemale, "", time.Hour)
	req.NoError(err)
	c := &fakeConn{id: "h", header: http.Header{"Authorization": []string{"Bearer " + token}}}

	req.NoError(f.h.OnConnect(c))
	req.False(c.isClosed())
	req.Equal(domain.MatchUpdate{Status: domain.StatusIdle}, c.last(domain.EventMatchUpdate))
}

func TestOnConnect_UnknownUserIsRejected(t *testing.T) {
	f := newFixture(t)
	c := f.connect(42, domain.GenderMale, "")
	require.True(t, c.isClosed())
}

func TestSocket_MatchChatAndLeave(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.users()

	alice := f.connect(1, domain.GenderFemale, "")
	bob := f.connect(2, domain.GenderMale, "")

	// Counterparts only queue over HTTP
	_, err := f.matching.JoinQueueAsCounterpart(t.Context(), 2)
	req.NoError(err)
	req.Equal(domain.MatchUpdate{Status: domain.StatusWaiting}, bob.last(domain.EventMatchUpdate))

	f.h.OnStartMatching(alice)
	update, ok := alice.last(domain.EventMatchUpdate).(domain.MatchUpdate)
	req.True(ok)
	req.Equal(domain.StatusMatched, update.Status)
	req.Equal(update, bob.last(domain.EventMatchUpdate))
	matchID := update.MatchID

	entry, _ := f.registry.Get(alice.ID())
	req.True(entry.IsOccupied)

	f.h.OnChatMessage(alice, ChatMessageRequest{MatchID: matchID, Text: "hello"})
	msg, ok := bob.last(domain.EventChatMessage).(domain.ChatMessagePayload)
	req.True(ok)
	req.Equal("hello", msg.Text)
	req.Equal(1, msg.SenderID)
	req.Len(alice.all(domain.EventChatMessage), 1)

	f.h.OnTyping(bob, TypingRequest{MatchID: matchID, IsTyping: true})
	req.Equal(domain.TypingPayload{MatchID: matchID, UserID: 2, IsTyping: true}, alice.last(domain.EventTyping))

	f.h.OnReadMessages(bob, MatchRequest{MatchID: matchID})
	req.Equal(domain.MessagesReadPayload{MatchID: matchID, ReaderID: 2}, alice.last(domain.EventMessagesRead))

	f.h.OnForceLeaveChat(bob, MatchRequest{MatchID: matchID})
	req.Equal(domain.MatchUpdate{Status: domain.StatusIdle}, alice.last(domain.EventMatchUpdate))
	req.Equal(domain.MatchUpdate{Status: domain.StatusIdle}, bob.last(domain.EventMatchUpdate))
	req.Equal(domain.OpponentLeftPayload{UserID: 2}, alice.last(domain.EventOpponentLeft))

	entry, _ = f.registry.Get(alice.ID())
	req.False(entry.IsOccupied)

	// Sending into an ended match is refused with an error event
	f.h.OnChatMessage(alice, ChatMessageRequest{MatchID: matchID, Text: "still there?"})
	req.Equal(domain.ErrorPayload{Message: domain.ErrMatchInactive.Error()}, alice.last(domain.EventError))
}

type brokenTxManager struct{ err error }

func (m brokenTxManager) WithinTx(context.Context, func(context.Context, repository.Tx) error) error {
	return m.err
}

func TestSocket_ForceLeaveStorageFailure(t *testing.T) {
	req := require.New(t)
	f := newFixtureWithLifecycleTx(t, func(repository.TxManager) repository.TxManager {
		return brokenTxManager{err: errors.New("connection reset by peer")}
	})
	f.users()

	alice := f.connect(1, domain.GenderFemale, "")
	bob := f.connect(2, domain.GenderMale, "")
	_, err := f.matching.JoinQueueAsCounterpart(t.Context(), 2)
	req.NoError(err)
	f.h.OnStartMatching(alice)
	update, ok := alice.last(domain.EventMatchUpdate).(domain.MatchUpdate)
	req.True(ok)
	req.Equal(domain.StatusMatched, update.Status)

	f.h.OnForceLeaveChat(alice, MatchRequest{MatchID: update.MatchID})
	req.Equal(domain.ErrorPayload{Message: "failed to leave chat"}, alice.last(domain.EventError))
	req.Nil(bob.last(domain.EventOpponentLeft))

	entry, _ := f.registry.Get(alice.ID())
	req.False(entry.IsOccupied)
	entry, _ = f.registry.Get(bob.ID())
	req.True(entry.IsOccupied)

	match, err := f.store.Matches().GetByID(t.Context(), update.MatchID)
	req.NoError(err)
	req.True(match.IsActive)
}

func TestSocket_StartMatchingErrors(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.users()

	bob := f.connect(2, domain.GenderMale, "")
	f.h.OnStartMatching(bob)
	req.Equal(domain.ErrorPayload{Message: "only female users can initiate matching"}, bob.last(domain.EventMatchingError))

	unauthenticated := &fakeConn{id: "x"}
	f.h.OnStartMatching(unauthenticated)
	req.Equal(domain.ErrorPayload{Message: "not authenticated"}, unauthenticated.last(domain.EventError))
}

func TestSocket_ChatValidation(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.users()
	alice := f.connect(1, domain.GenderFemale, "")

	f.h.OnChatMessage(alice, ChatMessageRequest{MatchID: "", Text: "hi"})
	req.Equal(domain.ErrorPayload{Message: "invalid message"}, alice.last(domain.EventError))

	f.h.OnChatMessage(alice, ChatMessageRequest{MatchID: "m", Text: strings.Repeat("a", domain.MaxMessageLength+1)})
	req.Equal(domain.ErrorPayload{Message: "invalid message"}, alice.last(domain.EventError))

	f.h.OnForceLeaveChat(alice, MatchRequest{})
	req.Equal(domain.ErrorPayload{Message: "matchId is required"}, alice.last(domain.EventError))
}

func TestSocket_ReconnectRecoversState(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.users()
	f.store.PutUser(domain.User{ID: 3, Gender: domain.GenderFemale, Credit: 1})

	// Matched while both were offline
	_, err := f.matching.JoinQueueAsCounterpart(t.Context(), 2)
	req.NoError(err)
	res, err := f.matching.RequestMatch(t.Context(), 1)
	req.NoError(err)

	first := f.connect(1, domain.GenderFemale, res.MatchID)
	f.h.OnChatMessage(first, ChatMessageRequest{MatchID: res.MatchID, Text: "are you here?"})

	bob := f.connect(2, domain.GenderMale, res.MatchID)
	req.Equal(domain.MatchUpdate{Status: domain.StatusMatched, MatchID: res.MatchID}, bob.last(domain.EventMatchUpdate))
	entry, _ := f.registry.Get(bob.ID())
	req.True(entry.IsOccupied)

	history, ok := bob.last(domain.EventChatHistory).([]domain.ChatMessagePayload)
	req.True(ok)
	req.Len(history, 1)
	req.Equal("are you here?", history[0].Text)

	// A disconnect keeps the match
	f.h.OnDisconnect(bob, "transport close")
	req.False(f.registry.IsOnline(2))
	active, err := f.store.Matches().GetActiveByUser(t.Context(), 2)
	req.NoError(err)
	req.Equal(res.MatchID, active.ID)

	// Someone else asking for that match gets an error but stays connected
	eve := f.connect(3, domain.GenderFemale, res.MatchID)
	req.False(eve.isClosed())
	req.Equal(domain.ErrorPayload{Message: domain.ErrNotParticipant.Error()}, eve.last(domain.EventError))
	req.Nil(eve.last(domain.EventChatHistory))
}
