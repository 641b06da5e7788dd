package http_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	deliveryhttp "github.com/gdugdh24/mpit2026-matchqueue/internal/delivery/http"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/delivery/http/handler"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/delivery/http/middleware"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/domain"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/notify"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/presence"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/repository/memory"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/usecase/auth"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/usecase/chat"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/usecase/lifecycle"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/usecase/matching"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-test-secret-test-secret"

type testServer struct {
	t      *testing.T
	engine *gin.Engine
	store  *memory.Store
	tokens *auth.TokenService
	chat   *chat.ChatUseCase
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := slog.New(slog.DiscardHandler)
	store := memory.NewStore()
	registry := presence.NewRegistry()
	notifier := notify.NewLocal(registry, log)
	tokens := auth.NewTokenService(testSecret)

	matchingUC := matching.NewMatchingUseCase(store.TxManager(), store.Waitlist(), store.Matches(), registry, notifier,
		matching.Config{Roles: domain.DefaultRoles(), QueueTimeout: time.Hour}, log)
	t.Cleanup(matchingUC.Expiry().Stop)
	lifecycleUC := lifecycle.NewLifecycleUseCase(store.TxManager(), store.Matches(), store.Users(), matchingUC, registry, notifier, log)
	chatUC := chat.NewChatUseCase(store.Messages(), lifecycleUC, notifier, 100, log)

	router := deliveryhttp.NewRouter(
		handler.NewAuthHandler(store.Users(), log),
		handler.NewMatchHandler(matchingUC, lifecycleUC, chatUC, log),
		middleware.NewAuthMiddleware(tokens),
		nil,
		log,
	)
	return &testServer{t: t, engine: router.Setup(), store: store, tokens: tokens, chat: chatUC}
}

func (s *testServer) user(id int, gender domain.Gender, credit int) string {
	s.t.Helper()
	s.store.PutUser(domain.User{ID: id, DisplayName: "user", Gender: gender, Credit: credit, Status: "approved"})
	token, err := s.tokens.Issue(id, gender, "approved", time.Hour)
	require.NoError(s.t, err)
	return token
}

func (s *testServer) do(method, path, token string) (int, map[string]interface{}) {
	s.t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	var body map[string]interface{}
	if rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec.Code, body
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)

	for _, method := range []string{http.MethodGet, http.MethodHead} {
		req := httptest.NewRequest(method, "/health", nil)
		rec := httptest.NewRecorder()
		s.engine.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
	}
}

func TestRouter_RequiresToken(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(http.MethodPost, "/api/v1/matches/start", "")
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, "missing authorization token", body["error"])

	code, _ = s.do(http.MethodPost, "/api/v1/matches/start", "garbage")
	require.Equal(t, http.StatusUnauthorized, code)
}

func TestRouter_MatchFlow(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)
	alice := s.user(1, domain.GenderFemale, 1)
	bob := s.user(2, domain.GenderMale, 1)
	eve := s.user(3, domain.GenderFemale, 1)

	// Nobody is waiting yet
	code, body := s.do(http.MethodPost, "/api/v1/matches/start", alice)
	req.Equal(http.StatusAccepted, code)
	req.Equal("finding", body["status"])
	req.EqualValues(0, body["creditsRemaining"])

	code, body = s.do(http.MethodGet, "/api/v1/matches/check", alice)
	req.Equal(http.StatusNoContent, code)
	req.Nil(body)

	code, body = s.do(http.MethodPost, "/api/v1/matches/join-queue", bob)
	req.Equal(http.StatusOK, code)
	req.EqualValues(0, body["creditsRemaining"])

	code, body = s.do(http.MethodGet, "/api/v1/matches/status", bob)
	req.Equal(http.StatusOK, code)
	req.Equal(true, body["isWaiting"])
	req.Nil(body["activeMatch"])

	code, body = s.do(http.MethodGet, "/api/v1/matches/check", alice)
	req.Equal(http.StatusOK, code)
	matchID, _ := body["matchId"].(string)
	req.NotEmpty(matchID)

	code, body = s.do(http.MethodGet, "/api/v1/matches/status", bob)
	req.Equal(http.StatusOK, code)
	req.Equal(false, body["isWaiting"])
	req.Equal(map[string]interface{}{"matchId": matchID}, body["activeMatch"])

	code, body = s.do(http.MethodGet, "/api/v1/matches/active", bob)
	req.Equal(http.StatusOK, code)
	req.Equal(matchID, body["matchId"])

	code, body = s.do(http.MethodGet, "/api/v1/matches/"+matchID, bob)
	req.Equal(http.StatusOK, code)
	req.Len(body["participants"], 2)

	code, _ = s.do(http.MethodGet, "/api/v1/matches/"+matchID, eve)
	req.Equal(http.StatusForbidden, code)

	_, err := s.chat.Send(context.Background(), 1, matchID, "hi bob")
	req.NoError(err)
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/matches/"+matchID+"/messages", nil)
	r.Header.Set("Authorization", "Bearer "+bob)
	s.engine.ServeHTTP(rec, r)
	req.Equal(http.StatusOK, rec.Code)
	var msgs []domain.ChatMessagePayload
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &msgs))
	req.Len(msgs, 1)
	req.Equal("hi bob", msgs[0].Text)
	req.Equal(1, msgs[0].SenderID)

	code, body = s.do(http.MethodPost, "/api/v1/matches/"+matchID+"/leave", alice)
	req.Equal(http.StatusOK, code)
	req.Equal(true, body["ended"])

	code, body = s.do(http.MethodPost, "/api/v1/matches/"+matchID+"/leave", bob)
	req.Equal(http.StatusOK, code)
	req.Equal(false, body["ended"])

	code, _ = s.do(http.MethodGet, "/api/v1/matches/active", alice)
	req.Equal(http.StatusNotFound, code)

	code, _ = s.do(http.MethodGet, "/api/v1/matches/check", alice)
	req.Equal(http.StatusNoContent, code)

	code, body = s.do(http.MethodGet, "/api/v1/auth/me", alice)
	req.Equal(http.StatusOK, code)
	req.Equal(false, body["occupation"])
	req.EqualValues(0, body["credit"])
}

func TestRouter_Preconditions(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)
	bob := s.user(2, domain.GenderMale, 1)
	broke := s.user(4, domain.GenderFemale, 0)

	code, body := s.do(http.MethodPost, "/api/v1/matches/start", bob)
	req.Equal(http.StatusForbidden, code)
	req.Equal("only female users can initiate matching", body["error"])

	code, body = s.do(http.MethodPost, "/api/v1/matches/start", broke)
	req.Equal(http.StatusBadRequest, code)
	req.Equal("not enough credits", body["error"])

	code, _ = s.do(http.MethodPost, "/api/v1/matches/join-queue", broke)
	req.Equal(http.StatusForbidden, code)

	code, _ = s.do(http.MethodPost, "/api/v1/matches/join-queue", bob)
	req.Equal(http.StatusOK, code)
	code, body = s.do(http.MethodPost, "/api/v1/matches/join-queue", bob)
	req.Equal(http.StatusBadRequest, code)
	req.Equal(domain.ErrAlreadyQueued.Error(), body["error"])

	// A valid token for a user that does not exist
	ghost, err := s.tokens.Issue(99, domain.GenderMale, "", time.Hour)
	req.NoError(err)
	code, _ = s.do(http.MethodPost, "/api/v1/matches/join-queue", ghost)
	req.Equal(http.StatusNotFound, code)

	code, _ = s.do(http.MethodGet, "/api/v1/matches/missing", bob)
	req.Equal(http.StatusNotFound, code)
}

func TestRouter_StopAlwaysSucceeds(t *testing.T) {
	s := newTestServer(t)
	bob := s.user(2, domain.GenderMale, 1)

	for i := 0; i < 2; i++ {
		code, body := s.do(http.MethodPost, "/api/v1/matches/stop", bob)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "matching stopped", body["message"])
	}

	code, _ := s.do(http.MethodPost, "/api/v1/matches/join-queue", bob)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodPost, "/api/v1/matches/stop", bob)
	require.Equal(t, http.StatusOK, code)

	code, body := s.do(http.MethodGet, "/api/v1/matches/status", bob)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, false, body["isWaiting"])
}
