// Package socket is the Socket.IO side of the service. Handlers work on the
// Conn interface so they can be driven without a network.
package socket

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/delivery/http/handler"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/domain"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/presence"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/usecase/auth"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/usecase/chat"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/usecase/lifecycle"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/usecase/matching"
	"github.com/go-playground/validator/v10"
)

// Conn is the part of socketio.Conn the handlers use.
type Conn interface {
	ID() string
	URL() url.URL
	RemoteHeader() http.Header
	Context() interface{}
	SetContext(v interface{})
	Emit(event string, v ...interface{})
	Close() error
}

type ChatMessageRequest struct {
	MatchID string `json:"matchId" validate:"required"`
	Text    string `json:"text" validate:"required,max=2000"`
}

type MatchRequest struct {
	MatchID string `json:"matchId" validate:"required"`
}

type TypingRequest struct {
	MatchID  string `json:"matchId" validate:"required"`
	IsTyping bool   `json:"isTyping"`
}

// session is stored in the connection context after authentication.
type session struct {
	userID int
	gender domain.Gender
}

type Handler struct {
	tokens    *auth.TokenService
	matching  *matching.MatchingUseCase
	lifecycle *lifecycle.LifecycleUseCase
	chat      *chat.ChatUseCase
	registry  *presence.Registry
	validate  *validator.Validate
	timeout   time.Duration
	log       *slog.Logger
}

func NewHandler(
	tokens *auth.TokenService,
	matchingUseCase *matching.MatchingUseCase,
	lifecycleUseCase *lifecycle.LifecycleUseCase,
	chatUseCase *chat.ChatUseCase,
	registry *presence.Registry,
	log *slog.Logger,
) *Handler {
	return &Handler{
		tokens:    tokens,
		matching:  matchingUseCase,
		lifecycle: lifecycleUseCase,
		chat:      chatUseCase,
		registry:  registry,
		validate:  validator.New(),
		timeout:   10 * time.Second,
		log:       log,
	}
}

// OnConnect authenticates the handshake and rebuilds the connection's state
// from storage. Authentication failures close the connection; a bad matchId
// only yields an error event.
func (h *Handler) OnConnect(c Conn) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	claims, err := h.tokens.Verify(handshakeToken(c))
	if err != nil {
		h.reject(c, "authentication failed")
		return nil
	}

	u := c.URL()
	matchID := u.Query().Get("matchId")
	rec, err := h.lifecycle.Reconcile(ctx, claims.UserID, matchID)
	if err != nil {
		h.log.Warn("Connection reconciliation failed", "conn_id", c.ID(), "user_id", claims.UserID, "error", err)
		h.reject(c, "authentication failed")
		return nil
	}

	sess := &session{userID: rec.User.ID, gender: rec.User.Gender}
	c.SetContext(sess)
	h.registry.Register(c, rec.User.ID, rec.User.Gender, rec.IsOccupied)
	if rec.State.Status == domain.StatusFinding || rec.State.Status == domain.StatusWaiting {
		h.registry.MarkWaiting(rec.User.ID, rec.User.Gender)
	}
	h.log.Info("Socket connected", "conn_id", c.ID(), "user_id", rec.User.ID, "status", rec.State.Status)

	c.Emit(domain.EventMatchUpdate, rec.State)

	if matchID == "" {
		return nil
	}
	if rec.MatchErr != nil {
		_, message := handler.StatusFor(rec.MatchErr, "failed to join chat")
		c.Emit(domain.EventError, domain.ErrorPayload{Message: message})
		return nil
	}

	history, err := h.chat.HistoryPayload(ctx, rec.User.ID, matchID)
	if err != nil {
		h.log.Error("Failed to load chat history", "conn_id", c.ID(), "match_id", matchID, "error", err)
		c.Emit(domain.EventError, domain.ErrorPayload{Message: "failed to load chat history"})
		return nil
	}
	c.Emit(domain.EventChatHistory, history)
	return nil
}

// OnStartMatching is the real-time twin of POST /matches/start. The outcome
// reaches the client as a match_update push.
func (h *Handler) OnStartMatching(c Conn) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if _, err := h.matching.RequestMatch(ctx, sess.userID); err != nil {
		h.emitError(c, domain.EventMatchingError, err, "failed to start matching")
	}
}

func (h *Handler) OnChatMessage(c Conn, req ChatMessageRequest) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.Emit(domain.EventError, domain.ErrorPayload{Message: "invalid message"})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if _, err := h.chat.Send(ctx, sess.userID, req.MatchID, req.Text); err != nil {
		h.emitError(c, domain.EventError, err, "failed to send message")
	}
}

// OnForceLeaveChat ends the match for both sides.
func (h *Handler) OnForceLeaveChat(c Conn, req MatchRequest) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.Emit(domain.EventError, domain.ErrorPayload{Message: "matchId is required"})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if _, err := h.lifecycle.LeaveMatch(ctx, sess.userID, req.MatchID); err != nil {
		h.emitError(c, domain.EventError, err, "failed to leave chat")
	}
}

func (h *Handler) OnTyping(c Conn, req TypingRequest) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.chat.Typing(ctx, sess.userID, req.MatchID, req.IsTyping); err != nil {
		h.log.Debug("Typing dropped", "conn_id", c.ID(), "match_id", req.MatchID, "error", err)
	}
}

func (h *Handler) OnReadMessages(c Conn, req MatchRequest) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.Emit(domain.EventError, domain.ErrorPayload{Message: "matchId is required"})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if _, err := h.chat.MarkRead(ctx, sess.userID, req.MatchID); err != nil {
		h.emitError(c, domain.EventError, err, "failed to mark messages read")
	}
}

// OnDisconnect only forgets the connection; the match stays active.
func (h *Handler) OnDisconnect(c Conn, reason string) {
	if entry, ok := h.lifecycle.Disconnect(c.ID()); ok {
		h.log.Info("Socket disconnected", "conn_id", c.ID(), "user_id", entry.UserID, "reason", reason)
	}
}

func (h *Handler) OnError(c Conn, err error) {
	id := ""
	if c != nil {
		id = c.ID()
	}
	h.log.Warn("Socket error", "conn_id", id, "error", err)
}

func (h *Handler) session(c Conn) (*session, bool) {
	sess, ok := c.Context().(*session)
	if !ok {
		c.Emit(domain.EventError, domain.ErrorPayload{Message: "not authenticated"})
		return nil, false
	}
	return sess, true
}

func (h *Handler) reject(c Conn, message string) {
	c.Emit(domain.EventError, domain.ErrorPayload{Message: message})
	if err := c.Close(); err != nil {
		h.log.Debug("Close after rejected handshake failed", "conn_id", c.ID(), "error", err)
	}
}

func (h *Handler) emitError(c Conn, event string, err error, fallback string) {
	status, message := handler.StatusFor(err, fallback)
	if status == http.StatusInternalServerError {
		h.log.Error(fallback, "conn_id", c.ID(), "error", err)
	}
	c.Emit(event, domain.ErrorPayload{Message: message})
}

// handshakeToken reads the token query parameter, falling back to a bearer
// Authorization header.
func handshakeToken(c Conn) string {
	u := c.URL()
	if token := u.Query().Get("token"); token != "" {
		return token
	}
	token, _ := strings.CutPrefix(c.RemoteHeader().Get("Authorization"), "Bearer ")
	return token
}
