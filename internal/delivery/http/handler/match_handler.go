package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/domain"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/usecase/chat"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/usecase/lifecycle"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/usecase/matching"
	"github.com/gin-gonic/gin"
)

type MatchHandler struct {
	matchingUseCase  *matching.MatchingUseCase
	lifecycleUseCase *lifecycle.LifecycleUseCase
	chatUseCase      *chat.ChatUseCase
	log              *slog.Logger
}

func NewMatchHandler(
	matchingUseCase *matching.MatchingUseCase,
	lifecycleUseCase *lifecycle.LifecycleUseCase,
	chatUseCase *chat.ChatUseCase,
	log *slog.Logger,
) *MatchHandler {
	return &MatchHandler{
		matchingUseCase:  matchingUseCase,
		lifecycleUseCase: lifecycleUseCase,
		chatUseCase:      chatUseCase,
		log:              log,
	}
}

// MatchIDResponse carries a match id
type MatchIDResponse struct {
	MatchID          string `json:"matchId"`
	CreditsRemaining *int   `json:"creditsRemaining,omitempty"`
}

// QueuedResponse is returned when the caller was put on the waitlist
type QueuedResponse struct {
	Message          string             `json:"message"`
	Status           domain.MatchStatus `json:"status"`
	CreditsRemaining int                `json:"creditsRemaining"`
}

// StatusResponse describes the caller's matching state
type StatusResponse struct {
	IsWaiting   bool             `json:"isWaiting"`
	ActiveMatch *MatchIDResponse `json:"activeMatch"`
}

// LeaveResponse is returned by the leave endpoint
type LeaveResponse struct {
	Message string `json:"message"`
	Ended   bool   `json:"ended"`
}

// Start handles POST /matches/start
// @Summary Start matching
// @Description Seeker asks for a partner. Pairs immediately or joins the waitlist.
// @Tags matches
// @Security BearerAuth
// @Produce json
// @Success 200 {object} MatchIDResponse
// @Success 202 {object} QueuedResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /matches/start [post]
func (h *MatchHandler) Start(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	res, err := h.matchingUseCase.RequestMatch(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.log, err, "failed to start matching")
		return
	}

	if res.Status == domain.StatusMatched {
		c.JSON(http.StatusOK, MatchIDResponse{MatchID: res.MatchID, CreditsRemaining: &res.CreditsRemaining})
		return
	}
	c.JSON(http.StatusAccepted, QueuedResponse{
		Message:          "added to waitlist",
		Status:           res.Status,
		CreditsRemaining: res.CreditsRemaining,
	})
}

// Check handles GET /matches/check
// @Summary Poll for a match
// @Description Retries pairing for a waiting seeker. 204 while nothing is found.
// @Tags matches
// @Security BearerAuth
// @Produce json
// @Success 200 {object} MatchIDResponse
// @Success 204
// @Failure 500 {object} ErrorResponse
// @Router /matches/check [get]
func (h *MatchHandler) Check(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	res, err := h.matchingUseCase.PollForMatch(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotQueued) {
			c.Status(http.StatusNoContent)
			return
		}
		writeError(c, h.log, err, "failed to check match")
		return
	}

	if res.Status != domain.StatusMatched {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, MatchIDResponse{MatchID: res.MatchID})
}

// Stop handles POST /matches/stop
// @Summary Leave the waitlist
// @Description Always succeeds, also when the caller was not queued
// @Tags matches
// @Security BearerAuth
// @Produce json
// @Success 200 {object} MessageResponse
// @Failure 500 {object} ErrorResponse
// @Router /matches/stop [post]
func (h *MatchHandler) Stop(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	if err := h.matchingUseCase.Cancel(c.Request.Context(), userID); err != nil {
		writeError(c, h.log, err, "failed to stop matching")
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "matching stopped"})
}

// JoinQueue handles POST /matches/join-queue
// @Summary Join the waitlist
// @Description Counterpart joins the waitlist until a seeker picks them or the entry expires
// @Tags matches
// @Security BearerAuth
// @Produce json
// @Success 200 {object} QueuedResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /matches/join-queue [post]
func (h *MatchHandler) JoinQueue(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	res, err := h.matchingUseCase.JoinQueueAsCounterpart(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.log, err, "failed to join queue")
		return
	}
	c.JSON(http.StatusOK, QueuedResponse{
		Message:          "added to waitlist",
		Status:           res.Status,
		CreditsRemaining: res.CreditsRemaining,
	})
}

// Status handles GET /matches/status
// @Summary Matching status
// @Tags matches
// @Security BearerAuth
// @Produce json
// @Success 200 {object} StatusResponse
// @Failure 500 {object} ErrorResponse
// @Router /matches/status [get]
func (h *MatchHandler) Status(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	st, err := h.matchingUseCase.Status(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.log, err, "failed to get status")
		return
	}

	resp := StatusResponse{IsWaiting: st.IsWaiting}
	if st.ActiveMatch != nil {
		resp.ActiveMatch = &MatchIDResponse{MatchID: st.ActiveMatch.ID}
	}
	c.JSON(http.StatusOK, resp)
}

// Active handles GET /matches/active
// @Summary Active match
// @Tags matches
// @Security BearerAuth
// @Produce json
// @Success 200 {object} MatchIDResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /matches/active [get]
func (h *MatchHandler) Active(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	match, err := h.lifecycleUseCase.ActiveMatch(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.log, err, "failed to get active match")
		return
	}
	c.JSON(http.StatusOK, MatchIDResponse{MatchID: match.ID})
}

// History handles GET /matches/history
// @Summary Past and current matches of the caller, newest first
// @Tags matches
// @Security BearerAuth
// @Produce json
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} domain.Match
// @Failure 500 {object} ErrorResponse
// @Router /matches/history [get]
func (h *MatchHandler) History(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)
	matches, err := h.lifecycleUseCase.History(c.Request.Context(), userID, limit, offset)
	if err != nil {
		writeError(c, h.log, err, "failed to get match history")
		return
	}
	if matches == nil {
		matches = []*domain.Match{}
	}
	c.JSON(http.StatusOK, matches)
}

// Get handles GET /matches/:matchId
// @Summary Match detail
// @Description Match with both participants' public profiles
// @Tags matches
// @Security BearerAuth
// @Produce json
// @Param matchId path string true "Match ID"
// @Success 200 {object} lifecycle.MatchDetail
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /matches/{matchId} [get]
func (h *MatchHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	detail, err := h.lifecycleUseCase.MatchDetail(c.Request.Context(), userID, c.Param("matchId"))
	if err != nil {
		writeError(c, h.log, err, "failed to get match")
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Leave handles POST /matches/:matchId/leave
// @Summary Leave a match
// @Description Ends the match for both participants. Leaving an ended match succeeds.
// @Tags matches
// @Security BearerAuth
// @Produce json
// @Param matchId path string true "Match ID"
// @Success 200 {object} LeaveResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /matches/{matchId}/leave [post]
func (h *MatchHandler) Leave(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	ended, err := h.lifecycleUseCase.LeaveMatch(c.Request.Context(), userID, c.Param("matchId"))
	if err != nil {
		writeError(c, h.log, err, "failed to leave match")
		return
	}
	c.JSON(http.StatusOK, LeaveResponse{Message: "left match", Ended: ended})
}

// Messages handles GET /matches/:matchId/messages
// @Summary Chat history
// @Description Latest messages of the match, oldest first
// @Tags matches
// @Security BearerAuth
// @Produce json
// @Param matchId path string true "Match ID"
// @Param limit query int false "Maximum number of messages"
// @Success 200 {array} domain.ChatMessagePayload
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /matches/{matchId}/messages [get]
func (h *MatchHandler) Messages(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	msgs, err := h.chatUseCase.History(c.Request.Context(), userID, c.Param("matchId"), queryInt(c, "limit", 0))
	if err != nil {
		writeError(c, h.log, err, "failed to get messages")
		return
	}

	out := make([]domain.ChatMessagePayload, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, domain.NewChatMessagePayload(m))
	}
	c.JSON(http.StatusOK, out)
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}
