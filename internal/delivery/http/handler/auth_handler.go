package handler

import (
	"log/slog"
	"net/http"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/repository"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	users repository.UserRepository
	log   *slog.Logger
}

func NewAuthHandler(users repository.UserRepository, log *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users: users,
		log:   log,
	}
}

// MeResponse is the caller's own matching-relevant account state
type MeResponse struct {
	ID         int    `json:"id"`
	Gender     string `json:"gender"`
	Status     string `json:"status"`
	Credit     int    `json:"credit"`
	Occupation bool   `json:"occupation"`
}

// Me returns current user info
// @Summary Get current user
// @Description Get authenticated user's gender, credit and occupation
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} MeResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error: "unauthorized",
		})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.log, err, "failed to get user")
		return
	}

	c.JSON(http.StatusOK, MeResponse{
		ID:         user.ID,
		Gender:     string(user.Gender),
		Status:     user.Status,
		Credit:     user.Credit,
		Occupation: user.Occupation,
	})
}
