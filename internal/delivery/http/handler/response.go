package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/domain"
	"github.com/gin-gonic/gin"
)

// ErrorResponse represents error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse represents a plain acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}

type errorStatus struct {
	target error
	status int
}

var errorStatuses = []errorStatus{
	{domain.ErrInvalidToken, http.StatusUnauthorized},
	{domain.ErrNotParticipant, http.StatusForbidden},
	{domain.ErrUserNotFound, http.StatusNotFound},
	{domain.ErrMatchNotFound, http.StatusNotFound},
	{domain.ErrNotQueued, http.StatusNotFound},
	{domain.ErrInsufficientCredit, http.StatusBadRequest},
	{domain.ErrAlreadyMatched, http.StatusBadRequest},
	{domain.ErrAlreadyQueued, http.StatusBadRequest},
	{domain.ErrMatchInactive, http.StatusBadRequest},
	{domain.ErrEmptyMessage, http.StatusBadRequest},
	{domain.ErrMessageTooLong, http.StatusBadRequest},
	{domain.ErrInvalidInput, http.StatusBadRequest},
}

// StatusFor maps a use case error to its HTTP status and client message.
// Unknown errors map to 500 with the fallback message.
func StatusFor(err error, fallback string) (int, string) {
	var roleErr *domain.RoleError
	if errors.As(err, &roleErr) {
		return http.StatusForbidden, roleErr.Error()
	}
	for _, m := range errorStatuses {
		if errors.Is(err, m.target) {
			return m.status, m.target.Error()
		}
	}
	return http.StatusInternalServerError, fallback
}

func writeError(c *gin.Context, log *slog.Logger, err error, fallback string) {
	status, message := StatusFor(err, fallback)
	if status == http.StatusInternalServerError {
		log.Error(fallback, "error", err, "path", c.FullPath())
	}
	c.JSON(status, ErrorResponse{Error: message})
}

func currentUserID(c *gin.Context) (int, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		return 0, false
	}
	id, ok := v.(int)
	return id, ok
}
