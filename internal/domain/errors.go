package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrMatchNotFound      = errors.New("match not found")
	ErrMatchInactive      = errors.New("match is not active")
	ErrNotParticipant     = errors.New("user is not a participant of this match")
	ErrAlreadyMatched     = errors.New("user already has an active match")
	ErrAlreadyQueued      = errors.New("user is already in the waitlist")
	ErrNotQueued          = errors.New("user is not in the waitlist")
	ErrInsufficientCredit = errors.New("not enough credits")
	ErrWrongRole          = errors.New("wrong role for this action")
	ErrEmptyMessage       = errors.New("message text is empty")
	ErrMessageTooLong     = errors.New("message text is too long")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidInput       = errors.New("invalid input")
)

// RoleError is returned when a user's gender does not allow the requested
// action. It matches ErrWrongRole with errors.Is.
type RoleError struct {
	Required Gender
	Action   string
}

func (e *RoleError) Error() string {
	return fmt.Sprintf("only %s users can %s", e.Required, e.Action)
}

func (e *RoleError) Unwrap() error {
	return ErrWrongRole
}
