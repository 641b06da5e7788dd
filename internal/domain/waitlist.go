package domain

import "time"

// WaitlistEntry is one row of matching_wait_list. UserID is unique.
type WaitlistEntry struct {
	ID         int64     `json:"id" db:"id"`
	UserID     int       `json:"user_id" db:"user_id"`
	Gender     Gender    `json:"gender" db:"gender"`
	EnqueuedAt time.Time `json:"enqueued_at" db:"enqueued_at"`
}

// Before reports whether e was queued ahead of other. Equal timestamps fall
// back to the row id.
func (e *WaitlistEntry) Before(other *WaitlistEntry) bool {
	if e.EnqueuedAt.Equal(other.EnqueuedAt) {
		return e.ID < other.ID
	}
	return e.EnqueuedAt.Before(other.EnqueuedAt)
}
