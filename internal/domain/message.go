package domain

import "time"

type Message struct {
	ID        int64     `json:"id" db:"id"`
	MatchID   string    `json:"match_id" db:"match_id"`
	SenderID  int       `json:"sender_id" db:"sender_id"`
	Text      string    `json:"text" db:"text"`
	Read      bool      `json:"read" db:"is_read"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// MaxMessageLength is counted in runes.
const MaxMessageLength = 2000
