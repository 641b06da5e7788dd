package domain

import (
	"fmt"
	"time"
)

type Match struct {
	ID        string    `json:"id" db:"id"`
	User1ID   int       `json:"user1_id" db:"user1_id"`
	User2ID   int       `json:"user2_id" db:"user2_id"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewMatchID embeds both participants and the creation time, which keeps ids
// unique without a database sequence.
func NewMatchID(user1ID, user2ID int, at time.Time) string {
	return fmt.Sprintf("%d_%d_%d", user1ID, user2ID, at.UnixNano())
}

func (m *Match) HasUser(userID int) bool {
	return m.User1ID == userID || m.User2ID == userID
}

func (m *Match) GetOtherUserID(userID int) (int, bool) {
	if m.User1ID == userID {
		return m.User2ID, true
	}
	if m.User2ID == userID {
		return m.User1ID, true
	}
	return 0, false
}

func (m *Match) Participants() []int {
	return []int{m.User1ID, m.User2ID}
}
