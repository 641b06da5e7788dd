package domain

// SessionEntry describes one live real-time connection. It only lives in
// process memory; IsOccupied is a hint derived from User.Occupation.
type SessionEntry struct {
	ConnectionID string `json:"connection_id"`
	UserID       int    `json:"user_id"`
	Gender       Gender `json:"gender"`
	IsOccupied   bool   `json:"is_occupied"`
}
