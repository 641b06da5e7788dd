package domain

import "time"

// MatchStatus values are mutually exclusive for a user at any instant.
type MatchStatus string

const (
	StatusMatched MatchStatus = "matched"
	StatusFinding MatchStatus = "finding"
	StatusWaiting MatchStatus = "waiting"
	StatusIdle    MatchStatus = "idle"
)

// Server -> client event names.
const (
	EventMatchUpdate   = "match_update"
	EventChatHistory   = "chat-history"
	EventChatMessage   = "chat message"
	EventOpponentLeft  = "opponent-left-chat"
	EventTyping        = "typing"
	EventMessagesRead  = "messages-read"
	EventIcebreakers   = "icebreakers"
	EventError         = "error"
	EventMatchingError = "matching-error"
)

type MatchUpdate struct {
	Status  MatchStatus `json:"status"`
	MatchID string      `json:"matchId,omitempty"`
}

type ChatMessagePayload struct {
	MatchID   string    `json:"matchId"`
	SenderID  int       `json:"senderId"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChatMessagePayload(m *Message) ChatMessagePayload {
	return ChatMessagePayload{
		MatchID:   m.MatchID,
		SenderID:  m.SenderID,
		Text:      m.Text,
		Timestamp: m.CreatedAt,
	}
}

type OpponentLeftPayload struct {
	UserID int `json:"userId"`
}

type TypingPayload struct {
	MatchID  string `json:"matchId"`
	UserID   int    `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

type MessagesReadPayload struct {
	MatchID  string `json:"matchId"`
	ReaderID int    `json:"readerId"`
}

type IcebreakersPayload struct {
	MatchID     string   `json:"matchId"`
	Suggestions []string `json:"suggestions"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
