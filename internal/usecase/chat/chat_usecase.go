// Package chat is the message log of a match.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/domain"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/notify"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/repository"
)

type ParticipantAuthorizer interface {
	AuthorizeParticipant(ctx context.Context, userID int, matchID string, requireActive bool) (*domain.Match, error)
}

type ChatUseCase struct {
	messages     repository.MessageRepository
	authorizer   ParticipantAuthorizer
	notifier     notify.Notifier
	historyLimit int
	log          *slog.Logger
}

func NewChatUseCase(
	messages repository.MessageRepository,
	authorizer ParticipantAuthorizer,
	notifier notify.Notifier,
	historyLimit int,
	log *slog.Logger,
) *ChatUseCase {
	return &ChatUseCase{
		messages:     messages,
		authorizer:   authorizer,
		notifier:     notifier,
		historyLimit: historyLimit,
		log:          log,
	}
}

// Send stores the message and pushes it to both participants, so the
// sender's other tabs see it as well.
func (uc *ChatUseCase) Send(ctx context.Context, userID int, matchID, text string) (*domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > domain.MaxMessageLength {
		return nil, domain.ErrMessageTooLong
	}

	match, err := uc.authorizer.AuthorizeParticipant(ctx, userID, matchID, true)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{MatchID: match.ID, SenderID: userID, Text: text}
	if err := uc.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	payload := domain.NewChatMessagePayload(msg)
	for _, id := range match.Participants() {
		uc.notifier.Notify(ctx, id, domain.EventChatMessage, payload)
	}
	return msg, nil
}

// History returns the latest messages of a match the user takes part in,
// oldest first. Ended matches stay readable.
func (uc *ChatUseCase) History(ctx context.Context, userID int, matchID string, limit int) ([]*domain.Message, error) {
	if _, err := uc.authorizer.AuthorizeParticipant(ctx, userID, matchID, false); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > uc.historyLimit {
		limit = uc.historyLimit
	}

	msgs, err := uc.messages.ListByMatch(ctx, matchID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return msgs, nil
}

// HistoryPayload is History shaped for the chat-history event.
func (uc *ChatUseCase) HistoryPayload(ctx context.Context, userID int, matchID string) ([]domain.ChatMessagePayload, error) {
	msgs, err := uc.History(ctx, userID, matchID, uc.historyLimit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ChatMessagePayload, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, domain.NewChatMessagePayload(m))
	}
	return out, nil
}

// MarkRead flags the partner's messages as read and tells the partner.
func (uc *ChatUseCase) MarkRead(ctx context.Context, userID int, matchID string) (int64, error) {
	match, err := uc.authorizer.AuthorizeParticipant(ctx, userID, matchID, false)
	if err != nil {
		return 0, err
	}

	n, err := uc.messages.MarkRead(ctx, matchID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	if n > 0 {
		otherID, _ := match.GetOtherUserID(userID)
		uc.notifier.Notify(ctx, otherID, domain.EventMessagesRead, domain.MessagesReadPayload{MatchID: matchID, ReaderID: userID})
	}
	return n, nil
}

func (uc *ChatUseCase) Typing(ctx context.Context, userID int, matchID string, isTyping bool) error {
	match, err := uc.authorizer.AuthorizeParticipant(ctx, userID, matchID, true)
	if err != nil {
		return err
	}
	otherID, _ := match.GetOtherUserID(userID)
	uc.notifier.Notify(ctx, otherID, domain.EventTyping, domain.TypingPayload{MatchID: matchID, UserID: userID, IsTyping: isTyping})
	return nil
}
