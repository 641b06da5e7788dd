package repository

import (
	"context"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/domain"
)

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	// ListByMatch returns the latest limit messages in ascending creation order.
	ListByMatch(ctx context.Context, matchID string, limit int) ([]*domain.Message, error)
	// MarkRead flags every message of the match not sent by readerID.
	MarkRead(ctx context.Context, matchID string, readerID int) (int64, error)
}
