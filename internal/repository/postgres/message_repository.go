package postgres

import (
	"context"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/domain"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/repository"
	"github.com/jmoiron/sqlx"
)

type messageRepository struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) repository.MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (match_id, sender_id, text)
		VALUES ($1, $2, $3)
		RETURNING id, is_read, created_at
	`
	return r.db.QueryRowContext(ctx, query, msg.MatchID, msg.SenderID, msg.Text).
		Scan(&msg.ID, &msg.Read, &msg.CreatedAt)
}

func (r *messageRepository) ListByMatch(ctx context.Context, matchID string, limit int) ([]*domain.Message, error) {
	messages := []*domain.Message{}
	query := `
		SELECT id, match_id, sender_id, text, is_read, created_at FROM (
			SELECT id, match_id, sender_id, text, is_read, created_at
			FROM messages
			WHERE match_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) latest
		ORDER BY created_at ASC, id ASC
	`
	err := r.db.SelectContext(ctx, &messages, query, matchID, limit)
	return messages, err
}

func (r *messageRepository) MarkRead(ctx context.Context, matchID string, readerID int) (int64, error) {
	query := `
		UPDATE messages SET is_read = true
		WHERE match_id = $1 AND sender_id <> $2 AND is_read = false
	`
	result, err := r.db.ExecContext(ctx, query, matchID, readerID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
