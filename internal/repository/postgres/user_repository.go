package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/domain"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const userColumns = `id, display_name, gender, status, credit, occupation, bio, photo_url, interests, created_at, updated_at`

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id int) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowxContext(ctx, query, id))
}

func (r *userRepository) GetByIDs(ctx context.Context, ids []int) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1) ORDER BY id`
	rows, err := r.db.QueryxContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUser needs explicit scanning because interests is a text[] column.
func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID, &user.DisplayName, &user.Gender, &user.Status,
		&user.Credit, &user.Occupation, &user.Bio, &user.PhotoURL,
		pq.Array(&user.Interests), &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}
