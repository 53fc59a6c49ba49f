package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"editorial_sync/internal/domain"
)

const authorColumns = `
	id, name, author_type, email, bio, wordpress_author_id,
	wordpress_author_name, is_active, created_at, updated_at`

type AuthorStore struct {
	db *sqlx.DB
}

func NewAuthorStore(db *sqlx.DB) *AuthorStore {
	return &AuthorStore{db: db}
}

// GetByWordPressID looks an author up by the unique external author id.
// Returns nil when none exists.
func (s *AuthorStore) GetByWordPressID(ctx context.Context, wpAuthorID int64) (*domain.Author, error) {
	query := `SELECT ` + authorColumns + ` FROM authors WHERE wordpress_author_id = $1 LIMIT 1`

	var author domain.Author
	err := s.db.GetContext(ctx, &author, query, wpAuthorID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &author, nil
}

// GetByName looks an author up by case-insensitive exact name match.
func (s *AuthorStore) GetByName(ctx context.Context, name string) (*domain.Author, error) {
	query := `SELECT ` + authorColumns + ` FROM authors WHERE LOWER(name) = LOWER($1) LIMIT 1`

	var author domain.Author
	err := s.db.GetContext(ctx, &author, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &author, nil
}

// AttachWordPressIdentity binds an external author identity to an
// existing author row that has none.
func (s *AuthorStore) AttachWordPressIdentity(ctx context.Context, id string, wpAuthorID int64, wpAuthorName string) error {
	query := `
		UPDATE authors SET
			wordpress_author_id = $2,
			wordpress_author_name = $3,
			updated_at = $4
		WHERE id = $1 AND wordpress_author_id IS NULL`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, id, wpAuthorID, wpAuthorName, time.Now().UTC())
	return err
}

func (s *AuthorStore) Create(ctx context.Context, author *domain.Author) (string, error) {
	if author.ID == "" {
		author.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	author.CreatedAt = now
	author.UpdatedAt = now

	query := `
		INSERT INTO authors (
			id, name, author_type, email, bio, wordpress_author_id,
			wordpress_author_name, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		author.ID,
		author.Name,
		author.AuthorType,
		author.Email,
		author.Bio,
		author.WordPressAuthorID,
		author.WordPressAuthorName,
		author.IsActive,
		author.CreatedAt,
		author.UpdatedAt,
	)
	if err != nil {
		return "", err
	}
	return author.ID, nil
}

func (s *AuthorStore) List(ctx context.Context, limit, offset int) ([]domain.Author, error) {
	query := `SELECT ` + authorColumns + ` FROM authors ORDER BY name LIMIT $1 OFFSET $2`

	var authors []domain.Author
	err := s.db.SelectContext(ctx, &authors, query, limit, offset)
	return authors, err
}
