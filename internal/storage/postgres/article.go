package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"editorial_sync/internal/domain"
)

const articleColumns = `
	id, wordpress_id, title, content_variants, primary_author_id,
	wordpress_author_id, wordpress_author_name, published_at, article_date,
	status, source_system, source_url, excerpt, word_count,
	last_wordpress_sync, created_at, updated_at`

type ArticleStore struct {
	db *sqlx.DB
}

func NewArticleStore(db *sqlx.DB) *ArticleStore {
	return &ArticleStore{db: db}
}

func (s *ArticleStore) GetByIDs(ctx context.Context, ids []string) ([]domain.Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + articleColumns + ` FROM articles WHERE id = ANY($1)`

	var articles []domain.Article
	err := s.db.SelectContext(ctx, &articles, query, pq.Array(ids))
	return articles, err
}

// GetByWordPressID finds the article holding a WordPress id, optionally
// excluding one row. Returns nil when no article holds the id.
func (s *ArticleStore) GetByWordPressID(ctx context.Context, wpID int64, excludeID string) (*domain.Article, error) {
	query := `
		SELECT ` + articleColumns + `
		FROM articles
		WHERE wordpress_id = $1 AND ($2 = '' OR id::text <> $2)
		LIMIT 1`

	var article domain.Article
	err := s.db.GetContext(ctx, &article, query, wpID, excludeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// GetByTitle finds an article by case-insensitive exact title match,
// used for duplicate detection on first import of a post.
func (s *ArticleStore) GetByTitle(ctx context.Context, title string) (*domain.Article, error) {
	query := `
		SELECT ` + articleColumns + `
		FROM articles
		WHERE LOWER(title) = LOWER($1)
		LIMIT 1`

	var article domain.Article
	err := s.db.GetContext(ctx, &article, query, title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

func (s *ArticleStore) Insert(ctx context.Context, article *domain.Article) (string, error) {
	if article.ID == "" {
		article.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	article.CreatedAt = now
	article.UpdatedAt = now

	query := `
		INSERT INTO articles (
			id, wordpress_id, title, content_variants, primary_author_id,
			wordpress_author_id, wordpress_author_name, published_at, article_date,
			status, source_system, source_url, excerpt, word_count,
			last_wordpress_sync, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
		)`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		article.ID,
		article.WordPressID,
		article.Title,
		article.ContentVariants,
		article.PrimaryAuthorID,
		article.WordPressAuthorID,
		article.WordPressAuthorName,
		article.PublishedAt,
		article.ArticleDate,
		article.Status,
		article.SourceSystem,
		article.SourceURL,
		article.Excerpt,
		article.WordCount,
		article.LastWordPressSync,
		article.CreatedAt,
		article.UpdatedAt,
	)
	if err != nil {
		return "", err
	}
	return article.ID, nil
}

func (s *ArticleStore) Update(ctx context.Context, article *domain.Article) error {
	article.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE articles SET
			wordpress_id = $2,
			title = $3,
			content_variants = $4,
			primary_author_id = $5,
			wordpress_author_id = $6,
			wordpress_author_name = $7,
			published_at = $8,
			article_date = $9,
			status = $10,
			source_system = $11,
			source_url = $12,
			excerpt = $13,
			word_count = $14,
			last_wordpress_sync = $15,
			updated_at = $16
		WHERE id = $1`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		article.ID,
		article.WordPressID,
		article.Title,
		article.ContentVariants,
		article.PrimaryAuthorID,
		article.WordPressAuthorID,
		article.WordPressAuthorName,
		article.PublishedAt,
		article.ArticleDate,
		article.Status,
		article.SourceSystem,
		article.SourceURL,
		article.Excerpt,
		article.WordCount,
		article.LastWordPressSync,
		article.UpdatedAt,
	)
	return err
}

func (s *ArticleStore) Delete(ctx context.Context, id string) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, "DELETE FROM articles WHERE id = $1", id)
	return err
}

// ClearWordPressID frees a stale external id so it can be reassigned.
func (s *ArticleStore) ClearWordPressID(ctx context.Context, id string) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		"UPDATE articles SET wordpress_id = NULL, updated_at = $2 WHERE id = $1",
		id, time.Now().UTC(),
	)
	return err
}

func (s *ArticleStore) List(ctx context.Context, limit, offset int) ([]domain.Article, int, error) {
	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM articles"); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + articleColumns + `
		FROM articles
		ORDER BY published_at DESC NULLS LAST, created_at DESC
		LIMIT $1 OFFSET $2`

	var articles []domain.Article
	if err := s.db.SelectContext(ctx, &articles, query, limit, offset); err != nil {
		return nil, 0, err
	}
	return articles, total, nil
}
