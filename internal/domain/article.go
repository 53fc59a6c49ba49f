package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Article is the canonical content record managed by the sync pipeline.
// WordPressID is the external system's identifier; at most one article
// may hold a given non-null value at any time.
type Article struct {
	ID                  string          `db:"id" json:"id"`
	WordPressID         *int64          `db:"wordpress_id" json:"wordpress_id,omitempty"`
	Title               string          `db:"title" json:"title"`
	ContentVariants     ContentVariants `db:"content_variants" json:"content_variants"`
	PrimaryAuthorID     *string         `db:"primary_author_id" json:"primary_author_id,omitempty"`
	WordPressAuthorID   *int64          `db:"wordpress_author_id" json:"wordpress_author_id,omitempty"`
	WordPressAuthorName *string         `db:"wordpress_author_name" json:"wordpress_author_name,omitempty"`
	PublishedAt         *time.Time      `db:"published_at" json:"published_at,omitempty"`
	ArticleDate         string          `db:"article_date" json:"article_date"`
	Status              string          `db:"status" json:"status"`
	SourceSystem        string          `db:"source_system" json:"source_system"`
	SourceURL           string          `db:"source_url" json:"source_url"`
	Excerpt             string          `db:"excerpt" json:"excerpt"`
	WordCount           int             `db:"word_count" json:"word_count"`
	LastWordPressSync   *time.Time      `db:"last_wordpress_sync" json:"last_wordpress_sync,omitempty"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}

// ContentVariants holds the raw external markup plus derived renditions.
// Stored as a single JSONB column.
type ContentVariants struct {
	SourceHTML    string   `json:"source_html"`
	PlainText     string   `json:"plain_text,omitempty"`
	WordCount     int      `json:"word_count,omitempty"`
	Chunks        []string `json:"chunks,omitempty"`
	Categories    []int64  `json:"categories,omitempty"`
	Tags          []int64  `json:"tags,omitempty"`
	FeaturedMedia int64    `json:"featured_media,omitempty"`
}

func (v ContentVariants) Value() (driver.Value, error) {
	return json.Marshal(v)
}

func (v *ContentVariants) Scan(src any) error {
	switch data := src.(type) {
	case nil:
		*v = ContentVariants{}
		return nil
	case []byte:
		return json.Unmarshal(data, v)
	case string:
		return json.Unmarshal([]byte(data), v)
	default:
		return fmt.Errorf("content_variants: unsupported scan type %T", src)
	}
}

// Author is a resolved identity shared across imports.
type Author struct {
	ID                  string    `db:"id" json:"id"`
	Name                string    `db:"name" json:"name"`
	AuthorType          string    `db:"author_type" json:"author_type"`
	Email               *string   `db:"email" json:"email,omitempty"`
	Bio                 *string   `db:"bio" json:"bio,omitempty"`
	WordPressAuthorID   *int64    `db:"wordpress_author_id" json:"wordpress_author_id,omitempty"`
	WordPressAuthorName *string   `db:"wordpress_author_name" json:"wordpress_author_name,omitempty"`
	IsActive            bool      `db:"is_active" json:"is_active"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

const (
	ArticleStatusPublished = "published"
	ArticleStatusDraft     = "draft"

	AuthorTypeExternal = "external"

	SourceSystemWordPress = "wordpress"
)

// ExternalPost is a post fetched from the WordPress-like REST source,
// already flattened from the wire shape. Date and Modified keep the raw
// timestamp strings; parsing happens during content assembly so that a
// bad date degrades per item instead of dropping the post.
type ExternalPost struct {
	ID            int64
	Title         string
	ContentHTML   string
	ExcerptHTML   string
	AuthorID      int64
	Author        *ExternalAuthor
	Date          string
	Modified      string
	Status        string
	Categories    []int64
	Tags          []int64
	FeaturedMedia int64
	Link          string
}

// ExternalAuthor is the embedded author payload of an external post.
type ExternalAuthor struct {
	ID          int64
	Name        string
	Slug        string
	Description string
	Link        string
}

// FetchQuery bounds a paginated fetch against the external source.
type FetchQuery struct {
	PerPage  int
	After    string // YYYY-MM-DD, inclusive lower bound
	Before   string // YYYY-MM-DD, inclusive upper bound
	MaxPosts int
	Delay    time.Duration // pause between page requests
}
