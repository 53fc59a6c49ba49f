package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"editorial_sync/internal/domain"
)

type Source interface {
	FetchPosts(ctx context.Context, q domain.FetchQuery) ([]domain.ExternalPost, error)
	FetchPost(ctx context.Context, id int64) (*domain.ExternalPost, error)
	SearchPosts(ctx context.Context, query string) ([]domain.ExternalPost, error)
}

type ArticleStore interface {
	GetByIDs(ctx context.Context, ids []string) ([]domain.Article, error)
	GetByWordPressID(ctx context.Context, wpID int64, excludeID string) (*domain.Article, error)
	GetByTitle(ctx context.Context, title string) (*domain.Article, error)
	Insert(ctx context.Context, article *domain.Article) (string, error)
	Update(ctx context.Context, article *domain.Article) error
	Delete(ctx context.Context, id string) error
	ClearWordPressID(ctx context.Context, id string) error
}

type AuthorStore interface {
	GetByWordPressID(ctx context.Context, wpAuthorID int64) (*domain.Author, error)
	GetByName(ctx context.Context, name string) (*domain.Author, error)
	AttachWordPressIdentity(ctx context.Context, id string, wpAuthorID int64, wpAuthorName string) error
	Create(ctx context.Context, author *domain.Author) (string, error)
}

type SyncOperationStore interface {
	Create(ctx context.Context, op *domain.SyncOperation) (string, error)
	Get(ctx context.Context, id string) (*domain.SyncOperation, error)
	SetTotalItems(ctx context.Context, id string, total int) error
	UpdateProgress(ctx context.Context, id string, completed int) error
	Finalize(ctx context.Context, id string, status domain.OperationStatus, completed int, summary domain.ResultsSummary, errs domain.SyncErrorList, merges domain.MergeDecisionList) error
	Cancel(ctx context.Context, id string) (bool, error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, article *domain.Article, action string) error
	Close() error
}
