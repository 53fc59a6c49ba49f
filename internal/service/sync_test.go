package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"editorial_sync/internal/domain"
	"editorial_sync/internal/service/mocks"
)

type SyncServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	source     *mocks.MockSource
	articles   *mocks.MockArticleStore
	authors    *mocks.MockAuthorStore
	operations *mocks.MockSyncOperationStore
	txManager  *mocks.MockTransactionManager
	publisher  *mocks.MockPublisher

	service *SyncService
	logger  *slog.Logger
}

func (s *SyncServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.source = mocks.NewMockSource(s.ctrl)
	s.articles = mocks.NewMockArticleStore(s.ctrl)
	s.authors = mocks.NewMockAuthorStore(s.ctrl)
	s.operations = mocks.NewMockSyncOperationStore(s.ctrl)
	s.txManager = mocks.NewMockTransactionManager(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)

	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.service = NewSyncService(
		s.source,
		s.articles,
		s.authors,
		s.operations,
		s.txManager,
		s.publisher,
		s.logger,
		Config{Location: time.UTC},
	)
}

func (s *SyncServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestSyncServiceTestSuite(t *testing.T) {
	suite.Run(t, new(SyncServiceTestSuite))
}

func (s *SyncServiceTestSuite) expectOperationCreate(id string) {
	s.operations.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, op *domain.SyncOperation) (string, error) {
			op.ID = id
			return id, nil
		},
	)
}

func (s *SyncServiceTestSuite) runningOp(id string) *domain.SyncOperation {
	return &domain.SyncOperation{ID: id, Status: domain.StatusRunning}
}

func makePost(id int64, title string) domain.ExternalPost {
	return domain.ExternalPost{
		ID:          id,
		Title:       title,
		ContentHTML: fmt.Sprintf("<p>Body of %s</p>", title),
		ExcerptHTML: "<p>excerpt</p>",
		Status:      "publish",
		Date:        "2024-03-01T10:00:00",
		Modified:    "2024-03-02T10:00:00",
		Link:        fmt.Sprintf("https://news.example.com/?p=%d", id),
	}
}

func ptrInt64(v int64) *int64 { return &v }

func ptrTime(t time.Time) *time.Time { return &t }

func (s *SyncServiceTestSuite) TestSync_FullImport_CreatesNewArticle() {
	ctx := context.Background()

	post := makePost(501, "New Post")
	post.AuthorID = 9
	post.Author = &domain.ExternalAuthor{ID: 9, Name: "Jane Reporter"}

	s.expectOperationCreate("op-1")
	s.source.EXPECT().FetchPosts(ctx, domain.FetchQuery{PerPage: 20, MaxPosts: 100}).
		Return([]domain.ExternalPost{post}, nil)
	s.operations.EXPECT().SetTotalItems(ctx, "op-1", 1).Return(nil)
	s.operations.EXPECT().Get(ctx, "op-1").Return(s.runningOp("op-1"), nil)

	s.articles.EXPECT().GetByWordPressID(ctx, int64(501), "").Return(nil, nil)
	s.articles.EXPECT().GetByTitle(ctx, "New Post").Return(nil, nil)

	s.authors.EXPECT().GetByWordPressID(ctx, int64(9)).Return(nil, nil)
	s.authors.EXPECT().GetByName(ctx, "Jane Reporter").Return(nil, nil)
	s.authors.EXPECT().Create(ctx, gomock.Any()).Return("auth-1", nil)

	s.articles.EXPECT().Insert(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, a *domain.Article) (string, error) {
			s.Require().NotNil(a.WordPressID)
			s.Equal(int64(501), *a.WordPressID)
			s.Equal("New Post", a.Title)
			s.Equal(domain.ArticleStatusPublished, a.Status)
			s.Equal("2024-03-01", a.ArticleDate)
			s.Require().NotNil(a.PrimaryAuthorID)
			s.Equal("auth-1", *a.PrimaryAuthorID)
			a.ID = "art-1"
			return "art-1", nil
		},
	)
	s.publisher.EXPECT().Publish(ctx, gomock.Any(), domain.EventCreated).Return(nil)

	s.operations.EXPECT().UpdateProgress(ctx, "op-1", 1).Return(nil)
	s.operations.EXPECT().Finalize(ctx, "op-1", domain.StatusCompleted, 1, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	outcome, err := s.service.Sync(ctx, domain.SyncOptions{})

	s.NoError(err)
	s.Equal("op-1", outcome.OperationID)
	s.Equal(1, outcome.TotalArticles)
	s.Equal(1, outcome.Results.Processed)
	s.Equal(1, outcome.Results.Created)
	s.Equal(0, outcome.Results.Updated)
	s.Empty(outcome.Results.Errors)
}

func (s *SyncServiceTestSuite) TestSync_FullImport_UpdatesExistingByWordPressID() {
	ctx := context.Background()

	post := makePost(501, "Known Post")
	existing := &domain.Article{
		ID:          "art-1",
		WordPressID: ptrInt64(501),
		Title:       "Known Post",
		CreatedAt:   time.Now().Add(-24 * time.Hour),
	}

	s.expectOperationCreate("op-1")
	s.source.EXPECT().FetchPosts(ctx, gomock.Any()).Return([]domain.ExternalPost{post}, nil)
	s.operations.EXPECT().SetTotalItems(ctx, "op-1", 1).Return(nil)
	s.operations.EXPECT().Get(ctx, "op-1").Return(s.runningOp("op-1"), nil)

	s.articles.EXPECT().GetByWordPressID(ctx, int64(501), "").Return(existing, nil)
	s.articles.EXPECT().GetByTitle(ctx, "Known Post").Return(existing, nil)
	s.articles.EXPECT().Update(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, a *domain.Article) error {
			s.Equal("art-1", a.ID)
			s.Equal(existing.CreatedAt, a.CreatedAt)
			return nil
		},
	)
	s.publisher.EXPECT().Publish(ctx, gomock.Any(), domain.EventUpdated).Return(nil)

	s.operations.EXPECT().UpdateProgress(ctx, "op-1", 1).Return(nil)
	s.operations.EXPECT().Finalize(ctx, "op-1", domain.StatusCompleted, 1, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	outcome, err := s.service.Sync(ctx, domain.SyncOptions{
		Duplicates: domain.DuplicateHandling{Mode: domain.DuplicateUpdate},
	})

	s.NoError(err)
	s.Equal(1, outcome.Results.Updated)
	s.Equal(0, outcome.Results.Created)
	s.Equal(0, outcome.Results.Merged)
}

func (s *SyncServiceTestSuite) TestSync_SkipModeLeavesExistingUntouched() {
	ctx := context.Background()

	post := makePost(501, "Known Post")
	existing := &domain.Article{ID: "art-1", WordPressID: ptrInt64(501), Title: "Known Post"}

	s.expectOperationCreate("op-1")
	s.source.EXPECT().FetchPosts(ctx, gomock.Any()).Return([]domain.ExternalPost{post}, nil)
	s.operations.EXPECT().SetTotalItems(ctx, "op-1", 1).Return(nil)
	s.operations.EXPECT().Get(ctx, "op-1").Return(s.runningOp("op-1"), nil)

	s.articles.EXPECT().GetByWordPressID(ctx, int64(501), "").Return(existing, nil)
	s.articles.EXPECT().GetByTitle(ctx, "Known Post").Return(existing, nil)

	s.operations.EXPECT().UpdateProgress(ctx, "op-1", 1).Return(nil)
	s.operations.EXPECT().Finalize(ctx, "op-1", domain.StatusCompleted, 1, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	outcome, err := s.service.Sync(ctx, domain.SyncOptions{
		Duplicates: domain.DuplicateHandling{Mode: domain.DuplicateSkip},
	})

	s.NoError(err)
	s.Equal(1, outcome.Results.Skipped)
	s.Equal(0, outcome.Results.Updated)
}

func (s *SyncServiceTestSuite) TestSync_AutomaticMergeOfDuplicate() {
	ctx := context.Background()

	// The targeted article holds a dead id; the title search resolves
	// to the post whose id another article already holds.
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	target := domain.Article{
		ID:          "art-dup",
		WordPressID: ptrInt64(999),
		Title:       "Fed Raises Rates Again",
		PublishedAt: ptrTime(base.Add(48 * time.Hour)),
	}
	conflicting := &domain.Article{
		ID:          "art-keep",
		WordPressID: ptrInt64(501),
		Title:       "Fed Raises Rates Again",
		PublishedAt: ptrTime(base),
	}
	post := makePost(501, "Fed Raises Rates Again")

	s.expectOperationCreate("op-1")
	s.articles.EXPECT().GetByIDs(ctx, []string{"art-dup"}).Return([]domain.Article{target}, nil)
	s.source.EXPECT().FetchPost(ctx, int64(999)).Return(nil, errors.New("410"))
	s.source.EXPECT().SearchPosts(ctx, "Fed Raises Rates Again").Return([]domain.ExternalPost{post}, nil)
	s.operations.EXPECT().SetTotalItems(ctx, "op-1", 1).Return(nil)
	s.operations.EXPECT().Get(ctx, "op-1").Return(s.runningOp("op-1"), nil)

	s.articles.EXPECT().GetByWordPressID(ctx, int64(501), "art-dup").Return(conflicting, nil)
	s.articles.EXPECT().Delete(ctx, "art-dup").Return(nil)
	s.publisher.EXPECT().Publish(ctx, conflicting, domain.EventMerged).Return(nil)

	s.operations.EXPECT().UpdateProgress(ctx, "op-1", 1).Return(nil)
	s.operations.EXPECT().Finalize(ctx, "op-1", domain.StatusCompleted, 1, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	outcome, err := s.service.Sync(ctx, domain.SyncOptions{
		TargetArticleIDs: []string{"art-dup"},
	})

	s.NoError(err)
	s.Equal(1, outcome.Results.Merged)
	s.Equal(1, outcome.Results.DuplicatesFound)
	s.Equal(1, outcome.Results.Matched)
	s.Require().Len(outcome.Results.MergeDecisions, 1)

	decision := outcome.Results.MergeDecisions[0]
	s.Equal("art-dup", decision.DeletedArticleID)
	s.Equal("art-keep", decision.KeptArticleID)
	s.True(decision.CanUndo)
	s.Equal(int64(501), decision.WordPressID)
	s.Contains(decision.Reason, "100%")
	s.Contains(decision.Reason, "2 day")
}

func (s *SyncServiceTestSuite) TestSync_StaleIDConflictResolution() {
	ctx := context.Background()

	// The targeted article holds a dead id; the title search resolves
	// to post 77, whose id an unrelated article incorrectly holds.
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	target := domain.Article{
		ID:          "art-current",
		WordPressID: ptrInt64(888),
		Title:       "Quarterly Earnings Beat Expectations",
		PublishedAt: ptrTime(base),
	}
	conflicting := &domain.Article{
		ID:          "art-stale",
		WordPressID: ptrInt64(77),
		Title:       "Local Team Wins Championship Game",
		PublishedAt: ptrTime(base.AddDate(0, -1, 0)),
	}
	post := makePost(77, "Quarterly Earnings Beat Expectations")

	s.expectOperationCreate("op-1")
	s.articles.EXPECT().GetByIDs(ctx, []string{"art-current"}).Return([]domain.Article{target}, nil)
	s.source.EXPECT().FetchPost(ctx, int64(888)).Return(nil, errors.New("404"))
	s.source.EXPECT().SearchPosts(ctx, "Quarterly Earnings Beat Expectations").Return([]domain.ExternalPost{post}, nil)
	s.operations.EXPECT().SetTotalItems(ctx, "op-1", 1).Return(nil)
	s.operations.EXPECT().Get(ctx, "op-1").Return(s.runningOp("op-1"), nil)

	s.articles.EXPECT().GetByWordPressID(ctx, int64(77), "art-current").Return(conflicting, nil)

	// Freeing the stale id and reassigning it happen in one transaction.
	s.txManager.EXPECT().WithTransaction(ctx, gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)
	s.articles.EXPECT().ClearWordPressID(ctx, "art-stale").Return(nil)
	s.articles.EXPECT().Update(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, a *domain.Article) error {
			s.Equal("art-current", a.ID)
			s.Require().NotNil(a.WordPressID)
			s.Equal(int64(77), *a.WordPressID)
			return nil
		},
	)
	s.publisher.EXPECT().Publish(ctx, gomock.Any(), domain.EventUpdated).Return(nil)

	s.operations.EXPECT().UpdateProgress(ctx, "op-1", 1).Return(nil)
	s.operations.EXPECT().Finalize(ctx, "op-1", domain.StatusCompleted, 1, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	outcome, err := s.service.Sync(ctx, domain.SyncOptions{
		TargetArticleIDs: []string{"art-current"},
	})

	s.NoError(err)
	s.Equal(1, outcome.Results.ConflictsResolved)
	s.Equal(1, outcome.Results.Updated)
	s.Equal(0, outcome.Results.Merged)
	s.Equal(1, outcome.Results.DuplicatesFound)
}

func (s *SyncServiceTestSuite) TestSync_FullImportMergesTitleDuplicate() {
	ctx := context.Background()

	// Import of post 501: one article already holds the id, another
	// carries the identical title two days later with no id attached.
	// The title duplicate must be merged away, not left behind.
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	keeper := &domain.Article{
		ID:          "art-keep",
		WordPressID: ptrInt64(501),
		Title:       "Fed Raises Rates Again",
		PublishedAt: ptrTime(base),
	}
	duplicate := &domain.Article{
		ID:          "art-dup",
		Title:       "Fed Raises Rates Again",
		PublishedAt: ptrTime(base.Add(48 * time.Hour)),
	}
	post := makePost(501, "Fed Raises Rates Again")

	s.expectOperationCreate("op-1")
	s.source.EXPECT().FetchPosts(ctx, gomock.Any()).Return([]domain.ExternalPost{post}, nil)
	s.operations.EXPECT().SetTotalItems(ctx, "op-1", 1).Return(nil)
	s.operations.EXPECT().Get(ctx, "op-1").Return(s.runningOp("op-1"), nil)

	s.articles.EXPECT().GetByWordPressID(ctx, int64(501), "").Return(keeper, nil)
	s.articles.EXPECT().GetByTitle(ctx, "Fed Raises Rates Again").Return(duplicate, nil)
	s.articles.EXPECT().Delete(ctx, "art-dup").Return(nil)
	s.publisher.EXPECT().Publish(ctx, keeper, domain.EventMerged).Return(nil)

	s.operations.EXPECT().UpdateProgress(ctx, "op-1", 1).Return(nil)
	s.operations.EXPECT().Finalize(ctx, "op-1", domain.StatusCompleted, 1, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	outcome, err := s.service.Sync(ctx, domain.SyncOptions{})

	s.NoError(err)
	s.Equal(1, outcome.Results.Merged)
	s.Equal(1, outcome.Results.DuplicatesFound)
	s.Equal(0, outcome.Results.Created)
	s.Equal(0, outcome.Results.Updated)
	s.Require().Len(outcome.Results.MergeDecisions, 1)

	decision := outcome.Results.MergeDecisions[0]
	s.Equal("art-dup", decision.DeletedArticleID)
	s.Equal("art-keep", decision.KeptArticleID)
	s.True(decision.CanUndo)
	s.Equal(int64(501), decision.WordPressID)
	s.Contains(decision.Reason, "100%")
	s.Contains(decision.Reason, "2 day")
}

func (s *SyncServiceTestSuite) TestSync_FullImportResolvesStaleID() {
	ctx := context.Background()

	// Import of post 77: an unrelated article incorrectly holds the id
	// while the exact-title row carries none. The stale holder is freed
	// and the title row takes the id.
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	stale := &domain.Article{
		ID:          "art-stale",
		WordPressID: ptrInt64(77),
		Title:       "Local Team Wins Championship Game",
		PublishedAt: ptrTime(base.AddDate(0, -1, 0)),
	}
	current := &domain.Article{
		ID:          "art-current",
		Title:       "Quarterly Earnings Beat Expectations",
		PublishedAt: ptrTime(base),
	}
	post := makePost(77, "Quarterly Earnings Beat Expectations")

	s.expectOperationCreate("op-1")
	s.source.EXPECT().FetchPosts(ctx, gomock.Any()).Return([]domain.ExternalPost{post}, nil)
	s.operations.EXPECT().SetTotalItems(ctx, "op-1", 1).Return(nil)
	s.operations.EXPECT().Get(ctx, "op-1").Return(s.runningOp("op-1"), nil)

	s.articles.EXPECT().GetByWordPressID(ctx, int64(77), "").Return(stale, nil)
	s.articles.EXPECT().GetByTitle(ctx, "Quarterly Earnings Beat Expectations").Return(current, nil)

	s.txManager.EXPECT().WithTransaction(ctx, gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)
	s.articles.EXPECT().ClearWordPressID(ctx, "art-stale").Return(nil)
	s.articles.EXPECT().Update(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, a *domain.Article) error {
			s.Equal("art-current", a.ID)
			s.Require().NotNil(a.WordPressID)
			s.Equal(int64(77), *a.WordPressID)
			return nil
		},
	)
	s.publisher.EXPECT().Publish(ctx, gomock.Any(), domain.EventUpdated).Return(nil)

	s.operations.EXPECT().UpdateProgress(ctx, "op-1", 1).Return(nil)
	s.operations.EXPECT().Finalize(ctx, "op-1", domain.StatusCompleted, 1, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	outcome, err := s.service.Sync(ctx, domain.SyncOptions{})

	s.NoError(err)
	s.Equal(1, outcome.Results.ConflictsResolved)
	s.Equal(1, outcome.Results.Updated)
	s.Equal(0, outcome.Results.Merged)
	s.Equal(1, outcome.Results.DuplicatesFound)
}

func (s *SyncServiceTestSuite) TestSync_DryRunWritesNothing() {
	ctx := context.Background()

	posts := make([]domain.ExternalPost, 0, 10)
	for i := int64(1); i <= 10; i++ {
		posts = append(posts, makePost(i, fmt.Sprintf("Fresh Post %d", i)))
	}

	s.expectOperationCreate("op-1")
	s.source.EXPECT().FetchPosts(ctx, gomock.Any()).Return(posts, nil)
	s.operations.EXPECT().SetTotalItems(ctx, "op-1", 10).Return(nil)
	s.operations.EXPECT().Get(ctx, "op-1").Return(&domain.SyncOperation{ID: "op-1", Status: domain.StatusDryRun}, nil).Times(2)

	s.articles.EXPECT().GetByWordPressID(ctx, gomock.Any(), "").Return(nil, nil).Times(10)
	s.articles.EXPECT().GetByTitle(ctx, gomock.Any()).Return(nil, nil).Times(10)

	s.operations.EXPECT().UpdateProgress(ctx, "op-1", gomock.Any()).Return(nil).Times(10)
	s.operations.EXPECT().Finalize(ctx, "op-1", domain.StatusDryRunCompleted, 10, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	outcome, err := s.service.Sync(ctx, domain.SyncOptions{
		Duplicates: domain.DuplicateHandling{Mode: domain.DuplicateUpdate, DryRun: true},
	})

	s.NoError(err)
	s.Equal(10, outcome.Results.Created)
	s.Equal(10, outcome.Results.Processed)
}

func (s *SyncServiceTestSuite) TestSync_CancellationStopsLoop() {
	ctx := context.Background()

	posts := make([]domain.ExternalPost, 0, 10)
	for i := int64(1); i <= 10; i++ {
		posts = append(posts, makePost(i, fmt.Sprintf("Post %d", i)))
	}

	s.expectOperationCreate("op-1")
	s.source.EXPECT().FetchPosts(ctx, gomock.Any()).Return(posts, nil)
	s.operations.EXPECT().SetTotalItems(ctx, "op-1", 10).Return(nil)

	// Status checkpoints fire every 5 items; the second one observes the
	// externally requested cancellation.
	gomock.InOrder(
		s.operations.EXPECT().Get(ctx, "op-1").Return(s.runningOp("op-1"), nil),
		s.operations.EXPECT().Get(ctx, "op-1").Return(&domain.SyncOperation{ID: "op-1", Status: domain.StatusCancelled}, nil),
	)

	s.articles.EXPECT().GetByWordPressID(ctx, gomock.Any(), "").Return(nil, nil).Times(5)
	s.articles.EXPECT().GetByTitle(ctx, gomock.Any()).Return(nil, nil).Times(5)
	s.articles.EXPECT().Insert(ctx, gomock.Any()).Return("art", nil).Times(5)
	s.publisher.EXPECT().Publish(ctx, gomock.Any(), domain.EventCreated).Return(nil).Times(5)

	s.operations.EXPECT().UpdateProgress(ctx, "op-1", gomock.Any()).Return(nil).Times(5)
	s.operations.EXPECT().Finalize(ctx, "op-1", domain.StatusCancelled, 5, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	outcome, err := s.service.Sync(ctx, domain.SyncOptions{})

	s.NoError(err)
	s.Equal(5, outcome.Results.Processed)
	s.Equal(5, outcome.Results.Created)
}

func (s *SyncServiceTestSuite) TestSync_BadItemDoesNotAbortRun() {
	ctx := context.Background()

	posts := []domain.ExternalPost{
		makePost(1, "Broken Post"),
		makePost(2, "Good Post"),
	}

	s.expectOperationCreate("op-1")
	s.source.EXPECT().FetchPosts(ctx, gomock.Any()).Return(posts, nil)
	s.operations.EXPECT().SetTotalItems(ctx, "op-1", 2).Return(nil)
	s.operations.EXPECT().Get(ctx, "op-1").Return(s.runningOp("op-1"), nil)

	s.articles.EXPECT().GetByWordPressID(ctx, int64(1), "").Return(nil, errors.New("db down"))

	s.articles.EXPECT().GetByWordPressID(ctx, int64(2), "").Return(nil, nil)
	s.articles.EXPECT().GetByTitle(ctx, "Good Post").Return(nil, nil)
	s.articles.EXPECT().Insert(ctx, gomock.Any()).Return("art-2", nil)
	s.publisher.EXPECT().Publish(ctx, gomock.Any(), domain.EventCreated).Return(nil)

	s.operations.EXPECT().UpdateProgress(ctx, "op-1", gomock.Any()).Return(nil).Times(2)
	s.operations.EXPECT().Finalize(ctx, "op-1", domain.StatusCompleted, 2, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	outcome, err := s.service.Sync(ctx, domain.SyncOptions{})

	s.NoError(err)
	s.Equal(2, outcome.Results.Processed)
	s.Equal(1, outcome.Results.Created)
	s.Require().Len(outcome.Results.ErrorDetails, 1)
	s.Equal(domain.ErrorTypeProcessing, outcome.Results.ErrorDetails[0].ErrorType)
	s.Equal(int64(1), outcome.Results.ErrorDetails[0].WordPressID)
}

func (s *SyncServiceTestSuite) TestSync_TitleSearchFallback() {
	ctx := context.Background()

	target := domain.Article{
		ID:          "art-1",
		WordPressID: ptrInt64(900),
		Title:       "Central Bank Signals Policy Shift",
	}
	candidate := makePost(901, "Central Bank Signals Policy Shift")

	s.expectOperationCreate("op-1")
	s.articles.EXPECT().GetByIDs(ctx, []string{"art-1"}).Return([]domain.Article{target}, nil)
	s.source.EXPECT().FetchPost(ctx, int64(900)).Return(nil, errors.New("404"))
	s.source.EXPECT().SearchPosts(ctx, "Central Bank Signals Policy Shift").
		Return([]domain.ExternalPost{makePost(902, "Unrelated Story"), candidate}, nil)
	s.operations.EXPECT().SetTotalItems(ctx, "op-1", 1).Return(nil)
	s.operations.EXPECT().Get(ctx, "op-1").Return(s.runningOp("op-1"), nil)

	s.articles.EXPECT().GetByWordPressID(ctx, int64(901), "art-1").Return(nil, nil)
	s.articles.EXPECT().Update(ctx, gomock.Any()).Return(nil)
	s.publisher.EXPECT().Publish(ctx, gomock.Any(), domain.EventUpdated).Return(nil)

	s.operations.EXPECT().UpdateProgress(ctx, "op-1", 1).Return(nil)
	s.operations.EXPECT().Finalize(ctx, "op-1", domain.StatusCompleted, 1, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	outcome, err := s.service.Sync(ctx, domain.SyncOptions{
		TargetArticleIDs: []string{"art-1"},
	})

	s.NoError(err)
	s.Equal(1, outcome.Results.Matched)
	s.Require().Len(outcome.Results.MatchDetails, 1)
	s.Equal("title_search", outcome.Results.MatchDetails[0].MatchType)
	s.Equal(1.0, outcome.Results.MatchDetails[0].Similarity)
}

func (s *SyncServiceTestSuite) TestSync_SourceNotConfigured() {
	service := NewSyncService(nil, s.articles, s.authors, s.operations, s.txManager, nil, s.logger, Config{})

	_, err := service.Sync(context.Background(), domain.SyncOptions{})

	s.ErrorIs(err, ErrSourceNotConfigured)
}

func (s *SyncServiceTestSuite) TestSync_FetchFailureFailsOperation() {
	ctx := context.Background()

	s.expectOperationCreate("op-1")
	s.source.EXPECT().FetchPosts(ctx, gomock.Any()).Return(nil, errors.New("upstream 503"))
	s.operations.EXPECT().Finalize(ctx, "op-1", domain.StatusFailed, 0, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	_, err := s.service.Sync(ctx, domain.SyncOptions{})

	s.Error(err)
	s.Contains(err.Error(), "acquire posts")
}
