package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"editorial_sync/internal/domain"
	"editorial_sync/internal/normalize"
)

// ErrSourceNotConfigured aborts an invocation before any operation
// record is created.
var ErrSourceNotConfigured = errors.New("wordpress source is not configured")

const (
	defaultMergeSimilarity   = 0.95
	defaultMergeMaxDayDelta  = 7
	defaultSearchSimilarity  = 0.8
	defaultCancelCheckEvery  = 5
	defaultExcerptLength     = 300
	defaultChunkWordsPerPart = 200
)

// Config carries the pipeline's tunables. The merge thresholds are
// deliberately configuration, not constants.
type Config struct {
	MergeSimilarityThreshold float64
	MergeMaxDayDelta         int
	SearchMatchThreshold     float64
	CancelCheckInterval      int
	ExcerptLength            int
	ChunkWords               int
	Location                 *time.Location
}

func (c *Config) applyDefaults() {
	if c.MergeSimilarityThreshold <= 0 {
		c.MergeSimilarityThreshold = defaultMergeSimilarity
	}
	if c.MergeMaxDayDelta <= 0 {
		c.MergeMaxDayDelta = defaultMergeMaxDayDelta
	}
	if c.SearchMatchThreshold <= 0 {
		c.SearchMatchThreshold = defaultSearchSimilarity
	}
	if c.CancelCheckInterval <= 0 {
		c.CancelCheckInterval = defaultCancelCheckEvery
	}
	if c.ExcerptLength <= 0 {
		c.ExcerptLength = defaultExcerptLength
	}
	if c.ChunkWords <= 0 {
		c.ChunkWords = defaultChunkWordsPerPart
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
}

// SyncService drives the WordPress article synchronization pipeline:
// paginated fetch, duplicate detection, merge/conflict resolution,
// author resolution, upsert, and progress/audit persistence.
type SyncService struct {
	source     Source
	articles   ArticleStore
	resolver   *AuthorResolver
	operations SyncOperationStore
	txManager  TransactionManager
	publisher  Publisher
	logger     *slog.Logger
	cfg        Config
}

func NewSyncService(
	source Source,
	articles ArticleStore,
	authors AuthorStore,
	operations SyncOperationStore,
	txManager TransactionManager,
	publisher Publisher,
	logger *slog.Logger,
	cfg Config,
) *SyncService {
	cfg.applyDefaults()
	return &SyncService{
		source:     source,
		articles:   articles,
		resolver:   NewAuthorResolver(authors, logger),
		operations: operations,
		txManager:  txManager,
		publisher:  publisher,
		logger:     logger.With("component", "sync"),
		cfg:        cfg,
	}
}

// syncItem pairs a fetched external post with the store row it was
// matched to, when one is already known (explicit-id mode).
type syncItem struct {
	post   domain.ExternalPost
	target *domain.Article
}

// syncRun is the per-invocation state. Nothing in it outlives or is
// shared across invocations.
type syncRun struct {
	opID     string
	opts     domain.SyncOptions
	explicit bool
	results  domain.SyncResults
	logger   *slog.Logger
}

func (r *syncRun) dryRun() bool {
	return r.opts.Duplicates.DryRun
}

// Sync executes one pipeline invocation end to end and returns its
// result summary. Per-item failures are recorded and skipped; only
// configuration and full-import fetch failures abort the run.
func (s *SyncService) Sync(ctx context.Context, opts domain.SyncOptions) (*domain.SyncOutcome, error) {
	if s.source == nil {
		return nil, ErrSourceNotConfigured
	}
	opts.ApplyDefaults()

	status := domain.StatusRunning
	if opts.Duplicates.DryRun {
		status = domain.StatusDryRun
	}

	opID := opts.OperationID
	if opID == "" {
		id, err := s.operations.Create(ctx, &domain.SyncOperation{
			OperationType: opts.OperationTypeForTargets(),
			Status:        status,
		})
		if err != nil {
			return nil, fmt.Errorf("create sync operation: %w", err)
		}
		opID = id
	}

	run := &syncRun{
		opID:     opID,
		opts:     opts,
		explicit: len(opts.TargetArticleIDs) > 0,
		logger:   s.logger.With("operation_id", opID),
	}

	run.logger.Info("starting sync",
		"operation_type", opts.OperationTypeForTargets(),
		"dry_run", run.dryRun(),
		"max_articles", opts.MaxArticles,
		"batch_size", opts.Performance.BatchSize,
		"duplicate_mode", opts.Duplicates.Mode,
	)

	items, err := s.acquire(ctx, run)
	if err != nil {
		s.finalize(ctx, run, domain.StatusFailed)
		return nil, fmt.Errorf("acquire posts: %w", err)
	}

	if err := s.operations.SetTotalItems(ctx, opID, len(items)); err != nil {
		run.logger.Warn("failed to set total items", "error", err)
	}

	cancelled := s.processAll(ctx, run, items)

	final := domain.StatusCompleted
	switch {
	case cancelled:
		final = domain.StatusCancelled
	case run.dryRun():
		final = domain.StatusDryRunCompleted
	}
	s.finalize(ctx, run, final)

	return &domain.SyncOutcome{
		OperationID:   opID,
		TotalArticles: len(items),
		Results:       run.results,
	}, nil
}

// CancelOperation requests cooperative cancellation; the running loop
// observes the status change at its next checkpoint.
func (s *SyncService) CancelOperation(ctx context.Context, id string) (bool, error) {
	return s.operations.Cancel(ctx, id)
}

// acquire gathers the external posts for this run, either by paginating
// the full source or by fetching each explicitly targeted article's
// post (with title-search fallback).
func (s *SyncService) acquire(ctx context.Context, run *syncRun) ([]syncItem, error) {
	if !run.explicit {
		posts, err := s.source.FetchPosts(ctx, domain.FetchQuery{
			PerPage:  run.opts.Performance.BatchSize,
			After:    run.opts.StartDate,
			Before:   run.opts.EndDate,
			MaxPosts: run.opts.MaxArticles,
			Delay:    run.opts.APIDelay(),
		})
		if err != nil {
			return nil, err
		}
		items := make([]syncItem, 0, len(posts))
		for _, p := range posts {
			items = append(items, syncItem{post: p})
		}
		run.logger.Info("fetched posts from source", "count", len(items))
		return items, nil
	}

	targets, err := s.articles.GetByIDs(ctx, run.opts.TargetArticleIDs)
	if err != nil {
		return nil, fmt.Errorf("load target articles: %w", err)
	}

	var items []syncItem
	for i := range targets {
		target := targets[i]
		if target.WordPressID == nil {
			run.results.Skipped++
			run.logger.Debug("target article has no wordpress id", "article_id", target.ID)
			continue
		}

		post, matchType, similarity, err := s.fetchTargetPost(ctx, run, &target)
		if err != nil {
			run.results.AddError(*target.WordPressID, target.Title, domain.ErrorTypeFetch, err.Error())
			continue
		}

		run.results.Matched++
		run.results.MatchDetails = append(run.results.MatchDetails, domain.MatchDetail{
			ArticleID:   target.ID,
			WordPressID: post.ID,
			Title:       target.Title,
			MatchType:   matchType,
			Similarity:  similarity,
		})
		items = append(items, syncItem{post: *post, target: &target})

		if delay := run.opts.APIDelay(); delay > 0 && i < len(targets)-1 {
			select {
			case <-ctx.Done():
				return items, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return items, nil
}

// fetchTargetPost fetches the external post for a targeted article by
// its stored id, falling back to a title search when the id fetch
// fails.
func (s *SyncService) fetchTargetPost(ctx context.Context, run *syncRun, target *domain.Article) (*domain.ExternalPost, string, float64, error) {
	post, err := s.source.FetchPost(ctx, *target.WordPressID)
	if err == nil {
		return post, "wordpress_id", 1.0, nil
	}
	run.logger.Debug("id fetch failed, trying title search",
		"article_id", target.ID,
		"wordpress_id", *target.WordPressID,
		"error", err,
	)

	candidates, searchErr := s.source.SearchPosts(ctx, target.Title)
	if searchErr != nil {
		return nil, "", 0, fmt.Errorf("fetch post %d failed (%v) and title search failed: %w", *target.WordPressID, err, searchErr)
	}

	var best *domain.ExternalPost
	bestScore := 0.0
	for i := range candidates {
		score := normalize.TitleSimilarity(target.Title, candidates[i].Title)
		if score > bestScore {
			best = &candidates[i]
			bestScore = score
		}
	}
	if best == nil || bestScore < s.cfg.SearchMatchThreshold {
		return nil, "", 0, fmt.Errorf("fetch post %d failed and no title-search candidate scored above %.2f: %w", *target.WordPressID, s.cfg.SearchMatchThreshold, err)
	}
	return best, "title_search", bestScore, nil
}

// processAll runs the per-item loop and reports whether the run was
// cancelled. Cancellation is cooperative: the operation's status is
// re-read every few items (every item for explicit-id runs), and an
// externally set `cancelled` stops the loop without touching remaining
// items.
func (s *SyncService) processAll(ctx context.Context, run *syncRun, items []syncItem) bool {
	checkEvery := s.cfg.CancelCheckInterval
	if run.explicit {
		checkEvery = 1
	}

	for i := range items {
		if i%checkEvery == 0 {
			op, err := s.operations.Get(ctx, run.opID)
			if err != nil {
				run.logger.Warn("cancellation check failed", "error", err)
			} else if op != nil && op.Status == domain.StatusCancelled {
				run.logger.Info("cancellation observed, stopping",
					"processed", run.results.Processed,
					"remaining", len(items)-i,
				)
				return true
			}
		}

		s.processItem(ctx, run, items[i])
		run.results.Processed++

		if err := s.operations.UpdateProgress(ctx, run.opID, run.results.Processed); err != nil {
			run.logger.Warn("failed to persist progress", "error", err)
		}
	}
	return false
}

// processItem handles one external post. Every failure inside it is
// recorded against the item and swallowed; a bad item never aborts the
// run.
func (s *SyncService) processItem(ctx context.Context, run *syncRun, item syncItem) {
	post := item.post
	target := item.target
	title := strings.TrimSpace(normalize.DecodeHTMLEntities(post.Title))

	var existing *domain.Article
	var staleConflict *domain.Article

	// Duplicate detection. In full-import mode both the row holding the
	// post's id and the exact-title row are consulted: a title match on
	// a different row than the id holder is the same duplicate pair the
	// explicit-id path sees, and goes through the same merge/stale-id
	// resolution with the title row as the article under consideration.
	if target == nil {
		byID, err := s.articles.GetByWordPressID(ctx, post.ID, "")
		if err != nil {
			run.results.AddError(post.ID, title, domain.ErrorTypeProcessing, err.Error())
			return
		}
		byTitle, err := s.articles.GetByTitle(ctx, title)
		if err != nil {
			run.results.AddError(post.ID, title, domain.ErrorTypeProcessing, err.Error())
			return
		}
		if byTitle != nil && byTitle.WordPressID != nil && *byTitle.WordPressID != post.ID {
			// Title row already bound to a different post.
			byTitle = nil
		}
		switch {
		case byID != nil && byTitle != nil && byTitle.ID != byID.ID:
			handled, stale := s.resolveConflict(ctx, run, post, byTitle, byID)
			if handled {
				return
			}
			staleConflict = stale
			existing = byTitle
		case byID != nil:
			existing = byID
		case byTitle != nil:
			target = byTitle
		}
	}

	// Conflict detection: another row already holds this post's id.
	if existing == nil && target != nil {
		conflicting, err := s.articles.GetByWordPressID(ctx, post.ID, target.ID)
		if err != nil {
			run.results.AddError(post.ID, title, domain.ErrorTypeProcessing, err.Error())
			return
		}
		if conflicting != nil {
			handled, stale := s.resolveConflict(ctx, run, post, target, conflicting)
			if handled {
				return
			}
			staleConflict = stale
		}
		existing = target
	}

	authorID, err := s.resolver.Resolve(ctx, post.AuthorID, post.Author, run.dryRun())
	if err != nil {
		run.results.AddError(post.ID, title, domain.ErrorTypeProcessing, err.Error())
		return
	}

	article := s.assemble(run, post, title, authorID)

	// Write step; suppressed entirely in dry-run mode.
	if existing != nil {
		if run.opts.Duplicates.Mode == domain.DuplicateSkip {
			run.results.Skipped++
			return
		}
		if run.dryRun() {
			run.results.Updated++
			return
		}
		article.ID = existing.ID
		article.CreatedAt = existing.CreatedAt
		if err := s.writeArticle(ctx, article, staleConflict, false); err != nil {
			run.results.AddError(post.ID, title, domain.ErrorTypeWrite, err.Error())
			return
		}
		run.results.Updated++
		s.publish(ctx, run, article, domain.EventUpdated)
		return
	}

	if run.dryRun() {
		run.results.Created++
		return
	}
	if err := s.writeArticle(ctx, article, staleConflict, true); err != nil {
		run.results.AddError(post.ID, title, domain.ErrorTypeWrite, err.Error())
		return
	}
	run.results.Created++
	s.publish(ctx, run, article, domain.EventCreated)
}

// writeArticle persists one article. When a stale conflict was
// detected, freeing the old id and reassigning it happen in a single
// transaction so a crash cannot strand the id between rows.
func (s *SyncService) writeArticle(ctx context.Context, article *domain.Article, staleConflict *domain.Article, insert bool) error {
	write := func(ctx context.Context) error {
		if staleConflict != nil {
			if err := s.articles.ClearWordPressID(ctx, staleConflict.ID); err != nil {
				return fmt.Errorf("clear stale wordpress id from %s: %w", staleConflict.ID, err)
			}
		}
		if insert {
			_, err := s.articles.Insert(ctx, article)
			return err
		}
		return s.articles.Update(ctx, article)
	}

	if staleConflict == nil {
		return write(ctx)
	}
	return s.txManager.WithTransaction(ctx, write)
}

// resolveConflict decides between automatic merge and stale-id
// resolution. Returns handled=true when the item's processing ends here
// (merged, or merge failed); otherwise the returned stale row's id must
// be cleared before the current item's write.
func (s *SyncService) resolveConflict(ctx context.Context, run *syncRun, post domain.ExternalPost, current, conflicting *domain.Article) (handled bool, stale *domain.Article) {
	run.results.DuplicatesFound++

	similarity := normalize.TitleSimilarity(current.Title, conflicting.Title)
	dayDelta, deltaKnown := publishDayDelta(current, conflicting)

	if similarity >= s.cfg.MergeSimilarityThreshold && deltaKnown && dayDelta <= s.cfg.MergeMaxDayDelta {
		if !run.dryRun() {
			if err := s.articles.Delete(ctx, current.ID); err != nil {
				run.results.AddError(post.ID, current.Title, domain.ErrorTypeMerge,
					fmt.Sprintf("delete duplicate article %s: %v", current.ID, err))
				return true, nil
			}
		}

		run.results.MergeDecisions = append(run.results.MergeDecisions, domain.MergeDecision{
			DeletedArticleID: current.ID,
			DeletedTitle:     current.Title,
			KeptArticleID:    conflicting.ID,
			KeptTitle:        conflicting.Title,
			Reason: fmt.Sprintf("automatic merge: %.0f%% title similarity, published %d day(s) apart",
				similarity*100, dayDelta),
			CanUndo:     true,
			WordPressID: post.ID,
			Timestamp:   time.Now().UTC(),
		})
		run.results.Merged++

		run.logger.Info("merged duplicate article",
			"deleted_article_id", current.ID,
			"kept_article_id", conflicting.ID,
			"wordpress_id", post.ID,
			"similarity", similarity,
			"day_delta", dayDelta,
		)
		if !run.dryRun() {
			s.publish(ctx, run, conflicting, domain.EventMerged)
		}
		return true, nil
	}

	// Different articles sharing a stale id: free it for the current
	// item and keep going.
	run.results.ConflictsResolved++
	run.logger.Info("resolving stale wordpress id conflict",
		"stale_article_id", conflicting.ID,
		"wordpress_id", post.ID,
		"similarity", similarity,
	)
	return false, conflicting
}

// assemble builds the article payload from an external post, applying
// the configured content-processing options.
func (s *SyncService) assemble(run *syncRun, post domain.ExternalPost, title string, authorID *string) *domain.Article {
	variants := domain.ContentVariants{
		SourceHTML:    post.ContentHTML,
		Categories:    post.Categories,
		Tags:          post.Tags,
		FeaturedMedia: post.FeaturedMedia,
	}

	var plain string
	if run.opts.Processing.AutoExtractContent {
		plain = normalize.DecodeHTMLEntities(normalize.StripHTMLTags(post.ContentHTML))
		variants.PlainText = plain
		run.results.ContentExtracted++
	}

	wordCount := 0
	if run.opts.Processing.AutoCalculateWordCount {
		src := plain
		if src == "" {
			src = normalize.StripHTMLTags(post.ContentHTML)
		}
		wordCount = normalize.WordCount(src)
		variants.WordCount = wordCount
		run.results.WordCountsCalculated++
	}

	if run.opts.Processing.AutoChunkArticles {
		src := plain
		if src == "" {
			src = normalize.DecodeHTMLEntities(normalize.StripHTMLTags(post.ContentHTML))
		}
		variants.Chunks = normalize.ChunkWords(src, s.cfg.ChunkWords)
		run.results.ArticlesChunked++
	}

	excerpt := normalize.Excerpt(post.ExcerptHTML, s.cfg.ExcerptLength)
	if excerpt == "" {
		excerpt = normalize.Excerpt(post.ContentHTML, s.cfg.ExcerptLength)
	}

	articleDate, dateErr := normalize.LocalDateString(post.Date, s.cfg.Location)
	if dateErr != nil {
		run.results.AddWarning(post.ID, title, domain.ErrorTypeDate,
			fmt.Sprintf("publish date %q unparseable, defaulted to current date: %v", post.Date, dateErr))
	}

	var publishedAt *time.Time
	if t, err := normalize.ParseExternalTime(post.Date, s.cfg.Location); err == nil {
		publishedAt = &t
	}

	status := domain.ArticleStatusDraft
	if post.Status == "publish" {
		status = domain.ArticleStatusPublished
	}

	now := time.Now().UTC()
	wpID := post.ID
	article := &domain.Article{
		WordPressID:       &wpID,
		Title:             title,
		ContentVariants:   variants,
		PrimaryAuthorID:   authorID,
		PublishedAt:       publishedAt,
		ArticleDate:       articleDate,
		Status:            status,
		SourceSystem:      domain.SourceSystemWordPress,
		SourceURL:         post.Link,
		Excerpt:           excerpt,
		WordCount:         wordCount,
		LastWordPressSync: &now,
	}
	if post.AuthorID > 0 {
		wpAuthorID := post.AuthorID
		article.WordPressAuthorID = &wpAuthorID
	}
	if post.Author != nil {
		name := post.Author.Name
		article.WordPressAuthorName = &name
	}
	return article
}

func (s *SyncService) publish(ctx context.Context, run *syncRun, article *domain.Article, action string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, article, action); err != nil {
		run.logger.Warn("failed to publish article event",
			"action", action,
			"article_id", article.ID,
			"error", err,
		)
	}
}

func (s *SyncService) finalize(ctx context.Context, run *syncRun, status domain.OperationStatus) {
	err := s.operations.Finalize(
		ctx,
		run.opID,
		status,
		run.results.Processed,
		run.results.Summary(),
		run.results.ErrorDetails,
		run.results.MergeDecisions,
	)
	if err != nil {
		run.logger.Error("failed to finalize sync operation", "error", err)
	}

	run.logger.Info("sync finished",
		"status", status,
		"processed", run.results.Processed,
		"created", run.results.Created,
		"updated", run.results.Updated,
		"merged", run.results.Merged,
		"conflicts_resolved", run.results.ConflictsResolved,
		"skipped", run.results.Skipped,
		"errors", len(run.results.Errors),
	)
}

// publishDayDelta is the absolute whole-day distance between two
// articles' publish dates. Unknown dates disqualify automatic merging.
func publishDayDelta(a, b *domain.Article) (int, bool) {
	ta, okA := publishTime(a)
	tb, okB := publishTime(b)
	if !okA || !okB {
		return 0, false
	}
	days := int(math.Abs(ta.Sub(tb).Hours()) / 24)
	return days, true
}

func publishTime(a *domain.Article) (time.Time, bool) {
	if a.PublishedAt != nil {
		return *a.PublishedAt, true
	}
	if a.ArticleDate != "" {
		if t, err := time.Parse("2006-01-02", a.ArticleDate); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
