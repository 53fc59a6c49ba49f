package wordpress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"editorial_sync/internal/domain"
)

const SourceID = "wordpress"

// ErrNotConfigured is returned by New when credentials are missing.
var ErrNotConfigured = errors.New("wordpress credentials not configured")

// Config holds WordPress REST API client configuration.
type Config struct {
	BaseURL        string
	Username       string
	AppPassword    string
	PageSize       int
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Client fetches posts from a WordPress-like REST source, authenticated
// via HTTP Basic application-password credentials.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	username       string
	appPassword    string
	pageSize       int
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

// New creates a WordPress client. Missing credentials are a fatal
// configuration error: no pipeline run may start without them.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" || cfg.Username == "" || cfg.AppPassword == "" {
		return nil, ErrNotConfigured
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        cfg.BaseURL,
		username:       cfg.Username,
		appPassword:    cfg.AppPassword,
		pageSize:       cfg.PageSize,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("source", SourceID),
	}, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status: %d", e.code)
}

// endOfData reports whether the error is WordPress's way of saying the
// page number ran past the last page (HTTP 400 on page > 1).
func endOfData(err error, page int) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusBadRequest && page > 1
}

// FetchPosts paginates the posts endpoint until a short page, the
// MaxPosts cap, or end-of-data, pausing q.Delay between page requests
// to respect rate limits.
func (c *Client) FetchPosts(ctx context.Context, q domain.FetchQuery) ([]domain.ExternalPost, error) {
	perPage := q.PerPage
	if perPage <= 0 {
		perPage = c.pageSize
	}

	var all []domain.ExternalPost
	for page := 1; ; page++ {
		posts, err := c.fetchPage(ctx, perPage, page, q)
		if err != nil {
			if endOfData(err, page) {
				break
			}
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}

		all = append(all, posts...)

		c.logger.Debug("fetched page",
			"page", page,
			"posts", len(posts),
			"total", len(all),
		)

		if len(posts) < perPage {
			break
		}
		if q.MaxPosts > 0 && len(all) >= q.MaxPosts {
			break
		}

		if q.Delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(q.Delay):
			}
		}
	}

	if q.MaxPosts > 0 && len(all) > q.MaxPosts {
		all = all[:q.MaxPosts]
	}
	return all, nil
}

// FetchPost fetches one post by its WordPress id.
func (c *Client) FetchPost(ctx context.Context, id int64) (*domain.ExternalPost, error) {
	u := fmt.Sprintf("%s/posts/%d?_embed", c.baseURL, id)

	var post Post
	if err := c.getJSON(ctx, u, &post); err != nil {
		return nil, fmt.Errorf("fetch post %d: %w", id, err)
	}
	p := transformPost(post)
	return &p, nil
}

// SearchPosts runs a full-text title search, used as the fallback when
// a post can no longer be fetched by id.
func (c *Client) SearchPosts(ctx context.Context, query string) ([]domain.ExternalPost, error) {
	v := url.Values{}
	v.Set("search", query)
	v.Set("per_page", "20")
	v.Set("_embed", "")
	u := c.baseURL + "/posts?" + v.Encode()

	var posts []Post
	if err := c.getJSON(ctx, u, &posts); err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	return transform(posts), nil
}

func (c *Client) fetchPage(ctx context.Context, perPage, page int, q domain.FetchQuery) ([]domain.ExternalPost, error) {
	v := url.Values{}
	v.Set("per_page", strconv.Itoa(perPage))
	v.Set("page", strconv.Itoa(page))
	v.Set("_embed", "")
	if q.After != "" {
		v.Set("after", q.After+"T00:00:00")
	}
	if q.Before != "" {
		v.Set("before", q.Before+"T23:59:59")
	}
	u := c.baseURL + "/posts?" + v.Encode()

	var posts []Post
	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		err = c.getJSON(ctx, u, &posts)
		if err == nil {
			return transform(posts), nil
		}

		// Client errors are definitive; only retry transient failures.
		var se *statusError
		if errors.As(err, &se) && se.code >= 400 && se.code < 500 {
			return nil, err
		}
		if attempt == c.maxAttempts {
			break
		}

		backoff := c.calculateBackoff(attempt)
		c.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", c.maxAttempts, err)
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.SetBasicAuth(c.username, c.appPassword)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "EditorialSync/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.initialBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if c.maxBackoff > 0 && backoff > c.maxBackoff {
		backoff = c.maxBackoff
	}
	return backoff
}

func transform(posts []Post) []domain.ExternalPost {
	out := make([]domain.ExternalPost, 0, len(posts))
	for _, p := range posts {
		out = append(out, transformPost(p))
	}
	return out
}

func transformPost(p Post) domain.ExternalPost {
	post := domain.ExternalPost{
		ID:            p.ID,
		Title:         p.Title.Rendered,
		ContentHTML:   p.Content.Rendered,
		ExcerptHTML:   p.Excerpt.Rendered,
		AuthorID:      p.Author,
		Date:          p.Date,
		Modified:      p.Modified,
		Status:        p.Status,
		Categories:    p.Categories,
		Tags:          p.Tags,
		FeaturedMedia: p.FeaturedMedia,
		Link:          p.Link,
	}
	if p.Embedded != nil && len(p.Embedded.Author) > 0 {
		a := p.Embedded.Author[0]
		post.Author = &domain.ExternalAuthor{
			ID:          a.ID,
			Name:        a.Name,
			Slug:        a.Slug,
			Description: a.Description,
			Link:        a.Link,
		}
	}
	return post
}
