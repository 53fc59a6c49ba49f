package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type OperationType string

const (
	OperationWordPressImport     OperationType = "wordpress_import"
	OperationSelectedArticleSync OperationType = "selected_article_sync"
)

type OperationStatus string

const (
	StatusRunning         OperationStatus = "running"
	StatusCompleted       OperationStatus = "completed"
	StatusFailed          OperationStatus = "failed"
	StatusCancelled       OperationStatus = "cancelled"
	StatusDryRun          OperationStatus = "dry_run"
	StatusDryRunCompleted OperationStatus = "dry_run_completed"
)

// Terminal reports whether the status ends an operation's lifecycle.
func (s OperationStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusDryRunCompleted:
		return true
	}
	return false
}

// SyncOperation is the audit/progress record for one pipeline run.
// CompletedItems advances after every processed item so the admin UI can
// poll progress, and re-reading Status at checkpoints implements
// cooperative cancellation.
type SyncOperation struct {
	ID             string            `db:"id" json:"id"`
	OperationType  OperationType     `db:"operation_type" json:"operation_type"`
	Status         OperationStatus   `db:"status" json:"status"`
	TotalItems     int               `db:"total_items" json:"total_items"`
	CompletedItems int               `db:"completed_items" json:"completed_items"`
	ResultsSummary ResultsSummary    `db:"results_summary" json:"results_summary"`
	ErrorDetails   SyncErrorList     `db:"error_details" json:"error_details"`
	MergeDecisions MergeDecisionList `db:"merge_decisions" json:"merge_decisions"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
}

// ResultsSummary is the counter block persisted on finalization.
type ResultsSummary struct {
	Processed         int `json:"processed"`
	Created           int `json:"created"`
	Updated           int `json:"updated"`
	Matched           int `json:"matched"`
	Skipped           int `json:"skipped"`
	Merged            int `json:"merged"`
	ConflictsResolved int `json:"conflicts_resolved"`
	ErrorCount        int `json:"error_count"`
}

func (s ResultsSummary) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *ResultsSummary) Scan(src any) error {
	return scanJSON(src, s)
}

// MergeDecision records one automatic duplicate resolution: the article
// deleted in favor of the one already holding the contested external id.
type MergeDecision struct {
	DeletedArticleID string    `json:"deleted_article_id"`
	DeletedTitle     string    `json:"deleted_title"`
	KeptArticleID    string    `json:"kept_article_id"`
	KeptTitle        string    `json:"kept_title"`
	Reason           string    `json:"reason"`
	CanUndo          bool      `json:"canUndo"`
	WordPressID      int64     `json:"wordpress_id"`
	Timestamp        time.Time `json:"timestamp"`
}

type MergeDecisionList []MergeDecision

func (l MergeDecisionList) Value() (driver.Value, error) {
	if l == nil {
		l = MergeDecisionList{}
	}
	return json.Marshal(l)
}

func (l *MergeDecisionList) Scan(src any) error {
	return scanJSON(src, l)
}

// SyncError is one per-item failure record. The loop never aborts on a
// single bad item; it appends one of these and moves on.
type SyncError struct {
	WordPressID int64     `json:"wordpress_id"`
	Title       string    `json:"title"`
	ErrorType   string    `json:"errorType"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

// Actions attached to published article events.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventMerged  = "merged"
)

const (
	ErrorTypeFetch      = "fetch_error"
	ErrorTypeMerge      = "merge_error"
	ErrorTypeProcessing = "processing_error"
	ErrorTypeWrite      = "write_error"
	ErrorTypeDate       = "date_warning"
)

type SyncErrorList []SyncError

func (l SyncErrorList) Value() (driver.Value, error) {
	if l == nil {
		l = SyncErrorList{}
	}
	return json.Marshal(l)
}

func (l *SyncErrorList) Scan(src any) error {
	return scanJSON(src, l)
}

func scanJSON(src, dst any) error {
	switch data := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(data, dst)
	case string:
		return json.Unmarshal([]byte(data), dst)
	default:
		return fmt.Errorf("unsupported scan type %T", src)
	}
}

// MatchDetail records how an external post was matched to an article in
// explicit-id mode (direct id fetch or title-search fallback).
type MatchDetail struct {
	ArticleID   string  `json:"article_id"`
	WordPressID int64   `json:"wordpress_id"`
	Title       string  `json:"title"`
	MatchType   string  `json:"matchType"` // "wordpress_id" or "title_search"
	Similarity  float64 `json:"similarity"`
}

// SyncResults accumulates everything one run produced. It is owned by a
// single invocation and returned at the end; nothing here is shared
// across runs.
type SyncResults struct {
	Processed            int               `json:"processed"`
	Created              int               `json:"created"`
	Updated              int               `json:"updated"`
	Matched              int               `json:"matched"`
	Skipped              int               `json:"skipped"`
	Merged               int               `json:"merged"`
	ConflictsResolved    int               `json:"conflicts_resolved"`
	DuplicatesFound      int               `json:"duplicatesFound"`
	ContentExtracted     int               `json:"contentExtracted"`
	WordCountsCalculated int               `json:"wordCountsCalculated"`
	ArticlesChunked      int               `json:"articlesChunked"`
	Errors               []string          `json:"errors"`
	MatchDetails         []MatchDetail     `json:"matchDetails"`
	MergeDecisions       MergeDecisionList `json:"mergeDecisions"`
	ErrorDetails         SyncErrorList     `json:"errorDetails"`
}

// Summary collapses the accumulated results into the persisted counter block.
func (r *SyncResults) Summary() ResultsSummary {
	return ResultsSummary{
		Processed:         r.Processed,
		Created:           r.Created,
		Updated:           r.Updated,
		Matched:           r.Matched,
		Skipped:           r.Skipped,
		Merged:            r.Merged,
		ConflictsResolved: r.ConflictsResolved,
		ErrorCount:        len(r.Errors),
	}
}

// AddWarning records a degraded-mode note in error_details without
// counting it among the run's failures.
func (r *SyncResults) AddWarning(wpID int64, title, errorType, message string) {
	r.ErrorDetails = append(r.ErrorDetails, SyncError{
		WordPressID: wpID,
		Title:       title,
		ErrorType:   errorType,
		Message:     message,
		Timestamp:   time.Now().UTC(),
	})
}

// AddError records a per-item failure under the given error kind.
func (r *SyncResults) AddError(wpID int64, title, errorType, message string) {
	r.Errors = append(r.Errors, message)
	r.ErrorDetails = append(r.ErrorDetails, SyncError{
		WordPressID: wpID,
		Title:       title,
		ErrorType:   errorType,
		Message:     message,
		Timestamp:   time.Now().UTC(),
	})
}

type DuplicateMode string

const (
	DuplicateSkip   DuplicateMode = "skip"
	DuplicateUpdate DuplicateMode = "update"
	DuplicateBoth   DuplicateMode = "both"
)

type ProcessingOptions struct {
	AutoExtractContent     bool `json:"autoExtractContent"`
	AutoCalculateWordCount bool `json:"autoCalculateWordCount"`
	AutoChunkArticles      bool `json:"autoChunkArticles"`
}

type PerformanceOptions struct {
	APIDelayMS int `json:"apiDelay"`
	BatchSize  int `json:"batchSize"`
}

type DuplicateHandling struct {
	Mode   DuplicateMode `json:"mode"`
	DryRun bool          `json:"dryRun"`
}

// SyncOptions configures one pipeline invocation. Zero values are filled
// by ApplyDefaults before the run starts.
type SyncOptions struct {
	MaxArticles      int                `json:"maxArticles"`
	StartDate        string             `json:"startDate"`
	EndDate          string             `json:"endDate"`
	TargetArticleIDs []string           `json:"targetArticleIds"`
	OperationID      string             `json:"operationId"`
	Processing       ProcessingOptions  `json:"processingOptions"`
	Performance      PerformanceOptions `json:"performanceOptions"`
	Duplicates       DuplicateHandling  `json:"duplicateHandling"`
}

func (o *SyncOptions) ApplyDefaults() {
	if o.MaxArticles <= 0 {
		o.MaxArticles = 100
	}
	if o.Performance.BatchSize <= 0 {
		o.Performance.BatchSize = 20
	}
	if o.Performance.APIDelayMS < 0 {
		o.Performance.APIDelayMS = 0
	}
	if o.Duplicates.Mode == "" {
		o.Duplicates.Mode = DuplicateUpdate
	}
}

// APIDelay returns the inter-request delay as a duration.
func (o SyncOptions) APIDelay() time.Duration {
	return time.Duration(o.Performance.APIDelayMS) * time.Millisecond
}

// OperationTypeForTargets derives the operation type from whether
// explicit article ids were given.
func (o SyncOptions) OperationTypeForTargets() OperationType {
	if len(o.TargetArticleIDs) > 0 {
		return OperationSelectedArticleSync
	}
	return OperationWordPressImport
}

// SyncOutcome is what one run returns to its caller.
type SyncOutcome struct {
	OperationID   string
	TotalArticles int
	Results       SyncResults
}
