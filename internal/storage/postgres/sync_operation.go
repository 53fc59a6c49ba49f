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

type SyncOperationStore struct {
	db *sqlx.DB
}

func NewSyncOperationStore(db *sqlx.DB) *SyncOperationStore {
	return &SyncOperationStore{db: db}
}

func (s *SyncOperationStore) Create(ctx context.Context, op *domain.SyncOperation) (string, error) {
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	op.CreatedAt = now
	op.UpdatedAt = now

	query := `
		INSERT INTO sync_operations (
			id, operation_type, status, total_items, completed_items,
			results_summary, error_details, merge_decisions, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.db.ExecContext(ctx, query,
		op.ID,
		op.OperationType,
		op.Status,
		op.TotalItems,
		op.CompletedItems,
		op.ResultsSummary,
		op.ErrorDetails,
		op.MergeDecisions,
		op.CreatedAt,
		op.UpdatedAt,
	)
	if err != nil {
		return "", err
	}
	return op.ID, nil
}

// Get reads an operation row; the orchestrator polls this at its
// checkpoints to observe external cancellation. Returns nil when the
// operation does not exist.
func (s *SyncOperationStore) Get(ctx context.Context, id string) (*domain.SyncOperation, error) {
	query := `
		SELECT id, operation_type, status, total_items, completed_items,
		       results_summary, error_details, merge_decisions, created_at, updated_at
		FROM sync_operations
		WHERE id = $1`

	var op domain.SyncOperation
	err := s.db.GetContext(ctx, &op, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// SetTotalItems corrects the item count once pagination has revealed
// the true total, before per-item processing begins.
func (s *SyncOperationStore) SetTotalItems(ctx context.Context, id string, total int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE sync_operations SET total_items = $2, updated_at = $3 WHERE id = $1",
		id, total, time.Now().UTC(),
	)
	return err
}

// UpdateProgress advances completed_items after each processed item.
func (s *SyncOperationStore) UpdateProgress(ctx context.Context, id string, completed int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE sync_operations SET completed_items = $2, updated_at = $3 WHERE id = $1",
		id, completed, time.Now().UTC(),
	)
	return err
}

// Finalize writes the terminal status and the full result blobs in one
// update. Called exactly once per run.
func (s *SyncOperationStore) Finalize(
	ctx context.Context,
	id string,
	status domain.OperationStatus,
	completed int,
	summary domain.ResultsSummary,
	errs domain.SyncErrorList,
	merges domain.MergeDecisionList,
) error {
	query := `
		UPDATE sync_operations SET
			status = $2,
			completed_items = $3,
			results_summary = $4,
			error_details = $5,
			merge_decisions = $6,
			updated_at = $7
		WHERE id = $1`

	_, err := s.db.ExecContext(ctx, query, id, status, completed, summary, errs, merges, time.Now().UTC())
	return err
}

// Cancel requests cooperative cancellation of a run in progress. The
// orchestrator notices the status change at its next checkpoint.
// Returns false when the operation was not in a cancellable state.
func (s *SyncOperationStore) Cancel(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sync_operations SET status = $2, updated_at = $3 WHERE id = $1 AND status IN ($4, $5)",
		id, domain.StatusCancelled, time.Now().UTC(), domain.StatusRunning, domain.StatusDryRun,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SyncOperationStore) List(ctx context.Context, limit, offset int) ([]domain.SyncOperation, error) {
	query := `
		SELECT id, operation_type, status, total_items, completed_items,
		       results_summary, error_details, merge_decisions, created_at, updated_at
		FROM sync_operations
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	var ops []domain.SyncOperation
	err := s.db.SelectContext(ctx, &ops, query, limit, offset)
	return ops, err
}
