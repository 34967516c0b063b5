package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ClaimNextPending atomically moves the oldest pending job to running and
// returns it. It returns (nil, nil) when the queue has no pending work.
func (s *Store) ClaimNextPending(ctx context.Context) (*Job, error) {
	ctx = ensureContext(ctx)
	for {
		row := s.db.QueryRowContext(
			ctx,
			`SELECT id FROM queue_jobs WHERE status = ? ORDER BY created_at, id LIMIT 1`,
			StatusPending,
		)
		var id int64
		if err := row.Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, fmt.Errorf("next pending: %w", err)
		}

		now := time.Now().UTC().Format(time.RFC3339Nano)
		res, err := s.execWithRetry(
			ctx,
			`UPDATE queue_jobs
             SET status = ?, started_at = ?, updated_at = ?, progress_percent = 0, progress_message = ?
             WHERE id = ? AND status = ?`,
			StatusRunning,
			now,
			now,
			"starting",
			id,
			StatusPending,
		)
		if err != nil {
			return nil, fmt.Errorf("claim job %d: %w", id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			// Lost the claim race; take the next candidate.
			continue
		}
		return s.Get(ctx, id)
	}
}

// SetProgress updates the progress fields of a job. Updates against jobs that
// have already finished are ignored.
func (s *Store) SetProgress(ctx context.Context, id int64, percent float64, message string) error {
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE queue_jobs SET progress_percent = ?, progress_message = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		percent,
		nullableString(message),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusRunning,
	); err != nil {
		return fmt.Errorf("set progress: %w", err)
	}
	return nil
}

// MarkCompleted finishes a job successfully and records the final output path.
func (s *Store) MarkCompleted(ctx context.Context, id int64, outputPath string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE queue_jobs
         SET status = ?, output_path = ?, progress_percent = 100, progress_message = ?,
             error_message = NULL, finished_at = ?, updated_at = ?
         WHERE id = ?`,
		StatusCompleted,
		nullableString(outputPath),
		"completed",
		now,
		now,
		id,
	); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// MarkFailed finishes a job with an error message and the engine log tail.
func (s *Store) MarkFailed(ctx context.Context, id int64, message, logTail string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE queue_jobs
         SET status = ?, error_message = ?, log_tail = ?, progress_message = ?,
             finished_at = ?, updated_at = ?
         WHERE id = ?`,
		StatusFailed,
		nullableString(message),
		nullableString(logTail),
		nullableString(message),
		now,
		now,
		id,
	); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// MarkCancelled finishes a job as cancelled.
func (s *Store) MarkCancelled(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE queue_jobs
         SET status = ?, progress_message = ?, finished_at = ?, updated_at = ?
         WHERE id = ?`,
		StatusCancelled,
		"cancelled",
		now,
		now,
		id,
	); err != nil {
		return fmt.Errorf("mark cancelled: %w", err)
	}
	return nil
}

// RequestCancel flags a job for cancellation. Pending jobs never reach the
// workflow, so they are cancelled outright; running jobs are flagged for the
// workflow's cancellation poller. It reports whether any job was affected.
func (s *Store) RequestCancel(ctx context.Context, id int64) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_jobs
         SET status = ?, cancel_requested = 1, progress_message = ?, finished_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusCancelled,
		"cancelled before start",
		now,
		now,
		id,
		StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("cancel pending job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return true, nil
	}

	res, err = s.execWithRetry(
		ctx,
		`UPDATE queue_jobs SET cancel_requested = 1, updated_at = ? WHERE id = ? AND status = ?`,
		now,
		id,
		StatusRunning,
	)
	if err != nil {
		return false, fmt.Errorf("flag running job: %w", err)
	}
	affected, err = res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// CancelRequested reports whether cancellation has been requested for a job.
func (s *Store) CancelRequested(ctx context.Context, id int64) (bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT cancel_requested FROM queue_jobs WHERE id = ?`, id)
	var flag int
	if err := row.Scan(&flag); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("read cancel flag: %w", err)
	}
	return flag != 0, nil
}

// Retry moves failed jobs back to pending for reprocessing. With no ids it
// retries every failed job; otherwise only the listed jobs.
func (s *Store) Retry(ctx context.Context, ids ...int64) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE queue_jobs
             SET status = ?, progress_percent = 0, progress_message = NULL,
                 error_message = NULL, log_tail = NULL, cancel_requested = 0,
                 started_at = NULL, finished_at = NULL, updated_at = ?
             WHERE status = ?`,
			StatusPending,
			now,
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed jobs: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+3)
	args = append(args, StatusPending, now, StatusFailed)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE queue_jobs
        SET status = ?, progress_percent = 0, progress_message = NULL,
            error_message = NULL, log_tail = NULL, cancel_requested = 0,
            started_at = NULL, finished_at = NULL, updated_at = ?
        WHERE status = ? AND id IN (` + placeholders + `)`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected jobs: %w", err)
	}
	return res.RowsAffected()
}

// ResetStuckRunning recovers jobs left running by an unclean daemon stop.
// Jobs already flagged for cancellation finish as cancelled; the rest return
// to pending so the next daemon run picks them up again.
func (s *Store) ResetStuckRunning(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	cancelled, err := s.execWithRetry(
		ctx,
		`UPDATE queue_jobs
         SET status = ?, progress_message = ?, finished_at = ?, updated_at = ?
         WHERE status = ? AND cancel_requested = 1`,
		StatusCancelled,
		"cancelled during shutdown",
		now,
		now,
		StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("finish flagged jobs: %w", err)
	}
	cancelledCount, err := cancelled.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	reset, err := s.execWithRetry(
		ctx,
		`UPDATE queue_jobs
         SET status = ?, progress_percent = 0, progress_message = NULL,
             started_at = NULL, updated_at = ?
         WHERE status = ?`,
		StatusPending,
		now,
		StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	resetCount, err := reset.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return cancelledCount + resetCount, nil
}
