package store

import (
	"context"
	"database/sql"
	"time"

	"ticket-booking/internal/models"
)

// RecordTaskStart registers a delivery attempt in the task ledger. The upsert
// makes at-least-once delivery safe: a redelivered message updates the
// existing row instead of creating a duplicate.
func (s *Store) RecordTaskStart(ctx context.Context, run *models.TaskRun) error {
	query := `
		INSERT INTO task_runs (task_id, task_type, correlation_id, payload, attempt, max_attempts, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (task_id) DO UPDATE
		SET attempt = EXCLUDED.attempt, status = EXCLUDED.status, updated_at = NOW()
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, run, query,
		run.TaskID, run.TaskType, run.CorrelationID, run.Payload,
		run.Attempt, run.MaxAttempts, models.TaskRunStatusRunning)
}

// MarkTaskDone records successful completion.
func (s *Store) MarkTaskDone(ctx context.Context, taskID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE task_runs SET status = $1, updated_at = NOW() WHERE task_id = $2",
		models.TaskRunStatusDone, taskID)
	return err
}

// MarkTaskRetry schedules another attempt after the backoff delay.
func (s *Store) MarkTaskRetry(ctx context.Context, taskID, lastError string, nextAttemptAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE task_runs
		 SET status = $1, last_error = $2, next_attempt_at = $3, updated_at = NOW()
		 WHERE task_id = $4`,
		models.TaskRunStatusRetry, lastError, nextAttemptAt, taskID)
	return err
}

// MarkTaskParked moves an exhausted task to the reconciliation queue.
func (s *Store) MarkTaskParked(ctx context.Context, taskID, lastError string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE task_runs
		 SET status = $1, last_error = $2, next_attempt_at = NULL, updated_at = NOW()
		 WHERE task_id = $3`,
		models.TaskRunStatusParked, lastError, taskID)
	return err
}

// ClaimDueRetries atomically claims retry rows whose backoff has elapsed and
// returns them for redelivery. Claiming flips the row back to running so
// concurrent dispatchers do not republish the same task.
func (s *Store) ClaimDueRetries(ctx context.Context, now time.Time, limit int) ([]models.TaskRun, error) {
	var runs []models.TaskRun
	err := s.db.SelectContext(ctx, &runs,
		`UPDATE task_runs
		 SET status = $1, updated_at = NOW()
		 WHERE id IN (
		     SELECT id FROM task_runs
		     WHERE status = $2 AND next_attempt_at <= $3
		     ORDER BY next_attempt_at
		     LIMIT $4
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING *`,
		models.TaskRunStatusRunning, models.TaskRunStatusRetry, now, limit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return runs, err
}

// RequeueStaleRunning flips running rows untouched since the cutoff back to
// retry, due immediately. Covers a worker crashing between recording a start
// and recording the outcome, and a dispatcher crashing between claiming a
// retry and republishing it; the redelivered task re-reads current state, so
// the extra execution is safe.
func (s *Store) RequeueStaleRunning(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE task_runs
		 SET status = $1, next_attempt_at = NOW(), updated_at = NOW()
		 WHERE status = $2 AND updated_at <= $3`,
		models.TaskRunStatusRetry, models.TaskRunStatusRunning, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListParkedTasks returns the reconciliation queue, oldest first.
func (s *Store) ListParkedTasks(ctx context.Context, limit int) ([]models.TaskRun, error) {
	var runs []models.TaskRun
	err := s.db.SelectContext(ctx, &runs,
		`SELECT * FROM task_runs WHERE status = $1 ORDER BY updated_at LIMIT $2`,
		models.TaskRunStatusParked, limit)
	return runs, err
}
