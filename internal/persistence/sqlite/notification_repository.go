package sqlite

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/gusfragger/webot/internal/persistence"
)

// NotificationJobRepository implements persistence.NotificationJobRepository.
type NotificationJobRepository struct {
	pool *ConnectionPool
}

// NewNotificationJobRepository returns a repository backed by pool.
func NewNotificationJobRepository(pool *ConnectionPool) *NotificationJobRepository {
	return &NotificationJobRepository{pool: pool}
}

const jobColumns = `id, meeting_id, user_id, fire_at_utc, offset_token, status, last_error, claimed_at, created_at, updated_at`

// CreateJobs inserts jobs in one transaction.
func (r *NotificationJobRepository) CreateJobs(ctx context.Context, jobs []persistence.NotificationJob) error {
	if len(jobs) == 0 {
		return nil
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO notification_jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return mapError(err)
		}
		defer stmt.Close()

		for _, job := range jobs {
			if job.ID == "" {
				return persistence.ErrConstraintViolation
			}
			_, err := stmt.ExecContext(ctx,
				job.ID,
				job.MeetingID,
				job.UserID,
				formatTime(job.FireAt),
				job.OffsetToken,
				job.Status,
				nullString(job.LastError),
				nullTime(job.ClaimedAt),
				formatTime(job.CreatedAt),
				formatTime(job.UpdatedAt),
			)
			if err != nil {
				return fmt.Errorf("failed to insert job %s: %w", job.ID, mapError(err))
			}
		}
		return nil
	})
}

// ListJobsForMeeting returns every job of the meeting ordered by fire time.
func (r *NotificationJobRepository) ListJobsForMeeting(ctx context.Context, meetingID string) ([]persistence.NotificationJob, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM notification_jobs WHERE meeting_id = ? ORDER BY fire_at_utc ASC, user_id ASC, id ASC`,
		meetingID)
	if err != nil {
		return nil, mapError(err)
	}
	return collectJobs(rows)
}

// CancelPendingForMeeting marks every pending job of the meeting cancelled.
func (r *NotificationJobRepository) CancelPendingForMeeting(ctx context.Context, meetingID string, at time.Time) (int, error) {
	result, err := r.pool.db.ExecContext(ctx,
		`UPDATE notification_jobs SET status = ?, updated_at = ? WHERE meeting_id = ? AND status = ?`,
		persistence.JobStatusCancelled, formatTime(at), meetingID, persistence.JobStatusPending)
	if err != nil {
		return 0, mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(affected), nil
}

// ClaimDue stamps claimed_at on the due jobs in the same statement that
// selects them, so overlapping sweeps never receive the same job.
func (r *NotificationJobRepository) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]persistence.NotificationJob, error) {
	if limit <= 0 {
		return nil, nil
	}
	nowText := formatTime(now)
	expired := formatTime(now.Add(-lease))

	var jobs []persistence.NotificationJob
	err := r.pool.retry.WithRetry(ctx, func() error {
		rows, err := r.pool.db.QueryContext(ctx, `
			UPDATE notification_jobs SET claimed_at = ?
			WHERE id IN (
				SELECT id FROM notification_jobs
				WHERE status = ? AND fire_at_utc <= ? AND (claimed_at IS NULL OR claimed_at <= ?)
				ORDER BY fire_at_utc ASC, id ASC
				LIMIT ?
			)
			RETURNING `+jobColumns,
			nowText, persistence.JobStatusPending, nowText, expired, limit)
		if err != nil {
			return mapError(err)
		}
		jobs, err = collectJobs(rows)
		return err
	})
	if err != nil {
		return nil, err
	}

	// RETURNING does not guarantee row order.
	slices.SortStableFunc(jobs, func(a, b persistence.NotificationJob) int {
		if c := a.FireAt.Compare(b.FireAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return jobs, nil
}

// CompleteJob sets the final status of a job that is still pending.
func (r *NotificationJobRepository) CompleteJob(ctx context.Context, id, status string, lastError *string, at time.Time) (bool, error) {
	if status == persistence.JobStatusPending {
		return false, persistence.ErrConstraintViolation
	}
	result, err := r.pool.db.ExecContext(ctx,
		`UPDATE notification_jobs SET status = ?, last_error = ?, updated_at = ? WHERE id = ? AND status = ?`,
		status, nullString(lastError), formatTime(at), id, persistence.JobStatusPending)
	if err != nil {
		return false, mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected == 1, nil
}

// PurgeTerminalBefore deletes sent, failed and cancelled jobs that fired
// before cutoff.
func (r *NotificationJobRepository) PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.pool.db.ExecContext(ctx,
		`DELETE FROM notification_jobs WHERE status <> ? AND fire_at_utc < ?`,
		persistence.JobStatusPending, formatTime(cutoff))
	if err != nil {
		return 0, mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}

func collectJobs(rows *sql.Rows) ([]persistence.NotificationJob, error) {
	defer rows.Close()

	var jobs []persistence.NotificationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return jobs, nil
}

func scanJob(row rowScanner) (persistence.NotificationJob, error) {
	var (
		job                          persistence.NotificationJob
		fireAt, createdAt, updatedAt string
		lastError, claimedAt         sql.NullString
	)
	if err := row.Scan(
		&job.ID,
		&job.MeetingID,
		&job.UserID,
		&fireAt,
		&job.OffsetToken,
		&job.Status,
		&lastError,
		&claimedAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.NotificationJob{}, mapError(err)
	}

	job.LastError = stringPtr(lastError)

	var err error
	if job.FireAt, err = parseTime("fire_at_utc", fireAt); err != nil {
		return persistence.NotificationJob{}, err
	}
	if job.ClaimedAt, err = timePtr("claimed_at", claimedAt); err != nil {
		return persistence.NotificationJob{}, err
	}
	if job.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.NotificationJob{}, err
	}
	if job.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.NotificationJob{}, err
	}
	return job, nil
}
