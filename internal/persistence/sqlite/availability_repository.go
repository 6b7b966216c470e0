package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gusfragger/webot/internal/persistence"
)

// AvailabilityRepository implements persistence.AvailabilityRepository.
type AvailabilityRepository struct {
	pool *ConnectionPool
}

// NewAvailabilityRepository returns a repository backed by pool.
func NewAvailabilityRepository(pool *ConnectionPool) *AvailabilityRepository {
	return &AvailabilityRepository{pool: pool}
}

const intervalColumns = `id, owner_id, start_utc, end_utc, kind, reason, recurrence_rule, created_at`

// overlapGuard matches busy rows of the same owner intersecting [?, ?).
// Timestamps are fixed-width UTC RFC 3339 text, so string order is time order.
const overlapGuard = `NOT EXISTS (
	SELECT 1 FROM availability_intervals o
	WHERE o.owner_id = ? AND o.kind = 'busy' AND o.id <> ? AND o.start_utc < ? AND ? < o.end_utc
)`

// InsertInterval stores interval. A busy interval is written in the same
// statement that checks for overlaps, so concurrent writers cannot both win.
func (r *AvailabilityRepository) InsertInterval(ctx context.Context, interval persistence.AvailabilityInterval) (bool, error) {
	if interval.ID == "" || interval.OwnerID == "" || !interval.Start.Before(interval.End) {
		return false, persistence.ErrConstraintViolation
	}

	start, end := formatTime(interval.Start), formatTime(interval.End)
	args := []any{
		interval.ID,
		interval.OwnerID,
		start,
		end,
		interval.Kind,
		nullString(interval.Reason),
		nullString(interval.RecurrenceRule),
		formatTime(interval.CreatedAt),
	}

	query := `INSERT INTO availability_intervals (` + intervalColumns + `) SELECT ?, ?, ?, ?, ?, ?, ?, ?`
	if interval.Kind == persistence.IntervalKindBusy {
		query += ` WHERE ` + overlapGuard
		args = append(args, interval.OwnerID, interval.ID, end, start)
	}

	result, err := r.pool.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected == 1, nil
}

// MoveInterval updates the bounds and reason of an existing interval owned by
// interval.OwnerID. Busy intervals keep the no-overlap guarantee.
func (r *AvailabilityRepository) MoveInterval(ctx context.Context, interval persistence.AvailabilityInterval) (bool, error) {
	if !interval.Start.Before(interval.End) {
		return false, persistence.ErrConstraintViolation
	}

	var moved bool
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var kind string
		err := tx.QueryRowContext(ctx,
			`SELECT kind FROM availability_intervals WHERE id = ? AND owner_id = ?`,
			interval.ID, interval.OwnerID).Scan(&kind)
		if err != nil {
			return mapError(err)
		}

		start, end := formatTime(interval.Start), formatTime(interval.End)
		query := `UPDATE availability_intervals SET start_utc = ?, end_utc = ?, reason = ? WHERE id = ?`
		args := []any{start, end, nullString(interval.Reason), interval.ID}
		if kind == persistence.IntervalKindBusy {
			query += ` AND ` + overlapGuard
			args = append(args, interval.OwnerID, interval.ID, end, start)
		}

		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return mapError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		moved = affected == 1
		return nil
	})
	return moved, err
}

// GetInterval returns the interval with id or persistence.ErrNotFound.
func (r *AvailabilityRepository) GetInterval(ctx context.Context, id string) (persistence.AvailabilityInterval, error) {
	row := r.pool.db.QueryRowContext(ctx, `SELECT `+intervalColumns+` FROM availability_intervals WHERE id = ?`, id)
	interval, err := scanInterval(row)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.AvailabilityInterval{}, persistence.ErrNotFound
	}
	return interval, err
}

// DeleteInterval removes the interval with id.
func (r *AvailabilityRepository) DeleteInterval(ctx context.Context, id string) error {
	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM availability_intervals WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// ListIntervals returns intervals matching filter ordered by owner, start and id.
func (r *AvailabilityRepository) ListIntervals(ctx context.Context, filter persistence.IntervalFilter) ([]persistence.AvailabilityInterval, error) {
	query, args := buildIntervalQuery(filter)
	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var intervals []persistence.AvailabilityInterval
	for rows.Next() {
		interval, err := scanInterval(rows)
		if err != nil {
			return nil, err
		}
		intervals = append(intervals, interval)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return intervals, nil
}

func buildIntervalQuery(filter persistence.IntervalFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	if len(filter.OwnerIDs) > 0 {
		conditions = append(conditions, "owner_id IN ("+placeholders(len(filter.OwnerIDs))+")")
		for _, id := range filter.OwnerIDs {
			args = append(args, id)
		}
	}
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, filter.Kind)
	}
	if !filter.End.IsZero() {
		conditions = append(conditions, "start_utc < ?")
		args = append(args, formatTime(filter.End))
	}
	if !filter.Start.IsZero() {
		conditions = append(conditions, "end_utc > ?")
		args = append(args, formatTime(filter.Start))
	}
	if filter.ExcludeID != "" {
		conditions = append(conditions, "id <> ?")
		args = append(args, filter.ExcludeID)
	}

	query := `SELECT ` + intervalColumns + ` FROM availability_intervals`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY owner_id ASC, start_utc ASC, id ASC"
	return query, args
}

func scanInterval(row rowScanner) (persistence.AvailabilityInterval, error) {
	var (
		interval               persistence.AvailabilityInterval
		start, end, createdAt  string
		reason, recurrenceRule sql.NullString
	)
	if err := row.Scan(
		&interval.ID,
		&interval.OwnerID,
		&start,
		&end,
		&interval.Kind,
		&reason,
		&recurrenceRule,
		&createdAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.AvailabilityInterval{}, err
		}
		return persistence.AvailabilityInterval{}, mapError(err)
	}

	interval.Reason = stringPtr(reason)
	interval.RecurrenceRule = stringPtr(recurrenceRule)

	var err error
	if interval.Start, err = parseTime("start_utc", start); err != nil {
		return persistence.AvailabilityInterval{}, err
	}
	if interval.End, err = parseTime("end_utc", end); err != nil {
		return persistence.AvailabilityInterval{}, err
	}
	if interval.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.AvailabilityInterval{}, err
	}
	return interval, nil
}
