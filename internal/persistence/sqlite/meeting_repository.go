package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gusfragger/webot/internal/persistence"
)

// MeetingRepository implements persistence.MeetingRepository.
type MeetingRepository struct {
	pool *ConnectionPool
}

// NewMeetingRepository returns a repository backed by pool.
func NewMeetingRepository(pool *ConnectionPool) *MeetingRepository {
	return &MeetingRepository{pool: pool}
}

const meetingColumns = `id, proposer_id, title, start_utc, duration_minutes, display_timezone, status, series_id, created_at, updated_at`

const seriesColumns = `id, proposer_id, pattern, interval_value, first_occurrence_utc, until_utc, max_occurrences, created_at`

// CreateMeeting inserts the meeting together with its participants.
func (r *MeetingRepository) CreateMeeting(ctx context.Context, meeting persistence.Meeting) error {
	if meeting.ID == "" {
		return persistence.ErrConstraintViolation
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		return insertMeeting(ctx, tx, meeting)
	})
}

// CreateSeries stores the series row and every occurrence in one transaction.
func (r *MeetingRepository) CreateSeries(ctx context.Context, series persistence.RecurrenceSeries, occurrences []persistence.Meeting) error {
	if series.ID == "" {
		return persistence.ErrConstraintViolation
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO recurrence_series (`+seriesColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			series.ID,
			series.ProposerID,
			series.Pattern,
			series.Interval,
			formatTime(series.FirstOccurrence),
			nullTime(series.Until),
			series.MaxOccurrences,
			formatTime(series.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert series: %w", mapError(err))
		}

		for _, occurrence := range occurrences {
			if occurrence.ID == "" {
				return persistence.ErrConstraintViolation
			}
			seriesID := series.ID
			occurrence.SeriesID = &seriesID
			if err := insertMeeting(ctx, tx, occurrence); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertMeeting(ctx context.Context, tx *sql.Tx, meeting persistence.Meeting) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO meetings (`+meetingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meeting.ID,
		meeting.ProposerID,
		meeting.Title,
		formatTime(meeting.Start),
		meeting.DurationMinutes,
		meeting.DisplayTimezone,
		meeting.Status,
		nullString(meeting.SeriesID),
		formatTime(meeting.CreatedAt),
		formatTime(meeting.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert meeting: %w", mapError(err))
	}

	for _, userID := range meeting.Participants {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO meeting_participants (meeting_id, user_id) VALUES (?, ?)`,
			meeting.ID, userID)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", mapError(err))
		}
	}
	return nil
}

// GetMeeting returns the meeting with its participants or persistence.ErrNotFound.
func (r *MeetingRepository) GetMeeting(ctx context.Context, id string) (persistence.Meeting, error) {
	row := r.pool.db.QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = ?`, id)
	meeting, err := scanMeeting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.Meeting{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Meeting{}, err
	}

	participants, err := r.participantsOf(ctx, []string{meeting.ID})
	if err != nil {
		return persistence.Meeting{}, err
	}
	meeting.Participants = participants[meeting.ID]
	return meeting, nil
}

// UpdateMeeting writes the mutable fields of meeting when the stored status
// still equals expectedStatus. Participants are not changed.
func (r *MeetingRepository) UpdateMeeting(ctx context.Context, meeting persistence.Meeting, expectedStatus string) error {
	result, err := r.pool.db.ExecContext(ctx, `
		UPDATE meetings
		SET title = ?, start_utc = ?, duration_minutes = ?, display_timezone = ?, status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		meeting.Title,
		formatTime(meeting.Start),
		meeting.DurationMinutes,
		meeting.DisplayTimezone,
		meeting.Status,
		formatTime(meeting.UpdatedAt),
		meeting.ID,
		expectedStatus,
	)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	var exists int
	err = r.pool.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM meetings WHERE id = ?`, meeting.ID).Scan(&exists)
	if err != nil {
		return mapError(err)
	}
	if exists == 0 {
		return persistence.ErrNotFound
	}
	return persistence.ErrStaleWrite
}

// GetSeries returns the series with id or persistence.ErrNotFound.
func (r *MeetingRepository) GetSeries(ctx context.Context, id string) (persistence.RecurrenceSeries, error) {
	var (
		series           persistence.RecurrenceSeries
		first, createdAt string
		until            sql.NullString
	)
	err := r.pool.db.QueryRowContext(ctx, `SELECT `+seriesColumns+` FROM recurrence_series WHERE id = ?`, id).Scan(
		&series.ID,
		&series.ProposerID,
		&series.Pattern,
		&series.Interval,
		&first,
		&until,
		&series.MaxOccurrences,
		&createdAt,
	)
	if err != nil {
		return persistence.RecurrenceSeries{}, mapError(err)
	}

	if series.FirstOccurrence, err = parseTime("first_occurrence_utc", first); err != nil {
		return persistence.RecurrenceSeries{}, err
	}
	if series.Until, err = timePtr("until_utc", until); err != nil {
		return persistence.RecurrenceSeries{}, err
	}
	if series.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.RecurrenceSeries{}, err
	}
	return series, nil
}

// ListSeriesMeetings returns the occurrences of a series in start order.
func (r *MeetingRepository) ListSeriesMeetings(ctx context.Context, seriesID string) ([]persistence.Meeting, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT `+meetingColumns+` FROM meetings WHERE series_id = ? ORDER BY start_utc ASC, id ASC`, seriesID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var (
		meetings []persistence.Meeting
		ids      []string
	)
	for rows.Next() {
		meeting, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		meetings = append(meetings, meeting)
		ids = append(ids, meeting.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	if len(meetings) == 0 {
		return nil, nil
	}

	participants, err := r.participantsOf(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range meetings {
		meetings[i].Participants = participants[meetings[i].ID]
	}
	return meetings, nil
}

func (r *MeetingRepository) participantsOf(ctx context.Context, meetingIDs []string) (map[string][]string, error) {
	args := make([]any, len(meetingIDs))
	for i, id := range meetingIDs {
		args[i] = id
	}
	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT meeting_id, user_id FROM meeting_participants WHERE meeting_id IN (`+placeholders(len(meetingIDs))+`) ORDER BY meeting_id, user_id`,
		args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	participants := make(map[string][]string, len(meetingIDs))
	for rows.Next() {
		var meetingID, userID string
		if err := rows.Scan(&meetingID, &userID); err != nil {
			return nil, mapError(err)
		}
		participants[meetingID] = append(participants[meetingID], userID)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return participants, nil
}

func scanMeeting(row rowScanner) (persistence.Meeting, error) {
	var (
		meeting                     persistence.Meeting
		start, createdAt, updatedAt string
		seriesID                    sql.NullString
	)
	if err := row.Scan(
		&meeting.ID,
		&meeting.ProposerID,
		&meeting.Title,
		&start,
		&meeting.DurationMinutes,
		&meeting.DisplayTimezone,
		&meeting.Status,
		&seriesID,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Meeting{}, err
		}
		return persistence.Meeting{}, mapError(err)
	}

	meeting.SeriesID = stringPtr(seriesID)

	var err error
	if meeting.Start, err = parseTime("start_utc", start); err != nil {
		return persistence.Meeting{}, err
	}
	if meeting.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.Meeting{}, err
	}
	if meeting.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.Meeting{}, err
	}
	return meeting, nil
}
