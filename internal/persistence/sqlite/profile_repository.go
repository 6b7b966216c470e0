package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gusfragger/webot/internal/persistence"
)

// ProfileRepository implements persistence.ProfileRepository.
type ProfileRepository struct {
	pool *ConnectionPool
}

// NewProfileRepository returns a repository backed by pool.
func NewProfileRepository(pool *ConnectionPool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

const profileColumns = `user_id, timezone, working_hours_start, working_hours_end, notification_offsets, created_at, updated_at`

// GetProfile returns the profile of userID or persistence.ErrNotFound.
func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (persistence.UserProfile, error) {
	if userID == "" {
		return persistence.UserProfile{}, persistence.ErrNotFound
	}
	row := r.pool.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE user_id = ?`, userID)
	profile, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.UserProfile{}, persistence.ErrNotFound
	}
	return profile, err
}

// ListProfiles returns the stored profiles among userIDs ordered by user id.
// Unknown ids are skipped.
func (r *ProfileRepository) ListProfiles(ctx context.Context, userIDs []string) ([]persistence.UserProfile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(userIDs))
	for i, id := range userIDs {
		args[i] = id
	}

	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM user_profiles WHERE user_id IN (`+placeholders(len(userIDs))+`) ORDER BY user_id`,
		args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var profiles []persistence.UserProfile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return profiles, nil
}

// UpsertProfile inserts the profile or replaces the stored preferences,
// keeping the original created_at.
func (r *ProfileRepository) UpsertProfile(ctx context.Context, profile persistence.UserProfile) error {
	if profile.UserID == "" {
		return persistence.ErrConstraintViolation
	}
	offsets := profile.NotificationOffsets
	if offsets == nil {
		offsets = []string{}
	}
	encoded, err := json.Marshal(offsets)
	if err != nil {
		return fmt.Errorf("failed to encode notification offsets: %w", err)
	}

	_, err = r.pool.db.ExecContext(ctx, `
		INSERT INTO user_profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			timezone = excluded.timezone,
			working_hours_start = excluded.working_hours_start,
			working_hours_end = excluded.working_hours_end,
			notification_offsets = excluded.notification_offsets,
			updated_at = excluded.updated_at`,
		profile.UserID,
		profile.Timezone,
		profile.WorkingHoursStart,
		profile.WorkingHoursEnd,
		string(encoded),
		formatTime(profile.CreatedAt),
		formatTime(profile.UpdatedAt),
	)
	return mapError(err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (persistence.UserProfile, error) {
	var (
		profile              persistence.UserProfile
		offsets              string
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&profile.UserID,
		&profile.Timezone,
		&profile.WorkingHoursStart,
		&profile.WorkingHoursEnd,
		&offsets,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.UserProfile{}, err
		}
		return persistence.UserProfile{}, mapError(err)
	}

	if err := json.Unmarshal([]byte(offsets), &profile.NotificationOffsets); err != nil {
		return persistence.UserProfile{}, fmt.Errorf("failed to decode notification offsets: %w", err)
	}
	var err error
	if profile.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.UserProfile{}, err
	}
	if profile.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.UserProfile{}, err
	}
	return profile, nil
}
