package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/gusfragger/webot/internal/logging"
	"github.com/gusfragger/webot/internal/persistence/sqlite"
	"github.com/gusfragger/webot/internal/persistence/sqlite/migration"
)

// SQLiteHarness exposes the SQLite repositories over a migrated temporary
// database file.
type SQLiteHarness struct {
	Pool         *sqlite.ConnectionPool
	Profiles     *sqlite.ProfileRepository
	Availability *sqlite.AvailabilityRepository
	Meetings     *sqlite.MeetingRepository
	Jobs         *sqlite.NotificationJobRepository

	cleanup func()
}

// Close releases the pool. It is also registered with tb.Cleanup.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens and migrates a database under tb.TempDir.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	cfg := migration.TempFileTestSQLiteConfig(filepath.Join(tb.TempDir(), "webot.db"))
	pool, err := sqlite.Open(context.Background(), cfg, logging.Discard())
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	harness := &SQLiteHarness{
		Pool:         pool,
		Profiles:     sqlite.NewProfileRepository(pool),
		Availability: sqlite.NewAvailabilityRepository(pool),
		Meetings:     sqlite.NewMeetingRepository(pool),
		Jobs:         sqlite.NewNotificationJobRepository(pool),
		cleanup: func() {
			_ = pool.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}
