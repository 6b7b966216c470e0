package migration

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"time"
)

// Manager orchestrates scanning, validation and execution.
type Manager struct {
	scanner  *Scanner
	executor *Executor
	dir      string
	logger   *slog.Logger
}

// NewManager returns a Manager applying the files under dir in fsys to db.
func NewManager(db *sql.DB, fsys fs.FS, dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		scanner:  NewScanner(fsys),
		executor: NewExecutor(db),
		dir:      dir,
		logger:   logger.With("component", "migration"),
	}
}

// Run applies every pending migration in version order and stops at the first
// failure.
func (m *Manager) Run(ctx context.Context) error {
	started := time.Now()

	status, err := m.Status(ctx)
	if err != nil {
		return err
	}
	if len(status.Pending) == 0 {
		m.logger.Info("schema up to date", "version", status.CurrentVersion)
		return nil
	}

	m.logger.Info("applying migrations", "from_version", status.CurrentVersion, "pending", len(status.Pending))
	for _, migration := range status.Pending {
		elapsed, err := m.executor.Apply(ctx, migration)
		if err != nil {
			m.logger.Error("migration failed", "version", migration.Version, "file", migration.FilePath, "error", err)
			return &MigrationError{
				Version:   migration.Version,
				FilePath:  migration.FilePath,
				Operation: "apply",
				Err:       fmt.Errorf("%w: %w", ErrMigrationFailed, err),
			}
		}
		m.logger.Info("migration applied",
			"version", migration.Version,
			"description", migration.Description,
			"duration_ms", elapsed.Milliseconds(),
		)
	}

	m.logger.Info("migrations complete", "count", len(status.Pending), "duration_ms", time.Since(started).Milliseconds())
	return nil
}

// Status compares the files on disk with schema_migrations.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, err
	}

	available, err := m.scanner.Scan(m.dir)
	if err != nil {
		return Status{}, err
	}
	applied, err := m.executor.Applied(ctx)
	if err != nil {
		return Status{}, err
	}
	if err := validateSequence(available, applied); err != nil {
		return Status{}, err
	}

	appliedSet := make(map[string]struct{}, len(applied))
	for _, a := range applied {
		appliedSet[a.Version] = struct{}{}
	}

	status := Status{Applied: applied}
	if len(applied) > 0 {
		status.CurrentVersion = applied[len(applied)-1].Version
	}
	for _, migration := range available {
		if _, ok := appliedSet[migration.Version]; !ok {
			status.Pending = append(status.Pending, migration)
		}
	}
	return status, nil
}

// validateSequence requires a gapless run of file versions, every applied
// version to still have its file, and unchanged checksums for applied files.
func validateSequence(available []Migration, applied []AppliedMigration) error {
	byVersion := make(map[string]Migration, len(available))
	for i, migration := range available {
		number, err := strconv.Atoi(migration.Version)
		if err != nil {
			return &MigrationError{Version: migration.Version, FilePath: migration.FilePath, Operation: "validate sequence", Err: ErrInvalidVersion}
		}
		if i > 0 && number != versionNumber(available[i-1].Version)+1 {
			return fmt.Errorf("%w: missing version between %s and %s", ErrVersionConflict, available[i-1].Version, migration.Version)
		}
		byVersion[migration.Version] = migration
	}

	for _, a := range applied {
		migration, ok := byVersion[a.Version]
		if !ok {
			return fmt.Errorf("%w: applied version %s has no migration file", ErrVersionConflict, a.Version)
		}
		if a.Checksum != "" && a.Checksum != migration.Checksum {
			return &MigrationError{Version: a.Version, FilePath: migration.FilePath, Operation: "verify checksum", Err: ErrChecksumMismatch}
		}
	}
	return nil
}
