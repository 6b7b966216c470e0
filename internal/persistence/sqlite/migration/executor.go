package migration

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"
)

const versionTableDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	applied_at TEXT NOT NULL,
	checksum TEXT NOT NULL DEFAULT '',
	execution_time_ms INTEGER NOT NULL DEFAULT 0
)`

// Executor applies migrations and tracks them in schema_migrations.
type Executor struct {
	db  *sql.DB
	now func() time.Time
}

// NewExecutor returns an Executor for db.
func NewExecutor(db *sql.DB) *Executor {
	return &Executor{db: db, now: time.Now}
}

// InitializeVersionTable creates schema_migrations when missing.
func (e *Executor) InitializeVersionTable(ctx context.Context) error {
	if _, err := e.db.ExecContext(ctx, versionTableDDL); err != nil {
		return &DatabaseError{Operation: "create schema_migrations", Err: err}
	}
	return nil
}

// Apply runs every statement of m and records it, all in one transaction.
func (e *Executor) Apply(ctx context.Context, m Migration) (time.Duration, error) {
	statements := splitStatements(m.SQL)
	if len(statements) == 0 {
		return 0, &MigrationError{Version: m.Version, FilePath: m.FilePath, Operation: "parse", Err: ErrInvalidMigrationFile}
	}

	started := e.now()
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &DatabaseError{Version: m.Version, Operation: "begin transaction", Err: err}
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			rollbackErr := tx.Rollback()
			return 0, errors.Join(
				&DatabaseError{Version: m.Version, Operation: fmt.Sprintf("execute statement %d", i+1), Err: err},
				rollbackErr,
			)
		}
	}

	elapsed := e.now().Sub(started)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES (?, ?, ?, ?)`,
		m.Version, e.now().UTC().Format(time.RFC3339), m.Checksum, elapsed.Milliseconds(),
	); err != nil {
		rollbackErr := tx.Rollback()
		return 0, errors.Join(&DatabaseError{Version: m.Version, Operation: "record migration", Err: err}, rollbackErr)
	}

	if err := tx.Commit(); err != nil {
		return 0, &DatabaseError{Version: m.Version, Operation: "commit", Err: err}
	}
	return elapsed, nil
}

// Applied lists recorded migrations ordered by version.
func (e *Executor) Applied(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT version, applied_at, checksum, execution_time_ms FROM schema_migrations`)
	if err != nil {
		return nil, &DatabaseError{Operation: "list applied migrations", Err: err}
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			row       AppliedMigration
			appliedAt string
			elapsedMs int64
		)
		if err := rows.Scan(&row.Version, &appliedAt, &row.Checksum, &elapsedMs); err != nil {
			return nil, &DatabaseError{Operation: "scan applied migration", Err: err}
		}
		row.AppliedAt, err = time.Parse(time.RFC3339, appliedAt)
		if err != nil {
			return nil, &DatabaseError{Version: row.Version, Operation: "parse applied_at", Err: err}
		}
		row.ExecutionTime = time.Duration(elapsedMs) * time.Millisecond
		applied = append(applied, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &DatabaseError{Operation: "iterate applied migrations", Err: err}
	}

	slices.SortFunc(applied, func(a, b AppliedMigration) int {
		return cmp.Compare(versionNumber(a.Version), versionNumber(b.Version))
	})
	return applied, nil
}
