// Package migration applies versioned SQL files to a SQLite database.
//
// Files are read from an fs.FS, usually an embedded directory, and must be
// named {version}_{description}.sql (for example "001_initial_schema.sql").
// Versions must form a gapless sequence. Each file runs inside its own
// transaction and is recorded in the schema_migrations table so that it is
// never applied twice.
//
//	manager := migration.NewManager(db, migrationFS, "migrations", logger)
//	if err := manager.Run(ctx); err != nil {
//		return err
//	}
package migration
