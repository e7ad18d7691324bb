// Package database provides SQLite connectivity and schema migrations.
//
// The engine stores its shared template library here (see
// rules.SQLiteTemplateRepository). Connections run with WAL mode and a busy
// timeout; the pool holds a single connection to match SQLite's one writer.
//
// Migrations are additive-only. Each version is a pair of files,
// YYYYMMDD_HHMMSS_description.up.sql and .down.sql, read from any fs.FS:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
