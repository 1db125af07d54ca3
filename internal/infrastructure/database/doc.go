// Package database provides the SQLite connection used by the local device
// and user stores.
//
// This package manages:
//   - Opening the database file with WAL mode and a busy timeout
//   - Versioned schema migrations read from an embedded filesystem
//   - Health checks for the readiness probe
//
// SQLite has a single writer, so the pool is capped at one open connection.
// The database file is created with 0600 permissions.
//
// Usage:
//
//	db, err := database.Open(database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations:
//
// Files are named YYYYMMDD_HHMMSS_description.up.sql with a matching
// .down.sql. Each migration runs in its own transaction together with its
// schema_migrations row, so a failed migration leaves no partial state.
// The migrations package registers the application schema at init.
package database
