// Package database opens and migrates the daemon's SQLite file.
//
// The database stores only passive diagnostics (the traffic recorder's
// decoded-identity and unknown-advertisement tables); device configuration
// never lives here. WAL mode keeps recorder writes from blocking reads,
// and a single pooled connection sidesteps SQLite's single-writer locking.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are embedded SQL file pairs
// (YYYYMMDD_HHMMSS_description.{up,down}.sql) applied oldest-first, each in
// its own transaction, with bookkeeping in schema_migrations. New columns
// must be nullable or carry defaults so older binaries survive a newer
// schema.
package database
