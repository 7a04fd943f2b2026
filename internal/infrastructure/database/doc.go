// Package database provides SQLite connectivity for autoscan.
//
// Two databases use it: the service's own history database (pair
// attempts) and the inventory database updated by cmd/autoscan. Each
// brings its own embedded migration set, passed to Migrate as a
// MigrationSource.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.History); err != nil {
//	    return err
//	}
//
// Migrations are additive-only. Each version has an .up.sql file and
// optionally a .down.sql file named YYYYMMDD_HHMMSS_description.
package database
