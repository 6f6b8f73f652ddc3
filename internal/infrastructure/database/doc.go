// Package database provides the SQLite datastore behind the node registry.
//
// The bridge persists which nodes exist, whether each has completed its
// add-node acknowledgment, and the last known driver values, so a restart
// does not have to wait for the host to re-acknowledge every child.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are forward-only *.up.sql files named
// YYYYMMDD_HHMMSS_description.up.sql.
package database
