// Package database provides SQLite access for dzpanel.
//
// It wraps database/sql with connection setup (WAL mode, busy timeout,
// foreign keys), embedded schema migrations, and lifecycle management.
//
// dzpanel stores only operational history here (the lifecycle event log);
// the game server's own configuration is held in memory and rebuilt from
// defaults on panel restart.
//
// # Usage
//
//	db, err := database.Open(database.Config{Path: "./data/dzpanel.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are embedded at build time via the migrations package and
// applied in filename order (YYYYMMDD_HHMMSS_description.up.sql).
package database
