// Package database provides SQLite persistence for IoT Core.
//
// This package manages:
//   - Opening the database file with WAL mode and busy timeout
//   - Schema migrations from embedded SQL files
//   - Health checks and connection lifecycle
//
// SQLite is the document store for sensor readings, LED action history,
// and classification thresholds. The single-writer model fits the
// ingestion pattern: one worker pool writes, the HTTP API reads.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: "./data/iotcore.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
