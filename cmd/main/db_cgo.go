//go:build cgo_sqlite

package main

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// openDB opens the ledger database with the cgo driver, which understands the
// configured "_journal_mode=WAL&_busy_timeout=5000" parameters natively.
func openDB(dataSource string) (*sql.DB, error) {
	return sql.Open("sqlite3", dataSource)
}
