//go:build !cgo_sqlite

package main

import (
	"database/sql"
	"net/url"
	"strings"

	_ "modernc.org/sqlite"
)

// openDB opens the ledger database with the pure Go driver. Parameters in the
// cgo driver's "_name=value" form are rewritten to "_pragma=name(value)".
func openDB(dataSource string) (*sql.DB, error) {
	return sql.Open("sqlite", nativeDSN(dataSource))
}

func nativeDSN(dataSource string) string {
	file, rawQuery, found := strings.Cut(dataSource, "?")
	if !found {
		return dataSource
	}
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return dataSource
	}

	out := url.Values{}
	for key, values := range query {
		name, ok := strings.CutPrefix(key, "_")
		if !ok || name == "pragma" || name == "txlock" || name == "time_format" {
			out[key] = values
			continue
		}
		for _, v := range values {
			out.Add("_pragma", name+"("+v+")")
		}
	}
	return file + "?" + out.Encode()
}
