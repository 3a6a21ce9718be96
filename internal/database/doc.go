// Package database provides the SQLite run history for sitecrawl.
//
// Every crawl run is recorded as one row in crawl_runs: the seed, the
// transport, start and finish times, page and link counts, the stop reason
// and the per-host / per-kind breakdowns. Page contents are not stored.
//
// modernc.org/sqlite is used so the binary stays CGO-free. The database
// lives in the XDG data directory (~/.local/share/sitecrawl/sitecrawl.db).
package database
