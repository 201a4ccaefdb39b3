// package repositories provides the SQLite persistence layer for canonical
// tracks, placement records, combined playlist entries and popularity samples.
//
// Placement records and aggregate entries use replace-not-patch semantics:
// each run (or genre) rewrites its full set so stale rows never linger.
package repositories

import "time"

// dateKey formats a sample date as its canonical column value.
func dateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
