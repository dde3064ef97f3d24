package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/switchyard/internal/domain"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// formatTime renders a timestamp in the stored text form (UTC, millisecond precision).
func formatTime(t time.Time) string {
	return t.UTC().Format(domain.TimeLayout)
}

// parseTime reads a stored timestamp. Rows written by SQLite's own
// datetime() helpers use a space separator and no zone, so those are
// accepted too.
func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{domain.TimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q", s)
}

// nullIfEmpty maps "" to SQL NULL for optional text columns.
func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
