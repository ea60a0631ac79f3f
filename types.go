package main

import (
	"database/sql"
	"time"
)

// Entry is one attendance session: a check-in and, once the day is done,
// its check-out.
type Entry struct {
	ID        int64
	StartTime time.Time
	EndTime   sql.NullTime
	Document  string
	CreatedAt time.Time
}

// Duration is zero for sessions that are still open.
func (e Entry) Duration() time.Duration {
	if !e.EndTime.Valid {
		return 0
	}
	return e.EndTime.Time.Sub(e.StartTime)
}

type DisplayOptions struct {
	Type string // "day", "week", "month", "year"
}
