package attendance

import (
	"slices"
	"strings"

	"sheetstamp/internal/document"
)

// Role is the meaning of a table column.
type Role string

const (
	RoleDate    Role = "date"
	RoleDay     Role = "day"
	RoleTimeIn  Role = "time_in"
	RoleTimeOut Role = "time_out"
	RoleHours   Role = "hours"
)

// ColumnMap maps roles to column indices. Roles missing from the header are
// absent from the map.
type ColumnMap map[Role]int

func (c ColumnMap) Col(role Role) (int, bool) {
	i, ok := c[role]
	return i, ok
}

var tableKeywords = []string{"date", "day", "time in", "time out", "hours", "attendance"}

// FindTable returns the first table whose header row carries at least two
// attendance keywords, or nil.
func FindTable(tables []document.Table) document.Table {
	for _, t := range tables {
		if isAttendanceTable(t) {
			return t
		}
	}
	return nil
}

func isAttendanceTable(t document.Table) bool {
	if t.Rows() == 0 {
		return false
	}
	var headers []string
	for col := 0; col < t.Cols(0); col++ {
		headers = append(headers, normalizeHeader(t.Text(0, col)))
	}

	matches := 0
	for _, keyword := range tableKeywords {
		if slices.ContainsFunc(headers, func(h string) bool { return strings.Contains(h, keyword) }) {
			matches++
		}
	}
	return matches >= 2
}

type columnRule struct {
	role  Role
	match func(header string) bool
}

func containsAny(words ...string) func(string) bool {
	return func(header string) bool {
		for _, w := range words {
			if strings.Contains(header, w) {
				return true
			}
		}
		return false
	}
}

func containsOrEquals(sub string, exact ...string) func(string) bool {
	return func(header string) bool {
		return strings.Contains(header, sub) || slices.Contains(exact, header)
	}
}

// columnRules is evaluated top to bottom; the first rule that matches a
// header cell decides its role.
var columnRules = []columnRule{
	{RoleDate, containsAny("date", "dt")},
	{RoleDay, containsAny("day", "weekday")},
	{RoleTimeIn, containsOrEquals("time in",
		"time in", "timein", "in time", "intime", "check in", "checkin", "start", "start time")},
	{RoleTimeOut, containsOrEquals("time out",
		"time out", "timeout", "out time", "outtime", "check out", "checkout", "end", "end time")},
	{RoleHours, containsAny("hours", "total", "duration")},
}

// ClassifyHeader returns the role of a single header cell.
func ClassifyHeader(text string) (Role, bool) {
	header := normalizeHeader(text)
	for _, rule := range columnRules {
		if rule.match(header) {
			return rule.role, true
		}
	}
	return "", false
}

// IdentifyColumns maps the header row of t. When two header cells share a
// role the later one wins.
func IdentifyColumns(t document.Table) ColumnMap {
	columns := ColumnMap{}
	if t.Rows() == 0 {
		return columns
	}
	for col := 0; col < t.Cols(0); col++ {
		if role, ok := ClassifyHeader(t.Text(0, col)); ok {
			columns[role] = col
		}
	}
	return columns
}

func normalizeHeader(header string) string {
	return strings.ToLower(strings.TrimSpace(header))
}
