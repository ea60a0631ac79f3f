package attendance

import (
	"strings"
	"time"

	"sheetstamp/internal/document"
)

var placeholders = map[string]bool{
	"":           true,
	"-":          true,
	"--":         true,
	"N/A":        true,
	"TBD":        true,
	"TIME":       true,
	"DATE":       true,
	"DAY":        true,
	"HH:MM":      true,
	"DD/MM/YYYY": true,
}

// IsPlaceholder reports whether a cell counts as not yet filled.
func IsPlaceholder(text string) bool {
	return placeholders[strings.ToUpper(strings.TrimSpace(text))]
}

// Blank-row tests. Row selection accepts only "" and "-"; the weekend pass
// also treats "N/A" as blank.
var (
	blankForSelection = []string{"", "-"}
	blankForWeekend   = []string{"", "-", "N/A"}
)

func rowIsBlank(t document.Table, row int, blank []string) bool {
	for col := 0; col < t.Cols(row); col++ {
		text := strings.TrimSpace(t.Text(row, col))
		found := false
		for _, b := range blank {
			if text == b {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// dateLayouts are tried in order when reading dates already in the sheet.
var dateLayouts = []string{
	"2006-1-2",
	"2/1/2006",
	"1/2/2006",
	"2-1-2006",
}

// MatchesDate reports whether text parses to the same calendar day as date
// under any known layout.
func MatchesDate(text string, date time.Time) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	y, m, d := date.Date()
	for _, layout := range dateLayouts {
		parsed, err := time.Parse(layout, text)
		if err != nil {
			continue
		}
		py, pm, pd := parsed.Date()
		if py == y && pm == m && pd == d {
			return true
		}
	}
	return false
}

// findDateRow returns the first row after the header whose date cell holds
// date.
func findDateRow(t document.Table, columns ColumnMap, date time.Time) (int, bool) {
	col, ok := columns.Col(RoleDate)
	if !ok {
		return 0, false
	}
	for row := 1; row < t.Rows(); row++ {
		if MatchesDate(t.Text(row, col), date) {
			return row, true
		}
	}
	return 0, false
}

func findBlankRow(t document.Table, blank []string) (int, bool) {
	for row := 1; row < t.Rows(); row++ {
		if rowIsBlank(t, row, blank) {
			return row, true
		}
	}
	return 0, false
}

// SelectRow picks the row to fill for date: the row already dated date, else
// the first blank row. ok is false when neither exists.
func SelectRow(t document.Table, columns ColumnMap, date time.Time) (row int, ok bool) {
	if row, ok := findDateRow(t, columns, date); ok {
		return row, true
	}
	return findBlankRow(t, blankForSelection)
}
