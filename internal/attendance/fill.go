package attendance

import (
	"fmt"
	"log"
	"strings"
	"time"

	"sheetstamp/internal/document"
)

const (
	weekendText = "Weekend"
	weekendFill = "DCDCDC"
)

// Request is one stamping operation against the sheet.
type Request struct {
	Date    time.Time
	TimeIn  *time.Time
	TimeOut *time.Time
}

// CheckIn reports whether the request only records an arrival.
func (r Request) CheckIn() bool { return r.TimeIn != nil && r.TimeOut == nil }

// CheckOut reports whether the request records a departure.
func (r Request) CheckOut() bool { return r.TimeOut != nil }

// Formats holds Go layouts used to write dates and times into cells.
type Formats struct {
	Date string
	Time string
}

// fallbackTimeLayouts are tried after the configured layout when reading
// times already in the sheet.
var fallbackTimeLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM"}

func isWeekend(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// fillIfBlank writes text into the role's cell when the cell holds a
// placeholder. It reports whether the cell was written.
func fillIfBlank(t document.Table, row int, columns ColumnMap, role Role, text string) (bool, error) {
	col, ok := columns.Col(role)
	if !ok {
		return false, nil
	}
	if !IsPlaceholder(t.Text(row, col)) {
		return false, nil
	}
	if err := t.SetText(row, col, text); err != nil {
		return false, fmt.Errorf("write %s: %w", role, err)
	}
	return true, nil
}

func setRole(t document.Table, row int, columns ColumnMap, role Role, text string) error {
	col, ok := columns.Col(role)
	if !ok {
		return nil
	}
	if err := t.SetText(row, col, text); err != nil {
		return fmt.Errorf("write %s: %w", role, err)
	}
	return nil
}

// FillRow stamps req into row. Only placeholder cells are written, except
// that weekend dates always get "Weekend" in both time columns.
func FillRow(t document.Table, row int, columns ColumnMap, req Request, f Formats) error {
	date := req.Date

	if _, err := fillIfBlank(t, row, columns, RoleDate, date.Format(f.Date)); err != nil {
		return err
	}
	if _, err := fillIfBlank(t, row, columns, RoleDay, date.Weekday().String()); err != nil {
		return err
	}

	weekend := isWeekend(date)
	for _, tc := range []struct {
		role  Role
		stamp *time.Time
	}{
		{RoleTimeIn, req.TimeIn},
		{RoleTimeOut, req.TimeOut},
	} {
		if _, ok := columns.Col(tc.role); !ok {
			log.Printf("%s column not found in table", tc.role)
			continue
		}
		switch {
		case weekend:
			if err := setRole(t, row, columns, tc.role, weekendText); err != nil {
				return err
			}
		case tc.stamp != nil:
			text := tc.stamp.Format(f.Time)
			written, err := fillIfBlank(t, row, columns, tc.role, text)
			if err != nil {
				return err
			}
			if written {
				log.Printf("filled %s: %s", tc.role, text)
			} else {
				log.Printf("%s already filled with %q", tc.role, cellText(t, row, columns, tc.role))
			}
		}
	}

	if weekend {
		return nil
	}
	return fillHours(t, row, columns, req, f)
}

func fillHours(t document.Table, row int, columns ColumnMap, req Request, f Formats) error {
	if _, ok := columns.Col(RoleHours); !ok {
		return nil
	}

	in, okIn := resolveTime(t, row, columns, RoleTimeIn, req.TimeIn, req.Date, f.Time)
	out, okOut := resolveTime(t, row, columns, RoleTimeOut, req.TimeOut, req.Date, f.Time)
	if !okIn || !okOut {
		log.Printf("cannot calculate hours: missing time in or time out")
		return nil
	}

	span := out.Sub(in)
	if span < 0 {
		log.Printf("cannot calculate hours: time out %s is before time in %s", out.Format(f.Time), in.Format(f.Time))
		return nil
	}

	hours := FormatHours(span)
	written, err := fillIfBlank(t, row, columns, RoleHours, hours)
	if err != nil {
		return err
	}
	if written {
		log.Printf("calculated hours: %s", hours)
	}
	return nil
}

// FormatHours renders a duration as decimal hours with two places.
func FormatHours(d time.Duration) string {
	return fmt.Sprintf("%.2f", d.Seconds()/3600)
}

// resolveTime prefers the stamp from the request and otherwise reads the
// existing cell text. Times are placed on date so both ends compare on the
// same day.
func resolveTime(t document.Table, row int, columns ColumnMap, role Role, stamp *time.Time, date time.Time, layout string) (time.Time, bool) {
	if stamp != nil {
		return onDate(*stamp, date), true
	}
	if _, ok := columns.Col(role); !ok {
		return time.Time{}, false
	}

	text := strings.TrimSpace(cellText(t, row, columns, role))
	if IsPlaceholder(text) || text == weekendText {
		return time.Time{}, false
	}
	clock, err := ParseClock(text, layout)
	if err != nil {
		log.Printf("could not parse existing %s: %q", role, text)
		return time.Time{}, false
	}
	return onDate(clock, date), true
}

// ParseClock reads a time of day using layout, then the common fallbacks.
func ParseClock(text, layout string) (time.Time, error) {
	var firstErr error
	for _, l := range append([]string{layout}, fallbackTimeLayouts...) {
		if l == "" {
			continue
		}
		parsed, err := time.Parse(l, text)
		if err == nil {
			return parsed, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

func onDate(clock, date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), clock.Second(), 0, date.Location())
}

func cellText(t document.Table, row int, columns ColumnMap, role Role) string {
	col, ok := columns.Col(role)
	if !ok {
		return ""
	}
	return t.Text(row, col)
}

// FillWeekend pre-fills the Saturday and Sunday after friday and shades
// their rows. A day that already has a dated row is filled in place, so a
// repeated Friday check-in never adds a second row; otherwise the next blank
// row is used. It returns the rows written.
func FillWeekend(t document.Table, columns ColumnMap, friday time.Time, f Formats) ([]int, error) {
	var filled []int
	for offset := 1; offset <= 2; offset++ {
		day := friday.AddDate(0, 0, offset)
		row, ok := findDateRow(t, columns, day)
		if !ok {
			row, ok = findBlankRow(t, blankForWeekend)
		}
		if !ok {
			log.Printf("no empty rows found for %s", day.Weekday())
			break
		}
		if err := fillWeekendRow(t, row, columns, day, f); err != nil {
			return filled, err
		}
		if err := t.ShadeRow(row, weekendFill); err != nil {
			log.Printf("could not shade %s row: %v", day.Weekday(), err)
		}
		log.Printf("filled %s row %d: %s", day.Weekday(), row, day.Format(f.Date))
		filled = append(filled, row)
	}
	return filled, nil
}

func fillWeekendRow(t document.Table, row int, columns ColumnMap, day time.Time, f Formats) error {
	if _, err := fillIfBlank(t, row, columns, RoleDate, day.Format(f.Date)); err != nil {
		return err
	}
	if _, err := fillIfBlank(t, row, columns, RoleDay, day.Weekday().String()); err != nil {
		return err
	}
	if err := setRole(t, row, columns, RoleTimeIn, weekendText); err != nil {
		return err
	}
	if err := setRole(t, row, columns, RoleTimeOut, weekendText); err != nil {
		return err
	}
	return setRole(t, row, columns, RoleHours, "")
}
