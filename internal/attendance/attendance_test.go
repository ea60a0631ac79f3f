package attendance

import (
	"fmt"
	"testing"
	"time"

	"sheetstamp/internal/document"
)

// memTable is an in-memory document.Table.
type memTable struct {
	cells  [][]string
	shaded map[int]string
}

func newMemTable(rows ...[]string) *memTable {
	t := &memTable{shaded: map[int]string{}}
	for _, r := range rows {
		t.cells = append(t.cells, append([]string(nil), r...))
	}
	return t
}

func (m *memTable) Rows() int { return len(m.cells) }

func (m *memTable) Cols(row int) int {
	if row < 0 || row >= len(m.cells) {
		return 0
	}
	return len(m.cells[row])
}

func (m *memTable) Text(row, col int) string {
	if row < 0 || row >= len(m.cells) || col < 0 || col >= len(m.cells[row]) {
		return ""
	}
	return m.cells[row][col]
}

func (m *memTable) SetText(row, col int, text string) error {
	if row < 0 || row >= len(m.cells) || col < 0 || col >= len(m.cells[row]) {
		return fmt.Errorf("cell (%d, %d) out of range", row, col)
	}
	m.cells[row][col] = text
	return nil
}

func (m *memTable) ShadeRow(row int, fill string) error {
	m.shaded[row] = fill
	return nil
}

var (
	header   = []string{"Date", "Day", "Time In", "Time Out", "Hours"}
	blankRow = []string{"", "", "", "", ""}
	formats  = Formats{Date: "2006-01-02", Time: "15:04"}
)

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.Local)
}

func ptr(t time.Time) *time.Time { return &t }

func TestFindTable(t *testing.T) {
	notes := newMemTable([]string{"Notes", "Remarks"})
	single := newMemTable([]string{"Date", "Comment"})
	sheet := newMemTable([]string{"DATE", "Time In"})

	if got := FindTable([]document.Table{notes, single, sheet}); got != sheet {
		t.Errorf("expected the table with two keywords")
	}
	if got := FindTable([]document.Table{notes, single}); got != nil {
		t.Errorf("expected no table, got %v", got)
	}
	if got := FindTable([]document.Table{newMemTable()}); got != nil {
		t.Errorf("empty table should not qualify")
	}
	// one header cell hitting several keywords counts each keyword once
	combined := newMemTable([]string{"Attendance date"})
	if got := FindTable([]document.Table{combined}); got != combined {
		t.Errorf("two keywords in one cell should qualify")
	}
}

func TestClassifyHeader(t *testing.T) {
	tests := []struct {
		header string
		role   Role
		ok     bool
	}{
		{"Date", RoleDate, true},
		{" DT ", RoleDate, true},
		{"Weekday", RoleDay, true},
		{"Time In", RoleTimeIn, true},
		{"Check In", RoleTimeIn, true},
		{"start", RoleTimeIn, true},
		{"Time Out", RoleTimeOut, true},
		{"checkout", RoleTimeOut, true},
		{"End", RoleTimeOut, true},
		{"Total Hours", RoleHours, true},
		{"Duration", RoleHours, true},
		// date is tried first, so "update" wins over the time roles
		{"Update Time", RoleDate, true},
		{"Signature", "", false},
	}

	for _, tt := range tests {
		role, ok := ClassifyHeader(tt.header)
		if role != tt.role || ok != tt.ok {
			t.Errorf("ClassifyHeader(%q) = %q, %v; want %q, %v", tt.header, role, ok, tt.role, tt.ok)
		}
	}
}

func TestIdentifyColumnsLaterWins(t *testing.T) {
	tbl := newMemTable([]string{"Date", "Time In", "Remarks", "Start Time", "Hours"})
	columns := IdentifyColumns(tbl)

	if col, _ := columns.Col(RoleTimeIn); col != 3 {
		t.Errorf("time_in = %d, want the later column 3", col)
	}
	if _, ok := columns.Col(RoleTimeOut); ok {
		t.Errorf("time_out should be unmapped")
	}
	if len(IdentifyColumns(newMemTable())) != 0 {
		t.Errorf("empty table should map nothing")
	}
}

func TestIsPlaceholder(t *testing.T) {
	for _, text := range []string{"", " ", "-", "--", "n/a", "TBD", "time", "Date", "hh:mm", "dd/mm/yyyy"} {
		if !IsPlaceholder(text) {
			t.Errorf("%q should be a placeholder", text)
		}
	}
	for _, text := range []string{"09:00", "Weekend", "2025-08-04", "0"} {
		if IsPlaceholder(text) {
			t.Errorf("%q should not be a placeholder", text)
		}
	}
}

func TestMatchesDate(t *testing.T) {
	date := at(2025, 8, 4, 0, 0)
	for _, text := range []string{"2025-08-04", "04/08/2025", "08/04/2025", "04-08-2025", " 2025-8-4 "} {
		if !MatchesDate(text, date) {
			t.Errorf("%q should match %s", text, date.Format("2006-01-02"))
		}
	}
	for _, text := range []string{"", "Monday", "2025-08-05", "4 Aug 2025"} {
		if MatchesDate(text, date) {
			t.Errorf("%q should not match", text)
		}
	}
}

func TestSelectRow(t *testing.T) {
	date := at(2025, 8, 4, 0, 0)

	tbl := newMemTable(header,
		[]string{"2025-08-01", "Friday", "09:00", "17:00", "8.00"},
		[]string{"N/A", "", "", "", ""},
		[]string{"-", "", " ", "", ""},
		[]string{"04/08/2025", "", "", "", ""},
	)
	columns := IdentifyColumns(tbl)

	if row, ok := SelectRow(tbl, columns, date); !ok || row != 4 {
		t.Errorf("exact date match: row %d, %v", row, ok)
	}

	// without a dated row the first blank one is used; "N/A" does not count
	tbl.cells[4][0] = ""
	if row, ok := SelectRow(tbl, columns, date); !ok || row != 3 {
		t.Errorf("first blank row: row %d, %v", row, ok)
	}

	full := newMemTable(header, []string{"2025-08-01", "Friday", "09:00", "17:00", "8.00"})
	if _, ok := SelectRow(full, IdentifyColumns(full), date); ok {
		t.Errorf("expected no fillable row")
	}
}

func TestFillRowCheckInThenOut(t *testing.T) {
	date := at(2025, 8, 4, 0, 0) // Monday
	tbl := newMemTable(header, blankRow)
	columns := IdentifyColumns(tbl)

	in := Request{Date: date, TimeIn: ptr(at(2025, 8, 4, 9, 0))}
	if err := FillRow(tbl, 1, columns, in, formats); err != nil {
		t.Fatalf("check in: %v", err)
	}
	want := []string{"2025-08-04", "Monday", "09:00", "", ""}
	assertRow(t, tbl, 1, want)

	out := Request{Date: date, TimeOut: ptr(at(2025, 8, 4, 17, 30))}
	if err := FillRow(tbl, 1, columns, out, formats); err != nil {
		t.Fatalf("check out: %v", err)
	}
	want = []string{"2025-08-04", "Monday", "09:00", "17:30", "8.50"}
	assertRow(t, tbl, 1, want)

	// a second check-in later in the day does not clobber anything
	again := Request{Date: date, TimeIn: ptr(at(2025, 8, 4, 11, 0))}
	if err := FillRow(tbl, 1, columns, again, formats); err != nil {
		t.Fatalf("second check in: %v", err)
	}
	assertRow(t, tbl, 1, want)
}

func TestFillRowHoursEdgeCases(t *testing.T) {
	date := at(2025, 8, 5, 0, 0) // Tuesday

	tbl := newMemTable(header, []string{"", "", "18:00", "", ""})
	columns := IdentifyColumns(tbl)
	out := Request{Date: date, TimeOut: ptr(at(2025, 8, 5, 9, 0))}
	if err := FillRow(tbl, 1, columns, out, formats); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if got := tbl.Text(1, 4); got != "" {
		t.Errorf("negative span should leave hours empty, got %q", got)
	}

	tbl = newMemTable(header, []string{"", "", "sometime", "", ""})
	out = Request{Date: date, TimeOut: ptr(at(2025, 8, 5, 17, 0))}
	if err := FillRow(tbl, 1, IdentifyColumns(tbl), out, formats); err != nil {
		t.Fatalf("unparsable time in should not fail: %v", err)
	}
	if got := tbl.Text(1, 4); got != "" {
		t.Errorf("hours = %q", got)
	}

	// existing cell text in a fallback layout
	tbl = newMemTable(header, []string{"", "", "8:15 AM", "", ""})
	if err := FillRow(tbl, 1, IdentifyColumns(tbl), out, formats); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if got := tbl.Text(1, 4); got != "8.75" {
		t.Errorf("hours = %q, want 8.75", got)
	}
}

func TestFillRowWeekendOverride(t *testing.T) {
	saturday := at(2025, 8, 9, 0, 0)
	tbl := newMemTable(header, []string{"", "", "10:00", "", ""})

	req := Request{Date: saturday, TimeIn: ptr(at(2025, 8, 9, 10, 0))}
	if err := FillRow(tbl, 1, IdentifyColumns(tbl), req, formats); err != nil {
		t.Fatalf("fill: %v", err)
	}
	assertRow(t, tbl, 1, []string{"2025-08-09", "Saturday", "Weekend", "Weekend", ""})
}

func TestFillRowWithoutColumns(t *testing.T) {
	tbl := newMemTable([]string{"Name", "Signature"}, []string{"", ""})
	req := Request{Date: at(2025, 8, 4, 0, 0), TimeIn: ptr(at(2025, 8, 4, 9, 0))}
	if err := FillRow(tbl, 1, IdentifyColumns(tbl), req, formats); err != nil {
		t.Fatalf("fill with no mapped roles: %v", err)
	}
	assertRow(t, tbl, 1, []string{"", ""})
}

func TestFillWeekend(t *testing.T) {
	friday := at(2025, 8, 8, 0, 0)
	tbl := newMemTable(header,
		[]string{"2025-08-08", "Friday", "09:00", "", ""},
		[]string{"N/A", "-", "", "", ""},
		blankRow,
		blankRow,
	)
	columns := IdentifyColumns(tbl)

	rows, err := FillWeekend(tbl, columns, friday, formats)
	if err != nil {
		t.Fatalf("fill weekend: %v", err)
	}
	if len(rows) != 2 || rows[0] != 2 || rows[1] != 3 {
		t.Fatalf("filled rows = %v", rows)
	}
	assertRow(t, tbl, 2, []string{"2025-08-09", "Saturday", "Weekend", "Weekend", ""})
	assertRow(t, tbl, 3, []string{"2025-08-10", "Sunday", "Weekend", "Weekend", ""})
	if tbl.shaded[2] != "DCDCDC" || tbl.shaded[3] != "DCDCDC" {
		t.Errorf("shaded = %v", tbl.shaded)
	}

	// repeating the Friday check-in rewrites the same rows
	rows, err = FillWeekend(tbl, columns, friday, formats)
	if err != nil || len(rows) != 2 || rows[0] != 2 || rows[1] != 3 {
		t.Errorf("second pass = %v, %v", rows, err)
	}
	assertRow(t, tbl, 3, []string{"2025-08-10", "Sunday", "Weekend", "Weekend", ""})
	assertRow(t, tbl, 4, blankRow)
}

func TestFillWeekendPreDatedRows(t *testing.T) {
	friday := at(2025, 8, 8, 0, 0)
	tbl := newMemTable(header,
		[]string{"2025-08-08", "Friday", "", "", ""},
		[]string{"2025-08-09", "Saturday", "", "", "TBD"},
		[]string{"2025-08-10", "Sunday", "-", "-", ""},
		[]string{"2025-08-11", "Monday", "", "", ""},
		blankRow,
	)

	rows, err := FillWeekend(tbl, IdentifyColumns(tbl), friday, formats)
	if err != nil {
		t.Fatalf("fill weekend: %v", err)
	}
	if len(rows) != 2 || rows[0] != 2 || rows[1] != 3 {
		t.Fatalf("filled rows = %v, want the dated rows 2 and 3", rows)
	}
	assertRow(t, tbl, 2, []string{"2025-08-09", "Saturday", "Weekend", "Weekend", ""})
	assertRow(t, tbl, 3, []string{"2025-08-10", "Sunday", "Weekend", "Weekend", ""})
	if tbl.shaded[2] != "DCDCDC" || tbl.shaded[3] != "DCDCDC" {
		t.Errorf("shaded = %v", tbl.shaded)
	}
	assertRow(t, tbl, 4, []string{"2025-08-11", "Monday", "", "", ""})
	assertRow(t, tbl, 5, blankRow)
}

func TestFillWeekendRunsOutOfRows(t *testing.T) {
	friday := at(2025, 8, 8, 0, 0)
	tbl := newMemTable(header, []string{"2025-08-08", "Friday", "09:00", "", ""}, blankRow)

	rows, err := FillWeekend(tbl, IdentifyColumns(tbl), friday, formats)
	if err != nil {
		t.Fatalf("fill weekend: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("expected only Saturday to fit, got %v", rows)
	}
}

func TestFormatHours(t *testing.T) {
	tests := map[time.Duration]string{
		8*time.Hour + 30*time.Minute: "8.50",
		20 * time.Minute:             "0.33",
		0:                            "0.00",
	}
	for d, want := range tests {
		if got := FormatHours(d); got != want {
			t.Errorf("FormatHours(%s) = %q, want %q", d, got, want)
		}
	}
}

func assertRow(t *testing.T, tbl document.Table, row int, want []string) {
	t.Helper()
	for col, w := range want {
		if got := tbl.Text(row, col); got != w {
			t.Errorf("row %d col %d = %q, want %q", row, col, got, w)
		}
	}
}
