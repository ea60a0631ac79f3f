package document

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

type excelDocument struct {
	file   *excelize.File
	ext    string
	tables []*excelTable
	// shaded maps an existing style id to its copy with the weekend fill.
	shaded map[int]int
}

// excelTable is a worksheet read from one candidate header row down; origin is
// that row's zero-based index in the sheet.
type excelTable struct {
	doc    *excelDocument
	sheet  string
	origin int
	grid   [][]string
	rows   int
	width  int
}

func openExcel(path, ext string) (*excelDocument, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	return newExcelDocument(f, ext)
}

// openLegacyExcel copies the cell text of a BIFF workbook into a new excelize
// workbook. The filled copy is saved as .xlsx.
func openLegacyExcel(path string) (*excelDocument, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls workbook: %w", err)
	}
	if wb.NumSheets() == 0 {
		return nil, fmt.Errorf("open xls workbook: no worksheet found")
	}

	f := excelize.NewFile()
	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}

		name := ws.Name
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return nil, fmt.Errorf("convert sheet %q: %w", name, err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("convert sheet %q: %w", name, err)
		}

		for r := 0; r <= int(ws.MaxRow); r++ {
			row := ws.Row(r)
			if row == nil {
				continue
			}
			for c := row.FirstCol(); c < row.LastCol(); c++ {
				value := row.Col(c)
				if value == "" {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					return nil, err
				}
				if err := f.SetCellStr(name, cell, value); err != nil {
					return nil, fmt.Errorf("convert sheet %q: %w", name, err)
				}
			}
		}
	}

	return newExcelDocument(f, ".xlsx")
}

// headerCandidates bounds how many leading non-empty rows of a sheet are
// offered as a table header. Title and "Month:" lines usually sit above the
// real header.
const headerCandidates = 10

func newExcelDocument(f *excelize.File, ext string) (*excelDocument, error) {
	d := &excelDocument{file: f, ext: ext, shaded: map[int]int{}}

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		normalizeDates(f, sheet, rows, raw)

		// GetRows drops trailing rows without values; the sheet dimension
		// still covers bordered blank rows of a template.
		last := max(dimensionLastRow(f, sheet), len(rows))

		offered := 0
		for origin, row := range rows {
			if offered == headerCandidates {
				break
			}
			if rowIsEmpty(row) {
				continue
			}
			offered++
			d.tables = append(d.tables, newExcelTable(d, sheet, origin, rows[origin:], last-origin))
		}
	}

	return d, nil
}

func newExcelTable(d *excelDocument, sheet string, origin int, rows [][]string, used int) *excelTable {
	t := &excelTable{
		doc:    d,
		sheet:  sheet,
		origin: origin,
		grid:   make([][]string, len(rows)),
		rows:   used,
	}
	for i, row := range rows {
		t.grid[i] = append([]string(nil), row...)
		t.width = max(t.width, len(row))
	}
	return t
}

// normalizeDates replaces the display text of date-formatted cells with ISO
// dates, so a "08-04-25" cell still matches the day it holds.
func normalizeDates(f *excelize.File, sheet string, rows, raw [][]string) {
	dateStyles := map[int]bool{}
	for r := range rows {
		if r >= len(raw) {
			return
		}
		for c := range rows[r] {
			if c >= len(raw[r]) || rows[r][c] == raw[r][c] {
				continue
			}
			serial, err := strconv.ParseFloat(strings.TrimSpace(raw[r][c]), 64)
			if err != nil || serial <= 0 || serial != math.Trunc(serial) {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				continue
			}
			styleID, err := f.GetCellStyle(sheet, cell)
			if err != nil {
				continue
			}
			isDate, seen := dateStyles[styleID]
			if !seen {
				isDate = isDateStyle(f, styleID)
				dateStyles[styleID] = isDate
			}
			if !isDate {
				continue
			}
			if parsed, err := excelize.ExcelDateToTime(serial, false); err == nil {
				rows[r][c] = parsed.Format("2006-01-02")
			}
		}
	}
}

// isDateStyle reports whether a style shows numbers as dates: the built-in
// date formats, or a custom format with a year or day token.
func isDateStyle(f *excelize.File, styleID int) bool {
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		return false
	}
	if style.CustomNumFmt != nil {
		return strings.ContainsAny(formatTokens(*style.CustomNumFmt), "yd")
	}
	switch id := style.NumFmt; {
	case id >= 14 && id <= 17, id == 22, id >= 27 && id <= 36, id >= 50 && id <= 58:
		return true
	}
	return false
}

// formatTokens drops quoted literals and bracketed sections from the first
// section of a number format code.
func formatTokens(code string) string {
	var b strings.Builder
	quoted, bracket := false, false
	for _, r := range strings.ToLower(code) {
		switch {
		case r == '"':
			quoted = !quoted
		case quoted:
		case r == '[':
			bracket = true
		case r == ']':
			bracket = false
		case bracket:
		case r == ';':
			return b.String()
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func rowIsEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func dimensionLastRow(f *excelize.File, sheet string) int {
	dim, err := f.GetSheetDimension(sheet)
	if err != nil || dim == "" {
		return 0
	}
	ref := dim
	if i := strings.LastIndex(dim, ":"); i >= 0 {
		ref = dim[i+1:]
	}
	_, row, err := excelize.CellNameToCoordinates(ref)
	if err != nil {
		return 0
	}
	return row
}

func (d *excelDocument) Tables() []Table {
	tables := make([]Table, 0, len(d.tables))
	for _, t := range d.tables {
		tables = append(tables, t)
	}
	return tables
}

func (d *excelDocument) SetMonth(label string) bool {
	for _, sheet := range d.file.GetSheetList() {
		rows, err := d.file.GetRows(sheet)
		if err != nil {
			continue
		}
		for r, row := range rows {
			for c, text := range row {
				if !strings.Contains(text, "Month:") || strings.Contains(text, label) {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					return false
				}
				if err := d.file.SetCellStr(sheet, cell, "Month: "+label); err != nil {
					return false
				}
				d.refresh(sheet, r, c, "Month: "+label)
				return true
			}
		}
	}
	return false
}

// refresh keeps a table's cached grid in line with a write made through the
// workbook directly.
func (d *excelDocument) refresh(sheet string, sheetRow, col int, text string) {
	for _, t := range d.tables {
		if t.sheet == sheet && sheetRow >= t.origin {
			t.store(sheetRow-t.origin, col, text)
		}
	}
}

func (d *excelDocument) Ext() string { return d.ext }

func (d *excelDocument) Save(path string) error {
	return writeFileAtomic(path, func(w io.Writer) error {
		if err := d.file.Write(w); err != nil {
			return fmt.Errorf("write workbook: %w", err)
		}
		return nil
	})
}

// Rows counts the used rows plus one spare row below them, so a sheet can
// always take one more entry.
func (t *excelTable) Rows() int { return t.rows + 1 }

func (t *excelTable) Cols(row int) int {
	if row < 0 || row > t.rows {
		return 0
	}
	return t.width
}

func (t *excelTable) Text(row, col int) string {
	if row < 0 || row >= len(t.grid) || col < 0 || col >= len(t.grid[row]) {
		return ""
	}
	return t.grid[row][col]
}

func (t *excelTable) SetText(row, col int, text string) error {
	if row < 0 || row > t.rows || col < 0 || col >= t.width {
		return fmt.Errorf("cell (%d, %d) out of range", row, col)
	}
	cell, err := excelize.CoordinatesToCellName(col+1, t.origin+row+1)
	if err != nil {
		return err
	}
	if err := t.doc.file.SetCellStr(t.sheet, cell, text); err != nil {
		return fmt.Errorf("set %s!%s: %w", t.sheet, cell, err)
	}
	t.store(row, col, text)
	return nil
}

func (t *excelTable) store(row, col int, text string) {
	for len(t.grid) <= row {
		t.grid = append(t.grid, nil)
	}
	for len(t.grid[row]) <= col {
		t.grid[row] = append(t.grid[row], "")
	}
	t.grid[row][col] = text
	if row >= t.rows {
		t.rows = row + 1
	}
	if col >= t.width {
		t.width = col + 1
	}
}

// ShadeRow copies each cell's style with a solid fill so borders and number
// formats of the template survive.
func (t *excelTable) ShadeRow(row int, fill string) error {
	if row < 0 || row > t.rows {
		return fmt.Errorf("row %d out of range", row)
	}

	f := t.doc.file
	for col := 0; col < t.width; col++ {
		cell, err := excelize.CoordinatesToCellName(col+1, t.origin+row+1)
		if err != nil {
			return err
		}
		current, err := f.GetCellStyle(t.sheet, cell)
		if err != nil {
			return fmt.Errorf("style of %s!%s: %w", t.sheet, cell, err)
		}

		shaded, ok := t.doc.shaded[current]
		if !ok {
			style, err := f.GetStyle(current)
			if err != nil || style == nil {
				style = &excelize.Style{}
			}
			style.Fill = excelize.Fill{Type: "pattern", Color: []string{"#" + fill}, Pattern: 1}
			shaded, err = f.NewStyle(style)
			if err != nil {
				return fmt.Errorf("create fill style: %w", err)
			}
			t.doc.shaded[current] = shaded
		}

		if err := f.SetCellStyle(t.sheet, cell, cell, shaded); err != nil {
			return fmt.Errorf("shade %s!%s: %w", t.sheet, cell, err)
		}
	}
	return nil
}
