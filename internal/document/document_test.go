package document

import (
	"archive/zip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

const testBody = `<w:p><w:r><w:t>Attendance Sheet</w:t></w:r></w:p>
<w:p><w:pPr><w:jc w:val="left"/></w:pPr><w:r><w:rPr><w:b/></w:rPr><w:t xml:space="preserve">Month: </w:t></w:r><w:r><w:t>________</w:t></w:r></w:p>
<w:tbl>
<w:tr><w:tc><w:p><w:r><w:t>Date</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Time In</w:t></w:r></w:p></w:tc></w:tr>
<w:tr><w:tc><w:p><w:r><w:rPr><w:sz w:val="20"/></w:rPr><w:t>-</w:t></w:r></w:p></w:tc><w:tc><w:p/><w:p><w:r><w:t>second</w:t></w:r></w:p></w:tc></w:tr>
<w:tr><w:tc><w:tcPr><w:shd w:val="clear" w:color="auto" w:fill="FFFFFF"/></w:tcPr><w:p/></w:tc><w:tc><w:tcPr><w:tcW w:w="2000" w:type="dxa"/><w:vAlign w:val="center"/></w:tcPr><w:p/></w:tc></w:tr>
</w:tbl>`

func writeDocx(t *testing.T, dir, body string) string {
	t.Helper()

	path := filepath.Join(dir, "template.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create docx: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	parts := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`,
		"word/styles.xml":     `<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"/>`,
		wordMainPart: `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			body + `</w:body></w:document>`,
	}
	for name, content := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create part %s: %v", name, err)
		}
		if _, err := io.WriteString(w, content); err != nil {
			t.Fatalf("write part %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close docx: %v", err)
	}
	return path
}

func readPart(t *testing.T, path, name string) string {
	t.Helper()

	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer r.Close()
	for _, f := range r.File {
		if f.Name == name {
			data, err := readZipFile(f)
			if err != nil {
				t.Fatalf("read %s: %v", name, err)
			}
			return string(data)
		}
	}
	t.Fatalf("part %s not found in %s", name, path)
	return ""
}

func TestOpenUnsupported(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "sheet.pdf"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if Supported("sheet.pdf") {
		t.Errorf("pdf should not be supported")
	}
	for _, name := range []string{"a.docx", "a.XLSX", "a.xlsm", "a.xls"} {
		if !Supported(name) {
			t.Errorf("%s should be supported", name)
		}
	}
}

func TestWordTables(t *testing.T) {
	doc, err := Open(writeDocx(t, t.TempDir(), testBody))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	tables := doc.Tables()
	if len(tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(tables))
	}
	tbl := tables[0]
	if tbl.Rows() != 3 || tbl.Cols(0) != 2 {
		t.Fatalf("expected 3x2 table, got %dx%d", tbl.Rows(), tbl.Cols(0))
	}
	if got := tbl.Text(0, 1); got != "Time In" {
		t.Errorf("header text = %q", got)
	}
	if got := tbl.Text(1, 1); got != "\nsecond" {
		t.Errorf("multi-paragraph text = %q", got)
	}
	if got := tbl.Text(5, 5); got != "" {
		t.Errorf("out of range text = %q", got)
	}
	if err := tbl.SetText(9, 0, "x"); err == nil {
		t.Errorf("expected error writing out of range")
	}
}

func TestWordSetTextAndSave(t *testing.T) {
	dir := t.TempDir()
	src := writeDocx(t, dir, testBody)
	doc, err := Open(src)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	tbl := doc.Tables()[0]

	if err := tbl.SetText(1, 0, "2025-08-04"); err != nil {
		t.Fatalf("set text: %v", err)
	}
	if err := tbl.SetText(1, 1, " 09:00 "); err != nil {
		t.Fatalf("set text: %v", err)
	}
	if err := tbl.ShadeRow(2, "DCDCDC"); err != nil {
		t.Fatalf("shade: %v", err)
	}

	out := filepath.Join(dir, "out.docx")
	if err := doc.Save(out); err != nil {
		t.Fatalf("save: %v", err)
	}

	reopened, err := Open(out)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	rt := reopened.Tables()[0]
	if got := rt.Text(1, 0); got != "2025-08-04" {
		t.Errorf("date cell = %q", got)
	}
	if got := rt.Text(1, 1); got != " 09:00 " {
		t.Errorf("second cell = %q, want the extra paragraph dropped", got)
	}

	xml := readPart(t, out, wordMainPart)
	if !strings.Contains(xml, `<w:sz w:val="20"/>`) {
		t.Errorf("run formatting was not kept")
	}
	if !strings.Contains(xml, `xml:space="preserve"> 09:00 </w:t>`) {
		t.Errorf("leading space not preserved")
	}
	if strings.Contains(xml, `w:fill="FFFFFF"`) {
		t.Errorf("old shading should be replaced")
	}
	if n := strings.Count(xml, `w:fill="DCDCDC"`); n != 2 {
		t.Errorf("expected 2 shaded cells, got %d", n)
	}
	// w:shd sits between w:tcW and w:vAlign in w:tcPr
	shd := strings.LastIndex(xml, `w:fill="DCDCDC"`)
	if !(strings.Index(xml, "<w:tcW") < shd && shd < strings.Index(xml, "<w:vAlign")) {
		t.Errorf("shading out of schema order in %s", xml)
	}
	if got := readPart(t, out, "word/styles.xml"); !strings.Contains(got, "w:styles") {
		t.Errorf("other parts should be copied through")
	}
}

func TestWordSetMonth(t *testing.T) {
	dir := t.TempDir()
	path := writeDocx(t, dir, testBody)
	doc, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if !doc.SetMonth("August 2025") {
		t.Fatalf("expected month line to be updated")
	}
	if doc.SetMonth("August 2025") {
		t.Errorf("second update with the same label should be a no-op")
	}

	// saving over the source goes through a temporary file
	if err := doc.Save(path); err != nil {
		t.Fatalf("save in place: %v", err)
	}
	xml := readPart(t, path, wordMainPart)
	if !strings.Contains(xml, "Month: August 2025") {
		t.Errorf("month label missing from saved document")
	}
	if !strings.Contains(xml, `<w:jc w:val="left"/>`) {
		t.Errorf("paragraph properties should be kept")
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, ".*.tmp"))
	if len(leftovers) != 0 {
		t.Errorf("temporary files left behind: %v", leftovers)
	}
}

func TestWordMissingMainPart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	if _, err := zw.Create("[Content_Types].xml"); err != nil {
		t.Fatal(err)
	}
	zw.Close()
	f.Close()

	if _, err := Open(path); err == nil {
		t.Fatalf("expected error for docx without %s", wordMainPart)
	}
}

func writeXlsx(t *testing.T, dir string) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	cells := map[string]string{
		"A1": "Month:",
		"A3": "Date", "B3": "Day", "C3": "Time In", "D3": "Time Out", "E3": "Hours",
		"A4": "2025-08-01", "B4": "Friday", "C4": "09:00", "D4": "17:00", "E4": "8.00",
	}
	for cell, value := range cells {
		if err := f.SetCellStr(sheet, cell, value); err != nil {
			t.Fatalf("set %s: %v", cell, err)
		}
	}

	path := filepath.Join(dir, "template.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save xlsx: %v", err)
	}
	return path
}

func TestExcelHeaderCandidates(t *testing.T) {
	doc, err := Open(writeXlsx(t, t.TempDir()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if doc.Ext() != ".xlsx" {
		t.Errorf("ext = %q", doc.Ext())
	}

	tables := doc.Tables()
	if len(tables) != 3 {
		t.Fatalf("expected one candidate per non-empty row, got %d", len(tables))
	}
	if got := tables[0].Text(0, 0); got != "Month:" {
		t.Errorf("first candidate header = %q", got)
	}

	tbl := tables[1]
	if got := tbl.Text(0, 2); got != "Time In" {
		t.Errorf("header = %q", got)
	}
	if got := tbl.Text(1, 3); got != "17:00" {
		t.Errorf("data cell = %q", got)
	}
	// header, one data row and the spare row
	if tbl.Rows() != 3 {
		t.Errorf("rows = %d", tbl.Rows())
	}
	if tbl.Cols(2) != 5 {
		t.Errorf("spare row cols = %d", tbl.Cols(2))
	}
}

func TestExcelDateCells(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, h := range []string{"Date", "Day", "Time In", "Time Out", "Hours"} {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellStr(sheet, cell, h)
	}
	// 45872 is 2025-08-03
	for i, cell := range []string{"A2", "A3", "A4"} {
		f.SetCellValue(sheet, cell, 45872+i)
	}
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellStyle(sheet, "A2", "A4", dateStyle); err != nil {
		t.Fatal(err)
	}
	daysFmt := `0 "days"`
	daysStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &daysFmt})
	if err != nil {
		t.Fatal(err)
	}
	f.SetCellValue(sheet, "E2", 45000)
	f.SetCellStyle(sheet, "E2", "E2", daysStyle)
	f.SetCellValue(sheet, "E3", 45000)

	path := filepath.Join(t.TempDir(), "dated.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}

	doc, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	tbl := doc.Tables()[0]
	for row, want := range []string{"2025-08-03", "2025-08-04", "2025-08-05"} {
		if got := tbl.Text(row+1, 0); got != want {
			t.Errorf("date row %d = %q, want %q", row+1, got, want)
		}
	}
	if got := tbl.Text(1, 4); got == "2023-03-15" {
		t.Errorf("a non-date custom format was read as a date")
	}
	if got := tbl.Text(2, 4); got != "45000" {
		t.Errorf("plain number = %q", got)
	}
}

func TestExcelWriteAndShade(t *testing.T) {
	dir := t.TempDir()
	doc, err := Open(writeXlsx(t, dir))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	tbl := doc.Tables()[1]

	if err := tbl.SetText(2, 0, "2025-08-02"); err != nil {
		t.Fatalf("set text in spare row: %v", err)
	}
	if tbl.Rows() != 4 {
		t.Errorf("writing the spare row should add another, rows = %d", tbl.Rows())
	}
	if err := tbl.ShadeRow(2, "DCDCDC"); err != nil {
		t.Fatalf("shade: %v", err)
	}
	if !doc.SetMonth("August 2025") {
		t.Errorf("expected month cell to be updated")
	}

	out := filepath.Join(dir, "out.xlsx")
	if err := doc.Save(out); err != nil {
		t.Fatalf("save: %v", err)
	}

	f, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f.Close()
	sheet := f.GetSheetName(0)

	if got, _ := f.GetCellValue(sheet, "A5"); got != "2025-08-02" {
		t.Errorf("A5 = %q", got)
	}
	if got, _ := f.GetCellValue(sheet, "A1"); got != "Month: August 2025" {
		t.Errorf("A1 = %q", got)
	}
	style, err := f.GetCellStyle(sheet, "E5")
	if err != nil {
		t.Fatalf("style: %v", err)
	}
	if style == 0 {
		t.Errorf("E5 should carry the shaded style")
	}
}
