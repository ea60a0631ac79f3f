package document

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/beevik/etree"
)

const wordMainPart = "word/document.xml"

type zipPart struct {
	name     string
	method   uint16
	modified time.Time
	data     []byte
}

type wordDocument struct {
	parts []zipPart
	xml   *etree.Document
	body  *etree.Element
}

func openWord(path string) (*wordDocument, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer r.Close()

	d := &wordDocument{}
	for _, f := range r.File {
		data, err := readZipFile(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		d.parts = append(d.parts, zipPart{
			name:     f.Name,
			method:   f.Method,
			modified: f.Modified,
			data:     data,
		})

		if f.Name == wordMainPart {
			d.xml = etree.NewDocument()
			if err := d.xml.ReadFromBytes(data); err != nil {
				return nil, fmt.Errorf("parse %s: %w", wordMainPart, err)
			}
		}
	}

	if d.xml == nil || d.xml.Root() == nil {
		return nil, fmt.Errorf("open docx: missing %s", wordMainPart)
	}
	d.body = d.xml.Root().SelectElement("w:body")
	if d.body == nil {
		return nil, fmt.Errorf("open docx: %s has no body", wordMainPart)
	}

	return d, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (d *wordDocument) Tables() []Table {
	var tables []Table
	for _, tbl := range d.body.SelectElements("w:tbl") {
		tables = append(tables, newWordTable(tbl))
	}
	return tables
}

func (d *wordDocument) SetMonth(label string) bool {
	for _, p := range d.body.SelectElements("w:p") {
		text := paragraphText(p)
		if strings.Contains(text, "Month:") && !strings.Contains(text, label) {
			setParagraphText(p, "Month: "+label)
			return true
		}
	}
	return false
}

func (d *wordDocument) Ext() string { return ".docx" }

func (d *wordDocument) Save(path string) error {
	mainXML, err := d.xml.WriteToBytes()
	if err != nil {
		return fmt.Errorf("encode %s: %w", wordMainPart, err)
	}

	return writeFileAtomic(path, func(w io.Writer) error {
		zw := zip.NewWriter(w)
		for _, part := range d.parts {
			data := part.data
			if part.name == wordMainPart {
				data = mainXML
			}

			fw, err := zw.CreateHeader(&zip.FileHeader{
				Name:     part.name,
				Method:   part.method,
				Modified: part.modified,
			})
			if err != nil {
				return fmt.Errorf("write %s: %w", part.name, err)
			}
			if _, err := fw.Write(data); err != nil {
				return fmt.Errorf("write %s: %w", part.name, err)
			}
		}
		return zw.Close()
	})
}

// wordTable indexes the w:tc elements of a w:tbl by row.
type wordTable struct {
	rows [][]*etree.Element
}

func newWordTable(tbl *etree.Element) *wordTable {
	t := &wordTable{}
	for _, tr := range tbl.SelectElements("w:tr") {
		t.rows = append(t.rows, tr.SelectElements("w:tc"))
	}
	return t
}

func (t *wordTable) Rows() int { return len(t.rows) }

func (t *wordTable) Cols(row int) int {
	if row < 0 || row >= len(t.rows) {
		return 0
	}
	return len(t.rows[row])
}

func (t *wordTable) cell(row, col int) *etree.Element {
	if row < 0 || row >= len(t.rows) || col < 0 || col >= len(t.rows[row]) {
		return nil
	}
	return t.rows[row][col]
}

func (t *wordTable) Text(row, col int) string {
	tc := t.cell(row, col)
	if tc == nil {
		return ""
	}
	var lines []string
	for _, p := range tc.SelectElements("w:p") {
		lines = append(lines, paragraphText(p))
	}
	return strings.Join(lines, "\n")
}

func (t *wordTable) SetText(row, col int, text string) error {
	tc := t.cell(row, col)
	if tc == nil {
		return fmt.Errorf("cell (%d, %d) out of range", row, col)
	}

	paragraphs := tc.SelectElements("w:p")
	if len(paragraphs) == 0 {
		setParagraphText(tc.CreateElement("w:p"), text)
		return nil
	}
	for _, extra := range paragraphs[1:] {
		tc.RemoveChild(extra)
	}
	setParagraphText(paragraphs[0], text)
	return nil
}

func (t *wordTable) ShadeRow(row int, fill string) error {
	if row < 0 || row >= len(t.rows) {
		return fmt.Errorf("row %d out of range", row)
	}

	for _, tc := range t.rows[row] {
		tcPr := tc.SelectElement("w:tcPr")
		if tcPr == nil {
			tcPr = etree.NewElement("w:tcPr")
			tc.InsertChildAt(0, tcPr)
		}
		shd := etree.NewElement("w:shd")
		shd.CreateAttr("w:val", "clear")
		shd.CreateAttr("w:color", "auto")
		shd.CreateAttr("w:fill", fill)

		if old := tcPr.SelectElement("w:shd"); old != nil {
			i := old.Index()
			tcPr.RemoveChildAt(i)
			tcPr.InsertChildAt(i, shd)
			continue
		}
		tcPr.InsertChildAt(shdIndex(tcPr), shd)
	}
	return nil
}

// tcPrAfterShd holds the w:tcPr children that follow w:shd in schema order.
var tcPrAfterShd = map[string]bool{
	"noWrap":        true,
	"tcMar":         true,
	"textDirection": true,
	"tcFitText":     true,
	"vAlign":        true,
	"hideMark":      true,
	"headers":       true,
	"cellIns":       true,
	"cellDel":       true,
	"cellMerge":     true,
	"tcPrChange":    true,
}

func shdIndex(tcPr *etree.Element) int {
	for _, child := range tcPr.ChildElements() {
		if tcPrAfterShd[child.Tag] {
			return child.Index()
		}
	}
	return len(tcPr.Child)
}

func paragraphText(p *etree.Element) string {
	var b strings.Builder
	for _, t := range p.FindElements(".//w:t") {
		b.WriteString(t.Text())
	}
	return b.String()
}

// setParagraphText replaces the paragraph's content with a single run. The
// paragraph properties and the first run's formatting are kept.
func setParagraphText(p *etree.Element, text string) {
	var rPr *etree.Element
	if r := p.SelectElement("w:r"); r != nil {
		if props := r.SelectElement("w:rPr"); props != nil {
			rPr = props.Copy()
		}
	}

	for _, child := range p.ChildElements() {
		if child.Tag != "pPr" {
			p.RemoveChild(child)
		}
	}
	if text == "" {
		return
	}

	r := p.CreateElement("w:r")
	if rPr != nil {
		r.AddChild(rPr)
	}
	t := r.CreateElement("w:t")
	if strings.TrimSpace(text) != text {
		t.CreateAttr("xml:space", "preserve")
	}
	t.SetText(text)
}
