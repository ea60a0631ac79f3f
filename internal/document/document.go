// Package document opens attendance sheets stored as Word or Excel files and
// exposes their tables as mutable cell grids.
package document

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var ErrUnsupportedFormat = errors.New("unsupported document format")

// Table is a grid of text cells. Row 0 is the header row.
type Table interface {
	Rows() int
	Cols(row int) int
	// Text returns the cell text, or "" when the cell does not exist.
	Text(row, col int) string
	SetText(row, col int, text string) error
	// ShadeRow sets the background of every cell in the row to fill (RRGGBB).
	ShadeRow(row int, fill string) error
}

// Document is an opened sheet file. It is owned by one fill operation: opened,
// mutated, saved and dropped.
type Document interface {
	Tables() []Table
	// SetMonth writes "Month: <label>" into the first month line that does not
	// already carry the label. It reports whether anything changed.
	SetMonth(label string) bool
	Save(path string) error
	// Ext is the file extension Save produces, including the dot.
	Ext() string
}

// Supported reports whether path has an extension Open understands.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx", ".xlsx", ".xlsm", ".xls":
		return true
	}
	return false
}

func Open(path string) (Document, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".docx":
		return openWord(path)
	case ".xlsx", ".xlsm":
		return openExcel(path, ext)
	case ".xls":
		return openLegacyExcel(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// writeFileAtomic writes through a temporary file in the destination
// directory so a document can be saved over the file it was read from.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temporary file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
