// Package filestore manages the directory that receives filled documents.
package filestore

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
)

const timestampLayout = "20060102_150405"

var documentExts = map[string]string{
	".docx": "Word",
	".xlsx": "Excel",
	".xlsm": "Excel",
	".xls":  "Excel",
}

// Entry describes one file in the output directory.
type Entry struct {
	Name     string
	Path     string
	Modified time.Time
	Type     string
	Size     int64
}

// OutputPath names the filled copy of source: {stem}_filled_{timestamp}{ext}
// inside dir. The directory is created if needed.
func OutputPath(dir, source, ext string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if ext == "" {
		ext = filepath.Ext(base)
	}
	name := fmt.Sprintf("%s_filled_%s%s", stem, now.Format(timestampLayout), ext)
	return filepath.Join(dir, name), nil
}

// ModifiedOn reports whether path exists and was last written on the same
// calendar day as now.
func ModifiedOn(path string, now time.Time) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	y1, m1, d1 := info.ModTime().In(now.Location()).Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Recent lists up to n documents in dir, newest first. A missing directory
// yields an empty list.
func Recent(dir string, n int) ([]Entry, error) {
	entries, err := documents(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Modified.After(entries[j].Modified)
	})
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

// Templates lists candidate sheet templates in dir, sorted by name.
func Templates(dir string) ([]string, error) {
	entries, err := documents(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	sort.Strings(paths)
	return paths, nil
}

func documents(dir string) ([]Entry, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	for _, item := range items {
		if item.IsDir() || strings.HasPrefix(item.Name(), ".") {
			continue
		}
		kind, ok := documentExts[strings.ToLower(filepath.Ext(item.Name()))]
		if !ok {
			continue
		}
		info, err := item.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Name:     item.Name(),
			Path:     filepath.Join(dir, item.Name()),
			Modified: info.ModTime(),
			Type:     kind,
			Size:     info.Size(),
		})
	}
	return entries, nil
}

// Archive moves documents in dir last modified before cutoff into a single
// tar.xz under dir/archive and removes the originals. It returns the archive
// path, or "" when nothing was old enough.
func Archive(dir string, cutoff, now time.Time) (string, []Entry, error) {
	entries, err := documents(dir)
	if err != nil {
		return "", nil, err
	}

	var old []Entry
	for _, e := range entries {
		if e.Modified.Before(cutoff) {
			old = append(old, e)
		}
	}
	if len(old) == 0 {
		return "", nil, nil
	}

	archiveDir := filepath.Join(dir, "archive")
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create archive directory: %w", err)
	}
	path := filepath.Join(archiveDir, fmt.Sprintf("filled_%s.tar.xz", now.Format(timestampLayout)))

	if err := writeArchive(path, old); err != nil {
		_ = os.Remove(path)
		return "", nil, err
	}
	for _, e := range old {
		if err := os.Remove(e.Path); err != nil {
			return path, old, fmt.Errorf("remove %s: %w", e.Name, err)
		}
	}
	return path, old, nil
}

func writeArchive(path string, entries []Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer f.Close()

	xw, err := xz.NewWriter(f)
	if err != nil {
		return fmt.Errorf("start xz stream: %w", err)
	}
	tw := tar.NewWriter(xw)

	for _, e := range entries {
		if err := addFile(tw, e); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("finish tar stream: %w", err)
	}
	if err := xw.Close(); err != nil {
		return fmt.Errorf("finish xz stream: %w", err)
	}
	return f.Close()
}

func addFile(tw *tar.Writer, e Entry) error {
	src, err := os.Open(e.Path)
	if err != nil {
		return err
	}
	defer src.Close()

	hdr := &tar.Header{
		Name:    e.Name,
		Mode:    0o644,
		Size:    e.Size,
		ModTime: e.Modified,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("archive %s: %w", e.Name, err)
	}
	if _, err := io.Copy(tw, src); err != nil {
		return fmt.Errorf("archive %s: %w", e.Name, err)
	}
	return nil
}
