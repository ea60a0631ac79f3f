// Package attendance locates the attendance table in a sheet and stamps
// check-in and check-out times into it.
package attendance

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"sheetstamp/internal/config"
	"sheetstamp/internal/document"
	"sheetstamp/internal/filestore"
)

var (
	ErrDocumentNotFound  = errors.New("document not found")
	ErrNoAttendanceTable = errors.New("no attendance table found in document")
	ErrNoFillableRow     = errors.New("no fillable row found")
)

// SettingsSource yields the settings in effect for one fill.
type SettingsSource interface {
	Current() (config.Settings, error)
}

// Tracker remembers the last document written, so a check-out can update the
// file its check-in produced.
type Tracker interface {
	LastFilled() (string, error)
	SetLastFilled(path string) error
}

type memoryTracker struct {
	mu   sync.Mutex
	path string
}

func (m *memoryTracker) LastFilled() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.path, nil
}

func (m *memoryTracker) SetLastFilled(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.path = path
	return nil
}

// Filler fills the configured attendance sheet. It holds no lock around the
// document; callers that may fill concurrently must serialize.
type Filler struct {
	settings SettingsSource
	tracker  Tracker
	now      func() time.Time
}

type Option func(*Filler)

func WithTracker(t Tracker) Option {
	return func(f *Filler) { f.tracker = t }
}

func WithClock(now func() time.Time) Option {
	return func(f *Filler) { f.now = now }
}

func New(settings SettingsSource, opts ...Option) *Filler {
	f := &Filler{
		settings: settings,
		tracker:  &memoryTracker{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fill stamps today's row and returns the path of the saved document. A
// check-out on the same day as the last fill updates that document in place;
// everything else writes a new timestamped copy to the output directory.
func (f *Filler) Fill(timeIn, timeOut *time.Time) (path string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fill attendance sheet: %v", r)
		}
		if err != nil {
			log.Printf("error filling attendance sheet: %v", err)
		}
	}()

	settings, err := f.settings.Current()
	if err != nil {
		return "", err
	}

	now := f.now()
	req := Request{Date: startOfDay(now), TimeIn: timeIn, TimeOut: timeOut}

	source, reuse := settings.DocumentPath, false
	if req.CheckOut() {
		if last := f.lastFilledToday(now); last != "" {
			log.Printf("using existing document for check-out: %s", last)
			source, reuse = last, true
		}
	}
	if !fileExists(source) {
		return "", fmt.Errorf("%w: %q", ErrDocumentNotFound, source)
	}

	doc, err := document.Open(source)
	if err != nil {
		return "", err
	}

	if settings.SelectedMonth != "" {
		if doc.SetMonth(settings.SelectedMonth) {
			log.Printf("added month %q to document", settings.SelectedMonth)
		} else {
			log.Printf("no 'Month:' line to update in document")
		}
	}

	table := FindTable(doc.Tables())
	if table == nil {
		return "", ErrNoAttendanceTable
	}

	formats := Formats{Date: settings.DateLayout(), Time: settings.TimeLayout()}
	if err := fillTable(table, req, formats); err != nil {
		return "", err
	}

	output := source
	if !reuse {
		output, err = filestore.OutputPath(settings.OutputDirectory, source, doc.Ext(), now)
		if err != nil {
			return "", err
		}
	}
	if err := doc.Save(output); err != nil {
		return "", fmt.Errorf("save %s: %w", output, err)
	}

	if err := f.tracker.SetLastFilled(output); err != nil {
		log.Printf("could not record last filled document: %v", err)
	}
	log.Printf("attendance sheet filled: %s", output)
	return output, nil
}

func (f *Filler) lastFilledToday(now time.Time) string {
	last, err := f.tracker.LastFilled()
	if err != nil {
		log.Printf("could not read last filled document: %v", err)
		return ""
	}
	if last == "" || !filestore.ModifiedOn(last, now) {
		return ""
	}
	return last
}

func fillTable(t document.Table, req Request, f Formats) error {
	columns := IdentifyColumns(t)
	log.Printf("identified columns: %v", columns)

	row, ok := SelectRow(t, columns, req.Date)
	if !ok {
		return fmt.Errorf("%w for %s", ErrNoFillableRow, req.Date.Format(f.Date))
	}
	if err := FillRow(t, row, columns, req, f); err != nil {
		return err
	}

	if req.CheckIn() && req.Date.Weekday() == time.Friday {
		log.Printf("auto-filling weekend days for Friday check-in")
		if _, err := FillWeekend(t, columns, req.Date, f); err != nil {
			return err
		}
	}
	return nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
