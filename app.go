package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nexidian/gocliselect"

	"sheetstamp/internal/attendance"
	"sheetstamp/internal/config"
	"sheetstamp/internal/document"
	"sheetstamp/internal/filestore"
)

type App struct {
	repo   *Repo
	store  *config.Store
	filler *attendance.Filler
	out    io.Writer

	// fills from the panel, the scheduler and the CLI share one document
	mu sync.Mutex
}

func NewApp(repo *Repo, store *config.Store, opts ...attendance.Option) *App {
	opts = append([]attendance.Option{attendance.WithTracker(repo)}, opts...)
	return &App{
		repo:   repo,
		store:  store,
		filler: attendance.New(store, opts...),
		out:    os.Stdout,
	}
}

// CheckIn stamps now as today's time in and opens a session.
func (a *App) CheckIn(now time.Time) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	timeIn := now
	path, err := a.filler.Fill(&timeIn, nil)
	if err != nil {
		return "", err
	}

	open, err := a.repo.GetOpenEntry()
	if err != nil {
		log.Printf("could not read open session: %v", err)
	}
	if open != nil && sameDay(open.StartTime.In(now.Location()), now) {
		log.Printf("session already open since %s", open.StartTime.In(now.Location()).Format("15:04:05"))
		return path, nil
	}
	if err := a.repo.CreateEntry(now, path); err != nil {
		log.Printf("could not record session: %v", err)
	}
	return path, nil
}

// CheckOut stamps now as today's time out. When today's session is open its
// start rides along so hours can be computed even if the sheet lost the
// time in.
func (a *App) CheckOut(now time.Time) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	open, err := a.repo.GetOpenEntry()
	if err != nil {
		log.Printf("could not read open session: %v", err)
	}
	if open != nil && !sameDay(open.StartTime.In(now.Location()), now) {
		open = nil
	}

	var timeIn *time.Time
	if open != nil {
		start := open.StartTime.In(now.Location())
		timeIn = &start
	}
	timeOut := now
	path, err := a.filler.Fill(timeIn, &timeOut)
	if err != nil {
		return "", err
	}

	if open != nil {
		err = a.repo.CloseEntry(open.ID, now, path)
	} else {
		err = a.repo.CreateClosedEntry(now, now, path)
	}
	if err != nil {
		log.Printf("could not record session: %v", err)
	}
	return path, nil
}

func (a *App) Display(displayType string) error {
	now := time.Now()
	start, end, err := displayRange(displayType, now)
	if err != nil {
		return err
	}

	entries, err := a.repo.GetEntries(start, end)
	if err != nil {
		return fmt.Errorf("error fetching sessions: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No sessions recorded in this period.")
		return nil
	}

	headers := []string{"Day", "In", "Out", "Duration", "Document"}

	var rows [][]string
	var total time.Duration
	var lastDay string
	for _, e := range entries {
		started := e.StartTime.In(now.Location())
		day := started.Format("Jan 02, 2006")

		out := "open"
		if e.EndTime.Valid {
			out = e.EndTime.Time.In(now.Location()).Format("15:04:05")
		}
		duration := e.Duration()
		total += duration

		label := day
		if day == lastDay {
			label = ""
		}
		lastDay = day

		rows = append(rows, []string{
			label,
			started.Format("15:04:05"),
			out,
			FormatDuration(duration),
			filepath.Base(e.Document),
		})
	}

	footers := []string{"", "", "Total:", FormatDuration(total), ""}
	PrintTable(a.out, headers, rows, footers)
	return nil
}

func (a *App) Status() error {
	settings, err := a.store.Current()
	if err != nil {
		return err
	}

	documentPath := settings.DocumentPath
	if documentPath == "" {
		documentPath = "Not selected"
	}
	month := settings.SelectedMonth
	if month == "" {
		month = "-"
	}
	last, err := a.repo.LastFilled()
	if err != nil {
		return err
	}
	if last == "" {
		last = "-"
	}

	session := "none"
	open, err := a.repo.GetOpenEntry()
	if err != nil {
		return err
	}
	if open != nil {
		session = "since " + open.StartTime.Local().Format("Jan 02, 2006 15:04:05")
	}

	fmt.Fprintf(a.out, "Document:     %s\n", documentPath)
	fmt.Fprintf(a.out, "Month:        %s\n", month)
	fmt.Fprintf(a.out, "Output:       %s\n", settings.OutputDirectory)
	fmt.Fprintf(a.out, "Last filled:  %s\n", last)
	fmt.Fprintf(a.out, "Open session: %s\n", session)
	return nil
}

// SetTemplate makes path the document every fill starts from.
func (a *App) SetTemplate(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if !document.Supported(abs) {
		return fmt.Errorf("%w: %s", document.ErrUnsupportedFormat, filepath.Ext(abs))
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("%w: %q", attendance.ErrDocumentNotFound, abs)
	}

	if err := a.store.Load(); err != nil {
		return err
	}
	if err := a.store.Set("document_path", abs); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Selected document: %s\n", abs)
	return nil
}

// SelectTemplate lets the user pick a template from dir in a terminal menu.
func (a *App) SelectTemplate(dir string) error {
	templates, err := filestore.Templates(dir)
	if err != nil {
		return err
	}
	if len(templates) == 0 {
		return fmt.Errorf("no .docx, .xlsx or .xls files in %s", dir)
	}

	menu := gocliselect.NewMenu("Choose attendance template")
	for _, t := range templates {
		menu.AddItem(filepath.Base(t), t)
	}

	choice, err := templateChoice(menu.Display())
	if err != nil {
		return err
	}
	return a.SetTemplate(choice)
}

// templateChoice turns the menu result into a path. Esc yields an empty id.
func templateChoice(picked any, err error) (string, error) {
	if err != nil {
		return "", fmt.Errorf("template menu: %w", err)
	}
	choice, _ := picked.(string)
	if choice == "" {
		return "", errors.New("no template selected")
	}
	return choice, nil
}

func (a *App) SetMonth(label string) error {
	if err := a.store.Load(); err != nil {
		return err
	}
	if err := a.store.Set("selected_month", label); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Month set to: %s\n", label)
	return nil
}

// Recent lists the newest filled documents.
func (a *App) Recent(n int) error {
	settings, err := a.store.Current()
	if err != nil {
		return err
	}

	entries, err := filestore.Recent(settings.OutputDirectory, n)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No filled documents yet.")
		return nil
	}

	var rows [][]string
	for _, e := range entries {
		rows = append(rows, []string{
			e.Name,
			e.Type,
			fmt.Sprintf("%.1f KB", float64(e.Size)/1024),
			e.Modified.Format("2006-01-02 15:04:05"),
		})
	}
	PrintTable(a.out, []string{"Name", "Type", "Size", "Modified"}, rows, nil)
	return nil
}

// Archive packs filled documents older than days into the archive folder.
func (a *App) Archive(days int) error {
	if days < 0 {
		return fmt.Errorf("days must not be negative, got %d", days)
	}
	settings, err := a.store.Current()
	if err != nil {
		return err
	}

	now := time.Now()
	cutoff := startOfDay(now).AddDate(0, 0, -days)
	archive, archived, err := filestore.Archive(settings.OutputDirectory, cutoff, now)
	if err != nil {
		return err
	}
	if len(archived) == 0 {
		fmt.Fprintln(a.out, "Nothing to archive.")
		return nil
	}

	log.Printf("archived %d documents into %s", len(archived), archive)
	fmt.Fprintf(a.out, "Archived %d documents into %s\n", len(archived), archive)
	return nil
}
