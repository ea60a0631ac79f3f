package main

import (
	"errors"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sheetstamp/internal/config"
	"sheetstamp/internal/panel"
)

type stubStamper struct{ err error }

func (s stubStamper) CheckIn(now time.Time) (string, error) {
	return "/out/sheet_filled_in.docx", s.err
}

func (s stubStamper) CheckOut(now time.Time) (string, error) {
	return "/out/sheet_filled_out.docx", s.err
}

func startPanel(t *testing.T, stamper panel.Stamper) string {
	t.Helper()

	dir := t.TempDir()
	store := config.NewStore(filepath.Join(dir, "settings.json"), dir)
	srv := panel.New(stamper, store)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go srv.App().Listener(ln)
	t.Cleanup(func() { srv.App().Shutdown() })
	return "http://" + ln.Addr().String() + "/"
}

func TestAPIClient(t *testing.T) {
	client := NewAPIClient(startPanel(t, stubStamper{}))

	res, err := client.CheckIn()
	if err != nil {
		t.Fatalf("check in: %v", err)
	}
	if !res.Success || res.Document != "sheet_filled_in.docx" {
		t.Errorf("check in = %+v", res)
	}

	res, err = client.CheckOut()
	if err != nil {
		t.Fatalf("check out: %v", err)
	}
	if !strings.HasPrefix(res.Message, "Check-out recorded at") {
		t.Errorf("message = %q", res.Message)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.ServerStatus != "running" || status.DocumentPath != "Not selected" {
		t.Errorf("status = %+v", status)
	}
}

func TestAPIClientError(t *testing.T) {
	client := NewAPIClient(startPanel(t, stubStamper{err: errors.New("document not found")}))

	_, err := client.CheckIn()
	if err == nil || !strings.Contains(err.Error(), "document not found") {
		t.Fatalf("err = %v", err)
	}
}

func TestAPIClientWatch(t *testing.T) {
	base := startPanel(t, stubStamper{})
	client := NewAPIClient(base)

	stop := errors.New("stop")
	events := make(chan PanelEvent, 4)
	done := make(chan error, 1)
	go func() {
		done <- client.Watch(func(ev PanelEvent) error {
			events <- ev
			if ev.Event == "attendance_update" {
				return stop
			}
			return nil
		})
	}()

	select {
	case ev := <-events:
		if ev.Event != "status" {
			t.Fatalf("first event = %q", ev.Event)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no status event")
	}

	if _, err := client.CheckIn(); err != nil {
		t.Fatalf("check in: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, stop) {
			t.Fatalf("watch returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no attendance update")
	}
	ev := <-events
	if ev.Data["type"] != "checkin" {
		t.Errorf("update = %+v", ev)
	}
}
