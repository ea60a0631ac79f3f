// Package panel serves the mobile control panel: a small PWA with check-in
// and check-out buttons, recent documents and live updates over a websocket.
package panel

import (
	"context"
	"embed"
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"

	"sheetstamp/internal/config"
	"sheetstamp/internal/filestore"
)

//go:embed web/index.html
var assets embed.FS

// Stamper records attendance. Both methods return the filled document path.
type Stamper interface {
	CheckIn(now time.Time) (string, error)
	CheckOut(now time.Time) (string, error)
}

type Server struct {
	app     *fiber.App
	stamper Stamper
	store   *config.Store
	hub     *hub
	now     func() time.Time
}

func New(stamper Stamper, store *config.Store) *Server {
	s := &Server{
		stamper: stamper,
		store:   store,
		hub:     newHub(),
		now:     time.Now,
	}

	app := fiber.New(fiber.Config{
		AppName:               "sheetstamp",
		DisableStartupMessage: true,
	})
	app.Use(logger.New(logger.Config{
		Format: "${status} ${method} ${path} ${latency}\n",
		Output: log.Writer(),
	}))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))
	app.Use(securityHeaders)

	s.routes(app)
	s.app = app
	return s
}

func (s *Server) routes(app *fiber.App) {
	app.Get("/", s.handleIndex)
	app.Get("/manifest.json", s.handleManifest)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/checkin", s.handleCheckIn)
	api.Post("/checkout", s.handleCheckOut)
	api.Get("/recent-documents", s.handleRecentDocuments)
	api.Get("/download/:filename", s.handleDownload)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(s.handleSocket))
}

// App exposes the fiber application, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Serve listens on addr until ctx is done.
func (s *Server) Serve(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.app.Listen(addr) }()

	_, port, _ := net.SplitHostPort(addr)
	log.Printf("web panel listening on http://localhost:%s", port)
	log.Printf("mobile access: http://%s:%s", LocalIP(), port)

	select {
	case <-ctx.Done():
		log.Printf("web panel stopping")
		return s.app.Shutdown()
	case err := <-errCh:
		return err
	}
}

func securityHeaders(c *fiber.Ctx) error {
	c.Set("X-Content-Type-Options", "nosniff")
	c.Set("Referrer-Policy", "no-referrer")
	c.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
	return c.Next()
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	page, err := assets.ReadFile("web/index.html")
	if err != nil {
		return err
	}
	c.Type("html")
	return c.Send(page)
}

func (s *Server) handleManifest(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"name":             "Attendance Tracker",
		"short_name":       "Attendance",
		"description":      "Mobile control for attendance tracking",
		"start_url":        "/",
		"display":          "standalone",
		"background_color": "#ffffff",
		"theme_color":      "#007bff",
		"orientation":      "portrait",
	})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	settings, err := s.store.Current()
	if err != nil {
		log.Printf("error getting status: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	now := s.now()
	document := "Not selected"
	if settings.DocumentPath != "" {
		document = filepath.Base(settings.DocumentPath)
	}
	month := settings.SelectedMonth
	if month == "" {
		month = now.Format("January 2006")
	}

	return c.JSON(fiber.Map{
		"timestamp":     now.Format(time.RFC3339),
		"document_path": document,
		"month":         month,
		"server_status": "running",
	})
}

func (s *Server) handleCheckIn(c *fiber.Ctx) error {
	return s.stamp(c, "checkin", "Check-in", s.stamper.CheckIn)
}

func (s *Server) handleCheckOut(c *fiber.Ctx) error {
	return s.stamp(c, "checkout", "Check-out", s.stamper.CheckOut)
}

func (s *Server) stamp(c *fiber.Ctx, kind, label string, fill func(time.Time) (string, error)) error {
	now := s.now()
	path, err := fill(now)
	if err != nil {
		log.Printf("error during mobile %s: %v", kind, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("Failed to record %s: %v", strings.ToLower(label), err),
		})
	}

	clock := now.Format("15:04:05")
	message := fmt.Sprintf("%s recorded at %s", label, clock)
	log.Printf("mobile %s: %s", kind, message)

	s.hub.broadcast(event{
		Event: "attendance_update",
		Data: fiber.Map{
			"type":    kind,
			"time":    clock,
			"message": message,
		},
	})

	return c.JSON(fiber.Map{
		"success":  true,
		"message":  message,
		"time":     clock,
		"document": filepath.Base(path),
	})
}

type documentInfo struct {
	Name     string `json:"name"`
	Modified string `json:"modified"`
	Type     string `json:"type"`
	Size     string `json:"size"`
}

func (s *Server) handleRecentDocuments(c *fiber.Ctx) error {
	settings, err := s.store.Current()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	entries, err := filestore.Recent(settings.OutputDirectory, 5)
	if err != nil {
		log.Printf("error getting recent documents: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	documents := make([]documentInfo, 0, len(entries))
	for _, e := range entries {
		documents = append(documents, documentInfo{
			Name:     e.Name,
			Modified: e.Modified.Format("2006-01-02 15:04:05"),
			Type:     e.Type,
			Size:     fmt.Sprintf("%.1f KB", float64(e.Size)/1024),
		})
	}
	return c.JSON(fiber.Map{"documents": documents})
}

func (s *Server) handleDownload(c *fiber.Ctx) error {
	name, err := url.PathUnescape(c.Params("filename"))
	if err != nil || name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return fiber.ErrNotFound
	}

	settings, err := s.store.Current()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	path := filepath.Join(settings.OutputDirectory, name)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return fiber.ErrNotFound
	}
	return c.Download(path, name)
}

// LocalIP returns the address other devices on the LAN can reach, falling
// back to loopback.
func LocalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return "127.0.0.1"
}
