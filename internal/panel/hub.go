package panel

import (
	"log"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// event is the envelope for every websocket message in both directions.
type event struct {
	Event string    `json:"event"`
	Data  fiber.Map `json:"data,omitempty"`
}

// hub tracks connected panel clients. Writes to a connection go through the
// hub lock so a broadcast never interleaves with a reply.
type hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func newHub() *hub {
	return &hub{conns: make(map[*websocket.Conn]struct{})}
}

func (h *hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *hub) send(conn *websocket.Conn, msg event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return conn.WriteJSON(msg)
}

// broadcast writes msg to every client, dropping the ones that fail.
func (h *hub) broadcast(msg event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("dropping websocket client: %v", err)
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

func (s *Server) handleSocket(conn *websocket.Conn) {
	s.hub.add(conn)
	defer func() {
		s.hub.remove(conn)
		conn.Close()
		log.Printf("mobile client disconnected")
	}()
	log.Printf("mobile client connected")

	if err := s.hub.send(conn, event{
		Event: "status",
		Data:  fiber.Map{"message": "Connected to attendance tracker"},
	}); err != nil {
		return
	}

	for {
		var msg event
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Event != "ping" {
			continue
		}
		reply := event{
			Event: "pong",
			Data:  fiber.Map{"timestamp": s.now().Format(time.RFC3339)},
		}
		if err := s.hub.send(conn, reply); err != nil {
			return
		}
	}
}
