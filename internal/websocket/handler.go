package websocket

import (
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const defaultSendBuffer = 32

type HandlerOptions struct {
	// AllowedOrigins restricts the Origin header on upgrade. Empty allows any.
	AllowedOrigins []string
	// SendBuffer is the per-connection queue of frames awaiting write.
	SendBuffer int
}

type Handler struct {
	hub        *Hub
	upgrader   websocket.Upgrader
	sendBuffer int
}

func NewHandler(h *Hub, opts HandlerOptions) *Handler {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	return &Handler{
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(opts.AllowedOrigins),
		},
		sendBuffer: opts.SendBuffer,
	}
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Connect upgrades the request and starts the connection's goroutines. The
// connection is known to the hub but belongs to no room until it sends join.
// On failure the upgrader has already written the HTTP response.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade: %w", err)
	}

	cl := newClient(conn, uuid.NewString(), h.sendBuffer)

	select {
	case h.hub.Register <- cl:
	case <-h.hub.Done():
		conn.Close()
		return fmt.Errorf("websocket connect: relay is shutting down")
	}

	go cl.keepAlive()
	go cl.writeMessage()
	go cl.readMessage(h.hub)
	log.Printf("Client %s connected from %s", cl.ID, r.RemoteAddr)
	return nil
}

func (h *Handler) Stats() Stats {
	return h.hub.Stats()
}
