package websocket

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mask-relay/internal/protocol"
)

const (
	pingPeriod   = 30 * time.Second
	pongWait     = 2 * pingPeriod
	writeWait    = 10 * time.Second
	maxFrameSize = 512 * 1024
)

// WSClient is one relay connection. RoomID and Name are written only by the
// hub's Run loop through the Registry.
type WSClient struct {
	Conn    *websocket.Conn
	Message chan []byte
	ID      string
	RoomID  string
	Name    string

	done     chan struct{} // Signal for coordinating goroutine shutdown
	mu       sync.Mutex    // Mutex for connection access
	isClosed bool          // Flag to track connection state
}

func newClient(conn *websocket.Conn, id string, buffer int) *WSClient {
	return &WSClient{
		Conn:    conn,
		Message: make(chan []byte, buffer),
		ID:      id,
		done:    make(chan struct{}),
	}
}

func (cl *WSClient) keepAlive() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-cl.done:
			return
		case <-ticker.C:
			cl.mu.Lock()
			if cl.isClosed {
				cl.mu.Unlock()
				return
			}
			err := cl.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			cl.mu.Unlock()

			if err != nil {
				log.Printf("Ping error for client %s: %v", cl.ID, err)
				return
			}
		}
	}
}

func (cl *WSClient) writeMessage() {
	defer func() {
		cl.mu.Lock()
		cl.isClosed = true
		cl.Conn.Close()
		cl.mu.Unlock()
	}()

	for {
		select {
		case <-cl.done:
			return
		case frame, ok := <-cl.Message:
			if !ok {
				cl.mu.Lock()
				cl.Conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				cl.mu.Unlock()
				return
			}

			cl.mu.Lock()
			if cl.isClosed {
				cl.mu.Unlock()
				return
			}
			cl.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := cl.Conn.WriteMessage(websocket.TextMessage, frame)
			cl.mu.Unlock()

			if err != nil {
				log.Printf("Error sending message to client %s: %v", cl.ID, err)
				return
			}
		}
	}
}

// readMessage decodes frames in arrival order and hands them to the hub. A
// malformed frame is dropped without closing the connection; any read error
// ends the session, and the deferred unregister is the connection's one and
// only implicit leave.
func (cl *WSClient) readMessage(hub *Hub) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in readMessage: %v", r)
		}

		close(cl.done)

		select {
		case hub.Unregister <- cl:
		case <-hub.Done():
		}
		log.Printf("Client %s disconnected", cl.ID)
	}()

	cl.Conn.SetReadLimit(maxFrameSize)
	cl.Conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.Conn.SetPongHandler(func(string) error {
		return cl.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, message, err := cl.Conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) &&
				(closeErr.Code == websocket.CloseNormalClosure ||
					closeErr.Code == websocket.CloseGoingAway ||
					closeErr.Code == websocket.CloseNoStatusReceived) {
				break
			}
			log.Printf("Error reading message from client %s: %v", cl.ID, err)
			break
		}
		cl.Conn.SetReadDeadline(time.Now().Add(pongWait))

		if msgType != websocket.TextMessage {
			incViolations()
			log.Printf("ignoring non-text frame from client %s", cl.ID)
			continue
		}

		ev, err := protocol.DecodeClient(message)
		if err != nil {
			incViolations()
			log.Printf("ignoring frame from client %s: %v", cl.ID, err)
			continue
		}

		select {
		case hub.Inbound <- inbound{client: cl, event: ev}:
		case <-hub.Done():
			return
		}
	}
}
