package websocket

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/google/uuid"
)

// Hub is the relay's reactor. Run owns the Registry; every membership change
// and every fan-out happens on that one goroutine, in the order events arrive.
type Hub struct {
	Register   chan *WSClient
	Unregister chan *WSClient
	Inbound    chan inbound
	Remote     chan *Envelope

	registry   *Registry
	clients    map[*WSClient]struct{}
	bridge     *Bridge
	instanceID string
	evicted    []*WSClient
	done       chan struct{}

	rooms       atomic.Int64
	connections atomic.Int64
}

func NewHub() *Hub {
	return &Hub{
		Register:   make(chan *WSClient),
		Unregister: make(chan *WSClient),
		Inbound:    make(chan inbound, 64),
		Remote:     make(chan *Envelope, 64),
		registry:   NewRegistry(),
		clients:    make(map[*WSClient]struct{}),
		instanceID: uuid.NewString(),
		done:       make(chan struct{}),
	}
}

// AttachBridge forwards every local fan-out to other relay instances. It must
// be called before Run.
func (h *Hub) AttachBridge(b *Bridge) {
	h.bridge = b
}

func (h *Hub) InstanceID() string {
	return h.instanceID
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) Stats() Stats {
	return Stats{
		Rooms:       int(h.rooms.Load()),
		Connections: int(h.connections.Load()),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			log.Printf("hub %s shutting down, closing %d connections", h.instanceID, len(h.clients))
			for cl := range h.clients {
				h.drop(cl)
			}
			h.syncGauges()
			return

		case cl := <-h.Register:
			h.clients[cl] = struct{}{}
			incConnections()

		case cl := <-h.Unregister:
			if _, ok := h.clients[cl]; ok {
				h.disconnect(cl)
			}

		case in := <-h.Inbound:
			if _, ok := h.clients[in.client]; ok {
				h.dispatch(in)
			}

		case env := <-h.Remote:
			h.deliverRemote(env)
		}

		h.flushEvictions()
		h.syncGauges()
	}
}

// disconnect is the implicit leave for a closed or evicted connection.
func (h *Hub) disconnect(cl *WSClient) {
	h.drop(cl)
	h.leave(cl)
}

func (h *Hub) drop(cl *WSClient) {
	if _, ok := h.clients[cl]; !ok {
		return
	}
	delete(h.clients, cl)
	close(cl.Message)
	decConnections()
}

// send queues frame on cl without blocking. A client whose buffer is full is
// evicted once the current fan-out is over.
func (h *Hub) send(cl *WSClient, frame []byte) bool {
	if _, ok := h.clients[cl]; !ok {
		return false
	}
	select {
	case cl.Message <- frame:
		return true
	default:
		log.Printf("client %s send buffer full, evicting", cl.ID)
		h.evicted = append(h.evicted, cl)
		return false
	}
}

func (h *Hub) flushEvictions() {
	for len(h.evicted) > 0 {
		cl := h.evicted[0]
		h.evicted = h.evicted[1:]
		if _, ok := h.clients[cl]; ok {
			h.disconnect(cl)
		}
	}
}

func (h *Hub) syncGauges() {
	rooms := h.registry.RoomCount()
	h.rooms.Store(int64(rooms))
	h.connections.Store(int64(len(h.clients)))
	setRooms(rooms)
}
