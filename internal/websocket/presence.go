package websocket

import (
	"log"

	"mask-relay/internal/protocol"
)

func (h *Hub) dispatch(in inbound) {
	cl := in.client

	switch ev := in.event.(type) {
	case protocol.Join:
		h.join(cl, ev.Room, ev.Name)

	case protocol.Send:
		room := h.registry.RoomOf(cl)
		if room == "" {
			h.reject(cl, ev, "message before join")
			return
		}
		h.broadcast(room, protocol.Message{
			Sender:     cl.Name,
			Ciphertext: ev.Ciphertext,
			Timestamp:  ev.Timestamp,
		}, cl)
		log.Printf("relayed %d byte ciphertext from %s in room %s", len(ev.Ciphertext), cl.ID, room)

	case protocol.Typing:
		room := h.registry.RoomOf(cl)
		if room == "" {
			h.reject(cl, ev, "typing before join")
			return
		}
		h.broadcast(room, protocol.TypingNotice{Name: cl.Name}, cl)
	}
}

// join moves cl into roomID. Membership is updated before any presence frame
// goes out, so peers never see a peer_joined for a connection the registry
// does not yet hold.
func (h *Hub) join(cl *WSClient, roomID, name string) {
	prevRoom, prevName := h.registry.Join(cl, roomID, name)
	if prevRoom != "" {
		h.broadcast(prevRoom, protocol.PeerLeft{Name: prevName}, cl)
		log.Printf("client %s moved from room %s to %s", cl.ID, prevRoom, roomID)
	} else {
		log.Printf("client %s joined room %s", cl.ID, roomID)
	}

	if others := h.broadcast(roomID, protocol.PeerJoined{Name: name}, cl); others > 0 {
		h.sendEvent(cl, protocol.Online{})
	}
}

// leave is idempotent: a connection that is not in a room produces no
// peer_left.
func (h *Hub) leave(cl *WSClient) {
	roomID, name, ok := h.registry.Leave(cl)
	if !ok {
		return
	}
	h.broadcast(roomID, protocol.PeerLeft{Name: name}, cl)
	log.Printf("client %s left room %s", cl.ID, roomID)
}

// broadcast encodes ev once and queues the same bytes for every member of
// roomID except exclude. It returns the number of local members addressed.
func (h *Hub) broadcast(roomID string, ev protocol.ServerEvent, exclude *WSClient) int {
	frame, err := protocol.Encode(ev)
	if err != nil {
		log.Printf("error encoding %s for room %s: %v", ev.Type(), roomID, err)
		return 0
	}

	members := h.registry.Members(roomID, exclude)
	h.fanOut(members, frame)

	if h.bridge != nil {
		h.bridge.Forward(&Envelope{Origin: h.instanceID, RoomID: roomID, Frame: frame})
	}
	return len(members)
}

func (h *Hub) fanOut(members []*WSClient, frame []byte) {
	delivered := 0
	for _, member := range members {
		if h.send(member, frame) {
			delivered++
		}
	}
	if delivered > 0 {
		addDelivered(delivered)
	}
}

// deliverRemote hands a frame published by another instance to the local
// members of its room. The originating connection lives elsewhere, so nobody
// here is excluded.
func (h *Hub) deliverRemote(env *Envelope) {
	if env == nil || env.Origin == h.instanceID {
		return
	}
	h.fanOut(h.registry.Members(env.RoomID, nil), env.Frame)
}

func (h *Hub) sendEvent(cl *WSClient, ev protocol.ServerEvent) {
	frame, err := protocol.Encode(ev)
	if err != nil {
		log.Printf("error encoding %s for client %s: %v", ev.Type(), cl.ID, err)
		return
	}
	if h.send(cl, frame) {
		addDelivered(1)
	}
}

func (h *Hub) reject(cl *WSClient, ev protocol.Event, reason string) {
	incViolations()
	log.Printf("ignoring %s from client %s: %s", ev.Type(), cl.ID, reason)
}
