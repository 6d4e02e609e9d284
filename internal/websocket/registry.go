package websocket

// Registry maps room IDs to the connections currently joined there. It is not
// safe for concurrent use; the hub's Run loop is its only owner.
type Registry struct {
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Join registers cl under roomID with the given display name, removing it from
// whatever room it was in before. The previous room and name are returned so
// the caller can announce the departure; prevRoom is empty for a first join.
func (r *Registry) Join(cl *WSClient, roomID, name string) (prevRoom, prevName string) {
	prevRoom, prevName, _ = r.Leave(cl)

	room, ok := r.rooms[roomID]
	if !ok {
		room = &Room{Id: roomID, Clients: make(map[string]*WSClient)}
		r.rooms[roomID] = room
	}
	room.Clients[cl.ID] = cl
	cl.RoomID = roomID
	cl.Name = name
	return prevRoom, prevName
}

// Leave removes cl from its room. ok is false when cl was not in any room, so
// calling Leave twice is harmless. A room with no members left is dropped.
func (r *Registry) Leave(cl *WSClient) (roomID, name string, ok bool) {
	if cl.RoomID == "" {
		return "", "", false
	}
	roomID, name = cl.RoomID, cl.Name

	if room, exists := r.rooms[roomID]; exists {
		delete(room.Clients, cl.ID)
		if len(room.Clients) == 0 {
			delete(r.rooms, roomID)
		}
	}
	cl.RoomID = ""
	return roomID, name, true
}

// RoomOf returns the room cl is joined to, or "".
func (r *Registry) RoomOf(cl *WSClient) string {
	room, ok := r.rooms[cl.RoomID]
	if !ok {
		return ""
	}
	if _, member := room.Clients[cl.ID]; !member {
		return ""
	}
	return room.Id
}

// Members lists the connections in roomID, leaving out exclude (which may be nil).
func (r *Registry) Members(roomID string, exclude *WSClient) []*WSClient {
	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	members := make([]*WSClient, 0, len(room.Clients))
	for _, cl := range room.Clients {
		if cl != exclude {
			members = append(members, cl)
		}
	}
	return members
}

func (r *Registry) RoomCount() int {
	return len(r.rooms)
}

func (r *Registry) MemberCount() int {
	n := 0
	for _, room := range r.rooms {
		n += len(room.Clients)
	}
	return n
}
