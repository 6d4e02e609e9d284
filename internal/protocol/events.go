package protocol

// Event type tags carried in the "type" field of every frame.
const (
	TypeJoin       = "join"
	TypeMessage    = "message"
	TypeTyping     = "typing"
	TypePeerJoined = "peer_joined"
	TypePeerLeft   = "peer_left"
	TypeOnline     = "online"
)

// Event is any frame on the wire.
type Event interface {
	Type() string
}

// ClientEvent is sent by a client to the relay. The set is closed: only the
// types in this file implement it.
type ClientEvent interface {
	Event
	clientEvent()
}

// ServerEvent is sent by the relay to a client.
type ServerEvent interface {
	Event
	serverEvent()
}

// Join registers the connection under Room with display name Name.
type Join struct {
	Name string `json:"name"`
	Room string `json:"room"`
}

// Send carries an opaque ciphertext from a client to its room.
type Send struct {
	Ciphertext string `json:"ciphertext"`
	Timestamp  int64  `json:"timestamp,omitempty"` // unix millis, client clock
}

// Typing is the client's "I am typing" signal. It carries no payload.
type Typing struct{}

// Message is the fan-out form of Send, stamped with the sender's display name.
type Message struct {
	Sender     string `json:"sender"`
	Ciphertext string `json:"ciphertext"`
	Timestamp  int64  `json:"timestamp,omitempty"`
}

type TypingNotice struct {
	Name string `json:"name"`
}

type PeerJoined struct {
	Name string `json:"name"`
}

type PeerLeft struct {
	Name string `json:"name"`
}

// Online is delivered to a newly joined connection when the room already has
// other members.
type Online struct{}

func (Join) Type() string         { return TypeJoin }
func (Send) Type() string         { return TypeMessage }
func (Typing) Type() string       { return TypeTyping }
func (Message) Type() string      { return TypeMessage }
func (TypingNotice) Type() string { return TypeTyping }
func (PeerJoined) Type() string   { return TypePeerJoined }
func (PeerLeft) Type() string     { return TypePeerLeft }
func (Online) Type() string       { return TypeOnline }

func (Join) clientEvent()   {}
func (Send) clientEvent()   {}
func (Typing) clientEvent() {}

func (Message) serverEvent()      {}
func (TypingNotice) serverEvent() {}
func (PeerJoined) serverEvent()   {}
func (PeerLeft) serverEvent()     {}
func (Online) serverEvent()       {}
