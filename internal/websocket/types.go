package websocket

import (
	"encoding/json"

	"mask-relay/internal/protocol"
)

type Room struct {
	Id      string               `json:"id"`
	Clients map[string]*WSClient `json:"clients"`
}

// inbound is one decoded client event, tagged with the connection it came from.
type inbound struct {
	client *WSClient
	event  protocol.ClientEvent
}

// Envelope carries an already encoded frame between relay instances.
type Envelope struct {
	Origin string          `json:"origin"`
	RoomID string          `json:"roomId"`
	Frame  json.RawMessage `json:"frame"`
}

type Stats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}
