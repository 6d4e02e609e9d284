package endpoints

import (
	"fmt"
	"log"
	"net/http"
)

type RelayEndpoints interface {
	Websocket(http.ResponseWriter, *http.Request) error
}

// Connector upgrades a request into a relay connection.
type Connector interface {
	Connect(http.ResponseWriter, *http.Request) error
}

type relayEndpoints struct {
	relay Connector
}

func NewRelayEndpoints(relay Connector) RelayEndpoints {
	return &relayEndpoints{relay: relay}
}

func (h *relayEndpoints) Websocket(w http.ResponseWriter, r *http.Request) error {
	if h.relay == nil {
		return &HTTPError{
			StatusCode: http.StatusServiceUnavailable,
			Message:    "Websocket not available",
			ErrorLog:   fmt.Errorf("relay websocket handler missing"),
		}
	}
	if r.Method != http.MethodGet {
		return &HTTPError{
			StatusCode: http.StatusMethodNotAllowed,
			Message:    "Method not allowed.",
			ErrorLog:   fmt.Errorf("websocket requires GET, got %s", r.Method),
		}
	}

	// The upgrader answers failed handshakes itself.
	if err := h.relay.Connect(w, r); err != nil {
		log.Printf("relay connect from %s: %v", r.RemoteAddr, err)
	}
	return nil
}
