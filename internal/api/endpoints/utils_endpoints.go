package endpoints

import (
	"net/http"

	"mask-relay/internal/websocket"
)

type UtilsEndpoints interface {
	Health(http.ResponseWriter, *http.Request) error
}

// StatsSource reports the relay's current occupancy.
type StatsSource interface {
	Stats() websocket.Stats
}

type HealthResponse struct {
	Status      string `json:"status"`
	Rooms       int    `json:"rooms"`
	Connections int    `json:"connections"`
}

type utilsEndpoints struct {
	stats StatsSource
}

func NewUtilsEndpoints(stats StatsSource) UtilsEndpoints {
	return &utilsEndpoints{stats: stats}
}

func (h *utilsEndpoints) Health(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.health,
	})
}

func (h *utilsEndpoints) health(w http.ResponseWriter, r *http.Request) error {
	resp := HealthResponse{Status: "ok"}
	if h.stats != nil {
		st := h.stats.Stats()
		resp.Rooms = st.Rooms
		resp.Connections = st.Connections
	}
	return WriteJSON(w, http.StatusOK, resp)
}
