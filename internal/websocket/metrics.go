package websocket

import "github.com/prometheus/client_golang/prometheus"

var (
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_relay_ws_connections",
			Help: "Current number of open relay connections.",
		},
	)
	wsRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_relay_rooms",
			Help: "Current number of rooms with at least one member.",
		},
	)
	wsMessagesDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_relay_frames_delivered_total",
			Help: "Total frames queued for delivery to relay connections.",
		},
	)
	wsProtocolViolations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_relay_protocol_violations_total",
			Help: "Client frames ignored because they broke the relay protocol.",
		},
	)
	wsBridgeDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_relay_bridge_dropped_total",
			Help: "Envelopes not forwarded to other relay instances because the bridge queue was full.",
		},
	)
)

func init() {
	prometheus.MustRegister(wsConnections, wsRooms, wsMessagesDelivered, wsProtocolViolations, wsBridgeDropped)
}

func incConnections() {
	wsConnections.Inc()
}

func decConnections() {
	wsConnections.Dec()
}

func setRooms(count int) {
	wsRooms.Set(float64(count))
}

func addDelivered(count int) {
	wsMessagesDelivered.Add(float64(count))
}

func incViolations() {
	wsProtocolViolations.Inc()
}

func incBridgeDropped() {
	wsBridgeDropped.Inc()
}
