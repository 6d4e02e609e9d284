package router

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"mask-relay/internal/api"
	"mask-relay/internal/api/endpoints"
	"mask-relay/internal/protocol"
	"mask-relay/internal/queue"
	"mask-relay/internal/websocket"
)

const prefix = "/api/v1"

func setupServer(t *testing.T) (*httptest.Server, *websocket.Hub) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	hub := websocket.NewHub()
	go hub.Run(ctx)

	queueManager := queue.NewRequestQueueManager(10, 4)
	server := api.NewAPIServer(
		api.Config{ListenAddr: ":0", Registry: prometheus.NewRegistry()},
		queueManager,
		websocket.NewHandler(hub, websocket.HandlerOptions{}),
		UtilsRoutes(prefix),
		RelayRoutes(prefix),
	)

	ts := httptest.NewServer(server.Routes())
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
		ts.Close()
		queueManager.Shutdown()
	})
	return ts, hub
}

func getHealth(t *testing.T, base string) endpoints.HealthResponse {
	t.Helper()
	resp, err := http.Get(base + prefix + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	var health endpoints.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	return health
}

func TestHealthReportsEmptyRelay(t *testing.T) {
	ts, _ := setupServer(t)

	health := getHealth(t, ts.URL)
	if health.Status != "ok" || health.Rooms != 0 || health.Connections != 0 {
		t.Fatalf("unexpected health %+v", health)
	}
}

func TestHealthRejectsOtherMethods(t *testing.T) {
	ts, _ := setupServer(t)

	resp, err := http.Post(ts.URL+prefix+"/health", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
	var body api.ApiError
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error == "" {
		t.Fatal("expected an error message")
	}
}

func TestMetricsExposesHTTPCounters(t *testing.T) {
	ts, _ := setupServer(t)
	getHealth(t, ts.URL)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(body), "chat_relay_http_requests_total") {
		t.Fatalf("request counter missing from /metrics:\n%s", body)
	}
}

func TestRelayUpgradesThroughMiddleware(t *testing.T) {
	ts, hub := setupServer(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + prefix + "/ws"

	dial := func(name string) *gorilla.Conn {
		conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("dial %s: %v", name, err)
		}
		t.Cleanup(func() { conn.Close() })

		frame, err := protocol.Encode(protocol.Join{Name: name, Room: "cafe"})
		if err != nil {
			t.Fatalf("encode join: %v", err)
		}
		if err := conn.WriteMessage(gorilla.TextMessage, frame); err != nil {
			t.Fatalf("join %s: %v", name, err)
		}
		return conn
	}
	read := func(conn *gorilla.Conn) protocol.ServerEvent {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		ev, err := protocol.DecodeServer(raw)
		if err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
		return ev
	}

	alice := dial("alice")
	deadline := time.Now().Add(2 * time.Second)
	for hub.Stats().Rooms != 1 {
		if time.Now().After(deadline) {
			t.Fatal("alice never joined")
		}
		time.Sleep(10 * time.Millisecond)
	}
	bob := dial("bob")

	if ev, ok := read(alice).(protocol.PeerJoined); !ok || ev.Name != "bob" {
		t.Fatalf("alice expected peer_joined bob, got %#v", ev)
	}
	if _, ok := read(bob).(protocol.Online); !ok {
		t.Fatal("bob expected online")
	}

	health := getHealth(t, ts.URL)
	if health.Rooms != 1 || health.Connections != 2 {
		t.Fatalf("expected 1 room and 2 connections, got %+v", health)
	}
}
