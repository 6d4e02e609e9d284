package client

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"mask-relay/internal/cipher"
	"mask-relay/internal/protocol"
	relay "mask-relay/internal/websocket"
)

const waitTimeout = 3 * time.Second

type recorded struct {
	kind   string
	name   string
	msg    MessageView
	status Status
}

type recorder struct {
	events chan recorded
}

func newRecorder() *recorder {
	return &recorder{events: make(chan recorded, 64)}
}

func (r *recorder) OnMessage(m MessageView) { r.events <- recorded{kind: "message", msg: m} }
func (r *recorder) OnPresence(kind PresenceKind, name string) {
	r.events <- recorded{kind: string(kind), name: name}
}
func (r *recorder) OnOnline()            { r.events <- recorded{kind: "online"} }
func (r *recorder) OnTyping(name string) { r.events <- recorded{kind: "typing", name: name} }
func (r *recorder) OnTypingCleared()     { r.events <- recorded{kind: "typing_cleared"} }
func (r *recorder) OnStatus(s Status)    { r.events <- recorded{kind: "status", status: s} }

// waitFor skips events until one satisfies match.
func (r *recorder) waitFor(t *testing.T, what string, match func(recorded) bool) recorded {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case ev := <-r.events:
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		}
	}
}

func (r *recorder) waitPresence(t *testing.T, kind PresenceKind, name string) {
	t.Helper()
	r.waitFor(t, string(kind)+" "+name, func(ev recorded) bool {
		return ev.kind == string(kind) && ev.name == name
	})
}

func (r *recorder) waitMessage(t *testing.T) MessageView {
	t.Helper()
	return r.waitFor(t, "message", func(ev recorded) bool { return ev.kind == "message" }).msg
}

func (r *recorder) expectNo(t *testing.T, kind string, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case ev := <-r.events:
			if ev.kind == kind {
				t.Fatalf("unexpected %s event: %+v", kind, ev)
			}
		case <-deadline:
			return
		}
	}
}

func startRelay(t *testing.T) (string, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := relay.NewHub()
	go hub.Run(ctx)
	handler := relay.NewHandler(hub, relay.HandlerOptions{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.Connect(w, r)
	}))
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
		server.Close()
	})
	return "ws" + strings.TrimPrefix(server.URL, "http"), cancel
}

var fastCipher = cipher.New(cipher.Params{Time: 1, Memory: 64, Threads: 1})

func newSession(t *testing.T, url string, opts ...Option) (*Session, *recorder) {
	t.Helper()
	rec := newRecorder()
	opts = append([]Option{WithURL(url), WithCipher(fastCipher)}, opts...)
	s := New(rec, opts...)
	t.Cleanup(func() { s.Close() })
	return s, rec
}

func mustJoin(t *testing.T, s *Session, name, room, passphrase string) {
	t.Helper()
	if err := s.Join(context.Background(), name, room, passphrase); err != nil {
		t.Fatalf("join %s: %v", name, err)
	}
}

func TestSessionSharedPassphraseDecrypts(t *testing.T) {
	url, _ := startRelay(t)
	alice, aliceRec := newSession(t, url)
	bob, bobRec := newSession(t, url)
	carol, carolRec := newSession(t, url)

	mustJoin(t, alice, "alice", "cafe", "secret123")
	mustJoin(t, bob, "bob", "cafe", "secret123")
	aliceRec.waitPresence(t, PresenceJoined, "bob")
	mustJoin(t, carol, "carol", "cafe", "wrong")
	aliceRec.waitPresence(t, PresenceJoined, "carol")
	bobRec.waitPresence(t, PresenceJoined, "carol")

	if err := alice.SendPlaintext("hello"); err != nil {
		t.Fatalf("send: %v", err)
	}

	self := aliceRec.waitMessage(t)
	if !self.IsSelf || self.Sender != SelfSender || self.Text != "hello" {
		t.Fatalf("unexpected local echo %+v", self)
	}

	got := bobRec.waitMessage(t)
	if got.Failed || got.Text != "hello" || got.Sender != "alice" || got.IsSelf {
		t.Fatalf("bob expected hello from alice, got %+v", got)
	}

	got = carolRec.waitMessage(t)
	if !got.Failed || got.Text != cipher.Placeholder || got.Sender != "alice" {
		t.Fatalf("carol should see the placeholder, got %+v", got)
	}

	// Carol keeps working after a failed decryption.
	if err := carol.SendPlaintext("can anyone read this?"); err != nil {
		t.Fatalf("carol send: %v", err)
	}
	if got := bobRec.waitMessage(t); !got.Failed {
		t.Fatalf("bob cannot hold carol's key, got %+v", got)
	}
}

func TestSessionValidationRejectsBeforeDial(t *testing.T) {
	s := New(newRecorder(), WithURL("ws://127.0.0.1:1/unreachable"))

	cases := []struct {
		name, room, passphrase, field string
	}{
		{"", "cafe", "secret", "name"},
		{"alice", "  ", "secret", "room"},
		{"alice", "cafe", "", "passphrase"},
		{strings.Repeat("é", protocol.MaxNameLength+1), "cafe", "secret", "name"},
		{"alice", strings.Repeat("r", protocol.MaxRoomLength+1), "secret", "room"},
	}
	for _, tc := range cases {
		err := s.Join(context.Background(), tc.name, tc.room, tc.passphrase)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if verr.Field != tc.field {
			t.Fatalf("expected field %s, got %s", tc.field, verr.Field)
		}
	}
	if s.Done() != nil {
		t.Fatal("no connection should have been made")
	}

	// Limits count runes, matching the relay.
	longest := strings.Repeat("é", protocol.MaxNameLength)
	err := s.Join(context.Background(), longest, "cafe", "secret")
	var verr *ValidationError
	if errors.As(err, &verr) {
		t.Fatalf("a %d rune name is allowed, got %v", protocol.MaxNameLength, err)
	}
	if err := s.SendPlaintext("hello"); !errors.Is(err, ErrNotJoined) {
		t.Fatalf("expected ErrNotJoined, got %v", err)
	}
}

func TestSessionTypingIsThrottledAndClearedByMessage(t *testing.T) {
	url, _ := startRelay(t)
	alice, _ := newSession(t, url)
	bob, bobRec := newSession(t, url, WithTypingTimings(time.Minute, time.Minute))

	mustJoin(t, bob, "bob", "cafe", "secret123")
	mustJoin(t, alice, "alice", "cafe", "secret123")
	bobRec.waitPresence(t, PresenceJoined, "alice")

	for i := 0; i < 5; i++ {
		if err := alice.NotifyLocalTyping(); err != nil {
			t.Fatalf("typing: %v", err)
		}
	}
	bobRec.waitFor(t, "typing alice", func(ev recorded) bool {
		return ev.kind == "typing" && ev.name == "alice"
	})

	if err := alice.SendPlaintext("done typing"); err != nil {
		t.Fatalf("send: %v", err)
	}

	// Everything bob sees from here on: exactly the message, then the clear.
	var kinds []string
	deadline := time.After(waitTimeout)
	for len(kinds) < 2 {
		select {
		case ev := <-bobRec.events:
			kinds = append(kinds, ev.kind)
		case <-deadline:
			t.Fatalf("timed out, saw %v", kinds)
		}
	}
	if kinds[0] != "message" || kinds[1] != "typing_cleared" {
		t.Fatalf("expected message then typing_cleared, got %v", kinds)
	}
}

func TestSessionTypingIndicatorDecays(t *testing.T) {
	url, _ := startRelay(t)
	alice, _ := newSession(t, url)
	bob, bobRec := newSession(t, url, WithTypingTimings(100*time.Millisecond, 20*time.Millisecond))

	mustJoin(t, bob, "bob", "cafe", "secret123")
	mustJoin(t, alice, "alice", "cafe", "secret123")
	bobRec.waitPresence(t, PresenceJoined, "alice")

	if err := alice.NotifyLocalTyping(); err != nil {
		t.Fatalf("typing: %v", err)
	}
	shown := time.Now()
	bobRec.waitFor(t, "typing", func(ev recorded) bool { return ev.kind == "typing" })
	bobRec.waitFor(t, "typing_cleared", func(ev recorded) bool { return ev.kind == "typing_cleared" })

	if elapsed := time.Since(shown); elapsed < 100*time.Millisecond {
		t.Fatalf("indicator cleared after %v, before the timeout", elapsed)
	}
}

func TestSessionReportsOfflineOnTransportFailure(t *testing.T) {
	url, stop := startRelay(t)
	alice, aliceRec := newSession(t, url)
	bob, bobRec := newSession(t, url)

	mustJoin(t, alice, "alice", "cafe", "secret123")
	mustJoin(t, bob, "bob", "cafe", "secret123")
	bobRec.waitFor(t, "online", func(ev recorded) bool { return ev.kind == "online" })
	aliceRec.waitFor(t, "status online", func(ev recorded) bool {
		return ev.kind == "status" && ev.status == StatusOnline
	})

	stop()

	aliceRec.waitFor(t, "status offline", func(ev recorded) bool {
		return ev.kind == "status" && ev.status == StatusOffline
	})
	select {
	case <-alice.Done():
	case <-time.After(waitTimeout):
		t.Fatal("session did not end")
	}
}

func TestSessionPeerLeftOnClose(t *testing.T) {
	url, _ := startRelay(t)
	alice, aliceRec := newSession(t, url)
	bob, _ := newSession(t, url)

	mustJoin(t, alice, "alice", "cafe", "secret123")
	mustJoin(t, bob, "bob", "cafe", "secret123")
	aliceRec.waitPresence(t, PresenceJoined, "bob")

	if err := bob.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	aliceRec.waitPresence(t, PresenceLeft, "bob")
	aliceRec.expectNo(t, string(PresenceLeft), 200*time.Millisecond)
}

func TestSessionRejoinMovesRooms(t *testing.T) {
	url, _ := startRelay(t)
	alice, aliceRec := newSession(t, url)
	bob, bobRec := newSession(t, url)
	carol, carolRec := newSession(t, url)

	mustJoin(t, alice, "alice", "cafe", "secret123")
	mustJoin(t, bob, "bob", "cafe", "secret123")
	aliceRec.waitPresence(t, PresenceJoined, "bob")

	mustJoin(t, bob, "bob", "lounge", "lounge-key")
	aliceRec.waitPresence(t, PresenceLeft, "bob")
	mustJoin(t, carol, "carol", "lounge", "lounge-key")
	bobRec.waitPresence(t, PresenceJoined, "carol")
	carolRec.waitFor(t, "online", func(ev recorded) bool { return ev.kind == "online" })
	if bob.Room() != "lounge" {
		t.Fatalf("expected lounge, got %q", bob.Room())
	}

	if err := carol.SendPlaintext("welcome"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := bobRec.waitMessage(t); got.Failed || got.Text != "welcome" {
		t.Fatalf("bob should read the lounge with the lounge key, got %+v", got)
	}
}

func TestSessionCloseDuringDialDoesNotConnect(t *testing.T) {
	url, _ := startRelay(t)

	var s *Session
	dialer := &websocket.Dialer{
		NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			s.Close()
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}
	s, _ = newSession(t, url, WithDialer(dialer))

	if err := s.Join(context.Background(), "alice", "cafe", "secret123"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if s.Done() != nil {
		t.Fatal("a closed session must not start its connection loops")
	}
	if err := s.SendPlaintext("hello"); !errors.Is(err, ErrNotJoined) {
		t.Fatalf("expected ErrNotJoined, got %v", err)
	}
}
