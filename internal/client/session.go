package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"mask-relay/internal/cipher"
	"mask-relay/internal/protocol"
)

// SelfSender is the sender shown on messages the local user sent.
const SelfSender = "You"

var (
	ErrNotJoined = errors.New("client: not joined to a room")
	ErrClosed    = errors.New("client: session closed")
)

// ValidationError rejects join input before anything is sent. Max is set
// when the field is too long rather than missing.
type ValidationError struct {
	Field string
	Max   int
}

func (e *ValidationError) Error() string {
	if e.Max > 0 {
		return fmt.Sprintf("client: %s exceeds %d characters", e.Field, e.Max)
	}
	return fmt.Sprintf("client: %s is required", e.Field)
}

type Option func(*Session)

func WithURL(url string) Option {
	return func(s *Session) { s.url = url }
}

func WithDialer(d *websocket.Dialer) Option {
	return func(s *Session) { s.dialer = d }
}

func WithCipher(c *cipher.Cipher) Option {
	return func(s *Session) { s.cipher = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func WithTypingTimings(timeout, poll time.Duration) Option {
	return func(s *Session) {
		s.typingTimeout = timeout
		s.typingPoll = poll
	}
}

// Session is one participant: it owns the passphrase, encrypts what the user
// sends and decrypts what the relay delivers. The passphrase never leaves the
// process.
type Session struct {
	presenter Presenter
	url       string
	dialer    *websocket.Dialer
	cipher    *cipher.Cipher
	now       func() time.Time

	typingTimeout time.Duration
	typingPoll    time.Duration

	mu         sync.Mutex
	conn       *websocket.Conn
	name       string
	room       string
	passphrase string
	typing     *TypingThrottle
	closing    bool
	done       chan struct{}

	writeMu   sync.Mutex
	presentMu sync.Mutex
}

func New(presenter Presenter, opts ...Option) *Session {
	s := &Session{
		presenter:     presenter,
		url:           "ws://localhost:8080/ws",
		dialer:        websocket.DefaultDialer,
		cipher:        cipher.New(cipher.DefaultParams),
		now:           time.Now,
		typingTimeout: DefaultTypingTimeout,
		typingPoll:    DefaultTypingPoll,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.typing = NewTypingThrottle(s.typingTimeout)
	return s
}

// Join validates input, connects if needed and joins room. Calling Join again
// on a live session moves it to the new room with the new passphrase.
func (s *Session) Join(ctx context.Context, name, room, passphrase string) error {
	name = strings.TrimSpace(name)
	room = strings.TrimSpace(room)
	passphrase = strings.TrimSpace(passphrase)

	switch {
	case name == "":
		return &ValidationError{Field: "name"}
	case room == "":
		return &ValidationError{Field: "room"}
	case passphrase == "":
		return &ValidationError{Field: "passphrase"}
	case utf8.RuneCountInString(name) > protocol.MaxNameLength:
		return &ValidationError{Field: "name", Max: protocol.MaxNameLength}
	case utf8.RuneCountInString(room) > protocol.MaxRoomLength:
		return &ValidationError{Field: "room", Max: protocol.MaxRoomLength}
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return ErrClosed
	}
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		dialed, _, err := s.dialer.DialContext(ctx, s.url, nil)
		if err != nil {
			return fmt.Errorf("client: dial relay: %w", err)
		}
		conn = dialed
	}

	if err := s.write(conn, protocol.Join{Name: name, Room: room}); err != nil {
		conn.Close()
		return err
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	fresh := s.conn == nil
	s.conn = conn
	s.name = name
	s.room = room
	s.passphrase = passphrase
	if fresh {
		s.done = make(chan struct{})
	}
	done := s.done
	s.mu.Unlock()

	if fresh {
		go s.receive(conn, done)
		go s.pollTyping(done)
	}
	return nil
}

// SendPlaintext encrypts text and sends it to the room. Blank text is
// ignored. The message is shown locally as sent by SelfSender.
func (s *Session) SendPlaintext(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	conn, passphrase := s.conn, s.passphrase
	s.mu.Unlock()
	if conn == nil {
		return ErrNotJoined
	}

	ciphertext, err := s.cipher.Encrypt(text, passphrase)
	if err != nil {
		return fmt.Errorf("client: encrypt: %w", err)
	}

	now := s.now()
	if err := s.write(conn, protocol.Send{Ciphertext: ciphertext, Timestamp: now.UnixMilli()}); err != nil {
		return err
	}

	s.showMessage(MessageView{Sender: SelfSender, Text: text, Timestamp: now, IsSelf: true})
	return nil
}

// NotifyLocalTyping records a keystroke; only the first one of a burst
// reaches the relay.
func (s *Session) NotifyLocalTyping() error {
	s.mu.Lock()
	conn := s.conn
	emit := conn != nil && s.typing.Input(s.now())
	s.mu.Unlock()

	if conn == nil {
		return ErrNotJoined
	}
	if !emit {
		return nil
	}
	return s.write(conn, protocol.Typing{})
}

// Close disconnects. The relay treats the closed connection as a leave.
func (s *Session) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.closing = true
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	s.writeMu.Lock()
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.writeMu.Unlock()
	return conn.Close()
}

// Done is closed when the connection is gone. It is nil before the first Join.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

func (s *Session) write(conn *websocket.Conn, ev protocol.ClientEvent) error {
	frame, err := protocol.Encode(ev)
	if err != nil {
		return fmt.Errorf("client: encode %s: %w", ev.Type(), err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("client: send %s: %w", ev.Type(), err)
	}
	return nil
}

func (s *Session) receive(conn *websocket.Conn, done chan struct{}) {
	defer func() {
		close(done)
		conn.Close()

		s.mu.Lock()
		closing := s.closing
		s.conn = nil
		s.mu.Unlock()

		if !closing {
			s.present(func(p Presenter) { p.OnStatus(StatusOffline) })
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("client: connection lost: %v", err)
			}
			return
		}

		ev, err := protocol.DecodeServer(raw)
		if err != nil {
			log.Printf("client: ignoring frame: %v", err)
			continue
		}
		s.handle(ev)
	}
}

func (s *Session) handle(ev protocol.ServerEvent) {
	switch ev := ev.(type) {
	case protocol.Message:
		s.mu.Lock()
		passphrase := s.passphrase
		s.mu.Unlock()

		res := s.cipher.Open(ev.Ciphertext, passphrase)
		ts := s.now()
		if ev.Timestamp > 0 {
			ts = time.UnixMilli(ev.Timestamp)
		}
		s.showMessage(MessageView{
			Sender:    ev.Sender,
			Text:      res.Text(),
			Timestamp: ts,
			Failed:    !res.OK(),
		})

	case protocol.TypingNotice:
		s.mu.Lock()
		s.typing.Show(ev.Name, s.now())
		s.mu.Unlock()
		s.present(func(p Presenter) { p.OnTyping(ev.Name) })

	case protocol.PeerJoined:
		s.present(func(p Presenter) {
			p.OnPresence(PresenceJoined, ev.Name)
			p.OnStatus(StatusOnline)
		})

	case protocol.PeerLeft:
		s.present(func(p Presenter) {
			p.OnPresence(PresenceLeft, ev.Name)
			p.OnStatus(StatusOffline)
		})

	case protocol.Online:
		s.present(func(p Presenter) {
			p.OnOnline()
			p.OnStatus(StatusOnline)
		})
	}
}

// showMessage renders m and clears the typing indicator, whoever sent it.
func (s *Session) showMessage(m MessageView) {
	s.mu.Lock()
	cleared := s.typing.ClearIndicator()
	s.mu.Unlock()

	s.present(func(p Presenter) {
		p.OnMessage(m)
		if cleared {
			p.OnTypingCleared()
		}
	})
}

func (s *Session) pollTyping(done <-chan struct{}) {
	ticker := time.NewTicker(s.typingPoll)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.mu.Lock()
			cleared := s.typing.Poll(s.now())
			s.mu.Unlock()
			if cleared {
				s.present(func(p Presenter) { p.OnTypingCleared() })
			}
		}
	}
}

func (s *Session) present(fn func(Presenter)) {
	if s.presenter == nil {
		return
	}
	s.presentMu.Lock()
	defer s.presentMu.Unlock()
	fn(s.presenter)
}
