package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxNameLength = 50
	MaxRoomLength = 100
)

// ErrViolation is wrapped by every decoding failure.
var ErrViolation = errors.New("protocol violation")

// Violation describes why a frame was rejected.
type Violation struct {
	Type   string
	Reason string
}

func (v *Violation) Error() string {
	if v.Type == "" {
		return fmt.Sprintf("protocol violation: %s", v.Reason)
	}
	return fmt.Sprintf("protocol violation: %s: %s", v.Type, v.Reason)
}

func (v *Violation) Unwrap() error {
	return ErrViolation
}

func violation(eventType, format string, args ...any) error {
	return &Violation{Type: eventType, Reason: fmt.Sprintf(format, args...)}
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode wraps ev in a {"type", "data"} frame.
func Encode(ev Event) ([]byte, error) {
	if ev == nil {
		return nil, errors.New("protocol: nil event")
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %s: %w", ev.Type(), err)
	}
	return json.Marshal(frame{Type: ev.Type(), Data: data})
}

// DecodeClient parses a frame sent by a client. Unknown types, unknown
// fields and missing required fields are rejected.
func DecodeClient(raw []byte) (ClientEvent, error) {
	f, err := readFrame(raw)
	if err != nil {
		return nil, err
	}

	switch f.Type {
	case TypeJoin:
		var ev Join
		if err := decodeData(f, &ev); err != nil {
			return nil, err
		}
		ev.Name = strings.TrimSpace(ev.Name)
		ev.Room = strings.TrimSpace(ev.Room)
		if err := checkName(f.Type, "name", ev.Name, MaxNameLength); err != nil {
			return nil, err
		}
		if err := checkName(f.Type, "room", ev.Room, MaxRoomLength); err != nil {
			return nil, err
		}
		return ev, nil

	case TypeMessage:
		var ev Send
		if err := decodeData(f, &ev); err != nil {
			return nil, err
		}
		if ev.Ciphertext == "" {
			return nil, violation(f.Type, "ciphertext is required")
		}
		return ev, nil

	case TypeTyping:
		var ev Typing
		if err := decodeData(f, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	}

	return nil, violation(f.Type, "unknown client event")
}

// DecodeServer parses a frame sent by the relay.
func DecodeServer(raw []byte) (ServerEvent, error) {
	f, err := readFrame(raw)
	if err != nil {
		return nil, err
	}

	switch f.Type {
	case TypeMessage:
		var ev Message
		if err := decodeData(f, &ev); err != nil {
			return nil, err
		}
		if ev.Sender == "" || ev.Ciphertext == "" {
			return nil, violation(f.Type, "sender and ciphertext are required")
		}
		return ev, nil

	case TypeTyping:
		var ev TypingNotice
		if err := decodeNamed(f, &ev, &ev.Name); err != nil {
			return nil, err
		}
		return ev, nil

	case TypePeerJoined:
		var ev PeerJoined
		if err := decodeNamed(f, &ev, &ev.Name); err != nil {
			return nil, err
		}
		return ev, nil

	case TypePeerLeft:
		var ev PeerLeft
		if err := decodeNamed(f, &ev, &ev.Name); err != nil {
			return nil, err
		}
		return ev, nil

	case TypeOnline:
		var ev Online
		if err := decodeData(f, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	}

	return nil, violation(f.Type, "unknown server event")
}

func readFrame(raw []byte) (frame, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return frame{}, violation("", "malformed frame: %v", err)
	}
	if f.Type == "" {
		return frame{}, violation("", "missing event type")
	}
	return f, nil
}

func decodeData(f frame, v any) error {
	data := bytes.TrimSpace(f.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		data = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return violation(f.Type, "malformed data: %v", err)
	}
	return nil
}

func decodeNamed(f frame, v any, name *string) error {
	if err := decodeData(f, v); err != nil {
		return err
	}
	if *name == "" {
		return violation(f.Type, "name is required")
	}
	return nil
}

func checkName(eventType, field, value string, max int) error {
	if value == "" {
		return violation(eventType, "%s is required", field)
	}
	if utf8.RuneCountInString(value) > max {
		return violation(eventType, "%s exceeds %d characters", field, max)
	}
	return nil
}
