package client

import "time"

type Status int

const (
	StatusOffline Status = iota
	StatusOnline
)

func (s Status) String() string {
	if s == StatusOnline {
		return "online"
	}
	return "offline"
}

type PresenceKind string

const (
	PresenceJoined PresenceKind = "joined"
	PresenceLeft   PresenceKind = "left"
)

// MessageView is a message ready for display. Failed messages carry the
// cipher placeholder as Text.
type MessageView struct {
	Sender    string
	Text      string
	Timestamp time.Time
	IsSelf    bool
	Failed    bool
}

// Presenter renders session events. The session never calls it from two
// goroutines at once.
type Presenter interface {
	OnMessage(MessageView)
	OnPresence(kind PresenceKind, name string)
	OnOnline()
	OnTyping(name string)
	OnTypingCleared()
	OnStatus(Status)
}
