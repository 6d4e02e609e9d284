package client

import "time"

const (
	DefaultTypingTimeout = 2000 * time.Millisecond
	DefaultTypingPoll    = 500 * time.Millisecond
)

type TypingState int

const (
	Idle TypingState = iota
	Typing
)

func (s TypingState) String() string {
	if s == Typing {
		return "typing"
	}
	return "idle"
}

// TypingThrottle tracks two things: whether the local user is typing, which
// decides when a typing signal goes out, and the "X is typing" indicator
// rendered for peers. It takes explicit timestamps and is not safe for
// concurrent use.
type TypingThrottle struct {
	timeout time.Duration

	state     TypingState
	lastInput time.Time

	indicator   string
	indicatorAt time.Time
}

func NewTypingThrottle(timeout time.Duration) *TypingThrottle {
	if timeout <= 0 {
		timeout = DefaultTypingTimeout
	}
	return &TypingThrottle{timeout: timeout}
}

// Input records a local keystroke. It reports true only on the Idle to Typing
// transition; that is the one input that should be sent to the relay.
func (t *TypingThrottle) Input(now time.Time) bool {
	t.lastInput = now
	if t.state == Typing {
		return false
	}
	t.state = Typing
	return true
}

// Show renders name as typing.
func (t *TypingThrottle) Show(name string, now time.Time) {
	t.indicator = name
	t.indicatorAt = now
}

// Poll is the periodic check. Once no local input has happened for the
// timeout it goes back to Idle and clears the indicator; a peer's indicator
// that has not been refreshed for the timeout is cleared as well. Poll never
// produces a relay event. It reports whether the indicator was cleared.
func (t *TypingThrottle) Poll(now time.Time) bool {
	if t.state == Typing && now.Sub(t.lastInput) >= t.timeout {
		t.state = Idle
		return t.ClearIndicator()
	}
	if t.indicator != "" && now.Sub(t.indicatorAt) >= t.timeout {
		return t.ClearIndicator()
	}
	return false
}

// ClearIndicator drops the rendered indicator. Any message arriving, from
// anyone, clears it.
func (t *TypingThrottle) ClearIndicator() bool {
	if t.indicator == "" {
		return false
	}
	t.indicator = ""
	t.indicatorAt = time.Time{}
	return true
}

func (t *TypingThrottle) State() TypingState {
	return t.state
}

func (t *TypingThrottle) Indicator() string {
	return t.indicator
}
