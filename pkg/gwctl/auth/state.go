package auth

import (
	"math"
	"time"
)

// State is a step of the device login flow.
type State string

const (
	StateNotStarted      State = "not_started"
	StateAwaitingBrowser State = "awaiting_browser"
	StatePolling         State = "polling"
	StateAuthenticated   State = "authenticated"
	StateExpired         State = "expired"
	StateInvalid         State = "invalid"
	StateTimedOut        State = "timed_out"
	StateFailed          State = "failed"
)

// Terminal reports whether the flow ends in s.
func (s State) Terminal() bool {
	switch s {
	case StateNotStarted, StateAwaitingBrowser, StatePolling:
		return false
	default:
		return true
	}
}

// DefaultPollInterval is the fixed spacing between check-login calls.
const DefaultPollInterval = 5 * time.Second

// MaxAttempts returns floor(expiresIn/interval) + 2, computed on whole seconds.
func MaxAttempts(expiresIn, interval time.Duration) int {
	secs := int64(math.Floor(expiresIn.Seconds()))
	step := int64(interval / time.Second)
	if step <= 0 {
		step = int64(DefaultPollInterval / time.Second)
	}
	if secs < 0 {
		secs = 0
	}
	return int(secs/step) + 2
}
