package tools

import "time"

// RetryAction identifies why a retry was granted (or none).
type RetryAction int

const (
	RetryNone RetryAction = iota
	RetryFileLocked
	RetryResourceBusy
)

func (a RetryAction) String() string {
	switch a {
	case RetryFileLocked:
		return "file locked"
	case RetryResourceBusy:
		return "resource busy"
	default:
		return "none"
	}
}

// RetryState tracks retries of one command. A fresh state is used per
// invocation.
type RetryState struct {
	Attempt    int
	MaxRetries int
	Backoff    time.Duration // Doubles after every granted retry.
}

// NewRetryState allows up to maxRetries extra attempts.
func NewRetryState(maxRetries int, backoff time.Duration) *RetryState {
	return &RetryState{MaxRetries: maxRetries, Backoff: backoff}
}

// Advance inspects stderr from a failed run and decides whether another
// attempt is worthwhile. It returns RetryNone when stderr is not transient
// or the retry budget is spent. The wait before the next attempt is
// returned with the action.
func (s *RetryState) Advance(stderr string) (RetryAction, time.Duration) {
	if s.Attempt >= s.MaxRetries {
		return RetryNone, 0
	}
	action := RetryNone
	switch {
	case MatchFileLocked(stderr):
		action = RetryFileLocked
	case MatchResourceBusy(stderr):
		action = RetryResourceBusy
	}
	if action == RetryNone {
		return RetryNone, 0
	}
	wait := s.Backoff << s.Attempt
	s.Attempt++
	return action, wait
}
