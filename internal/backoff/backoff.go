// Package backoff implements the reconnect delay schedule used by every
// venue consumer: a finite, exponentially growing sequence of delays that
// resets to its initial state after a successful connect.
package backoff

import "time"

// Schedule generates reconnect delays. The first delay after construction
// or Reset is always zero (reconnect immediately), subsequent delays
// double up to Cap, and Next reports exhausted=true once MaxAttempts have
// been handed out without an intervening Reset.
type Schedule struct {
	base        time.Duration
	cap         time.Duration
	maxAttempts int

	attempts int
	current  time.Duration
}

// New builds a Schedule. base is the delay used for the second attempt
// (the first attempt is always zero); cap bounds growth; maxAttempts
// bounds how many delays Next will hand out before reporting exhausted.
func New(base, cap time.Duration, maxAttempts int) *Schedule {
	return &Schedule{
		base:        base,
		cap:         cap,
		maxAttempts: maxAttempts,
	}
}

// Next returns the next delay in the schedule. exhausted is true once the
// schedule has produced maxAttempts delays since the last Reset; the
// caller should treat that as an UnrecoverableError per the consumer's
// state machine rather than continuing to retry.
func (s *Schedule) Next() (delay time.Duration, exhausted bool) {
	if s.maxAttempts > 0 && s.attempts >= s.maxAttempts {
		return 0, true
	}
	s.attempts++

	if s.attempts == 1 {
		s.current = 0
		return 0, false
	}
	if s.current == 0 {
		s.current = s.base
	} else {
		s.current *= 2
	}
	if s.cap > 0 && s.current > s.cap {
		s.current = s.cap
	}
	return s.current, false
}

// Reset returns the schedule to its initial state, called on every
// successful connect so the next disconnect starts the delay sequence
// over from zero.
func (s *Schedule) Reset() {
	s.attempts = 0
	s.current = 0
}

// Attempts reports how many delays have been handed out since the last
// Reset, useful for diagnostic logging.
func (s *Schedule) Attempts() int {
	return s.attempts
}
