// Package statesync tracks a follower's request for a room snapshot.
package statesync

import "time"

const (
	RetryInterval = 2 * time.Second
	MaxRequests   = 5
)

// Decision is what to do when a request times out.
type Decision int

const (
	None Decision = iota
	Retry
	Fallback
)

func (d Decision) String() string {
	switch d {
	case Retry:
		return "retry"
	case Fallback:
		return "fallback"
	}
	return "none"
}

// Syncer is the request/retry/fallback cycle. Timeouts carry the round they
// were armed for so a superseded timer does nothing.
type Syncer struct {
	self     string
	synced   bool
	inFlight bool
	attempts int
	round    int
}

func New(self string) *Syncer {
	return &Syncer{self: self}
}

func (s *Syncer) Synced() bool  { return s.synced }
func (s *Syncer) Attempts() int { return s.attempts }

// Begin starts a request cycle. It returns false when already synced or a
// cycle is running.
func (s *Syncer) Begin() (int, bool) {
	if s.synced || s.inFlight {
		return 0, false
	}
	s.inFlight = true
	s.attempts = 0
	s.round++
	return s.round, true
}

// Sent counts one outgoing request.
func (s *Syncer) Sent() {
	s.attempts++
}

// OnTimeout decides between retrying and falling back to a fresh world.
func (s *Syncer) OnTimeout(round int) Decision {
	if round != s.round || !s.inFlight || s.synced {
		return None
	}
	if s.attempts < MaxRequests {
		return Retry
	}
	s.inFlight = false
	s.synced = true
	return Fallback
}

// Accept reports whether a snapshot addressed to to should be applied, and
// marks the peer synced when it should.
func (s *Syncer) Accept(to string) bool {
	if s.synced {
		return false
	}
	if to != "" && to != s.self {
		return false
	}
	s.synced = true
	s.inFlight = false
	return true
}

// MarkSynced is used by a peer that becomes host and owns the state.
func (s *Syncer) MarkSynced() {
	s.synced = true
	s.inFlight = false
}
