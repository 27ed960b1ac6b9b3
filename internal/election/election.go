// Package election decides which peer in a room is host. It is a pure state
// machine: callers feed it observed claims and heartbeats with the current
// time and act on what it returns.
package election

import (
	"sort"
	"time"
)

const (
	BootstrapGrace    = 1500 * time.Millisecond
	FreshHeartbeat    = 2000 * time.Millisecond
	Window            = 600 * time.Millisecond
	HeartbeatInterval = time.Second
	MonitorInterval   = time.Second
	StaleAfter        = 3500 * time.Millisecond
	HostLeftDelay     = 300 * time.Millisecond
)

type State int

const (
	Idle State = iota
	Electing
	Host
	Follower
)

func (s State) String() string {
	switch s {
	case Electing:
		return "electing"
	case Host:
		return "host"
	case Follower:
		return "follower"
	}
	return "idle"
}

// Claim is a candidate's bid for host.
type Claim struct {
	CandidateID string
	At          time.Time
}

// Less orders claims by (At, CandidateID).
func Less(a, b Claim) bool {
	if !a.At.Equal(b.At) {
		return a.At.Before(b.At)
	}
	return a.CandidateID < b.CandidateID
}

// Winner returns the smallest claim.
func Winner(claims []Claim) (Claim, bool) {
	if len(claims) == 0 {
		return Claim{}, false
	}
	sorted := append([]Claim(nil), claims...)
	sort.Slice(sorted, func(i, j int) bool { return Less(sorted[i], sorted[j]) })
	return sorted[0], true
}

// Round identifies one election attempt. Resolution timers carry it so a
// superseded timer does nothing.
type Round struct {
	ID    int
	Claim Claim
}

// ClaimReaction tells the caller what to do after a foreign claim.
type ClaimReaction int

const (
	// ClaimRecorded: the claim joined the running round.
	ClaimRecorded ClaimReaction = iota
	// ClaimJoined: a new round began; broadcast Round.Claim and arm the timer.
	ClaimJoined
	// ClaimAnswered: we are host; send a heartbeat now instead of electing.
	ClaimAnswered
	// ClaimIgnored: the claim was our own.
	ClaimIgnored
)

// Resolution is the result of a round's timer firing.
type Resolution struct {
	Decided    bool
	WinnerID   string
	BecameHost bool
}

// BeatReaction is the result of observing a heartbeat.
type BeatReaction struct {
	// Relinquished: we were host and another host is beating.
	Relinquished bool
	// Cancelled: a running round was abandoned for the beating host.
	Cancelled bool
	// NewHost: the known host id changed.
	NewHost bool
}

// Elector tracks one peer's view of the room's host.
type Elector struct {
	self     string
	state    State
	hostID   string
	lastBeat time.Time
	joinedAt time.Time
	claims   []Claim
	round    int
}

func New(self string, joinedAt time.Time) *Elector {
	return &Elector{self: self, joinedAt: joinedAt}
}

func (e *Elector) Self() string   { return e.self }
func (e *Elector) State() State   { return e.state }
func (e *Elector) HostID() string { return e.hostID }
func (e *Elector) IsHost() bool   { return e.state == Host }

// Claims returns the claims collected in the current round.
func (e *Elector) Claims() []Claim {
	return append([]Claim(nil), e.claims...)
}

// Begin starts a round with our own claim. It is a no-op while electing or
// hosting.
func (e *Elector) Begin(now time.Time) (Round, bool) {
	if e.state == Electing || e.state == Host {
		return Round{}, false
	}
	e.state = Electing
	e.round++
	own := Claim{CandidateID: e.self, At: now}
	e.claims = []Claim{own}
	return Round{ID: e.round, Claim: own}, true
}

// ObserveClaim handles another peer's claim. A peer that is not electing
// joins with its own claim; a host answers with a heartbeat instead.
func (e *Elector) ObserveClaim(c Claim, now time.Time) (ClaimReaction, Round) {
	if c.CandidateID == e.self {
		return ClaimIgnored, Round{}
	}
	switch e.state {
	case Host:
		return ClaimAnswered, Round{}
	case Electing:
		e.claims = append(e.claims, c)
		return ClaimRecorded, Round{}
	}
	r, _ := e.Begin(now)
	e.claims = append(e.claims, c)
	return ClaimJoined, r
}

// Resolve picks the winner of round id. A stale round, or a round with no
// claims, decides nothing.
func (e *Elector) Resolve(id int, now time.Time) Resolution {
	if id != e.round || e.state != Electing {
		return Resolution{}
	}
	claims := e.claims
	e.claims = nil
	w, ok := Winner(claims)
	if !ok {
		e.state = Idle
		return Resolution{}
	}
	e.hostID = w.CandidateID
	e.lastBeat = now
	if w.CandidateID == e.self {
		e.state = Host
		return Resolution{Decided: true, WinnerID: w.CandidateID, BecameHost: true}
	}
	e.state = Follower
	return Resolution{Decided: true, WinnerID: w.CandidateID}
}

// ObserveHeartbeat records a host heartbeat. A running round is abandoned in
// favour of the beating host, and a host that hears a foreign heartbeat
// steps down.
func (e *Elector) ObserveHeartbeat(hostID string, now time.Time) BeatReaction {
	var r BeatReaction
	if hostID == "" {
		return r
	}
	if hostID == e.self {
		return r
	}
	r.NewHost = e.hostID != hostID
	e.hostID = hostID
	e.lastBeat = now
	switch e.state {
	case Electing:
		e.round++
		e.claims = nil
		r.Cancelled = true
	case Host:
		r.Relinquished = true
	}
	e.state = Follower
	return r
}

// Bootstrap runs once the grace window after joining has passed. It reports
// true when a fresh heartbeat was seen and the peer should follow.
func (e *Elector) Bootstrap(now time.Time) bool {
	return e.hostID != "" && e.hostID != e.self && now.Sub(e.lastBeat) <= FreshHeartbeat
}

// Stale is the failure detector. It clears the host and returns true once
// the last heartbeat is older than StaleAfter. Hosts never go stale.
func (e *Elector) Stale(now time.Time) bool {
	if e.state == Host || e.state == Electing || e.hostID == "" {
		return false
	}
	if now.Sub(e.lastBeat) <= StaleAfter {
		return false
	}
	e.hostID = ""
	e.state = Idle
	return true
}

// Hostless reports a peer that is past its bootstrap grace with no known
// host and no round in progress. Such a peer should start a round.
func (e *Elector) Hostless(now time.Time) bool {
	if e.state == Electing || e.state == Host || e.hostID != "" {
		return false
	}
	return now.Sub(e.joinedAt) >= BootstrapGrace
}

// HostLeft clears the host when presence shows it departed.
func (e *Elector) HostLeft(id string) bool {
	if id == "" || id != e.hostID || id == e.self {
		return false
	}
	e.hostID = ""
	e.lastBeat = time.Time{}
	if e.state == Follower {
		e.state = Idle
	}
	return true
}

// Relinquish drops host status, as when leaving a room.
func (e *Elector) Relinquish() bool {
	if e.state != Host {
		return false
	}
	e.state = Idle
	e.hostID = ""
	return true
}
