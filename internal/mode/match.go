package mode

import (
	"fmt"
	"math"
	"time"
)

const (
	// EndGrace delays the end trigger past EndsAt to absorb clock skew.
	EndGrace   = 50 * time.Millisecond
	HillTick   = time.Second
	LobbyDelay = 5 * time.Second
)

type Phase int

const (
	NotStarted Phase = iota
	Running
	Ended
)

func (p Phase) String() string {
	switch p {
	case Running:
		return "running"
	case Ended:
		return "ended"
	}
	return "not-started"
}

// Hill is the capture zone in king-of-the-hill.
type Hill struct {
	X      int     `json:"x"`
	Z      int     `json:"z"`
	Radius float64 `json:"radius"`
}

var DefaultHill = Hill{X: 10, Z: 10, Radius: 2}

// Contains reports whether column (x,z) is within the hill radius.
func (h Hill) Contains(x, z int) bool {
	dx, dz := float64(x-h.X), float64(z-h.Z)
	return math.Sqrt(dx*dx+dz*dz) <= h.Radius
}

// Match is the replicated state of a timed match. Only the host calls
// Start and Finish; every peer adopts the broadcast copy wholesale.
type Match struct {
	Duration     time.Duration `json:"duration"`
	StartedAt    time.Time     `json:"startedAt"`
	EndsAt       time.Time     `json:"endsAt"`
	Ended        bool          `json:"ended"`
	Winner       *Result       `json:"winner,omitempty"`
	Hill         *Hill         `json:"hill,omitempty"`
	ControllerID string        `json:"controllerId,omitempty"`
	Contested    bool          `json:"contested,omitempty"`
}

// NewMatch returns a not-started match for timed kinds and nil otherwise.
func NewMatch(kind Kind, minutes int) *Match {
	if !kind.Timed() {
		return nil
	}
	m := &Match{Duration: time.Duration(ClampMinutes(minutes)) * time.Minute}
	if kind == KingOfTheHill {
		h := DefaultHill
		m.Hill = &h
	}
	return m
}

func (m *Match) Phase() Phase {
	switch {
	case m == nil || m.StartedAt.IsZero():
		return NotStarted
	case m.Ended:
		return Ended
	}
	return Running
}

// Start begins the clock. It is a no-op once the match has started.
func (m *Match) Start(now time.Time) bool {
	if m.Phase() != NotStarted {
		return false
	}
	m.StartedAt = now
	m.EndsAt = now.Add(m.Duration)
	m.Ended = false
	m.Winner = nil
	m.ControllerID = ""
	m.Contested = false
	return true
}

// AcceptsScore reports whether score changes still count.
func (m *Match) AcceptsScore(now time.Time) bool {
	return m.Phase() == Running && now.Before(m.EndsAt)
}

// EndDue reports whether a running match has reached EndsAt.
func (m *Match) EndDue(now time.Time) bool {
	return m.Phase() == Running && !now.Before(m.EndsAt)
}

// UntilEnd is how long the host waits before firing the end trigger.
func (m *Match) UntilEnd(now time.Time) time.Duration {
	d := m.EndsAt.Add(EndGrace).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Remaining is the clock shown to players.
func (m *Match) Remaining(now time.Time) time.Duration {
	if m.Phase() != Running {
		return 0
	}
	d := m.EndsAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Finish ends a running match and records the result. The second return is
// false when the match was not running.
func (m *Match) Finish(roster []Standing) (Result, bool) {
	if m.Phase() != Running {
		return Result{}, false
	}
	m.Ended = true
	r := DecideWinners(roster)
	m.Winner = &r
	return r, true
}

func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	if m.Winner != nil {
		w := m.Winner.clone()
		c.Winner = &w
	}
	if m.Hill != nil {
		h := *m.Hill
		c.Hill = &h
	}
	return &c
}

// Standing is a player as the scoring rules see it.
type Standing struct {
	ID    string
	Name  string
	X     int
	Z     int
	Score int
	Busy  bool
}

type Winner struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Result is the outcome of a timed match.
type Result struct {
	WinnerID   string   `json:"winnerId,omitempty"`
	WinnerName string   `json:"winnerName,omitempty"`
	Score      int      `json:"score"`
	Tie        bool     `json:"tie"`
	Winners    []Winner `json:"winners,omitempty"`
}

func (r Result) clone() Result {
	if r.Winners != nil {
		r.Winners = append([]Winner(nil), r.Winners...)
	}
	return r
}

// DecideWinners finds the top score. A single holder wins outright; several
// holders tie and are all listed. An empty roster is a scoreless tie.
func DecideWinners(roster []Standing) Result {
	if len(roster) == 0 {
		return Result{Tie: true}
	}
	best := roster[0].Score
	for _, s := range roster[1:] {
		if s.Score > best {
			best = s.Score
		}
	}
	var top []Winner
	for _, s := range roster {
		if s.Score == best {
			top = append(top, Winner{ID: s.ID, Name: s.Name})
		}
	}
	if len(top) == 1 {
		return Result{WinnerID: top[0].ID, WinnerName: top[0].Name, Score: best}
	}
	return Result{Score: best, Tie: true, Winners: top}
}

// Award sets a player's score to a new total.
type Award struct {
	PlayerID string
	Score    int
}

// Control is a hill controller change.
type Control struct {
	ControllerID string `json:"controllerId"`
	Contested    bool   `json:"contested"`
}

// Outcome is what one scoring tick produced.
type Outcome struct {
	Awards  []Award
	Control *Control
}

// Scoring is the per-mode part of a timed match.
type Scoring interface {
	Kind() Kind
	// Tick runs every HillTick while the match is running.
	Tick(m *Match, roster []Standing) Outcome
	EndText(r Result) string
	LobbyMessage() string
}

// ScoringFor returns the strategy for a timed kind, nil otherwise.
func ScoringFor(k Kind) Scoring {
	switch k {
	case ClassicStomp:
		return StompScoring{}
	case KingOfTheHill:
		return HillScoring{}
	}
	return nil
}

// StompScoring scores NPC stomps. Nothing happens on ticks.
type StompScoring struct{}

func (StompScoring) Kind() Kind { return ClassicStomp }

func (StompScoring) Tick(*Match, []Standing) Outcome { return Outcome{} }

// Stomps adds n to current if the match still accepts score.
func (StompScoring) Stomps(m *Match, now time.Time, current, n int) (int, bool) {
	if n <= 0 || !m.AcceptsScore(now) {
		return current, false
	}
	return current + n, true
}

func (StompScoring) EndText(r Result) string {
	if r.Tie {
		return fmt.Sprintf("Time! Tie at %d points.", r.Score)
	}
	return fmt.Sprintf("Time! %s wins with %d points!", r.WinnerName, r.Score)
}

func (StompScoring) LobbyMessage() string {
	return "Classic Stomp ended. Returning to lobby..."
}
