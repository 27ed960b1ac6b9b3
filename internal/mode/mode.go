// Package mode holds the game-mode rules the room host advances: timed
// matches scored by stomps or hill control, infection spread and the shared
// return-to-lobby sequence.
package mode

import "strings"

// Kind is a room's game mode. It never changes for the life of a room.
type Kind string

const (
	Freeplay      Kind = "freeplay"
	ClassicStomp  Kind = "classic-stomp"
	KingOfTheHill Kind = "king-of-the-hill"
	Infection     Kind = "infection"
)

const (
	DefaultMinutes = 3
	MinMinutes     = 1
	MaxMinutes     = 5
)

// Kinds lists every mode in menu order.
var Kinds = []Kind{Freeplay, ClassicStomp, KingOfTheHill, Infection}

// Parse maps loose spellings ("King of the Hill", "classic_stomp") onto a
// Kind. Anything unrecognised is freeplay.
func Parse(s string) Kind {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", "-", " ", "-").Replace(norm)
	switch norm {
	case "classic-stomp", "stomp", "classic":
		return ClassicStomp
	case "king-of-the-hill", "koth", "hill":
		return KingOfTheHill
	case "infection", "infect":
		return Infection
	}
	return Freeplay
}

func (k Kind) Title() string {
	switch k {
	case ClassicStomp:
		return "Classic Stomp"
	case KingOfTheHill:
		return "King of the Hill"
	case Infection:
		return "Infection"
	}
	return "Free Build"
}

// EdgeFalls reports whether players can fall off the world edge.
func (k Kind) EdgeFalls() bool {
	return k == ClassicStomp || k == KingOfTheHill || k == Infection
}

// HasNPCs reports whether the host simulates creatures.
func (k Kind) HasNPCs() bool {
	return k == ClassicStomp
}

// Timed reports whether the mode runs on a match clock.
func (k Kind) Timed() bool {
	return k == ClassicStomp || k == KingOfTheHill
}

// Scored reports whether players carry a score.
func (k Kind) Scored() bool {
	return k.Timed()
}

// ClampMinutes bounds a match length to [MinMinutes, MaxMinutes]. Zero means
// the default.
func ClampMinutes(n int) int {
	if n == 0 {
		return DefaultMinutes
	}
	if n < MinMinutes {
		return MinMinutes
	}
	if n > MaxMinutes {
		return MaxMinutes
	}
	return n
}
