package world

import (
	"math/rand"
	"time"
)

const (
	FallAnimation   = 600 * time.Millisecond
	RespawnCooldown = 2000 * time.Millisecond
)

type FallPhase int

const (
	Grounded FallPhase = iota
	Falling
	Respawning
)

func (p FallPhase) String() string {
	switch p {
	case Falling:
		return "falling"
	case Respawning:
		return "respawning"
	}
	return "grounded"
}

// Fall tracks a player's fall-off-edge cycle.
type Fall struct {
	Phase     FallPhase
	StartedAt time.Time
	RespawnAt time.Time
	Direction Direction
}

// Busy reports whether movement, stomps and infection are suppressed.
func (f *Fall) Busy() bool {
	return f.Phase != Grounded
}

// Trigger starts a fall. It is a no-op unless the player is grounded.
func (f *Fall) Trigger(now time.Time, dir Direction) bool {
	if f.Phase != Grounded {
		return false
	}
	f.Phase = Falling
	f.StartedAt = now
	f.Direction = dir
	return true
}

// Advance moves the cycle forward. Only the owner leaves Respawning; the
// returned bool is true when it does, and the caller must pick a spawn tile.
func (f *Fall) Advance(now time.Time, owner bool) bool {
	switch f.Phase {
	case Falling:
		if now.Sub(f.StartedAt) >= FallAnimation {
			f.Phase = Respawning
			f.RespawnAt = now.Add(RespawnCooldown)
		}
	case Respawning:
		if owner && !now.Before(f.RespawnAt) {
			f.Reset()
			return true
		}
	}
	return false
}

// Reset returns the player to Grounded, as when a remote player's next
// move arrives.
func (f *Fall) Reset() {
	*f = Fall{}
}

// SpawnPoint picks a random tile with x,z in [5,15) standing on the ground.
func SpawnPoint(g *Grid, rng *rand.Rand) Position {
	x := rng.Intn(10) + 5
	z := rng.Intn(10) + 5
	return Position{X: x, Y: g.GroundLevel(x, z), Z: z}
}
