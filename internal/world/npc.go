package world

import (
	"math/rand"
	"time"
)

const (
	NPCTick    = 500 * time.Millisecond
	NPCRespawn = 5000 * time.Millisecond

	npcMoveAttempts = 8
	npcTurnChance   = 0.2
)

// NPC is a host-simulated creature that players stomp in classic-stomp.
type NPC struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	X              int       `json:"x"`
	Y              int       `json:"y"`
	Z              int       `json:"z"`
	Color          string    `json:"color"`
	SecondaryColor string    `json:"secondaryColor"`
	Type           string    `json:"type"`
	Speed          int       `json:"speed"`
	Direction      Direction `json:"direction"`
	Alive          bool      `json:"isAlive"`
	RespawnMs      int       `json:"respawnTime"`
	AnimationFrame int       `json:"animationFrame"`
}

type npcKind struct {
	id, name, color, secondary string
	speed                      int
}

var npcKinds = []npcKind{
	{id: "slime", name: "Goopy", color: "#7CFC00", secondary: "#32CD32", speed: 2000},
	{id: "robot", name: "Beep-Boop", color: "#708090", secondary: "#FF4500", speed: 1200},
	{id: "mushroom", name: "Shroomie", color: "#FF6347", secondary: "#FFE4B5", speed: 2500},
}

// SpawnNPCs returns the starting roster of creatures.
func SpawnNPCs(rng *rand.Rand) []NPC {
	out := make([]NPC, 0, len(npcKinds))
	for i, k := range npcKinds {
		out = append(out, NPC{
			ID:             k.id,
			Name:           k.name,
			X:              8 + i*2,
			Y:              1,
			Z:              10 + i,
			Color:          k.color,
			SecondaryColor: k.secondary,
			Type:           k.id,
			Speed:          k.speed,
			Direction:      Direction(rng.Intn(4)),
			Alive:          true,
			RespawnMs:      int(NPCRespawn / time.Millisecond),
		})
	}
	return out
}

// Step walks the NPC one tile, turning randomly when blocked.
func (n *NPC) Step(g *Grid, rng *rand.Rand) {
	if !n.Alive {
		return
	}
	for attempt := 0; attempt < npcMoveAttempts; attempt++ {
		dx, dz := n.Direction.Delta()
		ny, ok := g.CanMoveTo(n.Y, n.X+dx, n.Z+dz)
		if ok {
			n.X += dx
			n.Z += dz
			n.Y = ny
			if rng.Float64() < npcTurnChance {
				n.Direction = Direction(rng.Intn(4))
			}
			break
		}
		n.Direction = Direction(rng.Intn(4))
	}
	n.AnimationFrame = (n.AnimationFrame + 1) % 4
}

// Respawn revives the NPC on a random tile with x,z in [3,17).
func (n *NPC) Respawn(g *Grid, rng *rand.Rand) {
	n.Alive = true
	n.X = rng.Intn(14) + 3
	n.Z = rng.Intn(14) + 3
	n.Y = g.GroundLevel(n.X, n.Z)
	n.Direction = Direction(rng.Intn(4))
}

// RespawnDelay is how long a stomped NPC stays down.
func (n *NPC) RespawnDelay() time.Duration {
	if n.RespawnMs <= 0 {
		return NPCRespawn
	}
	return time.Duration(n.RespawnMs) * time.Millisecond
}

// Stomps reports whether a player at p lands on the NPC.
func (n *NPC) Stomps(p Position) bool {
	return n.Alive && p.X == n.X && p.Z == n.Z && p.Y >= n.Y
}
