package room

import (
	"sort"
	"time"

	"github.com/hersh/towerattack/internal/world"
)

// Player is one member of the room as this peer sees it. Each peer owns its
// own position, direction and name; everything else mirrors broadcasts.
type Player struct {
	ID         string
	Name       string
	Color      string
	Pos        world.Position
	PreviousY  int
	Direction  world.Direction
	Score      int
	Infected   bool
	InfectedAt time.Time
	LastPushAt time.Time
	Fall       world.Fall
}

type roster struct {
	players map[string]*Player
}

func newRoster() *roster {
	return &roster{
		players: make(map[string]*Player),
	}
}

func (l *roster) add(id, name, color string) *Player {
	p := &Player{
		ID:    id,
		Name:  name,
		Color: color,
	}
	l.players[id] = p
	return p
}

func (l *roster) remove(id string) {
	delete(l.players, id)
}

func (l *roster) get(id string) *Player {
	return l.players[id]
}

func (l *roster) count() int {
	return len(l.players)
}

// all returns players ordered by id so iteration is deterministic.
func (l *roster) all() []*Player {
	players := make([]*Player, 0, len(l.players))
	for _, p := range l.players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	return players
}

// occupant returns a player other than except standing on column (x,z).
func (l *roster) occupant(x, z int, except ...string) *Player {
	for _, p := range l.all() {
		skip := false
		for _, id := range except {
			if p.ID == id {
				skip = true
				break
			}
		}
		if !skip && p.Pos.X == x && p.Pos.Z == z {
			return p
		}
	}
	return nil
}
