package room

import (
	"github.com/hersh/towerattack/internal/mode"
	"github.com/hersh/towerattack/internal/protocol"
	"github.com/hersh/towerattack/internal/world"
)

// Snapshot copies the replicated room state for a syncing peer.
func (r *Room) Snapshot() protocol.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chat := r.chat
	if len(chat) > SnapshotChat {
		chat = chat[len(chat)-SnapshotChat:]
	}
	s := protocol.Snapshot{
		Blocks:      r.grid.Blocks(),
		NPCs:        append([]world.NPC{}, r.npcs...),
		ChatHistory: append([]protocol.ChatMessage{}, chat...),
		GameMode:    r.info.Mode,
	}
	switch r.info.Mode {
	case mode.ClassicStomp:
		s.Stomp = r.match.Clone()
	case mode.KingOfTheHill:
		s.Koth = r.match.Clone()
		if s.Koth != nil {
			s.Koth.ControllerID = r.control.ControllerID
			s.Koth.Contested = r.control.Contested
		}
	}
	for _, p := range r.players.all() {
		s.Players = append(s.Players, protocol.RosterEntry{
			ID:         p.ID,
			Name:       p.Name,
			Color:      p.Color,
			X:          p.Pos.X,
			Y:          p.Pos.Y,
			Z:          p.Pos.Z,
			Direction:  p.Direction,
			Score:      p.Score,
			Infected:   p.Infected,
			InfectedAt: p.InfectedAt,
		})
	}
	return s
}

// ApplySnapshot adopts a host snapshot. Blocks, NPCs and mode state are
// replaced wholesale; chat is merged by id. The local player keeps its own
// position and direction and takes only score and infection. Applying the
// same snapshot twice leaves the room unchanged.
func (r *Room) ApplySnapshot(s protocol.Snapshot) Effects {
	r.mu.Lock()
	defer r.mu.Unlock()
	var fx Effects

	r.grid.Replace(s.Blocks)
	r.worldReady = true
	if s.NPCs != nil {
		r.npcs = append([]world.NPC{}, s.NPCs...)
	}
	for _, m := range s.ChatHistory {
		r.addChat(m)
	}

	var m *mode.Match
	switch r.info.Mode {
	case mode.ClassicStomp:
		m = s.Stomp
	case mode.KingOfTheHill:
		m = s.Koth
	}
	if m != nil {
		r.match = m.Clone()
		if r.info.Mode == mode.KingOfTheHill {
			r.control = mode.Control{ControllerID: m.ControllerID, Contested: m.Contested}
		}
	}

	for _, e := range s.Players {
		if e.ID == "" {
			continue
		}
		if e.ID == r.self {
			me := r.players.get(r.self)
			me.Score = e.Score
			me.Infected = e.Infected
			me.InfectedAt = e.InfectedAt
			continue
		}
		p := r.players.get(e.ID)
		if p == nil {
			p = r.players.add(e.ID, e.Name, e.Color)
			fx.RosterChanged = true
		}
		p.Name = e.Name
		p.Color = e.Color
		p.Pos = world.Position{X: e.X, Y: e.Y, Z: e.Z}
		p.PreviousY = e.Y
		p.Direction = e.Direction
		p.Score = e.Score
		p.Infected = e.Infected
		p.InfectedAt = e.InfectedAt
		p.Fall.Reset()
	}
	return fx
}
