package room

import (
	"time"

	"github.com/hersh/towerattack/internal/mode"
	"github.com/hersh/towerattack/internal/protocol"
	"github.com/hersh/towerattack/internal/world"
)

// Apply mirrors an inbound broadcast into the room. When the local peer is
// host, moves also run stomp and infection checks, whose results come back
// as broadcasts in the returned Effects.
func (r *Room) Apply(ev protocol.Event) Effects {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := &applier{r: r, now: r.now()}
	ev.Accept(a)
	return a.fx
}

type applier struct {
	r   *Room
	now time.Time
	fx  Effects
}

var _ protocol.Handler = (*applier)(nil)

func (a *applier) OnPlayerMove(m protocol.PlayerMove) {
	r := a.r
	if m.PlayerID == "" || m.PlayerID == r.self {
		return
	}
	p := r.players.get(m.PlayerID)
	if p == nil {
		p = r.players.add(m.PlayerID, "Player", "#FFFFFF")
		a.fx.RosterChanged = true
	}
	if p.Fall.Busy() {
		p.Fall.Reset()
	}
	p.PreviousY = p.Pos.Y
	p.Pos = world.Position{X: m.X, Y: m.Y, Z: m.Z}
	p.Direction = m.Direction
	// Scores and infection are host-owned.
	if m.Score != nil && !r.host {
		p.Score = *m.Score
	}
	if m.Infected != nil && *m.Infected && !r.host {
		p.Infected = true
	}
	if r.host {
		r.hostStomps(p, a.now, &a.fx)
		r.hostContact(p, a.now, &a.fx)
	}
}

func (a *applier) OnBlockPlaced(b protocol.BlockPlaced) {
	a.r.grid.Place(world.Block{X: b.X, Y: b.Y, Z: b.Z, Color: b.Color, PlacedBy: b.PlacedBy})
}

func (a *applier) OnBlockRemoved(b protocol.BlockRemoved) {
	a.r.grid.Remove(b.X, b.Y, b.Z)
}

func (a *applier) OnChatMessage(m protocol.ChatMessage) {
	a.r.addChat(m)
}

func (a *applier) OnPlayerPushed(m protocol.PlayerPushed) {
	p := a.r.players.get(m.VictimID)
	if p == nil {
		return
	}
	p.PreviousY = p.Pos.Y
	p.Pos = world.Position{X: m.NewX, Y: m.NewY, Z: m.NewZ}
}

func (a *applier) OnPlayerFell(m protocol.PlayerFell) {
	p := a.r.players.get(m.PlayerID)
	if p == nil || p.Fall.Busy() {
		return
	}
	p.Pos = world.Position{X: m.X, Y: m.Y, Z: m.Z}
	p.Fall.Trigger(a.now, m.FallDirection)
}

func (a *applier) OnPlayerNameChange(m protocol.PlayerNameChange) {
	if m.PlayerID == a.r.self || m.NewName == "" {
		return
	}
	if p := a.r.players.get(m.PlayerID); p != nil {
		p.Name = m.NewName
	}
}

// Election and sync messages are handled by the peer.
func (a *applier) OnHostClaim(protocol.HostClaim)         {}
func (a *applier) OnHostHeartbeat(protocol.HostHeartbeat) {}
func (a *applier) OnStateRequest(protocol.StateRequest)   {}
func (a *applier) OnStateSnapshot(protocol.StateSnapshot) {}

func (a *applier) OnNPCState(m protocol.NPCState) {
	if a.r.host {
		return
	}
	for _, n := range m.NPCs {
		a.r.upsertNPC(n)
	}
}

func (a *applier) OnNPCStomped(m protocol.NPCStomped) {
	if n := a.r.npc(m.NPCID); n != nil {
		n.Alive = false
	}
}

func (a *applier) OnNPCRespawned(m protocol.NPCRespawned) {
	if m.NPC.ID == "" {
		return
	}
	a.r.upsertNPC(m.NPC)
}

func (a *applier) OnScoreUpdate(m protocol.ScoreUpdate) {
	if p := a.r.players.get(m.PlayerID); p != nil {
		p.Score = m.Score
	}
}

func (a *applier) OnModeState(m protocol.ModeState) {
	r := a.r
	switch m.Type {
	case protocol.StompState, protocol.KothState:
		if m.Match == nil || !r.info.Mode.Timed() {
			return
		}
		r.match = m.Match.Clone()
		if m.Type == protocol.KothState {
			r.control = mode.Control{ControllerID: m.Match.ControllerID}
		}
	case protocol.KothControl:
		if m.Control != nil {
			r.control = *m.Control
		}
	case protocol.StompEnded, protocol.KothEnded:
		if m.Result == nil || r.match == nil {
			return
		}
		res := *m.Result
		r.match.Ended = true
		r.match.Winner = &res
	}
}

func (a *applier) OnReturnToLobby(m protocol.ReturnToLobby) {
	r := a.r
	if !r.latch.Fire(r.info.Mode) {
		return
	}
	lr := mode.NormalizeReturn(m.Message, m.DelayMs)
	r.noteLocal(lr.Message)
	a.fx.Return = &lr
}

func (a *applier) OnInfectionSpread(m protocol.InfectionSpread) {
	p := a.r.players.get(m.TargetID)
	if p == nil || p.Infected {
		return
	}
	p.Infected = true
	p.InfectedAt = a.now
}

func (a *applier) OnPlayerKicked(m protocol.PlayerKicked) {
	r := a.r
	if m.KickedID == r.self {
		a.fx.Kicked = true
		return
	}
	if r.players.get(m.KickedID) != nil {
		r.players.remove(m.KickedID)
		a.fx.RosterChanged = true
	}
}
