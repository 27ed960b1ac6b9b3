package room

import (
	"time"

	"github.com/hersh/towerattack/internal/mode"
	"github.com/hersh/towerattack/internal/protocol"
	"github.com/hersh/towerattack/internal/world"
)

// --- Host duties ---

// BecomeHost marks the local peer as host, initialises the world if nothing
// has been received yet, and starts the mode.
func (r *Room) BecomeHost() Effects {
	r.mu.Lock()
	defer r.mu.Unlock()
	var fx Effects
	r.host = true
	now := r.now()

	if !r.worldReady {
		r.generate()
	}
	if r.info.Mode.HasNPCs() && len(r.npcs) == 0 {
		r.npcs = world.SpawnNPCs(r.rng)
	}

	if r.match != nil && r.match.Start(now) {
		r.control = mode.Control{}
		fx.emit(protocol.ModeState{Type: r.stateType(), Match: r.match.Clone()})
	}
	r.ensureInfected(&fx)
	return fx
}

// Relinquish drops host duties. Room state is kept.
func (r *Room) Relinquish() {
	r.SetHost(false)
}

// InitWorld generates a fresh world, as the fallback when no snapshot
// arrives.
func (r *Room) InitWorld() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generate()
	if r.info.Mode.HasNPCs() {
		r.npcs = world.SpawnNPCs(r.rng)
	}
}

func (r *Room) generate() {
	r.grid = world.Generate()
	r.worldReady = true
}

func (r *Room) stateType() protocol.ModeStateType {
	if r.info.Mode == mode.KingOfTheHill {
		return protocol.KothState
	}
	return protocol.StompState
}

func (r *Room) endedType() protocol.ModeStateType {
	if r.info.Mode == mode.KingOfTheHill {
		return protocol.KothEnded
	}
	return protocol.StompEnded
}

// MatchEndIn is the delay until the host should end a running stomp match.
func (r *Room) MatchEndIn() (time.Duration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.match.Phase() != mode.Running {
		return 0, false
	}
	return r.match.UntilEnd(r.now()), true
}

// TickNPCs walks every NPC one step and broadcasts the result.
func (r *Room) TickNPCs() Effects {
	r.mu.Lock()
	defer r.mu.Unlock()
	var fx Effects
	if !r.host || !r.info.Mode.HasNPCs() || len(r.npcs) == 0 {
		return fx
	}
	for i := range r.npcs {
		r.npcs[i].Step(r.grid, r.rng)
	}
	fx.emit(protocol.NPCState{NPCs: append([]world.NPC(nil), r.npcs...), Timestamp: r.now()})
	return fx
}

// RespawnNPC revives a stomped NPC on a random tile.
func (r *Room) RespawnNPC(id string) Effects {
	r.mu.Lock()
	defer r.mu.Unlock()
	var fx Effects
	n := r.npc(id)
	if !r.host || n == nil || n.Alive {
		return fx
	}
	n.Respawn(r.grid, r.rng)
	fx.emit(protocol.NPCRespawned{NPC: *n})
	return fx
}

// NPCRespawnDelay returns how long the NPC stays down.
func (r *Room) NPCRespawnDelay(id string) time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n := r.npc(id); n != nil {
		return n.RespawnDelay()
	}
	return world.NPCRespawn
}

// TickMatch runs one scoring tick, or ends the match once its clock is up.
func (r *Room) TickMatch() Effects {
	r.mu.Lock()
	defer r.mu.Unlock()
	var fx Effects
	if !r.host || r.match.Phase() != mode.Running {
		return fx
	}
	if r.match.EndDue(r.now()) {
		r.finish(&fx)
		return fx
	}
	scoring := mode.ScoringFor(r.info.Mode)
	if scoring == nil {
		return fx
	}
	out := scoring.Tick(r.match, r.standings())
	for _, aw := range out.Awards {
		if p := r.players.get(aw.PlayerID); p != nil {
			p.Score = aw.Score
			fx.emit(protocol.ScoreUpdate{PlayerID: p.ID, Score: p.Score})
		}
	}
	if out.Control != nil {
		r.control = *out.Control
		c := *out.Control
		fx.emit(protocol.ModeState{Type: protocol.KothControl, Control: &c})
	}
	return fx
}

// EndMatch is the host's end trigger for a timed match.
func (r *Room) EndMatch() Effects {
	r.mu.Lock()
	defer r.mu.Unlock()
	var fx Effects
	if r.host {
		r.finish(&fx)
	}
	return fx
}

func (r *Room) finish(fx *Effects) {
	scoring := mode.ScoringFor(r.info.Mode)
	if scoring == nil {
		return
	}
	res, ok := r.match.Finish(r.standings())
	if !ok {
		return
	}
	out := res
	fx.emit(protocol.ModeState{Type: r.endedType(), Result: &out})
	r.systemChat(fx, scoring.EndText(res))
	r.sendBackToLobby(fx, scoring.LobbyMessage(), mode.LobbyDelay)
}

// Kick removes another player. Only the host may kick.
func (r *Room) Kick(id string) Effects {
	r.mu.Lock()
	defer r.mu.Unlock()
	var fx Effects
	p := r.players.get(id)
	if !r.host || id == r.self || p == nil {
		return fx
	}
	fx.emit(protocol.PlayerKicked{KickedID: p.ID, KickedName: p.Name})
	r.systemChat(&fx, p.Name+" was kicked by the host")
	r.players.remove(id)
	fx.RosterChanged = true
	r.ensureInfected(&fx)
	return fx
}

// hostStomps scores NPCs the player landed on in classic-stomp.
func (r *Room) hostStomps(p *Player, now time.Time, fx *Effects) {
	if r.info.Mode != mode.ClassicStomp || p.Fall.Busy() {
		return
	}
	var hit []*world.NPC
	for i := range r.npcs {
		if r.npcs[i].Stomps(p.Pos) {
			hit = append(hit, &r.npcs[i])
		}
	}
	if len(hit) == 0 {
		return
	}
	if score, ok := (mode.StompScoring{}).Stomps(r.match, now, p.Score, len(hit)); ok {
		p.Score = score
		fx.emit(protocol.ScoreUpdate{PlayerID: p.ID, Score: score})
	}
	for _, n := range hit {
		n.Alive = false
		fx.emit(protocol.NPCStomped{NPCID: n.ID, PlayerID: p.ID, PlayerName: p.Name})
		fx.NPCRespawns = append(fx.NPCRespawns, n.ID)
	}
}

// hostContact runs infection spread after p moved.
func (r *Room) hostContact(p *Player, now time.Time, fx *Effects) {
	if r.info.Mode != mode.Infection || p.Fall.Busy() {
		return
	}
	r.ensureInfected(fx)
	for _, s := range mode.Contact(carrierOf(p), r.carriers()) {
		r.infect(s, now, fx)
	}
}

func (r *Room) ensureInfected(fx *Effects) {
	if !r.host || r.info.Mode != mode.Infection {
		return
	}
	if s, ok := mode.PatientZero(r.carriers(), r.rng); ok {
		r.infect(s, r.now(), fx)
	}
}

func (r *Room) infect(s mode.Spread, now time.Time, fx *Effects) {
	p := r.players.get(s.TargetID)
	if p == nil || p.Infected {
		return
	}
	p.Infected = true
	p.InfectedAt = now
	fx.emit(protocol.InfectionSpread{
		TargetID: s.TargetID, TargetName: s.TargetName,
		SourceID: s.SourceID, SourceName: s.SourceName,
	})
	r.systemChat(fx, s.Text())
	r.checkInfectionEnd(fx)
}

func (r *Room) checkInfectionEnd(fx *Effects) {
	if r.info.Mode != mode.Infection || r.latch.Fired() {
		return
	}
	if !mode.AllInfected(r.carriers()) {
		return
	}
	r.sendBackToLobby(fx, mode.AllInfectedMessage, mode.InfectionLobbyDelay)
}

// sendBackToLobby broadcasts the one-shot return and queues it locally.
func (r *Room) sendBackToLobby(fx *Effects, message string, delay time.Duration) {
	if !r.latch.Fire(r.info.Mode) {
		return
	}
	ms := delay.Milliseconds()
	fx.emit(protocol.ReturnToLobby{Message: message, DelayMs: &ms})
	r.noteLocal(message)
	fx.Return = &mode.LobbyReturn{Message: message, Delay: delay}
}
