package room

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hersh/towerattack/internal/protocol"
	"github.com/hersh/towerattack/internal/world"
)

// --- Local player actions ---

// Move steps the local player one tile in dir. A blocked step still turns
// the player. Walking off the edge starts a fall in modes that allow it.
func (r *Room) Move(dir world.Direction) Effects {
	r.mu.Lock()
	defer r.mu.Unlock()
	var fx Effects
	now := r.now()
	me := r.players.get(r.self)
	if me == nil || me.Fall.Busy() || !dir.Valid() {
		return fx
	}
	if !r.inputLimit.AllowN(now, 1) {
		return fx
	}

	me.Direction = dir
	next := me.Pos.Step(dir)
	if !world.InBounds(next.X, next.Z) {
		if r.info.Mode.EdgeFalls() && me.Fall.Trigger(now, dir) {
			fx.emit(protocol.PlayerFell{PlayerID: me.ID, X: me.Pos.X, Y: me.Pos.Y, Z: me.Pos.Z, FallDirection: dir})
			return fx
		}
		r.sendMove(&fx, me, now)
		return fx
	}

	y, ok := r.grid.CanMoveTo(me.Pos.Y, next.X, next.Z)
	if !ok {
		r.sendMove(&fx, me, now)
		return fx
	}
	me.PreviousY = me.Pos.Y
	me.Pos = world.Position{X: next.X, Y: y, Z: next.Z}
	if r.host {
		r.hostStomps(me, now, &fx)
		r.hostContact(me, now, &fx)
	}
	r.sendMove(&fx, me, now)
	return fx
}

// Rotate turns the local player a quarter turn.
func (r *Room) Rotate(left bool) Effects {
	r.mu.Lock()
	defer r.mu.Unlock()
	var fx Effects
	now := r.now()
	me := r.players.get(r.self)
	if me == nil || me.Fall.Busy() || !r.inputLimit.AllowN(now, 1) {
		return fx
	}
	if left {
		me.Direction = me.Direction.Left()
	} else {
		me.Direction = me.Direction.Right()
	}
	r.sendMove(&fx, me, now)
	return fx
}

// PlaceBlock builds on the column the local player faces, in the selected
// color.
func (r *Room) PlaceBlock() Effects {
	r.mu.Lock()
	defer r.mu.Unlock()
	var fx Effects
	me := r.players.get(r.self)
	if me == nil || me.Fall.Busy() {
		return fx
	}
	x, y, z, ok := r.grid.PlacementTarget(me.Pos.X, me.Pos.Z, me.Direction)
	if !ok {
		return fx
	}
	b := world.Block{X: x, Y: y, Z: z, Color: world.Palette[r.color], PlacedBy: r.self}
	if !r.grid.Place(b) {
		return fx
	}
	fx.emit(protocol.BlockPlaced{X: x, Y: y, Z: z, Color: b.Color, PlacedBy: r.self})
	return fx
}

// RemoveBlock takes the top block off the column the local player faces.
func (r *Room) RemoveBlock() Effects {
	r.mu.Lock()
	defer r.mu.Unlock()
	var fx Effects
	me := r.players.get(r.self)
	if me == nil || me.Fall.Busy() {
		return fx
	}
	b, ok := r.grid.RemovalTarget(me.Pos.X, me.Pos.Z, me.Direction)
	if !ok || !r.grid.Remove(b.X, b.Y, b.Z) {
		return fx
	}
	fx.emit(protocol.BlockRemoved{X: b.X, Y: b.Y, Z: b.Z})
	return fx
}

// Push shoves the player standing directly ahead up to two tiles. The
// cooldown is spent even when nobody is there.
func (r *Room) Push() Effects {
	r.mu.Lock()
	defer r.mu.Unlock()
	var fx Effects
	now := r.now()
	me := r.players.get(r.self)
	if me == nil || me.Fall.Busy() {
		return fx
	}
	if !me.LastPushAt.IsZero() && now.Sub(me.LastPushAt) < world.PushCooldown {
		return fx
	}
	me.LastPushAt = now

	ahead := me.Pos.Step(me.Direction)
	victim := r.players.occupant(ahead.X, ahead.Z, r.self)
	if victim == nil || victim.Fall.Busy() {
		return fx
	}
	occupied := func(x, z int) bool {
		return r.players.occupant(x, z, victim.ID) != nil
	}
	res := world.ResolvePush(r.grid, victim.Pos, me.Direction, r.info.Mode.EdgeFalls(), occupied)
	if res.Moved() {
		victim.PreviousY = victim.Pos.Y
		victim.Pos = res.To
		fx.emit(protocol.PlayerPushed{
			AttackerID: me.ID, VictimID: victim.ID,
			NewX: res.To.X, NewY: res.To.Y, NewZ: res.To.Z,
			Tiles: res.Tiles,
		})
	}
	if res.FellOffEdge && victim.Fall.Trigger(now, me.Direction) {
		at := victim.Pos
		fx.emit(protocol.PlayerFell{PlayerID: victim.ID, X: at.X, Y: at.Y, Z: at.Z, FallDirection: me.Direction})
	}
	return fx
}

// SelectColor picks the palette entry used for new blocks.
func (r *Room) SelectColor(i int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i >= 0 && i < len(world.Palette) {
		r.color = i
	}
}

// Chat sends a player chat line.
func (r *Room) Chat(text string) Effects {
	r.mu.Lock()
	defer r.mu.Unlock()
	var fx Effects
	text = truncate(strings.TrimSpace(text), MaxChatLen)
	me := r.players.get(r.self)
	if text == "" || me == nil {
		return fx
	}
	msg := protocol.ChatMessage{
		ID:          uuid.NewString(),
		Type:        protocol.ChatPlayer,
		Text:        text,
		Timestamp:   r.now(),
		PlayerID:    me.ID,
		PlayerName:  me.Name,
		PlayerColor: me.Color,
	}
	r.addChat(msg)
	fx.emit(msg)
	return fx
}

// Rename changes the local player's display name.
func (r *Room) Rename(name string) Effects {
	r.mu.Lock()
	defer r.mu.Unlock()
	var fx Effects
	name = truncate(strings.TrimSpace(name), MaxNameLen)
	me := r.players.get(r.self)
	if name == "" || me == nil || name == me.Name {
		return fx
	}
	old := me.Name
	me.Name = name
	fx.emit(protocol.PlayerNameChange{PlayerID: me.ID, OldName: old, NewName: name})
	r.systemChat(&fx, old+" is now known as "+name)
	fx.Retrack = true
	return fx
}

// JoinAnnouncement tells the room the local player arrived.
func (r *Room) JoinAnnouncement() Effects {
	r.mu.Lock()
	defer r.mu.Unlock()
	var fx Effects
	if me := r.players.get(r.self); me != nil {
		r.systemChat(&fx, me.Name+" joined the game")
	}
	return fx
}

// Tick advances fall cycles and flushes a throttled move. The local player
// respawns on a random tile once its cooldown has run.
func (r *Room) Tick() Effects {
	r.mu.Lock()
	defer r.mu.Unlock()
	var fx Effects
	now := r.now()
	for _, p := range r.players.all() {
		owner := p.ID == r.self
		if p.Fall.Advance(now, owner) && owner {
			p.Pos = world.SpawnPoint(r.grid, r.rng)
			p.PreviousY = p.Pos.Y
			r.movePending = true
		}
	}
	if r.movePending {
		if me := r.players.get(r.self); me != nil {
			r.sendMove(&fx, me, now)
		}
	}
	return fx
}

// sendMove broadcasts the local position, or marks it pending while the
// broadcast limiter is saturated.
func (r *Room) sendMove(fx *Effects, me *Player, now time.Time) {
	if !r.sendLimit.AllowN(now, 1) {
		r.movePending = true
		return
	}
	r.announce(fx, me)
}

// Settle runs once the world is known. A spawn picked on the bare floor is
// moved off any block the world put there, and the local position is sent
// so other peers replace their presence placeholder.
func (r *Room) Settle() Effects {
	r.mu.Lock()
	defer r.mu.Unlock()
	var fx Effects
	me := r.players.get(r.self)
	if me == nil || !r.worldReady {
		return fx
	}
	if !me.Fall.Busy() && r.grid.Has(me.Pos.X, me.Pos.Y, me.Pos.Z) {
		me.Pos = world.SpawnPoint(r.grid, r.rng)
		me.PreviousY = me.Pos.Y
	}
	r.announce(&fx, me)
	return fx
}

func (r *Room) announce(fx *Effects, me *Player) {
	r.movePending = false
	score, infected := me.Score, me.Infected
	fx.emit(protocol.PlayerMove{
		PlayerID:  me.ID,
		X:         me.Pos.X,
		Y:         me.Pos.Y,
		Z:         me.Pos.Z,
		Direction: me.Direction,
		PreviousY: me.PreviousY,
		Score:     &score,
		Infected:  &infected,
	})
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
