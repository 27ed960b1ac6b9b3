// Package room is the replicated state every peer keeps for the room it is
// in: players, blocks, NPCs, chat and mode state. All mutation goes through
// Room methods, which return the broadcasts and side effects the caller must
// carry out.
package room

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hersh/towerattack/internal/mode"
	"github.com/hersh/towerattack/internal/protocol"
	"github.com/hersh/towerattack/internal/world"
)

const (
	MaxPlayers   = 10
	ChatLimit    = 100
	SnapshotChat = 50
	MaxChatLen   = 500
	MaxNameLen   = 20

	MoveInterval          = 150 * time.Millisecond
	MoveBroadcastInterval = 50 * time.Millisecond
)

// Info identifies a room. Mode is fixed for the room's lifetime.
type Info struct {
	ID         string
	Name       string
	Mode       mode.Kind
	MaxPlayers int
	Minutes    int
	CreatedAt  time.Time
}

// Effects is what a mutation asks of its caller.
type Effects struct {
	Broadcast []protocol.Event
	// Kicked: the local player was removed by the host.
	Kicked bool
	// Return: leave the room after Return.Delay.
	Return *mode.LobbyReturn
	// Retrack: presence metadata changed.
	Retrack bool
	// NPCRespawns lists stomped NPC ids the host must revive later.
	NPCRespawns []string
	// Departed lists players presence no longer reports.
	Departed []string
	// RosterChanged: the player count changed.
	RosterChanged bool
}

func (fx *Effects) emit(evs ...protocol.Event) {
	fx.Broadcast = append(fx.Broadcast, evs...)
}

// Empty reports whether the effects require no action.
func (fx Effects) Empty() bool {
	return len(fx.Broadcast) == 0 && !fx.Kicked && fx.Return == nil && !fx.Retrack &&
		len(fx.NPCRespawns) == 0 && len(fx.Departed) == 0 && !fx.RosterChanged
}

type Option func(*Room)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Room) { r.now = now }
}

// WithRand seeds spawn points, NPC walks and patient-zero picks.
func WithRand(rng *rand.Rand) Option {
	return func(r *Room) { r.rng = rng }
}

// Room is one peer's copy of a room.
type Room struct {
	mu sync.RWMutex

	info       Info
	self       string
	players    *roster
	grid       *world.Grid
	worldReady bool
	npcs       []world.NPC
	chat       []protocol.ChatMessage
	seen       map[string]struct{}
	match      *mode.Match
	control    mode.Control
	latch      mode.Latch
	host       bool
	color      int

	rng         *rand.Rand
	now         func() time.Time
	inputLimit  *rate.Limiter
	sendLimit   *rate.Limiter
	movePending bool
}

// New creates the room with the local player standing on a random spawn
// tile.
func New(info Info, me protocol.PlayerMeta, opts ...Option) *Room {
	if info.MaxPlayers <= 0 {
		info.MaxPlayers = MaxPlayers
	}
	info.Minutes = mode.ClampMinutes(info.Minutes)
	r := &Room{
		info:       info,
		self:       me.PlayerID,
		players:    newRoster(),
		grid:       world.NewGrid(),
		seen:       make(map[string]struct{}),
		match:      mode.NewMatch(info.Mode, info.Minutes),
		now:        time.Now,
		inputLimit: rate.NewLimiter(rate.Every(MoveInterval), 1),
		sendLimit:  rate.NewLimiter(rate.Every(MoveBroadcastInterval), 1),
	}
	for _, o := range opts {
		o(r)
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if r.info.CreatedAt.IsZero() {
		r.info.CreatedAt = r.now()
	}
	for i, c := range world.Palette {
		if c == me.Color {
			r.color = i
		}
	}

	p := r.players.add(me.PlayerID, me.Name, me.Color)
	p.Pos = world.SpawnPoint(r.grid, r.rng)
	p.PreviousY = p.Pos.Y
	return r
}

func (r *Room) Info() Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.info
}

func (r *Room) SelfID() string {
	return r.self
}

// SetHost records whether the local peer currently hosts the room.
func (r *Room) SetHost(host bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.host = host
}

func (r *Room) IsHost() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.host
}

// WorldReady reports whether the block grid has been generated or received.
func (r *Room) WorldReady() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.worldReady
}

func (r *Room) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.players.count()
}

// Player returns a copy of one player.
func (r *Room) Player(id string) (Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p := r.players.get(id)
	if p == nil {
		return Player{}, false
	}
	return *p, true
}

// Me returns a copy of the local player.
func (r *Room) Me() Player {
	p, _ := r.Player(r.self)
	return p
}

// PresenceMeta is what the local peer tracks on the room channel.
func (r *Room) PresenceMeta() protocol.PlayerMeta {
	r.mu.RLock()
	defer r.mu.RUnlock()
	me := r.players.get(r.self)
	return protocol.PlayerMeta{PlayerID: me.ID, Name: me.Name, Color: me.Color}
}

// Listing is the directory entry a host advertises.
func (r *Room) Listing() protocol.RoomListing {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return protocol.RoomListing{
		RoomID:      r.info.ID,
		RoomName:    r.info.Name,
		GameMode:    r.info.Mode,
		PlayerCount: r.players.count(),
		MaxPlayers:  r.info.MaxPlayers,
		CreatedAt:   r.info.CreatedAt,
	}
}

// View is a deep copy of the room for rendering.
type View struct {
	Info          Info
	SelfID        string
	Host          bool
	WorldReady    bool
	Players       []Player
	Blocks        []world.Block
	NPCs          []world.NPC
	Chat          []protocol.ChatMessage
	Match         *mode.Match
	Control       mode.Control
	SelectedColor int
	Returning     bool
}

func (r *Room) View() View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	players := r.players.all()
	out := make([]Player, len(players))
	for i, p := range players {
		out[i] = *p
	}
	return View{
		Info:          r.info,
		SelfID:        r.self,
		Host:          r.host,
		WorldReady:    r.worldReady,
		Players:       out,
		Blocks:        r.grid.Blocks(),
		NPCs:          append([]world.NPC(nil), r.npcs...),
		Chat:          append([]protocol.ChatMessage(nil), r.chat...),
		Match:         r.match.Clone(),
		Control:       r.control,
		SelectedColor: r.color,
		Returning:     r.latch.Fired(),
	}
}

// SyncPresence reconciles the roster with the channel's presence set: unseen
// members are added, names and colors refreshed, and departed members other
// than the local player removed.
func (r *Room) SyncPresence(members map[string]protocol.PlayerMeta) Effects {
	r.mu.Lock()
	defer r.mu.Unlock()
	var fx Effects

	present := make(map[string]struct{}, len(members))
	for key, meta := range members {
		id := meta.PlayerID
		if id == "" {
			id = key
		}
		present[id] = struct{}{}
		if id == r.self {
			continue
		}
		p := r.players.get(id)
		if p == nil {
			name, color := meta.Name, meta.Color
			if name == "" {
				name = "Player"
			}
			if color == "" {
				color = "#FFFFFF"
			}
			p = r.players.add(id, name, color)
			p.Pos = world.Position{X: 10, Y: 1, Z: 10}
			fx.RosterChanged = true
			continue
		}
		if meta.Name != "" {
			p.Name = meta.Name
		}
		if meta.Color != "" {
			p.Color = meta.Color
		}
	}

	for _, p := range r.players.all() {
		if p.ID == r.self {
			continue
		}
		if _, ok := present[p.ID]; ok {
			continue
		}
		r.players.remove(p.ID)
		r.noteLocal(p.Name + " left the game")
		fx.Departed = append(fx.Departed, p.ID)
		fx.RosterChanged = true
	}

	if r.host {
		r.ensureInfected(&fx)
	}
	return fx
}

// addChat appends a message unless its id was already seen.
func (r *Room) addChat(msg protocol.ChatMessage) bool {
	if msg.ID != "" {
		if _, ok := r.seen[msg.ID]; ok {
			return false
		}
		r.seen[msg.ID] = struct{}{}
	}
	r.chat = append(r.chat, msg)
	if len(r.chat) > ChatLimit {
		drop := r.chat[:len(r.chat)-ChatLimit]
		for _, m := range drop {
			delete(r.seen, m.ID)
		}
		r.chat = append([]protocol.ChatMessage(nil), r.chat[len(r.chat)-ChatLimit:]...)
	}
	return true
}

func (r *Room) systemMessage(text string) protocol.ChatMessage {
	return protocol.ChatMessage{
		ID:        uuid.NewString(),
		Type:      protocol.ChatSystem,
		Text:      text,
		Timestamp: r.now(),
	}
}

// systemChat records a system line and broadcasts it.
func (r *Room) systemChat(fx *Effects, text string) {
	msg := r.systemMessage(text)
	r.addChat(msg)
	fx.emit(msg)
}

// noteLocal records a system line only this peer sees.
func (r *Room) noteLocal(text string) {
	r.addChat(r.systemMessage(text))
}

func (r *Room) npc(id string) *world.NPC {
	for i := range r.npcs {
		if r.npcs[i].ID == id {
			return &r.npcs[i]
		}
	}
	return nil
}

func (r *Room) upsertNPC(n world.NPC) {
	if cur := r.npc(n.ID); cur != nil {
		*cur = n
		return
	}
	r.npcs = append(r.npcs, n)
	sort.Slice(r.npcs, func(i, j int) bool { return r.npcs[i].ID < r.npcs[j].ID })
}

func (r *Room) standings() []mode.Standing {
	players := r.players.all()
	out := make([]mode.Standing, len(players))
	for i, p := range players {
		out[i] = mode.Standing{ID: p.ID, Name: p.Name, X: p.Pos.X, Z: p.Pos.Z, Score: p.Score, Busy: p.Fall.Busy()}
	}
	return out
}

func (r *Room) carriers() []mode.Carrier {
	players := r.players.all()
	out := make([]mode.Carrier, len(players))
	for i, p := range players {
		out[i] = carrierOf(p)
	}
	return out
}

func carrierOf(p *Player) mode.Carrier {
	return mode.Carrier{
		ID: p.ID, Name: p.Name,
		X: p.Pos.X, Y: p.Pos.Y, Z: p.Pos.Z,
		Infected: p.Infected, Busy: p.Fall.Busy(),
	}
}
