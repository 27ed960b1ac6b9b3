// Package peer runs one player's membership of a room: it owns the room
// channel, drives host election and state sync, and carries out the
// broadcasts and timers the replicated room asks for. All of that happens on
// a single event loop goroutine; the exported methods post work to it.
package peer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hersh/towerattack/internal/election"
	"github.com/hersh/towerattack/internal/protocol"
	"github.com/hersh/towerattack/internal/room"
	"github.com/hersh/towerattack/internal/statesync"
	"github.com/hersh/towerattack/internal/transport"
	"github.com/hersh/towerattack/internal/world"
)

const (
	FrameInterval     = 50 * time.Millisecond
	DirectoryInterval = 3 * time.Second
)

// Config describes the room to join and who joins it.
type Config struct {
	Room      room.Info
	Me        protocol.PlayerMeta
	Transport transport.Transport
	Log       zerolog.Logger
	// Clock and Rand are optional.
	Clock func() time.Time
	Rand  *rand.Rand
}

// ExitReason says why a peer left its room.
type ExitReason int

const (
	// ExitLeft: Close was called.
	ExitLeft ExitReason = iota
	// ExitLobby: the host ended the match or round.
	ExitLobby
	// ExitKicked: the host removed this player.
	ExitKicked
	// ExitDisconnected: the transport went away.
	ExitDisconnected
)

func (r ExitReason) String() string {
	switch r {
	case ExitLobby:
		return "lobby"
	case ExitKicked:
		return "kicked"
	case ExitDisconnected:
		return "disconnected"
	}
	return "left"
}

// Exit is delivered once when the peer leaves its room.
type Exit struct {
	Reason  ExitReason
	Message string
}

// Status is the peer's coordination state, for display.
type Status struct {
	Election election.State
	HostID   string
	Synced   bool
}

// Peer is one local player in one room.
type Peer struct {
	cfg  Config
	log  zerolog.Logger
	now  func() time.Time
	room *room.Room

	// Owned by the loop goroutine.
	elector    *election.Elector
	syncer     *statesync.Syncer
	roomCh     transport.Channel
	dirCh      transport.Channel
	epoch      int
	hostCancel context.CancelFunc

	ctx     context.Context
	cancel  context.CancelFunc
	calls   chan func()
	changed chan struct{}
	exitReq chan Exit
	exitCh  chan Exit
	done    chan struct{}

	mu     sync.RWMutex
	status Status
}

// Join connects to the room channel, tracks presence and starts the event
// loop.
func Join(ctx context.Context, cfg Config) (*Peer, error) {
	if cfg.Transport == nil {
		return nil, errors.New("peer: no transport")
	}
	if cfg.Me.PlayerID == "" {
		return nil, errors.New("peer: empty player id")
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	opts := []room.Option{room.WithClock(now)}
	if cfg.Rand != nil {
		opts = append(opts, room.WithRand(cfg.Rand))
	}

	p := &Peer{
		cfg:     cfg,
		log:     cfg.Log.With().Str("component", "peer").Str("room", cfg.Room.ID).Str("player", cfg.Me.PlayerID).Logger(),
		now:     now,
		room:    room.New(cfg.Room, cfg.Me, opts...),
		elector: election.New(cfg.Me.PlayerID, now()),
		syncer:  statesync.New(cfg.Me.PlayerID),
		calls:   make(chan func(), 64),
		changed: make(chan struct{}, 1),
		exitReq: make(chan Exit, 1),
		exitCh:  make(chan Exit, 1),
		done:    make(chan struct{}),
	}

	ch, err := cfg.Transport.Join(ctx, protocol.RoomTopic(cfg.Room.ID), cfg.Me.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("join room %s: %w", cfg.Room.ID, err)
	}
	if err := ch.Track(ctx, p.room.PresenceMeta()); err != nil {
		ch.Close()
		return nil, fmt.Errorf("track in room %s: %w", cfg.Room.ID, err)
	}
	p.roomCh = ch
	p.ctx, p.cancel = context.WithCancel(context.Background())

	p.log.Info().Str("mode", string(cfg.Room.Mode)).Msg("joined room")
	p.apply(p.room.JoinAnnouncement())
	p.refresh()
	go p.loop()
	return p, nil
}

// --- Event loop ---

func (p *Peer) loop() {
	exit := Exit{Reason: ExitLeft}
	defer func() {
		p.teardown()
		p.finish(exit)
	}()

	bootstrap := time.NewTimer(election.BootstrapGrace)
	monitor := time.NewTicker(election.MonitorInterval)
	frame := time.NewTicker(FrameInterval)
	defer func() {
		bootstrap.Stop()
		monitor.Stop()
		frame.Stop()
	}()

	msgs, presence := p.roomCh.Messages(), p.roomCh.Presence()
	for {
		select {
		case <-p.ctx.Done():
			if e, ok := p.pendingExit(); ok {
				exit = e
			}
			return
		case m, ok := <-msgs:
			if !ok {
				exit = Exit{Reason: ExitDisconnected, Message: "Connection to the room was lost"}
				return
			}
			p.handleMessage(m)
		case pres, ok := <-presence:
			if !ok {
				presence = nil
				continue
			}
			p.handlePresence(pres)
		case f := <-p.calls:
			f()
		case <-bootstrap.C:
			p.bootstrap()
		case <-monitor.C:
			p.monitor()
		case <-frame.C:
			p.apply(p.room.Tick())
		}
		p.refresh()
	}
}

// post queues f on the loop. It is dropped once the peer has stopped.
func (p *Peer) post(f func()) {
	select {
	case p.calls <- f:
	case <-p.done:
	case <-p.ctx.Done():
	}
}

// after runs f on the loop once d has passed.
func (p *Peer) after(d time.Duration, f func()) {
	time.AfterFunc(d, func() { p.post(f) })
}

func (p *Peer) handleMessage(m transport.Message) {
	ev, err := transport.Decode(m)
	if err != nil {
		p.log.Warn().Err(err).Str("event", string(m.Event)).Msg("dropping undecodable message")
		return
	}
	switch e := ev.(type) {
	case protocol.HostClaim:
		p.onClaim(e)
	case protocol.HostHeartbeat:
		p.onHeartbeat(e)
	case protocol.StateRequest:
		p.onStateRequest(e)
	case protocol.StateSnapshot:
		p.onSnapshot(e)
	default:
		p.apply(p.room.Apply(ev))
	}
	p.notify()
}

func (p *Peer) handlePresence(pres transport.Presence) {
	members := transport.Members[protocol.PlayerMeta](pres)
	p.apply(p.room.SyncPresence(members))
	if p.elector.Hostless(p.now()) {
		p.startElection()
	}
}

// apply carries out what a room mutation asked for.
func (p *Peer) apply(fx room.Effects) {
	if fx.Empty() {
		return
	}
	for _, ev := range fx.Broadcast {
		p.send(ev)
	}
	if fx.Retrack {
		if err := p.roomCh.Track(p.ctx, p.room.PresenceMeta()); err != nil {
			p.log.Warn().Err(err).Msg("retrack")
		}
	}
	for _, id := range fx.Departed {
		p.hostDeparted(id)
	}
	for _, id := range fx.NPCRespawns {
		p.scheduleRespawn(id)
	}
	if fx.RosterChanged && p.elector.IsHost() {
		p.advertise()
	}
	if fx.Return != nil {
		ret := *fx.Return
		p.log.Info().Dur("delay", ret.Delay).Msg("returning to lobby")
		p.after(ret.Delay, func() {
			p.leave(Exit{Reason: ExitLobby, Message: ret.Message})
		})
	}
	if fx.Kicked {
		p.log.Info().Msg("kicked by host")
		p.leave(Exit{Reason: ExitKicked, Message: "You were kicked by the host"})
	}
	p.notify()
}

func (p *Peer) send(ev protocol.Event) {
	if err := transport.Send(p.ctx, p.roomCh, ev); err != nil && !errors.Is(err, context.Canceled) {
		p.log.Warn().Err(err).Msg("broadcast failed")
	}
}

// --- Lifecycle ---

// leave stops the loop with the given exit. The first request wins.
func (p *Peer) leave(e Exit) {
	select {
	case p.exitReq <- e:
	default:
	}
	p.cancel()
}

// pendingExit reports an exit queued by leave before the loop stopped.
func (p *Peer) pendingExit() (Exit, bool) {
	select {
	case e := <-p.exitReq:
		return e, true
	default:
		return Exit{}, false
	}
}

func (p *Peer) teardown() {
	p.stepDown()
	if err := p.roomCh.Untrack(context.Background()); err != nil && !errors.Is(err, transport.ErrClosed) {
		p.log.Debug().Err(err).Msg("untrack on leave")
	}
	if err := p.roomCh.Close(); err != nil {
		p.log.Debug().Err(err).Msg("close room channel")
	}
}

func (p *Peer) finish(e Exit) {
	p.exitCh <- e
	close(p.done)
	p.log.Info().Str("reason", e.Reason.String()).Msg("left room")
	p.cancel()
}

// Close leaves the room and waits for the loop to stop.
func (p *Peer) Close() error {
	p.leave(Exit{Reason: ExitLeft})
	<-p.done
	return nil
}

// Done is closed once the peer has left the room.
func (p *Peer) Done() <-chan struct{} {
	return p.done
}

// Exit yields the reason the peer left. It receives exactly one value.
func (p *Peer) Exit() <-chan Exit {
	return p.exitCh
}

// Changed signals that the view may have changed.
func (p *Peer) Changed() <-chan struct{} {
	return p.changed
}

func (p *Peer) notify() {
	select {
	case p.changed <- struct{}{}:
	default:
	}
}

// refresh publishes the loop-owned coordination state.
func (p *Peer) refresh() {
	s := Status{
		Election: p.elector.State(),
		HostID:   p.elector.HostID(),
		Synced:   p.syncer.Synced(),
	}
	p.mu.Lock()
	changed := s != p.status
	p.status = s
	p.mu.Unlock()
	if changed {
		p.notify()
	}
}

// --- Read side ---

func (p *Peer) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

func (p *Peer) View() room.View {
	return p.room.View()
}

func (p *Peer) SelfID() string {
	return p.room.SelfID()
}

func (p *Peer) RoomInfo() room.Info {
	return p.room.Info()
}

// --- Local input ---

func (p *Peer) do(action func() room.Effects) {
	p.post(func() { p.apply(action()) })
}

func (p *Peer) Move(dir world.Direction) { p.do(func() room.Effects { return p.room.Move(dir) }) }
func (p *Peer) Rotate(left bool)         { p.do(func() room.Effects { return p.room.Rotate(left) }) }
func (p *Peer) PlaceBlock()              { p.do(p.room.PlaceBlock) }
func (p *Peer) RemoveBlock()             { p.do(p.room.RemoveBlock) }
func (p *Peer) Push()                    { p.do(p.room.Push) }
func (p *Peer) Chat(text string)         { p.do(func() room.Effects { return p.room.Chat(text) }) }
func (p *Peer) Rename(name string)       { p.do(func() room.Effects { return p.room.Rename(name) }) }
func (p *Peer) Kick(id string)           { p.do(func() room.Effects { return p.room.Kick(id) }) }

func (p *Peer) SelectColor(i int) {
	p.room.SelectColor(i)
	p.notify()
}
