package peer

import (
	"context"
	"time"

	"github.com/hersh/towerattack/internal/election"
	"github.com/hersh/towerattack/internal/mode"
	"github.com/hersh/towerattack/internal/protocol"
	"github.com/hersh/towerattack/internal/statesync"
	"github.com/hersh/towerattack/internal/transport"
	"github.com/hersh/towerattack/internal/world"
)

// --- Election ---

func (p *Peer) bootstrap() {
	now := p.now()
	if p.elector.Bootstrap(now) {
		p.log.Debug().Str("host", p.elector.HostID()).Msg("found host at bootstrap")
		p.beginSync()
		return
	}
	if p.elector.State() == election.Idle {
		p.startElection()
	}
}

func (p *Peer) monitor() {
	if p.elector.IsHost() {
		return
	}
	now := p.now()
	if p.elector.Stale(now) {
		p.log.Warn().Msg("host heartbeat stale, electing")
		p.startElection()
		return
	}
	if p.elector.Hostless(now) {
		p.startElection()
	}
}

func (p *Peer) startElection() {
	r, ok := p.elector.Begin(p.now())
	if !ok {
		return
	}
	p.log.Debug().Int("round", r.ID).Msg("claiming host")
	p.send(protocol.HostClaim{CandidateID: r.Claim.CandidateID, Timestamp: r.Claim.At})
	p.armResolution(r)
}

func (p *Peer) armResolution(r election.Round) {
	p.after(election.Window, func() { p.resolve(r.ID) })
}

func (p *Peer) onClaim(c protocol.HostClaim) {
	reaction, r := p.elector.ObserveClaim(election.Claim{CandidateID: c.CandidateID, At: c.Timestamp}, p.now())
	switch reaction {
	case election.ClaimJoined:
		p.send(protocol.HostClaim{CandidateID: r.Claim.CandidateID, Timestamp: r.Claim.At})
		p.armResolution(r)
	case election.ClaimAnswered:
		p.sendHeartbeat()
	}
}

func (p *Peer) resolve(round int) {
	res := p.elector.Resolve(round, p.now())
	if !res.Decided {
		return
	}
	p.log.Info().Str("host", res.WinnerID).Bool("self", res.BecameHost).Msg("election resolved")
	if res.BecameHost {
		p.becomeHost()
		return
	}
	p.beginSync()
}

func (p *Peer) onHeartbeat(hb protocol.HostHeartbeat) {
	r := p.elector.ObserveHeartbeat(hb.HostID, p.now())
	if r.Relinquished {
		p.log.Warn().Str("other", hb.HostID).Msg("another host is beating, stepping down")
		p.stepDown()
	}
	if r.NewHost {
		p.log.Debug().Str("host", hb.HostID).Msg("following host")
	}
	if p.elector.HostID() == hb.HostID && !p.syncer.Synced() {
		p.beginSync()
	}
}

// hostDeparted clears a host that presence no longer lists and elects
// shortly after unless a heartbeat arrives first.
func (p *Peer) hostDeparted(id string) {
	if !p.elector.HostLeft(id) {
		return
	}
	p.log.Info().Str("host", id).Msg("host left, re-electing")
	p.after(election.HostLeftDelay, func() {
		if p.elector.HostID() == "" {
			p.startElection()
		}
	})
}

// --- State sync ---

func (p *Peer) beginSync() {
	round, ok := p.syncer.Begin()
	if !ok {
		return
	}
	p.requestState(round)
}

func (p *Peer) requestState(round int) {
	p.syncer.Sent()
	p.send(protocol.StateRequest{RequesterID: p.room.SelfID()})
	p.after(statesync.RetryInterval, func() { p.syncTimeout(round) })
}

func (p *Peer) syncTimeout(round int) {
	switch p.syncer.OnTimeout(round) {
	case statesync.Retry:
		p.requestState(round)
	case statesync.Fallback:
		p.log.Warn().Int("attempts", p.syncer.Attempts()).Msg("no snapshot from host, starting a fresh world")
		p.room.InitWorld()
		p.apply(p.room.Settle())
		p.notify()
	}
}

func (p *Peer) onStateRequest(req protocol.StateRequest) {
	if !p.elector.IsHost() || req.RequesterID == "" {
		return
	}
	p.send(protocol.StateSnapshot{To: req.RequesterID, Snapshot: p.room.Snapshot()})
}

func (p *Peer) onSnapshot(s protocol.StateSnapshot) {
	if p.elector.IsHost() || !p.syncer.Accept(s.To) {
		return
	}
	p.log.Info().Int("blocks", len(s.Snapshot.Blocks)).Int("players", len(s.Snapshot.Players)).Msg("applied snapshot")
	p.apply(p.room.ApplySnapshot(s.Snapshot))
	p.apply(p.room.Settle())
}

// --- Host epoch ---

// becomeHost starts every host-only task under a fresh epoch. Timers armed
// in an older epoch do nothing when they fire.
func (p *Peer) becomeHost() {
	p.syncer.MarkSynced()
	p.epoch++
	ctx, cancel := context.WithCancel(p.ctx)
	p.hostCancel = cancel

	p.apply(p.room.BecomeHost())
	p.apply(p.room.Settle())
	p.sendHeartbeat()

	info := p.room.Info()
	p.every(ctx, election.HeartbeatInterval, p.sendHeartbeat)
	if info.Mode.HasNPCs() {
		p.every(ctx, world.NPCTick, func() { p.apply(p.room.TickNPCs()) })
	}
	if info.Mode == mode.KingOfTheHill {
		p.every(ctx, mode.HillTick, func() { p.apply(p.room.TickMatch()) })
	}
	if d, ok := p.room.MatchEndIn(); ok {
		p.afterEpoch(d, func() { p.apply(p.room.EndMatch()) })
	}

	p.openDirectory(ctx)
	p.every(ctx, DirectoryInterval, p.advertise)
}

// stepDown cancels the host epoch and withdraws the directory listing.
func (p *Peer) stepDown() {
	if p.hostCancel == nil {
		return
	}
	p.hostCancel()
	p.hostCancel = nil
	p.epoch++
	p.room.Relinquish()
	p.closeDirectory()
	p.log.Info().Msg("host duties stopped")
}

// every posts f to the loop at interval d until ctx ends.
func (p *Peer) every(ctx context.Context, d time.Duration, f func()) {
	epoch := p.epoch
	go func() {
		t := time.NewTicker(d)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				p.post(func() {
					if p.epoch == epoch {
						f()
					}
				})
			}
		}
	}()
}

// afterEpoch runs f once after d unless the epoch has moved on.
func (p *Peer) afterEpoch(d time.Duration, f func()) {
	epoch := p.epoch
	p.after(d, func() {
		if p.epoch == epoch {
			f()
		}
	})
}

func (p *Peer) sendHeartbeat() {
	if !p.elector.IsHost() {
		return
	}
	p.send(protocol.HostHeartbeat{HostID: p.room.SelfID(), Timestamp: p.now()})
}

func (p *Peer) scheduleRespawn(id string) {
	if !p.elector.IsHost() {
		return
	}
	p.afterEpoch(p.room.NPCRespawnDelay(id), func() { p.apply(p.room.RespawnNPC(id)) })
}

// --- Directory ---

func (p *Peer) openDirectory(ctx context.Context) {
	info := p.room.Info()
	ch, err := p.cfg.Transport.Join(ctx, protocol.DirectoryTopic, info.ID)
	if err != nil {
		p.log.Warn().Err(err).Msg("join directory")
		return
	}
	p.dirCh = ch
	go drain(ctx, ch)
	p.advertise()
}

func (p *Peer) advertise() {
	if p.dirCh == nil || !p.elector.IsHost() {
		return
	}
	if err := p.dirCh.Track(p.ctx, p.room.Listing()); err != nil {
		p.log.Warn().Err(err).Msg("advertise room")
	}
}

func (p *Peer) closeDirectory() {
	if p.dirCh == nil {
		return
	}
	ch := p.dirCh
	p.dirCh = nil
	ch.Untrack(context.Background())
	ch.Close()
}

// drain discards directory traffic the host does not read.
func drain(ctx context.Context, ch transport.Channel) {
	msgs, pres := ch.Messages(), ch.Presence()
	for msgs != nil || pres != nil {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-msgs:
			if !ok {
				msgs = nil
			}
		case _, ok := <-pres:
			if !ok {
				pres = nil
			}
		}
	}
}
