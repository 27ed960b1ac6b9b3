package peer

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hersh/towerattack/internal/election"
	"github.com/hersh/towerattack/internal/mode"
	"github.com/hersh/towerattack/internal/protocol"
	"github.com/hersh/towerattack/internal/room"
	"github.com/hersh/towerattack/internal/statesync"
	"github.com/hersh/towerattack/internal/transport"
	"github.com/hersh/towerattack/internal/transport/memory"
	"github.com/hersh/towerattack/internal/world"
)

const settle = 8 * time.Second

var testRoom = room.Info{
	ID:         "room-1",
	Name:       "alice's Room",
	Mode:       mode.Freeplay,
	MaxPlayers: room.MaxPlayers,
	Minutes:    mode.DefaultMinutes,
}

func start(t *testing.T, bus *memory.Bus, info room.Info, id string) *Peer {
	t.Helper()
	return startWith(t, bus, info, id, rand.New(rand.NewSource(int64(len(id)))))
}

func startWith(t *testing.T, bus *memory.Bus, info room.Info, id string, rng *rand.Rand) *Peer {
	t.Helper()
	p, err := Join(context.Background(), Config{
		Room:      info,
		Me:        protocol.PlayerMeta{PlayerID: id, Name: id, Color: "#FF0000"},
		Transport: bus,
		Log:       zerolog.Nop(),
		Rand:      rng,
	})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func waitHost(t *testing.T, p *Peer) {
	t.Helper()
	require.Eventually(t, func() bool {
		return p.Status().Election == election.Host
	}, settle, 20*time.Millisecond, "%s never became host", p.SelfID())
}

func waitFollowing(t *testing.T, p *Peer, host string) {
	t.Helper()
	require.Eventually(t, func() bool {
		s := p.Status()
		return s.Election == election.Follower && s.HostID == host && s.Synced
	}, settle, 20*time.Millisecond, "%s never synced with %s", p.SelfID(), host)
}

func hosts(peers ...*Peer) []string {
	var out []string
	for _, p := range peers {
		if p.Status().Election == election.Host {
			out = append(out, p.SelfID())
		}
	}
	return out
}

func TestLonePeerBecomesHostAndAdvertises(t *testing.T) {
	bus := memory.NewBus()
	a := start(t, bus, testRoom, "alice")

	waitHost(t, a)
	v := a.View()
	assert.True(t, v.Host)
	assert.True(t, v.WorldReady)
	assert.NotEmpty(t, v.Blocks)

	require.Eventually(t, func() bool {
		listings := transport.Members[protocol.RoomListing](bus.Presence(protocol.DirectoryTopic))
		l, ok := listings[testRoom.ID]
		return ok && l.PlayerCount == 1 && l.GameMode == mode.Freeplay
	}, settle, 20*time.Millisecond)
}

func TestLateJoinerSyncsWorld(t *testing.T) {
	bus := memory.NewBus()
	a := start(t, bus, testRoom, "alice")
	waitHost(t, a)

	b := start(t, bus, testRoom, "bob")
	waitFollowing(t, b, "alice")

	assert.ElementsMatch(t, a.View().Blocks, b.View().Blocks)
	assert.True(t, b.View().WorldReady)
	assert.Equal(t, []string{"alice"}, hosts(a, b))

	require.Eventually(t, func() bool {
		l := transport.Members[protocol.RoomListing](bus.Presence(protocol.DirectoryTopic))[testRoom.ID]
		return l.PlayerCount == 2
	}, settle, 20*time.Millisecond, "listing follows the roster")
}

// constSource makes every Intn(10) return v, so spawn tiles are (v+5, v+5).
type constSource int64

func (s constSource) Int63() int64 { return int64(s) << 32 }
func (constSource) Seed(int64)     {}

func position(v room.View, id string) (world.Position, bool) {
	for _, p := range v.Players {
		if p.ID == id {
			return p.Pos, true
		}
	}
	return world.Position{}, false
}

func TestJoinerAnnouncesSpawnToHost(t *testing.T) {
	koth := testRoom
	koth.Mode = mode.KingOfTheHill

	bus := memory.NewBus()

	// alice spawns on the hill centre, bob at (6,1,6) well off it.
	a := startWith(t, bus, koth, "alice", rand.New(constSource(5)))
	waitHost(t, a)
	b := startWith(t, bus, koth, "bob", rand.New(constSource(1)))
	waitFollowing(t, b, "alice")

	own, ok := position(b.View(), "bob")
	require.True(t, ok)
	assert.Equal(t, world.Position{X: 6, Y: 1, Z: 6}, own)

	require.Eventually(t, func() bool {
		seen, ok := position(a.View(), "bob")
		return ok && seen == own
	}, settle, 20*time.Millisecond, "host never learned bob's spawn")

	require.Eventually(t, func() bool {
		v := a.View()
		for _, p := range v.Players {
			if p.ID == "alice" {
				return p.Score >= 2 && v.Control.ControllerID == "alice" && !v.Control.Contested
			}
		}
		return false
	}, settle, 50*time.Millisecond, "alice alone on the hill should score")
}

func TestSimultaneousStartElectsOneHost(t *testing.T) {
	bus := memory.NewBus()
	a := start(t, bus, testRoom, "alice")
	b := start(t, bus, testRoom, "bob")
	c := start(t, bus, testRoom, "carol")

	require.Eventually(t, func() bool {
		h := hosts(a, b, c)
		if len(h) != 1 {
			return false
		}
		for _, p := range []*Peer{a, b, c} {
			s := p.Status()
			if s.HostID != h[0] || !s.Synced {
				return false
			}
		}
		return true
	}, settle, 20*time.Millisecond)
}

func TestHostDepartureTriggersReelection(t *testing.T) {
	bus := memory.NewBus()
	a := start(t, bus, testRoom, "alice")
	waitHost(t, a)
	b := start(t, bus, testRoom, "bob")
	waitFollowing(t, b, "alice")
	blocks := b.View().Blocks

	require.NoError(t, a.Close())
	e := <-a.Exit()
	assert.Equal(t, ExitLeft, e.Reason)

	waitHost(t, b)
	assert.ElementsMatch(t, blocks, b.View().Blocks, "new host keeps the replicated world")
	require.Eventually(t, func() bool {
		l, ok := transport.Members[protocol.RoomListing](bus.Presence(protocol.DirectoryTopic))[testRoom.ID]
		return ok && l.PlayerCount == 1
	}, settle, 20*time.Millisecond)
}

func TestReplicatedChatAndBlocks(t *testing.T) {
	bus := memory.NewBus()
	a := start(t, bus, testRoom, "alice")
	waitHost(t, a)
	b := start(t, bus, testRoom, "bob")
	waitFollowing(t, b, "alice")

	b.Chat("  hello there  ")
	require.Eventually(t, func() bool {
		for _, m := range a.View().Chat {
			if m.Type == protocol.ChatPlayer && m.Text == "hello there" && m.PlayerID == "bob" {
				return true
			}
		}
		return false
	}, settle, 20*time.Millisecond)

	before := len(a.View().Blocks)
	for i := 0; i < 4; i++ {
		a.PlaceBlock()
		a.Rotate(false)
		time.Sleep(room.MoveInterval)
	}
	require.Eventually(t, func() bool {
		ours := a.View().Blocks
		return len(ours) > before && len(ours) == len(b.View().Blocks)
	}, settle, 20*time.Millisecond)
	assert.ElementsMatch(t, a.View().Blocks, b.View().Blocks)
}

func TestKickedPeerExits(t *testing.T) {
	bus := memory.NewBus()
	a := start(t, bus, testRoom, "alice")
	waitHost(t, a)
	b := start(t, bus, testRoom, "bob")
	waitFollowing(t, b, "alice")

	a.Kick("bob")
	select {
	case e := <-b.Exit():
		assert.Equal(t, ExitKicked, e.Reason)
	case <-time.After(settle):
		t.Fatal("kicked peer did not exit")
	}
	<-b.Done()
}

func TestSnapshotLossFallsBackToFreshWorld(t *testing.T) {
	if testing.Short() {
		t.Skip("waits out every sync retry")
	}
	bus := memory.NewBus()
	bus.SetFilter(func(topic, from, to string, m transport.Message) bool {
		return m.Event != protocol.MsgStateSnapshot
	})
	a := start(t, bus, testRoom, "alice")
	waitHost(t, a)
	b := start(t, bus, testRoom, "bob")

	require.Eventually(t, func() bool {
		s := b.Status()
		return s.Synced && b.View().WorldReady
	}, statesync.RetryInterval*(statesync.MaxRequests+2), 50*time.Millisecond)
	assert.Equal(t, "alice", b.Status().HostID, "fallback keeps following the host")
}
