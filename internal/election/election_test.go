package election

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Unix(1700000000, 0)

func TestWinnerIsOrderIndependent(t *testing.T) {
	claims := []Claim{
		{CandidateID: "d", At: t0.Add(3 * time.Millisecond)},
		{CandidateID: "c", At: t0.Add(time.Millisecond)},
		{CandidateID: "b", At: t0.Add(time.Millisecond)},
		{CandidateID: "a", At: t0.Add(2 * time.Millisecond)},
	}
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 50; i++ {
		rng.Shuffle(len(claims), func(i, j int) { claims[i], claims[j] = claims[j], claims[i] })
		w, ok := Winner(claims)
		require.True(t, ok)
		assert.Equal(t, "b", w.CandidateID)
	}
	_, ok := Winner(nil)
	assert.False(t, ok)
}

func TestElectionWonBySelf(t *testing.T) {
	e := New("a", t0)
	r, ok := e.Begin(t0)
	require.True(t, ok)
	assert.Equal(t, Electing, e.State())
	_, ok = e.Begin(t0)
	assert.False(t, ok, "already electing")

	react, _ := e.ObserveClaim(Claim{CandidateID: "b", At: t0.Add(time.Millisecond)}, t0)
	assert.Equal(t, ClaimRecorded, react)

	res := e.Resolve(r.ID, t0.Add(Window))
	assert.True(t, res.Decided)
	assert.True(t, res.BecameHost)
	assert.True(t, e.IsHost())
	assert.Equal(t, "a", e.HostID())
}

func TestJoiningRoundAndLosing(t *testing.T) {
	e := New("b", t0)
	react, r := e.ObserveClaim(Claim{CandidateID: "a", At: t0}, t0.Add(time.Millisecond))
	require.Equal(t, ClaimJoined, react)
	assert.Equal(t, "b", r.Claim.CandidateID)
	assert.Len(t, e.Claims(), 2)

	res := e.Resolve(r.ID, t0.Add(Window))
	assert.True(t, res.Decided)
	assert.False(t, res.BecameHost)
	assert.Equal(t, "a", res.WinnerID)
	assert.Equal(t, Follower, e.State())
}

func TestOwnClaimIgnored(t *testing.T) {
	e := New("a", t0)
	react, _ := e.ObserveClaim(Claim{CandidateID: "a", At: t0}, t0)
	assert.Equal(t, ClaimIgnored, react)
	assert.Equal(t, Idle, e.State())
}

func TestHostAnswersClaims(t *testing.T) {
	e := New("a", t0)
	r, _ := e.Begin(t0)
	e.Resolve(r.ID, t0.Add(Window))
	require.True(t, e.IsHost())

	react, _ := e.ObserveClaim(Claim{CandidateID: "z", At: t0}, t0.Add(time.Second))
	assert.Equal(t, ClaimAnswered, react)
	assert.True(t, e.IsHost())
}

func TestHeartbeatCancelsRound(t *testing.T) {
	e := New("b", t0)
	r, _ := e.Begin(t0)
	beat := e.ObserveHeartbeat("h", t0.Add(100*time.Millisecond))
	assert.True(t, beat.Cancelled)
	assert.True(t, beat.NewHost)
	assert.Equal(t, Follower, e.State())

	res := e.Resolve(r.ID, t0.Add(Window))
	assert.False(t, res.Decided, "stale timer is a no-op")
	assert.Equal(t, "h", e.HostID())
}

func TestSplitBrainRelinquish(t *testing.T) {
	e := New("b", t0)
	r, _ := e.Begin(t0)
	e.Resolve(r.ID, t0.Add(Window))
	require.True(t, e.IsHost())

	beat := e.ObserveHeartbeat("a", t0.Add(time.Second))
	assert.True(t, beat.Relinquished)
	assert.Equal(t, Follower, e.State())
	assert.Equal(t, "a", e.HostID())

	assert.False(t, e.ObserveHeartbeat("a", t0.Add(2*time.Second)).NewHost)
}

func TestEmptyRoundDecidesNothing(t *testing.T) {
	e := New("a", t0)
	r, _ := e.Begin(t0)
	e.claims = nil
	res := e.Resolve(r.ID, t0.Add(Window))
	assert.False(t, res.Decided)
	assert.Equal(t, Idle, e.State())
	assert.Empty(t, e.HostID())
}

func TestBootstrap(t *testing.T) {
	e := New("b", t0)
	assert.False(t, e.Bootstrap(t0.Add(BootstrapGrace)))

	e.ObserveHeartbeat("a", t0.Add(time.Second))
	assert.True(t, e.Bootstrap(t0.Add(BootstrapGrace)))
	assert.False(t, e.Bootstrap(t0.Add(time.Second+FreshHeartbeat+time.Millisecond)))
}

func TestStaleHost(t *testing.T) {
	e := New("b", t0)
	e.ObserveHeartbeat("a", t0)
	assert.False(t, e.Stale(t0.Add(StaleAfter)))
	assert.True(t, e.Stale(t0.Add(StaleAfter+time.Millisecond)))
	assert.Empty(t, e.HostID())
	assert.False(t, e.Stale(t0.Add(time.Hour)), "nothing left to go stale")
}

func TestHostLeftAndHostless(t *testing.T) {
	e := New("b", t0)
	e.ObserveHeartbeat("a", t0)
	assert.False(t, e.HostLeft("c"))
	assert.False(t, e.Hostless(t0.Add(time.Hour)))

	assert.True(t, e.HostLeft("a"))
	assert.Equal(t, Idle, e.State())
	assert.True(t, e.Hostless(t0.Add(BootstrapGrace)))
	assert.False(t, New("x", t0).Hostless(t0.Add(time.Second)), "still in grace")
}

func TestRelinquish(t *testing.T) {
	e := New("a", t0)
	assert.False(t, e.Relinquish())
	r, _ := e.Begin(t0)
	e.Resolve(r.ID, t0)
	assert.True(t, e.Relinquish())
	assert.Equal(t, Idle, e.State())
}
