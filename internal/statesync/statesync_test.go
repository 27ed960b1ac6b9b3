package statesync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryThenFallback(t *testing.T) {
	s := New("me")
	round, ok := s.Begin()
	require.True(t, ok)
	_, ok = s.Begin()
	assert.False(t, ok, "cycle already running")

	for i := 1; i < MaxRequests; i++ {
		s.Sent()
		assert.Equal(t, Retry, s.OnTimeout(round), "attempt %d", i)
	}
	s.Sent()
	assert.Equal(t, MaxRequests, s.Attempts())
	assert.Equal(t, Fallback, s.OnTimeout(round))
	assert.True(t, s.Synced())
	assert.Equal(t, None, s.OnTimeout(round))
}

func TestAcceptOnlyOwnSnapshotOnce(t *testing.T) {
	s := New("me")
	round, _ := s.Begin()
	s.Sent()

	assert.False(t, s.Accept("other"))
	assert.True(t, s.Accept("me"))
	assert.False(t, s.Accept("me"), "second snapshot ignored")
	assert.Equal(t, None, s.OnTimeout(round))
}

func TestStaleTimeoutIgnored(t *testing.T) {
	s := New("me")
	round, _ := s.Begin()
	s.MarkSynced()
	assert.Equal(t, None, s.OnTimeout(round))
	_, ok := s.Begin()
	assert.False(t, ok)
}
