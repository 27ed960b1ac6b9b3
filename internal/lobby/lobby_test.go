package lobby

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hersh/towerattack/internal/mode"
	"github.com/hersh/towerattack/internal/protocol"
	"github.com/hersh/towerattack/internal/room"
	"github.com/hersh/towerattack/internal/transport"
	"github.com/hersh/towerattack/internal/transport/memory"
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func advertise(t *testing.T, bus *memory.Bus, l protocol.RoomListing) transport.Channel {
	t.Helper()
	ch, err := bus.Join(context.Background(), protocol.DirectoryTopic, l.RoomID)
	require.NoError(t, err)
	require.NoError(t, ch.Track(context.Background(), l))
	t.Cleanup(func() { ch.Close() })
	return ch
}

func watch(t *testing.T, bus *memory.Bus) *Directory {
	t.Helper()
	d, err := Watch(context.Background(), bus, "me", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func waitRooms(t *testing.T, d *Directory, n int) []protocol.RoomListing {
	t.Helper()
	require.Eventually(t, func() bool { return len(d.Rooms()) == n }, time.Second, 5*time.Millisecond)
	return d.Rooms()
}

func TestDirectoryListsNewestFirst(t *testing.T) {
	bus := memory.NewBus()
	d := watch(t, bus)

	advertise(t, bus, protocol.RoomListing{RoomID: "old", RoomName: "Old", GameMode: mode.Infection, PlayerCount: 2, MaxPlayers: 10, CreatedAt: epoch})
	advertise(t, bus, protocol.RoomListing{RoomID: "new", RoomName: "New", GameMode: mode.ClassicStomp, PlayerCount: 1, MaxPlayers: 10, CreatedAt: epoch.Add(time.Minute)})

	rooms := waitRooms(t, d, 2)
	assert.Equal(t, "new", rooms[0].RoomID)
	assert.Equal(t, "old", rooms[1].RoomID)
	assert.Equal(t, map[mode.Kind]int{mode.Infection: 2, mode.ClassicStomp: 1}, d.PlayersByMode())
}

func TestDirectoryFillsDefaults(t *testing.T) {
	bus := memory.NewBus()
	d := watch(t, bus)
	advertise(t, bus, protocol.RoomListing{RoomID: "r1", GameMode: "KOTH"})

	rooms := waitRooms(t, d, 1)
	assert.Equal(t, "Room", rooms[0].RoomName)
	assert.Equal(t, room.MaxPlayers, rooms[0].MaxPlayers)
	assert.Equal(t, mode.KingOfTheHill, rooms[0].GameMode)
}

func TestWithdrawnListingDisappears(t *testing.T) {
	bus := memory.NewBus()
	d := watch(t, bus)
	ch := advertise(t, bus, protocol.RoomListing{RoomID: "r1", MaxPlayers: 10})
	waitRooms(t, d, 1)

	require.NoError(t, ch.Untrack(context.Background()))
	waitRooms(t, d, 0)

	_, err := d.Lookup("r1")
	assert.True(t, errors.Is(err, ErrRoomNotFound))
}

func TestLookupRejectsFullRoom(t *testing.T) {
	bus := memory.NewBus()
	d := watch(t, bus)
	advertise(t, bus, protocol.RoomListing{RoomID: "full", RoomName: "Packed", PlayerCount: 10, MaxPlayers: 10})
	waitRooms(t, d, 1)

	_, err := d.Lookup("full")
	require.ErrorIs(t, err, ErrRoomFull)
	_, err = d.Lookup("missing")
	require.ErrorIs(t, err, ErrRoomNotFound)
}

func TestChooseQuickJoinsOrCreates(t *testing.T) {
	bus := memory.NewBus()
	d := watch(t, bus)
	advertise(t, bus, protocol.RoomListing{RoomID: "stomp-full", GameMode: mode.ClassicStomp, PlayerCount: 10, MaxPlayers: 10, CreatedAt: epoch.Add(time.Hour)})
	advertise(t, bus, protocol.RoomListing{RoomID: "stomp-open", RoomName: "Ann's Room", GameMode: mode.ClassicStomp, PlayerCount: 3, MaxPlayers: 10, CreatedAt: epoch})
	waitRooms(t, d, 2)

	s := Settings{PlayerName: "Bo", StompMinutes: 9, KothMinutes: 2}
	info, created := d.Choose(mode.ClassicStomp, s, epoch)
	assert.False(t, created)
	assert.Equal(t, "stomp-open", info.ID)
	assert.Equal(t, "Ann's Room", info.Name)

	info, created = d.Choose(mode.KingOfTheHill, s, epoch)
	require.True(t, created)
	assert.Equal(t, "Bo's Room", info.Name)
	assert.Equal(t, mode.KingOfTheHill, info.Mode)
	assert.Equal(t, 2, info.Minutes)
	assert.Equal(t, epoch, info.CreatedAt)
	_, err := uuid.Parse(info.ID)
	assert.NoError(t, err)
}

func TestNewRoomClampsMinutes(t *testing.T) {
	cases := []struct {
		kind mode.Kind
		s    Settings
		want int
	}{
		{mode.ClassicStomp, Settings{StompMinutes: 9}, mode.MaxMinutes},
		{mode.ClassicStomp, Settings{}, mode.DefaultMinutes},
		{mode.KingOfTheHill, Settings{KothMinutes: -1}, mode.MinMinutes},
		{mode.Infection, Settings{StompMinutes: 1}, mode.DefaultMinutes},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			info := NewRoom(tc.kind, tc.s, epoch)
			assert.Equal(t, tc.want, info.Minutes)
			assert.Equal(t, "Player's Room", info.Name)
		})
	}
}
