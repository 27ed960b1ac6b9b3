package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hersh/towerattack/internal/election"
	"github.com/hersh/towerattack/internal/lobby"
	"github.com/hersh/towerattack/internal/mode"
	"github.com/hersh/towerattack/internal/peer"
	"github.com/hersh/towerattack/internal/protocol"
	"github.com/hersh/towerattack/internal/room"
	"github.com/hersh/towerattack/internal/world"
)

// --- Fakes ---

type mockSession struct {
	mock.Mock
	changed chan struct{}
	exit    chan peer.Exit
}

func newMockSession() *mockSession {
	s := &mockSession{changed: make(chan struct{}, 1), exit: make(chan peer.Exit, 1)}
	s.On("View").Return(room.View{WorldReady: true, SelfID: "me"}).Maybe()
	s.On("Status").Return(peer.Status{Election: election.Host, HostID: "me", Synced: true}).Maybe()
	return s
}

func (s *mockSession) Move(dir world.Direction) { s.Called(dir) }
func (s *mockSession) Rotate(left bool)         { s.Called(left) }
func (s *mockSession) PlaceBlock()              { s.Called() }
func (s *mockSession) RemoveBlock()             { s.Called() }
func (s *mockSession) Push()                    { s.Called() }
func (s *mockSession) SelectColor(i int)        { s.Called(i) }
func (s *mockSession) Chat(text string)         { s.Called(text) }
func (s *mockSession) Rename(name string)       { s.Called(name) }
func (s *mockSession) Kick(id string)           { s.Called(id) }
func (s *mockSession) View() room.View          { return s.Called().Get(0).(room.View) }
func (s *mockSession) Status() peer.Status      { return s.Called().Get(0).(peer.Status) }
func (s *mockSession) Changed() <-chan struct{} { return s.changed }
func (s *mockSession) Exit() <-chan peer.Exit   { return s.exit }
func (s *mockSession) Close() error             { return s.Called().Error(0) }

type fakeDirectory struct {
	rooms []protocol.RoomListing
}

func (d *fakeDirectory) Rooms() []protocol.RoomListing    { return d.rooms }
func (d *fakeDirectory) PlayersByMode() map[mode.Kind]int { return map[mode.Kind]int{} }
func (d *fakeDirectory) Changed() <-chan struct{}         { return make(chan struct{}) }

func (d *fakeDirectory) Lookup(id string) (protocol.RoomListing, error) {
	for _, r := range d.rooms {
		if r.RoomID == id {
			return r, nil
		}
	}
	return protocol.RoomListing{}, lobby.ErrRoomNotFound
}

func (d *fakeDirectory) Choose(kind mode.Kind, s lobby.Settings, now time.Time) (room.Info, bool) {
	return lobby.NewRoom(kind, s, now), true
}

// --- Helpers ---

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(k)
		m = next.(Model)
	}
	return m, cmd
}

func feed(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

// playing returns a model already inside a room backed by s.
func playing(t *testing.T, s *mockSession) Model {
	t.Helper()
	m := NewModel(Options{PlayerID: "me", PlayerName: "Bo", Log: zerolog.Nop(), Directory: &fakeDirectory{}})
	m = feed(t, m, JoinedMsg{Session: s, Info: room.Info{ID: "r1"}})
	require.Equal(t, ScreenPlaying, m.screen)
	return m
}

// --- Tests ---

func TestCreateRoomJoinsSelectedMode(t *testing.T) {
	var got room.Info
	var who protocol.PlayerMeta
	s := newMockSession()
	m := NewModel(Options{
		PlayerID:   "me",
		PlayerName: "Bo",
		Color:      "#FF6B6B",
		Settings:   lobby.Settings{KothMinutes: 2},
		Directory:  &fakeDirectory{},
		Log:        zerolog.Nop(),
		Join: func(ctx context.Context, info room.Info, me protocol.PlayerMeta) (Session, error) {
			got, who = info, me
			return s, nil
		},
	})

	m, cmd := press(t, m, runes("3"), runes("c"))
	assert.Equal(t, ScreenJoining, m.screen)
	require.NotNil(t, cmd)

	msg := cmd()
	require.IsType(t, JoinedMsg{}, msg)
	assert.Equal(t, mode.KingOfTheHill, got.Mode)
	assert.Equal(t, "Bo's Room", got.Name)
	assert.Equal(t, 2, got.Minutes)
	assert.Equal(t, protocol.PlayerMeta{PlayerID: "me", Name: "Bo", Color: "#FF6B6B"}, who)

	m = feed(t, m, msg)
	assert.Equal(t, ScreenPlaying, m.screen)
}

func TestJoinMissingRoomShowsNotice(t *testing.T) {
	d := &fakeDirectory{rooms: []protocol.RoomListing{{RoomID: "gone", RoomName: "Gone"}}}
	m := NewModel(Options{Directory: d, Log: zerolog.Nop()})
	m = feed(t, m, DirectoryMsg{})
	d.rooms = nil

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, ScreenNotice, m.screen)
	assert.Equal(t, "That room no longer exists.", m.notice)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, ScreenLobby, m.screen)
}

func TestPlayingKeysDriveSession(t *testing.T) {
	s := newMockSession()
	s.On("Move", world.North).Once()
	s.On("Move", world.East).Once()
	s.On("Rotate", true).Once()
	s.On("PlaceBlock").Once()
	s.On("RemoveBlock").Once()
	s.On("Push").Once()
	s.On("SelectColor", 2).Once()

	m := playing(t, s)
	press(t, m,
		runes("w"),
		tea.KeyMsg{Type: tea.KeyRight},
		runes("q"),
		tea.KeyMsg{Type: tea.KeySpace},
		runes("x"),
		runes("f"),
		runes("3"),
	)
	s.AssertExpectations(t)
}

func TestChatInputAndCommands(t *testing.T) {
	s := newMockSession()
	s.On("Chat", "hi there").Once()
	s.On("Rename", "Zed").Once()

	m := playing(t, s)
	m, _ = press(t, m, runes("t"), runes("hi"), tea.KeyMsg{Type: tea.KeySpace}, runes("there"))
	assert.Contains(t, m.View(), "> hi there_")
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, inputNone, m.input)

	m, _ = press(t, m, runes("t"), runes("/name Zed"), tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "Zed", m.name)

	m, _ = press(t, m, runes("t"), runes("oops"), tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, inputNone, m.input)
	s.AssertExpectations(t)
	s.AssertNotCalled(t, "Chat", "oops")
}

func TestKickCommandTargetsByName(t *testing.T) {
	s := &mockSession{changed: make(chan struct{}, 1), exit: make(chan peer.Exit, 1)}
	s.On("View").Return(room.View{
		WorldReady: true,
		SelfID:     "me",
		Players:    []room.Player{{ID: "me", Name: "Bo"}, {ID: "p2", Name: "Ann"}},
	})
	s.On("Status").Return(peer.Status{Election: election.Host, HostID: "me", Synced: true})
	s.On("Kick", "p2").Once()

	m := playing(t, s)
	press(t, m, runes("t"), runes("/kick ann"), tea.KeyMsg{Type: tea.KeyEnter})
	s.AssertExpectations(t)
}

func TestExitReturnsToLobbyWithNotice(t *testing.T) {
	s := newMockSession()
	m := playing(t, s)

	other := newMockSession()
	m = feed(t, m, ExitMsg{Session: other, Exit: peer.Exit{Reason: peer.ExitKicked}})
	assert.Equal(t, ScreenPlaying, m.screen, "exits of an earlier session are ignored")

	m = feed(t, m, ExitMsg{Session: s, Exit: peer.Exit{Reason: peer.ExitKicked, Message: "You were kicked by the host"}})
	assert.Equal(t, ScreenNotice, m.screen)
	assert.Nil(t, m.session)
	assert.Contains(t, m.View(), "You were kicked by the host")
}

func TestEscLeavesRoom(t *testing.T) {
	s := newMockSession()
	s.On("Close").Return(nil).Once()
	m := playing(t, s)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ScreenLobby, m.screen)
	assert.Nil(t, m.session)
	s.AssertExpectations(t)
}

func TestFatalScreenOnlyQuits(t *testing.T) {
	m := NewModel(Options{Fatal: errors.New("TOWER_RELAY_URL is not set")})
	assert.Nil(t, m.Init())
	assert.Contains(t, m.View(), "TOWER_RELAY_URL is not set")

	_, cmd := press(t, m, runes("c"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestRenderWorldMarksPlayersAndBlocks(t *testing.T) {
	g := world.Generate()
	v := room.View{
		Info:       room.Info{Name: "Bo's Room", Mode: mode.Freeplay},
		SelfID:     "me",
		WorldReady: true,
		Blocks:     g.Blocks(),
		Players: []room.Player{
			{ID: "me", Name: "bo", Color: "#FF6B6B", Pos: world.Position{X: 0, Y: 1, Z: 0}, Direction: world.North},
		},
	}
	out := RenderWorld(v)
	assert.Contains(t, out, "B^")
	assert.Equal(t, world.WorldSize+2, len(strings.Split(out, "\n")), "one line per row plus the border")

	info := RenderInfo(v, peer.Status{Election: election.Host, HostID: "me", Synced: true}, time.Now())
	assert.Contains(t, info, "You are hosting")
	assert.Contains(t, info, "Bo's Room")
}

func TestDisconnectIsFatal(t *testing.T) {
	s := newMockSession()
	s.On("Close").Return(nil).Once()
	m := playing(t, s)

	m = feed(t, m, DisconnectedMsg{Err: errors.New("connection reset")})
	assert.Equal(t, ScreenFatal, m.screen)
	assert.Contains(t, m.View(), "disconnected from relay: connection reset")
	s.AssertExpectations(t)
}
