package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/hersh/towerattack/internal/lobby"
	"github.com/hersh/towerattack/internal/mode"
	"github.com/hersh/towerattack/internal/peer"
	"github.com/hersh/towerattack/internal/protocol"
	"github.com/hersh/towerattack/internal/room"
	"github.com/hersh/towerattack/internal/world"
)

// Session is the room a player is in. *peer.Peer implements it.
type Session interface {
	Move(dir world.Direction)
	Rotate(left bool)
	PlaceBlock()
	RemoveBlock()
	Push()
	SelectColor(i int)
	Chat(text string)
	Rename(name string)
	Kick(id string)
	View() room.View
	Status() peer.Status
	Changed() <-chan struct{}
	Exit() <-chan peer.Exit
	Close() error
}

// Directory is the room list the lobby screen browses. *lobby.Directory
// implements it.
type Directory interface {
	Rooms() []protocol.RoomListing
	PlayersByMode() map[mode.Kind]int
	Lookup(id string) (protocol.RoomListing, error)
	Choose(kind mode.Kind, s lobby.Settings, now time.Time) (room.Info, bool)
	Changed() <-chan struct{}
}

// JoinFunc enters a room as the given player.
type JoinFunc func(ctx context.Context, info room.Info, me protocol.PlayerMeta) (Session, error)

// Options wires the model to the network.
type Options struct {
	PlayerID   string
	PlayerName string
	Color      string
	Settings   lobby.Settings
	Directory  Directory
	Join       JoinFunc
	Log        zerolog.Logger
	// Fatal blocks the UI with a message; only quitting is possible.
	Fatal error
}

// --- Custom tea.Msg types ---

type TickMsg time.Time

// DirectoryMsg: the room list changed.
type DirectoryMsg struct{}

// JoinedMsg: a room was entered.
type JoinedMsg struct {
	Session Session
	Info    room.Info
}

// JoinFailedMsg: entering a room failed.
type JoinFailedMsg struct {
	Err error
}

// SessionMsg: the room view may have changed.
type SessionMsg struct {
	Session Session
}

// ExitMsg: the session ended.
type ExitMsg struct {
	Session Session
	Exit    peer.Exit
}

// DisconnectedMsg: the relay connection was lost.
type DisconnectedMsg struct {
	Err error
}

// --- Screens ---

type Screen int

const (
	ScreenLobby Screen = iota
	ScreenJoining
	ScreenPlaying
	ScreenNotice
	ScreenFatal
)

type inputMode int

const (
	inputNone inputMode = iota
	inputChat
	inputName
)

// --- Model ---

type Model struct {
	opts   Options
	screen Screen
	width  int
	height int

	name    string
	modeIdx int
	cursor  int
	rooms   []protocol.RoomListing
	counts  map[mode.Kind]int
	joining room.Info
	session Session
	view    room.View
	status  peer.Status
	notice  string
	input   inputMode
	draft   string
	now     func() time.Time
}

// NewModel creates the client model. It starts on the lobby screen, or on
// the fatal screen when opts.Fatal is set.
func NewModel(opts Options) Model {
	name := opts.PlayerName
	if name == "" {
		name = "Player"
	}
	m := Model{
		opts:   opts,
		screen: ScreenLobby,
		name:   name,
		counts: map[mode.Kind]int{},
		now:    time.Now,
	}
	if opts.Fatal != nil {
		m.screen = ScreenFatal
	}
	return m
}

func (m Model) Init() tea.Cmd {
	if m.screen == ScreenFatal {
		return nil
	}
	return tea.Batch(tickCmd(), waitDirectory(m.opts.Directory))
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func waitDirectory(d Directory) tea.Cmd {
	if d == nil {
		return nil
	}
	return func() tea.Msg {
		<-d.Changed()
		return DirectoryMsg{}
	}
}

func waitSession(s Session) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-s.Changed():
			return SessionMsg{Session: s}
		case e := <-s.Exit():
			return ExitMsg{Session: s, Exit: e}
		}
	}
}

func joinCmd(join JoinFunc, info room.Info, me protocol.PlayerMeta) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := join(ctx, info, me)
		if err != nil {
			return JoinFailedMsg{Err: err}
		}
		return JoinedMsg{Session: s, Info: info}
	}
}

// --- Update ---

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case TickMsg:
		m.refresh()
		return m, tickCmd()
	case DirectoryMsg:
		m.refreshRooms()
		return m, waitDirectory(m.opts.Directory)
	case JoinedMsg:
		return m.handleJoined(msg)
	case JoinFailedMsg:
		m.opts.Log.Warn().Err(msg.Err).Str("room", m.joining.ID).Msg("join failed")
		m.screen = ScreenNotice
		m.notice = "Could not join room: " + msg.Err.Error()
		return m, nil
	case SessionMsg:
		if m.session == nil || msg.Session != m.session {
			return m, nil
		}
		m.refresh()
		return m, waitSession(m.session)
	case ExitMsg:
		if m.session == nil || msg.Session != m.session {
			return m, nil
		}
		return m.handleExit(msg.Exit)
	case DisconnectedMsg:
		m.leave()
		m.screen = ScreenFatal
		m.opts.Fatal = fmt.Errorf("disconnected from relay: %w", msg.Err)
		if msg.Err == nil {
			m.opts.Fatal = errors.New("disconnected from relay")
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) refresh() {
	if m.session == nil {
		return
	}
	m.view = m.session.View()
	m.status = m.session.Status()
}

func (m *Model) refreshRooms() {
	if m.opts.Directory == nil {
		return
	}
	m.rooms = m.opts.Directory.Rooms()
	m.counts = m.opts.Directory.PlayersByMode()
	if m.cursor >= len(m.rooms) {
		m.cursor = max(0, len(m.rooms)-1)
	}
}

func (m Model) handleJoined(msg JoinedMsg) (tea.Model, tea.Cmd) {
	m.session = msg.Session
	m.screen = ScreenPlaying
	m.input = inputNone
	m.refresh()
	m.opts.Log.Info().Str("room", msg.Info.ID).Str("mode", string(msg.Info.Mode)).Msg("entered room")
	return m, waitSession(m.session)
}

func (m Model) handleExit(e peer.Exit) (tea.Model, tea.Cmd) {
	m.session = nil
	m.view = room.View{}
	m.input = inputNone
	m.screen = ScreenNotice
	m.notice = e.Message
	switch e.Reason {
	case peer.ExitLeft:
		m.screen = ScreenLobby
	case peer.ExitLobby:
		if m.notice == "" {
			m.notice = "Match over"
		}
	}
	m.refreshRooms()
	return m, nil
}

// --- Key handlers ---

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.leave()
		return m, tea.Quit
	}
	if m.input != inputNone {
		return m.handleInputKeys(msg)
	}

	switch m.screen {
	case ScreenFatal:
		return m, tea.Quit
	case ScreenLobby:
		return m.handleLobbyKeys(msg)
	case ScreenPlaying:
		return m.handlePlayingKeys(msg)
	case ScreenNotice:
		if msg.String() == "enter" || msg.String() == "esc" {
			m.screen = ScreenLobby
			m.notice = ""
		}
	}
	return m, nil
}

func (m *Model) leave() {
	if m.session != nil {
		m.session.Close()
		m.session = nil
	}
}

func (m Model) handleLobbyKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "1", "2", "3", "4":
		m.modeIdx = int(msg.String()[0] - '1')
	case "tab":
		m.modeIdx = (m.modeIdx + 1) % len(mode.Kinds)
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.rooms)-1 {
			m.cursor++
		}
	case "n":
		m.input = inputName
		m.draft = m.name
	case "c":
		info := lobby.NewRoom(m.selectedMode(), m.settings(), m.now())
		return m.join(info)
	case "f":
		if m.opts.Directory == nil {
			return m.join(lobby.NewRoom(m.selectedMode(), m.settings(), m.now()))
		}
		info, _ := m.opts.Directory.Choose(m.selectedMode(), m.settings(), m.now())
		return m.join(info)
	case "enter":
		if len(m.rooms) == 0 || m.opts.Directory == nil {
			return m, nil
		}
		l, err := m.opts.Directory.Lookup(m.rooms[m.cursor].RoomID)
		if err != nil {
			m.screen = ScreenNotice
			m.notice = roomError(err)
			return m, nil
		}
		return m.join(lobby.FromListing(l))
	}
	return m, nil
}

func roomError(err error) string {
	switch {
	case errors.Is(err, lobby.ErrRoomNotFound):
		return "That room no longer exists."
	case errors.Is(err, lobby.ErrRoomFull):
		return "That room is full."
	}
	return err.Error()
}

func (m Model) join(info room.Info) (tea.Model, tea.Cmd) {
	if m.opts.Join == nil {
		return m, nil
	}
	m.joining = info
	m.screen = ScreenJoining
	me := protocol.PlayerMeta{PlayerID: m.opts.PlayerID, Name: m.name, Color: m.opts.Color}
	return m, joinCmd(m.opts.Join, info, me)
}

func (m Model) selectedMode() mode.Kind {
	return mode.Kinds[m.modeIdx%len(mode.Kinds)]
}

func (m Model) settings() lobby.Settings {
	s := m.opts.Settings
	s.PlayerName = m.name
	return s
}

var moveKeys = map[string]world.Direction{
	"up": world.North, "w": world.North,
	"down": world.South, "s": world.South,
	"left": world.West, "a": world.West,
	"right": world.East, "d": world.East,
}

func (m Model) handlePlayingKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.session == nil {
		return m, nil
	}
	key := msg.String()
	if dir, ok := moveKeys[key]; ok {
		m.session.Move(dir)
		return m, nil
	}
	switch key {
	case "q":
		m.session.Rotate(true)
	case "e":
		m.session.Rotate(false)
	case " ":
		m.session.PlaceBlock()
	case "x":
		m.session.RemoveBlock()
	case "f":
		m.session.Push()
	case "1", "2", "3", "4", "5", "6", "7", "8":
		m.session.SelectColor(int(key[0] - '1'))
	case "t", "enter":
		m.input = inputChat
		m.draft = ""
	case "esc":
		m.leave()
		m.screen = ScreenLobby
		m.view = room.View{}
		m.refreshRooms()
	}
	return m, nil
}

func (m Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.input = inputNone
		m.draft = ""
	case tea.KeyEnter:
		m.submit()
		m.input = inputNone
		m.draft = ""
	case tea.KeyBackspace:
		if r := []rune(m.draft); len(r) > 0 {
			m.draft = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.draft += " "
	case tea.KeyRunes:
		m.draft += string(msg.Runes)
	}
	return m, nil
}

// submit handles a finished line of input. In a room, "/name X" renames and
// "/kick X" asks the host to remove the player named X.
func (m *Model) submit() {
	text := strings.TrimSpace(m.draft)
	if text == "" {
		return
	}
	if m.input == inputName {
		m.name = text
		if len([]rune(m.name)) > room.MaxNameLen {
			m.name = string([]rune(m.name)[:room.MaxNameLen])
		}
		return
	}
	if m.session == nil {
		return
	}
	switch {
	case strings.HasPrefix(text, "/name "):
		name := strings.TrimSpace(strings.TrimPrefix(text, "/name "))
		m.session.Rename(name)
		m.name = name
	case strings.HasPrefix(text, "/kick "):
		target := strings.TrimSpace(strings.TrimPrefix(text, "/kick "))
		for _, p := range m.view.Players {
			if strings.EqualFold(p.Name, target) && p.ID != m.view.SelfID {
				m.session.Kick(p.ID)
				return
			}
		}
	default:
		m.session.Chat(text)
	}
}

// --- View ---

func (m Model) View() string {
	switch m.screen {
	case ScreenFatal:
		return m.renderCentered(RenderFatal(m.opts.Fatal))
	case ScreenLobby:
		return m.renderCentered(m.renderLobby())
	case ScreenJoining:
		return m.renderCentered(fmt.Sprintf("Joining %s...", m.joining.Name))
	case ScreenPlaying:
		return m.renderCentered(m.renderPlaying())
	case ScreenNotice:
		return m.renderCentered(RenderNotice(m.notice))
	}
	return ""
}

func (m Model) renderCentered(content string) string {
	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(content)
}

func (m Model) renderLobby() string {
	name := m.name
	if m.input == inputName {
		name = m.draft + "_"
	}
	return RenderLobby(LobbyView{
		Name:     name,
		Mode:     m.selectedMode(),
		Rooms:    m.rooms,
		Cursor:   m.cursor,
		Counts:   m.counts,
		Settings: m.settings(),
	})
}

func (m Model) renderPlaying() string {
	if !m.view.WorldReady {
		return "Syncing world..."
	}
	board := RenderWorld(m.view)
	info := RenderInfo(m.view, m.status, m.now())

	leftPanel := lipgloss.NewStyle().
		Width(34).
		Render(info)

	centerPanel := lipgloss.NewStyle().
		Padding(0, 2).
		Render(board)

	chat := RenderChat(m.view.Chat, 10)
	if m.input == inputChat {
		chat += "\n" + promptStyle.Render("> "+m.draft+"_")
	}
	rightPanel := lipgloss.NewStyle().
		Width(40).
		Render(chat + "\n\n" + RenderControls())

	return lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, centerPanel, rightPanel)
}
