package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/hersh/towerattack/internal/election"
	"github.com/hersh/towerattack/internal/lobby"
	"github.com/hersh/towerattack/internal/mode"
	"github.com/hersh/towerattack/internal/peer"
	"github.com/hersh/towerattack/internal/protocol"
	"github.com/hersh/towerattack/internal/room"
	"github.com/hersh/towerattack/internal/world"
)

var (
	boardStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("15"))

	infoStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("15"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("51"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("226"))

	hostStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46"))

	infectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	systemStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("248"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))

	hillStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226"))
)

var arrows = map[world.Direction]string{
	world.South: "v",
	world.West:  "<",
	world.North: "^",
	world.East:  ">",
}

// RenderWorld draws the grid top-down with north (-z) at the top. A column
// shows its top block's color and height; players and NPCs are drawn over it.
func RenderWorld(v room.View) string {
	type column struct {
		color string
		y     int
	}
	top := make(map[[2]int]column, world.WorldSize*world.WorldSize)
	for _, b := range v.Blocks {
		k := [2]int{b.X, b.Z}
		if c, ok := top[k]; !ok || b.Y >= c.y {
			top[k] = column{color: b.Color, y: b.Y}
		}
	}

	cells := make(map[[2]int]string)
	for _, n := range v.NPCs {
		if n.Alive {
			cells[[2]int{n.X, n.Z}] = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color(n.Color)).
				Render("@@")
		}
	}
	for _, p := range v.Players {
		if p.Fall.Busy() {
			continue
		}
		glyph := initial(p.Name) + arrows[p.Direction]
		st := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(p.Color))
		if p.ID == v.SelfID {
			st = st.Reverse(true)
		}
		if v.Info.Mode == mode.Infection && p.Infected {
			st = st.Foreground(lipgloss.Color("196"))
		}
		cells[[2]int{p.Pos.X, p.Pos.Z}] = st.Render(glyph)
	}

	var hill *mode.Hill
	if v.Match != nil && v.Match.Hill != nil {
		hill = v.Match.Hill
	}

	var sb strings.Builder
	for z := 0; z < world.WorldSize; z++ {
		for x := 0; x < world.WorldSize; x++ {
			if s, ok := cells[[2]int{x, z}]; ok {
				sb.WriteString(s)
				continue
			}
			c := top[[2]int{x, z}]
			switch {
			case c.y == 0 && hill != nil && hill.Contains(x, z):
				sb.WriteString(hillStyle.Render("░░"))
			case c.y == 0:
				sb.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(c.color)).Render("··"))
			default:
				sb.WriteString(lipgloss.NewStyle().
					Foreground(lipgloss.Color("0")).
					Background(lipgloss.Color(c.color)).
					Render(fmt.Sprintf("%2d", c.y)))
			}
		}
		if z < world.WorldSize-1 {
			sb.WriteString("\n")
		}
	}
	return boardStyle.Render(sb.String())
}

func initial(name string) string {
	for _, r := range name {
		return strings.ToUpper(string(r))
	}
	return "?"
}

// RenderInfo is the side panel: room, coordination state, match clock and
// scoreboard.
func RenderInfo(v room.View, s peer.Status, now time.Time) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("TOWER ATTACK") + "\n\n")
	sb.WriteString(infoStyle.Render(v.Info.Name) + "\n")
	sb.WriteString(infoStyle.Render("Mode: "+v.Info.Mode.Title()) + "\n")
	sb.WriteString(infoStyle.Render(statusLine(v, s)) + "\n")

	if m := v.Match; m != nil {
		switch m.Phase() {
		case mode.Running:
			left := m.Remaining(now).Round(time.Second)
			sb.WriteString(infoStyle.Render(fmt.Sprintf("Time: %d:%02d", int(left.Minutes()), int(left.Seconds())%60)) + "\n")
		case mode.Ended:
			sb.WriteString(infoStyle.Render(resultLine(m.Winner)) + "\n")
		default:
			sb.WriteString(infoStyle.Render("Waiting for host...") + "\n")
		}
		if v.Info.Mode == mode.KingOfTheHill {
			sb.WriteString(infoStyle.Render(hillLine(v)) + "\n")
		}
	}
	if v.Returning {
		sb.WriteString(infoStyle.Render(selectedStyle.Render("Returning to lobby...")) + "\n")
	}

	sb.WriteString("\n" + titleStyle.Render("PLAYERS") + "\n")
	players := append([]room.Player(nil), v.Players...)
	sort.SliceStable(players, func(i, j int) bool {
		if players[i].Score != players[j].Score {
			return players[i].Score > players[j].Score
		}
		return players[i].Name < players[j].Name
	})
	for _, p := range players {
		sb.WriteString(infoStyle.Render(playerLine(v, s, p)) + "\n")
	}

	sb.WriteString("\n" + titleStyle.Render("COLOR") + " ")
	for i, c := range world.Palette {
		sw := lipgloss.NewStyle().Foreground(lipgloss.Color(c))
		if i == v.SelectedColor {
			sb.WriteString(sw.Render("[█]"))
		} else {
			sb.WriteString(sw.Render(" █ "))
		}
	}
	return sb.String()
}

func statusLine(v room.View, s peer.Status) string {
	switch s.Election {
	case election.Host:
		return hostStyle.Render("You are hosting")
	case election.Electing:
		return dimStyle.Render("Electing host...")
	case election.Follower:
		if !s.Synced {
			return dimStyle.Render("Syncing with host...")
		}
		for _, p := range v.Players {
			if p.ID == s.HostID {
				return "Host: " + p.Name
			}
		}
		return "Host: " + s.HostID
	}
	return dimStyle.Render("Looking for host...")
}

func playerLine(v room.View, s peer.Status, p room.Player) string {
	var tags []string
	if p.ID == s.HostID {
		tags = append(tags, "host")
	}
	if p.ID == v.SelfID {
		tags = append(tags, "you")
	}
	if p.Fall.Busy() {
		tags = append(tags, p.Fall.Phase.String())
	}
	line := p.Name
	if v.Info.Mode.Scored() {
		line = fmt.Sprintf("%-20s %3d", p.Name, p.Score)
	}
	if v.Info.Mode == mode.Infection && p.Infected {
		line = infectedStyle.Render("☣ ") + line
	}
	if len(tags) > 0 {
		line += dimStyle.Render(" (" + strings.Join(tags, ", ") + ")")
	}
	return line
}

func hillLine(v room.View) string {
	switch {
	case v.Control.Contested:
		return "Hill: contested"
	case v.Control.ControllerID != "":
		for _, p := range v.Players {
			if p.ID == v.Control.ControllerID {
				return "Hill: " + p.Name
			}
		}
	}
	return "Hill: open"
}

func resultLine(r *mode.Result) string {
	switch {
	case r == nil:
		return "Match over"
	case r.Tie:
		names := make([]string, len(r.Winners))
		for i, w := range r.Winners {
			names[i] = w.Name
		}
		return fmt.Sprintf("Tie at %d: %s", r.Score, strings.Join(names, ", "))
	}
	return fmt.Sprintf("Winner: %s (%d)", r.WinnerName, r.Score)
}

// RenderChat shows the newest n chat lines.
func RenderChat(chat []protocol.ChatMessage, n int) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("CHAT") + "\n")
	if len(chat) > n {
		chat = chat[len(chat)-n:]
	}
	for _, c := range chat {
		if c.Type == protocol.ChatSystem {
			sb.WriteString(systemStyle.Render(c.Text) + "\n")
			continue
		}
		name := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(c.PlayerColor)).Render(c.PlayerName)
		sb.WriteString(name + ": " + c.Text + "\n")
	}
	return sb.String()
}

// LobbyView is everything the lobby screen shows.
type LobbyView struct {
	Name     string
	Mode     mode.Kind
	Rooms    []protocol.RoomListing
	Cursor   int
	Counts   map[mode.Kind]int
	Settings lobby.Settings
}

func RenderLobby(l LobbyView) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("=== TOWER ATTACK ===") + "\n\n")
	sb.WriteString(infoStyle.Render("Name: "+l.Name) + "\n\n")

	sb.WriteString(titleStyle.Render("MODE") + "\n")
	for i, k := range mode.Kinds {
		line := fmt.Sprintf("[%d] %-18s %d playing", i+1, k.Title(), l.Counts[k])
		switch k {
		case mode.ClassicStomp:
			line += fmt.Sprintf(", %d min", mode.ClampMinutes(l.Settings.StompMinutes))
		case mode.KingOfTheHill:
			line += fmt.Sprintf(", %d min", mode.ClampMinutes(l.Settings.KothMinutes))
		}
		if k == l.Mode {
			sb.WriteString(selectedStyle.Render("> "+line) + "\n")
		} else {
			sb.WriteString(infoStyle.Render(line) + "\n")
		}
	}

	sb.WriteString("\n" + titleStyle.Render("ROOMS") + "\n")
	if len(l.Rooms) == 0 {
		sb.WriteString(dimStyle.Render("No active rooms. Create one!") + "\n")
	}
	for i, r := range l.Rooms {
		line := fmt.Sprintf("%-24s %-18s %d/%d", r.RoomName, r.GameMode.Title(), r.PlayerCount, r.MaxPlayers)
		if i == l.Cursor {
			sb.WriteString(selectedStyle.Render("> "+line) + "\n")
		} else {
			sb.WriteString(infoStyle.Render(line) + "\n")
		}
	}

	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render("1-4/TAB mode  C create  F quick join  ENTER join  N name  Q quit") + "\n")
	return sb.String()
}

func RenderNotice(msg string) string {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("226")).
		Align(lipgloss.Center).
		Render(fmt.Sprintf("\n\n%s\n\nPress ENTER to continue\n\n", msg))
}

func RenderFatal(err error) string {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("196")).
		Align(lipgloss.Center).
		Render(fmt.Sprintf("\n\n%v\n\nPress any key to exit\n\n", err))
}

func RenderControls() string {
	return infoStyle.Render(`Controls:
  ←↑↓→/WASD  Move
  Q/E        Rotate
  Space      Place block
  X          Remove block
  F          Push
  1-8        Color
  T          Chat (/name, /kick)
  Esc        Leave room`)
}
