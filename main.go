package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/hersh/towerattack/internal/lobby"
	"github.com/hersh/towerattack/internal/logging"
	"github.com/hersh/towerattack/internal/peer"
	"github.com/hersh/towerattack/internal/protocol"
	"github.com/hersh/towerattack/internal/room"
	"github.com/hersh/towerattack/internal/transport/memory"
	"github.com/hersh/towerattack/internal/tui"
	"github.com/hersh/towerattack/internal/world"
)

// This is the offline sandbox: one player on an in-process bus, hosting
// their own rooms. For multiplayer, use:
//   Relay:  go run ./cmd/relay
//   Client: TOWER_RELAY_URL=ws://localhost:8080/ws go run ./cmd/client --name YourName

func main() {
	name := "Player"
	if len(os.Args) > 1 {
		name = os.Args[1]
	}

	log, closer, err := logging.Setup(logging.Options{
		Level: os.Getenv("TOWER_LOG_LEVEL"),
		File:  filepath.Join(os.TempDir(), "towerattack-sandbox.log"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	bus := memory.NewBus()
	id := uuid.NewString()
	dir, err := lobby.Watch(context.Background(), bus, id, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer dir.Close()

	model := tui.NewModel(tui.Options{
		PlayerID:   id,
		PlayerName: name,
		Color:      world.Palette[0],
		Directory:  dir,
		Log:        log,
		Join: func(ctx context.Context, info room.Info, me protocol.PlayerMeta) (tui.Session, error) {
			return peer.Join(ctx, peer.Config{Room: info, Me: me, Transport: bus, Log: log})
		},
	})

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
