package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/user"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/hersh/towerattack/internal/config"
	"github.com/hersh/towerattack/internal/identity"
	"github.com/hersh/towerattack/internal/lobby"
	"github.com/hersh/towerattack/internal/logging"
	"github.com/hersh/towerattack/internal/peer"
	"github.com/hersh/towerattack/internal/protocol"
	"github.com/hersh/towerattack/internal/room"
	"github.com/hersh/towerattack/internal/transport/wsclient"
	"github.com/hersh/towerattack/internal/tui"
	"github.com/hersh/towerattack/internal/world"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	relayURL := flag.String("relay", cfg.RelayURL, "Relay websocket address (TOWER_RELAY_URL)")
	playerName := flag.String("name", cfg.PlayerName, "Player name (defaults to OS username)")
	strategy := flag.String("identity", cfg.Identity, "Identity strategy: persisted or ephemeral")
	logFile := flag.String("log", cfg.LogFile, "Log file (the terminal belongs to the UI)")
	flag.Parse()
	cfg.RelayURL = *relayURL

	if *logFile == "" {
		*logFile = filepath.Join(os.TempDir(), "towerattack.log")
	}
	log, closer, err := logging.Setup(logging.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON, File: *logFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	s, err := identity.ParseStrategy(*strategy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "identity: %v\n", err)
		os.Exit(1)
	}
	id, err := identity.Resolve(s, cfg.IdentityFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "identity: %v\n", err)
		os.Exit(1)
	}

	opts := tui.Options{
		PlayerID:   id,
		PlayerName: defaultName(*playerName),
		Color:      world.Palette[rand.Intn(len(world.Palette))],
		Settings:   lobby.Settings{StompMinutes: cfg.StompMinutes, KothMinutes: cfg.KothMinutes},
		Log:        log,
	}

	game, dir, err := connect(cfg, id, log)
	if err != nil {
		log.Error().Err(err).Msg("relay unavailable")
		opts.Fatal = err
	} else {
		defer game.Close()
		defer dir.Close()
		opts.Directory = dir
		opts.Join = func(ctx context.Context, info room.Info, me protocol.PlayerMeta) (tui.Session, error) {
			return peer.Join(ctx, peer.Config{Room: info, Me: me, Transport: game, Log: log})
		}
	}

	p := tea.NewProgram(
		tui.NewModel(opts),
		tea.WithAltScreen(),
	)

	if game != nil {
		go func() {
			<-game.Done()
			p.Send(tui.DisconnectedMsg{Err: game.Err()})
		}()
	}

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// connect opens the game connection and a second one for reading the
// directory, since a connection joins each topic once and a hosting peer
// advertises on the directory topic itself.
func connect(cfg config.Config, id string, log zerolog.Logger) (*wsclient.Client, *lobby.Directory, error) {
	if err := cfg.RequireRelay(); err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	game, err := wsclient.Dial(ctx, cfg.RelayURL, log)
	if err != nil {
		return nil, nil, fmt.Errorf("could not reach relay at %s: %w", cfg.RelayURL, err)
	}
	dirConn, err := wsclient.Dial(ctx, cfg.RelayURL, log)
	if err != nil {
		game.Close()
		return nil, nil, fmt.Errorf("could not reach relay at %s: %w", cfg.RelayURL, err)
	}
	dir, err := lobby.Watch(ctx, dirConn, id, log)
	if err != nil {
		game.Close()
		dirConn.Close()
		return nil, nil, err
	}
	return game, dir, nil
}

func defaultName(name string) string {
	if name != "" {
		return name
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return fmt.Sprintf("Player%d", rand.Intn(1000))
}
