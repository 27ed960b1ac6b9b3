// Package lobby reads the room directory and picks or creates the room a
// player enters.
package lobby

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hersh/towerattack/internal/mode"
	"github.com/hersh/towerattack/internal/protocol"
	"github.com/hersh/towerattack/internal/room"
	"github.com/hersh/towerattack/internal/transport"
)

var (
	ErrRoomNotFound = errors.New("lobby: room not found")
	ErrRoomFull     = errors.New("lobby: room is full")
)

// Directory mirrors the listings hosts advertise on the directory channel.
type Directory struct {
	mu    sync.RWMutex
	rooms map[string]protocol.RoomListing

	ch      transport.Channel
	log     zerolog.Logger
	changed chan struct{}
	done    chan struct{}
}

// Watch joins the directory channel as a reader. key must be unique among
// directory members; the local player id is a good choice.
func Watch(ctx context.Context, t transport.Transport, key string, log zerolog.Logger) (*Directory, error) {
	ch, err := t.Join(ctx, protocol.DirectoryTopic, "reader:"+key)
	if err != nil {
		return nil, fmt.Errorf("watch directory: %w", err)
	}
	d := &Directory{
		rooms:   make(map[string]protocol.RoomListing),
		ch:      ch,
		log:     log.With().Str("component", "lobby").Logger(),
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go d.run()
	return d, nil
}

func (d *Directory) run() {
	defer close(d.done)
	msgs := d.ch.Messages()
	for {
		select {
		case _, ok := <-msgs:
			if !ok {
				msgs = nil
			}
		case p, ok := <-d.ch.Presence():
			if !ok {
				return
			}
			d.update(p)
		}
	}
}

func (d *Directory) update(p transport.Presence) {
	rooms := make(map[string]protocol.RoomListing, len(p))
	for key, l := range transport.Members[protocol.RoomListing](p) {
		if l.RoomID == "" {
			l.RoomID = key
		}
		if l.RoomName == "" {
			l.RoomName = "Room"
		}
		if l.MaxPlayers <= 0 {
			l.MaxPlayers = room.MaxPlayers
		}
		l.GameMode = mode.Parse(string(l.GameMode))
		rooms[l.RoomID] = l
	}
	d.mu.Lock()
	d.rooms = rooms
	d.mu.Unlock()
	d.log.Debug().Int("rooms", len(rooms)).Msg("directory updated")

	select {
	case d.changed <- struct{}{}:
	default:
	}
}

// Rooms lists every advertised room, newest first.
func (d *Directory) Rooms() []protocol.RoomListing {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]protocol.RoomListing, 0, len(d.rooms))
	for _, l := range d.rooms {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].RoomID < out[j].RoomID
	})
	return out
}

// Lookup finds a joinable room by id.
func (d *Directory) Lookup(id string) (protocol.RoomListing, error) {
	d.mu.RLock()
	l, ok := d.rooms[id]
	d.mu.RUnlock()
	if !ok {
		return protocol.RoomListing{}, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	if l.PlayerCount >= l.MaxPlayers {
		return l, fmt.Errorf("%w: %s", ErrRoomFull, l.RoomName)
	}
	return l, nil
}

// QuickJoin picks the newest room of the given mode with a free slot.
func (d *Directory) QuickJoin(kind mode.Kind) (protocol.RoomListing, bool) {
	for _, l := range d.Rooms() {
		if l.GameMode == kind && l.PlayerCount < l.MaxPlayers {
			return l, true
		}
	}
	return protocol.RoomListing{}, false
}

// PlayersByMode sums live players per mode across the directory.
func (d *Directory) PlayersByMode() map[mode.Kind]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[mode.Kind]int, len(mode.Kinds))
	for _, l := range d.rooms {
		out[l.GameMode] += l.PlayerCount
	}
	return out
}

// Changed signals a directory update.
func (d *Directory) Changed() <-chan struct{} {
	return d.changed
}

func (d *Directory) Close() error {
	err := d.ch.Close()
	<-d.done
	return err
}

// --- Room selection ---

// Settings are the creator's choices for a new room.
type Settings struct {
	PlayerName   string
	StompMinutes int
	KothMinutes  int
}

// NewRoom describes a fresh room of the given mode owned by the player.
func NewRoom(kind mode.Kind, s Settings, now time.Time) room.Info {
	name := s.PlayerName
	if name == "" {
		name = "Player"
	}
	minutes := mode.DefaultMinutes
	switch kind {
	case mode.ClassicStomp:
		minutes = mode.ClampMinutes(s.StompMinutes)
	case mode.KingOfTheHill:
		minutes = mode.ClampMinutes(s.KothMinutes)
	}
	return room.Info{
		ID:         uuid.NewString(),
		Name:       name + "'s Room",
		Mode:       kind,
		MaxPlayers: room.MaxPlayers,
		Minutes:    minutes,
		CreatedAt:  now,
	}
}

// FromListing describes an advertised room for a joining player. Match
// length comes from the host's snapshot, so the default is only a
// placeholder.
func FromListing(l protocol.RoomListing) room.Info {
	return room.Info{
		ID:         l.RoomID,
		Name:       l.RoomName,
		Mode:       l.GameMode,
		MaxPlayers: l.MaxPlayers,
		Minutes:    mode.DefaultMinutes,
		CreatedAt:  l.CreatedAt,
	}
}

// Choose joins an open room of the mode when one exists and creates one
// otherwise. created reports which happened.
func (d *Directory) Choose(kind mode.Kind, s Settings, now time.Time) (info room.Info, created bool) {
	if l, ok := d.QuickJoin(kind); ok {
		return FromListing(l), false
	}
	return NewRoom(kind, s, now), true
}
