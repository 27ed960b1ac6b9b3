// Package transport is the broadcast and presence channel contract the game
// runs over. Implementations live in the memory and wsclient subpackages.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hersh/towerattack/internal/protocol"
)

var ErrClosed = errors.New("transport: channel closed")

// Message is one inbound broadcast.
type Message struct {
	Event   protocol.MessageType
	Payload json.RawMessage
}

// Presence is a full membership snapshot, presence key to metadata.
type Presence map[string]json.RawMessage

// Channel is a joined topic. Broadcasts are not echoed back to the sender.
// Messages and Presence are closed when the channel closes.
type Channel interface {
	Topic() string
	Broadcast(ctx context.Context, event protocol.MessageType, payload json.RawMessage) error
	Track(ctx context.Context, meta any) error
	Untrack(ctx context.Context) error
	Messages() <-chan Message
	Presence() <-chan Presence
	Close() error
}

// Transport opens channels. key is the presence key this member tracks
// under.
type Transport interface {
	Join(ctx context.Context, topic, key string) (Channel, error)
}

// Send broadcasts a protocol event on ch.
func Send(ctx context.Context, ch Channel, ev protocol.Event) error {
	t, raw, err := protocol.Marshal(ev)
	if err != nil {
		return err
	}
	if err := ch.Broadcast(ctx, t, raw); err != nil {
		return fmt.Errorf("broadcast %s on %s: %w", t, ch.Topic(), err)
	}
	return nil
}

// Decode turns an inbound message into a protocol event.
func Decode(m Message) (protocol.Event, error) {
	return protocol.Unmarshal(m.Event, m.Payload)
}

// Members decodes every presence entry into T, skipping entries that do not
// parse.
func Members[T any](p Presence) map[string]T {
	out := make(map[string]T, len(p))
	for key, raw := range p {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		out[key] = v
	}
	return out
}
