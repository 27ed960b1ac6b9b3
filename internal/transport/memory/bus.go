// Package memory is an in-process transport. Every Bus is an isolated
// network; channels joined on the same topic see each other's broadcasts and
// presence.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hersh/towerattack/internal/protocol"
	"github.com/hersh/towerattack/internal/transport"
)

const bufferSize = 256

// Filter decides whether a broadcast from presence key from reaches the
// member keyed to. Tests use it to drop or partition traffic.
type Filter func(topic, from, to string, m transport.Message) bool

type Bus struct {
	mu     sync.Mutex
	topics map[string]map[*channel]struct{}
	filter Filter
}

func NewBus() *Bus {
	return &Bus{
		topics: make(map[string]map[*channel]struct{}),
	}
}

var _ transport.Transport = (*Bus)(nil)

// SetFilter installs f for future broadcasts. nil delivers everything.
func (b *Bus) SetFilter(f Filter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.filter = f
}

func (b *Bus) Join(ctx context.Context, topic, key string) (transport.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topic == "" {
		return nil, fmt.Errorf("join: empty topic")
	}
	c := &channel{
		bus:      b,
		topic:    topic,
		key:      key,
		msgs:     make(chan transport.Message, bufferSize),
		presence: make(chan transport.Presence, 1),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[*channel]struct{})
		b.topics[topic] = subs
	}
	subs[c] = struct{}{}
	c.offer(b.members(topic))
	return c, nil
}

// Presence returns the current membership of topic.
func (b *Bus) Presence(topic string) transport.Presence {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.members(topic)
}

// members must be called with b.mu held.
func (b *Bus) members(topic string) transport.Presence {
	out := make(transport.Presence)
	for c := range b.topics[topic] {
		if c.meta != nil {
			out[c.key] = c.meta
		}
	}
	return out
}

// publish must be called with b.mu held.
func (b *Bus) publish(topic string) {
	p := b.members(topic)
	for c := range b.topics[topic] {
		c.offer(p)
	}
}

type channel struct {
	bus      *Bus
	topic    string
	key      string
	msgs     chan transport.Message
	presence chan transport.Presence
	meta     json.RawMessage
	closed   bool
}

func (c *channel) Topic() string {
	return c.topic
}

func (c *channel) Broadcast(ctx context.Context, event protocol.MessageType, payload json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := transport.Message{Event: event, Payload: append(json.RawMessage(nil), payload...)}

	b := c.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if c.closed {
		return transport.ErrClosed
	}
	for sub := range b.topics[c.topic] {
		if sub == c {
			continue
		}
		if b.filter != nil && !b.filter(c.topic, c.key, sub.key, m) {
			continue
		}
		select {
		case sub.msgs <- m:
		default:
		}
	}
	return nil
}

func (c *channel) Track(ctx context.Context, meta any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("track %s: %w", c.topic, err)
	}
	b := c.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if c.closed {
		return transport.ErrClosed
	}
	c.meta = raw
	b.publish(c.topic)
	return nil
}

func (c *channel) Untrack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b := c.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if c.closed {
		return transport.ErrClosed
	}
	if c.meta != nil {
		c.meta = nil
		b.publish(c.topic)
	}
	return nil
}

func (c *channel) Messages() <-chan transport.Message {
	return c.msgs
}

func (c *channel) Presence() <-chan transport.Presence {
	return c.presence
}

func (c *channel) Close() error {
	b := c.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	subs := b.topics[c.topic]
	delete(subs, c)
	if len(subs) == 0 {
		delete(b.topics, c.topic)
	}
	close(c.msgs)
	close(c.presence)
	if c.meta != nil {
		c.meta = nil
		b.publish(c.topic)
	}
	return nil
}

// offer keeps only the newest presence snapshot queued. Must be called with
// the bus lock held.
func (c *channel) offer(p transport.Presence) {
	if c.closed {
		return
	}
	select {
	case <-c.presence:
	default:
	}
	select {
	case c.presence <- p:
	default:
	}
}
