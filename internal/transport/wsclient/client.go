// Package wsclient is the transport that talks to the relay server over one
// websocket, multiplexing every joined topic.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hersh/towerattack/internal/protocol"
	"github.com/hersh/towerattack/internal/transport"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	bufferSize     = 256
)

// Client manages the websocket connection to the relay.
type Client struct {
	mu       sync.Mutex
	conn     *websocket.Conn
	sendCh   chan []byte
	channels map[string]*channel
	done     chan struct{}
	closed   bool
	err      error
	log      zerolog.Logger
}

var _ transport.Transport = (*Client)(nil)

// Dial connects to the relay's websocket endpoint and starts the pumps.
func Dial(ctx context.Context, url string, log zerolog.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay %s: %w", url, err)
	}
	c := &Client{
		conn:     conn,
		sendCh:   make(chan []byte, bufferSize),
		channels: make(map[string]*channel),
		done:     make(chan struct{}),
		log:      log.With().Str("component", "wsclient").Logger(),
	}
	go c.writePump()
	go c.readPump()
	return c, nil
}

// Done is closed when the connection is lost or closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err reports why the connection ended.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Join subscribes to topic. Only one channel per topic may be open.
func (c *Client) Join(ctx context.Context, topic, key string) (transport.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, transport.ErrClosed
	}
	if _, ok := c.channels[topic]; ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("join %s: already joined", topic)
	}
	ch := &channel{
		client:   c,
		topic:    topic,
		msgs:     make(chan transport.Message, bufferSize),
		presence: make(chan transport.Presence, 1),
	}
	c.channels[topic] = ch
	c.mu.Unlock()

	if err := c.send(ctx, protocol.Frame{Type: protocol.FrameJoin, Topic: topic, Key: key}); err != nil {
		c.drop(topic)
		return nil, err
	}
	return ch, nil
}

// Close shuts down the connection and every channel on it.
func (c *Client) Close() error {
	c.shutdown(nil)
	return nil
}

func (c *Client) shutdown(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.err = err
	channels := c.channels
	c.channels = make(map[string]*channel)
	close(c.done)
	c.mu.Unlock()

	for _, ch := range channels {
		ch.finish()
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.conn.Close()
}

func (c *Client) drop(topic string) {
	c.mu.Lock()
	ch, ok := c.channels[topic]
	delete(c.channels, topic)
	c.mu.Unlock()
	if ok {
		ch.finish()
	}
}

// send marshals a frame and queues it. A full queue drops the frame.
func (c *Client) send(ctx context.Context, f protocol.Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal %s frame: %w", f.Type, err)
	}
	select {
	case <-c.done:
		return transport.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case c.sendCh <- data:
		return nil
	default:
		c.log.Warn().Str("topic", f.Topic).Str("frame", string(f.Type)).Msg("send queue full, dropping frame")
		return nil
	}
}

// readPump reads frames and routes them to their channel.
func (c *Client) readPump() {
	var exit error
	defer func() { c.shutdown(exit) }()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Error().Err(err).Msg("read")
				exit = err
			}
			return
		}

		var f protocol.Frame
		if err := json.Unmarshal(message, &f); err != nil {
			c.log.Warn().Err(err).Msg("bad frame")
			continue
		}

		switch f.Type {
		case protocol.FrameBroadcast:
			if ch := c.channel(f.Topic); ch != nil {
				ch.deliver(transport.Message{Event: f.Event, Payload: f.Payload})
			}
		case protocol.FramePresence:
			if ch := c.channel(f.Topic); ch != nil {
				ch.offer(transport.Presence(f.Members))
			}
		case protocol.FrameError:
			c.log.Warn().Str("topic", f.Topic).Msg(f.Message)
		default:
			c.log.Debug().Str("frame", string(f.Type)).Msg("unexpected frame")
		}
	}
}

// writePump writes queued frames and keeps the connection alive.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Error().Err(err).Msg("write")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) channel(topic string) *channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channels[topic]
}

// --- Channel ---

type channel struct {
	client   *Client
	topic    string
	mu       sync.Mutex
	msgs     chan transport.Message
	presence chan transport.Presence
	closed   bool
}

func (ch *channel) Topic() string {
	return ch.topic
}

func (ch *channel) Broadcast(ctx context.Context, event protocol.MessageType, payload json.RawMessage) error {
	if ch.isClosed() {
		return transport.ErrClosed
	}
	return ch.client.send(ctx, protocol.Frame{Type: protocol.FrameBroadcast, Topic: ch.topic, Event: event, Payload: payload})
}

func (ch *channel) Track(ctx context.Context, meta any) error {
	if ch.isClosed() {
		return transport.ErrClosed
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("track %s: %w", ch.topic, err)
	}
	return ch.client.send(ctx, protocol.Frame{Type: protocol.FrameTrack, Topic: ch.topic, Meta: raw})
}

func (ch *channel) Untrack(ctx context.Context) error {
	if ch.isClosed() {
		return transport.ErrClosed
	}
	return ch.client.send(ctx, protocol.Frame{Type: protocol.FrameUntrack, Topic: ch.topic})
}

func (ch *channel) Messages() <-chan transport.Message {
	return ch.msgs
}

func (ch *channel) Presence() <-chan transport.Presence {
	return ch.presence
}

func (ch *channel) Close() error {
	if ch.isClosed() {
		return nil
	}
	err := ch.client.send(context.Background(), protocol.Frame{Type: protocol.FrameLeave, Topic: ch.topic})
	ch.client.drop(ch.topic)
	if errors.Is(err, transport.ErrClosed) {
		return nil
	}
	return err
}

func (ch *channel) isClosed() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.closed
}

func (ch *channel) deliver(m transport.Message) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return
	}
	select {
	case ch.msgs <- m:
	default:
		ch.client.log.Warn().Str("topic", ch.topic).Str("event", string(m.Event)).Msg("inbox full, dropping message")
	}
}

func (ch *channel) offer(p transport.Presence) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return
	}
	select {
	case <-ch.presence:
	default:
	}
	ch.presence <- p
}

func (ch *channel) finish() {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return
	}
	ch.closed = true
	close(ch.msgs)
	close(ch.presence)
}
