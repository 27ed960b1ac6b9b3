package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/hersh/towerattack/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1 << 20

	FrameRate  = 60
	FrameBurst = 120
)

// conn is one websocket client of the relay.
type conn struct {
	id      string
	ws      *websocket.Conn
	sendCh  chan []byte
	limiter *rate.Limiter
	log     zerolog.Logger

	mu     sync.Mutex
	closed bool
}

func newConn(id string, ws *websocket.Conn, log zerolog.Logger) *conn {
	return &conn{
		id:      id,
		ws:      ws,
		sendCh:  make(chan []byte, 256),
		limiter: rate.NewLimiter(FrameRate, FrameBurst),
		log:     log.With().Str("conn", id).Logger(),
	}
}

// writePump sends queued frames to the websocket.
func (c *conn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.sendCh:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendFrame marshals a frame and queues it.
func (c *conn) sendFrame(f protocol.Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		c.log.Error().Err(err).Str("frame", string(f.Type)).Msg("marshal")
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.sendCh <- data:
	default:
		c.log.Warn().Str("topic", f.Topic).Msg("send channel full, dropping frame")
	}
}

func (c *conn) sendError(topic, msg string) {
	c.sendFrame(protocol.Frame{Type: protocol.FrameError, Topic: topic, Message: msg})
}

func (c *conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.sendCh)
}

// readPump reads frames until the connection fails, dispatching each to the
// hub.
func (c *conn) readPump(h *Hub) {
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("read")
			}
			return
		}
		if !c.limiter.Allow() {
			c.log.Warn().Msg("rate limit exceeded, dropping frame")
			continue
		}

		var f protocol.Frame
		if err := json.Unmarshal(message, &f); err != nil {
			c.log.Warn().Err(err).Msg("unmarshal frame")
			continue
		}
		c.handleFrame(h, f)
	}
}

// handleFrame dispatches a client frame.
func (c *conn) handleFrame(h *Hub, f protocol.Frame) {
	if f.Topic == "" {
		c.sendError("", "missing topic")
		return
	}
	switch f.Type {
	case protocol.FrameJoin:
		key := f.Key
		if key == "" {
			key = c.id
		}
		h.join(c, f.Topic, key)
		c.log.Debug().Str("topic", f.Topic).Str("key", key).Msg("joined")

	case protocol.FrameLeave:
		h.leave(c, f.Topic)

	case protocol.FrameTrack:
		if len(f.Meta) == 0 || !json.Valid(f.Meta) {
			c.sendError(f.Topic, "invalid presence metadata")
			return
		}
		if !h.track(c, f.Topic, f.Meta) {
			c.sendError(f.Topic, "track before join")
		}

	case protocol.FrameUntrack:
		h.untrack(c, f.Topic)

	case protocol.FrameBroadcast:
		if f.Event == "" {
			c.sendError(f.Topic, "missing event")
			return
		}
		out := protocol.Frame{Type: protocol.FrameBroadcast, Topic: f.Topic, Event: f.Event, Payload: f.Payload}
		if !h.broadcast(c, out) {
			c.sendError(f.Topic, "broadcast before join")
		}

	default:
		c.sendError(f.Topic, "unknown frame type "+string(f.Type))
	}
}
