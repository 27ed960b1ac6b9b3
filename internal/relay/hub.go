package relay

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/hersh/towerattack/internal/protocol"
)

// topic is one pub/sub channel: subscribers with their presence keys and
// whatever metadata each has tracked.
type topic struct {
	subs    map[*conn]string
	members map[*conn]json.RawMessage
}

// Hub holds every topic by name and which topics each connection joined.
// Topics are created on first join and removed when the last subscriber
// leaves.
type Hub struct {
	mu      sync.RWMutex
	topics  map[string]*topic
	connMap map[*conn]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		topics:  make(map[string]*topic),
		connMap: make(map[*conn]map[string]struct{}),
	}
}

func (h *Hub) join(c *conn, name, key string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.topics[name]
	if !ok {
		t = &topic{
			subs:    make(map[*conn]string),
			members: make(map[*conn]json.RawMessage),
		}
		h.topics[name] = t
	}
	t.subs[c] = key
	joined, ok := h.connMap[c]
	if !ok {
		joined = make(map[string]struct{})
		h.connMap[c] = joined
	}
	joined[name] = struct{}{}

	c.sendFrame(h.presenceFrame(name, t))
}

func (h *Hub) leave(c *conn, name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, name)
}

func (h *Hub) leaveLocked(c *conn, name string) {
	if joined, ok := h.connMap[c]; ok {
		delete(joined, name)
		if len(joined) == 0 {
			delete(h.connMap, c)
		}
	}
	t, ok := h.topics[name]
	if !ok {
		return
	}
	delete(t.subs, c)
	_, tracked := t.members[c]
	delete(t.members, c)
	if len(t.subs) == 0 {
		delete(h.topics, name)
		return
	}
	if tracked {
		h.publishPresence(name, t)
	}
}

// drop removes a disconnected connection from every topic it joined.
func (h *Hub) drop(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for name := range h.connMap[c] {
		h.leaveLocked(c, name)
	}
	delete(h.connMap, c)
}

func (h *Hub) track(c *conn, name string, meta json.RawMessage) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.topics[name]
	if !ok {
		return false
	}
	if _, ok := t.subs[c]; !ok {
		return false
	}
	t.members[c] = meta
	h.publishPresence(name, t)
	return true
}

func (h *Hub) untrack(c *conn, name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.topics[name]
	if !ok {
		return
	}
	if _, ok := t.members[c]; ok {
		delete(t.members, c)
		h.publishPresence(name, t)
	}
}

// broadcast fans a frame out to every other subscriber of the topic.
func (h *Hub) broadcast(from *conn, f protocol.Frame) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	t, ok := h.topics[f.Topic]
	if !ok {
		return false
	}
	if _, ok := t.subs[from]; !ok {
		return false
	}
	for c := range t.subs {
		if c != from {
			c.sendFrame(f)
		}
	}
	return true
}

// presenceFrame must be called with h.mu held.
func (h *Hub) presenceFrame(name string, t *topic) protocol.Frame {
	members := make(map[string]json.RawMessage, len(t.members))
	for c, meta := range t.members {
		members[t.subs[c]] = meta
	}
	return protocol.Frame{Type: protocol.FramePresence, Topic: name, Members: members}
}

// publishPresence must be called with h.mu held.
func (h *Hub) publishPresence(name string, t *topic) {
	f := h.presenceFrame(name, t)
	for c := range t.subs {
		c.sendFrame(f)
	}
}

// Directory lists the rooms hosts currently advertise, newest first.
func (h *Hub) Directory() []protocol.RoomListing {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := []protocol.RoomListing{}
	t, ok := h.topics[protocol.DirectoryTopic]
	if !ok {
		return out
	}
	for _, meta := range t.members {
		var l protocol.RoomListing
		if err := json.Unmarshal(meta, &l); err != nil || l.RoomID == "" {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Stats reports topic and connection counts for the health endpoint.
func (h *Hub) Stats() (topics, conns int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics), len(h.connMap)
}
