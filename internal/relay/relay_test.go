package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hersh/towerattack/internal/mode"
	"github.com/hersh/towerattack/internal/protocol"
	"github.com/hersh/towerattack/internal/transport"
	"github.com/hersh/towerattack/internal/transport/wsclient"
)

func startRelay(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	srv, err := NewServer(hub, zerolog.Nop())
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Router(nil))
	t.Cleanup(ts.Close)
	return ts, hub
}

func dial(t *testing.T, ts *httptest.Server) *wsclient.Client {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	c, err := wsclient.Dial(context.Background(), url, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func joinTopic(t *testing.T, c *wsclient.Client, topic, key string) transport.Channel {
	t.Helper()
	ch, err := c.Join(context.Background(), topic, key)
	require.NoError(t, err)
	return ch
}

// waitPresence drains presence snapshots until one satisfies ok.
func waitPresence(t *testing.T, ch transport.Channel, ok func(transport.Presence) bool) transport.Presence {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case p := <-ch.Presence():
			if ok(p) {
				return p
			}
		case <-deadline:
			t.Fatal("presence condition not reached")
			return nil
		}
	}
}

func TestHealth(t *testing.T) {
	ts, _ := startRelay(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSchema(t *testing.T) {
	ts, _ := startRelay(t)
	resp, err := http.Get(ts.URL + "/schema")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, "Tower Attack wire catalog", doc["title"])
}

func TestBroadcastFanOut(t *testing.T) {
	ts, _ := startRelay(t)
	a := joinTopic(t, dial(t, ts), "room:r1", "a")
	b := joinTopic(t, dial(t, ts), "room:r1", "b")
	c := joinTopic(t, dial(t, ts), "room:r2", "c")

	ctx := context.Background()
	// Both peers must be subscribed before the broadcast goes out.
	require.NoError(t, a.Track(ctx, protocol.PlayerMeta{PlayerID: "a"}))
	waitPresence(t, b, func(p transport.Presence) bool { return len(p) == 1 })

	require.NoError(t, transport.Send(ctx, a, protocol.ChatMessage{ID: "m1", Text: "hello"}))

	select {
	case m := <-b.Messages():
		ev, err := transport.Decode(m)
		require.NoError(t, err)
		assert.Equal(t, "hello", ev.(protocol.ChatMessage).Text)
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast not relayed")
	}

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, a.Messages(), "no self echo")
	assert.Empty(t, c.Messages(), "other topics are isolated")
}

func TestPresenceAndDisconnect(t *testing.T) {
	ts, hub := startRelay(t)
	watcher := joinTopic(t, dial(t, ts), "room:r1", "w")

	leaver := dial(t, ts)
	ch := joinTopic(t, leaver, "room:r1", "p1")
	ctx := context.Background()
	require.NoError(t, ch.Track(ctx, protocol.PlayerMeta{PlayerID: "p1", Name: "One"}))

	p := waitPresence(t, watcher, func(p transport.Presence) bool { return len(p) == 1 })
	members := transport.Members[protocol.PlayerMeta](p)
	assert.Equal(t, "One", members["p1"].Name)

	require.NoError(t, leaver.Close())
	waitPresence(t, watcher, func(p transport.Presence) bool { return len(p) == 0 })

	require.Eventually(t, func() bool {
		topics, conns := hub.Stats()
		return topics == 1 && conns == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestDirectory(t *testing.T) {
	ts, _ := startRelay(t)
	host := joinTopic(t, dial(t, ts), protocol.DirectoryTopic, "room-1")
	listing := protocol.RoomListing{
		RoomID:      "room-1",
		RoomName:    "Ada's Room",
		GameMode:    mode.KingOfTheHill,
		PlayerCount: 2,
		MaxPlayers:  10,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, host.Track(context.Background(), listing))

	require.Eventually(t, func() bool {
		resp, err := http.Get(ts.URL + "/rooms")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var rooms []protocol.RoomListing
		if json.NewDecoder(resp.Body).Decode(&rooms) != nil {
			return false
		}
		return len(rooms) == 1 && rooms[0].RoomName == "Ada's Room"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestHubTopicLifecycle(t *testing.T) {
	hub := NewHub()
	c := &conn{id: "c1", sendCh: make(chan []byte, 16), log: zerolog.Nop()}

	hub.join(c, "room:x", "k")
	topics, conns := hub.Stats()
	assert.Equal(t, 1, topics)
	assert.Equal(t, 1, conns)

	assert.True(t, hub.track(c, "room:x", json.RawMessage(`{"name":"k"}`)))
	assert.False(t, hub.track(c, "room:y", json.RawMessage(`{}`)), "track needs a join")

	hub.drop(c)
	topics, conns = hub.Stats()
	assert.Zero(t, topics)
	assert.Zero(t, conns)
}

func TestWebsocketHonoursAllowedOrigins(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv, err := NewServer(NewHub(), zerolog.Nop())
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Router([]string{"https://tower.example"}))
	t.Cleanup(ts.Close)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	ws, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://tower.example"}})
	require.NoError(t, err)
	ws.Close()

	ws, _, err = websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err, "native clients send no origin")
	ws.Close()
}

func TestOriginCheck(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	open := originCheck(nil)
	assert.True(t, open(req("https://anywhere.example")))

	check := originCheck([]string{"https://tower.example"})
	assert.True(t, check(req("https://tower.example")))
	assert.True(t, check(req("")))
	assert.False(t, check(req("https://evil.example")))
}
