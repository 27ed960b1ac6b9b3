// Package relay is the pub/sub server peers use as their broadcast and
// presence substrate. It relays frames between websocket clients and holds
// no game state.
package relay

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hersh/towerattack/internal/protocol"
)

// Server wires the hub to HTTP routes.
type Server struct {
	hub      *Hub
	log      zerolog.Logger
	schema   []byte
	upgrader websocket.Upgrader
}

func NewServer(hub *Hub, log zerolog.Logger) (*Server, error) {
	schema, err := protocol.SchemaJSON()
	if err != nil {
		return nil, err
	}
	return &Server{
		hub:    hub,
		log:    log.With().Str("component", "relay").Logger(),
		schema: schema,
	}, nil
}

// originCheck admits requests without an Origin header (native clients) and
// browsers from the allowed list. An empty list allows any origin.
func originCheck(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Router builds the gin engine. An empty allowedOrigins allows any origin,
// for both the HTTP routes and the websocket upgrade.
func (s *Server) Router(allowedOrigins []string) *gin.Engine {
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originCheck(allowedOrigins),
	}

	r := gin.New()
	r.Use(gin.Recovery())

	corsCfg := cors.Config{
		AllowMethods: []string{"GET", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
	}
	if len(allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = allowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/healthz", s.health)
	r.GET("/rooms", s.rooms)
	r.GET("/schema", s.schemaHandler)
	r.GET("/ws", s.serveWS)
	return r
}

func (s *Server) health(ctx *gin.Context) {
	ctx.String(http.StatusOK, "ok")
}

func (s *Server) rooms(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, s.hub.Directory())
}

func (s *Server) schemaHandler(ctx *gin.Context) {
	ctx.Data(http.StatusOK, "application/schema+json", s.schema)
}

func (s *Server) serveWS(ctx *gin.Context) {
	ws, err := s.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("upgrade")
		return
	}

	c := newConn(uuid.NewString(), ws, s.log)
	go c.writePump()
	c.log.Info().Str("remote", ctx.Request.RemoteAddr).Msg("connected")

	c.readPump(s.hub)

	s.hub.drop(c)
	c.close()
	c.log.Info().Msg("disconnected")
}
