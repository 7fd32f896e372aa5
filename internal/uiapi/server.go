// Package uiapi is the network-facing edge over the three queues in
// internal/queues (spec.md §4.H): a single operator authenticates once via
// JWT, then drives the command queue and drains the account-snapshot and
// log queues over HTTP and a websocket tail. The management GUI itself is
// out of scope; this package only exposes the wire surface it would drive.
//
// Grounded on internal/api/{handler,auth,middleware,websocket,controllers}.go,
// trimmed from the teacher's multi-user, per-exchange-connection surface
// down to the single-operator, three-queue surface this domain has. Like
// the teacher's own Server, this is the wiring edge: it holds concrete
// *queues types rather than narrow interfaces, since narrowing further
// would just restate internal/queues' own exported methods.
package uiapi

import (
	"log"
	"net/http"
	"time"

	"mt5copier/internal/queues"

	"github.com/gin-gonic/gin"
)

// Meta describes static, read-only deployment info exposed at /system/status.
type Meta struct {
	Version string
	Venue   string
}

// Server wires the HTTP/WS endpoints around the three queues.
type Server struct {
	Router *gin.Engine

	Commands  *queues.CommandQueue
	Snapshots *queues.AccountSnapshotQueue
	Logs      *queues.LogQueue

	jwtSecret    string
	passwordHash string
	meta         Meta
}

// New builds a Server and registers its routes. jwtSecret signs session
// tokens; passwordHash is the bcrypt hash of the single operator's
// password, checked by POST /auth/login.
func New(commands *queues.CommandQueue, snapshots *queues.AccountSnapshotQueue, logs *queues.LogQueue, jwtSecret, passwordHash string, meta Meta) *Server {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router: r, Commands: commands, Snapshots: snapshots, Logs: logs,
		jwtSecret: jwtSecret, passwordHash: passwordHash, meta: meta,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.POST("/auth/login", s.login)

	api := s.Router.Group("")
	api.Use(AuthMiddleware(s.jwtSecret))
	{
		api.GET("/system/status", s.systemStatus)
		api.POST("/commands", s.postCommand)
		api.GET("/accounts", s.getAccounts)
		api.GET("/logs/stream", s.streamLogs)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) systemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":       s.meta.Version,
		"venue":         s.meta.Venue,
		"command_queue": s.Commands.Len(),
	})
}

// Start blocks serving addr, e.g. ":8443".
func (s *Server) Start(addr string) error {
	log.Printf("uiapi: listening on %s", addr)
	return s.Router.Run(addr)
}
