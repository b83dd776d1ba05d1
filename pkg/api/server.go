// Package api exposes the HTTP surface: the WebSocket upgrade, the self-test
// probes, metrics, and health.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codeready-toolchain/notifyd/pkg/database"
	"github.com/codeready-toolchain/notifyd/pkg/dispatch"
	"github.com/codeready-toolchain/notifyd/pkg/push"
)

// StorageMapper answers the mapping probe and the database health check.
// Implemented by the database client.
type StorageMapper interface {
	CountUsersForStorage(ctx context.Context, storageID int64) (int, error)
	Health(ctx context.Context) (*database.HealthStatus, error)
}

// CompanionProber reaches the companion app for the reverse test endpoints.
// Implemented by the verifier client.
type CompanionProber interface {
	TestCookie(ctx context.Context) (uint32, error)
	SetRemote(ctx context.Context, ip string) (string, error)
}

// VersionPublisher re-runs the bus version handshake on demand.
type VersionPublisher func(ctx context.Context) error

// Server represents the HTTP server
type Server struct {
	manager        *push.ConnectionManager
	dispatcher     *dispatch.Dispatcher
	mapper         StorageMapper
	prober         CompanionProber
	publishVersion VersionPublisher
	gatherer       prometheus.Gatherer

	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// NewServer creates the API server and wires up its routes.
func NewServer(
	manager *push.ConnectionManager,
	dispatcher *dispatch.Dispatcher,
	mapper StorageMapper,
	prober CompanionProber,
	publishVersion VersionPublisher,
	gatherer prometheus.Gatherer,
) *Server {
	s := &Server{
		manager:        manager,
		dispatcher:     dispatcher,
		mapper:         mapper,
		prober:         prober,
		publishVersion: publishVersion,
		gatherer:       gatherer,
		upgrader: websocket.Upgrader{
			// Session auth happens inside the socket, so any origin may try.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	s.registerRoutes(engine)

	s.httpServer = &http.Server{Handler: engine}
	return s
}

func (s *Server) registerRoutes(engine *gin.Engine) {
	engine.GET("/ws", s.handleWebSocket)

	engine.GET("/test/cookie", s.handleTestCookie)
	engine.GET("/test/reverse_cookie", s.handleReverseCookie)
	engine.GET("/test/mapping/:storage", s.handleMappingTest)
	engine.GET("/test/remote/:ip", s.handleRemoteTest)
	engine.POST("/test/version", s.handleVersionTest)

	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	engine.GET("/health", s.handleHealth)
}

// Handler exposes the route tree for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving on addr and blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.httpServer.Addr = addr
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests. Hijacked WebSocket connections are not
// waited for; the reset broadcast closes those.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
