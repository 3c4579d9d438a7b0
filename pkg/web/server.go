// Package web serves the signal analyzer over HTTP and websockets.
package web

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-facecues/internal/log"
	"github.com/teslashibe/go-facecues/pkg/hub"
	"github.com/teslashibe/go-facecues/pkg/signals"
)

// recentLimit is how many results /api/signals/recent keeps.
const recentLimit = 100

// Config holds server settings.
type Config struct {
	Port    string
	Workers int // batch worker pool size
}

// Entry is one analyzed frame as stored and broadcast by the server.
type Entry struct {
	RequestID string         `json:"request_id"`
	Source    string         `json:"source"` // http, batch or ws:<session>
	Result    signals.Result `json:"result"`
}

// Server exposes an Analyzer over fiber.
type Server struct {
	app      *fiber.App
	config   Config
	analyzer *signals.Analyzer
	validate *validator.Validate

	// Recent results buffer
	recent   []Entry
	recentMu sync.RWMutex

	// Hubs for websocket clients
	signalHub *hub.Hub // broadcast of every result
	frameHub  *hub.Hub // request/reply frame sessions
}

// NewServer creates the server and registers its routes.
func NewServer(analyzer *signals.Analyzer, cfg Config) *Server {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	s := &Server{
		config:    cfg,
		analyzer:  analyzer,
		validate:  validator.New(),
		recent:    make([]Entry, 0, recentLimit),
		signalHub: hub.New("signals"),
		frameHub:  hub.New("frames"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "facecues",
		DisableStartupMessage: true,
		BodyLimit:             16 * 1024 * 1024,
	})

	app.Use(cors.New())
	app.Use(requestID)

	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Get("/config", s.handleConfig)
	api.Post("/analyze", s.handleAnalyze)
	api.Post("/analyze/batch", s.handleAnalyzeBatch)
	api.Get("/signals/recent", s.handleRecent)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/frames", websocket.New(s.handleFramesWS))
	app.Get("/ws/signals", websocket.New(s.handleSignalsWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves on the configured port until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.config.Port)
	if err != nil {
		return fmt.Errorf("listen on port %s: %w", s.config.Port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve starts the hubs and serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.signalHub.Run(ctx)
	go s.frameHub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Info("web server listening", "addr", ln.Addr().String())
		errCh <- s.app.Listener(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("web server shutting down")
		return s.app.Shutdown()
	}
}

// record stores an entry in the recent buffer and broadcasts it.
func (s *Server) record(e Entry) {
	s.recentMu.Lock()
	s.recent = append(s.recent, e)
	if len(s.recent) > recentLimit {
		s.recent = s.recent[1:]
	}
	s.recentMu.Unlock()

	if err := s.signalHub.BroadcastJSON(e); err != nil {
		log.Warn("broadcast failed", "error", err)
	}
}

// SignalHub returns the hub broadcasting every analyzed result.
func (s *Server) SignalHub() *hub.Hub {
	return s.signalHub
}
