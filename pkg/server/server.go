package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"election_board/pkg/board"
	"election_board/pkg/config"
	"election_board/pkg/display"
	"election_board/pkg/metrics"
	"election_board/pkg/poller"
	"election_board/pkg/scheduler"
	"election_board/pkg/utils"
)

// Board is what the HTTP server needs from the running board
type Board interface {
	Frame() board.Frame
	State() poller.State
	Subscribe(fn func(board.Frame)) (cancel func())
	Endpoint() string
	SetEndpoint(raw string) error
	ResetEndpoint() error
	Stats() scheduler.SchedulerStats
}

// Server serves the board to browsers and pushes frames over websockets
type Server struct {
	cfg     *config.ServerConfig
	board   Board
	logger  *zap.Logger
	metrics *metrics.Metrics
	hub     *Hub
	router  *mux.Router

	mu          sync.Mutex
	http        *http.Server
	unsubscribe func()
	done        chan error
}

// New builds the server and its routes
func New(cfg *config.ServerConfig, b Board, logger *zap.Logger, m *metrics.Metrics) *Server {
	logger = utils.LoggerWithContext(logger, zap.String("component", "server"))

	s := &Server{
		cfg:     cfg,
		board:   b,
		logger:  logger,
		metrics: m,
		hub:     NewHub(logger, m),
	}
	s.router = s.routes()

	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(loggingMiddleware(s.logger))

	upgrader := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin:     originAllowed(s.cfg.AllowedOrigins),
	}

	r.HandleFunc("/", s.pageHandler()).Methods(http.MethodGet)
	r.HandleFunc("/fragment", s.fragmentHandler()).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.hub.Handler(upgrader, s.currentFrameMessage)).Methods(http.MethodGet)
	r.HandleFunc("/health", s.healthHandler()).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(corsMiddleware(s.cfg.AllowedOrigins))
	api.HandleFunc("/state", s.stateHandler()).Methods(http.MethodGet, http.MethodOptions)

	settings := r.PathPrefix("/settings").Subrouter()
	settings.Use(settingsGuard(s.cfg.AllowedOrigins))
	settings.HandleFunc("/endpoint", s.getEndpointHandler()).Methods(http.MethodGet, http.MethodOptions)
	settings.HandleFunc("/endpoint", s.putEndpointHandler()).Methods(http.MethodPut)
	settings.HandleFunc("/endpoint", s.deleteEndpointHandler()).Methods(http.MethodDelete)

	r.PathPrefix(display.AssetsPrefix).Handler(display.AssetHandler(s.cfg.StaticDir)).Methods(http.MethodGet, http.MethodHead)

	return r
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the websocket hub
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) currentFrameMessage() Message {
	return Message{Type: MessageFrame, Payload: board.NewFrameDTO(s.board.Frame())}
}

// Start binds the listen address and serves in the background. It returns
// the bound address so ":0" can be used.
func (s *Server) Start() (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.http != nil {
		return nil, fmt.Errorf("server already started")
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	}

	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
		ErrorLog:          log.New(utils.NewLogWriter(s.logger, zapcore.WarnLevel), "", 0),
	}
	s.unsubscribe = s.board.Subscribe(func(f board.Frame) {
		s.hub.Broadcast(Message{Type: MessageFrame, Payload: board.NewFrameDTO(f)})
	})

	s.done = make(chan error, 1)
	srv := s.http
	done := s.done
	utils.SafeGo(s.logger, func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
	})

	s.logger.Info("HTTP server listening", zap.String("addr", ln.Addr().String()))
	return ln.Addr(), nil
}

// Done reports the serve loop's exit error, nil after a clean Shutdown
func (s *Server) Done() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Shutdown stops accepting requests, closes live displays and waits for
// in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	unsubscribe := s.unsubscribe
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	if unsubscribe != nil {
		unsubscribe()
	}
	s.hub.Close()

	var err error
	if serr := srv.Shutdown(ctx); serr != nil {
		err = multierr.Append(err, fmt.Errorf("shutting down http server: %w", serr))
	}

	s.logger.Info("HTTP server stopped")
	return err
}
