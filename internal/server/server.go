// Package server is the network entry point: a WebSocket gateway for players
// and an HTTP API for settlement, both in front of the room registry.
package server

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/lox/teenpatti/internal/auth"
	"github.com/lox/teenpatti/internal/custody"
	"github.com/lox/teenpatti/internal/game"
	"github.com/lox/teenpatti/internal/randutil"
	"github.com/lox/teenpatti/internal/registry"
	"github.com/lox/teenpatti/internal/settlement"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Server represents the WebSocket server
type Server struct {
	cfg      *Config
	logger   *log.Logger
	clock    quartz.Clock
	upgrader websocket.Upgrader
	hub      *hub
	registry *registry.Registry
	auth     auth.Validator

	// custody is optional; all of these are nil without a custody block
	contract   custody.Contract
	ledger     *custody.Ledger
	reconciler *settlement.Reconciler
	operator   custody.Address
	devBalance sdkmath.Int

	fundMu sync.Mutex
	funded map[custody.Address]bool
}

// NewServer wires the registry, and the custody ledger and reconciler when
// configured. A nil rng uses a crypto-seeded generator.
func NewServer(cfg *Config, logger *log.Logger, clock quartz.Clock, rng *rand.Rand) (*Server, error) {
	if rng == nil {
		rng = randutil.NewSecure()
	}
	s := &Server{
		cfg:    cfg,
		logger: logger.WithPrefix("server"),
		clock:  clock,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// browser clients are served from other origins during development
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		auth:   cfg.Authenticator(),
		funded: make(map[custody.Address]bool),
	}
	s.hub = newHub(clock, s.logger)

	regCfg, err := cfg.RegistryConfig()
	if err != nil {
		return nil, err
	}
	opts := []registry.Option{
		registry.WithClock(clock),
		registry.WithPublisher(s.hub),
		registry.WithRand(randutil.New(randutil.Seed(rng))),
	}

	if cfg.Custody != nil {
		ledgerCfg := cfg.LedgerConfig()
		ledger, err := custody.NewLedger(ledgerCfg, clock, randutil.New(randutil.Seed(rng)), logger)
		if err != nil {
			return nil, err
		}
		s.ledger, s.contract, s.operator = ledger, ledger, ledgerCfg.Operator
		s.reconciler = settlement.New(settlement.LedgerFunc(func(roomID string) ([]game.ChipCount, error) {
			return s.registry.ChipLedger(roomID)
		}), ledger, s.operator, logger)
		opts = append(opts, registry.WithCustody(ledger, s.reconciler))

		if cfg.Custody.DevBalance != "" {
			s.devBalance, _ = sdkmath.NewIntFromString(cfg.Custody.DevBalance)
		}
	}

	s.registry, err = registry.New(regCfg, logger, opts...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Handler returns the HTTP routes of the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/rooms", s.handleRooms)
	mux.Handle("POST /api/settle", auth.Require(s.auth, s.logger, http.HandlerFunc(s.handleSettle)))
	return mux
}

// Run serves until ctx is cancelled, sweeping stale rooms alongside
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.ListenAddress(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.registry.Run(ctx)
	})
	g.Go(func() error {
		s.logger.Info("Starting WebSocket server", "addr", httpServer.Addr, "custody", s.contract != nil)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("Shutting down")
		s.hub.closeAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// handleWebSocket handles WebSocket upgrade requests
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, s)
	total := s.hub.add(client)
	s.logger.Info("Client connected", "session", client.Session(), "total", total)
	client.Start()

	go func() {
		<-client.Done()
		total := s.hub.remove(client)
		s.release(context.Background(), client.Session(), true)
		s.logger.Info("Client disconnected", "session", client.Session(), "total", total)
	}()
}
