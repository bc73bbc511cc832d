package main

import (
	"context"
	rand "math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"github.com/coder/quartz"
	"github.com/lox/teenpatti/internal/randutil"
	"github.com/lox/teenpatti/internal/server"
)

// ServerCmd runs the WebSocket gateway and settlement API
type ServerCmd struct {
	Config    string `short:"c" default:"teenpatti.hcl" help:"Path to HCL configuration file"`
	Addr      string `short:"a" help:"Address to bind to (overrides config)"`
	Port      int    `short:"p" help:"Port to listen on (overrides config)"`
	LogLevel  string `short:"l" help:"Log level: debug, info, warn or error (overrides config)"`
	LogFormat string `help:"Log format: text or json (overrides config)"`
	Seed      *int64 `help:"Deterministic RNG seed for shuffles and room ids (testing only)"`
}

func (c *ServerCmd) Run() error {
	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Server.Address = c.Addr
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	if c.LogFormat != "" {
		cfg.Server.LogFormat = c.LogFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(os.Stderr, cfg.Server.LogLevel, cfg.Server.LogFormat)
	if err != nil {
		return err
	}

	var rng *rand.Rand
	if c.Seed != nil {
		logger.Warn("Using deterministic seed, shuffles are predictable", "seed", *c.Seed)
		rng = randutil.New(*c.Seed)
	}

	srv, err := server.NewServer(cfg, logger, quartz.NewReal(), rng)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting Teen Patti server",
		"addr", cfg.ListenAddress(),
		"minStake", cfg.Game.MinStake,
		"maxPlayers", cfg.Game.MaxPlayers,
		"custody", cfg.Custody != nil)
	return srv.Run(ctx)
}
