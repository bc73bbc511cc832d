package server

import (
	"fmt"
	"os"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/lox/teenpatti/internal/auth"
	"github.com/lox/teenpatti/internal/custody"
	"github.com/lox/teenpatti/internal/game"
	"github.com/lox/teenpatti/internal/payout"
	"github.com/lox/teenpatti/internal/registry"
)

// Config is the server configuration file. A missing custody block runs the
// server without on-chain rooms.
type Config struct {
	Server  *ServerSettings  `hcl:"server,block"`
	Game    *GameSettings    `hcl:"game,block"`
	Custody *CustodySettings `hcl:"custody,block"`
}

// ServerSettings contains listener and logging configuration.
//
// The settlement API accepts a bearer token equal to APIToken, or one that the
// service at AuthURL accepts. With neither set it is open.
type ServerSettings struct {
	Address    string `hcl:"address,optional"`
	Port       int    `hcl:"port,optional"`
	LogLevel   string `hcl:"log_level,optional"`
	LogFormat  string `hcl:"log_format,optional"`
	APIToken   string `hcl:"api_token,optional"`
	AuthURL    string `hcl:"auth_url,optional"`
	AuthSecret string `hcl:"auth_secret,optional"`
}

// GameSettings are the default table rules and room lifecycle timings.
// Durations use Go syntax, e.g. "90s" or "1h".
type GameSettings struct {
	MinStake       int    `hcl:"min_stake,optional"`
	MaxPlayers     int    `hcl:"max_players,optional"`
	PotLimitFactor int    `hcl:"pot_limit_factor,optional"`
	DefaultChips   int    `hcl:"default_chips,optional"`
	RoundTimeout   string `hcl:"round_timeout,optional"`
	ReapAfter      string `hcl:"reap_after,optional"`
	SweepInterval  string `hcl:"sweep_interval,optional"`
}

// CustodySettings configure the in-memory custody contract
type CustodySettings struct {
	Owner       string `hcl:"owner,optional"`
	Operator    string `hcl:"operator"`
	Treasury    string `hcl:"treasury"`
	RakeBps     int    `hcl:"rake_bps,optional"`
	Timeout     string `hcl:"timeout,optional"`
	AutoDeclare bool   `hcl:"auto_declare,optional"`

	// DevBalance is minted to every address the first time it is seen, so
	// local clients can buy in without a faucet.
	DevBalance string `hcl:"dev_balance,optional"`
}

const (
	defaultAddress      = "localhost"
	defaultPort         = 8080
	defaultLogLevel     = "info"
	defaultLogFormat    = "text"
	defaultChips        = 1000
	defaultCustodyOwner = "0xowner"
)

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// LoadConfig loads configuration from an HCL file. A missing file yields the
// defaults.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server == nil {
		c.Server = &ServerSettings{}
	}
	if c.Server.Address == "" {
		c.Server.Address = defaultAddress
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = defaultLogLevel
	}
	if c.Server.LogFormat == "" {
		c.Server.LogFormat = defaultLogFormat
	}

	if c.Game == nil {
		c.Game = &GameSettings{}
	}
	d := game.DefaultConfig()
	if c.Game.MinStake == 0 {
		c.Game.MinStake = d.MinStake
	}
	if c.Game.MaxPlayers == 0 {
		c.Game.MaxPlayers = d.MaxPlayers
	}
	if c.Game.PotLimitFactor == 0 {
		c.Game.PotLimitFactor = d.PotLimitFactor
	}
	if c.Game.DefaultChips == 0 {
		c.Game.DefaultChips = defaultChips
	}
	if c.Game.RoundTimeout == "" {
		c.Game.RoundTimeout = registry.DefaultRoundTimeout.String()
	}
	if c.Game.ReapAfter == "" {
		c.Game.ReapAfter = registry.DefaultReapAfter.String()
	}
	if c.Game.SweepInterval == "" {
		c.Game.SweepInterval = registry.DefaultSweepInterval.String()
	}

	if c.Custody != nil {
		if c.Custody.Owner == "" {
			c.Custody.Owner = defaultCustodyOwner
		}
		if c.Custody.RakeBps == 0 {
			c.Custody.RakeBps = custody.DefaultRakeBps
		}
		if c.Custody.Timeout == "" {
			c.Custody.Timeout = custody.DefaultTimeout.String()
		}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	switch c.Server.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q: want text or json", c.Server.LogFormat)
	}
	if c.Server.APIToken != "" && c.Server.AuthURL != "" {
		return fmt.Errorf("server: api_token and auth_url are mutually exclusive")
	}

	if c.Game.DefaultChips < c.Game.MinStake {
		return fmt.Errorf("game: default chips %d cannot cover the %d ante", c.Game.DefaultChips, c.Game.MinStake)
	}
	if _, err := c.RegistryConfig(); err != nil {
		return fmt.Errorf("game: %w", err)
	}

	if cs := c.Custody; cs != nil {
		if cs.Operator == "" || cs.Treasury == "" {
			return fmt.Errorf("custody: operator and treasury are required")
		}
		if cs.RakeBps < 0 || cs.RakeBps > payout.MaxRakeBps {
			return fmt.Errorf("custody: rake_bps %d outside 0..%d", cs.RakeBps, payout.MaxRakeBps)
		}
		if _, err := time.ParseDuration(cs.Timeout); err != nil {
			return fmt.Errorf("custody: timeout: %w", err)
		}
		if cs.DevBalance != "" {
			if _, ok := sdkmath.NewIntFromString(cs.DevBalance); !ok {
				return fmt.Errorf("custody: dev_balance %q is not an integer", cs.DevBalance)
			}
		}
	}
	return nil
}

// ListenAddress returns the host:port to listen on
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// Authenticator returns the validator guarding the settlement API
func (c *Config) Authenticator() auth.Validator {
	switch {
	case c.Server.APIToken != "":
		return auth.NewStaticValidator(c.Server.APIToken, "operator")
	case c.Server.AuthURL != "":
		return auth.NewHTTPValidator(c.Server.AuthURL, c.Server.AuthSecret)
	default:
		return auth.NoopValidator{}
	}
}

// TableRules returns the default rules of new rooms
func (c *Config) TableRules() game.Config {
	return game.Config{
		MinStake:       c.Game.MinStake,
		MaxPlayers:     c.Game.MaxPlayers,
		PotLimitFactor: c.Game.PotLimitFactor,
	}
}

// RegistryConfig builds the room registry configuration
func (c *Config) RegistryConfig() (registry.Config, error) {
	rules := c.TableRules()
	if err := rules.WithDefaults().Validate(); err != nil {
		return registry.Config{}, err
	}
	cfg := registry.Config{Game: rules}

	var err error
	if cfg.RoundTimeout, err = parsePositive("round_timeout", c.Game.RoundTimeout); err != nil {
		return registry.Config{}, err
	}
	if cfg.ReapAfter, err = parsePositive("reap_after", c.Game.ReapAfter); err != nil {
		return registry.Config{}, err
	}
	if cfg.SweepInterval, err = parsePositive("sweep_interval", c.Game.SweepInterval); err != nil {
		return registry.Config{}, err
	}
	if c.Custody != nil {
		cfg.AutoDeclare = c.Custody.AutoDeclare
		cfg.Operator = custody.NormalizeAddress(c.Custody.Operator)
	}
	return cfg, nil
}

// LedgerConfig builds the custody ledger configuration. Only valid when the
// custody block is present.
func (c *Config) LedgerConfig() custody.LedgerConfig {
	timeout, _ := time.ParseDuration(c.Custody.Timeout)
	return custody.LedgerConfig{
		Owner:    custody.NormalizeAddress(c.Custody.Owner),
		Operator: custody.NormalizeAddress(c.Custody.Operator),
		Treasury: custody.NormalizeAddress(c.Custody.Treasury),
		RakeBps:  uint32(c.Custody.RakeBps),
		Timeout:  timeout,
	}
}

func parsePositive(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", name, value)
	}
	return d, nil
}
