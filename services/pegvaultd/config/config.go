package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"pegvault/crypto"
)

const (
	defaultListen          = ":8080"
	defaultDataDir         = "./pegvault-data"
	defaultShutdownTimeout = 5 * time.Second
	minSecretLength        = 16
)

// Config captures the runtime settings for the pegvault daemon.
type Config struct {
	ListenAddress   string          `yaml:"listen"`
	DataDir         string          `yaml:"data_dir"`
	ModuleAddress   string          `yaml:"module_address"`
	AllowMigrate    bool            `yaml:"allow_migrate"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	Auth            AuthConfig      `yaml:"auth"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	Roles           RolesConfig     `yaml:"roles"`
}

// AuthConfig describes how bearer tokens are verified.
type AuthConfig struct {
	HMACSecret string        `yaml:"hmac_secret"`
	Issuer     string        `yaml:"issuer"`
	Audience   string        `yaml:"audience"`
	ClockSkew  time.Duration `yaml:"clock_skew"`
}

// RateLimitConfig bounds requests per client. Zero disables limiting.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// RolesConfig lists the accounts granted roles at startup.
type RolesConfig struct {
	Admins   []string `yaml:"admins"`
	Relayers []string `yaml:"relayers"`
	Oracles  []string `yaml:"oracles"`
}

// Load reads the YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path == "" {
		return cfg, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LedgerPath is the LevelDB directory of the state manager.
func (cfg Config) LedgerPath() string { return filepath.Join(cfg.DataDir, "ledger") }

// EventLogPath is the bbolt file holding the event journal.
func (cfg Config) EventLogPath() string { return filepath.Join(cfg.DataDir, "events.db") }

// Module returns the parsed custody address of the lending engine.
func (cfg Config) Module() common.Address {
	addr, _ := crypto.ParseAddress(cfg.ModuleAddress)
	return addr
}

// Admins returns the parsed admin accounts.
func (cfg Config) Admins() []common.Address { return mustParse(cfg.Roles.Admins) }

// Relayers returns the parsed relayer accounts.
func (cfg Config) Relayers() []common.Address { return mustParse(cfg.Roles.Relayers) }

// Oracles returns the accounts allowed to publish prices.
func (cfg Config) Oracles() []common.Address { return mustParse(cfg.Roles.Oracles) }

func (cfg *Config) normalize() {
	if cfg == nil {
		return
	}
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListen
	}
	cfg.DataDir = strings.TrimSpace(cfg.DataDir)
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	cfg.ModuleAddress = strings.TrimSpace(cfg.ModuleAddress)
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	cfg.Auth.HMACSecret = strings.TrimSpace(cfg.Auth.HMACSecret)
	cfg.Auth.Issuer = strings.TrimSpace(cfg.Auth.Issuer)
	cfg.Auth.Audience = strings.TrimSpace(cfg.Auth.Audience)
	if cfg.Auth.ClockSkew <= 0 {
		cfg.Auth.ClockSkew = 2 * time.Minute
	}
	cfg.Roles.Admins = trimAll(cfg.Roles.Admins)
	cfg.Roles.Relayers = trimAll(cfg.Roles.Relayers)
	cfg.Roles.Oracles = trimAll(cfg.Roles.Oracles)
}

func (cfg *Config) validate() error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	if len(cfg.Auth.HMACSecret) < minSecretLength {
		return fmt.Errorf("auth: hmac_secret must be at least %d characters", minSecretLength)
	}
	module, err := crypto.ParseAddress(cfg.ModuleAddress)
	if err != nil {
		return fmt.Errorf("module_address: %w", err)
	}
	if module == (common.Address{}) {
		return fmt.Errorf("module_address must not be the zero address")
	}
	if cfg.RateLimit.RequestsPerMinute < 0 || cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit: values must not be negative")
	}
	if len(cfg.Roles.Admins) == 0 {
		return fmt.Errorf("roles: at least one admin is required")
	}
	accounts := append(append([]string{}, cfg.Roles.Admins...), cfg.Roles.Relayers...)
	for _, raw := range append(accounts, cfg.Roles.Oracles...) {
		if _, err := crypto.ParseAddress(raw); err != nil {
			return fmt.Errorf("roles: %q: %w", raw, err)
		}
	}
	return nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func mustParse(values []string) []common.Address {
	out := make([]common.Address, 0, len(values))
	for _, value := range values {
		if addr, err := crypto.ParseAddress(value); err == nil {
			out = append(out, addr)
		}
	}
	return out
}
