package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/studyquest/backend/internal/gamification"
)

// EnvPrefix prefixes every environment override, e.g. STUDYQUEST_SERVER_PORT.
const EnvPrefix = "STUDYQUEST"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverRemote   = "remote"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Sync   SyncConfig   `yaml:"sync"`
	Game   GameConfig   `yaml:"game"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins" envconfig:"allowed_origins"`
	AuthToken      string   `yaml:"auth_token" envconfig:"auth_token"` // operator token for /api/health
	MaxWSClients   int      `yaml:"max_ws_clients" envconfig:"max_ws_clients"`
	// Users binds bearer tokens to user IDs. Empty means any token may
	// open any user.
	Users map[string]string `yaml:"users"`
}

type StoreConfig struct {
	Driver   string `yaml:"driver"`
	Dir      string `yaml:"dir"` // file driver; empty means the user state dir
	DSN      string `yaml:"dsn"` // postgres connection string or sqlite path
	URL      string `yaml:"url"` // remote document service base URL
	MaxConns int32  `yaml:"max_conns" envconfig:"max_conns"`
}

type SyncConfig struct {
	Debounce      time.Duration `yaml:"debounce"`
	PushFloor     time.Duration `yaml:"push_floor" envconfig:"push_floor"`
	StartupGrace  time.Duration `yaml:"startup_grace" envconfig:"startup_grace"`
	PullInterval  time.Duration `yaml:"pull_interval" envconfig:"pull_interval"`
	PullFloor     time.Duration `yaml:"pull_floor" envconfig:"pull_floor"`
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"sweep_interval"`
	StoreTimeout  time.Duration `yaml:"store_timeout" envconfig:"store_timeout"`
}

type GameConfig struct {
	DailyGoal    int    `yaml:"daily_goal" envconfig:"daily_goal"`
	CoinsPerQuiz int    `yaml:"coins_per_quiz" envconfig:"coins_per_quiz"`
	Timezone     string `yaml:"timezone"`
	RolloverCron string `yaml:"rollover_cron" envconfig:"rollover_cron"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func defaultConfig() *Config {
	opts := gamification.DefaultOptions()
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "127.0.0.1",
			MaxWSClients: 256,
		},
		Store: StoreConfig{
			Driver:   DriverFile,
			MaxConns: 10,
		},
		Sync: SyncConfig{
			Debounce:      opts.Debounce,
			PushFloor:     opts.PushFloor,
			StartupGrace:  opts.StartupGrace,
			PullInterval:  opts.PullInterval,
			PullFloor:     opts.PullFloor,
			SweepInterval: opts.SweepInterval,
			StoreTimeout:  opts.StoreTimeout,
		},
		Game: GameConfig{
			DailyGoal:    opts.DailyGoal,
			CoinsPerQuiz: opts.CoinsPerQuiz,
			Timezone:     "Local",
			RolloverCron: "0 0 * * *",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// STUDYQUEST_* environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to the defaults (plus
// environment overrides) when path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = defaultConfig()
		if err := envconfig.Process(EnvPrefix, cfg); err != nil {
			return nil, fmt.Errorf("env overrides: %w", err)
		}
		return cfg, nil
	}
	return cfg, err
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.MaxWSClients < 0 {
		return fmt.Errorf("server.max_ws_clients must not be negative, got %d", c.Server.MaxWSClients)
	}
	for tok, user := range c.Server.Users {
		if tok == "" || user == "" {
			return errors.New("server.users entries need a token and a user id")
		}
	}
	switch c.Store.Driver {
	case DriverMemory, DriverFile:
	case DriverPostgres, DriverSQLite:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver)
		}
	case DriverRemote:
		if c.Store.URL == "" {
			return errors.New("store.url is required for driver \"remote\"")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"sync.debounce", c.Sync.Debounce},
		{"sync.pull_interval", c.Sync.PullInterval},
		{"sync.sweep_interval", c.Sync.SweepInterval},
		{"sync.store_timeout", c.Sync.StoreTimeout},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.d)
		}
	}
	if c.Sync.PushFloor < 0 || c.Sync.StartupGrace < 0 || c.Sync.PullFloor < 0 {
		return errors.New("sync floors and grace must not be negative")
	}
	if c.Game.DailyGoal <= 0 {
		return fmt.Errorf("game.daily_goal must be positive, got %d", c.Game.DailyGoal)
	}
	if c.Game.CoinsPerQuiz < 0 {
		return fmt.Errorf("game.coins_per_quiz must not be negative, got %d", c.Game.CoinsPerQuiz)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := cron.ParseStandard(c.Game.RolloverCron); err != nil {
		return fmt.Errorf("game.rollover_cron: %w", err)
	}
	return nil
}

// Location resolves game.timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Game.Timezone == "" || c.Game.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Game.Timezone)
	if err != nil {
		return nil, fmt.Errorf("game.timezone: %w", err)
	}
	return loc, nil
}

// Options converts the sync and game sections into engine options.
func (c *Config) Options() gamification.Options {
	opts := gamification.DefaultOptions()
	opts.Debounce = c.Sync.Debounce
	opts.PushFloor = c.Sync.PushFloor
	opts.StartupGrace = c.Sync.StartupGrace
	opts.PullInterval = c.Sync.PullInterval
	opts.PullFloor = c.Sync.PullFloor
	opts.SweepInterval = c.Sync.SweepInterval
	opts.StoreTimeout = c.Sync.StoreTimeout
	opts.DailyGoal = c.Game.DailyGoal
	opts.CoinsPerQuiz = c.Game.CoinsPerQuiz
	if loc, err := c.Location(); err == nil {
		opts.Location = loc
	}
	return opts
}
