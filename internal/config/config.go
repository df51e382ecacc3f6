package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       LoggingConfig   `yaml:"log"`
	Venue     VenueConfig     `yaml:"venue"`
	Engine    EngineConfig    `yaml:"engine"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	State     StateConfig     `yaml:"state"`
	Timescale TimescaleConfig `yaml:"timescale"`
	Telegram  TelegramConfig  `yaml:"telegram"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type VenueConfig struct {
	URL            string        `yaml:"url"`
	Name           string        `yaml:"name"`
	Secret         string        `yaml:"secret"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

// EngineConfig carries the strategy constants. Prices are integer cents,
// volumes are lots.
type EngineConfig struct {
	LotSize               int64   `yaml:"lot_size"`
	PositionLimit         int64   `yaml:"position_limit"`
	ArbitrageLimit        int64   `yaml:"arbitrage_limit"`
	TickSizeCents         int64   `yaml:"tick_size_cents"`
	MinBidCents           int64   `yaml:"min_bid_cents"`
	MaxAskCents           int64   `yaml:"max_ask_cents"`
	MinTheoVolume         int64   `yaml:"min_theo_volume"`
	QuoteOffsetTicks      int64   `yaml:"quote_offset_ticks"`
	RequoteToleranceTicks int64   `yaml:"requote_tolerance_ticks"`
	RiskFactor            float64 `yaml:"risk_factor"`
	CycleActionBudget     int     `yaml:"cycle_action_budget"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

type StateConfig struct {
	JournalPath string `yaml:"journal_path"`
}

type TimescaleConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	QueueSize       int           `yaml:"queue_size"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, validate(&cfg)
}

// Default returns a config with all defaults applied, for tooling that
// runs without a config file.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Venue.URL == "" {
		cfg.Venue.URL = "ws://127.0.0.1:12347/exchange"
	}
	if cfg.Venue.ReconnectDelay == 0 {
		cfg.Venue.ReconnectDelay = 3 * time.Second
	}
	if cfg.Venue.PingInterval == 0 {
		cfg.Venue.PingInterval = 15 * time.Second
	}
	if cfg.Venue.WriteTimeout == 0 {
		cfg.Venue.WriteTimeout = 2 * time.Second
	}
	if cfg.Engine.LotSize == 0 {
		cfg.Engine.LotSize = 20
	}
	if cfg.Engine.PositionLimit == 0 {
		cfg.Engine.PositionLimit = 100
	}
	if cfg.Engine.ArbitrageLimit == 0 {
		cfg.Engine.ArbitrageLimit = 20
	}
	if cfg.Engine.TickSizeCents == 0 {
		cfg.Engine.TickSizeCents = 100
	}
	if cfg.Engine.MinBidCents == 0 {
		cfg.Engine.MinBidCents = 1
	}
	if cfg.Engine.MaxAskCents == 0 {
		cfg.Engine.MaxAskCents = 1<<31 - 1
	}
	if cfg.Engine.MinTheoVolume == 0 {
		cfg.Engine.MinTheoVolume = 500
	}
	if cfg.Engine.QuoteOffsetTicks == 0 {
		cfg.Engine.QuoteOffsetTicks = 1
	}
	if cfg.Engine.RiskFactor == 0 {
		cfg.Engine.RiskFactor = 20
	}
	if cfg.Engine.CycleActionBudget == 0 {
		cfg.Engine.CycleActionBudget = 48
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = "127.0.0.1:9001"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.State.JournalPath == "" {
		cfg.State.JournalPath = "data/etf-mm-bot.db"
	}
	if cfg.Timescale.Schema == "" {
		cfg.Timescale.Schema = "public"
	}
	if cfg.Timescale.QueueSize == 0 {
		cfg.Timescale.QueueSize = 256
	}
}

func validate(cfg *Config) error {
	if cfg.Engine.LotSize <= 0 {
		return errors.New("engine.lot_size must be > 0")
	}
	if cfg.Engine.PositionLimit <= 0 {
		return errors.New("engine.position_limit must be > 0")
	}
	if cfg.Engine.ArbitrageLimit <= 0 {
		return errors.New("engine.arbitrage_limit must be > 0")
	}
	if cfg.Engine.ArbitrageLimit > cfg.Engine.PositionLimit {
		return errors.New("engine.arbitrage_limit exceeds engine.position_limit")
	}
	if cfg.Engine.TickSizeCents <= 0 {
		return errors.New("engine.tick_size_cents must be > 0")
	}
	if cfg.Engine.MinBidCents >= cfg.Engine.MaxAskCents {
		return fmt.Errorf("engine.min_bid_cents %d must be below engine.max_ask_cents %d",
			cfg.Engine.MinBidCents, cfg.Engine.MaxAskCents)
	}
	if cfg.Engine.RequoteToleranceTicks < 0 {
		return errors.New("engine.requote_tolerance_ticks must be >= 0")
	}
	if cfg.Engine.RiskFactor < 0 {
		return errors.New("engine.risk_factor must be >= 0")
	}
	if cfg.Engine.MinTheoVolume < 0 {
		return errors.New("engine.min_theo_volume must be >= 0")
	}
	if cfg.Timescale.Enabled && cfg.Timescale.DSN == "" {
		return errors.New("timescale.dsn is required when timescale is enabled")
	}
	return nil
}
