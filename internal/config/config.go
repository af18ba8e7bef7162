package config

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/caarlos0/env/v11"
)

// Increment policies accepted by INCREMENT_POLICY.
const (
	IncrementFlat    = "flat"
	IncrementPercent = "percent"
)

// Config holds all runtime configuration for the sovereignty engine.
type Config struct {
	Port            int           `env:"PORT"             envDefault:"8080"`
	LogLevel        string        `env:"LOG_LEVEL"        envDefault:"info"`
	SweepInterval   time.Duration `env:"SWEEP_INTERVAL"   envDefault:"5s"`
	WebhookTimeout  time.Duration `env:"WEBHOOK_TIMEOUT"  envDefault:"5s"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT"     envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT"    envDefault:"10s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT"     envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// DatabasePath selects the SQLite store; empty keeps state in memory.
	DatabasePath string `env:"DATABASE_PATH"`
	// TerritoryCatalog is a YAML file; empty uses the embedded catalog.
	TerritoryCatalog string `env:"TERRITORY_CATALOG"`

	AuctionRatio         float64       `env:"AUCTION_RATIO"          envDefault:"0.6"`
	MinBid               int64         `env:"MIN_BID"                envDefault:"10"`
	ShortAuctionDuration time.Duration `env:"SHORT_AUCTION_DURATION" envDefault:"24h"`
	OwnedAuctionDuration time.Duration `env:"OWNED_AUCTION_DURATION" envDefault:"168h"`
	ProtectionPeriod     time.Duration `env:"PROTECTION_PERIOD"      envDefault:"48h"`

	IncrementPolicy string  `env:"INCREMENT_POLICY" envDefault:"flat"`
	MinIncrement    int64   `env:"MIN_INCREMENT"    envDefault:"1"`
	IncrementRate   float64 `env:"INCREMENT_RATE"   envDefault:"0.10"`

	AdjacentBonusRate float64 `env:"ADJACENT_BONUS_RATE" envDefault:"0.05"`
	CountryBonusRate  float64 `env:"COUNTRY_BONUS_RATE"  envDefault:"0.10"`
	CountryThreshold  int     `env:"COUNTRY_THRESHOLD"   envDefault:"3"`
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, parseErrors(err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// parseErrors rewrites env parse failures to name the variable rather
// than the struct field.
func parseErrors(err error) error {
	var agg env.AggregateError
	if !errors.As(err, &agg) {
		return fmt.Errorf("parse env: %w", err)
	}
	errs := make([]error, 0, len(agg.Errors))
	for _, e := range agg.Errors {
		var pe env.ParseError
		if !errors.As(e, &pe) {
			errs = append(errs, e)
			continue
		}
		key := pe.Name
		if f, ok := reflect.TypeOf(Config{}).FieldByName(pe.Name); ok {
			key = f.Tag.Get("env")
		}
		errs = append(errs, fmt.Errorf("invalid %s: %w", key, pe.Err))
	}
	return errors.Join(errs...)
}

func (c *Config) validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid PORT: %d", c.Port))
	}
	if !isValidLogLevel(c.LogLevel) {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", c.LogLevel))
	}

	for _, d := range []struct {
		key string
		val time.Duration
	}{
		{"SWEEP_INTERVAL", c.SweepInterval},
		{"WEBHOOK_TIMEOUT", c.WebhookTimeout},
		{"READ_TIMEOUT", c.ReadTimeout},
		{"WRITE_TIMEOUT", c.WriteTimeout},
		{"IDLE_TIMEOUT", c.IdleTimeout},
		{"SHUTDOWN_TIMEOUT", c.ShutdownTimeout},
		{"SHORT_AUCTION_DURATION", c.ShortAuctionDuration},
		{"OWNED_AUCTION_DURATION", c.OwnedAuctionDuration},
	} {
		if d.val <= 0 {
			errs = append(errs, fmt.Errorf("invalid %s: %v, must be positive", d.key, d.val))
		}
	}
	if c.ProtectionPeriod < 0 {
		errs = append(errs, fmt.Errorf("invalid PROTECTION_PERIOD: %v, must not be negative", c.ProtectionPeriod))
	}

	if c.AuctionRatio <= 0 || c.AuctionRatio > 1 {
		errs = append(errs, fmt.Errorf("invalid AUCTION_RATIO: %v, must be in (0, 1]", c.AuctionRatio))
	}
	if c.MinBid < 1 {
		errs = append(errs, fmt.Errorf("invalid MIN_BID: %d, must be at least 1", c.MinBid))
	}

	switch c.IncrementPolicy {
	case IncrementFlat, IncrementPercent:
	default:
		errs = append(errs, fmt.Errorf("invalid INCREMENT_POLICY: %q, must be one of: flat, percent", c.IncrementPolicy))
	}
	if c.MinIncrement < 1 {
		errs = append(errs, fmt.Errorf("invalid MIN_INCREMENT: %d, must be at least 1", c.MinIncrement))
	}
	if c.IncrementRate <= 0 {
		errs = append(errs, fmt.Errorf("invalid INCREMENT_RATE: %v, must be positive", c.IncrementRate))
	}

	if c.AdjacentBonusRate < 0 {
		errs = append(errs, fmt.Errorf("invalid ADJACENT_BONUS_RATE: %v", c.AdjacentBonusRate))
	}
	if c.CountryBonusRate < 0 {
		errs = append(errs, fmt.Errorf("invalid COUNTRY_BONUS_RATE: %v", c.CountryBonusRate))
	}
	if c.CountryThreshold < 1 {
		errs = append(errs, fmt.Errorf("invalid COUNTRY_THRESHOLD: %d, must be at least 1", c.CountryThreshold))
	}

	return errors.Join(errs...)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
