package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"fxoracle/crypto"
	"fxoracle/native/oracle"
)

// Duration parses Go duration strings and remembers whether the key was
// present, so an explicit "0s" is kept rather than defaulted.
type Duration struct {
	time.Duration
	set bool
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	return d.UnmarshalText([]byte(value.Value))
}

// UnmarshalText parses human readable duration strings.
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		d.Duration, d.set = 0, false
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration, d.set = parsed, true
	return nil
}

// Seconds returns the duration truncated to whole seconds.
// IsSet reports whether the duration was given explicitly.
func (d Duration) IsSet() bool {
	return d.set
}

func (d Duration) Seconds() int64 {
	return int64(d.Duration / time.Second)
}

// Config captures runtime configuration for the oracle tooling.
type Config struct {
	Service       string             `yaml:"service" toml:"service"`
	Environment   string             `yaml:"environment" toml:"environment"`
	DataDir       string             `yaml:"data_dir" toml:"data_dir"`
	Journal       JournalConfig      `yaml:"journal" toml:"journal"`
	Logging       LoggingConfig      `yaml:"logging" toml:"logging"`
	Telemetry     TelemetryConfig    `yaml:"telemetry" toml:"telemetry"`
	PausedModules []string           `yaml:"paused_modules" toml:"paused_modules"`
	Registry      RegistryConfig     `yaml:"registry" toml:"registry"`
	Feeds         []FeedConfig       `yaml:"feeds" toml:"feeds"`
	Instruments   []InstrumentConfig `yaml:"instruments" toml:"instruments"`
}

// JournalConfig points at the SQL event journal.
type JournalConfig struct {
	DSN string `yaml:"dsn" toml:"dsn"`
}

// LoggingConfig tunes the structured logger.
type LoggingConfig struct {
	Level      string `yaml:"level" toml:"level"`
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"`
	Compress   bool   `yaml:"compress" toml:"compress"`
}

// TelemetryConfig configures OTLP exporters.
type TelemetryConfig struct {
	Endpoint string `yaml:"endpoint" toml:"endpoint"`
	Insecure bool   `yaml:"insecure" toml:"insecure"`
	Headers  string `yaml:"headers" toml:"headers"`
	Traces   bool   `yaml:"traces" toml:"traces"`
	Metrics  bool   `yaml:"metrics" toml:"metrics"`
}

// RegistryConfig names the feed registry authority.
type RegistryConfig struct {
	Authority string `yaml:"authority" toml:"authority"`
}

// FeedConfig describes a feed to register at bootstrap.
type FeedConfig struct {
	Symbol        string `yaml:"symbol" toml:"symbol"`
	Type          string `yaml:"type" toml:"type"`
	BaseCurrency  string `yaml:"base_currency" toml:"base_currency"`
	QuoteCurrency string `yaml:"quote_currency" toml:"quote_currency"`
	Decimals      uint8  `yaml:"decimals" toml:"decimals"`
	Address       string `yaml:"address" toml:"address"`
	SnapshotFile  string `yaml:"snapshot_file" toml:"snapshot_file"`
}

// InstrumentConfig describes an instrument to initialise at bootstrap.
type InstrumentConfig struct {
	Instrument           string   `yaml:"instrument" toml:"instrument"`
	Authority            string   `yaml:"authority" toml:"authority"`
	FeedSymbol           string   `yaml:"feed_symbol" toml:"feed_symbol"`
	Description          string   `yaml:"description" toml:"description"`
	MaxStaleness         Duration `yaml:"max_staleness" toml:"max_staleness"`
	MintFeeBps           uint16   `yaml:"mint_fee_bps" toml:"mint_fee_bps"`
	RedeemFeeBps         uint16   `yaml:"redeem_fee_bps" toml:"redeem_fee_bps"`
	MaxConfidenceBps     uint16   `yaml:"max_confidence_bps" toml:"max_confidence_bps"`
	QuoteValidity        Duration `yaml:"quote_validity" toml:"quote_validity"`
	CpiMultiplier        uint64   `yaml:"cpi_multiplier" toml:"cpi_multiplier"`
	CpiMinUpdateInterval Duration `yaml:"cpi_min_update_interval" toml:"cpi_min_update_interval"`
	CpiDataSource        string   `yaml:"cpi_data_source" toml:"cpi_data_source"`
}

// Load reads the configuration file. Files ending in .toml are decoded as
// TOML and everything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode toml config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode yaml config: %w", err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FeedType parses the configured interpretation mode.
func (f FeedConfig) FeedType() (oracle.FeedType, error) {
	return oracle.ParseFeedType(f.Type)
}

// FeedAddress parses the configured base58 feed address.
func (f FeedConfig) FeedAddress() (crypto.FeedAddress, error) {
	return crypto.ParseFeedAddress(f.Address)
}

// Params converts the instrument settings into engine parameters.
func (i InstrumentConfig) Params() oracle.InitializeParams {
	return oracle.InitializeParams{
		FeedSymbol:           i.FeedSymbol,
		Description:          i.Description,
		MaxStalenessSeconds:  i.MaxStaleness.Seconds(),
		MintFeeBps:           i.MintFeeBps,
		RedeemFeeBps:         i.RedeemFeeBps,
		MaxConfidenceBps:     i.MaxConfidenceBps,
		QuoteValiditySeconds: i.QuoteValidity.Seconds(),
		CpiMultiplier:        i.CpiMultiplier,
		CpiMinUpdateInterval: i.CpiMinUpdateInterval.Seconds(),
		CpiDataSource:        i.CpiDataSource,
	}
}
