package config

import (
	"fmt"
	"strings"
	"time"

	"fxoracle/crypto"
	"fxoracle/native/oracle"
)

const (
	defaultService       = "fxoracle"
	defaultDataDir       = "./data/oracle"
	defaultJournalDSN    = "file:./data/journal.db"
	defaultQuoteValidity = 30 * time.Second
	defaultMaxStaleness  = 5 * time.Minute
	defaultCpiInterval   = 24 * time.Hour
)

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Service) == "" {
		c.Service = defaultService
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaultDataDir
	}
	if strings.TrimSpace(c.Journal.DSN) == "" {
		c.Journal.DSN = defaultJournalDSN
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 100
	}
	for i := range c.Instruments {
		inst := &c.Instruments[i]
		if !inst.QuoteValidity.IsSet() {
			inst.QuoteValidity.Duration = defaultQuoteValidity
		}
		if !inst.MaxStaleness.IsSet() {
			inst.MaxStaleness.Duration = defaultMaxStaleness
		}
		if !inst.CpiMinUpdateInterval.IsSet() {
			inst.CpiMinUpdateInterval.Duration = defaultCpiInterval
		}
		if inst.CpiMultiplier == 0 {
			inst.CpiMultiplier = oracle.CpiScale
		}
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config must not be nil")
	}
	if auth := strings.TrimSpace(c.Registry.Authority); auth != "" {
		if _, err := crypto.DecodeAddressWithPrefix(auth, crypto.AccountPrefix); err != nil {
			return fmt.Errorf("registry authority: %w", err)
		}
	}
	symbols := make(map[string]struct{}, len(c.Feeds))
	for i, feed := range c.Feeds {
		if _, err := feed.FeedType(); err != nil {
			return fmt.Errorf("feeds[%d]: %w", i, err)
		}
		if _, err := feed.FeedAddress(); err != nil {
			return fmt.Errorf("feeds[%d]: %w", i, err)
		}
		params := oracle.RegisterFeedParams{
			Symbol:        feed.Symbol,
			BaseCurrency:  feed.BaseCurrency,
			QuoteCurrency: feed.QuoteCurrency,
			Decimals:      feed.Decimals,
		}
		params.FeedType, _ = feed.FeedType()
		if err := params.Validate(); err != nil {
			return fmt.Errorf("feeds[%d]: %w", i, err)
		}
		if _, dup := symbols[feed.Symbol]; dup {
			return fmt.Errorf("feeds[%d]: duplicate symbol %s", i, feed.Symbol)
		}
		symbols[feed.Symbol] = struct{}{}
	}
	for i, inst := range c.Instruments {
		if _, err := crypto.DecodeAddressWithPrefix(inst.Instrument, crypto.InstrumentPrefix); err != nil {
			return fmt.Errorf("instruments[%d].instrument: %w", i, err)
		}
		if _, err := crypto.DecodeAddressWithPrefix(inst.Authority, crypto.AccountPrefix); err != nil {
			return fmt.Errorf("instruments[%d].authority: %w", i, err)
		}
		if err := inst.Params().Validate(); err != nil {
			return fmt.Errorf("instruments[%d]: %w", i, err)
		}
	}
	return nil
}
