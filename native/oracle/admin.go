package oracle

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"fxoracle/core/events"
	"fxoracle/core/state"
	"fxoracle/crypto"
)

func loadConfig(tx *state.Tx, instrument crypto.Address) (*Config, error) {
	var stored storedConfig
	ok, err := tx.KVGet(configKey(instrument), &stored)
	if err != nil {
		return nil, fmt.Errorf("load oracle config: %w", err)
	}
	if !ok {
		return nil, ErrOracleNotFound
	}
	return stored.toConfig()
}

func putConfig(tx *state.Tx, cfg *Config) error {
	return tx.KVPut(configKey(cfg.Instrument), newStoredConfig(cfg))
}

// updateAsAuthority loads the instrument config, checks that caller is its
// authority and persists the result of mutate.
func (e *Engine) updateAsAuthority(caller, instrument crypto.Address, mutate func(cfg *Config) error) (*Config, error) {
	var out *Config
	err := e.state.Update(func(tx *state.Tx) error {
		cfg, err := loadConfig(tx, instrument)
		if err != nil {
			return err
		}
		if !cfg.Authority.Equal(caller) {
			return ErrUnauthorized
		}
		if err := mutate(cfg); err != nil {
			return err
		}
		out = cfg
		return putConfig(tx, cfg)
	})
	return out, err
}

// InitializeOracle creates the configuration of instrument with caller as its
// authority. The feed symbol must resolve to an active registry entry.
func (e *Engine) InitializeOracle(ctx context.Context, caller, instrument crypto.Address, params InitializeParams) (cfg *Config, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	_, finish := e.begin(ctx, "initialize_oracle", attribute.String("instrument", instrument.String()))
	defer func() { finish(err) }()
	if caller.IsZero() || instrument.IsZero() {
		return nil, fmt.Errorf("%w: authority and instrument required", ErrInvalidParams)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	now := e.now()
	err = e.state.Update(func(tx *state.Tx) error {
		exists, err := tx.KVHas(configKey(instrument))
		if err != nil {
			return err
		}
		if exists {
			return ErrOracleExists
		}
		reg, err := loadRegistry(tx)
		if err != nil {
			return err
		}
		if _, found := reg.FindFeed(params.FeedSymbol); !found {
			return ErrFeedNotFound
		}
		cfg = &Config{
			Version:              ConfigVersion,
			Instrument:           instrument,
			Authority:            caller,
			FeedSymbol:           params.FeedSymbol,
			Description:          params.Description,
			MaxStalenessSeconds:  params.MaxStalenessSeconds,
			MintFeeBps:           params.MintFeeBps,
			RedeemFeeBps:         params.RedeemFeeBps,
			MaxConfidenceBps:     params.MaxConfidenceBps,
			QuoteValiditySeconds: params.QuoteValiditySeconds,
			CpiMultiplier:        params.CpiMultiplier,
			CpiLastUpdated:       now,
			CpiMinUpdateInterval: params.CpiMinUpdateInterval,
			CpiDataSource:        params.CpiDataSource,
			CreatedAt:            now,
			LastUpdatedAt:        now,
		}
		return putConfig(tx, cfg)
	})
	if err != nil {
		return nil, err
	}
	e.metrics.SetCpiMultiplier(instrument.String(), cfg.CpiMultiplier)
	e.metrics.SetPaused(instrument.String(), false)
	e.emit(events.OracleInitialized{
		Instrument:   instrument,
		Authority:    caller,
		FeedSymbol:   cfg.FeedSymbol,
		MintFeeBps:   cfg.MintFeeBps,
		RedeemFeeBps: cfg.RedeemFeeBps,
		Timestamp:    now,
	})
	e.logger.Info("oracle initialised", "instrument", instrument.String(), "symbol", cfg.FeedSymbol)
	return cfg, nil
}

// OracleInfo returns the configuration and counters of instrument.
func (e *Engine) OracleInfo(ctx context.Context, instrument crypto.Address) (*Config, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	var out *Config
	err := e.state.View(func(tx *state.Tx) error {
		cfg, err := loadConfig(tx, instrument)
		if err != nil {
			return err
		}
		out = cfg
		return nil
	})
	return out, err
}

// Pause halts quote issuance and consumption for instrument.
func (e *Engine) Pause(ctx context.Context, caller, instrument crypto.Address, reason string) error {
	return e.setPaused(ctx, caller, instrument, true, reason)
}

// Unpause resumes the instrument and clears the recorded reason.
func (e *Engine) Unpause(ctx context.Context, caller, instrument crypto.Address) error {
	return e.setPaused(ctx, caller, instrument, false, "")
}

func (e *Engine) setPaused(ctx context.Context, caller, instrument crypto.Address, paused bool, reason string) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	operation := "unpause"
	if paused {
		operation = "pause"
	}
	_, finish := e.begin(ctx, operation, attribute.String("instrument", instrument.String()))
	defer func() { finish(err) }()
	if len(reason) > MaxReasonLength {
		return fmt.Errorf("%w: reason exceeds %d bytes", ErrInvalidParams, MaxReasonLength)
	}
	now := e.now()
	_, err = e.updateAsAuthority(caller, instrument, func(cfg *Config) error {
		cfg.Paused = paused
		cfg.PauseReason = reason
		cfg.LastUpdatedAt = now
		return nil
	})
	if err != nil {
		return err
	}
	e.metrics.SetPaused(instrument.String(), paused)
	e.emit(events.OraclePauseChanged{Instrument: instrument, Paused: paused, Reason: reason, By: caller, Timestamp: now})
	e.logger.Info("oracle pause changed", "instrument", instrument.String(), "paused", paused, "reason", reason)
	return nil
}

// ProposeAuthorityTransfer nominates proposed as the next authority. The
// handover completes only once proposed accepts.
func (e *Engine) ProposeAuthorityTransfer(ctx context.Context, caller, instrument, proposed crypto.Address) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	_, finish := e.begin(ctx, "propose_authority", attribute.String("instrument", instrument.String()))
	defer func() { finish(err) }()
	if proposed.IsZero() {
		return fmt.Errorf("%w: proposed authority required", ErrInvalidParams)
	}
	now := e.now()
	_, err = e.updateAsAuthority(caller, instrument, func(cfg *Config) error {
		cfg.PendingAuthority = proposed
		cfg.LastUpdatedAt = now
		return nil
	})
	if err != nil {
		return err
	}
	e.emit(events.AuthorityTransferProposed{Instrument: instrument, Current: caller, Proposed: proposed, Timestamp: now})
	return nil
}

// AcceptAuthorityTransfer completes a pending handover. Only the proposed
// party may accept.
func (e *Engine) AcceptAuthorityTransfer(ctx context.Context, caller, instrument crypto.Address) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	_, finish := e.begin(ctx, "accept_authority", attribute.String("instrument", instrument.String()))
	defer func() { finish(err) }()
	now := e.now()
	var previous crypto.Address
	err = e.state.Update(func(tx *state.Tx) error {
		cfg, err := loadConfig(tx, instrument)
		if err != nil {
			return err
		}
		if !cfg.HasPendingAuthority() {
			return ErrNoPendingTransfer
		}
		if !cfg.PendingAuthority.Equal(caller) {
			return ErrUnauthorized
		}
		previous = cfg.Authority
		cfg.Authority = cfg.PendingAuthority
		cfg.PendingAuthority = crypto.Address{}
		cfg.LastUpdatedAt = now
		return putConfig(tx, cfg)
	})
	if err != nil {
		return err
	}
	e.emit(events.AuthorityTransferred{Instrument: instrument, From: previous, To: caller, Timestamp: now})
	e.logger.Info("oracle authority transferred", "instrument", instrument.String(), "to", caller.String())
	return nil
}

// UpdateCpiMultiplier replaces the purchasing-power multiplier. Updates are
// rate limited by the configured minimum interval.
func (e *Engine) UpdateCpiMultiplier(ctx context.Context, caller, instrument crypto.Address, update CpiUpdate) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	_, finish := e.begin(ctx, "update_cpi", attribute.String("instrument", instrument.String()))
	defer func() { finish(err) }()
	if update.NewMultiplier == 0 {
		return ErrInvalidCpiMultiplier
	}
	if len(update.DataSource) > MaxDataSourceLength {
		return fmt.Errorf("%w: data source exceeds %d bytes", ErrInvalidParams, MaxDataSourceLength)
	}
	now := e.now()
	var old uint64
	_, err = e.updateAsAuthority(caller, instrument, func(cfg *Config) error {
		if saturatingSub(now, cfg.CpiLastUpdated) < cfg.CpiMinUpdateInterval {
			return ErrCpiUpdateTooSoon
		}
		old = cfg.CpiMultiplier
		cfg.CpiMultiplier = update.NewMultiplier
		cfg.CpiLastUpdated = now
		cfg.CpiDataSource = update.DataSource
		cfg.LastUpdatedAt = now
		return nil
	})
	if err != nil {
		return err
	}
	e.metrics.SetCpiMultiplier(instrument.String(), update.NewMultiplier)
	e.emit(events.CpiMultiplierUpdated{
		Instrument:     instrument,
		OldMultiplier:  old,
		NewMultiplier:  update.NewMultiplier,
		ReferenceMonth: update.ReferenceMonth,
		DataSource:     update.DataSource,
		UpdatedBy:      caller,
		Timestamp:      now,
	})
	e.logger.Info("cpi multiplier updated", "instrument", instrument.String(), "old", old, "new", update.NewMultiplier, "reference_month", update.ReferenceMonth)
	return nil
}
