package oracle

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"fxoracle/core/events"
	"fxoracle/core/state"
	"fxoracle/crypto"
)

// InitializeRegistry creates the singleton feed catalog owned by authority.
func (e *Engine) InitializeRegistry(ctx context.Context, authority crypto.Address) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	_, finish := e.begin(ctx, "initialize_registry")
	defer func() { finish(err) }()
	if authority.IsZero() {
		return fmt.Errorf("%w: registry authority required", ErrInvalidParams)
	}
	err = e.state.Update(func(tx *state.Tx) error {
		exists, err := tx.KVHas(registryKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrRegistryExists
		}
		return putRegistry(tx, &Registry{Authority: authority})
	})
	if err != nil {
		return err
	}
	e.logger.Info("feed registry initialised", "authority", authority.String())
	return nil
}

// RegisterFeed appends a feed entry. The referenced snapshot must decode so
// that no unreadable feed ever enters the catalog.
func (e *Engine) RegisterFeed(ctx context.Context, caller crypto.Address, params RegisterFeedParams, snapshot FeedSnapshot) (entry *FeedEntry, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	_, finish := e.begin(ctx, "register_feed", attribute.String("symbol", params.Symbol))
	defer func() { finish(err) }()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if snapshot.Address.IsZero() {
		return nil, fmt.Errorf("%w: feed address required", ErrInvalidParams)
	}
	now := e.now()
	err = e.state.Update(func(tx *state.Tx) error {
		reg, err := loadRegistry(tx)
		if err != nil {
			return err
		}
		if !reg.Authority.Equal(caller) {
			return ErrUnauthorized
		}
		if _, found := reg.FindFeed(params.Symbol); found {
			return ErrFeedAlreadyRegistered
		}
		if reg.FeedCount >= MaxFeeds {
			return ErrRegistryFull
		}
		if _, err := ReadExternalPrice(snapshot.Data); err != nil {
			return fmt.Errorf("%w: %v", ErrFeedNotReady, err)
		}
		created := FeedEntry{
			Symbol:        params.Symbol,
			Feed:          snapshot.Address,
			FeedType:      params.FeedType,
			BaseCurrency:  params.BaseCurrency,
			QuoteCurrency: params.QuoteCurrency,
			Decimals:      params.Decimals,
			Active:        true,
			RegisteredAt:  now,
			RegisteredBy:  caller,
		}
		reg.Feeds = append(reg.Feeds, created)
		reg.FeedCount++
		entry = &created
		return putRegistry(tx, reg)
	})
	if err != nil {
		return nil, err
	}
	e.emit(events.FeedRegistered{
		Symbol:        entry.Symbol,
		Feed:          entry.Feed,
		FeedType:      entry.FeedType.String(),
		BaseCurrency:  entry.BaseCurrency,
		QuoteCurrency: entry.QuoteCurrency,
		RegisteredBy:  caller,
		Timestamp:     now,
	})
	e.logger.Info("feed registered", "symbol", entry.Symbol, "feed", entry.Feed.String(), "feed_type", entry.FeedType.String())
	return entry, nil
}

// DeactivateFeed soft-deactivates the active entry for symbol. The entry stays
// in the catalog so historical quotes remain interpretable.
func (e *Engine) DeactivateFeed(ctx context.Context, caller crypto.Address, symbol string) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	_, finish := e.begin(ctx, "deactivate_feed", attribute.String("symbol", symbol))
	defer func() { finish(err) }()
	now := e.now()
	var feed crypto.FeedAddress
	err = e.state.Update(func(tx *state.Tx) error {
		reg, err := loadRegistry(tx)
		if err != nil {
			return err
		}
		if !reg.Authority.Equal(caller) {
			return ErrUnauthorized
		}
		entry, found := reg.FindFeed(symbol)
		if !found {
			return ErrFeedNotFound
		}
		entry.Active = false
		feed = entry.Feed
		return putRegistry(tx, reg)
	})
	if err != nil {
		return err
	}
	e.emit(events.FeedDeactivated{Symbol: symbol, Feed: feed, By: caller, Timestamp: now})
	e.logger.Info("feed deactivated", "symbol", symbol)
	return nil
}

// FindFeed resolves symbol to its active registry entry.
func (e *Engine) FindFeed(ctx context.Context, symbol string) (*FeedEntry, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	var out *FeedEntry
	err := e.state.View(func(tx *state.Tx) error {
		reg, err := loadRegistry(tx)
		if err != nil {
			return err
		}
		entry, found := reg.FindFeed(symbol)
		if !found {
			return ErrFeedNotFound
		}
		copied := *entry
		out = &copied
		return nil
	})
	return out, err
}

// ListFeeds returns every registry entry in registration order, including
// deactivated ones.
func (e *Engine) ListFeeds(ctx context.Context) ([]FeedEntry, error) {
	reg, err := e.Registry(ctx)
	if err != nil {
		return nil, err
	}
	return reg.Feeds, nil
}

// Registry returns a copy of the feed catalog.
func (e *Engine) Registry(ctx context.Context) (*Registry, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	var out *Registry
	err := e.state.View(func(tx *state.Tx) error {
		reg, err := loadRegistry(tx)
		if err != nil {
			return err
		}
		out = reg
		return nil
	})
	return out, err
}
