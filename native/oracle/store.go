package oracle

import (
	"fmt"

	"fxoracle/crypto"
)

// Stored records use unsigned integers only so they round-trip through RLP.
// Signed timestamps are persisted as unix seconds clamped at zero.

type storedFeedType struct {
	Kind        uint8
	Numerator   uint64
	Denominator uint64
	BaseType    uint8
}

type storedFeedEntry struct {
	Symbol        string
	Feed          []byte
	FeedType      storedFeedType
	BaseCurrency  string
	QuoteCurrency string
	Decimals      uint8
	Active        bool
	RegisteredAt  uint64
	RegisteredBy  []byte
}

type storedRegistry struct {
	Authority []byte
	FeedCount uint64
	Feeds     []storedFeedEntry
}

type storedConfig struct {
	Version              uint8
	Instrument           []byte
	Authority            []byte
	PendingAuthority     []byte
	FeedSymbol           string
	Description          string
	MaxStalenessSeconds  uint64
	MintFeeBps           uint16
	RedeemFeeBps         uint16
	MaxConfidenceBps     uint16
	QuoteValiditySeconds uint64
	CpiMultiplier        uint64
	CpiLastUpdated       uint64
	CpiMinUpdateInterval uint64
	CpiDataSource        string
	Paused               bool
	PauseReason          string
	TotalMintedFiat      uint64
	TotalRedeemedFiat    uint64
	TotalFeesCollected   uint64
	CreatedAt            uint64
	LastUpdatedAt        uint64
}

type storedQuote struct {
	Ref           []byte
	Instrument    []byte
	Requester     []byte
	Direction     uint8
	FeedSymbol    string
	InputAmount   uint64
	OutputAmount  uint64
	FeeAmount     uint64
	PriceSnapshot uint64
	ValidUntil    uint64
	MinOutput     uint64
	Used          bool
	CreatedAt     uint64
	Nonce         uint64
}

// storedConsumption is the compact marker left behind once a quote's record
// has been reclaimed.
type storedConsumption struct {
	Direction  uint8
	Requester  []byte
	ConsumedAt uint64
}

func toUnix(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}

func fromUnix(v uint64) int64 {
	if v > 1<<63-1 {
		return 1<<63 - 1
	}
	return int64(v)
}

func newStoredFeedType(ft FeedType) storedFeedType {
	return storedFeedType{Kind: uint8(ft.Kind), Numerator: ft.Numerator, Denominator: ft.Denominator, BaseType: ft.BaseType}
}

func (s storedFeedType) toFeedType() FeedType {
	return FeedType{Kind: FeedKind(s.Kind), Numerator: s.Numerator, Denominator: s.Denominator, BaseType: s.BaseType}
}

func newStoredRegistry(r *Registry) *storedRegistry {
	out := &storedRegistry{Authority: r.Authority.Bytes(), FeedCount: r.FeedCount}
	out.Feeds = make([]storedFeedEntry, 0, len(r.Feeds))
	for _, entry := range r.Feeds {
		out.Feeds = append(out.Feeds, storedFeedEntry{
			Symbol:        entry.Symbol,
			Feed:          append([]byte(nil), entry.Feed[:]...),
			FeedType:      newStoredFeedType(entry.FeedType),
			BaseCurrency:  entry.BaseCurrency,
			QuoteCurrency: entry.QuoteCurrency,
			Decimals:      entry.Decimals,
			Active:        entry.Active,
			RegisteredAt:  toUnix(entry.RegisteredAt),
			RegisteredBy:  entry.RegisteredBy.Bytes(),
		})
	}
	return out
}

func (s *storedRegistry) toRegistry() (*Registry, error) {
	authority, err := crypto.AddressFromBytes(crypto.AccountPrefix, s.Authority)
	if err != nil {
		return nil, fmt.Errorf("registry authority: %w", err)
	}
	reg := &Registry{Authority: authority, FeedCount: s.FeedCount, Feeds: make([]FeedEntry, 0, len(s.Feeds))}
	for _, entry := range s.Feeds {
		feed, err := crypto.FeedAddressFromBytes(entry.Feed)
		if err != nil {
			return nil, fmt.Errorf("feed %s: %w", entry.Symbol, err)
		}
		by, err := crypto.AddressFromBytes(crypto.AccountPrefix, entry.RegisteredBy)
		if err != nil {
			return nil, fmt.Errorf("feed %s registrant: %w", entry.Symbol, err)
		}
		reg.Feeds = append(reg.Feeds, FeedEntry{
			Symbol:        entry.Symbol,
			Feed:          feed,
			FeedType:      entry.FeedType.toFeedType(),
			BaseCurrency:  entry.BaseCurrency,
			QuoteCurrency: entry.QuoteCurrency,
			Decimals:      entry.Decimals,
			Active:        entry.Active,
			RegisteredAt:  fromUnix(entry.RegisteredAt),
			RegisteredBy:  by,
		})
	}
	return reg, nil
}

func newStoredConfig(c *Config) *storedConfig {
	return &storedConfig{
		Version:              c.Version,
		Instrument:           c.Instrument.Bytes(),
		Authority:            c.Authority.Bytes(),
		PendingAuthority:     c.PendingAuthority.Bytes(),
		FeedSymbol:           c.FeedSymbol,
		Description:          c.Description,
		MaxStalenessSeconds:  toUnix(c.MaxStalenessSeconds),
		MintFeeBps:           c.MintFeeBps,
		RedeemFeeBps:         c.RedeemFeeBps,
		MaxConfidenceBps:     c.MaxConfidenceBps,
		QuoteValiditySeconds: toUnix(c.QuoteValiditySeconds),
		CpiMultiplier:        c.CpiMultiplier,
		CpiLastUpdated:       toUnix(c.CpiLastUpdated),
		CpiMinUpdateInterval: toUnix(c.CpiMinUpdateInterval),
		CpiDataSource:        c.CpiDataSource,
		Paused:               c.Paused,
		PauseReason:          c.PauseReason,
		TotalMintedFiat:      c.TotalMintedFiat,
		TotalRedeemedFiat:    c.TotalRedeemedFiat,
		TotalFeesCollected:   c.TotalFeesCollected,
		CreatedAt:            toUnix(c.CreatedAt),
		LastUpdatedAt:        toUnix(c.LastUpdatedAt),
	}
}

func (s *storedConfig) toConfig() (*Config, error) {
	instrument, err := crypto.AddressFromBytes(crypto.InstrumentPrefix, s.Instrument)
	if err != nil {
		return nil, fmt.Errorf("config instrument: %w", err)
	}
	authority, err := crypto.AddressFromBytes(crypto.AccountPrefix, s.Authority)
	if err != nil {
		return nil, fmt.Errorf("config authority: %w", err)
	}
	pending, err := crypto.AddressFromBytes(crypto.AccountPrefix, s.PendingAuthority)
	if err != nil {
		return nil, fmt.Errorf("config pending authority: %w", err)
	}
	return &Config{
		Version:              s.Version,
		Instrument:           instrument,
		Authority:            authority,
		PendingAuthority:     pending,
		FeedSymbol:           s.FeedSymbol,
		Description:          s.Description,
		MaxStalenessSeconds:  fromUnix(s.MaxStalenessSeconds),
		MintFeeBps:           s.MintFeeBps,
		RedeemFeeBps:         s.RedeemFeeBps,
		MaxConfidenceBps:     s.MaxConfidenceBps,
		QuoteValiditySeconds: fromUnix(s.QuoteValiditySeconds),
		CpiMultiplier:        s.CpiMultiplier,
		CpiLastUpdated:       fromUnix(s.CpiLastUpdated),
		CpiMinUpdateInterval: fromUnix(s.CpiMinUpdateInterval),
		CpiDataSource:        s.CpiDataSource,
		Paused:               s.Paused,
		PauseReason:          s.PauseReason,
		TotalMintedFiat:      s.TotalMintedFiat,
		TotalRedeemedFiat:    s.TotalRedeemedFiat,
		TotalFeesCollected:   s.TotalFeesCollected,
		CreatedAt:            fromUnix(s.CreatedAt),
		LastUpdatedAt:        fromUnix(s.LastUpdatedAt),
	}, nil
}

func newStoredQuote(q *Quote) *storedQuote {
	return &storedQuote{
		Ref:           append([]byte(nil), q.Ref[:]...),
		Instrument:    q.Instrument.Bytes(),
		Requester:     q.Requester.Bytes(),
		Direction:     uint8(q.Direction),
		FeedSymbol:    q.FeedSymbol,
		InputAmount:   q.InputAmount,
		OutputAmount:  q.OutputAmount,
		FeeAmount:     q.FeeAmount,
		PriceSnapshot: q.PriceSnapshot,
		ValidUntil:    toUnix(q.ValidUntil),
		MinOutput:     q.MinOutput,
		Used:          q.Used,
		CreatedAt:     toUnix(q.CreatedAt),
		Nonce:         q.Nonce,
	}
}

func (s *storedQuote) toQuote() (*Quote, error) {
	if len(s.Ref) != len(QuoteRef{}) {
		return nil, fmt.Errorf("quote ref must be 32 bytes, got %d", len(s.Ref))
	}
	instrument, err := crypto.AddressFromBytes(crypto.InstrumentPrefix, s.Instrument)
	if err != nil {
		return nil, fmt.Errorf("quote instrument: %w", err)
	}
	requester, err := crypto.AddressFromBytes(crypto.AccountPrefix, s.Requester)
	if err != nil {
		return nil, fmt.Errorf("quote requester: %w", err)
	}
	q := &Quote{
		Instrument:    instrument,
		Requester:     requester,
		Direction:     Direction(s.Direction),
		FeedSymbol:    s.FeedSymbol,
		InputAmount:   s.InputAmount,
		OutputAmount:  s.OutputAmount,
		FeeAmount:     s.FeeAmount,
		PriceSnapshot: s.PriceSnapshot,
		ValidUntil:    fromUnix(s.ValidUntil),
		MinOutput:     s.MinOutput,
		Used:          s.Used,
		CreatedAt:     fromUnix(s.CreatedAt),
		Nonce:         s.Nonce,
	}
	copy(q.Ref[:], s.Ref)
	return q, nil
}
