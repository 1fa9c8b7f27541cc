package oracle

import (
	"encoding/hex"
	"fmt"
	"strings"

	"fxoracle/crypto"
)

const (
	// MaxFeeds is the fixed capacity of the feed registry.
	MaxFeeds = 64
	// MaxSymbolLength bounds feed symbols in bytes.
	MaxSymbolLength = 12
	// MaxCurrencyLength bounds currency codes in bytes.
	MaxCurrencyLength = 12
	// MaxFeedDecimals bounds the decimals advertised by a feed.
	MaxFeedDecimals = 18
	// MaxDescriptionLength bounds the instrument description.
	MaxDescriptionLength = 100
	// MaxDataSourceLength bounds the recorded CPI data source.
	MaxDataSourceLength = 50
	// MaxReasonLength bounds the recorded pause reason.
	MaxReasonLength = 100

	// ConfigVersion is stamped on every new oracle configuration.
	ConfigVersion uint8 = 1
)

// FeedEntry maps a symbol to an external feed account and its interpretation.
type FeedEntry struct {
	Symbol        string
	Feed          crypto.FeedAddress
	FeedType      FeedType
	BaseCurrency  string
	QuoteCurrency string
	Decimals      uint8
	Active        bool
	RegisteredAt  int64
	RegisteredBy  crypto.Address
}

// Registry is the singleton feed catalog. Entries are append-only; FeedCount
// counts every entry ever registered, including deactivated ones.
type Registry struct {
	Authority crypto.Address
	FeedCount uint64
	Feeds     []FeedEntry
}

// FindFeed returns the first active entry matching symbol.
func (r *Registry) FindFeed(symbol string) (*FeedEntry, bool) {
	if r == nil {
		return nil, false
	}
	for i := range r.Feeds {
		if r.Feeds[i].Active && r.Feeds[i].Symbol == symbol {
			return &r.Feeds[i], true
		}
	}
	return nil, false
}

// RegisterFeedParams describes a new registry entry.
type RegisterFeedParams struct {
	Symbol        string
	FeedType      FeedType
	BaseCurrency  string
	QuoteCurrency string
	Decimals      uint8
}

// Validate performs the input checks that run before the catalog is touched.
func (p RegisterFeedParams) Validate() error {
	if strings.TrimSpace(p.Symbol) == "" {
		return fmt.Errorf("%w: symbol required", ErrInvalidParams)
	}
	if len(p.Symbol) > MaxSymbolLength {
		return ErrSymbolTooLong
	}
	if len(p.BaseCurrency) > MaxCurrencyLength || len(p.QuoteCurrency) > MaxCurrencyLength {
		return fmt.Errorf("%w: currency code exceeds %d bytes", ErrInvalidParams, MaxCurrencyLength)
	}
	if p.Decimals > MaxFeedDecimals {
		return fmt.Errorf("%w: decimals %d exceed %d", ErrInvalidParams, p.Decimals, MaxFeedDecimals)
	}
	return p.FeedType.Validate()
}

// Config holds the per-instrument oracle parameters and lifetime counters.
type Config struct {
	Version              uint8
	Instrument           crypto.Address
	Authority            crypto.Address
	PendingAuthority     crypto.Address
	FeedSymbol           string
	Description          string
	MaxStalenessSeconds  int64
	MintFeeBps           uint16
	RedeemFeeBps         uint16
	MaxConfidenceBps     uint16
	QuoteValiditySeconds int64
	CpiMultiplier        uint64
	CpiLastUpdated       int64
	CpiMinUpdateInterval int64
	CpiDataSource        string
	Paused               bool
	PauseReason          string
	TotalMintedFiat      uint64
	TotalRedeemedFiat    uint64
	TotalFeesCollected   uint64
	CreatedAt            int64
	LastUpdatedAt        int64
}

// HasPendingAuthority reports whether a handover has been proposed.
func (c *Config) HasPendingAuthority() bool {
	return c != nil && !c.PendingAuthority.IsZero()
}

// InitializeParams configures a new instrument.
type InitializeParams struct {
	FeedSymbol           string
	Description          string
	MaxStalenessSeconds  int64
	MintFeeBps           uint16
	RedeemFeeBps         uint16
	MaxConfidenceBps     uint16
	QuoteValiditySeconds int64
	CpiMultiplier        uint64
	CpiMinUpdateInterval int64
	CpiDataSource        string
}

// Validate checks parameter bounds. Feed existence is checked against the
// registry by the engine.
func (p InitializeParams) Validate() error {
	switch {
	case strings.TrimSpace(p.FeedSymbol) == "":
		return fmt.Errorf("%w: feed symbol required", ErrInvalidParams)
	case len(p.FeedSymbol) > MaxSymbolLength:
		return ErrSymbolTooLong
	case len(p.Description) > MaxDescriptionLength:
		return fmt.Errorf("%w: description exceeds %d bytes", ErrInvalidParams, MaxDescriptionLength)
	case len(p.CpiDataSource) > MaxDataSourceLength:
		return fmt.Errorf("%w: data source exceeds %d bytes", ErrInvalidParams, MaxDataSourceLength)
	case p.MaxStalenessSeconds < 0:
		return fmt.Errorf("%w: staleness bound must not be negative", ErrInvalidParams)
	case p.QuoteValiditySeconds <= 0:
		return fmt.Errorf("%w: quote validity must be positive", ErrInvalidParams)
	case p.CpiMinUpdateInterval < 0:
		return fmt.Errorf("%w: cpi update interval must not be negative", ErrInvalidParams)
	case uint64(p.MintFeeBps) > BasisPoints, uint64(p.RedeemFeeBps) > BasisPoints:
		return fmt.Errorf("%w: fee exceeds %d bps", ErrInvalidParams, BasisPoints)
	case uint64(p.MaxConfidenceBps) > BasisPoints:
		return fmt.Errorf("%w: confidence bound exceeds %d bps", ErrInvalidParams, BasisPoints)
	case p.CpiMultiplier == 0:
		return ErrInvalidCpiMultiplier
	}
	return nil
}

// CpiUpdate carries a new multiplier and its provenance.
type CpiUpdate struct {
	NewMultiplier  uint64
	ReferenceMonth string
	DataSource     string
}

// Direction distinguishes fiat-to-token from token-to-fiat quotes.
type Direction uint8

const (
	DirectionMint Direction = iota
	DirectionRedeem
)

func (d Direction) String() string {
	switch d {
	case DirectionMint:
		return "Mint"
	case DirectionRedeem:
		return "Redeem"
	default:
		return fmt.Sprintf("Direction(%d)", uint8(d))
	}
}

// QuoteRef uniquely identifies a quote for an (instrument, requester, nonce).
type QuoteRef [32]byte

func (r QuoteRef) String() string {
	return hex.EncodeToString(r[:])
}

// ParseQuoteRef decodes a hex quote reference with an optional 0x prefix.
func ParseQuoteRef(raw string) (QuoteRef, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return QuoteRef{}, fmt.Errorf("decode quote ref: %w", err)
	}
	if len(decoded) != len(QuoteRef{}) {
		return QuoteRef{}, fmt.Errorf("quote ref must be 32 bytes, got %d", len(decoded))
	}
	var ref QuoteRef
	copy(ref[:], decoded)
	return ref, nil
}

// Quote is a persisted, single-use conversion record.
type Quote struct {
	Ref           QuoteRef
	Instrument    crypto.Address
	Requester     crypto.Address
	Direction     Direction
	FeedSymbol    string
	InputAmount   uint64
	OutputAmount  uint64
	FeeAmount     uint64
	PriceSnapshot uint64
	ValidUntil    int64
	MinOutput     uint64
	Used          bool
	CreatedAt     int64
	Nonce         uint64
}

// IsExpired reports whether the quote can no longer be consumed at now.
func (q *Quote) IsExpired(now int64) bool {
	return now > q.ValidUntil
}

// QuoteRequest carries the caller-controlled quote inputs. InputAmount is fiat
// cents for mints and token base units for redeems.
type QuoteRequest struct {
	InputAmount uint64
	MinOutput   uint64
	Nonce       uint64
}

// QuoteResult is returned to the requester when a quote is issued.
type QuoteResult struct {
	OutputAmount uint64
	FeeAmount    uint64
	PriceUsed    uint64
	ValidUntil   int64
	QuoteRef     QuoteRef
}

// Settlement is the authoritative outcome of consuming a quote. The token
// ledger executes against these amounts.
type Settlement struct {
	QuoteRef     QuoteRef
	Direction    Direction
	Instrument   crypto.Address
	Requester    crypto.Address
	FeedSymbol   string
	InputAmount  uint64
	OutputAmount uint64
	FeeAmount    uint64
	PriceUsed    uint64
	ExecutedAt   int64
}
