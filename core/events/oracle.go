package events

import (
	"encoding/hex"
	"strconv"
	"strings"

	"fxoracle/core/types"
	"fxoracle/crypto"
)

const (
	// TypeOracleInitialized is emitted once an instrument's oracle configuration is created.
	TypeOracleInitialized = "oracle.initialized"
	// TypeFeedRegistered is emitted when a feed is appended to the registry.
	TypeFeedRegistered = "oracle.feed_registered"
	// TypeFeedDeactivated is emitted when a registry entry is soft-deactivated.
	TypeFeedDeactivated = "oracle.feed_deactivated"
	// TypeQuoteGenerated is emitted for every persisted quote.
	TypeQuoteGenerated = "oracle.quote_generated"
	// TypeOracleMint is emitted when a mint quote is consumed. Ledger
	// collaborators execute the mint against the amounts it carries.
	TypeOracleMint = "oracle.mint"
	// TypeOracleRedeem is emitted when a redeem quote is consumed.
	TypeOracleRedeem = "oracle.redeem"
	// TypeCpiMultiplierUpdated records a purchasing-power multiplier change.
	TypeCpiMultiplierUpdated = "oracle.cpi_updated"
	// TypeOraclePauseChanged records a pause or unpause.
	TypeOraclePauseChanged = "oracle.pause_changed"
	// TypeAuthorityTransferProposed records the first step of an authority handover.
	TypeAuthorityTransferProposed = "oracle.authority_proposed"
	// TypeAuthorityTransferred records a completed authority handover.
	TypeAuthorityTransferred = "oracle.authority_transferred"
)

// OracleInitialized announces a new instrument configuration.
type OracleInitialized struct {
	Instrument   crypto.Address
	Authority    crypto.Address
	FeedSymbol   string
	MintFeeBps   uint16
	RedeemFeeBps uint16
	Timestamp    int64
}

func (OracleInitialized) EventType() string { return TypeOracleInitialized }

func (e OracleInitialized) Event() *types.Event {
	return &types.Event{
		Type: TypeOracleInitialized,
		Attributes: map[string]string{
			"instrument":   e.Instrument.String(),
			"authority":    e.Authority.String(),
			"feedSymbol":   normalizeSymbol(e.FeedSymbol),
			"mintFeeBps":   strconv.Itoa(int(e.MintFeeBps)),
			"redeemFeeBps": strconv.Itoa(int(e.RedeemFeeBps)),
			"timestamp":    formatInt(e.Timestamp),
		},
	}
}

// FeedRegistered announces a registry append.
type FeedRegistered struct {
	Symbol        string
	Feed          crypto.FeedAddress
	FeedType      string
	BaseCurrency  string
	QuoteCurrency string
	RegisteredBy  crypto.Address
	Timestamp     int64
}

func (FeedRegistered) EventType() string { return TypeFeedRegistered }

func (e FeedRegistered) Event() *types.Event {
	return &types.Event{
		Type: TypeFeedRegistered,
		Attributes: map[string]string{
			"symbol":        normalizeSymbol(e.Symbol),
			"feed":          e.Feed.String(),
			"feedType":      e.FeedType,
			"baseCurrency":  strings.TrimSpace(e.BaseCurrency),
			"quoteCurrency": strings.TrimSpace(e.QuoteCurrency),
			"registeredBy":  e.RegisteredBy.String(),
			"timestamp":     formatInt(e.Timestamp),
		},
	}
}

// FeedDeactivated announces that a symbol no longer resolves.
type FeedDeactivated struct {
	Symbol    string
	Feed      crypto.FeedAddress
	By        crypto.Address
	Timestamp int64
}

func (FeedDeactivated) EventType() string { return TypeFeedDeactivated }

func (e FeedDeactivated) Event() *types.Event {
	return &types.Event{
		Type: TypeFeedDeactivated,
		Attributes: map[string]string{
			"symbol":    normalizeSymbol(e.Symbol),
			"feed":      e.Feed.String(),
			"by":        e.By.String(),
			"timestamp": formatInt(e.Timestamp),
		},
	}
}

// QuoteGenerated carries the frozen terms of a freshly issued quote.
type QuoteGenerated struct {
	QuoteRef       [32]byte
	Instrument     crypto.Address
	Requester      crypto.Address
	FeedSymbol     string
	Direction      string
	InputAmount    uint64
	OutputAmount   uint64
	FeeAmount      uint64
	PriceUsed      uint64
	ValidUntil     int64
	SnapshotDigest []byte
	Timestamp      int64
}

func (QuoteGenerated) EventType() string { return TypeQuoteGenerated }

func (e QuoteGenerated) Event() *types.Event {
	attrs := map[string]string{
		"quoteRef":     hex.EncodeToString(e.QuoteRef[:]),
		"instrument":   e.Instrument.String(),
		"requester":    e.Requester.String(),
		"feedSymbol":   normalizeSymbol(e.FeedSymbol),
		"direction":    e.Direction,
		"inputAmount":  formatUint(e.InputAmount),
		"outputAmount": formatUint(e.OutputAmount),
		"feeAmount":    formatUint(e.FeeAmount),
		"priceUsed":    formatUint(e.PriceUsed),
		"validUntil":   formatInt(e.ValidUntil),
		"timestamp":    formatInt(e.Timestamp),
	}
	if len(e.SnapshotDigest) > 0 {
		attrs["snapshotDigest"] = hex.EncodeToString(e.SnapshotDigest)
	}
	return &types.Event{Type: TypeQuoteGenerated, Attributes: attrs}
}

// OracleMint is the authoritative record of a consumed mint quote.
type OracleMint struct {
	QuoteRef    [32]byte
	Instrument  crypto.Address
	Recipient   crypto.Address
	FiatAmount  uint64
	TokenAmount uint64
	FeeAmount   uint64
	PriceUsed   uint64
	FeedSymbol  string
	Timestamp   int64
}

func (OracleMint) EventType() string { return TypeOracleMint }

func (e OracleMint) Event() *types.Event {
	return &types.Event{
		Type: TypeOracleMint,
		Attributes: map[string]string{
			"quoteRef":    hex.EncodeToString(e.QuoteRef[:]),
			"instrument":  e.Instrument.String(),
			"recipient":   e.Recipient.String(),
			"fiatAmount":  formatUint(e.FiatAmount),
			"tokenAmount": formatUint(e.TokenAmount),
			"feeAmount":   formatUint(e.FeeAmount),
			"priceUsed":   formatUint(e.PriceUsed),
			"feedSymbol":  normalizeSymbol(e.FeedSymbol),
			"timestamp":   formatInt(e.Timestamp),
		},
	}
}

// OracleRedeem is the authoritative record of a consumed redeem quote.
type OracleRedeem struct {
	QuoteRef    [32]byte
	Instrument  crypto.Address
	Redeemer    crypto.Address
	TokenAmount uint64
	FiatAmount  uint64
	FeeAmount   uint64
	PriceUsed   uint64
	FeedSymbol  string
	Timestamp   int64
}

func (OracleRedeem) EventType() string { return TypeOracleRedeem }

func (e OracleRedeem) Event() *types.Event {
	return &types.Event{
		Type: TypeOracleRedeem,
		Attributes: map[string]string{
			"quoteRef":    hex.EncodeToString(e.QuoteRef[:]),
			"instrument":  e.Instrument.String(),
			"redeemer":    e.Redeemer.String(),
			"tokenAmount": formatUint(e.TokenAmount),
			"fiatAmount":  formatUint(e.FiatAmount),
			"feeAmount":   formatUint(e.FeeAmount),
			"priceUsed":   formatUint(e.PriceUsed),
			"feedSymbol":  normalizeSymbol(e.FeedSymbol),
			"timestamp":   formatInt(e.Timestamp),
		},
	}
}

// CpiMultiplierUpdated records multiplier provenance for audit.
type CpiMultiplierUpdated struct {
	Instrument     crypto.Address
	OldMultiplier  uint64
	NewMultiplier  uint64
	ReferenceMonth string
	DataSource     string
	UpdatedBy      crypto.Address
	Timestamp      int64
}

func (CpiMultiplierUpdated) EventType() string { return TypeCpiMultiplierUpdated }

func (e CpiMultiplierUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeCpiMultiplierUpdated,
		Attributes: map[string]string{
			"instrument":     e.Instrument.String(),
			"oldMultiplier":  formatUint(e.OldMultiplier),
			"newMultiplier":  formatUint(e.NewMultiplier),
			"referenceMonth": strings.TrimSpace(e.ReferenceMonth),
			"dataSource":     strings.TrimSpace(e.DataSource),
			"updatedBy":      e.UpdatedBy.String(),
			"timestamp":      formatInt(e.Timestamp),
		},
	}
}

// OraclePauseChanged records a pause flag flip.
type OraclePauseChanged struct {
	Instrument crypto.Address
	Paused     bool
	Reason     string
	By         crypto.Address
	Timestamp  int64
}

func (OraclePauseChanged) EventType() string { return TypeOraclePauseChanged }

func (e OraclePauseChanged) Event() *types.Event {
	return &types.Event{
		Type: TypeOraclePauseChanged,
		Attributes: map[string]string{
			"instrument": e.Instrument.String(),
			"paused":     strconv.FormatBool(e.Paused),
			"reason":     strings.TrimSpace(e.Reason),
			"by":         e.By.String(),
			"timestamp":  formatInt(e.Timestamp),
		},
	}
}

// AuthorityTransferProposed records the nominated successor.
type AuthorityTransferProposed struct {
	Instrument crypto.Address
	Current    crypto.Address
	Proposed   crypto.Address
	Timestamp  int64
}

func (AuthorityTransferProposed) EventType() string { return TypeAuthorityTransferProposed }

func (e AuthorityTransferProposed) Event() *types.Event {
	return &types.Event{
		Type: TypeAuthorityTransferProposed,
		Attributes: map[string]string{
			"instrument": e.Instrument.String(),
			"current":    e.Current.String(),
			"proposed":   e.Proposed.String(),
			"timestamp":  formatInt(e.Timestamp),
		},
	}
}

// AuthorityTransferred records the completed handover.
type AuthorityTransferred struct {
	Instrument crypto.Address
	From       crypto.Address
	To         crypto.Address
	Timestamp  int64
}

func (AuthorityTransferred) EventType() string { return TypeAuthorityTransferred }

func (e AuthorityTransferred) Event() *types.Event {
	return &types.Event{
		Type: TypeAuthorityTransferred,
		Attributes: map[string]string{
			"instrument": e.Instrument.String(),
			"from":       e.From.String(),
			"to":         e.To.String(),
			"timestamp":  formatInt(e.Timestamp),
		},
	}
}
