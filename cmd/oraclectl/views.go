package main

import (
	"time"

	"fxoracle/indexer"
	"fxoracle/native/oracle"
)

type feedView struct {
	Symbol        string `json:"symbol"`
	Feed          string `json:"feed"`
	FeedType      string `json:"feedType"`
	UsesCpi       bool   `json:"usesCpi"`
	BaseCurrency  string `json:"baseCurrency"`
	QuoteCurrency string `json:"quoteCurrency"`
	Decimals      uint8  `json:"decimals"`
	Active        bool   `json:"active"`
	RegisteredAt  int64  `json:"registeredAt"`
	RegisteredBy  string `json:"registeredBy"`
}

func newFeedView(entry oracle.FeedEntry) feedView {
	return feedView{
		Symbol:        entry.Symbol,
		Feed:          entry.Feed.String(),
		FeedType:      entry.FeedType.String(),
		UsesCpi:       entry.FeedType.UsesCpi(),
		BaseCurrency:  entry.BaseCurrency,
		QuoteCurrency: entry.QuoteCurrency,
		Decimals:      entry.Decimals,
		Active:        entry.Active,
		RegisteredAt:  entry.RegisteredAt,
		RegisteredBy:  entry.RegisteredBy.String(),
	}
}

type configView struct {
	Version              uint8  `json:"version"`
	Instrument           string `json:"instrument"`
	Authority            string `json:"authority"`
	PendingAuthority     string `json:"pendingAuthority,omitempty"`
	FeedSymbol           string `json:"feedSymbol"`
	Description          string `json:"description,omitempty"`
	MaxStalenessSeconds  int64  `json:"maxStalenessSeconds"`
	MintFeeBps           uint16 `json:"mintFeeBps"`
	RedeemFeeBps         uint16 `json:"redeemFeeBps"`
	MaxConfidenceBps     uint16 `json:"maxConfidenceBps"`
	QuoteValiditySeconds int64  `json:"quoteValiditySeconds"`
	CpiMultiplier        uint64 `json:"cpiMultiplier"`
	CpiLastUpdated       int64  `json:"cpiLastUpdated"`
	CpiMinUpdateInterval int64  `json:"cpiMinUpdateInterval"`
	CpiDataSource        string `json:"cpiDataSource,omitempty"`
	Paused               bool   `json:"paused"`
	PauseReason          string `json:"pauseReason,omitempty"`
	TotalMintedFiat      uint64 `json:"totalMintedFiat"`
	TotalRedeemedFiat    uint64 `json:"totalRedeemedFiat"`
	TotalFeesCollected   uint64 `json:"totalFeesCollected"`
	CreatedAt            int64  `json:"createdAt"`
	LastUpdatedAt        int64  `json:"lastUpdatedAt"`
}

func newConfigView(cfg *oracle.Config) configView {
	return configView{
		Version:              cfg.Version,
		Instrument:           cfg.Instrument.String(),
		Authority:            cfg.Authority.String(),
		PendingAuthority:     cfg.PendingAuthority.String(),
		FeedSymbol:           cfg.FeedSymbol,
		Description:          cfg.Description,
		MaxStalenessSeconds:  cfg.MaxStalenessSeconds,
		MintFeeBps:           cfg.MintFeeBps,
		RedeemFeeBps:         cfg.RedeemFeeBps,
		MaxConfidenceBps:     cfg.MaxConfidenceBps,
		QuoteValiditySeconds: cfg.QuoteValiditySeconds,
		CpiMultiplier:        cfg.CpiMultiplier,
		CpiLastUpdated:       cfg.CpiLastUpdated,
		CpiMinUpdateInterval: cfg.CpiMinUpdateInterval,
		CpiDataSource:        cfg.CpiDataSource,
		Paused:               cfg.Paused,
		PauseReason:          cfg.PauseReason,
		TotalMintedFiat:      cfg.TotalMintedFiat,
		TotalRedeemedFiat:    cfg.TotalRedeemedFiat,
		TotalFeesCollected:   cfg.TotalFeesCollected,
		CreatedAt:            cfg.CreatedAt,
		LastUpdatedAt:        cfg.LastUpdatedAt,
	}
}

type quoteView struct {
	QuoteRef     string `json:"quoteRef"`
	OutputAmount uint64 `json:"outputAmount"`
	FeeAmount    uint64 `json:"feeAmount"`
	PriceUsed    uint64 `json:"priceUsed"`
	ValidUntil   int64  `json:"validUntil"`
}

func newQuoteView(res *oracle.QuoteResult) quoteView {
	return quoteView{
		QuoteRef:     res.QuoteRef.String(),
		OutputAmount: res.OutputAmount,
		FeeAmount:    res.FeeAmount,
		PriceUsed:    res.PriceUsed,
		ValidUntil:   res.ValidUntil,
	}
}

type pendingQuoteView struct {
	QuoteRef     string `json:"quoteRef"`
	Direction    string `json:"direction"`
	Instrument   string `json:"instrument"`
	Requester    string `json:"requester"`
	InputAmount  uint64 `json:"inputAmount"`
	OutputAmount uint64 `json:"outputAmount"`
	ValidUntil   int64  `json:"validUntil"`
	Expired      bool   `json:"expired"`
}

func newPendingQuoteView(q *oracle.Quote, now int64) pendingQuoteView {
	return pendingQuoteView{
		QuoteRef:     q.Ref.String(),
		Direction:    q.Direction.String(),
		Instrument:   q.Instrument.String(),
		Requester:    q.Requester.String(),
		InputAmount:  q.InputAmount,
		OutputAmount: q.OutputAmount,
		ValidUntil:   q.ValidUntil,
		Expired:      q.IsExpired(now),
	}
}

type settlementView struct {
	QuoteRef     string `json:"quoteRef"`
	Direction    string `json:"direction"`
	Instrument   string `json:"instrument"`
	Requester    string `json:"requester"`
	FeedSymbol   string `json:"feedSymbol"`
	InputAmount  uint64 `json:"inputAmount"`
	OutputAmount uint64 `json:"outputAmount"`
	FeeAmount    uint64 `json:"feeAmount"`
	PriceUsed    uint64 `json:"priceUsed"`
	ExecutedAt   int64  `json:"executedAt"`
}

func newSettlementView(s *oracle.Settlement) settlementView {
	return settlementView{
		QuoteRef:     s.QuoteRef.String(),
		Direction:    s.Direction.String(),
		Instrument:   s.Instrument.String(),
		Requester:    s.Requester.String(),
		FeedSymbol:   s.FeedSymbol,
		InputAmount:  s.InputAmount,
		OutputAmount: s.OutputAmount,
		FeeAmount:    s.FeeAmount,
		PriceUsed:    s.PriceUsed,
		ExecutedAt:   s.ExecutedAt,
	}
}

type journalView struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Instrument string            `json:"instrument,omitempty"`
	QuoteRef   string            `json:"quoteRef,omitempty"`
	EmittedAt  string            `json:"emittedAt"`
	Attributes map[string]string `json:"attributes"`
}

func newJournalView(rec indexer.EventRecord) journalView {
	attrs, err := rec.DecodeAttributes()
	if err != nil {
		attrs = map[string]string{"raw": rec.Attributes}
	}
	return journalView{
		ID:         rec.ID.String(),
		Type:       rec.Type,
		Instrument: rec.Instrument,
		QuoteRef:   rec.QuoteRef,
		EmittedAt:  rec.EmittedAt.UTC().Format(time.RFC3339),
		Attributes: attrs,
	}
}
