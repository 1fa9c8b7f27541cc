package oracle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"

	"go.opentelemetry.io/otel/attribute"

	"fxoracle/core/events"
	"fxoracle/core/state"
	"fxoracle/crypto"
)

// pricing is the outcome of running a snapshot through an instrument's
// validation and conversion pipeline.
type pricing struct {
	feed        *FeedEntry
	priceScaled uint64
	gross       uint64
	net         uint64
	fee         uint64
	digest      [32]byte
}

// priceInput validates the snapshot against cfg and converts input in the
// requested direction. It never mutates state.
func priceInput(tx *state.Tx, cfg *Config, direction Direction, input uint64, snapshot FeedSnapshot, now int64) (*pricing, error) {
	if cfg.Paused {
		return nil, ErrOraclePaused
	}
	if input == 0 {
		return nil, ErrZeroAmount
	}
	reg, err := loadRegistry(tx)
	if err != nil {
		return nil, err
	}
	feed, found := reg.FindFeed(cfg.FeedSymbol)
	if !found {
		return nil, ErrFeedNotFound
	}
	if snapshot.Address != feed.Feed {
		return nil, ErrFeedMismatch
	}
	price, err := ReadExternalPrice(snapshot.Data)
	if err != nil {
		return nil, err
	}
	if !(price.Value > 0) {
		return nil, ErrInvalidPrice
	}
	if err := ValidateStaleness(price.RoundTimestamp, cfg.MaxStalenessSeconds, now); err != nil {
		return nil, err
	}
	priceScaled, err := ScaleToFixed(price.Value)
	if err != nil {
		return nil, err
	}
	confScaled, err := ScaleToFixed(math.Abs(price.StdDeviation))
	if err != nil {
		return nil, err
	}
	if err := ValidateConfidence(priceScaled, confScaled, cfg.MaxConfidenceBps); err != nil {
		return nil, err
	}
	var (
		gross  uint64
		feeBps uint16
	)
	switch direction {
	case DirectionMint:
		gross, err = AmountForFiat(input, priceScaled, feed.FeedType, cfg.CpiMultiplier)
		feeBps = cfg.MintFeeBps
	case DirectionRedeem:
		gross, err = FiatForAmount(input, priceScaled, feed.FeedType, cfg.CpiMultiplier)
		feeBps = cfg.RedeemFeeBps
	default:
		return nil, fmt.Errorf("%w: unknown direction %d", ErrInvalidParams, direction)
	}
	if err != nil {
		return nil, err
	}
	if gross == 0 {
		return nil, ErrZeroOutput
	}
	net, fee, err := ApplyFee(gross, feeBps)
	if err != nil {
		return nil, err
	}
	if net == 0 {
		return nil, ErrZeroOutput
	}
	copied := *feed
	return &pricing{feed: &copied, priceScaled: priceScaled, gross: gross, net: net, fee: fee, digest: price.Digest}, nil
}

// GetMintQuote prices inputFiatCents into token units and persists a quote
// that the requester may consume until its validity window lapses.
func (e *Engine) GetMintQuote(ctx context.Context, requester, instrument crypto.Address, req QuoteRequest, snapshot FeedSnapshot) (*QuoteResult, error) {
	return e.getQuote(ctx, DirectionMint, requester, instrument, req, snapshot)
}

// GetRedeemQuote prices token units into fiat cents and persists a quote.
func (e *Engine) GetRedeemQuote(ctx context.Context, requester, instrument crypto.Address, req QuoteRequest, snapshot FeedSnapshot) (*QuoteResult, error) {
	return e.getQuote(ctx, DirectionRedeem, requester, instrument, req, snapshot)
}

func (e *Engine) getQuote(ctx context.Context, direction Direction, requester, instrument crypto.Address, req QuoteRequest, snapshot FeedSnapshot) (result *QuoteResult, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	_, finish := e.begin(ctx, "quote_"+lowerDirection(direction),
		attribute.String("instrument", instrument.String()),
		attribute.Int64("nonce", int64(req.Nonce)))
	defer func() { finish(err) }()
	if err := e.guard(); err != nil {
		return nil, err
	}
	if requester.IsZero() {
		return nil, fmt.Errorf("%w: requester required", ErrInvalidParams)
	}
	now := e.now()
	var quote *Quote
	var digest [32]byte
	err = e.state.Update(func(tx *state.Tx) error {
		cfg, err := loadConfig(tx, instrument)
		if err != nil {
			return err
		}
		priced, err := priceInput(tx, cfg, direction, req.InputAmount, snapshot, now)
		if err != nil {
			return err
		}
		if err := CheckSlippage(priced.net, req.MinOutput); err != nil {
			return err
		}
		ref := DeriveQuoteRef(instrument, requester, req.Nonce)
		for _, key := range [][]byte{quoteKey(ref), quoteConsumedKey(ref)} {
			taken, err := tx.KVHas(key)
			if err != nil {
				return err
			}
			if taken {
				return ErrQuoteExists
			}
		}
		quote = &Quote{
			Ref:           ref,
			Instrument:    instrument,
			Requester:     requester,
			Direction:     direction,
			FeedSymbol:    cfg.FeedSymbol,
			InputAmount:   req.InputAmount,
			OutputAmount:  priced.net,
			FeeAmount:     priced.fee,
			PriceSnapshot: priced.priceScaled,
			ValidUntil:    saturatingAdd(now, cfg.QuoteValiditySeconds),
			MinOutput:     req.MinOutput,
			CreatedAt:     now,
			Nonce:         req.Nonce,
		}
		digest = priced.digest
		return tx.KVPut(quoteKey(ref), newStoredQuote(quote))
	})
	if err != nil {
		return nil, err
	}
	e.emit(events.QuoteGenerated{
		QuoteRef:       quote.Ref,
		Instrument:     instrument,
		Requester:      requester,
		FeedSymbol:     quote.FeedSymbol,
		Direction:      direction.String(),
		InputAmount:    quote.InputAmount,
		OutputAmount:   quote.OutputAmount,
		FeeAmount:      quote.FeeAmount,
		PriceUsed:      quote.PriceSnapshot,
		ValidUntil:     quote.ValidUntil,
		SnapshotDigest: digest[:],
		Timestamp:      now,
	})
	return &QuoteResult{
		OutputAmount: quote.OutputAmount,
		FeeAmount:    quote.FeeAmount,
		PriceUsed:    quote.PriceSnapshot,
		ValidUntil:   quote.ValidUntil,
		QuoteRef:     quote.Ref,
	}, nil
}

// MintWithOracle consumes a mint quote. The returned settlement is the
// authoritative instruction for the token ledger.
func (e *Engine) MintWithOracle(ctx context.Context, requester crypto.Address, ref QuoteRef) (*Settlement, error) {
	return e.consume(ctx, DirectionMint, requester, ref)
}

// RedeemWithOracle consumes a redeem quote.
func (e *Engine) RedeemWithOracle(ctx context.Context, requester crypto.Address, ref QuoteRef) (*Settlement, error) {
	return e.consume(ctx, DirectionRedeem, requester, ref)
}

// consume is the single linearisation point of the protocol: every check and
// the counter update commit together, or nothing changes.
func (e *Engine) consume(ctx context.Context, direction Direction, requester crypto.Address, ref QuoteRef) (settlement *Settlement, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	_, finish := e.begin(ctx, "consume_"+lowerDirection(direction), attribute.String("quote_ref", ref.String()))
	defer func() {
		if err != nil {
			e.logger.Warn("quote consumption rejected", "quote_ref", ref.String(), "direction", direction.String(), "error", err)
		}
		finish(err)
	}()
	if err := e.guard(); err != nil {
		return nil, err
	}
	now := e.now()
	err = e.state.Update(func(tx *state.Tx) error {
		quote, err := loadQuote(tx, ref)
		if errors.Is(err, ErrQuoteAlreadyUsed) {
			marker, _, markerErr := loadConsumption(tx, ref)
			if markerErr != nil {
				return markerErr
			}
			if marker != nil && (!bytes.Equal(marker.Requester, requester.Bytes()) || Direction(marker.Direction) != direction) {
				return ErrUnauthorized
			}
			return err
		}
		if err != nil {
			return err
		}
		if !quote.Requester.Equal(requester) || quote.Direction != direction {
			return ErrUnauthorized
		}
		if quote.Used {
			return ErrQuoteAlreadyUsed
		}
		cfg, err := loadConfig(tx, quote.Instrument)
		if err != nil {
			return err
		}
		if cfg.Paused {
			return ErrOraclePaused
		}
		if quote.IsExpired(now) {
			return ErrQuoteExpired
		}
		if err := CheckSlippage(quote.OutputAmount, quote.MinOutput); err != nil {
			return err
		}
		switch direction {
		case DirectionMint:
			if cfg.TotalMintedFiat, err = checkedAdd(cfg.TotalMintedFiat, quote.InputAmount); err != nil {
				return err
			}
		case DirectionRedeem:
			if cfg.TotalRedeemedFiat, err = checkedAdd(cfg.TotalRedeemedFiat, quote.OutputAmount); err != nil {
				return err
			}
		}
		if cfg.TotalFeesCollected, err = checkedAdd(cfg.TotalFeesCollected, quote.FeeAmount); err != nil {
			return err
		}
		cfg.LastUpdatedAt = now
		if err := putConfig(tx, cfg); err != nil {
			return err
		}
		if err := tx.KVDelete(quoteKey(ref)); err != nil {
			return err
		}
		marker := &storedConsumption{Direction: uint8(direction), Requester: requester.Bytes(), ConsumedAt: toUnix(now)}
		if err := tx.KVPut(quoteConsumedKey(ref), marker); err != nil {
			return err
		}
		settlement = &Settlement{
			QuoteRef:     ref,
			Direction:    direction,
			Instrument:   quote.Instrument,
			Requester:    requester,
			FeedSymbol:   quote.FeedSymbol,
			InputAmount:  quote.InputAmount,
			OutputAmount: quote.OutputAmount,
			FeeAmount:    quote.FeeAmount,
			PriceUsed:    quote.PriceSnapshot,
			ExecutedAt:   now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.metrics.RecordConsumption(direction.String(), settlement.InputAmount, settlement.FeeAmount)
	e.emit(settlementEvent(settlement))
	return settlement, nil
}

func settlementEvent(s *Settlement) events.Event {
	if s.Direction == DirectionRedeem {
		return events.OracleRedeem{
			QuoteRef:    s.QuoteRef,
			Instrument:  s.Instrument,
			Redeemer:    s.Requester,
			TokenAmount: s.InputAmount,
			FiatAmount:  s.OutputAmount,
			FeeAmount:   s.FeeAmount,
			PriceUsed:   s.PriceUsed,
			FeedSymbol:  s.FeedSymbol,
			Timestamp:   s.ExecutedAt,
		}
	}
	return events.OracleMint{
		QuoteRef:    s.QuoteRef,
		Instrument:  s.Instrument,
		Recipient:   s.Requester,
		FiatAmount:  s.InputAmount,
		TokenAmount: s.OutputAmount,
		FeeAmount:   s.FeeAmount,
		PriceUsed:   s.PriceUsed,
		FeedSymbol:  s.FeedSymbol,
		Timestamp:   s.ExecutedAt,
	}
}

// Quote returns a live (unconsumed) quote.
func (e *Engine) Quote(ctx context.Context, ref QuoteRef) (*Quote, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	var out *Quote
	err := e.state.View(func(tx *state.Tx) error {
		quote, err := loadQuote(tx, ref)
		if err != nil {
			return err
		}
		out = quote
		return nil
	})
	return out, err
}

// ListQuotes returns the stored, unconsumed quotes in reference order. A zero
// instrument lists every instrument. Expired quotes stay listed until
// someone attempts to consume them.
func (e *Engine) ListQuotes(ctx context.Context, instrument crypto.Address) ([]*Quote, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	var out []*Quote
	err := e.state.View(func(tx *state.Tx) error {
		return tx.KVScan(quotePrefix, func(_ []byte, decode func(interface{}) error) error {
			var stored storedQuote
			if err := decode(&stored); err != nil {
				return fmt.Errorf("decode quote: %w", err)
			}
			quote, err := stored.toQuote()
			if err != nil {
				return err
			}
			if !instrument.IsZero() && !quote.Instrument.Equal(instrument) {
				return nil
			}
			out = append(out, quote)
			return nil
		})
	})
	return out, err
}

func loadQuote(tx *state.Tx, ref QuoteRef) (*Quote, error) {
	var stored storedQuote
	ok, err := tx.KVGet(quoteKey(ref), &stored)
	if err != nil {
		return nil, fmt.Errorf("load quote: %w", err)
	}
	if ok {
		return stored.toQuote()
	}
	_, consumed, err := loadConsumption(tx, ref)
	if err != nil {
		return nil, err
	}
	if consumed {
		return nil, ErrQuoteAlreadyUsed
	}
	return nil, ErrQuoteNotFound
}

func loadConsumption(tx *state.Tx, ref QuoteRef) (*storedConsumption, bool, error) {
	var marker storedConsumption
	ok, err := tx.KVGet(quoteConsumedKey(ref), &marker)
	if err != nil {
		return nil, false, fmt.Errorf("load quote consumption: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &marker, true, nil
}

func lowerDirection(d Direction) string {
	if d == DirectionRedeem {
		return "redeem"
	}
	return "mint"
}

func checkedAdd(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrMathOverflow
	}
	return sum, nil
}

func saturatingAdd(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	if b < 0 && a < math.MinInt64-b {
		return math.MinInt64
	}
	return a + b
}
