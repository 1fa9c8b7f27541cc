package oracle

import (
	"context"
	"fmt"

	"fxoracle/core/state"
	"fxoracle/crypto"
)

// QuotePreview is the outcome of pricing without persisting a quote.
type QuotePreview struct {
	Direction    Direction
	InputAmount  uint64
	GrossOutput  uint64
	OutputAmount uint64
	FeeAmount    uint64
	FeeBps       uint16
	PriceUsed    uint64
}

// SimulateMintQuote previews a fiat-to-token conversion from explicit inputs.
func SimulateMintQuote(inputFiatCents, priceScaled uint64, ft FeedType, feeBps uint16, cpiMultiplier uint64) (QuotePreview, error) {
	return simulate(DirectionMint, inputFiatCents, priceScaled, ft, feeBps, cpiMultiplier)
}

// SimulateRedeemQuote previews a token-to-fiat conversion from explicit inputs.
func SimulateRedeemQuote(inputTokens, priceScaled uint64, ft FeedType, feeBps uint16, cpiMultiplier uint64) (QuotePreview, error) {
	return simulate(DirectionRedeem, inputTokens, priceScaled, ft, feeBps, cpiMultiplier)
}

func simulate(direction Direction, input, priceScaled uint64, ft FeedType, feeBps uint16, cpiMultiplier uint64) (QuotePreview, error) {
	if input == 0 {
		return QuotePreview{}, ErrZeroAmount
	}
	if err := ft.Validate(); err != nil {
		return QuotePreview{}, err
	}
	var (
		gross uint64
		err   error
	)
	if direction == DirectionMint {
		gross, err = AmountForFiat(input, priceScaled, ft, cpiMultiplier)
	} else {
		gross, err = FiatForAmount(input, priceScaled, ft, cpiMultiplier)
	}
	if err != nil {
		return QuotePreview{}, err
	}
	net, fee, err := ApplyFee(gross, feeBps)
	if err != nil {
		return QuotePreview{}, err
	}
	return QuotePreview{
		Direction:    direction,
		InputAmount:  input,
		GrossOutput:  gross,
		OutputAmount: net,
		FeeAmount:    fee,
		FeeBps:       feeBps,
		PriceUsed:    priceScaled,
	}, nil
}

// Preview runs the full quote pipeline for instrument against snapshot but
// persists nothing.
func (e *Engine) Preview(ctx context.Context, direction Direction, instrument crypto.Address, input uint64, snapshot FeedSnapshot) (*QuotePreview, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if direction != DirectionMint && direction != DirectionRedeem {
		return nil, fmt.Errorf("%w: unknown direction %d", ErrInvalidParams, direction)
	}
	now := e.now()
	var out *QuotePreview
	err := e.state.View(func(tx *state.Tx) error {
		cfg, err := loadConfig(tx, instrument)
		if err != nil {
			return err
		}
		priced, err := priceInput(tx, cfg, direction, input, snapshot, now)
		if err != nil {
			return err
		}
		feeBps := cfg.MintFeeBps
		if direction == DirectionRedeem {
			feeBps = cfg.RedeemFeeBps
		}
		out = &QuotePreview{
			Direction:    direction,
			InputAmount:  input,
			GrossOutput:  priced.gross,
			OutputAmount: priced.net,
			FeeAmount:    priced.fee,
			FeeBps:       feeBps,
			PriceUsed:    priced.priceScaled,
		}
		return nil
	})
	return out, err
}
