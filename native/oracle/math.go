package oracle

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"
)

const (
	// PriceScale is the fixed-point scale of feed prices (6 decimals).
	PriceScale uint64 = 1_000_000
	// CpiScale is the fixed-point scale of the CPI multiplier.
	CpiScale uint64 = 1_000_000
	// TokenDecimals is the number of decimals of the priced token.
	TokenDecimals = 6
	// TokenScale is 10^TokenDecimals.
	TokenScale uint64 = 1_000_000
	// BasisPoints is the denominator of every bps quantity.
	BasisPoints uint64 = 10_000

	centsPerUnit uint64 = 100
)

// product multiplies the factors in 256-bit space.
func product(factors ...uint64) (*uint256.Int, error) {
	acc := uint256.NewInt(1)
	for _, f := range factors {
		next, overflow := new(uint256.Int).MulOverflow(acc, uint256.NewInt(f))
		if overflow {
			return nil, ErrMathOverflow
		}
		acc = next
	}
	return acc, nil
}

// mulDiv computes floor(prod(num) / prod(den)) and requires the quotient to
// fit in 64 bits.
func mulDiv(num []uint64, den []uint64) (uint64, error) {
	n, err := product(num...)
	if err != nil {
		return 0, err
	}
	d, err := product(den...)
	if err != nil {
		return 0, err
	}
	if d.IsZero() {
		return 0, ErrDivisionByZero
	}
	q := new(uint256.Int).Div(n, d)
	if !q.IsUint64() {
		return 0, ErrMathOverflow
	}
	return q.Uint64(), nil
}

// rescalePrice applies a Custom feed's numerator/denominator to the raw price.
func rescalePrice(priceScaled uint64, ft FeedType) (uint64, error) {
	if ft.Denominator == 0 {
		return 0, ErrDivisionByZero
	}
	adjusted, err := mulDiv([]uint64{priceScaled, ft.Numerator}, []uint64{ft.Denominator})
	if err != nil {
		return 0, fmt.Errorf("rescale custom price: %w", err)
	}
	return adjusted, nil
}

func customBase(ft FeedType) (FeedType, error) {
	switch ft.BaseType {
	case CustomBaseDirect:
		return DirectFeed(), nil
	case CustomBaseInverse:
		return InverseFeed(), nil
	default:
		return FeedType{}, fmt.Errorf("%w: custom feed base type %d", ErrInvalidParams, ft.BaseType)
	}
}

// AmountForFiat converts fiat cents into token base units.
func AmountForFiat(fiatCents, priceScaled uint64, ft FeedType, cpiMultiplier uint64) (uint64, error) {
	if priceScaled == 0 {
		return 0, ErrInvalidPrice
	}
	switch ft.Kind {
	case FeedDirect:
		return mulDiv([]uint64{fiatCents, TokenScale, PriceScale}, []uint64{priceScaled, centsPerUnit})
	case FeedInverse:
		return mulDiv([]uint64{fiatCents, priceScaled, TokenScale}, []uint64{PriceScale, centsPerUnit})
	case FeedCpiIndexed:
		if cpiMultiplier == 0 {
			return 0, ErrInvalidCpiMultiplier
		}
		return mulDiv([]uint64{fiatCents, TokenScale, CpiScale}, []uint64{cpiMultiplier, centsPerUnit})
	case FeedCustom:
		base, err := customBase(ft)
		if err != nil {
			return 0, err
		}
		adjusted, err := rescalePrice(priceScaled, ft)
		if err != nil {
			return 0, err
		}
		return AmountForFiat(fiatCents, adjusted, base, cpiMultiplier)
	default:
		return 0, fmt.Errorf("%w: unknown feed kind %d", ErrInvalidParams, ft.Kind)
	}
}

// FiatForAmount converts token base units into fiat cents. Each branch is the
// algebraic inverse of the matching AmountForFiat branch.
func FiatForAmount(tokenUnits, priceScaled uint64, ft FeedType, cpiMultiplier uint64) (uint64, error) {
	if priceScaled == 0 {
		return 0, ErrInvalidPrice
	}
	switch ft.Kind {
	case FeedDirect:
		return mulDiv([]uint64{tokenUnits, priceScaled, centsPerUnit}, []uint64{TokenScale, PriceScale})
	case FeedInverse:
		return mulDiv([]uint64{tokenUnits, PriceScale, centsPerUnit}, []uint64{TokenScale, priceScaled})
	case FeedCpiIndexed:
		if cpiMultiplier == 0 {
			return 0, ErrInvalidCpiMultiplier
		}
		return mulDiv([]uint64{tokenUnits, cpiMultiplier, centsPerUnit}, []uint64{TokenScale, CpiScale})
	case FeedCustom:
		base, err := customBase(ft)
		if err != nil {
			return 0, err
		}
		adjusted, err := rescalePrice(priceScaled, ft)
		if err != nil {
			return 0, err
		}
		return FiatForAmount(tokenUnits, adjusted, base, cpiMultiplier)
	default:
		return 0, fmt.Errorf("%w: unknown feed kind %d", ErrInvalidParams, ft.Kind)
	}
}

// ApplyFee splits gross into (net, fee) where fee = floor(gross*feeBps/10000).
func ApplyFee(gross uint64, feeBps uint16) (net, fee uint64, err error) {
	if uint64(feeBps) > BasisPoints {
		return 0, 0, fmt.Errorf("%w: fee %d bps exceeds %d", ErrInvalidParams, feeBps, BasisPoints)
	}
	fee, err = mulDiv([]uint64{gross, uint64(feeBps)}, []uint64{BasisPoints})
	if err != nil {
		return 0, 0, err
	}
	return gross - fee, fee, nil
}

// ValidateStaleness rejects snapshots older than maxStalenessSeconds. The age
// is computed with saturating subtraction.
func ValidateStaleness(lastUpdated, maxStalenessSeconds, now int64) error {
	if saturatingSub(now, lastUpdated) > maxStalenessSeconds {
		return ErrPriceTooStale
	}
	return nil
}

// ValidateConfidence rejects prices whose confidence band, expressed in bps of
// the price, exceeds maxConfidenceBps. A zero bound disables the check.
func ValidateConfidence(priceScaled, confidenceScaled uint64, maxConfidenceBps uint16) error {
	if maxConfidenceBps == 0 {
		return nil
	}
	if priceScaled == 0 {
		return ErrInvalidPrice
	}
	confBps, err := mulDiv([]uint64{confidenceScaled, BasisPoints}, []uint64{priceScaled})
	if err != nil {
		return err
	}
	if confBps > uint64(maxConfidenceBps) {
		return ErrConfidenceTooWide
	}
	return nil
}

// CheckSlippage enforces the requester's minimum output.
func CheckSlippage(output, minOutput uint64) error {
	if output < minOutput {
		return ErrSlippageExceeded
	}
	return nil
}

// ScaleToFixed converts a decoded feed value into PriceScale fixed point,
// truncating toward zero. Values beyond 64 bits fail rather than saturate.
func ScaleToFixed(value float64) (uint64, error) {
	if math.IsNaN(value) || value < 0 {
		return 0, ErrInvalidPrice
	}
	scaled := math.Trunc(value * float64(PriceScale))
	if math.IsInf(scaled, 1) || scaled >= math.Ldexp(1, 64) {
		return 0, ErrMathOverflow
	}
	return uint64(scaled), nil
}

func saturatingSub(a, b int64) int64 {
	diff := a - b
	if b < 0 && diff < a {
		return math.MaxInt64
	}
	if b > 0 && diff > a {
		return math.MinInt64
	}
	return diff
}
