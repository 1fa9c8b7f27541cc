package oracle

import (
	"fmt"
	"strconv"
	"strings"
)

// FeedKind enumerates the closed set of feed interpretation modes.
type FeedKind uint8

const (
	// FeedDirect prices are quote-currency per one base-currency unit.
	FeedDirect FeedKind = iota
	// FeedInverse prices are base-currency units per one quote-currency unit.
	FeedInverse
	// FeedCpiIndexed ignores the live price and tracks the CPI multiplier.
	FeedCpiIndexed
	// FeedCustom rescales the live price before delegating to Direct or Inverse.
	FeedCustom
)

// Custom base types select the branch a rescaled price is delegated to.
const (
	CustomBaseDirect  uint8 = 0
	CustomBaseInverse uint8 = 1
)

// FeedType describes how a feed's raw price relates to token value. The
// rescaling fields are only meaningful for FeedCustom.
type FeedType struct {
	Kind        FeedKind
	Numerator   uint64
	Denominator uint64
	BaseType    uint8
}

func DirectFeed() FeedType     { return FeedType{Kind: FeedDirect} }
func InverseFeed() FeedType    { return FeedType{Kind: FeedInverse} }
func CpiIndexedFeed() FeedType { return FeedType{Kind: FeedCpiIndexed} }

// CustomFeed rescales the price by numerator/denominator and then applies the
// Direct (base 0) or Inverse (base 1) branch.
func CustomFeed(numerator, denominator uint64, baseType uint8) FeedType {
	return FeedType{Kind: FeedCustom, Numerator: numerator, Denominator: denominator, BaseType: baseType}
}

// Validate checks the structural invariants of the variant.
func (f FeedType) Validate() error {
	switch f.Kind {
	case FeedDirect, FeedInverse, FeedCpiIndexed:
		return nil
	case FeedCustom:
		if f.Denominator == 0 {
			return fmt.Errorf("%w: custom feed denominator must be nonzero", ErrDivisionByZero)
		}
		if f.BaseType != CustomBaseDirect && f.BaseType != CustomBaseInverse {
			return fmt.Errorf("%w: custom feed base type %d", ErrInvalidParams, f.BaseType)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown feed kind %d", ErrInvalidParams, f.Kind)
	}
}

// UsesCpi reports whether pricing depends on the CPI multiplier.
func (f FeedType) UsesCpi() bool {
	return f.Kind == FeedCpiIndexed
}

func (f FeedType) String() string {
	switch f.Kind {
	case FeedDirect:
		return "Direct"
	case FeedInverse:
		return "Inverse"
	case FeedCpiIndexed:
		return "CpiIndexed"
	case FeedCustom:
		base := "direct"
		if f.BaseType == CustomBaseInverse {
			base = "inverse"
		}
		return fmt.Sprintf("Custom(%d/%d,%s)", f.Numerator, f.Denominator, base)
	default:
		return fmt.Sprintf("Unknown(%d)", f.Kind)
	}
}

// ParseFeedType accepts direct, inverse, cpi and custom:<num>/<den>:<direct|inverse>.
func ParseFeedType(raw string) (FeedType, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "direct":
		return DirectFeed(), nil
	case "inverse":
		return InverseFeed(), nil
	case "cpi", "cpiindexed", "cpi_indexed":
		return CpiIndexedFeed(), nil
	}
	rest, ok := strings.CutPrefix(value, "custom:")
	if !ok {
		return FeedType{}, fmt.Errorf("%w: unknown feed type %q", ErrInvalidParams, raw)
	}
	ratio, base, ok := strings.Cut(rest, ":")
	if !ok {
		return FeedType{}, fmt.Errorf("%w: custom feed requires a base branch", ErrInvalidParams)
	}
	numRaw, denRaw, ok := strings.Cut(ratio, "/")
	if !ok {
		return FeedType{}, fmt.Errorf("%w: custom feed ratio must be num/den", ErrInvalidParams)
	}
	num, err := strconv.ParseUint(numRaw, 10, 64)
	if err != nil {
		return FeedType{}, fmt.Errorf("%w: custom numerator: %v", ErrInvalidParams, err)
	}
	den, err := strconv.ParseUint(denRaw, 10, 64)
	if err != nil {
		return FeedType{}, fmt.Errorf("%w: custom denominator: %v", ErrInvalidParams, err)
	}
	var baseType uint8
	switch base {
	case "direct", "0":
		baseType = CustomBaseDirect
	case "inverse", "1":
		baseType = CustomBaseInverse
	default:
		return FeedType{}, fmt.Errorf("%w: custom base %q", ErrInvalidParams, base)
	}
	ft := CustomFeed(num, den, baseType)
	if err := ft.Validate(); err != nil {
		return FeedType{}, err
	}
	return ft, nil
}
