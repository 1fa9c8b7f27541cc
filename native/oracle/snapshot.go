package oracle

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
	"lukechampine.com/blake3"

	"fxoracle/crypto"
)

// Aggregator snapshot layout (v2). The latest confirmed round starts at
// roundBase; all integers are little-endian.
const (
	MinSnapshotSize = 500

	// MaxExactScale is the largest scale rendered exactly. An i128 mantissa
	// has at most 39 digits, so larger scales only add leading zeros.
	MaxExactScale = 38

	roundBase            = 208
	roundTimestampOffset = roundBase + 17
	roundResultOffset    = roundBase + 25
	roundStdDevOffset    = roundBase + 45

	timestampSize   = 8
	mantissaSize    = 16
	scaleSize       = 4
	wideDecimalSize = mantissaSize + scaleSize
)

var (
	twoPow128 = new(big.Int).Lsh(big.NewInt(1), 128)
	maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minInt128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

// FeedSnapshot is the raw account data of an external feed as supplied by the
// caller, together with the account it was read from.
type FeedSnapshot struct {
	Address crypto.FeedAddress
	Data    []byte
}

// WideDecimal is a signed 128-bit mantissa with a base-10 scale.
type WideDecimal struct {
	Mantissa *big.Int
	Scale    uint32
}

// exponent mirrors the aggregator's signed interpretation of the scale.
func (w WideDecimal) exponent() int32 {
	return int32(w.Scale)
}

// Float64 evaluates mantissa / 10^scale.
func (w WideDecimal) Float64() (float64, error) {
	divisor := math.Pow(10, float64(w.exponent()))
	if divisor == 0 {
		return 0, ErrDivisionByZero
	}
	mantissa := big.NewInt(0)
	if w.Mantissa != nil {
		mantissa = w.Mantissa
	}
	m, _ := new(big.Float).SetInt(mantissa).Float64()
	return m / divisor, nil
}

// Decimal returns the exact value for display and audit. ok is false when the
// scale reads as negative or exceeds MaxExactScale, since the exact form of
// such a value can run to billions of digits.
func (w WideDecimal) Decimal() (d decimal.Decimal, ok bool) {
	exp := w.exponent()
	if exp < 0 || exp > MaxExactScale {
		return decimal.Zero, false
	}
	mantissa := big.NewInt(0)
	if w.Mantissa != nil {
		mantissa = w.Mantissa
	}
	return decimal.NewFromBigInt(mantissa, -exp), true
}

// ExternalPrice is the decoded latest round of a feed snapshot.
type ExternalPrice struct {
	Value          float64
	StdDeviation   float64
	RoundTimestamp int64
	Result         WideDecimal
	StdDev         WideDecimal
	Digest         [32]byte
}

// ReadExternalPrice decodes the latest confirmed round from a raw aggregator
// snapshot.
func ReadExternalPrice(buf []byte) (ExternalPrice, error) {
	if len(buf) < MinSnapshotSize {
		return ExternalPrice{}, fmt.Errorf("%w: snapshot is %d bytes, need %d", ErrFeedNotReady, len(buf), MinSnapshotSize)
	}
	ts, err := readInt64(buf, roundTimestampOffset)
	if err != nil {
		return ExternalPrice{}, err
	}
	result, err := readWideDecimal(buf, roundResultOffset)
	if err != nil {
		return ExternalPrice{}, err
	}
	stdDev, err := readWideDecimal(buf, roundStdDevOffset)
	if err != nil {
		return ExternalPrice{}, err
	}
	value, err := result.Float64()
	if err != nil {
		return ExternalPrice{}, fmt.Errorf("decode result: %w", err)
	}
	deviation, err := stdDev.Float64()
	if err != nil {
		return ExternalPrice{}, fmt.Errorf("decode std deviation: %w", err)
	}
	return ExternalPrice{
		Value:          value,
		StdDeviation:   deviation,
		RoundTimestamp: ts,
		Result:         result,
		StdDev:         stdDev,
		Digest:         blake3.Sum256(buf),
	}, nil
}

func readInt64(buf []byte, offset int) (int64, error) {
	if offset < 0 || len(buf) < offset+timestampSize {
		return 0, fmt.Errorf("%w: truncated timestamp at %d", ErrFeedNotReady, offset)
	}
	return int64(binary.LittleEndian.Uint64(buf[offset : offset+timestampSize])), nil
}

func readWideDecimal(buf []byte, offset int) (WideDecimal, error) {
	if offset < 0 || len(buf) < offset+wideDecimalSize {
		return WideDecimal{}, fmt.Errorf("%w: truncated decimal at %d", ErrFeedNotReady, offset)
	}
	return WideDecimal{
		Mantissa: decodeInt128LE(buf[offset : offset+mantissaSize]),
		Scale:    binary.LittleEndian.Uint32(buf[offset+mantissaSize : offset+wideDecimalSize]),
	}, nil
}

// decodeInt128LE reads a two's complement little-endian 128-bit integer.
func decodeInt128LE(raw []byte) *big.Int {
	be := make([]byte, len(raw))
	for i := range raw {
		be[len(raw)-1-i] = raw[i]
	}
	v := new(big.Int).SetBytes(be)
	if len(be) > 0 && be[0]&0x80 != 0 {
		v.Sub(v, twoPow128)
	}
	return v
}

// EncodeWideDecimal writes a wide decimal in the aggregator layout. Operators
// use it to build snapshot fixtures.
func EncodeWideDecimal(dst []byte, mantissa *big.Int, scale uint32) error {
	if len(dst) < wideDecimalSize {
		return fmt.Errorf("wide decimal needs %d bytes", wideDecimalSize)
	}
	v := new(big.Int)
	if mantissa != nil {
		v.Set(mantissa)
	}
	if v.Cmp(minInt128) < 0 || v.Cmp(maxInt128) > 0 {
		return fmt.Errorf("%w: mantissa exceeds 128 bits", ErrMathOverflow)
	}
	if v.Sign() < 0 {
		v.Add(v, twoPow128)
	}
	be := v.FillBytes(make([]byte, mantissaSize))
	for i := 0; i < mantissaSize; i++ {
		dst[i] = be[mantissaSize-1-i]
	}
	binary.LittleEndian.PutUint32(dst[mantissaSize:wideDecimalSize], scale)
	return nil
}

// BuildSnapshot lays out a minimal aggregator snapshot carrying the supplied
// round values.
func BuildSnapshot(roundTimestamp int64, result, stdDev WideDecimal) ([]byte, error) {
	buf := make([]byte, MinSnapshotSize)
	binary.LittleEndian.PutUint64(buf[roundTimestampOffset:], uint64(roundTimestamp))
	if err := EncodeWideDecimal(buf[roundResultOffset:], result.Mantissa, result.Scale); err != nil {
		return nil, err
	}
	if err := EncodeWideDecimal(buf[roundStdDevOffset:], stdDev.Mantissa, stdDev.Scale); err != nil {
		return nil, err
	}
	return buf, nil
}
