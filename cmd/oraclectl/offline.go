package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fxoracle/crypto"
	"fxoracle/native/oracle"
)

var snapshotNow = time.Now

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

type decodeReport struct {
	Value          float64 `json:"value"`
	ValueExact     string  `json:"valueExact"`
	StdDeviation   float64 `json:"stdDeviation"`
	StdDevExact    string  `json:"stdDeviationExact"`
	RoundTimestamp int64   `json:"roundTimestamp"`
	PriceScaled    uint64  `json:"priceScaled"`
	Digest         string  `json:"digest"`
}

func runDecode(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("decode", stderr)
	path := fs.String("file", "", "path to a raw feed snapshot")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(*path) == "" {
		fmt.Fprintln(stderr, "Error: --file is required")
		return 1
	}
	data, err := os.ReadFile(*path)
	if err != nil {
		fmt.Fprintf(stderr, "failed to read snapshot: %v\n", err)
		return 1
	}
	price, err := oracle.ReadExternalPrice(data)
	if err != nil {
		return reportError(stderr, "decode snapshot", err)
	}
	report := decodeReport{
		Value:          price.Value,
		ValueExact:     exactString(price.Result, price.Value),
		StdDeviation:   price.StdDeviation,
		StdDevExact:    exactString(price.StdDev, price.StdDeviation),
		RoundTimestamp: price.RoundTimestamp,
		Digest:         fmt.Sprintf("%x", price.Digest),
	}
	if scaled, err := oracle.ScaleToFixed(price.Value); err == nil {
		report.PriceScaled = scaled
	}
	return writeJSON(stdout, stderr, report)
}

// exactString renders w exactly when its scale allows it and falls back to the
// decoded float otherwise.
func exactString(w oracle.WideDecimal, approx float64) string {
	if d, ok := w.Decimal(); ok {
		return d.String()
	}
	return strconv.FormatFloat(approx, 'g', -1, 64)
}

// wideDecimalFromString converts a decimal literal into mantissa and scale.
func wideDecimalFromString(raw string) (oracle.WideDecimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return oracle.WideDecimal{}, err
	}
	exp := d.Exponent()
	mantissa := new(big.Int).Set(d.Coefficient())
	if exp >= 0 {
		mantissa.Mul(mantissa, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil))
		return oracle.WideDecimal{Mantissa: mantissa}, nil
	}
	return oracle.WideDecimal{Mantissa: mantissa, Scale: uint32(-exp)}, nil
}

func runSnapshot(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("snapshot", stderr)
	var (
		out       string
		price     string
		stdDev    string
		timestamp int64
	)
	fs.StringVar(&out, "out", "", "output file")
	fs.StringVar(&price, "price", "", "latest round result, e.g. 1.08")
	fs.StringVar(&stdDev, "std", "0", "latest round standard deviation")
	fs.Int64Var(&timestamp, "timestamp", 0, "round timestamp (unix seconds, defaults to now)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if out == "" || price == "" {
		fmt.Fprintln(stderr, "Error: --out and --price are required")
		return 1
	}
	result, err := wideDecimalFromString(price)
	if err != nil {
		fmt.Fprintf(stderr, "invalid price: %v\n", err)
		return 1
	}
	deviation, err := wideDecimalFromString(stdDev)
	if err != nil {
		fmt.Fprintf(stderr, "invalid std: %v\n", err)
		return 1
	}
	if timestamp == 0 {
		timestamp = snapshotNow().Unix()
	}
	data, err := oracle.BuildSnapshot(timestamp, result, deviation)
	if err != nil {
		return reportError(stderr, "build snapshot", err)
	}
	if err := os.WriteFile(out, data, 0o600); err != nil {
		fmt.Fprintf(stderr, "failed to write snapshot: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "wrote %d bytes to %s\n", len(data), out)
	return 0
}

func runSimulate(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("simulate", stderr)
	var (
		direction string
		amount    uint64
		price     uint64
		feedType  string
		feeBps    uint
		cpi       uint64
	)
	fs.StringVar(&direction, "direction", "mint", "mint or redeem")
	fs.Uint64Var(&amount, "amount", 0, "input amount (fiat cents for mint, token units for redeem)")
	fs.Uint64Var(&price, "price", 0, "price scaled by 1e6")
	fs.StringVar(&feedType, "feed-type", "direct", "direct, inverse, cpi or custom:<num>/<den>:<direct|inverse>")
	fs.UintVar(&feeBps, "fee-bps", 0, "fee in basis points")
	fs.Uint64Var(&cpi, "cpi", oracle.CpiScale, "CPI multiplier scaled by 1e6")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	ft, err := oracle.ParseFeedType(feedType)
	if err != nil {
		return reportError(stderr, "parse feed type", err)
	}
	if feeBps > uint(oracle.BasisPoints) {
		fmt.Fprintf(stderr, "Error: --fee-bps must be at most %d\n", oracle.BasisPoints)
		return 1
	}
	var preview oracle.QuotePreview
	switch strings.ToLower(direction) {
	case "mint":
		preview, err = oracle.SimulateMintQuote(amount, price, ft, uint16(feeBps), cpi)
	case "redeem":
		preview, err = oracle.SimulateRedeemQuote(amount, price, ft, uint16(feeBps), cpi)
	default:
		fmt.Fprintf(stderr, "Error: unknown direction %q\n", direction)
		return 1
	}
	if err != nil {
		return reportError(stderr, "simulate", err)
	}
	return writeJSON(stdout, stderr, previewView(preview))
}

type previewOutput struct {
	Direction    string `json:"direction"`
	InputAmount  uint64 `json:"inputAmount"`
	GrossOutput  uint64 `json:"grossOutput"`
	OutputAmount uint64 `json:"outputAmount"`
	FeeAmount    uint64 `json:"feeAmount"`
	FeeBps       uint16 `json:"feeBps"`
	PriceUsed    uint64 `json:"priceUsed"`
}

func previewView(p oracle.QuotePreview) previewOutput {
	return previewOutput{
		Direction:    p.Direction.String(),
		InputAmount:  p.InputAmount,
		GrossOutput:  p.GrossOutput,
		OutputAmount: p.OutputAmount,
		FeeAmount:    p.FeeAmount,
		FeeBps:       p.FeeBps,
		PriceUsed:    p.PriceUsed,
	}
}

func runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("keygen", stderr)
	kind := fs.String("kind", "account", "account or instrument")
	fromKey := fs.String("from-key", "", "hex private key to derive from instead of generating one")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	prefix := crypto.AccountPrefix
	switch strings.ToLower(*kind) {
	case "account":
	case "instrument":
		prefix = crypto.InstrumentPrefix
	default:
		fmt.Fprintf(stderr, "Error: unknown kind %q\n", *kind)
		return 1
	}
	var (
		key *crypto.PrivateKey
		err error
	)
	if raw := strings.TrimPrefix(strings.TrimSpace(*fromKey), "0x"); raw != "" {
		decoded, decodeErr := hex.DecodeString(raw)
		if decodeErr != nil {
			fmt.Fprintf(stderr, "Error: --from-key: %v\n", decodeErr)
			return 1
		}
		key, err = crypto.PrivateKeyFromBytes(decoded)
	} else {
		key, err = crypto.GeneratePrivateKey()
	}
	if err != nil {
		fmt.Fprintf(stderr, "failed to load key: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, key.PubKey().AddressWithPrefix(prefix).String())
	return 0
}

func reportError(stderr io.Writer, action string, err error) int {
	class := oracle.Classify(err)
	fmt.Fprintf(stderr, "%s failed [%s/%d]: %v\n", action, class.Kind, class.Status, err)
	return 1
}
