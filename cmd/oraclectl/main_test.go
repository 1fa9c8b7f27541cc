package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fxoracle/crypto"
	"fxoracle/native/oracle"
)

const fixedUnix = 1_700_000_000

func fixClock(t *testing.T) {
	t.Helper()
	originalEngine, originalSnapshot := engineNow, snapshotNow
	engineNow = func() time.Time { return time.Unix(fixedUnix, 0) }
	snapshotNow = engineNow
	t.Cleanup(func() {
		engineNow = originalEngine
		snapshotNow = originalSnapshot
	})
}

func runCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func TestRunArgValidation(t *testing.T) {
	cases := []struct {
		name       string
		args       []string
		wantExit   int
		wantStderr string
	}{
		{name: "usage", args: nil, wantExit: 1, wantStderr: "Usage: oraclectl"},
		{name: "unknown", args: []string{"bogus"}, wantExit: 1, wantStderr: "Unknown command: bogus"},
		{name: "decode_missing_file", args: []string{"decode"}, wantExit: 1, wantStderr: "--file is required"},
		{name: "snapshot_missing_price", args: []string{"snapshot", "--out", "x.bin"}, wantExit: 1, wantStderr: "--out and --price are required"},
		{name: "simulate_bad_direction", args: []string{"simulate", "--direction", "sideways", "--amount", "1", "--price", "1"}, wantExit: 1, wantStderr: "unknown direction"},
		{name: "simulate_zero_amount", args: []string{"simulate", "--price", "1000000"}, wantExit: 1, wantStderr: "amount must be positive"},
		{name: "simulate_fee_too_high", args: []string{"simulate", "--amount", "1", "--price", "1", "--fee-bps", "10001"}, wantExit: 1, wantStderr: "--fee-bps"},
		{name: "keygen_bad_kind", args: []string{"keygen", "--kind", "validator"}, wantExit: 1, wantStderr: "unknown kind"},
		{name: "info_missing_instrument", args: []string{"info"}, wantExit: 1, wantStderr: "--instrument is required"},
		{name: "info_account_as_instrument", args: []string{"info", "--instrument", testAccount(4).String()}, wantExit: 1, wantStderr: "expected fxt address"},
		{name: "consume_instrument_as_requester", args: []string{"consume", "--requester", testInstrument(4).String(), "--ref", strings.Repeat("ab", 32)}, wantExit: 1, wantStderr: "expected fxo address"},
		{name: "pause_swapped_addresses", args: []string{"pause", "--caller", testInstrument(4).String(), "--instrument", testAccount(4).String()}, wantExit: 1, wantStderr: "--caller"},
		{name: "keygen_bad_key", args: []string{"keygen", "--from-key", "zz"}, wantExit: 1, wantStderr: "--from-key"},
		{name: "consume_bad_ref", args: []string{"consume", "--requester", testAccount(1).String(), "--ref", "0x1234"}, wantExit: 1, wantStderr: "--ref"},
		{name: "feeds_missing_config", args: []string{"feeds"}, wantExit: 1, wantStderr: "--config is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, stderr, code := runCLI(t, tc.args...)
			if code != tc.wantExit {
				t.Fatalf("exit code mismatch: got %d want %d (stderr=%s)", code, tc.wantExit, stderr)
			}
			require.Contains(t, stderr, tc.wantStderr)
		})
	}
}

func TestSimulateCommand(t *testing.T) {
	stdout, stderr, code := runCLI(t, "simulate", "--amount", "100000", "--price", "1250000", "--fee-bps", "30")
	require.Equal(t, 0, code, stderr)
	var out previewOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	require.Equal(t, "Mint", out.Direction)
	require.Equal(t, uint64(800_000_000), out.GrossOutput)
	require.Equal(t, uint64(2_400_000), out.FeeAmount)
	require.Equal(t, uint64(797_600_000), out.OutputAmount)

	stdout, stderr, code = runCLI(t, "simulate", "--direction", "redeem", "--amount", "800000000", "--price", "1250000")
	require.Equal(t, 0, code, stderr)
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	require.Equal(t, uint64(100_000), out.OutputAmount)
}

func TestSnapshotDecodeRoundTrip(t *testing.T) {
	fixClock(t)
	path := filepath.Join(t.TempDir(), "eurusd.bin")
	_, stderr, code := runCLI(t, "snapshot", "--out", path, "--price", "1.25", "--std", "0.0005")
	require.Equal(t, 0, code, stderr)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, data, oracle.MinSnapshotSize)

	stdout, stderr, code := runCLI(t, "decode", "--file", path)
	require.Equal(t, 0, code, stderr)
	var report decodeReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	require.Equal(t, int64(fixedUnix), report.RoundTimestamp)
	require.Equal(t, uint64(1_250_000), report.PriceScaled)
	require.Equal(t, "1.25", report.ValueExact)
	require.Equal(t, "0.0005", report.StdDevExact)
	require.Len(t, report.Digest, 64)
}

func TestDecodeRejectsShortSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 10), 0o600))
	_, stderr, code := runCLI(t, "decode", "--file", path)
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "decode snapshot failed")
}

func TestDecodeFallsBackForOversizedScale(t *testing.T) {
	data, err := oracle.BuildSnapshot(fixedUnix,
		oracle.WideDecimal{Mantissa: big.NewInt(108), Scale: 2},
		oracle.WideDecimal{Mantissa: big.NewInt(1), Scale: 2_000_000_000})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "corrupt.bin")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	stdout, stderr, code := runCLI(t, "decode", "--file", path)
	require.Equal(t, 0, code, stderr)
	require.Less(t, len(stdout), 4096)
	var report decodeReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	require.Equal(t, "1.08", report.ValueExact)
	require.Equal(t, "0", report.StdDevExact)
}

func TestKeygenPrefixes(t *testing.T) {
	stdout, _, code := runCLI(t, "keygen", "--kind", "instrument")
	require.Equal(t, 0, code)
	addr, err := crypto.DecodeAddress(strings.TrimSpace(stdout))
	require.NoError(t, err)
	require.Equal(t, crypto.InstrumentPrefix, addr.Prefix())
}

func TestKeygenFromKeyIsDeterministic(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	raw := fmt.Sprintf("0x%x", key.Bytes())

	account, _, code := runCLI(t, "keygen", "--from-key", raw)
	require.Equal(t, 0, code)
	require.Equal(t, key.PubKey().Address().String(), strings.TrimSpace(account))

	instrument, _, code := runCLI(t, "keygen", "--kind", "instrument", "--from-key", raw)
	require.Equal(t, 0, code)
	decoded, err := crypto.DecodeAddressWithPrefix(strings.TrimSpace(instrument), crypto.InstrumentPrefix)
	require.NoError(t, err)
	require.True(t, decoded.Equal(key.PubKey().Address()))
}

func testAccount(seed byte) crypto.Address {
	return crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{seed}, crypto.AddressLength))
}

func testInstrument(seed byte) crypto.Address {
	return crypto.NewAddress(crypto.InstrumentPrefix, bytes.Repeat([]byte{seed}, crypto.AddressLength))
}

func writeTestConfig(t *testing.T, dir, snapshotPath string) string {
	t.Helper()
	var feed crypto.FeedAddress
	for i := range feed {
		feed[i] = byte(i + 1)
	}
	body := fmt.Sprintf(`service: oraclectl-test
environment: test
data_dir: %s
journal:
  dsn: %s
logging:
  level: error
registry:
  authority: %s
feeds:
  - symbol: EURUSD
    type: direct
    base_currency: EUR
    quote_currency: USD
    decimals: 6
    address: %s
    snapshot_file: %s
instruments:
  - instrument: %s
    authority: %s
    feed_symbol: EURUSD
    description: Euro stable token
    max_staleness: 5m
    mint_fee_bps: 30
    redeem_fee_bps: 30
    quote_validity: 30s
`,
		filepath.Join(dir, "state"),
		filepath.Join(dir, "journal.db"),
		testAccount(1).String(),
		feed.String(),
		snapshotPath,
		testInstrument(9).String(),
		testAccount(1).String(),
	)
	path := filepath.Join(dir, "oracle.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestQuoteLifecycleThroughCLI(t *testing.T) {
	fixClock(t)
	dir := t.TempDir()
	snapshotPath := filepath.Join(dir, "eurusd.bin")
	_, stderr, code := runCLI(t, "snapshot", "--out", snapshotPath, "--price", "1.25")
	require.Equal(t, 0, code, stderr)
	cfgPath := writeTestConfig(t, dir, snapshotPath)

	stdout, stderr, code := runCLI(t, "bootstrap", "--config", cfgPath)
	require.Equal(t, 0, code, stderr)
	var report bootstrapReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	require.Equal(t, "created", report.Registry)
	require.Equal(t, []string{"EURUSD: registered"}, report.Feeds)

	// A second bootstrap is idempotent.
	stdout, stderr, code = runCLI(t, "bootstrap", "--config", cfgPath)
	require.Equal(t, 0, code, stderr)
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	require.Equal(t, "existing", report.Registry)

	stdout, stderr, code = runCLI(t, "feeds", "--config", cfgPath)
	require.Equal(t, 0, code, stderr)
	var feeds []feedView
	require.NoError(t, json.Unmarshal([]byte(stdout), &feeds))
	require.Len(t, feeds, 1)
	require.Equal(t, "Direct", feeds[0].FeedType)
	require.False(t, feeds[0].UsesCpi)

	requester := testAccount(2).String()
	instrument := testInstrument(9).String()
	stdout, stderr, code = runCLI(t, "quote", "--config", cfgPath,
		"--instrument", instrument, "--requester", requester,
		"--amount", "100000", "--nonce", "7", "--snapshot", snapshotPath)
	require.Equal(t, 0, code, stderr)
	var quote quoteView
	require.NoError(t, json.Unmarshal([]byte(stdout), &quote))
	require.Equal(t, uint64(797_600_000), quote.OutputAmount)
	require.Equal(t, uint64(2_400_000), quote.FeeAmount)
	require.Equal(t, uint64(1_250_000), quote.PriceUsed)
	require.Equal(t, int64(fixedUnix+30), quote.ValidUntil)

	stdout, stderr, code = runCLI(t, "quotes", "--config", cfgPath, "--instrument", instrument)
	require.Equal(t, 0, code, stderr)
	var pending []pendingQuoteView
	require.NoError(t, json.Unmarshal([]byte(stdout), &pending))
	require.Len(t, pending, 1)
	require.Equal(t, quote.QuoteRef, pending[0].QuoteRef)
	require.Equal(t, requester, pending[0].Requester)
	require.False(t, pending[0].Expired)

	stdout, stderr, code = runCLI(t, "consume", "--config", cfgPath, "--requester", requester, "--ref", quote.QuoteRef)
	require.Equal(t, 0, code, stderr)
	var settlement settlementView
	require.NoError(t, json.Unmarshal([]byte(stdout), &settlement))
	require.Equal(t, quote.OutputAmount, settlement.OutputAmount)

	stdout, stderr, code = runCLI(t, "quotes", "--config", cfgPath)
	require.Equal(t, 0, code, stderr)
	require.NoError(t, json.Unmarshal([]byte(stdout), &pending))
	require.Empty(t, pending)

	_, stderr, code = runCLI(t, "consume", "--config", cfgPath, "--requester", requester, "--ref", quote.QuoteRef)
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "409")

	stdout, stderr, code = runCLI(t, "info", "--config", cfgPath, "--instrument", instrument)
	require.Equal(t, 0, code, stderr)
	var info configView
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	require.Equal(t, uint64(100_000), info.TotalMintedFiat)
	require.Equal(t, uint64(2_400_000), info.TotalFeesCollected)

	stdout, stderr, code = runCLI(t, "journal", "--config", cfgPath, "--quote", quote.QuoteRef)
	require.Equal(t, 0, code, stderr)
	var records []journalView
	require.NoError(t, json.Unmarshal([]byte(stdout), &records))
	types := make([]string, 0, len(records))
	for _, rec := range records {
		types = append(types, rec.Type)
	}
	require.ElementsMatch(t, []string{"oracle.quote_generated", "oracle.mint"}, types)
}

func TestPauseBlocksQuotes(t *testing.T) {
	fixClock(t)
	dir := t.TempDir()
	snapshotPath := filepath.Join(dir, "eurusd.bin")
	_, stderr, code := runCLI(t, "snapshot", "--out", snapshotPath, "--price", "1.25")
	require.Equal(t, 0, code, stderr)
	cfgPath := writeTestConfig(t, dir, snapshotPath)
	_, stderr, code = runCLI(t, "bootstrap", "--config", cfgPath)
	require.Equal(t, 0, code, stderr)

	authority := testAccount(1).String()
	instrument := testInstrument(9).String()
	_, stderr, code = runCLI(t, "pause", "--config", cfgPath, "--caller", testAccount(3).String(), "--instrument", instrument)
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "403")

	_, stderr, code = runCLI(t, "pause", "--config", cfgPath, "--caller", authority, "--instrument", instrument, "--reason", "maintenance")
	require.Equal(t, 0, code, stderr)

	_, stderr, code = runCLI(t, "quote", "--config", cfgPath,
		"--instrument", instrument, "--requester", testAccount(2).String(),
		"--amount", "100000", "--snapshot", snapshotPath)
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "oracle: paused")

	_, stderr, code = runCLI(t, "unpause", "--config", cfgPath, "--caller", authority, "--instrument", instrument)
	require.Equal(t, 0, code, stderr)
}
