package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fxoracle/crypto"
	"fxoracle/native/oracle"
)

func testAddress(prefix crypto.AddressPrefix, seed byte) string {
	return crypto.NewAddress(prefix, bytes.Repeat([]byte{seed}, crypto.AddressLength)).String()
}

func testFeed() string {
	var feed crypto.FeedAddress
	for i := range feed {
		feed[i] = byte(i + 7)
	}
	return feed.String()
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func yamlConfig(feedType, instrument string) string {
	return `service: oracle-test
registry:
  authority: ` + testAddress(crypto.AccountPrefix, 1) + `
feeds:
  - symbol: USDMXN
    type: ` + feedType + `
    base_currency: USD
    quote_currency: MXN
    decimals: 6
    address: ` + testFeed() + `
instruments:
  - instrument: ` + instrument + `
    authority: ` + testAddress(crypto.AccountPrefix, 2) + `
    feed_symbol: USDMXN
    mint_fee_bps: 25
    quote_validity: 45s
`
}

func TestLoadYAMLAppliesDefaults(t *testing.T) {
	path := writeFile(t, "oracle.yaml", yamlConfig("inverse", testAddress(crypto.InstrumentPrefix, 3)))
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "oracle-test", cfg.Service)
	require.Equal(t, defaultDataDir, cfg.DataDir)
	require.Equal(t, defaultJournalDSN, cfg.Journal.DSN)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Len(t, cfg.Instruments, 1)

	inst := cfg.Instruments[0]
	require.Equal(t, 45*time.Second, inst.QuoteValidity.Duration)
	require.Equal(t, defaultMaxStaleness, inst.MaxStaleness.Duration)
	require.Equal(t, uint64(oracle.CpiScale), inst.CpiMultiplier)

	params := inst.Params()
	require.Equal(t, int64(45), params.QuoteValiditySeconds)
	require.Equal(t, int64(300), params.MaxStalenessSeconds)
	require.Equal(t, int64(86400), params.CpiMinUpdateInterval)
	require.Equal(t, uint16(25), params.MintFeeBps)

	ft, err := cfg.Feeds[0].FeedType()
	require.NoError(t, err)
	require.Equal(t, oracle.InverseFeed(), ft)
}

func TestLoadTOML(t *testing.T) {
	body := `
service = "oracle-toml"
data_dir = "/var/lib/oracle"
paused_modules = ["oracle"]

[journal]
dsn = "postgres://oracle@db/journal"

[registry]
authority = "` + testAddress(crypto.AccountPrefix, 1) + `"

[[feeds]]
symbol = "EURUSD"
type = "direct"
base_currency = "EUR"
quote_currency = "USD"
decimals = 6
address = "` + testFeed() + `"

[[instruments]]
instrument = "` + testAddress(crypto.InstrumentPrefix, 4) + `"
authority = "` + testAddress(crypto.AccountPrefix, 2) + `"
feed_symbol = "EURUSD"
max_staleness = "90s"
cpi_min_update_interval = "1h"
`
	cfg, err := Load(writeFile(t, "oracle.toml", body))
	require.NoError(t, err)
	require.Equal(t, "oracle-toml", cfg.Service)
	require.Equal(t, "/var/lib/oracle", cfg.DataDir)
	require.Equal(t, []string{"oracle"}, cfg.PausedModules)
	require.Equal(t, "postgres://oracle@db/journal", cfg.Journal.DSN)
	require.Equal(t, 90*time.Second, cfg.Instruments[0].MaxStaleness.Duration)
	require.Equal(t, int64(3600), cfg.Instruments[0].Params().CpiMinUpdateInterval)
	require.Equal(t, defaultQuoteValidity, cfg.Instruments[0].QuoteValidity.Duration)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	validInstrument := testAddress(crypto.InstrumentPrefix, 3)
	cases := []struct {
		name string
		body string
		want string
	}{
		{"unknown feed type", yamlConfig("spot", validInstrument), "unknown feed type"},
		{"bad instrument", yamlConfig("direct", "not-an-address"), "instruments[0].instrument"},
		{"account as instrument", yamlConfig("direct", testAddress(crypto.AccountPrefix, 3)), "expected fxt address"},
		{"bad duration", strings.Replace(yamlConfig("direct", validInstrument), "45s", "soon", 1), "parse duration"},
		{"fee too high", strings.Replace(yamlConfig("direct", validInstrument), "mint_fee_bps: 25", "mint_fee_bps: 10001", 1), "fee exceeds"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "oracle.yaml", tc.body))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadKeepsExplicitZeroDurations(t *testing.T) {
	body := yamlConfig("cpi", testAddress(crypto.InstrumentPrefix, 3)) +
		"    max_staleness: 0s\n    cpi_min_update_interval: \"0\"\n"
	cfg, err := Load(writeFile(t, "oracle.yaml", body))
	require.NoError(t, err)

	params := cfg.Instruments[0].Params()
	require.Zero(t, params.MaxStalenessSeconds)
	require.Zero(t, params.CpiMinUpdateInterval)
	require.Equal(t, int64(45), params.QuoteValiditySeconds)

	body = strings.Replace(yamlConfig("direct", testAddress(crypto.InstrumentPrefix, 3)), "    quote_validity: 45s\n", "    quote_validity: 0s\n", 1)
	_, err = Load(writeFile(t, "oracle.yaml", body))
	require.ErrorContains(t, err, "quote validity must be positive")
}

func TestValidateRejectsInstrumentAuthority(t *testing.T) {
	cfg := &Config{Registry: RegistryConfig{Authority: testAddress(crypto.InstrumentPrefix, 1)}}
	require.ErrorContains(t, cfg.Validate(), "registry authority")
}

func TestValidateDuplicateFeeds(t *testing.T) {
	feed := FeedConfig{Symbol: "EURUSD", Type: "direct", BaseCurrency: "EUR", QuoteCurrency: "USD", Decimals: 6, Address: testFeed()}
	cfg := &Config{Feeds: []FeedConfig{feed, feed}}
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate symbol")

	var nilCfg *Config
	require.Error(t, nilCfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	require.False(t, d.IsSet())
	require.NoError(t, d.UnmarshalText([]byte(" 2m ")))
	require.Equal(t, int64(120), d.Seconds())
	require.True(t, d.IsSet())
	require.NoError(t, d.UnmarshalText([]byte("0s")))
	require.True(t, d.IsSet())
	require.NoError(t, d.UnmarshalText(nil))
	require.Zero(t, d.Duration)
	require.False(t, d.IsSet())
	require.Error(t, d.UnmarshalText([]byte("tomorrow")))
}
