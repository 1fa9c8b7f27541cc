package events

import (
	"bytes"
	"strings"
	"testing"

	"fxoracle/crypto"
)

type recorder struct {
	seen []string
}

func (r *recorder) Emit(evt Event) { r.seen = append(r.seen, evt.EventType()) }

type bareEvent struct{}

func (bareEvent) EventType() string { return "oracle.bare" }

func TestQuoteGeneratedAttributes(t *testing.T) {
	var ref [32]byte
	ref[0] = 0xab
	evt := QuoteGenerated{
		QuoteRef:       ref,
		Instrument:     crypto.NewAddress(crypto.InstrumentPrefix, bytes.Repeat([]byte{1}, crypto.AddressLength)),
		Requester:      crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{2}, crypto.AddressLength)),
		FeedSymbol:     " EURUSD ",
		Direction:      "Mint",
		InputAmount:    10_800,
		OutputAmount:   99_700_000,
		FeeAmount:      300_000,
		PriceUsed:      1_080_000,
		ValidUntil:     1_700_000_030,
		SnapshotDigest: []byte{0xde, 0xad},
		Timestamp:      1_700_000_000,
	}
	rendered := Render(evt)
	if rendered.Type != TypeQuoteGenerated {
		t.Fatalf("unexpected type %s", rendered.Type)
	}
	if !strings.HasPrefix(rendered.Attr("quoteRef"), "ab00") || len(rendered.Attr("quoteRef")) != 64 {
		t.Fatalf("unexpected quote ref %q", rendered.Attr("quoteRef"))
	}
	want := map[string]string{
		"feedSymbol":     "EURUSD",
		"outputAmount":   "99700000",
		"validUntil":     "1700000030",
		"snapshotDigest": "dead",
		"direction":      "Mint",
	}
	for key, value := range want {
		if got := rendered.Attr(key); got != value {
			t.Fatalf("%s: got %q want %q", key, got, value)
		}
	}
	if !strings.HasPrefix(rendered.Attr("instrument"), string(crypto.InstrumentPrefix)+"1") {
		t.Fatalf("instrument not bech32 encoded: %q", rendered.Attr("instrument"))
	}
}

func TestSettlementEventsCarryAmounts(t *testing.T) {
	mint := OracleMint{FiatAmount: 10_800, TokenAmount: 99_700_000, Timestamp: 5}.Event()
	if mint.Attr("fiatAmount") != "10800" || mint.Attr("tokenAmount") != "99700000" {
		t.Fatalf("unexpected mint attributes %+v", mint.Attributes)
	}
	redeem := OracleRedeem{FiatAmount: 10_768, TokenAmount: 100_000_000}.Event()
	if redeem.Type != TypeOracleRedeem || redeem.Attr("fiatAmount") != "10768" {
		t.Fatalf("unexpected redeem attributes %+v", redeem.Attributes)
	}
	if got := (OraclePauseChanged{Paused: true}).Event().Attr("paused"); got != "true" {
		t.Fatalf("unexpected paused attribute %q", got)
	}
}

func TestRenderFallsBackForUntypedEvents(t *testing.T) {
	rendered := Render(bareEvent{})
	if rendered.Type != "oracle.bare" || len(rendered.Attributes) != 0 {
		t.Fatalf("unexpected fallback rendering %+v", rendered)
	}
	if Render(nil) != nil {
		t.Fatalf("nil events render to nil")
	}
}

func TestMultiEmitterFansOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	MultiEmitter{a, nil, b, NoopEmitter{}}.Emit(CpiMultiplierUpdated{})
	if len(a.seen) != 1 || len(b.seen) != 1 || a.seen[0] != TypeCpiMultiplierUpdated {
		t.Fatalf("unexpected fan out: %v %v", a.seen, b.seen)
	}
}
