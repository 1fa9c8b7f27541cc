package oracle

import (
	"bytes"
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"fxoracle/core/events"
	"fxoracle/core/state"
	"fxoracle/crypto"
	"fxoracle/storage"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingEmitter) Emit(evt events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.EventType())
	}
	return out
}

func (r *recordingEmitter) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func testAccount(seed byte) crypto.Address {
	return crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{seed}, crypto.AddressLength))
}

func testInstrument(seed byte) crypto.Address {
	return crypto.NewAddress(crypto.InstrumentPrefix, bytes.Repeat([]byte{seed}, crypto.AddressLength))
}

func testFeedAddress(seed byte) crypto.FeedAddress {
	var out crypto.FeedAddress
	for i := range out {
		out[i] = seed + byte(i)
	}
	return out
}

// priceSnapshot builds a snapshot for mantissa/10^scale with the given std
// deviation mantissa at the same scale.
func priceSnapshot(t *testing.T, feed crypto.FeedAddress, ts int64, mantissa, stdMantissa int64, scale uint32) FeedSnapshot {
	t.Helper()
	data, err := BuildSnapshot(ts,
		WideDecimal{Mantissa: big.NewInt(mantissa), Scale: scale},
		WideDecimal{Mantissa: big.NewInt(stdMantissa), Scale: scale})
	if err != nil {
		t.Fatalf("build snapshot: %v", err)
	}
	return FeedSnapshot{Address: feed, Data: data}
}

var (
	registryAuthority = testAccount(1)
	oracleAuthority   = testAccount(2)
	requesterA        = testAccount(3)
	requesterB        = testAccount(4)
	eurInstrument     = testInstrument(10)
	eurFeed           = testFeedAddress(20)
)

type fixture struct {
	engine  *Engine
	clock   *testClock
	emitter *recordingEmitter
	ctx     context.Context
}

func defaultParams() InitializeParams {
	return InitializeParams{
		FeedSymbol:           "EURUSD",
		Description:          "Euro stable token",
		MaxStalenessSeconds:  300,
		MintFeeBps:           30,
		RedeemFeeBps:         30,
		QuoteValiditySeconds: 30,
		CpiMultiplier:        CpiScale,
		CpiMinUpdateInterval: 86_400,
		CpiDataSource:        "test",
	}
}

// newFixture returns an engine with a registry, a direct EURUSD feed and an
// initialised EUR instrument.
func newFixture(t *testing.T, mutate func(p *InitializeParams)) *fixture {
	t.Helper()
	clock := newTestClock()
	emitter := &recordingEmitter{}
	engine := NewEngine(state.NewManager(storage.NewMemDB()))
	engine.SetClock(clock.Now)
	engine.SetEmitter(emitter)
	ctx := context.Background()

	if err := engine.InitializeRegistry(ctx, registryAuthority); err != nil {
		t.Fatalf("init registry: %v", err)
	}
	params := RegisterFeedParams{Symbol: "EURUSD", FeedType: DirectFeed(), BaseCurrency: "EUR", QuoteCurrency: "USD", Decimals: 6}
	if _, err := engine.RegisterFeed(ctx, registryAuthority, params, priceSnapshot(t, eurFeed, clock.Now().Unix(), 108, 0, 2)); err != nil {
		t.Fatalf("register feed: %v", err)
	}
	init := defaultParams()
	if mutate != nil {
		mutate(&init)
	}
	if _, err := engine.InitializeOracle(ctx, oracleAuthority, eurInstrument, init); err != nil {
		t.Fatalf("init oracle: %v", err)
	}
	emitter.reset()
	return &fixture{engine: engine, clock: clock, emitter: emitter, ctx: ctx}
}

// eurSnapshot is a fresh 1.08 snapshot for the EURUSD feed.
func (f *fixture) eurSnapshot(t *testing.T) FeedSnapshot {
	return priceSnapshot(t, eurFeed, f.clock.Now().Unix(), 108, 0, 2)
}

func TestEngineRequiresState(t *testing.T) {
	var engine *Engine
	if err := engine.InitializeRegistry(context.Background(), registryAuthority); err == nil {
		t.Fatalf("expected error from nil engine")
	}
	if _, err := NewEngine(nil).OracleInfo(context.Background(), eurInstrument); err == nil {
		t.Fatalf("expected error without state manager")
	}
}

func TestReasonLabelBounded(t *testing.T) {
	if got := reasonLabel(ErrQuoteExpired); got != "quote expired" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := reasonLabel(context.Canceled); got != "internal" {
		t.Fatalf("unexpected label %q", got)
	}
}
