package indexer

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"fxoracle/core/events"
	"fxoracle/crypto"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func testInstrument(seed byte) crypto.Address {
	return crypto.NewAddress(crypto.InstrumentPrefix, bytes.Repeat([]byte{seed}, crypto.AddressLength))
}

func testAccount(seed byte) crypto.Address {
	return crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{seed}, crypto.AddressLength))
}

func TestJournalRecordsQuoteLifecycle(t *testing.T) {
	journal := NewJournal(setupTestDB(t))
	ctx := context.Background()
	ref := [32]byte{0xAB, 0x01}
	inst := testInstrument(1)

	journal.Emit(events.QuoteGenerated{
		QuoteRef:     ref,
		Instrument:   inst,
		Requester:    testAccount(2),
		FeedSymbol:   "eurusd",
		Direction:    "mint",
		InputAmount:  10_800,
		OutputAmount: 99_700_000,
		FeeAmount:    300_000,
		PriceUsed:    1_080_000,
		ValidUntil:   1_700_000_030,
		Timestamp:    1_700_000_000,
	})
	journal.Emit(events.OracleMint{
		QuoteRef:    ref,
		Instrument:  inst,
		Recipient:   testAccount(2),
		FiatAmount:  10_800,
		TokenAmount: 99_700_000,
		FeeAmount:   300_000,
		PriceUsed:   1_080_000,
		FeedSymbol:  "EURUSD",
		Timestamp:   1_700_000_010,
	})

	lifecycle, err := journal.ByQuote(ctx, "0x"+strings.ToUpper(hex.EncodeToString(ref[:])))
	require.NoError(t, err)
	require.Len(t, lifecycle, 2)
	require.Equal(t, events.TypeQuoteGenerated, lifecycle[0].Type)
	require.Equal(t, events.TypeOracleMint, lifecycle[1].Type)
	require.True(t, time.Unix(1_700_000_000, 0).UTC().Equal(lifecycle[0].EmittedAt))
	require.Equal(t, inst.String(), lifecycle[0].Instrument)

	attrs, err := lifecycle[0].DecodeAttributes()
	require.NoError(t, err)
	require.Equal(t, "EURUSD", attrs["feedSymbol"])
	require.Equal(t, "99700000", attrs["outputAmount"])
	require.Equal(t, "1700000030", attrs["validUntil"])
}

func TestJournalFiltersAndOrdering(t *testing.T) {
	journal := NewJournal(setupTestDB(t))
	ctx := context.Background()
	first, second := testInstrument(1), testInstrument(2)

	for i, inst := range []crypto.Address{first, second, first} {
		require.NoError(t, journal.Record(ctx, events.OraclePauseChanged{
			Instrument: inst,
			Paused:     i%2 == 0,
			Reason:     "maintenance",
			By:         testAccount(9),
			Timestamp:  int64(1_700_000_000 + i),
		}))
	}

	recent, err := journal.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.True(t, time.Unix(1_700_000_002, 0).UTC().Equal(recent[0].EmittedAt))
	require.Equal(t, second.String(), recent[1].Instrument)

	byInst, err := journal.ByInstrument(ctx, first.String(), 0)
	require.NoError(t, err)
	require.Len(t, byInst, 2)
	for _, rec := range byInst {
		require.Equal(t, first.String(), rec.Instrument)
		require.Empty(t, rec.QuoteRef)
	}
}

func TestJournalFallsBackToClock(t *testing.T) {
	journal := NewJournal(setupTestDB(t))
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	journal.SetClock(func() time.Time { return fixed })

	require.NoError(t, journal.Record(context.Background(), events.OraclePauseChanged{Instrument: testInstrument(3), Paused: true}))
	records, err := journal.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.True(t, fixed.Equal(records[0].EmittedAt))

	attrs, err := records[0].DecodeAttributes()
	require.NoError(t, err)
	require.Equal(t, "true", attrs["paused"])
}

func TestJournalRequiresDatabase(t *testing.T) {
	var journal *Journal
	require.Error(t, journal.Record(context.Background(), events.OraclePauseChanged{}))
	require.NoError(t, NewJournal(setupTestDB(t)).Record(context.Background(), nil))
}

func TestOpenSQLite(t *testing.T) {
	db, err := Open("sqlite://" + fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.True(t, db.Migrator().HasTable(&EventRecord{}))

	_, err = Open("  ")
	require.Error(t, err)
}

func TestClampLimit(t *testing.T) {
	require.Equal(t, 50, clampLimit(0))
	require.Equal(t, 50, clampLimit(-3))
	require.Equal(t, 7, clampLimit(7))
	require.Equal(t, 1000, clampLimit(5000))
}

func TestDecodeAttributesEmpty(t *testing.T) {
	attrs, err := EventRecord{}.DecodeAttributes()
	require.NoError(t, err)
	require.Empty(t, attrs)
	_, err = EventRecord{Attributes: "{"}.DecodeAttributes()
	require.Error(t, err)
}
