package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fxoracle/core/events"
)

// Open connects to the journal database. postgres:// and postgresql:// DSNs
// use the Postgres driver; anything else is treated as a SQLite path or DSN.
func Open(dsn string) (*gorm.DB, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, fmt.Errorf("journal dsn required")
	}
	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(trimmed, "postgres://"), strings.HasPrefix(trimmed, "postgresql://"):
		dialector = postgres.Open(trimmed)
	default:
		dialector = sqlite.Open(strings.TrimPrefix(trimmed, "sqlite://"))
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return db, nil
}

// Journal persists every emitted oracle event so operators can audit quote
// issuance and settlement history.
type Journal struct {
	db     *gorm.DB
	logger *slog.Logger
	nowFn  func() time.Time
}

// NewJournal wraps an opened database.
func NewJournal(db *gorm.DB) *Journal {
	return &Journal{db: db, logger: slog.Default(), nowFn: time.Now}
}

// SetLogger replaces the logger used for write failures.
func (j *Journal) SetLogger(l *slog.Logger) {
	if l != nil {
		j.logger = l
	}
}

// SetClock overrides the time source used when an event carries no timestamp.
func (j *Journal) SetClock(now func() time.Time) {
	if now != nil {
		j.nowFn = now
	}
}

// Emit implements events.Emitter. Write failures are logged and do not
// propagate since the engine state has already committed.
func (j *Journal) Emit(evt events.Event) {
	if err := j.Record(context.Background(), evt); err != nil {
		j.logger.Error("journal write failed", "type", evt.EventType(), "error", err)
	}
}

// Record inserts evt into the journal.
func (j *Journal) Record(ctx context.Context, evt events.Event) error {
	if j == nil || j.db == nil {
		return fmt.Errorf("journal not initialised")
	}
	rendered := events.Render(evt)
	if rendered == nil {
		return nil
	}
	encoded, err := json.Marshal(rendered.Attributes)
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}
	record := EventRecord{
		ID:         uuid.New(),
		Type:       rendered.Type,
		Instrument: rendered.Attr("instrument"),
		QuoteRef:   rendered.Attr("quoteRef"),
		Attributes: string(encoded),
		EmittedAt:  j.emittedAt(rendered.Attr("timestamp")),
	}
	return j.db.WithContext(ctx).Create(&record).Error
}

func (j *Journal) emittedAt(raw string) time.Time {
	if ts, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC()
	}
	return j.nowFn().UTC()
}

// Recent returns the newest events, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]EventRecord, error) {
	var out []EventRecord
	err := j.db.WithContext(ctx).Order("emitted_at DESC").Order("created_at DESC").Limit(clampLimit(limit)).Find(&out).Error
	return out, err
}

// ByInstrument returns the newest events for a single instrument.
func (j *Journal) ByInstrument(ctx context.Context, instrument string, limit int) ([]EventRecord, error) {
	var out []EventRecord
	err := j.db.WithContext(ctx).
		Where("instrument = ?", strings.TrimSpace(instrument)).
		Order("emitted_at DESC").Order("created_at DESC").
		Limit(clampLimit(limit)).
		Find(&out).Error
	return out, err
}

// ByQuote returns the lifecycle of one quote in emission order.
func (j *Journal) ByQuote(ctx context.Context, quoteRef string) ([]EventRecord, error) {
	var out []EventRecord
	err := j.db.WithContext(ctx).
		Where("quote_ref = ?", strings.ToLower(strings.TrimPrefix(strings.TrimSpace(quoteRef), "0x"))).
		Order("emitted_at ASC").Order("created_at ASC").
		Find(&out).Error
	return out, err
}

// DecodeAttributes returns the attribute map stored with the record.
func (r EventRecord) DecodeAttributes() (map[string]string, error) {
	attrs := map[string]string{}
	if strings.TrimSpace(r.Attributes) == "" {
		return attrs, nil
	}
	if err := json.Unmarshal([]byte(r.Attributes), &attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 50
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}
