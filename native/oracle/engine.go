package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fxoracle/core/events"
	"fxoracle/core/state"
	"fxoracle/native/common"
	"fxoracle/observability"
)

// ModuleName is the pause-guard key of the oracle module.
const ModuleName = "oracle"

// Engine prices instruments against registered feeds and runs the quote
// issue/consume protocol on top of a transactional KV store.
type Engine struct {
	state   *state.Manager
	emitter events.Emitter
	pauses  common.PauseView
	nowFn   func() time.Time
	metrics *observability.OracleMetrics
	tracer  trace.Tracer
	logger  *slog.Logger
}

// NewEngine constructs an engine over the supplied state manager.
func NewEngine(manager *state.Manager) *Engine {
	return &Engine{
		state:   manager,
		emitter: events.NoopEmitter{},
		nowFn:   time.Now,
		metrics: observability.Oracle(),
		tracer:  otel.Tracer("fxoracle/oracle"),
		logger:  slog.Default(),
	}
}

// SetEmitter configures the event emitter used for oracle events.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the module-wide pause view.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetClock overrides the time source. Primarily used in tests.
func (e *Engine) SetClock(now func() time.Time) {
	if now == nil {
		e.nowFn = time.Now
		return
	}
	e.nowFn = now
}

// SetLogger replaces the structured logger.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

func (e *Engine) now() int64 {
	return e.nowFn().Unix()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return fmt.Errorf("oracle: engine not initialised")
	}
	return nil
}

func (e *Engine) guard() error {
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return fmt.Errorf("%s: %w", ModuleName, err)
	}
	return nil
}

// begin opens a span for operation and returns a finisher that records the
// outcome on both the span and the metrics registry.
func (e *Engine) begin(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "oracle."+operation, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		defer span.End()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			e.metrics.Observe(operation, time.Since(start), reasonLabel(err))
			return
		}
		span.SetStatus(codes.Ok, "")
		e.metrics.Observe(operation, time.Since(start), "")
	}
}

// reasonLabel reduces an error to its sentinel message so metric label
// cardinality stays bounded.
func reasonLabel(err error) string {
	for _, entry := range errorClasses {
		if errors.Is(err, entry.err) {
			return strings.TrimPrefix(entry.err.Error(), "oracle: ")
		}
	}
	return "internal"
}

func (e *Engine) emit(evts ...events.Event) {
	for _, evt := range evts {
		if evt == nil {
			continue
		}
		observability.Events().Record(evt.EventType())
		e.emitter.Emit(evt)
	}
}

func loadRegistry(tx *state.Tx) (*Registry, error) {
	var stored storedRegistry
	ok, err := tx.KVGet(registryKey, &stored)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	if !ok {
		return nil, ErrRegistryNotFound
	}
	return stored.toRegistry()
}

func putRegistry(tx *state.Tx, reg *Registry) error {
	return tx.KVPut(registryKey, newStoredRegistry(reg))
}
