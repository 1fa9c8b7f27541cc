package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	oracleMetricsOnce sync.Once
	oracleRegistry    *OracleMetrics
)

// OracleMetrics captures pricing engine activity.
type OracleMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	errors   *prometheus.CounterVec
	volume   *prometheus.CounterVec
	fees     *prometheus.CounterVec
	cpi      *prometheus.GaugeVec
	paused   *prometheus.GaugeVec
}

// Oracle returns the singleton metrics registry for the oracle engine.
func Oracle() *OracleMetrics {
	oracleMetricsOnce.Do(func() {
		oracleRegistry = &OracleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fxoracle",
				Subsystem: "engine",
				Name:      "requests_total",
				Help:      "Count of oracle operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "fxoracle",
				Subsystem: "engine",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for oracle operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fxoracle",
				Subsystem: "engine",
				Name:      "errors_total",
				Help:      "Count of oracle failures segmented by operation and reason.",
			}, []string{"operation", "reason"}),
			volume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fxoracle",
				Subsystem: "quotes",
				Name:      "consumed_input_total",
				Help:      "Input amount of consumed quotes in base units, segmented by direction.",
			}, []string{"direction"}),
			fees: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fxoracle",
				Subsystem: "quotes",
				Name:      "fees_total",
				Help:      "Fees retained by consumed quotes in base units, segmented by direction.",
			}, []string{"direction"}),
			cpi: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "fxoracle",
				Subsystem: "config",
				Name:      "cpi_multiplier",
				Help:      "Current CPI multiplier per instrument (scale 1e6).",
			}, []string{"instrument"}),
			paused: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "fxoracle",
				Subsystem: "config",
				Name:      "paused",
				Help:      "Set to 1 while an instrument is paused.",
			}, []string{"instrument"}),
		}
		prometheus.MustRegister(
			oracleRegistry.requests,
			oracleRegistry.latency,
			oracleRegistry.errors,
			oracleRegistry.volume,
			oracleRegistry.fees,
			oracleRegistry.cpi,
			oracleRegistry.paused,
		)
	})
	return oracleRegistry
}

// Observe records the execution of an oracle operation. An empty reason marks
// success.
func (m *OracleMetrics) Observe(operation string, duration time.Duration, reason string) {
	if m == nil {
		return
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	outcome := "success"
	if reason = strings.TrimSpace(reason); reason != "" {
		outcome = "error"
		m.errors.WithLabelValues(op, reason).Inc()
	}
	m.requests.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordConsumption adds a consumed quote's input and fee to the volume counters.
func (m *OracleMetrics) RecordConsumption(direction string, input, fee uint64) {
	if m == nil {
		return
	}
	dir := strings.ToLower(strings.TrimSpace(direction))
	m.volume.WithLabelValues(dir).Add(float64(input))
	m.fees.WithLabelValues(dir).Add(float64(fee))
}

// SetCpiMultiplier publishes the instrument's current multiplier.
func (m *OracleMetrics) SetCpiMultiplier(instrument string, multiplier uint64) {
	if m == nil {
		return
	}
	m.cpi.WithLabelValues(instrument).Set(float64(multiplier))
}

// SetPaused publishes the instrument's pause flag.
func (m *OracleMetrics) SetPaused(instrument string, paused bool) {
	if m == nil {
		return
	}
	value := 0.0
	if paused {
		value = 1
	}
	m.paused.WithLabelValues(instrument).Set(value)
}
