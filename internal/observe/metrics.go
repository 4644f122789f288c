// Package observe provides application-wide observability primitives for
// Waveform: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Waveform metrics.
const meterName = "github.com/elfinch/waveform"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// SynthesisDuration tracks speech synthesis latency per segment.
	SynthesisDuration metric.Float64Histogram

	// DecodeDuration tracks audio payload decode latency.
	DecodeDuration metric.Float64Histogram

	// ScriptDuration tracks narration script generation latency.
	ScriptDuration metric.Float64Histogram

	// --- Counters ---

	// CacheLookups counts segment cache lookups. Use with attribute:
	//   attribute.String("result", "hit"|"miss")
	CacheLookups metric.Int64Counter

	// PrefetchResults counts background prefetch outcomes. Use with attribute:
	//   attribute.String("status", "ok"|"error"|"stale")
	PrefetchResults metric.Int64Counter

	// SegmentsPlayed counts narration segments played to completion. Use with
	// attribute: attribute.String("book_id", ...)
	SegmentsPlayed metric.Int64Counter

	// Purchases counts completed purchases. Use with attribute:
	//   attribute.String("book_id", ...)
	Purchases metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts collaborator errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live narration sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for synthesis-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.SynthesisDuration, err = m.Float64Histogram("waveform.synthesis.duration",
		metric.WithDescription("Latency of per-segment speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DecodeDuration, err = m.Float64Histogram("waveform.decode.duration",
		metric.WithDescription("Latency of audio payload decoding."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ScriptDuration, err = m.Float64Histogram("waveform.script.duration",
		metric.WithDescription("Latency of narration script generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.CacheLookups, err = m.Int64Counter("waveform.cache.lookups",
		metric.WithDescription("Segment cache lookups by result."),
	); err != nil {
		return nil, err
	}
	if met.PrefetchResults, err = m.Int64Counter("waveform.prefetch.results",
		metric.WithDescription("Background prefetch outcomes by status."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsPlayed, err = m.Int64Counter("waveform.segments.played",
		metric.WithDescription("Narration segments played to completion by book."),
	); err != nil {
		return nil, err
	}
	if met.Purchases, err = m.Int64Counter("waveform.purchases",
		metric.WithDescription("Completed purchases by book."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("waveform.provider.errors",
		metric.WithDescription("Total collaborator errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("waveform.active_sessions",
		metric.WithDescription("Number of live narration sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("waveform.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordCacheLookup records a segment cache lookup.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.Add(ctx, 1,
		metric.WithAttributes(attribute.String("result", result)),
	)
}

// RecordPrefetch records a background prefetch outcome.
func (m *Metrics) RecordPrefetch(ctx context.Context, status string) {
	m.PrefetchResults.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordSegmentPlayed records one segment played to completion.
func (m *Metrics) RecordSegmentPlayed(ctx context.Context, bookID string) {
	m.SegmentsPlayed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("book_id", bookID)),
	)
}

// RecordPurchase records one completed purchase.
func (m *Metrics) RecordPurchase(ctx context.Context, bookID string) {
	m.Purchases.Add(ctx, 1,
		metric.WithAttributes(attribute.String("book_id", bookID)),
	)
}

// RecordProviderError records a collaborator error.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
