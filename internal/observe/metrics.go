// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics, tracing helpers, structured logging, and the HTTP
// endpoint that exposes scrape targets.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
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

// meterName is the instrumentation scope name used for all masr metrics.
const meterName = "github.com/taglish/masr"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// LoadDuration tracks audio decode and resample latency per recording.
	LoadDuration metric.Float64Histogram

	// ExtractDuration tracks feature extraction latency per segment.
	ExtractDuration metric.Float64Histogram

	// DiarizeDuration tracks diarization latency per recording.
	DiarizeDuration metric.Float64Histogram

	// --- Counters ---

	// RecordingsProcessed counts recordings that made it through the full
	// pipeline.
	RecordingsProcessed metric.Int64Counter

	// RecordingsSkipped counts recordings dropped before batching. Use with
	// attribute:
	//   attribute.String("reason", ...)
	RecordingsSkipped metric.Int64Counter

	// SegmentsProduced counts segments emitted by the segmenter.
	SegmentsProduced metric.Int64Counter

	// CacheHits counts feature cache lookups served without recomputation.
	CacheHits metric.Int64Counter

	// CacheMisses counts feature cache lookups that triggered extraction.
	CacheMisses metric.Int64Counter

	// --- Gauges ---

	// ActiveWorkers tracks the number of recordings being processed
	// concurrently.
	ActiveWorkers metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// per-recording and per-segment processing stages.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.LoadDuration, err = m.Float64Histogram("masr.load.duration",
		metric.WithDescription("Latency of audio decode, resample, and cleanup per recording."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ExtractDuration, err = m.Float64Histogram("masr.extract.duration",
		metric.WithDescription("Latency of feature extraction per segment."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DiarizeDuration, err = m.Float64Histogram("masr.diarize.duration",
		metric.WithDescription("Latency of speaker diarization per recording."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.RecordingsProcessed, err = m.Int64Counter("masr.recordings.processed",
		metric.WithDescription("Total recordings processed end to end."),
	); err != nil {
		return nil, err
	}
	if met.RecordingsSkipped, err = m.Int64Counter("masr.recordings.skipped",
		metric.WithDescription("Total recordings skipped, by reason."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsProduced, err = m.Int64Counter("masr.segments.produced",
		metric.WithDescription("Total segments emitted by the segmenter."),
	); err != nil {
		return nil, err
	}
	if met.CacheHits, err = m.Int64Counter("masr.cache.hits",
		metric.WithDescription("Feature cache lookups served from disk."),
	); err != nil {
		return nil, err
	}
	if met.CacheMisses, err = m.Int64Counter("masr.cache.misses",
		metric.WithDescription("Feature cache lookups that triggered extraction."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveWorkers, err = m.Int64UpDownCounter("masr.active_workers",
		metric.WithDescription("Number of recordings being processed concurrently."),
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

// RecordSkip records a skipped recording with its reason.
func (m *Metrics) RecordSkip(ctx context.Context, reason string) {
	m.RecordingsSkipped.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordCacheLookup increments the hit or miss counter.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if hit {
		m.CacheHits.Add(ctx, 1)
		return
	}
	m.CacheMisses.Add(ctx, 1)
}
