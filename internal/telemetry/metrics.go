package telemetry

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// FetchMetrics holds the instruments recorded for endpoint fetches and
// whole retrievals. A nil *FetchMetrics records nothing.
type FetchMetrics struct {
	fetchDuration      metric.Float64Histogram
	fetchTotal         metric.Int64Counter
	breakerTransitions metric.Int64Counter
	retrievalTotal     metric.Int64Counter
}

// NewFetchMetrics creates the instruments on meter.
func NewFetchMetrics(meter metric.Meter) (*FetchMetrics, error) {
	fetchDuration, err := meter.Float64Histogram(
		"odaudit.fetch.duration",
		metric.WithDescription("Duration of endpoint fetches in seconds, including retries"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	fetchTotal, err := meter.Int64Counter(
		"odaudit.fetch.total",
		metric.WithDescription("Total number of endpoint fetches"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, err
	}

	breakerTransitions, err := meter.Int64Counter(
		"odaudit.breaker.transitions",
		metric.WithDescription("Circuit breaker state changes"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	retrievalTotal, err := meter.Int64Counter(
		"odaudit.retrieval.total",
		metric.WithDescription("Total number of retrievals by exit status"),
		metric.WithUnit("{retrieval}"),
	)
	if err != nil {
		return nil, err
	}

	return &FetchMetrics{
		fetchDuration:      fetchDuration,
		fetchTotal:         fetchTotal,
		breakerTransitions: breakerTransitions,
		retrievalTotal:     retrievalTotal,
	}, nil
}

// RecordFetch records one endpoint fetch. Patient identifiers are never
// used as attributes.
func (m *FetchMetrics) RecordFetch(ctx context.Context, endpoint string, status int, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("http.status_code", strconv.Itoa(status)),
		attribute.Bool("success", success),
	)
	m.fetchDuration.Record(ctx, duration.Seconds(), attrs)
	m.fetchTotal.Add(ctx, 1, attrs)
}

// RecordBreakerTransition records a circuit breaker state change.
func (m *FetchMetrics) RecordBreakerTransition(ctx context.Context, endpoint, from, to string) {
	if m == nil {
		return
	}
	m.breakerTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordRetrieval records a completed retrieval.
func (m *FetchMetrics) RecordRetrieval(ctx context.Context, successful, failed, exitCode int) {
	if m == nil {
		return
	}
	m.retrievalTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("successful", successful),
		attribute.Int("failed", failed),
		attribute.Int("exit_code", exitCode),
	))
}
