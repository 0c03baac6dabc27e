package store

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records pull and cache-lookup outcomes. A nil *Metrics is a valid
// receiver that records nothing.
type Metrics struct {
	pullDuration metric.Float64Histogram
	pullTotal    metric.Int64Counter
	lookupTotal  metric.Int64Counter
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	pullDuration, err := meter.Float64Histogram(
		"layerstore_pull_duration_seconds",
		metric.WithDescription("Duration of image pulls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	pullTotal, err := meter.Int64Counter(
		"layerstore_pulls_total",
		metric.WithDescription("Total number of image pulls"),
	)
	if err != nil {
		return nil, err
	}

	lookupTotal, err := meter.Int64Counter(
		"layerstore_lookups_total",
		metric.WithDescription("Total number of metadata cache lookups"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		pullDuration: pullDuration,
		pullTotal:    pullTotal,
		lookupTotal:  lookupTotal,
	}, nil
}

// RecordPull records the outcome of one pull pipeline.
func (m *Metrics) RecordPull(ctx context.Context, status string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("status", status),
	}
	m.pullDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.pullTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLookup records a metadata cache lookup.
func (m *Metrics) RecordLookup(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.lookupTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
