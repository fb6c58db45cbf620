package shape

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("tokamak.shape")
	meter  = otel.Meter("tokamak.shape")
)

var (
	cacheLookups    metric.Int64Counter
	rebuildLatency  metric.Float64Histogram
	rebuildFailures metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		cacheLookups, err = meter.Int64Counter(
			"tokamak_shape_cache_lookups_total",
			metric.WithDescription("Solid lookups, split by cache hit"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		rebuildLatency, err = meter.Float64Histogram(
			"tokamak_shape_rebuild_duration_seconds",
			metric.WithDescription("Duration of solid rebuilds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		rebuildFailures, err = meter.Int64Counter(
			"tokamak_shape_rebuild_failures_total",
			metric.WithDescription("Rebuilds that returned an error"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startSolidSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Shape.Solid",
		trace.WithAttributes(attribute.String("shape.name", name)),
	)
}

func recordLookup(ctx context.Context, hit bool) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", hit)))
}

func recordRebuild(ctx context.Context, d time.Duration, err error) {
	if initMetrics() != nil {
		return
	}
	rebuildLatency.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.Bool("success", err == nil)))
	if err != nil {
		rebuildFailures.Add(ctx, 1)
	}
}
