package observability

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Counter registers an Int64Counter on meter. Registration errors are logged
// and a no-op counter is returned so callers never nil-check.
func Counter(meter metric.Meter, name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		slog.Warn("failed to register counter", "name", name, "error", err)
		return noop.Int64Counter{}
	}
	return c
}

// Histogram registers a Float64Histogram measured in seconds.
func Histogram(meter metric.Meter, name, description string) metric.Float64Histogram {
	h, err := meter.Float64Histogram(name,
		metric.WithDescription(description),
		metric.WithUnit("s"),
	)
	if err != nil {
		slog.Warn("failed to register histogram", "name", name, "error", err)
		return noop.Float64Histogram{}
	}
	return h
}

// Gauges are read at scrape time. Nil sources are skipped.
type Gauges struct {
	Stored func(ctx context.Context) (int, error)
	Armed  func() int
	Live   func() int
}

// RegisterGauges exposes g as helios.alarms.stored, helios.alarms.armed and
// helios.ring.live.
func RegisterGauges(meter metric.Meter, g Gauges) error {
	var errs []error

	if g.Stored != nil {
		_, err := meter.Int64ObservableGauge("helios.alarms.stored",
			metric.WithDescription("Alarms persisted and waiting to fire"),
			metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
				n, err := g.Stored(ctx)
				if err != nil {
					// A failed read skips the sample rather than failing the scrape.
					slog.Warn("failed to count stored alarms", "error", err)
					return nil
				}
				obs.Observe(int64(n))
				return nil
			}),
		)
		errs = append(errs, err)
	}

	if g.Armed != nil {
		_, err := meter.Int64ObservableGauge("helios.alarms.armed",
			metric.WithDescription("Wake-timer slots currently armed"),
			metric.WithInt64Callback(func(_ context.Context, obs metric.Int64Observer) error {
				obs.Observe(int64(g.Armed()))
				return nil
			}),
		)
		errs = append(errs, err)
	}

	if g.Live != nil {
		_, err := meter.Int64ObservableGauge("helios.ring.live",
			metric.WithDescription("Ring sessions currently sounding"),
			metric.WithInt64Callback(func(_ context.Context, obs metric.Int64Observer) error {
				obs.Observe(int64(g.Live()))
				return nil
			}),
		)
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
