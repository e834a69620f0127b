package dgbatch

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	instrumentationName = "github.com/donnigundala/dg-batch"
)

// batchMetrics holds the OpenTelemetry instruments of a manager.
type batchMetrics struct {
	packages     metric.Int64Counter
	items        metric.Int64Counter
	duration     metric.Float64Histogram
	inflight     metric.Int64ObservableGauge
	registration metric.Registration
}

// RegisterMetrics registers batch metrics with OpenTelemetry.
// This initializes instruments and registers callbacks for observable metrics.
func (m *Manager) RegisterMetrics() error {
	return m.RegisterMetricsWith(otel.GetMeterProvider())
}

// RegisterMetricsWith registers batch metrics with the given meter provider.
func (m *Manager) RegisterMetricsWith(provider metric.MeterProvider) error {
	meter := provider.Meter(instrumentationName)
	bm := &batchMetrics{}

	var err error

	// Observable gauge: closures currently running per batch
	bm.inflight, err = meter.Int64ObservableGauge(
		"batch.workers.active",
		metric.WithDescription("Number of packages currently being processed"),
		metric.WithUnit("{package}"),
	)
	if err != nil {
		return err
	}

	// Sync instruments
	bm.packages, err = meter.Int64Counter(
		"batch.packages",
		metric.WithDescription("Total number of packages processed"),
		metric.WithUnit("{package}"),
	)
	if err != nil {
		return err
	}

	bm.items, err = meter.Int64Counter(
		"batch.items",
		metric.WithDescription("Total number of items in processed packages"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return err
	}

	bm.duration, err = meter.Float64Histogram(
		"batch.package.duration",
		metric.WithDescription("Duration of package processing"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	// Register callback for the gauge
	bm.registration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		m.mu.RLock()
		defer m.mu.RUnlock()

		for name, count := range m.inflight {
			o.ObserveInt64(bm.inflight, count, metric.WithAttributes(
				attribute.String("batch.name", name),
			))
		}
		return nil
	}, bm.inflight)
	if err != nil {
		return err
	}

	if old := m.metrics.Swap(bm); old != nil {
		return old.registration.Unregister()
	}
	return nil
}
