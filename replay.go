package dgbatch

import (
	"context"
	"fmt"
	"time"
)

// Replay processes the failed packages stored for the named batch again, with
// the same bounded concurrency as Run. Each stored package is dispatched as
// it was recorded, without re-partitioning. Packages that succeed are removed
// from the driver; packages that fail again keep their record with the
// attempt count and error updated.
//
// Packages skipped because ctx was done keep their record unchanged.
//
// Replay is only ever invoked by a caller or a Scheduler; Run never retries.
// A nil m has no driver, so Replay returns ErrNoDriver.
func Replay[T, R any](ctx context.Context, m *Manager, name string, config BatchConfig, fn ProcessFunc[T, R]) (*Result[T, R], error) {
	if config.MaxConcurrency <= 0 {
		return nil, &ConfigurationError{Field: "MaxConcurrency", Value: config.MaxConcurrency}
	}
	if fn == nil {
		return nil, ErrNilProcessor
	}

	m = orDefault(m)
	driver := m.Driver()
	if driver == nil {
		return nil, ErrNoDriver
	}

	records, err := driver.List(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed packages of %s: %w", name, err)
	}

	packages := make([]Package[T], 0, len(records))
	kept := make([]*FailedPackage, 0, len(records))
	total := 0
	for _, rec := range records {
		pkg, err := PackageOf[T](rec)
		if err != nil {
			m.logError("Skipping undecodable failed package", err, "batch", name, "id", rec.ID)
			continue
		}
		packages = append(packages, pkg)
		kept = append(kept, rec)
		total += pkg.Len()
	}

	res := newResult[T, R](name, config, total)
	if len(packages) == 0 {
		res.CompletedAt = res.StartedAt
		return res, nil
	}

	m.logInfo("Replay started", "batch", name, "run_id", res.ID, "packages", len(packages))

	res.Outcomes = dispatch(ctx, packages, fn, m.dispatchOptions(name, res.ID, total, config))
	res.CompletedAt = time.Now()

	settle(context.WithoutCancel(ctx), m, driver, kept, res.Outcomes)
	m.logFinished(name, res.ID, res.Status(), len(res.Outcomes), len(res.Failed()), res.Duration())

	return res, res.Err()
}

// settle removes replayed packages that succeeded and updates the ones that
// failed again. records[i] belongs to outcomes[i].
func settle[T, R any](ctx context.Context, m *Manager, driver Driver, records []*FailedPackage, outcomes []Outcome[T, R]) {
	for i, o := range outcomes {
		rec := records[i]
		if o.Err == nil {
			if err := driver.Delete(ctx, rec.ID); err != nil {
				m.logError("Failed to delete replayed package", err, "batch", rec.Batch, "id", rec.ID)
			}
			continue
		}
		if !o.Started {
			continue
		}

		rec.MarkAttempt(o.Err)
		if err := driver.Push(ctx, rec); err != nil {
			m.logError("Failed to update failed package", err, "batch", rec.Batch, "id", rec.ID)
		}
	}
}
