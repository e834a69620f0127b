package dgbatch

import (
	"context"
	"time"
)

// Run splits items into packages of config.PackageSize, processes them with
// fn under config.MaxConcurrency and returns once every package is done.
//
// The result always holds one outcome per package in input order. The
// returned error is nil, a *ConfigurationError, ErrNilProcessor, or the
// *PackageError of the earliest failed package. Successful packages are never
// undone when a sibling fails.
//
// A nil m runs the batch on a manager with no driver that discards its logs.
func Run[T, R any](ctx context.Context, m *Manager, name string, items []T, config BatchConfig, fn ProcessFunc[T, R]) (*Result[T, R], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, ErrNilProcessor
	}
	m = orDefault(m)

	packages, err := Partition(items, config.PackageSize)
	if err != nil {
		return nil, err
	}

	res := newResult[T, R](name, config, len(items))
	if len(packages) == 0 {
		res.CompletedAt = res.StartedAt
		return res, nil
	}

	m.logInfo("Batch started",
		"batch", name,
		"run_id", res.ID,
		"items", len(items),
		"packages", len(packages),
		"max_concurrency", config.MaxConcurrency,
	)

	res.Outcomes = dispatch(ctx, packages, fn, m.dispatchOptions(name, res.ID, len(items), config))
	res.CompletedAt = time.Now()

	recordFailures(ctx, m, res)
	m.logFinished(name, res.ID, res.Status(), len(res.Outcomes), len(res.Failed()), res.Duration())

	return res, res.Err()
}

// Map runs fn for every package and concatenates the returned slices in
// input order, e.g. the ids created by a bulk insert. If any package failed
// it returns the failure of the earliest one.
func Map[T, E any](ctx context.Context, m *Manager, name string, items []T, config BatchConfig, fn func(ctx context.Context, pkg Package[T]) ([]E, error)) ([]E, error) {
	if fn == nil {
		return nil, ErrNilProcessor
	}

	res, err := Run(ctx, m, name, items, config, ProcessFunc[T, []E](fn))
	if err != nil {
		return nil, err
	}
	return concat(res.Outcomes), nil
}

// Each runs fn for every package of a batch that produces no payload, such
// as a bulk delete.
func Each[T any](ctx context.Context, m *Manager, name string, items []T, config BatchConfig, fn func(ctx context.Context, pkg Package[T]) error) error {
	if fn == nil {
		return ErrNilProcessor
	}

	_, err := Run[T, struct{}](ctx, m, name, items, config, func(ctx context.Context, pkg Package[T]) (struct{}, error) {
		return struct{}{}, fn(ctx, pkg)
	})
	return err
}

// recordFailures stores the failed packages of res in the manager's driver.
// Storage errors are logged and never change the batch result.
func recordFailures[T, R any](ctx context.Context, m *Manager, res *Result[T, R]) {
	driver := m.Driver()
	if !m.config.RecordFailures || driver == nil {
		return
	}

	// The batch is over; a cancelled caller context must not lose the record.
	ctx = context.WithoutCancel(ctx)

	for _, o := range res.Failed() {
		info := o.Package.Info()
		info.Batch = res.Name
		info.RunID = res.ID

		fp, err := NewFailedPackage(res.Name, res.ID, o.Package, o.Err)
		if err != nil {
			m.logError("Failed to encode failed package", err, packageFields(info)...)
			continue
		}
		if !o.Started {
			fp.Attempts = 0
		}
		if err := driver.Push(ctx, fp); err != nil {
			m.logError("Failed to record failed package", err, packageFields(info)...)
			continue
		}
		m.logDebug("Recorded failed package", append(packageFields(info), "id", fp.ID)...)
	}
}
