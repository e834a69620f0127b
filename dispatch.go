package dgbatch

import (
	"context"
	"time"
)

// dispatchOptions carries everything dispatch needs besides the packages.
type dispatchOptions struct {
	batch       string
	runID       string
	concurrency int
	middleware  []Middleware
	hooks       poolHooks
}

// Dispatch calls fn once for every package with at most maxConcurrency calls
// running at the same time, and blocks until all of them have returned.
//
// A failure or panic in one package is recorded on its outcome and never
// stops the other packages from being processed. Outcomes are returned in
// package order regardless of completion order. The only errors returned are
// for an invalid limit or a nil fn.
//
// When ctx is done, packages that have not started yet are recorded as
// failed with ctx.Err() without calling fn. Running calls are not interrupted.
func Dispatch[T, R any](ctx context.Context, packages []Package[T], maxConcurrency int, fn ProcessFunc[T, R]) ([]Outcome[T, R], error) {
	if maxConcurrency <= 0 {
		return nil, &ConfigurationError{Field: "MaxConcurrency", Value: maxConcurrency}
	}
	if fn == nil {
		return nil, ErrNilProcessor
	}
	return dispatch(ctx, packages, fn, dispatchOptions{concurrency: maxConcurrency}), nil
}

func dispatch[T, R any](ctx context.Context, packages []Package[T], fn ProcessFunc[T, R], opts dispatchOptions) []Outcome[T, R] {
	payloads := make([]R, len(packages))
	tasks := make([]task, len(packages))

	for i, pkg := range packages {
		info := pkg.Info()
		info.Batch = opts.batch
		info.RunID = opts.runID

		handler := func(ctx context.Context, _ PackageInfo) error {
			payload, err := fn(ctx, pkg)
			if err != nil {
				return err
			}
			payloads[i] = payload
			return nil
		}
		tasks[i] = task{info: info, handler: chain(handler, opts.middleware)}
	}

	pool := &workerPool{
		name:        opts.batch,
		concurrency: opts.concurrency,
		hooks:       opts.hooks,
	}
	results := pool.run(ctx, tasks)

	outcomes := make([]Outcome[T, R], len(packages))
	for i, pkg := range packages {
		outcomes[i] = Outcome[T, R]{
			Package:  pkg,
			Duration: results[i].duration,
			Err:      results[i].err,
			Started:  results[i].started,
		}
		if results[i].err == nil {
			outcomes[i].Payload = payloads[i]
		}
	}
	return outcomes
}

// TimeoutMiddleware gives every package a deadline of d. The process function
// has to honour its context for the deadline to take effect.
func TimeoutMiddleware(d time.Duration) Middleware {
	return func(next WorkerFunc) WorkerFunc {
		return func(ctx context.Context, info PackageInfo) error {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, info)
		}
	}
}
