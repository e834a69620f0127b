package dgbatch

import (
	"context"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"
)

// task is one package execution handed to the pool.
type task struct {
	info    PackageInfo
	handler WorkerFunc
}

// poolHooks observe package executions. onStart and onFinish are paired;
// onSkip is called instead of both for a package that was never started.
type poolHooks struct {
	onStart  func(info PackageInfo)
	onFinish func(info PackageInfo, d time.Duration, err error)
	onSkip   func(info PackageInfo, err error)
}

// workerPool runs tasks with at most concurrency of them in flight.
type workerPool struct {
	name        string
	concurrency int
	hooks       poolHooks
}

// taskResult is what the pool learned about one task.
type taskResult struct {
	duration time.Duration
	err      error
	started  bool
}

// run starts tasks in order as slots free up and returns once every task
// has finished. results[i] belongs to tasks[i].
func (p *workerPool) run(ctx context.Context, tasks []task) []taskResult {
	results := make([]taskResult, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	var g errgroup.Group
	g.SetLimit(p.concurrency)

	for i := range tasks {
		// Each slot has a single writer and is read only after Wait.
		g.Go(func() error {
			results[i] = p.execute(ctx, tasks[i])
			return nil
		})
	}

	// Failures live in results; the group itself never returns one.
	_ = g.Wait()

	return results
}

// execute runs a single task, converting a panic into a PanicError.
func (p *workerPool) execute(ctx context.Context, t task) (res taskResult) {
	// Packages still queued when ctx is done are not attempted.
	if err := ctx.Err(); err != nil {
		if p.hooks.onSkip != nil {
			p.hooks.onSkip(t.info, err)
		}
		return taskResult{err: err}
	}

	res.started = true
	if p.hooks.onStart != nil {
		p.hooks.onStart(t.info)
	}
	if p.hooks.onFinish != nil {
		defer func() {
			p.hooks.onFinish(t.info, res.duration, res.err)
		}()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.err = &PanicError{Value: r, Stack: debug.Stack()}
		}
		res.duration = time.Since(start)
	}()

	res.err = t.handler(ctx, t.info)
	return res
}

// chain wraps h so that mws[0] is the outermost middleware.
func chain(h WorkerFunc, mws []Middleware) WorkerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
