package dgbatch

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPartition[T any](t *testing.T, items []T, size int) []Package[T] {
	t.Helper()
	packages, err := Partition(items, size)
	require.NoError(t, err)
	return packages
}

func TestDispatch_OrderIndependentOfCompletion(t *testing.T) {
	packages := mustPartition(t, sequence(200), 7)

	for run := 0; run < 5; run++ {
		outcomes, err := Dispatch(context.Background(), packages, 4, func(ctx context.Context, pkg Package[int]) ([]int, error) {
			time.Sleep(time.Duration(rand.IntN(3000)) * time.Microsecond)
			doubled := make([]int, len(pkg.Items))
			for i, v := range pkg.Items {
				doubled[i] = v * 2
			}
			return doubled, nil
		})
		require.NoError(t, err)

		got, err := Aggregate(outcomes)
		require.NoError(t, err)

		want := make([]int, 200)
		for i := range want {
			want[i] = i * 2
		}
		assert.Equal(t, want, got)
	}
}

func TestDispatch_MaxConcurrency(t *testing.T) {
	for _, limit := range []int{1, 2, 3, 8} {
		t.Run(fmt.Sprintf("limit=%d", limit), func(t *testing.T) {
			var running, peak atomic.Int64
			packages := mustPartition(t, sequence(60), 2)

			for run := 0; run < 3; run++ {
				_, err := Dispatch(context.Background(), packages, limit, func(ctx context.Context, pkg Package[int]) (struct{}, error) {
					n := running.Add(1)
					for {
						p := peak.Load()
						if n <= p || peak.CompareAndSwap(p, n) {
							break
						}
					}
					time.Sleep(time.Duration(200+rand.IntN(800)) * time.Microsecond)
					running.Add(-1)
					return struct{}{}, nil
				})
				require.NoError(t, err)
			}

			assert.LessOrEqual(t, peak.Load(), int64(limit))
			assert.Positive(t, peak.Load())
		})
	}
}

func TestDispatch_FailureDoesNotStopOthers(t *testing.T) {
	var calls atomic.Int64
	boom := errors.New("remote rejected package")
	packages := mustPartition(t, sequence(100), 10)

	outcomes, err := Dispatch(context.Background(), packages, 3, func(ctx context.Context, pkg Package[int]) (int, error) {
		calls.Add(1)
		if pkg.Index == 4 {
			return 0, boom
		}
		return pkg.Len(), nil
	})
	require.NoError(t, err)

	assert.Equal(t, int64(len(packages)), calls.Load(), "every package is attempted")
	require.Len(t, outcomes, len(packages))
	for i, o := range outcomes {
		if i == 4 {
			assert.ErrorIs(t, o.Err, boom)
			assert.Zero(t, o.Payload)
			continue
		}
		assert.NoError(t, o.Err)
		assert.Equal(t, 10, o.Payload)
	}

	_, err = Collect(outcomes)
	var pkgErr *PackageError
	require.True(t, errors.As(err, &pkgErr))
	assert.Equal(t, 4, pkgErr.Index)
	assert.Equal(t, 40, pkgErr.Offset)
	assert.Equal(t, 10, pkgErr.Size)
	assert.ErrorIs(t, err, boom)
}

func TestDispatch_EarliestFailureWins(t *testing.T) {
	packages := mustPartition(t, sequence(50), 5)

	for run := 0; run < 10; run++ {
		outcomes, err := Dispatch(context.Background(), packages, 5, func(ctx context.Context, pkg Package[int]) ([]int, error) {
			// Later packages fail first.
			time.Sleep(time.Duration(len(packages)-pkg.Index) * 100 * time.Microsecond)
			if pkg.Index == 3 || pkg.Index == 7 || pkg.Index == 9 {
				return nil, fmt.Errorf("package %d failed", pkg.Index)
			}
			return pkg.Items, nil
		})
		require.NoError(t, err)

		_, err = Aggregate(outcomes)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "package 3 failed")

		var pkgErr *PackageError
		require.True(t, errors.As(err, &pkgErr))
		assert.Equal(t, 3, pkgErr.Index)
	}
}

func TestDispatch_IdentifiersInInputOrder(t *testing.T) {
	packages := mustPartition(t, sequence(250), 100)

	outcomes, err := Dispatch(context.Background(), packages, 3, func(ctx context.Context, pkg Package[int]) ([]string, error) {
		ids := make([]string, pkg.Len())
		for j := range ids {
			ids[j] = fmt.Sprintf("p%d-%d", pkg.Index, j)
		}
		return ids, nil
	})
	require.NoError(t, err)

	ids, err := Aggregate(outcomes)
	require.NoError(t, err)
	require.Len(t, ids, 250)
	assert.Equal(t, "p0-0", ids[0])
	assert.Equal(t, "p0-99", ids[99])
	assert.Equal(t, "p1-0", ids[100])
	assert.Equal(t, "p2-49", ids[249])
}

func TestDispatch_Empty(t *testing.T) {
	var calls atomic.Int64
	outcomes, err := Dispatch(context.Background(), []Package[int]{}, 3, func(ctx context.Context, pkg Package[int]) ([]int, error) {
		calls.Add(1)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Empty(t, outcomes)
	assert.Zero(t, calls.Load())

	ids, err := Aggregate(outcomes)
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

func TestDispatch_InvalidArguments(t *testing.T) {
	packages := mustPartition(t, sequence(3), 1)

	_, err := Dispatch(context.Background(), packages, 0, func(ctx context.Context, pkg Package[int]) (int, error) {
		return 0, nil
	})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Dispatch[int, int](context.Background(), packages, 1, nil)
	assert.ErrorIs(t, err, ErrNilProcessor)
}

func TestDispatch_PanicIsCaptured(t *testing.T) {
	packages := mustPartition(t, sequence(9), 3)

	outcomes, err := Dispatch(context.Background(), packages, 2, func(ctx context.Context, pkg Package[int]) (int, error) {
		if pkg.Index == 1 {
			panic("nil customer record")
		}
		return pkg.Len(), nil
	})
	require.NoError(t, err)

	var panicErr *PanicError
	require.True(t, errors.As(outcomes[1].Err, &panicErr))
	assert.Equal(t, "nil customer record", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)
	assert.NoError(t, outcomes[0].Err)
	assert.NoError(t, outcomes[2].Err)
}

func TestDispatch_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int64
	packages := mustPartition(t, sequence(10), 2)
	outcomes, err := Dispatch(ctx, packages, 2, func(ctx context.Context, pkg Package[int]) (int, error) {
		calls.Add(1)
		return 0, nil
	})
	require.NoError(t, err)

	assert.Zero(t, calls.Load())
	for _, o := range outcomes {
		assert.ErrorIs(t, o.Err, context.Canceled)
		assert.False(t, o.Started)
	}
}

func TestDispatch_CancelSkipsQueuedPackages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	packages := mustPartition(t, sequence(4), 1)
	outcomes, err := Dispatch(ctx, packages, 1, func(ctx context.Context, pkg Package[int]) (int, error) {
		if pkg.Index == 0 {
			cancel()
		}
		return pkg.Items[0], nil
	})
	require.NoError(t, err)

	assert.NoError(t, outcomes[0].Err, "a running package is not interrupted")
	assert.True(t, outcomes[0].Started)
	for _, o := range outcomes[1:] {
		assert.ErrorIs(t, o.Err, context.Canceled)
		assert.False(t, o.Started)
	}
}

func TestChain_Order(t *testing.T) {
	var mu sync.Mutex
	var trace []string
	record := func(s string) {
		mu.Lock()
		trace = append(trace, s)
		mu.Unlock()
	}
	named := func(name string) Middleware {
		return func(next WorkerFunc) WorkerFunc {
			return func(ctx context.Context, info PackageInfo) error {
				record(name + ":before")
				err := next(ctx, info)
				record(name + ":after")
				return err
			}
		}
	}

	h := chain(func(ctx context.Context, info PackageInfo) error {
		record("handler")
		return nil
	}, []Middleware{named("outer"), named("inner")})

	require.NoError(t, h(context.Background(), PackageInfo{}))
	assert.Equal(t, []string{"outer:before", "inner:before", "handler", "inner:after", "outer:after"}, trace)
}

func TestTimeoutMiddleware(t *testing.T) {
	h := chain(func(ctx context.Context, info PackageInfo) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	}, []Middleware{TimeoutMiddleware(10 * time.Millisecond)})

	err := h(context.Background(), PackageInfo{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWorkerPool_Hooks(t *testing.T) {
	var started, finished, skipped atomic.Int64
	pool := &workerPool{
		concurrency: 2,
		hooks: poolHooks{
			onStart:  func(info PackageInfo) { started.Add(1) },
			onFinish: func(info PackageInfo, d time.Duration, err error) { finished.Add(1) },
			onSkip:   func(info PackageInfo, err error) { skipped.Add(1) },
		},
	}

	boom := errors.New("boom")
	tasks := []task{
		{info: PackageInfo{Index: 0}, handler: func(ctx context.Context, info PackageInfo) error { return nil }},
		{info: PackageInfo{Index: 1}, handler: func(ctx context.Context, info PackageInfo) error { return boom }},
		{info: PackageInfo{Index: 2}, handler: func(ctx context.Context, info PackageInfo) error {
			time.Sleep(2 * time.Millisecond)
			return nil
		}},
	}

	results := pool.run(context.Background(), tasks)
	assert.Equal(t, int64(3), started.Load())
	assert.Equal(t, int64(3), finished.Load())
	assert.Zero(t, skipped.Load())
	assert.ErrorIs(t, results[1].err, boom)
	assert.GreaterOrEqual(t, results[2].duration, 2*time.Millisecond)
	for _, r := range results {
		assert.True(t, r.started)
	}
}
