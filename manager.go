package dgbatch

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Manager is the batch dispatcher. It holds the defaults, middleware, logger,
// metrics and failed package driver shared by every batch call.
type Manager struct {
	config     Config
	driver     Driver
	logger     Logger
	middleware []Middleware
	inflight   map[string]int64
	metrics    atomic.Pointer[batchMetrics]
	mu         sync.RWMutex
}

// New creates a new batch manager.
func New(config Config) *Manager {
	logger := config.Logger
	if logger == nil {
		logger = DefaultLogger()
	}

	return &Manager{
		config:     config,
		logger:     logger.With("component", "batch"),
		middleware: make([]Middleware, 0),
		inflight:   make(map[string]int64),
	}
}

// orDefault returns m, or a manager without a driver that discards its logs
// when m is nil.
func orDefault(m *Manager) *Manager {
	if m != nil {
		return m
	}
	return New(Config{Logger: NopLogger()})
}

// SetDriver sets the failed package driver.
func (m *Manager) SetDriver(driver Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.driver = driver
}

// Driver returns the failed package driver, nil when none is set.
func (m *Manager) Driver() Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.driver
}

// Config returns the manager configuration.
func (m *Manager) Config() Config {
	return m.config
}

// BatchConfig returns the per-call defaults derived from the configuration.
func (m *Manager) BatchConfig() BatchConfig {
	return m.config.BatchConfig()
}

// Use adds middleware wrapped around every package execution.
func (m *Manager) Use(middleware Middleware) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.middleware = append(m.middleware, middleware)
	return m
}

// InFlight returns the number of packages of the named batch being processed.
func (m *Manager) InFlight(name string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inflight[name]
}

// Close unregisters metrics and closes the driver.
func (m *Manager) Close() error {
	driver := m.Driver()

	var errs []error
	if metrics := m.metrics.Swap(nil); metrics != nil {
		if err := metrics.registration.Unregister(); err != nil {
			errs = append(errs, err)
		}
	}
	if driver != nil {
		if err := driver.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// dispatchOptions builds the pool configuration for one batch call.
func (m *Manager) dispatchOptions(name, runID string, total int, config BatchConfig) dispatchOptions {
	m.mu.RLock()
	middleware := make([]Middleware, len(m.middleware), len(m.middleware)+1)
	copy(middleware, m.middleware)
	m.mu.RUnlock()

	if config.Timeout > 0 {
		middleware = append(middleware, TimeoutMiddleware(config.Timeout))
	}

	// Callbacks are serialised so callers need no locking of their own.
	var callbackMu sync.Mutex
	done := 0
	callback := func(hook string, info PackageInfo, call func()) {
		callbackMu.Lock()
		defer callbackMu.Unlock()
		defer func() {
			if r := recover(); r != nil {
				err := &PanicError{Value: r, Stack: debug.Stack()}
				m.logError("Batch callback panicked", err,
					append(packageFields(info), "callback", hook, "stack", string(err.Stack))...)
			}
		}()
		call()
	}
	notifyError := func(info PackageInfo, err error) {
		if config.OnError == nil {
			return
		}
		callback("OnError", info, func() { config.OnError(info, err) })
	}

	return dispatchOptions{
		batch:       name,
		runID:       runID,
		concurrency: config.MaxConcurrency,
		middleware:  middleware,
		hooks: poolHooks{
			onStart: func(info PackageInfo) {
				m.track(info.Batch, 1)
				m.logDebug("Package started", packageFields(info)...)
			},
			onFinish: func(info PackageInfo, d time.Duration, err error) {
				m.track(info.Batch, -1)
				m.recordPackage(info, d, err)

				if err != nil {
					m.packageFailed(info, err)
					notifyError(info, err)
					return
				}
				m.logDebug("Package completed", append(packageFields(info), "duration", d)...)

				if config.OnProgress != nil {
					callback("OnProgress", info, func() {
						done += info.Size
						config.OnProgress(done, total)
					})
				}
			},
			onSkip: func(info PackageInfo, err error) {
				m.recordPackage(info, 0, err)
				m.packageFailed(info, err)
				notifyError(info, err)
			},
		},
	}
}

// packageFailed logs a failed package.
func (m *Manager) packageFailed(info PackageInfo, err error) {
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		m.logError("Package panicked", err, append(packageFields(info), "stack", string(panicErr.Stack))...)
	} else {
		m.logWarn("Package failed", err, packageFields(info)...)
	}
}

// track adjusts the in-flight count of a batch.
func (m *Manager) track(name string, delta int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inflight[name] += delta
	if m.inflight[name] <= 0 {
		delete(m.inflight, name)
	}
}

// recordPackage records the package metrics when they are registered.
func (m *Manager) recordPackage(info PackageInfo, d time.Duration, err error) {
	metrics := m.metrics.Load()
	if metrics == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "failure"
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("batch.name", info.Batch),
		attribute.String("status", status),
	)

	metrics.packages.Add(ctx, 1, attrs)
	metrics.items.Add(ctx, int64(info.Size), attrs)
	metrics.duration.Record(ctx, float64(d.Microseconds())/1000, attrs)
}
