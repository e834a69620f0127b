package dgbatch

import (
	"fmt"
	"reflect"

	"github.com/donnigundala/dg-core/contracts/foundation"
)

const (
	// Binding is the container key of the batch manager.
	Binding = "batch"

	// Version is the version of the plugin.
	Version = "1.0.0"
)

// BatchServiceProvider implements the PluginProvider interface.
// This provides a simple, plug-and-play integration for applications.
//
// The driver is taken from DriverFactory when set, otherwise it is opened
// from the registry by Config.Driver. Import a driver package (for example
// drivers/memory) to register it.
type BatchServiceProvider struct {
	// Config holds batch configuration
	// Auto-injected by dg-core if using config:"batch" tag
	Config Config `config:"batch"`

	// DriverFactory is an optional function to create the driver
	DriverFactory func(Config) (Driver, error)
}

// NewBatchServiceProvider creates a new batch service provider.
func NewBatchServiceProvider(driverFactory func(Config) (Driver, error)) *BatchServiceProvider {
	return &BatchServiceProvider{
		DriverFactory: driverFactory,
	}
}

// Name returns the name of the plugin.
func (p *BatchServiceProvider) Name() string {
	return Binding
}

// Version returns the version of the plugin.
func (p *BatchServiceProvider) Version() string {
	return Version
}

// Dependencies returns the list of dependencies.
func (p *BatchServiceProvider) Dependencies() []string {
	return []string{}
}

// Register registers the batch service provider.
func (p *BatchServiceProvider) Register(app foundation.Application) error {
	app.Singleton(Binding, func() (interface{}, error) {
		// Use provided config or default
		cfg := p.Config
		if cfg.PackageSize == 0 && cfg.MaxConcurrency == 0 && cfg.Driver == "" {
			cfg = DefaultConfig()
		}

		// Try to resolve logger (optional)
		if cfg.Logger == nil {
			if loggerInstance, err := app.Make("logger"); err == nil {
				if adapted, ok := loggerInstance.(interface {
					Debug(msg string, args ...interface{})
					Info(msg string, args ...interface{})
					Warn(msg string, args ...interface{})
					Error(msg string, args ...interface{})
				}); ok {
					cfg.Logger = &loggerAdapter{logger: adapted}
				}
			}
		}

		manager := New(cfg)

		switch {
		case p.DriverFactory != nil:
			driver, err := p.DriverFactory(cfg)
			if err != nil {
				return nil, fmt.Errorf("failed to create batch driver: %w", err)
			}
			manager.SetDriver(driver)
		case cfg.Driver != "":
			driver, err := OpenDriver(cfg)
			if err != nil {
				return nil, err
			}
			manager.SetDriver(driver)
		}

		return manager, nil
	})

	return nil
}

// Boot boots the batch service provider.
func (p *BatchServiceProvider) Boot(app foundation.Application) error {
	instance, err := app.Make(Binding)
	if err != nil {
		return nil
	}
	manager, ok := instance.(*Manager)
	if !ok {
		return nil
	}

	if err := manager.RegisterMetrics(); err != nil {
		// Metrics are optional, boot continues
		manager.logWarn("Failed to register batch metrics", err)
	}
	return nil
}

// Shutdown closes the manager and its driver.
func (p *BatchServiceProvider) Shutdown(app foundation.Application) error {
	instance, err := app.Make(Binding)
	if err != nil {
		return nil // Batch manager not initialized
	}

	manager, ok := instance.(*Manager)
	if !ok {
		return nil
	}
	return manager.Close()
}

// loggerAdapter adapts a generic logger to the Logger interface.
type loggerAdapter struct {
	logger interface {
		Debug(msg string, args ...interface{})
		Info(msg string, args ...interface{})
		Warn(msg string, args ...interface{})
		Error(msg string, args ...interface{})
	}
}

func (l *loggerAdapter) Debug(msg string, args ...interface{}) {
	l.logger.Debug(msg, args...)
}

func (l *loggerAdapter) Info(msg string, args ...interface{}) {
	l.logger.Info(msg, args...)
}

func (l *loggerAdapter) Warn(msg string, args ...interface{}) {
	l.logger.Warn(msg, args...)
}

func (l *loggerAdapter) Error(msg string, args ...interface{}) {
	l.logger.Error(msg, args...)
}

func (l *loggerAdapter) With(args ...interface{}) Logger {
	// Try to call With(args...) via reflection to support different return types
	v := reflect.ValueOf(l.logger)
	m := v.MethodByName("With")
	if m.IsValid() && m.Type().IsVariadic() {
		valArgs := make([]reflect.Value, len(args))
		for i := range args {
			// Elem keeps nil arguments valid as interface values.
			valArgs[i] = reflect.ValueOf(&args[i]).Elem()
		}
		results := m.Call(valArgs)
		if len(results) == 1 {
			if nextLogger, ok := results[0].Interface().(interface {
				Debug(msg string, args ...interface{})
				Info(msg string, args ...interface{})
				Warn(msg string, args ...interface{})
				Error(msg string, args ...interface{})
			}); ok {
				return &loggerAdapter{logger: nextLogger}
			}
		}
	}
	return &fieldLogger{next: l, fields: args}
}

// fieldLogger prepends fixed fields for loggers without a With method.
type fieldLogger struct {
	next   Logger
	fields []interface{}
}

func (l *fieldLogger) Debug(msg string, args ...interface{}) {
	l.next.Debug(msg, append(l.fields[:len(l.fields):len(l.fields)], args...)...)
}

func (l *fieldLogger) Info(msg string, args ...interface{}) {
	l.next.Info(msg, append(l.fields[:len(l.fields):len(l.fields)], args...)...)
}

func (l *fieldLogger) Warn(msg string, args ...interface{}) {
	l.next.Warn(msg, append(l.fields[:len(l.fields):len(l.fields)], args...)...)
}

func (l *fieldLogger) Error(msg string, args ...interface{}) {
	l.next.Error(msg, append(l.fields[:len(l.fields):len(l.fields)], args...)...)
}

func (l *fieldLogger) With(args ...interface{}) Logger {
	fields := append(l.fields[:len(l.fields):len(l.fields)], args...)
	return &fieldLogger{next: l.next, fields: fields}
}
