package dgbatch

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Default dispatch settings.
const (
	// DefaultMaxConcurrency is the number of packages processed at the same time.
	DefaultMaxConcurrency = 3

	// DefaultPackageSize is the number of items per package.
	DefaultPackageSize = 100
)

// Config represents the batch manager configuration.
type Config struct {
	// Driver specifies the failed package driver (memory, redis)
	Driver string `mapstructure:"driver"`

	// Prefix is the key prefix used by drivers
	Prefix string `mapstructure:"prefix"`

	// MaxConcurrency is the default number of packages processed concurrently
	MaxConcurrency int `mapstructure:"max_concurrency"`

	// PackageSize is the default number of items per package
	PackageSize int `mapstructure:"package_size"`

	// Timeout is the default per-package deadline, zero means none
	Timeout time.Duration `mapstructure:"timeout"`

	// RecordFailures stores failed packages in the driver for later replay
	RecordFailures bool `mapstructure:"record_failures"`

	// Logger receives structured log output, DefaultLogger is used when nil
	Logger Logger `mapstructure:"-"`

	// Options contains driver-specific options
	Options map[string]interface{} `mapstructure:"options"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Driver:         "memory",
		Prefix:         "batch",
		MaxConcurrency: DefaultMaxConcurrency,
		PackageSize:    DefaultPackageSize,
		Timeout:        0,
		RecordFailures: true,
		Options:        make(map[string]interface{}),
	}
}

// BatchConfig derives the per-call configuration from the manager defaults.
func (c Config) BatchConfig() BatchConfig {
	cfg := DefaultBatchConfig()
	if c.MaxConcurrency != 0 {
		cfg.MaxConcurrency = c.MaxConcurrency
	}
	if c.PackageSize != 0 {
		cfg.PackageSize = c.PackageSize
	}
	cfg.Timeout = c.Timeout
	return cfg
}

// Decode decodes the driver options into out.
func (c Config) Decode(out interface{}) error {
	if len(c.Options) == 0 {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("failed to create options decoder: %w", err)
	}
	if err := decoder.Decode(c.Options); err != nil {
		return fmt.Errorf("failed to decode driver options: %w", err)
	}
	return nil
}

// BatchConfig is the configuration of a single batch call.
type BatchConfig struct {
	// PackageSize is the maximum number of items per package
	PackageSize int

	// MaxConcurrency is the maximum number of packages processed at once
	MaxConcurrency int

	// Timeout bounds each package's process function, zero means none
	Timeout time.Duration

	// OnProgress is called after every package with the number of items done
	OnProgress func(done, total int)

	// OnError is called for every failed package
	OnError func(info PackageInfo, err error)
}

// DefaultBatchConfig returns a batch configuration with sensible defaults.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		PackageSize:    DefaultPackageSize,
		MaxConcurrency: DefaultMaxConcurrency,
	}
}

// Validate checks that the package size and concurrency limit are positive.
func (c BatchConfig) Validate() error {
	if c.PackageSize <= 0 {
		return &ConfigurationError{Field: "PackageSize", Value: c.PackageSize}
	}
	if c.MaxConcurrency <= 0 {
		return &ConfigurationError{Field: "MaxConcurrency", Value: c.MaxConcurrency}
	}
	return nil
}
