package dgbatch

import (
	"errors"
	"fmt"
)

// Common batch errors.
var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrNilProcessor     = errors.New("process function cannot be nil")
	ErrPackageNotFound  = errors.New("failed package not found")
	ErrDriverNotFound   = errors.New("driver not found")
	ErrNoDriver         = errors.New("no driver configured")
	ErrScheduleExists   = errors.New("schedule already exists")
	ErrScheduleNotFound = errors.New("schedule not found")
)

// ConfigurationError reports a non-positive package size or concurrency limit.
type ConfigurationError struct {
	Field string
	Value int
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s must be positive, got %d", e.Field, e.Value)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrInvalidConfig
}

// PackageError is the failure of a single package, tagged with the package's
// position in the original input. Unwrap returns the error raised by the
// process function.
type PackageError struct {
	Batch  string
	Index  int
	Offset int
	Size   int
	Err    error
}

func (e *PackageError) Error() string {
	if e.Batch != "" {
		return fmt.Sprintf("batch %s: package %d (items %d-%d) failed: %v",
			e.Batch, e.Index, e.Offset, e.Offset+e.Size-1, e.Err)
	}
	return fmt.Sprintf("package %d (items %d-%d) failed: %v", e.Index, e.Offset, e.Offset+e.Size-1, e.Err)
}

func (e *PackageError) Unwrap() error {
	return e.Err
}

// PanicError is recorded for a package whose process function panicked.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
