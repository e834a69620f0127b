package dgbatch

import (
	"context"
)

// PackageInfo describes the package a WorkerFunc is processing.
type PackageInfo struct {
	// Batch is the batch name given to Run
	Batch string

	// RunID identifies the Run call
	RunID string

	// Index is the package position, starting at 0
	Index int

	// Offset is the input position of the first item
	Offset int

	// Size is the number of items in the package
	Size int
}

// ProcessFunc processes one package and returns its payload.
type ProcessFunc[T, R any] func(ctx context.Context, pkg Package[T]) (R, error)

// WorkerFunc is the untyped form of a package execution seen by middleware.
type WorkerFunc func(ctx context.Context, info PackageInfo) error

// Middleware wraps every package execution.
type Middleware func(next WorkerFunc) WorkerFunc

// ScheduleHandler is the function signature for scheduled handlers.
type ScheduleHandler func() error

// Driver is the interface for failed package storage drivers.
type Driver interface {
	// Push stores a failed package, replacing any record with the same ID
	Push(ctx context.Context, pkg *FailedPackage) error

	// List returns the failed packages of a batch ordered by failure time and index
	List(ctx context.Context, batch string) ([]*FailedPackage, error)

	// Get gets a failed package by ID
	Get(ctx context.Context, id string) (*FailedPackage, error)

	// Delete deletes a failed package
	Delete(ctx context.Context, id string) error

	// Size returns the number of failed packages stored for a batch
	Size(ctx context.Context, batch string) (int64, error)

	// Close closes the driver
	Close() error
}
