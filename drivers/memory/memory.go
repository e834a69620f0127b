package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	dgbatch "github.com/donnigundala/dg-batch"
)

func init() {
	dgbatch.RegisterDriver("memory", func(config dgbatch.Config) (dgbatch.Driver, error) {
		return NewDriver(), nil
	})
}

// Driver is an in-memory failed package driver for testing and single
// process deployments. Records do not survive a restart.
type Driver struct {
	failed map[string]*dgbatch.FailedPackage
	mu     sync.RWMutex
}

// NewDriver creates a new memory driver.
func NewDriver() *Driver {
	return &Driver{
		failed: make(map[string]*dgbatch.FailedPackage),
	}
}

// Push stores a copy of the failed package, replacing a record with the same ID.
func (d *Driver) Push(ctx context.Context, pkg *dgbatch.FailedPackage) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.failed[pkg.ID] = clone(pkg)
	return nil
}

// List returns the failed packages of a batch, oldest failure first.
func (d *Driver) List(ctx context.Context, batch string) ([]*dgbatch.FailedPackage, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	list := make([]*dgbatch.FailedPackage, 0)
	for _, pkg := range d.failed {
		if pkg.Batch == batch {
			list = append(list, clone(pkg))
		}
	}

	slices.SortFunc(list, func(a, b *dgbatch.FailedPackage) int {
		if c := a.FailedAt.Compare(b.FailedAt); c != 0 {
			return c
		}
		return a.Index - b.Index
	})
	return list, nil
}

// Get gets a failed package by ID.
func (d *Driver) Get(ctx context.Context, id string) (*dgbatch.FailedPackage, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	pkg, exists := d.failed[id]
	if !exists {
		return nil, dgbatch.ErrPackageNotFound
	}
	return clone(pkg), nil
}

// Delete deletes a failed package.
func (d *Driver) Delete(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.failed[id]; !exists {
		return dgbatch.ErrPackageNotFound
	}
	delete(d.failed, id)
	return nil
}

// Size returns the number of failed packages of a batch.
func (d *Driver) Size(ctx context.Context, batch string) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var n int64
	for _, pkg := range d.failed {
		if pkg.Batch == batch {
			n++
		}
	}
	return n, nil
}

// Close drops every stored record.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.failed = make(map[string]*dgbatch.FailedPackage)
	return nil
}

func clone(pkg *dgbatch.FailedPackage) *dgbatch.FailedPackage {
	c := *pkg
	c.Metadata = maps.Clone(pkg.Metadata)
	return &c
}
