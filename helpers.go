package dgbatch

import (
	"fmt"

	"github.com/donnigundala/dg-core/contracts/foundation"
)

// Resolve resolves the batch manager from the application container.
func Resolve(app foundation.Application) (*Manager, error) {
	instance, err := app.Make(Binding)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve batch manager: %w", err)
	}

	manager, ok := instance.(*Manager)
	if !ok {
		return nil, fmt.Errorf("resolved instance is not a batch manager")
	}

	return manager, nil
}

// MustResolve resolves the batch manager or panics.
func MustResolve(app foundation.Application) *Manager {
	manager, err := Resolve(app)
	if err != nil {
		panic(err)
	}
	return manager
}

// Injectable provides a convenient way to inject the batch manager.
// Embed this struct in domain services that issue bulk operations.
type Injectable struct {
	app foundation.Application
}

// NewInjectable creates a new Injectable instance.
func NewInjectable(app foundation.Application) *Injectable {
	return &Injectable{app: app}
}

// Batch returns the batch manager.
// Panics if the manager cannot be resolved.
func (i *Injectable) Batch() *Manager {
	return MustResolve(i.app)
}
