package dgbatch

import (
	"fmt"
	"sort"
	"sync"
)

// DriverFactory creates a driver from the manager configuration.
type DriverFactory func(config Config) (Driver, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]DriverFactory)
)

// RegisterDriver makes a driver available by name. Drivers register themselves
// from their package init, so importing a driver package is enough to use it.
func RegisterDriver(name string, factory DriverFactory) {
	driversMu.Lock()
	defer driversMu.Unlock()

	if factory == nil {
		panic("dgbatch: RegisterDriver factory is nil")
	}
	drivers[name] = factory
}

// Drivers returns the sorted names of the registered drivers.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenDriver creates the driver named by config.Driver.
func OpenDriver(config Config) (Driver, error) {
	driversMu.RLock()
	factory, ok := drivers[config.Driver]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDriverNotFound, config.Driver)
	}

	driver, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s driver: %w", config.Driver, err)
	}
	return driver, nil
}
