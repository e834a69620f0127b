package dgbatch

// Package is a contiguous run of input items dispatched as one unit of work.
type Package[T any] struct {
	// Index is the package position, starting at 0.
	Index int

	// Offset is the input position of the first item.
	Offset int

	// Items holds the package items in input order.
	Items []T
}

// Len returns the number of items in the package.
func (p Package[T]) Len() int {
	return len(p.Items)
}

// Info returns the untyped description of the package.
func (p Package[T]) Info() PackageInfo {
	return PackageInfo{Index: p.Index, Offset: p.Offset, Size: len(p.Items)}
}

// PackageCount returns the number of packages needed for n items.
func PackageCount(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}
	count := n / size
	if n%size > 0 {
		count++
	}
	return count
}

// Partition splits items into packages of at most size items, keeping order.
// An empty input yields no packages.
func Partition[T any](items []T, size int) ([]Package[T], error) {
	if size <= 0 {
		return nil, &ConfigurationError{Field: "PackageSize", Value: size}
	}

	packages := make([]Package[T], 0, PackageCount(len(items), size))
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		packages = append(packages, Package[T]{
			Index:  len(packages),
			Offset: start,
			// Capacity is clipped so an append cannot spill into the next package.
			Items: items[start:end:end],
		})
	}

	return packages, nil
}
