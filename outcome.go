package dgbatch

import "time"

// Outcome is the result of processing one package. Exactly one of Payload
// and Err is meaningful.
type Outcome[T, R any] struct {
	Package  Package[T]
	Payload  R
	Err      error
	Duration time.Duration

	// Started is false for a package skipped because the context was done
	// before a worker picked it up.
	Started bool
}

// Failed reports whether the package failed.
func (o Outcome[T, R]) Failed() bool {
	return o.Err != nil
}

// firstFailure returns the failure of the earliest failed outcome, wrapped
// with its package position.
func firstFailure[T, R any](batch string, outcomes []Outcome[T, R]) error {
	for _, o := range outcomes {
		if o.Err != nil {
			return &PackageError{
				Batch:  batch,
				Index:  o.Package.Index,
				Offset: o.Package.Offset,
				Size:   o.Package.Len(),
				Err:    o.Err,
			}
		}
	}
	return nil
}

// Aggregate concatenates the payloads of outcomes in package order. If any
// package failed it returns the failure of the earliest one instead.
func Aggregate[T, E any](outcomes []Outcome[T, []E]) ([]E, error) {
	if err := firstFailure("", outcomes); err != nil {
		return nil, err
	}
	return concat(outcomes), nil
}

// Collect returns one payload per package in package order, or the failure
// of the earliest failed package.
func Collect[T, R any](outcomes []Outcome[T, R]) ([]R, error) {
	if err := firstFailure("", outcomes); err != nil {
		return nil, err
	}
	payloads := make([]R, len(outcomes))
	for i, o := range outcomes {
		payloads[i] = o.Payload
	}
	return payloads, nil
}

func concat[T, E any](outcomes []Outcome[T, []E]) []E {
	n := 0
	for _, o := range outcomes {
		n += len(o.Payload)
	}
	out := make([]E, 0, n)
	for _, o := range outcomes {
		if o.Err == nil {
			out = append(out, o.Payload...)
		}
	}
	return out
}
