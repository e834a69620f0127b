package dgbatch

import (
	"time"

	"github.com/google/uuid"
)

// Status summarises the outcomes of a batch.
type Status string

const (
	StatusEmpty          Status = "empty"
	StatusCompleted      Status = "completed"
	StatusPartialFailure Status = "partial_failure"
	StatusFailed         Status = "failed"
)

func (s Status) String() string { return string(s) }

// Result holds the outcomes of one Run or Replay call, in package order.
type Result[T, R any] struct {
	ID          string
	Name        string
	Config      BatchConfig
	Total       int
	Outcomes    []Outcome[T, R]
	StartedAt   time.Time
	CompletedAt time.Time
}

func newResult[T, R any](name string, config BatchConfig, total int) *Result[T, R] {
	return &Result[T, R]{
		ID:        uuid.New().String(),
		Name:      name,
		Config:    config,
		Total:     total,
		StartedAt: time.Now(),
	}
}

// Err returns the failure of the earliest failed package, or nil.
func (r *Result[T, R]) Err() error {
	return firstFailure(r.Name, r.Outcomes)
}

// Failed returns the failed outcomes in package order.
func (r *Result[T, R]) Failed() []Outcome[T, R] {
	var failed []Outcome[T, R]
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// Succeeded returns the number of packages that succeeded.
func (r *Result[T, R]) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

// Payloads returns the payloads of the successful packages in package order.
func (r *Result[T, R]) Payloads() []R {
	payloads := make([]R, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if o.Err == nil {
			payloads = append(payloads, o.Payload)
		}
	}
	return payloads
}

// FailedItems returns the items of every failed package in input order, so
// a caller can resubmit only those.
func (r *Result[T, R]) FailedItems() []T {
	var items []T
	for _, o := range r.Outcomes {
		if o.Err != nil {
			items = append(items, o.Package.Items...)
		}
	}
	return items
}

// Status returns the overall state of the batch.
func (r *Result[T, R]) Status() Status {
	if len(r.Outcomes) == 0 {
		return StatusEmpty
	}
	switch r.Succeeded() {
	case len(r.Outcomes):
		return StatusCompleted
	case 0:
		return StatusFailed
	default:
		return StatusPartialFailure
	}
}

// Progress returns the percentage of items in successful packages.
func (r *Result[T, R]) Progress() float64 {
	if r.Total == 0 {
		return 0
	}
	done := 0
	for _, o := range r.Outcomes {
		if o.Err == nil {
			done += o.Package.Len()
		}
	}
	return float64(done) / float64(r.Total) * 100
}

// Duration returns the wall time of the batch.
func (r *Result[T, R]) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}
