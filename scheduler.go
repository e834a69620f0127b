package dgbatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler runs handlers on cron schedules, typically to replay failed
// packages of a batch.
type Scheduler struct {
	cron    *cron.Cron
	manager *Manager
	entries map[string]cron.EntryID
	mu      sync.RWMutex
}

// NewScheduler creates a new scheduler.
func NewScheduler(manager *Manager) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		manager: manager,
		entries: make(map[string]cron.EntryID),
	}
}

// Schedule schedules a handler using cron syntax.
// cronExpr: Cron expression (e.g., "*/5 * * * *" for every 5 minutes)
// name: Unique name for this schedule
// handler: Function to execute on schedule
func (s *Scheduler) Schedule(cronExpr, name string, handler ScheduleHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("%w: %s", ErrScheduleExists, name)
	}

	entryID, err := s.cron.AddFunc(cronExpr, func() {
		if err := handler(); err != nil {
			s.manager.logError("Scheduled handler failed", err, "schedule", name)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	s.entries[name] = entryID
	return nil
}

// ScheduleReplay replays the failed packages of the named batch on a cron
// schedule, using the manager's default batch configuration.
func ScheduleReplay[T, R any](s *Scheduler, cronExpr, batch string, fn ProcessFunc[T, R]) error {
	if fn == nil {
		return ErrNilProcessor
	}
	return s.Schedule(cronExpr, "replay_"+batch, func() error {
		_, err := Replay(context.Background(), s.manager, batch, s.manager.BatchConfig(), fn)
		return err
	})
}

// Remove removes a schedule.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, exists := s.entries[name]
	if !exists {
		return fmt.Errorf("%w: %s", ErrScheduleNotFound, name)
	}

	s.cron.Remove(entryID)
	delete(s.entries, name)
	return nil
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler. The returned context is done once running
// handlers have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Count returns the number of schedules.
func (s *Scheduler) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
