package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/custodia-labs/relaysync/internal/core/domain"
	"github.com/custodia-labs/relaysync/internal/core/ports/driven"
	"github.com/custodia-labs/relaysync/internal/core/ports/driving"
	"github.com/custodia-labs/relaysync/internal/logger"
)

// DefaultSyncInterval is used when the scheduler is configured without
// an explicit interval.
const DefaultSyncInterval = 15 * time.Minute

// Scheduler periodically triggers sync for every (account, kind) pair
// that opted into auto-sync. It is a pure core service with no external
// control API.
type Scheduler struct {
	interval time.Duration
	states   driven.SyncStateStore
	engine   driving.SyncEngine

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler. A non-positive interval falls back
// to DefaultSyncInterval.
func NewScheduler(interval time.Duration, states driven.SyncStateStore, engine driving.SyncEngine) *Scheduler {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	return &Scheduler{
		interval: interval,
		states:   states,
		engine:   engine,
	}
}

// Start begins the scheduler loop. This method blocks until Stop is
// called or the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// First tick immediately so auto-sync pairs don't wait a full
	// interval after startup.
	s.runDue(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// Stop gracefully shuts down the scheduler and waits for in-flight
// passes it started.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// RunOnce triggers one scheduling round synchronously. Used by the CLI
// and by tests.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.runDue(ctx)
	s.wg.Wait()
}

// runDue triggers sync for every auto-sync pair not already syncing.
func (s *Scheduler) runDue(ctx context.Context) {
	statesList, err := s.states.List(ctx)
	if err != nil {
		logger.Warn("Scheduler failed to list sync states: %v", err)
		return
	}

	for _, st := range statesList {
		if !st.AutoSync || !st.SyncEnabled || st.Status == domain.RunSyncing {
			continue
		}
		accountID, kind := st.AccountID, st.Kind
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if _, err := s.engine.TriggerSync(ctx, accountID, kind, false); err != nil {
				// Lost the begin race to a manual trigger; not a fault.
				if errors.Is(err, domain.ErrSyncInProgress) {
					return
				}
				logger.Warn("Scheduled sync for %s/%s failed: %v", accountID, kind, err)
			}
		}()
	}
}
