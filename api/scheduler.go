/*
scheduler.go - Periodic achievement re-evaluation

PURPOSE:
  The engine normally evaluates on every ledger change. The scheduler runs
  an extra pass on a fixed interval against a fresh snapshot so that rules
  added in a new release apply to goals nobody has touched since, and
  flushes the unlock writer if it buffers.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs one pass immediately on start
  - A pass that unlocks nothing writes nothing (engine guarantee)

CONFIGURATION:
  - CheckInterval: How often to run (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewReevaluationScheduler(ledger, engine, persister, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nestegg/savings-engine/achievements"
	"github.com/nestegg/savings-engine/goals"
)

// Flusher is implemented by unlock stores that buffer writes.
type Flusher interface {
	Flush(ctx context.Context) error
}

// ReevaluationScheduler re-runs achievement evaluation on a timer.
type ReevaluationScheduler struct {
	Ledger        *goals.Ledger
	Engine        *achievements.Engine
	Flusher       Flusher // may be nil
	CheckInterval time.Duration
	Enabled       bool

	logger *slog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewReevaluationScheduler creates a new scheduler.
func NewReevaluationScheduler(ledger *goals.Ledger, engine *achievements.Engine, flusher Flusher, logger *slog.Logger) *ReevaluationScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReevaluationScheduler{
		Ledger:        ledger,
		Engine:        engine,
		Flusher:       flusher,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		logger:        logger.With(slog.String("component", "scheduler")),
	}
}

// Start begins the scheduler.
func (rs *ReevaluationScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled || rs.CheckInterval <= 0 {
		rs.logger.Info("scheduler disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run(rs.ticker.C, rs.stop)

	rs.logger.Info("scheduler started", slog.Duration("interval", rs.CheckInterval))
}

// Stop stops the scheduler and waits for a running pass to finish.
func (rs *ReevaluationScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		rs.logger.Info("scheduler stopped")
	}
}

func (rs *ReevaluationScheduler) run(tick <-chan time.Time, stop <-chan struct{}) {
	defer rs.wg.Done()

	// Run immediately on start
	rs.RunOnce(context.Background())

	for {
		select {
		case <-tick:
			rs.RunOnce(context.Background())
		case <-stop:
			return
		}
	}
}

// RunOnce evaluates the current snapshot and flushes pending writes. It
// returns the achievements the pass unlocked.
func (rs *ReevaluationScheduler) RunOnce(ctx context.Context) []achievements.Definition {
	snapshot := rs.Ledger.Goals()
	newly := rs.Engine.Evaluate(ctx, snapshot)

	rs.logger.Debug("re-evaluation pass",
		slog.Int("goals", len(snapshot)),
		slog.Int("unlocked", len(newly)))

	if rs.Flusher != nil {
		if err := rs.Flusher.Flush(ctx); err != nil {
			rs.logger.Warn("flush of unlocked achievements failed", slog.Any("error", err))
		}
	}
	return newly
}
