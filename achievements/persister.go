/*
persister.go - Background writer for the unlock record

PURPOSE:
  Lets Evaluate hand the unlocked set off without waiting on disk. Save only
  records the latest set and wakes a background goroutine; bursts of saves
  collapse into one write of the newest set.

DURABILITY:
  Close flushes whatever is pending before returning, so a clean shutdown
  never loses an unlock. After Close, Save writes synchronously.

USAGE:
  p := achievements.NewAsyncPersister(recordStore, logger)
  engine := achievements.NewEngine(ctx, catalog, p)
  // ... later
  p.Close(ctx)
*/
package achievements

import (
	"context"
	"log/slog"
	"sync"
)

// AsyncPersister wraps an UnlockStore with non-blocking saves.
type AsyncPersister struct {
	next   UnlockStore
	logger *slog.Logger

	mu      sync.Mutex
	pending []string
	dirty   bool
	closed  bool
	lastErr error

	writeMu sync.Mutex // serializes take-and-write so writes stay in order

	wake chan struct{}
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewAsyncPersister starts the background writer.
func NewAsyncPersister(next UnlockStore, logger *slog.Logger) *AsyncPersister {
	if logger == nil {
		logger = slog.Default()
	}
	p := &AsyncPersister{
		next:   next,
		logger: logger,
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Load reads through to the wrapped store.
func (p *AsyncPersister) Load(ctx context.Context) []string {
	return p.next.Load(ctx)
}

// Save queues ids for writing and returns immediately.
func (p *AsyncPersister) Save(ctx context.Context, ids []string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return p.next.Save(ctx, ids)
	}
	p.pending = append(p.pending[:0:0], ids...)
	p.dirty = true
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default: // a wake-up is already queued
	}
	return nil
}

// Flush writes any pending set now and returns the write error, if any.
func (p *AsyncPersister) Flush(ctx context.Context) error {
	return p.flush(ctx)
}

// Close stops the writer after flushing. It returns ctx.Err() if ctx ends
// first, otherwise the error of the last background write.
func (p *AsyncPersister) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.stop)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *AsyncPersister) run() {
	defer p.wg.Done()
	ctx := context.Background()

	for {
		select {
		case <-p.wake:
			p.flush(ctx)
		case <-p.stop:
			p.flush(ctx)
			return
		}
	}
}

func (p *AsyncPersister) flush(ctx context.Context) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.mu.Lock()
	if !p.dirty {
		p.mu.Unlock()
		return nil
	}
	ids := p.pending
	p.pending = nil
	p.dirty = false
	p.mu.Unlock()

	err := p.next.Save(ctx, ids)

	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()

	if err != nil {
		p.logger.Error("background save of unlocked achievements failed",
			slog.Int("unlocked", len(ids)),
			slog.Any("error", err))
		return err
	}
	p.logger.Debug("unlocked achievements saved", slog.Int("unlocked", len(ids)))
	return nil
}
