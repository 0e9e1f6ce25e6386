/*
engine.go - Achievement evaluation engine

PURPOSE:
  Evaluates the rule battery against a full goals snapshot and grows the
  unlocked set. Reports which achievements were unlocked by each pass.

EVALUATION PASS:
  1. Clear the recently-unlocked list
  2. Run every rule in order; a passing rule unlocks its id if not yet held
  3. If anything was unlocked: save the whole set once, then emit one
     "updated" signal (no payload; listeners re-query the engine)

GUARANTEES:
  - At most one Save and one signal per pass, none when nothing changed
  - Evaluating the same snapshot twice returns nothing the second time
  - Save failures are logged; the in-memory set stays authoritative

ATTRIBUTION:
  UnlockedBy answers "what did this mutation unlock" from the mutation's own
  before/after snapshots: a rule counts only if it fails before and passes
  after, and its id is held now but was not held before the mutation.
  Passes driven by other mutations or by the scheduler are not credited.

CONCURRENCY:
  One mutex covers a whole pass and all accessors. The updated signal is
  emitted after the mutex is released so listeners can call back in.

SEE ALSO:
  - rules.go: Rule battery
  - store.go: UnlockStore
  - persister.go: Non-blocking saves
*/
package achievements

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nestegg/savings-engine/events"
	"github.com/nestegg/savings-engine/goals"
)

// GoalSource is the read side of the goal ledger the engine watches.
type GoalSource interface {
	Goals() []goals.Goal
	Subscribe(fn func()) (unsubscribe func())
}

// Status pairs a definition with its unlocked flag.
type Status struct {
	Definition
	Unlocked bool
}

// Engine keeps the unlocked set.
type Engine struct {
	mu       sync.Mutex
	catalog  *Catalog
	rules    []Rule
	store    UnlockStore
	unlocked []string // unlock order
	index    map[string]struct{}
	recent   []Definition

	updated events.Emitter
	logger  *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithRules replaces the default rule battery.
func WithRules(rules []Rule) EngineOption {
	return func(e *Engine) { e.rules = rules }
}

// NewEngine loads the unlocked set from store. Ids not in catalog and
// duplicates are dropped.
func NewEngine(ctx context.Context, catalog *Catalog, store UnlockStore, opts ...EngineOption) *Engine {
	e := &Engine{
		catalog: catalog,
		rules:   DefaultRules(),
		store:   store,
		index:   make(map[string]struct{}),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, id := range store.Load(ctx) {
		if !catalog.Has(id) {
			e.logger.Warn("dropping unknown achievement id from unlock record", slog.String("id", id))
			continue
		}
		if _, dup := e.index[id]; dup {
			continue
		}
		e.index[id] = struct{}{}
		e.unlocked = append(e.unlocked, id)
	}

	e.logger.Debug("achievement engine loaded",
		slog.Int("unlocked", len(e.unlocked)),
		slog.Int("catalog", catalog.Len()))
	return e
}

// Evaluate runs one pass over snapshot and returns the achievements it newly
// unlocked, in rule order. An empty snapshot is valid and unlocks nothing.
func (e *Engine) Evaluate(ctx context.Context, snapshot []goals.Goal) []Definition {
	e.mu.Lock()
	e.recent = nil
	for _, r := range e.rules {
		if _, held := e.index[r.ID]; held {
			continue
		}
		if r.Check(snapshot) {
			e.unlockIfNeeded(r.ID)
		}
	}

	if len(e.recent) == 0 {
		e.mu.Unlock()
		return nil
	}

	if err := e.store.Save(ctx, e.unlockedLocked()); err != nil {
		e.logger.Error("failed to persist unlocked achievements",
			slog.Int("unlocked", len(e.unlocked)),
			slog.Any("error", err))
	}
	newly := make([]Definition, len(e.recent))
	copy(newly, e.recent)
	e.mu.Unlock()

	for _, d := range newly {
		e.logger.Info("achievement unlocked",
			slog.String("id", d.ID),
			slog.Int("points", d.Points))
	}
	e.updated.Emit()
	return newly
}

// unlockIfNeeded inserts id unless it is already held or unknown.
// Caller holds e.mu.
func (e *Engine) unlockIfNeeded(id string) {
	if _, held := e.index[id]; held {
		return
	}
	def, ok := e.catalog.ByID(id)
	if !ok {
		e.logger.Warn("rule references unknown achievement", slog.String("id", id))
		return
	}
	e.index[id] = struct{}{}
	e.unlocked = append(e.unlocked, id)
	e.recent = append(e.recent, def)
}

// Watch re-evaluates on every change signal from source, pulling a fresh
// snapshot each time. It also evaluates once immediately so goals that
// existed before the engine started are accounted for.
func (e *Engine) Watch(ctx context.Context, source GoalSource) (stop func()) {
	stop = source.Subscribe(func() {
		e.Evaluate(ctx, source.Goals())
	})
	e.Evaluate(ctx, source.Goals())
	return stop
}

// UnlockedBy returns, in rule order, the achievements that change unlocked.
// prior is the unlocked set read before the mutation was applied.
func (e *Engine) UnlockedBy(prior []string, change goals.Change) []Definition {
	skip := make(map[string]struct{}, len(prior))
	for _, id := range prior {
		skip[id] = struct{}{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Definition
	for _, r := range e.rules {
		if _, ok := skip[r.ID]; ok {
			continue
		}
		if _, held := e.index[r.ID]; !held {
			continue
		}
		if r.Check(change.Before) || !r.Check(change.After) {
			continue
		}
		if d, ok := e.catalog.ByID(r.ID); ok {
			out = append(out, d)
			skip[r.ID] = struct{}{}
		}
	}
	return out
}

// Subscribe registers fn to run after each pass that unlocked something.
func (e *Engine) Subscribe(fn func()) (unsubscribe func()) {
	return e.updated.Subscribe(fn)
}

// IsUnlocked reports whether id has been unlocked.
func (e *Engine) IsUnlocked(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.index[id]
	return ok
}

// TotalPoints sums points over unlocked catalog entries.
func (e *Engine) TotalPoints() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	total := 0
	for _, d := range e.catalog.defs {
		if _, ok := e.index[d.ID]; ok {
			total += d.Points
		}
	}
	return total
}

// Unlocked returns the unlocked ids in unlock order.
func (e *Engine) Unlocked() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unlockedLocked()
}

func (e *Engine) unlockedLocked() []string {
	out := make([]string, len(e.unlocked))
	copy(out, e.unlocked)
	return out
}

// RecentlyUnlocked returns what the most recent pass unlocked.
func (e *Engine) RecentlyUnlocked() []Definition {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Definition, len(e.recent))
	copy(out, e.recent)
	return out
}

// Statuses returns every catalog entry with its unlocked flag, in catalog
// order.
func (e *Engine) Statuses() []Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Status, len(e.catalog.defs))
	for i, d := range e.catalog.defs {
		_, ok := e.index[d.ID]
		out[i] = Status{Definition: d, Unlocked: ok}
	}
	return out
}

// Catalog returns the engine's catalog.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}
