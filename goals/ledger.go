/*
ledger.go - The goal collection and its change signal

PURPOSE:
  Ledger owns the ordered list of goals. Every mutation is written to the
  Store first and only then applied in memory, so a failed write leaves the
  collection untouched. After a successful mutation the ledger emits one
  "changed" signal with no payload; listeners pull a fresh snapshot with
  Goals().

OPERATIONS:
  Create:     validate + insert a goal
  Delete:     remove a goal and its contributions
  Contribute: append a contribution, clamped to the remaining amount

CHANGES:
  CreateWithChange and ContributeWithChange also return the collection as it
  was right before and right after the mutation, captured under the same
  lock. Mutations made by other callers are on both sides or on neither.

CONCURRENCY:
  A RWMutex guards the in-memory collection. Listeners are notified after the
  lock is released so they may call Goals() from inside the callback.

SEE ALSO:
  - store.go: Persistence contract
  - events/emitter.go: Change notifications
  - achievements/engine.go: Subscribes to the change signal
*/
package goals

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nestegg/savings-engine/events"
)

// Change is the goal collection on either side of one mutation.
type Change struct {
	Before []Goal
	After  []Goal
}

// Ledger is the source of truth for goal state.
type Ledger struct {
	mu      sync.RWMutex
	store   Store
	goals   []Goal
	changed events.Emitter

	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the ledger's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger loads all goals from store.
func NewLedger(ctx context.Context, store Store, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	loaded, err := store.ListGoals(ctx)
	if err != nil {
		return nil, fmt.Errorf("load goals: %w", err)
	}
	l.goals = loaded
	l.logger.Debug("goal ledger loaded", slog.Int("goals", len(loaded)))
	return l, nil
}

// Subscribe registers fn to run after every mutation.
func (l *Ledger) Subscribe(fn func()) func() {
	return l.changed.Subscribe(fn)
}

// Goals returns a copy of the current collection in creation order.
func (l *Ledger) Goals() []Goal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshotLocked()
}

func (l *Ledger) snapshotLocked() []Goal {
	out := make([]Goal, len(l.goals))
	copy(out, l.goals)
	return out
}

// Get returns a single goal.
func (l *Ledger) Get(id uuid.UUID) (Goal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	i := l.indexOf(id)
	if i < 0 {
		return Goal{}, &NotFoundError{ID: id}
	}
	return l.goals[i], nil
}

// Create validates and inserts a new goal.
func (l *Ledger) Create(ctx context.Context, in NewGoal) (Goal, error) {
	g, _, err := l.CreateWithChange(ctx, in)
	return g, err
}

// CreateWithChange is Create that also returns the collection before and
// after the insert.
func (l *Ledger) CreateWithChange(ctx context.Context, in NewGoal) (Goal, Change, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Goal{}, Change{}, ErrEmptyTitle
	}
	if in.Target.IsNegative() {
		return Goal{}, Change{}, ErrInvalidTarget
	}

	g := Goal{
		ID:            uuid.New(),
		Title:         title,
		TargetAmount:  in.Target,
		CurrentAmount: decimal.Zero,
		CreatedAt:     l.now().UTC(),
	}
	if in.Deadline != nil {
		d := DateOnly(*in.Deadline)
		g.Deadline = &d
	}

	l.mu.Lock()
	if err := l.store.SaveGoal(ctx, g); err != nil {
		l.mu.Unlock()
		return Goal{}, Change{}, fmt.Errorf("save goal: %w", err)
	}
	change := Change{Before: l.snapshotLocked()}
	l.goals = append(l.goals, g)
	change.After = l.snapshotLocked()
	l.mu.Unlock()

	l.logger.Info("goal created",
		slog.String("goal_id", g.ID.String()),
		slog.String("target", g.TargetAmount.String()))
	l.changed.Emit()
	return g, change, nil
}

// Delete removes a goal and its contribution history.
func (l *Ledger) Delete(ctx context.Context, id uuid.UUID) error {
	l.mu.Lock()
	i := l.indexOf(id)
	if i < 0 {
		l.mu.Unlock()
		return &NotFoundError{ID: id}
	}
	if err := l.store.DeleteGoal(ctx, id); err != nil {
		l.mu.Unlock()
		return fmt.Errorf("delete goal %s: %w", id, err)
	}
	l.goals = append(l.goals[:i:i], l.goals[i+1:]...)
	l.mu.Unlock()

	l.logger.Info("goal deleted", slog.String("goal_id", id.String()))
	l.changed.Emit()
	return nil
}

// Contribute adds amount to a goal. The applied amount is clamped so the
// goal never exceeds its target; the returned goal reflects the new state.
// A non-empty idempotencyKey makes retries safe: the second attempt returns
// ErrDuplicateContribution and changes nothing.
func (l *Ledger) Contribute(ctx context.Context, id uuid.UUID, amount decimal.Decimal, idempotencyKey string) (Goal, error) {
	g, _, err := l.ContributeWithChange(ctx, id, amount, idempotencyKey)
	return g, err
}

// ContributeWithChange is Contribute that also returns the collection before
// and after the contribution. When the goal is already complete both sides
// are equal.
func (l *Ledger) ContributeWithChange(ctx context.Context, id uuid.UUID, amount decimal.Decimal, idempotencyKey string) (Goal, Change, error) {
	if !amount.IsPositive() {
		return Goal{}, Change{}, &InvalidAmountError{Amount: amount}
	}

	l.mu.Lock()
	i := l.indexOf(id)
	if i < 0 {
		l.mu.Unlock()
		return Goal{}, Change{}, &NotFoundError{ID: id}
	}

	if idempotencyKey != "" {
		exists, err := l.store.ContributionExists(ctx, idempotencyKey)
		if err != nil {
			l.mu.Unlock()
			return Goal{}, Change{}, fmt.Errorf("check contribution key: %w", err)
		}
		if exists {
			l.mu.Unlock()
			return Goal{}, Change{}, ErrDuplicateContribution
		}
	}

	current := l.goals[i]
	applied := decimal.Min(amount, current.Remaining())

	updated := current
	updated.CurrentAmount = current.CurrentAmount.Add(applied)

	c := Contribution{
		ID:             uuid.New(),
		GoalID:         id,
		Requested:      amount,
		Applied:        applied,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      l.now().UTC(),
	}
	if err := l.store.RecordContribution(ctx, c, updated); err != nil {
		l.mu.Unlock()
		return Goal{}, Change{}, fmt.Errorf("record contribution: %w", err)
	}
	change := Change{Before: l.snapshotLocked()}
	l.goals[i] = updated
	change.After = l.snapshotLocked()
	l.mu.Unlock()

	l.logger.Info("contribution recorded",
		slog.String("goal_id", id.String()),
		slog.String("requested", amount.String()),
		slog.String("applied", applied.String()),
		slog.String("current", updated.CurrentAmount.String()))

	if applied.IsPositive() {
		l.changed.Emit()
	}
	return updated, change, nil
}

// Contributions returns the contribution log of a goal, oldest first.
func (l *Ledger) Contributions(ctx context.Context, id uuid.UUID) ([]Contribution, error) {
	if _, err := l.Get(id); err != nil {
		return nil, err
	}
	return l.store.ListContributions(ctx, id)
}

func (l *Ledger) indexOf(id uuid.UUID) int {
	for i, g := range l.goals {
		if g.ID == id {
			return i
		}
	}
	return -1
}
