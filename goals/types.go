/*
Package goals holds savings goals and the ledger that mutates them.

KEY CONCEPTS:
  - Goal: a target amount, the amount saved so far and an optional deadline
  - Contribution: an immutable record of money put toward a goal
  - Ledger: the ordered goal collection; the only writer of goal state

AMOUNT INVARIANT:
  0 <= CurrentAmount <= TargetAmount. The ledger clamps contributions so the
  saved amount never passes the target. Readers may rely on it.

PRECISION:
  Amounts use decimal.Decimal so that 0.1 + 0.2 sums and threshold checks
  (e.g. "saved at least 1000") are exact.

SEE ALSO:
  - ledger.go: Create, Delete, Contribute and change notifications
  - stats.go: Remaining amount and pace toward a deadline
  - achievements/engine.go: Reads goal snapshots produced here
*/
package goals

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// GOAL
// =============================================================================

// Goal is a user-defined savings target.
type Goal struct {
	ID            uuid.UUID
	Title         string
	TargetAmount  decimal.Decimal
	CurrentAmount decimal.Decimal
	Deadline      *time.Time // date only, UTC midnight
	CreatedAt     time.Time
}

var one = decimal.NewFromInt(1)

// Progress returns CurrentAmount / TargetAmount clamped to [0, 1], rounded
// to decimal.DivisionPrecision places. It is for display; threshold checks go
// through Reached. A goal with a zero target reports zero progress.
func (g Goal) Progress() decimal.Decimal {
	if !g.TargetAmount.IsPositive() {
		return decimal.Zero
	}
	p := g.CurrentAmount.Div(g.TargetAmount)
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(one) {
		return one
	}
	return p
}

// Remaining returns how much is left to save, never negative.
func (g Goal) Remaining() decimal.Decimal {
	r := g.TargetAmount.Sub(g.CurrentAmount)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// Reached reports whether CurrentAmount >= fraction * TargetAmount without
// dividing, so a ratio a hair under the threshold never rounds up to it.
// A goal with a zero target has reached nothing.
func (g Goal) Reached(fraction decimal.Decimal) bool {
	if !g.TargetAmount.IsPositive() {
		return false
	}
	return g.CurrentAmount.GreaterThanOrEqual(g.TargetAmount.Mul(fraction))
}

// IsCompleted reports whether the goal has reached its target.
func (g Goal) IsCompleted() bool {
	return g.Reached(one)
}

// NewGoal is the input for creating a goal.
type NewGoal struct {
	Title    string
	Target   decimal.Decimal
	Deadline *time.Time
}

// =============================================================================
// CONTRIBUTION
// =============================================================================

// Contribution records money added to a goal. Contributions are append-only.
type Contribution struct {
	ID     uuid.UUID
	GoalID uuid.UUID

	// Requested is what the user entered; Applied is what counted toward the
	// goal after clamping to the remaining amount.
	Requested decimal.Decimal
	Applied   decimal.Decimal

	IdempotencyKey string
	CreatedAt      time.Time
}

// Total sums CurrentAmount over all goals.
func Total(snapshot []Goal) decimal.Decimal {
	total := decimal.Zero
	for _, g := range snapshot {
		total = total.Add(g.CurrentAmount)
	}
	return total
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
