package achievements

import (
	"github.com/shopspring/decimal"

	"github.com/nestegg/savings-engine/goals"
)

// Rule unlocks ID when Check passes for a goals snapshot.
// Checks are pure and independent of each other.
type Rule struct {
	ID    string
	Check func(snapshot []goals.Goal) bool
}

// DefaultRules returns the rule battery in evaluation order. The order only
// affects the order of the newly-unlocked list, not the final unlocked set.
//
// Per-goal rules pass when ANY goal qualifies; the engine does not record
// which goal triggered them.
func DefaultRules() []Rule {
	return []Rule{
		{ID: IDFirstGoalCreated, Check: goalCountAtLeast(1)},
		{ID: IDThreeGoalsCreated, Check: goalCountAtLeast(3)},
		{ID: IDFiveGoalsCreated, Check: goalCountAtLeast(5)},
		{ID: IDSaved1000Total, Check: totalSavedAtLeast(decimal.NewFromInt(1000))},
		{ID: IDSaved5000Total, Check: totalSavedAtLeast(decimal.NewFromInt(5000))},
		{ID: IDFirstContribution, Check: anyGoal(hasContribution)},
		{ID: IDProgress25, Check: anyGoal(progressAtLeast(decimal.RequireFromString("0.25")))},
		{ID: IDProgress50, Check: anyGoal(progressAtLeast(decimal.RequireFromString("0.50")))},
		{ID: IDProgress75, Check: anyGoal(progressAtLeast(decimal.RequireFromString("0.75")))},
		{ID: IDGoalCompleted, Check: anyGoal(progressAtLeast(decimal.NewFromInt(1)))},
	}
}

func goalCountAtLeast(n int) func([]goals.Goal) bool {
	return func(snapshot []goals.Goal) bool {
		return len(snapshot) >= n
	}
}

func totalSavedAtLeast(threshold decimal.Decimal) func([]goals.Goal) bool {
	return func(snapshot []goals.Goal) bool {
		return goals.Total(snapshot).GreaterThanOrEqual(threshold)
	}
}

func anyGoal(pred func(goals.Goal) bool) func([]goals.Goal) bool {
	return func(snapshot []goals.Goal) bool {
		for _, g := range snapshot {
			if pred(g) {
				return true
			}
		}
		return false
	}
}

func hasContribution(g goals.Goal) bool {
	return g.CurrentAmount.IsPositive()
}

func progressAtLeast(threshold decimal.Decimal) func(goals.Goal) bool {
	return func(g goals.Goal) bool {
		return g.Reached(threshold)
	}
}
