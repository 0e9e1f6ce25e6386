package goals_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nestegg/savings-engine/goals"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestProgress(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		current string
		want    string
	}{
		{name: "partial", target: "200", current: "50", want: "0.25"},
		{name: "zero target", target: "0", current: "0", want: "0"},
		{name: "over target clamps", target: "100", current: "150", want: "1"},
		{name: "negative current clamps", target: "100", current: "-10", want: "0"},
		{name: "complete", target: "100", current: "100", want: "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := goals.Goal{TargetAmount: dec(tt.target), CurrentAmount: dec(tt.current)}
			assert.True(t, dec(tt.want).Equal(g.Progress()), "got %s", g.Progress())
		})
	}
}

func TestRemainingAndCompleted(t *testing.T) {
	g := goals.Goal{TargetAmount: dec("100"), CurrentAmount: dec("99.99")}
	assert.True(t, dec("0.01").Equal(g.Remaining()))
	assert.False(t, g.IsCompleted())

	g.CurrentAmount = dec("100")
	assert.True(t, g.Remaining().IsZero())
	assert.True(t, g.IsCompleted())

	zero := goals.Goal{TargetAmount: decimal.Zero}
	assert.False(t, zero.IsCompleted())
}

func TestReached_ExactAtLargeMagnitudes(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		current  string
		fraction string
		want     bool
	}{
		{name: "just under a quarter", target: "400000000000000001", current: "100000000000000000", fraction: "0.25", want: false},
		{name: "exactly a quarter", target: "400000000000000000", current: "100000000000000000", fraction: "0.25", want: true},
		{name: "one unit short of complete", target: "400000000000000001", current: "400000000000000000", fraction: "1", want: false},
		{name: "complete", target: "400000000000000001", current: "400000000000000001", fraction: "1", want: true},
		{name: "zero target", target: "0", current: "0", fraction: "0.25", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := goals.Goal{TargetAmount: dec(tt.target), CurrentAmount: dec(tt.current)}
			assert.Equal(t, tt.want, g.Reached(dec(tt.fraction)))
		})
	}
}

func TestIsCompleted_NotRoundedUp(t *testing.T) {
	// GIVEN: A goal one unit short of a very large target
	g := goals.Goal{TargetAmount: dec("400000000000000001"), CurrentAmount: dec("400000000000000000")}

	// WHEN/THEN: The rounded display ratio reads 1 but the goal is not complete
	assert.True(t, dec("1").Equal(g.Progress()))
	assert.False(t, g.IsCompleted())
	assert.True(t, dec("1").Equal(g.Remaining()))
}

func TestTotal(t *testing.T) {
	snapshot := []goals.Goal{
		{CurrentAmount: dec("300")},
		{CurrentAmount: dec("700.50")},
	}
	assert.True(t, dec("1000.5").Equal(goals.Total(snapshot)))
	assert.True(t, goals.Total(nil).IsZero())
}

func TestDaysBetween(t *testing.T) {
	now := time.Date(2026, time.March, 10, 23, 59, 0, 0, time.UTC)

	assert.Equal(t, 1, goals.DaysBetween(now, date(2026, time.March, 11)))
	assert.Equal(t, 0, goals.DaysBetween(now, date(2026, time.March, 10)))
	assert.Equal(t, 0, goals.DaysBetween(now, date(2026, time.March, 1)))
	assert.Equal(t, 22, goals.DaysBetween(now, date(2026, time.April, 1)))
}

func TestComputeStats_NoDeadline(t *testing.T) {
	g := goals.Goal{TargetAmount: dec("400"), CurrentAmount: dec("100")}

	s := goals.ComputeStats(g, fixedNow)

	assert.True(t, dec("100").Equal(s.Saved))
	assert.True(t, dec("300").Equal(s.Remaining))
	assert.Equal(t, 25, s.ProgressPercent)
	assert.Nil(t, s.Deadline)
	assert.Zero(t, s.DaysLeft)
}

func TestComputeStats_WithDeadline(t *testing.T) {
	// GIVEN: 300 left and a deadline 10 days away
	deadline := date(2026, time.March, 20)
	g := goals.Goal{TargetAmount: dec("400"), CurrentAmount: dec("100"), Deadline: &deadline}

	// WHEN: Stats are computed
	s := goals.ComputeStats(g, fixedNow)

	// THEN: The pace is spread over the remaining days
	require.NotNil(t, s.Deadline)
	assert.Equal(t, 10, s.DaysLeft)
	assert.True(t, dec("30").Equal(s.NeededPerDay), "per day %s", s.NeededPerDay)
	assert.True(t, dec("210").Equal(s.NeededPerWeek), "per week %s", s.NeededPerWeek)
}

func TestComputeStats_DeadlinePassed(t *testing.T) {
	// GIVEN: A deadline in the past
	deadline := date(2026, time.January, 1)
	g := goals.Goal{TargetAmount: dec("100"), CurrentAmount: dec("40"), Deadline: &deadline}

	// WHEN: Stats are computed
	s := goals.ComputeStats(g, fixedNow)

	// THEN: Everything remaining is due now
	assert.Equal(t, 0, s.DaysLeft)
	assert.True(t, dec("60").Equal(s.NeededPerDay))
	assert.True(t, dec("420").Equal(s.NeededPerWeek))
}

func TestComputeStats_RoundsToCents(t *testing.T) {
	deadline := date(2026, time.March, 13)
	g := goals.Goal{TargetAmount: dec("100"), CurrentAmount: dec("0"), Deadline: &deadline}

	s := goals.ComputeStats(g, fixedNow)

	assert.Equal(t, 3, s.DaysLeft)
	assert.True(t, dec("33.33").Equal(s.NeededPerDay), "per day %s", s.NeededPerDay)
	assert.True(t, dec("233.33").Equal(s.NeededPerWeek), "per week %s", s.NeededPerWeek)
	assert.Equal(t, 0, s.ProgressPercent)
}
