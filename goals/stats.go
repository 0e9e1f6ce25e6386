package goals

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stats summarizes a goal for display: totals, percentage and, when a
// deadline is set, the pace needed to hit it.
type Stats struct {
	Saved           decimal.Decimal
	Target          decimal.Decimal
	Remaining       decimal.Decimal
	ProgressPercent int

	Deadline      *time.Time
	DaysLeft      int
	NeededPerDay  decimal.Decimal
	NeededPerWeek decimal.Decimal
}

var (
	hundred = decimal.NewFromInt(100)
	seven   = decimal.NewFromInt(7)
)

// ComputeStats derives Stats for g as of now.
//
// DaysLeft counts calendar days between today and the deadline and never
// goes below zero. With no days left the whole remaining amount is due
// "today", so NeededPerDay equals Remaining.
func ComputeStats(g Goal, now time.Time) Stats {
	s := Stats{
		Saved:           g.CurrentAmount,
		Target:          g.TargetAmount,
		Remaining:       g.Remaining(),
		ProgressPercent: int(g.Progress().Mul(hundred).Round(0).IntPart()),
	}
	if g.Deadline == nil {
		return s
	}

	deadline := *g.Deadline
	s.Deadline = &deadline
	s.DaysLeft = DaysBetween(now, deadline)

	perDay := s.Remaining
	if s.DaysLeft > 0 {
		perDay = s.Remaining.Div(decimal.NewFromInt(int64(s.DaysLeft)))
	}
	s.NeededPerDay = perDay.Round(2)
	s.NeededPerWeek = perDay.Mul(seven).Round(2)
	return s
}

// DaysBetween returns the number of whole calendar days from from to to,
// clamped at zero.
func DaysBetween(from, to time.Time) int {
	start := DateOnly(from)
	end := DateOnly(to)
	if !end.After(start) {
		return 0
	}
	return int(end.Sub(start).Hours() / 24)
}
