/*
dto.go - Data Transfer Objects for API requests and responses

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Composite response wrappers

AMOUNTS:
  decimal.Decimal marshals as a JSON string ("250.5") and accepts either a
  string or a number on input.

VALIDATION:
  Request types carry validator tags; handlers run them through
  Handler.decode before touching the ledger. Domain rules (non-negative
  target, positive amount) are enforced again by goals.Ledger.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nestegg/savings-engine/achievements"
	"github.com/nestegg/savings-engine/goals"
)

const dateLayout = "2006-01-02"

// =============================================================================
// GOALS
// =============================================================================

// GoalDTO represents a goal in API responses.
type GoalDTO struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	Remaining     decimal.Decimal `json:"remaining"`
	Progress      decimal.Decimal `json:"progress"`
	Completed     bool            `json:"completed"`
	Deadline      *string         `json:"deadline,omitempty"`
	CreatedAt     string          `json:"created_at"`
}

// CreateGoalRequest is the request to create a goal.
type CreateGoalRequest struct {
	Title        string          `json:"title" validate:"required,max=200"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	Deadline     string          `json:"deadline,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// CreateGoalResponse returns the new goal and what its creation unlocked.
type CreateGoalResponse struct {
	Goal     GoalDTO          `json:"goal"`
	Unlocked []AchievementDTO `json:"unlocked"`
}

// ContributionRequest adds money to a goal.
type ContributionRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	IdempotencyKey string          `json:"idempotency_key,omitempty" validate:"max=128"`
}

// ContributionDTO represents a contribution in API responses.
type ContributionDTO struct {
	ID             string          `json:"id"`
	GoalID         string          `json:"goal_id"`
	Requested      decimal.Decimal `json:"requested"`
	Applied        decimal.Decimal `json:"applied"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	CreatedAt      string          `json:"created_at"`
}

// ContributionResponse returns the updated goal and what the contribution
// unlocked.
type ContributionResponse struct {
	Goal     GoalDTO          `json:"goal"`
	Unlocked []AchievementDTO `json:"unlocked"`
}

// StatsDTO is the per-goal summary.
type StatsDTO struct {
	GoalID          string           `json:"goal_id"`
	Saved           decimal.Decimal  `json:"saved"`
	Target          decimal.Decimal  `json:"target"`
	Remaining       decimal.Decimal  `json:"remaining"`
	ProgressPercent int              `json:"progress_percent"`
	Deadline        *string          `json:"deadline,omitempty"`
	DaysLeft        *int             `json:"days_left,omitempty"`
	NeededPerDay    *decimal.Decimal `json:"needed_per_day,omitempty"`
	NeededPerWeek   *decimal.Decimal `json:"needed_per_week,omitempty"`
}

// =============================================================================
// ACHIEVEMENTS
// =============================================================================

// AchievementDTO represents a catalog entry in API responses.
type AchievementDTO struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Points      int    `json:"points"`
	Unlocked    bool   `json:"unlocked"`
}

// AchievementsResponse lists the catalog with unlock state.
type AchievementsResponse struct {
	Achievements  []AchievementDTO `json:"achievements"`
	UnlockedCount int              `json:"unlocked_count"`
	Total         int              `json:"total"`
	TotalPoints   int              `json:"total_points"`
}

// PointsResponse is the points summary.
type PointsResponse struct {
	TotalPoints int `json:"total_points"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toGoalDTO(g goals.Goal) GoalDTO {
	dto := GoalDTO{
		ID:            g.ID.String(),
		Title:         g.Title,
		TargetAmount:  g.TargetAmount,
		CurrentAmount: g.CurrentAmount,
		Remaining:     g.Remaining(),
		Progress:      g.Progress().Round(4),
		Completed:     g.IsCompleted(),
		CreatedAt:     g.CreatedAt.Format(time.RFC3339),
	}
	if g.Deadline != nil {
		d := g.Deadline.Format(dateLayout)
		dto.Deadline = &d
	}
	return dto
}

func toContributionDTO(c goals.Contribution) ContributionDTO {
	return ContributionDTO{
		ID:             c.ID.String(),
		GoalID:         c.GoalID.String(),
		Requested:      c.Requested,
		Applied:        c.Applied,
		IdempotencyKey: c.IdempotencyKey,
		CreatedAt:      c.CreatedAt.Format(time.RFC3339),
	}
}

func toStatsDTO(g goals.Goal, s goals.Stats) StatsDTO {
	dto := StatsDTO{
		GoalID:          g.ID.String(),
		Saved:           s.Saved,
		Target:          s.Target,
		Remaining:       s.Remaining,
		ProgressPercent: s.ProgressPercent,
	}
	if s.Deadline != nil {
		d := s.Deadline.Format(dateLayout)
		days := s.DaysLeft
		perDay := s.NeededPerDay
		perWeek := s.NeededPerWeek
		dto.Deadline = &d
		dto.DaysLeft = &days
		dto.NeededPerDay = &perDay
		dto.NeededPerWeek = &perWeek
	}
	return dto
}

func toAchievementDTO(d achievements.Definition, unlocked bool) AchievementDTO {
	return AchievementDTO{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Icon:        d.Icon,
		Points:      d.Points,
		Unlocked:    unlocked,
	}
}

// toAchievementDTOs marks every definition unlocked. It never returns nil so
// empty lists encode as [].
func toAchievementDTOs(defs []achievements.Definition) []AchievementDTO {
	out := make([]AchievementDTO, len(defs))
	for i, d := range defs {
		out[i] = toAchievementDTO(d, true)
	}
	return out
}
