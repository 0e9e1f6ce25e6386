package goals

import (
	"context"

	"github.com/google/uuid"
)

// Store persists goals and their contribution log.
//
// Contributions are APPEND-ONLY: there is no update or delete for a single
// contribution. Deleting a goal removes its contributions with it.
//
// Implementations:
//   - store/sqlite: SQLite
//   - store/memory: in-memory, for tests and development
type Store interface {
	// ListGoals returns every goal ordered by creation time.
	ListGoals(ctx context.Context) ([]Goal, error)

	// SaveGoal inserts a new goal.
	SaveGoal(ctx context.Context, g Goal) error

	// DeleteGoal removes a goal and its contributions.
	// Returns ErrGoalNotFound if the goal does not exist.
	DeleteGoal(ctx context.Context, id uuid.UUID) error

	// RecordContribution appends c and stores the goal's new CurrentAmount
	// atomically. Returns ErrDuplicateContribution if c.IdempotencyKey is
	// already recorded.
	RecordContribution(ctx context.Context, c Contribution, updated Goal) error

	// ListContributions returns a goal's contributions, oldest first.
	ListContributions(ctx context.Context, goalID uuid.UUID) ([]Contribution, error)

	// ContributionExists checks if an idempotency key was already used.
	ContributionExists(ctx context.Context, idempotencyKey string) (bool, error)
}
