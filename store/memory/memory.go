// Package memory provides in-memory implementations of the storage
// interfaces, for tests and development.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/nestegg/savings-engine/goals"
)

// =============================================================================
// MEMORY STORE - goals.Store + achievements.RecordStore
// =============================================================================

type Store struct {
	mu            sync.RWMutex
	goals         map[uuid.UUID]goals.Goal
	order         []uuid.UUID // insertion order
	contributions map[uuid.UUID][]goals.Contribution
	idempotency   map[string]bool
	records       map[string][]byte
	failWrites    error
}

func New() *Store {
	return &Store{
		goals:         make(map[uuid.UUID]goals.Goal),
		contributions: make(map[uuid.UUID][]goals.Contribution),
		idempotency:   make(map[string]bool),
		records:       make(map[string][]byte),
	}
}

// SetFailWrites makes every subsequent write return err. Pass nil to
// restore normal behavior.
func (m *Store) SetFailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrites = err
}

func (m *Store) ListGoals(_ context.Context) ([]goals.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]goals.Goal, 0, len(m.order))
	for _, id := range m.order {
		result = append(result, m.goals[id])
	}
	return result, nil
}

func (m *Store) SaveGoal(_ context.Context, g goals.Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWrites != nil {
		return m.failWrites
	}
	if _, exists := m.goals[g.ID]; !exists {
		m.order = append(m.order, g.ID)
	}
	m.goals[g.ID] = g
	return nil
}

func (m *Store) DeleteGoal(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWrites != nil {
		return m.failWrites
	}
	if _, ok := m.goals[id]; !ok {
		return goals.ErrGoalNotFound
	}
	for _, c := range m.contributions[id] {
		delete(m.idempotency, c.IdempotencyKey)
	}
	delete(m.contributions, id)
	delete(m.goals, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// RecordContribution appends c and updates the goal in one critical section.
func (m *Store) RecordContribution(_ context.Context, c goals.Contribution, updated goals.Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWrites != nil {
		return m.failWrites
	}
	if _, ok := m.goals[c.GoalID]; !ok {
		return goals.ErrGoalNotFound
	}
	if c.IdempotencyKey != "" && m.idempotency[c.IdempotencyKey] {
		return goals.ErrDuplicateContribution
	}

	m.contributions[c.GoalID] = append(m.contributions[c.GoalID], c)
	if c.IdempotencyKey != "" {
		m.idempotency[c.IdempotencyKey] = true
	}
	m.goals[updated.ID] = updated
	return nil
}

func (m *Store) ListContributions(_ context.Context, goalID uuid.UUID) ([]goals.Contribution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]goals.Contribution, len(m.contributions[goalID]))
	copy(result, m.contributions[goalID])
	return result, nil
}

func (m *Store) ContributionExists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

// =============================================================================
// KEY-VALUE RECORDS
// =============================================================================

// GetRecord returns a copy of the value stored under key.
func (m *Store) GetRecord(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.records[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// PutRecord replaces the value stored under key.
func (m *Store) PutRecord(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWrites != nil {
		return m.failWrites
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.records[key] = v
	return nil
}
