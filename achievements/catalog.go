/*
Package achievements awards badges for savings behavior.

KEY CONCEPTS:
  - Definition: one catalog entry (id, display metadata, points)
  - Catalog:    the fixed, ordered list of definitions
  - Rule:       a predicate over a goals snapshot that unlocks one id
  - Engine:     evaluates rules and keeps the unlocked set
  - UnlockStore: durable storage of the unlocked ids

UNLOCK INVARIANTS:
  1. MONOTONIC: an id, once unlocked, is never removed. There is no revoke.
  2. CATALOG-BOUND: only ids present in the catalog can be unlocked.
  3. IDEMPOTENT: evaluating the same snapshot twice unlocks nothing new.

CATALOG IDS ARE PERSISTENCE KEYS:
  Renaming or removing an id orphans it in existing unlock records. Orphaned
  ids are dropped (and logged) when the engine loads; the user loses that
  badge. Add new ids instead of renaming old ones.

SEE ALSO:
  - rules.go: The rule battery and its order
  - engine.go: Evaluation pass, points, notifications
  - store.go: Unlock record format
*/
package achievements

import "fmt"

// Achievement identifiers. Stable across versions.
const (
	IDFirstGoalCreated  = "first_goal_created"
	IDFirstContribution = "first_contribution"
	IDProgress25        = "progress_25"
	IDProgress50        = "progress_50"
	IDProgress75        = "progress_75"
	IDGoalCompleted     = "goal_completed"
	IDThreeGoalsCreated = "three_goals_created"
	IDFiveGoalsCreated  = "five_goals_created"
	IDSaved1000Total    = "saved_1000_total"
	IDSaved5000Total    = "saved_5000_total"
)

// Definition is an immutable catalog entry.
type Definition struct {
	ID          string
	Title       string
	Description string
	Icon        string // opaque reference for the client
	Points      int
}

// Catalog is an ordered, read-only set of definitions.
type Catalog struct {
	defs []Definition
	byID map[string]int
}

// NewCatalog builds a catalog. Ids must be unique and non-empty and points
// must not be negative.
func NewCatalog(defs []Definition) (*Catalog, error) {
	c := &Catalog{
		defs: make([]Definition, len(defs)),
		byID: make(map[string]int, len(defs)),
	}
	for i, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("catalog entry %d: empty id", i)
		}
		if d.Points < 0 {
			return nil, fmt.Errorf("catalog entry %q: negative points %d", d.ID, d.Points)
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("catalog entry %q: duplicate id", d.ID)
		}
		c.defs[i] = d
		c.byID[d.ID] = i
	}
	return c, nil
}

// DefaultCatalog returns the built-in achievements.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultDefinitions)
	if err != nil {
		panic(err)
	}
	return c
}

var defaultDefinitions = []Definition{
	{ID: IDFirstGoalCreated, Title: "First Nest", Description: "Create your first savings goal.", Icon: "egg", Points: 10},
	{ID: IDFirstContribution, Title: "First Egg", Description: "Add your first contribution.", Icon: "egg.fill", Points: 10},
	{ID: IDProgress25, Title: "Quarter Full", Description: "Reach 25% of any goal.", Icon: "chart.bar.fill", Points: 15},
	{ID: IDProgress50, Title: "Half Full", Description: "Reach 50% of any goal.", Icon: "chart.bar.xaxis", Points: 20},
	{ID: IDProgress75, Title: "Almost There", Description: "Reach 75% of any goal.", Icon: "chart.bar.doc.horizontal.fill", Points: 25},
	{ID: IDGoalCompleted, Title: "Golden Egg", Description: "Complete any goal (100%).", Icon: "star.circle.fill", Points: 40},
	{ID: IDThreeGoalsCreated, Title: "Triple Basket", Description: "Have at least 3 active goals.", Icon: "tray.full.fill", Points: 15},
	{ID: IDFiveGoalsCreated, Title: "Big Coop", Description: "Have at least 5 active goals.", Icon: "tray.2.fill", Points: 25},
	{ID: IDSaved1000Total, Title: "Thousand Saver", Description: "Save 1,000 total across all goals.", Icon: "seal.fill", Points: 30},
	{ID: IDSaved5000Total, Title: "Egg Fortune", Description: "Save 5,000 total across all goals.", Icon: "rosette", Points: 60},
}

// All returns every definition in catalog order.
func (c *Catalog) All() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// ByID looks up a definition. The bool is false for unknown ids.
func (c *Catalog) ByID(id string) (Definition, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Definition{}, false
	}
	return c.defs[i], true
}

// Has reports whether id is in the catalog.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	return len(c.defs)
}
