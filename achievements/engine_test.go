package achievements_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nestegg/savings-engine/achievements"
	"github.com/nestegg/savings-engine/goals"
	"github.com/nestegg/savings-engine/logging"
	"github.com/nestegg/savings-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// fakeStore is an UnlockStore that counts saves and can fail them.
type fakeStore struct {
	mu      sync.Mutex
	loaded  []string
	saved   [][]string
	saveErr error
}

func (f *fakeStore) Load(context.Context) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.loaded...)
}

func (f *fakeStore) Save(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, append([]string(nil), ids...))
	return f.saveErr
}

func (f *fakeStore) saves() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func (f *fakeStore) last() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saved) == 0 {
		return nil
	}
	return f.saved[len(f.saved)-1]
}

func newEngine(store achievements.UnlockStore) *achievements.Engine {
	return achievements.NewEngine(context.Background(), achievements.DefaultCatalog(), store,
		achievements.WithLogger(logging.Discard()))
}

func goal(target, current string) goals.Goal {
	return goals.Goal{
		ID:            uuid.New(),
		Title:         "goal",
		TargetAmount:  decimal.RequireFromString(target),
		CurrentAmount: decimal.RequireFromString(current),
		CreatedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func ids(defs []achievements.Definition) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.ID
	}
	return out
}

// =============================================================================
// EVALUATION
// =============================================================================

func TestEvaluate_EmptySnapshotUnlocksNothing(t *testing.T) {
	store := &fakeStore{}
	e := newEngine(store)

	for _, snapshot := range [][]goals.Goal{nil, {}} {
		newly := e.Evaluate(context.Background(), snapshot)
		assert.Empty(t, newly)
	}
	assert.Empty(t, e.Unlocked())
	assert.Zero(t, store.saves())
	assert.Zero(t, e.TotalPoints())
}

func TestEvaluate_FirstGoal(t *testing.T) {
	// GIVEN: A fresh engine
	e := newEngine(&fakeStore{})

	// WHEN: One empty goal exists
	newly := e.Evaluate(context.Background(), []goals.Goal{goal("1000", "0")})

	// THEN: Only first_goal_created unlocks
	assert.Equal(t, []string{achievements.IDFirstGoalCreated}, ids(newly))
	assert.True(t, e.IsUnlocked(achievements.IDFirstGoalCreated))
	assert.False(t, e.IsUnlocked(achievements.IDFirstContribution))
	assert.Equal(t, 10, e.TotalPoints())
}

func TestEvaluate_Idempotent(t *testing.T) {
	store := &fakeStore{}
	e := newEngine(store)
	snapshot := []goals.Goal{goal("1000", "600")}

	first := e.Evaluate(context.Background(), snapshot)
	second := e.Evaluate(context.Background(), snapshot)

	assert.NotEmpty(t, first)
	assert.Empty(t, second)
	assert.Empty(t, e.RecentlyUnlocked())
	assert.Equal(t, 1, store.saves())
}

func TestEvaluate_CompletionBoundary(t *testing.T) {
	tests := []struct {
		name    string
		current string
		want    bool
	}{
		{name: "exactly target", current: "1000", want: true},
		{name: "one unit below", current: "999", want: false},
		{name: "one cent below", current: "999.99", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(&fakeStore{})
			e.Evaluate(context.Background(), []goals.Goal{goal("1000", tt.current)})
			assert.Equal(t, tt.want, e.IsUnlocked(achievements.IDGoalCompleted))
		})
	}
}

func TestEvaluate_ProgressThresholds(t *testing.T) {
	tests := []struct {
		current string
		want    []string
	}{
		{current: "249.99", want: nil},
		{current: "250", want: []string{achievements.IDProgress25}},
		{current: "500", want: []string{achievements.IDProgress25, achievements.IDProgress50}},
		{current: "750", want: []string{achievements.IDProgress25, achievements.IDProgress50, achievements.IDProgress75}},
	}

	progressIDs := []string{achievements.IDProgress25, achievements.IDProgress50, achievements.IDProgress75}
	for _, tt := range tests {
		t.Run(tt.current, func(t *testing.T) {
			e := newEngine(&fakeStore{})
			e.Evaluate(context.Background(), []goals.Goal{goal("1000", tt.current)})

			var got []string
			for _, id := range progressIDs {
				if e.IsUnlocked(id) {
					got = append(got, id)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_ThresholdsAreExactAtLargeMagnitudes(t *testing.T) {
	// GIVEN: A goal whose ratio is a hair under 25% and one a unit short of done
	e := newEngine(&fakeStore{})
	snapshot := []goals.Goal{
		goal("400000000000000001", "100000000000000000"),
		goal("400000000000000001", "400000000000000000"),
	}

	// WHEN: Evaluated
	e.Evaluate(context.Background(), snapshot[:1])
	e.Evaluate(context.Background(), snapshot[1:])

	// THEN: Rounding never pushes a goal over a threshold it has not reached
	assert.False(t, e.IsUnlocked(achievements.IDGoalCompleted))
	assert.True(t, e.IsUnlocked(achievements.IDProgress75))

	// AND: The first goal alone did not earn progress_25
	first := newEngine(&fakeStore{})
	first.Evaluate(context.Background(), snapshot[:1])
	assert.False(t, first.IsUnlocked(achievements.IDProgress25))
	assert.True(t, first.IsUnlocked(achievements.IDFirstContribution))
}

func TestEvaluate_ZeroTargetNeverCompletes(t *testing.T) {
	e := newEngine(&fakeStore{})

	e.Evaluate(context.Background(), []goals.Goal{goal("0", "0")})

	assert.Equal(t, []string{achievements.IDFirstGoalCreated}, e.Unlocked())
}

func TestEvaluate_NegativeAmountsUnlockNoProgress(t *testing.T) {
	e := newEngine(&fakeStore{})

	e.Evaluate(context.Background(), []goals.Goal{goal("100", "-50")})

	assert.Equal(t, []string{achievements.IDFirstGoalCreated}, e.Unlocked())
}

func TestTotalPoints_KnownSubset(t *testing.T) {
	// GIVEN: A goal with a small contribution (under 25%)
	e := newEngine(&fakeStore{})

	// WHEN: Evaluated
	e.Evaluate(context.Background(), []goals.Goal{goal("1000", "10")})

	// THEN: first_goal_created + first_contribution = 20 points
	assert.ElementsMatch(t, []string{achievements.IDFirstGoalCreated, achievements.IDFirstContribution}, e.Unlocked())
	assert.Equal(t, 20, e.TotalPoints())
}

func TestScenario_ThreeHundredThenSevenHundred(t *testing.T) {
	// GIVEN: One goal with a target of 1000, already seen by the engine
	ctx := context.Background()
	e := newEngine(&fakeStore{})
	g := goal("1000", "0")
	require.Equal(t, []string{achievements.IDFirstGoalCreated}, ids(e.Evaluate(ctx, []goals.Goal{g})))

	// WHEN: 300 is contributed
	g.CurrentAmount = decimal.NewFromInt(300)
	afterFirst := ids(e.Evaluate(ctx, []goals.Goal{g}))

	// THEN: first_contribution and progress_25 unlock
	assert.Equal(t, []string{achievements.IDFirstContribution, achievements.IDProgress25}, afterFirst)

	// WHEN: 700 more is contributed
	g.CurrentAmount = decimal.NewFromInt(1000)
	afterSecond := ids(e.Evaluate(ctx, []goals.Goal{g}))

	// THEN: The remaining progress tiers, completion and the total unlock
	assert.Equal(t, []string{
		achievements.IDSaved1000Total,
		achievements.IDProgress50,
		achievements.IDProgress75,
		achievements.IDGoalCompleted,
	}, afterSecond)

	fromContributions := append(afterFirst, afterSecond...)
	assert.Len(t, fromContributions, 6)
	assert.Len(t, dedupe(fromContributions), 6)

	unlocked := e.Unlocked()
	assert.Len(t, unlocked, 7)
	assert.Equal(t, achievements.IDFirstGoalCreated, unlocked[0])
	assert.Equal(t, 10+10+15+30+20+25+40, e.TotalPoints())
}

func TestScenario_SixthGoalWithNoSavings(t *testing.T) {
	// GIVEN: Six goals and nothing saved
	snapshot := make([]goals.Goal, 6)
	for i := range snapshot {
		snapshot[i] = goal("500", "0")
	}
	e := newEngine(&fakeStore{})

	// WHEN: Evaluated
	newly := e.Evaluate(context.Background(), snapshot)

	// THEN: Only the goal-count achievements unlock
	assert.Equal(t, []string{
		achievements.IDFirstGoalCreated,
		achievements.IDThreeGoalsCreated,
		achievements.IDFiveGoalsCreated,
	}, ids(newly))
	assert.Equal(t, 50, e.TotalPoints())
}

func TestEvaluate_SavedTotalsAcrossGoals(t *testing.T) {
	e := newEngine(&fakeStore{})

	e.Evaluate(context.Background(), []goals.Goal{
		goal("10000", "2500"),
		goal("10000", "2500"),
	})

	assert.True(t, e.IsUnlocked(achievements.IDSaved1000Total))
	assert.True(t, e.IsUnlocked(achievements.IDSaved5000Total))
	assert.True(t, e.IsUnlocked(achievements.IDProgress25))
	assert.False(t, e.IsUnlocked(achievements.IDProgress50))
}

func TestEvaluate_Monotonic(t *testing.T) {
	// GIVEN: S1 qualifies for a subset of what S2 qualifies for
	ctx := context.Background()
	s1 := []goals.Goal{goal("1000", "300")}
	s2 := []goals.Goal{goal("1000", "800"), goal("50", "50"), goal("10", "0")}

	// WHEN: One engine sees S1 then S2, another sees S2 only
	stepwise := newEngine(&fakeStore{})
	stepwise.Evaluate(ctx, s1)
	afterS1 := stepwise.Unlocked()
	stepwise.Evaluate(ctx, s2)

	direct := newEngine(&fakeStore{})
	direct.Evaluate(ctx, s2)

	// THEN: They converge, and nothing from S1 was lost
	assert.ElementsMatch(t, direct.Unlocked(), stepwise.Unlocked())
	assert.Subset(t, stepwise.Unlocked(), afterS1)
}

func TestEvaluate_NeverRevokes(t *testing.T) {
	ctx := context.Background()
	e := newEngine(&fakeStore{})
	e.Evaluate(ctx, []goals.Goal{goal("100", "100")})
	before := e.Unlocked()

	e.Evaluate(ctx, nil)

	assert.Equal(t, before, e.Unlocked())
}

// =============================================================================
// PERSISTENCE AND NOTIFICATION
// =============================================================================

func TestEvaluate_OneSaveAndOneSignalPerPass(t *testing.T) {
	// GIVEN: An engine with a listener
	store := &fakeStore{}
	e := newEngine(store)
	signals := 0
	e.Subscribe(func() { signals++ })

	// WHEN: A pass unlocks several achievements at once
	newly := e.Evaluate(context.Background(), []goals.Goal{goal("100", "100")})

	// THEN: The full set is saved once and one signal is sent
	assert.Len(t, newly, 6)
	assert.Equal(t, 1, store.saves())
	assert.Equal(t, e.Unlocked(), store.last())
	assert.Equal(t, 1, signals)

	// WHEN: Nothing new qualifies
	e.Evaluate(context.Background(), []goals.Goal{goal("100", "100")})

	// THEN: No save, no signal
	assert.Equal(t, 1, store.saves())
	assert.Equal(t, 1, signals)
}

func TestEvaluate_ListenerCanReadEngine(t *testing.T) {
	e := newEngine(&fakeStore{})
	var seen []achievements.Definition
	e.Subscribe(func() { seen = e.RecentlyUnlocked() })

	e.Evaluate(context.Background(), []goals.Goal{goal("100", "0")})

	assert.Equal(t, []string{achievements.IDFirstGoalCreated}, ids(seen))
}

func TestEvaluate_SaveFailureIsNotFatal(t *testing.T) {
	// GIVEN: A store whose saves fail
	store := &fakeStore{saveErr: errors.New("disk full")}
	e := newEngine(store)
	signals := 0
	e.Subscribe(func() { signals++ })

	// WHEN: A pass unlocks something
	newly := e.Evaluate(context.Background(), []goals.Goal{goal("100", "0")})

	// THEN: The unlock still stands in memory and listeners hear about it
	assert.Equal(t, []string{achievements.IDFirstGoalCreated}, ids(newly))
	assert.True(t, e.IsUnlocked(achievements.IDFirstGoalCreated))
	assert.Equal(t, 1, signals)
}

func TestNewEngine_DropsUnknownAndDuplicateIDs(t *testing.T) {
	store := &fakeStore{loaded: []string{
		achievements.IDProgress25,
		"renamed_badge",
		achievements.IDProgress25,
		achievements.IDFirstGoalCreated,
	}}

	e := newEngine(store)

	assert.Equal(t, []string{achievements.IDProgress25, achievements.IDFirstGoalCreated}, e.Unlocked())
	assert.False(t, e.IsUnlocked("renamed_badge"))
	assert.Equal(t, 25, e.TotalPoints())
	assert.Empty(t, e.RecentlyUnlocked())
	assert.Zero(t, store.saves())
}

func TestRoundTrip_ThroughRecordStore(t *testing.T) {
	// GIVEN: An engine persisting into a record store
	ctx := context.Background()
	records := memory.New()
	unlocks := achievements.NewRecordUnlockStore(records, logging.Discard())
	first := newEngine(unlocks)
	first.Evaluate(ctx, []goals.Goal{goal("1000", "800"), goal("10", "0"), goal("10", "0")})
	require.NotEmpty(t, first.Unlocked())

	// WHEN: A fresh engine loads the same record
	second := newEngine(achievements.NewRecordUnlockStore(records, logging.Discard()))

	// THEN: It holds the same set and points
	assert.ElementsMatch(t, first.Unlocked(), second.Unlocked())
	assert.Equal(t, first.TotalPoints(), second.TotalPoints())
}

func TestStatuses(t *testing.T) {
	e := newEngine(&fakeStore{})
	e.Evaluate(context.Background(), []goals.Goal{goal("100", "0")})

	statuses := e.Statuses()

	require.Len(t, statuses, e.Catalog().Len())
	for i, s := range statuses {
		assert.Equal(t, e.Catalog().All()[i].ID, s.ID)
		assert.Equal(t, s.ID == achievements.IDFirstGoalCreated, s.Unlocked, s.ID)
	}
}

func TestWithRules_UnknownRuleIDIgnored(t *testing.T) {
	always := func([]goals.Goal) bool { return true }
	e := achievements.NewEngine(context.Background(), achievements.DefaultCatalog(), &fakeStore{},
		achievements.WithLogger(logging.Discard()),
		achievements.WithRules([]achievements.Rule{
			{ID: "not_in_catalog", Check: always},
			{ID: achievements.IDGoalCompleted, Check: always},
		}))

	newly := e.Evaluate(context.Background(), nil)

	assert.Equal(t, []string{achievements.IDGoalCompleted}, ids(newly))
}

// =============================================================================
// WATCHING THE LEDGER
// =============================================================================

func TestWatch_EvaluatesOnLedgerChanges(t *testing.T) {
	// GIVEN: A ledger that already holds one goal, and an engine watching it
	ctx := context.Background()
	ledger, err := goals.NewLedger(ctx, memory.New(), goals.WithLogger(logging.Discard()))
	require.NoError(t, err)
	g, err := ledger.Create(ctx, goals.NewGoal{Title: "Trip", Target: decimal.NewFromInt(1000)})
	require.NoError(t, err)

	store := &fakeStore{}
	e := newEngine(store)
	stop := e.Watch(ctx, ledger)

	// THEN: The existing goal is picked up right away
	assert.True(t, e.IsUnlocked(achievements.IDFirstGoalCreated))

	// WHEN: A contribution is recorded
	_, err = ledger.Contribute(ctx, g.ID, decimal.NewFromInt(300), "")
	require.NoError(t, err)

	// THEN: The engine re-evaluated synchronously
	assert.True(t, e.IsUnlocked(achievements.IDFirstContribution))
	assert.True(t, e.IsUnlocked(achievements.IDProgress25))

	// WHEN: The engine stops watching
	stop()
	_, err = ledger.Contribute(ctx, g.ID, decimal.NewFromInt(700), "")
	require.NoError(t, err)

	// THEN: Later changes are ignored until the next explicit pass
	assert.False(t, e.IsUnlocked(achievements.IDGoalCompleted))
	e.Evaluate(ctx, ledger.Goals())
	assert.True(t, e.IsUnlocked(achievements.IDGoalCompleted))
}

func TestUnlockedBy_CreditsOnlyRulesTheChangeFlipped(t *testing.T) {
	// GIVEN: An engine that already holds first_goal_created and has just
	// unlocked the contribution chain from a different mutation
	e := newEngine(&fakeStore{loaded: []string{achievements.IDFirstGoalCreated}})
	funded := goal("100", "100")
	prior := e.Unlocked()
	e.Evaluate(context.Background(), []goals.Goal{funded, goal("50", "0")})

	// WHEN: The change under test only added an empty goal next to funded
	change := goals.Change{
		Before: []goals.Goal{funded},
		After:  []goals.Goal{funded, goal("50", "0")},
	}

	// THEN: Nothing is credited to it
	assert.Empty(t, e.UnlockedBy(prior, change))

	// AND: A change that did fund the goal gets the whole chain, in rule order
	unfunded := funded
	unfunded.CurrentAmount = decimal.Zero
	got := e.UnlockedBy(prior, goals.Change{Before: []goals.Goal{unfunded}, After: []goals.Goal{funded}})
	assert.Equal(t, []string{
		achievements.IDFirstContribution,
		achievements.IDProgress25,
		achievements.IDProgress50,
		achievements.IDProgress75,
		achievements.IDGoalCompleted,
	}, ids(got))
}

func TestUnlockedBy_SkipsPriorAndUnheldIDs(t *testing.T) {
	e := newEngine(&fakeStore{})
	change := goals.Change{After: []goals.Goal{goal("10", "0")}}

	// Nothing evaluated yet: the rule flipped but the id is not held
	assert.Empty(t, e.UnlockedBy(nil, change))

	e.Evaluate(context.Background(), change.After)
	assert.Equal(t, []string{achievements.IDFirstGoalCreated}, ids(e.UnlockedBy(nil, change)))

	// Held before the mutation: a recreated first goal earns nothing new
	assert.Empty(t, e.UnlockedBy([]string{achievements.IDFirstGoalCreated}, change))
}

func TestUnlockedBy_NestedMutationFromEarlierListener(t *testing.T) {
	// GIVEN: A ledger listener registered before the engine that funds goal
	// A the moment goal B appears
	ctx := context.Background()
	ledger, err := goals.NewLedger(ctx, memory.New(), goals.WithLogger(logging.Discard()))
	require.NoError(t, err)
	a, err := ledger.Create(ctx, goals.NewGoal{Title: "A", Target: decimal.NewFromInt(100)})
	require.NoError(t, err)

	fired := false
	stopListener := ledger.Subscribe(func() {
		if fired || len(ledger.Goals()) < 2 {
			return
		}
		fired = true
		_, err := ledger.Contribute(ctx, a.ID, decimal.NewFromInt(100), "")
		assert.NoError(t, err)
	})
	defer stopListener()

	e := newEngine(&fakeStore{})
	defer e.Watch(ctx, ledger)()

	// WHEN: B is created and its change attributed
	prior := e.Unlocked()
	_, change, err := ledger.CreateWithChange(ctx, goals.NewGoal{Title: "B", Target: decimal.NewFromInt(50)})
	require.NoError(t, err)

	// THEN: The nested contribution ran first but is not credited to B
	require.True(t, fired)
	assert.True(t, e.IsUnlocked(achievements.IDGoalCompleted))
	assert.Empty(t, e.UnlockedBy(prior, change))
	assert.Len(t, change.Before, 1)
	assert.Len(t, change.After, 2)
}

func TestEvaluate_ConcurrentPassesConverge(t *testing.T) {
	store := &fakeStore{}
	e := newEngine(store)
	snapshot := []goals.Goal{goal("100", "100"), goal("1", "0"), goal("1", "0")}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Evaluate(context.Background(), snapshot)
		}()
	}
	wg.Wait()

	assert.Len(t, e.Unlocked(), 8)
	assert.Equal(t, 1, store.saves())
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
