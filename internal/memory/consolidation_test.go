package memory

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/tiered-memory/internal/model"
)

func TestConsolidationDeletesStaleLowImportance(t *testing.T) {
	m, clk := newTestManager(t)
	ctx := context.Background()

	it := mustStore(t, m, "scratch note", StoreOptions{Tier: "short_term", Importance: ptr(0.2)})
	clk.Advance(31 * time.Second)

	res, err := m.Consolidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, ConsolidationResult{Candidates: 1, Forgotten: 1}, res)

	_, err = m.Get(ctx, it.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, m.longTerm.Size())

	st := m.Stats()
	assert.Equal(t, 1, st.ConsolidationRuns)
	assert.Equal(t, 1, st.ConsolidationDeleted)
	assert.Zero(t, st.ForgettingEvicted)
	assert.NotNil(t, st.LastConsolidation)
}

func TestConsolidationPromotesFrequentlyAccessed(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	it := mustStore(t, m, "parking spot level four", StoreOptions{Tier: "short_term", Importance: ptr(0.1)})
	_, ok := m.shortTerm.Update(it.ID, func(i *model.Item) { i.AccessCount = 3 })
	require.True(t, ok)

	res, err := m.Consolidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Promoted)

	got, err := m.Get(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TierLongTerm, got.Tier)
	assert.Equal(t, 3, got.AccessCount, "promotion does not touch access stats")
	assert.Zero(t, m.shortTerm.Size())
}

func TestConsolidationPromotesByImportanceOrTag(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	byImportance := mustStore(t, m, "rotate the api keys", StoreOptions{Tier: "short_term", Importance: ptr(0.85)})
	byTag := mustStore(t, m, "call the plumber", StoreOptions{Tier: "short_term", Importance: ptr(0.1), Tags: []string{TagImportant}})

	res, err := m.Consolidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Promoted)

	for _, id := range []string{byImportance.ID, byTag.ID} {
		got, err := m.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.TierLongTerm, got.Tier)
	}
}

func TestConsolidationRechecksAtSweepTime(t *testing.T) {
	m, clk := newTestManager(t)
	ctx := context.Background()

	it := mustStore(t, m, "half formed idea", StoreOptions{Tier: "short_term", Importance: ptr(0.5)})

	res, err := m.Consolidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Requeued)
	assert.Equal(t, 1, m.shortTerm.Pending())

	// Old but not low-importance: still left alone.
	clk.Advance(time.Hour)
	res, err = m.Consolidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Requeued)

	_, err = m.Update(ctx, it.ID, UpdateParams{Importance: ptr(0.9)})
	require.NoError(t, err)
	res, err = m.Consolidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Promoted)
	assert.Zero(t, m.shortTerm.Pending())
}

func TestConsolidationSkipsForgottenCandidates(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	it := mustStore(t, m, "temporary thought", StoreOptions{Tier: "short_term", Importance: ptr(0.5)})
	require.NoError(t, m.Forget(ctx, it.ID))

	res, err := m.Consolidate(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Candidates)
	assert.Zero(t, res.Requeued)
}

func TestConsolidationAndForgettingRaceMovesEachItemOnce(t *testing.T) {
	ctx := context.Background()
	for round := 0; round < 20; round++ {
		clk := newFakeClock()
		m := startManager(t, DefaultConfig(), clk)

		const n = 100
		for i := 0; i < n; i++ {
			mustStore(t, m, fmt.Sprintf("fading note %d", i), StoreOptions{
				Tier:       "short_term",
				Importance: ptr(0.01),
				Tags:       []string{TagImportant},
			})
		}
		// Every item is both promotable and certain to be forgotten.
		clk.Advance(1000 * time.Hour)

		var (
			wg        sync.WaitGroup
			promoted  ConsolidationResult
			forgotten ForgettingResult
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			promoted, _ = m.Consolidate(ctx)
		}()
		go func() {
			defer wg.Done()
			forgotten, _ = m.ApplyForgetting(ctx)
		}()
		wg.Wait()

		assert.Equal(t, n, promoted.Promoted+forgotten.Forgotten, "round %d", round)
		assert.Equal(t, promoted.Promoted, m.longTerm.Size(), "round %d", round)
		assert.Zero(t, m.shortTerm.Size(), "round %d", round)
		require.NoError(t, m.Shutdown(ctx))
	}
}

func TestConsolidationLeavesOtherTiersAlone(t *testing.T) {
	m, clk := newTestManager(t)
	ctx := context.Background()

	w := mustStore(t, m, "open tabs", StoreOptions{Tier: "working", Importance: ptr(0.1)})
	l := mustStore(t, m, "old archive", StoreOptions{Tier: "long_term", Importance: ptr(0.1)})
	clk.Advance(24 * time.Hour)

	_, err := m.Consolidate(ctx)
	require.NoError(t, err)
	_, err = m.ApplyForgetting(ctx)
	require.NoError(t, err)

	for _, id := range []string{w.ID, l.ID} {
		_, err := m.Get(ctx, id)
		assert.NoError(t, err)
	}
}

func TestForgetProbability(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	it := &model.Item{CreatedAt: now.Add(-10 * time.Hour), Importance: 0.5}

	want := 1 - math.Exp(-10*0.1/0.5)
	assert.InDelta(t, want, ForgetProbability(it, now, 0.1), 1e-12)

	it.AccessCount = 10
	assert.InDelta(t, 1-math.Exp(-10*0.1/1.0), ForgetProbability(it, now, 0.1), 1e-12)

	fresh := &model.Item{CreatedAt: now, Importance: 0.5}
	assert.Zero(t, ForgetProbability(fresh, now, 0.1))

	worthless := &model.Item{CreatedAt: now.Add(-time.Minute), Importance: 0}
	assert.InDelta(t, 1.0, ForgetProbability(worthless, now, 0.1), 1e-9)
}

func TestApplyForgettingIsStatistical(t *testing.T) {
	cfg := DefaultConfig()
	clk := newFakeClock()
	m := startManager(t, cfg, clk)
	ctx := context.Background()

	const n = 1000
	for i := 0; i < n; i++ {
		mustStore(t, m, fmt.Sprintf("memo %d", i), StoreOptions{Tier: "short_term", Importance: ptr(0.5)})
	}
	// Age at which the forget probability is one half.
	age := math.Ln2 * 5 * float64(time.Hour)
	clk.Advance(time.Duration(age))

	res, err := m.ApplyForgetting(ctx)
	require.NoError(t, err)
	assert.Equal(t, n, res.Examined)
	assert.InDelta(t, n/2, res.Forgotten, 100)
	assert.Equal(t, n-res.Forgotten, m.shortTerm.Size())
	assert.Equal(t, res.Forgotten, m.Stats().ForgettingEvicted)
}

func TestApplyForgettingExtremes(t *testing.T) {
	m, clk := newTestManager(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		mustStore(t, m, fmt.Sprintf("fresh %d", i), StoreOptions{Tier: "short_term", Importance: ptr(0.5)})
	}
	res, err := m.ApplyForgetting(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Forgotten, "nothing decays at age zero")

	clk.Advance(1000 * time.Hour)
	res, err = m.ApplyForgetting(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, res.Forgotten)
	assert.Zero(t, m.shortTerm.Size())
}

func TestApplyForgettingDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableForgetting = false
	clk := newFakeClock()
	m := startManager(t, cfg, clk)

	mustStore(t, m, "never fades", StoreOptions{Tier: "short_term", Importance: ptr(0.1)})
	clk.Advance(1000 * time.Hour)

	res, err := m.ApplyForgetting(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res)
	assert.Equal(t, 1, m.shortTerm.Size())
	assert.Zero(t, m.Stats().ForgettingRuns)
}

func TestForgettingIsSeedable(t *testing.T) {
	run := func() []string {
		clk := newFakeClock()
		m := startManager(t, DefaultConfig(), clk)
		for i := 0; i < 50; i++ {
			mustStore(t, m, fmt.Sprintf("note %d", i), StoreOptions{Tier: "short_term", Importance: ptr(0.5)})
		}
		clk.Advance(3 * time.Hour)
		_, err := m.ApplyForgetting(context.Background())
		require.NoError(t, err)
		var left []string
		for _, it := range m.shortTerm.All() {
			left = append(left, it.Content.Text)
		}
		return left
	}
	assert.Equal(t, run(), run())
}
