package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/tiered-memory/internal/model"
)

type brokenSource struct {
	tier  model.Tier
	panic bool
}

func (b brokenSource) Tier() model.Tier { return b.tier }

func (b brokenSource) Scan(context.Context) ([]*model.Item, error) {
	if b.panic {
		panic("index corrupted")
	}
	return nil, errors.New("disk on fire")
}

func TestRetrieveLongTermFact(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	it := mustStore(t, m, "The sky is blue", StoreOptions{Importance: ptr(0.9)})
	require.Equal(t, model.TierLongTerm, it.Tier)

	hits, err := m.Retrieve(ctx, "sky", RetrieveOptions{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, it.ID, hits[0].ID)
	assert.Greater(t, hits[0].Relevance, 0.3)
	assert.Equal(t, 1, hits[0].AccessCount)
}

func TestRetrieveOrdersByRelevanceThenRecency(t *testing.T) {
	m, clk := newTestManager(t)
	ctx := context.Background()

	older := mustStore(t, m, "rust compiler notes", StoreOptions{Tier: "long_term", Importance: ptr(0.5)})
	clk.Advance(time.Minute)
	newer := mustStore(t, m, "rust compiler tips", StoreOptions{Tier: "long_term", Importance: ptr(0.5)})
	clk.Advance(time.Minute)
	partial := mustStore(t, m, "rust belt towns", StoreOptions{Tier: "long_term", Importance: ptr(0.5)})

	hits, err := m.Retrieve(ctx, "rust compiler", RetrieveOptions{})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, newer.ID, hits[0].ID, "equal relevance breaks ties by newest")
	assert.Equal(t, older.ID, hits[1].ID)
	assert.Equal(t, partial.ID, hits[2].ID)
	assert.GreaterOrEqual(t, hits[1].Relevance, hits[2].Relevance)
}

func TestRetrieveLimitAndThreshold(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	for _, s := range []string{"kite one", "kite two", "kite three", "kite four"} {
		mustStore(t, m, s, StoreOptions{Tier: "long_term", Importance: ptr(0.5)})
	}
	hits, err := m.Retrieve(ctx, "kite", RetrieveOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = m.Retrieve(ctx, "kite", RetrieveOptions{Threshold: ptr(1.0)})
	require.NoError(t, err)
	assert.Empty(t, hits, "relevance must exceed the threshold")

	// The first call touched two items: 0.1 importance + 0.1 recency + 0.1
	// frequency is not above 0.3.
	hits, err = m.Retrieve(ctx, "balloon", RetrieveOptions{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestRetrieveIgnoresUnknownTiers(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	mustStore(t, m, "The sky is blue", StoreOptions{Importance: ptr(0.9)})
	mustStore(t, m, "sky lantern", StoreOptions{Tier: "working"})

	hits, err := m.Retrieve(ctx, "sky", RetrieveOptions{Tiers: []string{"attic", "long-term"}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, model.TierLongTerm, hits[0].Tier)

	hits, err = m.Retrieve(ctx, "sky", RetrieveOptions{Tiers: []string{"attic"}})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestRetrieveSurvivesFailingTier(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	mustStore(t, m, "The sky is blue", StoreOptions{Importance: ptr(0.9)})
	lantern := mustStore(t, m, "sky lantern", StoreOptions{Tier: "working"})

	m.sources[model.TierLongTerm] = brokenSource{tier: model.TierLongTerm}
	m.sources[model.TierSemantic] = brokenSource{tier: model.TierSemantic, panic: true}

	hits, err := m.Retrieve(ctx, "sky", RetrieveOptions{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, lantern.ID, hits[0].ID)
}

func TestScanSourceWrapsTierUnavailable(t *testing.T) {
	_, err := scanSource(context.Background(), brokenSource{tier: model.TierEpisodic})
	assert.ErrorIs(t, err, ErrTierUnavailable)

	_, err = scanSource(context.Background(), brokenSource{tier: model.TierEpisodic, panic: true})
	assert.ErrorIs(t, err, ErrTierUnavailable)
}

func TestRetrieveTouchesHits(t *testing.T) {
	m, clk := newTestManager(t)
	ctx := context.Background()

	it := mustStore(t, m, "ocean tides", StoreOptions{Tier: "long_term", Importance: ptr(0.5)})
	clk.Advance(time.Hour)

	hits, err := m.Retrieve(ctx, "tides", RetrieveOptions{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 1, hits[0].AccessCount)
	assert.True(t, hits[0].LastAccessedAt.Equal(it.CreatedAt.Add(time.Hour)))

	got, err := m.Get(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AccessCount, "get does not count as an access")
}

func TestSearch(t *testing.T) {
	m, clk := newTestManager(t)
	ctx := context.Background()

	a := mustStore(t, m, "Deploy the billing service", StoreOptions{Tier: "long_term", Tags: []string{"ops"}})
	clk.Advance(time.Minute)
	b := mustStore(t, m, "billing dashboard is slow", StoreOptions{Tier: "short_term", Tags: []string{"ops", "perf"}})
	clk.Advance(time.Minute)
	mustStore(t, m, "lunch plans", StoreOptions{Tier: "working"})

	hits, err := m.Search(ctx, "BILLING", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, b.ID, hits[0].ID, "newest first")
	assert.Equal(t, a.ID, hits[1].ID)
	assert.Zero(t, hits[0].AccessCount)

	hits, err = m.Search(ctx, "", SearchOptions{Tags: []string{"ops", "perf"}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, b.ID, hits[0].ID)

	hits, err = m.Search(ctx, "billing", SearchOptions{Tiers: []string{"long_term"}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, a.ID, hits[0].ID)

	hits, err = m.Search(ctx, "", SearchOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	assert.Zero(t, m.Stats().Retrievals)
}

func TestRelevance(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	it := &model.Item{
		Content:        model.TextContent("the quick brown fox"),
		Importance:     0.5,
		LastAccessedAt: now,
	}

	full := Relevance(it, []string{"quick", "fox"}, now)
	assert.InDelta(t, 1.0, full, 1e-9, "capped at one")

	half := Relevance(it, []string{"quick", "cat"}, now)
	assert.InDelta(t, 0.5+0.1+0.1, half, 1e-9)

	none := Relevance(it, []string{"cat"}, now)
	assert.InDelta(t, 0.2, none, 1e-9)

	stale := Relevance(it, []string{"cat"}, now.Add(24*time.Hour))
	assert.Less(t, stale, none)

	it.AccessCount = 1
	assert.Equal(t, 0.3, Relevance(it, []string{"cat"}, now), "boosts alone land exactly on the default threshold")

	it.AccessCount = 50
	assert.InDelta(t, 0.3, Relevance(it, []string{"cat"}, now), 1e-9, "frequency boost caps at 0.1")
}
