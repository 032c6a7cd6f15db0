package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/tiered-memory/internal/analyzer"
	"github.com/rcliao/tiered-memory/internal/model"
	"github.com/rcliao/tiered-memory/internal/tier"
)

// Relevance weights.
const (
	importanceWeight  = 0.2
	recencyWeight     = 0.1
	recencyDecayHours = 24.0
	frequencyCap      = 0.1

	relevancePrecision = 1e9
)

// Source is a tier as seen by a multi-tier scan. A failing Source
// contributes zero results.
type Source interface {
	Tier() model.Tier
	Scan(ctx context.Context) ([]*model.Item, error)
}

type storeSource struct {
	tier.Store
}

func (s storeSource) Scan(ctx context.Context) ([]*model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.All(), nil
}

// RetrieveOptions narrows a Retrieve call. Zero values use the defaults.
type RetrieveOptions struct {
	// Tiers restricts the scan. Unknown names are ignored.
	Tiers     []string
	Limit     int
	Threshold *float64
}

// Relevance scores it against the query terms at time now, in [0,1]:
// keyword overlap, plus importance, recency of last access and access
// frequency boosts.
func Relevance(it *model.Item, terms []string, now time.Time) float64 {
	var overlap float64
	if len(terms) > 0 {
		words := analyzer.WordSet(it.Content.String())
		matched := 0
		for _, t := range terms {
			if words[t] {
				matched++
			}
		}
		overlap = float64(matched) / float64(len(terms))
	}

	ageHours := now.Sub(it.LastAccessedAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	recency := math.Exp(-ageHours / recencyDecayHours)
	frequency := math.Min(float64(it.AccessCount)/10, frequencyCap)

	score := overlap + it.Importance*importanceWeight + recency*recencyWeight + frequency
	// Rounded so that sums like 0.1+0.1+0.1 compare equal to the threshold.
	return math.Min(math.Round(score*relevancePrecision)/relevancePrecision, 1)
}

// Retrieve scores every item of the requested tiers against query, keeps
// those above the threshold and returns the best, most relevant first.
// Each returned item counts as an access.
func (m *Manager) Retrieve(ctx context.Context, query string, opts RetrieveOptions) ([]model.ScoredItem, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultRetrievalLimit
	}
	threshold := DefaultRetrievalThreshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	terms := analyzer.Terms(query)
	now := m.now()

	m.topo.RLock()
	defer m.topo.RUnlock()

	sources := m.sourcesFor(opts.Tiers)
	found := m.scan(ctx, sources)

	var scored []model.ScoredItem
	for _, items := range found {
		for _, it := range items {
			if r := Relevance(it, terms, now); r > threshold {
				scored = append(scored, model.ScoredItem{Item: it, Relevance: r})
			}
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Relevance != b.Relevance {
			return a.Relevance > b.Relevance
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}

	out := make([]model.ScoredItem, 0, len(scored))
	for _, s := range scored {
		st := m.tierStore(s.Tier)
		if st == nil {
			continue
		}
		touched, ok := st.Touch(s.ID, now)
		if !ok {
			continue
		}
		out = append(out, model.ScoredItem{Item: touched, Relevance: s.Relevance})
	}

	elapsed := time.Since(start)
	m.stats.add(func(c *counters) {
		c.Retrievals++
		c.TotalRetrieved += len(out)
		c.RetrievalTime += elapsed
	})
	m.metrics.ObserveRetrieval(elapsed, len(out))

	m.logger.Debug("retrieved",
		zap.String("query", query),
		zap.Int("hits", len(out)),
		zap.Duration("elapsed", elapsed),
	)
	return out, nil
}

// resolveTiers maps names to tiers, dropping unknown ones. No names means
// every tier.
func resolveTiers(names []string) []model.Tier {
	if len(names) == 0 {
		return model.AllTiers
	}
	seen := map[model.Tier]bool{}
	var out []model.Tier
	for _, n := range names {
		t, ok := model.ParseTier(n)
		if !ok || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func (m *Manager) sourcesFor(names []string) []Source {
	var out []Source
	for _, t := range resolveTiers(names) {
		if src, ok := m.sources[t]; ok {
			out = append(out, src)
		}
	}
	return out
}

// scan reads every source concurrently. A source that fails, or panics,
// is logged as unavailable and yields nothing. Callers hold topo.
func (m *Manager) scan(ctx context.Context, sources []Source) [][]*model.Item {
	found := make([][]*model.Item, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			items, err := scanSource(gctx, src)
			if err != nil {
				m.logger.Warn("tier scan failed",
					zap.String("tier", string(src.Tier())),
					zap.Error(err),
				)
				return nil
			}
			found[i] = items
			return nil
		})
	}
	_ = g.Wait()
	return found
}

func scanSource(ctx context.Context, src Source) (items []*model.Item, err error) {
	defer func() {
		if r := recover(); r != nil {
			items, err = nil, fmt.Errorf("%w: %s: %v", ErrTierUnavailable, src.Tier(), r)
		}
	}()
	items, err = src.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTierUnavailable, src.Tier(), err)
	}
	return items, nil
}

// SearchOptions narrows a Search call.
type SearchOptions struct {
	Tiers []string
	// Tags must all be present on a hit.
	Tags  []string
	Limit int
}

// Search is a non-mutating lookup: case-insensitive substring match on the
// content plus a tag filter, newest first. It never counts as an access.
func (m *Manager) Search(ctx context.Context, query string, opts SearchOptions) ([]*model.Item, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	needle := strings.ToLower(strings.TrimSpace(query))

	m.topo.RLock()
	found := m.scan(ctx, m.sourcesFor(opts.Tiers))
	m.topo.RUnlock()

	var hits []*model.Item
	for _, items := range found {
		for _, it := range items {
			if needle != "" && !strings.Contains(strings.ToLower(it.Content.String()), needle) {
				continue
			}
			if !hasAllTags(it, opts.Tags) {
				continue
			}
			hits = append(hits, it)
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if !hits[i].CreatedAt.Equal(hits[j].CreatedAt) {
			return hits[i].CreatedAt.After(hits[j].CreatedAt)
		}
		return hits[i].ID > hits[j].ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func hasAllTags(it *model.Item, tags []string) bool {
	for _, t := range tags {
		if !it.HasTag(t) {
			return false
		}
	}
	return true
}

// Get returns the item with id without touching its access stats.
func (m *Manager) Get(ctx context.Context, id string) (*model.Item, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	m.topo.RLock()
	defer m.topo.RUnlock()
	it, _, ok := m.locate(id)
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return it, nil
}
