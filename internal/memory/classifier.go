package memory

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/rcliao/tiered-memory/internal/analyzer"
	"github.com/rcliao/tiered-memory/internal/model"
)

// TagImportant marks an item for promotion regardless of importance.
const TagImportant = "important"

// Classification carries the inputs the classifier needs besides the item.
type Classification struct {
	// Override, when set, is authoritative and skips the heuristics.
	Override          model.Tier
	LongTermThreshold float64
	WorkingHasRoom    bool
}

// Classify picks the tier for a new item. The first matching rule wins:
// explicit override, importance at or above the long-term threshold,
// factual content, episodic content, spare working capacity, short-term.
func Classify(it *model.Item, c Classification) model.Tier {
	if c.Override != "" {
		return c.Override
	}
	if it.Importance >= c.LongTermThreshold {
		return model.TierLongTerm
	}
	text := it.Content.String()
	if analyzer.IsFactual(text) {
		return model.TierSemantic
	}
	if analyzer.IsEpisodic(text) {
		return model.TierEpisodic
	}
	if c.WorkingHasRoom {
		return model.TierWorking
	}
	return model.TierShortTerm
}

// StoreOptions adjusts a Store call.
type StoreOptions struct {
	// Tier forces the destination tier. Accepts any name ParseTier does.
	Tier       string
	Importance *float64
	Tags       []string
	Metadata   map[string]any
}

// Store creates an item from content, classifies it and inserts it into
// its tier. A full working set spills its least recently accessed item
// into short-term before the insert completes.
func (m *Manager) Store(ctx context.Context, content model.Content, opts StoreOptions) (*model.Item, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var override model.Tier
	if opts.Tier != "" {
		t, ok := model.ParseTier(opts.Tier)
		if !ok {
			return nil, fmt.Errorf("store into tier %q: %w", opts.Tier, ErrInvalidOperation)
		}
		override = t
	}

	now := m.now()
	text := content.String()
	importance := analyzer.Importance(text, content.IsStructured())
	if opts.Importance != nil {
		if !finite(*opts.Importance) {
			return nil, fmt.Errorf("store with importance %v: %w", *opts.Importance, ErrInvalidOperation)
		}
		importance = analyzer.Clamp(*opts.Importance)
	}

	it := &model.Item{
		ID:             m.newID(now),
		Content:        content,
		CreatedAt:      now,
		LastAccessedAt: now,
		Importance:     importance,
		Tags:           mergeTags(analyzer.Tags(text), opts.Tags),
		Metadata:       opts.Metadata,
	}

	m.topo.Lock()
	it.Tier = Classify(it, Classification{
		Override:          override,
		LongTermThreshold: m.cfg.LongTermThreshold,
		WorkingHasRoom:    m.working.Size() < m.working.Capacity(),
	})
	switch it.Tier {
	case model.TierSemantic:
		if replaced := m.semantic.Upsert(it); replaced != nil {
			m.logger.Debug("semantic entry replaced",
				zap.String("id", it.ID), zap.String("replaced", replaced.ID))
		}
	default:
		m.tierStore(it.Tier).Put(it)
	}
	m.topo.Unlock()

	m.stats.add(func(c *counters) { c.TotalStored++ })
	m.metrics.ObserveStore(string(it.Tier))
	m.refreshTierGauges()

	m.logger.Debug("stored",
		zap.String("id", it.ID),
		zap.String("tier", string(it.Tier)),
		zap.Float64("importance", it.Importance),
	)
	if stored, err := m.Get(ctx, it.ID); err == nil {
		return stored, nil
	}
	return it, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func mergeTags(derived, extra []string) []string {
	seen := make(map[string]bool, len(derived)+len(extra))
	var out []string
	for _, list := range [][]string{derived, extra} {
		for _, t := range list {
			t = strings.TrimSpace(t)
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
