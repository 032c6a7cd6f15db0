package memory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rcliao/tiered-memory/internal/analyzer"
	"github.com/rcliao/tiered-memory/internal/model"
)

// UpdateParams holds the fields an explicit update may change. Nil fields
// are left alone.
type UpdateParams struct {
	Content    *model.Content
	Importance *float64
	// Tags, when non-nil, replace the item's tags.
	Tags     []string
	Metadata map[string]any
}

// Update changes an item in place in the tier that owns it. It never moves
// the item and does not count as an access.
func (m *Manager) Update(ctx context.Context, id string, p UpdateParams) (*model.Item, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if p.Importance != nil && !finite(*p.Importance) {
		return nil, fmt.Errorf("update %s with importance %v: %w", id, *p.Importance, ErrInvalidOperation)
	}

	m.topo.RLock()
	defer m.topo.RUnlock()

	_, st, ok := m.locate(id)
	if !ok {
		return nil, fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	updated, ok := st.Update(id, func(it *model.Item) {
		if p.Content != nil {
			it.Content = *p.Content
		}
		if p.Importance != nil {
			it.Importance = analyzer.Clamp(*p.Importance)
		}
		if p.Tags != nil {
			it.Tags = mergeTags(nil, p.Tags)
		}
		for k, v := range p.Metadata {
			if it.Metadata == nil {
				it.Metadata = map[string]any{}
			}
			it.Metadata[k] = v
		}
	})
	if !ok {
		return nil, fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	m.stats.add(func(c *counters) { c.Updated++ })
	m.logger.Debug("updated", zap.String("id", id), zap.String("tier", string(updated.Tier)))
	return updated, nil
}

// Forget deletes an item from whichever tier holds it. This is the only
// way items leave the long-term and semantic tiers.
func (m *Manager) Forget(ctx context.Context, id string) error {
	if err := m.ready(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.topo.RLock()
	var from []string
	for _, t := range model.AllTiers {
		if m.tierStore(t).Delete(id) {
			from = append(from, string(t))
		}
	}
	m.topo.RUnlock()

	if len(from) == 0 {
		return fmt.Errorf("forget %s: %w", id, ErrNotFound)
	}
	m.stats.add(func(c *counters) { c.Forgotten++ })
	m.refreshTierGauges()
	m.logger.Debug("forgotten", zap.String("id", id), zap.Strings("tiers", from))
	return nil
}
