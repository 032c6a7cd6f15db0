package memory

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rcliao/tiered-memory/internal/model"
	"github.com/rcliao/tiered-memory/internal/snapshot"
)

var errNoBackend = errors.New("no snapshot backend configured")

// Snapshot encodes the long-term, semantic and episodic tiers. Working and
// short-term items are transient and never included.
func (m *Manager) Snapshot() ([]byte, error) {
	m.topo.RLock()
	s := &snapshot.Snapshot{Timestamp: m.now()}
	for _, it := range m.longTerm.All() {
		s.LongTermMemory = append(s.LongTermMemory, snapshot.Entry{Key: it.ID, Item: it})
	}
	for _, e := range m.semantic.Entries() {
		s.SemanticMemory = append(s.SemanticMemory, snapshot.Entry{Key: e.Key, Item: e.Item})
	}
	s.EpisodicMemory = m.episodic.All()
	m.topo.RUnlock()

	data, err := snapshot.Encode(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Restore replaces the durable tiers with the contents of data. Undecodable
// data returns ErrCorruptSnapshot and leaves every tier as it was.
func (m *Manager) Restore(data []byte) error {
	s, err := snapshot.Decode(data)
	if err != nil {
		return err
	}

	m.topo.Lock()
	defer m.topo.Unlock()

	m.longTerm.Clear()
	m.semantic.Clear()
	m.episodic.Clear()

	for _, e := range s.LongTermMemory {
		m.evictTransient(e.Item.ID)
		m.longTerm.Put(e.Item)
	}
	for _, e := range s.SemanticMemory {
		m.evictTransient(e.Item.ID)
		m.semantic.PutWithKey(e.Key, e.Item)
	}
	for _, it := range s.EpisodicMemory {
		m.evictTransient(it.ID)
		m.episodic.Put(it)
	}

	m.refreshTierGauges()
	m.logger.Info("snapshot restored",
		zap.Time("taken_at", s.Timestamp),
		zap.Int("long_term", m.longTerm.Size()),
		zap.Int("semantic", m.semantic.Size()),
		zap.Int("episodic", m.episodic.Size()),
	)
	return nil
}

// evictTransient keeps a restored id from also living in working or
// short-term. Callers hold topo for writing.
func (m *Manager) evictTransient(id string) {
	m.working.Delete(id)
	m.shortTerm.Delete(id)
}

// Persist writes a fresh snapshot to the backend.
func (m *Manager) Persist(ctx context.Context) error {
	if m.backend == nil {
		return fmt.Errorf("persist: %w", errNoBackend)
	}
	data, err := m.Snapshot()
	if err != nil {
		return err
	}
	if err := m.backend.Save(ctx, data); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	m.stats.add(func(c *counters) {
		c.Persisted++
		c.LastPersist = m.now()
	})
	m.logger.Debug("snapshot persisted", zap.Int("bytes", len(data)))
	return nil
}

// durable reports whether t survives a restart.
func durable(t model.Tier) bool {
	return t == model.TierLongTerm || t == model.TierSemantic || t == model.TierEpisodic
}
