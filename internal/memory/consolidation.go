package memory

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/tiered-memory/internal/metrics"
)

// Consolidation thresholds.
const (
	promoteAccessCount = 3
	staleImportance    = 0.3
)

// ConsolidationResult summarizes one consolidation cycle.
type ConsolidationResult struct {
	Candidates int `json:"candidates"`
	Promoted   int `json:"promoted"`
	Forgotten  int `json:"forgotten"`
	Requeued   int `json:"requeued"`
	Failed     int `json:"failed"`
}

type consolidationOutcome int

const (
	outcomeGone consolidationOutcome = iota
	outcomePromoted
	outcomeForgotten
	outcomeRequeued
)

// Consolidate drains the short-term candidate queue once. Eligibility is
// decided from each item's state now, not when it was queued: items that
// qualify move to long-term, stale low-importance items are deleted, and
// the rest go back on the queue. A failing item is logged and skipped.
func (m *Manager) Consolidate(ctx context.Context) (ConsolidationResult, error) {
	if err := m.ready(); err != nil {
		return ConsolidationResult{}, err
	}
	return m.consolidate(), nil
}

func (m *Manager) consolidate() ConsolidationResult {
	now := m.now()
	ids := m.shortTerm.DrainCandidates()
	res := ConsolidationResult{Candidates: len(ids)}

	for _, id := range ids {
		outcome, err := m.consolidateOne(id, now)
		if err != nil {
			res.Failed++
			m.shortTerm.Requeue(id)
			m.logger.Warn("consolidation skipped item", zap.String("id", id), zap.Error(err))
			continue
		}
		switch outcome {
		case outcomePromoted:
			res.Promoted++
		case outcomeForgotten:
			res.Forgotten++
		case outcomeRequeued:
			res.Requeued++
		}
	}

	m.stats.add(func(c *counters) {
		c.ConsolidationRuns++
		c.Promoted += res.Promoted
		c.ConsolidationForgotten += res.Forgotten
		c.LastConsolidation = now
	})
	m.metrics.ObserveSweep(metrics.SweepConsolidation, res.Promoted, res.Forgotten)
	m.refreshTierGauges()

	m.logger.Info("consolidation cycle",
		zap.Int("candidates", res.Candidates),
		zap.Int("promoted", res.Promoted),
		zap.Int("forgotten", res.Forgotten),
		zap.Int("requeued", res.Requeued),
		zap.Int("failed", res.Failed),
	)
	return res
}

// consolidateOne moves a single candidate under the topology lock so the
// promotion is never visible half-done.
func (m *Manager) consolidateOne(id string, now time.Time) (outcome consolidationOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("consolidate %s: %v", id, r)
		}
	}()

	m.topo.Lock()
	defer m.topo.Unlock()

	it, ok := m.shortTerm.Get(id)
	if !ok {
		return outcomeGone, nil
	}

	switch {
	case it.Importance >= m.cfg.LongTermThreshold ||
		it.AccessCount >= promoteAccessCount ||
		it.HasTag(TagImportant):
		if !m.shortTerm.Delete(id) {
			return outcomeGone, nil
		}
		m.longTerm.Put(it)
		m.logger.Debug("promoted to long-term", zap.String("id", id))
		return outcomePromoted, nil

	case now.Sub(it.CreatedAt) > m.cfg.ShortTermDuration && it.Importance < staleImportance:
		if !m.shortTerm.Delete(id) {
			return outcomeGone, nil
		}
		return outcomeForgotten, nil
	}

	m.shortTerm.Requeue(id)
	return outcomeRequeued, nil
}
