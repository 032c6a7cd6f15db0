package memory

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/tiered-memory/internal/metrics"
	"github.com/rcliao/tiered-memory/internal/model"
)

const minStrength = 1e-6

// ForgettingResult summarizes one forgetting cycle.
type ForgettingResult struct {
	Examined  int `json:"examined"`
	Forgotten int `json:"forgotten"`
	Failed    int `json:"failed"`
}

// ForgetProbability is the chance that a short-term item is dropped in a
// forgetting cycle at time now: 1 - e^(-ageHours*factor/strength), where
// strength grows with importance and access count.
func ForgetProbability(it *model.Item, now time.Time, factor float64) float64 {
	ageHours := now.Sub(it.CreatedAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	strength := it.Importance * (1 + float64(it.AccessCount)*0.1)
	if strength < minStrength {
		strength = minStrength
	}
	return 1 - math.Exp(-ageHours*factor/strength)
}

// ApplyForgetting draws once per short-term item and deletes those whose
// draw falls under their forget probability. It is a no-op when
// forgetting is disabled.
func (m *Manager) ApplyForgetting(ctx context.Context) (ForgettingResult, error) {
	if err := m.ready(); err != nil {
		return ForgettingResult{}, err
	}
	if !m.cfg.EnableForgetting {
		return ForgettingResult{}, nil
	}
	return m.forget(), nil
}

func (m *Manager) forget() ForgettingResult {
	now := m.now()
	items := m.shortTerm.All()
	res := ForgettingResult{Examined: len(items)}

	for _, it := range items {
		dropped, err := m.forgetOne(it, now)
		if err != nil {
			res.Failed++
			m.logger.Warn("forgetting skipped item", zap.String("id", it.ID), zap.Error(err))
			continue
		}
		if dropped {
			res.Forgotten++
		}
	}

	m.stats.add(func(c *counters) {
		c.ForgettingRuns++
		c.ForgettingEvicted += res.Forgotten
		c.LastForgetting = now
	})
	m.metrics.ObserveSweep(metrics.SweepForgetting, 0, res.Forgotten)
	m.refreshTierGauges()

	m.logger.Info("forgetting cycle",
		zap.Int("examined", res.Examined),
		zap.Int("forgotten", res.Forgotten),
		zap.Int("failed", res.Failed),
	)
	return res
}

func (m *Manager) forgetOne(it *model.Item, now time.Time) (dropped bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("forget %s: %v", it.ID, r)
		}
	}()
	p := ForgetProbability(it, now, m.cfg.ForgettingCurveFactor)
	if m.draw() >= p {
		return false, nil
	}
	// Shared hold keeps a promotion from moving the item mid-delete.
	m.topo.RLock()
	defer m.topo.RUnlock()
	return m.shortTerm.Delete(it.ID), nil
}
