package memory

import (
	"sync"
	"time"

	"github.com/rcliao/tiered-memory/internal/model"
)

type counters struct {
	mu sync.Mutex

	TotalStored    int
	TotalRetrieved int
	Retrievals     int
	RetrievalTime  time.Duration
	Updated        int
	Forgotten      int

	WorkingEvictions  int
	EpisodicEvictions int

	ConsolidationRuns      int
	Promoted               int
	ConsolidationForgotten int
	LastConsolidation      time.Time

	ForgettingRuns    int
	ForgettingEvicted int
	LastForgetting    time.Time

	Persisted   int
	LastPersist time.Time
}

func (c *counters) add(fn func(*counters)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c)
}

// Stats is a point-in-time view of tier occupancy and activity counters.
type Stats struct {
	Tiers        map[model.Tier]int `json:"tiers"`
	TotalItems   int                `json:"total_items"`
	DurableItems int                `json:"durable_items"`
	Pending      int                `json:"pending_candidates"`

	TotalStored          int           `json:"total_stored"`
	TotalRetrieved       int           `json:"total_retrieved"`
	Retrievals           int           `json:"retrievals"`
	AvgRetrievalTime     time.Duration `json:"avg_retrieval_time_ns"`
	Updated              int           `json:"updated"`
	Forgotten            int           `json:"forgotten"`
	WorkingEvictions     int           `json:"working_evictions"`
	EpisodicEvictions    int           `json:"episodic_evictions"`
	ConsolidationRuns    int           `json:"consolidation_runs"`
	Promoted             int           `json:"promoted"`
	ConsolidationDeleted int           `json:"consolidation_forgotten"`
	ForgettingRuns       int           `json:"forgetting_runs"`
	ForgettingEvicted    int           `json:"forgetting_evicted"`
	Persisted            int           `json:"persisted"`

	LastConsolidation *time.Time `json:"last_consolidation,omitempty"`
	LastForgetting    *time.Time `json:"last_forgetting,omitempty"`
	LastPersist       *time.Time `json:"last_persist,omitempty"`
}

// Stats reports current tier sizes and counters. It works in any state so
// callers can report on a manager that failed to start.
func (m *Manager) Stats() Stats {
	st := Stats{Tiers: make(map[model.Tier]int, len(model.AllTiers))}

	m.topo.RLock()
	for _, t := range model.AllTiers {
		n := m.tierStore(t).Size()
		st.Tiers[t] = n
		st.TotalItems += n
		if durable(t) {
			st.DurableItems += n
		}
	}
	st.Pending = m.shortTerm.Pending()
	m.topo.RUnlock()

	m.stats.mu.Lock()
	c := &m.stats
	st.TotalStored = c.TotalStored
	st.TotalRetrieved = c.TotalRetrieved
	st.Retrievals = c.Retrievals
	if c.Retrievals > 0 {
		st.AvgRetrievalTime = c.RetrievalTime / time.Duration(c.Retrievals)
	}
	st.Updated = c.Updated
	st.Forgotten = c.Forgotten
	st.WorkingEvictions = c.WorkingEvictions
	st.EpisodicEvictions = c.EpisodicEvictions
	st.ConsolidationRuns = c.ConsolidationRuns
	st.Promoted = c.Promoted
	st.ConsolidationDeleted = c.ConsolidationForgotten
	st.ForgettingRuns = c.ForgettingRuns
	st.ForgettingEvicted = c.ForgettingEvicted
	st.Persisted = c.Persisted
	st.LastConsolidation = timePtr(c.LastConsolidation)
	st.LastForgetting = timePtr(c.LastForgetting)
	st.LastPersist = timePtr(c.LastPersist)
	m.stats.mu.Unlock()

	return st
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
