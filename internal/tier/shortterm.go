package tier

import (
	"github.com/elliotchance/orderedmap/v3"

	"github.com/rcliao/tiered-memory/internal/model"
)

// ShortTerm is unbounded; every insert queues the id as a consolidation candidate.
type ShortTerm struct {
	mapStore
	candidates *orderedmap.OrderedMap[string, struct{}]
}

// NewShortTerm creates an empty short-term store.
func NewShortTerm() *ShortTerm {
	return &ShortTerm{
		mapStore:   mapStore{tier: model.TierShortTerm, table: table{items: newItems()}},
		candidates: orderedmap.NewOrderedMap[string, struct{}](),
	}
}

// Put stores item and enqueues it for consolidation.
func (s *ShortTerm) Put(item *model.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(item)
	s.candidates.Set(item.ID, struct{}{})
}

// Delete removes the item and its pending candidate entry.
func (s *ShortTerm) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates.Delete(id)
	return s.items.Delete(id)
}

// DrainCandidates empties the candidate queue and returns it in FIFO order.
func (s *ShortTerm) DrainCandidates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, s.candidates.Len())
	for id := range s.candidates.Keys() {
		ids = append(ids, id)
	}
	s.candidates = orderedmap.NewOrderedMap[string, struct{}]()
	return ids
}

// Requeue puts id back on the candidate queue if the item is still present.
func (s *ShortTerm) Requeue(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.items.Has(id) {
		return false
	}
	s.candidates.Set(id, struct{}{})
	return true
}

// Pending returns the number of queued candidates.
func (s *ShortTerm) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.candidates.Len()
}
