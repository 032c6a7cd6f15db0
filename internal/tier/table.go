// Package tier implements the five memory tier stores.
//
// Every store keeps its items in an insertion-ordered map guarded by its own
// mutex. Stores hand out clones, never the items they own.
package tier

import (
	"sync"
	"time"

	"github.com/elliotchance/orderedmap/v3"

	"github.com/rcliao/tiered-memory/internal/model"
)

// Store is the contract shared by every tier.
type Store interface {
	Tier() model.Tier
	Put(item *model.Item)
	Get(id string) (*model.Item, bool)
	Delete(id string) bool
	All() []*model.Item
	Size() int

	// Touch records a retrieval hit: AccessCount+1 and LastAccessedAt moved
	// forward to at. Returns the updated clone.
	Touch(id string, at time.Time) (*model.Item, bool)

	// Update applies fn to the owned item in place.
	Update(id string, fn func(*model.Item)) (*model.Item, bool)
}

// table is an ordered id -> item map. Callers hold mu.
type table struct {
	mu    sync.RWMutex
	items *orderedmap.OrderedMap[string, *model.Item]
}

func newItems() *orderedmap.OrderedMap[string, *model.Item] {
	return orderedmap.NewOrderedMap[string, *model.Item]()
}

func (t *table) get(id string) (*model.Item, bool) {
	it, ok := t.items.Get(id)
	if !ok {
		return nil, false
	}
	return it.Clone(), true
}

func (t *table) all() []*model.Item {
	out := make([]*model.Item, 0, t.items.Len())
	for _, it := range t.items.AllFromFront() {
		out = append(out, it.Clone())
	}
	return out
}

func touch(it *model.Item, at time.Time) {
	it.AccessCount++
	if at.After(it.LastAccessedAt) {
		it.LastAccessedAt = at
	}
}

// mapStore is the plain keyed store behind LongTerm and ShortTerm.
type mapStore struct {
	tier model.Tier
	table
}

func (s *mapStore) Tier() model.Tier { return s.tier }

func (s *mapStore) Put(item *model.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(item)
}

func (s *mapStore) put(item *model.Item) {
	c := item.Clone()
	c.Tier = s.tier
	s.items.Set(c.ID, c)
}

func (s *mapStore) Get(id string) (*model.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(id)
}

func (s *mapStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Delete(id)
}

func (s *mapStore) All() []*model.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.all()
}

func (s *mapStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items.Len()
}

func (s *mapStore) Touch(id string, at time.Time) (*model.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items.Get(id)
	if !ok {
		return nil, false
	}
	touch(it, at)
	return it.Clone(), true
}

func (s *mapStore) Update(id string, fn func(*model.Item)) (*model.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items.Get(id)
	if !ok {
		return nil, false
	}
	fn(it)
	it.Tier = s.tier
	return it.Clone(), true
}

// LongTerm is unbounded and never evicts on its own.
type LongTerm struct {
	mapStore
}

// NewLongTerm creates an empty long-term store.
func NewLongTerm() *LongTerm {
	return &LongTerm{mapStore{tier: model.TierLongTerm, table: table{items: newItems()}}}
}

// Clear drops every item.
func (s *mapStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = newItems()
}
