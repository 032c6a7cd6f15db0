package tier

import (
	"sync"
	"time"

	"github.com/elliotchance/orderedmap/v3"

	"github.com/rcliao/tiered-memory/internal/model"
)

// KeyFunc derives the semantic dedup key of an item.
type KeyFunc func(*model.Item) string

// SemanticEntry pairs a derived key with its item.
type SemanticEntry struct {
	Key  string
	Item *model.Item
}

// Semantic stores facts keyed by a content-derived key, so near-identical
// facts collapse into one entry. A later insert under an existing key
// replaces the entry but keeps the original CreatedAt.
type Semantic struct {
	mu    sync.RWMutex
	byKey *orderedmap.OrderedMap[string, *model.Item]
	byID  map[string]string
	keyFn KeyFunc
}

// NewSemantic creates an empty semantic store. A nil keyFn keys by id.
func NewSemantic(keyFn KeyFunc) *Semantic {
	if keyFn == nil {
		keyFn = func(it *model.Item) string { return it.ID }
	}
	return &Semantic{
		byKey: newItems(),
		byID:  make(map[string]string),
		keyFn: keyFn,
	}
}

func (s *Semantic) Tier() model.Tier { return model.TierSemantic }

// Put inserts item under its derived key.
func (s *Semantic) Put(item *model.Item) {
	s.Upsert(item)
}

// Upsert inserts item and returns the entry it replaced, if any.
func (s *Semantic) Upsert(item *model.Item) *model.Item {
	key := s.keyFn(item)
	if key == "" {
		key = item.ID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putLocked(key, item.Clone())
}

// PutWithKey inserts item under an explicit key, as recorded in a snapshot.
func (s *Semantic) PutWithKey(key string, item *model.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(key, item.Clone())
}

func (s *Semantic) putLocked(key string, c *model.Item) *model.Item {
	c.Tier = model.TierSemantic

	// Re-keying an id already present elsewhere drops its old slot.
	if oldKey, ok := s.byID[c.ID]; ok && oldKey != key {
		s.byKey.Delete(oldKey)
		delete(s.byID, c.ID)
	}

	var replaced *model.Item
	if prev, ok := s.byKey.Get(key); ok {
		if prev.ID != c.ID {
			replaced = prev.Clone()
			delete(s.byID, prev.ID)
		}
		if prev.CreatedAt.Before(c.CreatedAt) {
			c.CreatedAt = prev.CreatedAt
		}
	}
	s.byKey.Set(key, c)
	s.byID[c.ID] = key
	return replaced
}

func (s *Semantic) Get(id string) (*model.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	it, ok := s.byKey.Get(key)
	if !ok {
		return nil, false
	}
	return it.Clone(), true
}

// KeyOf returns the derived key an id is stored under.
func (s *Semantic) KeyOf(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.byID[id]
	return key, ok
}

func (s *Semantic) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.byID[id]
	if !ok {
		return false
	}
	delete(s.byID, id)
	return s.byKey.Delete(key)
}

func (s *Semantic) All() []*model.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Item, 0, s.byKey.Len())
	for _, it := range s.byKey.AllFromFront() {
		out = append(out, it.Clone())
	}
	return out
}

// Entries returns every (derived key, item) pair in insertion order.
func (s *Semantic) Entries() []SemanticEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SemanticEntry, 0, s.byKey.Len())
	for key, it := range s.byKey.AllFromFront() {
		out = append(out, SemanticEntry{Key: key, Item: it.Clone()})
	}
	return out
}

func (s *Semantic) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byKey.Len()
}

func (s *Semantic) Touch(id string, at time.Time) (*model.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	it, ok := s.byKey.Get(key)
	if !ok {
		return nil, false
	}
	touch(it, at)
	return it.Clone(), true
}

// Update applies fn and re-keys the item if its derived key changed.
func (s *Semantic) Update(id string, fn func(*model.Item)) (*model.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	it, ok := s.byKey.Get(key)
	if !ok {
		return nil, false
	}
	fn(it)
	newKey := s.keyFn(it)
	if newKey == "" {
		newKey = it.ID
	}
	if newKey != key {
		s.putLocked(newKey, it.Clone())
	}
	it.Tier = model.TierSemantic
	updated, _ := s.byKey.Get(newKey)
	return updated.Clone(), true
}

// Clear drops every entry.
func (s *Semantic) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKey = newItems()
	s.byID = make(map[string]string)
}
