package tier

import (
	"fmt"
	"time"

	"github.com/rcliao/tiered-memory/internal/model"
)

// DefaultWorkingCapacity is the classic seven-item working set.
const DefaultWorkingCapacity = 7

// Working is the capacity-bounded working set. Items are kept in recency
// order: the front is the least recently accessed (or, if never accessed,
// least recently created) item and is the one evicted on overflow.
type Working struct {
	mapStore
	capacity int
	spill    Store
	onEvict  func(*model.Item)
}

// NewWorking creates a working store that spills evicted items into spill.
func NewWorking(capacity int, spill Store) *Working {
	if capacity < 1 {
		capacity = 1
	}
	return &Working{
		mapStore: mapStore{tier: model.TierWorking, table: table{items: newItems()}},
		capacity: capacity,
		spill:    spill,
	}
}

// OnEvict registers a callback invoked for every item spilled out of the working set.
func (w *Working) OnEvict(fn func(*model.Item)) { w.onEvict = fn }

// Capacity returns the configured capacity.
func (w *Working) Capacity() int { return w.capacity }

// Put inserts item. When the set is full the least recently accessed item is
// moved to the spill store before the insert completes. Replacing an existing
// id keeps its recency position.
func (w *Working) Put(item *model.Item) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.items.Has(item.ID) && w.items.Len() >= w.capacity {
		w.evictLocked()
	}
	w.put(item)

	if n := w.items.Len(); n > w.capacity {
		panic(fmt.Sprintf("tier: working capacity invariant violated: size %d > capacity %d", n, w.capacity))
	}
}

func (w *Working) evictLocked() {
	front := w.items.Front()
	if front == nil {
		return
	}
	victim := front.Value
	w.items.Delete(front.Key)
	if w.spill != nil {
		w.spill.Put(victim)
	}
	if w.onEvict != nil {
		w.onEvict(victim.Clone())
	}
}

// Touch records an access and moves the item to the most-recent end.
func (w *Working) Touch(id string, at time.Time) (*model.Item, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	it, ok := w.items.Get(id)
	if !ok {
		return nil, false
	}
	touch(it, at)
	w.items.Delete(id)
	w.items.Set(id, it)
	return it.Clone(), true
}

// LeastRecent returns the id that would be evicted next.
func (w *Working) LeastRecent() (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	front := w.items.Front()
	if front == nil {
		return "", false
	}
	return front.Key, true
}
