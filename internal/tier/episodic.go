package tier

import (
	"github.com/rcliao/tiered-memory/internal/model"
)

// DefaultEpisodicRetention bounds the episodic sequence.
const DefaultEpisodicRetention = 100

// Episodic is an append-only sequence bounded by retention; the oldest entry
// is dropped on overflow regardless of importance.
type Episodic struct {
	mapStore
	retention int
	onEvict   func(*model.Item)
}

// NewEpisodic creates an episodic store holding at most retention items.
func NewEpisodic(retention int) *Episodic {
	if retention < 1 {
		retention = DefaultEpisodicRetention
	}
	return &Episodic{
		mapStore:  mapStore{tier: model.TierEpisodic, table: table{items: newItems()}},
		retention: retention,
	}
}

// OnEvict registers a callback for entries dropped by overflow.
func (e *Episodic) OnEvict(fn func(*model.Item)) { e.onEvict = fn }

// Put appends item, dropping the oldest entries beyond retention.
func (e *Episodic) Put(item *model.Item) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.put(item)
	for e.items.Len() > e.retention {
		front := e.items.Front()
		e.items.Delete(front.Key)
		if e.onEvict != nil {
			e.onEvict(front.Value.Clone())
		}
	}
}

// Recent returns up to limit entries, newest last.
func (e *Episodic) Recent(limit int) []*model.Item {
	all := e.All()
	if limit <= 0 || limit >= len(all) {
		return all
	}
	return all[len(all)-limit:]
}
