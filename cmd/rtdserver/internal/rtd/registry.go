package rtd

import (
	"iter"
	"sync"

	"github.com/shubham-shewale/stock-rtd/pkg/models"
)

type topic struct {
	id    int
	field models.Field
}

// Registry maps host assigned topic ids to the field they watch.
// Enumeration follows insertion order; re-subscribing an active id keeps its slot.
type Registry struct {
	mu     sync.RWMutex
	topics []topic
	index  map[int]int // topic id -> position in topics
}

func NewRegistry() *Registry {
	return &Registry{index: make(map[int]int)}
}

// Add records (or overwrites) the mapping and returns the normalized field.
func (r *Registry) Add(id int, field string) models.Field {
	f := models.NormalizeField(field)

	r.mu.Lock()
	defer r.mu.Unlock()

	if pos, ok := r.index[id]; ok {
		r.topics[pos].field = f
		return f
	}
	r.index[id] = len(r.topics)
	r.topics = append(r.topics, topic{id: id, field: f})
	return f
}

// Remove drops the mapping. Unknown ids are ignored.
func (r *Registry) Remove(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos, ok := r.index[id]
	if !ok {
		return
	}
	r.topics = append(r.topics[:pos], r.topics[pos+1:]...)
	delete(r.index, id)
	for i := pos; i < len(r.topics); i++ {
		r.index[r.topics[i].id] = i
	}
}

func (r *Registry) Lookup(id int) (models.Field, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pos, ok := r.index[id]
	if !ok {
		return "", false
	}
	return r.topics[pos].field, true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics)
}

// Clear drops every mapping.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.topics = nil
	r.index = make(map[int]int)
}

// Active copies the current subscriptions under the lock and returns an
// iterator over the copy. The iterator can be ranged over more than once.
func (r *Registry) Active() iter.Seq2[int, models.Field] {
	r.mu.RLock()
	snap := make([]topic, len(r.topics))
	copy(snap, r.topics)
	r.mu.RUnlock()

	return func(yield func(int, models.Field) bool) {
		for _, t := range snap {
			if !yield(t.id, t.field) {
				return
			}
		}
	}
}
