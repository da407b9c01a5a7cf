package limited

import (
	"context"
	"sync"

	"goflare.io/foldscope/internal/models"
)

// Tracker remembers which keys were written per collection, since Ristretto
// cannot enumerate its contents.
type Tracker struct {
	mu   sync.Mutex
	keys map[models.Collection]map[string]struct{}
}

// NewTracker creates a new Tracker instance.
func NewTracker() *Tracker {
	return &Tracker{
		keys: make(map[models.Collection]map[string]struct{}),
	}
}

// Add records a key.
func (t *Tracker) Add(_ context.Context, collection models.Collection, key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.keys[collection]
	if !ok {
		set = make(map[string]struct{})
		t.keys[collection] = set
	}
	set[key] = struct{}{}
}

// Remove forgets a key.
func (t *Tracker) Remove(_ context.Context, collection models.Collection, key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.keys[collection], key)
}

// Drain returns and forgets every key of a collection.
func (t *Tracker) Drain(_ context.Context, collection models.Collection) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	set := t.keys[collection]
	delete(t.keys, collection)

	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of tracked keys in a collection.
func (t *Tracker) Len(collection models.Collection) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.keys[collection])
}
