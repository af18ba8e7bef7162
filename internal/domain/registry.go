package domain

import (
	"sort"
	"sync"
)

// TerritoryRegistry tracks known territories in a thread-safe manner.
// It stores snapshots: Put copies the territory in and Get copies it out,
// so callers never share a pointer with the registry.
type TerritoryRegistry struct {
	mu          sync.RWMutex
	territories map[string]*Territory
}

// NewTerritoryRegistry creates an empty TerritoryRegistry.
func NewTerritoryRegistry() *TerritoryRegistry {
	return &TerritoryRegistry{
		territories: make(map[string]*Territory),
	}
}

// Put adds or replaces a territory. Safe for concurrent use.
func (r *TerritoryRegistry) Put(t *Territory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.territories[t.ID] = t.Clone()
}

// Get returns a copy of the territory with the given id.
func (r *TerritoryRegistry) Get(id string) (*Territory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.territories[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// Exists returns true if the territory has been registered.
func (r *TerritoryRegistry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.territories[id]
	return ok
}

// Len returns the number of registered territories.
func (r *TerritoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.territories)
}

// List returns copies of all territories ordered by id.
func (r *TerritoryRegistry) List() []*Territory {
	r.mu.RLock()
	result := make([]*Territory, 0, len(r.territories))
	for _, t := range r.territories {
		result = append(result, t.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// RuledNeighbors counts the territories adjacent to target that userID rules.
func (r *TerritoryRegistry) RuledNeighbors(target *Territory, userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, id := range target.Neighbors {
		if n, ok := r.territories[id]; ok && n.RulerID == userID {
			count++
		}
	}
	return count
}

// RuledInCountry counts the territories in country that userID rules.
func (r *TerritoryRegistry) RuledInCountry(country, userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, t := range r.territories {
		if t.Country == country && t.RulerID == userID {
			count++
		}
	}
	return count
}
