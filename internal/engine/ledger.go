package engine

import (
	"sync"
	"time"

	"github.com/google/btree"

	"github.com/efreitasn/sovereignty/internal/domain"
)

// tombstoneTTL bounds how long a resolved auction id is remembered.
const tombstoneTTL = time.Hour

// expiryEntry orders active auctions by end time for the sweeper.
type expiryEntry struct {
	EndTime time.Time
	ID      string
}

// expiryLess orders by end time ascending, then id ascending, so Min()
// returns the auction that ends first.
func expiryLess(a, b expiryEntry) bool {
	if !a.EndTime.Equal(b.EndTime) {
		return a.EndTime.Before(b.EndTime)
	}
	return a.ID < b.ID
}

// Ledger is the in-memory cache of active auctions, indexed by auction id,
// by territory id and by end time. It stores snapshots: callers mutate a
// clone and Put it back once the change is durable.
type Ledger struct {
	mu          sync.RWMutex
	byID        map[string]*domain.Auction
	byTerritory map[string]string // territory_id → auction_id
	byEnd       *btree.BTreeG[expiryEntry]
	resolved    map[string]time.Time // auction_id → resolution time
}

// NewLedger creates an empty Ledger.
func NewLedger() *Ledger {
	const degree = 32
	return &Ledger{
		byID:        make(map[string]*domain.Auction),
		byTerritory: make(map[string]string),
		byEnd:       btree.NewG[expiryEntry](degree, expiryLess),
		resolved:    make(map[string]time.Time),
	}
}

// Put inserts or replaces an active auction. It returns
// domain.ErrAuctionAlreadyActive if the territory already maps to a
// different auction.
func (l *Ledger) Put(a *domain.Auction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if id, ok := l.byTerritory[a.TerritoryID]; ok && id != a.ID {
		return domain.ErrAuctionAlreadyActive
	}
	if prev, ok := l.byID[a.ID]; ok {
		l.byEnd.Delete(expiryEntry{EndTime: prev.EndTime, ID: prev.ID})
	}

	c := a.Clone()
	l.byID[a.ID] = c
	l.byTerritory[a.TerritoryID] = a.ID
	l.byEnd.ReplaceOrInsert(expiryEntry{EndTime: c.EndTime, ID: c.ID})
	return nil
}

// Get returns a copy of the auction, or nil if it is not active here.
func (l *Ledger) Get(id string) *domain.Auction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	a, ok := l.byID[id]
	if !ok {
		return nil
	}
	return a.Clone()
}

// ByTerritory returns a copy of the territory's active auction, or nil.
func (l *Ledger) ByTerritory(territoryID string) *domain.Auction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	id, ok := l.byTerritory[territoryID]
	if !ok {
		return nil
	}
	return l.byID[id].Clone()
}

// List returns copies of all active auctions, soonest-ending first.
func (l *Ledger) List() []*domain.Auction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*domain.Auction, 0, l.byEnd.Len())
	l.byEnd.Ascend(func(e expiryEntry) bool {
		result = append(result, l.byID[e.ID].Clone())
		return true
	})
	return result
}

// Due returns copies of the auctions whose end time is at or before now.
func (l *Ledger) Due(now time.Time) []*domain.Auction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []*domain.Auction
	l.byEnd.Ascend(func(e expiryEntry) bool {
		if e.EndTime.After(now) {
			return false
		}
		result = append(result, l.byID[e.ID].Clone())
		return true
	})
	return result
}

// Remove drops an auction after resolution and remembers its id so a late
// store read cannot resurrect it. Returns false if it was not present.
func (l *Ledger) Remove(id string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for rid, at := range l.resolved {
		if now.Sub(at) > tombstoneTTL {
			delete(l.resolved, rid)
		}
	}
	l.resolved[id] = now

	a, ok := l.byID[id]
	if !ok {
		return false
	}
	delete(l.byID, id)
	if l.byTerritory[a.TerritoryID] == id {
		delete(l.byTerritory, a.TerritoryID)
	}
	l.byEnd.Delete(expiryEntry{EndTime: a.EndTime, ID: a.ID})
	return true
}

// Resolved reports whether id was removed from this ledger recently.
func (l *Ledger) Resolved(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.resolved[id]
	return ok
}

// Len returns the number of active auctions.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.byID)
}
