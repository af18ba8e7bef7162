package engine

import (
	"github.com/efreitasn/sovereignty/internal/domain"
)

// ReconciliationGuard corrects stored auction price fields against the
// pricing oracle's current output.
type ReconciliationGuard struct {
	pricer    Pricer
	increment IncrementPolicy
}

// NewReconciliationGuard creates a guard backed by pricer.
func NewReconciliationGuard(pricer Pricer, increment IncrementPolicy) *ReconciliationGuard {
	return &ReconciliationGuard{pricer: pricer, increment: increment}
}

// Reconcile returns a corrected copy of a and whether anything changed.
//
// The oracle's floor is authoritative for the starting bid. A caller-chosen
// starting bid is only raised when it has fallen below the floor. The
// current bid follows the starting bid until someone bids; after that it
// is the result of real bidding and is left alone.
func (g *ReconciliationGuard) Reconcile(a *domain.Auction, t *domain.Territory) (*domain.Auction, bool) {
	fixed := a.Clone()
	changed := false

	floor := g.pricer.StartingBidFloor(t)
	if fixed.StartingBidOverride {
		if fixed.StartingBid < floor {
			fixed.StartingBid = floor
			changed = true
		}
	} else if fixed.StartingBid != floor {
		fixed.StartingBid = floor
		changed = true
	}

	if !fixed.HasBids() && fixed.CurrentBid != fixed.StartingBid {
		fixed.CurrentBid = fixed.StartingBid
		changed = true
	}

	if fixed.MinIncrement < 1 {
		fixed.MinIncrement = g.increment.Increment(fixed.StartingBid)
		changed = true
	}

	return fixed, changed
}

// reconcilePatch is the store patch for a reconciled auction.
func reconcilePatch(a *domain.Auction) map[string]any {
	return map[string]any{
		"startingBid":  a.StartingBid,
		"currentBid":   a.CurrentBid,
		"minIncrement": a.MinIncrement,
	}
}
