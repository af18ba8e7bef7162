package engine

import (
	"fmt"

	"github.com/efreitasn/sovereignty/internal/domain"
)

// SovereigntyEvent names a cause for a sovereignty transition.
type SovereigntyEvent string

const (
	// SovereigntyOpened: an auction was created for the territory.
	SovereigntyOpened SovereigntyEvent = "opened"
	// SovereigntyConquered: the auction resolved with a winning bidder.
	SovereigntyConquered SovereigntyEvent = "conquered"
	// SovereigntyUnclaimed: no bids and no prior owner.
	SovereigntyUnclaimed SovereigntyEvent = "unclaimed"
	// SovereigntyRestored: no bids, prior owner restored.
	SovereigntyRestored SovereigntyEvent = "restored"
	// SovereigntyProtectionGranted: the new ruler is shielded from auctions.
	SovereigntyProtectionGranted SovereigntyEvent = "protection_granted"
	// SovereigntyProtectionLapsed: the protection window closed.
	SovereigntyProtectionLapsed SovereigntyEvent = "protection_lapsed"
)

var sovereigntyTransitions = map[domain.Sovereignty]map[SovereigntyEvent]domain.Sovereignty{
	domain.SovereigntyUnconquered: {
		SovereigntyOpened: domain.SovereigntyContested,
	},
	domain.SovereigntyContested: {
		SovereigntyConquered: domain.SovereigntyRuled,
		SovereigntyUnclaimed: domain.SovereigntyUnconquered,
		SovereigntyRestored:  domain.SovereigntyRuled,
	},
	domain.SovereigntyRuled: {
		SovereigntyOpened:            domain.SovereigntyContested,
		SovereigntyProtectionGranted: domain.SovereigntyProtected,
	},
	domain.SovereigntyProtected: {
		SovereigntyOpened:           domain.SovereigntyContested,
		SovereigntyProtectionLapsed: domain.SovereigntyRuled,
	},
}

// Transition returns the state reached from `from` on ev, or an error
// wrapping domain.ErrIllegalTransition.
func Transition(from domain.Sovereignty, ev SovereigntyEvent) (domain.Sovereignty, error) {
	if to, ok := sovereigntyTransitions[from][ev]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%w: %s from %s", domain.ErrIllegalTransition, ev, from)
}

// applyTransition moves t to the next state in place.
func applyTransition(t *domain.Territory, ev SovereigntyEvent) error {
	next, err := Transition(t.Sovereignty, ev)
	if err != nil {
		return err
	}
	t.Sovereignty = next
	return nil
}
