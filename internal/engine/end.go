package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/efreitasn/sovereignty/internal/domain"
)

// EndAuction resolves an active auction. It is the single resolution path
// for explicit calls and the sweeper. Ending an auction that is already
// resolved returns domain.ErrAuctionNotFound and publishes nothing.
//
// Persistence failures are returned, but the auction is removed from the
// ledger regardless so it is never served again by this process.
func (e *Engine) EndAuction(ctx context.Context, auctionID string) error {
	found, err := e.findAuction(ctx, auctionID)
	if err != nil {
		return err
	}

	unlock := e.locks.Lock(found.TerritoryID)
	a := e.ledger.Get(auctionID)
	if a == nil {
		if e.ledger.Resolved(auctionID) {
			unlock()
			return domain.ErrAuctionNotFound
		}
		// Not cached here: trust only a fresh store read taken under the lock.
		a, err = e.loadAuction(ctx, auctionID)
		if err != nil {
			unlock()
			return err
		}
	}
	if a.Status != domain.AuctionStatusActive {
		unlock()
		return domain.ErrAuctionNotFound
	}

	events, err := e.resolveLocked(ctx, a)
	unlock()

	e.publish(events)
	return err
}

// resolveLocked ends a, settles its territory and returns the events to
// publish once the lock is released. Caller holds the territory lock.
func (e *Engine) resolveLocked(ctx context.Context, a *domain.Auction) ([]domain.Event, error) {
	now := e.clock.Now()

	ended := a.Clone()
	ended.Status = domain.AuctionStatusEnded
	ended.EndedAt = &now

	var errs []error
	linked := true

	load := e.territory
	if e.ledger.Get(a.ID) == nil {
		// Hydrated record: the registry copy may predate it.
		load = e.refreshTerritory
	}
	t, err := load(ctx, a.TerritoryID)
	switch {
	case errors.Is(err, domain.ErrTerritoryNotFound):
		e.logger.Warn("auction resolved without territory", slog.String("auction_id", a.ID))
	case err != nil:
		errs = append(errs, err)
	case !linkedTo(t, ended):
		// An earlier resolution saved the territory but not the status.
		linked = false
		e.logger.Warn("auction already settled on its territory",
			slog.String("auction_id", a.ID),
			slog.String("territory_auction_id", t.CurrentAuctionID),
		)
	default:
		nt, terr := e.settleTerritory(t, ended, now)
		if terr != nil {
			errs = append(errs, terr)
		} else {
			if err := e.saveTerritory(ctx, nt); err != nil {
				errs = append(errs, err)
			}
			e.territories.Put(nt)
		}
	}

	if err := e.patchAuction(ctx, ended.ID, map[string]any{
		"status":  ended.Status,
		"endedAt": ended.EndedAt,
	}); err != nil {
		errs = append(errs, err)
	}

	e.ledger.Remove(ended.ID, now)

	var events []domain.Event
	if !linked {
		return events, errors.Join(errs...)
	}
	if ended.HasBids() {
		events = append(events, domain.Event{
			Name: domain.EventTerritoryConquered,
			At:   now,
			Payload: domain.TerritoryConqueredPayload{
				TerritoryID: ended.TerritoryID,
				UserID:      ended.HighestBidderID,
				UserName:    ended.HighestBidderName,
				Tribute:     ended.CurrentBid,
			},
		})
	}
	events = append(events, domain.Event{
		Name: domain.EventAuctionEnded,
		At:   now,
		Payload: domain.AuctionEndedPayload{
			AuctionID:   ended.ID,
			TerritoryID: ended.TerritoryID,
			WinnerID:    ended.HighestBidderID,
			FinalBid:    ended.CurrentBid,
		},
	})

	err = errors.Join(errs...)
	if err != nil {
		e.logger.Error("auction resolved with persistence errors",
			slog.String("auction_id", ended.ID),
			slog.String("error", err.Error()),
		)
	} else {
		e.logger.Info("auction ended",
			slog.String("auction_id", ended.ID),
			slog.String("territory_id", ended.TerritoryID),
			slog.String("winner_id", ended.HighestBidderID),
			slog.Int64("final_bid", ended.CurrentBid),
		)
	}
	return events, err
}

// linkedTo reports whether t is still waiting on a to resolve.
func linkedTo(t *domain.Territory, a *domain.Auction) bool {
	return t.CurrentAuctionID == a.ID ||
		(t.CurrentAuctionID == "" && t.Sovereignty == domain.SovereigntyContested)
}

// settleTerritory computes the state of a territory linked to a after a
// resolves.
func (e *Engine) settleTerritory(t *domain.Territory, a *domain.Auction, now time.Time) (*domain.Territory, error) {
	nt := t.Clone()

	// Drifted territories are brought back to contested first so every
	// outcome goes through a legal transition.
	if nt.Sovereignty != domain.SovereigntyContested {
		if err := applyTransition(nt, SovereigntyOpened); err != nil {
			return nil, err
		}
	}

	switch {
	case a.HasBids():
		if err := e.applyConquest(nt, a.HighestBidderID, a.HighestBidderName, now); err != nil {
			return nil, err
		}
	case a.PreviousOwnerID != "":
		if err := applyTransition(nt, SovereigntyRestored); err != nil {
			return nil, err
		}
		nt.RulerID = a.PreviousOwnerID
		nt.RulerName = a.PreviousOwnerName
		nt.ProtectedUntil = nil
	default:
		if err := applyTransition(nt, SovereigntyUnclaimed); err != nil {
			return nil, err
		}
		nt.RulerID = ""
		nt.RulerName = ""
		nt.ProtectedUntil = nil
	}

	nt.CurrentAuctionID = ""
	nt.UpdatedAt = now
	return nt, nil
}

// applyConquest hands the territory to the winner and, when configured,
// opens a protection window.
func (e *Engine) applyConquest(t *domain.Territory, winnerID, winnerName string, now time.Time) error {
	if err := applyTransition(t, SovereigntyConquered); err != nil {
		return err
	}
	t.RulerID = winnerID
	t.RulerName = winnerName
	t.ProtectedUntil = nil

	if e.opts.ProtectionPeriod > 0 {
		if err := applyTransition(t, SovereigntyProtectionGranted); err != nil {
			return err
		}
		until := now.Add(e.opts.ProtectionPeriod)
		t.ProtectedUntil = &until
	}
	return nil
}
