package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/efreitasn/sovereignty/internal/domain"
)

// CreateOptions are the caller-controlled parameters of a new auction.
type CreateOptions struct {
	StartingBid *int64         // nil uses the oracle floor
	Duration    *time.Duration // nil uses the end-time policy
	Type        domain.AuctionType
}

// CreateAuction opens an auction for a territory and moves it to
// contested. It fails with domain.ErrAuctionAlreadyActive while another
// auction for the territory is active in this process or in the backing
// store.
func (e *Engine) CreateAuction(ctx context.Context, territoryID string, opts CreateOptions) (*domain.Auction, error) {
	if opts.Type == "" {
		opts.Type = domain.AuctionTypeStandard
	}
	if opts.Duration != nil && *opts.Duration <= 0 {
		return nil, &domain.ValidationError{Message: "Duration must be positive"}
	}

	var pending []domain.Event
	unlock := e.locks.Lock(territoryID)
	defer func() {
		unlock()
		e.publish(pending)
	}()

	if _, err := e.territory(ctx, territoryID); err != nil {
		return nil, err
	}

	now := e.clock.Now()
	if cur := e.ledger.ByTerritory(territoryID); cur != nil {
		if !cur.Expired(now) {
			return nil, domain.ErrAuctionAlreadyActive
		}
		// Due but not swept yet.
		evs, err := e.resolveLocked(ctx, cur)
		pending = append(pending, evs...)
		if err != nil {
			return nil, err
		}
	}

	// The store is checked too: another instance may have opened one.
	stored, err := e.activeInStore(ctx, territoryID)
	if err != nil {
		return nil, err
	}
	if len(stored) > 0 {
		if _, err := e.refreshTerritory(ctx, territoryID); err != nil {
			return nil, err
		}
	}
	for _, s := range stored {
		switch {
		case e.ledger.Resolved(s.ID):
			e.markEnded(ctx, s.ID, now)
		case s.Expired(now):
			evs, err := e.resolveLocked(ctx, s)
			pending = append(pending, evs...)
			if err != nil {
				return nil, err
			}
		default:
			t, err := e.territory(ctx, territoryID)
			if err != nil {
				return nil, err
			}
			live := e.reconcileLocked(ctx, s, t)
			if err := e.ledger.Put(live); err != nil {
				return nil, err
			}
			return nil, domain.ErrAuctionAlreadyActive
		}
	}

	t, err := e.territory(ctx, territoryID)
	if err != nil {
		return nil, err
	}

	floor := e.pricer.StartingBidFloor(t)
	startingBid := floor
	if opts.StartingBid != nil {
		if *opts.StartingBid < floor {
			return nil, &domain.ValidationError{Message: fmt.Sprintf("Starting bid must be at least %d", floor)}
		}
		if *opts.StartingBid > domain.MaxAmount {
			return nil, &domain.ValidationError{Message: fmt.Sprintf("Starting bid cannot exceed %d", domain.MaxAmount)}
		}
		startingBid = *opts.StartingBid
	}

	// Ids of resolved auctions are never reused.
	id := domain.NewAuctionID(territoryID, now)
	for i := 1; e.ledger.Resolved(id); i++ {
		id = domain.NewAuctionID(territoryID, now.Add(time.Duration(i)*time.Millisecond))
	}

	a := &domain.Auction{
		ID:                  id,
		TerritoryID:         territoryID,
		Type:                opts.Type,
		Status:              domain.AuctionStatusActive,
		StartingBid:         startingBid,
		StartingBidOverride: opts.StartingBid != nil,
		CurrentBid:          startingBid,
		MinIncrement:        e.opts.Increment.Increment(startingBid),
		Bids:                []domain.Bid{},
		StartTime:           now,
		PreviousOwnerID:     t.RulerID,
		PreviousOwnerName:   t.RulerName,
	}
	a.EndTime, a.ProtectionAware = e.endTime(t, now, opts.Duration)

	nt := t.Clone()
	if nt.Sovereignty == domain.SovereigntyContested {
		// Contested with no active auction anywhere: settle the orphan
		// link before reopening.
		e.logger.Warn("reopening orphaned contested territory", slog.String("territory_id", territoryID))
		settle := SovereigntyUnclaimed
		if nt.Owned() {
			settle = SovereigntyRestored
		}
		if err := applyTransition(nt, settle); err != nil {
			return nil, err
		}
	}
	if err := applyTransition(nt, SovereigntyOpened); err != nil {
		return nil, err
	}
	nt.CurrentAuctionID = a.ID
	nt.UpdatedAt = now

	if err := e.saveAuction(ctx, a); err != nil {
		return nil, err
	}
	if err := e.saveTerritory(ctx, nt); err != nil {
		if cerr := e.patchAuction(ctx, a.ID, map[string]any{
			"status":  domain.AuctionStatusCancelled,
			"endedAt": now,
		}); cerr != nil {
			e.logger.Error("failed to cancel auction after territory write failure",
				slog.String("auction_id", a.ID),
				slog.String("error", cerr.Error()),
			)
		}
		return nil, err
	}

	e.territories.Put(nt)
	if err := e.ledger.Put(a); err != nil {
		return nil, err
	}

	e.logger.Info("auction created",
		slog.String("auction_id", a.ID),
		slog.String("territory_id", territoryID),
		slog.Int64("starting_bid", a.StartingBid),
		slog.Time("end_time", a.EndTime),
		slog.Bool("protection_aware", a.ProtectionAware),
	)

	pending = append(pending, domain.Event{
		Name: domain.EventAuctionStarted,
		At:   now,
		Payload: domain.AuctionStartedPayload{
			AuctionID:   a.ID,
			TerritoryID: a.TerritoryID,
			StartingBid: a.StartingBid,
			EndTime:     a.EndTime,
			Protection:  a.ProtectionAware,
		},
	})
	return a.Clone(), nil
}

// endTime applies the end-time policy. A territory still under protection
// is auctioned until the window closes so the ruler keeps it until then.
func (e *Engine) endTime(t *domain.Territory, now time.Time, override *time.Duration) (time.Time, bool) {
	switch {
	case t.UnderProtection(now):
		return *t.ProtectedUntil, true
	case override != nil:
		return now.Add(*override), false
	case t.Owned():
		return now.Add(e.opts.OwnedAuctionDuration), false
	default:
		return now.Add(e.opts.ShortAuctionDuration), false
	}
}

// markEnded patches a store record this process already resolved but
// whose status write was lost. Best effort.
func (e *Engine) markEnded(ctx context.Context, id string, now time.Time) {
	err := e.patchAuction(ctx, id, map[string]any{
		"status":  domain.AuctionStatusEnded,
		"endedAt": now,
	})
	if err != nil {
		e.logger.Warn("failed to mark resolved auction ended",
			slog.String("auction_id", id),
			slog.String("error", err.Error()),
		)
	}
}
