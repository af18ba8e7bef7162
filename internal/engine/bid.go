package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/efreitasn/sovereignty/internal/domain"
)

// PlaceBid records a bid on an active auction. The minimum-bid check and
// the mutation run in the territory's critical section, so the loser of a
// race is checked against the winner's current bid.
func (e *Engine) PlaceBid(ctx context.Context, auctionID, bidderID, bidderName string, amount int64) (*domain.Auction, error) {
	if bidderID == "" {
		return nil, domain.ErrUnauthorized
	}

	found, err := e.findAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(found.TerritoryID)
	a, events, err := e.placeBidLocked(ctx, auctionID, bidderID, bidderName, amount)
	unlock()
	if err != nil {
		return nil, err
	}

	e.publish(events)
	return a, nil
}

func (e *Engine) placeBidLocked(ctx context.Context, auctionID, bidderID, bidderName string, amount int64) (*domain.Auction, []domain.Event, error) {
	a := e.ledger.Get(auctionID)
	if a == nil {
		if e.ledger.Resolved(auctionID) {
			return nil, nil, domain.ErrAuctionNotActive
		}
		var err error
		if a, err = e.loadAuction(ctx, auctionID); err != nil {
			return nil, nil, err
		}
	}

	now := e.clock.Now()
	if a.Status != domain.AuctionStatusActive || a.Expired(now) {
		return nil, nil, domain.ErrAuctionNotActive
	}

	t, err := e.territory(ctx, a.TerritoryID)
	if err != nil {
		return nil, nil, err
	}
	if t.RulerID == bidderID {
		return nil, nil, &domain.ValidationError{Message: "You already rule this territory"}
	}
	if a.HighestBidderID == bidderID {
		return nil, nil, &domain.ValidationError{Message: "You are already the highest bidder"}
	}

	// Caches corrections and records hydrated from another instance.
	a = e.reconcileLocked(ctx, a, t)
	if err := e.ledger.Put(a); err != nil {
		return nil, nil, err
	}

	if amount > domain.MaxAmount {
		return nil, nil, &domain.ValidationError{Message: fmt.Sprintf("Bid cannot exceed %d", domain.MaxAmount)}
	}
	if a.BiddingExhausted() {
		return nil, nil, &domain.ValidationError{Message: "Auction has reached the maximum bid"}
	}
	if minBid := a.MinimumBid(); amount < minBid {
		return nil, nil, &domain.ValidationError{Message: fmt.Sprintf("Minimum bid is %d", minBid)}
	}

	bonus := ComputeBonuses(amount, BonusContext{
		AdjacentOwned: e.territories.RuledNeighbors(t, bidderID),
		CountryOwned:  e.territories.RuledInCountry(t.Country, bidderID),
	}, e.opts.Bonus)
	for _, b := range bonus.Bonuses {
		e.logger.Debug("bonus applied",
			slog.String("auction_id", a.ID),
			slog.String("user_id", bidderID),
			slog.String("kind", b.Kind),
			slog.Float64("rate", b.Rate),
			slog.Int("count", b.Count),
		)
	}

	next := a.Clone()
	next.Bids = append(next.Bids, domain.Bid{
		UserID:       bidderID,
		UserName:     bidderName,
		Amount:       amount,
		BuffedAmount: bonus.Buffed,
		Bonuses:      bonus.Bonuses,
		PlacedAt:     now,
	})
	next.CurrentBid = amount
	next.HighestBidderID = bidderID
	next.HighestBidderName = bidderName

	if err := e.patchAuction(ctx, next.ID, map[string]any{
		"bids":              next.Bids,
		"currentBid":        next.CurrentBid,
		"highestBidderId":   next.HighestBidderID,
		"highestBidderName": next.HighestBidderName,
	}); err != nil {
		return nil, nil, err
	}
	if err := e.ledger.Put(next); err != nil {
		return nil, nil, err
	}

	e.logger.Info("bid placed",
		slog.String("auction_id", next.ID),
		slog.String("user_id", bidderID),
		slog.Int64("amount", amount),
		slog.Int64("buffed_amount", bonus.Buffed),
	)

	events := []domain.Event{{
		Name: domain.EventAuctionUpdated,
		At:   now,
		Payload: domain.AuctionUpdatedPayload{
			AuctionID:         next.ID,
			TerritoryID:       next.TerritoryID,
			CurrentBid:        next.CurrentBid,
			HighestBidderID:   next.HighestBidderID,
			HighestBidderName: next.HighestBidderName,
			BidCount:          len(next.Bids),
		},
	}}
	if bonus.Applied() {
		events = append(events, domain.Event{
			Name: domain.EventBonusApplied,
			At:   now,
			Payload: domain.BonusAppliedPayload{
				AuctionID:    next.ID,
				TerritoryID:  next.TerritoryID,
				UserID:       bidderID,
				Amount:       amount,
				BuffedAmount: bonus.Buffed,
				Bonuses:      bonus.Bonuses,
			},
		})
	}
	return next.Clone(), events, nil
}
