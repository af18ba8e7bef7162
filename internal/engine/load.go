package engine

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/efreitasn/sovereignty/internal/domain"
	"github.com/efreitasn/sovereignty/internal/store"
)

// Load fills the territory registry and the auction ledger from the
// backing store and repairs drift between them:
//   - price fields are reconciled against the oracle;
//   - of several active auctions for one territory the latest started
//     wins and the rest are cancelled;
//   - active auctions for unknown territories are cancelled;
//   - an active auction whose territory was settled after it started is
//     marked ended;
//   - an active auction's territory is linked and contested;
//   - a contested territory without an active auction is restored to its
//     ruler or left unconquered.
//
// Only failures to read the store are returned. Repair writes are best
// effort and retried on the next Load.
func (e *Engine) Load(ctx context.Context) error {
	tdocs, err := e.store.Query(ctx, store.CollectionTerritories, store.Query{})
	if err != nil {
		return ioErr("load territories", err)
	}
	for _, doc := range tdocs {
		t, err := store.DecodeTerritory(doc)
		if err != nil {
			e.logger.Warn("skipping malformed territory document", slog.String("error", err.Error()))
			continue
		}
		e.territories.Put(t)
	}

	adocs, err := e.store.Query(ctx, store.CollectionAuctions, store.Where(
		store.Eq("status", string(domain.AuctionStatusActive)),
	))
	if err != nil {
		return ioErr("load active auctions", err)
	}
	byTerritory := make(map[string][]*domain.Auction)
	for _, doc := range adocs {
		a, err := store.DecodeAuction(doc)
		if err != nil {
			e.logger.Warn("skipping malformed auction document", slog.String("error", err.Error()))
			continue
		}
		byTerritory[a.TerritoryID] = append(byTerritory[a.TerritoryID], a)
	}

	for territoryID, auctions := range byTerritory {
		e.loadTerritoryAuctions(ctx, territoryID, auctions)
	}

	for _, t := range e.territories.List() {
		if e.ledger.ByTerritory(t.ID) != nil {
			continue
		}
		if t.Sovereignty == domain.SovereigntyContested || t.CurrentAuctionID != "" {
			e.releaseOrphan(ctx, t.ID)
		}
	}

	e.logger.Info("engine state loaded",
		slog.Int("territories", e.territories.Len()),
		slog.Int("active_auctions", e.ledger.Len()),
	)
	return nil
}

func (e *Engine) loadTerritoryAuctions(ctx context.Context, territoryID string, auctions []*domain.Auction) {
	unlock := e.locks.Lock(territoryID)
	defer unlock()

	now := e.clock.Now()
	t, err := e.territory(ctx, territoryID)
	if err != nil {
		e.logger.Warn("cancelling auctions for unknown territory",
			slog.String("territory_id", territoryID),
			slog.String("error", err.Error()),
		)
		for _, a := range auctions {
			e.cancelAuction(ctx, a.ID, now)
		}
		return
	}

	sort.Slice(auctions, func(i, j int) bool {
		if !auctions[i].StartTime.Equal(auctions[j].StartTime) {
			return auctions[i].StartTime.After(auctions[j].StartTime)
		}
		return auctions[i].ID > auctions[j].ID
	})
	for _, dup := range auctions[1:] {
		e.logger.Warn("cancelling duplicate active auction",
			slog.String("auction_id", dup.ID),
			slog.String("kept_auction_id", auctions[0].ID),
		)
		e.cancelAuction(ctx, dup.ID, now)
	}

	if kept := auctions[0]; settledWithout(t, kept) {
		e.logger.Warn("marking settled auction ended",
			slog.String("auction_id", kept.ID),
			slog.String("territory_id", territoryID),
		)
		e.markEnded(ctx, kept.ID, now)
		return
	}

	a := e.reconcileLocked(ctx, auctions[0], t)
	if err := e.ledger.Put(a); err != nil {
		e.logger.Error("failed to cache active auction",
			slog.String("auction_id", a.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	if t.Sovereignty == domain.SovereigntyContested && t.CurrentAuctionID == a.ID {
		return
	}
	nt := t.Clone()
	if nt.Sovereignty != domain.SovereigntyContested {
		if err := applyTransition(nt, SovereigntyOpened); err != nil {
			e.logger.Error("failed to relink territory",
				slog.String("territory_id", territoryID),
				slog.String("error", err.Error()),
			)
			return
		}
	}
	nt.CurrentAuctionID = a.ID
	nt.UpdatedAt = now
	e.territories.Put(nt)
	if err := e.saveTerritory(ctx, nt); err != nil {
		e.logger.Warn("territory relink write failed",
			slog.String("territory_id", territoryID),
			slog.String("error", err.Error()),
		)
		return
	}
	e.logger.Info("territory relinked to active auction",
		slog.String("territory_id", territoryID),
		slog.String("auction_id", a.ID),
	)
}

// settledWithout reports whether t changed after a started without being
// linked to it, meaning a was already resolved and only its status write
// was lost.
func settledWithout(t *domain.Territory, a *domain.Auction) bool {
	return !linkedTo(t, a) && !t.UpdatedAt.Before(a.StartTime)
}

// releaseOrphan settles a territory that points at, or is contested by, an
// auction that is no longer active.
func (e *Engine) releaseOrphan(ctx context.Context, territoryID string) {
	unlock := e.locks.Lock(territoryID)
	defer unlock()

	t, err := e.territory(ctx, territoryID)
	if err != nil || e.ledger.ByTerritory(territoryID) != nil {
		return
	}

	nt := t.Clone()
	if nt.Sovereignty == domain.SovereigntyContested {
		ev := SovereigntyUnclaimed
		if nt.Owned() {
			ev = SovereigntyRestored
		}
		if err := applyTransition(nt, ev); err != nil {
			return
		}
	}
	nt.CurrentAuctionID = ""
	nt.UpdatedAt = e.clock.Now()
	e.territories.Put(nt)

	if err := e.saveTerritory(ctx, nt); err != nil {
		e.logger.Warn("orphan territory repair write failed",
			slog.String("territory_id", territoryID),
			slog.String("error", err.Error()),
		)
		return
	}
	e.logger.Info("orphan territory released",
		slog.String("territory_id", territoryID),
		slog.String("sovereignty", string(nt.Sovereignty)),
	)
}

func (e *Engine) cancelAuction(ctx context.Context, id string, now time.Time) {
	if err := e.patchAuction(ctx, id, map[string]any{
		"status":  domain.AuctionStatusCancelled,
		"endedAt": now,
	}); err != nil {
		e.logger.Warn("failed to cancel auction",
			slog.String("auction_id", id),
			slog.String("error", err.Error()),
		)
	}
}
