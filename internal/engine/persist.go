package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/efreitasn/sovereignty/internal/domain"
	"github.com/efreitasn/sovereignty/internal/store"
)

// ioErr wraps a backing-store failure as domain.ErrTransientIO.
func ioErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrTransientIO, op, err)
}

func (e *Engine) saveAuction(ctx context.Context, a *domain.Auction) error {
	doc, err := store.EncodeAuction(a)
	if err != nil {
		return err
	}
	if err := e.store.Set(ctx, store.CollectionAuctions, a.ID, doc); err != nil {
		return ioErr("save auction "+a.ID, err)
	}
	return nil
}

func (e *Engine) patchAuction(ctx context.Context, id string, patch map[string]any) error {
	if err := e.store.Update(ctx, store.CollectionAuctions, id, store.Document(patch)); err != nil {
		return ioErr("update auction "+id, err)
	}
	return nil
}

func (e *Engine) saveTerritory(ctx context.Context, t *domain.Territory) error {
	doc, err := store.EncodeTerritory(t)
	if err != nil {
		return err
	}
	if err := e.store.Set(ctx, store.CollectionTerritories, t.ID, doc); err != nil {
		return ioErr("save territory "+t.ID, err)
	}
	return nil
}

// loadAuction reads an auction of any status from the backing store.
func (e *Engine) loadAuction(ctx context.Context, id string) (*domain.Auction, error) {
	doc, err := e.store.Get(ctx, store.CollectionAuctions, id)
	if errors.Is(err, store.ErrDocumentNotFound) {
		return nil, domain.ErrAuctionNotFound
	}
	if err != nil {
		return nil, ioErr("load auction "+id, err)
	}
	a, err := store.DecodeAuction(doc)
	if err != nil {
		e.logger.Warn("malformed auction document",
			slog.String("auction_id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", domain.ErrAuctionNotFound, err)
	}
	return a, nil
}

// findAuction returns the active ledger copy of an auction, falling back to
// the backing store (any status) for auctions this process has not cached.
func (e *Engine) findAuction(ctx context.Context, id string) (*domain.Auction, error) {
	if a := e.ledger.Get(id); a != nil {
		return a, nil
	}
	return e.loadAuction(ctx, id)
}

// territory returns the registry copy, hydrating from the store on a miss.
func (e *Engine) territory(ctx context.Context, id string) (*domain.Territory, error) {
	if t, ok := e.territories.Get(id); ok {
		return t, nil
	}
	return e.refreshTerritory(ctx, id)
}

// refreshTerritory replaces the registry copy with the stored document.
func (e *Engine) refreshTerritory(ctx context.Context, id string) (*domain.Territory, error) {
	doc, err := e.store.Get(ctx, store.CollectionTerritories, id)
	if errors.Is(err, store.ErrDocumentNotFound) {
		return nil, domain.ErrTerritoryNotFound
	}
	if err != nil {
		return nil, ioErr("load territory "+id, err)
	}
	t, err := store.DecodeTerritory(doc)
	if err != nil {
		e.logger.Warn("malformed territory document",
			slog.String("territory_id", id),
			slog.String("error", err.Error()),
		)
		return nil, domain.ErrTerritoryNotFound
	}
	e.territories.Put(t)
	return t, nil
}

// activeInStore returns the auctions the backing store lists as active for
// a territory. Malformed documents are logged and skipped.
func (e *Engine) activeInStore(ctx context.Context, territoryID string) ([]*domain.Auction, error) {
	docs, err := e.store.Query(ctx, store.CollectionAuctions, store.Where(
		store.Eq("territoryId", territoryID),
		store.Eq("status", string(domain.AuctionStatusActive)),
	))
	if err != nil {
		return nil, ioErr("query active auctions for "+territoryID, err)
	}
	result := make([]*domain.Auction, 0, len(docs))
	for _, doc := range docs {
		a, err := store.DecodeAuction(doc)
		if err != nil {
			e.logger.Warn("skipping malformed auction document",
				slog.String("territory_id", territoryID),
				slog.String("error", err.Error()),
			)
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

// reconcileLocked runs the guard and persists any correction. A failed
// write is logged and the uncorrected auction is returned; the next read
// retries. Caller holds the territory lock.
func (e *Engine) reconcileLocked(ctx context.Context, a *domain.Auction, t *domain.Territory) *domain.Auction {
	fixed, changed := e.guard.Reconcile(a, t)
	if !changed {
		return a
	}
	if err := e.patchAuction(ctx, fixed.ID, reconcilePatch(fixed)); err != nil {
		e.logger.Warn("reconciliation write failed",
			slog.String("auction_id", a.ID),
			slog.String("error", err.Error()),
		)
		return a
	}
	e.logger.Info("auction price fields reconciled",
		slog.String("auction_id", a.ID),
		slog.Int64("starting_bid_was", a.StartingBid),
		slog.Int64("starting_bid", fixed.StartingBid),
		slog.Int64("current_bid_was", a.CurrentBid),
		slog.Int64("current_bid", fixed.CurrentBid),
	)
	return fixed
}
