package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/efreitasn/sovereignty/internal/domain"
	"github.com/efreitasn/sovereignty/internal/store"
)

// Pricer is the deterministic pricing oracle the engine consults.
type Pricer interface {
	InstantPrice(t *domain.Territory) int64
	StartingBidFloor(t *domain.Territory) int64
}

// Clock supplies wall-clock time for expiry comparisons and timestamps.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// EventSink receives engine notifications. Publish must not block on
// delivery; the engine never waits for acknowledgment.
type EventSink interface {
	Publish(ev domain.Event)
}

// MultiSink fans an event out to several sinks in order.
type MultiSink []EventSink

// Publish forwards ev to every non-nil sink.
func (m MultiSink) Publish(ev domain.Event) {
	for _, s := range m {
		if s != nil {
			s.Publish(ev)
		}
	}
}

type discardSink struct{}

func (discardSink) Publish(domain.Event) {}

// Options tunes auction timing, increments and bonuses.
type Options struct {
	ShortAuctionDuration time.Duration // unowned territories
	OwnedAuctionDuration time.Duration // territories that already have a ruler
	ProtectionPeriod     time.Duration // zero disables post-conquest protection
	SweepInterval        time.Duration
	Increment            IncrementPolicy
	Bonus                BonusConfig
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		ShortAuctionDuration: 24 * time.Hour,
		OwnedAuctionDuration: 7 * 24 * time.Hour,
		ProtectionPeriod:     48 * time.Hour,
		SweepInterval:        5 * time.Second,
		Increment:            FlatIncrement{Units: 1},
		Bonus:                DefaultBonusConfig(),
	}
}

// Engine is the auction and sovereignty engine. All mutations of an auction
// and of its territory's sovereignty happen under one per-territory lock.
type Engine struct {
	store       store.Store
	pricer      Pricer
	clock       Clock
	events      EventSink
	logger      *slog.Logger
	opts        Options
	territories *domain.TerritoryRegistry
	ledger      *Ledger
	locks       *keyedMutex
	guard       *ReconciliationGuard

	sweeperMu sync.Mutex
	sweeper   *Sweeper
}

// New creates an Engine with the given collaborators. A nil clock, event
// sink or logger gets a usable default.
func New(
	st store.Store,
	pricer Pricer,
	clock Clock,
	events EventSink,
	logger *slog.Logger,
	opts Options,
) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	if events == nil {
		events = discardSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultOptions()
	if opts.ShortAuctionDuration <= 0 {
		opts.ShortAuctionDuration = def.ShortAuctionDuration
	}
	if opts.OwnedAuctionDuration <= 0 {
		opts.OwnedAuctionDuration = def.OwnedAuctionDuration
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = def.SweepInterval
	}
	if opts.Increment == nil {
		opts.Increment = def.Increment
	}

	return &Engine{
		store:       st,
		pricer:      pricer,
		clock:       clock,
		events:      events,
		logger:      logger,
		opts:        opts,
		territories: domain.NewTerritoryRegistry(),
		ledger:      NewLedger(),
		locks:       newKeyedMutex(),
		guard:       NewReconciliationGuard(pricer, opts.Increment),
	}
}

// GetActiveAuction returns the active auction with the given id.
func (e *Engine) GetActiveAuction(auctionID string) (*domain.Auction, error) {
	a := e.ledger.Get(auctionID)
	if a == nil {
		return nil, domain.ErrAuctionNotFound
	}
	return a, nil
}

// GetAuctionByTerritory returns the territory's active auction.
func (e *Engine) GetAuctionByTerritory(territoryID string) (*domain.Auction, error) {
	if !e.territories.Exists(territoryID) {
		return nil, domain.ErrTerritoryNotFound
	}
	a := e.ledger.ByTerritory(territoryID)
	if a == nil {
		return nil, domain.ErrAuctionNotFound
	}
	return a, nil
}

// ListActiveAuctions returns every active auction, soonest-ending first.
func (e *Engine) ListActiveAuctions() []*domain.Auction {
	return e.ledger.List()
}

// Territory returns a snapshot of the territory with the given id.
func (e *Engine) Territory(territoryID string) (*domain.Territory, error) {
	t, ok := e.territories.Get(territoryID)
	if !ok {
		return nil, domain.ErrTerritoryNotFound
	}
	return t, nil
}

// Territories returns snapshots of all known territories ordered by id.
func (e *Engine) Territories() []*domain.Territory {
	return e.territories.List()
}

func (e *Engine) publish(events []domain.Event) {
	for _, ev := range events {
		e.events.Publish(ev)
	}
}
