package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/efreitasn/sovereignty/internal/domain"
)

// Sweeper periodically resolves auctions whose end time has passed and
// lapses expired protection windows.
type Sweeper struct {
	engine   *Engine
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper creates a Sweeper that ticks at interval.
func NewSweeper(e *Engine, interval time.Duration) *Sweeper {
	return &Sweeper{engine: e, interval: interval}
}

// Start launches the background goroutine. It stops when ctx is cancelled
// or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx, s.engine.clock.Now())
			}
		}
	}()
}

// Stop cancels the goroutine and waits for an in-flight tick to finish.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// tick resolves every due auction. A failure on one auction is logged and
// does not stop the others; it is retried on the next tick.
func (s *Sweeper) tick(ctx context.Context, now time.Time) {
	e := s.engine
	for _, a := range e.ledger.Due(now) {
		if ctx.Err() != nil {
			return
		}
		err := e.EndAuction(ctx, a.ID)
		switch {
		case err == nil, errors.Is(err, domain.ErrAuctionNotFound):
		default:
			e.logger.Warn("sweeper failed to end auction",
				slog.String("auction_id", a.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	for _, t := range e.territories.List() {
		if ctx.Err() != nil {
			return
		}
		if t.Sovereignty == domain.SovereigntyProtected && !t.UnderProtection(now) {
			e.lapseProtection(ctx, t.ID, now)
		}
	}
}

// lapseProtection returns a protected territory whose window has closed to
// ruled. The registry only changes once the write succeeds.
func (e *Engine) lapseProtection(ctx context.Context, territoryID string, now time.Time) {
	unlock := e.locks.Lock(territoryID)
	defer unlock()

	t, ok := e.territories.Get(territoryID)
	if !ok || t.Sovereignty != domain.SovereigntyProtected || t.UnderProtection(now) {
		return
	}

	nt := t.Clone()
	if err := applyTransition(nt, SovereigntyProtectionLapsed); err != nil {
		return
	}
	nt.ProtectedUntil = nil
	nt.UpdatedAt = now

	if err := e.saveTerritory(ctx, nt); err != nil {
		e.logger.Warn("failed to lapse protection",
			slog.String("territory_id", territoryID),
			slog.String("error", err.Error()),
		)
		return
	}
	e.territories.Put(nt)
	e.logger.Info("protection lapsed", slog.String("territory_id", territoryID))
}

// StartSweeper starts the expiry sweeper. Calling it while a sweeper is
// running is a no-op.
func (e *Engine) StartSweeper(ctx context.Context) {
	e.sweeperMu.Lock()
	defer e.sweeperMu.Unlock()

	if e.sweeper != nil {
		return
	}
	e.sweeper = NewSweeper(e, e.opts.SweepInterval)
	e.sweeper.Start(ctx)
	e.logger.Info("expiry sweeper started", slog.Duration("interval", e.opts.SweepInterval))
}

// StopSweeper stops the expiry sweeper and waits for it to exit.
func (e *Engine) StopSweeper() {
	e.sweeperMu.Lock()
	s := e.sweeper
	e.sweeper = nil
	e.sweeperMu.Unlock()

	if s != nil {
		s.Stop()
		e.logger.Info("expiry sweeper stopped")
	}
}
