package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/efreitasn/sovereignty/internal/domain"
)

func TestPlaceBid_Validation(t *testing.T) {
	tests := []struct {
		name     string
		bidder   string
		amount   int64
		wantKind domain.ErrorKind
		wantMsg  string
	}{
		{"below minimum", "U2", 51, domain.KindValidationFailed, "Minimum bid is 61"},
		{"self outbid", "U1", 100, domain.KindValidationFailed, "You are already the highest bidder"},
		{"ruler bids on own territory", "ruler", 100, domain.KindValidationFailed, "You already rule this territory"},
		{"anonymous", "", 100, domain.KindUnauthorized, "Authentication required"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, testOptions(), &domain.Territory{
				ID: "T1", Country: "DE", Sovereignty: domain.SovereigntyRuled, RulerID: "ruler",
			})
			a := mustCreate(t, env.engine, "T1")
			mustBid(t, env.engine, a.ID, "U1", 60)

			_, err := env.engine.PlaceBid(context.Background(), a.ID, tc.bidder, "x", tc.amount)
			if domain.KindOf(err) != tc.wantKind {
				t.Fatalf("expected %s, got %v", tc.wantKind, err)
			}
			if msg := domain.Message(err); msg != tc.wantMsg {
				t.Errorf("expected message %q, got %q", tc.wantMsg, msg)
			}
			got, _ := env.engine.GetActiveAuction(a.ID)
			if got.CurrentBid != 60 || len(got.Bids) != 1 {
				t.Errorf("expected auction unchanged, got currentBid=%d bids=%d", got.CurrentBid, len(got.Bids))
			}
		})
	}
}

func TestPlaceBid_FirstBidMustBeatStartingBid(t *testing.T) {
	env := newTestEnv(t, testOptions(), &domain.Territory{ID: "T1", Country: "DE"})
	a := mustCreate(t, env.engine, "T1")

	_, err := env.engine.PlaceBid(context.Background(), a.ID, "U1", "u1", 50)
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) || vErr.Message != "Minimum bid is 51" {
		t.Fatalf("expected 'Minimum bid is 51', got %v", err)
	}
	mustBid(t, env.engine, a.ID, "U1", 51)
}

func TestPlaceBid_NotFoundAndNotActive(t *testing.T) {
	env := newTestEnv(t, testOptions(), &domain.Territory{ID: "T1", Country: "DE"})
	ctx := context.Background()

	if _, err := env.engine.PlaceBid(ctx, "missing", "U1", "u1", 100); !errors.Is(err, domain.ErrAuctionNotFound) {
		t.Errorf("expected ErrAuctionNotFound, got %v", err)
	}

	a := mustCreate(t, env.engine, "T1")
	env.clock.Advance(24 * time.Hour)
	if _, err := env.engine.PlaceBid(ctx, a.ID, "U1", "u1", 100); !errors.Is(err, domain.ErrAuctionNotActive) {
		t.Errorf("expected ErrAuctionNotActive after end time, got %v", err)
	}

	if err := env.engine.EndAuction(ctx, a.ID); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := env.engine.PlaceBid(ctx, a.ID, "U1", "u1", 100); !errors.Is(err, domain.ErrAuctionNotActive) {
		t.Errorf("expected ErrAuctionNotActive after end, got %v", err)
	}
}

func TestPlaceBid_PersistFailureLeavesAuctionUnchanged(t *testing.T) {
	env := newTestEnv(t, testOptions(), &domain.Territory{ID: "T1", Country: "DE"})
	a := mustCreate(t, env.engine, "T1")
	env.sink.reset()
	env.store.Fail("update", "auctions", true)

	_, err := env.engine.PlaceBid(context.Background(), a.ID, "U1", "u1", 60)
	if !errors.Is(err, domain.ErrTransientIO) {
		t.Fatalf("expected ErrTransientIO, got %v", err)
	}
	got, _ := env.engine.GetActiveAuction(a.ID)
	if got.CurrentBid != 50 || got.HasBids() {
		t.Errorf("expected no in-memory change, got %+v", got)
	}
	if len(env.sink.events) != 0 {
		t.Errorf("expected no events, got %d", len(env.sink.events))
	}
}

func TestPlaceBid_Bonuses(t *testing.T) {
	env := newTestEnv(t, testOptions(),
		&domain.Territory{ID: "T1", Country: "DE", Neighbors: []string{"N1", "N2", "X1"}},
		&domain.Territory{ID: "N1", Country: "DE", Sovereignty: domain.SovereigntyRuled, RulerID: "U1"},
		&domain.Territory{ID: "N2", Country: "DE", Sovereignty: domain.SovereigntyRuled, RulerID: "U1"},
		&domain.Territory{ID: "D3", Country: "DE", Sovereignty: domain.SovereigntyRuled, RulerID: "U1"},
		&domain.Territory{ID: "X1", Country: "FR", Sovereignty: domain.SovereigntyRuled, RulerID: "U2"},
	)
	a := mustCreate(t, env.engine, "T1")

	got := mustBid(t, env.engine, a.ID, "U1", 100)

	bid := got.Bids[0]
	// 100 × 1.10 (two neighbours) × 1.10 (three in DE) = 121
	if bid.Amount != 100 || bid.BuffedAmount != 121 {
		t.Errorf("expected amount 100 buffed 121, got %d/%d", bid.Amount, bid.BuffedAmount)
	}
	if got.CurrentBid != 100 {
		t.Errorf("expected currentBid to be the raw amount, got %d", got.CurrentBid)
	}
	applied := env.sink.named(domain.EventBonusApplied)
	if len(applied) != 1 {
		t.Fatalf("expected 1 bonus_applied event, got %d", len(applied))
	}
	p := applied[0].Payload.(domain.BonusAppliedPayload)
	if len(p.Bonuses) != 2 || p.Bonuses[0].Kind != BonusAdjacency || p.Bonuses[1].Kind != BonusCountry {
		t.Errorf("unexpected bonuses %+v", p.Bonuses)
	}

	// U2 rules one neighbour in another country: adjacency only.
	got = mustBid(t, env.engine, a.ID, "U2", 200)
	if got.Bids[1].BuffedAmount != 210 {
		t.Errorf("expected buffed 210, got %d", got.Bids[1].BuffedAmount)
	}
}

func TestPlaceBid_NoBonusNoEvent(t *testing.T) {
	env := newTestEnv(t, testOptions(), &domain.Territory{ID: "T1", Country: "DE"})
	a := mustCreate(t, env.engine, "T1")

	got := mustBid(t, env.engine, a.ID, "U1", 60)

	if got.Bids[0].BuffedAmount != 60 {
		t.Errorf("expected buffed 60, got %d", got.Bids[0].BuffedAmount)
	}
	if len(env.sink.named(domain.EventBonusApplied)) != 0 {
		t.Error("expected no bonus_applied event")
	}
	updated := env.sink.named(domain.EventAuctionUpdated)
	if len(updated) != 1 {
		t.Fatalf("expected 1 auction_updated, got %d", len(updated))
	}
	if p := updated[0].Payload.(domain.AuctionUpdatedPayload); p.CurrentBid != 60 || p.BidCount != 1 {
		t.Errorf("unexpected payload %+v", p)
	}
}

func TestPlaceBid_ReconcilesBeforeChecking(t *testing.T) {
	env := newTestEnv(t, testOptions(), &domain.Territory{ID: "T1", Country: "DE"})
	a := mustCreate(t, env.engine, "T1")

	env.pricer.SetFloor("T1", 80)
	_, err := env.engine.PlaceBid(context.Background(), a.ID, "U1", "u1", 60)
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) || vErr.Message != "Minimum bid is 81" {
		t.Fatalf("expected 'Minimum bid is 81', got %v", err)
	}
	if s := storedAuction(t, env.store, a.ID); s.StartingBid != 80 || s.CurrentBid != 80 {
		t.Errorf("expected stored correction 80/80, got %d/%d", s.StartingBid, s.CurrentBid)
	}
}

func TestPlaceBid_HydratesFromStore(t *testing.T) {
	env := newTestEnv(t, testOptions(), &domain.Territory{ID: "T1", Country: "DE"})
	other := env.newEngine(testOptions())
	if err := other.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	a := mustCreate(t, env.engine, "T1")

	got := mustBid(t, other, a.ID, "U1", 60)
	if got.CurrentBid != 60 {
		t.Errorf("expected 60, got %d", got.CurrentBid)
	}
	if s := storedAuction(t, env.store, a.ID); s.CurrentBid != 60 || s.HighestBidderID != "U1" {
		t.Errorf("expected stored bid, got %d by %q", s.CurrentBid, s.HighestBidderID)
	}
}

func TestPlaceBid_AmountCeiling(t *testing.T) {
	env := newTestEnv(t, testOptions(), &domain.Territory{ID: "T1", Country: "DE"})
	other := env.newEngine(testOptions())
	if err := other.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	a := mustCreate(t, env.engine, "T1")

	_, err := env.engine.PlaceBid(context.Background(), a.ID, "U1", "u1", domain.MaxAmount+1)
	if domain.KindOf(err) != domain.KindValidationFailed {
		t.Fatalf("expected validation error above the ceiling, got %v", err)
	}

	mustBid(t, env.engine, a.ID, "U1", domain.MaxAmount)
	if s := storedAuction(t, env.store, a.ID); s.CurrentBid != domain.MaxAmount {
		t.Errorf("expected stored bid %d, got %d", domain.MaxAmount, s.CurrentBid)
	}

	// A second instance hydrates the exact amount and refuses to go higher.
	_, err = other.PlaceBid(context.Background(), a.ID, "U2", "u2", domain.MaxAmount)
	if msg := domain.Message(err); msg != "Auction has reached the maximum bid" {
		t.Fatalf("expected ceiling message, got %v", err)
	}
	got, err := other.GetActiveAuction(a.ID)
	if err != nil || got.CurrentBid != domain.MaxAmount || got.HighestBidderID != "U1" {
		t.Errorf("expected hydrated bid %d by U1, got %+v", domain.MaxAmount, got)
	}
}

func TestPlaceBid_ConcurrentBidsAreSerialized(t *testing.T) {
	env := newTestEnv(t, testOptions(), &domain.Territory{ID: "T1", Country: "DE"})
	a := mustCreate(t, env.engine, "T1")

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Every bidder offers the same amount; only the first can win.
			_, _ = env.engine.PlaceBid(context.Background(), a.ID, "U"+string(rune('A'+i)), "x", 100)
		}(i)
	}
	wg.Wait()

	got, err := env.engine.GetActiveAuction(a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Bids) != 1 {
		t.Fatalf("expected exactly 1 accepted bid, got %d", len(got.Bids))
	}
	if got.CurrentBid != 100 {
		t.Errorf("expected currentBid 100, got %d", got.CurrentBid)
	}
}

func TestPlaceBid_Monotonic(t *testing.T) {
	env := newTestEnv(t, testOptions(), &domain.Territory{ID: "T1", Country: "DE"})
	a := mustCreate(t, env.engine, "T1")

	bidders := []string{"U1", "U2"}
	amount := int64(51)
	for i := 0; i < 10; i++ {
		mustBid(t, env.engine, a.ID, bidders[i%2], amount)
		amount += int64(i + 1)
	}

	got, _ := env.engine.GetActiveAuction(a.ID)
	for i := 1; i < len(got.Bids); i++ {
		if got.Bids[i].Amount < got.Bids[i-1].Amount+got.MinIncrement {
			t.Errorf("bid %d (%d) does not exceed previous (%d) by the increment", i, got.Bids[i].Amount, got.Bids[i-1].Amount)
		}
	}
}
