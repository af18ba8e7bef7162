package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/efreitasn/sovereignty/internal/domain"
)

func TestCreateAuction_StartingBidOverride(t *testing.T) {
	tests := []struct {
		name     string
		override int64
		wantErr  string
	}{
		{"below floor", 49, "Starting bid must be at least 50"},
		{"at floor", 50, ""},
		{"above floor", 120, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, testOptions(), &domain.Territory{ID: "T1", Country: "DE"})

			a, err := env.engine.CreateAuction(context.Background(), "T1", CreateOptions{StartingBid: int64Ptr(tc.override)})
			if tc.wantErr != "" {
				var vErr *domain.ValidationError
				if !errors.As(err, &vErr) || vErr.Message != tc.wantErr {
					t.Fatalf("expected validation error %q, got %v", tc.wantErr, err)
				}
				if tr := mustTerritory(t, env.engine, "T1"); tr.Sovereignty != domain.SovereigntyUnconquered {
					t.Errorf("expected territory untouched, got %s", tr.Sovereignty)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if a.StartingBid != tc.override || a.CurrentBid != tc.override {
				t.Errorf("expected %d/%d, got %d/%d", tc.override, tc.override, a.StartingBid, a.CurrentBid)
			}
			if !a.StartingBidOverride {
				t.Error("expected StartingBidOverride to be recorded")
			}
		})
	}
}

func TestCreateAuction_UnknownTerritory(t *testing.T) {
	env := newTestEnv(t, testOptions())

	_, err := env.engine.CreateAuction(context.Background(), "ghost", CreateOptions{})
	if !errors.Is(err, domain.ErrTerritoryNotFound) {
		t.Fatalf("expected ErrTerritoryNotFound, got %v", err)
	}
}

func TestCreateAuction_InvalidDuration(t *testing.T) {
	env := newTestEnv(t, testOptions(), &domain.Territory{ID: "T1", Country: "DE"})

	_, err := env.engine.CreateAuction(context.Background(), "T1", CreateOptions{Duration: durationPtr(0)})
	if domain.KindOf(err) != domain.KindValidationFailed {
		t.Fatalf("expected validation failure, got %v", err)
	}
}

func TestCreateAuction_EndTimePolicy(t *testing.T) {
	protectedUntil := testStart.Add(10 * time.Hour)

	tests := []struct {
		name          string
		territory     *domain.Territory
		duration      *time.Duration
		wantEnd       time.Time
		wantAware     bool
		wantPrevOwner string
	}{
		{
			name:      "unowned uses short duration",
			territory: &domain.Territory{ID: "T1", Country: "DE"},
			wantEnd:   testStart.Add(24 * time.Hour),
		},
		{
			name:          "owned uses owned duration",
			territory:     &domain.Territory{ID: "T1", Country: "DE", Sovereignty: domain.SovereigntyRuled, RulerID: "u1", RulerName: "one"},
			wantEnd:       testStart.Add(7 * 24 * time.Hour),
			wantPrevOwner: "u1",
		},
		{
			name:      "duration override",
			territory: &domain.Territory{ID: "T1", Country: "DE"},
			duration:  durationPtr(2 * time.Hour),
			wantEnd:   testStart.Add(2 * time.Hour),
		},
		{
			name: "protection window wins",
			territory: &domain.Territory{
				ID: "T1", Country: "DE",
				Sovereignty: domain.SovereigntyProtected, RulerID: "u1", RulerName: "one",
				ProtectedUntil: &protectedUntil,
			},
			duration:      durationPtr(2 * time.Hour),
			wantEnd:       protectedUntil,
			wantAware:     true,
			wantPrevOwner: "u1",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, testOptions(), tc.territory)

			a, err := env.engine.CreateAuction(context.Background(), "T1", CreateOptions{Duration: tc.duration})
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if !a.EndTime.Equal(tc.wantEnd) {
				t.Errorf("expected end %v, got %v", tc.wantEnd, a.EndTime)
			}
			if a.ProtectionAware != tc.wantAware {
				t.Errorf("expected protectionAware=%v", tc.wantAware)
			}
			if a.PreviousOwnerID != tc.wantPrevOwner {
				t.Errorf("expected previous owner %q, got %q", tc.wantPrevOwner, a.PreviousOwnerID)
			}
			if tr := mustTerritory(t, env.engine, "T1"); tr.Sovereignty != domain.SovereigntyContested {
				t.Errorf("expected contested, got %s", tr.Sovereignty)
			}
		})
	}
}

func TestCreateAuction_PercentIncrement(t *testing.T) {
	opts := testOptions()
	opts.Increment = PercentIncrement{Rate: 0.10}
	env := newTestEnv(t, opts, &domain.Territory{ID: "T1", Country: "DE"})

	a := mustCreate(t, env.engine, "T1")
	if a.MinIncrement != 5 {
		t.Errorf("expected minIncrement 5, got %d", a.MinIncrement)
	}
	if a.MinimumBid() != 55 {
		t.Errorf("expected minimum bid 55, got %d", a.MinimumBid())
	}
}

func TestCreateAuction_PublishesStarted(t *testing.T) {
	env := newTestEnv(t, testOptions(), &domain.Territory{ID: "T1", Country: "DE"})

	a := mustCreate(t, env.engine, "T1")

	started := env.sink.named(domain.EventAuctionStarted)
	if len(started) != 1 {
		t.Fatalf("expected 1 auction_started, got %d", len(started))
	}
	p := started[0].Payload.(domain.AuctionStartedPayload)
	if p.AuctionID != a.ID || p.StartingBid != 50 {
		t.Errorf("unexpected payload %+v", p)
	}
}

func TestCreateAuction_AuctionWriteFails(t *testing.T) {
	env := newTestEnv(t, testOptions(), &domain.Territory{ID: "T1", Country: "DE"})
	env.store.Fail("set", "auctions", true)

	_, err := env.engine.CreateAuction(context.Background(), "T1", CreateOptions{})
	if !errors.Is(err, domain.ErrTransientIO) {
		t.Fatalf("expected ErrTransientIO, got %v", err)
	}
	if env.engine.ledger.Len() != 0 {
		t.Error("expected empty ledger")
	}
	if tr := mustTerritory(t, env.engine, "T1"); tr.Sovereignty != domain.SovereigntyUnconquered {
		t.Errorf("expected unconquered, got %s", tr.Sovereignty)
	}
	if len(env.sink.named(domain.EventAuctionStarted)) != 0 {
		t.Error("expected no auction_started event")
	}
}

func TestCreateAuction_TerritoryWriteFails_CancelsAuction(t *testing.T) {
	env := newTestEnv(t, testOptions(), &domain.Territory{ID: "T1", Country: "DE"})
	env.store.Fail("set", "territories", true)

	_, err := env.engine.CreateAuction(context.Background(), "T1", CreateOptions{})
	if !errors.Is(err, domain.ErrTransientIO) {
		t.Fatalf("expected ErrTransientIO, got %v", err)
	}

	id := domain.NewAuctionID("T1", testStart)
	if a := storedAuction(t, env.store, id); a.Status != domain.AuctionStatusCancelled {
		t.Errorf("expected stored auction cancelled, got %s", a.Status)
	}
	if env.engine.ledger.Len() != 0 {
		t.Error("expected empty ledger")
	}
	if tr := mustTerritory(t, env.engine, "T1"); tr.Sovereignty != domain.SovereigntyUnconquered {
		t.Errorf("expected unconquered, got %s", tr.Sovereignty)
	}

	// Once the store recovers the territory can be auctioned again.
	env.store.Fail("set", "territories", false)
	env.clock.Advance(time.Second)
	mustCreate(t, env.engine, "T1")
}

func TestCreateAuction_DetectsAuctionFromOtherInstance(t *testing.T) {
	env := newTestEnv(t, testOptions(), &domain.Territory{ID: "T1", Country: "DE"})
	other := env.newEngine(testOptions())
	if err := other.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	a := mustCreate(t, env.engine, "T1")

	_, err := other.CreateAuction(context.Background(), "T1", CreateOptions{})
	if !errors.Is(err, domain.ErrAuctionAlreadyActive) {
		t.Fatalf("expected ErrAuctionAlreadyActive, got %v", err)
	}
	if _, err := other.GetActiveAuction(a.ID); err != nil {
		t.Errorf("expected live auction hydrated into other ledger: %v", err)
	}
}

func TestCreateAuction_ResolvesStaleStoreRecord(t *testing.T) {
	env := newTestEnv(t, testOptions(), &domain.Territory{ID: "T1", Country: "DE"})
	other := env.newEngine(testOptions())
	if err := other.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	stale := mustCreate(t, env.engine, "T1")
	env.clock.Advance(25 * time.Hour)
	env.sink.reset()

	fresh, err := other.CreateAuction(context.Background(), "T1", CreateOptions{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if fresh.ID == stale.ID {
		t.Fatal("expected a new auction id")
	}
	if a := storedAuction(t, env.store, stale.ID); a.Status != domain.AuctionStatusEnded {
		t.Errorf("expected stale auction ended, got %s", a.Status)
	}
	if len(env.sink.named(domain.EventAuctionEnded)) != 1 {
		t.Error("expected stale auction_ended to be published")
	}
	if tr := storedTerritory(t, env.store, "T1"); tr.CurrentAuctionID != fresh.ID {
		t.Errorf("expected territory linked to %s, got %q", fresh.ID, tr.CurrentAuctionID)
	}
}

func TestCreateAuction_ResolvesExpiredLedgerAuction(t *testing.T) {
	env := newTestEnv(t, testOptions(), &domain.Territory{ID: "T1", Country: "DE"})

	old := mustCreate(t, env.engine, "T1")
	mustBid(t, env.engine, old.ID, "U1", 60)
	env.clock.Advance(25 * time.Hour)

	a, err := env.engine.CreateAuction(context.Background(), "T1", CreateOptions{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.PreviousOwnerID != "U1" {
		t.Errorf("expected previous owner U1 from the resolved auction, got %q", a.PreviousOwnerID)
	}
	if len(env.sink.named(domain.EventTerritoryConquered)) != 1 {
		t.Error("expected territory_conquered for the expired auction")
	}
}

func TestCreateAuction_RepairsOrphanContested(t *testing.T) {
	env := newTestEnv(t, testOptions(), &domain.Territory{ID: "T1", Country: "DE"})
	// Drift the registry behind Load's back.
	env.engine.territories.Put(&domain.Territory{
		ID: "T1", Country: "DE",
		Sovereignty: domain.SovereigntyContested, RulerID: "u7",
		CurrentAuctionID: "T1_1",
	})

	a := mustCreate(t, env.engine, "T1")

	tr := mustTerritory(t, env.engine, "T1")
	if tr.Sovereignty != domain.SovereigntyContested || tr.CurrentAuctionID != a.ID {
		t.Errorf("expected contested by %s, got %s/%q", a.ID, tr.Sovereignty, tr.CurrentAuctionID)
	}
	if a.PreviousOwnerID != "u7" {
		t.Errorf("expected previous owner u7, got %q", a.PreviousOwnerID)
	}
}

func TestCreateAuction_ConcurrentSingleWinner(t *testing.T) {
	env := newTestEnv(t, testOptions(), &domain.Territory{ID: "T1", Country: "DE"})

	const n = 16
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := env.engine.CreateAuction(context.Background(), "T1", CreateOptions{})
			errs <- err
		}()
	}

	created := 0
	for i := 0; i < n; i++ {
		err := <-errs
		switch {
		case err == nil:
			created++
		case !errors.Is(err, domain.ErrAuctionAlreadyActive):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly 1 auction created, got %d", created)
	}
	if env.engine.locks.size() != 0 {
		t.Errorf("expected no lock entries left, got %d", env.engine.locks.size())
	}
}
