package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/efreitasn/sovereignty/internal/domain"
	"github.com/efreitasn/sovereignty/internal/store"
)

var testStart = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

// fakeClock is a settable Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: testStart} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// stubPricer returns a fixed floor per territory, defaulting to 50.
type stubPricer struct {
	mu     sync.Mutex
	floors map[string]int64
}

func newStubPricer() *stubPricer { return &stubPricer{floors: make(map[string]int64)} }

func (p *stubPricer) SetFloor(territoryID string, floor int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.floors[territoryID] = floor
}

func (p *stubPricer) StartingBidFloor(t *domain.Territory) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if f, ok := p.floors[t.ID]; ok {
		return f
	}
	return 50
}

func (p *stubPricer) InstantPrice(t *domain.Territory) int64 {
	return p.StartingBidFloor(t) * 2
}

// recordingSink records published events.
type recordingSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (s *recordingSink) Publish(ev domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) named(name string) []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.Event
	for _, ev := range s.events {
		if ev.Name == name {
			result = append(result, ev)
		}
	}
	return result
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

var errStoreDown = errors.New("store unavailable")

// flakyStore wraps a MemoryStore and fails selected operations.
type flakyStore struct {
	*store.MemoryStore

	mu    sync.Mutex
	fails map[string]bool // "<op>:<collection>"
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: store.NewMemoryStore(), fails: make(map[string]bool)}
}

func (s *flakyStore) Fail(op, collection string, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails[op+":"+collection] = fail
}

func (s *flakyStore) failing(op, collection string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fails[op+":"+collection]
}

func (s *flakyStore) Get(ctx context.Context, collection, id string) (store.Document, error) {
	if s.failing("get", collection) {
		return nil, errStoreDown
	}
	return s.MemoryStore.Get(ctx, collection, id)
}

func (s *flakyStore) Set(ctx context.Context, collection, id string, doc store.Document) error {
	if s.failing("set", collection) {
		return errStoreDown
	}
	return s.MemoryStore.Set(ctx, collection, id, doc)
}

func (s *flakyStore) Update(ctx context.Context, collection, id string, patch store.Document) error {
	if s.failing("update", collection) {
		return errStoreDown
	}
	return s.MemoryStore.Update(ctx, collection, id, patch)
}

func (s *flakyStore) Query(ctx context.Context, collection string, q store.Query) ([]store.Document, error) {
	if s.failing("query", collection) {
		return nil, errStoreDown
	}
	return s.MemoryStore.Query(ctx, collection, q)
}

// tb is the subset of testing.TB that *rapid.T also implements.
type tb interface {
	Helper()
	Fatalf(format string, args ...any)
}

type testEnv struct {
	engine *Engine
	store  *flakyStore
	clock  *fakeClock
	pricer *stubPricer
	sink   *recordingSink
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.ProtectionPeriod = 0
	return opts
}

// newTestEnv seeds territories into a store and loads a fresh engine.
func newTestEnv(t tb, opts Options, territories ...*domain.Territory) *testEnv {
	t.Helper()
	st := newFlakyStore()
	for _, tr := range territories {
		putTerritory(t, st, tr)
	}
	env := &testEnv{
		store:  st,
		clock:  newFakeClock(),
		pricer: newStubPricer(),
		sink:   &recordingSink{},
	}
	env.engine = env.newEngine(opts)
	if err := env.engine.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return env
}

// newEngine builds a second engine over the same store, as another
// process instance would.
func (env *testEnv) newEngine(opts Options) *Engine {
	return New(env.store, env.pricer, env.clock, env.sink, testLogger(), opts)
}

func putTerritory(t tb, st store.Store, tr *domain.Territory) {
	t.Helper()
	if tr.Sovereignty == "" {
		tr.Sovereignty = domain.SovereigntyUnconquered
	}
	doc, err := store.EncodeTerritory(tr)
	if err != nil {
		t.Fatalf("encode territory: %v", err)
	}
	if err := st.Set(context.Background(), store.CollectionTerritories, tr.ID, doc); err != nil {
		t.Fatalf("seed territory: %v", err)
	}
}

func putAuction(t tb, st store.Store, a *domain.Auction) {
	t.Helper()
	doc, err := store.EncodeAuction(a)
	if err != nil {
		t.Fatalf("encode auction: %v", err)
	}
	if err := st.Set(context.Background(), store.CollectionAuctions, a.ID, doc); err != nil {
		t.Fatalf("seed auction: %v", err)
	}
}

func storedAuction(t tb, st store.Store, id string) *domain.Auction {
	t.Helper()
	doc, err := st.Get(context.Background(), store.CollectionAuctions, id)
	if err != nil {
		t.Fatalf("get auction %s: %v", id, err)
	}
	a, err := store.DecodeAuction(doc)
	if err != nil {
		t.Fatalf("decode auction %s: %v", id, err)
	}
	return a
}

func storedTerritory(t tb, st store.Store, id string) *domain.Territory {
	t.Helper()
	doc, err := st.Get(context.Background(), store.CollectionTerritories, id)
	if err != nil {
		t.Fatalf("get territory %s: %v", id, err)
	}
	tr, err := store.DecodeTerritory(doc)
	if err != nil {
		t.Fatalf("decode territory %s: %v", id, err)
	}
	return tr
}

func mustTerritory(t tb, e *Engine, id string) *domain.Territory {
	t.Helper()
	tr, err := e.Territory(id)
	if err != nil {
		t.Fatalf("territory %s: %v", id, err)
	}
	return tr
}

func mustCreate(t tb, e *Engine, territoryID string) *domain.Auction {
	t.Helper()
	a, err := e.CreateAuction(context.Background(), territoryID, CreateOptions{})
	if err != nil {
		t.Fatalf("create auction for %s: %v", territoryID, err)
	}
	return a
}

func mustBid(t tb, e *Engine, auctionID, userID string, amount int64) *domain.Auction {
	t.Helper()
	a, err := e.PlaceBid(context.Background(), auctionID, userID, "name-"+userID, amount)
	if err != nil {
		t.Fatalf("bid %d by %s: %v", amount, userID, err)
	}
	return a
}

func int64Ptr(v int64) *int64 { return &v }

func durationPtr(d time.Duration) *time.Duration { return &d }
