package engine

import (
	"testing"

	"pgregory.net/rapid"
)

func TestComputeBonuses(t *testing.T) {
	cfg := DefaultBonusConfig()

	tests := []struct {
		name        string
		amount      int64
		bctx        BonusContext
		wantBuffed  int64
		wantBonuses []string
	}{
		{"no bonus", 100, BonusContext{}, 100, nil},
		{"one neighbour", 100, BonusContext{AdjacentOwned: 1}, 105, []string{BonusAdjacency}},
		{"four neighbours", 100, BonusContext{AdjacentOwned: 4}, 120, []string{BonusAdjacency}},
		{"below country threshold", 100, BonusContext{CountryOwned: 2}, 100, nil},
		{"country dominance", 100, BonusContext{CountryOwned: 3}, 110, []string{BonusCountry}},
		{"stacked multiplicatively", 100, BonusContext{AdjacentOwned: 2, CountryOwned: 5}, 121, []string{BonusAdjacency, BonusCountry}},
		{"rounds half up", 10, BonusContext{AdjacentOwned: 1}, 11, []string{BonusAdjacency}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := ComputeBonuses(tc.amount, tc.bctx, cfg)

			if r.Amount != tc.amount {
				t.Errorf("expected raw amount %d, got %d", tc.amount, r.Amount)
			}
			if r.Buffed != tc.wantBuffed {
				t.Errorf("expected buffed %d, got %d", tc.wantBuffed, r.Buffed)
			}
			if len(r.Bonuses) != len(tc.wantBonuses) {
				t.Fatalf("expected %d bonuses, got %+v", len(tc.wantBonuses), r.Bonuses)
			}
			for i, kind := range tc.wantBonuses {
				if r.Bonuses[i].Kind != kind {
					t.Errorf("bonus %d: expected %s, got %s", i, kind, r.Bonuses[i].Kind)
				}
			}
			if r.Applied() != (len(tc.wantBonuses) > 0) {
				t.Errorf("unexpected Applied() = %v", r.Applied())
			}
		})
	}
}

func TestComputeBonuses_ZeroRatesDisable(t *testing.T) {
	r := ComputeBonuses(100, BonusContext{AdjacentOwned: 3, CountryOwned: 9}, BonusConfig{})
	if r.Applied() || r.Buffed != 100 {
		t.Errorf("expected no bonus with zero config, got %+v", r)
	}
}

func TestProperty_BuffedNeverBelowRaw(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		amount := rapid.Int64Range(1, 1_000_000).Draw(t, "amount")
		bctx := BonusContext{
			AdjacentOwned: rapid.IntRange(0, 10).Draw(t, "adjacent"),
			CountryOwned:  rapid.IntRange(0, 10).Draw(t, "country"),
		}

		r := ComputeBonuses(amount, bctx, DefaultBonusConfig())

		if r.Buffed < amount {
			t.Fatalf("buffed %d below raw %d", r.Buffed, amount)
		}
		if !r.Applied() && r.Buffed != amount {
			t.Fatalf("no bonus but buffed %d != raw %d", r.Buffed, amount)
		}
	})
}
