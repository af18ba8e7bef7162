package engine

import (
	"github.com/shopspring/decimal"

	"github.com/efreitasn/sovereignty/internal/domain"
)

// Bonus kinds, in the order the pipeline applies them.
const (
	BonusAdjacency = "adjacency"
	BonusCountry   = "country_dominance"
	BonusSeason    = "season"
)

// BonusConfig holds the bonus rates.
type BonusConfig struct {
	AdjacentRate     float64 // per adjacent territory the bidder rules
	CountryRate      float64
	CountryThreshold int // territories ruled in the same country
}

// DefaultBonusConfig returns the production bonus rates.
func DefaultBonusConfig() BonusConfig {
	return BonusConfig{
		AdjacentRate:     0.05,
		CountryRate:      0.10,
		CountryThreshold: 3,
	}
}

// BonusContext is what the pipeline needs to know about the bidder.
type BonusContext struct {
	AdjacentOwned int
	CountryOwned  int
}

// BonusResult is the outcome of the bonus pipeline. Bonuses lists only
// the bonuses that contributed.
type BonusResult struct {
	Amount  int64
	Buffed  int64
	Bonuses []domain.Bonus
}

// Applied reports whether any bonus contributed.
func (r BonusResult) Applied() bool {
	return len(r.Bonuses) > 0
}

// ComputeBonuses applies adjacency, country dominance and season bonuses
// multiplicatively: buffed = round(amount × Π(1 + rate)). It has no side
// effects.
func ComputeBonuses(amount int64, bctx BonusContext, cfg BonusConfig) BonusResult {
	candidates := []domain.Bonus{
		adjacencyBonus(bctx, cfg),
		countryBonus(bctx, cfg),
		seasonBonus(),
	}

	factor := decimal.NewFromInt(1)
	var applied []domain.Bonus
	for _, b := range candidates {
		if b.Rate <= 0 {
			continue
		}
		factor = factor.Mul(decimal.NewFromInt(1).Add(decimal.NewFromFloat(b.Rate)))
		applied = append(applied, b)
	}

	return BonusResult{
		Amount:  amount,
		Buffed:  decimal.NewFromInt(amount).Mul(factor).Round(0).IntPart(),
		Bonuses: applied,
	}
}

func adjacencyBonus(bctx BonusContext, cfg BonusConfig) domain.Bonus {
	b := domain.Bonus{Kind: BonusAdjacency, Count: bctx.AdjacentOwned}
	if bctx.AdjacentOwned > 0 && cfg.AdjacentRate > 0 {
		b.Rate, _ = decimal.NewFromFloat(cfg.AdjacentRate).Mul(decimal.NewFromInt(int64(bctx.AdjacentOwned))).Float64()
	}
	return b
}

func countryBonus(bctx BonusContext, cfg BonusConfig) domain.Bonus {
	b := domain.Bonus{Kind: BonusCountry, Count: bctx.CountryOwned}
	if cfg.CountryThreshold > 0 && bctx.CountryOwned >= cfg.CountryThreshold {
		b.Rate = cfg.CountryRate
	}
	return b
}

// seasonBonus is reserved; seasons are not modelled yet.
func seasonBonus() domain.Bonus {
	return domain.Bonus{Kind: BonusSeason}
}
