// Package pricing computes deterministic territory prices.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/efreitasn/sovereignty/internal/domain"
)

// Config holds the pricing coefficients. All fields are plain values so a
// Config can be compared and copied freely.
type Config struct {
	BasePrice            int64
	AreaRate             float64 // per km²
	PopulationRate       float64 // per inhabitant
	MinInstantPrice      int64
	FallbackInstantPrice int64
	AuctionRatio         float64
	MinBid               int64
	CountryMultipliers   map[string]float64
}

// DefaultConfig returns the coefficients used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		BasePrice:            100,
		AreaRate:             0.5,
		PopulationRate:       0.0001,
		MinInstantPrice:      100,
		FallbackInstantPrice: 100,
		AuctionRatio:         0.6,
		MinBid:               10,
		CountryMultipliers: map[string]float64{
			"US": 1.5,
			"GB": 1.4,
			"FR": 1.3,
			"DE": 1.3,
			"JP": 1.4,
		},
	}
}

// Oracle prices territories from their physical and economic attributes.
// It holds no mutable state: the same territory always yields the same price.
type Oracle struct {
	cfg Config
}

// NewOracle creates an Oracle. Zero or negative guard values are replaced
// with the defaults so every territory stays biddable.
func NewOracle(cfg Config) *Oracle {
	def := DefaultConfig()
	if cfg.MinBid <= 0 {
		cfg.MinBid = def.MinBid
	}
	if cfg.AuctionRatio <= 0 {
		cfg.AuctionRatio = def.AuctionRatio
	}
	if cfg.MinInstantPrice <= 0 {
		cfg.MinInstantPrice = def.MinInstantPrice
	}
	if cfg.FallbackInstantPrice <= 0 {
		cfg.FallbackInstantPrice = cfg.MinInstantPrice
	}
	multipliers := make(map[string]float64, len(cfg.CountryMultipliers))
	for k, v := range cfg.CountryMultipliers {
		multipliers[k] = v
	}
	cfg.CountryMultipliers = multipliers
	return &Oracle{cfg: cfg}
}

// InstantPrice returns the buy-now price of t, never below MinInstantPrice.
// Territories without usable attributes get FallbackInstantPrice.
func (o *Oracle) InstantPrice(t *domain.Territory) int64 {
	if !priceable(t) {
		return o.cfg.FallbackInstantPrice
	}

	price := decimal.NewFromInt(o.cfg.BasePrice).
		Add(decimal.NewFromFloat(t.AreaKm2).Mul(decimal.NewFromFloat(o.cfg.AreaRate))).
		Add(decimal.NewFromInt(t.Population).Mul(decimal.NewFromFloat(o.cfg.PopulationRate)))

	if m, ok := o.cfg.CountryMultipliers[t.Country]; ok && m > 0 {
		price = price.Mul(decimal.NewFromFloat(m))
	}

	result := price.Floor().IntPart()
	if result < o.cfg.MinInstantPrice {
		return o.cfg.MinInstantPrice
	}
	return result
}

// StartingBidFloor returns max(floor(InstantPrice × AuctionRatio), MinBid).
func (o *Oracle) StartingBidFloor(t *domain.Territory) int64 {
	floor := decimal.NewFromInt(o.InstantPrice(t)).
		Mul(decimal.NewFromFloat(o.cfg.AuctionRatio)).
		Floor().
		IntPart()
	if floor < o.cfg.MinBid {
		return o.cfg.MinBid
	}
	return floor
}

func priceable(t *domain.Territory) bool {
	if t == nil || t.Country == "" {
		return false
	}
	if t.AreaKm2 < 0 || t.Population < 0 {
		return false
	}
	return t.AreaKm2 > 0 || t.Population > 0
}
