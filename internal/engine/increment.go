package engine

import "github.com/shopspring/decimal"

// IncrementPolicy decides an auction's minimum bid increment at creation.
type IncrementPolicy interface {
	Increment(startingBid int64) int64
}

// FlatIncrement is a fixed increment, at least one unit.
type FlatIncrement struct {
	Units int64
}

func (p FlatIncrement) Increment(int64) int64 {
	if p.Units < 1 {
		return 1
	}
	return p.Units
}

// PercentIncrement scales the increment with the starting bid, at least
// one unit.
type PercentIncrement struct {
	Rate float64
}

func (p PercentIncrement) Increment(startingBid int64) int64 {
	inc := decimal.NewFromInt(startingBid).Mul(decimal.NewFromFloat(p.Rate)).Floor().IntPart()
	if inc < 1 {
		return 1
	}
	return inc
}
