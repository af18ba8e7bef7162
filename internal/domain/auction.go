package domain

import (
	"fmt"
	"math"
	"time"
)

// AuctionType selects the bidding format. Only standard auctions are
// resolved by the engine; the other types are accepted as labels.
type AuctionType string

const (
	AuctionTypeStandard AuctionType = "standard"
	AuctionTypeDutch    AuctionType = "dutch"
	AuctionTypeSealed   AuctionType = "sealed"
)

// AuctionStatus represents the lifecycle state of an auction.
type AuctionStatus string

const (
	AuctionStatusPending   AuctionStatus = "pending"
	AuctionStatusActive    AuctionStatus = "active"
	AuctionStatusEnded     AuctionStatus = "ended"
	AuctionStatusCancelled AuctionStatus = "cancelled"
)

// MaxAmount is the largest bid or starting bid accepted. It is the
// largest integer a JSON client can represent exactly.
const MaxAmount int64 = 1<<53 - 1

// Bonus is a single multiplicative adjustment credited to a bid.
type Bonus struct {
	Kind  string  `json:"kind"`
	Rate  float64 `json:"rate"`
	Count int     `json:"count,omitempty"`
}

// Bid is an immutable bid record. Amount is what the bidder is charged;
// BuffedAmount is the bonus-adjusted competitive value.
type Bid struct {
	UserID       string    `json:"userId"`
	UserName     string    `json:"userName"`
	Amount       int64     `json:"amount"`
	BuffedAmount int64     `json:"buffedAmount"`
	Bonuses      []Bonus   `json:"bonuses,omitempty"`
	PlacedAt     time.Time `json:"placedAt"`
}

// Auction is a single bidding round for one territory.
type Auction struct {
	ID                  string        `json:"id"`
	TerritoryID         string        `json:"territoryId"`
	Type                AuctionType   `json:"type"`
	Status              AuctionStatus `json:"status"`
	StartingBid         int64         `json:"startingBid"`
	StartingBidOverride bool          `json:"startingBidOverride"`
	CurrentBid          int64         `json:"currentBid"`
	MinIncrement        int64         `json:"minIncrement"`
	HighestBidderID     string        `json:"highestBidderId"`
	HighestBidderName   string        `json:"highestBidderName"`
	Bids                []Bid         `json:"bids"`
	StartTime           time.Time     `json:"startTime"`
	EndTime             time.Time     `json:"endTime"`
	EndedAt             *time.Time    `json:"endedAt"`
	PreviousOwnerID     string        `json:"previousOwnerId"`
	PreviousOwnerName   string        `json:"previousOwnerName"`
	ProtectionAware     bool          `json:"protectionAware"`
}

// NewAuctionID derives an auction id from the territory id and creation time.
func NewAuctionID(territoryID string, createdAt time.Time) string {
	return fmt.Sprintf("%s_%d", territoryID, createdAt.UnixMilli())
}

// HasBids returns true once any bidder has been recorded.
func (a *Auction) HasBids() bool {
	return a.HighestBidderID != ""
}

// ReferencePrice is the price the next bid must exceed: the starting bid
// until someone bids, then the current bid, never below the starting bid.
func (a *Auction) ReferencePrice() int64 {
	if !a.HasBids() {
		return a.StartingBid
	}
	if a.CurrentBid < a.StartingBid {
		return a.StartingBid
	}
	return a.CurrentBid
}

// MinimumBid returns the lowest acceptable amount for the next bid. It
// saturates at math.MaxInt64 instead of overflowing.
func (a *Auction) MinimumBid() int64 {
	ref := a.ReferencePrice()
	if a.MinIncrement > 0 && ref > math.MaxInt64-a.MinIncrement {
		return math.MaxInt64
	}
	return ref + a.MinIncrement
}

// BiddingExhausted reports whether no bid up to MaxAmount can beat the
// reference price.
func (a *Auction) BiddingExhausted() bool {
	return a.MinimumBid() > MaxAmount
}

// Expired reports whether the auction's end time is at or before now.
func (a *Auction) Expired(now time.Time) bool {
	return !a.EndTime.After(now)
}

// Clone returns a deep copy of the auction. Bid records are values, so
// copying the slice is enough to keep history append-only per snapshot.
func (a *Auction) Clone() *Auction {
	c := *a
	c.Bids = make([]Bid, len(a.Bids))
	copy(c.Bids, a.Bids)
	if a.EndedAt != nil {
		e := *a.EndedAt
		c.EndedAt = &e
	}
	return &c
}
