package domain

import "time"

// Event names published by the auction engine.
const (
	EventAuctionStarted     = "auction_started"
	EventAuctionUpdated     = "auction_updated"
	EventAuctionEnded       = "auction_ended"
	EventTerritoryConquered = "territory_conquered"
	EventBonusApplied       = "bonus_applied"
)

// EventNames lists every event the engine can publish.
var EventNames = []string{
	EventAuctionStarted,
	EventAuctionUpdated,
	EventAuctionEnded,
	EventTerritoryConquered,
	EventBonusApplied,
}

// Event is a fire-and-forget notification.
type Event struct {
	Name    string    `json:"event"`
	At      time.Time `json:"timestamp"`
	Payload any       `json:"data"`
}

type AuctionStartedPayload struct {
	AuctionID   string    `json:"auctionId"`
	TerritoryID string    `json:"territoryId"`
	StartingBid int64     `json:"startingBid"`
	EndTime     time.Time `json:"endTime"`
	Protection  bool      `json:"protectionAware"`
}

type AuctionUpdatedPayload struct {
	AuctionID         string `json:"auctionId"`
	TerritoryID       string `json:"territoryId"`
	CurrentBid        int64  `json:"currentBid"`
	HighestBidderID   string `json:"highestBidderId"`
	HighestBidderName string `json:"highestBidderName"`
	BidCount          int    `json:"bidCount"`
}

type AuctionEndedPayload struct {
	AuctionID   string `json:"auctionId"`
	TerritoryID string `json:"territoryId"`
	WinnerID    string `json:"winnerId,omitempty"`
	FinalBid    int64  `json:"finalBid"`
}

// TerritoryConqueredPayload carries the winner and the tribute owed,
// which is the auction's final current bid.
type TerritoryConqueredPayload struct {
	TerritoryID string `json:"territoryId"`
	UserID      string `json:"userId"`
	UserName    string `json:"userName"`
	Tribute     int64  `json:"tribute"`
}

type BonusAppliedPayload struct {
	AuctionID    string  `json:"auctionId"`
	TerritoryID  string  `json:"territoryId"`
	UserID       string  `json:"userId"`
	Amount       int64   `json:"amount"`
	BuffedAmount int64   `json:"buffedAmount"`
	Bonuses      []Bonus `json:"bonuses"`
}
