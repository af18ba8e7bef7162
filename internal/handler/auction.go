package handler

import (
	"net/http"

	"github.com/efreitasn/sovereignty/internal/domain"
	"github.com/efreitasn/sovereignty/internal/service"
	"github.com/go-chi/chi/v5"
)

// AuctionHandler handles HTTP requests for auction endpoints.
type AuctionHandler struct {
	auctionSvc *service.AuctionService
}

// NewAuctionHandler creates a new AuctionHandler.
func NewAuctionHandler(auctionSvc *service.AuctionService) *AuctionHandler {
	return &AuctionHandler{auctionSvc: auctionSvc}
}

// createAuctionRequest is the JSON request body for POST /auctions.
type createAuctionRequest struct {
	TerritoryID string `json:"territory_id"`
	StartingBid *int64 `json:"starting_bid"`
	Duration    string `json:"duration"`
	Type        string `json:"type"`
}

// placeBidRequest is the JSON request body for POST /auctions/{auction_id}/bids.
type placeBidRequest struct {
	Amount int64 `json:"amount"`
}

// bidResponse is a single bid in the auction response.
type bidResponse struct {
	UserID       string          `json:"user_id"`
	UserName     string          `json:"user_name"`
	Amount       int64           `json:"amount"`
	BuffedAmount int64           `json:"buffed_amount"`
	Bonuses      []bonusResponse `json:"bonuses"`
	PlacedAt     string          `json:"placed_at"`
}

type bonusResponse struct {
	Kind  string  `json:"kind"`
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}

// auctionResponse is the JSON representation of an auction.
type auctionResponse struct {
	AuctionID         string        `json:"auction_id"`
	TerritoryID       string        `json:"territory_id"`
	Type              string        `json:"type"`
	Status            string        `json:"status"`
	StartingBid       int64         `json:"starting_bid"`
	CurrentBid        int64         `json:"current_bid"`
	MinimumBid        int64         `json:"minimum_bid"`
	HighestBidderID   *string       `json:"highest_bidder_id"`
	HighestBidderName *string       `json:"highest_bidder_name"`
	PreviousOwnerID   *string       `json:"previous_owner_id"`
	ProtectionAware   bool          `json:"protection_aware"`
	Bids              []bidResponse `json:"bids"`
	StartTime         string        `json:"start_time"`
	EndTime           string        `json:"end_time"`
}

// auctionListResponse is the JSON response for GET /auctions.
type auctionListResponse struct {
	Auctions []auctionResponse `json:"auctions"`
}

// Create handles POST /auctions.
func (h *AuctionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAuctionRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	a, err := h.auctionSvc.CreateAuction(r.Context(), service.CreateAuctionRequest{
		UserID:      callerFrom(r).ID,
		TerritoryID: req.TerritoryID,
		StartingBid: req.StartingBid,
		Duration:    req.Duration,
		Type:        req.Type,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildAuctionResponse(a))
}

// List handles GET /auctions.
func (h *AuctionHandler) List(w http.ResponseWriter, r *http.Request) {
	auctions := h.auctionSvc.ListAuctions()
	resp := auctionListResponse{Auctions: make([]auctionResponse, len(auctions))}
	for i, a := range auctions {
		resp.Auctions[i] = buildAuctionResponse(a)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Get handles GET /auctions/{auction_id}.
func (h *AuctionHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.auctionSvc.GetAuction(chi.URLParam(r, "auction_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildAuctionResponse(a))
}

// PlaceBid handles POST /auctions/{auction_id}/bids.
func (h *AuctionHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	var req placeBidRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	c := callerFrom(r)
	a, err := h.auctionSvc.PlaceBid(r.Context(), service.PlaceBidRequest{
		AuctionID: chi.URLParam(r, "auction_id"),
		UserID:    c.ID,
		UserName:  c.Name,
		Amount:    req.Amount,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildAuctionResponse(a))
}

// End handles POST /auctions/{auction_id}/end.
func (h *AuctionHandler) End(w http.ResponseWriter, r *http.Request) {
	if err := h.auctionSvc.EndAuction(r.Context(), callerFrom(r).ID, chi.URLParam(r, "auction_id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func buildAuctionResponse(a *domain.Auction) auctionResponse {
	bids := make([]bidResponse, len(a.Bids))
	for i, b := range a.Bids {
		bonuses := make([]bonusResponse, len(b.Bonuses))
		for j, bonus := range b.Bonuses {
			bonuses[j] = bonusResponse{Kind: bonus.Kind, Rate: bonus.Rate, Count: bonus.Count}
		}
		bids[i] = bidResponse{
			UserID:       b.UserID,
			UserName:     b.UserName,
			Amount:       b.Amount,
			BuffedAmount: b.BuffedAmount,
			Bonuses:      bonuses,
			PlacedAt:     b.PlacedAt.UTC().Format(timeFormat),
		}
	}

	return auctionResponse{
		AuctionID:         a.ID,
		TerritoryID:       a.TerritoryID,
		Type:              string(a.Type),
		Status:            string(a.Status),
		StartingBid:       a.StartingBid,
		CurrentBid:        a.CurrentBid,
		MinimumBid:        a.MinimumBid(),
		HighestBidderID:   optional(a.HighestBidderID),
		HighestBidderName: optional(a.HighestBidderName),
		PreviousOwnerID:   optional(a.PreviousOwnerID),
		ProtectionAware:   a.ProtectionAware,
		Bids:              bids,
		StartTime:         a.StartTime.UTC().Format(timeFormat),
		EndTime:           a.EndTime.UTC().Format(timeFormat),
	}
}

// optional returns nil for an empty string so it encodes as JSON null.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
