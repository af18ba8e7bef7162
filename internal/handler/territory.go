package handler

import (
	"net/http"
	"strconv"

	"github.com/efreitasn/sovereignty/internal/service"
	"github.com/go-chi/chi/v5"
)

// TerritoryHandler handles HTTP requests for territory endpoints.
type TerritoryHandler struct {
	territorySvc *service.TerritoryService
}

// NewTerritoryHandler creates a new TerritoryHandler.
func NewTerritoryHandler(territorySvc *service.TerritoryService) *TerritoryHandler {
	return &TerritoryHandler{territorySvc: territorySvc}
}

// territoryResponse is the JSON representation of a territory.
type territoryResponse struct {
	TerritoryID      string   `json:"territory_id"`
	Name             string   `json:"name"`
	Country          string   `json:"country"`
	AreaKm2          float64  `json:"area_km2"`
	Population       int64    `json:"population"`
	Neighbors        []string `json:"neighbors"`
	Sovereignty      string   `json:"sovereignty"`
	RulerID          *string  `json:"ruler_id"`
	RulerName        *string  `json:"ruler_name"`
	CurrentAuctionID *string  `json:"current_auction_id"`
	ProtectedUntil   *string  `json:"protected_until"`
	InstantPrice     int64    `json:"instant_price"`
	StartingBidFloor int64    `json:"starting_bid_floor"`
}

// territoryListResponse is the JSON response for GET /territories.
type territoryListResponse struct {
	Territories []territoryResponse `json:"territories"`
	Total       int                 `json:"total"`
	Page        int                 `json:"page"`
	Limit       int                 `json:"limit"`
}

// List handles GET /territories.
func (h *TerritoryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page := 1
	if p := q.Get("page"); p != "" {
		var err error
		page, err = strconv.Atoi(p)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "page must be a valid integer")
			return
		}
	}

	limit := 20
	if l := q.Get("limit"); l != "" {
		var err error
		limit, err = strconv.Atoi(l)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be a valid integer")
			return
		}
	}

	views, total, err := h.territorySvc.List(service.ListTerritoriesRequest{
		Sovereignty: q.Get("sovereignty"),
		Country:     q.Get("country"),
		RulerID:     q.Get("ruler_id"),
		Page:        page,
		Limit:       limit,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := territoryListResponse{
		Territories: make([]territoryResponse, len(views)),
		Total:       total,
		Page:        page,
		Limit:       limit,
	}
	for i, v := range views {
		resp.Territories[i] = buildTerritoryResponse(v)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Get handles GET /territories/{territory_id}.
func (h *TerritoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	v, err := h.territorySvc.Get(chi.URLParam(r, "territory_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildTerritoryResponse(v))
}

// GetAuction handles GET /territories/{territory_id}/auction.
func (h *TerritoryHandler) GetAuction(w http.ResponseWriter, r *http.Request) {
	a, err := h.territorySvc.ActiveAuction(chi.URLParam(r, "territory_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildAuctionResponse(a))
}

func buildTerritoryResponse(v service.TerritoryView) territoryResponse {
	neighbors := v.Neighbors
	if neighbors == nil {
		neighbors = []string{}
	}

	resp := territoryResponse{
		TerritoryID:      v.ID,
		Name:             v.Name,
		Country:          v.Country,
		AreaKm2:          v.AreaKm2,
		Population:       v.Population,
		Neighbors:        neighbors,
		Sovereignty:      string(v.Sovereignty),
		RulerID:          optional(v.RulerID),
		RulerName:        optional(v.RulerName),
		CurrentAuctionID: optional(v.CurrentAuctionID),
		InstantPrice:     v.InstantPrice,
		StartingBidFloor: v.StartingBidFloor,
	}
	if v.ProtectedUntil != nil {
		s := v.ProtectedUntil.UTC().Format(timeFormat)
		resp.ProtectedUntil = &s
	}
	return resp
}
