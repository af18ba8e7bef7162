package service

import (
	"strings"

	"github.com/efreitasn/sovereignty/internal/domain"
	"github.com/efreitasn/sovereignty/internal/engine"
)

// ListTerritoriesRequest filters and paginates the territory listing.
// Empty filters match everything.
type ListTerritoriesRequest struct {
	Sovereignty string
	Country     string
	RulerID     string
	Page        int
	Limit       int
}

// TerritoryService exposes read access to territories and their pricing.
type TerritoryService struct {
	engine *engine.Engine
	pricer engine.Pricer
}

// NewTerritoryService creates a new TerritoryService.
func NewTerritoryService(eng *engine.Engine, pricer engine.Pricer) *TerritoryService {
	return &TerritoryService{engine: eng, pricer: pricer}
}

// TerritoryView is a territory snapshot with its current prices.
type TerritoryView struct {
	*domain.Territory
	InstantPrice     int64
	StartingBidFloor int64
}

// List returns territories matching the request, ordered by id, and the
// total number of matches before pagination.
func (s *TerritoryService) List(req ListTerritoriesRequest) ([]TerritoryView, int, error) {
	if req.Sovereignty != "" && !domain.Sovereignty(req.Sovereignty).Valid() {
		return nil, 0, &domain.ValidationError{
			Message: "sovereignty must be one of: unconquered, contested, ruled, protected",
		}
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.Limit == 0 {
		req.Limit = 20
	}
	if req.Page < 1 {
		return nil, 0, &domain.ValidationError{Message: "page must be at least 1"}
	}
	if req.Limit < 1 || req.Limit > 100 {
		return nil, 0, &domain.ValidationError{Message: "limit must be between 1 and 100"}
	}

	var matched []*domain.Territory
	for _, t := range s.engine.Territories() {
		if req.Sovereignty != "" && string(t.Sovereignty) != req.Sovereignty {
			continue
		}
		if req.Country != "" && !strings.EqualFold(t.Country, req.Country) {
			continue
		}
		if req.RulerID != "" && t.RulerID != req.RulerID {
			continue
		}
		matched = append(matched, t)
	}

	total := len(matched)
	start := (req.Page - 1) * req.Limit
	if start >= total {
		return []TerritoryView{}, total, nil
	}
	end := min(start+req.Limit, total)

	views := make([]TerritoryView, 0, end-start)
	for _, t := range matched[start:end] {
		views = append(views, s.view(t))
	}
	return views, total, nil
}

// Get returns a territory by id.
func (s *TerritoryService) Get(territoryID string) (TerritoryView, error) {
	if !territoryIDPattern.MatchString(territoryID) {
		return TerritoryView{}, domain.ErrTerritoryNotFound
	}
	t, err := s.engine.Territory(territoryID)
	if err != nil {
		return TerritoryView{}, err
	}
	return s.view(t), nil
}

// ActiveAuction returns the territory's active auction.
func (s *TerritoryService) ActiveAuction(territoryID string) (*domain.Auction, error) {
	if !territoryIDPattern.MatchString(territoryID) {
		return nil, domain.ErrTerritoryNotFound
	}
	return s.engine.GetAuctionByTerritory(territoryID)
}

func (s *TerritoryService) view(t *domain.Territory) TerritoryView {
	return TerritoryView{
		Territory:        t,
		InstantPrice:     s.pricer.InstantPrice(t),
		StartingBidFloor: s.pricer.StartingBidFloor(t),
	}
}
