package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/efreitasn/sovereignty/internal/domain"
	"github.com/efreitasn/sovereignty/internal/engine"
)

var (
	territoryIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	auctionIDPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]{1,96}$`)
)

// maxAuctionDuration bounds caller-supplied durations.
const maxAuctionDuration = 30 * 24 * time.Hour

// CreateAuctionRequest represents the input for opening an auction.
type CreateAuctionRequest struct {
	UserID      string
	TerritoryID string
	StartingBid *int64
	Duration    string // Go duration syntax, e.g. "90m"; empty uses the end-time policy
	Type        string
}

// PlaceBidRequest represents the input for bidding on an auction.
type PlaceBidRequest struct {
	AuctionID string
	UserID    string
	UserName  string
	Amount    int64
}

// AuctionService validates caller input and forwards it to the engine.
type AuctionService struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewAuctionService creates a new AuctionService.
func NewAuctionService(eng *engine.Engine, logger *slog.Logger) *AuctionService {
	return &AuctionService{engine: eng, logger: logger}
}

// CreateAuction validates the request and opens an auction.
func (s *AuctionService) CreateAuction(ctx context.Context, req CreateAuctionRequest) (*domain.Auction, error) {
	if req.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	if !territoryIDPattern.MatchString(req.TerritoryID) {
		return nil, &domain.ValidationError{Message: "territory_id must be 1-64 alphanumeric, dash or underscore characters"}
	}
	if req.StartingBid != nil && *req.StartingBid <= 0 {
		return nil, &domain.ValidationError{Message: "starting_bid must be a positive integer"}
	}
	if req.StartingBid != nil && *req.StartingBid > domain.MaxAmount {
		return nil, &domain.ValidationError{Message: fmt.Sprintf("starting_bid must be at most %d", domain.MaxAmount)}
	}

	var opts engine.CreateOptions
	opts.StartingBid = req.StartingBid

	switch domain.AuctionType(req.Type) {
	case "":
		opts.Type = domain.AuctionTypeStandard
	case domain.AuctionTypeStandard, domain.AuctionTypeDutch, domain.AuctionTypeSealed:
		opts.Type = domain.AuctionType(req.Type)
	default:
		return nil, &domain.ValidationError{Message: "type must be one of: standard, dutch, sealed"}
	}

	if req.Duration != "" {
		d, err := time.ParseDuration(req.Duration)
		if err != nil {
			return nil, &domain.ValidationError{Message: "duration must be a valid duration such as 90m or 24h"}
		}
		if d <= 0 {
			return nil, &domain.ValidationError{Message: "Duration must be positive"}
		}
		if d > maxAuctionDuration {
			return nil, &domain.ValidationError{Message: "duration must be at most 720h"}
		}
		opts.Duration = &d
	}

	a, err := s.engine.CreateAuction(ctx, req.TerritoryID, opts)
	if err != nil {
		return nil, err
	}

	s.logger.Info("auction opened",
		slog.String("auction_id", a.ID),
		slog.String("territory_id", a.TerritoryID),
		slog.String("opened_by", req.UserID),
	)
	return a, nil
}

// PlaceBid validates the request and records the bid. A missing display
// name falls back to the user id.
func (s *AuctionService) PlaceBid(ctx context.Context, req PlaceBidRequest) (*domain.Auction, error) {
	if req.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	if !auctionIDPattern.MatchString(req.AuctionID) {
		return nil, domain.ErrAuctionNotFound
	}
	if req.Amount <= 0 {
		return nil, &domain.ValidationError{Message: "amount must be a positive integer"}
	}
	if req.Amount > domain.MaxAmount {
		return nil, &domain.ValidationError{Message: fmt.Sprintf("amount must be at most %d", domain.MaxAmount)}
	}
	name := req.UserName
	if name == "" {
		name = req.UserID
	}
	return s.engine.PlaceBid(ctx, req.AuctionID, req.UserID, name, req.Amount)
}

// EndAuction resolves an auction ahead of its end time.
func (s *AuctionService) EndAuction(ctx context.Context, userID, auctionID string) error {
	if userID == "" {
		return domain.ErrUnauthorized
	}
	if !auctionIDPattern.MatchString(auctionID) {
		return domain.ErrAuctionNotFound
	}
	if err := s.engine.EndAuction(ctx, auctionID); err != nil {
		return err
	}
	s.logger.Info("auction ended by request",
		slog.String("auction_id", auctionID),
		slog.String("ended_by", userID),
	)
	return nil
}

// GetAuction returns an active auction by id.
func (s *AuctionService) GetAuction(auctionID string) (*domain.Auction, error) {
	return s.engine.GetActiveAuction(auctionID)
}

// ListAuctions returns every active auction, soonest-ending first.
func (s *AuctionService) ListAuctions() []*domain.Auction {
	return s.engine.ListActiveAuctions()
}
