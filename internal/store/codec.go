package store

import (
	"fmt"

	"github.com/efreitasn/sovereignty/internal/domain"
)

// EncodeAuction converts an auction to its stored form.
func EncodeAuction(a *domain.Auction) (Document, error) {
	doc, err := encode(a)
	if err != nil {
		return nil, fmt.Errorf("encode auction %s: %w", a.ID, err)
	}
	return doc, nil
}

// DecodeAuction parses a stored auction. Missing or malformed fields decode
// to zero values; the reconciliation pass repairs what it can.
func DecodeAuction(doc Document) (*domain.Auction, error) {
	var a domain.Auction
	if err := decode(doc, &a); err != nil {
		return nil, fmt.Errorf("decode auction: %w", err)
	}
	if a.ID == "" || a.TerritoryID == "" {
		return nil, fmt.Errorf("decode auction: missing id or territoryId")
	}
	if a.Bids == nil {
		a.Bids = []domain.Bid{}
	}
	return &a, nil
}

// EncodeTerritory converts a territory to its stored form.
func EncodeTerritory(t *domain.Territory) (Document, error) {
	doc, err := encode(t)
	if err != nil {
		return nil, fmt.Errorf("encode territory %s: %w", t.ID, err)
	}
	return doc, nil
}

// DecodeTerritory parses a stored territory. An unknown sovereignty value is
// read as unconquered.
func DecodeTerritory(doc Document) (*domain.Territory, error) {
	var t domain.Territory
	if err := decode(doc, &t); err != nil {
		return nil, fmt.Errorf("decode territory: %w", err)
	}
	if t.ID == "" {
		return nil, fmt.Errorf("decode territory: missing id")
	}
	if !t.Sovereignty.Valid() {
		t.Sovereignty = domain.SovereigntyUnconquered
	}
	return &t, nil
}
