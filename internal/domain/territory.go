package domain

import "time"

// Sovereignty is the ownership status of a territory.
type Sovereignty string

const (
	SovereigntyUnconquered Sovereignty = "unconquered"
	SovereigntyContested   Sovereignty = "contested"
	SovereigntyRuled       Sovereignty = "ruled"
	SovereigntyProtected   Sovereignty = "protected"
)

// Valid reports whether s is one of the known sovereignty states.
func (s Sovereignty) Valid() bool {
	switch s {
	case SovereigntyUnconquered, SovereigntyContested, SovereigntyRuled, SovereigntyProtected:
		return true
	}
	return false
}

// Territory is a uniquely identified ownable region. Sovereignty, the ruler
// fields, CurrentAuctionID and ProtectedUntil are only mutated by the
// auction engine.
type Territory struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Country    string   `json:"country"`
	AreaKm2    float64  `json:"areaKm2"`
	Population int64    `json:"population"`
	Neighbors  []string `json:"neighbors"`

	Sovereignty      Sovereignty `json:"sovereignty"`
	RulerID          string      `json:"rulerId"`
	RulerName        string      `json:"rulerName"`
	CurrentAuctionID string      `json:"currentAuctionId"`
	ProtectedUntil   *time.Time  `json:"protectedUntil"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// Owned returns true if the territory has a ruler.
func (t *Territory) Owned() bool {
	return t.RulerID != ""
}

// UnderProtection returns true if the territory's protection window is
// still open at now.
func (t *Territory) UnderProtection(now time.Time) bool {
	return t.ProtectedUntil != nil && t.ProtectedUntil.After(now)
}

// IsNeighbor reports whether id is adjacent to the territory.
func (t *Territory) IsNeighbor(id string) bool {
	for _, n := range t.Neighbors {
		if n == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the territory.
func (t *Territory) Clone() *Territory {
	c := *t
	if t.Neighbors != nil {
		c.Neighbors = append([]string(nil), t.Neighbors...)
	}
	if t.ProtectedUntil != nil {
		p := *t.ProtectedUntil
		c.ProtectedUntil = &p
	}
	return &c
}
