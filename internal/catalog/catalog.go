// Package catalog loads territory source data and seeds it into the
// document store.
package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/efreitasn/sovereignty/internal/domain"
	"github.com/efreitasn/sovereignty/internal/store"
)

//go:embed default_territories.yaml
var defaultCatalog []byte

var (
	idRegex      = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	countryRegex = regexp.MustCompile(`^[A-Z]{2}$`)
)

// Catalog is the static territory source data.
type Catalog struct {
	CountryMultipliers map[string]float64 `yaml:"country_multipliers,omitempty"`
	Territories        []TerritorySpec    `yaml:"territories"`
}

// TerritorySpec holds a territory's static attributes.
type TerritorySpec struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	Country    string   `yaml:"country"`
	AreaKm2    float64  `yaml:"area_km2"`
	Population int64    `yaml:"population"`
	Neighbors  []string `yaml:"neighbors,omitempty"`
}

// Load reads the catalog at path, or the embedded default when path is
// empty.
func Load(path string) (Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Parse(defaultCatalog)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, err
	}
	return Parse(b)
}

// Parse decodes and validates catalog YAML.
func Parse(b []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Catalog{}, fmt.Errorf("territories.yaml: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, fmt.Errorf("territories.yaml: %w", err)
	}
	return c, nil
}

// Validate checks ids, countries, attributes and adjacency.
func (c Catalog) Validate() error {
	if len(c.Territories) == 0 {
		return errors.New("no territories")
	}
	seen := make(map[string]bool, len(c.Territories))
	for _, t := range c.Territories {
		if !idRegex.MatchString(t.ID) {
			return fmt.Errorf("invalid territory id %q", t.ID)
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate territory id %q", t.ID)
		}
		seen[t.ID] = true
		if !countryRegex.MatchString(t.Country) {
			return fmt.Errorf("territory %s: country must be an ISO 3166-1 alpha-2 code, got %q", t.ID, t.Country)
		}
		if t.AreaKm2 < 0 || t.Population < 0 {
			return fmt.Errorf("territory %s: area and population must not be negative", t.ID)
		}
	}
	for _, t := range c.Territories {
		listed := make(map[string]bool, len(t.Neighbors))
		for _, n := range t.Neighbors {
			if listed[n] {
				return fmt.Errorf("territory %s: duplicate neighbor %q", t.ID, n)
			}
			listed[n] = true
			if n == t.ID {
				return fmt.Errorf("territory %s: lists itself as a neighbor", t.ID)
			}
			if !seen[n] {
				return fmt.Errorf("territory %s: unknown neighbor %q", t.ID, n)
			}
		}
	}
	for country, m := range c.CountryMultipliers {
		if m <= 0 {
			return fmt.Errorf("country %s: multiplier must be positive", country)
		}
	}
	return nil
}

// Build returns fresh unconquered territories for every entry, ordered
// by id.
func (c Catalog) Build(now time.Time) []*domain.Territory {
	result := make([]*domain.Territory, 0, len(c.Territories))
	for _, s := range c.Territories {
		result = append(result, &domain.Territory{
			ID:          s.ID,
			Name:        s.Name,
			Country:     s.Country,
			AreaKm2:     s.AreaKm2,
			Population:  s.Population,
			Neighbors:   append([]string(nil), s.Neighbors...),
			Sovereignty: domain.SovereigntyUnconquered,
			UpdatedAt:   now,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// SeedResult counts what Seed wrote.
type SeedResult struct {
	Created int
	Updated int
}

// Seed writes catalog territories to the store. Missing territories are
// created unconquered. Existing ones only have their static attributes
// refreshed; sovereignty, ruler and auction link are never touched.
func Seed(ctx context.Context, st store.Store, c Catalog, now time.Time) (SeedResult, error) {
	var res SeedResult
	for _, t := range c.Build(now) {
		doc, err := st.Get(ctx, store.CollectionTerritories, t.ID)
		switch {
		case errors.Is(err, store.ErrDocumentNotFound):
			enc, err := store.EncodeTerritory(t)
			if err != nil {
				return res, err
			}
			if err := st.Set(ctx, store.CollectionTerritories, t.ID, enc); err != nil {
				return res, fmt.Errorf("seed territory %s: %w", t.ID, err)
			}
			res.Created++
		case err != nil:
			return res, fmt.Errorf("read territory %s: %w", t.ID, err)
		default:
			existing, err := store.DecodeTerritory(doc)
			if err != nil || sameStatics(existing, t) {
				continue
			}
			if err := st.Update(ctx, store.CollectionTerritories, t.ID, staticPatch(t)); err != nil {
				return res, fmt.Errorf("refresh territory %s: %w", t.ID, err)
			}
			res.Updated++
		}
	}
	return res, nil
}

func sameStatics(a, b *domain.Territory) bool {
	if len(a.Neighbors) == 0 && len(b.Neighbors) == 0 {
		a, b = a.Clone(), b.Clone()
		a.Neighbors, b.Neighbors = nil, nil
	}
	return a.Name == b.Name &&
		a.Country == b.Country &&
		a.AreaKm2 == b.AreaKm2 &&
		a.Population == b.Population &&
		reflect.DeepEqual(a.Neighbors, b.Neighbors)
}

func staticPatch(t *domain.Territory) store.Document {
	neighbors := t.Neighbors
	if neighbors == nil {
		neighbors = []string{}
	}
	return store.Document{
		"name":       t.Name,
		"country":    t.Country,
		"areaKm2":    t.AreaKm2,
		"population": t.Population,
		"neighbors":  neighbors,
	}
}
