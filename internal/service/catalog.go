package service

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb/geojson"
	"gopkg.in/yaml.v3"
)

// MaxResults caps the number of rows the search box shows.
const MaxResults = 8

// MinQueryLength is the shortest trimmed query that activates search.
const MinQueryLength = 2

// ErrUnknownPOI is returned when a POI ID is not in the catalog.
var ErrUnknownPOI = errors.New("unknown point of interest")

//go:embed pois.yaml
var defaultPOIs []byte

// SearchResult is the outcome of one search query.
//
// Active is false when the query is too short and the result list should be
// hidden. An active result with no items renders as "No results found".
type SearchResult struct {
	Active bool              `json:"active" doc:"Whether the result list is shown"`
	Items  []PointOfInterest `json:"items" doc:"Matches in catalog order, at most 8"`
}

// Empty reports whether this is the "no results found" state.
func (r SearchResult) Empty() bool {
	return r.Active && len(r.Items) == 0
}

// Catalog is the immutable table of points of interest.
type Catalog struct {
	pois []PointOfInterest
	byID map[string]int
}

// NewCatalog builds a catalog from records in declaration order.
func NewCatalog(pois []PointOfInterest) (*Catalog, error) {
	c := &Catalog{
		pois: make([]PointOfInterest, 0, len(pois)),
		byID: make(map[string]int, len(pois)),
	}
	for _, p := range pois {
		if p.ID == "" {
			p.ID = generateID(p.Name)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate point of interest %q", p.ID)
		}
		c.byID[p.ID] = len(c.pois)
		c.pois = append(c.pois, p)
	}
	return c, nil
}

// LoadCatalog parses a YAML list of points of interest.
func LoadCatalog(data []byte) (*Catalog, error) {
	var pois []PointOfInterest
	if err := yaml.Unmarshal(data, &pois); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return NewCatalog(pois)
}

// DefaultCatalog returns the built-in Pakistan catalog.
func DefaultCatalog() *Catalog {
	c, err := LoadCatalog(defaultPOIs)
	if err != nil {
		panic(err)
	}
	return c
}

// All returns every POI in declaration order.
func (c *Catalog) All() []PointOfInterest {
	out := make([]PointOfInterest, len(c.pois))
	copy(out, c.pois)
	return out
}

// Len returns the number of POIs.
func (c *Catalog) Len() int {
	return len(c.pois)
}

// Get returns a POI by ID.
func (c *Catalog) Get(id string) (PointOfInterest, bool) {
	i, ok := c.byID[id]
	if !ok {
		return PointOfInterest{}, false
	}
	return c.pois[i], true
}

// Search runs a case-insensitive substring match over name, type, category
// and search terms. Matches keep catalog order and are capped at MaxResults.
func (c *Catalog) Search(query string) SearchResult {
	q := strings.TrimSpace(query)
	if len([]rune(q)) < MinQueryLength {
		return SearchResult{}
	}
	q = strings.ToLower(q)

	items := []PointOfInterest{}
	for _, p := range c.pois {
		if !matches(p, q) {
			continue
		}
		items = append(items, p)
		if len(items) == MaxResults {
			break
		}
	}
	return SearchResult{Active: true, Items: items}
}

func matches(p PointOfInterest, q string) bool {
	if strings.Contains(strings.ToLower(p.Name), q) ||
		strings.Contains(strings.ToLower(p.Type), q) ||
		strings.Contains(strings.ToLower(p.Category), q) {
		return true
	}
	for _, term := range p.SearchTerms {
		if strings.Contains(strings.ToLower(term), q) {
			return true
		}
	}
	return false
}

// GeoJSON returns the catalog as a point FeatureCollection.
func (c *Catalog) GeoJSON() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range c.pois {
		f := geojson.NewFeature(p.Point())
		f.ID = p.ID
		f.Properties["name"] = p.Name
		f.Properties["type"] = p.Type
		f.Properties["category"] = p.Category
		fc.Append(f)
	}
	return fc
}

// generateID creates a URL-safe ID from a name.
func generateID(name string) string {
	id := strings.ToLower(name)
	id = strings.ReplaceAll(id, " ", "_")
	var result strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// Nearest returns the POI closest to a position and its distance in meters.
func (c *Catalog) Nearest(pos LatLng) (PointOfInterest, float64, bool) {
	best, bestDist := -1, 0.0
	for i, p := range c.pois {
		d := pos.DistanceTo(LatLng{Lat: p.Lat, Lng: p.Lng})
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return PointOfInterest{}, 0, false
	}
	return c.pois[best], bestDist, true
}
