package service

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/project"
)

// ErrUnknownLayer is returned for an overlay ID outside the catalog.
var ErrUnknownLayer = errors.New("unknown layer")

// TileSize is the pixel size of a requested WMS tile.
const TileSize = 256

// defaultOverlays are the GeoServer layers drawn over the base map, in panel order.
var defaultOverlays = []OverlayLayer{
	{ID: "roads", Label: "Roads", WMSLayer: "pakistan_map:gis_osm_roads_free_1", Color: "#f59e0b"},
	{ID: "railways", Label: "Railways", WMSLayer: "pakistan_map:gis_osm_railways_free_1", Color: "#6b7280"},
	{ID: "landuse", Label: "Land Use", WMSLayer: "pakistan_map:gis_osm_landuse_a_free_1", Color: "#22c55e"},
	{ID: "buildings", Label: "Buildings", WMSLayer: "pakistan_map:gis_osm_buildings_a_free_1", Color: "#ef4444"},
	{ID: "transport", Label: "Transport", WMSLayer: "pakistan_map:gis_osm_transport_a_free_1", Color: "#3b82f6"},
}

// LayerService holds the base map and the WMS overlay catalog.
type LayerService struct {
	wmsURL      string
	baseTileURL string
	overlays    []OverlayLayer
}

// NewLayerService creates a layer service for a WMS endpoint and base tile template.
func NewLayerService(wmsURL, baseTileURL string) *LayerService {
	overlays := make([]OverlayLayer, len(defaultOverlays))
	for i, o := range defaultOverlays {
		o.Format = "image/png"
		o.Transparent = true
		o.Version = "1.1.0"
		o.SRS = "EPSG:3857"
		overlays[i] = o
	}
	return &LayerService{
		wmsURL:      wmsURL,
		baseTileURL: baseTileURL,
		overlays:    overlays,
	}
}

// WMSURL returns the shared WMS endpoint.
func (s *LayerService) WMSURL() string {
	return s.wmsURL
}

// BaseTileURL returns the {s}/{z}/{x}/{y} template of the base map.
func (s *LayerService) BaseTileURL() string {
	return s.baseTileURL
}

// List returns the overlays in panel order.
func (s *LayerService) List() []OverlayLayer {
	out := make([]OverlayLayer, len(s.overlays))
	copy(out, s.overlays)
	return out
}

// Get returns an overlay by ID.
func (s *LayerService) Get(id string) (OverlayLayer, bool) {
	for _, o := range s.overlays {
		if o.ID == id {
			return o, true
		}
	}
	return OverlayLayer{}, false
}

// IDs returns overlay IDs in panel order.
func (s *LayerService) IDs() []string {
	ids := make([]string, len(s.overlays))
	for i, o := range s.overlays {
		ids[i] = o.ID
	}
	return ids
}

// Legend returns one legend entry per overlay.
func (s *LayerService) Legend() []LegendItem {
	items := make([]LegendItem, len(s.overlays))
	for i, o := range s.overlays {
		items[i] = LegendItem{Label: o.Label, Color: o.Color}
	}
	return items
}

// DefaultVisibility returns a visibility map with every overlay on.
func (s *LayerService) DefaultVisibility() map[string]bool {
	vis := make(map[string]bool, len(s.overlays))
	for _, o := range s.overlays {
		vis[o.ID] = true
	}
	return vis
}

// GetMapURL builds the WMS GetMap request covering one XYZ tile.
func (s *LayerService) GetMapURL(id string, tile maptile.Tile) (string, error) {
	layer, ok := s.Get(id)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownLayer, id)
	}
	if !validTile(tile) {
		return "", fmt.Errorf("invalid tile %d/%d/%d", tile.Z, tile.X, tile.Y)
	}

	u, err := url.Parse(s.wmsURL)
	if err != nil {
		return "", fmt.Errorf("parse wms url: %w", err)
	}

	bound := project.Bound(tile.Bound(), project.WGS84.ToMercator)
	bbox := fmt.Sprintf("%s,%s,%s,%s",
		formatCoord(bound.Min[0]), formatCoord(bound.Min[1]),
		formatCoord(bound.Max[0]), formatCoord(bound.Max[1]))

	q := u.Query()
	q.Set("SERVICE", "WMS")
	q.Set("REQUEST", "GetMap")
	q.Set("VERSION", layer.Version)
	q.Set("LAYERS", layer.WMSLayer)
	q.Set("STYLES", "")
	q.Set("FORMAT", layer.Format)
	q.Set("TRANSPARENT", strconv.FormatBool(layer.Transparent))
	q.Set("SRS", layer.SRS)
	q.Set("BBOX", bbox)
	q.Set("WIDTH", strconv.Itoa(TileSize))
	q.Set("HEIGHT", strconv.Itoa(TileSize))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func validTile(t maptile.Tile) bool {
	if t.Z > 30 {
		return false
	}
	n := uint32(1) << uint32(t.Z)
	return t.X < n && t.Y < n
}
