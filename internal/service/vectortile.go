package service

import (
	"fmt"

	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
)

// VectorTileLayer is the MVT layer name for the POI tiles.
const VectorTileLayer = "pois"

// VectorTile encodes the POIs inside tile as a Mapbox Vector Tile.
// It returns nil when the tile holds no POI.
func (c *Catalog) VectorTile(tile maptile.Tile) ([]byte, error) {
	if !validTile(tile) {
		return nil, fmt.Errorf("invalid tile %d/%d/%d", tile.Z, tile.X, tile.Y)
	}

	bound := tile.Bound()
	fc := geojson.NewFeatureCollection()
	for _, p := range c.pois {
		if !bound.Contains(p.Point()) {
			continue
		}
		// MVT projection rewrites geometry in place, so each tile gets fresh features.
		f := geojson.NewFeature(p.Point())
		f.ID = p.ID
		f.Properties["id"] = p.ID
		f.Properties["name"] = p.Name
		f.Properties["type"] = p.Type
		f.Properties["category"] = p.Category
		fc.Append(f)
	}
	if len(fc.Features) == 0 {
		return nil, nil
	}

	layer := mvt.NewLayer(VectorTileLayer, fc)
	layer.ProjectToTile(tile)

	data, err := mvt.Marshal(mvt.Layers{layer})
	if err != nil {
		return nil, fmt.Errorf("encode vector tile: %w", err)
	}
	return data, nil
}
