// Package service contains the map, search and UI state logic for pakmap.
package service

import (
	"github.com/paulmach/orb"
)

// PointOfInterest is a named, searchable location on the map.
// The catalog is loaded once at startup and never mutated.
type PointOfInterest struct {
	ID          string   `json:"id" yaml:"-" doc:"Identifier derived from the name" example:"faisal_mosque_islamabad"`
	Name        string   `json:"name" yaml:"name" doc:"Display name" example:"Faisal Mosque Islamabad"`
	Type        string   `json:"type" yaml:"type" doc:"Place type" example:"Mosque"`
	Category    string   `json:"category" yaml:"category" doc:"Place category" example:"Religious"`
	Lat         float64  `json:"lat" yaml:"lat" doc:"Latitude (WGS84)" example:"33.7294"`
	Lng         float64  `json:"lng" yaml:"lng" doc:"Longitude (WGS84)" example:"73.0381"`
	SearchTerms []string `json:"searchTerms" yaml:"searchTerms" doc:"Extra lowercase terms matched by search"`
}

// Point returns the POI position as an orb point (X=lng, Y=lat).
func (p PointOfInterest) Point() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat" doc:"Latitude" example:"30.3753"`
	Lng float64 `json:"lng" doc:"Longitude" example:"69.3451"`
}

// ViewState is the map viewport.
type ViewState struct {
	Center LatLng `json:"center" doc:"Map center"`
	Zoom   int    `json:"zoom" doc:"Integer zoom level" example:"6"`
}

// OverlayLayer is one WMS overlay served from the shared GeoServer endpoint.
type OverlayLayer struct {
	ID          string `json:"id" doc:"Layer identifier" example:"roads"`
	Label       string `json:"label" doc:"Display label" example:"Roads"`
	WMSLayer    string `json:"wmsLayer" doc:"WMS layer name" example:"pakistan_map:gis_osm_roads_free_1"`
	Format      string `json:"format" doc:"Image format" example:"image/png"`
	Transparent bool   `json:"transparent" doc:"Request transparent tiles" example:"true"`
	Version     string `json:"version" doc:"WMS protocol version" example:"1.1.0"`
	SRS         string `json:"srs" doc:"Spatial reference system" example:"EPSG:3857"`
	Color       string `json:"color" doc:"Legend color (CSS)" example:"#f59e0b"`
}

// LegendItem defines a legend entry.
type LegendItem struct {
	Label string `json:"label" doc:"Legend label"`
	Color string `json:"color" doc:"Legend color (CSS)"`
}

// MarkerKind distinguishes why the transient marker was placed.
type MarkerKind string

const (
	MarkerSearch   MarkerKind = "search"
	MarkerLocation MarkerKind = "location"
)

// Marker is the single transient marker shown on the map.
type Marker struct {
	ID       string     `json:"id"`
	Kind     MarkerKind `json:"kind"`
	Position LatLng     `json:"position"`
}

// Snapshot is an immutable copy of one session's UI state.
type Snapshot struct {
	Session         string          `json:"session"`
	Theme           string          `json:"theme"`
	PanelCollapsed  bool            `json:"panelCollapsed"`
	LegendCollapsed bool            `json:"legendCollapsed"`
	View            ViewState       `json:"view"`
	Layers          map[string]bool `json:"layers"`
	Marker          *Marker         `json:"marker"`
	Query           string          `json:"query"`
	Results         SearchResult    `json:"results"`
}
