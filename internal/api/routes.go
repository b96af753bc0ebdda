// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"github.com/joeblew999/plat-pakmap/internal/humastar"
	"github.com/joeblew999/plat-pakmap/internal/metrics"
	"github.com/joeblew999/plat-pakmap/internal/service"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Catalog *service.Catalog
	Layers  *service.LayerService
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Resource ID" example:"roads"`
}

type PageInput struct {
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Items to skip"`
	Limit  int `query:"limit" minimum:"1" maximum:"100" default:"20" doc:"Page size"`
}

type SearchInput struct {
	Q string `query:"q" maxLength:"200" doc:"Search text; fewer than two characters returns an inactive result" example:"mosque"`
}

type NearestInput struct {
	Lat float64 `query:"lat" minimum:"-90" maximum:"90" required:"true" doc:"Latitude" example:"33.6844"`
	Lng float64 `query:"lng" minimum:"-180" maximum:"180" required:"true" doc:"Longitude" example:"73.0479"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// POIBody is a point of interest with its UI actions.
type POIBody struct {
	service.PointOfInterest
}

var poiActions = []humastar.ActionDef{
	{Rel: "select", Pattern: "/ui/select/%s", Method: "POST", Title: "Show on map"},
}

func (b POIBody) Actions() []humastar.Action {
	return humastar.ActionsFor(b.ID, poiActions)
}

type POIOutput struct {
	Body POIBody
}

type POIPageOutput struct {
	Body humastar.PageBody[service.PointOfInterest]
}

type GeoJSONOutput struct {
	ContentType string `header:"Content-Type"`
	Body        *geojson.FeatureCollection
}

type SearchOutput struct {
	Body service.SearchResult
}

type NearestBody struct {
	POI      service.PointOfInterest `json:"poi" doc:"Closest point of interest"`
	Distance float64                 `json:"distance" doc:"Great-circle distance in meters"`
}

type LayerBody struct {
	service.OverlayLayer
	SampleURL string `json:"sampleUrl" doc:"GetMap request for the zoom 6 tile covering Pakistan"`
}

var layerActions = []humastar.ActionDef{
	{Rel: "toggle", Pattern: "/ui/layers/%s", Method: "POST", Title: "Toggle overlay"},
	{Rel: "tiles", Pattern: "/tiles/wms/%s/{z}/{x}/{y}.png", Method: "GET", Title: "Proxied XYZ tiles"},
}

func (b LayerBody) Actions() []humastar.Action {
	return humastar.ActionsFor(b.ID, layerActions)
}

type LayersBody struct {
	BaseTileURL string                 `json:"baseTileUrl" doc:"Base raster tile template"`
	WMSURL      string                 `json:"wmsUrl" doc:"Shared WMS endpoint"`
	Overlays    []service.OverlayLayer `json:"overlays" doc:"Toggleable overlays in display order"`
	Legend      []service.LegendItem   `json:"legend" doc:"Legend entries"`
}

// SampleTile is the zoom 6 tile containing the initial map center.
var SampleTile = maptile.At(service.InitialView.Center.Point(), 6)

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterPOIs registers point of interest routes.
func (h *APIHandler) RegisterPOIs(api huma.API) {
	huma.Get(api, "/api/v1/pois", h.ListPOIs, huma.OperationTags("pois"))
	huma.Get(api, "/api/v1/pois.geojson", h.GetPOIsGeoJSON, huma.OperationTags("pois"))
	huma.Get(api, "/api/v1/pois/nearest", h.GetNearestPOI, huma.OperationTags("pois"))
	huma.Get(api, "/api/v1/pois/{id}", h.GetPOI, huma.OperationTags("pois"))
	huma.Get(api, "/api/v1/search", h.Search, huma.OperationTags("pois"))
}

// RegisterLayers registers overlay catalog routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{id}", h.GetLayer, huma.OperationTags("layers"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func (h *APIHandler) ListPOIs(ctx context.Context, input *PageInput) (*POIPageOutput, error) {
	return &POIPageOutput{Body: humastar.Page(h.svc.Catalog.All(), input.Offset, input.Limit)}, nil
}

func (h *APIHandler) GetPOI(ctx context.Context, input *IDInput) (*POIOutput, error) {
	poi, ok := h.svc.Catalog.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("point of interest not found")
	}
	return &POIOutput{Body: POIBody{PointOfInterest: poi}}, nil
}

func (h *APIHandler) GetPOIsGeoJSON(ctx context.Context, input *struct{}) (*GeoJSONOutput, error) {
	return &GeoJSONOutput{ContentType: "application/geo+json", Body: h.svc.Catalog.GeoJSON()}, nil
}

func (h *APIHandler) GetNearestPOI(ctx context.Context, input *NearestInput) (*struct{ Body NearestBody }, error) {
	poi, dist, ok := h.svc.Catalog.Nearest(service.LatLng{Lat: input.Lat, Lng: input.Lng})
	if !ok {
		return nil, huma.Error404NotFound("catalog is empty")
	}
	return &struct{ Body NearestBody }{Body: NearestBody{POI: poi, Distance: dist}}, nil
}

func (h *APIHandler) Search(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	res := h.svc.Catalog.Search(input.Q)
	metrics.Searches.WithLabelValues(SearchOutcome(res)).Inc()
	return &SearchOutput{Body: res}, nil
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*struct{ Body LayersBody }, error) {
	return &struct{ Body LayersBody }{Body: LayersBody{
		BaseTileURL: h.svc.Layers.BaseTileURL(),
		WMSURL:      h.svc.Layers.WMSURL(),
		Overlays:    h.svc.Layers.List(),
		Legend:      h.svc.Layers.Legend(),
	}}, nil
}

func (h *APIHandler) GetLayer(ctx context.Context, input *IDInput) (*struct{ Body LayerBody }, error) {
	layer, ok := h.svc.Layers.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("layer not found")
	}
	sample, err := h.svc.Layers.GetMapURL(layer.ID, SampleTile)
	if err != nil {
		return nil, huma.Error500InternalServerError(fmt.Sprintf("build GetMap URL for %s", layer.ID), err)
	}
	return &struct{ Body LayerBody }{Body: LayerBody{OverlayLayer: layer, SampleURL: sample}}, nil
}

// SearchOutcome labels a search result for metrics.
func SearchOutcome(res service.SearchResult) string {
	switch {
	case !res.Active:
		return "inactive"
	case res.Empty():
		return "empty"
	default:
		return "results"
	}
}

// StatusFor maps service errors to Huma errors.
func StatusFor(err error) error {
	switch {
	case errors.Is(err, service.ErrUnknownPOI), errors.Is(err, service.ErrUnknownLayer):
		return huma.Error404NotFound(err.Error())
	default:
		return huma.Error500InternalServerError("internal error", err)
	}
}
