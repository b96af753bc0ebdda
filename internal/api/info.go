package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type InfoHandler struct {
	dataDir string
	store   string
	locator string
	pois    int
	layers  int
}

func NewInfoHandler(dataDir, store, locator string, svc *Services) *InfoHandler {
	return &InfoHandler{
		dataDir: dataDir,
		store:   store,
		locator: locator,
		pois:    svc.Catalog.Len(),
		layers:  len(svc.Layers.List()),
	}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	DataDir  string   `json:"data_dir" doc:"Data directory path"`
	Store    string   `json:"store" doc:"Preference store backend" enum:"file,duckdb,memory"`
	Locator  string   `json:"locator" doc:"Geolocation mode" enum:"browser,ipapi,none"`
	POIs     int      `json:"pois" doc:"Number of searchable points of interest"`
	Layers   int      `json:"layers" doc:"Number of WMS overlays"`
	Features []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "plat-pakmap",
		Version:  "0.1.0",
		DataDir:  h.dataDir,
		Store:    h.store,
		Locator:  h.locator,
		POIs:     h.pois,
		Layers:   h.layers,
		Features: []string{"search", "wms-proxy", "geolocation", "geojson", "datastar"},
	}}, nil
}
