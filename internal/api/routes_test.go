package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-pakmap/internal/humastar"
	"github.com/joeblew999/plat-pakmap/internal/service"
)

const (
	testWMSURL  = "http://geo.test/geoserver/pakistan_map/wms"
	testBaseURL = "https://{s}.tile.test/{z}/{x}/{y}.png"
)

func newTestAPI(t *testing.T) humatest.TestAPI {
	t.Helper()
	cfg := huma.DefaultConfig("test", "1.0.0")
	cfg.CreateHooks = []func(huma.Config) huma.Config{}
	cfg.Transformers = append(cfg.Transformers,
		LinkTransformer(),
		humastar.PagerTransformer(),
		humastar.ActionTransformer(),
	)
	_, api := humatest.New(t, cfg)

	svc := &Services{
		Catalog: service.DefaultCatalog(),
		Layers:  service.NewLayerService(testWMSURL, testBaseURL),
	}
	huma.AutoRegister(api, NewAPIHandler(svc))
	NewInfoHandler(t.TempDir(), "memory", "none", svc).RegisterRoutes(api)
	return api
}

func linkHeader(h http.Header) string {
	return strings.Join(h.Values("Link"), ", ")
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	resp := api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	var body HealthBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Contains(t, linkHeader(resp.Header()), `</api/v1/info>; rel="info"`)
}

func TestInfo(t *testing.T) {
	api := newTestAPI(t)

	resp := api.Get("/api/v1/info")
	require.Equal(t, http.StatusOK, resp.Code)

	var body InfoBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "plat-pakmap", body.Name)
	assert.Equal(t, 40, body.POIs)
	assert.Equal(t, 5, body.Layers)
	assert.Equal(t, "memory", body.Store)
}

func TestListPOIsPaged(t *testing.T) {
	api := newTestAPI(t)

	resp := api.Get("/api/v1/pois?offset=10&limit=10")
	require.Equal(t, http.StatusOK, resp.Code)

	var body humastar.PageBody[service.PointOfInterest]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, 40, body.Total)
	assert.Len(t, body.Data, 10)

	l := linkHeader(resp.Header())
	assert.Contains(t, l, `</api/v1/pois?offset=0&limit=10>; rel="prev"`)
	assert.Contains(t, l, `</api/v1/pois?offset=20&limit=10>; rel="next"`)
	assert.Contains(t, l, `</api/v1/pois?offset=30&limit=10>; rel="last"`)
}

func TestListPOIsRejectsLimit(t *testing.T) {
	api := newTestAPI(t)

	resp := api.Get("/api/v1/pois?limit=500")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestGetPOI(t *testing.T) {
	api := newTestAPI(t)

	resp := api.Get("/api/v1/pois/faisal_mosque_islamabad")
	require.Equal(t, http.StatusOK, resp.Code)

	var poi service.PointOfInterest
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &poi))
	assert.Equal(t, "Faisal Mosque Islamabad", poi.Name)

	l := linkHeader(resp.Header())
	assert.Contains(t, l, `</ui/select/faisal_mosque_islamabad>; rel="select"; method="POST"`)
	assert.Contains(t, l, `</api/v1/pois/faisal_mosque_islamabad>; rel="self"`)

	resp = api.Get("/api/v1/pois/atlantis")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestPOIsGeoJSON(t *testing.T) {
	api := newTestAPI(t)

	resp := api.Get("/api/v1/pois.geojson")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/geo+json", resp.Header().Get("Content-Type"))

	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Len(t, fc.Features, 40)
}

func TestSearch(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		query  string
		active bool
		count  int
	}{
		{"mosque", true, 4},
		{"m", false, 0},
		{"zz-no-match", true, 0},
		{"islamabad", true, service.MaxResults},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp := api.Get("/api/v1/search?q=" + tt.query)
			require.Equal(t, http.StatusOK, resp.Code)

			var res service.SearchResult
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &res))
			assert.Equal(t, tt.active, res.Active)
			assert.Len(t, res.Items, tt.count)
		})
	}
}

func TestNearest(t *testing.T) {
	api := newTestAPI(t)

	resp := api.Get("/api/v1/pois/nearest?lat=31.52&lng=74.36")
	require.Equal(t, http.StatusOK, resp.Code)

	var body NearestBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "lahore", body.POI.ID)
	assert.Less(t, body.Distance, 5000.0)

	resp = api.Get("/api/v1/pois/nearest?lat=120&lng=74")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestLayers(t *testing.T) {
	api := newTestAPI(t)

	resp := api.Get("/api/v1/layers")
	require.Equal(t, http.StatusOK, resp.Code)

	var body LayersBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, testWMSURL, body.WMSURL)
	require.Len(t, body.Overlays, 5)
	assert.Equal(t, "roads", body.Overlays[0].ID)
	assert.Len(t, body.Legend, 5)
}

func TestGetLayer(t *testing.T) {
	api := newTestAPI(t)

	resp := api.Get("/api/v1/layers/railways")
	require.Equal(t, http.StatusOK, resp.Code)

	var body LayerBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.True(t, strings.HasPrefix(body.SampleURL, testWMSURL+"?"))
	assert.Contains(t, body.SampleURL, "LAYERS=pakistan_map%3Agis_osm_railways_free_1")

	l := linkHeader(resp.Header())
	assert.Contains(t, l, `</ui/layers/railways>; rel="toggle"; method="POST"`)
	assert.Contains(t, l, `</tiles/wms/railways/{z}/{x}/{y}.png>; rel="tiles"`)

	resp = api.Get("/api/v1/layers/rivers")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestStatusFor(t *testing.T) {
	var se huma.StatusError
	require.ErrorAs(t, StatusFor(service.ErrUnknownPOI), &se)
	assert.Equal(t, http.StatusNotFound, se.GetStatus())

	require.ErrorAs(t, StatusFor(assert.AnError), &se)
	assert.Equal(t, http.StatusInternalServerError, se.GetStatus())
}
