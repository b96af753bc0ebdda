// Package ui contains the Datastar SSE handlers that drive the map page.
//
// Every action endpoint answers with a state sync: signals for the Datastar
// bindings, fragments for the result list and layer panel, and a call to
// pakmap.sync so the Leaflet map follows the session's view, layers and marker.
package ui

import (
	"context"
	"log/slog"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-pakmap/internal/humastar"
	"github.com/joeblew999/plat-pakmap/internal/service"
	"github.com/joeblew999/plat-pakmap/internal/templates"
)

// CookieName carries the session ID.
const CookieName = "pakmap_session"

// SessionInput identifies the calling session.
type SessionInput struct {
	Session string `cookie:"pakmap_session" doc:"Session ID set by the page"`
}

// SignalsInput is a session request carrying Datastar signals.
type SignalsInput struct {
	Session string `cookie:"pakmap_session" doc:"Session ID set by the page"`
	humastar.SignalsInput
}

// Handler serves the page and the /ui endpoints.
type Handler struct {
	humastar.Handler
	sessions *service.SessionService
	layers   *service.LayerService
	bus      *service.EventBus
	logger   *slog.Logger

	// Tick is the clock signal interval on the event stream.
	Tick time.Duration
	// Now reads the clock; defaults to time.Now.
	Now func() time.Time
}

// NewHandler creates the UI handler.
func NewHandler(sessions *service.SessionService, layers *service.LayerService, bus *service.EventBus, renderer *templates.Renderer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Handler:  humastar.Handler{Renderer: renderer},
		sessions: sessions,
		layers:   layers,
		bus:      bus,
		logger:   logger,
		Tick:     time.Second,
		Now:      time.Now,
	}
}

func (h *Handler) RegisterRoutes(api huma.API) {
	tags := huma.OperationTags("ui")
	huma.Get(api, "/ui/stream", h.Events, tags)
	huma.Post(api, "/ui/search", h.Search, tags)
	huma.Post(api, "/ui/search/clear", h.ClearSearch, tags)
	huma.Post(api, "/ui/search/hide", h.HideResults, tags)
	huma.Post(api, "/ui/select/{id}", h.Select, tags)
	huma.Post(api, "/ui/layers/{id}", h.ToggleLayer, tags)
	huma.Post(api, "/ui/theme", h.ToggleTheme, tags)
	huma.Post(api, "/ui/panel", h.TogglePanel, tags)
	huma.Post(api, "/ui/legend", h.ToggleLegend, tags)
	huma.Post(api, "/ui/reset", h.ResetView, tags)
	huma.Post(api, "/ui/key", h.Key, tags)
	huma.Post(api, "/ui/touch", h.Touch, tags)
	huma.Post(api, "/ui/geolocate", h.Geolocate, tags)
	huma.Post(api, "/ui/view", h.SetView, tags)
	huma.Post(api, "/ui/fix", h.Fix, tags)
}

// controller resolves the session cookie to its controller.
func (h *Handler) controller(ctx context.Context, session string) (*service.Controller, error) {
	if !service.ValidSessionID(session) {
		return nil, huma.Error400BadRequest("missing or invalid session; reload the page")
	}
	return h.sessions.Open(ctx, session), nil
}

// StateSignals are the Datastar signals derived from a snapshot.
func StateSignals(snap service.Snapshot) map[string]any {
	return map[string]any{
		"results": snap.Results.Active,
		"clear":   snap.Query != "",
		"theme":   snap.Theme,
		"panel":   snap.PanelCollapsed,
		"legend":  snap.LegendCollapsed,
		"zoom":    snap.View.Zoom,
	}
}

// LayerRow is one checkbox in the layer panel.
type LayerRow struct {
	ID      string
	Label   string
	Color   string
	Visible bool
}

// LayerRows lists the overlays in display order with the session's visibility.
func LayerRows(layers *service.LayerService, snap service.Snapshot) []LayerRow {
	overlays := layers.List()
	rows := make([]LayerRow, len(overlays))
	for i, l := range overlays {
		rows[i] = LayerRow{ID: l.ID, Label: l.Label, Color: l.Color, Visible: snap.Layers[l.ID]}
	}
	return rows
}

// sync pushes the whole session state to the page.
func (h *Handler) sync(sse humastar.SSE, snap service.Snapshot) {
	sse.Signals(StateSignals(snap))
	sse.Patch(h.Render("search-results", snap.Results), "#searchResults")
	sse.Patch(h.Render("layer-panel", LayerRows(h.layers, snap)), "#layer-list")
	sse.Call("pakmap.sync", snap)
}
