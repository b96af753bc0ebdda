package ui

import (
	"net/http"

	"github.com/joeblew999/plat-pakmap/internal/service"
)

// PageConfig is handed to the page script as window.PAKMAP.
type PageConfig struct {
	BaseTileURL string                 `json:"baseTileUrl"`
	OverlayURL  string                 `json:"overlayUrl"`
	MaxZoom     int                    `json:"maxZoom"`
	Overlays    []service.OverlayLayer `json:"overlays"`
	State       service.Snapshot       `json:"state"`
}

// PageData is the data for the "page" template.
type PageData struct {
	Title     string
	Snapshot  service.Snapshot
	Signals   map[string]any
	LayerRows []LayerRow
	Legend    []service.LegendItem
	Config    PageConfig
}

// CookieMaxAge keeps the session cookie for a year, in seconds.
const CookieMaxAge = 365 * 24 * 60 * 60

// OverlayURL is the Leaflet tile template served by the WMS proxy.
const OverlayURL = "/tiles/wms/{layer}/{z}/{x}/{y}.png"

// ServePage renders the map page, issuing a session cookie on first visit.
func (h *Handler) ServePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	id := ""
	if c, err := r.Cookie(CookieName); err == nil && service.ValidSessionID(c.Value) {
		id = c.Value
	} else {
		id = service.NewSessionID()
	}
	// Reissued on every visit so the theme outlives the browser session.
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   CookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	snap := h.sessions.Open(r.Context(), id).Snapshot()
	html, err := h.Renderer.Render("page", h.pageData(snap))
	if err != nil {
		h.logger.Error("render page", "session", id, "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

func (h *Handler) pageData(snap service.Snapshot) PageData {
	signals := StateSignals(snap)
	signals["query"] = snap.Query
	signals["now"] = h.Now().UnixMilli()
	signals["key"] = ""
	signals["ctrl"] = false
	signals["meta"] = false
	signals["touchy"] = 0
	signals["touchphase"] = ""
	signals["error"] = ""

	return PageData{
		Title:     "Pakistan Map",
		Snapshot:  snap,
		Signals:   signals,
		LayerRows: LayerRows(h.layers, snap),
		Legend:    h.layers.Legend(),
		Config: PageConfig{
			BaseTileURL: h.layers.BaseTileURL(),
			OverlayURL:  OverlayURL,
			MaxZoom:     service.MaxZoom,
			Overlays:    h.layers.List(),
			State:       snap,
		},
	}
}
