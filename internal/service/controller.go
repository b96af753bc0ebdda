package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joeblew999/plat-pakmap/internal/geolocate"
	"github.com/joeblew999/plat-pakmap/internal/prefs"
)

const (
	// MarkerTTL is how long a search-selection marker stays on the map.
	MarkerTTL = 5 * time.Second
	// SwipeThreshold is the vertical distance in pixels a swipe must exceed.
	SwipeThreshold = 50.0
)

// User-facing geolocation messages.
const (
	MsgLocateFailed      = "Unable to get your location. Please check your browser settings."
	MsgLocateUnsupported = "Geolocation is not supported by this browser."
)

// Notification is a blocking message shown to the user.
type Notification struct {
	Message string `json:"message"`
	Error   bool   `json:"error"`
}

// ControllerConfig holds the dependencies shared by all controllers.
type ControllerConfig struct {
	Catalog *Catalog
	Layers  *LayerService
	Prefs   prefs.Store
	Locator geolocate.Locator
	Bus     *EventBus
	Logger  *slog.Logger

	// AfterFunc schedules marker expiry; defaults to time.AfterFunc.
	AfterFunc func(d time.Duration, f func())
	// NewID generates marker IDs; defaults to uuid.NewString.
	NewID func() string
}

// Controller owns the UI state of one browser session.
type Controller struct {
	session   string
	catalog   *Catalog
	layers    *LayerService
	prefs     prefs.Store
	locator   geolocate.Locator
	bus       *EventBus
	logger    *slog.Logger
	afterFunc func(time.Duration, func())
	newID     func() string

	mu              sync.Mutex
	theme           string
	panelCollapsed  bool
	legendCollapsed bool
	view            ViewState
	visible         map[string]bool
	marker          *Marker
	query           string
	results         SearchResult
	touchStartY     float64
	touching        bool
}

// NewController builds a controller for session, reading the stored theme once.
func NewController(ctx context.Context, session string, cfg ControllerConfig) *Controller {
	c := &Controller{
		session:   session,
		catalog:   cfg.Catalog,
		layers:    cfg.Layers,
		prefs:     cfg.Prefs,
		locator:   cfg.Locator,
		bus:       cfg.Bus,
		logger:    cfg.Logger,
		afterFunc: cfg.AfterFunc,
		newID:     cfg.NewID,
		theme:     prefs.ThemeDark,
		view:      InitialView,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.afterFunc == nil {
		c.afterFunc = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	if c.layers != nil {
		c.visible = c.layers.DefaultVisibility()
	} else {
		c.visible = map[string]bool{}
	}
	if c.prefs != nil {
		theme, err := prefs.LoadTheme(ctx, c.prefs)
		if err != nil {
			c.logger.Warn("load theme", "session", session, "error", err)
		}
		c.theme = theme
	}
	return c
}

// Session returns the session ID.
func (c *Controller) Session() string {
	return c.session
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	layers := make(map[string]bool, len(c.visible))
	for k, v := range c.visible {
		layers[k] = v
	}
	var marker *Marker
	if c.marker != nil {
		m := *c.marker
		marker = &m
	}
	items := make([]PointOfInterest, len(c.results.Items))
	copy(items, c.results.Items)
	return Snapshot{
		Session:         c.session,
		Theme:           c.theme,
		PanelCollapsed:  c.panelCollapsed,
		LegendCollapsed: c.legendCollapsed,
		View:            c.view,
		Layers:          layers,
		Marker:          marker,
		Query:           c.query,
		Results:         SearchResult{Active: c.results.Active, Items: items},
	}
}

func (c *Controller) publish(resource, action, id string) {
	c.bus.Publish(Event{Session: c.session, Resource: resource, Action: action, ID: id})
}

// Search

// SetQuery records the search box contents and returns the matcher output.
func (c *Controller) SetQuery(query string) SearchResult {
	res := c.catalog.Search(query)
	c.mu.Lock()
	c.query = query
	c.results = res
	c.mu.Unlock()
	return res
}

// ClearSearch empties the search box and hides the results.
func (c *Controller) ClearSearch() {
	c.mu.Lock()
	c.query = ""
	c.results = SearchResult{}
	c.mu.Unlock()
}

// HideResults hides the result list but keeps the query.
func (c *Controller) HideResults() {
	c.mu.Lock()
	c.results = SearchResult{}
	c.mu.Unlock()
}

// Select centers the map on a POI, clears the search and places a
// transient marker that expires after MarkerTTL.
func (c *Controller) Select(id string) (PointOfInterest, error) {
	poi, ok := c.catalog.Get(id)
	if !ok {
		return PointOfInterest{}, fmt.Errorf("%w: %q", ErrUnknownPOI, id)
	}

	c.mu.Lock()
	c.view = NewView(poi.Lat, poi.Lng, FocusZoom)
	c.query = ""
	c.results = SearchResult{}
	m := c.placeMarkerLocked(MarkerSearch, LatLng{Lat: poi.Lat, Lng: poi.Lng})
	c.mu.Unlock()

	c.afterFunc(MarkerTTL, func() { c.expireMarker(m.ID) })
	c.publish("marker", "placed", m.ID)
	c.publish("view", "updated", "")
	return poi, nil
}

func (c *Controller) placeMarkerLocked(kind MarkerKind, pos LatLng) Marker {
	m := Marker{ID: c.newID(), Kind: kind, Position: pos}
	c.marker = &m
	return m
}

// expireMarker removes the marker only if it is still the one that was scheduled.
func (c *Controller) expireMarker(id string) {
	c.mu.Lock()
	if c.marker == nil || c.marker.ID != id {
		c.mu.Unlock()
		return
	}
	c.marker = nil
	c.mu.Unlock()
	c.publish("marker", "removed", id)
}

// Map surface

// ResetView restores the initial center and zoom.
func (c *Controller) ResetView() ViewState {
	c.mu.Lock()
	c.view = InitialView
	c.mu.Unlock()
	c.publish("view", "reset", "")
	return InitialView
}

// SetView records a pan/zoom made by the user.
func (c *Controller) SetView(lat, lng float64, zoom int) ViewState {
	v := NewView(lat, lng, zoom)
	c.mu.Lock()
	c.view = v
	c.mu.Unlock()
	return v
}

// CenterOn moves the viewport and notifies the page.
func (c *Controller) CenterOn(lat, lng float64, zoom int) ViewState {
	v := c.SetView(lat, lng, zoom)
	c.publish("view", "updated", "")
	return v
}

// SetLayer shows or hides one overlay.
func (c *Controller) SetLayer(id string, visible bool) error {
	if _, ok := c.layers.Get(id); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLayer, id)
	}
	c.mu.Lock()
	c.visible[id] = visible
	c.mu.Unlock()
	c.publish("layers", "updated", id)
	return nil
}

// ToggleLayer flips one overlay and returns its new visibility.
func (c *Controller) ToggleLayer(id string) (bool, error) {
	if _, ok := c.layers.Get(id); !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownLayer, id)
	}
	c.mu.Lock()
	v := !c.visible[id]
	c.visible[id] = v
	c.mu.Unlock()
	c.publish("layers", "updated", id)
	return v, nil
}

// Panel, legend, theme

// TogglePanel flips the layer panel and returns whether it is now collapsed.
func (c *Controller) TogglePanel() bool {
	c.mu.Lock()
	c.panelCollapsed = !c.panelCollapsed
	collapsed := c.panelCollapsed
	c.mu.Unlock()
	c.publish("panel", "updated", "")
	return collapsed
}

// ClosePanel collapses the panel if it is expanded. It reports whether anything changed.
func (c *Controller) ClosePanel() bool {
	c.mu.Lock()
	if c.panelCollapsed {
		c.mu.Unlock()
		return false
	}
	c.panelCollapsed = true
	c.mu.Unlock()
	c.publish("panel", "updated", "")
	return true
}

// ToggleLegend flips the legend and returns whether it is now collapsed.
func (c *Controller) ToggleLegend() bool {
	c.mu.Lock()
	c.legendCollapsed = !c.legendCollapsed
	collapsed := c.legendCollapsed
	c.mu.Unlock()
	c.publish("legend", "updated", "")
	return collapsed
}

// ToggleTheme flips dark/light and persists the new value. The toggle always
// takes effect; a persistence failure is returned for the caller to report.
func (c *Controller) ToggleTheme(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.theme == prefs.ThemeDark {
		c.theme = prefs.ThemeLight
	} else {
		c.theme = prefs.ThemeDark
	}
	theme := c.theme
	c.mu.Unlock()

	c.publish("theme", "updated", theme)
	if c.prefs == nil {
		return theme, nil
	}
	if err := prefs.SaveTheme(ctx, c.prefs, theme); err != nil {
		return theme, fmt.Errorf("persist theme: %w", err)
	}
	return theme, nil
}

// Touch gestures

// TouchStart records where a touch began.
func (c *Controller) TouchStart(y float64) {
	c.mu.Lock()
	c.touchStartY = y
	c.touching = true
	c.mu.Unlock()
}

// TouchEnd finishes a touch. A vertical swipe longer than SwipeThreshold opens
// the collapsed panel (swipe up) or closes the expanded panel (swipe down).
// It reports whether the panel changed.
func (c *Controller) TouchEnd(y float64) bool {
	c.mu.Lock()
	start, touching := c.touchStartY, c.touching
	c.touching = false
	if !touching {
		c.mu.Unlock()
		return false
	}
	diff := start - y
	changed := false
	switch {
	case diff > SwipeThreshold && c.panelCollapsed:
		c.panelCollapsed = false
		changed = true
	case diff < -SwipeThreshold && !c.panelCollapsed:
		c.panelCollapsed = true
		changed = true
	}
	c.mu.Unlock()
	if changed {
		c.publish("panel", "updated", "")
	}
	return changed
}

// Geolocation

// BrowserRelay returns the relay when fixes come from the page.
func (c *Controller) BrowserRelay() (*geolocate.Relay, bool) {
	r, ok := c.locator.(*geolocate.Relay)
	return r, ok
}

// Geolocate requests one fix. On success the marker is replaced by a location
// marker and the map centers on it. The returned notification is what the user
// sees; ok is false when the request was dropped because one is already pending.
func (c *Controller) Geolocate(ctx context.Context) (Notification, geolocate.Fix, bool) {
	if c.locator == nil {
		c.logger.Error("geolocation", "session", c.session, "error", geolocate.ErrUnsupported)
		return Notification{Message: MsgLocateUnsupported, Error: true}, geolocate.Fix{}, true
	}

	fix, err := c.locator.Locate(ctx, geolocate.DefaultOptions)
	switch {
	case errors.Is(err, geolocate.ErrInFlight):
		return Notification{}, geolocate.Fix{}, false
	case errors.Is(err, geolocate.ErrUnsupported):
		c.logger.Error("geolocation", "session", c.session, "error", err)
		return Notification{Message: MsgLocateUnsupported, Error: true}, geolocate.Fix{}, true
	case err != nil:
		c.logger.Error("geolocation", "session", c.session, "error", err)
		return Notification{Message: MsgLocateFailed, Error: true}, geolocate.Fix{}, true
	}

	c.mu.Lock()
	m := c.placeMarkerLocked(MarkerLocation, LatLng{Lat: fix.Lat, Lng: fix.Lng})
	c.view = NewView(fix.Lat, fix.Lng, FocusZoom)
	c.mu.Unlock()

	c.publish("marker", "placed", m.ID)
	c.publish("view", "updated", "")
	return Notification{Message: FormatFix(fix.Lat, fix.Lng)}, fix, true
}
