package ui

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-pakmap/internal/api"
	"github.com/joeblew999/plat-pakmap/internal/geolocate"
	"github.com/joeblew999/plat-pakmap/internal/humastar"
	"github.com/joeblew999/plat-pakmap/internal/metrics"
	"github.com/joeblew999/plat-pakmap/internal/service"
)

type IDInput struct {
	Session string `cookie:"pakmap_session" doc:"Session ID set by the page"`
	ID      string `path:"id" doc:"Resource ID"`
}

type ViewInput struct {
	Session string `cookie:"pakmap_session" doc:"Session ID set by the page"`
	Body    struct {
		Lat  float64 `json:"lat" minimum:"-90" maximum:"90" doc:"Map center latitude"`
		Lng  float64 `json:"lng" minimum:"-180" maximum:"180" doc:"Map center longitude"`
		Zoom int     `json:"zoom" doc:"Map zoom"`
	}
}

type ViewOutput struct {
	Body service.ViewState
}

type FixInput struct {
	Session string `cookie:"pakmap_session" doc:"Session ID set by the page"`
	Body    geolocate.Report
}

type FixOutput struct {
	Body struct {
		Delivered bool `json:"delivered" doc:"Whether a request was waiting for this fix"`
	}
}

// Search

func (h *Handler) Search(ctx context.Context, input *SignalsInput) (*huma.StreamResponse, error) {
	ctrl, err := h.controller(ctx, input.Session)
	if err != nil {
		return nil, err
	}
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	res := ctrl.SetQuery(signals.String("query"))
	metrics.Searches.WithLabelValues(api.SearchOutcome(res)).Inc()

	return h.Stream(func(sse humastar.SSE) {
		h.sync(sse, ctrl.Snapshot())
	}), nil
}

func (h *Handler) ClearSearch(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	ctrl, err := h.controller(ctx, input.Session)
	if err != nil {
		return nil, err
	}
	ctrl.ClearSearch()
	return h.Stream(func(sse humastar.SSE) {
		sse.Signals(map[string]any{"query": ""})
		h.sync(sse, ctrl.Snapshot())
	}), nil
}

func (h *Handler) HideResults(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	ctrl, err := h.controller(ctx, input.Session)
	if err != nil {
		return nil, err
	}
	ctrl.HideResults()
	return h.Stream(func(sse humastar.SSE) {
		sse.Signals(StateSignals(ctrl.Snapshot()))
	}), nil
}

func (h *Handler) Select(ctx context.Context, input *IDInput) (*huma.StreamResponse, error) {
	ctrl, err := h.controller(ctx, input.Session)
	if err != nil {
		return nil, err
	}
	if _, err := ctrl.Select(input.ID); err != nil {
		return nil, api.StatusFor(err)
	}
	metrics.Selections.Inc()
	return h.Stream(func(sse humastar.SSE) {
		sse.Signals(map[string]any{"query": ""})
		h.sync(sse, ctrl.Snapshot())
	}), nil
}

// Map surface

func (h *Handler) ToggleLayer(ctx context.Context, input *IDInput) (*huma.StreamResponse, error) {
	ctrl, err := h.controller(ctx, input.Session)
	if err != nil {
		return nil, err
	}
	if _, err := ctrl.ToggleLayer(input.ID); err != nil {
		return nil, api.StatusFor(err)
	}
	return h.Stream(func(sse humastar.SSE) {
		h.sync(sse, ctrl.Snapshot())
	}), nil
}

func (h *Handler) ResetView(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	ctrl, err := h.controller(ctx, input.Session)
	if err != nil {
		return nil, err
	}
	ctrl.ResetView()
	return h.Stream(func(sse humastar.SSE) {
		h.sync(sse, ctrl.Snapshot())
	}), nil
}

// SetView records a settled pan or zoom. The page posts it with fetch, not Datastar.
func (h *Handler) SetView(ctx context.Context, input *ViewInput) (*ViewOutput, error) {
	ctrl, err := h.controller(ctx, input.Session)
	if err != nil {
		return nil, err
	}
	v := ctrl.SetView(input.Body.Lat, input.Body.Lng, input.Body.Zoom)
	return &ViewOutput{Body: v}, nil
}

// Panel, legend, theme

func (h *Handler) TogglePanel(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	ctrl, err := h.controller(ctx, input.Session)
	if err != nil {
		return nil, err
	}
	ctrl.TogglePanel()
	return h.Stream(func(sse humastar.SSE) {
		h.sync(sse, ctrl.Snapshot())
	}), nil
}

func (h *Handler) ToggleLegend(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	ctrl, err := h.controller(ctx, input.Session)
	if err != nil {
		return nil, err
	}
	ctrl.ToggleLegend()
	return h.Stream(func(sse humastar.SSE) {
		h.sync(sse, ctrl.Snapshot())
	}), nil
}

func (h *Handler) ToggleTheme(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	ctrl, err := h.controller(ctx, input.Session)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		h.toggleTheme(ctx, sse, ctrl)
		h.sync(sse, ctrl.Snapshot())
	}), nil
}

// MsgThemeNotSaved is shown when the theme changed but could not be stored.
const MsgThemeNotSaved = "Theme preference could not be saved"

// toggleTheme flips the theme. A failed save keeps the new theme for this
// page and raises the error signal.
func (h *Handler) toggleTheme(ctx context.Context, sse humastar.SSE, ctrl *service.Controller) {
	if _, err := ctrl.ToggleTheme(ctx); err != nil {
		h.logger.Warn("theme not saved", "session", ctrl.Session(), "error", err)
		sse.Error(MsgThemeNotSaved)
	}
}

// Keyboard and touch

// Key runs the shortcut bound to a key press. Unbound keys are ignored.
func (h *Handler) Key(ctx context.Context, input *SignalsInput) (*huma.StreamResponse, error) {
	ctrl, err := h.controller(ctx, input.Session)
	if err != nil {
		return nil, err
	}
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	sc, ok := service.ParseShortcut(service.KeyPress{
		Key:  signals.String("key"),
		Ctrl: signals.Bool("ctrl"),
		Meta: signals.Bool("meta"),
	})

	return h.Stream(func(sse humastar.SSE) {
		if !ok {
			return
		}
		switch sc {
		case service.ShortcutReset:
			ctrl.ResetView()
		case service.ShortcutTheme:
			h.toggleTheme(ctx, sse, ctrl)
		case service.ShortcutClosePanel:
			if !ctrl.ClosePanel() {
				return
			}
		case service.ShortcutFocusSearch:
			sse.Call("pakmap.focusSearch")
			return
		case service.ShortcutGeolocate:
			h.locate(ctx, sse, ctrl)
			return
		}
		h.sync(sse, ctrl.Snapshot())
	}), nil
}

// Touch tracks vertical swipes that open or close the layer panel.
func (h *Handler) Touch(ctx context.Context, input *SignalsInput) (*huma.StreamResponse, error) {
	ctrl, err := h.controller(ctx, input.Session)
	if err != nil {
		return nil, err
	}
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	y := signals.Float("touchy")

	return h.Stream(func(sse humastar.SSE) {
		switch signals.String("touchphase") {
		case "start":
			ctrl.TouchStart(y)
		case "end":
			if ctrl.TouchEnd(y) {
				h.sync(sse, ctrl.Snapshot())
			}
		}
	}), nil
}

// Geolocation

func (h *Handler) Geolocate(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	ctrl, err := h.controller(ctx, input.Session)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		h.locate(ctx, sse, ctrl)
	}), nil
}

// locate runs one geolocation request and reports the outcome with an alert.
// In browser mode the page is asked to run the platform request once the
// relay is waiting for its answer.
func (h *Handler) locate(ctx context.Context, sse humastar.SSE, ctrl *service.Controller) {
	if _, ok := ctrl.BrowserRelay(); ok {
		ctx = geolocate.WithPrompt(ctx, func(opts geolocate.Options) {
			sse.Call("pakmap.requestFix", FixOptions(opts))
		})
	}
	note, _, ok := ctrl.Geolocate(ctx)
	if !ok {
		return
	}
	metrics.Geolocations.WithLabelValues(geolocationOutcome(note)).Inc()
	if !note.Error {
		h.sync(sse, ctrl.Snapshot())
	}
	sse.Alert(note.Message)
}

func geolocationOutcome(note service.Notification) string {
	switch {
	case !note.Error:
		return "ok"
	case note.Message == service.MsgLocateUnsupported:
		return "unsupported"
	default:
		return "failed"
	}
}

// FixOptions converts options to the PositionOptions object the page passes
// to navigator.geolocation.
func FixOptions(opts geolocate.Options) map[string]any {
	return map[string]any{
		"enableHighAccuracy": opts.HighAccuracy,
		"timeout":            opts.Timeout.Milliseconds(),
		"maximumAge":         opts.MaximumAge.Milliseconds(),
	}
}

// Fix delivers the page's geolocation answer to the waiting request.
func (h *Handler) Fix(ctx context.Context, input *FixInput) (*FixOutput, error) {
	ctrl, err := h.controller(ctx, input.Session)
	if err != nil {
		return nil, err
	}
	relay, ok := ctrl.BrowserRelay()
	if !ok {
		return nil, huma.Error409Conflict("geolocation is not relayed through the browser")
	}
	out := &FixOutput{}
	out.Body.Delivered = relay.Deliver(input.Body)
	if !out.Body.Delivered {
		h.logger.Debug("unexpected geolocation fix", "session", ctrl.Session())
	}
	return out, nil
}
