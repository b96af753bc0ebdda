package ui

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-pakmap/internal/humastar"
	"github.com/joeblew999/plat-pakmap/internal/metrics"
)

// Events keeps the page in step with its session: the full state on connect,
// the clock every Tick, and a resync after every event published for the
// session, which is how marker expiry reaches the map. Each tick also touches
// the session so an open page is never evicted as idle.
func (h *Handler) Events(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	ctrl, err := h.controller(ctx, input.Session)
	if err != nil {
		return nil, err
	}

	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := humastar.NewSSE(humaCtx)
			ch := h.bus.Subscribe()
			defer h.bus.Unsubscribe(ch)

			metrics.ActiveStreams.Inc()
			defer metrics.ActiveStreams.Dec()

			h.sync(sse, ctrl.Snapshot())
			h.clock(sse)

			ticker := time.NewTicker(h.Tick)
			defer ticker.Stop()

			done := humaCtx.Context().Done()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					if c := h.sessions.Open(humaCtx.Context(), input.Session); c != ctrl {
						ctrl = c
						h.sync(sse, ctrl.Snapshot())
					}
					h.clock(sse)
				case ev := <-ch:
					if ev.Session != ctrl.Session() {
						continue
					}
					h.logger.Debug("stream event", "session", ev.Session, "resource", ev.Resource, "action", ev.Action, "id", ev.ID)
					h.sync(sse, ctrl.Snapshot())
				}
			}
		},
	}, nil
}

// clock sends the current instant in Unix milliseconds; the page formats it
// in the viewer's locale and time zone.
func (h *Handler) clock(sse humastar.SSE) {
	sse.Signals(map[string]any{"now": h.Now().UnixMilli()})
}
