package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/joeblew999/plat-pakmap/internal/geolocate"
	"github.com/joeblew999/plat-pakmap/internal/prefs"
)

// scheduler captures marker expiry callbacks so tests decide when they fire.
type scheduler struct {
	mu      sync.Mutex
	delays  []time.Duration
	pending []func()
}

func (s *scheduler) AfterFunc(d time.Duration, f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	s.pending = append(s.pending, f)
}

func (s *scheduler) fire(i int) {
	s.mu.Lock()
	f := s.pending[i]
	s.mu.Unlock()
	f()
}

type fakeLocator struct {
	fix   geolocate.Fix
	err   error
	calls int
}

func (l *fakeLocator) Locate(ctx context.Context, opts geolocate.Options) (geolocate.Fix, error) {
	l.calls++
	return l.fix, l.err
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, nil
}

func (failingStore) Set(context.Context, string, string) error {
	return errors.New("disk full")
}

func newTestController(t *testing.T, mutate func(*ControllerConfig)) (*Controller, *scheduler) {
	t.Helper()
	sched := &scheduler{}
	n := 0
	cfg := ControllerConfig{
		Catalog:   DefaultCatalog(),
		Layers:    NewLayerService(testWMSURL, testBaseURL),
		Prefs:     prefs.NewMemoryStore(),
		Bus:       NewEventBus(),
		AfterFunc: sched.AfterFunc,
		NewID: func() string {
			n++
			return fmt.Sprintf("m%d", n)
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewController(context.Background(), "s1", cfg), sched
}

func TestControllerInitialState(t *testing.T) {
	c, _ := newTestController(t, nil)
	snap := c.Snapshot()
	if snap.Theme != prefs.ThemeDark {
		t.Fatalf("theme=%q, want dark", snap.Theme)
	}
	if snap.View != InitialView {
		t.Fatalf("view=%+v, want %+v", snap.View, InitialView)
	}
	if snap.Marker != nil || snap.PanelCollapsed || snap.LegendCollapsed {
		t.Fatalf("unexpected initial state %+v", snap)
	}
	if len(snap.Layers) != 5 {
		t.Fatalf("layers=%d, want 5", len(snap.Layers))
	}
}

func TestSelectCentersAndPlacesMarker(t *testing.T) {
	c, sched := newTestController(t, nil)
	c.SetQuery("mosque")

	poi, err := c.Select("badshahi_mosque_lahore")
	if err != nil {
		t.Fatal(err)
	}
	snap := c.Snapshot()
	if snap.View.Zoom != FocusZoom || snap.View.Center.Lat != poi.Lat || snap.View.Center.Lng != poi.Lng {
		t.Fatalf("view=%+v, want %v,%v @%d", snap.View, poi.Lat, poi.Lng, FocusZoom)
	}
	if snap.Query != "" || snap.Results.Active {
		t.Fatalf("search not cleared: query=%q active=%v", snap.Query, snap.Results.Active)
	}
	if snap.Marker == nil || snap.Marker.Kind != MarkerSearch {
		t.Fatalf("marker=%+v, want search marker", snap.Marker)
	}
	if len(sched.delays) != 1 || sched.delays[0] != MarkerTTL {
		t.Fatalf("delays=%v, want [%v]", sched.delays, MarkerTTL)
	}

	sched.fire(0)
	if m := c.Snapshot().Marker; m != nil {
		t.Fatalf("marker=%+v, want removed after expiry", m)
	}
}

func TestSelectUnknownPOI(t *testing.T) {
	c, sched := newTestController(t, nil)
	if _, err := c.Select("atlantis"); !errors.Is(err, ErrUnknownPOI) {
		t.Fatalf("err=%v, want ErrUnknownPOI", err)
	}
	if len(sched.pending) != 0 {
		t.Fatal("no timer should be scheduled")
	}
}

func TestStaleExpiryKeepsNewerMarker(t *testing.T) {
	c, sched := newTestController(t, nil)
	if _, err := c.Select("lahore_zoo"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Select("karachi_zoo"); err != nil {
		t.Fatal(err)
	}

	// The first selection's timer fires while the second marker is shown.
	sched.fire(0)
	m := c.Snapshot().Marker
	if m == nil || m.ID != "m2" {
		t.Fatalf("marker=%+v, want m2 to survive", m)
	}

	sched.fire(1)
	if m := c.Snapshot().Marker; m != nil {
		t.Fatalf("marker=%+v, want removed", m)
	}
}

func TestExpiryDoesNotRemoveLocationMarker(t *testing.T) {
	loc := &fakeLocator{fix: geolocate.Fix{Lat: 24.86, Lng: 67.01}}
	c, sched := newTestController(t, func(cfg *ControllerConfig) { cfg.Locator = loc })
	if _, err := c.Select("karachi"); err != nil {
		t.Fatal(err)
	}
	if _, _, ok := c.Geolocate(context.Background()); !ok {
		t.Fatal("geolocate dropped")
	}
	sched.fire(0)
	m := c.Snapshot().Marker
	if m == nil || m.Kind != MarkerLocation {
		t.Fatalf("marker=%+v, want location marker", m)
	}
}

func TestResetViewIsIdempotent(t *testing.T) {
	c, _ := newTestController(t, nil)
	c.SetView(10, 20, 12)
	if v := c.ResetView(); v != InitialView {
		t.Fatalf("view=%+v", v)
	}
	if v := c.ResetView(); v != InitialView {
		t.Fatalf("second reset view=%+v", v)
	}
	if c.Snapshot().View != InitialView {
		t.Fatal("snapshot view not reset")
	}
}

func TestSetViewClampsZoom(t *testing.T) {
	c, _ := newTestController(t, nil)
	if v := c.SetView(1, 2, 40); v.Zoom != MaxZoom {
		t.Fatalf("zoom=%d", v.Zoom)
	}
}

func TestThemeToggleTwiceRestores(t *testing.T) {
	store := prefs.NewMemoryStore()
	c, _ := newTestController(t, func(cfg *ControllerConfig) { cfg.Prefs = store })
	ctx := context.Background()

	theme, err := c.ToggleTheme(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if theme != prefs.ThemeLight {
		t.Fatalf("theme=%q, want light", theme)
	}
	if v, _, _ := store.Get(ctx, prefs.ThemeKey); v != prefs.ThemeLight {
		t.Fatalf("stored=%q, want light", v)
	}

	// A new controller on the same store starts from the persisted theme.
	again := NewController(ctx, "s1", ControllerConfig{Catalog: DefaultCatalog(), Prefs: store})
	if again.Snapshot().Theme != prefs.ThemeLight {
		t.Fatalf("reloaded theme=%q, want light", again.Snapshot().Theme)
	}

	theme, _ = c.ToggleTheme(ctx)
	if theme != prefs.ThemeDark {
		t.Fatalf("theme=%q, want dark", theme)
	}
	if v, _, _ := store.Get(ctx, prefs.ThemeKey); v != prefs.ThemeDark {
		t.Fatalf("stored=%q, want dark", v)
	}
}

func TestThemeToggleSurvivesStoreFailure(t *testing.T) {
	c, _ := newTestController(t, func(cfg *ControllerConfig) { cfg.Prefs = failingStore{} })
	theme, err := c.ToggleTheme(context.Background())
	if err == nil {
		t.Fatal("expected persistence error")
	}
	if theme != prefs.ThemeLight || c.Snapshot().Theme != prefs.ThemeLight {
		t.Fatalf("theme=%q, want light despite error", theme)
	}
}

func TestLayerToggleIsIsolated(t *testing.T) {
	c, _ := newTestController(t, nil)
	on, err := c.ToggleLayer("railways")
	if err != nil {
		t.Fatal(err)
	}
	if on {
		t.Fatal("railways should now be hidden")
	}
	for id, v := range c.Snapshot().Layers {
		if id == "railways" && v {
			t.Fatal("railways still visible")
		}
		if id != "railways" && !v {
			t.Fatalf("%s changed", id)
		}
	}
	if err := c.SetLayer("railways", true); err != nil {
		t.Fatal(err)
	}
	if !c.Snapshot().Layers["railways"] {
		t.Fatal("railways not restored")
	}
	if _, err := c.ToggleLayer("rivers"); !errors.Is(err, ErrUnknownLayer) {
		t.Fatalf("err=%v, want ErrUnknownLayer", err)
	}
}

func TestPanelAndLegend(t *testing.T) {
	c, _ := newTestController(t, nil)
	if !c.ClosePanel() {
		t.Fatal("close on expanded panel should change it")
	}
	if c.ClosePanel() {
		t.Fatal("close on collapsed panel should be a no-op")
	}
	if c.TogglePanel() {
		t.Fatal("toggle should expand")
	}
	if !c.ToggleLegend() {
		t.Fatal("legend should collapse")
	}
	if c.ToggleLegend() {
		t.Fatal("legend should expand")
	}
}

func TestSwipe(t *testing.T) {
	c, _ := newTestController(t, nil)

	// Short swipe down: nothing.
	c.TouchStart(300)
	if c.TouchEnd(340) {
		t.Fatal("40px swipe should not change the panel")
	}

	// Swipe down closes the expanded panel.
	c.TouchStart(300)
	if !c.TouchEnd(400) || !c.Snapshot().PanelCollapsed {
		t.Fatal("swipe down should collapse")
	}

	// Swipe down again: already collapsed.
	c.TouchStart(300)
	if c.TouchEnd(400) {
		t.Fatal("swipe down on collapsed panel should be a no-op")
	}

	// Swipe up opens it.
	c.TouchStart(400)
	if !c.TouchEnd(300) || c.Snapshot().PanelCollapsed {
		t.Fatal("swipe up should expand")
	}

	// Touch end without start.
	if c.TouchEnd(0) {
		t.Fatal("touch end without start should be ignored")
	}
}

func TestSearchState(t *testing.T) {
	c, _ := newTestController(t, nil)
	res := c.SetQuery("lahore")
	if !res.Active || len(res.Items) == 0 {
		t.Fatalf("res=%+v", res)
	}
	c.HideResults()
	snap := c.Snapshot()
	if snap.Query != "lahore" || snap.Results.Active {
		t.Fatalf("hide: query=%q active=%v", snap.Query, snap.Results.Active)
	}
	c.SetQuery("lahore")
	c.ClearSearch()
	snap = c.Snapshot()
	if snap.Query != "" || snap.Results.Active {
		t.Fatalf("clear: query=%q active=%v", snap.Query, snap.Results.Active)
	}
}

func TestGeolocateSuccess(t *testing.T) {
	loc := &fakeLocator{fix: geolocate.Fix{Lat: 33.6844, Lng: 73.0479}}
	c, _ := newTestController(t, func(cfg *ControllerConfig) { cfg.Locator = loc })

	note, fix, ok := c.Geolocate(context.Background())
	if !ok || note.Error {
		t.Fatalf("ok=%v note=%+v", ok, note)
	}
	if note.Message != "Your location: 33.684400, 73.047900" {
		t.Fatalf("message=%q", note.Message)
	}
	if fix.Lat != 33.6844 {
		t.Fatalf("fix=%+v", fix)
	}
	snap := c.Snapshot()
	if snap.View.Zoom != FocusZoom || snap.Marker == nil || snap.Marker.Kind != MarkerLocation {
		t.Fatalf("snap=%+v", snap)
	}
}

func TestGeolocateFailures(t *testing.T) {
	tests := []struct {
		name    string
		locator geolocate.Locator
		want    string
		ok      bool
	}{
		{"no locator", nil, MsgLocateUnsupported, true},
		{"unsupported", &fakeLocator{err: geolocate.ErrUnsupported}, MsgLocateUnsupported, true},
		{"denied", &fakeLocator{err: geolocate.ErrPermissionDenied}, MsgLocateFailed, true},
		{"timeout", &fakeLocator{err: geolocate.ErrTimeout}, MsgLocateFailed, true},
		{"in flight", &fakeLocator{err: geolocate.ErrInFlight}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestController(t, func(cfg *ControllerConfig) { cfg.Locator = tt.locator })
			before := c.Snapshot()
			note, _, ok := c.Geolocate(context.Background())
			if ok != tt.ok || note.Message != tt.want {
				t.Fatalf("ok=%v note=%+v, want ok=%v %q", ok, note, tt.ok, tt.want)
			}
			if tt.ok && !note.Error {
				t.Fatal("failure should be flagged as an error")
			}
			after := c.Snapshot()
			if after.View != before.View || after.Marker != nil {
				t.Fatalf("state changed on failure: %+v", after)
			}
		})
	}
}

func TestControllerPublishesEvents(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	c, sched := newTestController(t, func(cfg *ControllerConfig) { cfg.Bus = bus })
	if _, err := c.Select("lahore"); err != nil {
		t.Fatal(err)
	}
	sched.fire(0)

	var got []string
	for len(got) < 3 {
		select {
		case ev := <-ch:
			if ev.Session != "s1" {
				t.Fatalf("session=%q", ev.Session)
			}
			got = append(got, ev.Resource+"/"+ev.Action)
		case <-time.After(time.Second):
			t.Fatalf("events=%v", got)
		}
	}
	want := []string{"marker/placed", "view/updated", "marker/removed"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events=%v, want %v", got, want)
		}
	}
}
