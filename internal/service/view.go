package service

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

const (
	// MaxZoom matches the base layer's maximum zoom; no minimum beyond 0 is set.
	MaxZoom = 19
	// FocusZoom is the zoom used when centering on a search result or a location fix.
	FocusZoom = 15
)

// InitialView is the startup viewport and the reset target.
var InitialView = ViewState{
	Center: LatLng{Lat: 30.3753, Lng: 69.3451},
	Zoom:   6,
}

// NewView returns a view with the zoom clamped to the widget range.
func NewView(lat, lng float64, zoom int) ViewState {
	return ViewState{Center: LatLng{Lat: lat, Lng: lng}, Zoom: clampZoom(zoom)}
}

func clampZoom(z int) int {
	if z < 0 {
		return 0
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

// Point returns the center as an orb point.
func (l LatLng) Point() orb.Point {
	return orb.Point{l.Lng, l.Lat}
}

// DistanceTo returns the great-circle distance in meters.
func (l LatLng) DistanceTo(other LatLng) float64 {
	return geo.Distance(l.Point(), other.Point())
}

// FormatPointer formats a pointer position for the coordinate readout.
func FormatPointer(lat, lng float64) string {
	return fmt.Sprintf("Lat: %.5f, Lon: %.5f", lat, lng)
}

// FormatFix formats a geolocation fix for the user notification.
func FormatFix(lat, lng float64) string {
	return fmt.Sprintf("Your location: %.6f, %.6f", lat, lng)
}
