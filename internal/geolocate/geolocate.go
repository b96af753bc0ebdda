// Package geolocate obtains one-shot position fixes for the "locate me" action.
package geolocate

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrUnsupported means no location capability is available.
	ErrUnsupported = errors.New("geolocation not supported")
	// ErrPermissionDenied mirrors the platform PERMISSION_DENIED code.
	ErrPermissionDenied = errors.New("geolocation permission denied")
	// ErrPositionUnavailable mirrors the platform POSITION_UNAVAILABLE code.
	ErrPositionUnavailable = errors.New("position unavailable")
	// ErrTimeout mirrors the platform TIMEOUT code.
	ErrTimeout = errors.New("geolocation timed out")
	// ErrInFlight is returned while another request is outstanding.
	ErrInFlight = errors.New("geolocation request already in flight")
)

// Options configures a single position request.
type Options struct {
	HighAccuracy bool          `json:"enableHighAccuracy"`
	Timeout      time.Duration `json:"-"`
	MaximumAge   time.Duration `json:"-"`
}

// DefaultOptions are the options used by the locate action.
var DefaultOptions = Options{
	HighAccuracy: true,
	Timeout:      10 * time.Second,
	MaximumAge:   60 * time.Second,
}

// Fix is a resolved position.
type Fix struct {
	Lat      float64   `json:"lat"`
	Lng      float64   `json:"lng"`
	Accuracy float64   `json:"accuracy,omitempty"`
	At       time.Time `json:"at"`
}

// Locator resolves the current position once.
type Locator interface {
	Locate(ctx context.Context, opts Options) (Fix, error)
}

// ErrorFromCode maps a platform error code to a sentinel error.
// 1 denied, 2 unavailable, 3 timeout; anything else is unsupported.
func ErrorFromCode(code int) error {
	switch code {
	case 1:
		return ErrPermissionDenied
	case 2:
		return ErrPositionUnavailable
	case 3:
		return ErrTimeout
	default:
		return ErrUnsupported
	}
}

// Cached reuses the last successful fix while it is younger than Options.MaximumAge.
type Cached struct {
	Locator Locator
	Now     func() time.Time

	mu   sync.Mutex
	last *Fix
}

// NewCached wraps l with a fix cache.
func NewCached(l Locator) *Cached {
	return &Cached{Locator: l, Now: time.Now}
}

// Locate implements Locator.
func (c *Cached) Locate(ctx context.Context, opts Options) (Fix, error) {
	c.mu.Lock()
	if c.last != nil && opts.MaximumAge > 0 && c.Now().Sub(c.last.At) <= opts.MaximumAge {
		fix := *c.last
		c.mu.Unlock()
		return fix, nil
	}
	c.mu.Unlock()

	fix, err := c.Locator.Locate(ctx, opts)
	if err != nil {
		return Fix{}, err
	}
	if fix.At.IsZero() {
		fix.At = c.Now()
	}

	c.mu.Lock()
	c.last = &fix
	c.mu.Unlock()
	return fix, nil
}
