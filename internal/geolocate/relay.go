package geolocate

import (
	"context"
	"sync"
	"time"
)

// Report is what the page posts back after running the platform request.
// Code is zero on success, otherwise the platform error code; -1 means the
// page has no geolocation support.
type Report struct {
	Lat      float64 `json:"lat,omitempty" doc:"Latitude of the fix"`
	Lng      float64 `json:"lng,omitempty" doc:"Longitude of the fix"`
	Accuracy float64 `json:"accuracy,omitempty" doc:"Accuracy radius in meters"`
	Code     int     `json:"code" minimum:"-1" doc:"0 on success, 1 denied, 2 unavailable, 3 timeout, -1 unsupported"`
}

// Relay is a Locator whose fixes come from the browser. Locate blocks until
// Deliver is called, the options' timeout elapses, or ctx is done.
// Only one request may be outstanding.
type Relay struct {
	// Slack is added to Options.Timeout to cover the round trip to the page.
	Slack time.Duration

	mu      sync.Mutex
	pending chan Report
}

// NewRelay creates a relay with a two second round-trip allowance.
func NewRelay() *Relay {
	return &Relay{Slack: 2 * time.Second}
}

// Locate implements Locator.
func (r *Relay) Locate(ctx context.Context, opts Options) (Fix, error) {
	r.mu.Lock()
	if r.pending != nil {
		r.mu.Unlock()
		return Fix{}, ErrInFlight
	}
	ch := make(chan Report, 1)
	r.pending = ch
	r.mu.Unlock()

	if prompt, ok := ctx.Value(promptKey{}).(func(Options)); ok {
		prompt(opts)
	}

	defer func() {
		r.mu.Lock()
		if r.pending == ch {
			r.pending = nil
		}
		r.mu.Unlock()
	}()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout+r.Slack)
		defer cancel()
	}

	select {
	case rep := <-ch:
		if rep.Code != 0 {
			return Fix{}, ErrorFromCode(rep.Code)
		}
		return Fix{Lat: rep.Lat, Lng: rep.Lng, Accuracy: rep.Accuracy, At: time.Now()}, nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return Fix{}, ErrTimeout
		}
		return Fix{}, ctx.Err()
	}
}

type promptKey struct{}

// WithPrompt returns a context that makes Relay.Locate call prompt once the
// request is registered, so a fast answer from the page cannot be lost.
func WithPrompt(ctx context.Context, prompt func(Options)) context.Context {
	return context.WithValue(ctx, promptKey{}, prompt)
}

// Pending reports whether a request is waiting for the page.
func (r *Relay) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending != nil
}

// Deliver hands the page's report to the waiting request.
// It returns false when nothing is waiting.
func (r *Relay) Deliver(rep Report) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		return false
	}
	select {
	case r.pending <- rep:
		return true
	default:
		return false
	}
}
