package geolocate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLocator struct {
	calls int
	fix   Fix
	err   error
}

func (l *countingLocator) Locate(context.Context, Options) (Fix, error) {
	l.calls++
	return l.fix, l.err
}

func TestErrorFromCode(t *testing.T) {
	assert.ErrorIs(t, ErrorFromCode(1), ErrPermissionDenied)
	assert.ErrorIs(t, ErrorFromCode(2), ErrPositionUnavailable)
	assert.ErrorIs(t, ErrorFromCode(3), ErrTimeout)
	assert.ErrorIs(t, ErrorFromCode(0), ErrUnsupported)
	assert.ErrorIs(t, ErrorFromCode(42), ErrUnsupported)
}

func TestCachedHonorsMaximumAge(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	inner := &countingLocator{fix: Fix{Lat: 1, Lng: 2}}
	c := NewCached(inner)
	c.Now = func() time.Time { return now }
	ctx := context.Background()

	_, err := c.Locate(ctx, DefaultOptions)
	require.NoError(t, err)
	now = now.Add(30 * time.Second)
	fix, err := c.Locate(ctx, DefaultOptions)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls, "fix younger than MaximumAge is reused")
	assert.Equal(t, 1.0, fix.Lat)

	now = now.Add(time.Minute)
	_, err = c.Locate(ctx, DefaultOptions)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls, "stale fix triggers a new lookup")

	opts := DefaultOptions
	opts.MaximumAge = 0
	_, err = c.Locate(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls, "zero MaximumAge never uses the cache")
}

func TestCachedDoesNotCacheErrors(t *testing.T) {
	inner := &countingLocator{err: ErrPositionUnavailable}
	c := NewCached(inner)
	_, err := c.Locate(context.Background(), DefaultOptions)
	assert.ErrorIs(t, err, ErrPositionUnavailable)
	_, err = c.Locate(context.Background(), DefaultOptions)
	assert.ErrorIs(t, err, ErrPositionUnavailable)
	assert.Equal(t, 2, inner.calls)
}

func TestRelayDeliver(t *testing.T) {
	r := NewRelay()
	assert.False(t, r.Deliver(Report{Lat: 1}), "nothing waiting")

	var prompted Options
	ctx := WithPrompt(context.Background(), func(opts Options) {
		prompted = opts
		// The page may answer before Locate starts waiting.
		assert.True(t, r.Pending())
		assert.True(t, r.Deliver(Report{Lat: 33.68, Lng: 73.04, Accuracy: 12}))
	})

	fix, err := r.Locate(ctx, DefaultOptions)
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions, prompted)
	assert.Equal(t, 33.68, fix.Lat)
	assert.Equal(t, 73.04, fix.Lng)
	assert.Equal(t, 12.0, fix.Accuracy)
	assert.False(t, r.Pending())
}

func TestRelayErrorCode(t *testing.T) {
	r := NewRelay()
	ctx := WithPrompt(context.Background(), func(Options) {
		r.Deliver(Report{Code: 1})
	})
	_, err := r.Locate(ctx, DefaultOptions)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	ctx = WithPrompt(context.Background(), func(Options) {
		r.Deliver(Report{Code: -1})
	})
	_, err = r.Locate(ctx, DefaultOptions)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestRelaySingleFlight(t *testing.T) {
	r := NewRelay()
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		ctx := WithPrompt(context.Background(), func(Options) { close(started) })
		_, err := r.Locate(ctx, DefaultOptions)
		done <- err
	}()
	<-started

	_, err := r.Locate(context.Background(), DefaultOptions)
	assert.ErrorIs(t, err, ErrInFlight)

	require.True(t, r.Deliver(Report{Lat: 1, Lng: 1}))
	require.NoError(t, <-done)
}

func TestRelayTimeout(t *testing.T) {
	r := NewRelay()
	r.Slack = 0
	opts := DefaultOptions
	opts.Timeout = 20 * time.Millisecond

	_, err := r.Locate(context.Background(), opts)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.False(t, r.Pending(), "timed out request is cleared")
}

func TestIPAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json/203.0.113.7":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"success","lat":31.5204,"lon":74.3587}`))
		case "/json/10.0.0.1":
			w.Write([]byte(`{"status":"fail","message":"private range"}`))
		default:
			http.Error(w, "nope", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	l := &IPAPI{URL: srv.URL + "/json/", Client: srv.Client(), IP: "203.0.113.7"}
	fix, err := l.Locate(context.Background(), DefaultOptions)
	require.NoError(t, err)
	assert.Equal(t, 31.5204, fix.Lat)
	assert.Equal(t, 74.3587, fix.Lng)
	assert.False(t, fix.At.IsZero())

	l.IP = "10.0.0.1"
	_, err = l.Locate(context.Background(), DefaultOptions)
	assert.True(t, errors.Is(err, ErrPositionUnavailable), "err=%v", err)

	l.IP = "other"
	_, err = l.Locate(context.Background(), DefaultOptions)
	assert.ErrorIs(t, err, ErrPositionUnavailable)
}
