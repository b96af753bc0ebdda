package geolocate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultIPAPIURL is an ip-api.com compatible JSON endpoint.
const DefaultIPAPIURL = "http://ip-api.com/json/"

// IPAPI locates a client by IP address. HighAccuracy has no effect.
type IPAPI struct {
	URL    string
	Client *http.Client
	// IP is queried instead of the server's own address when set.
	IP string
}

type ipapiResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Locate implements Locator.
func (l *IPAPI) Locate(ctx context.Context, opts Options) (Fix, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	base := l.URL
	if base == "" {
		base = DefaultIPAPIURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+l.IP, nil)
	if err != nil {
		return Fix{}, fmt.Errorf("build ip lookup: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Fix{}, ErrTimeout
		}
		return Fix{}, fmt.Errorf("%w: %v", ErrPositionUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Fix{}, fmt.Errorf("%w: lookup status %d", ErrPositionUnavailable, resp.StatusCode)
	}

	var body ipapiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Fix{}, fmt.Errorf("%w: decode lookup: %v", ErrPositionUnavailable, err)
	}
	if body.Status != "" && body.Status != "success" {
		return Fix{}, fmt.Errorf("%w: %s", ErrPositionUnavailable, body.Message)
	}
	return Fix{Lat: body.Lat, Lng: body.Lon, At: time.Now()}, nil
}
