package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/joeblew999/plat-pakmap/internal/geolocate"
	"github.com/joeblew999/plat-pakmap/internal/prefs"
)

// Session limits used when no option overrides them.
const (
	DefaultSessionTTL  = 24 * time.Hour
	DefaultMaxSessions = 10000
)

// SessionService keeps one Controller per browser session. Sessions idle
// longer than the TTL, or beyond the size limit, are evicted; a returning
// visitor gets a fresh controller that reloads the theme from the store.
type SessionService struct {
	cfg        ControllerConfig
	locatorFor func(session string) geolocate.Locator
	ttl        time.Duration
	max        int

	mu       sync.Mutex // serialises check-and-create in Open
	sessions *expirable.LRU[string, *Controller]
}

// SessionOption configures a SessionService.
type SessionOption func(*SessionService)

// WithIdleTTL sets how long an untouched session is kept.
func WithIdleTTL(d time.Duration) SessionOption {
	return func(s *SessionService) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithMaxSessions caps the number of live sessions, evicting the least
// recently used.
func WithMaxSessions(n int) SessionOption {
	return func(s *SessionService) {
		if n > 0 {
			s.max = n
		}
	}
}

// NewSessionService creates a session registry. locatorFor builds each
// session's locator; a nil func or a nil result means geolocation is unsupported.
func NewSessionService(cfg ControllerConfig, locatorFor func(session string) geolocate.Locator, opts ...SessionOption) *SessionService {
	s := &SessionService{
		cfg:        cfg,
		locatorFor: locatorFor,
		ttl:        DefaultSessionTTL,
		max:        DefaultMaxSessions,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sessions = expirable.NewLRU[string, *Controller](s.max, s.evicted, s.ttl)
	return s
}

func (s *SessionService) evicted(id string, _ *Controller) {
	if s.cfg.Logger != nil {
		s.cfg.Logger.Debug("session evicted", "session", id)
	}
}

// NewSessionID returns a fresh random session ID.
func NewSessionID() string {
	return uuid.NewString()
}

// ValidSessionID reports whether id looks like an ID from NewSessionID.
func ValidSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Get returns a live controller without extending its lifetime.
func (s *SessionService) Get(id string) (*Controller, bool) {
	return s.sessions.Peek(id)
}

// Open returns the controller for id, creating it on first use or after
// eviction. Every call restarts the idle timer.
func (s *SessionService) Open(ctx context.Context, id string) *Controller {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.sessions.Get(id); ok {
		s.sessions.Add(id, c)
		return c
	}

	cfg := s.cfg
	if cfg.Prefs != nil {
		cfg.Prefs = prefs.Scoped{Store: cfg.Prefs, Namespace: id}
	}
	cfg.Locator = nil
	if s.locatorFor != nil {
		cfg.Locator = s.locatorFor(id)
	}
	c := NewController(ctx, id, cfg)
	s.sessions.Add(id, c)
	return c
}

// Len returns the number of live sessions.
func (s *SessionService) Len() int {
	return s.sessions.Len()
}
