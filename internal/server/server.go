package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/joeblew999/plat-pakmap/internal/api"
	"github.com/joeblew999/plat-pakmap/internal/api/ui"
	"github.com/joeblew999/plat-pakmap/internal/db"
	"github.com/joeblew999/plat-pakmap/internal/geolocate"
	"github.com/joeblew999/plat-pakmap/internal/humastar"
	"github.com/joeblew999/plat-pakmap/internal/logging"
	"github.com/joeblew999/plat-pakmap/internal/metrics"
	"github.com/joeblew999/plat-pakmap/internal/prefs"
	"github.com/joeblew999/plat-pakmap/internal/service"
	"github.com/joeblew999/plat-pakmap/internal/templates"
	"github.com/joeblew999/plat-pakmap/internal/upstream"
	"github.com/joeblew999/plat-pakmap/internal/web"
)

// Preference store backends.
const (
	StoreFile   = "file"
	StoreDuckDB = "duckdb"
	StoreMemory = "memory"
)

// Geolocation modes.
const (
	LocatorBrowser = "browser"
	LocatorIPAPI   = "ipapi"
	LocatorNone    = "none"
)

// ErrInvalidConfig wraps every configuration problem found by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string

	WMSURL      string
	BaseTileURL string

	Store   string // file, duckdb or memory
	Locator string // browser, ipapi or none

	IPAPIURL        string
	UpstreamProxy   string
	UpstreamTimeout time.Duration

	SessionTTL  time.Duration // idle time before a session is dropped; zero uses the default
	MaxSessions int           // live session cap; zero uses the default

	Logger *slog.Logger
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if u, err := url.Parse(c.WMSURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("wms url %q is not an absolute URL", c.WMSURL))
	}
	if !strings.Contains(c.BaseTileURL, "{z}") || !strings.Contains(c.BaseTileURL, "{x}") || !strings.Contains(c.BaseTileURL, "{y}") {
		errs = append(errs, fmt.Errorf("base tile url %q must contain {z}, {x} and {y}", c.BaseTileURL))
	}
	switch c.Store {
	case StoreFile, StoreDuckDB:
		if c.DataDir == "" {
			errs = append(errs, fmt.Errorf("store %q needs a data dir", c.Store))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store))
	}
	switch c.Locator {
	case LocatorBrowser, LocatorNone:
	case LocatorIPAPI:
		if _, err := url.Parse(c.IPAPIURL); err != nil || c.IPAPIURL == "" {
			errs = append(errs, fmt.Errorf("ip-api url %q is invalid", c.IPAPIURL))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown locator %q", c.Locator))
	}
	if c.SessionTTL < 0 || c.MaxSessions < 0 {
		errs = append(errs, errors.New("session limits must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Server is the pakmap HTTP server.
type Server struct {
	config   Config
	logger   *slog.Logger
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	services *api.Services
	bus      *service.EventBus
	sessions *service.SessionService
	ui       *ui.Handler
	upstream *http.Client
	usesDB   bool
}

// New creates a new pakmap server.
func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client, err := upstream.NewClient(cfg.UpstreamProxy, cfg.UpstreamTimeout)
	if err != nil {
		return nil, fmt.Errorf("upstream client: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	renderer, err := templates.New()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	mux := http.NewServeMux()

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("plat-pakmap API", "1.0.0")
	humaConfig.Info.Description = "Interactive map of Pakistan: point of interest search, WMS overlays and the Datastar UI endpoints."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers,
		api.LinkTransformer(),
		humastar.PagerTransformer(),
		humastar.ActionTransformer(),
	)

	humaAPI := humago.New(mux, humaConfig)

	services := &api.Services{
		Catalog: service.DefaultCatalog(),
		Layers:  service.NewLayerService(cfg.WMSURL, cfg.BaseTileURL),
	}
	bus := service.NewEventBus()

	sessions := service.NewSessionService(service.ControllerConfig{
		Catalog: services.Catalog,
		Layers:  services.Layers,
		Prefs:   store,
		Bus:     bus,
		Logger:  logger,
	}, locatorFactory(cfg, client),
		service.WithIdleTTL(cfg.SessionTTL),
		service.WithMaxSessions(cfg.MaxSessions),
	)

	s := &Server{
		config:   cfg,
		logger:   logger,
		mux:      mux,
		humaAPI:  humaAPI,
		services: services,
		bus:      bus,
		sessions: sessions,
		ui:       ui.NewHandler(sessions, services.Layers, bus, renderer, logger),
		upstream: client,
		usesDB:   cfg.Store == StoreDuckDB,
	}
	s.routes()
	s.handler = logging.Middleware(logger, metrics.Observe, mux)
	return s, nil
}

func openStore(cfg Config) (prefs.Store, error) {
	switch cfg.Store {
	case StoreDuckDB:
		conn, err := db.Get(db.Config{DataDir: cfg.DataDir, DBName: "pakmap"})
		if err != nil {
			return nil, fmt.Errorf("open preference database: %w", err)
		}
		return db.NewPrefStore(conn), nil
	case StoreMemory:
		return prefs.NewMemoryStore(), nil
	default:
		return prefs.NewFileStore(cfg.DataDir), nil
	}
}

// locatorFactory returns the per-session locator constructor for the configured mode.
func locatorFactory(cfg Config, client *http.Client) func(session string) geolocate.Locator {
	switch cfg.Locator {
	case LocatorBrowser:
		return func(string) geolocate.Locator { return geolocate.NewRelay() }
	case LocatorIPAPI:
		return func(string) geolocate.Locator {
			return geolocate.NewCached(&geolocate.IPAPI{URL: cfg.IPAPIURL, Client: client})
		}
	default:
		return nil
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Services exposes the catalog and layer services for the CLI.
func (s *Server) Services() *api.Services {
	return s.services
}

// Sessions returns the session registry.
func (s *Server) Sessions() *service.SessionService {
	return s.sessions
}

// Close closes server resources.
func (s *Server) Close() error {
	if s.usesDB {
		return db.Close()
	}
	return nil
}

func (s *Server) routes() {
	// Register Huma REST API routes (OpenAPI-documented JSON endpoints)
	huma.AutoRegister(s.humaAPI, api.NewAPIHandler(s.services))
	api.NewInfoHandler(s.config.DataDir, s.config.Store, s.config.Locator, s.services).RegisterRoutes(s.humaAPI)

	// Datastar SSE routes driving the page
	s.ui.RegisterRoutes(s.humaAPI)

	s.mux.Handle("GET /static/", http.StripPrefix("/static/", web.Static()))
	s.mux.HandleFunc("GET /tiles/wms/{layer}/{z}/{x}/{file}", s.handleWMSTile)
	s.mux.HandleFunc("GET /tiles/pois/{z}/{x}/{file}", s.handlePOITile)
	s.mux.Handle("GET /metrics", metrics.Handler())
	s.mux.HandleFunc("GET /", s.ui.ServePage)
}
