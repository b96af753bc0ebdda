package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-pakmap/internal/api"
	"github.com/joeblew999/plat-pakmap/internal/geolocate"
	"github.com/joeblew999/plat-pakmap/internal/logging"
	"github.com/joeblew999/plat-pakmap/internal/server"
	"github.com/joeblew999/plat-pakmap/internal/service"
	"github.com/joeblew999/plat-pakmap/internal/upstream"
)

// Options defines all CLI flags and env vars for the map server.
// Flags: --host, --port, --data-dir, --store, --locator, --log-level, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_STORE, ...
type Options struct {
	Host            string `doc:"Host to bind to" default:"0.0.0.0"`
	Port            int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir         string `doc:"Directory for preference data" default:".data"`
	WMSURL          string `doc:"GeoServer WMS endpoint for the overlays" default:"http://localhost:8080/geoserver/pakistan_map/wms"`
	BaseTileURL     string `doc:"Base raster tile template" default:"https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"`
	Store           string `doc:"Preference store: file, duckdb or memory" default:"file"`
	Locator         string `doc:"Geolocation mode: browser, ipapi or none" default:"browser"`
	IPAPIURL        string `doc:"ip-api compatible endpoint for --locator ipapi" default:"http://ip-api.com/json/"`
	UpstreamProxy   string `doc:"Proxy for WMS and ip-api requests (socks5:// or http://)" default:""`
	UpstreamTimeout int    `doc:"Timeout for upstream requests in seconds" default:"15"`
	SessionTTL      int    `doc:"Hours an idle browser session is kept" default:"24"`
	MaxSessions     int    `doc:"Maximum live browser sessions" default:"10000"`
	LogLevel        string `doc:"Log level: debug, info, warn, error" default:"info"`
	LogFormat       string `doc:"Log format: text or json" default:"text"`
}

func newServer(opts *Options) (*server.Server, error) {
	logger := logging.Setup(opts.LogLevel, opts.LogFormat)
	return server.New(server.Config{
		Host:            opts.Host,
		Port:            fmt.Sprintf("%d", opts.Port),
		DataDir:         opts.DataDir,
		WMSURL:          opts.WMSURL,
		BaseTileURL:     opts.BaseTileURL,
		Store:           opts.Store,
		Locator:         opts.Locator,
		IPAPIURL:        opts.IPAPIURL,
		UpstreamProxy:   opts.UpstreamProxy,
		UpstreamTimeout: time.Duration(opts.UpstreamTimeout) * time.Second,
		SessionTTL:      time.Duration(opts.SessionTTL) * time.Hour,
		MaxSessions:     opts.MaxSessions,
		Logger:          logger,
	})
}

func mustServer(opts *Options) *server.Server {
	srv, err := newServer(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return srv
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var srv *server.Server

		hooks.OnStart(func() {
			srv = mustServer(opts)
			defer srv.Close()

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-pakmap server starting...\n")
			fmt.Printf("  Map:     %s/\n", baseURL)
			fmt.Printf("  WMS:     %s\n", opts.WMSURL)
			fmt.Printf("  Store:   %s (%s)\n", opts.Store, opts.DataDir)
			fmt.Printf("  Locate:  %s\n", opts.Locator)
			fmt.Println()
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			if err := http.ListenAndServe(addr, srv); err != nil {
				slog.Error("server error", "error", err)
				os.Exit(1)
			}
		})
	})

	cli.Root().Use = "pakmap"
	cli.Root().Short = "Interactive map of Pakistan with place search and GeoServer overlays"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			opts.Store = server.StoreMemory
			srv := mustServer(opts)
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			var err error
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// search subcommand: run the place matcher from the terminal
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the place catalog the same way the map does",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			res := service.DefaultCatalog().Search(strings.Join(args, " "))
			switch {
			case !res.Active:
				fmt.Printf("Query too short (minimum %d characters)\n", service.MinQueryLength)
			case res.Empty():
				fmt.Println("No results found")
			default:
				for _, p := range res.Items {
					fmt.Printf("%-40s %s • %s\n", p.Name, p.Type, p.Category)
					fmt.Printf("  %s  (id %s)\n", service.FormatPointer(p.Lat, p.Lng), p.ID)
				}
			}
		},
	}
	cli.Root().AddCommand(searchCmd)

	// layers subcommand: list overlays with a sample GetMap request
	layersCmd := &cobra.Command{
		Use:   "layers",
		Short: "List WMS overlays with a sample GetMap URL",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			layers := service.NewLayerService(opts.WMSURL, opts.BaseTileURL)
			fmt.Printf("Base: %s\n\n", layers.BaseTileURL())
			for _, l := range layers.List() {
				sample, err := layers.GetMapURL(l.ID, api.SampleTile)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
					os.Exit(1)
				}
				fmt.Printf("%-10s %s\n  %s\n", l.ID, l.WMSLayer, sample)
			}
		}),
	}
	cli.Root().AddCommand(layersCmd)

	// locate subcommand: one ip-api lookup, useful to check --upstream-proxy
	locateCmd := &cobra.Command{
		Use:   "locate",
		Short: "Look up this machine's approximate position via ip-api",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			client, err := upstream.NewClient(opts.UpstreamProxy, time.Duration(opts.UpstreamTimeout)*time.Second)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			l := &geolocate.IPAPI{URL: opts.IPAPIURL, Client: client}
			fix, err := l.Locate(cmd.Context(), geolocate.DefaultOptions)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(service.FormatFix(fix.Lat, fix.Lng))
		}),
	}
	cli.Root().AddCommand(locateCmd)

	cli.Run()
}
