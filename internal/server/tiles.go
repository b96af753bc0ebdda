package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/paulmach/orb/maptile"

	"github.com/joeblew999/plat-pakmap/internal/metrics"
	"github.com/joeblew999/plat-pakmap/internal/service"
)

// handleWMSTile answers an XYZ tile request with the matching WMS GetMap image.
// Tiles are streamed through and never cached.
func (s *Server) handleWMSTile(w http.ResponseWriter, r *http.Request) {
	layer := r.PathValue("layer")
	tile, ok := parseTile(r.PathValue("z"), r.PathValue("x"), r.PathValue("file"), ".png")
	if !ok {
		http.Error(w, "invalid tile coordinates", http.StatusBadRequest)
		return
	}

	target, err := s.services.Layers.GetMapURL(layer, tile)
	if errors.Is(err, service.ErrUnknownLayer) {
		http.Error(w, "unknown layer", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		http.Error(w, "bad upstream request", http.StatusInternalServerError)
		return
	}
	resp, err := s.upstream.Do(req)
	if err != nil {
		metrics.WMSFetches.WithLabelValues(layer, "error").Inc()
		s.logger.Warn("wms fetch failed", "layer", layer, "error", err)
		http.Error(w, "map server unavailable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()
	metrics.WMSFetches.WithLabelValues(layer, strconv.Itoa(resp.StatusCode)).Inc()

	ct := resp.Header.Get("Content-Type")
	// GeoServer reports errors as a 200 XML ServiceException.
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(ct, "image/") {
		s.logger.Warn("wms fetch rejected", "layer", layer, "status", resp.StatusCode, "content_type", ct)
		http.Error(w, "map server error", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "no-store")
	if _, err := io.Copy(w, resp.Body); err != nil {
		s.logger.Debug("wms copy interrupted", "layer", layer, "error", err)
	}
}

// handlePOITile serves the catalog as Mapbox Vector Tiles for vector map clients.
func (s *Server) handlePOITile(w http.ResponseWriter, r *http.Request) {
	tile, ok := parseTile(r.PathValue("z"), r.PathValue("x"), r.PathValue("file"), ".mvt")
	if !ok {
		http.Error(w, "invalid tile coordinates", http.StatusBadRequest)
		return
	}
	data, err := s.services.Catalog.VectorTile(tile)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if data == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.mapbox-vector-tile")
	w.Write(data)
}

// parseTile reads z, x and "y<ext>" path segments.
func parseTile(zs, xs, file, ext string) (maptile.Tile, bool) {
	ys, ok := strings.CutSuffix(file, ext)
	if !ok {
		return maptile.Tile{}, false
	}
	z, err := strconv.ParseUint(zs, 10, 32)
	if err != nil {
		return maptile.Tile{}, false
	}
	x, err := strconv.ParseUint(xs, 10, 32)
	if err != nil {
		return maptile.Tile{}, false
	}
	y, err := strconv.ParseUint(ys, 10, 32)
	if err != nil {
		return maptile.Tile{}, false
	}
	return maptile.New(uint32(x), uint32(y), maptile.Zoom(z)), true
}
