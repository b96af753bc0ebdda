package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathLabel(t *testing.T) {
	var got string
	record := func(w http.ResponseWriter, r *http.Request) { got = pathLabel(r) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /tiles/pois/{z}/{x}/{file}", record)
	mux.HandleFunc("GET /api/v1/pois/{id}", record)
	mux.HandleFunc("GET /api/v1/pois/nearest", record)
	mux.HandleFunc("/static/", record)

	tests := []struct {
		path string
		want string
	}{
		{"/tiles/pois/3/5/2.mvt", "/tiles/pois/{z}/{x}/{file}"},
		{"/tiles/pois/9/301/170.mvt", "/tiles/pois/{z}/{x}/{file}"},
		{"/api/v1/pois/lahore", "/api/v1/pois/{id}"},
		{"/api/v1/pois/nearest", "/api/v1/pois/nearest"},
		{"/static/pakmap.js", "/static/"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got = ""
			mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPathLabelUnmatched(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(http.ResponseWriter, *http.Request) {})

	for _, path := range []string{"/wp-login.php", "/a/b/c/d", "/health/extra"} {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, UnmatchedPath, pathLabel(r), path)
	}
}
