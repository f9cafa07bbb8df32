// Package router is the chi-based HTTP front-end demo surface over a
// region cache: point-in-region coding, manual eviction, a size
// snapshot, and a Prometheus scrape endpoint.
package router

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/civicgrid/regioncache/internal/core/health"
	"github.com/civicgrid/regioncache/internal/core/middleware"
	"github.com/civicgrid/regioncache/internal/core/model"
	"github.com/civicgrid/regioncache/internal/ingress/shapefile"
	"github.com/civicgrid/regioncache/internal/regioncache"
	"github.com/civicgrid/regioncache/internal/spatial"
)

// SpatialCache is the subset of SpatialRegionCache the router depends
// on, narrowed so it can be faked in tests without a real dataset.
type SpatialCache interface {
	GetFromSoda(ctx context.Context, key model.RegionCacheKey, valueColumn string) *regioncache.Future[*spatial.Index[int]]
	GetFromFeatures(key model.RegionCacheKey, fc *geojson.FeatureCollection) *regioncache.Future[*spatial.Index[int]]
	Evict(key model.RegionCacheKey) bool
	IndicesBySizeDesc() []regioncache.SizedKey
}

// New builds the chi router. reg is the Prometheus registry to expose
// at /metrics; it may be nil to omit that route (tests that don't care
// about metrics).
func New(cache SpatialCache, reg prometheus.Gatherer, log *zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(log))
	r.Use(middleware.Logging(log))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	if reg != nil {
		r.Get("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP)
	}
	r.Get("/regions/{resource}/{column}/code", handleCode(cache))
	r.Post("/regions/{resource}/{column}/reset", handleReset(cache))
	r.Post("/regions/{resource}/{column}/load-shapefile", handleLoadShapefile(cache))
	r.Get("/regions/sizes", handleSizes(cache))

	return r
}

func handleCode(cache SpatialCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resource := chi.URLParam(r, "resource")
		column := chi.URLParam(r, "column")

		lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
		if err != nil {
			http.Error(w, "invalid or missing lon", http.StatusBadRequest)
			return
		}
		lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
		if err != nil {
			http.Error(w, "invalid or missing lat", http.StatusBadRequest)
			return
		}

		key := model.RegionCacheKey{Resource: resource, Column: column}
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		idx, err := cache.GetFromSoda(ctx, key, column).Wait(ctx)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}

		entry, ok := idx.FirstContains(orb.Point{lon, lat})
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"found": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"found": true, "code": entry.Value})
	}
}

func handleReset(cache SpatialCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := model.RegionCacheKey{
			Resource: chi.URLParam(r, "resource"),
			Column:   chi.URLParam(r, "column"),
		}
		evicted := cache.Evict(key)
		writeJSON(w, http.StatusOK, map[string]any{"evicted": evicted})
	}
}

// handleLoadShapefile converts a server-local .shp/.dbf pair (path is
// an operator-supplied filesystem path, not user-uploaded content) into
// a FeatureCollection and populates the cache entry for resource/column
// without a remote fetch — the production caller of
// RegionCache.GetFromFeatures.
func handleLoadShapefile(cache SpatialCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("path")
		if path == "" {
			http.Error(w, "missing required parameter: path", http.StatusBadRequest)
			return
		}

		fc, err := shapefile.Convert(path)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		key := model.RegionCacheKey{
			Resource: chi.URLParam(r, "resource"),
			Column:   chi.URLParam(r, "column"),
		}
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		idx, err := cache.GetFromFeatures(key, fc).Wait(ctx)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": idx.NumEntries()})
	}
}

func handleSizes(cache SpatialCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sizes := cache.IndicesBySizeDesc()
		out := make([]map[string]any, 0, len(sizes))
		for _, s := range sizes {
			out = append(out, map[string]any{
				"resource": s.Key.Resource,
				"column":   s.Key.Column,
				"size":     s.Size,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
