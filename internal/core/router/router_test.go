package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/civicgrid/regioncache/internal/core/model"
	"github.com/civicgrid/regioncache/internal/regioncache"
	"github.com/civicgrid/regioncache/internal/spatial"
)

type fakeCache struct {
	idx      *spatial.Index[int]
	err      error
	evictKey model.RegionCacheKey
	evicted  bool
	sizes    []regioncache.SizedKey

	featuresIdx *spatial.Index[int]
	featuresErr error
	gotFC       *geojson.FeatureCollection
}

func (f *fakeCache) GetFromSoda(ctx context.Context, key model.RegionCacheKey, valueColumn string) *regioncache.Future[*spatial.Index[int]] {
	return regioncache.NewResolvedFuture(f.idx, f.err)
}

func (f *fakeCache) GetFromFeatures(key model.RegionCacheKey, fc *geojson.FeatureCollection) *regioncache.Future[*spatial.Index[int]] {
	f.gotFC = fc
	return regioncache.NewResolvedFuture(f.featuresIdx, f.featuresErr)
}

func (f *fakeCache) Evict(key model.RegionCacheKey) bool {
	f.evictKey = key
	return f.evicted
}

func (f *fakeCache) IndicesBySizeDesc() []regioncache.SizedKey {
	return f.sizes
}

func square(minX, minY, maxX, maxY float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}}
}

func TestHandleCode_PointInsideRegion(t *testing.T) {
	idx, err := spatial.Build([]spatial.Entry[int]{
		spatial.NewEntry[int](square(0, 0, 10, 10), 42),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	cache := &fakeCache{idx: idx}
	h := New(cache, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/regions/wards/the_geom/code?lon=5&lat=5", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["found"] != true {
		t.Fatalf("body = %v, want found=true", body)
	}
	if int(body["code"].(float64)) != 42 {
		t.Fatalf("code = %v, want 42", body["code"])
	}
}

func TestHandleCode_PointOutsideRegionIs404(t *testing.T) {
	idx, _ := spatial.Build([]spatial.Entry[int]{
		spatial.NewEntry[int](square(0, 0, 10, 10), 42),
	})
	cache := &fakeCache{idx: idx}
	h := New(cache, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/regions/wards/the_geom/code?lon=100&lat=100", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestHandleCode_MissingLonIsBadRequest(t *testing.T) {
	h := New(&fakeCache{}, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/regions/wards/the_geom/code?lat=5", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestHandleReset_CallsEvictWithParsedKey(t *testing.T) {
	cache := &fakeCache{evicted: true}
	h := New(cache, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/regions/wards/the_geom/reset", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	want := model.RegionCacheKey{Resource: "wards", Column: "the_geom"}
	if cache.evictKey != want {
		t.Fatalf("evictKey = %+v, want %+v", cache.evictKey, want)
	}
}

func TestHandleSizes_ReturnsJSONArray(t *testing.T) {
	cache := &fakeCache{sizes: []regioncache.SizedKey{
		{Key: model.RegionCacheKey{Resource: "wards", Column: "the_geom"}, Size: 51},
	}}
	h := New(cache, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/regions/sizes", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var out []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 1 || out[0]["resource"] != "wards" {
		t.Fatalf("out = %v", out)
	}
}

func TestHandleLoadShapefile_MissingPathIsBadRequest(t *testing.T) {
	h := New(&fakeCache{}, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/regions/wards/the_geom/load-shapefile", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestHandleLoadShapefile_ConvertErrorIsBadRequest(t *testing.T) {
	cache := &fakeCache{}
	h := New(cache, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/regions/wards/the_geom/load-shapefile?path=/does/not/exist.shp", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body = %s", rr.Code, rr.Body.String())
	}
	if cache.gotFC != nil {
		t.Fatalf("cache should not have been reached on a convert error")
	}
}

func TestHealthz_OK(t *testing.T) {
	h := New(&fakeCache{}, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}
