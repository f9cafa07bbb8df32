package regioncache

import (
	"context"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/civicgrid/regioncache/internal/core/model"
	"github.com/civicgrid/regioncache/internal/core/observability"
	"github.com/civicgrid/regioncache/internal/geofeature"
	"github.com/civicgrid/regioncache/internal/memgov"
	"github.com/civicgrid/regioncache/internal/remotedataset"
)

// HashMapRegionCache is the RegionCache specialization over
// map[string]int (spec.md §4.6): sizeOf is simply the map's entry
// count.
type HashMapRegionCache struct {
	core *Core[map[string]int]
}

// NewHashMapRegionCache constructs a hash-map region cache named name.
func NewHashMapRegionCache(name string, cfg Config, dataset remotedataset.Dataset, gov *memgov.Governor, metrics *observability.Metrics, log *zerolog.Logger) *HashMapRegionCache {
	c := &HashMapRegionCache{}
	c.core = NewCore[map[string]int](name, cfg, hashMapHooks{}, dataset, gov, metrics, log)
	return c
}

func (c *HashMapRegionCache) GetFromFeatures(key model.RegionCacheKey, fc *geojson.FeatureCollection) *Future[map[string]int] {
	return c.core.GetFromFeatures(key, fc)
}

func (c *HashMapRegionCache) GetFromSoda(ctx context.Context, key model.RegionCacheKey, valueColumn string) *Future[map[string]int] {
	return c.core.GetFromSoda(ctx, key, valueColumn)
}

func (c *HashMapRegionCache) IndicesBySizeDesc() []SizedKey { return c.core.IndicesBySizeDesc() }
func (c *HashMapRegionCache) Reset()                        { c.core.Reset() }
func (c *HashMapRegionCache) Len() int                      { return c.core.Len() }
func (c *HashMapRegionCache) Evict(key model.RegionCacheKey) bool { return c.core.Evict(key) }
func (c *HashMapRegionCache) EvictSmallest() bool           { return c.core.EvictSmallest() }
func (c *HashMapRegionCache) RunDepressurizeLoop(ctx context.Context) { c.core.RunDepressurizeLoop(ctx) }

type hashMapHooks struct{}

// BuildFromFeatures implements MapRegionCache.buildFromFeatures
// symmetrically rather than leaving it unsupported (DESIGN.md's Open
// Question #3): column is the key attribute, matching the
// getFromSoda/getFromFeatureJson path below.
func (hashMapHooks) BuildFromFeatures(fc *geojson.FeatureCollection, column string, pace geofeature.Pacer, log *zerolog.Logger) (map[string]int, error) {
	return geofeature.ToKeyMap(fc, column, FeatureIDAttr, pace, log), nil
}

func (hashMapHooks) BuildFromFeatureJSON(fc *geojson.FeatureCollection, _ string, keyAttr string, valueAttr string, pace geofeature.Pacer, log *zerolog.Logger) (map[string]int, error) {
	return geofeature.ToKeyMap(fc, keyAttr, valueAttr, pace, log), nil
}

func (hashMapHooks) SizeOf(idx map[string]int) int {
	return len(idx)
}
