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
	"github.com/civicgrid/regioncache/internal/spatial"
)

// SpatialRegionCache is the RegionCache specialization over
// spatial.Index[int] (spec.md §4.5): sizeOf is the indexed entries'
// total coordinate count, since storage and CPU cost of a spatial entry
// scale with coordinates, not feature count.
type SpatialRegionCache struct {
	core *Core[*spatial.Index[int]]
}

// NewSpatialRegionCache constructs a spatial region cache named name
// (used as the Prometheus "cache" label).
func NewSpatialRegionCache(name string, cfg Config, dataset remotedataset.Dataset, gov *memgov.Governor, metrics *observability.Metrics, log *zerolog.Logger) *SpatialRegionCache {
	c := &SpatialRegionCache{}
	c.core = NewCore[*spatial.Index[int]](name, cfg, spatialHooks{}, dataset, gov, metrics, log)
	return c
}

func (c *SpatialRegionCache) GetFromFeatures(key model.RegionCacheKey, fc *geojson.FeatureCollection) *Future[*spatial.Index[int]] {
	return c.core.GetFromFeatures(key, fc)
}

func (c *SpatialRegionCache) GetFromSoda(ctx context.Context, key model.RegionCacheKey, valueColumn string) *Future[*spatial.Index[int]] {
	return c.core.GetFromSoda(ctx, key, valueColumn)
}

func (c *SpatialRegionCache) IndicesBySizeDesc() []SizedKey { return c.core.IndicesBySizeDesc() }
func (c *SpatialRegionCache) Reset()                        { c.core.Reset() }
func (c *SpatialRegionCache) Len() int                      { return c.core.Len() }
func (c *SpatialRegionCache) Evict(key model.RegionCacheKey) bool { return c.core.Evict(key) }
func (c *SpatialRegionCache) EvictSmallest() bool           { return c.core.EvictSmallest() }
func (c *SpatialRegionCache) RunDepressurizeLoop(ctx context.Context) { c.core.RunDepressurizeLoop(ctx) }

type spatialHooks struct{}

func (spatialHooks) BuildFromFeatures(fc *geojson.FeatureCollection, _ string, pace geofeature.Pacer, log *zerolog.Logger) (*spatial.Index[int], error) {
	entries := geofeature.ToSpatialEntries(fc, FeatureIDAttr, pace, log)
	return spatial.Build(entries)
}

func (spatialHooks) BuildFromFeatureJSON(fc *geojson.FeatureCollection, _ string, _ string, valueAttr string, pace geofeature.Pacer, log *zerolog.Logger) (*spatial.Index[int], error) {
	entries := geofeature.ToSpatialEntries(fc, valueAttr, pace, log)
	return spatial.Build(entries)
}

func (spatialHooks) SizeOf(idx *spatial.Index[int]) int {
	return idx.NumCoordinates()
}
