// Package regioncache implements the abstract RegionCache engine from
// spec.md §4.4: a bounded, single-flight, memory-pressure-aware cache of
// futures keyed by RegionCacheKey. SpatialRegionCache and
// HashMapRegionCache (spec.md §4.5–4.6) are concrete specializations
// that differ only in the three hooks spec.md §4.4 calls out
// (buildFromFeatures, buildFromFeatureJson, sizeOf) — modeled here as
// the Hooks[T] interface, the idiomatic Go stand-in for the source's
// abstract-class-with-hooks shape.
package regioncache

import (
	"container/list"
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/civicgrid/regioncache/internal/core/model"
	"github.com/civicgrid/regioncache/internal/core/observability"
	"github.com/civicgrid/regioncache/internal/geofeature"
	"github.com/civicgrid/regioncache/internal/memgov"
	"github.com/civicgrid/regioncache/internal/remotedataset"
)

// FeatureIDAttr is the conventional GeoJSON property FeatureDecoder
// parses the cache value from (spec.md §6).
const FeatureIDAttr = "_feature_id"

// Hooks is implemented per concrete cache flavor (spatial, hash-map),
// supplying the three abstract operations spec.md §4.4 assigns to
// subclasses. column/keyAttr/valueAttr follow the §4.2/§4.4/§4.5–4.6
// naming exactly: column narrows a features-based build, keyAttr is the
// configured key attribute for a hash-map build, valueAttr is the
// feature-id attribute (always FeatureIDAttr in this repo).
type Hooks[T any] interface {
	BuildFromFeatures(fc *geojson.FeatureCollection, column string, pace geofeature.Pacer, log *zerolog.Logger) (T, error)
	BuildFromFeatureJSON(fc *geojson.FeatureCollection, resource, keyAttr, valueAttr string, pace geofeature.Pacer, log *zerolog.Logger) (T, error)
	SizeOf(idx T) int
}

// SizedKey is one row of an IndicesBySizeDesc snapshot.
type SizedKey struct {
	Key  model.RegionCacheKey
	Size int
}

type slot[T any] struct {
	key     model.RegionCacheKey
	future  *Future[T]
	elem    *list.Element // this slot's element in Core.lru
	lastUse time.Time
}

// Core is the shared RegionCache engine. It is not used directly;
// SpatialRegionCache and HashMapRegionCache each wrap one, parameterized
// by their own Hooks[T] implementation (spec.md §9's "abstract cache
// with typed index" design note).
type Core[T any] struct {
	name    string
	cfg     Config
	hooks   Hooks[T]
	dataset remotedataset.Dataset
	gov     *memgov.Governor
	metrics *observability.Metrics
	log     *zerolog.Logger
	now     func() time.Time

	mu     sync.Mutex
	slots  map[model.RegionCacheKey]*slot[T]
	lru    *list.List // front = most recently used
}

// NewCore constructs the shared engine for one cache flavor. name is the
// Prometheus "cache" label and the component field in log lines.
func NewCore[T any](name string, cfg Config, hooks Hooks[T], dataset remotedataset.Dataset, gov *memgov.Governor, metrics *observability.Metrics, log *zerolog.Logger) *Core[T] {
	return &Core[T]{
		name:    name,
		cfg:     cfg.withDefaults(),
		hooks:   hooks,
		dataset: dataset,
		gov:     gov,
		metrics: metrics,
		log:     log,
		now:     time.Now,
		slots:   make(map[model.RegionCacheKey]*slot[T]),
		lru:     list.New(),
	}
}

// GetFromFeatures returns key's future, installing a new population that
// builds directly from in-memory features (no remote fetch) if key is
// not already present. Single-flight: concurrent callers for the same
// key observe exactly one call to hooks.BuildFromFeatures.
func (c *Core[T]) GetFromFeatures(key model.RegionCacheKey, fc *geojson.FeatureCollection) *Future[T] {
	return c.getOrInstall(key, func(fut *Future[T]) {
		c.prepForCaching()
		start := c.now()
		val, err := c.hooks.BuildFromFeatures(fc, key.Column, c.pacer(), c.log)
		c.observeBuild(time.Since(start))
		if err != nil {
			c.logf("index build failed").Err(err).Str("key", key.String()).Msg("region cache population failed")
		}
		fut.resolve(val, err)
	})
}

// GetFromSoda returns key's future, installing a new population that
// fetches from the remote dataset through c.dataset if key is not
// already present. If key.Envelope is set, the SoQL query is narrowed
// to features intersecting it (spec.md §6).
func (c *Core[T]) GetFromSoda(ctx context.Context, key model.RegionCacheKey, valueColumn string) *Future[T] {
	return c.getOrInstall(key, func(fut *Future[T]) {
		c.prepForCaching()

		var env *model.Envelope
		if key.HasEnvelope {
			e := key.Envelope
			env = &e
		}
		soql, err := remotedataset.BuildSoQL(valueColumn, env)
		if err != nil {
			fut.resolve(zero[T](), err)
			return
		}

		fetchStart := c.now()
		// The population outlives the caller that started it; other
		// waiters share its result, so the caller's cancellation is
		// not propagated to the fetch.
		resp, transportErr := c.dataset.Query(context.WithoutCancel(ctx), key.Resource, "geojson", soql)
		c.observeFetch(time.Since(fetchStart))

		body, checkErr := remotedataset.Check(resp, transportErr, http.StatusOK)
		if checkErr != nil {
			c.logf("soda fetch failed").Err(checkErr).Str("key", key.String()).Msg("region cache remote fetch failed")
			fut.resolve(zero[T](), checkErr)
			return
		}

		fc, parseErr := geojson.UnmarshalFeatureCollection(body)
		if parseErr != nil {
			gerr := &remotedataset.GeoJSONFormatError{Cause: parseErr}
			c.logf("geojson parse failed").Err(gerr).Str("key", key.String()).Msg("region cache could not parse response")
			fut.resolve(zero[T](), gerr)
			return
		}

		buildStart := c.now()
		val, buildErr := c.hooks.BuildFromFeatureJSON(fc, key.Resource, key.Column, FeatureIDAttr, c.pacer(), c.log)
		c.observeBuild(time.Since(buildStart))
		if buildErr != nil {
			c.logf("index build failed").Err(buildErr).Str("key", key.String()).Msg("region cache population failed")
		}
		fut.resolve(val, buildErr)
	})
}

// getOrInstall is the single-flight, structural-lock-protected
// lookup-and-install step spec.md §4.4 requires be atomic.
func (c *Core[T]) getOrInstall(key model.RegionCacheKey, populate func(*Future[T])) *Future[T] {
	c.mu.Lock()
	if s, ok := c.slots[key]; ok {
		c.touchLocked(s)
		fut := s.future
		c.mu.Unlock()
		return fut
	}

	s := &slot[T]{key: key, future: newFuture[T](), lastUse: c.now()}
	s.elem = c.lru.PushFront(s)
	c.slots[key] = s
	c.enforceCapacityLocked()
	c.reportCountLocked()
	c.mu.Unlock()

	go populate(s.future)
	return s.future
}

func (c *Core[T]) touchLocked(s *slot[T]) {
	s.lastUse = c.now()
	c.lru.MoveToFront(s.elem)
}

// enforceCapacityLocked evicts least-recently-used slots, oldest first,
// until len(slots) <= cfg.MaxEntries. Called with c.mu held.
func (c *Core[T]) enforceCapacityLocked() {
	for len(c.slots) > c.cfg.MaxEntries {
		back := c.lru.Back()
		if back == nil {
			return
		}
		victim := back.Value.(*slot[T])
		c.removeLocked(victim, "capacity")
	}
}

// removeLocked drops a slot from both the map and the recency list.
// Called with c.mu held. A population already in flight for this slot
// continues running (spec.md §5) but its result is discarded: nothing
// still holds this slot's future once it is unlinked.
func (c *Core[T]) removeLocked(s *slot[T], cause string) {
	delete(c.slots, s.key)
	c.lru.Remove(s.elem)
	if c.metrics != nil {
		c.metrics.Evictions.WithLabelValues(c.name, cause).Inc()
	}
}

// EvictSmallest implements memgov.Evictable: it drops the smallest
// resolved entry by hooks.SizeOf, breaking ties by least-recently-used.
// In-flight and failed entries are never chosen (their size is
// unknown); EvictSmallest reports false once no resolved entry remains,
// which is also the "cache is empty" terminal condition depressurize
// loops on.
func (c *Core[T]) EvictSmallest() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	var victim *slot[T]
	smallest := -1
	for _, s := range c.slots {
		val, err, ok := s.future.TryResult()
		if !ok || err != nil {
			continue
		}
		sz := c.hooks.SizeOf(val)
		if victim == nil || sz < smallest || (sz == smallest && s.lastUse.Before(victim.lastUse)) {
			victim, smallest = s, sz
		}
	}
	if victim == nil {
		return false
	}
	c.removeLocked(victim, "pressure")
	c.reportCountLocked()
	return true
}

// Evict drops key's slot if present, forcing the next caller to
// repopulate it. This is the explicit escape hatch DESIGN.md documents
// for the "should a failed population stay cached" open question: the
// default is yes (negative caching via LRU/pressure eviction only), and
// Evict is how an external collaborator (e.g. the Kafka invalidation
// consumer) forces an earlier retry.
func (c *Core[T]) Evict(key model.RegionCacheKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[key]
	if !ok {
		return false
	}
	c.removeLocked(s, "manual")
	c.reportCountLocked()
	return true
}

// Reset removes every entry (spec.md §4.4). Safe to call concurrently
// with in-flight populations: their futures continue to run but are no
// longer reachable from this cache.
func (c *Core[T]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.metrics != nil && len(c.slots) > 0 {
		c.metrics.Evictions.WithLabelValues(c.name, "reset").Add(float64(len(c.slots)))
	}
	c.slots = make(map[model.RegionCacheKey]*slot[T])
	c.lru = list.New()
	c.reportCountLocked()
}

// Len reports the current slot count (resolved, failed, and in-flight).
func (c *Core[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}

// IndicesBySizeDesc returns a snapshot of currently-resolved entries
// sorted by hooks.SizeOf, descending; in-flight and failed entries are
// omitted (spec.md §4.4).
func (c *Core[T]) IndicesBySizeDesc() []SizedKey {
	c.mu.Lock()
	out := make([]SizedKey, 0, len(c.slots))
	for _, s := range c.slots {
		val, err, ok := s.future.TryResult()
		if !ok || err != nil {
			continue
		}
		out = append(out, SizedKey{Key: s.key, Size: c.hooks.SizeOf(val)})
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Size > out[j].Size })
	return out
}

// prepForCaching is the default no-op hook spec.md §4.4 describes;
// cross-cutting wrappers may override by enforcing a minimum free-heap
// check before allocating. This engine wires it to the governor when
// configured, rather than leaving it a pure no-op, since every concrete
// cache in this repo shares one governor.
func (c *Core[T]) prepForCaching() {
	if c.gov == nil || !c.cfg.EnableDepressurize {
		return
	}
	if err := c.gov.EnsureFree(c.cfg.MinFreePercentage, false); err != nil {
		c.logf("low memory before build").Str("cache", c.name).Msg("proceeding with population under memory pressure")
	}
}

// pacer returns the cooperative yield hook FeatureDecoder calls every
// geofeature.PaceEvery features (spec.md §4.2, §4.5): when
// depressurization is enabled it runs an eviction pass inline, the same
// primitive the background loop uses (spec.md §5).
func (c *Core[T]) pacer() geofeature.Pacer {
	if c.gov == nil || !c.cfg.EnableDepressurize {
		return nil
	}
	return func() {
		c.gov.Depressurize(c, c.cfg.TargetFreePercentage)
	}
}

// RunDepressurizeLoop polls the governor on cfg.IterationInterval and
// evicts smallest-first while free heap is below MinFreePercentage,
// until ctx is done (spec.md §5's background memory pressure loop). A
// no-op if depressurization is disabled.
func (c *Core[T]) RunDepressurizeLoop(ctx context.Context) {
	if c.gov == nil || !c.cfg.EnableDepressurize {
		return
	}
	ticker := time.NewTicker(c.cfg.IterationInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.gov.AtLeastFree(c.cfg.MinFreePercentage) {
				c.gov.Depressurize(c, c.cfg.TargetFreePercentage)
			}
		}
	}
}

func (c *Core[T]) observeFetch(d time.Duration) {
	if c.metrics != nil {
		c.metrics.FetchLatency.WithLabelValues(c.name).Observe(d.Seconds())
	}
}

func (c *Core[T]) observeBuild(d time.Duration) {
	if c.metrics != nil {
		c.metrics.BuildLatency.WithLabelValues(c.name).Observe(d.Seconds())
	}
}

func (c *Core[T]) reportCountLocked() {
	if c.metrics != nil {
		c.metrics.EntryCount.WithLabelValues(c.name).Set(float64(len(c.slots)))
	}
}

func (c *Core[T]) logf(msg string) *zerolog.Event {
	if c.log == nil {
		discard := zerolog.Nop()
		c.log = &discard
	}
	return c.log.Warn().Str("cache", c.name).Str("event", msg)
}

func zero[T any]() T {
	var z T
	return z
}
