// Package memgov estimates free heap and exposes the depressurization
// hook region caches use to evict under memory pressure (spec.md §4.3).
package memgov

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"
)

// Evictable is implemented by a cache that can give up its currently
// smallest entry. EvictSmallest returns false when the cache is empty.
type Evictable interface {
	EvictSmallest() bool
}

// OutOfMemoryPressureError is returned by EnsureFree when free heap is
// below the requested threshold.
type OutOfMemoryPressureError struct {
	FreePct int
	MinPct  int
}

func (e *OutOfMemoryPressureError) Error() string {
	return fmt.Sprintf("out of memory pressure: free=%d%% min=%d%%", e.FreePct, e.MinPct)
}

// Governor probes the Go runtime's heap usage against an optional soft
// memory limit (GOMEMLIMIT / debug.SetMemoryLimit), in place of the
// JVM's Runtime.freeMemory()/maxMemory(). freePct is only meaningful
// when a memory limit has actually been configured — i.e. the heap has
// an effective maximum — mirroring the "initial and maximum heap sizes
// are equal" precondition spec.md §4.3 requires be documented.
type Governor struct {
	mu                sync.Mutex
	iterationInterval time.Duration
	lastIteration     time.Time
	now               func() time.Time
	maxBytesOverride  int64 // test hook; 0 means consult debug.SetMemoryLimit
}

// New creates a Governor whose Depressurize loop waits at least
// iterationInterval between eviction steps.
func New(iterationInterval time.Duration) *Governor {
	return &Governor{iterationInterval: iterationInterval, now: time.Now}
}

func (g *Governor) effectiveMax(sys uint64) int64 {
	if g.maxBytesOverride > 0 {
		return g.maxBytesOverride
	}
	if limit := debug.SetMemoryLimit(-1); limit > 0 && limit != int64(^uint64(0)>>1) {
		return limit
	}
	// No soft limit configured: fall back to reported Sys so callers
	// still receive a usable (if less precise) signal.
	return int64(sys)
}

// FreeStats returns the approximate free heap in megabytes and as a
// percentage of the effective maximum.
func (g *Governor) FreeStats() (freeMB int, freePct int) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	max := g.effectiveMax(ms.Sys)
	used := int64(ms.HeapAlloc)
	free := max - used
	if free < 0 {
		free = 0
	}
	freeMB = int(free / (1024 * 1024))
	if max <= 0 {
		return freeMB, 100
	}
	freePct = int(free * 100 / max)
	return freeMB, freePct
}

// AtLeastFree reports whether the current free heap percentage meets
// or exceeds minPct.
func (g *Governor) AtLeastFree(minPct int) bool {
	_, pct := g.FreeStats()
	return pct >= minPct
}

// EnsureFree fails with an *OutOfMemoryPressureError when free heap is
// below minPct. When runCompaction is set it requests a GC cycle first,
// matching spec.md's "optionally requests a compaction cycle".
func (g *Governor) EnsureFree(minPct int, runCompaction bool) error {
	if runCompaction {
		runtime.GC()
	}
	if !g.AtLeastFree(minPct) {
		_, pct := g.FreeStats()
		return &OutOfMemoryPressureError{FreePct: pct, MinPct: minPct}
	}
	return nil
}

// Depressurize repeatedly evicts cache's smallest entry until free heap
// reaches targetPct or the cache reports itself empty, pacing eviction
// steps at least iterationInterval apart.
func (g *Governor) Depressurize(cache Evictable, targetPct int) {
	for {
		_, pct := g.FreeStats()
		if pct >= targetPct {
			return
		}
		if !cache.EvictSmallest() {
			return
		}
		g.throttle()
	}
}

func (g *Governor) throttle() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.iterationInterval <= 0 {
		return
	}
	elapsed := g.now().Sub(g.lastIteration)
	if elapsed < g.iterationInterval {
		time.Sleep(g.iterationInterval - elapsed)
	}
	g.lastIteration = g.now()
}
