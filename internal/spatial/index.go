package spatial

import (
	"errors"
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// leafCapacity is the branching factor (M) used by the STR packing
// algorithm for both leaf and internal node fan-out.
const leafCapacity = 16

// node is one level of the bulk-loaded R-tree. Leaf nodes carry entries
// directly; internal nodes carry children. Both carry a precomputed
// bound used to prune queries before the exact containment test runs.
type node[T any] struct {
	bound    orb.Bound
	entries  []Entry[T] // leaf only
	children []*node[T] // internal only
}

func (n *node[T]) isLeaf() bool { return n.children == nil }

// Index is an immutable, bulk-loaded (STR-packed) spatial index over
// Entry[T] values. Build performance and query performance are both
// independent of insertion order. Queries use the tree to find
// candidates whose bound intersects the query geometry's bound, then
// apply the exact containment predicate.
type Index[T any] struct {
	root           *node[T]
	numCoordinates int
	numEntries     int
}

// ErrDegenerateGeometry is returned by Build when an entry carries a nil
// geometry or a geometry with an empty bound.
var ErrDegenerateGeometry = errors.New("spatial: degenerate or nil geometry in entry")

// Build bulk-loads entries into a new Index using sort-tile-recursive
// (STR) packing. An empty sequence is legal and produces an empty index.
func Build[T any](entries []Entry[T]) (*Index[T], error) {
	numCoords := 0
	leaves := make([]*node[T], 0, len(entries))
	for _, e := range entries {
		if e.Geom == nil {
			return nil, ErrDegenerateGeometry
		}
		b := e.Geom.Bound()
		if b.IsEmpty() {
			return nil, ErrDegenerateGeometry
		}
		numCoords += coordinateCount(e.Geom)
		leaves = append(leaves, &node[T]{bound: b, entries: []Entry[T]{e}})
	}

	if len(leaves) == 0 {
		return &Index[T]{root: &node[T]{bound: orb.Bound{}, entries: nil}}, nil
	}

	// Group raw per-entry leaf nodes into actual leaves of leafCapacity
	// entries each via STR packing, then repeatedly pack levels upward
	// until a single root remains.
	packed := strPackLeaves(leaves)
	for len(packed) > 1 {
		packed = strPackInternal(packed)
	}

	return &Index[T]{root: packed[0], numCoordinates: numCoords, numEntries: len(entries)}, nil
}

// strPackLeaves groups per-entry nodes into true leaf nodes (each
// holding up to leafCapacity entries) using the STR tiling: sort by X
// center into vertical slices of sqrt(N/M) width, then sort each slice
// by Y center and chunk into groups of M.
func strPackLeaves[T any](items []*node[T]) []*node[T] {
	n := len(items)
	leafCount := ceilDiv(n, leafCapacity)
	sliceCount := int(math.Ceil(math.Sqrt(float64(leafCount))))
	if sliceCount < 1 {
		sliceCount = 1
	}
	sliceSize := ceilDiv(n, sliceCount)

	sort.Slice(items, func(i, j int) bool {
		return centerX(items[i].bound) < centerX(items[j].bound)
	})

	out := make([]*node[T], 0, leafCount)
	for start := 0; start < n; start += sliceSize {
		end := start + sliceSize
		if end > n {
			end = n
		}
		slice := items[start:end]
		sort.Slice(slice, func(i, j int) bool {
			return centerY(slice[i].bound) < centerY(slice[j].bound)
		})
		for i := 0; i < len(slice); i += leafCapacity {
			j := i + leafCapacity
			if j > len(slice) {
				j = len(slice)
			}
			group := slice[i:j]
			leaf := &node[T]{entries: make([]Entry[T], 0, len(group))}
			b := group[0].bound
			for _, g := range group {
				leaf.entries = append(leaf.entries, g.entries[0])
				b = b.Union(g.bound)
			}
			leaf.bound = b
			out = append(out, leaf)
		}
	}
	return out
}

// strPackInternal groups a level of nodes into parent nodes, using the
// same STR tiling as strPackLeaves but over child bounds instead of
// per-entry bounds.
func strPackInternal[T any](items []*node[T]) []*node[T] {
	n := len(items)
	parentCount := ceilDiv(n, leafCapacity)
	sliceCount := int(math.Ceil(math.Sqrt(float64(parentCount))))
	if sliceCount < 1 {
		sliceCount = 1
	}
	sliceSize := ceilDiv(n, sliceCount)

	sort.Slice(items, func(i, j int) bool {
		return centerX(items[i].bound) < centerX(items[j].bound)
	})

	out := make([]*node[T], 0, parentCount)
	for start := 0; start < n; start += sliceSize {
		end := start + sliceSize
		if end > n {
			end = n
		}
		slice := items[start:end]
		sort.Slice(slice, func(i, j int) bool {
			return centerY(slice[i].bound) < centerY(slice[j].bound)
		})
		for i := 0; i < len(slice); i += leafCapacity {
			j := i + leafCapacity
			if j > len(slice) {
				j = len(slice)
			}
			group := slice[i:j]
			parent := &node[T]{children: make([]*node[T], 0, len(group))}
			b := group[0].bound
			for _, g := range group {
				parent.children = append(parent.children, g)
				b = b.Union(g.bound)
			}
			parent.bound = b
			out = append(out, parent)
		}
	}
	return out
}

func centerX(b orb.Bound) float64 { return (b.Min[0] + b.Max[0]) / 2 }
func centerY(b orb.Bound) float64 { return (b.Min[1] + b.Max[1]) / 2 }

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}

// NumCoordinates returns the total coordinate count across all indexed
// entries — the size metric used for eviction (spec.md §4.1, §4.5).
func (idx *Index[T]) NumCoordinates() int {
	if idx == nil {
		return 0
	}
	return idx.numCoordinates
}

// NumEntries returns the number of indexed entries.
func (idx *Index[T]) NumEntries() int {
	if idx == nil {
		return 0
	}
	return idx.numEntries
}

// WhatContains returns every entry whose geometry contains g. Order is
// unspecified.
func (idx *Index[T]) WhatContains(g orb.Geometry) []Entry[T] {
	if idx == nil || idx.root == nil || g == nil {
		return nil
	}
	var out []Entry[T]
	qb := g.Bound()
	walk(idx.root, qb, func(e Entry[T]) bool {
		if contains(e.Geom, g) {
			out = append(out, e)
		}
		return true
	})
	return out
}

// FirstContains returns any one entry whose geometry contains g, and
// whether such an entry exists. It short-circuits the tree walk on the
// first match.
func (idx *Index[T]) FirstContains(g orb.Geometry) (Entry[T], bool) {
	if idx == nil || idx.root == nil || g == nil {
		return Entry[T]{}, false
	}
	var (
		found Entry[T]
		ok    bool
	)
	qb := g.Bound()
	walk(idx.root, qb, func(e Entry[T]) bool {
		if contains(e.Geom, g) {
			found, ok = e, true
			return false // stop walking
		}
		return true
	})
	return found, ok
}

// walk visits every leaf entry whose bound intersects qb, invoking visit
// for each; visit returns false to stop the walk early.
func walk[T any](n *node[T], qb orb.Bound, visit func(Entry[T]) bool) bool {
	if n == nil || (len(n.entries) == 0 && len(n.children) == 0) {
		return true
	}
	if !n.bound.Intersects(qb) {
		return true
	}
	if n.isLeaf() {
		for _, e := range n.entries {
			if !visit(e) {
				return false
			}
		}
		return true
	}
	for _, child := range n.children {
		if !walk(child, qb, visit) {
			return false
		}
	}
	return true
}
