// Package model defines the domain types shared across the region cache.
package model

import "fmt"

// Envelope is an axis-aligned bounding box (minX, minY, maxX, maxY) in the
// dataset's native CRS.
type Envelope struct {
	MinX, MinY, MaxX, MaxY float64
}

func (e Envelope) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", e.MinX, e.MinY, e.MaxX, e.MaxY)
}

// RegionCacheKey identifies one cacheable index: a (resource, column) pair
// from the remote dataset, optionally narrowed to an envelope. It is a
// plain comparable struct so it can be used directly as a Go map key —
// keys with equal fields are the same cache slot, per spec.
type RegionCacheKey struct {
	Resource     string
	Column       string
	HasEnvelope  bool
	Envelope     Envelope
}

// WithEnvelope returns a copy of the key narrowed to env.
func (k RegionCacheKey) WithEnvelope(env Envelope) RegionCacheKey {
	k.HasEnvelope = true
	k.Envelope = env
	return k
}

// String renders a stable, human-readable form for logs and metrics labels.
func (k RegionCacheKey) String() string {
	if !k.HasEnvelope {
		return fmt.Sprintf("%s.%s", k.Resource, k.Column)
	}
	return fmt.Sprintf("%s.%s[%s]", k.Resource, k.Column, k.Envelope.String())
}
