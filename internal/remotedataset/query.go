package remotedataset

import (
	"context"
	"fmt"

	"github.com/civicgrid/regioncache/internal/core/model"
	"github.com/civicgrid/regioncache/internal/core/ogc"
)

// MaxRows bounds the SoQL "select * limit" clause issued for a full
// (non-envelope-narrowed) fetch.
const MaxRows = 500000

// Dataset is the collaborator the region cache depends on to populate
// entries from the live backend (spec.md §1's "RemoteDataset fetcher").
type Dataset interface {
	Query(ctx context.Context, resource, format, soql string) (Response, error)
}

// BuildSoQL constructs the SoQL-like query string for a region cache
// population: "select * limit MAX", narrowed by an
// "where intersects(column, '<WKT MULTIPOLYGON>')" clause when env is
// set (spec.md §6).
func BuildSoQL(column string, env *model.Envelope) (string, error) {
	q := fmt.Sprintf("select * limit %d", MaxRows)
	if env == nil {
		return q, nil
	}
	wkt, err := envelopeToMultiPolygonWKT(*env)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s where intersects(%s, '%s')", q, column, wkt), nil
}

// envelopeToMultiPolygonWKT renders env as a single-ring MULTIPOLYGON via
// internal/core/ogc — the backend's spatial predicate requires
// MULTIPOLYGON, never POLYGON (spec.md §6).
func envelopeToMultiPolygonWKT(env model.Envelope) (string, error) {
	ring := [][]float64{
		{env.MinX, env.MinY},
		{env.MaxX, env.MinY},
		{env.MaxX, env.MaxY},
		{env.MinX, env.MaxY},
		{env.MinX, env.MinY},
	}
	return ogc.MultiPolygonToWKT([][][][]float64{{ring}})
}
