// Package suggester is the thin query wrapper spec.md §1 names as an
// external collaborator: it lists candidate dataset/column pairs for a
// resource prefix by issuing a metadata query through the same
// RemoteDataset interface the region cache itself uses. It never
// touches the cache.
package suggester

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/civicgrid/regioncache/internal/remotedataset"
)

// Candidate is one suggested (resource, column) pair a caller might
// hand to RegionCache.GetFromSoda.
type Candidate struct {
	Resource    string `json:"resource"`
	Column      string `json:"column"`
	Description string `json:"description"`
}

// Suggester issues a metadata SoQL query against resourcePrefix and
// returns every column in the response whose type looks geometric.
type Suggester struct {
	dataset remotedataset.Dataset
}

func New(dataset remotedataset.Dataset) *Suggester {
	return &Suggester{dataset: dataset}
}

// geometricTypes mirrors the SoQL column "dataTypeName" values the
// tabular backend uses for spatial columns.
var geometricTypes = map[string]bool{
	"polygon": true, "multipolygon": true, "point": true, "line": true, "multiline": true,
}

type columnMeta struct {
	FieldName    string `json:"fieldName"`
	DataTypeName string `json:"dataTypeName"`
	Description  string `json:"description"`
}

// Suggest queries resourcePrefix's metadata endpoint and returns every
// geometric column as a Candidate. It never populates or reads the
// region cache.
func (s *Suggester) Suggest(ctx context.Context, resourcePrefix string) ([]Candidate, error) {
	resp, err := s.dataset.Query(ctx, resourcePrefix, "json", "select * limit 1")
	if err != nil {
		return nil, fmt.Errorf("suggester: metadata query: %w", err)
	}
	body, err := remotedataset.Check(resp, nil, http.StatusOK)
	if err != nil {
		return nil, fmt.Errorf("suggester: %w", err)
	}

	var meta struct {
		Columns []columnMeta `json:"columns"`
	}
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("suggester: parse metadata: %w", err)
	}

	var out []Candidate
	for _, col := range meta.Columns {
		if !geometricTypes[strings.ToLower(col.DataTypeName)] {
			continue
		}
		out = append(out, Candidate{
			Resource:    resourcePrefix,
			Column:      col.FieldName,
			Description: col.Description,
		})
	}
	return out, nil
}
