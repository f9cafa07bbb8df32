package suggester_test

import (
	"context"
	"testing"

	"github.com/civicgrid/regioncache/internal/remotedataset"
	"github.com/civicgrid/regioncache/internal/suggester"
)

type fakeDataset struct {
	body []byte
}

func (f *fakeDataset) Query(context.Context, string, string, string) (remotedataset.Response, error) {
	return remotedataset.Response{Status: 200, Body: f.body, HasBody: true}, nil
}

func TestSuggest_FiltersToGeometricColumns(t *testing.T) {
	body := []byte(`{"columns":[
		{"fieldName":"the_geom","dataTypeName":"multipolygon","description":"ward boundary"},
		{"fieldName":"ward_name","dataTypeName":"text","description":"name"},
		{"fieldName":"centroid","dataTypeName":"point","description":"center"}
	]}`)
	s := suggester.New(&fakeDataset{body: body})

	cands, err := s.Suggest(context.Background(), "wards")
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("len(cands) = %d, want 2 (%v)", len(cands), cands)
	}
	cols := map[string]bool{}
	for _, c := range cands {
		if c.Resource != "wards" {
			t.Fatalf("Resource = %q, want wards", c.Resource)
		}
		cols[c.Column] = true
	}
	if !cols["the_geom"] || !cols["centroid"] {
		t.Fatalf("expected the_geom and centroid, got %v", cands)
	}
}
