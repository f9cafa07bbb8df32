package remotedataset

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_Query_RoundTrip(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("$query")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	resp, err := c.Query(context.Background(), "wards", "geojson", "select * limit 5")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if resp.Status != http.StatusOK {
		t.Fatalf("Status = %d", resp.Status)
	}
	if !resp.HasBody {
		t.Fatalf("expected HasBody = true")
	}
	if gotPath != "/resource/wards.geojson" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotQuery != "select * limit 5" {
		t.Fatalf("$query = %q", gotQuery)
	}
}

func TestClient_Query_TransportErrorPropagates(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", http.DefaultClient)
	_, err := c.Query(context.Background(), "wards", "geojson", "select *")
	if err == nil {
		t.Fatalf("expected a transport error dialing a closed port")
	}
}
