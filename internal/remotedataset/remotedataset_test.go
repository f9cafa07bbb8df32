package remotedataset

import (
	"errors"
	"strings"
	"testing"

	"github.com/civicgrid/regioncache/internal/core/model"
)

// spec.md §8 scenarios 1-4: Check obeys the SodaResponse.check table
// exhaustively.

func TestCheck_HappyPath(t *testing.T) {
	body, err := Check(Response{Status: 201, Body: []byte(`{"yay":"success!"}`), HasBody: true}, nil, 201)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if string(body) != `{"yay":"success!"}` {
		t.Fatalf("body = %s", body)
	}
}

func TestCheck_WrongCode(t *testing.T) {
	_, err := Check(Response{Status: 200, Body: []byte(`{"yay":"success!"}`), HasBody: true}, nil, 201)
	var ucr *UnexpectedResponseCode
	if !errors.As(err, &ucr) {
		t.Fatalf("err = %v, want *UnexpectedResponseCode", err)
	}
	if ucr.Code != 200 {
		t.Fatalf("ucr.Code = %d, want 200", ucr.Code)
	}
}

func TestCheck_MissingBody(t *testing.T) {
	_, err := Check(Response{Status: 200, HasBody: false}, nil, 200)
	var jpe *JSONParseError
	if !errors.As(err, &jpe) {
		t.Fatalf("err = %v, want *JSONParseError", err)
	}
}

func TestCheck_TransportFailure(t *testing.T) {
	transportErr := errors.New("boom")
	_, err := Check(Response{}, transportErr, 200)
	if !errors.Is(err, transportErr) {
		t.Fatalf("err = %v, want transportErr propagated verbatim", err)
	}
}

func TestCheck_InvalidJSONBodyIsParseError(t *testing.T) {
	_, err := Check(Response{Status: 200, Body: []byte(`not json`), HasBody: true}, nil, 200)
	var jpe *JSONParseError
	if !errors.As(err, &jpe) {
		t.Fatalf("err = %v, want *JSONParseError for invalid JSON body", err)
	}
}

func TestBuildSoQL_NoEnvelope(t *testing.T) {
	q, err := BuildSoQL("geom", nil)
	if err != nil {
		t.Fatalf("BuildSoQL: %v", err)
	}
	want := "select * limit 500000"
	if q != want {
		t.Fatalf("q = %q, want %q", q, want)
	}
}

func TestBuildSoQL_WithEnvelopeUsesMultiPolygon(t *testing.T) {
	env := model.Envelope{MinX: -1, MinY: -1, MaxX: 1, MaxY: 1}
	q, err := BuildSoQL("geom", &env)
	if err != nil {
		t.Fatalf("BuildSoQL: %v", err)
	}
	if !strings.Contains(q, "where intersects(geom, 'MULTIPOLYGON(((") {
		t.Fatalf("q = %q, want an intersects(...) clause with MULTIPOLYGON WKT", q)
	}
	if strings.Contains(q, "'POLYGON(") {
		t.Fatalf("q = %q, backend requires MULTIPOLYGON, never bare POLYGON", q)
	}
}
