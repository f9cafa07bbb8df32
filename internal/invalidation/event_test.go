package invalidation

import (
	"testing"

	"github.com/civicgrid/regioncache/internal/core/model"
)

func TestValidate_RejectsWrongVersion(t *testing.T) {
	ev := Event{Version: 2, Op: "change", Resource: "wards", Column: "the_geom"}
	if err := ev.Validate(); err == nil {
		t.Fatalf("expected error for version != 1")
	}
}

func TestValidate_RejectsUnknownOp(t *testing.T) {
	ev := Event{Version: 1, Op: "delete", Resource: "wards", Column: "the_geom"}
	if err := ev.Validate(); err == nil {
		t.Fatalf("expected error for unknown op")
	}
}

func TestValidate_RequiresResourceAndColumn(t *testing.T) {
	for _, ev := range []Event{
		{Version: 1, Op: "change", Resource: "", Column: "the_geom"},
		{Version: 1, Op: "change", Resource: "wards", Column: ""},
	} {
		if err := ev.Validate(); err == nil {
			t.Fatalf("expected error for %+v", ev)
		}
	}
}

func TestValidate_AcceptsWellFormedEvent(t *testing.T) {
	ev := Event{Version: 1, Op: "reset", Resource: "wards", Column: "the_geom"}
	if err := ev.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestKey_WithoutEnvelope(t *testing.T) {
	ev := Event{Resource: "wards", Column: "the_geom"}
	got := ev.Key()
	want := model.RegionCacheKey{Resource: "wards", Column: "the_geom"}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestKey_WithEnvelope(t *testing.T) {
	env := model.Envelope{MinX: -1, MinY: -1, MaxX: 1, MaxY: 1}
	ev := Event{Resource: "wards", Column: "the_geom", HasEnvelope: true, Envelope: env}
	got := ev.Key()
	if !got.HasEnvelope || got.Envelope != env {
		t.Fatalf("got %+v, want HasEnvelope with envelope %+v", got, env)
	}
}
