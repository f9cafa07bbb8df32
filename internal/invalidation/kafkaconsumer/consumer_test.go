package kafkaconsumer

import (
	"testing"

	"github.com/civicgrid/regioncache/internal/core/model"
	"github.com/civicgrid/regioncache/internal/invalidation"
)

func TestApply_ChangeEventEvictsMatchingKey(t *testing.T) {
	var gotKey model.RegionCacheKey
	evicted := false
	target := Target{
		Name: "spatial",
		Evict: func(ev invalidation.Event) bool {
			gotKey = ev.Key()
			evicted = true
			return true
		},
		Reset: func() { t.Fatal("Reset should not be called for a change event") },
	}
	c := New(Config{}, []Target{target}, nil, nil)

	body := []byte(`{"version":1,"op":"change","resource":"wards","column":"the_geom"}`)
	if err := c.Apply(body); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !evicted {
		t.Fatalf("expected Evict to be called")
	}
	want := model.RegionCacheKey{Resource: "wards", Column: "the_geom"}
	if gotKey != want {
		t.Fatalf("gotKey = %+v, want %+v", gotKey, want)
	}
}

func TestApply_ChangeEventWithEnvelope(t *testing.T) {
	var gotKey model.RegionCacheKey
	target := Target{
		Name:  "spatial",
		Evict: func(ev invalidation.Event) bool { gotKey = ev.Key(); return true },
		Reset: func() {},
	}
	c := New(Config{}, []Target{target}, nil, nil)

	body := []byte(`{"version":1,"op":"change","resource":"wards","column":"the_geom","has_envelope":true,"envelope":{"MinX":-1,"MinY":-1,"MaxX":1,"MaxY":1}}`)
	if err := c.Apply(body); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !gotKey.HasEnvelope {
		t.Fatalf("expected HasEnvelope=true, got %+v", gotKey)
	}
}

func TestApply_ResetEventCallsResetNotEvict(t *testing.T) {
	resetCalled := false
	target := Target{
		Name:  "spatial",
		Evict: func(invalidation.Event) bool { t.Fatal("Evict should not be called for a reset event"); return false },
		Reset: func() { resetCalled = true },
	}
	c := New(Config{}, []Target{target}, nil, nil)

	body := []byte(`{"version":1,"op":"reset","resource":"wards","column":"the_geom"}`)
	if err := c.Apply(body); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !resetCalled {
		t.Fatalf("expected Reset to be called")
	}
}

func TestApply_FansOutToEveryTarget(t *testing.T) {
	var calls int
	mk := func() Target {
		return Target{
			Evict: func(invalidation.Event) bool { calls++; return true },
			Reset: func() {},
		}
	}
	c := New(Config{}, []Target{mk(), mk(), mk()}, nil, nil)

	body := []byte(`{"version":1,"op":"change","resource":"wards","column":"the_geom"}`)
	if err := c.Apply(body); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestApply_InvalidJSONIsError(t *testing.T) {
	c := New(Config{}, []Target{{Evict: func(invalidation.Event) bool { return false }, Reset: func() {}}}, nil, nil)
	if err := c.Apply([]byte(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestApply_FailsValidation(t *testing.T) {
	c := New(Config{}, []Target{{Evict: func(invalidation.Event) bool { return false }, Reset: func() {}}}, nil, nil)
	body := []byte(`{"version":2,"op":"change","resource":"wards","column":"the_geom"}`)
	if err := c.Apply(body); err == nil {
		t.Fatalf("expected validation error for version != 1")
	}
}

func TestApply_NoTargetsErrorsOnStart(t *testing.T) {
	c := New(Config{}, nil, nil, nil)
	if err := c.Start(nil); err == nil { //nolint:staticcheck // nil ctx ok: Start should fail before using it
		t.Fatalf("expected error when no cache targets are registered")
	}
}
