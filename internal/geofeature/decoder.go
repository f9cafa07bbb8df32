// Package geofeature turns a decoded GeoJSON feature collection into the
// entries a region cache index is built from (spec.md §4.2).
package geofeature

import (
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/civicgrid/regioncache/internal/spatial"
)

// PaceEvery is the number of features processed between cooperative
// yield calls (spec.md §4.2's "pacing contract").
const PaceEvery = 1000

// Pacer is invoked once per PaceEvery features processed, so a
// long-running decode can be interleaved with memory reclamation. A nil
// Pacer disables pacing.
type Pacer func()

// ToSpatialEntries converts each feature's geometry plus an integer id
// parsed from featureIDAttr into a spatial.Entry. Features missing or
// carrying a non-integer id are skipped and logged; they do not fail
// the decode (spec.md's "data quality" error kind).
func ToSpatialEntries(fc *geojson.FeatureCollection, featureIDAttr string, pace Pacer, log *zerolog.Logger) []spatial.Entry[int] {
	entries := make([]spatial.Entry[int], 0, len(fc.Features))
	for i, f := range fc.Features {
		if pace != nil && i > 0 && i%PaceEvery == 0 {
			pace()
		}
		if f.Geometry == nil {
			logSkip(log, "feature missing geometry", i)
			continue
		}
		id, ok := parseFeatureID(f, featureIDAttr)
		if !ok {
			logSkip(log, "feature missing or non-integer "+featureIDAttr, i)
			continue
		}
		entries = append(entries, spatial.NewEntry(f.Geometry, id))
	}
	return entries
}

// ToKeyMap builds key -> featureID from each feature's string attribute
// keyAttr and integer attribute featureIDAttr. Features missing either
// are skipped and logged. On duplicate keyAttr values, the last feature
// processed wins (spec.md's documented last-writer-wins rule).
func ToKeyMap(fc *geojson.FeatureCollection, keyAttr, featureIDAttr string, pace Pacer, log *zerolog.Logger) map[string]int {
	out := make(map[string]int, len(fc.Features))
	for i, f := range fc.Features {
		if pace != nil && i > 0 && i%PaceEvery == 0 {
			pace()
		}
		key, ok := stringProp(f, keyAttr)
		if !ok || key == "" {
			logSkip(log, "feature missing "+keyAttr, i)
			continue
		}
		id, ok := parseFeatureID(f, featureIDAttr)
		if !ok {
			logSkip(log, "feature missing or non-integer "+featureIDAttr, i)
			continue
		}
		out[key] = id
	}
	return out
}

func parseFeatureID(f *geojson.Feature, attr string) (int, bool) {
	raw, ok := f.Properties[attr]
	if !ok {
		return 0, false
	}
	s, ok := toDigitString(raw)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func stringProp(f *geojson.Feature, attr string) (string, bool) {
	raw, ok := f.Properties[attr]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok
}

// toDigitString normalizes a property value (string or JSON number) into
// a string-of-digits suitable for strconv.Atoi, matching spec.md's
// "string of digits" FeatureId grammar.
func toDigitString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return "", false
		}
		return s, true
	case float64:
		if x != math.Trunc(x) {
			return "", false
		}
		return strconv.FormatInt(int64(x), 10), true
	default:
		return "", false
	}
}

func logSkip(log *zerolog.Logger, msg string, index int) {
	if log == nil {
		return
	}
	log.Warn().Int("feature_index", index).Msg(msg)
}
