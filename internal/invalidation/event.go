// Package invalidation defines the wire shape of upstream
// dataset-changed events: a resource/column pair, optionally scoped to
// the envelope a SoDA-backed entry was fetched with.
package invalidation

import (
	"fmt"
	"strings"

	"github.com/civicgrid/regioncache/internal/core/model"
)

// Event is the JSON payload the Kafka invalidation topic carries.
type Event struct {
	Version     int            `json:"version"`
	Op          string         `json:"op"` // "change" or "reset"
	Resource    string         `json:"resource"`
	Column      string         `json:"column"`
	HasEnvelope bool           `json:"has_envelope,omitempty"`
	Envelope    model.Envelope `json:"envelope,omitempty"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	switch e.Op {
	case "change", "reset":
	default:
		return fmt.Errorf("op must be change|reset")
	}
	if strings.TrimSpace(e.Resource) == "" {
		return fmt.Errorf("resource is required")
	}
	if strings.TrimSpace(e.Column) == "" {
		return fmt.Errorf("column is required")
	}
	return nil
}

// Key builds the RegionCacheKey this event targets.
func (e Event) Key() model.RegionCacheKey {
	key := model.RegionCacheKey{Resource: e.Resource, Column: e.Column}
	if e.HasEnvelope {
		return key.WithEnvelope(e.Envelope)
	}
	return key
}
