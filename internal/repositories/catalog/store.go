// Package catalog persists the published property and banner records. Rows
// here are only written through admin operations or pending-change approval.
package catalog

import (
	"context"
	"encoding/json"

	"github.com/Ramsey-B/laurel/pkg/models"
)

// Store is the canonical-write surface the approval flow depends on, shared
// by both catalogs so the engine can dispatch on entity kind. Snapshot with
// Existed=false means the id is unclaimed; Restore then deletes the row the
// failed approval inserted. Exists reports whether a live (not soft-deleted)
// row holds the id.
type Store interface {
	Exists(ctx context.Context, id string) (bool, error)
	Snapshot(ctx context.Context, id string) (models.CanonicalSnapshot, error)
	Apply(ctx context.Context, id string, payload json.RawMessage, proposerID string, proposerRole models.Role) error
	Restore(ctx context.Context, id string, snapshot models.CanonicalSnapshot) error
}

// mergePayload overlays the fields present in payload onto the row's current
// published data. Fields absent from the payload keep their published values,
// so a partial edit never wipes the rest of the record.
func mergePayload(existing, payload json.RawMessage) (json.RawMessage, error) {
	merged := map[string]json.RawMessage{}
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &merged); err != nil {
			return nil, err
		}
	}

	overlay := map[string]json.RawMessage{}
	if err := json.Unmarshal(payload, &overlay); err != nil {
		return nil, err
	}
	for field, value := range overlay {
		merged[field] = value
	}

	return json.Marshal(merged)
}
