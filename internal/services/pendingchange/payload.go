package pendingchange

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/Ramsey-B/laurel/pkg/models"
)

// allowedFields is the closed set of payload fields per catalog. Submissions
// carrying anything else are rejected outright rather than silently filtered,
// so proposers learn about typos before review.
var allowedFields = map[models.EntityKind]map[string]bool{
	models.EntityKindProperty: {
		"title":        true,
		"description":  true,
		"price":        true,
		"location":     true,
		"bedrooms":     true,
		"bathrooms":    true,
		"area_sqft":    true,
		"amenities":    true,
		"images":       true,
		"brochure":     true,
		"listing_type": true,
	},
	models.EntityKindBanner: {
		"title":     true,
		"image":     true,
		"link_url":  true,
		"placement": true,
		"starts_at": true,
		"ends_at":   true,
	},
}

func validatePayload(kind models.EntityKind, payload json.RawMessage) error {
	if len(payload) == 0 {
		return httperror.NewHTTPError(http.StatusBadRequest, "payload is required")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "payload must be a JSON object")
	}
	if len(fields) == 0 {
		return httperror.NewHTTPError(http.StatusBadRequest, "payload must not be empty")
	}

	allowed := allowedFields[kind]
	var unknown []string
	for name := range fields {
		if !allowed[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return httperror.NewHTTPError(http.StatusBadRequest, "payload contains fields outside the allowed set").
			AddMetaValue("unknown_fields", unknown)
	}

	return nil
}
