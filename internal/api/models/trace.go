package models

import "encoding/json"

// SegmentRequest is the body of POST /v1/traces:segment.
type SegmentRequest struct {
	// Points is an array of flat ping objects or GeoJSON point features.
	Points json.RawMessage `json:"points"`

	ShowExceptions         *bool  `json:"showExceptions,omitempty"`
	SingleSpeedingAsMarker *bool  `json:"singleSpeedingAsMarker,omitempty"`
	Timezone               string `json:"timezone,omitempty" validate:"omitempty,timezone"`
}
