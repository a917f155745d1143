package models

// FeatureFlag is one flag and its effective value.
type FeatureFlag struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	UpdatedAt Timestamp `json:"updatedAt"`
}

// FeatureFlagList is the body of GET /v1/admin/feature-flags.
type FeatureFlagList struct {
	Items []FeatureFlag `json:"items"`
}

// FeatureFlagUpdate sets one flag.
type FeatureFlagUpdate struct {
	Key   string `json:"key" validate:"required"`
	Value any    `json:"value"`
}

// FeatureFlagUpdateRequest is the body of PUT /v1/admin/feature-flags.
type FeatureFlagUpdateRequest struct {
	Updates []FeatureFlagUpdate `json:"updates" validate:"required,min=1,dive"`
	Reason  string              `json:"reason" validate:"max=500"`
}
