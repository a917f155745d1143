package models

// Enums lists the enumerations clients need to render legends and filters.
type Enums struct {
	Categories []CategoryInfo `json:"categories"`
	Periods    []string       `json:"periods"`
	StopKinds  []string       `json:"stopKinds"`
}

// CategoryInfo pairs a category code with its display label and how it is drawn.
type CategoryInfo struct {
	Code  string `json:"code"`
	Label string `json:"label"`

	// Drawn is "line", "marker" or "none".
	Drawn string `json:"drawn"`
}

// Depot is a bus yard.
type Depot struct {
	Name string     `json:"name"`
	At   Coordinate `json:"at"`
}

// DepotList is the body of GET /v1/metadata/depots.
type DepotList struct {
	Items []Depot `json:"items"`
}
