package models

// TripMapRequest is the body of POST /v1/trip-maps.
type TripMapRequest struct {
	Route string `json:"route" validate:"required"`
	Date  string `json:"date" validate:"required,datetime=2006-01-02"`

	// ShowExceptions defaults to the show_exceptions_by_default flag.
	ShowExceptions *bool `json:"showExceptions,omitempty"`
}

// TripMap is the rendered map for one route on one date.
type TripMap struct {
	Route          string      `json:"route"`
	Date           string      `json:"date"`
	Driver         Driver      `json:"driver"`
	DVILink        string      `json:"dviLink"`
	ShowExceptions bool        `json:"showExceptions"`
	FetchedAt      Timestamp   `json:"fetchedAt"`
	AM             *PeriodView `json:"am,omitempty"`
	PM             *PeriodView `json:"pm,omitempty"`
}

// Driver identifies who drove the route.
type Driver struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// PeriodView is one rendered vehicle-trip.
type PeriodView struct {
	Period        string `json:"period,omitempty"`
	VehicleNumber string `json:"vehicleNumber,omitempty"`
	DeviceID      string `json:"deviceId,omitempty"`

	// Polyline is the Google-encoded path.
	Polyline string  `json:"polyline"`
	Bounds   *Bounds `json:"bounds,omitempty"`

	Hover    []HoverView   `json:"hover"`
	Lines    []LineView    `json:"lines"`
	Markers  []MarkerView  `json:"markers"`
	Stops    []StopView    `json:"stops"`
	Segments []SegmentView `json:"segments"`
	Summary  SummaryView   `json:"summary"`
	Dropped  DroppedView   `json:"dropped"`
}

// HoverView is a tooltip target on the path.
type HoverView struct {
	At    Coordinate `json:"at"`
	Label string     `json:"label"`
}

// LineView is a drawn exception path.
type LineView struct {
	Category string       `json:"category"`
	Points   []Coordinate `json:"points"`
	Popup    string       `json:"popup"`
}

// MarkerView is a drawn exception pin.
type MarkerView struct {
	Category   string     `json:"category"`
	At         Coordinate `json:"at"`
	Popup      string     `json:"popup"`
	PointCount int        `json:"pointCount"`
}

// StopView is a planned stop.
type StopView struct {
	Kind     string     `json:"kind"`
	Sequence int        `json:"sequence"`
	At       Coordinate `json:"at"`
	Info     string     `json:"info"`
}

// SegmentView is a maximal same-category run, whether drawn or not.
type SegmentView struct {
	Category  string       `json:"category"`
	Label     string       `json:"label"`
	Points    []Coordinate `json:"points"`
	StartTime *Timestamp   `json:"startTime,omitempty"`
	Details   string       `json:"details,omitempty"`
}

// SummaryView aggregates a period's segments.
type SummaryView struct {
	Segments         map[string]int `json:"segments"`
	Points           map[string]int `json:"points"`
	SpeedingMeters   float64        `json:"speedingMeters"`
	FirstExceptionAt *Timestamp     `json:"firstExceptionAt,omitempty"`
	LastExceptionAt  *Timestamp     `json:"lastExceptionAt,omitempty"`
}

// DroppedView counts what did not make it onto the map.
type DroppedView struct {
	InvalidPoints   int `json:"invalidPoints"`
	SkippedPoints   int `json:"skippedPoints"`
	UndrawnSegments int `json:"undrawnSegments"`
}
