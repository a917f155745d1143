package dispatch

import "strings"

// Depot is a bus yard vehicles pull out from.
type Depot struct {
	Name string  `json:"name" yaml:"name" validate:"required"`
	Lat  float64 `json:"lat" yaml:"lat" validate:"latitude"`
	Lon  float64 `json:"lon" yaml:"lon" validate:"longitude"`
}

// DefaultDepots returns the built-in depot table.
func DefaultDepots() []Depot {
	return []Depot{
		{Name: "Greenpoint", Lat: 40.728215, Lon: -73.941033},
		{Name: "Conner", Lat: 40.886504, Lon: -73.829986},
		{Name: "Zerega", Lat: 40.830833, Lon: -73.845146},
		{Name: "Sharrotts", Lat: 40.539022, Lon: -74.241755},
		{Name: "Richmond", Lat: 40.638804, Lon: -74.128391},
		{Name: "Jamaica", Lat: 40.703080, Lon: -73.777627},
	}
}

// ResolveDepot finds the first depot whose name appears in yard,
// ignoring case. Yard strings look like "GM | Jamaica Depot".
func ResolveDepot(depots []Depot, yard string) (Depot, bool) {
	yard = strings.ToLower(strings.TrimSpace(yard))
	if yard == "" {
		return Depot{}, false
	}
	for _, d := range depots {
		if strings.Contains(yard, strings.ToLower(d.Name)) {
			return d, true
		}
	}
	return Depot{}, false
}
