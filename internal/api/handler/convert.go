package handler

import (
	"github.com/onemap/onemap/internal/api/models"
	"github.com/onemap/onemap/internal/dispatch"
	"github.com/onemap/onemap/internal/trace"
	"github.com/onemap/onemap/internal/tripmap"
)

func coordinate(c trace.Coordinate) models.Coordinate {
	return models.Coordinate{Lat: c.Lat, Lon: c.Lon}
}

func coordinates(cs []trace.Coordinate) []models.Coordinate {
	out := make([]models.Coordinate, len(cs))
	for i, c := range cs {
		out[i] = coordinate(c)
	}
	return out
}

func tripMapView(m *tripmap.Map) models.TripMap {
	v := models.TripMap{
		Route: m.Route,
		Date:  m.Date.Format(dispatch.DateLayout),
		Driver: models.Driver{
			Name:  m.DriverName,
			Phone: m.DriverPhone,
		},
		DVILink:        m.DVILink,
		ShowExceptions: m.ShowExceptions(),
		FetchedAt:      models.Timestamp(m.FetchedAt),
	}
	if m.AM != nil {
		am := periodView(m.AM)
		v.AM = &am
	}
	if m.PM != nil {
		pm := periodView(m.PM)
		v.PM = &pm
	}
	return v
}

func periodView(p *tripmap.Period) models.PeriodView {
	v := models.PeriodView{
		Period:        string(p.Period),
		VehicleNumber: p.VehicleNumber,
		DeviceID:      p.DeviceID,
		Polyline:      p.Encoded,
		Hover:         make([]models.HoverView, 0, len(p.Scene.Hover)),
		Lines:         make([]models.LineView, 0, len(p.Scene.Lines)),
		Markers:       make([]models.MarkerView, 0, len(p.Scene.Markers)),
		Stops:         make([]models.StopView, 0, len(p.Stops)),
		Segments:      make([]models.SegmentView, 0, len(p.Trace.Segments)),
		Summary:       summaryView(p.Summary),
		Dropped: models.DroppedView{
			InvalidPoints:   p.Trace.Dropped,
			SkippedPoints:   p.SkippedPoints,
			UndrawnSegments: p.Scene.Dropped,
		},
	}

	if p.HasBounds {
		center := p.Bounds.Center()
		v.Bounds = &models.Bounds{
			South:  p.Bounds.South,
			West:   p.Bounds.West,
			North:  p.Bounds.North,
			East:   p.Bounds.East,
			Center: models.Coordinate{Lat: center.Lat, Lon: center.Lon},
		}
	}

	for _, h := range p.Scene.Hover {
		v.Hover = append(v.Hover, models.HoverView{At: coordinate(h.Coordinate), Label: h.Label})
	}
	for _, l := range p.Scene.Lines {
		v.Lines = append(v.Lines, models.LineView{
			Category: string(l.Category),
			Points:   coordinates(l.Points),
			Popup:    l.Popup,
		})
	}
	for _, m := range p.Scene.Markers {
		v.Markers = append(v.Markers, models.MarkerView{
			Category:   string(m.Category),
			At:         coordinate(m.Coordinate),
			Popup:      m.Popup,
			PointCount: m.PointCount,
		})
	}
	for _, s := range p.Stops {
		v.Stops = append(v.Stops, models.StopView{
			Kind:     string(s.Kind),
			Sequence: s.Sequence,
			At:       coordinate(s.Coordinate),
			Info:     s.Info,
		})
	}
	for _, seg := range p.Trace.Segments {
		v.Segments = append(v.Segments, models.SegmentView{
			Category:  string(seg.Category),
			Label:     seg.Category.Label(),
			Points:    coordinates(seg.Points),
			StartTime: models.TimestampPtr(seg.Start.Timestamp),
			Details:   seg.Start.Details,
		})
	}

	return v
}

func summaryView(s trace.Summary) models.SummaryView {
	v := models.SummaryView{
		Segments:         make(map[string]int, len(s.Segments)),
		Points:           make(map[string]int, len(s.Points)),
		SpeedingMeters:   s.SpeedingMeters,
		FirstExceptionAt: models.TimestampPtr(s.FirstExceptionAt),
		LastExceptionAt:  models.TimestampPtr(s.LastExceptionAt),
	}
	for c, n := range s.Segments {
		v.Segments[string(c)] = n
	}
	for c, n := range s.Points {
		v.Points[string(c)] = n
	}
	return v
}
