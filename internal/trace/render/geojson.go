package render

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/onemap/onemap/internal/trace"
)

// Layer names used in feature properties.
const (
	LayerPath      = "path"
	LayerHover     = "hover"
	LayerException = "exception"
)

// FeatureCollection exports the scene as GeoJSON.
func (s Scene) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if b, ok := s.Bound(); ok {
		fc.BBox = geojson.NewBBox(b)
	}

	if len(s.Path) > 1 {
		f := geojson.NewFeature(lineString(s.Path))
		f.Properties["layer"] = LayerPath
		f.Properties["pointCount"] = len(s.Path)
		fc.Append(f)
	}

	for _, l := range s.Lines {
		f := geojson.NewFeature(lineString(l.Points))
		f.Properties["layer"] = LayerException
		f.Properties["category"] = string(l.Category)
		f.Properties["label"] = l.Category.Label()
		f.Properties["popup"] = l.Popup
		f.Properties["pointCount"] = len(l.Points)
		fc.Append(f)
	}

	for _, m := range s.Markers {
		f := geojson.NewFeature(point(m.Coordinate))
		f.Properties["layer"] = LayerException
		f.Properties["category"] = string(m.Category)
		f.Properties["label"] = m.Category.Label()
		f.Properties["popup"] = m.Popup
		f.Properties["pointCount"] = m.PointCount
		fc.Append(f)
	}

	for _, h := range s.Hover {
		f := geojson.NewFeature(point(h.Coordinate))
		f.Properties["layer"] = LayerHover
		f.Properties["label"] = h.Label
		fc.Append(f)
	}

	return fc
}

// Bound returns the orb bounding box of the path, or false when empty.
func (s Scene) Bound() (orb.Bound, bool) {
	if len(s.Path) == 0 {
		return orb.Bound{}, false
	}
	mp := make(orb.MultiPoint, 0, len(s.Path))
	for _, c := range s.Path {
		mp = append(mp, point(c))
	}
	return mp.Bound(), true
}

func point(c trace.Coordinate) orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

func lineString(cs []trace.Coordinate) orb.LineString {
	ls := make(orb.LineString, 0, len(cs))
	for _, c := range cs {
		ls = append(ls, point(c))
	}
	return ls
}
