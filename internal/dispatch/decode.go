package dispatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/onemap/onemap/internal/trace"
)

// ErrNotObject is returned for trace elements that are not JSON objects.
var ErrNotObject = errors.New("trace element is not a JSON object")

var (
	latKeys       = []string{"lat", "latitude"}
	lonKeys       = []string{"lon", "lng", "longitude"}
	timeKeys      = []string{"ts", "timestamp", "dateTime"}
	speedKeys     = []string{"spd", "speed"}
	exceptionKeys = []string{"exception_type", "exceptionType"}
	detailsKeys   = []string{"exception_details", "exceptionDetails"}

	timeLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05",
	}
)

// DecodePoint decodes one trace element.
//
// Flat objects and GeoJSON Point features are accepted. Bad coordinates
// decode to NaN so the segmenter drops the point; only a non-object element
// is an error.
func DecodePoint(raw json.RawMessage) (trace.Point, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trace.Point{}, ErrNotObject
	}

	var fields map[string]any
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return trace.Point{}, fmt.Errorf("decoding point: %w", err)
	}

	if t, _ := fields["type"].(string); t == "Feature" {
		return decodeFeature(trimmed), nil
	}

	p := pointFromProperties(fields)
	p.Lat = number(fields, latKeys)
	p.Lon = number(fields, lonKeys)
	return p, nil
}

// DecodePoints decodes a JSON array of trace elements, skipping elements
// that are not objects. It returns the number skipped.
func DecodePoints(raw json.RawMessage) ([]trace.Point, int, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, 0, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, 0, fmt.Errorf("decoding trace: %w", err)
	}

	points := make([]trace.Point, 0, len(elems))
	skipped := 0
	for _, e := range elems {
		p, err := DecodePoint(e)
		if err != nil {
			skipped++
			continue
		}
		points = append(points, p)
	}
	return points, skipped, nil
}

func decodeFeature(raw []byte) trace.Point {
	f, err := geojson.UnmarshalFeature(raw)
	if err != nil {
		return trace.Point{Lat: math.NaN(), Lon: math.NaN()}
	}

	p := pointFromProperties(f.Properties)
	p.Lat, p.Lon = math.NaN(), math.NaN()
	if pt, ok := f.Geometry.(orb.Point); ok {
		p.Lon, p.Lat = pt.Lon(), pt.Lat()
	}
	return p
}

func pointFromProperties(props map[string]any) trace.Point {
	p := trace.Point{
		Timestamp:        timestamp(props, timeKeys),
		ExceptionType:    text(props, exceptionKeys),
		ExceptionDetails: text(props, detailsKeys),
	}
	if v, ok := lookup(props, speedKeys); ok {
		if f, ok := toFloat(v); ok {
			p.SpeedKph = &f
		}
	}
	return p
}

func lookup(m map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func number(m map[string]any, keys []string) float64 {
	v, ok := lookup(m, keys)
	if !ok {
		return math.NaN()
	}
	f, ok := toFloat(v)
	if !ok {
		return math.NaN()
	}
	return f
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func text(m map[string]any, keys []string) string {
	v, ok := lookup(m, keys)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

func timestamp(m map[string]any, keys []string) *time.Time {
	s := text(m, keys)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
