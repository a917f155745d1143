package render

import (
	"math"
	"strconv"
	"time"

	"github.com/onemap/onemap/internal/trace"
)

const (
	kphPerMph   = 1.60934
	clockLayout = "03:04 PM"
	noTime      = "N/A"
	noDetails   = "--"
)

// HoverLabel formats a ping tooltip, e.g. "37.3 mph at 07:42 AM".
func HoverLabel(h trace.HoverPoint, loc *time.Location) string {
	return FormatMph(h.SpeedKph) + " mph at " + FormatClock(h.Timestamp, loc)
}

// PopupLabel formats an exception popup from the run's start info.
func PopupLabel(seg trace.Segment, loc *time.Location) string {
	details := seg.Start.Details
	if details == "" {
		details = noDetails
	}
	return seg.Category.Label() + " at " + FormatClock(seg.Start.Timestamp, loc) + "<br>" + details
}

// FormatMph converts kph to mph rounded to one decimal place.
func FormatMph(kph float64) string {
	if math.IsNaN(kph) || math.IsInf(kph, 0) {
		kph = 0
	}
	mph := math.Round(kph/kphPerMph*10) / 10
	return strconv.FormatFloat(mph, 'f', 1, 64)
}

// FormatClock renders ts as a 12-hour wall clock in loc, or "N/A".
func FormatClock(ts *time.Time, loc *time.Location) string {
	if ts == nil || ts.IsZero() {
		return noTime
	}
	if loc == nil {
		loc = time.UTC
	}
	return ts.In(loc).Format(clockLayout)
}
