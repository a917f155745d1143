package dispatch

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

var blankVehicleNumbers = map[string]bool{
	"":     true,
	"nan":  true,
	"none": true,
	"#n/a": true,
}

// NormalizeVehicleNumber turns spreadsheet-style bus numbers into fleet ids.
//
//	"123"    -> "NT0123"
//	"4567.0" -> "NT4567"
//	"#N/A"   -> ""
//
// Anything that is not a bare 3 or 4 digit number is returned trimmed.
func NormalizeVehicleNumber(s string) string {
	s = strings.TrimSpace(s)
	if blankVehicleNumbers[strings.ToLower(s)] {
		return ""
	}
	s = strings.TrimSuffix(s, ".0")
	if len(s) == 3 && isDigits(s) {
		s = "0" + s
	}
	if len(s) == 4 && isDigits(s) {
		s = "NT" + s
	}
	return s
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// SortStops orders school stops first, then by sequence.
func SortStops(stops []Stop) {
	slices.SortStableFunc(stops, func(a, b Stop) int {
		return cmp.Or(
			cmp.Compare(kindRank(a.Kind), kindRank(b.Kind)),
			cmp.Compare(a.Sequence, b.Sequence),
		)
	})
}

func kindRank(k StopKind) int {
	if k == StopSchool {
		return 0
	}
	return 1
}

// StudentStopInfo formats the popup for a student pickup.
func StudentStopInfo(sequence int, pupilID string) string {
	if strings.TrimSpace(pupilID) == "" {
		pupilID = "N/A"
	}
	return fmt.Sprintf("Pickup #: %d<br>Pupil ID: %s", sequence, pupilID)
}

// SchoolStopInfo formats the popup for a school stop.
func SchoolStopInfo(name, sessionBegin string) string {
	if strings.TrimSpace(name) == "" {
		name = "N/A"
	}
	if strings.TrimSpace(sessionBegin) == "" {
		sessionBegin = "N/A"
	}
	return fmt.Sprintf("School: %s<br>Session Begin: %s", name, sessionBegin)
}
