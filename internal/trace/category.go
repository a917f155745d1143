package trace

import "strings"

// Category is the safety classification shared by every point in a segment.
type Category string

const (
	CategoryNone     Category = "NONE"
	CategorySpeeding Category = "SPEEDING"
	CategoryIdling   Category = "IDLING"
	CategoryOther    Category = "OTHER"
)

// Categories lists every category in display order.
func Categories() []Category {
	return []Category{CategoryNone, CategorySpeeding, CategoryIdling, CategoryOther}
}

// noExceptionSentinel is what the provider sends in place of an empty value.
const noExceptionSentinel = "--"

// Classify maps a free-text exception type onto a category.
//
// Matching is a case-insensitive substring test. "speeding" wins over the
// idling keywords, so "Speeding while idle" is Speeding. Every string maps to
// exactly one category.
func Classify(exceptionType string) Category {
	s := strings.ToLower(normalizeSentinel(exceptionType))
	switch {
	case s == "":
		return CategoryNone
	case strings.Contains(s, "speeding"):
		return CategorySpeeding
	case strings.Contains(s, "idling"), strings.Contains(s, "idle"):
		return CategoryIdling
	default:
		return CategoryOther
	}
}

// Label returns a human readable name, e.g. "Speeding".
func (c Category) Label() string {
	switch c {
	case CategorySpeeding:
		return "Speeding"
	case CategoryIdling:
		return "Idling"
	case CategoryOther:
		return "Exception"
	default:
		return "None"
	}
}

func normalizeSentinel(s string) string {
	s = strings.TrimSpace(s)
	if s == noExceptionSentinel {
		return ""
	}
	return s
}
