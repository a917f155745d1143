// Package featureflags provides runtime switches for map rendering, with an
// in-memory store, a TTL cache and YAML seeding.
package featureflags

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Well-known feature flag keys.
const (
	// FlagSingleSpeedingAsMarker draws one-point speeding runs as markers
	// instead of dropping them.
	FlagSingleSpeedingAsMarker = "render_single_point_speeding_as_marker"

	// FlagShowExceptionsByDefault turns the safety layer on when a trip-map
	// request does not say either way.
	FlagShowExceptionsByDefault = "show_exceptions_by_default"
)

// Flag represents a feature flag with its current value.
type Flag struct {
	Key       string    `json:"key" yaml:"key"`
	Value     any       `json:"value" yaml:"value"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"-"`
}

// BoolValue returns the flag value as a boolean, or defaultValue when the
// flag is nil or holds something else. JSON numbers count as true when non-zero.
func (f *Flag) BoolValue(defaultValue bool) bool {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return defaultValue
	}
}

// DefaultFlags returns the built-in flag values.
func DefaultFlags() map[string]*Flag {
	now := time.Now()
	return map[string]*Flag{
		FlagSingleSpeedingAsMarker: {
			Key:       FlagSingleSpeedingAsMarker,
			Value:     false,
			UpdatedAt: now,
		},
		FlagShowExceptionsByDefault: {
			Key:       FlagShowExceptionsByDefault,
			Value:     true,
			UpdatedAt: now,
		},
	}
}

// Keys returns the well-known flag keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, 2)
	for k := range DefaultFlags() {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// IsKnown reports whether key is a well-known flag.
func IsKnown(key string) bool {
	_, ok := DefaultFlags()[key]
	return ok
}

// LoadYAML reads flag overrides from a YAML mapping of key to value:
//
//	render_single_point_speeding_as_marker: true
//	show_exceptions_by_default: false
//
// Unknown keys are rejected.
func LoadYAML(r io.Reader) ([]*Flag, error) {
	var raw map[string]any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decoding flags: %w", err)
	}

	return FromMap(raw)
}

// FromMap converts a key to value mapping into flags sorted by key.
// Unknown keys are rejected.
func FromMap(raw map[string]any) ([]*Flag, error) {
	flags := make([]*Flag, 0, len(raw))
	for key, value := range raw {
		if !IsKnown(key) {
			return nil, fmt.Errorf("%w: %s", ErrFlagNotFound, key)
		}
		flags = append(flags, &Flag{Key: key, Value: value})
	}
	slices.SortFunc(flags, func(a, b *Flag) int {
		return strings.Compare(a.Key, b.Key)
	})
	return flags, nil
}
