// ABOUTME: Tunable robot parameters: defaults, operator input validation and SET commands
// ABOUTME: A Set is a flat name -> float64 map with a stable iteration order

package params

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// ErrInvalidParameter is returned when operator input is not a valid name or
// number.
var ErrInvalidParameter = errors.New("invalid parameter")

// Default parameter names, in the order they are shown and sent.
var defaultOrder = []string{
	"max_speed",
	"rotation_speed",
	"kick_power",
	"acceleration",
	"deceleration",
	"battery_level",
	"vision_range",
	"ball_detection_threshold",
	"obstacle_detection_threshold",
	"communication_range",
}

var defaultValues = map[string]float64{
	"max_speed":                    2.0,
	"rotation_speed":               1.0,
	"kick_power":                   0.8,
	"acceleration":                 1.5,
	"deceleration":                 1.5,
	"battery_level":                100,
	"vision_range":                 5.0,
	"ball_detection_threshold":     0.7,
	"obstacle_detection_threshold": 0.6,
	"communication_range":          20.0,
}

// Set maps parameter names to values.
type Set map[string]float64

// Defaults returns a fresh copy of the default robot parameters.
func Defaults() Set {
	return Set(maps.Clone(defaultValues))
}

// Clone returns an independent copy of s.
func (s Set) Clone() Set {
	if s == nil {
		return Set{}
	}
	return maps.Clone(s)
}

// Keys returns the names in s: known defaults first in their canonical order,
// then any extra names sorted alphabetically.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for _, name := range defaultOrder {
		if _, ok := s[name]; ok {
			keys = append(keys, name)
		}
	}
	var extra []string
	for name := range s {
		if _, known := defaultValues[name]; !known {
			extra = append(extra, name)
		}
	}
	slices.Sort(extra)
	return append(keys, extra...)
}

// Merge copies every value of other into s.
func (s Set) Merge(other Set) {
	maps.Copy(s, other)
}

// Parse validates raw operator input. Every value must parse as a finite
// number; on the first bad entry the whole input is rejected so the caller's
// state can stay untouched.
func Parse(raw map[string]string) (Set, error) {
	out := make(Set, len(raw))
	names := slices.Sorted(maps.Keys(raw))
	for _, name := range names {
		if !ValidName(name) {
			return nil, fmt.Errorf("%w: parameter name %q must be a single word", ErrInvalidParameter, name)
		}
		v, err := ParseValue(raw[name])
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q: please enter a numeric value", ErrInvalidParameter, name, raw[name])
		}
		out[name] = v
	}
	return out, nil
}

// ValidName reports whether name can go on the wire as one SET token.
func ValidName(name string) bool {
	return name != "" && !strings.ContainsFunc(name, unicode.IsSpace)
}

// ParseValue parses a single numeric parameter value.
func ParseValue(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("value %q is not finite", s)
	}
	return v, nil
}

// FormatValue renders v the way it is put on the wire.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Command builds the agent command that sets one parameter.
func Command(name string, value float64) string {
	return "SET " + name + " " + FormatValue(value)
}

// Commands returns one SET command per parameter, in Keys order.
func (s Set) Commands() []string {
	keys := s.Keys()
	cmds := make([]string, 0, len(keys))
	for _, name := range keys {
		cmds = append(cmds, Command(name, s[name]))
	}
	return cmds
}
