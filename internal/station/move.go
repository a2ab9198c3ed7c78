// ABOUTME: Operator jog directions accepted by Station.Move
// ABOUTME: The request is logged only; agents receive nothing

package station

import (
	"errors"
	"slices"
)

// ErrInvalidDirection is returned by Move for an unknown direction.
var ErrInvalidDirection = errors.New("invalid move direction")

// Directions lists the accepted jog directions.
var Directions = []string{
	"forward",
	"backward",
	"left",
	"right",
	"stop",
	"rotate_left",
	"rotate_right",
}

// ValidDirection reports whether d is one of Directions.
func ValidDirection(d string) bool {
	return slices.Contains(Directions, d)
}
