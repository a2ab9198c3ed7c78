// ABOUTME: Field geometry shared by agents, fusion and the presentation feed.
// ABOUTME: Positions are orb.Points in meters, origin at the bottom-left corner.

package field

import (
	"math"

	"github.com/paulmach/orb"
)

// Field dimensions in meters.
const (
	Width  = 12.0
	Height = 9.0
)

// Bounds is the playing area.
var Bounds = orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{Width, Height}}

// Center returns the center spot. It is also the default ball position
// before any agent has reported one.
func Center() orb.Point {
	return Bounds.Center()
}

// Contains reports whether p lies on the field (lines included).
func Contains(p orb.Point) bool {
	return Bounds.Contains(p)
}

// Mean returns the unweighted mean of pts. ok is false for an empty input.
func Mean(pts []orb.Point) (mean orb.Point, ok bool) {
	if len(pts) == 0 {
		return orb.Point{}, false
	}
	var sx, sy float64
	for _, p := range pts {
		sx += p.X()
		sy += p.Y()
	}
	n := float64(len(pts))
	return orb.Point{sx / n, sy / n}, true
}

// NormalizeHeading maps an orientation in degrees into [0, 360).
func NormalizeHeading(deg float64) float64 {
	h := math.Mod(deg, 360)
	if h < 0 {
		h += 360
	}
	return h
}
