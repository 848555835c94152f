// Package orientation estimates head orientation from facial landmark frames
package orientation

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/teslashibe/go-gaze/internal/vecmath"
)

// ReferenceIndex is the landmark used as the forward-facing anchor (nose tip)
const ReferenceIndex = 1

var (
	// ErrTooFewLandmarks is returned for frames without the reference landmark
	ErrTooFewLandmarks = errors.New("orientation: frame needs at least 2 landmarks")

	// ErrUnavailable is returned when the deviation vector has zero length
	// and no angle can be derived from it
	ErrUnavailable = errors.New("orientation: unavailable")
)

// baseVector is the direction angles are measured from
var baseVector = vecmath.Vec2{X: 1, Y: 0}

// Frame is one face detector output: normalized landmark coordinates for a single face
type Frame struct {
	Landmarks []vecmath.Vec2 `json:"points"`
	Timestamp time.Time      `json:"timestamp"`
}

// Orientation is the head orientation derived from one frame
type Orientation struct {
	Radians   float64      `json:"radians"`   // (-π, π]
	Degrees   float64      `json:"degrees"`   // [0, 360)
	Deviation vecmath.Vec2 `json:"deviation"` // reference - face center
	Direction Direction    `json:"direction"`
}

// Estimate converts a landmark frame into a head orientation.
//
// The reference point is re-read from the same landmark every frame rather
// than captured in a separate calibration step.
func Estimate(frame Frame) (Orientation, error) {
	n := len(frame.Landmarks)
	if n <= ReferenceIndex {
		return Orientation{}, fmt.Errorf("%w: got %d", ErrTooFewLandmarks, n)
	}

	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, p := range frame.Landmarks {
		xs[i] = vecmath.Clamp(p.X, 0, 1)
		ys[i] = vecmath.Clamp(p.Y, 0, 1)
	}

	cx, err := vecmath.MeanAll(xs)
	if err != nil {
		return Orientation{}, err
	}
	cy, err := vecmath.MeanAll(ys)
	if err != nil {
		return Orientation{}, err
	}

	center := vecmath.Vec2{X: cx, Y: cy}
	reference := vecmath.Vec2{X: xs[ReferenceIndex], Y: ys[ReferenceIndex]}
	deviation := vecmath.Sub(reference, center)

	return FromDeviation(deviation)
}

// FromDeviation computes the quadrant-corrected angle of a deviation vector
func FromDeviation(deviation vecmath.Vec2) (Orientation, error) {
	norm := vecmath.Norm(deviation)
	if norm == 0 || math.IsNaN(norm) {
		return Orientation{}, ErrUnavailable
	}

	cos := vecmath.Dot(baseVector, deviation) / (vecmath.Norm(baseVector) * norm)
	rad := math.Acos(vecmath.Clamp(cos, -1, 1))
	deg := rad * 180 / math.Pi

	if deviation.Y < 0 {
		rad = -rad
		deg = 360 - deg
	}

	return Orientation{
		Radians:   rad,
		Degrees:   deg,
		Deviation: deviation,
		Direction: DirectionOf(deg),
	}, nil
}
