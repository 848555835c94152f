// Package vecmath provides the small 2D vector helpers used by the gaze pipeline
package vecmath

import (
	"errors"
	"math"
)

// ErrEmptyRange is returned when an average is requested over no elements
var ErrEmptyRange = errors.New("vecmath: empty range")

// Vec2 is a 2D vector
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns a - b
func Sub(a, b Vec2) Vec2 {
	return Vec2{X: a.X - b.X, Y: a.Y - b.Y}
}

// Dot returns the inner product of a and b
func Dot(a, b Vec2) float64 {
	return a.X*b.X + a.Y*b.Y
}

// Norm returns the Euclidean length of v (0 for the zero vector)
func Norm(v Vec2) float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}

// Mean returns the arithmetic mean of values[from..to] (inclusive).
// An empty or out-of-bounds range is rejected instead of dividing by zero.
func Mean(values []float64, from, to int) (float64, error) {
	if from < 0 || to >= len(values) || from > to {
		return 0, ErrEmptyRange
	}

	var sum float64
	for i := from; i <= to; i++ {
		sum += values[i]
	}
	return sum / float64(to-from+1), nil
}

// MeanAll returns the mean of every element in values
func MeanAll(values []float64) (float64, error) {
	return Mean(values, 0, len(values)-1)
}

// Clamp clamps a value to [lo, hi]
func Clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
