package orientation

import (
	"errors"
	"math"
	"testing"

	"github.com/teslashibe/go-gaze/internal/vecmath"
)

// frameWithDeviation builds a two-point frame whose deviation vector is d.
// With points a and b the face center is (a+b)/2, so deviation = (b-a)/2.
func frameWithDeviation(d vecmath.Vec2) Frame {
	a := vecmath.Vec2{X: 0.5 - d.X, Y: 0.5 - d.Y}
	b := vecmath.Vec2{X: 0.5 + d.X, Y: 0.5 + d.Y}
	return Frame{Landmarks: []vecmath.Vec2{a, b}}
}

func TestEstimate_Range(t *testing.T) {
	deviations := []vecmath.Vec2{
		{X: 0.1, Y: 0},
		{X: -0.1, Y: 0},
		{X: 0, Y: 0.1},
		{X: 0, Y: -0.1},
		{X: 0.05, Y: 0.05},
		{X: -0.05, Y: -0.02},
		{X: 0.03, Y: -0.07},
		{X: -0.2, Y: 0.001},
	}

	for _, d := range deviations {
		o, err := Estimate(frameWithDeviation(d))
		if err != nil {
			t.Fatalf("deviation %+v: unexpected error: %v", d, err)
		}

		if o.Degrees < 0 || o.Degrees >= 360 {
			t.Errorf("deviation %+v: degrees %f out of [0,360)", d, o.Degrees)
		}

		if o.Radians <= -math.Pi || o.Radians > math.Pi {
			t.Errorf("deviation %+v: radians %f out of (-π,π]", d, o.Radians)
		}
	}
}

func TestEstimate_NegativeYUpperHalf(t *testing.T) {
	o, err := FromDeviation(vecmath.Vec2{X: 0, Y: -1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if o.Degrees <= 180 || o.Degrees >= 360 {
		t.Errorf("expected degrees in (180,360), got %f", o.Degrees)
	}

	if math.Abs(o.Degrees-270) > 1e-9 {
		t.Errorf("expected 270 degrees, got %f", o.Degrees)
	}

	if math.Abs(o.Radians+math.Pi/2) > 1e-9 {
		t.Errorf("expected -π/2 radians, got %f", o.Radians)
	}

	if o.Direction != DirectionUp {
		t.Errorf("expected direction Up, got %s", o.Direction)
	}
}

func TestEstimate_PositiveY(t *testing.T) {
	o, err := Estimate(frameWithDeviation(vecmath.Vec2{X: 0, Y: 0.1}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if math.Abs(o.Degrees-90) > 1e-6 {
		t.Errorf("expected 90 degrees, got %f", o.Degrees)
	}

	if math.Abs(o.Deviation.Y-0.1) > 1e-9 {
		t.Errorf("expected deviation y 0.1, got %f", o.Deviation.Y)
	}
}

func TestEstimate_ZeroDeviationUnavailable(t *testing.T) {
	frame := Frame{Landmarks: []vecmath.Vec2{{X: 0.4, Y: 0.4}, {X: 0.4, Y: 0.4}}}

	_, err := Estimate(frame)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestEstimate_TooFewLandmarks(t *testing.T) {
	_, err := Estimate(Frame{Landmarks: []vecmath.Vec2{{X: 0.5, Y: 0.5}}})
	if !errors.Is(err, ErrTooFewLandmarks) {
		t.Errorf("expected ErrTooFewLandmarks, got %v", err)
	}
}

func TestEstimate_ClampsCoordinates(t *testing.T) {
	// Both points clamp to (1, 0) so the deviation collapses to zero.
	frame := Frame{Landmarks: []vecmath.Vec2{{X: 1.2, Y: -0.1}, {X: 1.05, Y: -0.3}}}

	_, err := Estimate(frame)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected clamped frame to be unavailable, got %v", err)
	}
}

func TestDirectionOf(t *testing.T) {
	tests := []struct {
		degrees float64
		want    Direction
	}{
		{0, DirectionLeft},
		{350, DirectionLeft},
		{22.5, DirectionLeftDown},
		{90, DirectionDown},
		{135, DirectionRightDown},
		{180, DirectionRight},
		{225, DirectionRightUp},
		{270, DirectionUp},
		{300, DirectionLeftUp},
		{360, DirectionLeft},
		{-1, DirectionError},
		{361, DirectionError},
		{math.NaN(), DirectionError},
	}

	for _, tc := range tests {
		if got := DirectionOf(tc.degrees); got != tc.want {
			t.Errorf("DirectionOf(%v): expected %s, got %s", tc.degrees, tc.want, got)
		}
	}
}
