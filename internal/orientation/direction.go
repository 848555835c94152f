package orientation

import "math"

// Direction is the coarse 8-way head direction used in exported session logs
type Direction string

const (
	DirectionLeft      Direction = "Left"
	DirectionLeftDown  Direction = "LeftDown"
	DirectionDown      Direction = "Down"
	DirectionRightDown Direction = "RightDown"
	DirectionRight     Direction = "Right"
	DirectionRightUp   Direction = "RightUp"
	DirectionUp        Direction = "Up"
	DirectionLeftUp    Direction = "LeftUp"
	DirectionError     Direction = "Error"
)

// sectors are ordered by their upper bound in degrees
var sectors = []struct {
	upper float64
	dir   Direction
}{
	{22.5, DirectionLeft},
	{67.5, DirectionLeftDown},
	{112.5, DirectionDown},
	{157.5, DirectionRightDown},
	{202.5, DirectionRight},
	{247.5, DirectionRightUp},
	{292.5, DirectionUp},
	{337.5, DirectionLeftUp},
}

// DirectionOf maps an angle in degrees to a 45° sector label.
// Left wraps around 0°; angles outside [0, 360] are reported as Error.
func DirectionOf(degrees float64) Direction {
	if math.IsNaN(degrees) || degrees < 0 || degrees > 360 {
		return DirectionError
	}

	for _, s := range sectors {
		if degrees < s.upper {
			return s.dir
		}
	}
	return DirectionLeft
}
