package transform

import (
	"fmt"
	"strconv"
	"strings"
)

// Condition is an experimental condition. Values match the numeric IDs
// recorded in exported session logs.
type Condition int

const (
	Baseline Condition = iota + 1
	FrameChange
	SizeChange
	SizeChangeDiscrete
	PositionChange
	PositionAndSizeChange
)

// Conditions lists every condition in ID order
var Conditions = []Condition{
	Baseline, FrameChange, SizeChange, SizeChangeDiscrete, PositionChange, PositionAndSizeChange,
}

// SizeMode selects how tile size responds
type SizeMode int

const (
	SizeFixed SizeMode = iota
	SizeContinuous
	SizeDiscrete
)

// BorderMode selects what drives the border alpha
type BorderMode int

const (
	BorderVoice BorderMode = iota
	BorderGaze
)

// Channels is the per-condition channel selection
type Channels struct {
	Size     SizeMode
	Position bool // offsets track orientation instead of staying at (0,0)
	Border   BorderMode
}

// Channels returns the channel selection of c. Unknown conditions behave as Baseline.
func (c Condition) Channels() Channels {
	switch c {
	case FrameChange:
		return Channels{Size: SizeFixed, Border: BorderGaze}
	case SizeChange:
		return Channels{Size: SizeContinuous, Border: BorderVoice}
	case SizeChangeDiscrete:
		return Channels{Size: SizeDiscrete, Border: BorderVoice}
	case PositionChange:
		return Channels{Size: SizeFixed, Position: true, Border: BorderVoice}
	case PositionAndSizeChange:
		return Channels{Size: SizeContinuous, Position: true, Border: BorderVoice}
	default:
		return Channels{Size: SizeFixed, Border: BorderVoice}
	}
}

// String returns the condition name
func (c Condition) String() string {
	switch c {
	case Baseline:
		return "Baseline"
	case FrameChange:
		return "FrameChange"
	case SizeChange:
		return "SizeChange"
	case SizeChangeDiscrete:
		return "SizeChangeDiscrete"
	case PositionChange:
		return "PositionChange"
	case PositionAndSizeChange:
		return "PositionAndSizeChange"
	default:
		return fmt.Sprintf("Condition(%d)", int(c))
	}
}

// Valid reports whether c is a known condition
func (c Condition) Valid() bool {
	return c >= Baseline && c <= PositionAndSizeChange
}

// ParseCondition accepts a numeric ID or a case-insensitive name
// ("SizeChange_Discrete" is accepted as an alias)
func ParseCondition(s string) (Condition, error) {
	s = strings.TrimSpace(s)

	if id, err := strconv.Atoi(s); err == nil {
		c := Condition(id)
		if !c.Valid() {
			return 0, fmt.Errorf("unknown condition id %d", id)
		}
		return c, nil
	}

	name := strings.ReplaceAll(strings.ToLower(s), "_", "")
	for _, c := range Conditions {
		if strings.ToLower(c.String()) == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown condition %q", s)
}

// MarshalText encodes the condition by name
func (c Condition) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a condition name or ID
func (c *Condition) UnmarshalText(text []byte) error {
	parsed, err := ParseCondition(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
