// Package smoothing provides bounded moving-average filters for transform channels
package smoothing

import "github.com/teslashibe/go-gaze/internal/vecmath"

// Default smoothing parameters
const (
	DefaultWindow = 10
	DefaultSlack  = 3
)

// MovingAverage is a running-average filter over a bounded series.
//
// While fewer than Window samples exist the output is the mean of all of
// them. The series is trimmed back to Window+Slack only after it grows past
// that cap, so eviction lags the output by up to Slack samples.
type MovingAverage struct {
	window  int
	slack   int
	samples []float64
}

// NewMovingAverage creates a filter. Non-positive window falls back to
// DefaultWindow and negative slack to zero.
func NewMovingAverage(window, slack int) *MovingAverage {
	if window < 1 {
		window = DefaultWindow
	}
	if slack < 0 {
		slack = 0
	}

	return &MovingAverage{
		window:  window,
		slack:   slack,
		samples: make([]float64, 0, window+slack+1),
	}
}

// Push appends a sample and returns the smoothed output
func (m *MovingAverage) Push(value float64) float64 {
	m.samples = append(m.samples, value)

	from := 0
	if len(m.samples) >= m.window {
		from = len(m.samples) - m.window
	}

	// Never empty: a sample was just appended.
	out, _ := vecmath.Mean(m.samples, from, len(m.samples)-1)

	if excess := len(m.samples) - m.HardCap(); excess > 0 {
		// Shift instead of slice to avoid memory leak
		copy(m.samples, m.samples[excess:])
		m.samples = m.samples[:len(m.samples)-excess]
	}

	return out
}

// Len returns the number of retained samples
func (m *MovingAverage) Len() int {
	return len(m.samples)
}

// Window returns the averaging window
func (m *MovingAverage) Window() int {
	return m.window
}

// HardCap returns the maximum number of retained samples
func (m *MovingAverage) HardCap() int {
	return m.window + m.slack
}

// Reset drops all history
func (m *MovingAverage) Reset() {
	m.samples = m.samples[:0]
}
