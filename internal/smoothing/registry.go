package smoothing

import "sync"

// Channel names a scalar transform channel
type Channel string

const (
	ChannelWidth       Channel = "width"
	ChannelBorderAlpha Channel = "border_alpha"
	ChannelTopOffset   Channel = "top_offset"
	ChannelLeftOffset  Channel = "left_offset"
)

// Channels lists every channel the transform policy smooths
var Channels = []Channel{ChannelWidth, ChannelBorderAlpha, ChannelTopOffset, ChannelLeftOffset}

// Key identifies one series: a channel of one participant
type Key struct {
	Participant string
	Channel     Channel
}

// Registry owns independent series keyed by participant and channel
type Registry struct {
	window int
	slack  int

	mu     sync.Mutex
	series map[Key]*MovingAverage
}

// NewRegistry creates a registry whose series share the given parameters
func NewRegistry(window, slack int) *Registry {
	return &Registry{
		window: window,
		slack:  slack,
		series: make(map[Key]*MovingAverage),
	}
}

// Series returns the series for key, creating it on first use
func (r *Registry) Series(key Key) *MovingAverage {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.series[key]
	if !ok {
		s = NewMovingAverage(r.window, r.slack)
		r.series[key] = s
	}
	return s
}

// Push pushes a sample into the keyed series and returns the smoothed output
func (r *Registry) Push(participant string, ch Channel, value float64) float64 {
	return r.Series(Key{Participant: participant, Channel: ch}).Push(value)
}

// Len returns the retained sample count of a series (0 if it does not exist)
func (r *Registry) Len(participant string, ch Channel) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.series[Key{Participant: participant, Channel: ch}]; ok {
		return s.Len()
	}
	return 0
}

// Reset drops the history of every series
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.series {
		s.Reset()
	}
}
