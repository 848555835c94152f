package transform

import (
	"math"
	"sync"

	"github.com/teslashibe/go-gaze/internal/orientation"
	"github.com/teslashibe/go-gaze/internal/smoothing"
	"github.com/teslashibe/go-gaze/internal/vecmath"
)

// Config configures a policy
type Config struct {
	Limits      Limits
	Condition   Condition
	Window      int    // moving average window
	Slack       int    // samples retained beyond the window
	Participant string // owner of the smoothing series
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Limits:      DefaultLimits(),
		Condition:   Baseline,
		Window:      smoothing.DefaultWindow,
		Slack:       smoothing.DefaultSlack,
		Participant: "local",
	}
}

// Input is everything the policy consumes for one frame
type Input struct {
	Orientation orientation.Orientation
	Speaking    bool
	VoiceAlpha  float64
	Transcript  string
}

// Policy maps orientation and speaking activity to a window transform under
// the selected condition. It owns the smoothing history of its participant.
type Policy struct {
	limits      Limits
	participant string
	registry    *smoothing.Registry

	mu        sync.Mutex
	condition Condition
}

// NewPolicy creates a policy with fresh smoothing history
func NewPolicy(cfg Config) *Policy {
	if !cfg.Condition.Valid() {
		cfg.Condition = Baseline
	}
	if cfg.Participant == "" {
		cfg.Participant = "local"
	}

	return &Policy{
		limits:      cfg.Limits,
		participant: cfg.Participant,
		registry:    smoothing.NewRegistry(cfg.Window, cfg.Slack),
		condition:   cfg.Condition,
	}
}

// Condition returns the active condition
func (p *Policy) Condition() Condition {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.condition
}

// SetCondition switches condition. Smoothing history is kept.
func (p *Policy) SetCondition(c Condition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.condition = c
}

// Limits returns the policy limits
func (p *Policy) Limits() Limits {
	return p.limits
}

// Registry exposes the smoothing series
func (p *Policy) Registry() *smoothing.Registry {
	return p.registry
}

// Apply computes the transform for one frame with an available orientation.
// Callers must not pass frames whose orientation could not be estimated.
func (p *Policy) Apply(in Input) WindowTransform {
	p.mu.Lock()
	defer p.mu.Unlock()

	l := p.limits
	o := in.Orientation
	norm := vecmath.Norm(o.Deviation)

	ratio := 1.0
	if l.ProximityScale*norm > 1 {
		ratio = 1 / (l.ProximityScale * norm)
	}

	rawWidth := l.MaxWidth * ratio
	rawAlpha := l.AlphaMax * ratio

	width := p.registry.Push(p.participant, smoothing.ChannelWidth, rawWidth)
	if width < l.MinWidth {
		width = l.MinWidth
	}

	alpha := p.registry.Push(p.participant, smoothing.ChannelBorderAlpha, rawAlpha)
	if alpha < l.AlphaMinThreshold {
		alpha = l.AlphaMin
	}

	instant := math.Max(rawWidth, l.MinWidth)
	label := ClassifyGaze(instant, l)

	top := p.registry.Push(p.participant, smoothing.ChannelTopOffset,
		l.DistanceScale*norm*math.Sin(o.Radians))
	left := p.registry.Push(p.participant, smoothing.ChannelLeftOffset,
		l.DistanceScale*norm*math.Cos(o.Radians-math.Pi))

	out := WindowTransform{
		BorderRed:            l.BorderColor.R,
		BorderGreen:          l.BorderColor.G,
		BorderBlue:           l.BorderColor.B,
		BorderAlphaFromVoice: in.VoiceAlpha,
		Theta:                o.Degrees,
		WidthInCaseOfChange:  instant,
		SmoothedWidth:        width,
		IsSpeaking:           in.Speaking,
		Transcript:           in.Transcript,
		GazeStatus:           label,
	}

	ch := p.condition.Channels()

	switch ch.Size {
	case SizeContinuous:
		out.Width = width
	case SizeDiscrete:
		out.Width = DiscreteWidth(width, l)
	default:
		out.Width = l.DefaultWidth()
	}
	out.Height = out.Width * l.HeightRatio

	if ch.Position {
		out.TopDiff = top
		out.LeftDiff = left
	}

	if ch.Border == BorderGaze {
		out.BorderAlpha = alpha
	} else {
		out.BorderAlpha = in.VoiceAlpha
	}

	return out
}
