package transform

// GazeLabel is the discrete attention classification of a frame
type GazeLabel string

const (
	GazeNone     GazeLabel = ""
	GazeMutual   GazeLabel = "mutual gaze"
	GazeAversion GazeLabel = "gaze aversion"
)

// WindowTransform is the per-frame tile geometry sent to renderers and peers.
// JSON keys follow the flat record exchanged with browser peers.
type WindowTransform struct {
	TopDiff     float64 `json:"topDiff"`
	LeftDiff    float64 `json:"leftDiff"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	BorderRed   int     `json:"borderRed"`
	BorderGreen int     `json:"borderGreen"`
	BorderBlue  int     `json:"borderBlue"`
	BorderAlpha float64 `json:"borderAlpha"`

	// Diagnostics present under every condition
	BorderAlphaFromVoice float64   `json:"borderAlphaValueBasedVoice"`
	Theta                float64   `json:"theta"`
	WidthInCaseOfChange  float64   `json:"widthInCaseOfChange"` // unsmoothed, clamped to MinWidth
	SmoothedWidth        float64   `json:"smoothedWidth"`
	IsSpeaking           bool      `json:"isSpeaking"`
	Transcript           string    `json:"transcript"`
	GazeStatus           GazeLabel `json:"gazeStatus"`
}

// Default returns the transform shown before the first estimated frame
func Default(l Limits) WindowTransform {
	w := l.DefaultWidth()
	return WindowTransform{
		Width:                w,
		Height:               w * l.HeightRatio,
		BorderRed:            l.BorderColor.R,
		BorderGreen:          l.BorderColor.G,
		BorderBlue:           l.BorderColor.B,
		BorderAlpha:          l.AlphaMin,
		BorderAlphaFromVoice: l.AlphaMin,
	}
}

// ClassifyGaze labels a width: near the maximum is mutual gaze, near the
// minimum is gaze aversion, anything between is unlabeled
func ClassifyGaze(width float64, l Limits) GazeLabel {
	label := GazeNone
	if width > l.MaxWidth-l.span() {
		label = GazeMutual
	}
	if width < l.MinWidth+l.span() {
		label = GazeAversion
	}
	return label
}

// DiscreteWidth snaps a width to MaxWidth when it is within the gaze band of
// the maximum and to MinWidth otherwise
func DiscreteWidth(width float64, l Limits) float64 {
	if width > l.MaxWidth-l.span() {
		return l.MaxWidth
	}
	return l.MinWidth
}
