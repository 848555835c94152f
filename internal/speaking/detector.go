// Package speaking classifies an audio level signal into a debounced speaking state
package speaking

import (
	"log/slog"
	"sync"
	"time"
)

// Config configures the detector
type Config struct {
	Threshold float64       // Level above which a sample counts as voice (0-255 scale)
	Debounce  time.Duration // How long a level must persist before the state flips
	AlphaMin  float64       // Voice border alpha while silent
	AlphaMax  float64       // Voice border alpha while speaking
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Threshold: 10,
		Debounce:  200 * time.Millisecond,
		AlphaMin:  0,
		AlphaMax:  1,
	}
}

// State is the committed speaking state
type State struct {
	Speaking bool      `json:"speaking"`
	Since    time.Time `json:"since"`
}

// Capture is the speech-to-text collaborator started and stopped on transitions
type Capture interface {
	StartListening()
	StopListening()
}

// Detector is a two-state machine (silent, speaking) driven by level samples.
//
// Entering either state requires the level to stay on the corresponding side
// of the threshold for the full debounce interval. The two pending timers are
// mutually exclusive: a contradicting sample cancels the other one.
type Detector struct {
	cfg    Config
	logger *slog.Logger

	mu         sync.Mutex
	state      State
	voiceAlpha float64
	transcript string
	lastLevel  float64

	enterTimer *time.Timer
	exitTimer  *time.Timer
	enterSeq   uint64
	exitSeq    uint64

	transitions int64
	samples     int64

	capture   Capture
	observers []func(State)
}

// NewDetector creates a detector in the silent state
func NewDetector(cfg Config, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}

	return &Detector{
		cfg:        cfg,
		logger:     logger,
		state:      State{Since: time.Now()},
		voiceAlpha: cfg.AlphaMin,
	}
}

// SetCapture sets the speech-to-text collaborator
func (d *Detector) SetCapture(c Capture) {
	d.mu.Lock()
	d.capture = c
	d.mu.Unlock()
}

// OnChange registers an observer called after every committed transition
func (d *Detector) OnChange(fn func(State)) {
	d.mu.Lock()
	d.observers = append(d.observers, fn)
	d.mu.Unlock()
}

// Sample feeds one level reading
func (d *Detector) Sample(level float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.samples++
	d.lastLevel = level

	if level > d.cfg.Threshold {
		d.cancelExit()
		if !d.state.Speaking && d.enterTimer == nil {
			d.enterSeq++
			seq := d.enterSeq
			d.enterTimer = time.AfterFunc(d.cfg.Debounce, func() { d.fire(true, seq) })
		}
		return
	}

	d.cancelEnter()
	if d.state.Speaking && d.exitTimer == nil {
		d.exitSeq++
		seq := d.exitSeq
		d.exitTimer = time.AfterFunc(d.cfg.Debounce, func() { d.fire(false, seq) })
	}
}

// SampleBins feeds one frequency-magnitude buffer
func (d *Detector) SampleBins(bins []byte) {
	d.Sample(AverageLevel(bins))
}

func (d *Detector) cancelEnter() {
	if d.enterTimer != nil {
		d.enterTimer.Stop()
		d.enterTimer = nil
		d.enterSeq++
	}
}

func (d *Detector) cancelExit() {
	if d.exitTimer != nil {
		d.exitTimer.Stop()
		d.exitTimer = nil
		d.exitSeq++
	}
}

// fire commits a transition if its timer was not canceled in the meantime
func (d *Detector) fire(speaking bool, seq uint64) {
	d.mu.Lock()

	if speaking {
		if seq != d.enterSeq || d.enterTimer == nil {
			d.mu.Unlock()
			return
		}
		d.enterTimer = nil
	} else {
		if seq != d.exitSeq || d.exitTimer == nil {
			d.mu.Unlock()
			return
		}
		d.exitTimer = nil
	}

	if d.state.Speaking == speaking {
		d.mu.Unlock()
		return
	}

	d.state = State{Speaking: speaking, Since: time.Now()}
	d.transitions++

	if speaking {
		d.voiceAlpha = d.cfg.AlphaMax
	} else {
		d.voiceAlpha = d.cfg.AlphaMin
		d.transcript = ""
	}

	state := d.state
	capture := d.capture
	observers := append([]func(State){}, d.observers...)
	d.mu.Unlock()

	d.logger.Debug("speaking state change",
		"speaking", state.Speaking,
	)

	if capture != nil {
		if speaking {
			capture.StartListening()
		} else {
			capture.StopListening()
		}
	}

	for _, fn := range observers {
		fn(state)
	}
}

// State returns the latest committed state
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// VoiceAlpha returns the border alpha driven by voice activity
func (d *Detector) VoiceAlpha() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.voiceAlpha
}

// SetTranscript stores the interim speech-to-text output. It is ignored while silent.
func (d *Detector) SetTranscript(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state.Speaking {
		d.transcript = text
	}
}

// Transcript returns the transcript of the current utterance ("" while silent)
func (d *Detector) Transcript() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.state.Speaking {
		return ""
	}
	return d.transcript
}

// Snapshot is a consistent view of the detector
type Snapshot struct {
	State       State   `json:"state"`
	VoiceAlpha  float64 `json:"voice_alpha"`
	Transcript  string  `json:"transcript"`
	LastLevel   float64 `json:"last_level"`
	Transitions int64   `json:"transitions"`
	Samples     int64   `json:"samples"`
}

// Snapshot returns state, voice alpha and transcript read under one lock
func (d *Detector) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	transcript := ""
	if d.state.Speaking {
		transcript = d.transcript
	}

	return Snapshot{
		State:       d.state,
		VoiceAlpha:  d.voiceAlpha,
		Transcript:  transcript,
		LastLevel:   d.lastLevel,
		Transitions: d.transitions,
		Samples:     d.samples,
	}
}

// Close cancels pending timers
func (d *Detector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cancelEnter()
	d.cancelExit()
}

// AverageLevel reduces a frequency-magnitude buffer to its mean (0 when empty)
func AverageLevel(bins []byte) float64 {
	if len(bins) == 0 {
		return 0
	}

	var sum int
	for _, b := range bins {
		sum += int(b)
	}
	return float64(sum) / float64(len(bins))
}
