// Package engine turns landmark frames and audio levels into window transforms
// and distributes them to local renderers, remote peers and the session log.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-gaze/internal/observe"
	"github.com/teslashibe/go-gaze/internal/orientation"
	"github.com/teslashibe/go-gaze/internal/session"
	"github.com/teslashibe/go-gaze/internal/speaking"
	"github.com/teslashibe/go-gaze/internal/transform"
)

// Config configures the engine
type Config struct {
	ParticipantID string
	Transform     transform.Config
	Speaking      speaking.Config

	// StaleAfter marks the engine unhealthy when no frame arrived for this long
	// after the first one. Zero disables the check.
	StaleAfter time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		ParticipantID: "1",
		Transform:     transform.DefaultConfig(),
		Speaking:      speaking.DefaultConfig(),
		StaleAfter:    5 * time.Second,
	}
}

// Sink receives every local transform for delivery to remote peers
type Sink interface {
	SendTransform(ctx context.Context, t transform.WindowTransform) error
	Name() string
}

// Update is one transform published to subscribers
type Update struct {
	From      string                    `json:"from"`
	Local     bool                      `json:"local"`
	Transform transform.WindowTransform `json:"transform"`
	Left      bool                      `json:"left,omitempty"` // remote peer removed
}

// Remote is the latest state of one remote participant
type Remote struct {
	ID        string                    `json:"id"`
	Transform transform.WindowTransform `json:"transform"`
	JoinedAt  time.Time                 `json:"joined_at"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// Engine serialises frame handling for the local participant and tracks the
// roster of remote participants.
type Engine struct {
	cfg      Config
	logger   *slog.Logger
	metrics  *observe.Metrics
	policy   *transform.Policy
	detector *speaking.Detector
	recorder *session.Recorder

	// sessionMu orders condition changes against session start
	sessionMu sync.Mutex

	// mu serialises frame handling; every smoother and the session log have
	// exactly one writer.
	mu              sync.Mutex
	latest          transform.WindowTransform
	lastOrientation orientation.Orientation
	lastFrameAt     time.Time
	remotes         map[string]*Remote
	order           []string
	sink            Sink

	frames     int64
	skipped    int64
	sent       int64
	sendErrors int64

	subsMu sync.RWMutex
	subs   map[chan Update]struct{}
}

// New creates an engine. recorder and metrics may be nil.
func New(cfg Config, recorder *session.Recorder, metrics *observe.Metrics, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ParticipantID == "" {
		cfg.ParticipantID = "1"
	}
	if recorder == nil {
		recorder = session.NewRecorder(nil, logger)
	}

	cfg.Transform.Participant = cfg.ParticipantID
	policy := transform.NewPolicy(cfg.Transform)

	e := &Engine{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		policy:   policy,
		detector: speaking.NewDetector(cfg.Speaking, logger),
		recorder: recorder,
		latest:   transform.Default(policy.Limits()),
		remotes:  make(map[string]*Remote),
		subs:     make(map[chan Update]struct{}),
	}

	e.detector.OnChange(func(s speaking.State) {
		e.metrics.RecordTransition(context.Background(), s.Speaking)
		e.logger.Info("speaking state changed", "speaking", s.Speaking)
	})

	return e
}

// ParticipantID returns the local participant ID
func (e *Engine) ParticipantID() string {
	return e.cfg.ParticipantID
}

// Detector returns the speaking detector of the local participant
func (e *Engine) Detector() *speaking.Detector {
	return e.detector
}

// Recorder returns the session recorder
func (e *Engine) Recorder() *session.Recorder {
	return e.recorder
}

// SetSink sets the outbound peer sink. nil disables sending.
func (e *Engine) SetSink(s Sink) {
	e.mu.Lock()
	e.sink = s
	e.mu.Unlock()
}

// HandleFrame processes one landmark frame. Frames without a usable
// orientation are skipped and reported with an error wrapping
// orientation.ErrUnavailable or orientation.ErrTooFewLandmarks.
func (e *Engine) HandleFrame(ctx context.Context, frame orientation.Frame) (transform.WindowTransform, error) {
	start := time.Now()

	o, err := orientation.Estimate(frame)
	if err != nil {
		e.skip(ctx, err)
		return transform.WindowTransform{}, fmt.Errorf("skip frame: %w", err)
	}

	voice := e.detector.Snapshot()
	in := transform.Input{
		Orientation: o,
		Speaking:    voice.State.Speaking,
		VoiceAlpha:  voice.VoiceAlpha,
		Transcript:  voice.Transcript,
	}

	e.mu.Lock()
	t := e.policy.Apply(in)
	e.latest = t
	e.lastOrientation = o
	e.lastFrameAt = start
	e.frames++
	frames := e.frames
	sink := e.sink
	e.recorder.Record(t, e.snapshotRemotesLocked())
	e.mu.Unlock()

	e.notify(Update{From: e.cfg.ParticipantID, Local: true, Transform: t})

	if sink != nil {
		if err := sink.SendTransform(ctx, t); err != nil {
			e.mu.Lock()
			e.sendErrors++
			e.mu.Unlock()
			e.logger.Debug("send transform failed", "transport", sink.Name(), "error", err)
		} else {
			e.mu.Lock()
			e.sent++
			e.mu.Unlock()
			e.metrics.RecordSent(ctx, sink.Name())
		}
	}

	e.metrics.RecordFrame(ctx, time.Since(start))

	if frames%100 == 0 {
		e.logger.Debug("frame processed",
			"frames", frames,
			"theta", t.Theta,
			"width", t.Width,
			"gaze", t.GazeStatus,
			"speaking", t.IsSpeaking,
		)
	}

	return t, nil
}

func (e *Engine) skip(ctx context.Context, err error) {
	e.mu.Lock()
	e.skipped++
	skipped := e.skipped
	e.mu.Unlock()

	reason := observe.SkipUnavailable
	if errors.Is(err, orientation.ErrTooFewLandmarks) {
		reason = observe.SkipTooFewLandmarks
	}
	e.metrics.RecordSkip(ctx, reason)

	if skipped%50 == 1 {
		e.logger.Debug("frame skipped", "reason", reason, "skipped", skipped)
	}
}

// HandleAudio feeds one scalar audio level to the speaking detector
func (e *Engine) HandleAudio(level float64) {
	e.detector.Sample(level)
}

// HandleBins feeds a frequency magnitude buffer to the speaking detector
func (e *Engine) HandleBins(bins []byte) {
	e.detector.SampleBins(bins)
}

// HandleTranscript stores the latest transcript. It is ignored while silent.
func (e *Engine) HandleTranscript(text string) {
	e.detector.SetTranscript(text)
}

// Latest returns the most recent local transform, or the default transform
// before the first frame.
func (e *Engine) Latest() transform.WindowTransform {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latest
}

// Condition returns the active experiment condition
func (e *Engine) Condition() transform.Condition {
	return e.policy.Condition()
}

// SetCondition switches the experiment condition. Smoothing history is kept.
// It fails while a session is recording.
func (e *Engine) SetCondition(c transform.Condition) error {
	if !c.Valid() {
		return fmt.Errorf("unknown condition %d", int(c))
	}
	e.sessionMu.Lock()
	if e.recorder.Active() {
		e.sessionMu.Unlock()
		return ErrSessionActive
	}
	prev := e.policy.Condition()
	e.policy.SetCondition(c)
	e.sessionMu.Unlock()
	e.logger.Info("condition changed", "from", prev.String(), "to", c.String())
	return nil
}

// Limits returns the transform limits in use
func (e *Engine) Limits() transform.Limits {
	return e.policy.Limits()
}

// Close stops pending speaking timers and closes all subscriber channels
func (e *Engine) Close() {
	e.detector.Close()

	e.subsMu.Lock()
	for ch := range e.subs {
		close(ch)
		delete(e.subs, ch)
	}
	e.subsMu.Unlock()
}
