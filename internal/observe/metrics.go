// Package observe provides OpenTelemetry metrics for the gaze daemon.
//
// Instruments are created from a [metric.MeterProvider] by [NewMetrics]; the
// daemon uses the global provider set up by [InitProvider], tests use an SDK
// provider backed by a ManualReader. All recording helpers are nil-safe so
// components can run without metrics.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope of all go-gaze metrics
const meterName = "github.com/teslashibe/go-gaze"

// Skip reasons attached to gaze.frames.skipped
const (
	SkipTooFewLandmarks = "too_few_landmarks"
	SkipUnavailable     = "unavailable"
)

// Metrics holds the metric instruments of the daemon
type Metrics struct {
	// FramesProcessed counts landmark frames that produced a transform
	FramesProcessed metric.Int64Counter

	// FramesSkipped counts frames without a usable orientation.
	// Attribute: reason
	FramesSkipped metric.Int64Counter

	// FrameDuration tracks the time from frame receipt to transform fan-out
	FrameDuration metric.Float64Histogram

	// SpeakingTransitions counts committed speaking state changes.
	// Attribute: state (speaking | silent)
	SpeakingTransitions metric.Int64Counter

	// TransformsSent counts transforms handed to a peer link.
	// Attribute: transport
	TransformsSent metric.Int64Counter

	// ActiveSessions is 1 while a measurement session is recording
	ActiveSessions metric.Int64UpDownCounter

	// RemotePeers tracks the size of the remote roster
	RemotePeers metric.Int64UpDownCounter
}

// frameBuckets are histogram boundaries in seconds for per-frame work
var frameBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05,
}

// NewMetrics creates all instruments from mp
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FramesProcessed, err = m.Int64Counter("gaze.frames.processed",
		metric.WithDescription("Landmark frames that produced a window transform."),
	); err != nil {
		return nil, err
	}
	if met.FramesSkipped, err = m.Int64Counter("gaze.frames.skipped",
		metric.WithDescription("Landmark frames skipped because no orientation was available."),
	); err != nil {
		return nil, err
	}
	if met.FrameDuration, err = m.Float64Histogram("gaze.frame.duration",
		metric.WithDescription("Time spent turning a landmark frame into a window transform."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(frameBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SpeakingTransitions, err = m.Int64Counter("gaze.speaking.transitions",
		metric.WithDescription("Committed speaking state transitions by new state."),
	); err != nil {
		return nil, err
	}
	if met.TransformsSent, err = m.Int64Counter("gaze.peer.transforms_sent",
		metric.WithDescription("Window transforms sent to remote peers by transport."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("gaze.sessions.active",
		metric.WithDescription("Measurement sessions currently recording."),
	); err != nil {
		return nil, err
	}
	if met.RemotePeers, err = m.Int64UpDownCounter("gaze.peers.remote",
		metric.WithDescription("Remote participants currently in the roster."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordFrame records a processed frame and its latency
func (m *Metrics) RecordFrame(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.FramesProcessed.Add(ctx, 1)
	m.FrameDuration.Record(ctx, d.Seconds())
}

// RecordSkip records a skipped frame
func (m *Metrics) RecordSkip(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.FramesSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordTransition records a speaking state change
func (m *Metrics) RecordTransition(ctx context.Context, speaking bool) {
	if m == nil {
		return
	}
	state := "silent"
	if speaking {
		state = "speaking"
	}
	m.SpeakingTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state)))
}

// RecordSent records a transform sent over a peer transport
func (m *Metrics) RecordSent(ctx context.Context, transport string) {
	if m == nil {
		return
	}
	m.TransformsSent.Add(ctx, 1, metric.WithAttributes(attribute.String("transport", transport)))
}

// SessionDelta adjusts the active session gauge
func (m *Metrics) SessionDelta(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, delta)
}

// PeerDelta adjusts the remote peer gauge
func (m *Metrics) PeerDelta(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.RemotePeers.Add(ctx, delta)
}
