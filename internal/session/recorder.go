// Package session records measurement sessions and exports them as CSV
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-gaze/internal/orientation"
	"github.com/teslashibe/go-gaze/internal/transform"
)

// RemoteSnapshot is the latest known transform of one remote participant
type RemoteSnapshot struct {
	ID        string                    `json:"id"`
	Transform transform.WindowTransform `json:"transform"`
}

// Entry is one row of the session log
type Entry struct {
	ParticipantID string                `json:"participant_id"`
	Condition     transform.Condition   `json:"condition"`
	StartTime     float64               `json:"start_time"` // seconds since session start
	EndTime       float64               `json:"end_time"`
	Theta         float64               `json:"theta"`
	Direction     orientation.Direction `json:"direction"`
	WindowWidth   float64               `json:"window_width"`
	SmoothedWidth float64               `json:"smoothed_width"`
	GazeStatus    transform.GazeLabel   `json:"gaze_status"`
	IsSpeaking    bool                  `json:"is_speaking"`
	Transcript    string                `json:"transcript"`
	Remotes       []RemoteSnapshot      `json:"remotes,omitempty"`
}

// Export is a frozen session log handed to an Exporter
type Export struct {
	SessionID     string              `json:"session_id"`
	ParticipantID string              `json:"participant_id"`
	Condition     transform.Condition `json:"condition"`
	StartedAt     time.Time           `json:"started_at"`
	StoppedAt     time.Time           `json:"stopped_at"`
	Entries       []Entry             `json:"entries"`
}

// Exporter persists a finished session
type Exporter interface {
	Export(ctx context.Context, exp Export) error
}

// Summary describes the recorder state
type Summary struct {
	SessionID     string              `json:"session_id,omitempty"`
	ParticipantID string              `json:"participant_id,omitempty"`
	Condition     transform.Condition `json:"condition,omitempty"`
	Active        bool                `json:"active"`
	Entries       int                 `json:"entries"`
	Elapsed       float64             `json:"elapsed_seconds"`
	StartedAt     time.Time           `json:"started_at,omitempty"`
}

// Recorder is an append-only session log with an explicit start/stop lifecycle
type Recorder struct {
	exporter Exporter
	logger   *slog.Logger
	now      func() time.Time

	mu            sync.Mutex
	active        bool
	sessionID     string
	participantID string
	condition     transform.Condition
	startedAt     time.Time
	lastEnd       float64
	entries       []Entry
	last          *Export
}

// NewRecorder creates an idle recorder. exporter may be nil.
func NewRecorder(exporter Exporter, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}

	return &Recorder{
		exporter: exporter,
		logger:   logger,
		now:      time.Now,
	}
}

// Start begins a new session, discarding the previous log. It is a no-op
// returning false if a session is already active.
func (r *Recorder) Start(participantID string, condition transform.Condition) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active {
		return false
	}

	r.active = true
	r.sessionID = uuid.NewString()
	r.participantID = participantID
	r.condition = condition
	r.startedAt = r.now()
	r.lastEnd = 0
	r.entries = []Entry{{ParticipantID: participantID, Condition: condition}}

	r.logger.Info("session started",
		"session_id", r.sessionID,
		"participant", participantID,
		"condition", condition.String(),
	)

	return true
}

// Record appends one entry while a session is active. It returns false when idle.
func (r *Recorder) Record(local transform.WindowTransform, remotes []RemoteSnapshot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return false
	}

	now := r.now().Sub(r.startedAt).Seconds()

	r.entries = append(r.entries, Entry{
		ParticipantID: r.participantID,
		Condition:     r.condition,
		StartTime:     r.lastEnd,
		EndTime:       now,
		Theta:         local.Theta,
		Direction:     orientation.DirectionOf(local.Theta),
		WindowWidth:   local.WidthInCaseOfChange,
		SmoothedWidth: local.SmoothedWidth,
		GazeStatus:    local.GazeStatus,
		IsSpeaking:    local.IsSpeaking,
		Transcript:    local.Transcript,
		Remotes:       append([]RemoteSnapshot(nil), remotes...),
	})
	r.lastEnd = now

	return true
}

// Stop freezes the log and exports it. It is a no-op returning false when
// no session is active.
func (r *Recorder) Stop(ctx context.Context) bool {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return false
	}

	r.active = false
	exp := Export{
		SessionID:     r.sessionID,
		ParticipantID: r.participantID,
		Condition:     r.condition,
		StartedAt:     r.startedAt,
		StoppedAt:     r.now(),
		Entries:       append([]Entry(nil), r.entries...),
	}
	r.last = &exp
	exporter := r.exporter
	r.mu.Unlock()

	r.logger.Info("session stopped",
		"session_id", exp.SessionID,
		"entries", len(exp.Entries),
	)

	if exporter != nil {
		if err := exporter.Export(ctx, exp); err != nil {
			r.logger.Warn("session export failed",
				"session_id", exp.SessionID,
				"error", err,
			)
		}
	}

	return true
}

// Active reports whether a session is being recorded
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Entries returns a copy of the current (or last frozen) log
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// LastExport returns the most recently stopped session, if any
func (r *Recorder) LastExport() (Export, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.last == nil {
		return Export{}, false
	}
	return *r.last, true
}

// Summary returns the recorder state
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := Summary{
		SessionID:     r.sessionID,
		ParticipantID: r.participantID,
		Condition:     r.condition,
		Active:        r.active,
		Entries:       len(r.entries),
		StartedAt:     r.startedAt,
	}
	if r.active {
		info.Elapsed = r.now().Sub(r.startedAt).Seconds()
	} else {
		info.Elapsed = r.lastEnd
	}
	return info
}
