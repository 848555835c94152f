package engine

import (
	"time"

	"github.com/teslashibe/go-gaze/internal/orientation"
	"github.com/teslashibe/go-gaze/internal/speaking"
	"github.com/teslashibe/go-gaze/internal/transform"
)

func (e *Engine) notify(u Update) {
	e.subsMu.RLock()
	defer e.subsMu.RUnlock()

	for ch := range e.subs {
		select {
		case ch <- u:
		default:
			// Drop if subscriber is slow
		}
	}
}

// Subscribe returns a channel that receives local and remote updates
func (e *Engine) Subscribe() chan Update {
	ch := make(chan Update, 16)

	e.subsMu.Lock()
	e.subs[ch] = struct{}{}
	e.subsMu.Unlock()

	return ch
}

// Unsubscribe removes a subscriber
func (e *Engine) Unsubscribe(ch chan Update) {
	e.subsMu.Lock()
	if _, exists := e.subs[ch]; exists {
		delete(e.subs, ch)
		close(ch)
	}
	e.subsMu.Unlock()
}

// Stats contains engine statistics
type Stats struct {
	ParticipantID   string                `json:"participant_id"`
	Condition       transform.Condition   `json:"condition"`
	ConditionName   string                `json:"condition_name"`
	FrameCount      int64                 `json:"frame_count"`
	SkippedCount    int64                 `json:"skipped_count"`
	SentCount       int64                 `json:"sent_count"`
	SendErrorCount  int64                 `json:"send_error_count"`
	SubscriberCount int                   `json:"subscriber_count"`
	RemoteCount     int                   `json:"remote_count"`
	LastFrameAt     time.Time             `json:"last_frame_at"`
	CurrentTheta    float64               `json:"current_theta"`
	Direction       orientation.Direction `json:"direction"`
	CurrentWidth    float64               `json:"current_width"`
	GazeStatus      transform.GazeLabel   `json:"gaze_status"`
	Speaking        speaking.Snapshot     `json:"speaking"`
	SessionActive   bool                  `json:"session_active"`
}

// Stats returns engine statistics
func (e *Engine) Stats() Stats {
	cond := e.policy.Condition()

	e.mu.Lock()
	s := Stats{
		ParticipantID:  e.cfg.ParticipantID,
		Condition:      cond,
		ConditionName:  cond.String(),
		FrameCount:     e.frames,
		SkippedCount:   e.skipped,
		SentCount:      e.sent,
		SendErrorCount: e.sendErrors,
		RemoteCount:    len(e.order),
		LastFrameAt:    e.lastFrameAt,
		CurrentTheta:   e.latest.Theta,
		Direction:      e.lastOrientation.Direction,
		CurrentWidth:   e.latest.Width,
		GazeStatus:     e.latest.GazeStatus,
	}
	e.mu.Unlock()

	e.subsMu.RLock()
	s.SubscriberCount = len(e.subs)
	e.subsMu.RUnlock()

	s.Speaking = e.detector.Snapshot()
	s.SessionActive = e.recorder.Active()
	return s
}

// Healthy reports whether frames are arriving. An engine that has not seen
// a frame yet is healthy.
func (e *Engine) Healthy() (bool, string) {
	e.mu.Lock()
	last := e.lastFrameAt
	e.mu.Unlock()

	if last.IsZero() {
		return true, "waiting for frames"
	}
	if e.cfg.StaleAfter > 0 && time.Since(last) > e.cfg.StaleAfter {
		return false, "no frames for " + time.Since(last).Truncate(time.Second).String()
	}
	return true, "ok"
}
