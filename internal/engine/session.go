package engine

import (
	"context"
	"errors"
)

// ErrSessionActive is returned for operations not allowed while recording
var ErrSessionActive = errors.New("session is active")

// StartSession starts recording under the current participant and condition.
// It returns false if a session is already active.
func (e *Engine) StartSession() bool {
	e.sessionMu.Lock()
	started := e.recorder.Start(e.cfg.ParticipantID, e.policy.Condition())
	e.sessionMu.Unlock()

	if !started {
		return false
	}
	e.metrics.SessionDelta(context.Background(), 1)
	return true
}

// StopSession stops recording and exports the log. It returns false if no
// session was active.
func (e *Engine) StopSession(ctx context.Context) bool {
	if !e.recorder.Stop(ctx) {
		return false
	}
	e.metrics.SessionDelta(ctx, -1)
	return true
}
