package engine

import (
	"context"
	"time"

	"github.com/teslashibe/go-gaze/internal/session"
	"github.com/teslashibe/go-gaze/internal/transform"
)

// UpdateRemote stores the latest transform of a remote participant. New
// participants are appended to the roster in join order.
func (e *Engine) UpdateRemote(id string, t transform.WindowTransform) {
	if id == "" || id == e.cfg.ParticipantID {
		return
	}

	now := time.Now()
	joined := false

	e.mu.Lock()
	r, ok := e.remotes[id]
	if !ok {
		r = &Remote{ID: id, JoinedAt: now}
		e.remotes[id] = r
		e.order = append(e.order, id)
		joined = true
	}
	r.Transform = t
	r.UpdatedAt = now
	e.mu.Unlock()

	if joined {
		e.metrics.PeerDelta(context.Background(), 1)
		e.logger.Info("remote participant joined", "id", id)
	}

	e.notify(Update{From: id, Transform: t})
}

// RemoveRemote drops a remote participant. It reports whether it was known.
func (e *Engine) RemoveRemote(id string) bool {
	e.mu.Lock()
	if _, ok := e.remotes[id]; !ok {
		e.mu.Unlock()
		return false
	}
	delete(e.remotes, id)
	for i, v := range e.order {
		if v == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	e.mu.Unlock()

	e.metrics.PeerDelta(context.Background(), -1)
	e.logger.Info("remote participant left", "id", id)

	e.notify(Update{From: id, Left: true})
	return true
}

// Remotes returns the remote roster in join order
func (e *Engine) Remotes() []Remote {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Remote, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, *e.remotes[id])
	}
	return out
}

func (e *Engine) snapshotRemotesLocked() []session.RemoteSnapshot {
	if len(e.order) == 0 {
		return nil
	}

	out := make([]session.RemoteSnapshot, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, session.RemoteSnapshot{ID: id, Transform: e.remotes[id].Transform})
	}
	return out
}
