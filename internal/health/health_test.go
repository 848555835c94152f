package health

import (
	"sync/atomic"
	"testing"
)

func TestChecker_Basic(t *testing.T) {
	checker := NewChecker("1.0.0")

	status := checker.GetStatus()

	if status.Status != "ok" {
		t.Errorf("expected status 'ok', got %s", status.Status)
	}

	if status.Version != "1.0.0" {
		t.Errorf("expected version '1.0.0', got %s", status.Version)
	}

	if status.UptimeSeconds < 0 {
		t.Error("expected non-negative uptime")
	}
}

func TestChecker_SetComponent(t *testing.T) {
	checker := NewChecker("1.0.0")

	checker.SetComponent("engine", true, "receiving frames")

	status := checker.GetStatus()

	if len(status.Components) != 1 {
		t.Errorf("expected 1 component, got %d", len(status.Components))
	}

	eng, ok := status.Components["engine"]
	if !ok {
		t.Fatal("expected engine component")
	}

	if !eng.Healthy {
		t.Error("expected engine to be healthy")
	}

	if eng.Message != "receiving frames" {
		t.Errorf("expected message 'receiving frames', got %s", eng.Message)
	}
}

func TestChecker_Degraded(t *testing.T) {
	checker := NewChecker("1.0.0")

	checker.SetComponent("engine", true, "ok")
	checker.SetComponent("peer", false, "relay disconnected")

	status := checker.GetStatus()

	if status.Status != "degraded" {
		t.Errorf("expected status 'degraded', got %s", status.Status)
	}

	if checker.IsHealthy() {
		t.Error("expected IsHealthy() to return false")
	}
}

func TestChecker_Recovery(t *testing.T) {
	checker := NewChecker("1.0.0")

	checker.SetComponent("peer", false, "error")

	if checker.IsHealthy() {
		t.Error("expected unhealthy")
	}

	checker.SetComponent("peer", true, "recovered")

	if !checker.IsHealthy() {
		t.Error("expected healthy after recovery")
	}

	status := checker.GetStatus()
	if status.Status != "ok" {
		t.Errorf("expected status 'ok', got %s", status.Status)
	}
}

func TestChecker_Probe(t *testing.T) {
	checker := NewChecker("1.0.0")

	var healthy atomic.Bool
	healthy.Store(true)
	var calls atomic.Int32

	checker.Register("peer", func() (bool, string) {
		calls.Add(1)
		if healthy.Load() {
			return true, "connected"
		}
		return false, "disconnected"
	})

	status := checker.GetStatus()
	if status.Status != "ok" {
		t.Errorf("expected status 'ok', got %s", status.Status)
	}
	if status.Components["peer"].Message != "connected" {
		t.Errorf("expected message 'connected', got %s", status.Components["peer"].Message)
	}

	healthy.Store(false)

	status = checker.GetStatus()
	if status.Status != "degraded" {
		t.Errorf("expected status 'degraded', got %s", status.Status)
	}
	if checker.IsHealthy() {
		t.Error("expected IsHealthy() to poll the probe")
	}

	if calls.Load() != 3 {
		t.Errorf("expected probe to be polled 3 times, got %d", calls.Load())
	}
}

func TestChecker_MultipleComponents(t *testing.T) {
	checker := NewChecker("1.0.0")

	checker.SetComponent("engine", true, "")
	checker.SetComponent("peer", true, "")
	checker.Register("session", func() (bool, string) { return true, "" })

	status := checker.GetStatus()

	if len(status.Components) != 3 {
		t.Errorf("expected 3 components, got %d", len(status.Components))
	}

	if status.Status != "ok" {
		t.Errorf("expected status 'ok', got %s", status.Status)
	}
}
