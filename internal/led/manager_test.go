package led

import (
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/AstroPlant/astroplant-camera-module/internal/camera"
	"github.com/AstroPlant/astroplant-camera-module/internal/events"
)

type setCall struct {
	name    string
	enabled bool
	pattern string
}

// Mock controller for testing
type mockController struct {
	mu    sync.Mutex
	calls []setCall
	seen  chan setCall
}

func newMockController() *mockController {
	return &mockController{seen: make(chan setCall, 16)}
}

func (m *mockController) Set(name string, enabled bool, pattern string) error {
	call := setCall{name, enabled, pattern}
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
	m.seen <- call
	return nil
}

func (m *mockController) Available() []string {
	return []string{StatusLED}
}

func (m *mockController) Patterns() []string {
	return []string{"solid", "blink", "heartbeat"}
}

// waitCall blocks until the controller records another Set call. The
// bus delivers events on its own goroutine.
func waitCall(t *testing.T, ctrl *mockController) setCall {
	t.Helper()
	select {
	case call := <-ctrl.seen:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("no LED call observed")
		return setCall{}
	}
}

func testManagerLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestManager_ShowsInitialState(t *testing.T) {
	ctrl := newMockController()
	bus := events.New()

	mgr := NewManager(ctrl, bus, testManagerLogger())
	mgr.Start(camera.StateUncalibrated)
	defer mgr.Stop()

	call := waitCall(t, ctrl)
	if call.name != StatusLED {
		t.Errorf("LED name = %q, want %q", call.name, StatusLED)
	}
	if !call.enabled || call.pattern != "heartbeat" {
		t.Errorf("initial call = %+v, want enabled heartbeat", call)
	}
}

func TestManager_FollowsStateTransitions(t *testing.T) {
	ctrl := newMockController()
	bus := events.New()

	mgr := NewManager(ctrl, bus, testManagerLogger())
	mgr.Start(camera.StateUncalibrated)
	defer mgr.Stop()
	waitCall(t, ctrl) // initial heartbeat

	steps := []struct {
		state       string
		wantEnabled bool
		wantPattern string
	}{
		{"BUSY", true, "blink"},
		{"READY", true, "solid"},
		{"ERROR", false, "none"},
	}

	for _, step := range steps {
		events.Publish(bus, events.StateChangedEvent{
			Current:   step.state,
			Timestamp: time.Now().Format(time.RFC3339),
		})

		call := waitCall(t, ctrl)
		if call.enabled != step.wantEnabled || call.pattern != step.wantPattern {
			t.Errorf("state %s: call = %+v, want enabled=%v pattern=%q",
				step.state, call, step.wantEnabled, step.wantPattern)
		}
	}
}

func TestManager_SkipsRepeatedStates(t *testing.T) {
	ctrl := newMockController()
	bus := events.New()

	mgr := NewManager(ctrl, bus, testManagerLogger())
	mgr.Start(camera.StateReady)
	defer mgr.Stop()
	waitCall(t, ctrl) // initial solid

	// A repeated READY must not produce a second write; the next
	// observed call has to be the BUSY blink.
	events.Publish(bus, events.StateChangedEvent{Current: "READY"})
	events.Publish(bus, events.StateChangedEvent{Current: "BUSY"})

	call := waitCall(t, ctrl)
	if call.pattern != "blink" {
		t.Errorf("call after repeated READY = %+v, want blink", call)
	}
}

func TestManager_StopDarkensLED(t *testing.T) {
	ctrl := newMockController()
	bus := events.New()

	mgr := NewManager(ctrl, bus, testManagerLogger())
	mgr.Start(camera.StateReady)
	waitCall(t, ctrl)

	mgr.Stop()

	call := waitCall(t, ctrl)
	if call.enabled || call.pattern != "none" {
		t.Errorf("call after Stop = %+v, want disabled none", call)
	}
}
