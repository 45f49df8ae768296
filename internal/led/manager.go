package led

import (
	"log/slog"
	"sync"

	"github.com/AstroPlant/astroplant-camera-module/internal/camera"
	"github.com/AstroPlant/astroplant-camera-module/internal/events"
)

// StatusLED is the uniform name the factory assigns the board's
// user-visible LED.
const StatusLED = "status"

// Manager mirrors the camera state onto the kit's status LED so the
// state is readable without a terminal: solid means ready, blinking
// means a command is executing, a heartbeat means calibration is
// still needed and a dark LED means a hardware fault.
type Manager struct {
	controller  Controller
	bus         *events.Bus
	unsubscribe func()
	logger      *slog.Logger

	mu   sync.Mutex
	last string
}

// NewManager creates an LED manager that reacts to camera state changes
func NewManager(controller Controller, bus *events.Bus, logger *slog.Logger) *Manager {
	return &Manager{
		controller: controller,
		bus:        bus,
		logger:     logger,
	}
}

// Start subscribes to state transitions and shows the pattern for the
// state the camera is currently in.
func (m *Manager) Start(initial camera.State) {
	m.unsubscribe = events.Subscribe(m.bus, func(e events.StateChangedEvent) {
		m.apply(e.Current)
	})
	m.apply(string(initial))
	m.logger.Info("Status LED manager started")
}

// Stop unsubscribes from events and darkens the LED
func (m *Manager) Stop() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	if err := m.controller.Set(StatusLED, false, "none"); err != nil {
		m.logger.Debug("Failed to darken status LED", "error", err)
	}
	m.logger.Info("Status LED manager stopped")
}

// apply translates a camera state into an LED pattern. Repeated states
// are not rewritten; sysfs writes are not free on every board.
func (m *Manager) apply(state string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state == m.last {
		return
	}
	m.last = state

	var (
		enabled bool
		pattern string
	)
	switch state {
	case string(camera.StateReady):
		enabled, pattern = true, "solid"
	case string(camera.StateBusy):
		enabled, pattern = true, "blink"
	case string(camera.StateUncalibrated):
		enabled, pattern = true, "heartbeat"
	default: // ERROR and anything unexpected
		enabled, pattern = false, "none"
	}

	if err := m.controller.Set(StatusLED, enabled, pattern); err != nil {
		m.logger.Warn("Failed to set status LED", "state", state, "error", err)
		return
	}

	m.logger.Debug("Status LED updated", "state", state, "pattern", pattern)
}
