// Package metrics provides Prometheus metrics for the camera pipeline.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "astroplant",
		Subsystem: "camera",
		Name:      "commands_total",
		Help:      "Commands executed, by command name and outcome",
	}, []string{"command", "status"})

	cameraState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "astroplant",
		Subsystem: "camera",
		Name:      "state",
		Help:      "Current camera state (1 for the active state, 0 otherwise)",
	}, []string{"state"})

	capturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "astroplant",
		Subsystem: "camera",
		Name:      "captures_total",
		Help:      "Frames captured, by lit channel",
	}, []string{"channel"})

	captureRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "astroplant",
		Subsystem: "camera",
		Name:      "capture_retries_total",
		Help:      "Capture attempts that were retried after a driver error",
	})

	lightSwitches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "astroplant",
		Subsystem: "light",
		Name:      "switches_total",
		Help:      "Light rail switch operations, by channel and resulting state",
	}, []string{"channel", "state"})

	calibrationIterations = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "astroplant",
		Subsystem: "calibration",
		Name:      "iterations",
		Help:      "Exposure search iterations used by the last calibration",
	}, []string{"channel"})

	calibrationError = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "astroplant",
		Subsystem: "calibration",
		Name:      "error",
		Help:      "Distance of the calibrated luminance from the target band",
	}, []string{"channel"})

	ndviValue = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "astroplant",
		Subsystem: "camera",
		Name:      "ndvi_value",
		Help:      "Mean NDVI over plant pixels from the last measurement",
	})

	ndviError = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "astroplant",
		Subsystem: "camera",
		Name:      "ndvi_error",
		Help:      "NDVI standard deviation from the last measurement",
	})

	stateMu   sync.Mutex
	lastState string
)

// CountCommand records a finished command with its outcome status.
func CountCommand(command, status string) {
	commandsTotal.WithLabelValues(command, status).Inc()
}

// SetCameraState marks state as active and clears the previous one.
func SetCameraState(state string) {
	stateMu.Lock()
	defer stateMu.Unlock()
	if lastState != "" && lastState != state {
		cameraState.WithLabelValues(lastState).Set(0)
	}
	cameraState.WithLabelValues(state).Set(1)
	lastState = state
}

// CountCapture records a captured frame for a channel.
func CountCapture(channel string) {
	capturesTotal.WithLabelValues(channel).Inc()
}

// CountCaptureRetry records a capture retry.
func CountCaptureRetry() {
	captureRetries.Inc()
}

// CountLightSwitch records a rail switch. state is "on" or "off".
func CountLightSwitch(channel string, on bool) {
	state := "off"
	if on {
		state = "on"
	}
	lightSwitches.WithLabelValues(channel, state).Inc()
}

// SetCalibrationOutcome records the exposure search result for a channel.
func SetCalibrationOutcome(channel string, iterations int, residual float64) {
	calibrationIterations.WithLabelValues(channel).Set(float64(iterations))
	calibrationError.WithLabelValues(channel).Set(residual)
}

// SetNDVI records the latest NDVI measurement.
func SetNDVI(mean, stddev float64) {
	ndviValue.Set(mean)
	ndviError.Set(stddev)
}
