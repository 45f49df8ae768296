package events

// Event type constants for kelindar/event.
const (
	TypeStateChanged uint32 = iota + 1
	TypeCommandStarted
	TypeCommandCompleted
	TypePhotoStored
	TypeValueMeasured
	TypeCalibrationCompleted
)

// StateChangedEvent is published on every camera state transition.
// The status LED and metrics react to it.
type StateChangedEvent struct {
	Previous  string `json:"previous" example:"READY" doc:"State before the transition"`
	Current   string `json:"current" example:"BUSY" doc:"State after the transition"`
	Timestamp string `json:"timestamp" example:"2026-03-14T09:30:00Z" doc:"Transition timestamp"`
}

// Type returns the event type identifier for StateChangedEvent.
func (e StateChangedEvent) Type() uint32 { return TypeStateChanged }

// CommandStartedEvent is published when a command begins executing.
type CommandStartedEvent struct {
	Command   string `json:"command" example:"NDVI_PHOTO" doc:"Command name"`
	Timestamp string `json:"timestamp" example:"2026-03-14T09:30:00Z" doc:"Start timestamp"`
}

// Type returns the event type identifier for CommandStartedEvent.
func (e CommandStartedEvent) Type() uint32 { return TypeCommandStarted }

// CommandCompletedEvent is published when a command finishes, whether
// it produced a record or failed hard.
type CommandCompletedEvent struct {
	Command          string  `json:"command" example:"NDVI_PHOTO" doc:"Command name"`
	Success          bool    `json:"success" example:"true" doc:"False when the command failed hard"`
	EncounteredError bool    `json:"encountered_error" example:"false" doc:"True for degraded-but-usable outcomes"`
	Error            string  `json:"error,omitempty" doc:"Error description for hard failures"`
	DurationSeconds  float64 `json:"duration_seconds" example:"2.4" doc:"Wall-clock execution time"`
	Timestamp        string  `json:"timestamp" example:"2026-03-14T09:30:02Z" doc:"Completion timestamp"`
}

// Type returns the event type identifier for CommandCompletedEvent.
func (e CommandCompletedEvent) Type() uint32 { return TypeCommandCompleted }

// PhotoStoredEvent is published for every photo written to storage.
// Telemetry forwards these to the kit broker.
type PhotoStoredEvent struct {
	Kind      string `json:"kind" example:"white" doc:"Photo kind"`
	Path      string `json:"path" example:"img/20260314-093000-white.png" doc:"Storage path"`
	Channel   string `json:"channel,omitempty" example:"white" doc:"Light channel the capture was taken under"`
	Timestamp string `json:"timestamp" example:"2026-03-14T09:30:00Z" doc:"Storage timestamp"`
}

// Type returns the event type identifier for PhotoStoredEvent.
func (e PhotoStoredEvent) Type() uint32 { return TypePhotoStored }

// ValueMeasuredEvent is published for every derived value.
type ValueMeasuredEvent struct {
	Kind      string  `json:"kind" example:"ndvi" doc:"Value kind"`
	Value     float64 `json:"value" example:"0.62" doc:"Derived value"`
	Error     float64 `json:"error" example:"0.04" doc:"Error bound"`
	Timestamp string  `json:"timestamp" example:"2026-03-14T09:30:00Z" doc:"Measurement timestamp"`
}

// Type returns the event type identifier for ValueMeasuredEvent.
func (e ValueMeasuredEvent) Type() uint32 { return TypeValueMeasured }

// CalibrationCompletedEvent is published after CALIBRATE and UPDATE.
type CalibrationCompletedEvent struct {
	CameraID  string `json:"camera_id" example:"picam" doc:"Camera the settings belong to"`
	Converged bool   `json:"converged" example:"true" doc:"False when any channel kept best-observed settings"`
	Channels  int    `json:"channels" example:"4" doc:"Number of channels tuned"`
	Timestamp string `json:"timestamp" example:"2026-03-14T09:30:00Z" doc:"Completion timestamp"`
}

// Type returns the event type identifier for CalibrationCompletedEvent.
func (e CalibrationCompletedEvent) Type() uint32 { return TypeCalibrationCompleted }
